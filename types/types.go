package types

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ProtocolVersion is the wire version of the delegated proof shape.
const ProtocolVersion = 1

// MicroPerUnit is the number of micro-units in one unit of currency.
// All amount comparisons happen on integer micro-units so that no
// floating-point value ever crosses the verification boundary.
const MicroPerUnit = 1_000_000

// ToMicro converts a human-decimal amount to integer micro-units,
// rounding to the nearest integer.
func ToMicro(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.New(1, 6)).Round(0).IntPart()
}

// FromMicro converts integer micro-units back to a human-decimal amount.
func FromMicro(micro int64) decimal.Decimal {
	return decimal.New(micro, -6)
}

// ProofKind discriminates the two historical wire shapes of a payment proof.
type ProofKind string

const (
	// ProofSimple is the minimal self-contained shape: payer, recipient and
	// amount carried directly, no separate signature-recovery step.
	ProofSimple ProofKind = "simple"

	// ProofDelegated mirrors an EIP-3009 transfer authorization: the payer
	// signs intent off-chain and settlement, if any, happens out of band.
	ProofDelegated ProofKind = "delegated"

	// ProofUnknown is returned for objects matching neither shape.
	ProofUnknown ProofKind = "unknown"
)

// SimpleProof is the minimal proof variant.
type SimpleProof struct {
	Payer       string `json:"payer"`
	Recipient   string `json:"recipient"`
	AmountMicro int64  `json:"amountMicro"`
	TxRef       string `json:"txRef"`
	Signature   string `json:"signature,omitempty"`
	IssuedAt    int64  `json:"issuedAt"`
	Network     string `json:"network"`
}

// TransferAuthorization carries the EIP-3009 authorization fields.
// All uint256 values are decimal strings; Nonce is 0x-prefixed hex of
// a 32-byte value.
type TransferAuthorization struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`
	ValidAfter  string `json:"validAfter"`
	ValidBefore string `json:"validBefore"`
	Nonce       string `json:"nonce"`
}

// DelegatedPayload is the signed inner payload of a delegated proof.
type DelegatedPayload struct {
	Signature     string                `json:"signature"`
	Authorization TransferAuthorization `json:"authorization"`
}

// DelegatedProof is the richer, EIP-3009-style proof variant.
type DelegatedProof struct {
	X402Version int              `json:"x402Version"`
	Scheme      string           `json:"scheme"`
	Network     string           `json:"network"`
	Payload     DelegatedPayload `json:"payload"`
}

// PaymentProof is the tagged union over the two proof variants. Exactly one
// of Simple or Delegated is non-nil, matching Kind. Classification happens
// only in the proof package; every consumer switches on Kind.
type PaymentProof struct {
	Kind      ProofKind       `json:"kind"`
	Simple    *SimpleProof    `json:"simple,omitempty"`
	Delegated *DelegatedProof `json:"delegated,omitempty"`
}

// VerificationResult is the outcome of one verify call. It is constructed
// once and never mutated; failures are data, not errors.
type VerificationResult struct {
	Valid       bool   `json:"valid"`
	AmountMicro int64  `json:"amountMicro,omitempty"`
	Recipient   string `json:"recipient,omitempty"`
	Payer       string `json:"payer,omitempty"`
	Error       string `json:"error,omitempty"`
}

// TriggerKind describes how a handler is meant to be triggered.
type TriggerKind string

const (
	TriggerManual   TriggerKind = "manual"
	TriggerKeyword  TriggerKind = "keyword"
	TriggerSchedule TriggerKind = "schedule"
)

// HandlerFunc is the compute function behind a handler. Any error (or panic)
// it produces is caught at the registry boundary and converted into a failed
// invocation result.
type HandlerFunc func(ctx context.Context, payload map[string]any) (any, error)

// HandlerDefinition is one named, priced compute unit.
type HandlerDefinition struct {
	Name        string          `json:"name" validate:"required"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Trigger     TriggerKind     `json:"trigger"`
	Execute     HandlerFunc     `json:"-" validate:"required"`
}

// InvocationStatus is the lifecycle status of a single invocation.
type InvocationStatus string

const (
	StatusPending InvocationStatus = "pending"
	StatusSuccess InvocationStatus = "success"
	StatusFailed  InvocationStatus = "failed"
)

// InvocationRequest is one request for handler execution.
type InvocationRequest struct {
	RequestID string         `json:"requestId"`
	Handler   string         `json:"handler"`
	Payload   map[string]any `json:"payload,omitempty"`
	Proof     string         `json:"proof,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// InvocationResult is produced exactly once per request and is immutable
// after creation.
type InvocationResult struct {
	RequestID  string           `json:"requestId"`
	Handler    string           `json:"handler"`
	Status     InvocationStatus `json:"status"`
	Result     any              `json:"result,omitempty"`
	Error      string           `json:"error,omitempty"`
	DurationMS int64            `json:"executionDurationMs"`
}

// StepStatus is the per-step status within an orchestration chain.
type StepStatus string

const (
	StepSuccess StepStatus = "success"
	StepFailed  StepStatus = "failed"
	StepSkipped StepStatus = "skipped"
)

// StepResult records the outcome of one chain step.
type StepResult struct {
	Handler    string          `json:"handler"`
	Index      int             `json:"stepIndex"`
	Status     StepStatus      `json:"status"`
	Result     any             `json:"result,omitempty"`
	Error      string          `json:"error,omitempty"`
	ProofUsed  string          `json:"proofUsed,omitempty"`
	DurationMS int64           `json:"executionDurationMs,omitempty"`
	Spent      decimal.Decimal `json:"spent"`
}

// OrchestrationStatus is the overall outcome of a chain run.
type OrchestrationStatus string

const (
	OrchestrationCompleted OrchestrationStatus = "completed"
	OrchestrationPartial   OrchestrationStatus = "partial"
	OrchestrationFailed    OrchestrationStatus = "failed"
)

// OrchestrationResult is the aggregate outcome of one chain run.
type OrchestrationResult struct {
	OrchestrationID string              `json:"orchestrationId"`
	Chain           []string            `json:"chain"`
	Steps           []StepResult        `json:"steps"`
	FinalResult     any                 `json:"finalResult,omitempty"`
	TotalSpent      decimal.Decimal     `json:"totalSpent"`
	StepsCompleted  int                 `json:"stepsCompleted"`
	Status          OrchestrationStatus `json:"status"`
	StartedAt       time.Time           `json:"startedAt"`
	CompletedAt     time.Time           `json:"completedAt"`
}

// PaymentRequirement describes one accepted payment option in a denial
// response, so any compliant caller can self-correct and retry.
type PaymentRequirement struct {
	Scheme            string `json:"scheme"`
	Network           string `json:"network"`
	MaxAmountRequired string `json:"maxAmountRequired"`
	Resource          string `json:"resource"`
	Description       string `json:"description"`
	PayTo             string `json:"payTo"`
	MaxTimeoutSeconds int    `json:"maxTimeoutSeconds"`
	Asset             string `json:"asset"`
}

// PaymentRequiredResponse is the machine-readable "how to pay" hint returned
// when a gate denies an invocation.
type PaymentRequiredResponse struct {
	X402Version int                  `json:"x402Version"`
	Error       string               `json:"error"`
	Accepts     []PaymentRequirement `json:"accepts"`
}

// CatalogEntry describes one handler in the discovery document.
type CatalogEntry struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Price       string         `json:"price"`
	Trigger     TriggerKind    `json:"trigger"`
	Payment     PaymentDetails `json:"payment"`
}

// PaymentDetails tells a caller how to pay for one catalog entry.
type PaymentDetails struct {
	Recipient  string `json:"recipient"`
	Amount     string `json:"amount"`
	Currency   string `json:"currency"`
	Network    string `json:"network"`
	HeaderName string `json:"headerName"`
}

// CatalogResponse is the discovery document served to invoker clients.
type CatalogResponse struct {
	Catalog []CatalogEntry `json:"catalog"`
	Count   int            `json:"count"`
}

// GatedMeta carries execution metadata alongside a successful gated result.
type GatedMeta struct {
	RequestID  string `json:"requestId"`
	Handler    string `json:"handlerName"`
	DurationMS int64  `json:"executionDurationMs"`
	PricePaid  string `json:"pricePaid"`
	PaymentRef string `json:"paymentRef,omitempty"`
}

// GatedResponse is the transport-level response to a gated invocation.
// On denial Success is false and Denial carries the retry hint.
type GatedResponse struct {
	Success bool                     `json:"success"`
	Result  any                      `json:"result,omitempty"`
	Meta    *GatedMeta               `json:"meta,omitempty"`
	Error   string                   `json:"error,omitempty"`
	Denial  *PaymentRequiredResponse `json:"denial,omitempty"`
}

// GateError is the library error type carrying a machine-readable code.
type GateError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *GateError) Error() string {
	return e.Message
}

// NewGateError builds a GateError with a formatted message.
func NewGateError(code, format string, args ...any) *GateError {
	return &GateError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Error codes.
const (
	ErrDecodeFailed       = "DECODE_FAILED"
	ErrRecipientMismatch  = "RECIPIENT_MISMATCH"
	ErrInsufficientAmount = "INSUFFICIENT_AMOUNT"
	ErrNotYetValid        = "NOT_YET_VALID"
	ErrExpiredPayment     = "EXPIRED_PAYMENT"
	ErrSignatureInvalid   = "SIGNATURE_INVALID"
	ErrHandlerNotFound    = "HANDLER_NOT_FOUND"
	ErrHandlerFault       = "HANDLER_FAULT"
	ErrTransportFault     = "TRANSPORT_FAULT"
	ErrTransformFault     = "TRANSFORM_FAULT"
	ErrPaymentRequired    = "PAYMENT_REQUIRED"
	ErrConfigInvalid      = "CONFIG_INVALID"
)
