// Package verification decides whether a payment proof satisfies a required
// price and recipient. Failures never surface as errors: every outcome is a
// VerificationResult so the gate boundary can translate denials uniformly.
package verification

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/paygrid-dev/paygate/eip712"
	"github.com/paygrid-dev/paygate/logger"
	"github.com/paygrid-dev/paygate/metrics"
	"github.com/paygrid-dev/paygate/proof"
	"github.com/paygrid-dev/paygate/types"
	"github.com/paygrid-dev/paygate/utils"
)

// Verifier checks proofs against a required recipient and amount. Mode
// selects whether cryptographic signer recovery runs; simulation trusts
// structural validity and exists for tests and demos only.
type Verifier struct {
	mode      types.VerifyMode
	network   types.Network
	clockSkew time.Duration
	log       logger.Logger
	rec       metrics.Recorder
}

// Option configures a Verifier.
type Option func(*Verifier)

func WithLogger(l logger.Logger) Option {
	return func(v *Verifier) { v.log = l }
}

func WithMetrics(r metrics.Recorder) Option {
	return func(v *Verifier) { v.rec = r }
}

// NewVerifier builds a Verifier from the gateway configuration. The config
// should already be normalized; zero values fall back to strict mode and
// the default skew grace.
func NewVerifier(cfg *types.GatewayConfig, opts ...Option) *Verifier {
	mode := cfg.Mode
	if mode == "" {
		mode = types.ModeStrict
	}
	skew := cfg.ClockSkewSeconds
	if skew == 0 {
		skew = types.DefaultClockSkewSeconds
	}

	v := &Verifier{
		mode:      mode,
		network:   cfg.Network,
		clockSkew: time.Duration(skew) * time.Second,
		log:       logger.NoopLogger{},
		rec:       metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Mode reports the configured verification mode.
func (v *Verifier) Mode() types.VerifyMode {
	return v.mode
}

func invalid(format string, args ...any) *types.VerificationResult {
	return &types.VerificationResult{Valid: false, Error: fmt.Sprintf(format, args...)}
}

// Verify runs the ordered checks against a wire proof, short-circuiting on
// the first failure: presence, decode, recipient, amount, time window
// (delegated only) and signature (strict mode). Malformed input never
// raises; it comes back as Valid=false with a descriptive error.
func (v *Verifier) Verify(wire, requiredRecipient string, requiredAmount decimal.Decimal) *types.VerificationResult {
	start := time.Now()
	result := v.verify(wire, requiredRecipient, requiredAmount)
	v.rec.ObserveLatency(metrics.OperationVerify, time.Since(start), nil)

	if result.Valid {
		v.rec.IncCounter(metrics.EventVerifyValid, nil)
	} else {
		v.rec.IncCounter(metrics.EventVerifyInvalid, nil)
		v.log.Debug("proof rejected", map[string]any{"reason": result.Error})
	}
	return result
}

func (v *Verifier) verify(wire, requiredRecipient string, requiredAmount decimal.Decimal) *types.VerificationResult {
	if wire == "" {
		return invalid("missing proof")
	}

	p, err := proof.Decode(wire)
	if err != nil {
		return invalid("decode failed: %v", err)
	}

	var payer, recipient string
	var amountMicro int64

	switch p.Kind {
	case types.ProofSimple:
		payer = p.Simple.Payer
		recipient = p.Simple.Recipient
		amountMicro = p.Simple.AmountMicro
	case types.ProofDelegated:
		auth := p.Delegated.Payload.Authorization
		payer = auth.From
		recipient = auth.To
		value, err := strconv.ParseInt(auth.Value, 10, 64)
		if err != nil {
			return invalid("decode failed: invalid authorization value %q", auth.Value)
		}
		amountMicro = value
	default:
		return invalid("decode failed: unknown proof shape")
	}

	if !utils.SameAddress(recipient, requiredRecipient) {
		return invalid("recipient mismatch: proof pays %s, required %s", recipient, requiredRecipient)
	}

	requiredMicro := types.ToMicro(requiredAmount)
	if amountMicro < requiredMicro {
		return invalid("insufficient amount: required %s, received %s",
			types.FromMicro(requiredMicro).String(), types.FromMicro(amountMicro).String())
	}

	if p.Kind == types.ProofDelegated {
		if result := v.checkWindow(p.Delegated.Payload.Authorization); result != nil {
			return result
		}
	}

	if v.mode == types.ModeStrict {
		if result := v.checkSignature(p); result != nil {
			return result
		}
	}

	return &types.VerificationResult{
		Valid:       true,
		AmountMicro: amountMicro,
		Recipient:   recipient,
		Payer:       payer,
	}
}

// checkWindow enforces validAfter <= now < validBefore with the configured
// clock-skew grace on both bounds. Returns nil when the window holds.
func (v *Verifier) checkWindow(auth types.TransferAuthorization) *types.VerificationResult {
	validAfter, err := strconv.ParseInt(auth.ValidAfter, 10, 64)
	if err != nil {
		return invalid("decode failed: invalid validAfter %q", auth.ValidAfter)
	}
	validBefore, err := strconv.ParseInt(auth.ValidBefore, 10, 64)
	if err != nil {
		return invalid("decode failed: invalid validBefore %q", auth.ValidBefore)
	}

	now := time.Now().Unix()
	skew := int64(v.clockSkew.Seconds())

	if now+skew < validAfter {
		return invalid("payment authorization not yet valid")
	}
	if now-skew >= validBefore {
		return invalid("payment authorization expired")
	}
	return nil
}

// checkSignature recovers the typed-data signer and requires it to match
// the authorization's from address. Simple proofs carry no recoverable
// typed-data signature, so strict mode rejects them outright.
func (v *Verifier) checkSignature(p *types.PaymentProof) *types.VerificationResult {
	if p.Kind != types.ProofDelegated {
		return invalid("signature verification failed: simple proofs are not accepted in strict mode")
	}

	domain, ok := v.network.Domain()
	if !ok {
		return invalid("signature verification failed: no token domain for network %s", v.network)
	}

	auth := p.Delegated.Payload.Authorization
	digest, err := eip712.TransferAuthorizationDigest(
		eip712.Domain{
			Name:              domain.Name,
			Version:           domain.Version,
			ChainID:           domain.ChainID,
			VerifyingContract: domain.VerifyingContract,
		},
		auth.From, auth.To, auth.Value, auth.ValidAfter, auth.ValidBefore, auth.Nonce,
	)
	if err != nil {
		return invalid("signature verification failed: %v", err)
	}

	sig, err := utils.DecodeSignature(p.Delegated.Payload.Signature)
	if err != nil {
		return invalid("signature verification failed: %v", err)
	}

	signer, err := eip712.RecoverSigner(digest, sig)
	if err != nil {
		return invalid("signature verification failed: %v", err)
	}
	if !utils.SameAddress(signer.Hex(), auth.From) {
		return invalid("signature verification failed: recovered signer does not match payer")
	}
	return nil
}
