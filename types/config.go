package types

import (
	"github.com/shopspring/decimal"
)

// VerifyMode selects how much of a proof the verifier checks.
type VerifyMode string

const (
	// ModeSimulation trusts structural validity and skips cryptographic
	// signer recovery. Test and demo environments only; a deployment must
	// not ship with this mode on the production path.
	ModeSimulation VerifyMode = "simulation"

	// ModeStrict additionally recovers the typed-data signer and requires
	// it to match the authorization's from address.
	ModeStrict VerifyMode = "strict"
)

// GatewayConfig carries the server-side gate configuration. It is threaded
// explicitly through constructors so independently-configured gateways can
// coexist in one process.
type GatewayConfig struct {
	// PayTo is the address every proof must name as recipient.
	PayTo string `json:"payTo" yaml:"payTo" validate:"required"`

	// DefaultPrice applies when a request names an unknown handler, so the
	// gate can still price the attempt and deny or charge uniformly.
	DefaultPrice decimal.Decimal `json:"defaultPrice" yaml:"defaultPrice"`

	// Mode defaults to strict outside tests.
	Mode VerifyMode `json:"mode" yaml:"mode" validate:"omitempty,oneof=simulation strict"`

	Network Network `json:"network" yaml:"network"`

	// ProofValiditySeconds bounds the validity window of constructed proofs.
	ProofValiditySeconds int64 `json:"proofValiditySeconds" yaml:"proofValiditySeconds" validate:"omitempty,gt=0"`

	// ClockSkewSeconds is the grace applied to time-window checks.
	ClockSkewSeconds int64 `json:"clockSkewSeconds" yaml:"clockSkewSeconds" validate:"omitempty,gte=0"`

	LogLevel      string `json:"logLevel" yaml:"logLevel"`
	EnableMetrics bool   `json:"enableMetrics" yaml:"enableMetrics"`
}

// Defaults for window bounds: proofs are valid for 300s with a 30s skew
// grace on both edges.
const (
	DefaultProofValiditySeconds int64 = 300
	DefaultClockSkewSeconds     int64 = 30
)

// Normalize fills zero-valued fields with defaults.
func (c *GatewayConfig) Normalize() {
	if c.Mode == "" {
		c.Mode = ModeStrict
	}
	if c.Network == "" {
		c.Network = NetworkBaseSepolia
	}
	if c.ProofValiditySeconds == 0 {
		c.ProofValiditySeconds = DefaultProofValiditySeconds
	}
	if c.ClockSkewSeconds == 0 {
		c.ClockSkewSeconds = DefaultClockSkewSeconds
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// ClientConfig carries the caller-side configuration for the invoker client.
type ClientConfig struct {
	// Payer is the address proofs are issued from.
	Payer string `json:"payer" yaml:"payer"`

	// Recipient overrides catalog discovery when set.
	Recipient string `json:"recipient" yaml:"recipient"`

	// PrivateKeyHex enables real typed-data signing of delegated proofs.
	// Without it the client falls back to a structurally-valid unsigned
	// proof, which only passes simulation-mode gates.
	PrivateKeyHex string `json:"privateKeyHex" yaml:"privateKeyHex"`

	Simulate bool `json:"simulate" yaml:"simulate"`

	Network Network `json:"network" yaml:"network"`

	// DefaultPrice is used when a handler is missing from the catalog,
	// mirroring the gateway-side leniency.
	DefaultPrice decimal.Decimal `json:"defaultPrice" yaml:"defaultPrice"`

	ProofValiditySeconds int64 `json:"proofValiditySeconds" yaml:"proofValiditySeconds"`
}

// Normalize fills zero-valued fields with defaults.
func (c *ClientConfig) Normalize() {
	if c.Network == "" {
		c.Network = NetworkBaseSepolia
	}
	if c.ProofValiditySeconds == 0 {
		c.ProofValiditySeconds = DefaultProofValiditySeconds
	}
}
