package proof

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/paygrid-dev/paygate/types"
)

const (
	payer     = "0xE4d365a5a8fC0DCEE9E3C5985D7FcBab8B4A0fE1"
	recipient = "0x384Aa214be0B279cbf211e9b2C992d8633F77848"
)

func TestSimpleRoundTripMicroPrecision(t *testing.T) {
	amounts := []string{"0.001", "0.000999", "1", "0.0000005", "123.456789"}

	for _, a := range amounts {
		amount, err := decimal.NewFromString(a)
		if err != nil {
			t.Fatalf("bad test amount %q: %v", a, err)
		}

		wire, err := Encode(NewSimple(payer, recipient, amount, types.NetworkBaseSepolia))
		if err != nil {
			t.Fatalf("encode(%s): %v", a, err)
		}

		decoded, err := Decode(wire)
		if err != nil {
			t.Fatalf("decode(%s): %v", a, err)
		}
		if decoded.Kind != types.ProofSimple {
			t.Fatalf("decode(%s): kind = %s, want simple", a, decoded.Kind)
		}

		want := amount.Mul(decimal.New(1, 6)).Round(0).IntPart()
		if decoded.Simple.AmountMicro != want {
			t.Errorf("decode(%s): amountMicro = %d, want %d", a, decoded.Simple.AmountMicro, want)
		}
	}
}

func TestDelegatedRoundTrip(t *testing.T) {
	amount := decimal.NewFromFloat(0.25)
	p := NewDelegated(payer, recipient, amount, types.NetworkBaseSepolia, 5*time.Minute)

	wire, err := Encode(p)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	decoded, err := Decode(wire)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Kind != types.ProofDelegated {
		t.Fatalf("kind = %s, want delegated", decoded.Kind)
	}

	auth := decoded.Delegated.Payload.Authorization
	if auth.From != payer || auth.To != recipient {
		t.Errorf("authorization parties = (%s, %s), want (%s, %s)", auth.From, auth.To, payer, recipient)
	}
	if auth.Value != "250000" {
		t.Errorf("value = %s, want 250000", auth.Value)
	}
	if decoded.Delegated.Scheme != "exact" || decoded.Delegated.X402Version != types.ProtocolVersion {
		t.Errorf("scheme/version = %s/%d", decoded.Delegated.Scheme, decoded.Delegated.X402Version)
	}
}

func TestConstructedProofsNeverIdentical(t *testing.T) {
	amount := decimal.NewFromFloat(0.001)

	s1, _ := Encode(NewSimple(payer, recipient, amount, types.NetworkBase))
	s2, _ := Encode(NewSimple(payer, recipient, amount, types.NetworkBase))
	if s1 == s2 {
		t.Error("two simple proofs with identical parameters are wire-identical")
	}

	d1, _ := Encode(NewDelegated(payer, recipient, amount, types.NetworkBase, time.Minute))
	d2, _ := Encode(NewDelegated(payer, recipient, amount, types.NetworkBase, time.Minute))
	if d1 == d2 {
		t.Error("two delegated proofs with identical parameters are wire-identical")
	}
}

func TestDecodeAcceptsRawJSON(t *testing.T) {
	p := NewSimple(payer, recipient, decimal.NewFromInt(1), types.NetworkBase)
	raw, err := json.Marshal(p.Simple)
	if err != nil {
		t.Fatal(err)
	}

	decoded, err := Decode(string(raw))
	if err != nil {
		t.Fatalf("decode raw JSON: %v", err)
	}
	if decoded.Kind != types.ProofSimple {
		t.Errorf("kind = %s, want simple", decoded.Kind)
	}
}

func TestDecodeFailures(t *testing.T) {
	cases := map[string]string{
		"garbage":         "not base64 and not json",
		"base64 non-json": base64.StdEncoding.EncodeToString([]byte("still not json")),
		"json array":      "[1,2,3]",
		"unknown shape":   `{"hello":"world"}`,
	}

	for name, wire := range cases {
		if _, err := Decode(wire); err == nil {
			t.Errorf("%s: decode succeeded, want error", name)
		}
	}
}

func TestClassify(t *testing.T) {
	delegated := map[string]any{
		"x402Version": float64(1),
		"payload":     map[string]any{"signature": "0xabc"},
	}
	if got := Classify(delegated); got != types.ProofDelegated {
		t.Errorf("delegated classified as %s", got)
	}

	simple := map[string]any{
		"payer":       payer,
		"recipient":   recipient,
		"amountMicro": float64(1000),
	}
	if got := Classify(simple); got != types.ProofSimple {
		t.Errorf("simple classified as %s", got)
	}

	// A version tag without a nested payload is not delegated.
	odd := map[string]any{"x402Version": float64(1)}
	if got := Classify(odd); got != types.ProofUnknown {
		t.Errorf("version-only object classified as %s", got)
	}
}

func TestNonceIs32Bytes(t *testing.T) {
	p := NewDelegated(payer, recipient, decimal.NewFromInt(1), types.NetworkBase, time.Minute)
	nonce := p.Delegated.Payload.Authorization.Nonce
	if !strings.HasPrefix(nonce, "0x") || len(nonce) != 2+64 {
		t.Errorf("nonce = %q, want 0x-prefixed 32-byte hex", nonce)
	}
}
