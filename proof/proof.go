// Package proof encodes and decodes payment proofs to and from their
// transport form, and constructs fresh proofs for a given price.
//
// The wire form is conventionally base64 of a JSON document; raw JSON text
// is accepted as a fallback. Two historical shapes exist and are treated as
// a single tagged union: a minimal self-contained shape and a richer
// EIP-3009-style authorization shape.
package proof

import (
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/paygrid-dev/paygate/types"
	"github.com/paygrid-dev/paygate/utils"
)

// Decode parses a wire string into a classified payment proof. It fails
// with a DECODE_FAILED error when neither base64-then-JSON nor direct JSON
// parsing yields an object, or the object matches neither known shape.
func Decode(wire string) (*types.PaymentProof, error) {
	raw, err := decodeDocument(wire)
	if err != nil {
		return nil, err
	}

	kind := Classify(raw)
	switch kind {
	case types.ProofDelegated:
		var p types.DelegatedProof
		if err := reparse(raw, &p); err != nil {
			return nil, types.NewGateError(types.ErrDecodeFailed, "malformed delegated proof: %v", err)
		}
		return &types.PaymentProof{Kind: types.ProofDelegated, Delegated: &p}, nil
	case types.ProofSimple:
		var p types.SimpleProof
		if err := reparse(raw, &p); err != nil {
			return nil, types.NewGateError(types.ErrDecodeFailed, "malformed simple proof: %v", err)
		}
		return &types.PaymentProof{Kind: types.ProofSimple, Simple: &p}, nil
	default:
		return nil, types.NewGateError(types.ErrDecodeFailed, "proof matches no known shape")
	}
}

// decodeDocument turns the wire string into a JSON object, trying base64
// first and falling back to raw JSON text.
func decodeDocument(wire string) (map[string]any, error) {
	candidates := [][]byte{}
	if decoded, err := base64.StdEncoding.DecodeString(wire); err == nil {
		candidates = append(candidates, decoded)
	}
	candidates = append(candidates, []byte(wire))

	for _, data := range candidates {
		var raw map[string]any
		if err := json.Unmarshal(data, &raw); err == nil && raw != nil {
			return raw, nil
		}
	}
	return nil, types.NewGateError(types.ErrDecodeFailed, "proof is neither base64 JSON nor raw JSON object")
}

// Classify is the single structural discriminant over the union: a version
// tag plus a nested payload object means delegated; direct payer, recipient
// and amount fields mean simple. Consumers must switch on the returned kind
// and never re-inspect fields themselves.
func Classify(raw map[string]any) types.ProofKind {
	if _, hasVersion := raw["x402Version"]; hasVersion {
		if _, hasPayload := raw["payload"].(map[string]any); hasPayload {
			return types.ProofDelegated
		}
	}

	_, hasPayer := raw["payer"]
	_, hasRecipient := raw["recipient"]
	_, hasAmount := raw["amountMicro"]
	if hasPayer && hasRecipient && hasAmount {
		return types.ProofSimple
	}

	return types.ProofUnknown
}

func reparse(raw map[string]any, out any) error {
	data, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

// NewSimple constructs a fresh simple proof for the given price. The
// transaction reference is drawn from crypto/rand so two proofs for
// identical parameters are never byte-identical.
func NewSimple(payer, recipient string, amount decimal.Decimal, network types.Network) *types.PaymentProof {
	return &types.PaymentProof{
		Kind: types.ProofSimple,
		Simple: &types.SimpleProof{
			Payer:       payer,
			Recipient:   recipient,
			AmountMicro: types.ToMicro(amount),
			TxRef:       utils.RandomHex(32),
			IssuedAt:    time.Now().Unix(),
			Network:     network.String(),
		},
	}
}

// NewDelegated constructs a fresh, unsigned delegated proof whose validity
// window opens now and closes after the given duration. Each call draws a
// new 32-byte nonce. The caller is responsible for signing the
// authorization when real key material is available.
func NewDelegated(payer, recipient string, amount decimal.Decimal, network types.Network, validity time.Duration) *types.PaymentProof {
	now := time.Now().Unix()
	return &types.PaymentProof{
		Kind: types.ProofDelegated,
		Delegated: &types.DelegatedProof{
			X402Version: types.ProtocolVersion,
			Scheme:      "exact",
			Network:     network.String(),
			Payload: types.DelegatedPayload{
				Authorization: types.TransferAuthorization{
					From:        payer,
					To:          recipient,
					Value:       decimal.NewFromInt(types.ToMicro(amount)).String(),
					ValidAfter:  decimal.NewFromInt(now).String(),
					ValidBefore: decimal.NewFromInt(now + int64(validity.Seconds())).String(),
					Nonce:       utils.RandomHex(32),
				},
			},
		},
	}
}

// Encode serializes a proof back to its transport form: JSON of the variant
// document, base64 encoded. The union wrapper itself never crosses the wire.
func Encode(p *types.PaymentProof) (string, error) {
	var doc any
	switch p.Kind {
	case types.ProofSimple:
		doc = p.Simple
	case types.ProofDelegated:
		doc = p.Delegated
	default:
		return "", types.NewGateError(types.ErrDecodeFailed, "cannot encode proof of unknown kind")
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return "", types.NewGateError(types.ErrDecodeFailed, "marshal proof: %v", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}
