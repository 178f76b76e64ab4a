package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// ValidateStruct runs struct-tag validation on any configuration or
// definition value.
func ValidateStruct(v any) error {
	return validate.Struct(v)
}

// ValidateAmount checks that an amount string is a valid non-negative
// decimal and returns it parsed.
func ValidateAmount(amount string) (decimal.Decimal, error) {
	if amount == "" {
		return decimal.Zero, fmt.Errorf("amount cannot be empty")
	}

	dec, err := decimal.NewFromString(amount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount format: %w", err)
	}
	if dec.IsNegative() {
		return decimal.Zero, fmt.Errorf("amount cannot be negative")
	}
	return dec, nil
}

// RandomHex returns n random bytes as 0x-prefixed hex. Used for nonces,
// transaction references and request identifiers.
func RandomHex(n int) string {
	b := make([]byte, n)
	// crypto/rand.Read only fails when the platform entropy source is
	// broken, which is not recoverable here.
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return "0x" + hex.EncodeToString(b)
}
