// Package eip712 implements the typed-data hashing needed to sign and
// recover EIP-3009 TransferWithAuthorization messages. Only the pieces the
// delegated proof variant needs are implemented here; general typed-data
// support is not a goal.
package eip712

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Domain mirrors the EIP-712 domain of the payment token contract.
type Domain struct {
	Name              string
	Version           string
	ChainID           string // decimal string
	VerifyingContract string // hex address "0x..."
}

// Type hashes (keccak256 of the type signature strings).
var (
	transferAuthTypeHash = crypto.Keccak256Hash([]byte("TransferWithAuthorization(address from,address to,uint256 value,uint256 validAfter,uint256 validBefore,bytes32 nonce)"))

	// EIP712Domain type string - ordering matters.
	domainTypeHash = crypto.Keccak256Hash([]byte("EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"))
)

// Helpers ---------------------------------------------------------------------

// keccakConcat hashes the concatenation of 32-byte words, matching the
// abi.encode layout used by EIP-712 struct and domain hashing.
func keccakConcat(parts ...[]byte) common.Hash {
	joined := []byte{}
	for _, p := range parts {
		joined = append(joined, p...)
	}
	return crypto.Keccak256Hash(joined)
}

// padLeft32 returns a 32-byte right-aligned representation of the given big.Int.
func padLeft32(i *big.Int) []byte {
	b := i.Bytes()
	if len(b) > 32 {
		b = b[len(b)-32:]
	}
	out := make([]byte, 32)
	copy(out[32-len(b):], b)
	return out
}

// addressTo32 left-pads an address into 32 bytes.
func addressTo32(a common.Address) []byte {
	out := make([]byte, 32)
	copy(out[12:], a.Bytes())
	return out
}

func stringToBig(s string) (*big.Int, error) {
	n := new(big.Int)
	_, ok := n.SetString(s, 10)
	if !ok {
		return nil, errors.New("invalid decimal integer string")
	}
	return n, nil
}

// HexToBytes32 converts hex (with or without 0x) to a 32-byte array.
func HexToBytes32(hexStr string) ([32]byte, error) {
	var out [32]byte
	if len(hexStr) >= 2 && hexStr[0:2] == "0x" {
		hexStr = hexStr[2:]
	}
	b, err := hex.DecodeString(hexStr)
	if err != nil {
		return out, err
	}
	if len(b) > 32 {
		copy(out[:], b[len(b)-32:])
		return out, nil
	}
	copy(out[32-len(b):], b)
	return out, nil
}

// DomainSeparator builds the domainSeparator hash per EIP-712:
// keccak256(abi.encode(domainTypeHash, keccak256(name), keccak256(version), chainId, verifyingContract))
func DomainSeparator(d Domain) (common.Hash, error) {
	if d.Name == "" || d.Version == "" || d.ChainID == "" || d.VerifyingContract == "" {
		return common.Hash{}, errors.New("incomplete domain")
	}

	nameHash := crypto.Keccak256Hash([]byte(d.Name))
	versionHash := crypto.Keccak256Hash([]byte(d.Version))

	chainID, err := stringToBig(d.ChainID)
	if err != nil {
		return common.Hash{}, err
	}

	verifying := common.HexToAddress(d.VerifyingContract)

	parts := [][]byte{
		domainTypeHash.Bytes(),
		nameHash.Bytes(),
		versionHash.Bytes(),
		padLeft32(chainID),
		addressTo32(verifying),
	}
	return keccakConcat(parts...), nil
}

// HashTransferAuthorization computes the EIP-3009 struct hash:
// keccak256(abi.encode(typeHash, from, to, value, validAfter, validBefore, nonce))
func HashTransferAuthorization(from, to common.Address, value, validAfter, validBefore *big.Int, nonce [32]byte) common.Hash {
	parts := [][]byte{
		transferAuthTypeHash.Bytes(),
		addressTo32(from),
		addressTo32(to),
		padLeft32(value),
		padLeft32(validAfter),
		padLeft32(validBefore),
		nonce[:],
	}
	return keccakConcat(parts...)
}

// TypedDataHash returns the final digest to be signed or recovered:
// keccak256("\x19\x01" || domainSeparator || structHash)
func TypedDataHash(domainSeparator, structHash common.Hash) common.Hash {
	prefix := []byte{0x19, 0x01}
	return crypto.Keccak256Hash(append(append(prefix, domainSeparator.Bytes()...), structHash.Bytes()...))
}

// TransferAuthorizationDigest builds the full digest for one authorization.
// value/validAfter/validBefore are decimal strings as carried on the wire;
// nonceHex is 0x-prefixed or plain hex.
func TransferAuthorizationDigest(domain Domain, fromHex, toHex, valueDec, validAfterDec, validBeforeDec, nonceHex string) (common.Hash, error) {
	domainSep, err := DomainSeparator(domain)
	if err != nil {
		return common.Hash{}, err
	}
	from := common.HexToAddress(fromHex)
	to := common.HexToAddress(toHex)

	value, err := stringToBig(valueDec)
	if err != nil {
		return common.Hash{}, err
	}
	validAfter, err := stringToBig(validAfterDec)
	if err != nil {
		return common.Hash{}, err
	}
	validBefore, err := stringToBig(validBeforeDec)
	if err != nil {
		return common.Hash{}, err
	}
	nonce, err := HexToBytes32(nonceHex)
	if err != nil {
		return common.Hash{}, err
	}

	structHash := HashTransferAuthorization(from, to, value, validAfter, validBefore, nonce)
	return TypedDataHash(domainSep, structHash), nil
}

// RecoverSigner recovers the address that signed the given digest.
// sig must be 65 bytes (R||S||V). V may be 0/1 or 27/28 - it is normalized.
func RecoverSigner(digest common.Hash, sig []byte) (common.Address, error) {
	if len(sig) != 65 {
		return common.Address{}, errors.New("signature must be 65 bytes")
	}

	// copy to avoid mutating caller slice
	s := make([]byte, 65)
	copy(s, sig)

	if s[64] >= 27 {
		s[64] -= 27
	}

	pubKey, err := crypto.SigToPub(digest.Bytes(), s)
	if err != nil {
		return common.Address{}, fmt.Errorf("sig to pub failed: %w", err)
	}
	return crypto.PubkeyToAddress(*pubKey), nil
}
