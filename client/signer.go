package client

import (
	"crypto/ecdsa"
	"strings"

	"github.com/paygrid-dev/paygate/eip712"
	"github.com/paygrid-dev/paygate/types"
	"github.com/paygrid-dev/paygate/utils"
)

// UnsignedSignature fills the signature slot of a delegated proof built
// without key material: 65 zero bytes. It is structurally valid but can
// never recover a signer, so a strict gate always rejects it; a production
// caller must configure a real key.
var UnsignedSignature = "0x" + strings.Repeat("00", 65)

// signAuthorization computes the typed-data digest of a delegated proof's
// authorization over the network's token domain and signs it.
func signAuthorization(p *types.DelegatedProof, network types.Network, key *ecdsa.PrivateKey) (string, error) {
	domain, ok := network.Domain()
	if !ok {
		return "", types.NewGateError(types.ErrSignatureInvalid, "no token domain for network %s", network)
	}

	auth := p.Payload.Authorization
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
		return "", types.NewGateError(types.ErrSignatureInvalid, "digest failed: %v", err)
	}

	sig, err := utils.SignHash(digest.Bytes(), key)
	if err != nil {
		return "", types.NewGateError(types.ErrSignatureInvalid, "signing failed: %v", err)
	}
	return sig, nil
}
