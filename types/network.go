package types

// Network identifies the settlement network a proof is bound to. Only EVM
// networks carrying an EIP-3009 capable stablecoin are meaningful here; the
// verifier needs the token's EIP-712 domain parameters per network.
type Network string

const (
	NetworkBase        Network = "base"
	NetworkBaseSepolia Network = "base-sepolia"
	NetworkPolygon     Network = "polygon"
	NetworkPolygonAmoy Network = "polygon-amoy"
)

// TokenDomain holds the EIP-712 domain parameters of the payment token on
// one network, used for strict-mode signer recovery.
type TokenDomain struct {
	Name              string
	Version           string
	ChainID           string
	VerifyingContract string
}

var tokenDomains = map[Network]TokenDomain{
	NetworkBase: {
		Name:              "USD Coin",
		Version:           "2",
		ChainID:           "8453",
		VerifyingContract: "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
	},
	NetworkBaseSepolia: {
		Name:              "USDC",
		Version:           "2",
		ChainID:           "84532",
		VerifyingContract: "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
	},
	NetworkPolygon: {
		Name:              "USD Coin",
		Version:           "2",
		ChainID:           "137",
		VerifyingContract: "0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359",
	},
	NetworkPolygonAmoy: {
		Name:              "USDC",
		Version:           "2",
		ChainID:           "80002",
		VerifyingContract: "0x41E94Eb019C0762f9Bfcf9Fb1E58725BfB0e7582",
	},
}

// Domain returns the payment token's EIP-712 domain on this network.
// The second return is false for unknown networks.
func (n Network) Domain() (TokenDomain, bool) {
	d, ok := tokenDomains[n]
	return d, ok
}

// Asset returns the payment token contract address on this network, or an
// empty string for unknown networks.
func (n Network) Asset() string {
	if d, ok := tokenDomains[n]; ok {
		return d.VerifyingContract
	}
	return ""
}

func (n Network) IsTestnet() bool {
	return n == NetworkBaseSepolia || n == NetworkPolygonAmoy
}

func (n Network) String() string {
	return string(n)
}
