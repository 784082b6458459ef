package model

// CustodialWallet is the opaque capability returned by the custody
// provider: the platform holds the key, callers only ever see the id and
// the derived address.
type CustodialWallet struct {
	ID        string `json:"id"`
	Address   string `json:"address"`
	ChainType string `json:"chainType"`
}

// LinkedAccount is an externally-owned wallet asserted by the identity
// provider at registration time.
type LinkedAccount struct {
	WalletID string
	Address  string
}
