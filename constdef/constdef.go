package constdef

const (
	MaxIdentityLength = 100
	MaxNicknameLength = 40

	MaxProductNameLength        = 120
	MaxProductDescriptionLength = 2000

	// Length of a 0x-prefixed 20-byte hex chain address.
	ChainAddressLength = 42

	// Length of a 0x-prefixed 32-byte hex transaction hash.
	TransactionHashLength = 66
)

const (
	// WeiDecimals is the scale between the chain's display unit and its
	// base unit. Conversion happens only at the transfer gateway boundary.
	WeiDecimals = 18
)
