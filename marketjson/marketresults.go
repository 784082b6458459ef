package marketjson

// OrderResult models an order in API responses.
type OrderResult struct {
	ID              uint64 `json:"id"`
	Buyer           string `json:"userEmail"`
	ProductID       string `json:"productId"`
	MerchantAddress string `json:"merchantAddress"`
	BuyerAddress    string `json:"userAddress"`
	Amount          string `json:"amount"`
	Status          string `json:"status"`
	PaymentTxHash   string `json:"transactionHash"`
	SettlementState string `json:"settlementState"`
	SettlementHash  string `json:"settlementHash,omitempty"`
	CreatedAt       int64  `json:"createdAt"`
	UpdatedAt       int64  `json:"updatedAt"`
}

// UpdateOrderStatusResult is the response of PUT /api/orders/{id}/status.
// The status write and the settlement transfer succeed or fail
// independently: TransferWarning is set when the status was recorded but
// the transfer dispatch failed.
type UpdateOrderStatusResult struct {
	Order           *OrderResult `json:"order"`
	TransferWarning string       `json:"transferWarning,omitempty"`
}

// MerchantOrderResult is an order joined with product metadata, returned
// by GET /api/orders/merchant/{merchantAddress}.
type MerchantOrderResult struct {
	OrderResult
	ProductName  string `json:"productName"`
	ProductPrice string `json:"productPrice"`
}

// ProductResult models a product in API responses.
type ProductResult struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Description     string `json:"description"`
	Price           string `json:"price"`
	MerchantAddress string `json:"merchantAddress"`
	CreatedAt       int64  `json:"createdAt"`
	UpdatedAt       int64  `json:"updatedAt"`
}

// SavedWalletResult models a saved wallet bookmark in API responses.
type SavedWalletResult struct {
	Owner    string `json:"email"`
	Address  string `json:"address"`
	Nickname string `json:"nickname"`
}

// SavedWalletsResult is the response of GET /api/saved-wallets/{owner}.
type SavedWalletsResult struct {
	Wallets []*SavedWalletResult `json:"wallets"`
}

// WalletResult is the response of the custodial wallet endpoints.
type WalletResult struct {
	Success bool        `json:"success"`
	Wallet  *WalletInfo `json:"wallet,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// WalletInfo is the opaque custodial wallet capability exposed to clients.
type WalletInfo struct {
	ID        string `json:"id"`
	Address   string `json:"address"`
	ChainType string `json:"chainType"`
}

// SendTransactionResult is the response of POST /api/send-transaction.
type SendTransactionResult struct {
	Success         bool   `json:"success"`
	TransactionHash string `json:"transactionHash,omitempty"`
	Error           string `json:"error,omitempty"`
}

// SignMessageResult is the response of POST /api/sign-message.
type SignMessageResult struct {
	Success   bool   `json:"success"`
	Signature string `json:"signature,omitempty"`
	Error     string `json:"error,omitempty"`
}

// AddUserResult is the response of POST /api/add-user. Created is false
// when the email was already registered.
type AddUserResult struct {
	Success bool   `json:"success"`
	Email   string `json:"email"`
	Created bool   `json:"created"`
}

// VersionResult models the version of the backend in API responses.
type VersionResult struct {
	VersionString string `json:"version"`
}
