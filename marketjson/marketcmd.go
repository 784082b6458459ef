package marketjson

// CreateOrderCmd is the payload of POST /api/orders: a purchase claim
// referencing an on-chain payment the buyer already submitted.
type CreateOrderCmd struct {
	Buyer           string `json:"userEmail"`
	ProductID       string `json:"productId"`
	MerchantAddress string `json:"merchantAddress"`
	BuyerAddress    string `json:"userAddress"`
	Amount          string `json:"amount"`
	PaymentTxHash   string `json:"transactionHash"`
}

// UpdateOrderStatusCmd is the payload of PUT /api/orders/{orderId}/status.
type UpdateOrderStatusCmd struct {
	Status string `json:"status"`
}

// CreateProductCmd is the payload of POST /api/products.
type CreateProductCmd struct {
	Name            string `json:"name"`
	Description     string `json:"description"`
	Price           string `json:"price"`
	MerchantAddress string `json:"merchantAddress"`
}

// UpdateProductCmd is the payload of PUT /api/products/{id}. Updates only
// applies the non-nil fields; MerchantAddress authenticates ownership.
type UpdateProductCmd struct {
	MerchantAddress string         `json:"merchantAddress"`
	Updates         ProductUpdates `json:"updates"`
}

// ProductUpdates carries the modifiable product fields.
type ProductUpdates struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Price       *string `json:"price,omitempty"`
}

// DeleteProductCmd is the payload of DELETE /api/products/{id}.
type DeleteProductCmd struct {
	MerchantAddress string `json:"merchantAddress"`
}

// SaveWalletCmd is the payload of POST /api/saved-wallets.
type SaveWalletCmd struct {
	Owner    string `json:"email"`
	Address  string `json:"address"`
	Nickname string `json:"nickname"`
}

// AddUserCmd is the payload of POST /api/add-user: the linked accounts
// reported by the identity provider after login.
type AddUserCmd struct {
	LinkedAccounts []LinkedAccount `json:"linkedAccounts"`
}

// LinkedAccount is one identity-provider account entry; type is either
// "email" or "wallet".
type LinkedAccount struct {
	Type    string `json:"type"`
	Address string `json:"address"`
}

// CreateWalletCmd is the payload of POST /api/create-wallet.
type CreateWalletCmd struct {
	Owner string `json:"email"`
}

// SendTransactionCmd is the payload of POST /api/send-transaction: a
// direct custodial transfer requested by the wallet owner.
type SendTransactionCmd struct {
	Owner  string `json:"email"`
	To     string `json:"to"`
	Amount string `json:"value"`
}

// SignMessageCmd is the payload of POST /api/sign-message.
type SignMessageCmd struct {
	Owner   string `json:"email"`
	Message string `json:"message"`
}
