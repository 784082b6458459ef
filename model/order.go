package model

import "time"

// OrderSubmission is a client-submitted purchase claim: the buyer asserts
// that PaymentTxHash moved Amount to the merchant's escrow wallet. The
// hash is recorded as supplied; it is not verified on-chain.
type OrderSubmission struct {
	Buyer           string
	ProductID       string
	MerchantAddress string
	BuyerAddress    string
	Amount          string
	PaymentTxHash   string
}

// OrderDetails is an order joined with the metadata of the purchased
// product, used by the merchant-facing order listing.
type OrderDetails struct {
	ID              uint64
	Buyer           string
	ProductID       string
	ProductName     string
	ProductPrice    string
	MerchantAddress string
	BuyerAddress    string
	Amount          string
	Status          OrderStatus
	SettlementState SettlementState
	SettlementHash  string
	PaymentTxHash   string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ProductSummary is the catalog lookup result consumed by order-creation
// callers: just enough to validate a purchase claim against the listing.
type ProductSummary struct {
	ID              string
	Name            string
	Price           string
	MerchantAddress string
}
