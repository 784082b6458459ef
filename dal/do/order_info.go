package do

import "time"

// OrderInfo is the durable financial record of a purchase. Rows are never
// hard-deleted; status only moves forward per the settlement state
// machine, and payment_tx_hash is written once at creation.
type OrderInfo struct {
	ID              uint64 `gorm:"primaryKey"`
	Buyer           string `gorm:"index:idx_buyer;not null;type:varchar(100)"`
	ProductID       string `gorm:"not null;type:varchar(64)"`
	MerchantAddress string `gorm:"index:idx_merchant_address;not null;type:varchar(64)"`
	BuyerAddress    string `gorm:"not null;type:varchar(64)"`
	// Amount is an exact decimal string in the chain's display unit. It is
	// stored and compared as text; conversion to base units happens only at
	// the transfer gateway boundary.
	Amount          string `gorm:"not null;type:varchar(80)"`
	Status          string `gorm:"not null;default:'PENDING';type:varchar(16)"`
	PaymentTxHash   string `gorm:"uniqueIndex:uniq_payment_tx_hash;not null;type:varchar(80)"`
	SettlementState string `gorm:"not null;default:'NONE';type:varchar(16)"`
	SettlementHash  string `gorm:"not null;default:'';type:varchar(80)"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
