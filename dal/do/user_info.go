package do

import "time"

// UserInfo mirrors what the identity provider asserts about a user plus
// the lazily-provisioned custodial wallet. The custodial wallet id is an
// opaque capability at the custody provider; no key material is stored.
type UserInfo struct {
	ID                     uint64 `gorm:"primaryKey"`
	Email                  string `gorm:"uniqueIndex:uniq_email;not null;type:varchar(100)"`
	CustodialWalletID      string `gorm:"not null;default:'';type:varchar(64)"`
	CustodialWalletAddress string `gorm:"not null;default:'';type:varchar(64)"`
	CustodialChainType     string `gorm:"not null;default:'';type:varchar(32)"`
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// LinkedWalletInfo is an externally-owned wallet the identity provider has
// verified for a user.
type LinkedWalletInfo struct {
	ID        uint64 `gorm:"primaryKey"`
	UserID    uint64 `gorm:"index:idx_linked_user_id;not null"`
	WalletID  string `gorm:"not null;default:'';type:varchar(64)"`
	Address   string `gorm:"not null;type:varchar(64)"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
