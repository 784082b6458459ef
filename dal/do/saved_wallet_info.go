package do

import "time"

// SavedWalletInfo is a buyer's named external address bookmark. The
// composite unique index enforces one bookmark per (owner, address).
type SavedWalletInfo struct {
	ID        uint64 `gorm:"primaryKey"`
	Owner     string `gorm:"uniqueIndex:uniq_owner_address;not null;type:varchar(100)"`
	Address   string `gorm:"uniqueIndex:uniq_owner_address;not null;type:varchar(64)"`
	Nickname  string `gorm:"not null;default:'';type:varchar(40)"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
