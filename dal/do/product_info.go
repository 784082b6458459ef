package do

import "time"

type ProductInfo struct {
	ID              string `gorm:"primaryKey;type:varchar(64)"`
	Name            string `gorm:"not null;type:varchar(120)"`
	Description     string `gorm:"not null;type:varchar(2000)"`
	Price           string `gorm:"not null;type:varchar(80)"`
	MerchantAddress string `gorm:"index:idx_product_merchant;not null;type:varchar(64)"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
