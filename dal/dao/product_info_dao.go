package dao

import (
	"context"
	"errors"

	"github.com/plutus-market/plutus-server/dal/do"
	"github.com/plutus-market/plutus-server/errcode"

	"gorm.io/gorm"
)

type ProductInfoDAO interface {
	Create(ctx context.Context, tx *gorm.DB, info *do.ProductInfo) (*do.ProductInfo, error)
	GetByID(ctx context.Context, tx *gorm.DB, id string) (*do.ProductInfo, error)
	GetAll(ctx context.Context, tx *gorm.DB) ([]*do.ProductInfo, error)
	GetByMerchantAddress(ctx context.Context, tx *gorm.DB, merchantAddress string) ([]*do.ProductInfo, error)
	UpdateByID(ctx context.Context, tx *gorm.DB, id string, updates map[string]interface{}) error
	DeleteByID(ctx context.Context, tx *gorm.DB, id string) error
}

type ProductInfoDAOImpl struct{}

var productInfoDAO ProductInfoDAO = &ProductInfoDAOImpl{}

func GetProductInfoDAOImpl() ProductInfoDAO {
	return productInfoDAO
}

func (p *ProductInfoDAOImpl) Create(ctx context.Context, tx *gorm.DB, info *do.ProductInfo) (*do.ProductInfo, error) {
	if tx == nil {
		return nil, errcode.ErrNilGormDB
	}

	if info == nil {
		return nil, errors.New("nil product info when creating")
	}

	query := tx.Create(info)
	return info, query.Error
}

func (p *ProductInfoDAOImpl) GetByID(ctx context.Context, tx *gorm.DB, id string) (*do.ProductInfo, error) {
	if tx == nil {
		return nil, errcode.ErrNilGormDB
	}

	res := do.ProductInfo{}
	query := tx.Model(&do.ProductInfo{}).Where("id = ?", id).Take(&res)
	return &res, query.Error
}

func (p *ProductInfoDAOImpl) GetAll(ctx context.Context, tx *gorm.DB) ([]*do.ProductInfo, error) {
	if tx == nil {
		return nil, errcode.ErrNilGormDB
	}

	res := make([]*do.ProductInfo, 0)
	query := tx.Model(&do.ProductInfo{}).Order("created_at DESC").Find(&res)
	return res, query.Error
}

func (p *ProductInfoDAOImpl) GetByMerchantAddress(ctx context.Context, tx *gorm.DB, merchantAddress string) ([]*do.ProductInfo, error) {
	if tx == nil {
		return nil, errcode.ErrNilGormDB
	}

	res := make([]*do.ProductInfo, 0)
	query := tx.Model(&do.ProductInfo{}).Where("merchant_address = ?", merchantAddress).Order("created_at DESC").Find(&res)
	return res, query.Error
}

func (p *ProductInfoDAOImpl) UpdateByID(ctx context.Context, tx *gorm.DB, id string, updates map[string]interface{}) error {
	if tx == nil {
		return errcode.ErrNilGormDB
	}

	if len(updates) == 0 {
		return nil
	}

	query := tx.Model(&do.ProductInfo{}).Where("id = ?", id).Updates(updates)
	return query.Error
}

func (p *ProductInfoDAOImpl) DeleteByID(ctx context.Context, tx *gorm.DB, id string) error {
	if tx == nil {
		return errcode.ErrNilGormDB
	}

	query := tx.Where("id = ?", id).Delete(&do.ProductInfo{})
	return query.Error
}
