package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/plutus-market/plutus-server/constdef"
	"github.com/plutus-market/plutus-server/dal/dao"
	"github.com/plutus-market/plutus-server/dal/do"
	"github.com/plutus-market/plutus-server/errcode"
	"github.com/plutus-market/plutus-server/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ProductService interface {
	CreateProduct(ctx context.Context, tx *gorm.DB, name string, description string, price string, merchantAddress string) (*do.ProductInfo, error)
	GetProductByID(ctx context.Context, tx *gorm.DB, id string) (*do.ProductInfo, error)
	GetAllProducts(ctx context.Context, tx *gorm.DB) ([]*do.ProductInfo, error)
	GetProductsByMerchant(ctx context.Context, tx *gorm.DB, merchantAddress string) ([]*do.ProductInfo, error)
	UpdateProduct(ctx context.Context, tx *gorm.DB, id string, merchantAddress string, updates map[string]interface{}) (*do.ProductInfo, error)
	DeleteProduct(ctx context.Context, tx *gorm.DB, id string, merchantAddress string) error
}

type ProductServiceImpl struct {
	productInfoDAO dao.ProductInfoDAO
}

var productService ProductService = &ProductServiceImpl{
	productInfoDAO: dao.GetProductInfoDAOImpl(),
}

func GetProductService() ProductService {
	return productService
}

func (p *ProductServiceImpl) CreateProduct(ctx context.Context, tx *gorm.DB, name string, description string, price string, merchantAddress string) (*do.ProductInfo, error) {
	name = strings.TrimSpace(name)
	description = strings.TrimSpace(description)
	price = strings.TrimSpace(price)
	merchantAddress = strings.TrimSpace(merchantAddress)

	if utils.IsBlank(name) || len(name) > constdef.MaxProductNameLength {
		return nil, fmt.Errorf("%w: invalid product name", errcode.ErrInvalidInput)
	}
	if len(description) > constdef.MaxProductDescriptionLength {
		return nil, fmt.Errorf("%w: description exceeds max length", errcode.ErrInvalidInput)
	}
	if !utils.IsChainAddress(merchantAddress) {
		return nil, fmt.Errorf("%w: invalid merchant address %v", errcode.ErrInvalidInput, merchantAddress)
	}
	priceDecimal, err := decimal.NewFromString(price)
	if err != nil || !priceDecimal.IsPositive() {
		return nil, fmt.Errorf("%w: price must be a positive decimal", errcode.ErrInvalidInput)
	}

	info := do.ProductInfo{
		ID:              uuid.NewString(),
		Name:            name,
		Description:     description,
		Price:           priceDecimal.String(),
		MerchantAddress: merchantAddress,
	}
	return p.productInfoDAO.Create(ctx, tx, &info)
}

func (p *ProductServiceImpl) GetProductByID(ctx context.Context, tx *gorm.DB, id string) (*do.ProductInfo, error) {
	if utils.IsBlank(id) {
		return nil, fmt.Errorf("%w: missing product id", errcode.ErrInvalidInput)
	}

	info, err := p.productInfoDAO.GetByID(ctx, tx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errcode.ErrProductNotFound
		}
		return nil, err
	}
	return info, nil
}

func (p *ProductServiceImpl) GetAllProducts(ctx context.Context, tx *gorm.DB) ([]*do.ProductInfo, error) {
	return p.productInfoDAO.GetAll(ctx, tx)
}

func (p *ProductServiceImpl) GetProductsByMerchant(ctx context.Context, tx *gorm.DB, merchantAddress string) ([]*do.ProductInfo, error) {
	if !utils.IsChainAddress(merchantAddress) {
		return nil, fmt.Errorf("%w: invalid merchant address %v", errcode.ErrInvalidInput, merchantAddress)
	}

	return p.productInfoDAO.GetByMerchantAddress(ctx, tx, merchantAddress)
}

// UpdateProduct applies the given column updates after checking the caller
// owns the listing. Orders already admitted keep the amount they were
// admitted with; price changes only affect future purchases.
func (p *ProductServiceImpl) UpdateProduct(ctx context.Context, tx *gorm.DB, id string, merchantAddress string, updates map[string]interface{}) (*do.ProductInfo, error) {
	info, err := p.GetProductByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if info.MerchantAddress != merchantAddress {
		return nil, fmt.Errorf("%w: product %v", errcode.ErrNotOwner, id)
	}

	if name, ok := updates["name"].(string); ok {
		if utils.IsBlank(name) || len(name) > constdef.MaxProductNameLength {
			return nil, fmt.Errorf("%w: invalid product name", errcode.ErrInvalidInput)
		}
	}
	if description, ok := updates["description"].(string); ok {
		if len(description) > constdef.MaxProductDescriptionLength {
			return nil, fmt.Errorf("%w: description exceeds max length", errcode.ErrInvalidInput)
		}
	}
	if price, ok := updates["price"].(string); ok {
		priceDecimal, err := decimal.NewFromString(price)
		if err != nil || !priceDecimal.IsPositive() {
			return nil, fmt.Errorf("%w: price must be a positive decimal", errcode.ErrInvalidInput)
		}
		updates["price"] = priceDecimal.String()
	}

	err = p.productInfoDAO.UpdateByID(ctx, tx, id, updates)
	if err != nil {
		return nil, err
	}
	return p.GetProductByID(ctx, tx, id)
}

func (p *ProductServiceImpl) DeleteProduct(ctx context.Context, tx *gorm.DB, id string, merchantAddress string) error {
	info, err := p.GetProductByID(ctx, tx, id)
	if err != nil {
		return err
	}
	if info.MerchantAddress != merchantAddress {
		return fmt.Errorf("%w: product %v", errcode.ErrNotOwner, id)
	}

	return p.productInfoDAO.DeleteByID(ctx, tx, id)
}
