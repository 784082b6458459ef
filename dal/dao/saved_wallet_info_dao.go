package dao

import (
	"context"
	"errors"

	"github.com/plutus-market/plutus-server/dal/do"
	"github.com/plutus-market/plutus-server/errcode"

	"gorm.io/gorm"
)

type SavedWalletInfoDAO interface {
	Create(ctx context.Context, tx *gorm.DB, info *do.SavedWalletInfo) (*do.SavedWalletInfo, error)
	GetByOwner(ctx context.Context, tx *gorm.DB, owner string) ([]*do.SavedWalletInfo, error)
	GetByOwnerAndAddress(ctx context.Context, tx *gorm.DB, owner string, address string) (*do.SavedWalletInfo, error)
	DeleteByOwnerAndAddress(ctx context.Context, tx *gorm.DB, owner string, address string) error
}

type SavedWalletInfoDAOImpl struct{}

var savedWalletInfoDAO SavedWalletInfoDAO = &SavedWalletInfoDAOImpl{}

func GetSavedWalletInfoDAOImpl() SavedWalletInfoDAO {
	return savedWalletInfoDAO
}

func (s *SavedWalletInfoDAOImpl) Create(ctx context.Context, tx *gorm.DB, info *do.SavedWalletInfo) (*do.SavedWalletInfo, error) {
	if tx == nil {
		return nil, errcode.ErrNilGormDB
	}

	if info == nil {
		return nil, errors.New("nil saved wallet info when creating")
	}

	query := tx.Create(info)
	return info, query.Error
}

func (s *SavedWalletInfoDAOImpl) GetByOwner(ctx context.Context, tx *gorm.DB, owner string) ([]*do.SavedWalletInfo, error) {
	if tx == nil {
		return nil, errcode.ErrNilGormDB
	}

	res := make([]*do.SavedWalletInfo, 0)
	query := tx.Model(&do.SavedWalletInfo{}).Where("owner = ?", owner).Order("created_at DESC").Find(&res)
	return res, query.Error
}

func (s *SavedWalletInfoDAOImpl) GetByOwnerAndAddress(ctx context.Context, tx *gorm.DB, owner string, address string) (*do.SavedWalletInfo, error) {
	if tx == nil {
		return nil, errcode.ErrNilGormDB
	}

	res := do.SavedWalletInfo{}
	query := tx.Model(&do.SavedWalletInfo{}).Where("owner = ? AND address = ?", owner, address).Take(&res)
	return &res, query.Error
}

func (s *SavedWalletInfoDAOImpl) DeleteByOwnerAndAddress(ctx context.Context, tx *gorm.DB, owner string, address string) error {
	if tx == nil {
		return errcode.ErrNilGormDB
	}

	query := tx.Where("owner = ? AND address = ?", owner, address).Delete(&do.SavedWalletInfo{})
	return query.Error
}
