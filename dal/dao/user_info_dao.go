package dao

import (
	"context"
	"errors"

	"github.com/plutus-market/plutus-server/dal/do"
	"github.com/plutus-market/plutus-server/errcode"

	"gorm.io/gorm"
)

type UserInfoDAO interface {
	Create(ctx context.Context, tx *gorm.DB, info *do.UserInfo) (*do.UserInfo, error)
	GetByEmail(ctx context.Context, tx *gorm.DB, email string) (*do.UserInfo, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uint64) (*do.UserInfo, error)
	UpdateCustodialWallet(ctx context.Context, tx *gorm.DB, id uint64, walletID string, address string, chainType string) error
	CreateLinkedWallet(ctx context.Context, tx *gorm.DB, info *do.LinkedWalletInfo) (*do.LinkedWalletInfo, error)
	GetLinkedWalletsByUserID(ctx context.Context, tx *gorm.DB, userID uint64) ([]*do.LinkedWalletInfo, error)
}

type UserInfoDAOImpl struct{}

var userInfoDAO UserInfoDAO = &UserInfoDAOImpl{}

func GetUserInfoDAOImpl() UserInfoDAO {
	return userInfoDAO
}

func (u *UserInfoDAOImpl) Create(ctx context.Context, tx *gorm.DB, info *do.UserInfo) (*do.UserInfo, error) {
	if tx == nil {
		return nil, errcode.ErrNilGormDB
	}

	if info == nil {
		return nil, errors.New("nil user info when creating")
	}

	query := tx.Create(info)
	return info, query.Error
}

func (u *UserInfoDAOImpl) GetByEmail(ctx context.Context, tx *gorm.DB, email string) (*do.UserInfo, error) {
	if tx == nil {
		return nil, errcode.ErrNilGormDB
	}

	res := do.UserInfo{}
	query := tx.Model(&do.UserInfo{}).Where("email = ?", email).Take(&res)
	return &res, query.Error
}

func (u *UserInfoDAOImpl) GetByID(ctx context.Context, tx *gorm.DB, id uint64) (*do.UserInfo, error) {
	if tx == nil {
		return nil, errcode.ErrNilGormDB
	}

	res := do.UserInfo{}
	query := tx.Model(&do.UserInfo{}).Where("id = ?", id).Take(&res)
	return &res, query.Error
}

func (u *UserInfoDAOImpl) UpdateCustodialWallet(ctx context.Context, tx *gorm.DB, id uint64, walletID string, address string, chainType string) error {
	if tx == nil {
		return errcode.ErrNilGormDB
	}

	query := tx.Model(&do.UserInfo{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"custodial_wallet_id":      walletID,
			"custodial_wallet_address": address,
			"custodial_chain_type":     chainType,
		})
	return query.Error
}

func (u *UserInfoDAOImpl) CreateLinkedWallet(ctx context.Context, tx *gorm.DB, info *do.LinkedWalletInfo) (*do.LinkedWalletInfo, error) {
	if tx == nil {
		return nil, errcode.ErrNilGormDB
	}

	if info == nil {
		return nil, errors.New("nil linked wallet info when creating")
	}

	query := tx.Create(info)
	return info, query.Error
}

func (u *UserInfoDAOImpl) GetLinkedWalletsByUserID(ctx context.Context, tx *gorm.DB, userID uint64) ([]*do.LinkedWalletInfo, error) {
	if tx == nil {
		return nil, errcode.ErrNilGormDB
	}

	res := make([]*do.LinkedWalletInfo, 0)
	query := tx.Model(&do.LinkedWalletInfo{}).Where("user_id = ?", userID).Find(&res)
	return res, query.Error
}
