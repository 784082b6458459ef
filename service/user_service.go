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
	"github.com/plutus-market/plutus-server/model"
	"github.com/plutus-market/plutus-server/utils"

	"gorm.io/gorm"
)

type UserService interface {
	GetUserByEmail(ctx context.Context, tx *gorm.DB, email string) (*do.UserInfo, error)
	RegisterUser(ctx context.Context, tx *gorm.DB, email string, linkedWallets []model.LinkedAccount) (*do.UserInfo, bool, error)
	AttachCustodialWallet(ctx context.Context, tx *gorm.DB, email string, wallet *model.CustodialWallet) error
	GetLinkedWallets(ctx context.Context, tx *gorm.DB, userID uint64) ([]*do.LinkedWalletInfo, error)
}

type UserServiceImpl struct {
	userInfoDAO dao.UserInfoDAO
}

var userService UserService = &UserServiceImpl{
	userInfoDAO: dao.GetUserInfoDAOImpl(),
}

func GetUserService() UserService {
	return userService
}

func (u *UserServiceImpl) GetUserByEmail(ctx context.Context, tx *gorm.DB, email string) (*do.UserInfo, error) {
	if utils.IsBlank(email) || len(email) > constdef.MaxIdentityLength {
		return nil, fmt.Errorf("%w: invalid email", errcode.ErrInvalidInput)
	}

	info, err := u.userInfoDAO.GetByEmail(ctx, tx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errcode.ErrUserNotFound
		}
		return nil, err
	}
	return info, nil
}

// RegisterUser records an identity-provider assertion. Registration is
// idempotent on email: re-registering an existing user returns the stored
// row with created=false and leaves the linked wallet set untouched.
func (u *UserServiceImpl) RegisterUser(ctx context.Context, tx *gorm.DB, email string, linkedWallets []model.LinkedAccount) (*do.UserInfo, bool, error) {
	email = strings.TrimSpace(email)
	if utils.IsBlank(email) || len(email) > constdef.MaxIdentityLength {
		return nil, false, fmt.Errorf("%w: invalid email", errcode.ErrInvalidInput)
	}

	existing, err := u.userInfoDAO.GetByEmail(ctx, tx, email)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	info := do.UserInfo{
		Email: email,
	}
	res, err := u.userInfoDAO.Create(ctx, tx, &info)
	if err != nil {
		if isDuplicateKeyError(err) {
			return nil, false, errcode.ErrDuplicateUser
		}
		return nil, false, err
	}

	for _, linked := range linkedWallets {
		if !utils.IsChainAddress(linked.Address) {
			continue
		}
		_, err := u.userInfoDAO.CreateLinkedWallet(ctx, tx, &do.LinkedWalletInfo{
			UserID:   res.ID,
			WalletID: linked.WalletID,
			Address:  linked.Address,
		})
		if err != nil {
			log.Errorf("Create linked wallet for user %v error: %v", res.ID, err)
		}
	}

	return res, true, nil
}

// AttachCustodialWallet persists a freshly-provisioned custodial wallet on
// the user row. A user gets at most one custodial wallet; a second attach
// is rejected so an existing wallet id is never silently replaced.
func (u *UserServiceImpl) AttachCustodialWallet(ctx context.Context, tx *gorm.DB, email string, wallet *model.CustodialWallet) error {
	if wallet == nil {
		return errors.New("nil custodial wallet")
	}

	info, err := u.GetUserByEmail(ctx, tx, email)
	if err != nil {
		return err
	}
	if info.CustodialWalletID != "" {
		return errcode.ErrWalletExists
	}

	return u.userInfoDAO.UpdateCustodialWallet(ctx, tx, info.ID, wallet.ID, wallet.Address, wallet.ChainType)
}

func (u *UserServiceImpl) GetLinkedWallets(ctx context.Context, tx *gorm.DB, userID uint64) ([]*do.LinkedWalletInfo, error) {
	return u.userInfoDAO.GetLinkedWalletsByUserID(ctx, tx, userID)
}
