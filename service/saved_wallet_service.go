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

	"gorm.io/gorm"
)

type SavedWalletService interface {
	SaveWallet(ctx context.Context, tx *gorm.DB, owner string, address string, nickname string) (*do.SavedWalletInfo, error)
	GetSavedWallets(ctx context.Context, tx *gorm.DB, owner string) ([]*do.SavedWalletInfo, error)
	RemoveSavedWallet(ctx context.Context, tx *gorm.DB, owner string, address string) error
}

type SavedWalletServiceImpl struct {
	savedWalletInfoDAO dao.SavedWalletInfoDAO
}

var savedWalletService SavedWalletService = &SavedWalletServiceImpl{
	savedWalletInfoDAO: dao.GetSavedWalletInfoDAOImpl(),
}

func GetSavedWalletService() SavedWalletService {
	return savedWalletService
}

func (s *SavedWalletServiceImpl) SaveWallet(ctx context.Context, tx *gorm.DB, owner string, address string, nickname string) (*do.SavedWalletInfo, error) {
	owner = strings.TrimSpace(owner)
	address = strings.TrimSpace(address)
	nickname = strings.TrimSpace(nickname)

	if utils.IsBlank(owner) || len(owner) > constdef.MaxIdentityLength {
		return nil, fmt.Errorf("%w: invalid owner identity", errcode.ErrInvalidInput)
	}
	if !utils.IsChainAddress(address) {
		return nil, fmt.Errorf("%w: invalid wallet address %v", errcode.ErrInvalidInput, address)
	}
	if len(nickname) > constdef.MaxNicknameLength {
		return nil, fmt.Errorf("%w: nickname exceeds max length", errcode.ErrInvalidInput)
	}

	info := do.SavedWalletInfo{
		Owner:    owner,
		Address:  address,
		Nickname: nickname,
	}
	res, err := s.savedWalletInfoDAO.Create(ctx, tx, &info)
	if err != nil {
		if isDuplicateKeyError(err) {
			return nil, errcode.ErrDuplicateWallet
		}
		return nil, err
	}
	return res, nil
}

func (s *SavedWalletServiceImpl) GetSavedWallets(ctx context.Context, tx *gorm.DB, owner string) ([]*do.SavedWalletInfo, error) {
	if utils.IsBlank(owner) || len(owner) > constdef.MaxIdentityLength {
		return nil, fmt.Errorf("%w: invalid owner identity", errcode.ErrInvalidInput)
	}

	return s.savedWalletInfoDAO.GetByOwner(ctx, tx, owner)
}

func (s *SavedWalletServiceImpl) RemoveSavedWallet(ctx context.Context, tx *gorm.DB, owner string, address string) error {
	_, err := s.savedWalletInfoDAO.GetByOwnerAndAddress(ctx, tx, owner, address)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errcode.ErrWalletNotFound
		}
		return err
	}

	return s.savedWalletInfoDAO.DeleteByOwnerAndAddress(ctx, tx, owner, address)
}
