package dao

import (
	"context"
	"errors"
	"time"

	"github.com/plutus-market/plutus-server/dal/do"
	"github.com/plutus-market/plutus-server/errcode"

	"gorm.io/gorm"
)

type OrderInfoDAO interface {
	Create(ctx context.Context, tx *gorm.DB, info *do.OrderInfo) (*do.OrderInfo, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uint64) (*do.OrderInfo, error)
	GetByBuyer(ctx context.Context, tx *gorm.DB, buyer string) ([]*do.OrderInfo, error)
	GetByMerchantAddress(ctx context.Context, tx *gorm.DB, merchantAddress string) ([]*do.OrderInfo, error)
	GetByPaymentTxHash(ctx context.Context, tx *gorm.DB, paymentTxHash string) (*do.OrderInfo, error)
	// GetSettlementBacklog returns orders whose settlement needs another
	// attempt: rows in failedState, plus rows stuck in pendingState whose
	// updated_at predates pendingBefore. Oldest first.
	GetSettlementBacklog(ctx context.Context, tx *gorm.DB, failedState string, pendingState string, pendingBefore time.Time, limit int) ([]*do.OrderInfo, error)
	GetOrderNum(ctx context.Context, tx *gorm.DB) (int64, error)
	// UpdateStatusIfCurrent performs a compare-and-set on the status column:
	// the new status is written only if the stored status still equals
	// expected. It reports whether the row was updated, so two concurrent
	// transitions from the same source state cannot both succeed.
	UpdateStatusIfCurrent(ctx context.Context, tx *gorm.DB, id uint64, expected string, status string, settlementState string) (bool, error)
	UpdateSettlementByID(ctx context.Context, tx *gorm.DB, id uint64, settlementState string, settlementHash string) error
}

type OrderInfoDAOImpl struct{}

var orderInfoDAO OrderInfoDAO = &OrderInfoDAOImpl{}

func GetOrderInfoDAOImpl() OrderInfoDAO {
	return orderInfoDAO
}

func (o *OrderInfoDAOImpl) Create(ctx context.Context, tx *gorm.DB, info *do.OrderInfo) (*do.OrderInfo, error) {
	if tx == nil {
		return nil, errcode.ErrNilGormDB
	}

	if info == nil {
		return nil, errors.New("nil order info when creating")
	}

	query := tx.Create(info)
	return info, query.Error
}

func (o *OrderInfoDAOImpl) GetByID(ctx context.Context, tx *gorm.DB, id uint64) (*do.OrderInfo, error) {
	if tx == nil {
		return nil, errcode.ErrNilGormDB
	}

	res := do.OrderInfo{}
	query := tx.Model(&do.OrderInfo{}).Where("id = ?", id).Take(&res)
	return &res, query.Error
}

func (o *OrderInfoDAOImpl) GetByBuyer(ctx context.Context, tx *gorm.DB, buyer string) ([]*do.OrderInfo, error) {
	if tx == nil {
		return nil, errcode.ErrNilGormDB
	}

	res := make([]*do.OrderInfo, 0)
	query := tx.Model(&do.OrderInfo{}).Where("buyer = ?", buyer).Order("created_at DESC").Find(&res)
	return res, query.Error
}

func (o *OrderInfoDAOImpl) GetByMerchantAddress(ctx context.Context, tx *gorm.DB, merchantAddress string) ([]*do.OrderInfo, error) {
	if tx == nil {
		return nil, errcode.ErrNilGormDB
	}

	res := make([]*do.OrderInfo, 0)
	query := tx.Model(&do.OrderInfo{}).Where("merchant_address = ?", merchantAddress).Order("created_at DESC").Find(&res)
	return res, query.Error
}

func (o *OrderInfoDAOImpl) GetByPaymentTxHash(ctx context.Context, tx *gorm.DB, paymentTxHash string) (*do.OrderInfo, error) {
	if tx == nil {
		return nil, errcode.ErrNilGormDB
	}

	res := do.OrderInfo{}
	query := tx.Model(&do.OrderInfo{}).Where("payment_tx_hash = ?", paymentTxHash).Take(&res)
	return &res, query.Error
}

func (o *OrderInfoDAOImpl) GetSettlementBacklog(ctx context.Context, tx *gorm.DB, failedState string, pendingState string, pendingBefore time.Time, limit int) ([]*do.OrderInfo, error) {
	if tx == nil {
		return nil, errcode.ErrNilGormDB
	}

	res := make([]*do.OrderInfo, 0)
	query := tx.Model(&do.OrderInfo{}).
		Where("settlement_state = ? OR (settlement_state = ? AND updated_at < ?)",
			failedState, pendingState, pendingBefore).
		Order("updated_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	query = query.Find(&res)
	return res, query.Error
}

func (o *OrderInfoDAOImpl) GetOrderNum(ctx context.Context, tx *gorm.DB) (int64, error) {
	if tx == nil {
		return 0, errcode.ErrNilGormDB
	}

	var res int64
	query := tx.Model(&do.OrderInfo{}).Count(&res)
	return res, query.Error
}

func (o *OrderInfoDAOImpl) UpdateStatusIfCurrent(ctx context.Context, tx *gorm.DB, id uint64, expected string, status string, settlementState string) (bool, error) {
	if tx == nil {
		return false, errcode.ErrNilGormDB
	}

	query := tx.Model(&do.OrderInfo{}).
		Where("id = ? AND status = ?", id, expected).
		Updates(map[string]interface{}{
			"status":           status,
			"settlement_state": settlementState,
		})
	if query.Error != nil {
		return false, query.Error
	}
	return query.RowsAffected == 1, nil
}

func (o *OrderInfoDAOImpl) UpdateSettlementByID(ctx context.Context, tx *gorm.DB, id uint64, settlementState string, settlementHash string) error {
	if tx == nil {
		return errcode.ErrNilGormDB
	}

	query := tx.Model(&do.OrderInfo{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"settlement_state": settlementState,
			"settlement_hash":  settlementHash,
		})
	return query.Error
}
