package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/plutus-market/plutus-server/constdef"
	"github.com/plutus-market/plutus-server/dal/dao"
	"github.com/plutus-market/plutus-server/dal/do"
	"github.com/plutus-market/plutus-server/errcode"
	"github.com/plutus-market/plutus-server/model"
	"github.com/plutus-market/plutus-server/utils"

	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type OrderService interface {
	AdmitOrder(ctx context.Context, tx *gorm.DB, submission *model.OrderSubmission) (*do.OrderInfo, error)
	GetOrderByID(ctx context.Context, tx *gorm.DB, id uint64) (*do.OrderInfo, error)
	GetOrdersByBuyer(ctx context.Context, tx *gorm.DB, buyer string) ([]*do.OrderInfo, error)
	GetOrdersByMerchant(ctx context.Context, tx *gorm.DB, merchantAddress string) ([]*model.OrderDetails, error)
	GetOrderNum(ctx context.Context, tx *gorm.DB) (int64, error)
	TransitionStatus(ctx context.Context, tx *gorm.DB, id uint64, expected model.OrderStatus, target model.OrderStatus, settlementState model.SettlementState) (bool, error)
	MarkSettlement(ctx context.Context, tx *gorm.DB, id uint64, state model.SettlementState, settlementHash string) error
	GetSettlementBacklog(ctx context.Context, tx *gorm.DB, pendingBefore time.Time, limit int) ([]*do.OrderInfo, error)
}

type OrderServiceImpl struct {
	orderInfoDAO   dao.OrderInfoDAO
	productInfoDAO dao.ProductInfoDAO
}

var orderService OrderService = &OrderServiceImpl{
	orderInfoDAO:   dao.GetOrderInfoDAOImpl(),
	productInfoDAO: dao.GetProductInfoDAOImpl(),
}

func GetOrderService() OrderService {
	return orderService
}

// AdmitOrder validates a purchase claim and records it with status
// PENDING. The payment hash is recorded as supplied; on-chain existence
// is not checked here. A second submission carrying the same payment hash
// is rejected so one transfer cannot back two orders.
func (o *OrderServiceImpl) AdmitOrder(ctx context.Context, tx *gorm.DB, submission *model.OrderSubmission) (*do.OrderInfo, error) {
	if submission == nil {
		return nil, errors.New("nil order submission")
	}

	buyer := strings.TrimSpace(submission.Buyer)
	productID := strings.TrimSpace(submission.ProductID)
	merchantAddress := strings.TrimSpace(submission.MerchantAddress)
	buyerAddress := strings.TrimSpace(submission.BuyerAddress)
	amount := strings.TrimSpace(submission.Amount)
	paymentTxHash := strings.TrimSpace(submission.PaymentTxHash)

	if utils.IsBlank(buyer) || len(buyer) > constdef.MaxIdentityLength {
		return nil, fmt.Errorf("%w: invalid buyer identity", errcode.ErrInvalidInput)
	}
	if utils.IsBlank(productID) {
		return nil, fmt.Errorf("%w: missing product id", errcode.ErrInvalidInput)
	}
	if !utils.IsChainAddress(merchantAddress) {
		return nil, fmt.Errorf("%w: invalid merchant address %v", errcode.ErrInvalidInput, merchantAddress)
	}
	if !utils.IsChainAddress(buyerAddress) {
		return nil, fmt.Errorf("%w: invalid buyer address %v", errcode.ErrInvalidInput, buyerAddress)
	}
	if !utils.IsTransactionHash(paymentTxHash) {
		return nil, fmt.Errorf("%w: invalid payment transaction hash %v", errcode.ErrInvalidInput, paymentTxHash)
	}

	amt, err := decimal.NewFromString(amount)
	if err != nil || !amt.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be a positive decimal", errcode.ErrInvalidInput)
	}

	_, err = o.productInfoDAO.GetByID(ctx, tx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errcode.ErrProductNotFound
		}
		return nil, err
	}

	info := do.OrderInfo{
		Buyer:           buyer,
		ProductID:       productID,
		MerchantAddress: merchantAddress,
		BuyerAddress:    buyerAddress,
		Amount:          amt.String(),
		Status:          string(model.OrderPending),
		PaymentTxHash:   paymentTxHash,
		SettlementState: string(model.SettlementNone),
	}
	res, err := o.orderInfoDAO.Create(ctx, tx, &info)
	if err != nil {
		if isDuplicateKeyError(err) {
			return nil, errcode.ErrDuplicateOrder
		}
		return nil, err
	}

	return res, nil
}

func (o *OrderServiceImpl) GetOrderByID(ctx context.Context, tx *gorm.DB, id uint64) (*do.OrderInfo, error) {
	info, err := o.orderInfoDAO.GetByID(ctx, tx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errcode.ErrOrderNotFound
		}
		return nil, err
	}
	return info, nil
}

func (o *OrderServiceImpl) GetOrdersByBuyer(ctx context.Context, tx *gorm.DB, buyer string) ([]*do.OrderInfo, error) {
	if utils.IsBlank(buyer) || len(buyer) > constdef.MaxIdentityLength {
		return nil, fmt.Errorf("%w: invalid buyer identity", errcode.ErrInvalidInput)
	}

	return o.orderInfoDAO.GetByBuyer(ctx, tx, buyer)
}

// GetOrdersByMerchant joins each order with its product's current
// metadata. Orders referencing a since-deleted product are still listed,
// with the product fields left blank.
func (o *OrderServiceImpl) GetOrdersByMerchant(ctx context.Context, tx *gorm.DB, merchantAddress string) ([]*model.OrderDetails, error) {
	if !utils.IsChainAddress(merchantAddress) {
		return nil, fmt.Errorf("%w: invalid merchant address %v", errcode.ErrInvalidInput, merchantAddress)
	}

	infos, err := o.orderInfoDAO.GetByMerchantAddress(ctx, tx, merchantAddress)
	if err != nil {
		return nil, err
	}

	products := make(map[string]*do.ProductInfo)
	res := make([]*model.OrderDetails, 0, len(infos))
	for _, info := range infos {
		product, ok := products[info.ProductID]
		if !ok {
			product, err = o.productInfoDAO.GetByID(ctx, tx, info.ProductID)
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, err
			}
			if errors.Is(err, gorm.ErrRecordNotFound) {
				product = &do.ProductInfo{}
			}
			products[info.ProductID] = product
		}
		res = append(res, &model.OrderDetails{
			ID:              info.ID,
			Buyer:           info.Buyer,
			ProductID:       info.ProductID,
			ProductName:     product.Name,
			ProductPrice:    product.Price,
			MerchantAddress: info.MerchantAddress,
			BuyerAddress:    info.BuyerAddress,
			Amount:          info.Amount,
			Status:          model.OrderStatus(info.Status),
			SettlementState: model.SettlementState(info.SettlementState),
			SettlementHash:  info.SettlementHash,
			PaymentTxHash:   info.PaymentTxHash,
			CreatedAt:       info.CreatedAt,
			UpdatedAt:       info.UpdatedAt,
		})
	}
	return res, nil
}

func (o *OrderServiceImpl) GetOrderNum(ctx context.Context, tx *gorm.DB) (int64, error) {
	return o.orderInfoDAO.GetOrderNum(ctx, tx)
}

// TransitionStatus writes target over expected with a conditional update.
// It returns false when the stored status no longer equals expected, which
// is how concurrent transition requests are serialized: exactly one racer
// observes true.
func (o *OrderServiceImpl) TransitionStatus(ctx context.Context, tx *gorm.DB, id uint64, expected model.OrderStatus, target model.OrderStatus, settlementState model.SettlementState) (bool, error) {
	if !model.ValidTransitionTarget(target) {
		return false, fmt.Errorf("%w: %v is not a requestable status", errcode.ErrInvalidTransition, target)
	}
	if expected.IsTerminal() {
		return false, fmt.Errorf("%w: %v is terminal", errcode.ErrInvalidTransition, expected)
	}

	return o.orderInfoDAO.UpdateStatusIfCurrent(ctx, tx, id, string(expected), string(target), string(settlementState))
}

func (o *OrderServiceImpl) MarkSettlement(ctx context.Context, tx *gorm.DB, id uint64, state model.SettlementState, settlementHash string) error {
	return o.orderInfoDAO.UpdateSettlementByID(ctx, tx, id, string(state), settlementHash)
}

// GetSettlementBacklog returns terminal orders whose transfer dispatch
// previously failed, plus orders whose settlement has sat in PENDING since
// before pendingBefore, oldest first. The second group covers a crash
// between the status write and the transfer call; the grace period keeps
// the sweep from racing a dispatch that is still in flight. The
// reconciliation sweep retries both.
func (o *OrderServiceImpl) GetSettlementBacklog(ctx context.Context, tx *gorm.DB, pendingBefore time.Time, limit int) ([]*do.OrderInfo, error) {
	return o.orderInfoDAO.GetSettlementBacklog(ctx, tx,
		string(model.SettlementFailed), string(model.SettlementPending), pendingBefore, limit)
}

// isDuplicateKeyError detects a unique index violation. MySQL reports
// error 1062; the message checks cover wrapped errors and other dialects.
func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	msg := err.Error()
	return strings.Contains(msg, "Duplicate entry") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}
