// Package settlemgr coordinates order status transitions and the monetary
// side effects they owe. The financial record is authoritative: the status
// write always lands before any transfer is attempted, and a failed
// transfer never reverts a committed status.
package settlemgr

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/plutus-market/plutus-server/dal/do"
	"github.com/plutus-market/plutus-server/errcode"
	"github.com/plutus-market/plutus-server/model"
	"github.com/plutus-market/plutus-server/service"
	"github.com/plutus-market/plutus-server/utils"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	defaultSweepInterval = 5 * time.Minute
	sweepBatchSize       = 50
)

type SettlementManager struct {
	db           *gorm.DB
	orderService service.OrderService

	gateway TransferGateway
	oracle  CorroborationEmitter
	sink    EventSink

	sweepInterval time.Duration
	sweepingFlag  atomic.Value

	wg       sync.WaitGroup
	shutdown int32
	quit     chan struct{}
}

func NewSettlementManager(db *gorm.DB, orderService service.OrderService,
	gateway TransferGateway, oracle CorroborationEmitter, sink EventSink,
	sweepInterval time.Duration) *SettlementManager {

	if sweepInterval <= 0 {
		sweepInterval = defaultSweepInterval
	}
	res := &SettlementManager{
		db:            db,
		orderService:  orderService,
		gateway:       gateway,
		oracle:        oracle,
		sink:          sink,
		sweepInterval: sweepInterval,
		quit:          make(chan struct{}),
	}
	res.sweepingFlag.Store(false)
	return res
}

// RequestTransition moves an order to target. The status is committed with
// a conditional write before any transfer is dispatched; when two requests
// race on the same order, exactly one commits and the loser gets
// ErrInvalidTransition. A transfer or corroboration failure after the
// commit is reported via the returned warning, never as an error.
func (m *SettlementManager) RequestTransition(ctx context.Context, orderID uint64, target model.OrderStatus) (*do.OrderInfo, string, error) {
	if !model.ValidTransitionTarget(target) {
		return nil, "", fmt.Errorf("%w: %v is not a requestable status", errcode.ErrInvalidTransition, target)
	}

	order, err := m.orderService.GetOrderByID(ctx, m.db, orderID)
	if err != nil {
		return nil, "", err
	}

	current := model.OrderStatus(order.Status)
	if current.IsTerminal() {
		return nil, "", fmt.Errorf("%w: order %v is already %v", errcode.ErrInvalidTransition, orderID, current)
	}
	if current == target {
		return nil, "", fmt.Errorf("%w: order %v is already %v", errcode.ErrInvalidTransition, orderID, current)
	}

	settlementState := model.SettlementNone
	if target.IsTerminal() {
		settlementState = model.SettlementPending
	}

	won, err := m.orderService.TransitionStatus(ctx, m.db, orderID, current, target, settlementState)
	if err != nil {
		return nil, "", err
	}
	if !won {
		// Another request committed first. The caller can re-read and
		// decide whether its transition still makes sense.
		return nil, "", fmt.Errorf("%w: order %v status changed concurrently", errcode.ErrInvalidTransition, orderID)
	}
	log.Infof("Order %v status %v -> %v", orderID, current, target)
	m.notify(&model.SettlementEvent{
		Type:    model.ETStatusChanged,
		OrderID: orderID,
		Status:  target,
		Time:    time.Now(),
	})

	warning := ""
	if target.IsTerminal() {
		warning = m.dispatchTransfer(ctx, order, target)
	}
	m.corroborate(ctx, orderID, target)

	updated, err := m.orderService.GetOrderByID(ctx, m.db, orderID)
	if err != nil {
		// The transition itself committed; fall back to the pre-read row
		// with the new status applied.
		order.Status = string(target)
		order.SettlementState = string(settlementState)
		return order, warning, nil
	}
	return updated, warning, nil
}

// dispatchTransfer pays out the monetary side effect of a terminal
// transition: COMPLETED releases the escrowed amount to the merchant,
// FAILED refunds the buyer. Returns a warning string when the dispatch
// failed and was left for the reconciliation sweep.
func (m *SettlementManager) dispatchTransfer(ctx context.Context, order *do.OrderInfo, target model.OrderStatus) string {
	if m.gateway == nil {
		log.Warnf("No transfer gateway configured, deferring settlement of order %v", order.ID)
		m.recordSettlementFailure(ctx, order.ID, target)
		return "transfer not dispatched: no transfer gateway configured"
	}

	to := order.MerchantAddress
	if target == model.OrderFailed {
		to = order.BuyerAddress
	}

	amount, err := decimal.NewFromString(order.Amount)
	if err != nil {
		// Admission validates the amount, so this indicates row corruption.
		log.Errorf("Order %v has unparseable amount %q: %v", order.ID, order.Amount, err)
		m.recordSettlementFailure(ctx, order.ID, target)
		return "transfer not dispatched: stored amount is invalid"
	}

	txHash, err := m.gateway.Transfer(ctx, order.Buyer, to, amount, transferIdempotencyKey(order.ID, target))
	if err != nil {
		log.Errorf("Transfer for order %v (%v -> %v) failed: %v", order.ID, order.Amount, to, err)
		m.recordSettlementFailure(ctx, order.ID, target)
		return "status recorded but transfer dispatch failed; it will be retried"
	}

	if err := m.orderService.MarkSettlement(ctx, m.db, order.ID, model.SettlementSettled, txHash); err != nil {
		log.Errorf("Unable to record settlement hash %v for order %v: %v", txHash, order.ID, err)
	}
	m.notify(&model.SettlementEvent{
		Type:           model.ETTransferSettled,
		OrderID:        order.ID,
		Status:         target,
		SettlementHash: txHash,
		Time:           time.Now(),
	})
	return ""
}

func (m *SettlementManager) recordSettlementFailure(ctx context.Context, orderID uint64, target model.OrderStatus) {
	if err := m.orderService.MarkSettlement(ctx, m.db, orderID, model.SettlementFailed, ""); err != nil {
		log.Errorf("Unable to mark settlement failure for order %v: %v", orderID, err)
	}
	m.notify(&model.SettlementEvent{
		Type:    model.ETTransferFailed,
		OrderID: orderID,
		Status:  target,
		Warning: "transfer dispatch failed",
		Time:    time.Now(),
	})
}

func (m *SettlementManager) corroborate(ctx context.Context, orderID uint64, target model.OrderStatus) {
	if m.oracle == nil {
		return
	}

	var err error
	switch target {
	case model.OrderProcessing:
		err = m.oracle.NotifyShipped(ctx, orderID)
	case model.OrderCompleted:
		err = m.oracle.NotifyDelivered(ctx, orderID)
	default:
		return
	}
	if err != nil {
		log.Warnf("Corroboration for order %v (%v) failed: %v", orderID, target, err)
		m.notify(&model.SettlementEvent{
			Type:    model.ETCorroborationFailed,
			OrderID: orderID,
			Status:  target,
			Warning: err.Error(),
			Time:    time.Now(),
		})
	}
}

func (m *SettlementManager) notify(event *model.SettlementEvent) {
	if m.sink == nil {
		return
	}
	m.sink.Notify(event)
}

// sweepHandler periodically retries transfers for orders whose dispatch
// failed. The idempotency key ties each retry to (order id, target
// status), so a transfer the provider already executed is not paid twice.
func (m *SettlementManager) sweepHandler() {
	defer utils.MyRecover()
	defer m.wg.Done()
	ticker := time.NewTicker(m.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if m.sweepingFlag.Load().(bool) {
				log.Debugf("Previous settlement sweep still running, skipping")
				continue
			}
			m.sweepingFlag.Store(true)
			m.SweepOnce(context.Background())
			m.sweepingFlag.Store(false)

		case <-m.quit:
			return
		}
	}
}

// SweepOnce retries every order currently in the settlement backlog:
// transfers that failed outright, and transfers left pending for longer
// than one sweep interval, which happens when the process dies between
// the status write and the dispatch.
func (m *SettlementManager) SweepOnce(ctx context.Context) {
	pendingBefore := time.Now().Add(-m.sweepInterval)
	backlog, err := m.orderService.GetSettlementBacklog(ctx, m.db, pendingBefore, sweepBatchSize)
	if err != nil {
		log.Errorf("Unable to load settlement backlog: %v", err)
		return
	}
	if len(backlog) == 0 {
		return
	}
	log.Infof("Retrying %v unsettled transfers", len(backlog))

	for _, order := range backlog {
		status := model.OrderStatus(order.Status)
		if !status.IsTerminal() {
			log.Warnf("Order %v is in settlement backlog but status %v is not terminal, skipping", order.ID, status)
			continue
		}
		if warning := m.dispatchTransfer(ctx, order, status); warning != "" {
			log.Debugf("Retry for order %v did not settle: %v", order.ID, warning)
		}

		select {
		case <-m.quit:
			return
		default:
		}
	}
}

func transferIdempotencyKey(orderID uint64, target model.OrderStatus) string {
	return fmt.Sprintf("order-%d-%s", orderID, target)
}

func (m *SettlementManager) Start() {
	m.wg.Add(1)
	go m.sweepHandler()
}

func (m *SettlementManager) Stop() error {
	if atomic.AddInt32(&m.shutdown, 1) != 1 {
		log.Infof("Settlement manager is already in the process of shutting down")
		return nil
	}
	log.Warnf("Settlement manager shutting down...")
	close(m.quit)
	m.wg.Wait()
	log.Infof("Settlement manager shutdown complete")
	return nil
}

// IsNotFound reports whether err means the order does not exist, for
// callers mapping errors to response codes.
func IsNotFound(err error) bool {
	return errors.Is(err, errcode.ErrOrderNotFound)
}
