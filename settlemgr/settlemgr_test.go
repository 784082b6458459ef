package settlemgr

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/plutus-market/plutus-server/dal/do"
	"github.com/plutus-market/plutus-server/errcode"
	"github.com/plutus-market/plutus-server/model"
	"github.com/plutus-market/plutus-server/service"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// fakeOrderService is an in-memory stand-in for the gorm-backed order
// service with the same conditional-update semantics.
type fakeOrderService struct {
	service.OrderService

	mtx    sync.Mutex
	orders map[uint64]*do.OrderInfo
}

func newFakeOrderService(orders ...*do.OrderInfo) *fakeOrderService {
	m := make(map[uint64]*do.OrderInfo)
	for _, o := range orders {
		m[o.ID] = o
	}
	return &fakeOrderService{orders: m}
}

func (f *fakeOrderService) GetOrderByID(ctx context.Context, tx *gorm.DB, id uint64) (*do.OrderInfo, error) {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	info, ok := f.orders[id]
	if !ok {
		return nil, errcode.ErrOrderNotFound
	}
	cp := *info
	return &cp, nil
}

func (f *fakeOrderService) TransitionStatus(ctx context.Context, tx *gorm.DB, id uint64, expected model.OrderStatus, target model.OrderStatus, settlementState model.SettlementState) (bool, error) {
	if !model.ValidTransitionTarget(target) {
		return false, errcode.ErrInvalidTransition
	}
	f.mtx.Lock()
	defer f.mtx.Unlock()
	info, ok := f.orders[id]
	if !ok || info.Status != string(expected) {
		return false, nil
	}
	info.Status = string(target)
	info.SettlementState = string(settlementState)
	return true, nil
}

func (f *fakeOrderService) MarkSettlement(ctx context.Context, tx *gorm.DB, id uint64, state model.SettlementState, settlementHash string) error {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	info, ok := f.orders[id]
	if !ok {
		return errcode.ErrOrderNotFound
	}
	info.SettlementState = string(state)
	info.SettlementHash = settlementHash
	return nil
}

func (f *fakeOrderService) GetSettlementBacklog(ctx context.Context, tx *gorm.DB, pendingBefore time.Time, limit int) ([]*do.OrderInfo, error) {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	res := make([]*do.OrderInfo, 0)
	for _, info := range f.orders {
		failed := info.SettlementState == string(model.SettlementFailed)
		stalePending := info.SettlementState == string(model.SettlementPending) &&
			info.UpdatedAt.Before(pendingBefore)
		if failed || stalePending {
			cp := *info
			res = append(res, &cp)
		}
	}
	return res, nil
}

type fakeGateway struct {
	mtx   sync.Mutex
	fail  bool
	calls []string
}

func (g *fakeGateway) Transfer(ctx context.Context, owner string, to string, amount decimal.Decimal, idempotencyKey string) (string, error) {
	g.mtx.Lock()
	defer g.mtx.Unlock()
	g.calls = append(g.calls, idempotencyKey)
	if g.fail {
		return "", errcode.ErrTransferFailed
	}
	return fmt.Sprintf("0xsettled%d", len(g.calls)), nil
}

func (g *fakeGateway) callCount() int {
	g.mtx.Lock()
	defer g.mtx.Unlock()
	return len(g.calls)
}

type fakeOracle struct {
	mtx       sync.Mutex
	fail      bool
	shipped   []uint64
	delivered []uint64
}

func (o *fakeOracle) NotifyShipped(ctx context.Context, orderID uint64) error {
	o.mtx.Lock()
	defer o.mtx.Unlock()
	if o.fail {
		return errcode.ErrCorroborationFailed
	}
	o.shipped = append(o.shipped, orderID)
	return nil
}

func (o *fakeOracle) NotifyDelivered(ctx context.Context, orderID uint64) error {
	o.mtx.Lock()
	defer o.mtx.Unlock()
	if o.fail {
		return errcode.ErrCorroborationFailed
	}
	o.delivered = append(o.delivered, orderID)
	return nil
}

type recordingSink struct {
	mtx    sync.Mutex
	events []*model.SettlementEvent
}

func (s *recordingSink) Notify(event *model.SettlementEvent) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.events = append(s.events, event)
}

func (s *recordingSink) types() []model.SettlementEventType {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	res := make([]model.SettlementEventType, 0, len(s.events))
	for _, e := range s.events {
		res = append(res, e.Type)
	}
	return res
}

func testOrder(id uint64, status model.OrderStatus) *do.OrderInfo {
	return &do.OrderInfo{
		ID:              id,
		Buyer:           "alice@example.com",
		ProductID:       "p-1",
		MerchantAddress: "0x52908400098527886E0F7030069857D2E4169EE7",
		BuyerAddress:    "0x8617E340B3D01FA5F11F306F4090FD50E238070D",
		Amount:          "0.05",
		Status:          string(status),
		SettlementState: string(model.SettlementNone),
		PaymentTxHash:   "0x4e3a3754410177e6937ef1f84bba68ea139e8d1a2258c5f85db9f1cd715a1bdd",
	}
}

func TestRequestTransition_Processing(t *testing.T) {
	orders := newFakeOrderService(testOrder(1, model.OrderPending))
	gateway := &fakeGateway{}
	oracle := &fakeOracle{}
	m := NewSettlementManager(nil, orders, gateway, oracle, nil, time.Minute)

	updated, warning, err := m.RequestTransition(context.Background(), 1, model.OrderProcessing)
	if err != nil {
		t.Fatal(err)
	}
	if warning != "" {
		t.Errorf("unexpected warning %q", warning)
	}
	if updated.Status != "PROCESSING" {
		t.Errorf("unexpected status %v", updated.Status)
	}
	if gateway.callCount() != 0 {
		t.Error("no transfer expected for PROCESSING")
	}
	if len(oracle.shipped) != 1 || oracle.shipped[0] != 1 {
		t.Errorf("expected shipped corroboration, got %v", oracle.shipped)
	}
}

func TestRequestTransition_CompletedPaysMerchant(t *testing.T) {
	orders := newFakeOrderService(testOrder(1, model.OrderProcessing))
	gateway := &fakeGateway{}
	oracle := &fakeOracle{}
	sink := &recordingSink{}
	m := NewSettlementManager(nil, orders, gateway, oracle, sink, time.Minute)

	updated, warning, err := m.RequestTransition(context.Background(), 1, model.OrderCompleted)
	if err != nil {
		t.Fatal(err)
	}
	if warning != "" {
		t.Errorf("unexpected warning %q", warning)
	}
	if updated.Status != "COMPLETED" {
		t.Errorf("unexpected status %v", updated.Status)
	}
	if updated.SettlementState != string(model.SettlementSettled) {
		t.Errorf("unexpected settlement state %v", updated.SettlementState)
	}
	if updated.SettlementHash == "" {
		t.Error("expected settlement hash")
	}
	if gateway.callCount() != 1 {
		t.Errorf("expected 1 transfer, got %v", gateway.callCount())
	}
	if len(oracle.delivered) != 1 {
		t.Errorf("expected delivered corroboration, got %v", oracle.delivered)
	}

	types := sink.types()
	if len(types) != 2 || types[0] != model.ETStatusChanged || types[1] != model.ETTransferSettled {
		t.Errorf("unexpected event sequence %v", types)
	}
}

func TestRequestTransition_TransferFailureKeepsStatus(t *testing.T) {
	orders := newFakeOrderService(testOrder(1, model.OrderProcessing))
	gateway := &fakeGateway{fail: true}
	sink := &recordingSink{}
	m := NewSettlementManager(nil, orders, gateway, nil, sink, time.Minute)

	updated, warning, err := m.RequestTransition(context.Background(), 1, model.OrderFailed)
	if err != nil {
		t.Fatal(err)
	}
	if warning == "" {
		t.Error("expected transfer warning")
	}
	if updated.Status != "FAILED" {
		t.Errorf("status must stand despite transfer failure, got %v", updated.Status)
	}
	if updated.SettlementState != string(model.SettlementFailed) {
		t.Errorf("unexpected settlement state %v", updated.SettlementState)
	}

	types := sink.types()
	if len(types) != 2 || types[1] != model.ETTransferFailed {
		t.Errorf("unexpected event sequence %v", types)
	}
}

func TestRequestTransition_Rejections(t *testing.T) {
	orders := newFakeOrderService(
		testOrder(1, model.OrderPending),
		testOrder(2, model.OrderCompleted),
	)
	m := NewSettlementManager(nil, orders, &fakeGateway{}, nil, nil, time.Minute)
	ctx := context.Background()

	t.Run("unknown_order", func(t *testing.T) {
		_, _, err := m.RequestTransition(ctx, 99, model.OrderCompleted)
		if !IsNotFound(err) {
			t.Errorf("expected not found, got %v", err)
		}
	})

	t.Run("target_pending", func(t *testing.T) {
		_, _, err := m.RequestTransition(ctx, 1, model.OrderPending)
		if !errors.Is(err, errcode.ErrInvalidTransition) {
			t.Errorf("expected invalid transition, got %v", err)
		}
	})

	t.Run("target_refunded", func(t *testing.T) {
		_, _, err := m.RequestTransition(ctx, 1, model.OrderRefunded)
		if !errors.Is(err, errcode.ErrInvalidTransition) {
			t.Errorf("expected invalid transition, got %v", err)
		}
	})

	t.Run("terminal_source", func(t *testing.T) {
		_, _, err := m.RequestTransition(ctx, 2, model.OrderProcessing)
		if !errors.Is(err, errcode.ErrInvalidTransition) {
			t.Errorf("expected invalid transition, got %v", err)
		}
	})
}

// Two racing transitions from the same source status: exactly one commits,
// and only the winner's transfer is dispatched.
func TestRequestTransition_ConcurrentRequests(t *testing.T) {
	orders := newFakeOrderService(testOrder(1, model.OrderProcessing))
	gateway := &fakeGateway{}
	m := NewSettlementManager(nil, orders, gateway, nil, nil, time.Minute)

	const racers = 8
	var wg sync.WaitGroup
	errs := make([]error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			target := model.OrderCompleted
			if i%2 == 1 {
				target = model.OrderFailed
			}
			_, _, errs[i] = m.RequestTransition(context.Background(), 1, target)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		} else if !errors.Is(err, errcode.ErrInvalidTransition) {
			t.Errorf("unexpected error %v", err)
		}
	}
	if wins != 1 {
		t.Errorf("expected exactly one winner, got %v", wins)
	}
	if gateway.callCount() != 1 {
		t.Errorf("expected exactly one transfer dispatch, got %v", gateway.callCount())
	}
}

func TestSweepOnce_RetriesFailedSettlements(t *testing.T) {
	order := testOrder(1, model.OrderCompleted)
	order.SettlementState = string(model.SettlementFailed)
	orders := newFakeOrderService(order)
	gateway := &fakeGateway{}
	m := NewSettlementManager(nil, orders, gateway, nil, nil, time.Minute)

	m.SweepOnce(context.Background())

	if gateway.callCount() != 1 {
		t.Fatalf("expected 1 retry, got %v", gateway.callCount())
	}
	if gateway.calls[0] != "order-1-COMPLETED" {
		t.Errorf("unexpected idempotency key %v", gateway.calls[0])
	}
	final, err := orders.GetOrderByID(context.Background(), nil, 1)
	if err != nil {
		t.Fatal(err)
	}
	if final.SettlementState != string(model.SettlementSettled) {
		t.Errorf("expected settled after retry, got %v", final.SettlementState)
	}
	if final.Status != "COMPLETED" {
		t.Errorf("sweep must not change status, got %v", final.Status)
	}
}

// An order left at settlement state PENDING by a crash between the status
// write and the transfer call must be picked up by the sweep once it is
// older than the grace period. A fresh PENDING row may still have a
// dispatch in flight and is left alone.
func TestSweepOnce_RetriesStrandedPendingSettlements(t *testing.T) {
	stranded := testOrder(1, model.OrderCompleted)
	stranded.SettlementState = string(model.SettlementPending)
	stranded.UpdatedAt = time.Now().Add(-10 * time.Minute)

	fresh := testOrder(2, model.OrderFailed)
	fresh.SettlementState = string(model.SettlementPending)
	fresh.UpdatedAt = time.Now()

	orders := newFakeOrderService(stranded, fresh)
	gateway := &fakeGateway{}
	m := NewSettlementManager(nil, orders, gateway, nil, nil, time.Minute)

	m.SweepOnce(context.Background())

	if gateway.callCount() != 1 {
		t.Fatalf("expected 1 dispatch, got %v", gateway.callCount())
	}
	if gateway.calls[0] != "order-1-COMPLETED" {
		t.Errorf("unexpected idempotency key %v", gateway.calls[0])
	}
	final, err := orders.GetOrderByID(context.Background(), nil, 1)
	if err != nil {
		t.Fatal(err)
	}
	if final.SettlementState != string(model.SettlementSettled) {
		t.Errorf("expected settled after sweep, got %v", final.SettlementState)
	}
	if final.Status != "COMPLETED" {
		t.Errorf("sweep must not change status, got %v", final.Status)
	}
	untouched, _ := orders.GetOrderByID(context.Background(), nil, 2)
	if untouched.SettlementState != string(model.SettlementPending) {
		t.Errorf("fresh pending order must be left alone, got %v", untouched.SettlementState)
	}
}

func TestSweepOnce_StillFailingStaysInBacklog(t *testing.T) {
	order := testOrder(1, model.OrderFailed)
	order.SettlementState = string(model.SettlementFailed)
	orders := newFakeOrderService(order)
	gateway := &fakeGateway{fail: true}
	m := NewSettlementManager(nil, orders, gateway, nil, nil, time.Minute)

	m.SweepOnce(context.Background())
	m.SweepOnce(context.Background())

	if gateway.callCount() != 2 {
		t.Fatalf("expected retry per sweep, got %v", gateway.callCount())
	}
	// Both attempts carry the same idempotency key.
	if gateway.calls[0] != gateway.calls[1] {
		t.Errorf("retries must reuse the idempotency key: %v vs %v", gateway.calls[0], gateway.calls[1])
	}
	final, _ := orders.GetOrderByID(context.Background(), nil, 1)
	if final.SettlementState != string(model.SettlementFailed) {
		t.Errorf("expected still failed, got %v", final.SettlementState)
	}
}

func TestStartStop(t *testing.T) {
	orders := newFakeOrderService()
	m := NewSettlementManager(nil, orders, &fakeGateway{}, nil, nil, 10*time.Millisecond)
	m.Start()
	time.Sleep(30 * time.Millisecond)
	if err := m.Stop(); err != nil {
		t.Fatal(err)
	}
	// Second stop is a no-op.
	if err := m.Stop(); err != nil {
		t.Fatal(err)
	}
}
