package marketserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/plutus-market/plutus-server/dal/do"
	"github.com/plutus-market/plutus-server/errcode"
	"github.com/plutus-market/plutus-server/marketjson"
	"github.com/plutus-market/plutus-server/model"
	"github.com/plutus-market/plutus-server/service"
	"github.com/plutus-market/plutus-server/settlemgr"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	testMerchant = "0x52908400098527886E0F7030069857D2E4169EE7"
	testBuyer    = "0x8617E340B3D01FA5F11F306F4090FD50E238070D"
	testTxHash   = "0x4e3a3754410177e6937ef1f84bba68ea139e8d1a2258c5f85db9f1cd715a1bdd"
)

// memOrderService keeps orders in memory with the production service's
// validation and conditional-update semantics.
type memOrderService struct {
	service.OrderService

	mtx    sync.Mutex
	nextID uint64
	orders map[uint64]*do.OrderInfo
	byHash map[string]uint64
}

func newMemOrderService() *memOrderService {
	return &memOrderService{
		nextID: 1,
		orders: make(map[uint64]*do.OrderInfo),
		byHash: make(map[string]uint64),
	}
}

func (m *memOrderService) AdmitOrder(ctx context.Context, tx *gorm.DB, submission *model.OrderSubmission) (*do.OrderInfo, error) {
	if _, err := decimal.NewFromString(submission.Amount); err != nil || submission.Buyer == "" {
		return nil, errcode.ErrInvalidInput
	}
	m.mtx.Lock()
	defer m.mtx.Unlock()
	if _, dup := m.byHash[submission.PaymentTxHash]; dup {
		return nil, errcode.ErrDuplicateOrder
	}
	info := &do.OrderInfo{
		ID:              m.nextID,
		Buyer:           submission.Buyer,
		ProductID:       submission.ProductID,
		MerchantAddress: submission.MerchantAddress,
		BuyerAddress:    submission.BuyerAddress,
		Amount:          submission.Amount,
		Status:          string(model.OrderPending),
		SettlementState: string(model.SettlementNone),
		PaymentTxHash:   submission.PaymentTxHash,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
	m.nextID++
	m.orders[info.ID] = info
	m.byHash[info.PaymentTxHash] = info.ID
	return info, nil
}

func (m *memOrderService) GetOrderByID(ctx context.Context, tx *gorm.DB, id uint64) (*do.OrderInfo, error) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	info, ok := m.orders[id]
	if !ok {
		return nil, errcode.ErrOrderNotFound
	}
	cp := *info
	return &cp, nil
}

func (m *memOrderService) GetOrdersByBuyer(ctx context.Context, tx *gorm.DB, buyer string) ([]*do.OrderInfo, error) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	res := make([]*do.OrderInfo, 0)
	for _, info := range m.orders {
		if info.Buyer == buyer {
			cp := *info
			res = append(res, &cp)
		}
	}
	return res, nil
}

func (m *memOrderService) TransitionStatus(ctx context.Context, tx *gorm.DB, id uint64, expected model.OrderStatus, target model.OrderStatus, settlementState model.SettlementState) (bool, error) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	info, ok := m.orders[id]
	if !ok || info.Status != string(expected) {
		return false, nil
	}
	info.Status = string(target)
	info.SettlementState = string(settlementState)
	return true, nil
}

func (m *memOrderService) MarkSettlement(ctx context.Context, tx *gorm.DB, id uint64, state model.SettlementState, settlementHash string) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	if info, ok := m.orders[id]; ok {
		info.SettlementState = string(state)
		info.SettlementHash = settlementHash
	}
	return nil
}

func (m *memOrderService) GetSettlementBacklog(ctx context.Context, tx *gorm.DB, pendingBefore time.Time, limit int) ([]*do.OrderInfo, error) {
	return nil, nil
}

type memProductService struct {
	service.ProductService

	mtx      sync.Mutex
	products map[string]*do.ProductInfo
}

func newMemProductService(products ...*do.ProductInfo) *memProductService {
	m := make(map[string]*do.ProductInfo)
	for _, p := range products {
		m[p.ID] = p
	}
	return &memProductService{products: m}
}

func (m *memProductService) GetProductByID(ctx context.Context, tx *gorm.DB, id string) (*do.ProductInfo, error) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	info, ok := m.products[id]
	if !ok {
		return nil, errcode.ErrProductNotFound
	}
	return info, nil
}

func (m *memProductService) GetAllProducts(ctx context.Context, tx *gorm.DB) ([]*do.ProductInfo, error) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	res := make([]*do.ProductInfo, 0, len(m.products))
	for _, info := range m.products {
		res = append(res, info)
	}
	return res, nil
}

func (m *memProductService) CreateProduct(ctx context.Context, tx *gorm.DB, name string, description string, price string, merchantAddress string) (*do.ProductInfo, error) {
	if name == "" {
		return nil, errcode.ErrInvalidInput
	}
	m.mtx.Lock()
	defer m.mtx.Unlock()
	info := &do.ProductInfo{
		ID:              fmt.Sprintf("p-%d", len(m.products)+1),
		Name:            name,
		Description:     description,
		Price:           price,
		MerchantAddress: merchantAddress,
	}
	m.products[info.ID] = info
	return info, nil
}

func (m *memProductService) UpdateProduct(ctx context.Context, tx *gorm.DB, id string, merchantAddress string, updates map[string]interface{}) (*do.ProductInfo, error) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	info, ok := m.products[id]
	if !ok {
		return nil, errcode.ErrProductNotFound
	}
	if info.MerchantAddress != merchantAddress {
		return nil, errcode.ErrNotOwner
	}
	if name, ok := updates["name"].(string); ok {
		info.Name = name
	}
	if price, ok := updates["price"].(string); ok {
		info.Price = price
	}
	return info, nil
}

type memSavedWalletService struct {
	service.SavedWalletService

	mtx     sync.Mutex
	wallets map[string]*do.SavedWalletInfo
}

func newMemSavedWalletService() *memSavedWalletService {
	return &memSavedWalletService{wallets: make(map[string]*do.SavedWalletInfo)}
}

func (m *memSavedWalletService) SaveWallet(ctx context.Context, tx *gorm.DB, owner string, address string, nickname string) (*do.SavedWalletInfo, error) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	key := owner + "/" + address
	if _, dup := m.wallets[key]; dup {
		return nil, errcode.ErrDuplicateWallet
	}
	info := &do.SavedWalletInfo{Owner: owner, Address: address, Nickname: nickname}
	m.wallets[key] = info
	return info, nil
}

type testGateway struct {
	mtx   sync.Mutex
	calls int
}

func (g *testGateway) Transfer(ctx context.Context, owner string, to string, amount decimal.Decimal, idempotencyKey string) (string, error) {
	g.mtx.Lock()
	defer g.mtx.Unlock()
	g.calls++
	return "0xsettled", nil
}

func newTestServer(orders *memOrderService, gateway settlemgr.TransferGateway) *MarketServer {
	svr := &MarketServer{
		orderService:       orders,
		productService:     newMemProductService(&do.ProductInfo{ID: "p-1", Name: "widget", Price: "0.05", MerchantAddress: testMerchant}),
		savedWalletService: newMemSavedWalletService(),
		eventHub:           NewEventHub(0),
		quit:               make(chan int),
	}
	svr.settlementManager = settlemgr.NewSettlementManager(nil, orders, gateway, nil, svr.eventHub, time.Minute)
	return svr
}

func postJSON(t *testing.T, handler http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func createOrderCmd() *marketjson.CreateOrderCmd {
	return &marketjson.CreateOrderCmd{
		Buyer:           "alice@example.com",
		ProductID:       "p-1",
		MerchantAddress: testMerchant,
		BuyerAddress:    testBuyer,
		Amount:          "0.05",
		PaymentTxHash:   testTxHash,
	}
}

func TestHandleOrders(t *testing.T) {
	svr := newTestServer(newMemOrderService(), &testGateway{})
	handler := svr.Handler()

	t.Run("create", func(t *testing.T) {
		w := postJSON(t, handler, "/api/orders", createOrderCmd())
		if w.Code != http.StatusCreated {
			t.Fatalf("unexpected status %v: %v", w.Code, w.Body.String())
		}
		var res marketjson.OrderResult
		if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
			t.Fatal(err)
		}
		if res.Status != "PENDING" || res.ID == 0 {
			t.Errorf("unexpected order %+v", res)
		}
	})

	t.Run("duplicate_payment_hash", func(t *testing.T) {
		w := postJSON(t, handler, "/api/orders", createOrderCmd())
		if w.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %v", w.Code)
		}
	})

	t.Run("invalid_amount", func(t *testing.T) {
		cmd := createOrderCmd()
		cmd.Amount = "abc"
		cmd.PaymentTxHash = strings.Replace(testTxHash, "4e3a", "aaaa", 1)
		w := postJSON(t, handler, "/api/orders", cmd)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %v", w.Code)
		}
	})

	t.Run("get_method_rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusMethodNotAllowed {
			t.Fatalf("expected 405, got %v", w.Code)
		}
	})
}

func TestHandleUpdateOrderStatus(t *testing.T) {
	orders := newMemOrderService()
	gateway := &testGateway{}
	svr := newTestServer(orders, gateway)
	handler := svr.Handler()

	w := postJSON(t, handler, "/api/orders", createOrderCmd())
	if w.Code != http.StatusCreated {
		t.Fatalf("setup failed: %v", w.Body.String())
	}

	putStatus := func(id string, status string) *httptest.ResponseRecorder {
		payload, _ := json.Marshal(&marketjson.UpdateOrderStatusCmd{Status: status})
		req := httptest.NewRequest(http.MethodPut, "/api/orders/"+id+"/status", bytes.NewReader(payload))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	t.Run("to_processing", func(t *testing.T) {
		rec := putStatus("1", "PROCESSING")
		if rec.Code != http.StatusOK {
			t.Fatalf("unexpected status %v: %v", rec.Code, rec.Body.String())
		}
		var res marketjson.UpdateOrderStatusResult
		if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
			t.Fatal(err)
		}
		if res.Order.Status != "PROCESSING" || res.TransferWarning != "" {
			t.Errorf("unexpected result %+v", res)
		}
	})

	t.Run("to_completed_dispatches_transfer", func(t *testing.T) {
		rec := putStatus("1", "COMPLETED")
		if rec.Code != http.StatusOK {
			t.Fatalf("unexpected status %v: %v", rec.Code, rec.Body.String())
		}
		var res marketjson.UpdateOrderStatusResult
		if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
			t.Fatal(err)
		}
		if res.Order.SettlementState != "SETTLED" || res.Order.SettlementHash != "0xsettled" {
			t.Errorf("unexpected result %+v", res.Order)
		}
		if gateway.calls != 1 {
			t.Errorf("expected 1 transfer, got %v", gateway.calls)
		}
	})

	t.Run("terminal_rejected", func(t *testing.T) {
		rec := putStatus("1", "PROCESSING")
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %v", rec.Code)
		}
	})

	t.Run("unknown_order", func(t *testing.T) {
		rec := putStatus("99", "PROCESSING")
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %v", rec.Code)
		}
	})

	t.Run("bogus_status", func(t *testing.T) {
		rec := putStatus("1", "SHIPPED")
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %v", rec.Code)
		}
	})
}

func TestHandleOrdersByBuyer(t *testing.T) {
	svr := newTestServer(newMemOrderService(), &testGateway{})
	handler := svr.Handler()
	postJSON(t, handler, "/api/orders", createOrderCmd())

	req := httptest.NewRequest(http.MethodGet, "/api/orders/user/alice@example.com", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status %v", w.Code)
	}
	var res []*marketjson.OrderResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if len(res) != 1 || res[0].Buyer != "alice@example.com" {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestHandleProducts(t *testing.T) {
	svr := newTestServer(newMemOrderService(), &testGateway{})
	handler := svr.Handler()

	t.Run("list", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("unexpected status %v", w.Code)
		}
		var res []*marketjson.ProductResult
		if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
			t.Fatal(err)
		}
		if len(res) != 1 || res[0].Name != "widget" {
			t.Errorf("unexpected products %+v", res)
		}
	})

	t.Run("create", func(t *testing.T) {
		w := postJSON(t, handler, "/api/products", &marketjson.CreateProductCmd{
			Name:            "gadget",
			Price:           "1.5",
			MerchantAddress: testMerchant,
		})
		if w.Code != http.StatusCreated {
			t.Fatalf("unexpected status %v: %v", w.Code, w.Body.String())
		}
	})

	t.Run("update_not_owner", func(t *testing.T) {
		name := "stolen"
		payload, _ := json.Marshal(&marketjson.UpdateProductCmd{
			MerchantAddress: testBuyer,
			Updates:         marketjson.ProductUpdates{Name: &name},
		})
		req := httptest.NewRequest(http.MethodPut, "/api/products/p-1", bytes.NewReader(payload))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %v", w.Code)
		}
	})

	t.Run("get_unknown", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/products/nope", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %v", w.Code)
		}
	})
}

func TestHandleSavedWallets(t *testing.T) {
	svr := newTestServer(newMemOrderService(), &testGateway{})
	handler := svr.Handler()

	cmd := &marketjson.SaveWalletCmd{Owner: "alice@example.com", Address: testBuyer, Nickname: "mine"}

	w := postJSON(t, handler, "/api/saved-wallets", cmd)
	if w.Code != http.StatusCreated {
		t.Fatalf("unexpected status %v: %v", w.Code, w.Body.String())
	}

	w = postJSON(t, handler, "/api/saved-wallets", cmd)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 on duplicate, got %v", w.Code)
	}
}

func TestHandleVersion(t *testing.T) {
	svr := newTestServer(newMemOrderService(), &testGateway{})
	req := httptest.NewRequest(http.MethodGet, "/api/version", nil)
	w := httptest.NewRecorder()
	svr.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status %v", w.Code)
	}
	var res marketjson.VersionResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.VersionString == "" {
		t.Error("expected version string")
	}
}

func TestEventsAuth(t *testing.T) {
	svr := NewMarketServer(&Config{AdminUser: "admin", AdminPass: "secret"}, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	w := httptest.NewRecorder()
	svr.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credentials, got %v", w.Code)
	}
}

func TestEventHubNotify(t *testing.T) {
	hub := NewEventHub(0)
	// No clients: must not block or panic.
	hub.Notify(&model.SettlementEvent{Type: model.ETStatusChanged, OrderID: 1, Status: model.OrderProcessing, Time: time.Now()})
	if hub.NumClients() != 0 {
		t.Errorf("unexpected client count %v", hub.NumClients())
	}
	hub.Close()
	hub.Notify(&model.SettlementEvent{Type: model.ETStatusChanged, OrderID: 2, Status: model.OrderCompleted, Time: time.Now()})
}
