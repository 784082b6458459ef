// Package marketserver exposes the marketplace REST API and the
// operator-facing settlement event feed.
package marketserver

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/plutus-market/plutus-server/catalog"
	"github.com/plutus-market/plutus-server/marketjson"
	"github.com/plutus-market/plutus-server/service"
	"github.com/plutus-market/plutus-server/settlemgr"
	"github.com/plutus-market/plutus-server/walletclient"

	"gorm.io/gorm"
)

const (
	// readTimeoutSeconds bounds how long a connection may take to deliver
	// its request before it is closed.
	readTimeoutSeconds = 10
)

// Config is a descriptor containing the market server configuration.
type Config struct {
	// Listeners defines a slice of listeners for which the server takes
	// ownership and accepts connections. They are closed when the server
	// is stopped.
	Listeners  []net.Listener
	DisableTLS bool

	// AdminUser/AdminPass protect the event feed. Empty AdminUser leaves
	// the feed open, for development setups.
	AdminUser string
	AdminPass string

	MaxClients    int
	MaxWebsockets int

	StartupTime int64
}

// MarketServer serves the REST API. Collaborators are injected so handler
// tests can run against fakes.
type MarketServer struct {
	started  int32
	shutdown int32
	cfg      Config
	authsha  [sha256.Size]byte

	db                 *gorm.DB
	orderService       service.OrderService
	productService     service.ProductService
	userService        service.UserService
	savedWalletService service.SavedWalletService

	settlementManager *settlemgr.SettlementManager
	walletClient      *walletclient.Client
	catalog           *catalog.Catalog
	eventHub          *EventHub

	numClients int32
	wg         sync.WaitGroup
	quit       chan int
}

func NewMarketServer(cfg *Config, db *gorm.DB) *MarketServer {
	svr := &MarketServer{
		cfg:                *cfg,
		db:                 db,
		orderService:       service.GetOrderService(),
		productService:     service.GetProductService(),
		userService:        service.GetUserService(),
		savedWalletService: service.GetSavedWalletService(),
		eventHub:           NewEventHub(cfg.MaxWebsockets),
		quit:               make(chan int),
	}
	if cfg.AdminUser != "" {
		auth := "Basic " + base64.StdEncoding.EncodeToString([]byte(cfg.AdminUser+":"+cfg.AdminPass))
		svr.authsha = sha256.Sum256([]byte(auth))
	}
	return svr
}

func (svr *MarketServer) SetSettlementManager(mgr *settlemgr.SettlementManager) {
	svr.settlementManager = mgr
}

func (svr *MarketServer) SetWalletClient(cli *walletclient.Client) {
	svr.walletClient = cli
}

func (svr *MarketServer) SetCatalog(c *catalog.Catalog) {
	svr.catalog = c
}

// EventHub returns the settlement event sink served at /api/events.
func (svr *MarketServer) EventHub() *EventHub {
	return svr.eventHub
}

// Handler builds the route table. Exposed so tests can drive the server
// through httptest without listeners.
func (svr *MarketServer) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/orders", svr.handleOrders)
	mux.HandleFunc("/api/orders/", svr.handleOrdersPath)
	mux.HandleFunc("/api/products", svr.handleProducts)
	mux.HandleFunc("/api/products/", svr.handleProductsPath)
	mux.HandleFunc("/api/saved-wallets", svr.handleSavedWallets)
	mux.HandleFunc("/api/saved-wallets/", svr.handleSavedWalletsPath)
	mux.HandleFunc("/api/add-user", svr.handleAddUser)
	mux.HandleFunc("/api/create-wallet", svr.handleCreateWallet)
	mux.HandleFunc("/api/fetch-wallet/", svr.handleFetchWallet)
	mux.HandleFunc("/api/send-transaction", svr.handleSendTransaction)
	mux.HandleFunc("/api/sign-message", svr.handleSignMessage)
	mux.HandleFunc("/api/version", svr.handleVersion)
	mux.HandleFunc("/api/events", svr.handleEvents)

	return mux
}

func (svr *MarketServer) Start() {
	if atomic.AddInt32(&svr.started, 1) != 1 {
		return
	}

	log.Trace("Starting market server...")
	httpServer := &http.Server{
		Handler:     svr.limitMiddleware(svr.Handler()),
		ReadTimeout: time.Second * readTimeoutSeconds,
	}

	for _, listener := range svr.cfg.Listeners {
		svr.wg.Add(1)
		go func(listener net.Listener) {
			tlsState := "on"
			if svr.cfg.DisableTLS {
				tlsState = "off"
			}
			log.Infof("Market server listening on %s (TLS %s)", listener.Addr(), tlsState)
			httpServer.Serve(listener)
			log.Tracef("Market server listener done for %s", listener.Addr())
			svr.wg.Done()
		}(listener)
	}
}

func (svr *MarketServer) Stop() error {
	if atomic.AddInt32(&svr.shutdown, 1) != 1 {
		log.Infof("Market server is already in the process of shutting down")
		return nil
	}
	log.Warnf("Market server shutting down...")
	for _, listener := range svr.cfg.Listeners {
		if err := listener.Close(); err != nil {
			log.Errorf("Problem shutting down market server: %v", err)
			return err
		}
	}
	svr.eventHub.Close()
	close(svr.quit)
	svr.wg.Wait()
	log.Infof("Market server shutdown complete")
	return nil
}

func (svr *MarketServer) limitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if svr.limitConnections(w, r.RemoteAddr) {
			return
		}
		svr.incrementClients()
		defer svr.decrementClients()
		next.ServeHTTP(w, r)
	})
}

// limitConnections responds with a 503 service unavailable and returns
// true if adding another client would exceed the maximum allowed
// connections.
func (svr *MarketServer) limitConnections(w http.ResponseWriter, remoteAddr string) bool {
	if svr.cfg.MaxClients <= 0 {
		return false
	}
	if int(atomic.LoadInt32(&svr.numClients)+1) > svr.cfg.MaxClients {
		log.Infof("Max clients exceeded [%d] - disconnecting client %s", svr.cfg.MaxClients, remoteAddr)
		http.Error(w, "503 Too busy. Try again later.", http.StatusServiceUnavailable)
		return true
	}
	return false
}

func (svr *MarketServer) incrementClients() {
	atomic.AddInt32(&svr.numClients, 1)
}

func (svr *MarketServer) decrementClients() {
	atomic.AddInt32(&svr.numClients, -1)
}

// checkAuth checks the HTTP Basic authentication against the configured
// admin credentials. The comparison is time-constant. Always succeeds when
// no admin user is configured.
func (svr *MarketServer) checkAuth(r *http.Request) bool {
	if svr.cfg.AdminUser == "" {
		return true
	}
	authhdr := r.Header["Authorization"]
	if len(authhdr) == 0 {
		log.Warnf("Auth failure from %s", r.RemoteAddr)
		return false
	}
	authsha := sha256.Sum256([]byte(authhdr[0]))
	return subtle.ConstantTimeCompare(authsha[:], svr.authsha[:]) == 1
}

func authFail(w http.ResponseWriter) {
	w.Header().Add("WWW-Authenticate", `Basic realm="plutus market"`)
	http.Error(w, "401 Unauthorized.", http.StatusUnauthorized)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Errorf("Unable to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, apiErr *marketjson.APIError) {
	writeJSON(w, status, apiErr)
}

func methodNotAllowed(w http.ResponseWriter) {
	http.Error(w, "405 Method Not Allowed.", http.StatusMethodNotAllowed)
}
