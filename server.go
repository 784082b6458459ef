package main

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"time"

	"github.com/plutus-market/plutus-server/catalog"
	"github.com/plutus-market/plutus-server/chainclient"
	"github.com/plutus-market/plutus-server/dal"
	"github.com/plutus-market/plutus-server/marketserver"
	"github.com/plutus-market/plutus-server/service"
	"github.com/plutus-market/plutus-server/settlemgr"
	"github.com/plutus-market/plutus-server/walletclient"
)

type server struct {
	marketServer      *marketserver.MarketServer
	settlementManager *settlemgr.SettlementManager
	catalog           *catalog.Catalog
}

// setupListeners returns a slice of listeners that are configured for use
// with the market server. If TLS is enabled, the listeners serve the
// configured certificate.
func setupListeners(listenersString []string, serverKey string, serverCert string,
	disableTLS bool) ([]net.Listener, error) {
	listenFunc := net.Listen
	// Check the TLS cert and key file
	if !disableTLS {
		if !fileExists(serverKey) && !fileExists(serverCert) {
			return nil, errors.New("cannot find server cert and key")
		}

		keypair, err := tls.LoadX509KeyPair(serverCert, serverKey)
		if err != nil {
			return nil, err
		}

		tlsConfig := tls.Config{
			Certificates: []tls.Certificate{keypair},
			MinVersion:   tls.VersionTLS12,
		}

		// Change the standard net.Listen function to the tls one.
		listenFunc = func(net string, laddr string) (net.Listener, error) {
			return tls.Listen(net, laddr, &tlsConfig)
		}
	}

	listeners := make([]net.Listener, 0, len(listenersString))
	for _, addr := range listenersString {
		listener, err := listenFunc("tcp", addr)
		if err != nil {
			pltsLog.Warnf("Can't listen on %s: %v", addr, err)
			continue
		}
		listeners = append(listeners, listener)
	}

	return listeners, nil
}

// resolveCustodialWallet maps an owner email to the id of their custodial
// wallet, or the empty string when no wallet has been provisioned yet.
func resolveCustodialWallet(ctx context.Context, owner string) (string, error) {
	tx := dal.GetDB(ctx)
	info, err := service.GetUserService().GetUserByEmail(ctx, tx, owner)
	if err != nil {
		return "", err
	}
	if info == nil {
		return "", nil
	}
	return info.CustodialWalletID, nil
}

func newServer(oracleCli *oracleClient, custodyCli *custodyClient) (*server, error) {
	listeners, err := setupListeners(cfg.Listeners, cfg.ServerKey, cfg.ServerCert, cfg.DisableTLS)
	if err != nil {
		return nil, err
	}
	if len(listeners) == 0 {
		return nil, errors.New("market server: no valid listen address")
	}

	marketSvr := marketserver.NewMarketServer(&marketserver.Config{
		Listeners:     listeners,
		DisableTLS:    cfg.DisableTLS,
		AdminUser:     cfg.AdminUser,
		AdminPass:     cfg.AdminPass,
		MaxClients:    cfg.MaxClients,
		MaxWebsockets: cfg.MaxWebsockets,
		StartupTime:   time.Now().Unix(),
	}, dal.GlobalDBClient)

	// Setup custody provider client.
	var walletCli *walletclient.Client
	if custodyCli != nil {
		walletCli, err = walletclient.New(&walletclient.ConnConfig{
			BaseURL:   cfg.WalletAPIURL,
			AppID:     cfg.WalletAppID,
			AppSecret: cfg.WalletAppSecret,
			Caip2:     cfg.WalletChainCaip2,
		}, resolveCustodialWallet)
		if err != nil {
			return nil, err
		}
		custodyCli.setWalletClient(walletCli)
		marketSvr.SetWalletClient(walletCli)
	}

	// Setup attestation oracle client.
	var oracle *chainclient.Oracle
	if oracleCli != nil {
		oracle, err = chainclient.New(&chainclient.ConnConfig{
			BaseURL:   cfg.OracleURL,
			AuthToken: cfg.OracleToken,
		})
		if err != nil {
			return nil, err
		}
		oracleCli.setOracle(oracle)
	}

	// Setup product catalog cache.
	productCatalog, err := catalog.New(dal.GlobalDBClient, service.GetProductService(), cfg.CatalogCacheSize)
	if err != nil {
		return nil, err
	}
	marketSvr.SetCatalog(productCatalog)

	// Setup settlement manager. A nil gateway defers all transfers to the
	// retry sweep, a nil emitter skips corroboration.
	var gateway settlemgr.TransferGateway
	if walletCli != nil {
		gateway = walletCli
	}
	var emitter settlemgr.CorroborationEmitter
	if oracle != nil {
		emitter = oracle
	}
	settlementMgr := settlemgr.NewSettlementManager(dal.GlobalDBClient, service.GetOrderService(),
		gateway, emitter, marketSvr.EventHub(), time.Duration(cfg.SweepInterval)*time.Second)
	marketSvr.SetSettlementManager(settlementMgr)

	ret := &server{
		marketServer:      marketSvr,
		settlementManager: settlementMgr,
		catalog:           productCatalog,
	}
	return ret, nil
}

func (s *server) Start() {
	if s.settlementManager != nil {
		s.settlementManager.Start()
	}
	if s.marketServer != nil {
		s.marketServer.Start()
	}
}

func (s *server) Stop() {
	if s.marketServer != nil {
		s.marketServer.Stop()
	}
	if s.settlementManager != nil {
		s.settlementManager.Stop()
	}
}
