package main

import (
	"sync"

	"github.com/plutus-market/plutus-server/walletclient"
)

// custodyClient is a container for the custody provider client so the rest
// of the wiring can be built before the client is ready.
type custodyClient struct {
	cfg          *config
	walletClient *walletclient.Client
	handlerMu    sync.Mutex
}

func (cc *custodyClient) setWalletClient(cli *walletclient.Client) {
	cc.handlerMu.Lock()
	defer cc.handlerMu.Unlock()

	cc.walletClient = cli
}

func (cc *custodyClient) Stop() {
	if cc.walletClient != nil {
		pltsLog.Info("Custody provider client shutdown complete")
	}
}

func createCustodyClient(cfg *config) (*custodyClient, error) {
	newClient := custodyClient{
		cfg: cfg,
	}
	return &newClient, nil
}
