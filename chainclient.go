package main

import (
	"sync"

	"github.com/plutus-market/plutus-server/chainclient"
)

// oracleClient is a container for the attestation oracle client.
type oracleClient struct {
	cfg       *config
	oracle    *chainclient.Oracle
	handlerMu sync.Mutex
}

func (oc *oracleClient) setOracle(o *chainclient.Oracle) {
	oc.handlerMu.Lock()
	oc.oracle = o
	oc.handlerMu.Unlock()
}

func (oc *oracleClient) Stop() {
	if oc.oracle != nil {
		pltsLog.Info("Attestation oracle client shutdown complete")
	}
}

func createOracleClient(cfg *config) (*oracleClient, error) {
	newClient := oracleClient{
		cfg: cfg,
	}
	return &newClient, nil
}
