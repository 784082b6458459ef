package main

import (
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"runtime"
	"runtime/debug"

	"github.com/plutus-market/plutus-server/dal"
)

var (
	cfg *config
)

func startProfileServer() {
	listenAddr := net.JoinHostPort("localhost", cfg.ProfilePort)
	pltsLog.Infof("Profile server listening on %s", listenAddr)
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	pltsLog.Errorf("%v", http.ListenAndServe(listenAddr, mux))
}

func serverMain() error {

	// Load configuration and parse command line. This function also
	// initializes logging and configures it accordingly.
	tcfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	cfg = tcfg

	defer func() {
		if logRotator != nil {
			logRotator.Close()
		}
	}()

	defer pltsLog.Info("Shutdown complete")

	// Enable http profiling server if requested.
	if cfg.ProfilePort != "" {
		go func() {
			startProfileServer()
		}()
	}

	// initiate database
	err = dal.InitDB(&dal.DBConfig{
		Username:     cfg.DbUsername,
		Password:     cfg.DbPassword,
		Address:      cfg.DbAddress,
		DatabaseName: cfg.DbName,
	}, !cfg.DisableAutoCreateDB)
	if err != nil {
		return err
	}

	// create a container for the attestation oracle client
	var oracleCli *oracleClient
	if !cfg.DisableOracle {
		oracleCli, err = createOracleClient(cfg)
		if err != nil {
			pltsLog.Errorf("Unable to create attestation oracle client: %v", err)
			return err
		}
	}

	var custodyCli *custodyClient
	if !cfg.DisableWallet {
		custodyCli, err = createCustodyClient(cfg)
		if err != nil {
			pltsLog.Errorf("Unable to create custody provider client: %v", err)
			return err
		}
	}

	// create and start server, including market server and settlement
	// manager
	svr, err := newServer(oracleCli, custodyCli)
	if err != nil {
		return err
	}

	svr.Start()

	if oracleCli != nil {
		addInterruptHandler(func() {
			oracleCli.Stop()
		})
	}
	if custodyCli != nil {
		addInterruptHandler(func() {
			custodyCli.Stop()
		})
	}
	if svr != nil {
		addInterruptHandler(func() {
			svr.Stop()
		})
	}

	// Wait until the interrupt signal is received from an OS signal or
	// shutdown is requested through one of the subsystems.
	<-interruptHandlersDone
	return nil
}

func main() {
	// Use all processor cores.
	runtime.GOMAXPROCS(runtime.NumCPU())

	// Request processing can cause bursty allocations.  This limits the
	// garbage collector from excessively overallocating during bursts.
	debug.SetGCPercent(10)

	if err := serverMain(); err != nil {
		fmt.Println(err.Error())
		os.Exit(1)
	}
}
