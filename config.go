package main

import (
	"bufio"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/plutus-market/plutus-server/utils"

	flags "github.com/jessevdk/go-flags"
)

const (
	defaultConfigFilename   = "plutus-server.conf"
	defaultLogDirname       = "logs"
	defaultLogFilename      = "plutus-server.log"
	defaultDbType           = "mysql"
	sampleConfigFilename    = "sample-plutus-server.conf"
	defaultLogLevel         = "info"
	defaultListenerPort     = "8686"
	defaultMaxClients       = 10000
	defaultMaxWebsockets    = 250
	defaultDbAddress        = "127.0.0.1:3306"
	defaultDatabaseName     = "plutus_market"
	defaultSweepInterval    = 60
	defaultCatalogCacheSize = 512
	defaultChainCaip2       = "eip155:84532"
	defaultWalletAPIURL     = "https://api.privy.io"
)

var (
	defaultHomeDir      = utils.AppDataDir("plutus-server", false)
	localConfigFile     = defaultConfigFilename
	knownDbTypes        = []string{"mysql"}
	localServerKeyFile  = "server.key"
	localServerCertFile = "server.cert"
	defaultLogDir       = filepath.Join(defaultHomeDir, defaultLogDirname)
)

// config defines the configuration options for the marketplace server.
//
// See loadConfig for details on the configuration load process.
type config struct {
	AppDataDir          *utils.ExplicitString `short:"A" long:"appdata" description:"Application data directory for server config and logs"`
	ConfigFile          string                `short:"C" long:"configfile" description:"Path to configuration file"`
	DbType              string                `long:"dbtype" description:"Database backend to use for the data"`
	DbUsername          string                `long:"dbusername" description:"username which is used to connect with database"`
	DbPassword          string                `long:"dbpassword" description:"password which is used to connect with database"`
	DbAddress           string                `long:"dbaddress" description:"ip address and port of database (default: 127.0.0.1:3306)"`
	DbName              string                `long:"dbname" description:"name of server database (default: plutus_market)"`
	DisableAutoCreateDB bool                  `long:"noautocreatedb" description:"Disable creating database and table automatically"`
	DebugLevel          string                `short:"d" long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems -- Use show to list available subsystems"`
	Listeners           []string              `long:"listen" description:"Add an interface/port to listen for API connections"`
	ListenerPort        string                `long:"listenerport" description:"listenerport is the port that the API server listens on (default: 8686)"`
	LogDir              string                `long:"logdir" description:"Directory to log output."`
	MaxClients          int                   `long:"maxclients" description:"Max number of concurrent API clients"`
	MaxWebsockets       int                   `long:"maxwebsockets" description:"Max number of websocket connections on the event feed"`
	DisableTLS          bool                  `long:"notls" description:"Disable TLS for the API server -- NOTE: This is only allowed if the server is bound to localhost"`
	ServerCert          string                `long:"servercert" description:"File containing the certificate file for clients to connect with the server"`
	ServerKey           string                `long:"serverkey" description:"File containing the certificate key for clients to connect with the server"`
	AdminUser           string                `long:"adminuser" description:"Basic auth username for the settlement event feed. This should be changed in production environment"`
	AdminPass           string                `long:"adminpass" default-mask:"-" description:"Basic auth password for the settlement event feed. This should be changed in production environment"`

	WalletAPIURL     string `long:"walletapiurl" description:"Base URL of the custody provider wallet API"`
	WalletAppID      string `long:"walletappid" description:"Application id for the custody provider wallet API"`
	WalletAppSecret  string `long:"walletappsecret" default-mask:"-" description:"Application secret for the custody provider wallet API"`
	WalletChainCaip2 string `long:"walletchaincaip2" description:"CAIP-2 identifier of the chain used for settlement transfers (default: eip155:84532)"`
	DisableWallet    bool   `long:"nowallet" description:"Do not connect to the custody provider; settlement transfers are deferred to the retry sweep"`

	OracleURL     string `long:"oracleurl" description:"Base URL of the attestation oracle"`
	OracleToken   string `long:"oracletoken" default-mask:"-" description:"Bearer token for the attestation oracle"`
	DisableOracle bool   `long:"nooracle" description:"Do not report committed status changes to the attestation oracle"`

	SweepInterval    int    `long:"sweepinterval" description:"Number of seconds between settlement retry sweeps (default: 60)"`
	CatalogCacheSize int    `long:"catalogcachesize" description:"Number of products held by the in-memory catalog cache (default: 512)"`
	ProfilePort      string `long:"profileport" description:"Enable HTTP profiling on given port -- NOTE port must be between 1024 and 65536"`
	ShowVersion      bool   `short:"V" long:"version" description:"Display version information and exit"`
	WorkingDir       string `long:"workingdir" description:"Working directory"`
}

// newConfigParser returns a new command line flags parser.
func newConfigParser(cfg *config, options flags.Options) *flags.Parser {
	parser := flags.NewParser(cfg, options)
	return parser
}

// createDefaultConfigFile copies the file sample-plutus-server.conf to the
// given destination path, and populates it with some randomly generated
// admin username and password.
func createDefaultConfigFile(destinationPath string) error {
	// Create the destination directory if it does not exists
	err := os.MkdirAll(filepath.Dir(destinationPath), 0700)
	if err != nil {
		return err
	}

	// We assume sample config file path is same as binary
	path, err := filepath.Abs(filepath.Dir(os.Args[0]))
	if err != nil {
		return err
	}
	sampleConfigPath := filepath.Join(path, sampleConfigFilename)

	// We generate a random user and password
	randomBytes := make([]byte, 20)
	_, err = rand.Read(randomBytes)
	if err != nil {
		return err
	}
	generatedAdminUser := base64.StdEncoding.EncodeToString(randomBytes)

	_, err = rand.Read(randomBytes)
	if err != nil {
		return err
	}
	generatedAdminPass := base64.StdEncoding.EncodeToString(randomBytes)

	src, err := os.Open(sampleConfigPath)
	if err != nil {
		return err
	}
	defer src.Close()

	dest, err := os.OpenFile(destinationPath,
		os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer dest.Close()

	// We copy every line from the sample config file to the destination,
	// only replacing the two lines for adminuser and adminpass
	reader := bufio.NewReader(src)
	for err != io.EOF {
		var line string
		line, err = reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return err
		}

		if strings.Contains(line, "adminuser=") {
			line = "adminuser=" + generatedAdminUser + "\n"
		} else if strings.Contains(line, "adminpass=") {
			line = "adminpass=" + generatedAdminPass + "\n"
		}

		if _, err := dest.WriteString(line); err != nil {
			return err
		}
	}

	return nil
}

// cleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
func cleanAndExpandPath(path string) string {
	// Expand initial ~ to OS specific home directory.
	if strings.HasPrefix(path, "~") {
		homeDir := filepath.Dir(defaultHomeDir)
		path = strings.Replace(path, "~", homeDir, 1)
	}

	// NOTE: The os.ExpandEnv doesn't work with Windows-style %VARIABLE%,
	// but the variables can still be expanded via POSIX-style $VARIABLE.
	return filepath.Clean(os.ExpandEnv(path))
}

// supportedSubsystems returns a sorted slice of the supported subsystems for
// logging purposes.
func supportedSubsystems() []string {
	// Convert the subsystemLoggers map keys to a slice.
	subsystems := make([]string, 0, len(subsystemLoggers))
	for subsysID := range subsystemLoggers {
		subsystems = append(subsystems, subsysID)
	}

	// Sort the subsystems for stable display.
	sort.Strings(subsystems)
	return subsystems
}

// filesExists reports whether the named file or directory exists.
func fileExists(name string) bool {
	if _, err := os.Stat(name); err != nil {
		if os.IsNotExist(err) {
			return false
		}
	}
	return true
}

// validLogLevel returns whether or not logLevel is a valid debug log level.
func validLogLevel(logLevel string) bool {
	switch logLevel {
	case "trace":
		fallthrough
	case "debug":
		fallthrough
	case "info":
		fallthrough
	case "warn":
		fallthrough
	case "error":
		fallthrough
	case "critical":
		return true
	}
	return false
}

// validDbType returns whether or not dbType is a supported database type.
func validDbType(dbType string) bool {
	for _, knownType := range knownDbTypes {
		if dbType == knownType {
			return true
		}
	}

	return false
}

// parseAndSetDebugLevels attempts to parse the specified debug level and set
// the levels accordingly.  An appropriate error is returned if anything is
// invalid.
func parseAndSetDebugLevels(debugLevel string) error {
	// When the specified string doesn't have any delimters, treat it as
	// the log level for all subsystems.
	if !strings.Contains(debugLevel, ",") && !strings.Contains(debugLevel, "=") {
		// Validate debug log level.
		if !validLogLevel(debugLevel) {
			str := "The specified debug level [%v] is invalid"
			return fmt.Errorf(str, debugLevel)
		}

		// Change the logging level for all subsystems.
		setLogLevels(debugLevel)

		return nil
	}

	// Split the specified string into subsystem/level pairs while detecting
	// issues and update the log levels accordingly.
	for _, logLevelPair := range strings.Split(debugLevel, ",") {
		if !strings.Contains(logLevelPair, "=") {
			str := "The specified debug level contains an invalid " +
				"subsystem/level pair [%v]"
			return fmt.Errorf(str, logLevelPair)
		}

		// Extract the specified subsystem and log level.
		fields := strings.Split(logLevelPair, "=")
		subsysID, logLevel := fields[0], fields[1]

		// Validate subsystem.
		if _, exists := subsystemLoggers[subsysID]; !exists {
			str := "The specified subsystem [%v] is invalid -- " +
				"supported subsytems %v"
			return fmt.Errorf(str, subsysID, supportedSubsystems())
		}

		// Validate log level.
		if !validLogLevel(logLevel) {
			str := "The specified debug level [%v] is invalid"
			return fmt.Errorf(str, logLevel)
		}

		setLogLevel(subsysID, logLevel)
	}

	return nil
}

// removeDuplicateAddresses returns a new slice with all duplicate entries in
// addrs removed.
func removeDuplicateAddresses(addrs []string) []string {
	result := make([]string, 0, len(addrs))
	seen := map[string]struct{}{}
	for _, val := range addrs {
		if _, ok := seen[val]; !ok {
			result = append(result, val)
			seen[val] = struct{}{}
		}
	}
	return result
}

// normalizeAddress returns addr with the passed default port appended if
// there is not already a port specified.
func normalizeAddress(addr, defaultPort string) string {
	_, _, err := net.SplitHostPort(addr)
	if err != nil {
		return net.JoinHostPort(addr, defaultPort)
	}
	return addr
}

// normalizeAddresses returns a new slice with all the passed addresses
// normalized with the given default port, and all duplicates removed.
func normalizeAddresses(addrs []string, defaultPort string) []string {
	for i, addr := range addrs {
		addrs[i] = normalizeAddress(addr, defaultPort)
	}

	return removeDuplicateAddresses(addrs)
}

// loadConfig initializes and parses the config using a config file and command
// line options.
//
// The configuration proceeds as follows:
//  1. Start with a default config with sane settings
//  2. Pre-parse the command line to check for an alternative config file
//  3. Load configuration file overwriting defaults with any specified options
//  4. Parse CLI options and overwrite/add any specified options
func loadConfig() (*config, []string, error) {
	cfg := config{
		ConfigFile:       localConfigFile,
		AppDataDir:       utils.NewExplicitString(defaultHomeDir),
		DebugLevel:       defaultLogLevel,
		LogDir:           defaultLogDir,
		DbType:           defaultDbType,
		DbAddress:        defaultDbAddress,
		DbName:           defaultDatabaseName,
		MaxClients:       defaultMaxClients,
		MaxWebsockets:    defaultMaxWebsockets,
		ServerKey:        localServerKeyFile,
		ServerCert:       localServerCertFile,
		WalletAPIURL:     defaultWalletAPIURL,
		WalletChainCaip2: defaultChainCaip2,
		SweepInterval:    defaultSweepInterval,
		CatalogCacheSize: defaultCatalogCacheSize,
	}

	// Pre-parse the command line options to see if an alternative config
	// file or the version flag was specified.  Any errors aside from the
	// help message error can be ignored here since they will be caught by
	// the final parse below.
	preCfg := cfg
	preParser := newConfigParser(&preCfg, flags.HelpFlag)
	_, err := preParser.Parse()
	if err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
			fmt.Fprintln(os.Stderr, err)
			return nil, nil, err
		}
	}

	// Show the version and exit if the version flag was specified.
	appName := filepath.Base(os.Args[0])
	appName = strings.TrimSuffix(appName, filepath.Ext(appName))
	usageMessage := fmt.Sprintf("Use %s -h to show usage", appName)
	if preCfg.ShowVersion {
		fmt.Println(appName, "version", version())
		os.Exit(0)
	}

	if preCfg.WorkingDir != "" {
		err := os.Chdir(preCfg.WorkingDir)
		if err != nil {
			return nil, nil, err
		}
	}

	fmt.Printf("Use config file: %v\n", preCfg.ConfigFile)

	// Load additional config from file.
	var configFileError error
	parser := newConfigParser(&cfg, flags.Default)
	if _, err := os.Stat(preCfg.ConfigFile); os.IsNotExist(err) {
		err := createDefaultConfigFile(preCfg.ConfigFile)
		if err != nil {
			return nil, nil, fmt.Errorf("cannot find or create config file %v: %v",
				preCfg.ConfigFile, err)
		}
	}

	err = flags.NewIniParser(parser).ParseFile(preCfg.ConfigFile)
	if err != nil {
		if _, ok := err.(*os.PathError); !ok {
			fmt.Fprintf(os.Stderr, "Error parsing config "+
				"file: %v\n", err)
			fmt.Fprintln(os.Stderr, usageMessage)
			return nil, nil, err
		}
		configFileError = err
	}

	// Parse command line options again to ensure they take precedence.
	remainingArgs, err := parser.Parse()
	if err != nil {
		if e, ok := err.(*flags.Error); !ok || e.Type != flags.ErrHelp {
			fmt.Fprintln(os.Stderr, usageMessage)
		}
		return nil, nil, err
	}

	// Create the home directory if it doesn't already exist.
	funcName := "loadConfig"
	err = os.MkdirAll(defaultHomeDir, 0700)
	if err != nil {
		// Show a nicer error message if it's because a symlink is
		// linked to a directory that does not exist (probably because
		// it's not mounted).
		if e, ok := err.(*os.PathError); ok && os.IsExist(err) {
			if link, lerr := os.Readlink(e.Path); lerr == nil {
				str := "is symlink %s -> %s mounted?"
				err = fmt.Errorf(str, e.Path, link)
			}
		}

		str := "%s: Failed to create home directory: %v"
		err := fmt.Errorf(str, funcName, err)
		fmt.Fprintln(os.Stderr, err)
		return nil, nil, err
	}

	// Expand the log directory
	cfg.LogDir = cleanAndExpandPath(cfg.LogDir)

	// Special show command to list supported subsystems and exit.
	if cfg.DebugLevel == "show" {
		fmt.Println("Supported subsystems", supportedSubsystems())
		os.Exit(0)
	}

	// Initialize log rotation. After log rotation has been initialized, the
	// logger variables may be used.
	initLogRotator(filepath.Join(cfg.LogDir, defaultLogFilename))

	// Parse, validate, and set debug log level(s).
	if err := parseAndSetDebugLevels(cfg.DebugLevel); err != nil {
		err := fmt.Errorf("%s: %v", funcName, err.Error())
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usageMessage)
		return nil, nil, err
	}

	// Show version at startup.
	pltsLog.Infof("Version %s", version())

	// Validate database type.
	if !validDbType(cfg.DbType) {
		str := "%s: The specified database type [%v] is invalid -- " +
			"supported types %v"
		err := fmt.Errorf(str, funcName, cfg.DbType, knownDbTypes)
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usageMessage)
		return nil, nil, err
	}

	if cfg.DbUsername == "" || cfg.DbPassword == "" {
		return nil, nil, errors.New("dbusername and dbpassword should be configured to connect with database")
	}

	if cfg.ListenerPort == "" {
		cfg.ListenerPort = defaultListenerPort
	}
	// Add the default listener if none were specified. The default
	// listener is all addresses on the listen port.
	if len(cfg.Listeners) == 0 {
		cfg.Listeners = []string{
			net.JoinHostPort("", cfg.ListenerPort),
		}
	}

	// Add default port to all listener addresses if needed and remove
	// duplicate addresses.
	cfg.Listeners = normalizeAddresses(cfg.Listeners, cfg.ListenerPort)

	// The server certificate and key are only consulted when TLS is on.
	if !cfg.DisableTLS {
		cfg.ServerCert = cleanAndExpandPath(cfg.ServerCert)
		cfg.ServerKey = cleanAndExpandPath(cfg.ServerKey)
		if !fileExists(cfg.ServerCert) || !fileExists(cfg.ServerKey) {
			return nil, nil, errors.New("cannot find server cert and key, " +
				"provide servercert and serverkey or disable TLS with notls")
		}
	}

	if cfg.AdminUser == "" {
		pltsLog.Warnf("No adminuser configured, the settlement event feed is open")
	}

	// The custody provider credentials are required unless wallet access
	// is disabled outright.
	if !cfg.DisableWallet {
		if cfg.WalletAPIURL == "" {
			return nil, nil, errors.New("walletapiurl should be configured to reach the custody provider")
		}
		if cfg.WalletAppID == "" || cfg.WalletAppSecret == "" {
			return nil, nil, errors.New("walletappid and walletappsecret should be configured to reach the custody provider")
		}
	}

	if !cfg.DisableOracle {
		if cfg.OracleURL == "" {
			return nil, nil, errors.New("oracleurl should be configured to reach the attestation oracle, or disable it with nooracle")
		}
	}

	if cfg.SweepInterval <= 0 {
		return nil, nil, errors.New("sweepinterval should be a positive number of seconds")
	}

	if cfg.CatalogCacheSize <= 0 {
		return nil, nil, errors.New("catalogcachesize should be positive")
	}

	// Validate profile port number
	if cfg.ProfilePort != "" {
		profilePort, err := strconv.Atoi(cfg.ProfilePort)
		if err != nil || profilePort < 1024 || profilePort > 65535 {
			str := "%s: The profile port must be between 1024 and 65535"
			err := fmt.Errorf(str, funcName)
			fmt.Fprintln(os.Stderr, err)
			fmt.Fprintln(os.Stderr, usageMessage)
			return nil, nil, err
		}
	}

	// Warn about missing config file only after all other configuration is
	// done.  This prevents the warning on help messages and invalid
	// options.  Note this should go directly before the return.
	if configFileError != nil {
		pltsLog.Warnf("%v", configFileError)
	}

	return &cfg, remainingArgs, nil
}
