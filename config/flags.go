package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	flags "github.com/jessevdk/go-flags"
)

// Version is the wallet release reported by --version.
const Version = "0.1.0"

// Flags holds parsed global command-line flags.
type Flags struct {
	Version bool `short:"V" long:"version" description:"Show version information"`

	// Core
	Network string `long:"network" description:"Network type (mainnet or testnet)"`
	Testnet bool   `long:"testnet" description:"Use testnet (shorthand for --network=testnet)"`
	DataDir string `long:"datadir" description:"Data directory path"`
	Config  string `short:"C" long:"configfile" description:"Config file path"`

	// Chain backend
	RPCEndpoint string `long:"rpc" description:"Chain backend JSON-RPC URL"`
	RPCTimeout  string `long:"rpc-timeout" description:"Per-request timeout (e.g. 10s)"`
	RPCUser     string `long:"rpc-user" description:"JSON-RPC basic auth user"`
	RPCPassword string `long:"rpc-password" description:"JSON-RPC basic auth password"`

	// Wallet
	Wallet     string `short:"w" long:"wallet" description:"Keystore wallet name"`
	Shielded   bool   `long:"shielded" description:"Enable the Orchard shielded pool"`
	NoShielded bool   `long:"no-shielded" description:"Disable the Orchard shielded pool"`
	Account    uint32 `short:"a" long:"account" description:"Default account number"`
	PassFile   string `long:"password-file" description:"Read the keystore password from a file"`
	DevOrchard bool   `long:"dev-orchard" description:"Show placeholder Orchard addresses (development only, not spendable)"`

	// Wallet JSON-RPC server
	ServerAddr    string `long:"server-addr" description:"Wallet RPC listen address"`
	ServerPort    int    `long:"server-port" description:"Wallet RPC listen port"`
	ServerAllowed string `long:"server-allowed" description:"Allowed IPs/CIDRs for wallet RPC (comma-separated)"`
	ServerCORS    string `long:"server-cors" description:"Allowed CORS origins for wallet RPC (comma-separated)"`

	// Logging
	LogLevel string `long:"log-level" description:"Log level (trace, debug, info, warn, error)"`
	LogFile  string `long:"log-file" description:"Log file path"`
	LogJSON  bool   `long:"log-json" description:"Output logs as JSON"`

	// Remaining args: the command and its arguments.
	Args []string `no-flag:"true"`

	// Explicitly-set flags (for zero-value overrides).
	SetAccount bool `no-flag:"true"`
	SetLogJSON bool `no-flag:"true"`
}

// ParseFlags parses global flags from args. Parsing stops at the first
// non-flag argument, which starts the command.
func ParseFlags(args []string) (*Flags, error) {
	f := &Flags{}
	parser := flags.NewParser(f, flags.HelpFlag|flags.PassDoubleDash|flags.PassAfterNonOption)
	parser.Name = "zwallet"
	parser.Usage = "[flags] [command] [args]"

	rest, err := parser.ParseArgs(args)
	if err != nil {
		return nil, err
	}

	if f.Testnet {
		f.Network = string(Testnet)
	}
	if f.Shielded && f.NoShielded {
		return nil, fmt.Errorf("--shielded and --no-shielded are mutually exclusive")
	}
	f.SetAccount = isFlagSet(parser, "account")
	f.SetLogJSON = isFlagSet(parser, "log-json")
	f.Args = rest
	return f, nil
}

// IsHelp reports whether err is the result of a --help request.
func IsHelp(err error) bool {
	var ferr *flags.Error
	return errors.As(err, &ferr) && ferr.Type == flags.ErrHelp
}

// ApplyFlags applies command-line flags to a Config struct.
func ApplyFlags(cfg *Config, f *Flags) error {
	// Core
	if f.Network != "" {
		cfg.Network = NetworkType(strings.ToLower(f.Network))
	}
	if f.DataDir != "" {
		cfg.DataDir = f.DataDir
	}

	// Chain backend
	if f.RPCEndpoint != "" {
		cfg.RPC.Endpoint = f.RPCEndpoint
	}
	if f.RPCTimeout != "" {
		d, err := parseDuration(f.RPCTimeout)
		if err != nil {
			return fmt.Errorf("--rpc-timeout: %w", err)
		}
		cfg.RPC.Timeout = d
	}
	if f.RPCUser != "" {
		cfg.RPC.User = f.RPCUser
	}
	if f.RPCPassword != "" {
		cfg.RPC.Password = f.RPCPassword
	}

	// Wallet
	if f.Wallet != "" {
		cfg.Wallet.Name = f.Wallet
	}
	if f.Shielded {
		cfg.Wallet.Shielded = true
	}
	if f.NoShielded {
		cfg.Wallet.Shielded = false
	}
	if f.SetAccount {
		cfg.Wallet.Account = f.Account
	}
	if f.PassFile != "" {
		cfg.Wallet.PasswordFile = f.PassFile
	}
	if f.DevOrchard {
		cfg.Wallet.DevOrchard = true
	}

	// Wallet JSON-RPC server
	if f.ServerAddr != "" {
		cfg.Server.Addr = f.ServerAddr
	}
	if f.ServerPort != 0 {
		cfg.Server.Port = f.ServerPort
	}
	if f.ServerAllowed != "" {
		cfg.Server.AllowedIPs = parseStringList(f.ServerAllowed)
	}
	if f.ServerCORS != "" {
		cfg.Server.CORSOrigins = parseStringList(f.ServerCORS)
	}

	// Logging
	if f.LogLevel != "" {
		cfg.Log.Level = f.LogLevel
	}
	if f.LogFile != "" {
		cfg.Log.File = f.LogFile
	}
	if f.SetLogJSON {
		cfg.Log.JSON = f.LogJSON
	}
	return nil
}

// isFlagSet checks if a flag was explicitly set.
func isFlagSet(parser *flags.Parser, long string) bool {
	opt := parser.FindOptionByLongName(long)
	return opt != nil && opt.IsSet()
}

// Load parses args, then resolves defaults, the config file and flags in
// that order of increasing precedence. The returned Flags carry the
// remaining command arguments.
func Load(args []string) (*Config, *Flags, error) {
	f, err := ParseFlags(args)
	if err != nil {
		return nil, nil, err
	}

	// Determine network first (needed for defaults)
	network := Mainnet
	if strings.ToLower(f.Network) == string(Testnet) {
		network = Testnet
	}

	cfg := Default(network)
	if f.DataDir != "" {
		cfg.DataDir = f.DataDir
	}

	// Auto-create data directories and default config on first start.
	if err := EnsureDataDirs(cfg); err != nil {
		return nil, nil, fmt.Errorf("ensuring data dirs: %w", err)
	}

	configPath := f.Config
	if configPath == "" {
		configPath = cfg.ConfigFile()
	}
	fileValues, err := LoadFile(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config file: %w", err)
	}
	if err := ApplyFileConfig(cfg, fileValues); err != nil {
		return nil, nil, fmt.Errorf("applying config file: %w", err)
	}

	// Flags have the highest precedence.
	if err := ApplyFlags(cfg, f); err != nil {
		return nil, nil, err
	}
	if cfg.Network != network && cfg.RPC.Endpoint == Default(network).RPC.Endpoint {
		cfg.RPC.Endpoint = Default(cfg.Network).RPC.Endpoint
	}
	if err := Validate(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	// A file may select a network whose directories do not exist yet.
	if err := EnsureDataDirs(cfg); err != nil {
		return nil, nil, fmt.Errorf("ensuring data dirs: %w", err)
	}
	return cfg, f, nil
}

// EnsureDataDirs creates the data directory structure and a default config
// file if they don't already exist. Safe to call on every startup.
func EnsureDataDirs(cfg *Config) error {
	dirs := []string{
		cfg.DataDir,
		cfg.NetworkDataDir(),
		cfg.KeystoreDir(),
		cfg.WalletDBDir(),
		cfg.LogsDir(),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}

	configPath := cfg.ConfigFile()
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := WriteDefaultConfig(configPath, cfg.Network); err != nil {
			return fmt.Errorf("writing config file: %w", err)
		}
	}

	return nil
}
