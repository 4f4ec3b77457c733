// Package config handles wallet configuration.
//
// Settings are resolved in three layers: built-in defaults for the network,
// the key = value config file in the data directory, then command-line flags.
package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/Klingon-tech/zwallet/pkg/types"
)

// NetworkType identifies mainnet or testnet.
type NetworkType string

const (
	Mainnet NetworkType = "mainnet"
	Testnet NetworkType = "testnet"
)

// Types returns the address network for n.
func (n NetworkType) Types() (types.Network, error) {
	switch n {
	case Mainnet:
		return types.Mainnet, nil
	case Testnet:
		return types.Testnet, nil
	default:
		return 0, fmt.Errorf("unknown network %q", string(n))
	}
}

// Config holds the wallet's runtime configuration.
type Config struct {
	// Core
	Network NetworkType `conf:"network"`
	DataDir string      `conf:"datadir"`

	// Chain backend
	RPC RPCConfig

	// Wallet engine
	Wallet WalletConfig

	// Wallet JSON-RPC server (zwalletd)
	Server ServerConfig

	// Logging
	Log LogConfig
}

// RPCConfig holds the chain backend connection settings.
type RPCConfig struct {
	Endpoint string        `conf:"rpc.endpoint"`
	Timeout  time.Duration `conf:"rpc.timeout"`
	User     string        `conf:"rpc.user"`
	Password string        `conf:"rpc.password"` // Not written to the default file.
}

// WalletConfig holds wallet engine settings.
type WalletConfig struct {
	Name     string `conf:"wallet.name"`     // Keystore entry to open.
	Shielded bool   `conf:"wallet.shielded"` // Enables the Orchard pool.
	Account  uint32 `conf:"wallet.account"`  // Default account for commands.

	// DevOrchard shows the keyring's placeholder Orchard addresses. They
	// are not derived with real Orchard keys and cannot receive funds.
	DevOrchard bool `conf:"wallet.devorchard"`

	// PasswordFile unlocks the keystore without a terminal (zwalletd).
	PasswordFile string `conf:"wallet.passwordfile"`
}

// ServerConfig holds the wallet daemon's JSON-RPC server settings.
type ServerConfig struct {
	Addr        string   `conf:"server.addr"`
	Port        int      `conf:"server.port"`
	AllowedIPs  []string `conf:"server.allowed"`
	CORSOrigins []string `conf:"server.cors"` // Allowed CORS origins ("*" = all).
}

// ListenAddr returns the host:port the server binds.
func (s ServerConfig) ListenAddr() string {
	return net.JoinHostPort(s.Addr, strconv.Itoa(s.Port))
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `conf:"log.level"`
	File  string `conf:"log.file"`
	JSON  bool   `conf:"log.json"`
}

// =============================================================================
// Directory helpers
// =============================================================================

// DefaultDataDir returns the platform-specific default data directory.
//
//	Linux:   ~/.zwallet
//	macOS:   ~/Library/Application Support/ZWallet
//	Windows: %APPDATA%\ZWallet
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".zwallet"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "ZWallet")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, "ZWallet")
		}
		return filepath.Join(home, "AppData", "Roaming", "ZWallet")
	default:
		return filepath.Join(home, ".zwallet")
	}
}

// NetworkDataDir returns the network-specific data directory.
func (c *Config) NetworkDataDir() string {
	return filepath.Join(c.DataDir, string(c.Network))
}

// KeystoreDir returns the keystore directory.
func (c *Config) KeystoreDir() string {
	return filepath.Join(c.NetworkDataDir(), "keystore")
}

// WalletDBDir returns the badger directory holding address indices and notes.
func (c *Config) WalletDBDir() string {
	return filepath.Join(c.NetworkDataDir(), "walletdb")
}

// LogsDir returns the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// ConfigFile returns the config file path.
func (c *Config) ConfigFile() string {
	return filepath.Join(c.DataDir, "zwallet.conf")
}
