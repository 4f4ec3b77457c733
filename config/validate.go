package config

import (
	"fmt"
	"net/url"
	"strings"
)

// MaxAccount is the largest account number usable in a hardened BIP-44
// derivation step.
const MaxAccount = 1<<31 - 1

// Validate checks runtime config for obvious operator mistakes.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.Network != Mainnet && cfg.Network != Testnet {
		return fmt.Errorf("network must be %q or %q", Mainnet, Testnet)
	}
	if cfg.DataDir == "" {
		return fmt.Errorf("datadir must not be empty")
	}

	u, err := url.Parse(cfg.RPC.Endpoint)
	if err != nil || u.Host == "" {
		return fmt.Errorf("rpc.endpoint %q is not a valid URL", cfg.RPC.Endpoint)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("rpc.endpoint must use http or https, got %q", u.Scheme)
	}
	if cfg.RPC.Timeout <= 0 {
		return fmt.Errorf("rpc.timeout must be positive")
	}
	if cfg.RPC.Password != "" && cfg.RPC.User == "" {
		return fmt.Errorf("rpc.password requires rpc.user")
	}

	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in range [0, 65535]")
	}

	cfg.Wallet.Name = strings.TrimSpace(cfg.Wallet.Name)
	if cfg.Wallet.Name == "" {
		return fmt.Errorf("wallet.name must not be empty")
	}
	if strings.ContainsAny(cfg.Wallet.Name, `/\`) {
		return fmt.Errorf("wallet.name must not contain path separators")
	}
	if cfg.Wallet.Account > MaxAccount {
		return fmt.Errorf("wallet.account must be at most %d", MaxAccount)
	}

	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	switch cfg.Log.Level {
	case "trace", "debug", "info", "warn", "error", "":
	default:
		return fmt.Errorf("log.level %q is not a known level", cfg.Log.Level)
	}

	return nil
}
