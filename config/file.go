package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// LoadFile loads wallet configuration from a .conf file.
// Format: key = value (one per line, # for comments)
func LoadFile(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, err
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse key = value
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("line %d: invalid format (expected key = value)", lineNum)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Remove quotes if present
		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}

		values[key] = value
	}

	return values, scanner.Err()
}

// ApplyFileConfig applies file configuration to a Config struct.
func ApplyFileConfig(cfg *Config, values map[string]string) error {
	for key, value := range values {
		if err := setConfigValue(cfg, key, value); err != nil {
			return fmt.Errorf("config key %q: %w", key, err)
		}
	}
	return nil
}

// setConfigValue sets a config value by key.
func setConfigValue(cfg *Config, key, value string) error {
	switch key {
	// Core
	case "network":
		cfg.Network = NetworkType(strings.ToLower(value))
	case "datadir":
		cfg.DataDir = value

	// Chain backend
	case "rpc.endpoint", "rpc":
		cfg.RPC.Endpoint = value
	case "rpc.timeout":
		d, err := parseDuration(value)
		if err != nil {
			return err
		}
		cfg.RPC.Timeout = d
	case "rpc.user":
		cfg.RPC.User = value
	case "rpc.password":
		cfg.RPC.Password = value

	// Wallet
	case "wallet.name", "wallet":
		cfg.Wallet.Name = value
	case "wallet.shielded", "shielded":
		cfg.Wallet.Shielded = parseBool(value)
	case "wallet.account", "account":
		n, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return err
		}
		cfg.Wallet.Account = uint32(n)
	case "wallet.passwordfile", "passwordfile":
		cfg.Wallet.PasswordFile = value
	case "wallet.devorchard":
		cfg.Wallet.DevOrchard = parseBool(value)

	// Wallet JSON-RPC server
	case "server.addr":
		cfg.Server.Addr = value
	case "server.port":
		port, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		cfg.Server.Port = port
	case "server.allowed":
		cfg.Server.AllowedIPs = parseStringList(value)
	case "server.cors":
		cfg.Server.CORSOrigins = parseStringList(value)

	// Logging
	case "log.level":
		cfg.Log.Level = value
	case "log.file":
		cfg.Log.File = value
	case "log.json":
		cfg.Log.JSON = parseBool(value)

	default:
		// Unknown keys are ignored
	}
	return nil
}

// parseDuration accepts Go duration syntax or a bare number of seconds.
func parseDuration(s string) (time.Duration, error) {
	if n, err := strconv.ParseUint(s, 10, 32); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(s)
}

// parseBool parses a boolean value.
func parseBool(s string) bool {
	s = strings.ToLower(s)
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

// parseStringList parses a comma-separated list.
func parseStringList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// WriteDefaultConfig writes a default wallet configuration file.
func WriteDefaultConfig(path string, network NetworkType) error {
	cfg := Default(network)
	content := `# ZWallet Configuration
#
# Command-line flags override values set here.

# Network: mainnet or testnet
network = ` + string(network) + `

# Data directory (default: ~/.zwallet)
# datadir = ~/.zwallet

# ============================================================================
# Chain backend (JSON-RPC)
# ============================================================================

# Defaults to the local node of the selected network.
# rpc.endpoint = ` + cfg.RPC.Endpoint + `
rpc.timeout = ` + cfg.RPC.Timeout.String() + `
# rpc.user =
# rpc.password =

# ============================================================================
# Wallet
# ============================================================================

wallet.name = ` + cfg.Wallet.Name + `

# Enable the Orchard shielded pool
wallet.shielded = true

# Account used when a command does not name one
wallet.account = 0

# Keystore password file for unattended zwalletd startup
# wallet.passwordfile =

# ============================================================================
# Wallet JSON-RPC server (zwalletd)
# ============================================================================

server.addr = ` + cfg.Server.Addr + `
server.port = ` + strconv.Itoa(cfg.Server.Port) + `
server.allowed = 127.0.0.1
# CORS allowed origins ("*" for all)
# server.cors = http://localhost:3000

# ============================================================================
# Logging
# ============================================================================

log.level = info
# log.file =
log.json = false
`
	return os.WriteFile(path, []byte(content), 0600)
}
