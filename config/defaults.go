package config

import "time"

// DefaultRPCTimeout bounds a single chain backend request.
const DefaultRPCTimeout = 10 * time.Second

// DefaultWalletName is the keystore entry used when none is configured.
const DefaultWalletName = "default"

// DefaultMainnet returns the default configuration for mainnet.
func DefaultMainnet() *Config {
	return &Config{
		Network: Mainnet,
		DataDir: DefaultDataDir(),
		RPC: RPCConfig{
			Endpoint: "http://127.0.0.1:8232",
			Timeout:  DefaultRPCTimeout,
		},
		Wallet: WalletConfig{
			Name:     DefaultWalletName,
			Shielded: true,
		},
		Server: ServerConfig{
			Addr:       "127.0.0.1",
			Port:       8272,
			AllowedIPs: []string{"127.0.0.1"},
		},
		Log: LogConfig{
			Level: "info",
			JSON:  false,
		},
	}
}

// DefaultTestnet returns the default configuration for testnet.
func DefaultTestnet() *Config {
	cfg := DefaultMainnet()
	cfg.Network = Testnet
	cfg.RPC.Endpoint = "http://127.0.0.1:18232"
	cfg.Server.Port = 18272
	return cfg
}

// Default returns the default configuration for the given network.
func Default(network NetworkType) *Config {
	switch network {
	case Testnet:
		return DefaultTestnet()
	default:
		return DefaultMainnet()
	}
}
