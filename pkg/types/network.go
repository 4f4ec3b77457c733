package types

import "fmt"

// Network identifies mainnet or testnet address parameters.
type Network uint8

const (
	Mainnet Network = iota
	Testnet
)

// Chain ids understood by the engine and the chain RPC backend.
const (
	MainnetChainID = "zcash_mainnet"
	TestnetChainID = "zcash_testnet"
)

// Two-byte base58check version prefixes for transparent addresses.
var (
	mainnetP2PKH = [2]byte{0x1c, 0xb8} // t1
	mainnetP2SH  = [2]byte{0x1c, 0xbd} // t3
	testnetP2PKH = [2]byte{0x1d, 0x25} // tm
	testnetP2SH  = [2]byte{0x1c, 0xba} // t2
)

// Unified address human-readable parts (ZIP-316).
const (
	MainnetUnifiedHRP = "u"
	TestnetUnifiedHRP = "utest"
)

// String returns "mainnet" or "testnet".
func (n Network) String() string {
	switch n {
	case Mainnet:
		return "mainnet"
	case Testnet:
		return "testnet"
	default:
		return fmt.Sprintf("network(%d)", uint8(n))
	}
}

// ChainID returns the chain id for the network.
func (n Network) ChainID() string {
	if n == Testnet {
		return TestnetChainID
	}
	return MainnetChainID
}

// UnifiedHRP returns the unified address HRP for the network.
func (n Network) UnifiedHRP() string {
	if n == Testnet {
		return TestnetUnifiedHRP
	}
	return MainnetUnifiedHRP
}

func (n Network) p2pkhPrefix() [2]byte {
	if n == Testnet {
		return testnetP2PKH
	}
	return mainnetP2PKH
}

func (n Network) p2shPrefix() [2]byte {
	if n == Testnet {
		return testnetP2SH
	}
	return mainnetP2SH
}

// NetworkForChainID maps a chain id to its network.
func NetworkForChainID(chainID string) (Network, error) {
	switch chainID {
	case MainnetChainID:
		return Mainnet, nil
	case TestnetChainID:
		return Testnet, nil
	default:
		return 0, fmt.Errorf("unknown chain id %q", chainID)
	}
}
