package node

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Klingon-tech/zwallet/config"
	"github.com/Klingon-tech/zwallet/internal/keyring"
)

// ErrWalletNotFound is returned by Unlock when the keystore has no entry
// for the configured wallet name.
var ErrWalletNotFound = errors.New("wallet not found")

// expandHome replaces a leading ~ with the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}

// ReadPasswordFile reads a keystore password from a file. Trailing
// newlines are stripped.
func ReadPasswordFile(path string) ([]byte, error) {
	data, err := os.ReadFile(expandHome(path))
	if err != nil {
		return nil, fmt.Errorf("read password file: %w", err)
	}
	password := []byte(strings.TrimRight(string(data), "\r\n"))
	clear(data)
	if len(password) == 0 {
		return nil, fmt.Errorf("password file %s is empty", path)
	}
	return password, nil
}

// Unlock decrypts the configured wallet and returns its seed. The wallet
// must belong to the configured network.
func Unlock(cfg *config.Config, password []byte) ([]byte, error) {
	net, err := cfg.Network.Types()
	if err != nil {
		return nil, err
	}
	ks, err := keyring.NewKeystore(cfg.KeystoreDir())
	if err != nil {
		return nil, fmt.Errorf("open keystore: %w", err)
	}
	if !ks.Exists(cfg.Wallet.Name) {
		return nil, fmt.Errorf("%w: %q", ErrWalletNotFound, cfg.Wallet.Name)
	}
	seed, walletNet, err := ks.Load(cfg.Wallet.Name, password)
	if err != nil {
		return nil, fmt.Errorf("unlock wallet: %w", err)
	}
	if walletNet != net {
		clear(seed)
		return nil, fmt.Errorf("wallet %q belongs to %s, not %s", cfg.Wallet.Name, walletNet, net)
	}
	return seed, nil
}
