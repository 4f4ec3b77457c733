// Wallet daemon: serves the wallet JSON-RPC API for one unlocked wallet.
//
// Usage:
//
//	zwalletd [--wallet=<name>] [--password-file=<path>]   Run daemon
//	zwalletd --help                                       Show help
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Klingon-tech/zwallet/config"
	"github.com/Klingon-tech/zwallet/internal/node"
	"golang.org/x/term"
)

func main() {
	cfg, f, err := config.Load(os.Args[1:])
	if err != nil {
		if config.IsHelp(err) {
			fmt.Fprintln(os.Stderr, "Usage: zwalletd [flags]\n\nAccepts the zwallet-cli global flags. See 'zwallet-cli --help'.")
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if f.Version {
		fmt.Println("zwalletd version", config.Version)
		return
	}

	if err := node.InitLogging(cfg, "zwalletd"); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	password, err := readPassword(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: read password: %v\n", err)
		os.Exit(1)
	}
	seed, err := node.Unlock(cfg, password)
	clear(password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	n, err := node.New(cfg, seed)
	clear(seed)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := n.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		n.Stop()
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	n.Stop()
}

// readPassword uses the configured password file, falling back to a
// terminal prompt.
func readPassword(cfg *config.Config) ([]byte, error) {
	if cfg.Wallet.PasswordFile != "" {
		return node.ReadPasswordFile(cfg.Wallet.PasswordFile)
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, fmt.Errorf("no terminal for the password prompt; set wallet.passwordfile")
	}
	fmt.Fprint(os.Stderr, "Wallet password: ")
	password, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	return password, err
}
