// zwallet-cli builds transactions, discovers addresses and resolves
// balances for a Zcash wallet against a remote chain backend.
//
// Usage:
//
//	zwallet-cli [global flags] <command> [args]
//	zwallet-cli --help
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/Klingon-tech/zwallet/config"
	"github.com/Klingon-tech/zwallet/internal/keyring"
	"github.com/Klingon-tech/zwallet/internal/log"
	"github.com/Klingon-tech/zwallet/internal/node"
	"github.com/Klingon-tech/zwallet/internal/wallet"
	"github.com/Klingon-tech/zwallet/pkg/types"
	"golang.org/x/term"
)

func main() {
	cfg, f, err := config.Load(os.Args[1:])
	if err != nil {
		if config.IsHelp(err) {
			usage()
			os.Exit(0)
		}
		fatal("%v", err)
	}
	if f.Version {
		fmt.Println("zwallet-cli version", config.Version)
		return
	}
	if err := node.InitLogging(cfg, "zwallet-cli"); err != nil {
		fatal("init logging: %v", err)
	}

	if len(f.Args) == 0 {
		usage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd, args := f.Args[0], f.Args[1:]
	switch cmd {
	case "create":
		cmdCreate(cfg)
	case "import":
		cmdImport(ctx, cfg)
	case "list":
		cmdList(cfg)
	case "address":
		cmdAddress(ctx, cfg, args)
	case "discover":
		cmdDiscover(ctx, cfg)
	case "balance":
		cmdBalance(ctx, cfg)
	case "send":
		cmdSend(ctx, cfg, args)
	case "shield":
		cmdShield(ctx, cfg)
	case "txtype":
		cmdTxType(cfg, args)
	case "rewind":
		cmdRewind(cfg, args)
	case "resync":
		cmdResync(cfg)
	case "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: zwallet-cli [global flags] <command> [args]

Global flags:
  --network <net>       mainnet (default) or testnet
  --testnet             Shorthand for --network=testnet
  --datadir <path>      Data directory (default: ~/.zwallet)
  -C, --configfile      Config file (default: <datadir>/zwallet.conf)
  --rpc <url>           Chain backend JSON-RPC URL
  --rpc-timeout <d>     Per-request timeout (default: 10s)
  -w, --wallet <name>   Keystore wallet name (default: default)
  -a, --account <n>     Account number (default: 0)
  --password-file <f>   Read the wallet password from a file
  --shielded            Enable the Orchard pool
  --no-shielded         Disable the Orchard pool
  --dev-orchard         Show placeholder Orchard addresses (not spendable)
  --log-level <lvl>     trace, debug, info, warn, error
  --log-json            JSON log output on stderr

Commands:
  create                       Create a wallet from a new mnemonic
  import                       Import a wallet from a mnemonic
  list                         List keystore wallets
  address [--change]           Show the next unused address
  discover                     Advance the next unused receive and change addresses
  balance                      Resolve the account balance
  send [--shielded] [--memo <text>] <address> <amount>
                               Build a payment (amount in ZEC)
  shield                       Move all transparent funds into the Orchard pool
  txtype [--shielded] <address>
                               Classify a destination address
  rewind <height> [hash]       Forget scan results above height after a reorg
  resync                       Drop all scan results of the account
`)
}

// openWallet decrypts the configured wallet and opens it.
func openWallet(cfg *config.Config) *node.Node {
	var password []byte
	var err error
	if cfg.Wallet.PasswordFile != "" {
		password, err = node.ReadPasswordFile(cfg.Wallet.PasswordFile)
	} else {
		password, err = readPassword("Wallet password: ")
	}
	if err != nil {
		fatal("read password: %v", err)
	}
	seed, err := node.Unlock(cfg, password)
	clear(password)
	if errors.Is(err, node.ErrWalletNotFound) {
		fatal("%v (run 'zwallet-cli create')", err)
	}
	if err != nil {
		fatal("%v", err)
	}
	defer clear(seed)

	n, err := node.New(cfg, seed)
	if err != nil {
		fatal("%v", err)
	}
	return n
}

func cmdCreate(cfg *config.Config) {
	mnemonic, err := keyring.GenerateMnemonic()
	if err != nil {
		fatal("generate mnemonic: %v", err)
	}
	fmt.Println("Mnemonic (write this down!):")
	fmt.Printf("  %s\n\n", mnemonic)

	n := createWallet(cfg, mnemonic)
	defer n.Close()

	// A new wallet has no history; its notes can only appear from now on.
	birthday, err := n.ChainHeight(context.Background())
	if err != nil {
		log.Wallet.Warn().Err(err).Msg("Chain height unavailable, wallet birthday set to genesis")
		birthday = 0
	}
	if err := n.EnsureAccount(birthday); err != nil {
		fatal("register account: %v", err)
	}
	printNewWallet(cfg, n)
}

func cmdImport(ctx context.Context, cfg *config.Config) {
	phrase, err := readPassword("Mnemonic: ")
	if err != nil {
		fatal("read mnemonic: %v", err)
	}
	mnemonic := keyring.NormalizeMnemonic(string(phrase))
	if !keyring.ValidateMnemonic(mnemonic) {
		fatal("invalid mnemonic")
	}

	n := createWallet(cfg, mnemonic)
	defer n.Close()
	if err := n.EnsureAccount(0); err != nil {
		fatal("register account: %v", err)
	}
	printNewWallet(cfg, n)

	// Recover the used address range from chain history.
	receive, change, err := n.Service().RunDiscovery(ctx, cfg.Wallet.Account)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: address discovery failed (is the chain backend reachable?): %v\n", err)
		fmt.Fprintln(os.Stderr, "Run 'zwallet-cli discover' when the backend is available.")
		return
	}
	fmt.Printf("Next receive address: %s (%s)\n", receive, receive.Key)
	fmt.Printf("Next change address:  %s (%s)\n", change, change.Key)
}

func createWallet(cfg *config.Config, mnemonic string) *node.Node {
	net, err := cfg.Network.Types()
	if err != nil {
		fatal("%v", err)
	}
	ks, err := keyring.NewKeystore(cfg.KeystoreDir())
	if err != nil {
		fatal("open keystore: %v", err)
	}
	if ks.Exists(cfg.Wallet.Name) {
		fatal("wallet %q already exists", cfg.Wallet.Name)
	}

	password, err := readPassword("Enter password: ")
	if err != nil {
		fatal("read password: %v", err)
	}
	confirm, err := readPassword("Confirm password: ")
	if err != nil {
		fatal("read password: %v", err)
	}
	if string(password) != string(confirm) {
		fatal("passwords do not match")
	}

	seed, err := keyring.SeedFromMnemonic(mnemonic, "")
	if err != nil {
		fatal("derive seed: %v", err)
	}
	defer clear(seed)

	if err := ks.Create(cfg.Wallet.Name, net, seed, password, keyring.DefaultParams()); err != nil {
		fatal("create wallet: %v", err)
	}
	n, err := node.New(cfg, seed)
	if err != nil {
		fatal("%v", err)
	}
	return n
}

func printNewWallet(cfg *config.Config, n *node.Node) {
	addr, err := n.Keys().GetAddress(types.KeyID{Account: cfg.Wallet.Account})
	if err != nil {
		fatal("derive address: %v", err)
	}
	fmt.Printf("Wallet created: %s (%s)\n", cfg.Wallet.Name, n.Network())
	fmt.Printf("Address: %s\n", addr)
	if ua, ok := orchardAddress(cfg, n, false); ok {
		fmt.Printf("Orchard address (dev placeholder): %s\n", ua)
	}
}

func cmdList(cfg *config.Config) {
	ks, err := keyring.NewKeystore(cfg.KeystoreDir())
	if err != nil {
		fatal("open keystore: %v", err)
	}
	names, err := ks.List()
	if err != nil {
		fatal("list wallets: %v", err)
	}
	if len(names) == 0 {
		fmt.Println("No wallets found.")
		return
	}
	for _, name := range names {
		fmt.Println(name)
	}
}

func cmdAddress(ctx context.Context, cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("address", flag.ExitOnError)
	change := fs.Bool("change", false, "Show the change branch")
	fs.Parse(args)

	n := openWallet(cfg)
	defer n.Close()

	next, err := n.Service().DiscoverNextUnusedAddress(ctx, cfg.Wallet.Account, *change, nil)
	if err != nil {
		fatal("discover address: %v", err)
	}
	out := map[string]string{"key": next.Key.String(), "address": next.Address.String()}
	if ua, ok := orchardAddress(cfg, n, *change); ok {
		out["shielded"] = ua
	}
	printJSON(out)
}

func cmdDiscover(ctx context.Context, cfg *config.Config) {
	n := openWallet(cfg)
	defer n.Close()

	receive, change, err := n.Service().RunDiscovery(ctx, cfg.Wallet.Account)
	if err != nil {
		fatal("discover: %v", err)
	}
	printJSON(map[string]wallet.DiscoveredAddress{"receive": receive, "change": change})
}

func cmdBalance(ctx context.Context, cfg *config.Config) {
	n := openWallet(cfg)
	defer n.Close()
	if err := n.EnsureAccount(0); err != nil {
		fatal("register account: %v", err)
	}

	bal, err := n.Service().ResolveBalance(ctx, cfg.Wallet.Account)
	if err != nil {
		fatal("resolve balance: %v", err)
	}
	printJSON(bal)
	fmt.Fprintf(os.Stderr, "Total: %s ZEC (transparent %s, shielded %s)\n",
		types.FormatAmount(bal.Total), types.FormatAmount(bal.Transparent), types.FormatAmount(bal.Shielded))
}

func cmdSend(ctx context.Context, cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("send", flag.ExitOnError)
	shielded := fs.Bool("shielded", false, "Spend from the Orchard pool")
	memo := fs.String("memo", "", "Memo attached to a shielded output")
	fs.Parse(args)

	if fs.NArg() != 2 {
		fatal("Usage: zwallet-cli send [--shielded] [--memo <text>] <address> <amount>")
	}
	to := fs.Arg(0)
	amount, err := types.ParseAmount(fs.Arg(1))
	if err != nil {
		fatal("invalid amount: %v", err)
	}

	n := openWallet(cfg)
	defer n.Close()
	if err := n.EnsureAccount(0); err != nil {
		fatal("register account: %v", err)
	}

	var memoBytes []byte
	if *memo != "" {
		memoBytes = []byte(*memo)
	}
	built, err := n.Service().BuildPayment(ctx, cfg.Wallet.Account, to, amount, *shielded, memoBytes)
	if err != nil {
		fatal("build transaction: %v", err)
	}
	printJSON(built)
}

func cmdShield(ctx context.Context, cfg *config.Config) {
	n := openWallet(cfg)
	defer n.Close()

	built, err := n.Service().ShieldAllFunds(ctx, cfg.Wallet.Account)
	if err != nil {
		fatal("shield: %v", err)
	}
	printJSON(built)
}

func cmdTxType(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("txtype", flag.ExitOnError)
	shielded := fs.Bool("shielded", false, "Spend from the Orchard pool")
	fs.Parse(args)
	if fs.NArg() != 1 {
		fatal("Usage: zwallet-cli txtype [--shielded] <address>")
	}

	n := openWallet(cfg)
	defer n.Close()

	kind, addrErr, err := n.Service().GetTransactionType(cfg.Wallet.Account, *shielded, fs.Arg(0))
	if err != nil {
		fatal("classify destination: %v", err)
	}
	printJSON(map[string]string{"type": kind.String(), "address_error": addrErr.String()})
}

func cmdRewind(cfg *config.Config, args []string) {
	if len(args) < 1 || len(args) > 2 {
		fatal("Usage: zwallet-cli rewind <height> [hash]")
	}
	height, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		fatal("invalid height: %v", err)
	}
	var hash string
	if len(args) == 2 {
		hash = args[1]
	}

	n := openWallet(cfg)
	defer n.Close()
	if err := n.RewindNotes(uint32(height), hash); err != nil {
		fatal("%v", err)
	}
	fmt.Printf("Account %d rewound to block %d\n", cfg.Wallet.Account, height)
}

func cmdResync(cfg *config.Config) {
	n := openWallet(cfg)
	defer n.Close()
	if err := n.ResetNotes(); err != nil {
		fatal("%v", err)
	}
	fmt.Printf("Account %d sync state reset\n", cfg.Wallet.Account)
}

// orchardAddress returns the account's Orchard address as a unified address.
// The keyring's Orchard addresses are placeholders, so they are only shown
// with --dev-orchard.
func orchardAddress(cfg *config.Config, n *node.Node, internal bool) (string, bool) {
	if !cfg.Wallet.DevOrchard {
		return "", false
	}
	raw, ok, err := n.Keys().GetOrchardRawAddress(cfg.Wallet.Account, internal)
	if err != nil || !ok {
		return "", false
	}
	ua, err := types.NewOrchardUnifiedAddress(n.Network(), raw).Encode()
	if err != nil {
		return "", false
	}
	return ua, true
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fatal("encode output: %v", err)
	}
}

func readPassword(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr) // newline after hidden input
	if err != nil {
		return nil, err
	}
	return password, nil
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
