// Package node wires an unlocked wallet to its storage, the chain backend
// and the wallet JSON-RPC server. It is shared by the daemon and the CLI.
package node

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/Klingon-tech/zwallet/config"
	"github.com/Klingon-tech/zwallet/internal/keyring"
	klog "github.com/Klingon-tech/zwallet/internal/log"
	"github.com/Klingon-tech/zwallet/internal/notestore"
	"github.com/Klingon-tech/zwallet/internal/rpc"
	"github.com/Klingon-tech/zwallet/internal/rpcclient"
	"github.com/Klingon-tech/zwallet/internal/storage"
	"github.com/Klingon-tech/zwallet/internal/wallet"
	"github.com/Klingon-tech/zwallet/pkg/types"
	"github.com/rs/zerolog"
)

// Key prefixes of the stores sharing the wallet database.
var (
	keyringPrefix = []byte("keyring/")
	notesPrefix   = []byte("notes/")
)

// Node is an opened wallet.
type Node struct {
	cfg    *config.Config
	net    types.Network
	logger zerolog.Logger

	db    *storage.BadgerDB
	keys  *keyring.Keyring
	notes *notestore.Store
	chain *rpcclient.ChainClient
	svc   *wallet.Service

	rpcServer *rpc.Server
}

// New opens the wallet database and builds the wallet service for seed.
// The seed is not retained; callers may clear it once New returns. The
// RPC server is not started until Start.
func New(cfg *config.Config, seed []byte) (*Node, error) {
	net, err := cfg.Network.Types()
	if err != nil {
		return nil, err
	}
	logger := klog.WithChainID(net.ChainID()).With().Str("component", "node").Logger()

	db, err := storage.NewBadger(cfg.WalletDBDir())
	if err != nil {
		return nil, fmt.Errorf("open wallet database at %s: %w", cfg.WalletDBDir(), err)
	}
	logger.Debug().Str("path", cfg.WalletDBDir()).Msg("Wallet database opened")

	keys, err := keyring.New(seed, net, storage.NewPrefixDB(db, keyringPrefix), cfg.Wallet.Shielded)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("open keyring: %w", err)
	}
	notes := notestore.New(storage.NewPrefixDB(db, notesPrefix))

	client := rpcclient.NewWithTimeout(cfg.RPC.Endpoint, cfg.RPC.Timeout)
	if cfg.RPC.User != "" {
		client.SetBasicAuth(cfg.RPC.User, cfg.RPC.Password)
	}
	chain := rpcclient.NewChainClient(map[string]*rpcclient.Client{net.ChainID(): client})

	svc, err := wallet.NewService(wallet.Config{
		ChainID:         net.ChainID(),
		ShieldedEnabled: cfg.Wallet.Shielded,
	}, chain, keys, notes)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create wallet service: %w", err)
	}

	logger.Debug().
		Str("network", string(cfg.Network)).
		Str("backend", cfg.RPC.Endpoint).
		Bool("shielded", cfg.Wallet.Shielded).
		Msg("Wallet opened")

	return &Node{
		cfg:    cfg,
		net:    net,
		logger: logger,
		db:     db,
		keys:   keys,
		notes:  notes,
		chain:  chain,
		svc:    svc,
	}, nil
}

// Start registers the configured account and launches the wallet RPC server.
func (n *Node) Start() error {
	if err := n.EnsureAccount(0); err != nil {
		return fmt.Errorf("register account %d: %w", n.cfg.Wallet.Account, err)
	}

	n.rpcServer = rpc.New(n.cfg.Server.ListenAddr(), n.svc, n.keys, n.cfg.Server)
	n.rpcServer.SetNoteStore(n.notes)
	n.rpcServer.SetDevOrchardAddresses(n.cfg.Wallet.DevOrchard)
	if err := n.rpcServer.Start(); err != nil {
		n.rpcServer = nil
		return fmt.Errorf("start wallet rpc: %w", err)
	}

	n.logger.Info().
		Str("rpc", n.rpcServer.Addr()).
		Uint32("account", n.cfg.Wallet.Account).
		Msg("Wallet daemon started")
	return nil
}

// Stop shuts down the RPC server and closes the database.
func (n *Node) Stop() {
	if n.rpcServer != nil {
		if err := n.rpcServer.Stop(); err != nil {
			n.logger.Warn().Err(err).Msg("Wallet RPC shutdown failed")
		}
	}
	n.Close()
	n.logger.Info().Msg("Goodbye!")
}

// Close closes the wallet database. Used by callers that never Start.
func (n *Node) Close() {
	if err := n.db.Close(); err != nil {
		n.logger.Warn().Err(err).Msg("Closing wallet database failed")
	}
}

// RPCAddr returns the address the RPC server is listening on.
func (n *Node) RPCAddr() string {
	if n.rpcServer == nil {
		return ""
	}
	return n.rpcServer.Addr()
}

// EnsureAccount registers the configured account with the note store if it
// has no metadata yet. birthday is ignored for known accounts.
func (n *Node) EnsureAccount(birthday uint32) error {
	_, err := n.notes.GetAccountMeta(n.cfg.Wallet.Account)
	if errors.Is(err, notestore.ErrAccountNotRegistered) {
		n.logger.Info().
			Uint32("account", n.cfg.Wallet.Account).
			Uint32("birthday", birthday).
			Msg("Account registered")
		return n.notes.RegisterAccount(n.cfg.Wallet.Account, birthday)
	}
	return err
}

// RewindNotes forgets what the configured account learned above blockID,
// after the chain reorganized below the account's scan position.
func (n *Node) RewindNotes(blockID uint32, blockHash string) error {
	if err := n.notes.HandleChainReorg(n.cfg.Wallet.Account, blockID, blockHash); err != nil {
		return fmt.Errorf("rewind account %d to block %d: %w", n.cfg.Wallet.Account, blockID, err)
	}
	return nil
}

// ResetNotes drops the configured account's scan results so the next scan
// starts again from its birthday.
func (n *Node) ResetNotes() error {
	if err := n.notes.ResetAccountSyncState(n.cfg.Wallet.Account); err != nil {
		return fmt.Errorf("reset account %d: %w", n.cfg.Wallet.Account, err)
	}
	return nil
}

// ChainHeight returns the backend's latest block height.
func (n *Node) ChainHeight(ctx context.Context) (uint32, error) {
	return n.chain.GetLatestBlockHeight(ctx, n.net.ChainID())
}

// Network returns the wallet's network.
func (n *Node) Network() types.Network { return n.net }

// Service returns the wallet service.
func (n *Node) Service() *wallet.Service { return n.svc }

// Keys returns the wallet keyring.
func (n *Node) Keys() *keyring.Keyring { return n.keys }

// Notes returns the note store.
func (n *Node) Notes() *notestore.Store { return n.notes }

// InitLogging initializes the global logger. Without a configured log file
// output goes to <datadir>/<network>/logs/name.log.
func InitLogging(cfg *config.Config, name string) error {
	logFile := expandHome(cfg.Log.File)
	if logFile == "" {
		logFile = filepath.Join(cfg.LogsDir(), name+".log")
	}
	if err := klog.Init(cfg.Log.Level, cfg.Log.JSON, logFile); err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	return nil
}
