package wallet

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Klingon-tech/zwallet/internal/log"
	"github.com/Klingon-tech/zwallet/pkg/tx"
	"github.com/Klingon-tech/zwallet/pkg/types"
)

// Task kinds, used in logs.
const (
	taskTransparentTx = "transparent_tx"
	taskShieldedTx    = "shielded_tx"
	taskShield        = "shield_all"
	taskToOrchardTx   = "transparent_to_orchard_tx"
	taskFromOrchardTx = "orchard_to_transparent_tx"
	taskBalance       = "balance"
	taskDiscovery     = "discovery"
	taskRunDiscovery  = "run_discovery"
)

// Config configures a Service.
type Config struct {
	ChainID         string
	ShieldedEnabled bool
	// Selector picks transparent inputs. Defaults to SelectSmallestFirst.
	Selector CoinSelector
}

// Service runs wallet tasks. Every call registers a task, runs it on its own
// goroutine and waits for its single result. A call whose context ends first
// drops the task; the result it later produces is discarded.
type Service struct {
	cfg     Config
	net     types.Network
	chain   ChainStateClient
	keyring Keyring
	notes   NoteStore

	mu     sync.Mutex
	nextID uint64
	tasks  map[uint64]*taskHandle

	builds accountMutex
}

type taskHandle struct {
	id      uint64
	kind    string
	account uint32
	started time.Time
}

// TaskInfo describes a running task.
type TaskInfo struct {
	ID      uint64        `json:"id"`
	Kind    string        `json:"kind"`
	Account uint32        `json:"account"`
	Age     time.Duration `json:"age"`
}

// NewService creates a Service. notes may be nil when the shielded pool is
// disabled.
func NewService(cfg Config, chain ChainStateClient, keyring Keyring, notes NoteStore) (*Service, error) {
	net, err := types.NetworkForChainID(cfg.ChainID)
	if err != nil {
		return nil, err
	}
	if chain == nil || keyring == nil {
		return nil, fmt.Errorf("wallet service needs a chain client and a keyring")
	}
	if cfg.ShieldedEnabled && notes == nil {
		return nil, fmt.Errorf("shielded pool enabled without a note store")
	}
	if cfg.Selector == nil {
		cfg.Selector = SelectSmallestFirst
	}
	return &Service{
		cfg:     cfg,
		net:     net,
		chain:   chain,
		keyring: keyring,
		notes:   notes,
		tasks:   make(map[uint64]*taskHandle),
	}, nil
}

// Network returns the network the service builds for.
func (s *Service) Network() types.Network {
	return s.net
}

// Tasks lists the tasks currently registered, oldest first.
func (s *Service) Tasks() []TaskInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TaskInfo, 0, len(s.tasks))
	for _, h := range s.tasks {
		out = append(out, TaskInfo{ID: h.id, Kind: h.kind, Account: h.account, Age: time.Since(h.started)})
	}
	slices.SortFunc(out, func(a, b TaskInfo) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// BuildTransparentTransaction pays amount from the account's transparent
// UTXOs to a t-address or to the transparent receiver of a unified address.
func (s *Service) BuildTransparentTransaction(ctx context.Context, account uint32, to string, amount uint64) (*tx.Transaction, error) {
	return runTask(ctx, s, taskTransparentTx, account, true, func(ctx context.Context, e *env) (*tx.Transaction, error) {
		t, err := newTransparentTxTask(e, s.cfg.Selector, account, to, amount).run(ctx)
		if err != nil {
			return nil, err
		}
		if err := checkTransaction(t); err != nil {
			return nil, err
		}
		return t, nil
	})
}

// BuildShieldedTransaction pays amount from the account's spendable notes to
// an Orchard receiver. memo may be nil.
func (s *Service) BuildShieldedTransaction(ctx context.Context, account uint32, recipient types.OrchardAddr, memo []byte, amount uint64) (*tx.Transaction, error) {
	if !s.cfg.ShieldedEnabled {
		return nil, ErrShieldedDisabled
	}
	return runTask(ctx, s, taskShieldedTx, account, true, func(ctx context.Context, e *env) (*tx.Transaction, error) {
		t, err := newShieldedTxTask(e, account, recipient, memo, amount).run(ctx)
		if err != nil {
			return nil, err
		}
		if err := checkTransaction(t); err != nil {
			return nil, err
		}
		return t, nil
	})
}

// BuildTransparentToOrchardTransaction pays amount from the account's
// transparent UTXOs to an Orchard receiver. Change stays transparent.
func (s *Service) BuildTransparentToOrchardTransaction(ctx context.Context, account uint32, recipient types.OrchardAddr, memo []byte, amount uint64) (*tx.Transaction, error) {
	if !s.cfg.ShieldedEnabled {
		return nil, ErrShieldedDisabled
	}
	return runTask(ctx, s, taskToOrchardTx, account, true, func(ctx context.Context, e *env) (*tx.Transaction, error) {
		t, err := newToOrchardTxTask(e, s.cfg.Selector, account, recipient, memo, amount).run(ctx)
		if err != nil {
			return nil, err
		}
		if err := checkTransaction(t); err != nil {
			return nil, err
		}
		return t, nil
	})
}

// BuildOrchardToTransparentTransaction pays amount from the account's
// spendable notes to a t-address or the transparent receiver of a unified
// address. Change returns to the internal Orchard address.
func (s *Service) BuildOrchardToTransparentTransaction(ctx context.Context, account uint32, to string, amount uint64) (*tx.Transaction, error) {
	if !s.cfg.ShieldedEnabled {
		return nil, ErrShieldedDisabled
	}
	return runTask(ctx, s, taskFromOrchardTx, account, true, func(ctx context.Context, e *env) (*tx.Transaction, error) {
		t, err := newFromOrchardTxTask(e, account, to, amount).run(ctx)
		if err != nil {
			return nil, err
		}
		if err := checkTransaction(t); err != nil {
			return nil, err
		}
		return t, nil
	})
}

// ShieldAllFunds moves the account's whole transparent balance, less the
// fee, to its internal Orchard address.
func (s *Service) ShieldAllFunds(ctx context.Context, account uint32) (*tx.Transaction, error) {
	if !s.cfg.ShieldedEnabled {
		return nil, ErrShieldedDisabled
	}
	return runTask(ctx, s, taskShield, account, true, func(ctx context.Context, e *env) (*tx.Transaction, error) {
		t, err := newShieldTask(e, account).run(ctx)
		if err != nil {
			return nil, err
		}
		if err := checkTransaction(t); err != nil {
			return nil, err
		}
		return t, nil
	})
}

// ResolveBalance discovers the account's addresses and sums its holdings.
func (s *Service) ResolveBalance(ctx context.Context, account uint32) (*Balance, error) {
	return runTask(ctx, s, taskBalance, account, false, func(ctx context.Context, e *env) (*Balance, error) {
		return newBalanceTask(e, account, s.cfg.ShieldedEnabled).run(ctx)
	})
}

// DiscoverNextUnusedAddress returns the first address on the branch, from
// start or from the keyring's record, with no chain history.
func (s *Service) DiscoverNextUnusedAddress(ctx context.Context, account uint32, change bool, start *types.KeyID) (DiscoveredAddress, error) {
	return runTask(ctx, s, taskDiscovery, account, false, func(ctx context.Context, e *env) (DiscoveredAddress, error) {
		return newDiscoveryTask(e, account, change, start).run(ctx)
	})
}

// RunDiscovery discovers the next unused receive and change addresses and
// records them with the keyring.
func (s *Service) RunDiscovery(ctx context.Context, account uint32) (receive, change DiscoveredAddress, err error) {
	pair, err := runTask(ctx, s, taskRunDiscovery, account, false, func(ctx context.Context, e *env) ([2]DiscoveredAddress, error) {
		r, c, err := discoverAll(ctx, e, account)
		return [2]DiscoveredAddress{r, c}, err
	})
	return pair[0], pair[1], err
}

// GetTransactionType classifies a destination. useShielded selects the
// Orchard pool as the source of funds.
func (s *Service) GetTransactionType(account uint32, useShielded bool, address string) (TxType, AddressError, error) {
	return classifyDestination(s.net, s.cfg.ShieldedEnabled, s.keyring, account, useShielded, address)
}

func checkTransaction(t *tx.Transaction) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("built invalid transaction: %w", err)
	}
	if err := t.ValidateAmounts(); err != nil {
		return fmt.Errorf("built invalid transaction: %w", err)
	}
	return nil
}

type taskResult[T any] struct {
	value T
	err   error
}

// runTask registers a task, runs fn on a new goroutine and waits for its
// result or for ctx to end. When serialize is set, tasks for the same
// account run one at a time.
func runTask[T any](ctx context.Context, s *Service, kind string, account uint32, serialize bool,
	fn func(ctx context.Context, e *env) (T, error)) (T, error) {

	h := s.register(kind, account)
	logger := log.WithTask(kind, h.id)
	e := &env{
		chain:   s.chain,
		keyring: s.keyring,
		notes:   s.notes,
		chainID: s.cfg.ChainID,
		net:     s.net,
		log:     logger,
	}

	done := make(chan taskResult[T], 1)
	go func() {
		defer log.Benchmark("wallet." + kind)()
		if serialize {
			s.builds.Lock(account)
			defer s.builds.Unlock(account)
		}
		logger.Debug().Uint32("account", account).Msg("Task started")

		v, err := fn(ctx, e)
		if !s.finish(h.id) {
			logger.Debug().Err(err).Msg("Discarding result of dropped task")
			return
		}
		done <- taskResult[T]{value: v, err: err}
	}()

	select {
	case r := <-done:
		return report(logger, h, dropped(ctx, r))
	case <-ctx.Done():
		if s.finish(h.id) {
			logger.Warn().Err(ctx.Err()).Msg("Task dropped")
			var zero T
			return zero, fmt.Errorf("%w: %w", ErrTaskDropped, ctx.Err())
		}
		// The task finished while we were giving up on it.
		return report(logger, h, dropped(ctx, <-done))
	}
}

// dropped reports a task that stopped because ctx ended the same way as a
// task dropped by its waiter.
func dropped[T any](ctx context.Context, r taskResult[T]) taskResult[T] {
	ctxErr := ctx.Err()
	if ctxErr != nil && r.err != nil && errors.Is(r.err, ctxErr) && !errors.Is(r.err, ErrTaskDropped) {
		r.err = fmt.Errorf("%w: %w", ErrTaskDropped, ctxErr)
	}
	return r
}

func report[T any](logger zerolog.Logger, h *taskHandle, r taskResult[T]) (T, error) {
	if r.err != nil {
		ev := logger.Warn()
		if !IsRecoverable(r.err) {
			ev = logger.Error()
		}
		ev.Err(r.err).Dur("elapsed", time.Since(h.started)).Msg("Task failed")
		return r.value, r.err
	}
	logger.Debug().Dur("elapsed", time.Since(h.started)).Msg("Task done")
	return r.value, nil
}

func (s *Service) register(kind string, account uint32) *taskHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	h := &taskHandle{id: s.nextID, kind: kind, account: account, started: time.Now()}
	s.tasks[h.id] = h
	return h
}

// finish deregisters a task. It reports false when the task was already
// removed, so exactly one of the task and its waiter claims the result.
func (s *Service) finish(id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return false
	}
	delete(s.tasks, id)
	return true
}
