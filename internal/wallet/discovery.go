package wallet

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Klingon-tech/zwallet/pkg/types"
)

// env is the read-only context a task runs against.
type env struct {
	chain   ChainStateClient
	keyring Keyring
	notes   NoteStore
	chainID string
	net     types.Network
	log     zerolog.Logger
}

// firstScanBlock is the first block searched for address history.
const firstScanBlock = 1

type discoveryState int

const (
	discoveryAwaitingHeight discoveryState = iota
	discoveryProbing
	discoveryDone
)

func (s discoveryState) String() string {
	switch s {
	case discoveryAwaitingHeight:
		return "awaiting_height"
	case discoveryProbing:
		return "probing"
	case discoveryDone:
		return "done"
	default:
		return "unknown"
	}
}

// discoveryTask walks one derivation branch until it finds an address the
// chain has never seen.
type discoveryTask struct {
	env     *env
	account uint32
	change  bool
	start   *types.KeyID

	state     discoveryState
	height    uint32
	cursor    types.KeyID
	candidate types.TransparentAddress
	probes    int
	err       error
}

func newDiscoveryTask(e *env, account uint32, change bool, start *types.KeyID) *discoveryTask {
	return &discoveryTask{env: e, account: account, change: change, start: start}
}

func (t *discoveryTask) run(ctx context.Context) (DiscoveredAddress, error) {
	for {
		if t.err != nil {
			return DiscoveredAddress{}, t.err
		}
		if err := ctx.Err(); err != nil {
			return DiscoveredAddress{}, err
		}

		switch t.state {
		case discoveryAwaitingHeight:
			t.fetchHeight(ctx)
		case discoveryProbing:
			t.probe(ctx)
		case discoveryDone:
			t.env.log.Debug().
				Uint32("account", t.account).
				Bool("change", t.change).
				Str("key", t.cursor.String()).
				Int("probes", t.probes).
				Msg("Found unused address")
			return DiscoveredAddress{Key: t.cursor, Address: t.candidate}, nil
		}
	}
}

func (t *discoveryTask) fetchHeight(ctx context.Context) {
	height, err := t.env.chain.GetLatestBlockHeight(ctx, t.env.chainID)
	if err != nil {
		t.err = fmt.Errorf("get block height: %w", err)
		return
	}
	t.height = height

	if t.start != nil {
		if t.start.Account != t.account || t.start.Change != t.change {
			t.err = fmt.Errorf("start key %s is not on account %d branch %d", t.start, t.account, branchOf(t.change))
			return
		}
		t.cursor = *t.start
	} else {
		t.cursor, err = t.env.keyring.NextUnusedKey(t.account, t.change)
		if err != nil {
			t.err = fmt.Errorf("next unused key: %w", err)
			return
		}
	}
	t.candidate, err = t.env.keyring.GetAddress(t.cursor)
	if err != nil {
		t.err = fmt.Errorf("derive %s: %w", t.cursor, err)
		return
	}
	t.state = discoveryProbing
}

func (t *discoveryTask) probe(ctx context.Context) {
	// A chain without blocks past genesis has no address history.
	if t.height < firstScanBlock {
		t.state = discoveryDone
		return
	}
	t.probes++
	known, err := t.env.chain.IsKnownAddress(ctx, t.env.chainID, t.candidate.String(), firstScanBlock, t.height)
	if err != nil {
		t.err = fmt.Errorf("check address %s: %w", t.candidate, err)
		return
	}
	if !known {
		t.state = discoveryDone
		return
	}

	next, addr, err := t.env.keyring.GetNextAddress(t.cursor)
	if err != nil {
		t.err = fmt.Errorf("derive address after %s: %w", t.cursor, err)
		return
	}
	if next.Account != t.cursor.Account || next.Change != t.cursor.Change || next.Index <= t.cursor.Index {
		t.err = fmt.Errorf("keyring returned %s after %s", next, t.cursor)
		return
	}
	t.cursor, t.candidate = next, addr
}

func branchOf(change bool) uint32 {
	return types.KeyID{Change: change}.Branch()
}

// discoverAll finds the next unused receive and change addresses of an
// account and records them with the keyring.
func discoverAll(ctx context.Context, e *env, account uint32) (receive, change DiscoveredAddress, err error) {
	receive, err = newDiscoveryTask(e, account, false, nil).run(ctx)
	if err != nil {
		return DiscoveredAddress{}, DiscoveredAddress{}, fmt.Errorf("discover receive address: %w", err)
	}
	change, err = newDiscoveryTask(e, account, true, nil).run(ctx)
	if err != nil {
		return DiscoveredAddress{}, DiscoveredAddress{}, fmt.Errorf("discover change address: %w", err)
	}
	if err := e.keyring.UpdateNextUnusedAddress(account, receive.Key, change.Key); err != nil {
		return DiscoveredAddress{}, DiscoveredAddress{}, fmt.Errorf("record next unused addresses: %w", err)
	}
	return receive, change, nil
}
