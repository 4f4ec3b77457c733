package wallet

import (
	"context"
	"fmt"
	"math"
)

type balanceState int

const (
	balanceDiscovering balanceState = iota
	balanceAwaitingUtxos
	balanceAwaitingNotes
	balanceDone
)

// balanceTask resolves an account's transparent and shielded holdings.
type balanceTask struct {
	env      *env
	account  uint32
	shielded bool

	state   balanceState
	receive DiscoveredAddress
	change  DiscoveredAddress
	balance Balance
	err     error
}

func newBalanceTask(e *env, account uint32, shielded bool) *balanceTask {
	return &balanceTask{env: e, account: account, shielded: shielded}
}

func (t *balanceTask) run(ctx context.Context) (*Balance, error) {
	for {
		if t.err != nil {
			return nil, t.err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		switch t.state {
		case balanceDiscovering:
			t.discover(ctx)
		case balanceAwaitingUtxos:
			t.fetchUtxos(ctx)
		case balanceAwaitingNotes:
			t.fetchNotes(ctx)
		case balanceDone:
			if t.balance.Shielded > math.MaxUint64-t.balance.Transparent {
				return nil, fmt.Errorf("%w: total balance", ErrAmountOverflow)
			}
			t.balance.Total = t.balance.Transparent + t.balance.Shielded
			return &t.balance, nil
		}
	}
}

func (t *balanceTask) discover(ctx context.Context) {
	receive, change, err := discoverAll(ctx, t.env, t.account)
	if err != nil {
		t.err = err
		return
	}
	t.receive, t.change = receive, change
	t.state = balanceAwaitingUtxos
}

func (t *balanceTask) fetchUtxos(ctx context.Context) {
	addrs, err := accountAddresses(t.env.keyring, t.receive.Key, t.change.Key)
	if err != nil {
		t.err = err
		return
	}
	sets, err := fetchUTXOs(ctx, t.env, addrs)
	if err != nil {
		t.err = err
		return
	}

	t.balance.Addresses = make(map[string]uint64, len(addrs))
	for i, addr := range addrs {
		sum, err := sumUTXOs(sets[i])
		if err != nil {
			t.err = fmt.Errorf("address %s: %w", addr, err)
			return
		}
		if t.balance.Transparent > math.MaxUint64-sum {
			t.err = fmt.Errorf("%w: transparent balance", ErrAmountOverflow)
			return
		}
		t.balance.Addresses[addr.String()] = sum
		t.balance.Transparent += sum
	}
	t.state = balanceAwaitingNotes
}

func (t *balanceTask) fetchNotes(ctx context.Context) {
	t.state = balanceDone
	if !t.shielded || t.env.notes == nil {
		return
	}
	_, ok, err := t.env.keyring.GetOrchardRawAddress(t.account, true)
	if err != nil {
		t.err = fmt.Errorf("orchard internal address: %w", err)
		return
	}
	if !ok {
		return
	}

	notes, _, err := t.env.notes.GetSpendableNotes(ctx, t.account)
	if err != nil {
		t.err = fmt.Errorf("get spendable notes: %w", err)
		return
	}
	for _, n := range notes {
		if t.balance.Shielded > math.MaxUint64-n.Value {
			t.err = fmt.Errorf("%w: shielded balance", ErrAmountOverflow)
			return
		}
		t.balance.Shielded += n.Value
	}
}
