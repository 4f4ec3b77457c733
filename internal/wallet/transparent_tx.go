package wallet

import (
	"context"
	"fmt"
	"strings"

	"github.com/Klingon-tech/zwallet/pkg/tx"
	"github.com/Klingon-tech/zwallet/pkg/types"
)

type transparentState int

const (
	transparentCheckingDestination transparentState = iota
	transparentAwaitingHeight
	transparentAwaitingChangeAddress
	transparentAwaitingUtxos
	transparentSelecting
	transparentDone
)

// transparentTxTask builds a transparent-to-transparent payment.
type transparentTxTask struct {
	env      *env
	selector CoinSelector
	account  uint32
	to       string
	amount   uint64

	state  transparentState
	dest   types.TransparentAddress
	height uint32
	change DiscoveredAddress
	utxos  []UTXO
	result *tx.Transaction
	err    error
}

func newTransparentTxTask(e *env, selector CoinSelector, account uint32, to string, amount uint64) *transparentTxTask {
	if selector == nil {
		selector = SelectSmallestFirst
	}
	return &transparentTxTask{env: e, selector: selector, account: account, to: to, amount: amount}
}

func (t *transparentTxTask) run(ctx context.Context) (*tx.Transaction, error) {
	for {
		if t.err != nil {
			return nil, t.err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		switch t.state {
		case transparentCheckingDestination:
			t.checkDestination()
		case transparentAwaitingHeight:
			t.fetchHeight(ctx)
		case transparentAwaitingChangeAddress:
			t.discoverChange(ctx)
		case transparentAwaitingUtxos:
			t.fetchUtxos(ctx)
		case transparentSelecting:
			t.selectAndAssemble()
		case transparentDone:
			return t.result, nil
		}
	}
}

func (t *transparentTxTask) checkDestination() {
	dest, err := parseTransparentDestination(t.env.net, t.to)
	if err != nil {
		t.err = err
		return
	}
	t.dest = dest
	t.state = transparentAwaitingHeight
}

func (t *transparentTxTask) fetchHeight(ctx context.Context) {
	height, err := t.env.chain.GetLatestBlockHeight(ctx, t.env.chainID)
	if err != nil {
		t.err = fmt.Errorf("get block height: %w", err)
		return
	}
	t.height = height
	t.state = transparentAwaitingChangeAddress
}

func (t *transparentTxTask) discoverChange(ctx context.Context) {
	change, err := newDiscoveryTask(t.env, t.account, true, nil).run(ctx)
	if err != nil {
		t.err = fmt.Errorf("discover change address: %w", err)
		return
	}
	t.change = change
	t.state = transparentAwaitingUtxos
}

func (t *transparentTxTask) fetchUtxos(ctx context.Context) {
	receive, err := t.env.keyring.NextUnusedKey(t.account, false)
	if err != nil {
		t.err = fmt.Errorf("next unused key: %w", err)
		return
	}
	addrs, err := accountAddresses(t.env.keyring, receive, t.change.Key)
	if err != nil {
		t.err = err
		return
	}
	sets, err := fetchUTXOs(ctx, t.env, addrs)
	if err != nil {
		t.err = err
		return
	}
	t.utxos = flattenUTXOs(sets)
	t.env.log.Debug().
		Uint32("account", t.account).
		Int("addresses", len(addrs)).
		Int("utxos", len(t.utxos)).
		Msg("Fetched UTXOs")
	t.state = transparentSelecting
}

func (t *transparentTxTask) selectAndAssemble() {
	sel, err := t.selector(t.utxos, t.amount, tx.TransparentFee)
	if err != nil {
		t.err = fmt.Errorf("select inputs: %w", err)
		return
	}

	b := tx.NewBuilder().
		SetLockTime(t.height).
		SetFee(sel.Fee).
		SetRecipient(t.to, t.amount)
	for _, u := range sel.Inputs {
		b.AddTransparentInput(u.Outpoint, u.Value, u.Address, u.Script)
	}
	b.AddTransparentOutput(t.dest.String(), t.amount, t.dest.ScriptPubKey())
	if sel.Change > 0 {
		b.AddTransparentOutput(t.change.Address.String(), sel.Change, t.change.Address.ScriptPubKey())
	}

	t.result = b.Build()
	t.env.log.Debug().
		Uint32("account", t.account).
		Int("inputs", len(sel.Inputs)).
		Uint64("fee", sel.Fee).
		Uint64("change", sel.Change).
		Msg("Built transparent transaction")
	t.state = transparentDone
}

func isUnifiedString(s string) bool {
	return strings.HasPrefix(s, types.MainnetUnifiedHRP+"1") || strings.HasPrefix(s, types.TestnetUnifiedHRP+"1")
}

// parseTransparentDestination accepts a t-address or a unified address with a
// transparent receiver, on net.
func parseTransparentDestination(net types.Network, to string) (types.TransparentAddress, error) {
	if isUnifiedString(to) {
		ua, err := types.ParseUnifiedAddress(to)
		if err != nil {
			return types.TransparentAddress{}, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
		}
		if ua.Network != net {
			return types.TransparentAddress{}, fmt.Errorf("%w: %s address on %s", ErrNetworkMismatch, ua.Network, net)
		}
		addr, ok := ua.Transparent()
		if !ok {
			return types.TransparentAddress{}, fmt.Errorf("%w: unified address has no transparent receiver", ErrInvalidAddress)
		}
		return addr, nil
	}

	addr, err := types.ParseTransparentAddress(to)
	if err != nil {
		return types.TransparentAddress{}, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if addr.Network != net {
		return types.TransparentAddress{}, fmt.Errorf("%w: %s address on %s", ErrNetworkMismatch, addr.Network, net)
	}
	return addr, nil
}
