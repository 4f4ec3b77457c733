package wallet

import (
	"context"
	"fmt"

	"github.com/Klingon-tech/zwallet/pkg/tx"
	"github.com/Klingon-tech/zwallet/pkg/types"
)

type toOrchardState int

const (
	toOrchardAwaitingHeight toOrchardState = iota
	toOrchardAwaitingChangeAddress
	toOrchardAwaitingUtxos
	toOrchardSelecting
	toOrchardDone
)

// toOrchardTxTask pays an Orchard receiver from transparent UTXOs. Change
// stays transparent.
type toOrchardTxTask struct {
	env       *env
	selector  CoinSelector
	account   uint32
	recipient types.OrchardAddr
	memo      []byte
	amount    uint64

	state  toOrchardState
	height uint32
	change DiscoveredAddress
	utxos  []UTXO
	result *tx.Transaction
	err    error
}

func newToOrchardTxTask(e *env, selector CoinSelector, account uint32, recipient types.OrchardAddr, memo []byte, amount uint64) *toOrchardTxTask {
	if selector == nil {
		selector = SelectSmallestFirst
	}
	return &toOrchardTxTask{env: e, selector: selector, account: account, recipient: recipient, memo: memo, amount: amount}
}

func (t *toOrchardTxTask) run(ctx context.Context) (*tx.Transaction, error) {
	for {
		if t.err != nil {
			return nil, t.err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		switch t.state {
		case toOrchardAwaitingHeight:
			t.fetchHeight(ctx)
		case toOrchardAwaitingChangeAddress:
			t.discoverChange(ctx)
		case toOrchardAwaitingUtxos:
			t.fetchUtxos(ctx)
		case toOrchardSelecting:
			t.selectAndAssemble()
		case toOrchardDone:
			return t.result, nil
		}
	}
}

func (t *toOrchardTxTask) fetchHeight(ctx context.Context) {
	if len(t.memo) > tx.MaxMemoSize {
		t.err = fmt.Errorf("%w: %d bytes, max %d", tx.ErrMemoTooLarge, len(t.memo), tx.MaxMemoSize)
		return
	}
	height, err := t.env.chain.GetLatestBlockHeight(ctx, t.env.chainID)
	if err != nil {
		t.err = fmt.Errorf("get block height: %w", err)
		return
	}
	t.height = height
	t.state = toOrchardAwaitingChangeAddress
}

func (t *toOrchardTxTask) discoverChange(ctx context.Context) {
	change, err := newDiscoveryTask(t.env, t.account, true, nil).run(ctx)
	if err != nil {
		t.err = fmt.Errorf("discover change address: %w", err)
		return
	}
	t.change = change
	t.state = toOrchardAwaitingUtxos
}

func (t *toOrchardTxTask) fetchUtxos(ctx context.Context) {
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
	t.state = toOrchardSelecting
}

func (t *toOrchardTxTask) selectAndAssemble() {
	sel, err := t.selector(t.utxos, t.amount, tx.TransparentToOrchardFee)
	if err != nil {
		t.err = fmt.Errorf("select inputs: %w", err)
		return
	}
	to, err := types.NewOrchardUnifiedAddress(t.env.net, t.recipient).Encode()
	if err != nil {
		t.err = fmt.Errorf("encode recipient: %w", err)
		return
	}

	b := tx.NewBuilder().
		SetLockTime(t.height).
		SetFee(sel.Fee).
		SetRecipient(to, t.amount)
	for _, u := range sel.Inputs {
		b.AddTransparentInput(u.Outpoint, u.Value, u.Address, u.Script)
	}
	if sel.Change > 0 {
		b.AddTransparentOutput(t.change.Address.String(), sel.Change, t.change.Address.ScriptPubKey())
	}
	b.AddOrchardOutput(t.recipient, t.amount, t.memo)

	t.result = b.Build()
	t.env.log.Debug().
		Uint32("account", t.account).
		Int("inputs", len(sel.Inputs)).
		Uint64("fee", sel.Fee).
		Uint64("change", sel.Change).
		Msg("Built transparent to orchard transaction")
	t.state = toOrchardDone
}

type fromOrchardState int

const (
	fromOrchardCheckingDestination fromOrchardState = iota
	fromOrchardAwaitingHeight
	fromOrchardAwaitingNotes
	fromOrchardSelecting
	fromOrchardDone
)

// fromOrchardTxTask pays a transparent address from spendable notes. Change
// goes back to the account's internal Orchard address.
type fromOrchardTxTask struct {
	env     *env
	account uint32
	to      string
	amount  uint64

	state    fromOrchardState
	dest     types.TransparentAddress
	height   uint32
	internal types.OrchardAddr
	notes    []tx.Note
	anchor   uint32
	result   *tx.Transaction
	err      error
}

func newFromOrchardTxTask(e *env, account uint32, to string, amount uint64) *fromOrchardTxTask {
	return &fromOrchardTxTask{env: e, account: account, to: to, amount: amount}
}

func (t *fromOrchardTxTask) run(ctx context.Context) (*tx.Transaction, error) {
	for {
		if t.err != nil {
			return nil, t.err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		switch t.state {
		case fromOrchardCheckingDestination:
			t.checkDestination()
		case fromOrchardAwaitingHeight:
			t.fetchHeight(ctx)
		case fromOrchardAwaitingNotes:
			t.fetchNotes(ctx)
		case fromOrchardSelecting:
			t.selectAndAssemble()
		case fromOrchardDone:
			return t.result, nil
		}
	}
}

func (t *fromOrchardTxTask) checkDestination() {
	dest, err := parseTransparentDestination(t.env.net, t.to)
	if err != nil {
		t.err = err
		return
	}
	t.dest = dest
	t.state = fromOrchardAwaitingHeight
}

func (t *fromOrchardTxTask) fetchHeight(ctx context.Context) {
	height, err := t.env.chain.GetLatestBlockHeight(ctx, t.env.chainID)
	if err != nil {
		t.err = fmt.Errorf("get block height: %w", err)
		return
	}
	t.height = height
	t.state = fromOrchardAwaitingNotes
}

func (t *fromOrchardTxTask) fetchNotes(ctx context.Context) {
	internal, ok, err := t.env.keyring.GetOrchardRawAddress(t.account, true)
	if err != nil {
		t.err = fmt.Errorf("orchard internal address: %w", err)
		return
	}
	if !ok {
		t.err = fmt.Errorf("%w: account %d", ErrNoInternalAddress, t.account)
		return
	}
	t.internal = internal

	notes, anchor, err := t.env.notes.GetSpendableNotes(ctx, t.account)
	if err != nil {
		t.err = err
		return
	}
	if len(notes) == 0 {
		t.err = fmt.Errorf("%w: account %d", ErrNoSpendableNotes, t.account)
		return
	}
	t.notes, t.anchor = notes, anchor
	t.state = fromOrchardSelecting
}

func (t *fromOrchardTxTask) selectAndAssemble() {
	sel, err := SelectNotesWithFee(t.notes, t.amount, tx.OrchardToTransparentFee)
	if err != nil {
		t.err = fmt.Errorf("select notes: %w", err)
		return
	}
	value, err := recipientValue(sel.Total, sel.Fee, sel.Change)
	if err != nil {
		t.err = err
		return
	}

	b := tx.NewBuilder().
		SetLockTime(t.height).
		SetFee(sel.Fee).
		SetAnchor(t.anchor).
		SetRecipient(t.to, value)
	for _, n := range sel.Inputs {
		b.AddOrchardInput(n)
	}
	b.AddTransparentOutput(t.dest.String(), value, t.dest.ScriptPubKey())
	if sel.Change > 0 {
		b.AddOrchardOutput(t.internal, sel.Change, nil)
	}

	t.result = b.Build()
	t.env.log.Debug().
		Uint32("account", t.account).
		Int("spends", len(sel.Inputs)).
		Uint64("fee", sel.Fee).
		Uint64("change", sel.Change).
		Msg("Built orchard to transparent transaction")
	t.state = fromOrchardDone
}
