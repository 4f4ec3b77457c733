package wallet

import (
	"context"
	"fmt"

	"github.com/Klingon-tech/zwallet/pkg/tx"
	"github.com/Klingon-tech/zwallet/pkg/types"
)

type shieldedState int

const (
	shieldedAwaitingHeight shieldedState = iota
	shieldedAwaitingNotes
	shieldedSelecting
	shieldedAssembling
	shieldedDone
)

// shieldedTxTask builds an Orchard-to-Orchard payment from the account's
// spendable notes.
type shieldedTxTask struct {
	env       *env
	account   uint32
	recipient types.OrchardAddr
	memo      []byte
	amount    uint64

	state    shieldedState
	height   uint32
	internal types.OrchardAddr
	notes    []tx.Note
	anchor   uint32
	sel      *NoteSelection
	result   *tx.Transaction
	err      error
}

func newShieldedTxTask(e *env, account uint32, recipient types.OrchardAddr, memo []byte, amount uint64) *shieldedTxTask {
	return &shieldedTxTask{env: e, account: account, recipient: recipient, memo: memo, amount: amount}
}

func (t *shieldedTxTask) run(ctx context.Context) (*tx.Transaction, error) {
	for {
		if t.err != nil {
			return nil, t.err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		switch t.state {
		case shieldedAwaitingHeight:
			t.fetchHeight(ctx)
		case shieldedAwaitingNotes:
			t.fetchNotes(ctx)
		case shieldedSelecting:
			t.selectNotes()
		case shieldedAssembling:
			t.assemble()
		case shieldedDone:
			return t.result, nil
		}
	}
}

func (t *shieldedTxTask) fetchHeight(ctx context.Context) {
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
	t.state = shieldedAwaitingNotes
}

func (t *shieldedTxTask) fetchNotes(ctx context.Context) {
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
		// Passed through untouched so callers see the store's own message.
		t.err = err
		return
	}
	if len(notes) == 0 {
		t.err = fmt.Errorf("%w: account %d", ErrNoSpendableNotes, t.account)
		return
	}
	t.notes, t.anchor = notes, anchor
	t.env.log.Debug().
		Uint32("account", t.account).
		Int("notes", len(notes)).
		Uint32("anchor", anchor).
		Msg("Fetched spendable notes")
	t.state = shieldedSelecting
}

func (t *shieldedTxTask) selectNotes() {
	sel, err := SelectNotes(t.notes, t.amount)
	if err != nil {
		t.err = fmt.Errorf("select notes: %w", err)
		return
	}
	t.sel = sel
	t.state = shieldedAssembling
}

func (t *shieldedTxTask) assemble() {
	to, err := types.NewOrchardUnifiedAddress(t.env.net, t.recipient).Encode()
	if err != nil {
		t.err = fmt.Errorf("encode recipient: %w", err)
		return
	}

	value, err := recipientValue(t.sel.Total, t.sel.Fee, t.sel.Change)
	if err != nil {
		t.err = err
		return
	}

	b := tx.NewBuilder().
		SetLockTime(t.height).
		SetFee(t.sel.Fee).
		SetAnchor(t.anchor).
		SetRecipient(to, value)
	for _, n := range t.sel.Inputs {
		b.AddOrchardInput(n)
	}
	if t.sel.Change > 0 {
		b.AddOrchardOutput(t.internal, t.sel.Change, nil)
	}
	b.AddOrchardOutput(t.recipient, value, t.memo)

	t.result = b.Build()
	t.env.log.Debug().
		Uint32("account", t.account).
		Int("spends", len(t.sel.Inputs)).
		Uint64("fee", t.sel.Fee).
		Uint64("change", t.sel.Change).
		Msg("Built shielded transaction")
	t.state = shieldedDone
}

// recipientValue returns total - fee - change, failing instead of wrapping.
func recipientValue(total, fee, change uint64) (uint64, error) {
	if fee > total || change > total-fee {
		return 0, fmt.Errorf("%w: total %d, fee %d, change %d", ErrAmountUnderflow, total, fee, change)
	}
	return total - fee - change, nil
}
