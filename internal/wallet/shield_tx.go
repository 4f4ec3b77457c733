package wallet

import (
	"context"
	"fmt"

	"github.com/Klingon-tech/zwallet/pkg/tx"
	"github.com/Klingon-tech/zwallet/pkg/types"
)

type shieldState int

const (
	shieldAwaitingHeight shieldState = iota
	shieldAwaitingUtxos
	shieldAssembling
	shieldDone
)

// shieldTask moves every transparent UTXO of an account into one Orchard
// note at the account's internal address.
type shieldTask struct {
	env     *env
	account uint32

	state    shieldState
	height   uint32
	internal types.OrchardAddr
	utxos    []UTXO
	result   *tx.Transaction
	err      error
}

func newShieldTask(e *env, account uint32) *shieldTask {
	return &shieldTask{env: e, account: account}
}

func (t *shieldTask) run(ctx context.Context) (*tx.Transaction, error) {
	for {
		if t.err != nil {
			return nil, t.err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		switch t.state {
		case shieldAwaitingHeight:
			t.fetchHeight(ctx)
		case shieldAwaitingUtxos:
			t.fetchUtxos(ctx)
		case shieldAssembling:
			t.assemble()
		case shieldDone:
			return t.result, nil
		}
	}
}

func (t *shieldTask) fetchHeight(ctx context.Context) {
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

	height, err := t.env.chain.GetLatestBlockHeight(ctx, t.env.chainID)
	if err != nil {
		t.err = fmt.Errorf("get block height: %w", err)
		return
	}
	t.height = height
	t.state = shieldAwaitingUtxos
}

func (t *shieldTask) fetchUtxos(ctx context.Context) {
	receive, change, err := discoverAll(ctx, t.env, t.account)
	if err != nil {
		t.err = err
		return
	}
	addrs, err := accountAddresses(t.env.keyring, receive.Key, change.Key)
	if err != nil {
		t.err = err
		return
	}
	sets, err := fetchUTXOs(ctx, t.env, addrs)
	if err != nil {
		t.err = err
		return
	}
	for _, u := range flattenUTXOs(sets) {
		if u.Value > 0 {
			t.utxos = append(t.utxos, u)
		}
	}
	if len(t.utxos) == 0 {
		t.err = fmt.Errorf("%w: account %d", ErrNoUTXOs, t.account)
		return
	}
	t.state = shieldAssembling
}

func (t *shieldTask) assemble() {
	total, err := sumUTXOs(t.utxos)
	if err != nil {
		t.err = err
		return
	}
	fee := tx.ShieldingFee(len(t.utxos))
	if total <= fee {
		t.err = fmt.Errorf("%w: have %d, shielding fee is %d", ErrInsufficientFunds, total, fee)
		return
	}
	to, err := types.NewOrchardUnifiedAddress(t.env.net, t.internal).Encode()
	if err != nil {
		t.err = fmt.Errorf("encode internal address: %w", err)
		return
	}

	b := tx.NewBuilder().
		SetLockTime(t.height).
		SetFee(fee).
		SetRecipient(to, total-fee)
	for _, u := range t.utxos {
		b.AddTransparentInput(u.Outpoint, u.Value, u.Address, u.Script)
	}
	b.AddOrchardOutput(t.internal, total-fee, nil)

	t.result = b.Build()
	t.env.log.Debug().
		Uint32("account", t.account).
		Int("inputs", len(t.utxos)).
		Uint64("fee", fee).
		Msg("Built shielding transaction")
	t.state = shieldDone
}
