package wallet

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Klingon-tech/zwallet/pkg/tx"
	"github.com/Klingon-tech/zwallet/pkg/types"
)

func TestBuildToOrchard_ChangeStaysTransparent(t *testing.T) {
	f := newFixture(t, true)
	f.chain.addUTXO(f.receive(0, 0), 200000)

	memo := make([]byte, tx.MaxMemoSize)
	for i := range memo {
		memo[i] = 'a'
	}
	got, err := f.svc.BuildTransparentToOrchardTransaction(context.Background(), 0, externalOrchard, memo, 100000)
	require.NoError(t, err)

	fee := tx.TransparentToOrchardFee(1)
	require.Equal(t, uint64(15000), fee)
	require.Equal(t, fee, got.Fee)
	require.Equal(t, uint32(1000), got.LockTime)
	require.Len(t, got.Transparent.Inputs, 1)
	require.Empty(t, got.Orchard.Inputs)

	require.Len(t, got.Orchard.Outputs, 1)
	require.Equal(t, externalOrchard, got.Orchard.Outputs[0].Addr)
	require.Equal(t, uint64(100000), got.Orchard.Outputs[0].Value)
	require.Equal(t, memo, got.Orchard.Outputs[0].Memo)

	require.Len(t, got.Transparent.Outputs, 1)
	require.Equal(t, f.change(0, 0).String(), got.Transparent.Outputs[0].Address)
	require.Equal(t, uint64(85000), got.Transparent.Outputs[0].Value)

	want, err := types.NewOrchardUnifiedAddress(types.Mainnet, externalOrchard).Encode()
	require.NoError(t, err)
	require.Equal(t, want, got.To)
	require.NoError(t, got.ValidateAmounts())
}

func TestBuildToOrchard_Errors(t *testing.T) {
	t.Run("memo too large", func(t *testing.T) {
		f := newFixture(t, true)
		f.chain.addUTXO(f.receive(0, 0), 200000)
		_, err := f.svc.BuildTransparentToOrchardTransaction(context.Background(), 0, externalOrchard,
			make([]byte, tx.MaxMemoSize+1), 1000)
		require.ErrorIs(t, err, tx.ErrMemoTooLarge)
		require.Zero(t, f.chain.heightCalls)
	})
	t.Run("insufficient", func(t *testing.T) {
		f := newFixture(t, true)
		f.chain.addUTXO(f.receive(0, 0), 110000)
		_, err := f.svc.BuildTransparentToOrchardTransaction(context.Background(), 0, externalOrchard, nil, 100000)
		require.ErrorIs(t, err, ErrInsufficientFunds)
	})
	t.Run("pool disabled", func(t *testing.T) {
		f := newFixture(t, false)
		_, err := f.svc.BuildTransparentToOrchardTransaction(context.Background(), 0, externalOrchard, nil, 1000)
		require.ErrorIs(t, err, ErrShieldedDisabled)
	})
}

func TestBuildFromOrchard_ChangeReturnsToInternal(t *testing.T) {
	f := newFixture(t, true)
	f.notes.add(0, 400000, 500000)

	got, err := f.svc.BuildOrchardToTransparentTransaction(context.Background(), 0, mainnetTAddr, 700000)
	require.NoError(t, err)

	fee := tx.OrchardToTransparentFee(2)
	require.Equal(t, uint64(15000), fee)
	require.Equal(t, fee, got.Fee)
	require.Equal(t, uint32(990), got.Orchard.AnchorBlockID)
	require.Len(t, got.Orchard.Inputs, 2)
	require.Empty(t, got.Transparent.Inputs)

	require.Len(t, got.Transparent.Outputs, 1)
	require.Equal(t, mainnetTAddr, got.Transparent.Outputs[0].Address)
	require.Equal(t, uint64(700000), got.Transparent.Outputs[0].Value)
	require.NotEmpty(t, got.Transparent.Outputs[0].Script)

	internal, _, _ := f.keyring.GetOrchardRawAddress(0, true)
	require.Len(t, got.Orchard.Outputs, 1)
	require.Equal(t, internal, got.Orchard.Outputs[0].Addr)
	require.Equal(t, uint64(900000-700000)-fee, got.Orchard.Outputs[0].Value)

	require.Equal(t, mainnetTAddr, got.To)
	require.Equal(t, uint64(700000), got.Amount)
	require.NoError(t, got.ValidateAmounts())
}

func TestBuildFromOrchard_UnifiedDestination(t *testing.T) {
	f := newFixture(t, true)
	f.notes.add(0, 300000)

	got, err := f.svc.BuildOrchardToTransparentTransaction(context.Background(), 0, mainnetUAWithTransparent, 100000)
	require.NoError(t, err)

	ua, err := types.ParseUnifiedAddress(mainnetUAWithTransparent)
	require.NoError(t, err)
	taddr, _ := ua.Transparent()
	require.Equal(t, taddr.String(), got.Transparent.Outputs[0].Address)
}

func TestBuildFromOrchard_Errors(t *testing.T) {
	tests := []struct {
		name  string
		to    string
		notes []uint64
		want  error
	}{
		{"testnet address", testnetTAddr, []uint64{300000}, ErrNetworkMismatch},
		{"garbage", "t1xxx", []uint64{300000}, ErrInvalidAddress},
		{"no notes", mainnetTAddr, nil, ErrNoSpendableNotes},
		{"insufficient", mainnetTAddr, []uint64{50000, 60000}, ErrInsufficientFunds},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, true)
			f.notes.add(0, tt.notes...)

			_, err := f.svc.BuildOrchardToTransparentTransaction(context.Background(), 0, tt.to, 100000)
			require.ErrorIs(t, err, tt.want)
			require.Empty(t, f.svc.Tasks())
		})
	}
}

func TestSelectNotesWithFee(t *testing.T) {
	notes := []tx.Note{{Value: 20000, Nullifier: types.Hash{1}}, {Value: 10000, Nullifier: types.Hash{2}}}

	sel, err := SelectNotesWithFee(notes, 12000, tx.OrchardToTransparentFee)
	require.NoError(t, err)
	require.Len(t, sel.Inputs, 2)
	require.Equal(t, uint64(15000), sel.Fee)
	require.Equal(t, uint64(30000-12000-15000), sel.Change)

	plain, err := SelectNotes(notes, 12000)
	require.NoError(t, err)
	require.Len(t, plain.Inputs, 2)
	require.Equal(t, tx.OrchardFee(2), plain.Fee)
	require.Equal(t, uint64(30000-12000)-tx.OrchardFee(2), plain.Change)
}
