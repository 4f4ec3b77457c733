package wallet

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Klingon-tech/zwallet/pkg/tx"
	"github.com/Klingon-tech/zwallet/pkg/types"
)

// Mainnet t-address and a testnet one.
const (
	mainnetTAddr = "t1JP7PHu72xHztsZiwH6cye4yvC9Prb3EvQ"
	testnetTAddr = "tmP3uLtGx5GPddkq8a6ddmXhqJJ3vy6tpTE"
	// Mainnet unified address with transparent and sapling receivers.
	mainnetUAWithTransparent = "u1lmy8anuylj33arxh3sx7ysq54tuw7zehsv6pdeeaqlrhkjhm3uvl9egqxqfd7hcsp3mszp6jxxx0gsw0ldp5wyu95r4mfzlueh8h5xhrjqgz7xtxp3hvw45dn4gfrz5j54ryg6reyf0"
	// Mainnet unified address with only a sapling receiver.
	mainnetUASaplingOnly = "u187vrwl4ampyxd5m6aj38n4ndkmj8v6gs97hkt23aps3sn5k89a0gk2smluexgdprcrtm56ezc5c7tjwlrnnl79tjtrxmqd42c5mpyz7g"
)

func TestBuildTransparent_TwoInputsWithChange(t *testing.T) {
	f := newFixture(t, false)
	f.keyring.next[0] = [2]uint32{1, 0}
	f.chain.addUTXO(f.receive(0, 0), 70000)
	f.chain.addUTXO(f.receive(0, 1), 80000)

	got, err := f.svc.BuildTransparentTransaction(context.Background(), 0, mainnetTAddr, 100000)
	require.NoError(t, err)

	fee := tx.TransparentFee(2)
	require.Equal(t, uint64(10000), fee)
	require.Equal(t, fee, got.Fee)
	require.Equal(t, uint32(1000), got.LockTime)
	require.Len(t, got.Transparent.Inputs, 2)
	require.Equal(t, uint64(70000), got.Transparent.Inputs[0].Value)
	require.Equal(t, uint64(80000), got.Transparent.Inputs[1].Value)

	require.Len(t, got.Transparent.Outputs, 2)
	require.Equal(t, mainnetTAddr, got.Transparent.Outputs[0].Address)
	require.Equal(t, uint64(100000), got.Transparent.Outputs[0].Value)
	require.Equal(t, f.change(0, 0).String(), got.Transparent.Outputs[1].Address)
	require.Equal(t, uint64(70000+80000-100000)-fee, got.Transparent.Outputs[1].Value)

	require.NoError(t, got.ValidateAmounts())
}

func TestBuildTransparent_NoChangeOutputWhenExact(t *testing.T) {
	f := newFixture(t, false)
	fee := tx.TransparentFee(1)
	f.chain.addUTXO(f.receive(0, 0), 50000+fee)

	got, err := f.svc.BuildTransparentTransaction(context.Background(), 0, mainnetTAddr, 50000)
	require.NoError(t, err)
	require.Len(t, got.Transparent.Outputs, 1)
	require.Equal(t, uint64(50000), got.Transparent.Outputs[0].Value)
}

func TestBuildTransparent_InsufficientFunds(t *testing.T) {
	f := newFixture(t, false)
	f.chain.addUTXO(f.receive(0, 0), 60000)
	f.chain.addUTXO(f.receive(0, 0), 45000)

	got, err := f.svc.BuildTransparentTransaction(context.Background(), 0, mainnetTAddr, 100000)
	require.ErrorIs(t, err, ErrInsufficientFunds)
	require.True(t, IsRecoverable(err))
	require.Nil(t, got)
}

func TestBuildTransparent_SpendsDiscoveredChange(t *testing.T) {
	f := newFixture(t, false)
	// Change index 0 has history and still holds a UTXO.
	f.chain.known[f.change(0, 0).String()] = true
	f.chain.addUTXO(f.change(0, 0), 200000)

	got, err := f.svc.BuildTransparentTransaction(context.Background(), 0, mainnetTAddr, 100000)
	require.NoError(t, err)
	require.Len(t, got.Transparent.Inputs, 1)
	require.Equal(t, f.change(0, 0).String(), got.Transparent.Inputs[0].Address)
	// New change goes to the next unused change address.
	require.Equal(t, f.change(0, 1).String(), got.Transparent.Outputs[1].Address)
	require.Contains(t, f.chain.utxoCalls, f.change(0, 1).String())
}

func TestBuildTransparent_UnifiedDestination(t *testing.T) {
	f := newFixture(t, false)
	f.chain.addUTXO(f.receive(0, 0), 500000)

	got, err := f.svc.BuildTransparentTransaction(context.Background(), 0, mainnetUAWithTransparent, 100000)
	require.NoError(t, err)

	ua, err := types.ParseUnifiedAddress(mainnetUAWithTransparent)
	require.NoError(t, err)
	taddr, ok := ua.Transparent()
	require.True(t, ok)
	require.Equal(t, taddr.String(), got.Transparent.Outputs[0].Address)
	require.Equal(t, taddr.ScriptPubKey(), got.Transparent.Outputs[0].Script)
	require.Equal(t, mainnetUAWithTransparent, got.To)
}

func TestBuildTransparent_DestinationErrors(t *testing.T) {
	tests := []struct {
		name string
		to   string
		want error
	}{
		{"testnet address", testnetTAddr, ErrNetworkMismatch},
		{"garbage", "t1xxx", ErrInvalidAddress},
		{"no transparent receiver", mainnetUASaplingOnly, ErrInvalidAddress},
		{"bad checksum", mainnetUAWithTransparent[:len(mainnetUAWithTransparent)-1] + "1", ErrInvalidAddress},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, false)
			f.chain.addUTXO(f.receive(0, 0), 500000)

			_, err := f.svc.BuildTransparentTransaction(context.Background(), 0, tt.to, 1000)
			require.ErrorIs(t, err, tt.want)
			require.Zero(t, f.chain.heightCalls, "destination is checked before any chain call")
			require.Empty(t, f.chain.knownCalls)
			require.Empty(t, f.chain.utxoCalls)
		})
	}
}

func TestBuildTransparent_HeightFailure(t *testing.T) {
	f := newFixture(t, false)
	f.chain.heightErr = errors.New("connection refused")

	_, err := f.svc.BuildTransparentTransaction(context.Background(), 0, mainnetTAddr, 1000)
	require.ErrorContains(t, err, "connection refused")
	require.False(t, IsRecoverable(err))
	require.Empty(t, f.chain.utxoCalls)
}

func TestBuildTransparent_UtxoFailure(t *testing.T) {
	f := newFixture(t, false)
	f.chain.utxoErr = errors.New("backend overloaded")

	_, err := f.svc.BuildTransparentTransaction(context.Background(), 0, mainnetTAddr, 1000)
	require.ErrorContains(t, err, "backend overloaded")
}

func TestBuildTransparent_CustomSelector(t *testing.T) {
	f := newFixture(t, false)
	f.chain.addUTXO(f.receive(0, 0), 30000)
	f.chain.addUTXO(f.receive(0, 0), 900000)

	largestFirst := func(utxos []UTXO, target uint64, fee FeeFunc) (*CoinSelection, error) {
		best := utxos[0]
		for _, u := range utxos[1:] {
			if u.Value > best.Value {
				best = u
			}
		}
		cost := fee(1)
		if best.Value < target+cost {
			return nil, ErrInsufficientFunds
		}
		return &CoinSelection{Inputs: []UTXO{best}, Total: best.Value, Fee: cost, Change: best.Value - target - cost}, nil
	}
	svc, err := NewService(Config{ChainID: testChainID, Selector: largestFirst}, f.chain, f.keyring, nil)
	require.NoError(t, err)

	got, err := svc.BuildTransparentTransaction(context.Background(), 0, mainnetTAddr, 10000)
	require.NoError(t, err)
	require.Len(t, got.Transparent.Inputs, 1)
	require.Equal(t, uint64(900000), got.Transparent.Inputs[0].Value)
}

func TestBuildTransparent_ConservesValue(t *testing.T) {
	values := []uint64{1200, 5000, 17000, 17000, 33000, 64000, 250000}
	for _, amount := range []uint64{1, 999, 20000, 60000, 100000, 300000} {
		f := newFixture(t, false)
		for _, v := range values {
			f.chain.addUTXO(f.receive(0, 0), v)
		}

		got, err := f.svc.BuildTransparentTransaction(context.Background(), 0, mainnetTAddr, amount)
		require.NoError(t, err, "amount %d", amount)

		in, err := got.TotalInputValue()
		require.NoError(t, err)
		require.GreaterOrEqual(t, in, amount+tx.TransparentFee(len(got.Transparent.Inputs)))
		var change uint64
		if len(got.Transparent.Outputs) == 2 {
			change = got.Transparent.Outputs[1].Value
		}
		require.Equal(t, in, amount+got.Fee+change, "amount %d", amount)
	}
}
