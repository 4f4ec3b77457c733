package wallet

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/Klingon-tech/zwallet/pkg/types"
)

// maxConcurrentFetches bounds in-flight GetUtxoList calls per task.
const maxConcurrentFetches = 8

// accountAddresses lists the account's addresses on both branches up to and
// including the given next-unused keys.
func accountAddresses(k Keyring, receive, change types.KeyID) ([]types.TransparentAddress, error) {
	addrs := make([]types.TransparentAddress, 0, int(receive.Index)+int(change.Index)+2)
	for _, last := range []types.KeyID{receive, change} {
		for i := uint32(0); i <= last.Index; i++ {
			id := types.KeyID{Account: last.Account, Change: last.Change, Index: i}
			addr, err := k.GetAddress(id)
			if err != nil {
				return nil, fmt.Errorf("derive %s: %w", id, err)
			}
			addrs = append(addrs, addr)
		}
	}
	return addrs, nil
}

// fetchUTXOs queries every address concurrently. The result is indexed like
// addrs so the caller sees a stable order regardless of completion order.
func fetchUTXOs(ctx context.Context, e *env, addrs []types.TransparentAddress) ([][]UTXO, error) {
	out := make([][]UTXO, len(addrs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentFetches)
	for i, addr := range addrs {
		i, addr := i, addr
		g.Go(func() error {
			utxos, err := e.chain.GetUtxoList(gctx, e.chainID, addr.String())
			if err != nil {
				return fmt.Errorf("get utxos for %s: %w", addr, err)
			}
			for j := range utxos {
				if utxos[j].Address == "" {
					utxos[j].Address = addr.String()
				}
				if utxos[j].Address != addr.String() {
					return fmt.Errorf("%w: utxo %s belongs to %s, queried %s",
						ErrEmptyResponse, utxos[j].Outpoint, utxos[j].Address, addr)
				}
				if len(utxos[j].Script) == 0 {
					utxos[j].Script = addr.ScriptPubKey()
				}
			}
			out[i] = utxos
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func flattenUTXOs(sets [][]UTXO) []UTXO {
	var n int
	for _, s := range sets {
		n += len(s)
	}
	all := make([]UTXO, 0, n)
	for _, s := range sets {
		all = append(all, s...)
	}
	return all
}

func sumUTXOs(utxos []UTXO) (uint64, error) {
	var total uint64
	for _, u := range utxos {
		if total > math.MaxUint64-u.Value {
			return 0, fmt.Errorf("%w: utxo total", ErrAmountOverflow)
		}
		total += u.Value
	}
	return total, nil
}
