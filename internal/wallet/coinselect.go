package wallet

import (
	"bytes"
	"fmt"
	"math"
	"sort"

	"github.com/Klingon-tech/zwallet/pkg/tx"
)

// FeeFunc returns the fee for spending n inputs.
type FeeFunc func(n int) uint64

// CoinSelection holds the result of coin selection.
type CoinSelection struct {
	Inputs []UTXO // Selected UTXOs to spend, ascending by value.
	Total  uint64 // Sum of selected input values.
	Fee    uint64 // Fee for len(Inputs) inputs.
	Change uint64 // Change = Total - target - Fee.
}

// CoinSelector picks UTXOs covering target plus the fee for the selection.
type CoinSelector func(utxos []UTXO, target uint64, fee FeeFunc) (*CoinSelection, error)

// SelectSmallestFirst sorts candidates ascending by value and adds them one
// at a time until the running total covers target plus the fee for the
// current input count. The fee is recomputed after every addition.
func SelectSmallestFirst(utxos []UTXO, target uint64, fee FeeFunc) (*CoinSelection, error) {
	if target == 0 {
		return nil, ErrInvalidAmount
	}

	candidates := make([]UTXO, 0, len(utxos))
	for _, u := range utxos {
		if u.Value > 0 {
			candidates = append(candidates, u)
		}
	}
	if len(candidates) == 0 {
		return nil, ErrNoUTXOs
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Value != candidates[j].Value {
			return candidates[i].Value < candidates[j].Value
		}
		if c := bytes.Compare(candidates[i].Outpoint.TxID[:], candidates[j].Outpoint.TxID[:]); c != 0 {
			return c < 0
		}
		return candidates[i].Outpoint.Index < candidates[j].Outpoint.Index
	})

	var total uint64
	for i, u := range candidates {
		if total > math.MaxUint64-u.Value {
			return nil, fmt.Errorf("%w: input total", ErrAmountOverflow)
		}
		total += u.Value
		f := fee(i + 1)
		if f > math.MaxUint64-target {
			return nil, fmt.Errorf("%w: target plus fee", ErrAmountOverflow)
		}
		if total >= target+f {
			return &CoinSelection{
				Inputs: candidates[:i+1],
				Total:  total,
				Fee:    f,
				Change: total - target - f,
			}, nil
		}
	}
	return nil, fmt.Errorf("%w: have %d, need %d plus fee", ErrInsufficientFunds, total, target)
}

// NoteSelection holds the result of note selection.
type NoteSelection struct {
	Inputs []tx.Note
	Total  uint64
	Fee    uint64
	Change uint64
}

// SelectNotes picks notes smallest-first until they cover amount plus the
// Orchard fee for the spend count. Ties are broken by block height and
// nullifier so the result is deterministic.
func SelectNotes(notes []tx.Note, amount uint64) (*NoteSelection, error) {
	return SelectNotesWithFee(notes, amount, tx.OrchardFee)
}

// SelectNotesWithFee is SelectNotes with the fee priced by fee.
func SelectNotesWithFee(notes []tx.Note, amount uint64, fee FeeFunc) (*NoteSelection, error) {
	if amount == 0 {
		return nil, ErrInvalidAmount
	}
	if len(notes) == 0 {
		return nil, ErrNoSpendableNotes
	}

	sorted := append([]tx.Note(nil), notes...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Value != sorted[j].Value {
			return sorted[i].Value < sorted[j].Value
		}
		if sorted[i].BlockID != sorted[j].BlockID {
			return sorted[i].BlockID < sorted[j].BlockID
		}
		return bytes.Compare(sorted[i].Nullifier[:], sorted[j].Nullifier[:]) < 0
	})

	var total uint64
	for i, n := range sorted {
		if total > math.MaxUint64-n.Value {
			return nil, fmt.Errorf("%w: note total", ErrAmountOverflow)
		}
		total += n.Value
		cost := fee(i + 1)
		if amount > math.MaxUint64-cost {
			return nil, fmt.Errorf("%w: amount plus fee", ErrAmountOverflow)
		}
		if total >= amount+cost {
			return &NoteSelection{
				Inputs: sorted[:i+1],
				Total:  total,
				Fee:    cost,
				Change: total - amount - cost,
			}, nil
		}
	}
	return nil, fmt.Errorf("%w: have %d in notes, need %d plus fee", ErrInsufficientFunds, total, amount)
}
