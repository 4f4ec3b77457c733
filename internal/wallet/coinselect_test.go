package wallet

import (
	"errors"
	"testing"

	"github.com/Klingon-tech/zwallet/pkg/tx"
	"github.com/Klingon-tech/zwallet/pkg/types"
)

func makeUTXOs(values ...uint64) []UTXO {
	utxos := make([]UTXO, len(values))
	for i, v := range values {
		utxos[i] = UTXO{
			Outpoint: types.Outpoint{TxID: types.Hash{byte(i + 1)}, Index: 0},
			Value:    v,
		}
	}
	return utxos
}

func noFee(int) uint64 { return 0 }

func makeNotes(values ...uint64) []tx.Note {
	notes := make([]tx.Note, len(values))
	for i, v := range values {
		notes[i] = tx.Note{
			BlockID:   uint32(100 + i),
			Value:     v,
			Nullifier: types.Hash{0xee, byte(i + 1)},
		}
	}
	return notes
}

func TestSelectSmallestFirst_ExactMatch(t *testing.T) {
	utxos := makeUTXOs(3000, 1000, 2000)
	sel, err := SelectSmallestFirst(utxos, 3000, noFee)
	if err != nil {
		t.Fatalf("SelectSmallestFirst: %v", err)
	}
	// 1000 + 2000 reaches the target before 3000 is considered.
	if sel.Total != 3000 || sel.Change != 0 {
		t.Errorf("total/change = %d/%d, want 3000/0", sel.Total, sel.Change)
	}
	if len(sel.Inputs) != 2 {
		t.Errorf("inputs = %d, want 2", len(sel.Inputs))
	}
	if sel.Inputs[0].Value != 1000 || sel.Inputs[1].Value != 2000 {
		t.Errorf("inputs not ascending: %d, %d", sel.Inputs[0].Value, sel.Inputs[1].Value)
	}
}

func TestSelectSmallestFirst_FeeRecomputedPerInput(t *testing.T) {
	// Two inputs cost 10000, three cost 15000.
	utxos := makeUTXOs(70000, 80000)
	sel, err := SelectSmallestFirst(utxos, 100000, tx.TransparentFee)
	if err != nil {
		t.Fatalf("SelectSmallestFirst: %v", err)
	}
	if len(sel.Inputs) != 2 {
		t.Fatalf("inputs = %d, want 2", len(sel.Inputs))
	}
	if sel.Fee != 10000 {
		t.Errorf("fee = %d, want 10000", sel.Fee)
	}
	if sel.Change != 40000 {
		t.Errorf("change = %d, want 40000", sel.Change)
	}

	// 3 x 38000 = 114000 covers 100000 but not 100000 + 15000.
	_, err = SelectSmallestFirst(makeUTXOs(38000, 38000, 38000), 100000, tx.TransparentFee)
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Errorf("expected ErrInsufficientFunds, got: %v", err)
	}
}

func TestSelectSmallestFirst_Sufficiency(t *testing.T) {
	// 52400 in total; every target below needs all seven inputs (fee 35000).
	utxos := makeUTXOs(500, 12000, 3000, 7000, 900, 25000, 4000)
	for _, target := range []uint64{1, 1000, 9999, 17400} {
		sel, err := SelectSmallestFirst(utxos, target, tx.TransparentFee)
		if err != nil {
			t.Fatalf("target %d: %v", target, err)
		}
		if sel.Total < target+tx.TransparentFee(len(sel.Inputs)) {
			t.Errorf("target %d: total %d does not cover fee %d", target, sel.Total, sel.Fee)
		}
		if sel.Total != target+sel.Fee+sel.Change {
			t.Errorf("target %d: total %d != target + fee %d + change %d", target, sel.Total, sel.Fee, sel.Change)
		}
	}

	_, err := SelectSmallestFirst(utxos, 17401, tx.TransparentFee)
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Errorf("target 17401: expected ErrInsufficientFunds, got: %v", err)
	}
}

func TestSelectSmallestFirst_InsufficientFunds(t *testing.T) {
	utxos := makeUTXOs(1000, 2000)
	_, err := SelectSmallestFirst(utxos, 5000, noFee)
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Errorf("expected ErrInsufficientFunds, got: %v", err)
	}
}

func TestSelectSmallestFirst_NoUTXOs(t *testing.T) {
	_, err := SelectSmallestFirst(nil, 1000, noFee)
	if !errors.Is(err, ErrNoUTXOs) {
		t.Errorf("expected ErrNoUTXOs, got: %v", err)
	}
}

func TestSelectSmallestFirst_ZeroTarget(t *testing.T) {
	_, err := SelectSmallestFirst(makeUTXOs(1000), 0, noFee)
	if !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount, got: %v", err)
	}
}

func TestSelectSmallestFirst_AllZeroValue(t *testing.T) {
	_, err := SelectSmallestFirst(makeUTXOs(0, 0, 0), 1000, noFee)
	if !errors.Is(err, ErrNoUTXOs) {
		t.Errorf("expected ErrNoUTXOs for all-zero UTXOs, got: %v", err)
	}
}

func TestSelectSmallestFirst_DoesNotMutateInput(t *testing.T) {
	utxos := makeUTXOs(3000, 1000, 2000)
	if _, err := SelectSmallestFirst(utxos, 1500, noFee); err != nil {
		t.Fatalf("SelectSmallestFirst: %v", err)
	}
	if utxos[0].Value != 3000 || utxos[1].Value != 1000 {
		t.Error("input slice was reordered")
	}
}

func TestSelectNotes(t *testing.T) {
	sel, err := SelectNotes(makeNotes(80000, 70000), 100000)
	if err != nil {
		t.Fatalf("SelectNotes: %v", err)
	}
	if len(sel.Inputs) != 2 {
		t.Fatalf("inputs = %d, want 2", len(sel.Inputs))
	}
	if sel.Fee != 10000 || sel.Change != 40000 {
		t.Errorf("fee/change = %d/%d, want 10000/40000", sel.Fee, sel.Change)
	}
	if sel.Inputs[0].Value != 70000 {
		t.Errorf("first input = %d, want smallest 70000", sel.Inputs[0].Value)
	}
}

func TestSelectNotes_SingleNote(t *testing.T) {
	sel, err := SelectNotes(makeNotes(50000, 200000), 20000)
	if err != nil {
		t.Fatalf("SelectNotes: %v", err)
	}
	if len(sel.Inputs) != 1 || sel.Inputs[0].Value != 50000 {
		t.Errorf("inputs = %+v, want the 50000 note", sel.Inputs)
	}
	if sel.Change != 50000-20000-tx.OrchardFee(1) {
		t.Errorf("change = %d", sel.Change)
	}
}

func TestSelectNotes_Errors(t *testing.T) {
	if _, err := SelectNotes(nil, 1000); !errors.Is(err, ErrNoSpendableNotes) {
		t.Errorf("expected ErrNoSpendableNotes, got: %v", err)
	}
	if _, err := SelectNotes(makeNotes(1000), 0); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount, got: %v", err)
	}
	if _, err := SelectNotes(makeNotes(5000, 6000), 5000); !errors.Is(err, ErrInsufficientFunds) {
		t.Errorf("expected ErrInsufficientFunds, got: %v", err)
	}
}

func TestSelectNotes_Deterministic(t *testing.T) {
	notes := makeNotes(30000, 30000, 30000)
	first, err := SelectNotes(notes, 40000)
	if err != nil {
		t.Fatalf("SelectNotes: %v", err)
	}
	reversed := []tx.Note{notes[2], notes[1], notes[0]}
	second, err := SelectNotes(reversed, 40000)
	if err != nil {
		t.Fatalf("SelectNotes: %v", err)
	}
	for i := range first.Inputs {
		if first.Inputs[i].Nullifier != second.Inputs[i].Nullifier {
			t.Errorf("input %d differs between orderings", i)
		}
	}
}
