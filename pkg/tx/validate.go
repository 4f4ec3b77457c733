package tx

import (
	"errors"
	"fmt"
	"math"

	"github.com/Klingon-tech/zwallet/pkg/types"
)

// Per-pool output limits. Wallet-built transactions carry at most a payment
// and a change output in each pool.
const (
	MaxTransparentOutputs = 2
	MaxOrchardOutputs     = 2
)

// Validation errors.
var (
	ErrNoInputs           = errors.New("transaction has no inputs")
	ErrNoOutputs          = errors.New("transaction has no outputs")
	ErrDuplicateInput     = errors.New("duplicate input")
	ErrDuplicateNullifier = errors.New("duplicate nullifier")
	ErrOutputOverflow     = errors.New("output values overflow")
	ErrZeroOutput         = errors.New("output value is zero")
	ErrTooManyOutputs     = errors.New("too many outputs")
	ErrMemoTooLarge       = errors.New("memo too large")
	ErrMissingScript      = errors.New("transparent output missing script")
	ErrAmountMismatch     = errors.New("inputs do not equal outputs plus fee")
)

// Validate checks transaction structure. It does not check that the inputs
// exist on chain.
func (tx *Transaction) Validate() error {
	if tx.NumInputs() == 0 {
		return ErrNoInputs
	}
	if tx.NumOutputs() == 0 {
		return ErrNoOutputs
	}
	if n := len(tx.Transparent.Outputs); n > MaxTransparentOutputs {
		return fmt.Errorf("%w: %d transparent outputs, max %d", ErrTooManyOutputs, n, MaxTransparentOutputs)
	}
	if n := len(tx.Orchard.Outputs); n > MaxOrchardOutputs {
		return fmt.Errorf("%w: %d orchard outputs, max %d", ErrTooManyOutputs, n, MaxOrchardOutputs)
	}

	seen := make(map[types.Outpoint]bool, len(tx.Transparent.Inputs))
	for i, in := range tx.Transparent.Inputs {
		if seen[in.PrevOut] {
			return fmt.Errorf("input %d: %w", i, ErrDuplicateInput)
		}
		seen[in.PrevOut] = true
	}
	nullifiers := make(map[types.Hash]bool, len(tx.Orchard.Inputs))
	for i, in := range tx.Orchard.Inputs {
		if nullifiers[in.Note.Nullifier] {
			return fmt.Errorf("orchard input %d: %w", i, ErrDuplicateNullifier)
		}
		nullifiers[in.Note.Nullifier] = true
	}

	var totalOutput uint64
	for i, out := range tx.Transparent.Outputs {
		if out.Value == 0 {
			return fmt.Errorf("output %d: %w", i, ErrZeroOutput)
		}
		if len(out.Script) == 0 {
			return fmt.Errorf("output %d: %w", i, ErrMissingScript)
		}
		if totalOutput > math.MaxUint64-out.Value {
			return fmt.Errorf("output %d: %w", i, ErrOutputOverflow)
		}
		totalOutput += out.Value
	}
	for i, out := range tx.Orchard.Outputs {
		if out.Value == 0 {
			return fmt.Errorf("orchard output %d: %w", i, ErrZeroOutput)
		}
		if len(out.Memo) > MaxMemoSize {
			return fmt.Errorf("orchard output %d: %w: %d bytes, max %d", i, ErrMemoTooLarge, len(out.Memo), MaxMemoSize)
		}
		if totalOutput > math.MaxUint64-out.Value {
			return fmt.Errorf("orchard output %d: %w", i, ErrOutputOverflow)
		}
		totalOutput += out.Value
	}

	return nil
}

// ValidateAmounts checks that the inputs exactly cover the outputs plus the fee.
func (tx *Transaction) ValidateAmounts() error {
	in, err := tx.TotalInputValue()
	if err != nil {
		return err
	}
	out, err := tx.TotalOutputValue()
	if err != nil {
		return err
	}
	if out > math.MaxUint64-tx.Fee || in != out+tx.Fee {
		return fmt.Errorf("%w: in %d, out %d, fee %d", ErrAmountMismatch, in, out, tx.Fee)
	}
	return nil
}
