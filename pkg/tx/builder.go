package tx

import (
	"github.com/Klingon-tech/zwallet/pkg/types"
)

// Builder constructs transactions incrementally.
type Builder struct {
	tx *Transaction
}

// NewBuilder creates a new transaction builder.
func NewBuilder() *Builder {
	return &Builder{
		tx: &Transaction{},
	}
}

// AddTransparentInput adds an input spending a transparent UTXO.
func (b *Builder) AddTransparentInput(prevOut types.Outpoint, value uint64, address string, scriptPubKey []byte) *Builder {
	b.tx.Transparent.Inputs = append(b.tx.Transparent.Inputs, TransparentInput{
		PrevOut:      prevOut,
		Value:        value,
		Address:      address,
		ScriptPubKey: scriptPubKey,
	})
	return b
}

// AddTransparentOutput pays value to a transparent address.
func (b *Builder) AddTransparentOutput(address string, value uint64, script []byte) *Builder {
	b.tx.Transparent.Outputs = append(b.tx.Transparent.Outputs, TransparentOutput{
		Address: address,
		Value:   value,
		Script:  script,
	})
	return b
}

// AddOrchardInput spends a note.
func (b *Builder) AddOrchardInput(note Note) *Builder {
	b.tx.Orchard.Inputs = append(b.tx.Orchard.Inputs, OrchardInput{Note: note})
	return b
}

// AddOrchardOutput creates a note for addr. memo may be nil.
func (b *Builder) AddOrchardOutput(addr types.OrchardAddr, value uint64, memo []byte) *Builder {
	b.tx.Orchard.Outputs = append(b.tx.Orchard.Outputs, OrchardOutput{
		Value: value,
		Addr:  addr,
		Memo:  memo,
	})
	return b
}

// SetLockTime sets the lock height and the matching expiry height.
func (b *Builder) SetLockTime(height uint32) *Builder {
	b.tx.LockTime = height
	b.tx.ExpiryHeight = height + DefaultExpiryDelta
	return b
}

// SetFee sets the transaction fee.
func (b *Builder) SetFee(fee uint64) *Builder {
	b.tx.Fee = fee
	return b
}

// SetAnchor sets the Orchard anchor block height.
func (b *Builder) SetAnchor(blockID uint32) *Builder {
	b.tx.Orchard.AnchorBlockID = blockID
	return b
}

// SetRecipient records the human-readable destination and amount sent.
func (b *Builder) SetRecipient(to string, amount uint64) *Builder {
	b.tx.To = to
	b.tx.Amount = amount
	return b
}

// Build returns the constructed transaction.
// Does NOT validate; call Validate and ValidateAmounts separately.
func (b *Builder) Build() *Transaction {
	return b.tx
}
