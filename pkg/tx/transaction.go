// Package tx defines the wallet's transaction model for the transparent and
// Orchard pools.
package tx

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"

	"github.com/Klingon-tech/zwallet/pkg/types"
)

// DefaultExpiryDelta is the number of blocks after the lock height at which
// an unmined transaction expires.
const DefaultExpiryDelta = 40

// MaxMemoSize is the maximum Orchard memo length in bytes.
const MaxMemoSize = 512

// Transaction is an unsigned wallet transaction spanning both pools.
type Transaction struct {
	LockTime     uint32          `json:"locktime"`
	ExpiryHeight uint32          `json:"expiry_height"`
	Fee          uint64          `json:"fee"`
	To           string          `json:"to"`
	Amount       uint64          `json:"amount"`
	Transparent  TransparentPart `json:"transparent"`
	Orchard      OrchardPart     `json:"orchard"`
}

// TransparentPart holds the transparent inputs and outputs.
type TransparentPart struct {
	Inputs  []TransparentInput  `json:"inputs"`
	Outputs []TransparentOutput `json:"outputs"`
}

// OrchardPart holds the Orchard spends and outputs plus the anchor height
// the spend proofs are built against.
type OrchardPart struct {
	Inputs        []OrchardInput  `json:"inputs"`
	Outputs       []OrchardOutput `json:"outputs"`
	AnchorBlockID uint32          `json:"anchor_block_id"`
}

// TransparentInput spends a transparent UTXO. ScriptSig stays empty until
// the keyring signs the transaction.
type TransparentInput struct {
	PrevOut      types.Outpoint `json:"prevout"`
	Value        uint64         `json:"value"`
	Address      string         `json:"address"`
	ScriptPubKey []byte         `json:"script_pubkey"`
	ScriptSig    []byte         `json:"script_sig"`
}

// transparentInputJSON is the JSON representation of TransparentInput with
// hex-encoded script fields.
type transparentInputJSON struct {
	PrevOut      types.Outpoint `json:"prevout"`
	Value        uint64         `json:"value"`
	Address      string         `json:"address"`
	ScriptPubKey string         `json:"script_pubkey"`
	ScriptSig    *string        `json:"script_sig"`
}

// MarshalJSON encodes the input with hex-encoded scripts.
func (in TransparentInput) MarshalJSON() ([]byte, error) {
	j := transparentInputJSON{
		PrevOut:      in.PrevOut,
		Value:        in.Value,
		Address:      in.Address,
		ScriptPubKey: hex.EncodeToString(in.ScriptPubKey),
	}
	if in.ScriptSig != nil {
		s := hex.EncodeToString(in.ScriptSig)
		j.ScriptSig = &s
	}
	return json.Marshal(j)
}

// UnmarshalJSON decodes an input with hex-encoded scripts.
func (in *TransparentInput) UnmarshalJSON(data []byte) error {
	var j transparentInputJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	spk, err := hex.DecodeString(j.ScriptPubKey)
	if err != nil {
		return err
	}
	in.PrevOut = j.PrevOut
	in.Value = j.Value
	in.Address = j.Address
	in.ScriptPubKey = spk
	if j.ScriptSig != nil {
		b, err := hex.DecodeString(*j.ScriptSig)
		if err != nil {
			return err
		}
		in.ScriptSig = b
	}
	return nil
}

// TransparentOutput pays Value to a transparent address.
type TransparentOutput struct {
	Address string `json:"address"`
	Value   uint64 `json:"value"`
	Script  []byte `json:"script"`
}

type transparentOutputJSON struct {
	Address string `json:"address"`
	Value   uint64 `json:"value"`
	Script  string `json:"script"`
}

// MarshalJSON encodes the output with a hex-encoded script.
func (out TransparentOutput) MarshalJSON() ([]byte, error) {
	return json.Marshal(transparentOutputJSON{
		Address: out.Address,
		Value:   out.Value,
		Script:  hex.EncodeToString(out.Script),
	})
}

// UnmarshalJSON decodes an output with a hex-encoded script.
func (out *TransparentOutput) UnmarshalJSON(data []byte) error {
	var j transparentOutputJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	script, err := hex.DecodeString(j.Script)
	if err != nil {
		return err
	}
	out.Address = j.Address
	out.Value = j.Value
	out.Script = script
	return nil
}

// Note is a spendable Orchard note together with the data a prover needs.
type Note struct {
	BlockID   uint32            `json:"block_id"`
	Value     uint64            `json:"value"`
	Nullifier types.Hash        `json:"nullifier"`
	Position  uint64            `json:"position"`
	Addr      types.OrchardAddr `json:"addr"`
	Rho       types.Hash        `json:"rho"`
	Rseed     types.Hash        `json:"rseed"`
}

// OrchardInput spends one note.
type OrchardInput struct {
	Note Note `json:"note"`
}

// OrchardOutput creates a note of Value for Addr.
type OrchardOutput struct {
	Value uint64            `json:"value"`
	Addr  types.OrchardAddr `json:"addr"`
	Memo  []byte            `json:"memo,omitempty"`
}

// TotalInputValue returns the sum of all transparent and Orchard input values.
// Returns an error if the sum overflows uint64.
func (tx *Transaction) TotalInputValue() (uint64, error) {
	var total uint64
	for _, in := range tx.Transparent.Inputs {
		if total > math.MaxUint64-in.Value {
			return 0, fmt.Errorf("input value overflow")
		}
		total += in.Value
	}
	for _, in := range tx.Orchard.Inputs {
		if total > math.MaxUint64-in.Note.Value {
			return 0, fmt.Errorf("input value overflow")
		}
		total += in.Note.Value
	}
	return total, nil
}

// TotalOutputValue returns the sum of all transparent and Orchard output values.
// Returns an error if the sum overflows uint64.
func (tx *Transaction) TotalOutputValue() (uint64, error) {
	var total uint64
	for _, out := range tx.Transparent.Outputs {
		if total > math.MaxUint64-out.Value {
			return 0, fmt.Errorf("output value overflow")
		}
		total += out.Value
	}
	for _, out := range tx.Orchard.Outputs {
		if total > math.MaxUint64-out.Value {
			return 0, fmt.Errorf("output value overflow")
		}
		total += out.Value
	}
	return total, nil
}

// NumInputs returns the input count across both pools.
func (tx *Transaction) NumInputs() int {
	return len(tx.Transparent.Inputs) + len(tx.Orchard.Inputs)
}

// NumOutputs returns the output count across both pools.
func (tx *Transaction) NumOutputs() int {
	return len(tx.Transparent.Outputs) + len(tx.Orchard.Outputs)
}
