package types

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// OutpointSize is the serialized length of a transparent prevout.
const OutpointSize = HashSize + 4

// Outpoint references a transparent output. TxID is held in the byte order
// the node's JSON-RPC shows it (display order).
type Outpoint struct {
	TxID  Hash   `json:"txid"`
	Index uint32 `json:"index"`
}

// IsZero returns true if the outpoint has a zero TxID and zero index.
func (o Outpoint) IsZero() bool {
	return o.TxID.IsZero() && o.Index == 0
}

// String returns "txid:vout" with the txid in display hex, the form block
// explorers and zcash-cli accept.
func (o Outpoint) String() string {
	return fmt.Sprintf("%s:%d", o.TxID.String(), o.Index)
}

// WireBytes returns the prevout as a transaction serializes it: the txid in
// internal byte order followed by the little-endian output index.
func (o Outpoint) WireBytes() []byte {
	txid := o.TxID.Reverse()
	return binary.LittleEndian.AppendUint32(txid[:], o.Index)
}

// ParseOutpoint parses "txid:vout" as produced by String.
func ParseOutpoint(s string) (Outpoint, error) {
	txid, vout, ok := strings.Cut(s, ":")
	if !ok {
		return Outpoint{}, fmt.Errorf("outpoint %q: missing ':'", s)
	}
	h, err := HexToHash(txid)
	if err != nil {
		return Outpoint{}, fmt.Errorf("outpoint %q: %w", s, err)
	}
	index, err := strconv.ParseUint(vout, 10, 32)
	if err != nil {
		return Outpoint{}, fmt.Errorf("outpoint %q: invalid index: %w", s, err)
	}
	return Outpoint{TxID: h, Index: uint32(index)}, nil
}
