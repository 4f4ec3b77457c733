// Package wallet builds fee-correct transparent and Orchard transactions,
// discovers unused addresses and resolves account balances against a remote
// chain.
package wallet

import (
	"context"

	"github.com/Klingon-tech/zwallet/pkg/tx"
	"github.com/Klingon-tech/zwallet/pkg/types"
)

// ChainStateClient is the remote chain capability the engine consumes.
type ChainStateClient interface {
	GetLatestBlockHeight(ctx context.Context, chainID string) (uint32, error)
	// IsKnownAddress reports whether address has history in blocks [start, end].
	IsKnownAddress(ctx context.Context, chainID, address string, start, end uint32) (bool, error)
	GetUtxoList(ctx context.Context, chainID, address string) ([]UTXO, error)
}

// Keyring derives the account's addresses and tracks its next unused indices.
type Keyring interface {
	GetAddress(id types.KeyID) (types.TransparentAddress, error)
	// GetNextAddress returns the key after id on the same branch.
	GetNextAddress(id types.KeyID) (types.KeyID, types.TransparentAddress, error)
	NextUnusedKey(account uint32, change bool) (types.KeyID, error)
	UpdateNextUnusedAddress(account uint32, receive, change types.KeyID) error
	// GetOrchardRawAddress returns ok=false when the account has no Orchard keys.
	GetOrchardRawAddress(account uint32, internal bool) (addr types.OrchardAddr, ok bool, err error)
}

// NoteStore is the persistent Orchard sync state.
type NoteStore interface {
	// GetSpendableNotes returns the account's unspent notes and the anchor
	// block height their witnesses are valid for.
	GetSpendableNotes(ctx context.Context, account uint32) ([]tx.Note, uint32, error)
}

// UTXO is an unspent transparent output owned by the wallet.
type UTXO struct {
	Address  string         `json:"address"`
	Outpoint types.Outpoint `json:"outpoint"`
	Value    uint64         `json:"value"`
	Script   []byte         `json:"script"`
	Height   uint32         `json:"height"`
}

// DiscoveredAddress is the result of address discovery.
type DiscoveredAddress struct {
	Key     types.KeyID              `json:"key"`
	Address types.TransparentAddress `json:"address"`
}

// String returns the encoded address.
func (d DiscoveredAddress) String() string {
	return d.Address.String()
}

// Balance is an account's resolved holdings.
type Balance struct {
	Transparent uint64            `json:"transparent"`
	Shielded    uint64            `json:"shielded"`
	Total       uint64            `json:"total"`
	Addresses   map[string]uint64 `json:"addresses"`
}
