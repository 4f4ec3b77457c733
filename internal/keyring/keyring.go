package keyring

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/Klingon-tech/zwallet/internal/log"
	"github.com/Klingon-tech/zwallet/internal/storage"
	"github.com/Klingon-tech/zwallet/pkg/crypto"
	"github.com/Klingon-tech/zwallet/pkg/types"
	"github.com/tyler-smith/go-bip32"
)

// ErrKeyspaceExhausted is returned when a derivation index leaves the
// non-hardened range.
var ErrKeyspaceExhausted = errors.New("key index space exhausted")

// orchardAddrContext domain-separates the Orchard raw address derivation.
const orchardAddrContext = "zwallet 2024-06 orchard raw address"

var indexPrefix = []byte("idx/")

// IndexRecord is the persisted "next unused address" record of an account.
type IndexRecord struct {
	Receive uint32 `json:"receive"`
	Change  uint32 `json:"change"`
}

// Keyring derives transparent addresses along m/44'/coin'/account'/change/index
// and keeps each account's next-unused indices in db.
type Keyring struct {
	mu       sync.Mutex
	net      types.Network
	master   *HDKey
	shielded bool
	db       storage.DB
	cache    map[types.KeyID]types.TransparentAddress
}

// New creates a keyring for a 64-byte seed. When shielded is false no
// Orchard addresses are handed out.
func New(seed []byte, net types.Network, db storage.DB, shielded bool) (*Keyring, error) {
	master, err := NewMasterKey(seed)
	if err != nil {
		return nil, err
	}
	return &Keyring{
		net:      net,
		master:   master,
		shielded: shielded,
		db:       db,
		cache:    make(map[types.KeyID]types.TransparentAddress),
	}, nil
}

// Network returns the network addresses are encoded for.
func (k *Keyring) Network() types.Network {
	return k.net
}

// GetAddress returns the transparent address of id.
func (k *Keyring) GetAddress(id types.KeyID) (types.TransparentAddress, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.addressLocked(id)
}

func (k *Keyring) addressLocked(id types.KeyID) (types.TransparentAddress, error) {
	if addr, ok := k.cache[id]; ok {
		return addr, nil
	}
	key, err := k.master.DeriveAddress(k.net, id.Account, id.Branch(), id.Index)
	if err != nil {
		return types.TransparentAddress{}, fmt.Errorf("derive %s: %w", id, err)
	}
	addr, err := key.Address(k.net)
	if err != nil {
		return types.TransparentAddress{}, fmt.Errorf("derive %s: %w", id, err)
	}
	k.cache[id] = addr
	return addr, nil
}

// GetNextAddress returns the key following id on the same branch and its address.
func (k *Keyring) GetNextAddress(id types.KeyID) (types.KeyID, types.TransparentAddress, error) {
	if id.Index+1 >= bip32.FirstHardenedChild {
		return types.KeyID{}, types.TransparentAddress{}, fmt.Errorf("%w: after %s", ErrKeyspaceExhausted, id)
	}
	next := id
	next.Index++
	addr, err := k.GetAddress(next)
	if err != nil {
		return types.KeyID{}, types.TransparentAddress{}, err
	}
	return next, addr, nil
}

// NextUnusedKey returns the recorded next-unused key of an account branch.
// Accounts without a record start at index 0.
func (k *Keyring) NextUnusedKey(account uint32, change bool) (types.KeyID, error) {
	rec, err := k.loadRecord(account)
	if err != nil {
		return types.KeyID{}, err
	}
	id := types.KeyID{Account: account, Change: change, Index: rec.Receive}
	if change {
		id.Index = rec.Change
	}
	return id, nil
}

// UpdateNextUnusedAddress records the next unused receive and change keys
// of an account.
func (k *Keyring) UpdateNextUnusedAddress(account uint32, receive, change types.KeyID) error {
	if receive.Account != account || change.Account != account || receive.Change || !change.Change {
		return fmt.Errorf("update account %d: key ids %s, %s do not match", account, receive, change)
	}
	rec := IndexRecord{Receive: receive.Index, Change: change.Index}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal index record: %w", err)
	}
	if err := k.db.Put(indexKey(account), data); err != nil {
		return fmt.Errorf("store index record: %w", err)
	}
	log.Keyring.Debug().
		Uint32("account", account).
		Uint32("receive", rec.Receive).
		Uint32("change", rec.Change).
		Msg("Next unused addresses updated")
	return nil
}

// GetOrchardRawAddress returns the account's external or internal Orchard
// raw address. ok is false when the keyring has no shielded keys.
func (k *Keyring) GetOrchardRawAddress(account uint32, internal bool) (addr types.OrchardAddr, ok bool, err error) {
	if !k.shielded {
		return types.OrchardAddr{}, false, nil
	}
	acct, err := k.master.DerivePath(PurposeBIP44, CoinType(k.net), bip32.FirstHardenedChild+account)
	if err != nil {
		return types.OrchardAddr{}, false, fmt.Errorf("derive orchard account %d: %w", account, err)
	}
	material := append([]byte{}, acct.PrivateKeyBytes()...)
	if internal {
		material = append(material, 1)
	} else {
		material = append(material, 0)
	}
	copy(addr[:], crypto.DeriveKey(orchardAddrContext, material, types.OrchardAddrSize))
	return addr, true, nil
}

func (k *Keyring) loadRecord(account uint32) (IndexRecord, error) {
	var rec IndexRecord
	data, err := k.db.Get(indexKey(account))
	if errors.Is(err, storage.ErrNotFound) {
		return rec, nil
	}
	if err != nil {
		return rec, fmt.Errorf("load index record: %w", err)
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, fmt.Errorf("parse index record: %w", err)
	}
	return rec, nil
}

func indexKey(account uint32) []byte {
	return binary.BigEndian.AppendUint32(append([]byte{}, indexPrefix...), account)
}
