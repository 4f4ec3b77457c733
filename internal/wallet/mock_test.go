package wallet

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Klingon-tech/zwallet/pkg/tx"
	"github.com/Klingon-tech/zwallet/pkg/types"
)

const testChainID = types.MainnetChainID

// mockChain is an in-memory ChainStateClient.
type mockChain struct {
	mu        sync.Mutex
	height    uint32
	heightErr error
	known     map[string]bool
	utxos     map[string][]UTXO
	utxoErr   error
	// block, when set, stalls GetLatestBlockHeight until it is closed.
	block chan struct{}

	heightCalls int
	knownCalls  []string
	utxoCalls   []string
}

func newMockChain(height uint32) *mockChain {
	return &mockChain{
		height: height,
		known:  make(map[string]bool),
		utxos:  make(map[string][]UTXO),
	}
}

func (m *mockChain) GetLatestBlockHeight(ctx context.Context, chainID string) (uint32, error) {
	if m.block != nil {
		<-m.block
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.heightCalls++
	if chainID != testChainID {
		return 0, errors.New("unknown chain")
	}
	return m.height, m.heightErr
}

func (m *mockChain) IsKnownAddress(ctx context.Context, chainID, address string, start, end uint32) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.knownCalls = append(m.knownCalls, address)
	if start != 1 || end != m.height {
		return false, errors.New("unexpected block range")
	}
	return m.known[address], nil
}

func (m *mockChain) GetUtxoList(ctx context.Context, chainID, address string) ([]UTXO, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.utxoCalls = append(m.utxoCalls, address)
	if m.utxoErr != nil {
		return nil, m.utxoErr
	}
	return append([]UTXO(nil), m.utxos[address]...), nil
}

func (m *mockChain) addUTXO(addr types.TransparentAddress, value uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, us := range m.utxos {
		n += len(us)
	}
	var txid types.Hash
	binary.BigEndian.PutUint32(txid[:], uint32(n+1))
	m.utxos[addr.String()] = append(m.utxos[addr.String()], UTXO{
		Address:  addr.String(),
		Outpoint: types.Outpoint{TxID: txid, Index: 0},
		Value:    value,
		Height:   10,
	})
}

// mockKeyring derives addresses by hashing the key id.
type mockKeyring struct {
	mu       sync.Mutex
	net      types.Network
	shielded bool
	next     map[uint32][2]uint32
	// limit makes GetNextAddress fail past this index when non-zero.
	limit   uint32
	updates int
}

func newMockKeyring(shielded bool) *mockKeyring {
	return &mockKeyring{net: types.Mainnet, shielded: shielded, next: make(map[uint32][2]uint32)}
}

func (k *mockKeyring) addr(id types.KeyID) types.TransparentAddress {
	var buf [9]byte
	binary.BigEndian.PutUint32(buf[0:], id.Account)
	buf[4] = byte(id.Branch())
	binary.BigEndian.PutUint32(buf[5:], id.Index)
	return types.TransparentAddress{Network: k.net, Kind: types.P2PKH, Hash: types.Hash160(buf[:])}
}

func (k *mockKeyring) GetAddress(id types.KeyID) (types.TransparentAddress, error) {
	return k.addr(id), nil
}

func (k *mockKeyring) GetNextAddress(id types.KeyID) (types.KeyID, types.TransparentAddress, error) {
	if k.limit != 0 && id.Index+1 > k.limit {
		return types.KeyID{}, types.TransparentAddress{}, errors.New("key index space exhausted")
	}
	id.Index++
	return id, k.addr(id), nil
}

func (k *mockKeyring) NextUnusedKey(account uint32, change bool) (types.KeyID, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	rec := k.next[account]
	id := types.KeyID{Account: account, Change: change, Index: rec[0]}
	if change {
		id.Index = rec[1]
	}
	return id, nil
}

func (k *mockKeyring) UpdateNextUnusedAddress(account uint32, receive, change types.KeyID) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.updates++
	k.next[account] = [2]uint32{receive.Index, change.Index}
	return nil
}

func (k *mockKeyring) GetOrchardRawAddress(account uint32, internal bool) (types.OrchardAddr, bool, error) {
	if !k.shielded {
		return types.OrchardAddr{}, false, nil
	}
	var a types.OrchardAddr
	a[0] = 0x0a
	binary.BigEndian.PutUint32(a[1:], account)
	if internal {
		a[5] = 1
	}
	return a, true, nil
}

// mockNotes is an in-memory NoteStore.
type mockNotes struct {
	notes  map[uint32][]tx.Note
	anchor uint32
	err    error
}

func newMockNotes(anchor uint32) *mockNotes {
	return &mockNotes{notes: make(map[uint32][]tx.Note), anchor: anchor}
}

func (m *mockNotes) GetSpendableNotes(ctx context.Context, account uint32) ([]tx.Note, uint32, error) {
	if m.err != nil {
		return nil, 0, m.err
	}
	return append([]tx.Note(nil), m.notes[account]...), m.anchor, nil
}

func (m *mockNotes) add(account uint32, values ...uint64) {
	for _, v := range values {
		i := len(m.notes[account])
		m.notes[account] = append(m.notes[account], tx.Note{
			BlockID:   uint32(50 + i),
			Value:     v,
			Nullifier: types.Hash{0xaa, byte(account), byte(i)},
			Position:  uint64(i),
		})
	}
}

type fixture struct {
	chain   *mockChain
	keyring *mockKeyring
	notes   *mockNotes
	svc     *Service
}

func newFixture(t interface {
	Helper()
	Fatalf(string, ...any)
}, shielded bool) *fixture {
	t.Helper()
	f := &fixture{
		chain:   newMockChain(1000),
		keyring: newMockKeyring(shielded),
		notes:   newMockNotes(990),
	}
	svc, err := NewService(Config{ChainID: testChainID, ShieldedEnabled: shielded}, f.chain, f.keyring, f.notes)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	f.svc = svc
	return f
}

func (f *fixture) env() *env {
	return &env{
		chain:   f.chain,
		keyring: f.keyring,
		notes:   f.notes,
		chainID: testChainID,
		net:     types.Mainnet,
		log:     zerolog.Nop(),
	}
}

func (f *fixture) receive(account, index uint32) types.TransparentAddress {
	return f.keyring.addr(types.KeyID{Account: account, Index: index})
}

func (f *fixture) change(account, index uint32) types.TransparentAddress {
	return f.keyring.addr(types.KeyID{Account: account, Change: true, Index: index})
}

func typesKey(account uint32, change bool, index uint32) types.KeyID {
	return types.KeyID{Account: account, Change: change, Index: index}
}
