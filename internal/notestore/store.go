// Package notestore persists the Orchard sync state of each account: the
// notes found while scanning, the nullifiers seen spending them, and the
// checkpoints whose commitment tree roots can anchor a spend.
package notestore

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/Klingon-tech/zwallet/internal/log"
	"github.com/Klingon-tech/zwallet/internal/storage"
	"github.com/Klingon-tech/zwallet/pkg/crypto"
	"github.com/Klingon-tech/zwallet/pkg/tx"
	"github.com/Klingon-tech/zwallet/pkg/types"
)

// Key prefixes.
var (
	prefixMeta       = []byte("m/") // m/<acct> -> AccountMeta JSON
	prefixNote       = []byte("n/") // n/<acct><block><noteid> -> tx.Note JSON
	prefixSpent      = []byte("s/") // s/<acct><nullifier> -> spent block (4)
	prefixCheckpoint = []byte("c/") // c/<acct><block> -> empty
)

// Note store errors.
var (
	ErrAccountNotRegistered = errors.New("account is not registered in the note store")
	ErrAccountExists        = errors.New("account is already registered in the note store")
	ErrConsistency          = errors.New("note store consistency error")
)

// DB is the storage the note store needs: a key-value store with atomic
// batches. storage.MemoryDB, storage.BadgerDB and storage.PrefixDB all
// qualify.
type DB interface {
	storage.DB
	storage.Batcher
}

// AccountMeta is the per-account scan state.
type AccountMeta struct {
	Birthday uint32 `json:"birthday"`
	// LatestScannedBlock is nil until the first scan result is stored.
	LatestScannedBlock *uint32 `json:"latest_scanned_block,omitempty"`
	LatestScannedHash  string  `json:"latest_scanned_hash,omitempty"`
}

// Spend records that a nullifier was revealed at a block.
type Spend struct {
	BlockID   uint32     `json:"block_id"`
	Nullifier types.Hash `json:"nullifier"`
}

// Store implements the wallet's NoteStore on a storage.DB.
type Store struct {
	mu sync.Mutex
	db DB
}

// New creates a note store backed by db.
func New(db DB) *Store {
	return &Store{db: db}
}

func accountKey(prefix []byte, account uint32) []byte {
	key := make([]byte, len(prefix)+4)
	copy(key, prefix)
	binary.BigEndian.PutUint32(key[len(prefix):], account)
	return key
}

// noteKey builds "n/" + acct(4) + block(4) + noteid(32).
func noteKey(account uint32, n tx.Note) []byte {
	key := accountKey(prefixNote, account)
	key = binary.BigEndian.AppendUint32(key, n.BlockID)
	id := NoteID(n)
	return append(key, id[:]...)
}

// spentKey builds "s/" + acct(4) + nullifier(32).
func spentKey(account uint32, nf types.Hash) []byte {
	return append(accountKey(prefixSpent, account), nf[:]...)
}

// checkpointKey builds "c/" + acct(4) + block(4).
func checkpointKey(account, blockID uint32) []byte {
	return binary.BigEndian.AppendUint32(accountKey(prefixCheckpoint, account), blockID)
}

// NoteID identifies a note by its address, rho, rseed and value.
func NoteID(n tx.Note) types.Hash {
	var value [8]byte
	binary.BigEndian.PutUint64(value[:], n.Value)
	return crypto.HashConcat(n.Addr[:], n.Rho[:], n.Rseed[:], value[:])
}

// RegisterAccount starts tracking an account whose keys cannot have
// received notes before birthday.
func (s *Store) RegisterAccount(account, birthday uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := accountKey(prefixMeta, account)
	exists, err := s.db.Has(key)
	if err != nil {
		return fmt.Errorf("notestore has meta: %w", err)
	}
	if exists {
		return fmt.Errorf("%w: account %d", ErrAccountExists, account)
	}
	if err := s.putMeta(s.db, account, &AccountMeta{Birthday: birthday}); err != nil {
		return err
	}
	log.NoteStore.Info().Uint32("account", account).Uint32("birthday", birthday).Msg("Account registered")
	return nil
}

// GetAccountMeta returns the account's scan state.
func (s *Store) GetAccountMeta(account uint32) (*AccountMeta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getMeta(account)
}

// GetLatestScannedBlock returns the last block whose scan results were
// stored. ok is false when the account has not been scanned yet.
func (s *Store) GetLatestScannedBlock(account uint32) (block uint32, ok bool, err error) {
	meta, err := s.GetAccountMeta(account)
	if err != nil {
		return 0, false, err
	}
	if meta.LatestScannedBlock == nil {
		return 0, false, nil
	}
	return *meta.LatestScannedBlock, true, nil
}

func (s *Store) getMeta(account uint32) (*AccountMeta, error) {
	data, err := s.db.Get(accountKey(prefixMeta, account))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: account %d", ErrAccountNotRegistered, account)
	}
	if err != nil {
		return nil, fmt.Errorf("notestore get meta: %w", err)
	}
	var meta AccountMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("%w: account %d meta: %v", ErrConsistency, account, err)
	}
	return &meta, nil
}

type putter interface {
	Put(key, value []byte) error
}

func (s *Store) putMeta(w putter, account uint32, meta *AccountMeta) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("notestore marshal meta: %w", err)
	}
	if err := w.Put(accountKey(prefixMeta, account), data); err != nil {
		return fmt.Errorf("notestore put meta: %w", err)
	}
	return nil
}

// UpdateNotes stores one scan result atomically: the notes found, the
// nullifiers spent and the new latest scanned block.
func (s *Store) UpdateNotes(account uint32, found []tx.Note, spends []Spend, latestBlock uint32, latestHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta, err := s.getMeta(account)
	if err != nil {
		return err
	}
	if meta.LatestScannedBlock != nil && latestBlock < *meta.LatestScannedBlock {
		return fmt.Errorf("%w: scan result for block %d is behind latest scanned block %d",
			ErrConsistency, latestBlock, *meta.LatestScannedBlock)
	}

	b := s.db.NewBatch()
	for _, n := range found {
		if n.Value == 0 {
			return fmt.Errorf("%w: zero value note at block %d", ErrConsistency, n.BlockID)
		}
		if n.BlockID > latestBlock {
			return fmt.Errorf("%w: note at block %d is past scan height %d", ErrConsistency, n.BlockID, latestBlock)
		}
		data, err := json.Marshal(n)
		if err != nil {
			return fmt.Errorf("notestore marshal note: %w", err)
		}
		if err := b.Put(noteKey(account, n), data); err != nil {
			return fmt.Errorf("notestore put note: %w", err)
		}
	}
	for _, sp := range spends {
		if err := b.Put(spentKey(account, sp.Nullifier), binary.BigEndian.AppendUint32(nil, sp.BlockID)); err != nil {
			return fmt.Errorf("notestore put spend: %w", err)
		}
	}
	meta.LatestScannedBlock = &latestBlock
	meta.LatestScannedHash = latestHash
	if err := s.putMeta(b, account, meta); err != nil {
		return err
	}
	if err := b.Commit(); err != nil {
		return fmt.Errorf("notestore commit: %w", err)
	}

	log.NoteStore.Debug().
		Uint32("account", account).
		Int("notes", len(found)).
		Int("spends", len(spends)).
		Uint32("block", latestBlock).
		Msg("Scan result stored")
	return nil
}

// AddCheckpoint marks blockID as a height whose tree root can anchor spends.
func (s *Store) AddCheckpoint(account, blockID uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.getMeta(account); err != nil {
		return err
	}
	if err := s.db.Put(checkpointKey(account, blockID), []byte{}); err != nil {
		return fmt.Errorf("notestore put checkpoint: %w", err)
	}
	return nil
}

// MaxCheckpoint returns the highest checkpoint of the account, if any.
func (s *Store) MaxCheckpoint(account uint32) (uint32, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxCheckpoint(account)
}

func (s *Store) maxCheckpoint(account uint32) (uint32, bool, error) {
	var (
		latest uint32
		found  bool
	)
	prefix := accountKey(prefixCheckpoint, account)
	err := s.db.ForEach(prefix, func(key, _ []byte) error {
		if len(key) != len(prefix)+4 {
			return fmt.Errorf("%w: checkpoint key length %d", ErrConsistency, len(key))
		}
		// Keys are visited in ascending order; the last one wins.
		latest = binary.BigEndian.Uint32(key[len(prefix):])
		found = true
		return nil
	})
	if err != nil {
		return 0, false, fmt.Errorf("scan checkpoints: %w", err)
	}
	return latest, found, nil
}

// GetNullifiers returns every spend recorded for the account.
func (s *Store) GetNullifiers(account uint32) ([]Spend, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spends(account)
}

func (s *Store) spends(account uint32) ([]Spend, error) {
	prefix := accountKey(prefixSpent, account)
	var out []Spend
	err := s.db.ForEach(prefix, func(key, value []byte) error {
		if len(key) != len(prefix)+types.HashSize || len(value) != 4 {
			return fmt.Errorf("%w: malformed spend record", ErrConsistency)
		}
		var sp Spend
		copy(sp.Nullifier[:], key[len(prefix):])
		sp.BlockID = binary.BigEndian.Uint32(value)
		out = append(out, sp)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan spends: %w", err)
	}
	return out, nil
}

// GetSpendableNotes returns the account's unspent notes that are covered by
// its latest checkpoint, together with that checkpoint as the anchor. An
// account without checkpoints has no spendable notes.
func (s *Store) GetSpendableNotes(ctx context.Context, account uint32) ([]tx.Note, uint32, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.getMeta(account); err != nil {
		return nil, 0, err
	}
	anchor, ok, err := s.maxCheckpoint(account)
	if err != nil {
		return nil, 0, err
	}
	if !ok {
		return nil, 0, nil
	}

	spends, err := s.spends(account)
	if err != nil {
		return nil, 0, err
	}
	spent := make(map[types.Hash]struct{}, len(spends))
	for _, sp := range spends {
		spent[sp.Nullifier] = struct{}{}
	}

	var notes []tx.Note
	err = s.db.ForEach(accountKey(prefixNote, account), func(_, value []byte) error {
		var n tx.Note
		if err := json.Unmarshal(value, &n); err != nil {
			return fmt.Errorf("%w: note: %v", ErrConsistency, err)
		}
		if n.BlockID > anchor {
			return nil
		}
		if _, ok := spent[n.Nullifier]; ok {
			return nil
		}
		notes = append(notes, n)
		return nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("scan notes: %w", err)
	}
	return notes, anchor, nil
}

// HandleChainReorg forgets everything the account learned above blockID and
// rewinds its latest scanned block to it.
func (s *Store) HandleChainReorg(account, blockID uint32, blockHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta, err := s.getMeta(account)
	if err != nil {
		return err
	}

	b := s.db.NewBatch()
	notePrefix := accountKey(prefixNote, account)
	err = s.db.ForEach(notePrefix, func(key, _ []byte) error {
		if len(key) < len(notePrefix)+4 {
			return fmt.Errorf("%w: note key length %d", ErrConsistency, len(key))
		}
		if binary.BigEndian.Uint32(key[len(notePrefix):]) > blockID {
			return b.Delete(key)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("rewind notes: %w", err)
	}

	spends, err := s.spends(account)
	if err != nil {
		return err
	}
	for _, sp := range spends {
		if sp.BlockID > blockID {
			if err := b.Delete(spentKey(account, sp.Nullifier)); err != nil {
				return fmt.Errorf("rewind spends: %w", err)
			}
		}
	}

	cpPrefix := accountKey(prefixCheckpoint, account)
	err = s.db.ForEach(cpPrefix, func(key, _ []byte) error {
		if binary.BigEndian.Uint32(key[len(cpPrefix):]) > blockID {
			return b.Delete(key)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("rewind checkpoints: %w", err)
	}

	meta.LatestScannedBlock = &blockID
	meta.LatestScannedHash = blockHash
	if err := s.putMeta(b, account, meta); err != nil {
		return err
	}
	if err := b.Commit(); err != nil {
		return fmt.Errorf("notestore commit: %w", err)
	}
	log.NoteStore.Warn().Uint32("account", account).Uint32("block", blockID).Msg("Rewound sync state after reorg")
	return nil
}

// ResetAccountSyncState drops the account's notes, spends and checkpoints
// and clears its scan position. The birthday is kept.
func (s *Store) ResetAccountSyncState(account uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta, err := s.getMeta(account)
	if err != nil {
		return err
	}
	b := s.db.NewBatch()
	for _, prefix := range [][]byte{prefixNote, prefixSpent, prefixCheckpoint} {
		err := s.db.ForEach(accountKey(prefix, account), func(key, _ []byte) error {
			return b.Delete(key)
		})
		if err != nil {
			return fmt.Errorf("scan prefix %s: %w", prefix, err)
		}
	}
	meta.LatestScannedBlock = nil
	meta.LatestScannedHash = ""
	if err := s.putMeta(b, account, meta); err != nil {
		return err
	}
	if err := b.Commit(); err != nil {
		return fmt.Errorf("notestore commit: %w", err)
	}
	log.NoteStore.Info().Uint32("account", account).Msg("Sync state reset")
	return nil
}
