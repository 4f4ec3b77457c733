package keyring

import (
	"fmt"

	"github.com/Klingon-tech/zwallet/pkg/types"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/tyler-smith/go-bip32"
)

// BIP-44 derivation path constants.
// Full path: m/44'/CoinType'/account'/change/index
const (
	// PurposeBIP44 is the BIP-44 purpose field (hardened).
	PurposeBIP44 = bip32.FirstHardenedChild + 44

	// CoinTypeZcash is the SLIP-44 coin type for Zcash (hardened).
	CoinTypeZcash = bip32.FirstHardenedChild + 133

	// CoinTypeTestnet is the SLIP-44 coin type shared by all testnets (hardened).
	CoinTypeTestnet = bip32.FirstHardenedChild + 1

	// ChangeExternal is for receiving addresses.
	ChangeExternal = 0

	// ChangeInternal is for change addresses.
	ChangeInternal = 1
)

// HDKey represents a hierarchical deterministic key (BIP-32).
type HDKey struct {
	key *bip32.Key
}

// NewMasterKey creates a master HD key from a 64-byte seed.
func NewMasterKey(seed []byte) (*HDKey, error) {
	if len(seed) != SeedSize {
		return nil, fmt.Errorf("seed must be %d bytes, got %d", SeedSize, len(seed))
	}
	master, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, fmt.Errorf("create master key: %w", err)
	}
	return &HDKey{key: master}, nil
}

// DeriveChild derives a child key at the given index.
// For hardened derivation, add bip32.FirstHardenedChild to the index.
func (k *HDKey) DeriveChild(index uint32) (*HDKey, error) {
	child, err := k.key.NewChildKey(index)
	if err != nil {
		return nil, fmt.Errorf("derive child %d: %w", index, err)
	}
	return &HDKey{key: child}, nil
}

// DerivePath derives a key along a sequence of indices.
func (k *HDKey) DerivePath(indices ...uint32) (*HDKey, error) {
	current := k
	for _, idx := range indices {
		child, err := current.DeriveChild(idx)
		if err != nil {
			return nil, err
		}
		current = child
	}
	return current, nil
}

// CoinType returns the hardened BIP-44 coin type for a network.
func CoinType(net types.Network) uint32 {
	if net == types.Testnet {
		return CoinTypeTestnet
	}
	return CoinTypeZcash
}

// DeriveAddress derives the key at m/44'/coin'/account'/change/index.
func (k *HDKey) DeriveAddress(net types.Network, account, change, index uint32) (*HDKey, error) {
	if account >= bip32.FirstHardenedChild || index >= bip32.FirstHardenedChild {
		return nil, fmt.Errorf("%w: account %d index %d", ErrKeyspaceExhausted, account, index)
	}
	return k.DerivePath(
		PurposeBIP44,
		CoinType(net),
		bip32.FirstHardenedChild+account,
		change,
		index,
	)
}

// PrivateKeyBytes returns the raw 32-byte private key.
// Returns nil if this is a public-only key.
func (k *HDKey) PrivateKeyBytes() []byte {
	if !k.key.IsPrivate {
		return nil
	}
	// bip32 Key.Key is 33 bytes with a leading 0x00 for private keys.
	raw := k.key.Key
	if len(raw) == 33 && raw[0] == 0 {
		return raw[1:]
	}
	return raw
}

// PublicKeyBytes returns the compressed 33-byte public key.
func (k *HDKey) PublicKeyBytes() []byte {
	pub := k.key.PublicKey()
	return pub.Key
}

// Signer returns the secp256k1 private key handed to the external signer.
// Returns error if this is a public-only key.
func (k *HDKey) Signer() (*secp256k1.PrivateKey, error) {
	priv := k.PrivateKeyBytes()
	if priv == nil {
		return nil, fmt.Errorf("cannot create signer from public key")
	}
	return secp256k1.PrivKeyFromBytes(priv), nil
}

// Address derives the P2PKH transparent address of this key's public key.
func (k *HDKey) Address(net types.Network) (types.TransparentAddress, error) {
	pub, err := secp256k1.ParsePubKey(k.PublicKeyBytes())
	if err != nil {
		return types.TransparentAddress{}, fmt.Errorf("parse public key: %w", err)
	}
	return types.NewP2PKHAddress(net, pub.SerializeCompressed()), nil
}

// IsPrivate returns true if this key contains a private key.
func (k *HDKey) IsPrivate() bool {
	return k.key.IsPrivate
}

// Depth returns the derivation depth (0 for master).
func (k *HDKey) Depth() uint8 {
	return k.key.Depth
}

// Neuter returns a public-key-only copy (for watch-only wallets).
func (k *HDKey) Neuter() *HDKey {
	return &HDKey{key: k.key.PublicKey()}
}
