package types

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/base58"
	"golang.org/x/crypto/ripemd160"
)

// AddressSize is the length of a transparent address hash in bytes.
const AddressSize = 20

// Transparent address errors.
var (
	ErrInvalidTransparentAddress = errors.New("invalid transparent address")
	ErrUnknownAddressPrefix      = errors.New("unknown transparent address prefix")
)

// AddressKind distinguishes pay-to-pubkey-hash and pay-to-script-hash.
type AddressKind uint8

const (
	P2PKH AddressKind = iota
	P2SH
)

// TransparentAddress is a decoded t-address.
type TransparentAddress struct {
	Network Network
	Kind    AddressKind
	Hash    [AddressSize]byte
}

// Hash160 computes RIPEMD160(SHA256(data)).
func Hash160(data []byte) [AddressSize]byte {
	sum := sha256.Sum256(data)
	h := ripemd160.New()
	h.Write(sum[:])
	var out [AddressSize]byte
	copy(out[:], h.Sum(nil))
	return out
}

// NewP2PKHAddress derives the P2PKH address of a compressed public key.
func NewP2PKHAddress(net Network, pubKey []byte) TransparentAddress {
	return TransparentAddress{Network: net, Kind: P2PKH, Hash: Hash160(pubKey)}
}

// String returns the base58check encoding ("t1...", "tm...").
func (a TransparentAddress) String() string {
	var prefix [2]byte
	if a.Kind == P2SH {
		prefix = a.Network.p2shPrefix()
	} else {
		prefix = a.Network.p2pkhPrefix()
	}
	// base58.CheckEncode takes a single version byte; the second prefix
	// byte travels as the first payload byte.
	payload := make([]byte, 0, 1+AddressSize)
	payload = append(payload, prefix[1])
	payload = append(payload, a.Hash[:]...)
	return base58.CheckEncode(payload, prefix[0])
}

// ScriptPubKey returns the standard locking script for the address.
func (a TransparentAddress) ScriptPubKey() []byte {
	if a.Kind == P2SH {
		script := make([]byte, 0, 23)
		script = append(script, 0xa9, 0x14)
		script = append(script, a.Hash[:]...)
		return append(script, 0x87)
	}
	script := make([]byte, 0, 25)
	script = append(script, 0x76, 0xa9, 0x14)
	script = append(script, a.Hash[:]...)
	return append(script, 0x88, 0xac)
}

// ParseTransparentAddress decodes a base58check t-address for any network.
func ParseTransparentAddress(s string) (TransparentAddress, error) {
	payload, version, err := base58.CheckDecode(s)
	if err != nil {
		return TransparentAddress{}, fmt.Errorf("%w: %v", ErrInvalidTransparentAddress, err)
	}
	if len(payload) != 1+AddressSize {
		return TransparentAddress{}, fmt.Errorf("%w: payload is %d bytes", ErrInvalidTransparentAddress, len(payload))
	}
	prefix := [2]byte{version, payload[0]}

	var addr TransparentAddress
	switch prefix {
	case mainnetP2PKH:
		addr.Network, addr.Kind = Mainnet, P2PKH
	case mainnetP2SH:
		addr.Network, addr.Kind = Mainnet, P2SH
	case testnetP2PKH:
		addr.Network, addr.Kind = Testnet, P2PKH
	case testnetP2SH:
		addr.Network, addr.Kind = Testnet, P2SH
	default:
		return TransparentAddress{}, fmt.Errorf("%w: %x", ErrUnknownAddressPrefix, prefix)
	}
	copy(addr.Hash[:], payload[1:])
	return addr, nil
}

// MarshalText encodes the address in its base58check form.
func (a TransparentAddress) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText decodes a base58check t-address.
func (a *TransparentAddress) UnmarshalText(text []byte) error {
	parsed, err := ParseTransparentAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
