package types

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/btcsuite/btcd/btcutil/bech32"
)

// OrchardAddrSize is the length of a raw Orchard address (diversifier + pk_d).
const OrchardAddrSize = 43

// OrchardAddr is a raw Orchard payment address.
type OrchardAddr [OrchardAddrSize]byte

// IsZero returns true if the address is all zeros.
func (a OrchardAddr) IsZero() bool {
	return a == OrchardAddr{}
}

// String returns the hex encoding of the raw address.
func (a OrchardAddr) String() string {
	return hex.EncodeToString(a[:])
}

// MarshalText encodes the address as hex.
func (a OrchardAddr) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText decodes a hex raw address.
func (a *OrchardAddr) UnmarshalText(text []byte) error {
	b, err := hex.DecodeString(string(text))
	if err != nil {
		return fmt.Errorf("invalid hex: %w", err)
	}
	if len(b) != OrchardAddrSize {
		return fmt.Errorf("orchard address must be %d bytes, got %d", OrchardAddrSize, len(b))
	}
	copy(a[:], b)
	return nil
}

// Receiver typecodes (ZIP-316).
const (
	TypecodeP2PKH   uint64 = 0x00
	TypecodeP2SH    uint64 = 0x01
	TypecodeSapling uint64 = 0x02
	TypecodeOrchard uint64 = 0x03
)

const uaPaddingLen = 16

// Unified address errors.
var (
	ErrInvalidUnifiedAddress = errors.New("invalid unified address")
	ErrNoShieldedReceiver    = errors.New("unified address has no shielded receiver")
)

// Receiver is one typed receiver inside a unified address.
type Receiver struct {
	Typecode uint64
	Data     []byte
}

// UnifiedAddress is a decoded ZIP-316 unified address.
type UnifiedAddress struct {
	Network   Network
	Receivers []Receiver
}

// NewOrchardUnifiedAddress builds a unified address holding only an Orchard receiver.
func NewOrchardUnifiedAddress(net Network, addr OrchardAddr) UnifiedAddress {
	return UnifiedAddress{
		Network:   net,
		Receivers: []Receiver{{Typecode: TypecodeOrchard, Data: addr[:]}},
	}
}

// Orchard returns the Orchard receiver, if present.
func (u UnifiedAddress) Orchard() (OrchardAddr, bool) {
	var out OrchardAddr
	for _, r := range u.Receivers {
		if r.Typecode == TypecodeOrchard && len(r.Data) == OrchardAddrSize {
			copy(out[:], r.Data)
			return out, true
		}
	}
	return out, false
}

// Transparent returns the P2PKH or P2SH receiver as a t-address, if present.
func (u UnifiedAddress) Transparent() (TransparentAddress, bool) {
	for _, r := range u.Receivers {
		if (r.Typecode == TypecodeP2PKH || r.Typecode == TypecodeP2SH) && len(r.Data) == AddressSize {
			addr := TransparentAddress{Network: u.Network, Kind: P2PKH}
			if r.Typecode == TypecodeP2SH {
				addr.Kind = P2SH
			}
			copy(addr.Hash[:], r.Data)
			return addr, true
		}
	}
	return TransparentAddress{}, false
}

func (u UnifiedAddress) hasShielded() bool {
	for _, r := range u.Receivers {
		if r.Typecode != TypecodeP2PKH && r.Typecode != TypecodeP2SH {
			return true
		}
	}
	return false
}

// Encode returns the bech32m string ("u1...", "utest1...").
func (u UnifiedAddress) Encode() (string, error) {
	if len(u.Receivers) == 0 {
		return "", fmt.Errorf("%w: no receivers", ErrInvalidUnifiedAddress)
	}
	if !u.hasShielded() {
		return "", ErrNoShieldedReceiver
	}
	receivers := append([]Receiver(nil), u.Receivers...)
	sort.Slice(receivers, func(i, j int) bool {
		return receivers[i].Typecode < receivers[j].Typecode
	})

	var raw bytes.Buffer
	for i, r := range receivers {
		if i > 0 && receivers[i-1].Typecode == r.Typecode {
			return "", fmt.Errorf("%w: duplicate typecode %d", ErrInvalidUnifiedAddress, r.Typecode)
		}
		writeCompactSize(&raw, r.Typecode)
		writeCompactSize(&raw, uint64(len(r.Data)))
		raw.Write(r.Data)
	}
	hrp := u.Network.UnifiedHRP()
	raw.Write(uaPadding(hrp))

	jumbled, err := F4Jumble(raw.Bytes())
	if err != nil {
		return "", err
	}
	conv, err := bech32.ConvertBits(jumbled, 8, 5, true)
	if err != nil {
		return "", err
	}
	return bech32.EncodeM(hrp, conv)
}

// ParseUnifiedAddress decodes a unified address for either network.
func ParseUnifiedAddress(s string) (UnifiedAddress, error) {
	hrp, data, err := bech32.DecodeNoLimit(s)
	if err != nil {
		return UnifiedAddress{}, fmt.Errorf("%w: %v", ErrInvalidUnifiedAddress, err)
	}
	// DecodeNoLimit accepts both checksum variants; only bech32m is valid here.
	if reenc, err := bech32.EncodeM(hrp, data); err != nil || reenc != strings.ToLower(s) {
		return UnifiedAddress{}, fmt.Errorf("%w: not bech32m", ErrInvalidUnifiedAddress)
	}

	var ua UnifiedAddress
	switch hrp {
	case MainnetUnifiedHRP:
		ua.Network = Mainnet
	case TestnetUnifiedHRP:
		ua.Network = Testnet
	default:
		return UnifiedAddress{}, fmt.Errorf("%w: unknown hrp %q", ErrInvalidUnifiedAddress, hrp)
	}

	jumbled, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return UnifiedAddress{}, fmt.Errorf("%w: %v", ErrInvalidUnifiedAddress, err)
	}
	raw, err := F4Unjumble(jumbled)
	if err != nil {
		return UnifiedAddress{}, fmt.Errorf("%w: %v", ErrInvalidUnifiedAddress, err)
	}
	if len(raw) < uaPaddingLen || !bytes.Equal(raw[len(raw)-uaPaddingLen:], uaPadding(hrp)) {
		return UnifiedAddress{}, fmt.Errorf("%w: bad padding", ErrInvalidUnifiedAddress)
	}

	r := bytes.NewReader(raw[:len(raw)-uaPaddingLen])
	var last uint64
	for r.Len() > 0 {
		typecode, err := readCompactSize(r)
		if err != nil {
			return UnifiedAddress{}, fmt.Errorf("%w: %v", ErrInvalidUnifiedAddress, err)
		}
		length, err := readCompactSize(r)
		if err != nil {
			return UnifiedAddress{}, fmt.Errorf("%w: %v", ErrInvalidUnifiedAddress, err)
		}
		if length > uint64(r.Len()) {
			return UnifiedAddress{}, fmt.Errorf("%w: truncated receiver", ErrInvalidUnifiedAddress)
		}
		if len(ua.Receivers) > 0 && typecode <= last {
			return UnifiedAddress{}, fmt.Errorf("%w: receivers out of order", ErrInvalidUnifiedAddress)
		}
		last = typecode
		data := make([]byte, length)
		r.Read(data)
		ua.Receivers = append(ua.Receivers, Receiver{Typecode: typecode, Data: data})
	}
	if len(ua.Receivers) == 0 {
		return UnifiedAddress{}, fmt.Errorf("%w: no receivers", ErrInvalidUnifiedAddress)
	}
	if !ua.hasShielded() {
		return UnifiedAddress{}, ErrNoShieldedReceiver
	}
	return ua, nil
}

func uaPadding(hrp string) []byte {
	pad := make([]byte, uaPaddingLen)
	copy(pad, hrp)
	return pad
}
