package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestParseTransparentAddress(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		network Network
		kind    AddressKind
		wantErr error
	}{
		{name: "mainnet p2pkh", input: "t1JP7PHu72xHztsZiwH6cye4yvC9Prb3EvQ", network: Mainnet, kind: P2PKH},
		{name: "testnet p2pkh", input: "tmP3uLtGx5GPddkq8a6ddmXhqJJ3vy6tpTE", network: Testnet, kind: P2PKH},
		{name: "too short", input: "t1xxx", wantErr: ErrInvalidTransparentAddress},
		{name: "bad checksum char", input: "t1JP7PHu72xHztsZiwH6cye4yvC9Prb3Ev0", wantErr: ErrInvalidTransparentAddress},
		{name: "eth address", input: "0xA4bE3C94e8c1B7D2F9e6Bf3E1D9A2cC45B6F9A12", wantErr: ErrInvalidTransparentAddress},
		{name: "empty", input: "", wantErr: ErrInvalidTransparentAddress},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr, err := ParseTransparentAddress(tt.input)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ParseTransparentAddress(%q) error = %v, want %v", tt.input, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTransparentAddress(%q): %v", tt.input, err)
			}
			if addr.Network != tt.network {
				t.Errorf("network = %s, want %s", addr.Network, tt.network)
			}
			if addr.Kind != tt.kind {
				t.Errorf("kind = %d, want %d", addr.Kind, tt.kind)
			}
			if addr.String() != tt.input {
				t.Errorf("roundtrip: got %s, want %s", addr.String(), tt.input)
			}
		})
	}
}

func TestTransparentAddress_Prefixes(t *testing.T) {
	var h [AddressSize]byte
	h[0] = 0x42

	cases := map[string]TransparentAddress{
		"t1": {Network: Mainnet, Kind: P2PKH, Hash: h},
		"t3": {Network: Mainnet, Kind: P2SH, Hash: h},
		"tm": {Network: Testnet, Kind: P2PKH, Hash: h},
		"t2": {Network: Testnet, Kind: P2SH, Hash: h},
	}
	for prefix, addr := range cases {
		s := addr.String()
		if !strings.HasPrefix(s, prefix) {
			t.Errorf("%s %d: String() = %s, want prefix %s", addr.Network, addr.Kind, s, prefix)
		}
		parsed, err := ParseTransparentAddress(s)
		if err != nil {
			t.Fatalf("ParseTransparentAddress(%s): %v", s, err)
		}
		if parsed != addr {
			t.Errorf("roundtrip mismatch for %s", s)
		}
	}
}

func TestNewP2PKHAddress(t *testing.T) {
	pub := bytes.Repeat([]byte{0x02}, 33)
	a := NewP2PKHAddress(Mainnet, pub)
	b := NewP2PKHAddress(Mainnet, pub)
	if a != b {
		t.Error("derivation should be deterministic")
	}
	if a.Hash != Hash160(pub) {
		t.Error("address hash should be hash160 of the pubkey")
	}
	if !strings.HasPrefix(a.String(), "t1") {
		t.Errorf("String() = %s, want t1 prefix", a.String())
	}
}

func TestTransparentAddress_ScriptPubKey(t *testing.T) {
	var h [AddressSize]byte
	h[19] = 0xff

	p2pkh := TransparentAddress{Kind: P2PKH, Hash: h}.ScriptPubKey()
	if len(p2pkh) != 25 || p2pkh[0] != 0x76 || p2pkh[24] != 0xac {
		t.Errorf("p2pkh script = %x", p2pkh)
	}
	if !bytes.Equal(p2pkh[3:23], h[:]) {
		t.Error("p2pkh script should embed the hash")
	}

	p2sh := TransparentAddress{Kind: P2SH, Hash: h}.ScriptPubKey()
	if len(p2sh) != 23 || p2sh[0] != 0xa9 || p2sh[22] != 0x87 {
		t.Errorf("p2sh script = %x", p2sh)
	}
}

func TestNetworkForChainID(t *testing.T) {
	if n, err := NetworkForChainID(MainnetChainID); err != nil || n != Mainnet {
		t.Errorf("mainnet: got %v, %v", n, err)
	}
	if n, err := NetworkForChainID(TestnetChainID); err != nil || n != Testnet {
		t.Errorf("testnet: got %v, %v", n, err)
	}
	if _, err := NetworkForChainID("eth_mainnet"); err == nil {
		t.Error("unknown chain id should fail")
	}
	if Testnet.ChainID() != TestnetChainID {
		t.Errorf("Testnet.ChainID() = %s", Testnet.ChainID())
	}
}

func TestTransparentAddress_JSON(t *testing.T) {
	addr, err := ParseTransparentAddress("t1JP7PHu72xHztsZiwH6cye4yvC9Prb3EvQ")
	if err != nil {
		t.Fatalf("ParseTransparentAddress: %v", err)
	}
	data, err := json.Marshal(addr)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `"t1JP7PHu72xHztsZiwH6cye4yvC9Prb3EvQ"` {
		t.Errorf("json = %s", data)
	}
	var got TransparentAddress
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got != addr {
		t.Errorf("roundtrip = %v, want %v", got, addr)
	}
}
