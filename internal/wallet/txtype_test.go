package wallet

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Klingon-tech/zwallet/pkg/types"
)

const (
	// Mainnet unified address with orchard and transparent receivers.
	mainnetUAWithOrchard = "u19hwdcqxhkapje2p0744gq96parewuffyeg0kg3q3taq040zwqh2wxjwyxzs6l9dulzuap43ya7mq7q3mu2hjafzlwylvystjlc6n294emxww9xm8qn6tcldqkq4k9ccsqzmjeqk9ypkss572ut324nmxke666jm8lhkpt85gzq58d50rfnd7wufke8jjhc3lhswxrdr57ah42xckh2j"
	testnetUA            = "utest1vergg5jkp4xy8sqfasw6s5zkdpnxvfxlxh35uuc3me7dp596y2r05t6dv9htwe3pf8ksrfr8ksca2lskzjanqtl8uqp5vln3zyy246ejtx86vqftp73j7jg9099jxafyjhfm6u956j3"
	ethAddress           = "0xA4bE3C94e8c1B7D2F9e6Bf3E1D9A2cC45B6F9A12"
)

func TestGetTransactionType_Transparent(t *testing.T) {
	f := newFixture(t, false)

	tests := []struct {
		name    string
		address string
		typ     TxType
		addrErr AddressError
	}{
		{"t-address", mainnetTAddr, TxTypeTransparentToTransparent, AddressErrorNone},
		{"testnet t-address", testnetTAddr, TxTypeUnknown, AddressErrorNetworkMismatch},
		{"short", "t1xxx", TxTypeUnknown, AddressErrorInvalidTransparent},
		{"bad checksum", "t1JP7PHu72xHztsZiwH6cye4yvC9Prb3Ev0", TxTypeUnknown, AddressErrorInvalidTransparent},
		{"ethereum", ethAddress, TxTypeUnknown, AddressErrorInvalidTransparent},
		{"empty", "", TxTypeUnknown, AddressErrorInvalidTransparent},
		{"unified with transparent", mainnetUAWithTransparent, TxTypeTransparentToTransparent, AddressErrorNone},
		{"unified with orchard, pool disabled", mainnetUAWithOrchard, TxTypeTransparentToTransparent, AddressErrorNone},
		{"unified sapling only", mainnetUASaplingOnly, TxTypeUnknown, AddressErrorMissingTransparentPart},
		{"unified garbage", "u1xx", TxTypeUnknown, AddressErrorMissingTransparentPart},
		{"testnet unified", testnetUA, TxTypeUnknown, AddressErrorNetworkMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			typ, addrErr, err := f.svc.GetTransactionType(0, false, tt.address)
			require.NoError(t, err)
			require.Equal(t, tt.typ, typ)
			require.Equal(t, tt.addrErr, addrErr)
		})
	}
}

func TestGetTransactionType_Shielded(t *testing.T) {
	f := newFixture(t, true)

	internal, _, _ := f.keyring.GetOrchardRawAddress(0, true)
	own, err := types.NewOrchardUnifiedAddress(types.Mainnet, internal).Encode()
	require.NoError(t, err)

	tests := []struct {
		name        string
		useShielded bool
		address     string
		typ         TxType
		addrErr     AddressError
	}{
		{"t to orchard", false, mainnetUAWithOrchard, TxTypeTransparentToOrchard, AddressErrorNone},
		{"shielding to own address", false, own, TxTypeShielding, AddressErrorNone},
		{"orchard to orchard", true, mainnetUAWithOrchard, TxTypeOrchardToOrchard, AddressErrorNone},
		{"orchard to own address", true, own, TxTypeOrchardToOrchard, AddressErrorNone},
		{"orchard to t-address", true, mainnetTAddr, TxTypeOrchardToTransparent, AddressErrorNone},
		{"orchard to testnet t-address", true, testnetTAddr, TxTypeUnknown, AddressErrorNetworkMismatch},
		{"orchard to sapling only", true, mainnetUASaplingOnly, TxTypeUnknown, AddressErrorMissingOrchardPart},
		{"orchard to transparent-only unified", true, mainnetUAWithTransparent, TxTypeUnknown, AddressErrorMissingOrchardPart},
		{"orchard to garbage unified", true, "u1xx", TxTypeUnknown, AddressErrorMissingOrchardPart},
		{"orchard to ethereum", true, ethAddress, TxTypeUnknown, AddressErrorInvalidUnified},
		{"orchard to empty", true, "", TxTypeUnknown, AddressErrorInvalidUnified},
		{"orchard to testnet unified", true, testnetUA, TxTypeUnknown, AddressErrorNetworkMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			typ, addrErr, err := f.svc.GetTransactionType(0, tt.useShielded, tt.address)
			require.NoError(t, err)
			require.Equal(t, tt.typ, typ)
			require.Equal(t, tt.addrErr, addrErr)
		})
	}
}

func TestTxType_String(t *testing.T) {
	require.Equal(t, "shielding", TxTypeShielding.String())
	require.Equal(t, "unknown", TxTypeUnknown.String())
	require.Equal(t, "invalid_address_network_mismatch", AddressErrorNetworkMismatch.String())
}
