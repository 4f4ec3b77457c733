package wallet

import (
	"fmt"

	"github.com/Klingon-tech/zwallet/pkg/types"
)

// TxType is the kind of transaction a destination address calls for.
type TxType int

const (
	TxTypeUnknown TxType = iota
	TxTypeTransparentToTransparent
	TxTypeTransparentToOrchard
	TxTypeOrchardToOrchard
	TxTypeOrchardToTransparent
	TxTypeShielding
)

func (t TxType) String() string {
	switch t {
	case TxTypeTransparentToTransparent:
		return "transparent_to_transparent"
	case TxTypeTransparentToOrchard:
		return "transparent_to_orchard"
	case TxTypeOrchardToOrchard:
		return "orchard_to_orchard"
	case TxTypeOrchardToTransparent:
		return "orchard_to_transparent"
	case TxTypeShielding:
		return "shielding"
	default:
		return "unknown"
	}
}

// AddressError explains why a destination could not be classified.
type AddressError int

const (
	AddressErrorNone AddressError = iota
	AddressErrorInvalidTransparent
	AddressErrorInvalidUnified
	AddressErrorNetworkMismatch
	AddressErrorMissingTransparentPart
	AddressErrorMissingOrchardPart
)

func (e AddressError) String() string {
	switch e {
	case AddressErrorNone:
		return "none"
	case AddressErrorInvalidTransparent:
		return "invalid_transparent_address"
	case AddressErrorInvalidUnified:
		return "invalid_unified_address"
	case AddressErrorNetworkMismatch:
		return "invalid_address_network_mismatch"
	case AddressErrorMissingTransparentPart:
		return "invalid_unified_address_missing_transparent_part"
	case AddressErrorMissingOrchardPart:
		return "invalid_unified_address_missing_orchard_part"
	default:
		return fmt.Sprintf("address_error(%d)", int(e))
	}
}

// classifyDestination decides which builder a payment to address needs.
// useShielded selects the Orchard pool as the funding source. The error
// return is reserved for keyring failures.
func classifyDestination(net types.Network, shieldedEnabled bool, k Keyring, account uint32,
	useShielded bool, address string) (TxType, AddressError, error) {

	if isUnifiedString(address) {
		wantHRP := net.UnifiedHRP() + "1"
		if len(address) < len(wantHRP) || address[:len(wantHRP)] != wantHRP {
			return TxTypeUnknown, AddressErrorNetworkMismatch, nil
		}
		ua, parseErr := types.ParseUnifiedAddress(address)
		orchard, hasOrchard := types.OrchardAddr{}, false
		if parseErr == nil {
			orchard, hasOrchard = ua.Orchard()
		}

		if useShielded {
			if !hasOrchard {
				return TxTypeUnknown, AddressErrorMissingOrchardPart, nil
			}
			return TxTypeOrchardToOrchard, AddressErrorNone, nil
		}

		if hasOrchard && shieldedEnabled {
			internal, ok, err := k.GetOrchardRawAddress(account, true)
			if err != nil {
				return TxTypeUnknown, AddressErrorNone, fmt.Errorf("orchard internal address: %w", err)
			}
			if ok && internal == orchard {
				return TxTypeShielding, AddressErrorNone, nil
			}
			return TxTypeTransparentToOrchard, AddressErrorNone, nil
		}
		if parseErr == nil {
			if _, ok := ua.Transparent(); ok {
				return TxTypeTransparentToTransparent, AddressErrorNone, nil
			}
		}
		return TxTypeUnknown, AddressErrorMissingTransparentPart, nil
	}

	addr, err := types.ParseTransparentAddress(address)
	switch {
	case err == nil && addr.Network != net:
		return TxTypeUnknown, AddressErrorNetworkMismatch, nil
	case err == nil && useShielded:
		return TxTypeOrchardToTransparent, AddressErrorNone, nil
	case err == nil:
		return TxTypeTransparentToTransparent, AddressErrorNone, nil
	case useShielded:
		return TxTypeUnknown, AddressErrorInvalidUnified, nil
	default:
		return TxTypeUnknown, AddressErrorInvalidTransparent, nil
	}
}
