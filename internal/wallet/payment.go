package wallet

import (
	"context"
	"fmt"

	"github.com/Klingon-tech/zwallet/pkg/tx"
	"github.com/Klingon-tech/zwallet/pkg/types"
)

// BuildPayment classifies to and builds the matching transaction. useShielded
// spends from the Orchard pool. A payment to the account's own internal
// Orchard address shields the whole transparent balance and ignores amount.
func (s *Service) BuildPayment(ctx context.Context, account uint32, to string, amount uint64, useShielded bool, memo []byte) (*tx.Transaction, error) {
	kind, addrErr, err := s.GetTransactionType(account, useShielded, to)
	if err != nil {
		return nil, err
	}
	switch addrErr {
	case AddressErrorNone:
	case AddressErrorNetworkMismatch:
		return nil, fmt.Errorf("%w: %s", ErrNetworkMismatch, to)
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidAddress, addrErr)
	}
	if len(memo) > 0 && kind != TxTypeOrchardToOrchard && kind != TxTypeTransparentToOrchard {
		return nil, fmt.Errorf("%w: memo needs a shielded payment, got %s", ErrInvalidAddress, kind)
	}

	switch kind {
	case TxTypeTransparentToTransparent:
		return s.BuildTransparentTransaction(ctx, account, to, amount)
	case TxTypeOrchardToOrchard, TxTypeTransparentToOrchard:
		ua, err := types.ParseUnifiedAddress(to)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
		}
		recipient, _ := ua.Orchard()
		if kind == TxTypeTransparentToOrchard {
			return s.BuildTransparentToOrchardTransaction(ctx, account, recipient, memo, amount)
		}
		return s.BuildShieldedTransaction(ctx, account, recipient, memo, amount)
	case TxTypeOrchardToTransparent:
		return s.BuildOrchardToTransparentTransaction(ctx, account, to, amount)
	case TxTypeShielding:
		return s.ShieldAllFunds(ctx, account)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedTxType, kind)
	}
}
