package wallet

import (
	"errors"

	"github.com/Klingon-tech/zwallet/pkg/tx"
)

// Wallet errors.
var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNoUTXOs           = errors.New("no UTXOs available")
	ErrNoSpendableNotes  = errors.New("no spendable notes")
	ErrNetworkMismatch   = errors.New("address network mismatch")
	ErrNoInternalAddress = errors.New("account has no internal orchard address")
	ErrInvalidAddress    = errors.New("invalid destination address")
	ErrAmountUnderflow   = errors.New("amount underflow")
	ErrAmountOverflow    = errors.New("amount overflow")
	ErrEmptyResponse     = errors.New("empty or malformed chain response")
	ErrTaskDropped       = errors.New("task dropped")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrShieldedDisabled  = errors.New("shielded pool is disabled")
	ErrUnsupportedTxType = errors.New("unsupported transaction type")
)

// IsRecoverable reports whether err is a condition the caller can fix and
// retry (more funds, another address, a repeated query) rather than a
// failure of the operation itself.
func IsRecoverable(err error) bool {
	switch {
	case errors.Is(err, ErrInsufficientFunds),
		errors.Is(err, ErrNoUTXOs),
		errors.Is(err, ErrNoSpendableNotes),
		errors.Is(err, ErrEmptyResponse),
		errors.Is(err, ErrNetworkMismatch),
		errors.Is(err, ErrInvalidAddress),
		errors.Is(err, ErrUnsupportedTxType),
		errors.Is(err, ErrInvalidAmount):
		return true
	case errors.Is(err, tx.ErrMemoTooLarge):
		return true
	}
	return false
}
