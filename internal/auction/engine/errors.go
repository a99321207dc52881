package engine

import (
	"errors"
	"fmt"
)

// Validation errors are expected and returned synchronously to the calling
// client only; other clients never learn of a rejected attempt.
var (
	ErrInvalidMaterial    = errors.New("invalid material id")
	ErrInvalidBundleType  = errors.New("invalid bundle type for this material")
	ErrInvalidBundleCount = errors.New("total bundles must be at least 1")
	ErrNoActiveSession    = errors.New("no active bidding session")
	ErrInsufficientTokens = errors.New("insufficient tokens")

	// ErrLedgerInvariant indicates an engine bug: a debit that would drive a
	// balance negative reached the ledger. Fatal/internal, never expected.
	ErrLedgerInvariant = errors.New("ledger invariant violation")
)

// BidTooLowError carries the computed minimum so clients can display it.
type BidTooLowError struct {
	Minimum int
}

func (e *BidTooLowError) Error() string {
	return fmt.Sprintf("bid must be at least %d tokens", e.Minimum)
}
