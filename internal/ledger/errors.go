package ledger

import (
	"errors"
	"fmt"
)

// Sentinel errors classifying every failure the engine can report. Callers
// branch with errors.Is; the wrapped chain carries the detail.
var (
	// ErrNotFound means a referenced account or transaction does not exist.
	// Apply/Remove abort with no partial mutation.
	ErrNotFound = errors.New("not found")

	// ErrInvariant means the operation would break a ledger invariant (e.g. a
	// transfer onto itself, or removing a transaction that was never
	// cleared). Rejected before any mutation.
	ErrInvariant = errors.New("invariant violation")

	// ErrPersistence means an underlying store write failed. Retryable: the
	// cleared flag is written last, so a failed call leaves the transaction
	// correctly marked not-yet-cleared.
	ErrPersistence = errors.New("persistence failure")

	// ErrInFlight means an Apply/Remove for the same transaction is already
	// running. The duplicate call is rejected, not queued.
	ErrInFlight = errors.New("operation already in flight")

	// ErrAborted means a user-initiated operation was cancelled at the
	// confirmation prompt. Nothing was mutated.
	ErrAborted = errors.New("aborted by user")
)

// PartialCascadeError reports an account deletion that unwound some but not
// all of the account's transactions. The account itself is not deleted until
// every transaction is; retrying the deletion retries only the failed IDs.
type PartialCascadeError struct {
	AccountID string
	FailedIDs []string
	Errs      []error
}

func (e *PartialCascadeError) Error() string {
	return fmt.Sprintf("cascade deletion of account %s: %d transaction(s) failed: %v",
		e.AccountID, len(e.FailedIDs), e.FailedIDs)
}

// Unwrap exposes the individual transaction failures to errors.Is/As.
func (e *PartialCascadeError) Unwrap() []error {
	return e.Errs
}
