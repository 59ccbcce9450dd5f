package types

import "errors"

// Error definitions for the pool protocol. All pool operations fail with one of
// these sentinels (possibly wrapped with context) so callers can branch with
// errors.Is.
var (
	// ErrInsufficientBalance is returned when a deposit, withdrawal request or
	// transfer exceeds the available balance. User-correctable.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrUnauthenticated is returned when a cross-domain entrypoint is invoked
	// by anything other than the registered messenger relaying a message from
	// the paired pool. Fatal, never retried internally.
	ErrUnauthenticated = errors.New("unauthenticated cross-domain call")

	// ErrNotYetDue is returned when a batch execution is attempted before the
	// epoch period has elapsed. Caller should wait and retry.
	ErrNotYetDue = errors.New("batch period has not elapsed")

	// ErrNotClaimable is returned when a claim is attempted against a vault
	// that is not Completed or in which the caller holds no unclaimed shares.
	ErrNotClaimable = errors.New("withdrawal not claimable")

	// ErrUnknownBatch is returned for lookups against a batch id that was
	// never created.
	ErrUnknownBatch = errors.New("unknown withdrawal batch")
)
