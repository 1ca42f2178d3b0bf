// Package compliance implements the cryptographic audit substrate: event
// interception (CEI), policy canonicalization (PAC), the hash-chained
// ledger (CAL), adaptive fidelity selection (AAP), and proof-bundle
// construction and verification (ZCVI).
package compliance

import "errors"

// Sentinel errors surfaced at component boundaries. Verification failures
// are reported as false/itemized errors rather than returned errors; these
// sentinels cover lookups and input validation only.
var (
	// ErrNotFound is returned when a record, policy, or batch is not present.
	ErrNotFound = errors.New("compliance: not found")

	// ErrInvalidInput is returned when a policy or event is malformed.
	ErrInvalidInput = errors.New("compliance: invalid input")

	// ErrBatchSizeLocked is returned when SetBatchSize is called after the
	// ledger has already accepted at least one append.
	ErrBatchSizeLocked = errors.New("compliance: batch size cannot change after appends begin")
)
