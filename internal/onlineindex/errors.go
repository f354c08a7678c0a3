package onlineindex

import (
	"errors"
	"fmt"
)

// CapacityError signals a KV error whose remedy is "do less work per
// transaction" — transaction-too-large, transaction-too-old, a commit
// conflict, the process falling behind, a not-committed result, or a
// commit-unknown-result. Code is one of the recognized capacity codes;
// the retry controller shrinks its chunk limit and backs off on sight of
// one, per the design's error taxonomy.
type CapacityError struct {
	Code int
	Err  error
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("capacity error %d: %v", e.Code, e.Err)
}

func (e *CapacityError) Unwrap() error { return e.Err }

// Recognized capacity codes: transaction-too-large, transaction-too-old,
// commit conflict, process-behind, not-committed, commit-unknown-result.
var capacityCodes = map[int]bool{
	1004: true, // transaction_too_large
	1007: true, // transaction_too_old
	1020: true, // not_committed (conflict with another transaction)
	1031: true, // transaction_too_old (process-behind variant)
	2002: true, // commit_read_incomplete / process_behind
	2101: true, // commit_unknown_result
}

// classifyCapacity walks err's causal chain (via errors.As, which follows
// Unwrap) looking for a *CapacityError whose Code is recognized. Returns
// the found error and true, or (nil, false) if no capacity error is found
// anywhere in the chain.
func classifyCapacity(err error) (*CapacityError, bool) {
	var ce *CapacityError
	if errors.As(err, &ce) && capacityCodes[ce.Code] {
		return ce, true
	}
	return nil, false
}

// RangeAlreadyBuiltError is returned by buildUnbuilt when the BRS insert
// for [Begin,End) was a no-op — either a concurrent builder already
// covered the interval, or this is a retry of a transaction that in fact
// committed previously (a commit-unknown-result that actually succeeded).
// Callers are expected to recover by re-querying BRS.missing over the
// same interval rather than treating this as a hard failure.
type RangeAlreadyBuiltError struct {
	Begin, End PK
}

func (e *RangeAlreadyBuiltError) Error() string {
	return fmt.Sprintf("range already built: [%s,%s)", e.Begin, e.End)
}

// AttemptedBuildOfReadableIndexError is a configuration/caller error: the
// retry controller refuses to build an index that is not WRITE_ONLY. Never
// retried.
type AttemptedBuildOfReadableIndexError struct {
	Index string
	State IndexState
}

func (e *AttemptedBuildOfReadableIndexError) Error() string {
	return fmt.Sprintf("index %q is not write-only (state=%v): refusing to build", e.Index, e.State)
}

// MetaDataMismatchError reports an inconsistency between the builder's
// configuration and the record store's view of the index (e.g. the index
// does not exist, or its record-type set has since changed). Never
// retried.
type MetaDataMismatchError struct {
	Reason string
}

func (e *MetaDataMismatchError) Error() string {
	return fmt.Sprintf("metadata mismatch: %s", e.Reason)
}

// RetryBudgetExhaustedError wraps the last error seen after max_retries
// attempts were spent without success.
type RetryBudgetExhaustedError struct {
	Attempts int
	Last     error
}

func (e *RetryBudgetExhaustedError) Error() string {
	return fmt.Sprintf("retry budget exhausted after %d attempts: %v", e.Attempts, e.Last)
}

func (e *RetryBudgetExhaustedError) Unwrap() error { return e.Last }
