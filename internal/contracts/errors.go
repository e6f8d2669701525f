package contracts

import "errors"

// Error taxonomy shared across the pipeline. Callers classify failures with
// errors.Is; concrete messages wrap these sentinels with fmt.Errorf("%w: ...").
var (
	// ErrValidation marks malformed or contradictory input rows (high < low,
	// missing required field, duplicate key inside one ingest batch). The
	// whole batch is rejected, never partially applied.
	ErrValidation = errors.New("validation error")

	// ErrIntegrity marks a storage invariant violation (compaction row-count
	// mismatch, unexpected empty output). Fatal for the affected partition;
	// its original segments are left in place.
	ErrIntegrity = errors.New("integrity error")

	// ErrNotFound marks a lookup miss that the caller asked for by key
	// (unknown symbol code, unknown date in a strategy model).
	ErrNotFound = errors.New("not found")

	// ErrUpstream marks an unusable external data feed (missing credentials,
	// empty or failed fetch). Surfaced to the operator, never turned into
	// silent partial data.
	ErrUpstream = errors.New("upstream unavailable")
)
