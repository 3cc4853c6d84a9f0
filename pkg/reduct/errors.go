package reduct

import "errors"

// ErrStoreClosed is returned when an operation requires a live store loop
// after Close has been called.
//
// Sends issued after Close are discarded with a warning log rather than an
// error: a closing tree routinely races late effect completions, and those
// completions are expected to be dropped.
var ErrStoreClosed = errors.New("reduct: store closed")

// Panic diagnostics for programming defects. These are precondition failures,
// not runtime conditions, so they fail loudly instead of returning errors.
const (
	// panicOffLoopCommit fires when state is committed from a goroutine other
	// than the store's writer loop. Every mutation must arrive via Send.
	panicOffLoopCommit = "[REDUCT E001] state committed off the store loop; dispatch through Send instead"

	// panicScopeTypeMismatch fires when a cached child is looked up under a
	// ScopeID that was previously registered with different type parameters.
	// Selector keys must be unique per projection type pair.
	panicScopeTypeMismatch = "[REDUCT E002] scope cache type mismatch: the same selector keys were used for two different projections"
)
