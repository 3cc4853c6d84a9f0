package reduct

import "sync/atomic"

// idCounter is the global counter for unique IDs.
// Shared by nodes, subscriptions, and anonymous effect identities.
var idCounter atomic.Uint64

// nextID returns a process-unique identifier.
func nextID() uint64 {
	return idCounter.Add(1)
}
