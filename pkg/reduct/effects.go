package reduct

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// Effect describes one unit of asynchronous work issued by a reducer. The
// reducer never performs side effects inline; it returns descriptors and the
// store runs them after the pass commits, so an effect can never observe
// pre-commit state.
type Effect[A any] struct {
	// ID is the explicit cancellation identity. Effects sharing an ID
	// supersede each other: registering a new effect under a live ID requests
	// cancellation of the previous occupant. An empty ID is assigned a unique
	// anonymous identity.
	ID string

	// Run is the effect body. It executes on its own goroutine, observes
	// cancellation through ctx, and reports results only by sending actions.
	Run func(ctx context.Context, send func(A))

	// AwaitCleanup marks the effect as running its own cleanup to completion:
	// cancellation is still requested on detachment, but the registry entry is
	// kept until the body returns.
	AwaitCleanup bool
}

// EffectState is the completion state of a tracked effect.
type EffectState int32

const (
	// EffectPending means the effect goroutine has been registered and may be
	// running.
	EffectPending EffectState = iota

	// EffectCompleted means the body returned without being cancelled.
	EffectCompleted

	// EffectCancelled means cancellation was requested before completion.
	EffectCancelled
)

// String returns a human-readable name for the effect state.
func (s EffectState) String() string {
	switch s {
	case EffectPending:
		return "pending"
	case EffectCompleted:
		return "completed"
	case EffectCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// EffectHandle tracks one in-flight effect: its identity, cancellation
// capability, and completion state.
type EffectHandle struct {
	id           string
	owner        NodeID
	awaitCleanup bool
	cancel       context.CancelFunc
	state        atomic.Int32
}

// ID returns the effect's cancellation identity.
func (h *EffectHandle) ID() string { return h.id }

// State returns the effect's completion state.
func (h *EffectHandle) State() EffectState { return EffectState(h.state.Load()) }

// EffectStatus is a point-in-time view of a registry entry, for the inspector
// and diagnostics.
type EffectStatus struct {
	ID           string      `json:"id"`
	Owner        NodeID      `json:"owner"`
	State        EffectState `json:"state"`
	AwaitCleanup bool        `json:"await_cleanup,omitempty"`
}

// effectRegistry tracks in-flight effects by identity. It is owned by the
// root and supports targeted cancellation (one row's download never cancels a
// sibling row's), bulk cancellation on node detachment, and full teardown on
// Close.
type effectRegistry struct {
	mu       sync.Mutex
	inflight map[string]*EffectHandle
	obs      observers
}

func newEffectRegistry(obs observers) *effectRegistry {
	return &effectRegistry{
		inflight: make(map[string]*EffectHandle),
		obs:      obs,
	}
}

// register installs a handle before the effect goroutine starts. A live
// occupant under the same id is asked to cancel and superseded; its late
// completion is discarded because deregistration compares handle identity.
func (r *effectRegistry) register(id string, owner NodeID, awaitCleanup bool, ctx context.Context) (*EffectHandle, context.Context) {
	if id == "" {
		id = fmt.Sprintf("anon:%d", nextID())
	}

	effCtx, cancel := context.WithCancel(ctx)
	h := &EffectHandle{
		id:           id,
		owner:        owner,
		awaitCleanup: awaitCleanup,
		cancel:       cancel,
	}

	r.mu.Lock()
	prev, superseded := r.inflight[id]
	r.inflight[id] = h
	r.mu.Unlock()

	if superseded {
		r.requestCancel(prev)
	}
	r.obs.EffectRegistered(id)
	return h, effCtx
}

// complete deregisters a handle after its body returns. A stale handle that
// was superseded or already cleared is a no-op: effect ids are never reused
// across detach/reattach, so a dead handle cannot clear a live occupant.
func (r *effectRegistry) complete(h *EffectHandle) {
	r.mu.Lock()
	if r.inflight[h.id] == h {
		delete(r.inflight, h.id)
	}
	r.mu.Unlock()

	// A handle resolves exactly once. If cancellation was requested earlier
	// the transition (and its notification) already happened; an AwaitCleanup
	// body reaching this point has finished its cleanup and the id is now
	// finally cleared.
	if h.state.CompareAndSwap(int32(EffectPending), int32(EffectCompleted)) {
		r.obs.EffectResolved(h.id, EffectCompleted)
	}
}

// cancelID cancels the effect registered under id. Cancelling an unknown or
// already-completed id is a no-op, never an error.
func (r *effectRegistry) cancelID(id string) {
	r.mu.Lock()
	h, ok := r.inflight[id]
	if ok && !h.awaitCleanup {
		delete(r.inflight, id)
	}
	r.mu.Unlock()

	if !ok {
		return
	}
	r.requestCancel(h)
}

// cancelOwned force-cancels every in-flight effect whose dispatch path passed
// through one of the detached nodes. Runs within the same pass as the
// detachment.
func (r *effectRegistry) cancelOwned(detached map[NodeID]struct{}) {
	if len(detached) == 0 {
		return
	}

	r.mu.Lock()
	var owned []*EffectHandle
	for id, h := range r.inflight {
		if _, ok := detached[h.owner]; ok {
			owned = append(owned, h)
			if !h.awaitCleanup {
				delete(r.inflight, id)
			}
		}
	}
	r.mu.Unlock()

	for _, h := range owned {
		r.requestCancel(h)
	}
}

// cancelAll tears down the registry on store Close.
func (r *effectRegistry) cancelAll() {
	r.mu.Lock()
	handles := make([]*EffectHandle, 0, len(r.inflight))
	for _, h := range r.inflight {
		handles = append(handles, h)
	}
	r.inflight = make(map[string]*EffectHandle)
	r.mu.Unlock()

	for _, h := range handles {
		r.requestCancel(h)
	}
}

// requestCancel transitions the handle to cancelled (once) and signals its
// context.
func (r *effectRegistry) requestCancel(h *EffectHandle) {
	if h.markCancelled() {
		r.obs.EffectResolved(h.id, EffectCancelled)
	}
	h.cancel()
}

// snapshot returns the current registry contents, ordered arbitrarily.
func (r *effectRegistry) snapshot() []EffectStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]EffectStatus, 0, len(r.inflight))
	for _, h := range r.inflight {
		out = append(out, EffectStatus{
			ID:           h.id,
			Owner:        h.owner,
			State:        h.State(),
			AwaitCleanup: h.awaitCleanup,
		})
	}
	return out
}

// markCancelled flips the handle to cancelled if still pending.
// Returns true on the first transition.
func (h *EffectHandle) markCancelled() bool {
	return h.state.CompareAndSwap(int32(EffectPending), int32(EffectCancelled))
}
