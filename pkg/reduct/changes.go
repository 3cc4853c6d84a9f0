package reduct

import "sync"

// changeHub is the multicast change-notification stream attached at the root.
// It carries no payload beyond "a mutation committed"; subscribers re-derive
// their own state independently through their node's projection.
type changeHub struct {
	mu   sync.Mutex
	subs map[uint64]chan struct{}
}

func newChangeHub() *changeHub {
	return &changeHub{subs: make(map[uint64]chan struct{})}
}

// subscribe registers a new subscriber and returns its channel plus an
// unsubscribe function. The channel has a one-slot buffer so notifications
// coalesce: a subscriber that has not drained the previous notification does
// not queue further ones.
func (h *changeHub) subscribe() (<-chan struct{}, func()) {
	id := nextID()
	ch := make(chan struct{}, 1)

	h.mu.Lock()
	h.subs[id] = ch
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
	}
	return ch, cancel
}

// publish emits exactly one notification per subscriber for a completed
// mutation pass. Uses copy-before-notify so the lock is not held while
// sending.
func (h *changeHub) publish() {
	h.mu.Lock()
	chans := make([]chan struct{}, 0, len(h.subs))
	for _, ch := range h.subs {
		chans = append(chans, ch)
	}
	h.mu.Unlock()

	for _, ch := range chans {
		select {
		case ch <- struct{}{}:
		default:
			// Already pending; coalesce.
		}
	}
}

// subscriberCount returns the current number of subscribers.
func (h *changeHub) subscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
