package reduct

import (
	"sync"
	"testing"
)

type counterState struct {
	Count int
}

type counterAction any

type increment struct{}
type decrement struct{}
type addN struct{ N int }

func counterReducer(s counterState, a counterAction) (counterState, []Effect[counterAction]) {
	switch a := a.(type) {
	case increment:
		s.Count++
	case decrement:
		s.Count--
	case addN:
		s.Count += a.N
	}
	return s, nil
}

func TestRootFoldEquivalence(t *testing.T) {
	store := New(counterState{}, counterReducer)
	defer store.Close()

	actions := []counterAction{increment{}, increment{}, addN{N: 5}, decrement{}, increment{}}
	for _, a := range actions {
		store.Send(a)
	}
	store.Flush()

	// The runtime must be a faithful mechanical executor of the reducer.
	want := counterState{}
	for _, a := range actions {
		want, _ = counterReducer(want, a)
	}
	if got := store.State(); got != want {
		t.Errorf("expected state %+v after sends, got %+v", want, got)
	}
}

func TestSendThreeIncrements(t *testing.T) {
	store := New(counterState{}, counterReducer)
	defer store.Close()

	store.Send(increment{})
	store.Send(increment{})

	// A scope call made between sends must still reflect the final state
	// after the last send completes: reads are pull-based, never cached.
	child := Scope(store,
		StateLens[counterState, int]{Key: "count", Get: func(s counterState) int { return s.Count }},
		ActionEmbed[counterAction, counterAction]{Key: "self", Wrap: func(a counterAction) counterAction { return a }},
	)

	store.Send(increment{})
	store.Flush()

	if got := store.State().Count; got != 3 {
		t.Errorf("expected count 3, got %d", got)
	}
	if got := child.State(); got != 3 {
		t.Errorf("expected child projection 3, got %d", got)
	}
}

func TestConcurrentSends(t *testing.T) {
	store := New(counterState{}, counterReducer)
	defer store.Close()

	const goroutines = 8
	const perGoroutine = 50

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				store.Send(increment{})
			}
		}()
	}
	wg.Wait()
	store.Flush()

	if got := store.State().Count; got != goroutines*perGoroutine {
		t.Errorf("expected count %d, got %d", goroutines*perGoroutine, got)
	}
}

func TestScopeIdentityCaching(t *testing.T) {
	store := New(counterState{}, counterReducer)
	defer store.Close()

	lens := StateLens[counterState, int]{Key: "count", Get: func(s counterState) int { return s.Count }}
	embed := ActionEmbed[counterAction, counterAction]{Key: "self", Wrap: func(a counterAction) counterAction { return a }}

	first := Scope(store, lens, embed)
	second := Scope(store, lens, embed)

	if first != second {
		t.Error("expected identical child node for equal ScopeID, got distinct nodes")
	}

	// Caching survives mutations that don't invalidate the projection.
	store.Send(increment{})
	store.Flush()

	third := Scope(store, lens, embed)
	if first != third {
		t.Error("expected cached child to survive an unrelated mutation")
	}
	if got := third.State(); got != 1 {
		t.Errorf("expected cached child to project fresh state 1, got %d", got)
	}
}

func TestScopeFuncBypassesCache(t *testing.T) {
	store := New(counterState{}, counterReducer)
	defer store.Close()

	get := func(s counterState) int { return s.Count }
	wrap := func(a counterAction) counterAction { return a }

	first := ScopeFunc(store, get, wrap)
	second := ScopeFunc(store, get, wrap)

	if first == second {
		t.Error("closure scopes must not be cached")
	}

	// Transient nodes never enter the arena.
	if got := store.NodeCount(); got != 1 {
		t.Errorf("expected 1 arena node (root), got %d", got)
	}

	// They still read and dispatch through the chain.
	first.Send(increment{})
	store.Flush()
	if got := second.State(); got != 1 {
		t.Errorf("expected closure scope to project 1, got %d", got)
	}
}

func TestScopedChildOfClosureScopeIsUncached(t *testing.T) {
	store := New(counterState{}, counterReducer)
	defer store.Close()

	parent := ScopeFunc(store,
		func(s counterState) counterState { return s },
		func(a counterAction) counterAction { return a },
	)

	lens := StateLens[counterState, int]{Key: "count", Get: func(s counterState) int { return s.Count }}
	embed := ActionEmbed[counterAction, counterAction]{Key: "self", Wrap: func(a counterAction) counterAction { return a }}

	first := Scope(parent, lens, embed)
	second := Scope(parent, lens, embed)
	if first == second {
		t.Error("children of closure scopes must not be cached")
	}
}

func TestDispatchFromChildReachesRootOnce(t *testing.T) {
	type wrapped struct{ inner counterAction }

	reducer := func(s counterState, a counterAction) (counterState, []Effect[counterAction]) {
		if w, ok := a.(wrapped); ok {
			return counterReducer(s, w.inner)
		}
		return counterReducer(s, a)
	}

	store := New(counterState{}, reducer)
	defer store.Close()

	child := Scope(store,
		StateLens[counterState, int]{Key: "count", Get: func(s counterState) int { return s.Count }},
		ActionEmbed[counterAction, counterAction]{Key: "wrap", Wrap: func(a counterAction) counterAction { return wrapped{inner: a} }},
	)

	grandchild := Scope(child,
		StateLens[int, int]{Key: "identity", Get: func(n int) int { return n }},
		ActionEmbed[counterAction, counterAction]{Key: "identity", Wrap: func(a counterAction) counterAction { return a }},
	)

	grandchild.Send(increment{})
	store.Flush()

	if got := store.State().Count; got != 1 {
		t.Errorf("expected exactly one delivery (count 1), got %d", got)
	}
	if got := grandchild.State(); got != 1 {
		t.Errorf("expected grandchild projection 1, got %d", got)
	}
}

func TestCloseDegradesReads(t *testing.T) {
	store := New(counterState{}, counterReducer)

	lens := StateLens[counterState, int]{Key: "count", Get: func(s counterState) int { return s.Count }}
	embed := ActionEmbed[counterAction, counterAction]{Key: "self", Wrap: func(a counterAction) counterAction { return a }}
	child := Scope(store, lens, embed)

	store.Send(increment{})
	store.Flush()
	store.Close()

	if !child.IsInvalid() {
		t.Error("expected child to be invalid after Close")
	}

	// Sends after close are accepted and discarded.
	child.Send(increment{})
	store.Send(increment{})

	// Close is idempotent.
	store.Close()
}

func TestFlushAfterCloseReturns(t *testing.T) {
	store := New(counterState{}, counterReducer)
	store.Close()

	// Must return immediately instead of waiting on a dead loop.
	store.Flush()
}
