package reduct

import (
	"context"
	"testing"
	"time"
)

// Fixture: an app with an optional detail pane and an identified row list,
// the shapes that exercise conditional scoping and detachment.

type detailState struct {
	Name string
}

type rowState struct {
	ID       string
	Progress int
}

type appState struct {
	Detail    *detailState
	Rows      Identified[string, rowState]
	Completed []string
}

type appAction any

type openDetail struct{ Name string }
type closeDetail struct{}
type renameDetail struct{ Name string }
type detailAction struct{ Action appAction }

type addRow struct{ ID string }
type removeRow struct{ ID string }
type rowMsg struct {
	ID     string
	Action appAction
}
type startDownload struct {
	ID      string
	Started chan struct{}
	Block   chan struct{}
}
type downloadDone struct{ ID string }
type bumpProgress struct{ ID string }

func appReducer(s appState, a appAction) (appState, []Effect[appAction]) {
	switch a := a.(type) {
	case openDetail:
		s.Detail = &detailState{Name: a.Name}
	case closeDetail:
		s.Detail = nil
	case detailAction:
		if s.Detail != nil {
			if r, ok := a.Action.(renameDetail); ok {
				d := *s.Detail
				d.Name = r.Name
				s.Detail = &d
			}
		}
	case addRow:
		s.Rows = s.Rows.Append(a.ID, rowState{ID: a.ID})
	case removeRow:
		s.Rows = s.Rows.Remove(a.ID)
	case rowMsg:
		switch inner := a.Action.(type) {
		case bumpProgress:
			s.Rows = s.Rows.Update(inner.ID, func(r rowState) rowState {
				r.Progress++
				return r
			})
		case startDownload:
			return appReducer(s, inner)
		}
	case startDownload:
		started, block := a.Started, a.Block
		id := a.ID
		return s, []Effect[appAction]{{
			ID: "download/" + id,
			Run: func(ctx context.Context, send func(appAction)) {
				if started != nil {
					close(started)
				}
				select {
				case <-ctx.Done():
					return
				case <-block:
				}
				send(downloadDone{ID: id})
			},
		}}
	case downloadDone:
		s.Completed = append(s.Completed, a.ID)
	}
	return s, nil
}

func newAppStore() *Store[appState, appAction] {
	return New(appState{Rows: NewIdentified(func(r rowState) string { return r.ID })}, appReducer)
}

func detailLens() OptionLens[appState, detailState] {
	return OptionLens[appState, detailState]{
		Key: "detail",
		Get: func(s appState) (detailState, bool) {
			if s.Detail == nil {
				return detailState{}, false
			}
			return *s.Detail, true
		},
	}
}

func detailEmbed() ActionEmbed[appAction, appAction] {
	return ActionEmbed[appAction, appAction]{
		Key: "detail",
		Wrap: func(a appAction) appAction {
			return detailAction{Action: a}
		},
	}
}

func rowsLens() EachLens[appState, string, rowState] {
	return EachLens[appState, string, rowState]{
		Key: "rows",
		Get: func(s appState) Identified[string, rowState] { return s.Rows },
	}
}

func rowsEmbed() EachEmbed[string, appAction, appAction] {
	return EachEmbed[string, appAction, appAction]{
		Key: "rows",
		Wrap: func(id string, a appAction) appAction {
			return rowMsg{ID: id, Action: a}
		},
	}
}

func TestConditionalScopePresentThenAbsent(t *testing.T) {
	store := newAppStore()
	defer store.Close()

	store.Send(openDetail{Name: "first"})
	store.Flush()

	detail := ScopeOption(store, detailLens(), detailEmbed(), detailState{Name: "(gone)"})
	if detail.IsInvalid() {
		t.Fatal("expected detail node to be valid while present")
	}
	if got := detail.State().Name; got != "first" {
		t.Errorf("expected detail name %q, got %q", "first", got)
	}

	detail.Send(renameDetail{Name: "renamed"})
	store.Flush()
	if got := detail.State().Name; got != "renamed" {
		t.Errorf("expected detail name %q, got %q", "renamed", got)
	}

	store.Send(closeDetail{})
	store.Flush()

	if !detail.IsInvalid() {
		t.Error("expected detail node to become invalid after emptying")
	}
	if got := detail.State().Name; got != "(gone)" {
		t.Errorf("expected placeholder after emptying, got %q", got)
	}

	// Writes on the dead node are accepted and discarded.
	detail.Send(renameDetail{Name: "zombie"})
	store.Flush()
	if store.State().Detail != nil {
		t.Error("send on invalid node must not resurrect state")
	}
}

func TestConditionalDetachEvictsCacheEntry(t *testing.T) {
	store := newAppStore()
	defer store.Close()

	store.Send(openDetail{Name: "first"})
	store.Flush()

	before := ScopeOption(store, detailLens(), detailEmbed(), detailState{})
	again := ScopeOption(store, detailLens(), detailEmbed(), detailState{})
	if before != again {
		t.Fatal("expected cached conditional node while present")
	}

	store.Send(closeDetail{})
	store.Flush()

	store.Send(openDetail{Name: "second"})
	store.Flush()

	// The old node was evicted in the pass that emptied the field; reopening
	// the same scope yields a fresh node bound to the new value.
	after := ScopeOption(store, detailLens(), detailEmbed(), detailState{})
	if after == before {
		t.Error("expected a fresh node after detach/reattach, got the stale one")
	}
	if got := after.State().Name; got != "second" {
		t.Errorf("expected reopened detail %q, got %q", "second", got)
	}
	if !before.IsInvalid() {
		t.Error("expected the stale handle to stay invalid after reattach")
	}
}

func TestDetachCancelsOwnedEffectsInSamePass(t *testing.T) {
	store := newAppStore()
	defer store.Close()

	store.Send(addRow{ID: "a"})
	store.Send(addRow{ID: "b"})
	store.Flush()

	rows := ScopeEach(store, rowsLens(), rowsEmbed(), rowState{})
	rowA := rows.ByID("a")
	rowB := rows.ByID("b")

	startedA := make(chan struct{})
	startedB := make(chan struct{})
	block := make(chan struct{})
	defer close(block)

	// Dispatch the downloads through each row so the effects are attributed
	// to that row's action path.
	rowA.Send(startDownload{ID: "a", Started: startedA, Block: block})
	rowB.Send(startDownload{ID: "b", Started: startedB, Block: block})
	store.Flush()
	<-startedA
	<-startedB

	if got := len(store.Effects()); got != 2 {
		t.Fatalf("expected 2 in-flight effects, got %d", got)
	}

	// Removing row a must cancel a's download in the same pass, and only a's.
	store.Send(removeRow{ID: "a"})
	store.Flush()

	statuses := store.Effects()
	if len(statuses) != 1 {
		t.Fatalf("expected 1 surviving effect, got %d", len(statuses))
	}
	if statuses[0].ID != "download/b" {
		t.Errorf("expected sibling download to survive, got %q", statuses[0].ID)
	}
	if !rowA.IsInvalid() {
		t.Error("expected removed row's node to be invalid")
	}
	if rowB.IsInvalid() {
		t.Error("sibling row must stay valid")
	}
}

func TestRowMsgDispatchPassesThroughRow(t *testing.T) {
	store := newAppStore()
	defer store.Close()

	store.Send(addRow{ID: "x"})
	store.Flush()

	rows := ScopeEach(store, rowsLens(), rowsEmbed(), rowState{})
	row := rows.ByID("x")

	row.Send(bumpProgress{ID: "x"})
	row.Send(bumpProgress{ID: "x"})
	store.Flush()

	if got := row.State().Progress; got != 2 {
		t.Errorf("expected progress 2, got %d", got)
	}
}

func TestExplicitDetach(t *testing.T) {
	store := newAppStore()
	defer store.Close()

	store.Send(openDetail{Name: "pane"})
	store.Flush()

	detail := ScopeOption(store, detailLens(), detailEmbed(), detailState{})
	nodesBefore := store.NodeCount()

	detail.Detach()

	if got := store.NodeCount(); got != nodesBefore-1 {
		t.Errorf("expected node count %d after detach, got %d", nodesBefore-1, got)
	}
	if !detail.IsInvalid() {
		t.Error("expected detached node to be invalid")
	}

	// State itself is untouched; only the node is gone.
	if store.State().Detail == nil {
		t.Error("detach must not mutate state")
	}
}

func TestStaleEffectCompletionAfterReattachIsDiscarded(t *testing.T) {
	store := newAppStore()
	defer store.Close()

	store.Send(addRow{ID: "r"})
	store.Flush()

	rows := ScopeEach(store, rowsLens(), rowsEmbed(), rowState{})
	row := rows.ByID("r")

	started := make(chan struct{})
	block := make(chan struct{})
	row.Send(startDownload{ID: "r", Started: started, Block: block})
	store.Flush()
	<-started

	// Remove and re-add the same identity: the old effect is cancelled and
	// its handle superseded, so the dead body's late completion must not
	// clear a handle registered by the reopened node.
	store.Send(removeRow{ID: "r"})
	store.Send(addRow{ID: "r"})
	store.Flush()

	started2 := make(chan struct{})
	block2 := make(chan struct{})
	rows.ByID("r").Send(startDownload{ID: "r", Started: started2, Block: block2})
	store.Flush()
	<-started2

	// Release the first (cancelled) body; it exits via ctx.Done.
	close(block)
	// Give the dead goroutine a moment to run its completion path.
	time.Sleep(10 * time.Millisecond)

	statuses := store.Effects()
	if len(statuses) != 1 {
		t.Fatalf("expected the reopened effect to stay registered, got %d entries", len(statuses))
	}
	if statuses[0].State != EffectPending {
		t.Errorf("expected reopened effect pending, got %s", statuses[0].State)
	}

	close(block2)
	store.Flush()
}
