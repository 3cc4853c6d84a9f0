// Package reduct provides a tree-scoped unidirectional state runtime.
//
// A single root value of type S and a pure reducer define the whole program
// state. Every mutation flows through the same path: an action is sent at some
// node of the store tree, embedded up to the root, reduced on the store's
// single writer goroutine, committed, and announced through one coalesced
// change notification. Asynchronous work is expressed as effect descriptors
// returned by the reducer, tracked by identity in a cancellation registry.
//
// # Stores and Scoping
//
//	store := reduct.New(AppState{}, appReducer)
//	value := store.State()   // Read (pull-based, always the current projection)
//	store.Send(Increment{})  // Write (serialized through the root loop)
//
// Child nodes expose a slice of the root state behind a transformed action
// type. Scoping with keyed selectors is cached: two Scope calls with the same
// keys return the identical child node.
//
//	child := reduct.Scope(store,
//	    reduct.StateLens[AppState, Counter]{Key: "counter", Get: func(s AppState) Counter { return s.Counter }},
//	    reduct.ActionEmbed[CounterAction, AppAction]{Key: "counter", Wrap: func(a CounterAction) AppAction { return a }},
//	)
//
// ScopeOption derives a node over an optional field, and ScopeEach derives an
// index-addressable row view over an Identified collection. Nodes whose state
// disappears degrade to invalid placeholders: reads return a caller-supplied
// default and sends are silently discarded. Stale handles never crash.
//
// # Effects
//
// Reducers return effect descriptors instead of performing side effects:
//
//	func appReducer(s AppState, a AppAction) (AppState, []reduct.Effect[AppAction]) {
//	    switch a := a.(type) {
//	    case StartDownload:
//	        return s, []reduct.Effect[AppAction]{{
//	            ID: "download/" + a.RowID,
//	            Run: func(ctx context.Context, send func(AppAction)) {
//	                data, err := fetch(ctx, a.URL)
//	                send(DownloadDone{RowID: a.RowID, Data: data, Err: err})
//	            },
//	        }}
//	    }
//	    return s, nil
//	}
//
// Effects are registered before they start, cancellable per identity, and
// force-cancelled when the node their dispatch passed through is detached.
//
// # Thread Safety
//
// State commits happen only on the root's writer goroutine; Send is safe from
// any goroutine and redirects onto it. Reads, scoping, and change
// subscriptions are safe from any goroutine.
package reduct
