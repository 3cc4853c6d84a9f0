package reduct

import "fmt"

// ScopeID is the value-comparable cache key identifying a derived child node.
// It pairs the state-selector key with the action-selector key. Two Scope
// calls producing equal ScopeIDs on an unmutated cache return the identical
// child node, never a fresh equal-but-distinct one.
type ScopeID struct {
	State  string
	Action string
}

// String returns the key pair in "state|action" form, for logs and the
// inspector.
func (id ScopeID) String() string {
	return id.State + "|" + id.Action
}

// StateLens is a keyed pure projection from a parent state to a child state.
// The Key is the stable identity used for child caching; the author supplies
// it explicitly at composition time, so no runtime type introspection is
// needed to compare selectors.
type StateLens[P, S any] struct {
	Key string
	Get func(P) S
}

// ActionEmbed is a keyed embedding from a child action into a parent action.
type ActionEmbed[A, P any] struct {
	Key  string
	Wrap func(A) P
}

// OptionLens is a keyed projection targeting an optional field of the parent
// state. Get reports whether the target is currently present.
type OptionLens[P, S any] struct {
	Key string
	Get func(P) (S, bool)
}

// EachLens is a keyed projection from a parent state to an identified
// collection of child elements.
type EachLens[P any, ID comparable, E any] struct {
	Key string
	Get func(P) Identified[ID, E]
}

// EachEmbed is a keyed embedding from an (element id, element action) pair
// into a parent action.
type EachEmbed[ID comparable, A, P any] struct {
	Key  string
	Wrap func(ID, A) P
}

// elementScopeID builds the cache key for one identified element. Keying by
// element identity, not positional index, keeps a row's cached node stable
// across unrelated insertions and removals elsewhere in the collection.
func elementScopeID[ID comparable](lensKey, embedKey string, id ID) ScopeID {
	return ScopeID{
		State:  fmt.Sprintf("%s[%v]", lensKey, id),
		Action: embedKey,
	}
}
