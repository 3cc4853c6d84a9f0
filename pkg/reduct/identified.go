package reduct

// Identified is an ordered collection whose elements are addressed by stable
// identity rather than position. It is a value type with copy-on-write
// mutation methods, so reducers can derive a new collection without aliasing
// the previous state value.
type Identified[ID comparable, E any] struct {
	ids  []ID
	byID map[ID]E
}

// NewIdentified builds a collection from elements in order, using idOf to
// derive each element's identity. A later element with a duplicate id
// replaces the earlier one in place.
func NewIdentified[ID comparable, E any](idOf func(E) ID, elems ...E) Identified[ID, E] {
	c := Identified[ID, E]{
		ids:  make([]ID, 0, len(elems)),
		byID: make(map[ID]E, len(elems)),
	}
	for _, e := range elems {
		id := idOf(e)
		if _, ok := c.byID[id]; !ok {
			c.ids = append(c.ids, id)
		}
		c.byID[id] = e
	}
	return c
}

// Len returns the number of elements.
func (c Identified[ID, E]) Len() int {
	return len(c.ids)
}

// IDs returns the element identities in order. The returned slice is a copy.
func (c Identified[ID, E]) IDs() []ID {
	out := make([]ID, len(c.ids))
	copy(out, c.ids)
	return out
}

// Get returns the element for id and whether it is present.
func (c Identified[ID, E]) Get(id ID) (E, bool) {
	e, ok := c.byID[id]
	return e, ok
}

// At returns the identity and element at position i.
// ok is false when i is out of bounds.
func (c Identified[ID, E]) At(i int) (ID, E, bool) {
	if i < 0 || i >= len(c.ids) {
		var zeroID ID
		var zeroE E
		return zeroID, zeroE, false
	}
	id := c.ids[i]
	return id, c.byID[id], true
}

// Contains reports whether id is present.
func (c Identified[ID, E]) Contains(id ID) bool {
	_, ok := c.byID[id]
	return ok
}

// Append returns a new collection with the element added at the end, or
// replaced in place if the id already exists.
func (c Identified[ID, E]) Append(id ID, e E) Identified[ID, E] {
	next := c.clone(1)
	if _, ok := next.byID[id]; !ok {
		next.ids = append(next.ids, id)
	}
	next.byID[id] = e
	return next
}

// Remove returns a new collection without the element for id.
// Removing an absent id returns an equivalent collection.
func (c Identified[ID, E]) Remove(id ID) Identified[ID, E] {
	if _, ok := c.byID[id]; !ok {
		return c
	}
	next := Identified[ID, E]{
		ids:  make([]ID, 0, len(c.ids)-1),
		byID: make(map[ID]E, len(c.ids)-1),
	}
	for _, existing := range c.ids {
		if existing == id {
			continue
		}
		next.ids = append(next.ids, existing)
		next.byID[existing] = c.byID[existing]
	}
	return next
}

// Update returns a new collection with fn applied to the element for id.
// An absent id returns an equivalent collection.
func (c Identified[ID, E]) Update(id ID, fn func(E) E) Identified[ID, E] {
	e, ok := c.byID[id]
	if !ok {
		return c
	}
	next := c.clone(0)
	next.byID[id] = fn(e)
	return next
}

// All returns the elements in order. The returned slice is a copy.
func (c Identified[ID, E]) All() []E {
	out := make([]E, 0, len(c.ids))
	for _, id := range c.ids {
		out = append(out, c.byID[id])
	}
	return out
}

// clone copies the collection with room for extra appended elements.
func (c Identified[ID, E]) clone(extra int) Identified[ID, E] {
	next := Identified[ID, E]{
		ids:  make([]ID, len(c.ids), len(c.ids)+extra),
		byID: make(map[ID]E, len(c.ids)+extra),
	}
	copy(next.ids, c.ids)
	for id, e := range c.byID {
		next.byID[id] = e
	}
	return next
}
