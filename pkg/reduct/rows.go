package reduct

// Rows is a lazily evaluated, index-addressable view over an identified
// collection in the parent state: one conditional-backed child store per
// element, keyed by element identity rather than position. Indexing past the
// current bounds yields an invalid-backed store instead of failing, so stale
// indices (a consumer still mid-animation-out, a late effect completion)
// degrade gracefully.
type Rows[PS, PA any, ID comparable, E, A any] struct {
	parent      *Store[PS, PA]
	lens        EachLens[PS, ID, E]
	embed       EachEmbed[ID, A, PA]
	placeholder E
}

// ScopeEach derives a row view over the identified collection selected by
// lens. placeholder is what a row's reads resolve to once its element has
// been removed.
func ScopeEach[PS, PA any, ID comparable, E, A any](parent *Store[PS, PA], lens EachLens[PS, ID, E], embed EachEmbed[ID, A, PA], placeholder E) *Rows[PS, PA, ID, E, A] {
	return &Rows[PS, PA, ID, E, A]{
		parent:      parent,
		lens:        lens,
		embed:       embed,
		placeholder: placeholder,
	}
}

// Len returns the current element count.
func (r *Rows[PS, PA, ID, E, A]) Len() int {
	if r.parent.core.IsInvalid() {
		return 0
	}
	return r.lens.Get(r.parent.State()).Len()
}

// IDs returns the current element identities in order.
func (r *Rows[PS, PA, ID, E, A]) IDs() []ID {
	if r.parent.core.IsInvalid() {
		return nil
	}
	return r.lens.Get(r.parent.State()).IDs()
}

// At returns the row store for the element currently at position i. The
// returned store is still keyed by that element's identity: it keeps
// reflecting the same element as others are inserted or removed around it.
// An out-of-bounds index yields an invalid-backed store.
func (r *Rows[PS, PA, ID, E, A]) At(i int) *Store[E, A] {
	if r.parent.core.IsInvalid() {
		return newInvalidStore[E, A](r.parent.rt, r.placeholder)
	}
	id, _, ok := r.lens.Get(r.parent.State()).At(i)
	if !ok {
		return newInvalidStore[E, A](r.parent.rt, r.placeholder)
	}
	return r.ByID(id)
}

// ByID returns the row store for the element with the given identity,
// cached under an identity-derived ScopeID so the same element resolves to
// the identical node across calls.
func (r *Rows[PS, PA, ID, E, A]) ByID(id ID) *Store[E, A] {
	lens := r.lens
	embedEach := r.embed

	opt := OptionLens[PS, E]{
		Get: func(ps PS) (E, bool) {
			return lens.Get(ps).Get(id)
		},
	}
	embed := ActionEmbed[A, PA]{
		Wrap: func(a A) PA {
			return embedEach.Wrap(id, a)
		},
	}

	if parentInvalid := r.parent.core.IsInvalid(); parentInvalid {
		return newInvalidStore[E, A](r.parent.rt, r.placeholder)
	}

	life := &nodeLife{}
	core := &conditionalCore[PS, PA, E, A]{
		base:        r.parent.core,
		opt:         opt,
		embed:       embed,
		placeholder: r.placeholder,
		life:        life,
	}

	if !r.parent.cacheable || lens.Key == "" || embedEach.Key == "" {
		return newTransientStore[E, A](r.parent.rt, core, r.parent.origin)
	}

	sid := elementScopeID(lens.Key, embedEach.Key, id)
	return lookupOrCreate(r.parent, sid, core, life, core.present)
}
