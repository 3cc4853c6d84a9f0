package reduct

import (
	"sync"
	"sync/atomic"
)

// NodeID identifies a node in the root's arena table. Parent/child links are
// plain id references; teardown is an explicit table removal.
type NodeID uint64

// nodeLife is the liveness flag shared between a core and its arena entry.
// The detachment sweep flips it so stale external handles degrade to invalid
// reads instead of crashing.
type nodeLife struct {
	invalid atomic.Bool
}

// Core is the minimal capability set of one tree layer: read the projected
// state, embed and forward an action toward the root, and report invalidity.
//
// Reads are pull-based: each layer applies its projection to the base state
// on every access, so the value observed at any node is always an up-to-date
// projection of the current root state. Only nodes are cached, never
// projected values.
type Core[S, A any] interface {
	// State returns the current projected value.
	State() S

	// IsInvalid reports whether this layer's state target no longer exists.
	IsInvalid() bool

	// send embeds the action into the parent action type and forwards it,
	// recursively, until the root runs the reducer once. origin is the node
	// the dispatch entered at; effects started by the resulting pass are
	// attributed to it for cascading cancellation.
	send(a A, origin NodeID)
}

// rootCore holds the canonical state value. All commits happen on the writer
// loop; Send from any other goroutine is redirected through the loop channel.
type rootCore[S, A any] struct {
	rt   *runtime
	loop *loop[S, A]
	life *nodeLife

	state S
	mu    sync.RWMutex
}

func (c *rootCore[S, A]) State() S {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *rootCore[S, A]) IsInvalid() bool {
	return c.life.invalid.Load()
}

func (c *rootCore[S, A]) send(a A, origin NodeID) {
	c.loop.enqueue(a, origin)
}

// commit installs the reduced state. Committing from any goroutine other
// than the writer loop is a programming defect, not a runtime condition, so
// it fails loudly.
func (c *rootCore[S, A]) commit(next S) {
	if goroutineID() != c.rt.loopGID.Load() {
		panic(panicOffLoopCommit)
	}
	c.mu.Lock()
	c.state = next
	c.mu.Unlock()
}

// scopedCore is a stable keyed projection over a base core. The projection
// is total, so reads stay computable even after detachment: they resolve to
// the projection of whatever the base reports (the ancestor placeholder once
// an ancestor conditional has gone absent).
type scopedCore[PS, PA, S, A any] struct {
	base  Core[PS, PA]
	lens  StateLens[PS, S]
	embed ActionEmbed[A, PA]
	life  *nodeLife
}

func (c *scopedCore[PS, PA, S, A]) State() S {
	return c.lens.Get(c.base.State())
}

func (c *scopedCore[PS, PA, S, A]) IsInvalid() bool {
	return c.life.invalid.Load() || c.base.IsInvalid()
}

func (c *scopedCore[PS, PA, S, A]) send(a A, origin NodeID) {
	if c.life.invalid.Load() {
		// Writes on a detached node are accepted and discarded.
		return
	}
	c.base.send(c.embed.Wrap(a), origin)
}

// conditionalCore projects an optional field or keyed-collection element and
// tracks its presence. The first read that finds the target absent flips the
// core to invalid semantics; subsequent reads return the placeholder.
type conditionalCore[PS, PA, S, A any] struct {
	base        Core[PS, PA]
	opt         OptionLens[PS, S]
	embed       ActionEmbed[A, PA]
	placeholder S
	life        *nodeLife
}

func (c *conditionalCore[PS, PA, S, A]) State() S {
	if c.life.invalid.Load() || c.base.IsInvalid() {
		return c.placeholder
	}
	v, ok := c.opt.Get(c.base.State())
	if !ok {
		c.life.invalid.Store(true)
		return c.placeholder
	}
	return v
}

func (c *conditionalCore[PS, PA, S, A]) IsInvalid() bool {
	if c.life.invalid.Load() || c.base.IsInvalid() {
		return true
	}
	if _, ok := c.opt.Get(c.base.State()); !ok {
		c.life.invalid.Store(true)
		return true
	}
	return false
}

func (c *conditionalCore[PS, PA, S, A]) send(a A, origin NodeID) {
	if c.IsInvalid() {
		return
	}
	c.base.send(c.embed.Wrap(a), origin)
}

// present is the probe the detachment sweep uses; unlike State it never
// latches invalidity, it just answers whether the target exists right now.
func (c *conditionalCore[PS, PA, S, A]) present() bool {
	if c.life.invalid.Load() || c.base.IsInvalid() {
		return false
	}
	_, ok := c.opt.Get(c.base.State())
	return ok
}

// invalidCore is the terminal placeholder. It guarantees that stale external
// references never crash, only degrade silently to a no-op node.
type invalidCore[S, A any] struct {
	placeholder S
}

func (c *invalidCore[S, A]) State() S           { return c.placeholder }
func (c *invalidCore[S, A]) IsInvalid() bool    { return true }
func (c *invalidCore[S, A]) send(a A, _ NodeID) {}
