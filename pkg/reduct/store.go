package reduct

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Reducer computes the next state and effect descriptors from the current
// state and an action. It must be deterministic given its inputs; side
// effects are expressed only as returned descriptors, never performed inline.
type Reducer[S, A any] func(S, A) (S, []Effect[A])

// Store is a point in the tree: it wraps one Core, owns a cache of derived
// children (through the root's arena), and exposes the dispatch/read API used
// by consumers. Exactly one store per tree has no parent (the root, built by
// New); every other store comes from a scope call.
type Store[S, A any] struct {
	rt   *runtime
	core Core[S, A]

	// id is the arena node id, zero for transient (closure-scoped or
	// invalid-backed) stores that have no arena entry.
	id NodeID

	// origin is the nearest arena-backed ancestor, used to attribute effects
	// started by dispatches entering here.
	origin NodeID

	// cacheable is false for closure-scoped stores; their scope calls (and
	// their descendants') bypass the child cache.
	cacheable bool
}

// node is one arena entry. The root's table owns every node; parent/child
// links are plain id references and teardown is an explicit table removal.
type node struct {
	id       NodeID
	parent   NodeID
	children map[ScopeID]NodeID
	handle   any
	life     *nodeLife

	// present probes whether this node's state target still exists. nil means
	// the node lives as long as its parent.
	present func() bool
}

// runtime is the per-tree shared plumbing owned by the root: the node arena,
// the change hub, the effect registry, and the writer-loop bookkeeping.
type runtime struct {
	mu     sync.Mutex
	nodes  map[NodeID]*node
	rootID NodeID

	changes  *changeHub
	registry *effectRegistry
	obs      observers
	logger   *slog.Logger

	loopGID atomic.Uint64
	closed  atomic.Bool

	baseCtx    context.Context
	baseCancel context.CancelFunc

	// stop closes the loop's done channel; flushLoop forwards Store.Flush to
	// the typed loop without the runtime knowing its type parameters.
	stop      func()
	flushLoop func()
}

// Option configures a store created by New.
type Option func(*config)

type config struct {
	logger    *slog.Logger
	observers []Observer
	queueSize int
	baseCtx   context.Context
}

// WithLogger sets the structured logger for loop diagnostics.
// Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithObserver registers a lifecycle observer (metrics, tracing).
// May be given multiple times.
func WithObserver(o Observer) Option {
	return func(c *config) {
		c.observers = append(c.observers, o)
	}
}

// WithQueueSize sets the action channel capacity. Defaults to 64.
func WithQueueSize(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.queueSize = n
		}
	}
}

// WithBaseContext sets the parent context for all effect contexts.
// Defaults to context.Background(). Close always cancels the derived context.
func WithBaseContext(ctx context.Context) Option {
	return func(c *config) {
		if ctx != nil {
			c.baseCtx = ctx
		}
	}
}

func defaultConfig() config {
	return config{
		logger:    slog.Default(),
		queueSize: 64,
		baseCtx:   context.Background(),
	}
}

// New creates the root store with its initial state and reducer, and starts
// the writer loop.
func New[S, A any](initial S, reduce Reducer[S, A], opts ...Option) *Store[S, A] {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	obs := observers(cfg.observers)
	baseCtx, baseCancel := context.WithCancel(cfg.baseCtx)

	rt := &runtime{
		nodes:      make(map[NodeID]*node),
		changes:    newChangeHub(),
		registry:   newEffectRegistry(obs),
		obs:        obs,
		logger:     cfg.logger,
		baseCtx:    baseCtx,
		baseCancel: baseCancel,
	}

	life := &nodeLife{}
	core := &rootCore[S, A]{rt: rt, life: life, state: initial}
	l := &loop[S, A]{
		rt:      rt,
		core:    core,
		reduce:  reduce,
		actions: make(chan envelope[A], cfg.queueSize),
		done:    make(chan struct{}),
	}
	core.loop = l

	rootID := NodeID(nextID())
	store := &Store[S, A]{
		rt:        rt,
		core:      core,
		id:        rootID,
		origin:    rootID,
		cacheable: true,
	}

	rt.rootID = rootID
	rt.nodes[rootID] = &node{
		id:       rootID,
		children: make(map[ScopeID]NodeID),
		handle:   store,
		life:     life,
	}
	rt.stop = func() { close(l.done) }
	rt.flushLoop = l.flush

	go l.run()
	return store
}

// State returns the current projected value. It is pull-based: every access
// re-applies the projection chain to the current root state.
func (s *Store[S, A]) State() S {
	return s.core.State()
}

// Send dispatches an action at this node. The action is embedded up through
// the core chain and delivered to the root exactly once, where it is reduced
// on the writer loop. Safe from any goroutine. Sends on an invalid node are
// accepted and discarded.
func (s *Store[S, A]) Send(a A) {
	s.core.send(a, s.origin)
}

// IsInvalid reports whether this node's state target no longer exists.
func (s *Store[S, A]) IsInvalid() bool {
	return s.core.IsInvalid()
}

// Changes subscribes to the root's change signal: exactly one notification
// per completed mutation pass, coalesced per subscriber. The returned cancel
// function removes the subscription.
func (s *Store[S, A]) Changes() (<-chan struct{}, func()) {
	return s.rt.changes.subscribe()
}

// Flush blocks until every action enqueued before the call has been fully
// processed (reduce, commit, sweep, signal, effect start).
func (s *Store[S, A]) Flush() {
	if s.rt.closed.Load() {
		return
	}
	s.rt.flushLoop()
}

// CancelEffect requests cancellation of the effect registered under id.
// Cancelling an unknown or already-completed id is a no-op.
func (s *Store[S, A]) CancelEffect(id string) {
	s.rt.registry.cancelID(id)
}

// Effects returns a point-in-time view of the in-flight effect registry.
func (s *Store[S, A]) Effects() []EffectStatus {
	return s.rt.registry.snapshot()
}

// NodeCount returns the number of live arena nodes.
func (s *Store[S, A]) NodeCount() int {
	return s.rt.nodeCount()
}

// Snapshot returns the node's current state as an untyped value, for
// inspectors and debug tooling.
func (s *Store[S, A]) Snapshot() any {
	return s.core.State()
}

// Detach disposes this node and its subtree: cache entries are removed,
// lives are flipped to invalid, and effects registered through this node's
// action path are cancelled. Detaching the root or a transient node is a
// no-op; use Close to tear down the whole tree.
func (s *Store[S, A]) Detach() {
	if s.id == 0 || s.id == s.rt.rootID {
		return
	}
	s.rt.detach(s.id)
}

// Close stops the writer loop, cancels every in-flight effect, and tears
// down the arena. Only meaningful on the root store; closing a child store
// closes the whole tree. Close is idempotent.
func (s *Store[S, A]) Close() {
	s.rt.close()
}

// =============================================================================
// Scoping
// =============================================================================

// Scope derives a child store over a keyed state projection and action
// embedding. Equal keys on an unmutated cache return the identical child
// (pointer identity). Empty keys degrade to an uncached closure scope.
func Scope[PS, PA, S, A any](parent *Store[PS, PA], lens StateLens[PS, S], embed ActionEmbed[A, PA]) *Store[S, A] {
	if parent.core.IsInvalid() {
		var zero S
		return newInvalidStore[S, A](parent.rt, zero)
	}

	life := &nodeLife{}
	core := &scopedCore[PS, PA, S, A]{
		base:  parent.core,
		lens:  lens,
		embed: embed,
		life:  life,
	}

	if !parent.cacheable || lens.Key == "" || embed.Key == "" {
		return newTransientStore[S, A](parent.rt, core, parent.origin)
	}

	sid := ScopeID{State: lens.Key, Action: embed.Key}
	return lookupOrCreate(parent, sid, core, life, nil)
}

// ScopeFunc derives an uncached child store from raw selector functions.
// Opaque functions have no stable identity, so the result is explicitly
// excluded from the child cache; prefer Scope with keyed selectors.
func ScopeFunc[PS, PA, S, A any](parent *Store[PS, PA], get func(PS) S, wrap func(A) PA) *Store[S, A] {
	return Scope(parent,
		StateLens[PS, S]{Get: get},
		ActionEmbed[A, PA]{Wrap: wrap},
	)
}

// ScopeOption derives a child store over an optional field of the parent
// state. While the field is present the child behaves like a scoped node;
// when it becomes absent the child flips to invalid semantics and reads
// return placeholder.
func ScopeOption[PS, PA, S, A any](parent *Store[PS, PA], lens OptionLens[PS, S], embed ActionEmbed[A, PA], placeholder S) *Store[S, A] {
	if parent.core.IsInvalid() {
		return newInvalidStore[S, A](parent.rt, placeholder)
	}

	life := &nodeLife{}
	core := &conditionalCore[PS, PA, S, A]{
		base:        parent.core,
		opt:         lens,
		embed:       embed,
		placeholder: placeholder,
		life:        life,
	}

	if !parent.cacheable || lens.Key == "" || embed.Key == "" {
		return newTransientStore[S, A](parent.rt, core, parent.origin)
	}

	sid := ScopeID{State: lens.Key, Action: embed.Key}
	return lookupOrCreate(parent, sid, core, life, core.present)
}

// lookupOrCreate returns the cached child for sid if one is live, or
// installs a fresh arena-backed child built from core.
func lookupOrCreate[PS, PA, S, A any](parent *Store[PS, PA], sid ScopeID, core Core[S, A], life *nodeLife, present func() bool) *Store[S, A] {
	rt := parent.rt

	rt.mu.Lock()
	defer rt.mu.Unlock()

	pn, ok := rt.nodes[parent.id]
	if !ok {
		// Parent detached concurrently; degrade like any stale reference.
		var zero S
		if ic, isConditional := core.(*conditionalCore[PS, PA, S, A]); isConditional {
			zero = ic.placeholder
		}
		return &Store[S, A]{rt: rt, core: &invalidCore[S, A]{placeholder: zero}}
	}

	if cid, cached := pn.children[sid]; cached {
		if cn, live := rt.nodes[cid]; live {
			child, matches := cn.handle.(*Store[S, A])
			if !matches {
				panic(panicScopeTypeMismatch)
			}
			return child
		}
	}

	id := NodeID(nextID())
	child := &Store[S, A]{
		rt:        rt,
		core:      core,
		id:        id,
		origin:    id,
		cacheable: true,
	}
	rt.nodes[id] = &node{
		id:       id,
		parent:   parent.id,
		children: make(map[ScopeID]NodeID),
		handle:   child,
		life:     life,
		present:  present,
	}
	pn.children[sid] = id
	return child
}

// newTransientStore builds a store with no arena entry: closure scopes and
// children of closure scopes. Invalidity still flows through the core chain,
// and dispatch attribution falls back to the nearest arena ancestor.
func newTransientStore[S, A any](rt *runtime, core Core[S, A], origin NodeID) *Store[S, A] {
	return &Store[S, A]{
		rt:     rt,
		core:   core,
		origin: origin,
	}
}

// newInvalidStore builds a terminal placeholder store.
func newInvalidStore[S, A any](rt *runtime, placeholder S) *Store[S, A] {
	return &Store[S, A]{
		rt:   rt,
		core: &invalidCore[S, A]{placeholder: placeholder},
	}
}

// =============================================================================
// Arena maintenance
// =============================================================================

// sweep removes every node whose presence probe reports absence, with its
// subtree, and cancels the effects their action paths own. Runs on the
// writer loop inside the mutation pass, after commit and before the change
// signal. Returns the number of detached nodes.
func (rt *runtime) sweep() int {
	rt.mu.Lock()
	detached := make(map[NodeID]struct{})
	rt.sweepLocked(rt.rootID, detached)
	rt.mu.Unlock()

	rt.registry.cancelOwned(detached)
	return len(detached)
}

// sweepLocked walks children of id top-down, detaching absent ones and
// recursing into survivors.
func (rt *runtime) sweepLocked(id NodeID, detached map[NodeID]struct{}) {
	n, ok := rt.nodes[id]
	if !ok {
		return
	}

	for sid, cid := range n.children {
		child, live := rt.nodes[cid]
		if !live {
			delete(n.children, sid)
			continue
		}
		if child.present != nil && !child.present() {
			delete(n.children, sid)
			rt.removeSubtreeLocked(cid, detached)
			continue
		}
		rt.sweepLocked(cid, detached)
	}
}

// removeSubtreeLocked flips lives to invalid and removes the subtree rooted
// at id from the table.
func (rt *runtime) removeSubtreeLocked(id NodeID, detached map[NodeID]struct{}) {
	n, ok := rt.nodes[id]
	if !ok {
		return
	}
	n.life.invalid.Store(true)
	delete(rt.nodes, id)
	detached[id] = struct{}{}

	for _, cid := range n.children {
		rt.removeSubtreeLocked(cid, detached)
	}
}

// detach performs an explicit external disposal of one node's subtree.
func (rt *runtime) detach(id NodeID) {
	rt.mu.Lock()
	detached := make(map[NodeID]struct{})
	if n, ok := rt.nodes[id]; ok {
		if pn, ok := rt.nodes[n.parent]; ok {
			for sid, cid := range pn.children {
				if cid == id {
					delete(pn.children, sid)
					break
				}
			}
		}
		rt.removeSubtreeLocked(id, detached)
	}
	rt.mu.Unlock()

	rt.registry.cancelOwned(detached)
}

// nodeCount returns the arena size.
func (rt *runtime) nodeCount() int {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return len(rt.nodes)
}

// close tears down the tree: stops the loop, cancels all effects, and clears
// the arena so every outstanding handle degrades to invalid reads.
func (rt *runtime) close() {
	if rt.closed.Swap(true) {
		return
	}

	rt.stop()
	rt.baseCancel()
	rt.registry.cancelAll()

	rt.mu.Lock()
	for _, n := range rt.nodes {
		n.life.invalid.Store(true)
	}
	rt.nodes = make(map[NodeID]*node)
	rt.mu.Unlock()

	rt.logger.Debug("store closed")
}
