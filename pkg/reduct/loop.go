package reduct

import (
	"fmt"
	"runtime/debug"
	"time"
)

// envelope carries one queued dispatch toward the writer loop.
type envelope[A any] struct {
	action A
	origin NodeID

	// flushed, when non-nil, marks a flush token instead of an action.
	flushed chan struct{}
}

// loop is the store's single writer: the designated execution context that
// serializes every mutation pass. Dispatches from other goroutines are
// redirected through the actions channel; dispatches issued on the loop
// goroutine itself (synchronous effect starts, observer callbacks) go to a
// loop-local pending queue so a full channel can never deadlock the writer.
type loop[S, A any] struct {
	rt     *runtime
	core   *rootCore[S, A]
	reduce Reducer[S, A]

	actions chan envelope[A]
	pending []envelope[A]
	done    chan struct{}
}

// enqueue redirects a dispatch onto the writer loop, preserving submission
// order. Re-entrant dispatches are queued and processed only after the
// current pass fully completes.
func (l *loop[S, A]) enqueue(a A, origin NodeID) {
	env := envelope[A]{action: a, origin: origin}

	if goroutineID() == l.rt.loopGID.Load() {
		l.pending = append(l.pending, env)
		return
	}

	select {
	case l.actions <- env:
	case <-l.done:
		l.rt.logger.Warn("discarding action",
			"action", actionLabel(a),
			"error", ErrStoreClosed)
	}
}

// flush blocks until every action enqueued before the call has been fully
// processed. Called on the loop goroutine it returns immediately: anything
// enqueued earlier from this goroutine is already ordered ahead of the
// current pass.
func (l *loop[S, A]) flush() {
	if goroutineID() == l.rt.loopGID.Load() {
		return
	}

	fl := make(chan struct{})
	select {
	case l.actions <- envelope[A]{flushed: fl}:
	case <-l.done:
		return
	}
	select {
	case <-fl:
	case <-l.done:
	}
}

// run is the writer goroutine. Locally pending (re-entrant) dispatches drain
// before the next channel receive, so passes triggered from inside a pass
// keep their submission order and no two passes ever interleave.
func (l *loop[S, A]) run() {
	l.rt.loopGID.Store(goroutineID())

	for {
		for len(l.pending) > 0 {
			env := l.pending[0]
			l.pending = l.pending[1:]
			l.pass(env)
		}

		select {
		case env := <-l.actions:
			if env.flushed != nil {
				close(env.flushed)
				continue
			}
			l.pass(env)
		case <-l.done:
			return
		}
	}
}

// pass executes one mutation pass: reduce, commit, presence sweep, change
// signal, effect start. Effects never observe pre-commit state because they
// start strictly after commit.
func (l *loop[S, A]) pass(env envelope[A]) {
	info := PassInfo{
		Label: actionLabel(env.action),
		Start: time.Now(),
	}

	func() {
		defer func() {
			if r := recover(); r != nil {
				info.Recovered = r
				l.rt.logger.Error("mutation pass panic",
					"action", info.Label,
					"panic", r,
					"stack", string(debug.Stack()))
			}
		}()

		next, effects := l.reduce(l.core.State(), env.action)
		l.core.commit(next)

		// The sweep runs inside the pass, after commit and before the change
		// signal: no subscriber observes a live node over absent state, and
		// effects owned by detached nodes are cancelled in this same pass.
		info.Detached = l.rt.sweep()

		l.rt.changes.publish()

		for _, eff := range effects {
			l.startEffect(eff, env.origin)
		}
		info.EffectCount = len(effects)
	}()

	info.Duration = time.Since(info.Start)
	info.LiveNodes = l.rt.nodeCount()
	l.rt.obs.PassDone(info)

	l.rt.logger.Debug("pass committed",
		"action", info.Label,
		"effects", info.EffectCount,
		"detached", info.Detached,
		"duration", info.Duration)
}

// startEffect registers the handle first, then launches the effect
// goroutine. Results come back only as ordinary actions through send, never
// as direct state writes.
func (l *loop[S, A]) startEffect(eff Effect[A], origin NodeID) {
	if eff.Run == nil {
		return
	}

	h, ctx := l.rt.registry.register(eff.ID, origin, eff.AwaitCleanup, l.rt.baseCtx)

	run := eff.Run
	send := func(a A) { l.core.send(a, origin) }

	go func() {
		defer l.rt.registry.complete(h)
		defer func() {
			if r := recover(); r != nil {
				l.rt.logger.Error("effect panic",
					"effect", h.ID(),
					"panic", r,
					"stack", string(debug.Stack()))
			}
		}()
		run(ctx, send)
	}()
}

// actionLabel names an action by its dynamic type, for logs, metrics labels,
// and span names.
func actionLabel(a any) string {
	return fmt.Sprintf("%T", a)
}
