package reduct

import "time"

// PassInfo describes one completed mutation pass.
type PassInfo struct {
	// Label identifies the action that drove the pass, derived from its
	// dynamic type.
	Label string

	// Start is when the pass began reducing.
	Start time.Time

	// Duration covers reduce, commit, detachment sweep, change publication,
	// and effect start.
	Duration time.Duration

	// EffectCount is the number of effects the reducer emitted.
	EffectCount int

	// Detached is the number of nodes removed by the presence sweep.
	Detached int

	// LiveNodes is the arena size after the pass.
	LiveNodes int

	// Recovered holds the recovered panic value if the reducer or an
	// observer panicked during the pass, nil otherwise.
	Recovered any
}

// Observer receives lifecycle notifications from a store. Implementations
// must be safe for concurrent use; effect notifications arrive from effect
// goroutines while pass notifications arrive from the writer loop.
//
// Observers keep instrumentation (metrics, tracing) out of the core hot path:
// the store calls a handful of hooks and the observer decides what to record.
type Observer interface {
	// PassDone is called once per completed mutation pass.
	PassDone(info PassInfo)

	// EffectRegistered is called after an effect handle is installed in the
	// registry, before its goroutine starts.
	EffectRegistered(id string)

	// EffectResolved is called when an effect leaves the pending state,
	// either by natural completion or by cancellation.
	EffectResolved(id string, state EffectState)
}

// observers fans hooks out to every registered observer.
type observers []Observer

func (os observers) PassDone(info PassInfo) {
	for _, o := range os {
		o.PassDone(info)
	}
}

func (os observers) EffectRegistered(id string) {
	for _, o := range os {
		o.EffectRegistered(id)
	}
}

func (os observers) EffectResolved(id string, state EffectState) {
	for _, o := range os {
		o.EffectResolved(id, state)
	}
}
