// Package metrics provides a Prometheus observer for reduct stores.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/reduct-dev/reduct/pkg/reduct"
)

// Config configures the Prometheus observer.
type Config struct {
	// Namespace is the metrics namespace (default: "reduct").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for pass duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// Option configures the Prometheus observer.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) Option {
	return func(c *Config) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets for pass duration.
func WithBuckets(buckets []float64) Option {
	return func(c *Config) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

// defaultConfig returns the default observer configuration.
func defaultConfig() Config {
	return Config{
		Namespace:   "reduct",
		Subsystem:   "",
		ConstLabels: nil,
		Buckets:     prometheus.DefBuckets,
		Registry:    prometheus.DefaultRegisterer,
	}
}

// Observer records store activity as Prometheus metrics. Pass it to
// reduct.New via reduct.WithObserver.
//
// Metrics collected:
//   - reduct_passes_total: Counter of mutation passes by action and status
//   - reduct_pass_duration_seconds: Histogram of pass duration by action
//   - reduct_effects_started_total: Counter of effects started
//   - reduct_effects_cancelled_total: Counter of effects cancelled
//   - reduct_effects_in_flight: Gauge of currently tracked effects
//   - reduct_nodes_detached_total: Counter of nodes removed by presence sweeps
//   - reduct_live_nodes: Gauge of the node arena size
//
// Example:
//
//	store := reduct.New(initial, reducer,
//	    reduct.WithObserver(metrics.New(
//	        metrics.WithNamespace("myapp"),
//	    )),
//	)
//
//	// Expose metrics endpoint
//	http.Handle("/metrics", promhttp.Handler())
type Observer struct {
	passesTotal      *prometheus.CounterVec
	passDuration     *prometheus.HistogramVec
	effectsStarted   prometheus.Counter
	effectsCancelled prometheus.Counter
	effectsInFlight  prometheus.Gauge
	nodesDetached    prometheus.Counter
	liveNodes        prometheus.Gauge
}

var _ reduct.Observer = (*Observer)(nil)

// New creates a Prometheus observer, registering its metrics with the
// configured registry.
func New(opts ...Option) *Observer {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}

	factory := promauto.With(config.Registry)

	return &Observer{
		passesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "passes_total",
			Help:        "Total number of mutation passes by action and status",
			ConstLabels: config.ConstLabels,
		}, []string{"action", "status"}),

		passDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "pass_duration_seconds",
			Help:        "Mutation pass duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"action"}),

		effectsStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "effects_started_total",
			Help:        "Total number of effects started",
			ConstLabels: config.ConstLabels,
		}),

		effectsCancelled: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "effects_cancelled_total",
			Help:        "Total number of effects cancelled before completion",
			ConstLabels: config.ConstLabels,
		}),

		effectsInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "effects_in_flight",
			Help:        "Number of currently tracked effects",
			ConstLabels: config.ConstLabels,
		}),

		nodesDetached: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "nodes_detached_total",
			Help:        "Total number of nodes removed by presence sweeps",
			ConstLabels: config.ConstLabels,
		}),

		liveNodes: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "live_nodes",
			Help:        "Current node arena size",
			ConstLabels: config.ConstLabels,
		}),
	}
}

// PassDone records one completed mutation pass.
func (o *Observer) PassDone(info reduct.PassInfo) {
	status := "success"
	if info.Recovered != nil {
		status = "panic"
	}
	o.passesTotal.WithLabelValues(info.Label, status).Inc()
	o.passDuration.WithLabelValues(info.Label).Observe(info.Duration.Seconds())

	if info.Detached > 0 {
		o.nodesDetached.Add(float64(info.Detached))
	}
	o.liveNodes.Set(float64(info.LiveNodes))
}

// EffectRegistered records a new tracked effect.
func (o *Observer) EffectRegistered(id string) {
	o.effectsStarted.Inc()
	o.effectsInFlight.Inc()
}

// EffectResolved records an effect leaving the pending state.
func (o *Observer) EffectResolved(id string, state reduct.EffectState) {
	o.effectsInFlight.Dec()
	if state == reduct.EffectCancelled {
		o.effectsCancelled.Inc()
	}
}
