// Package tracing provides an OpenTelemetry observer for reduct stores.
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/reduct-dev/reduct/pkg/reduct"
)

// Default tracer name for reduct stores.
const defaultTracerName = "reduct"

// Config configures the OpenTelemetry observer.
type Config struct {
	// TracerName is the name of the tracer (default: "reduct").
	TracerName string

	// Filter determines which passes to trace by action label.
	// Return true to trace the pass, false to skip.
	// If nil, all passes are traced.
	Filter func(label string) bool

	// AttributeExtractor extracts custom attributes for each traced pass.
	AttributeExtractor func(info reduct.PassInfo) []attribute.KeyValue

	// tracer is the resolved tracer instance.
	tracer trace.Tracer
}

// Option configures the OpenTelemetry observer.
type Option func(*Config)

// WithTracerName sets the tracer name.
func WithTracerName(name string) Option {
	return func(c *Config) {
		c.TracerName = name
	}
}

// WithPassFilter sets a filter function for passes.
func WithPassFilter(filter func(label string) bool) Option {
	return func(c *Config) {
		c.Filter = filter
	}
}

// WithAttributeExtractor sets a custom attribute extractor.
func WithAttributeExtractor(extractor func(info reduct.PassInfo) []attribute.KeyValue) Option {
	return func(c *Config) {
		c.AttributeExtractor = extractor
	}
}

// defaultConfig returns the default observer configuration.
func defaultConfig() Config {
	return Config{
		TracerName: defaultTracerName,
		Filter:     nil,
	}
}

// Observer emits one span per completed mutation pass. Because passes are
// observed after the fact, the span is created retroactively with explicit
// start and end timestamps covering the pass.
//
// The tracer uses the global OpenTelemetry tracer provider. Configure it
// in your main() before creating the store:
//
//	tp := sdktrace.NewTracerProvider(
//	    sdktrace.WithBatcher(exporter),
//	    sdktrace.WithResource(resource.NewWithAttributes(
//	        semconv.SchemaURL,
//	        semconv.ServiceName("my-app"),
//	    )),
//	)
//	otel.SetTracerProvider(tp)
//
//	store := reduct.New(initial, reducer,
//	    reduct.WithObserver(tracing.New(
//	        tracing.WithTracerName("my-app"),
//	    )),
//	)
type Observer struct {
	config Config
}

var _ reduct.Observer = (*Observer)(nil)

// New creates an OpenTelemetry observer.
func New(opts ...Option) *Observer {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}

	// Resolve tracer from global provider
	config.tracer = otel.Tracer(config.TracerName)

	return &Observer{config: config}
}

// PassDone emits a span covering the completed pass.
func (o *Observer) PassDone(info reduct.PassInfo) {
	if o.config.Filter != nil && !o.config.Filter(info.Label) {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("reduct.action", info.Label),
		attribute.Int("reduct.effect_count", info.EffectCount),
		attribute.Int("reduct.detached_nodes", info.Detached),
		attribute.Int("reduct.live_nodes", info.LiveNodes),
	}
	if o.config.AttributeExtractor != nil {
		attrs = append(attrs, o.config.AttributeExtractor(info)...)
	}

	_, span := o.config.tracer.Start(
		context.Background(),
		fmt.Sprintf("reduct.pass %s", info.Label),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
		trace.WithTimestamp(info.Start),
	)

	if info.Recovered != nil {
		span.RecordError(fmt.Errorf("pass panic: %v", info.Recovered))
		span.SetStatus(codes.Error, fmt.Sprintf("%v", info.Recovered))
	} else {
		span.SetStatus(codes.Ok, "")
	}

	span.End(trace.WithTimestamp(info.Start.Add(info.Duration)))
}

// EffectRegistered is a no-op; effect lifetimes do not map onto the
// pass-scoped spans this observer emits.
func (o *Observer) EffectRegistered(id string) {}

// EffectResolved is a no-op.
func (o *Observer) EffectResolved(id string, state reduct.EffectState) {}
