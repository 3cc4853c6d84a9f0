package tracing

import (
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/reduct-dev/reduct/pkg/reduct"
)

func passInfo(label string) reduct.PassInfo {
	return reduct.PassInfo{
		Label:       label,
		Start:       time.Now().Add(-time.Millisecond),
		Duration:    time.Millisecond,
		EffectCount: 1,
		LiveNodes:   3,
	}
}

func TestPassDoneWithNoopProvider(t *testing.T) {
	// With no tracer provider configured the global noop provider is used;
	// emitting a span must still be safe.
	obs := New()
	obs.PassDone(passInfo("app.increment"))
	obs.PassDone(reduct.PassInfo{
		Label:     "app.boom",
		Start:     time.Now(),
		Recovered: "reducer blew up",
	})
}

func TestPassFilterSkipsSpan(t *testing.T) {
	filtered := 0
	obs := New(
		WithPassFilter(func(label string) bool {
			filtered++
			return label != "app.noisy"
		}),
	)

	obs.PassDone(passInfo("app.noisy"))
	obs.PassDone(passInfo("app.increment"))

	if filtered != 2 {
		t.Errorf("expected filter to run for every pass, got %d calls", filtered)
	}
}

func TestAttributeExtractorRuns(t *testing.T) {
	extracted := 0
	obs := New(
		WithTracerName("custom"),
		WithAttributeExtractor(func(info reduct.PassInfo) []attribute.KeyValue {
			extracted++
			return []attribute.KeyValue{attribute.String("app.label", info.Label)}
		}),
	)

	obs.PassDone(passInfo("app.increment"))
	if extracted != 1 {
		t.Errorf("expected extractor to run once, got %d calls", extracted)
	}
}

func TestEffectHooksAreNoops(t *testing.T) {
	obs := New()
	obs.EffectRegistered("download/1")
	obs.EffectResolved("download/1", reduct.EffectCancelled)
}
