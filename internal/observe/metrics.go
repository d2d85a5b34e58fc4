// Package observe provides the observability primitives for Necromancer:
// OpenTelemetry metrics, tracing, trace-aware structured logging and the HTTP
// middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API and scraped via
// the Prometheus exporter installed by [InitProvider]. Tests should build
// their own [Metrics] with [NewMetrics] and a manual reader instead of
// touching [DefaultMetrics].
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Necromancer metrics.
const meterName = "github.com/MrWong99/necromancer"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// RitualDuration tracks one ritual stage or a whole full ritual.
	// Attribute: mode.
	RitualDuration metric.Float64Histogram

	// LLMDuration tracks text-generation latency.
	LLMDuration metric.Float64Histogram

	// TTSDuration tracks time-to-audio of voiced speech.
	TTSDuration metric.Float64Histogram

	// ToolExecutionDuration tracks MCP tool execution latency.
	ToolExecutionDuration metric.Float64Histogram

	// ProviderRequests counts provider API calls. Attributes: provider,
	// kind, status.
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts provider errors. Attributes: provider, kind.
	ProviderErrors metric.Int64Counter

	// ToolCalls counts MCP tool invocations. Attributes: tool, status.
	ToolCalls metric.Int64Counter

	// EffectsPlayed counts effect voices published to the master bus.
	// Attribute: kind.
	EffectsPlayed metric.Int64Counter

	// EffectsDropped counts effects that were requested but not played.
	// Attributes: kind, reason (uninitialized, muted, debounced).
	EffectsDropped metric.Int64Counter

	// SpeechUtterances counts utterances handed to the synthesizer.
	SpeechUtterances metric.Int64Counter

	// SanityLevel reports the current sanity meter reading.
	SanityLevel metric.Int64Gauge

	// HTTPRequestDuration tracks HTTP request processing time. Attributes:
	// method, path.
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets are histogram boundaries in seconds. Rituals call a remote
// model several times, so the upper buckets reach a minute.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60,
}

// NewMetrics creates a fully initialised [Metrics] using mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	histogram := func(name, desc string) (metric.Float64Histogram, error) {
		return m.Float64Histogram(name,
			metric.WithDescription(desc),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(latencyBuckets...),
		)
	}
	if met.RitualDuration, err = histogram("necromancer.ritual.duration", "Latency of a ritual by mode."); err != nil {
		return nil, err
	}
	if met.LLMDuration, err = histogram("necromancer.llm.duration", "Latency of text generation."); err != nil {
		return nil, err
	}
	if met.TTSDuration, err = histogram("necromancer.tts.duration", "Time until synthesised speech is ready."); err != nil {
		return nil, err
	}
	if met.ToolExecutionDuration, err = histogram("necromancer.tool_execution.duration", "Latency of MCP tool execution."); err != nil {
		return nil, err
	}

	if met.ProviderRequests, err = m.Int64Counter("necromancer.provider.requests",
		metric.WithDescription("Total provider API requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("necromancer.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}
	if met.ToolCalls, err = m.Int64Counter("necromancer.tool.calls",
		metric.WithDescription("Total tool invocations by tool name and status."),
	); err != nil {
		return nil, err
	}
	if met.EffectsPlayed, err = m.Int64Counter("necromancer.effects.played",
		metric.WithDescription("Sound effects published to the master bus by kind."),
	); err != nil {
		return nil, err
	}
	if met.EffectsDropped, err = m.Int64Counter("necromancer.effects.dropped",
		metric.WithDescription("Sound effects dropped by kind and reason."),
	); err != nil {
		return nil, err
	}
	if met.SpeechUtterances, err = m.Int64Counter("necromancer.speech.utterances",
		metric.WithDescription("Utterances handed to the speech synthesizer."),
	); err != nil {
		return nil, err
	}
	if met.SanityLevel, err = m.Int64Gauge("necromancer.sanity.level",
		metric.WithDescription("Current sanity meter reading (20-100)."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("necromancer.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Panics if instrument creation
// fails, which does not happen with the global provider.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String].
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordProviderRequest records one provider request.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError records one provider error.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// RecordToolCall records one MCP tool call.
func (m *Metrics) RecordToolCall(ctx context.Context, tool, status string) {
	m.ToolCalls.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("tool", tool),
			attribute.String("status", status),
		),
	)
}

// RecordEffect records a played effect.
func (m *Metrics) RecordEffect(ctx context.Context, kind string) {
	m.EffectsPlayed.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordDroppedEffect records an effect that was not played and why.
func (m *Metrics) RecordDroppedEffect(ctx context.Context, kind, reason string) {
	m.EffectsDropped.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("kind", kind),
			attribute.String("reason", reason),
		),
	)
}

// RecordRitual records the duration of a ritual in seconds.
func (m *Metrics) RecordRitual(ctx context.Context, mode string, seconds float64) {
	m.RitualDuration.Record(ctx, seconds, metric.WithAttributes(attribute.String("mode", mode)))
}
