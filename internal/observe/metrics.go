// Package observe provides application-wide observability primitives for
// fdalens: OpenTelemetry metrics, tracing helpers, and HTTP middleware
// that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A
// Prometheus exporter bridge is available via [InitProvider] so metrics
// can be scraped from the /metrics endpoint in streamable-http mode. A
// package-level default [Metrics] instance ([DefaultMetrics]) is provided
// for convenience; tests should use [NewMetrics] with their own
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all fdalens metrics.
const meterName = "github.com/MrWong99/fdalens"

// Metrics holds all OpenTelemetry metric instruments for the server.
// The underlying OTel types handle their own synchronisation.
type Metrics struct {
	// FDARequestDuration tracks outbound openFDA request latency. Use with
	// attributes: attribute.String("endpoint", ...), attribute.String("status", ...)
	FDARequestDuration metric.Float64Histogram

	// ToolDuration tracks end-to-end MCP tool call latency. Use with
	// attributes: attribute.String("tool", ...)
	ToolDuration metric.Float64Histogram

	// FDARequests counts outbound openFDA requests by endpoint and status.
	FDARequests metric.Int64Counter

	// FDAErrors counts failed openFDA requests by endpoint and error kind.
	FDAErrors metric.Int64Counter

	// ToolCalls counts MCP tool invocations by tool name and status.
	ToolCalls metric.Int64Counter

	// ResourceReads counts MCP resource reads by URI and status.
	ResourceReads metric.Int64Counter

	// PromptRenders counts MCP prompt renders by prompt name.
	PromptRenders metric.Int64Counter

	// HTTPRequestDuration tracks HTTP request processing time in
	// streamable-http mode. Use with attributes:
	// attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram boundaries (in seconds) sized for
// single outbound REST calls.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.FDARequestDuration, err = m.Float64Histogram("fdalens.fda.request.duration",
		metric.WithDescription("Latency of outbound openFDA requests by endpoint and status."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ToolDuration, err = m.Float64Histogram("fdalens.tool.duration",
		metric.WithDescription("End-to-end latency of MCP tool calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.FDARequests, err = m.Int64Counter("fdalens.fda.requests",
		metric.WithDescription("Total outbound openFDA requests by endpoint and status."),
	); err != nil {
		return nil, err
	}
	if met.FDAErrors, err = m.Int64Counter("fdalens.fda.errors",
		metric.WithDescription("Total failed openFDA requests by endpoint and error kind."),
	); err != nil {
		return nil, err
	}
	if met.ToolCalls, err = m.Int64Counter("fdalens.tool.calls",
		metric.WithDescription("Total MCP tool invocations by tool name and status."),
	); err != nil {
		return nil, err
	}
	if met.ResourceReads, err = m.Int64Counter("fdalens.resource.reads",
		metric.WithDescription("Total MCP resource reads by URI and status."),
	); err != nil {
		return nil, err
	}
	if met.PromptRenders, err = m.Int64Counter("fdalens.prompt.renders",
		metric.WithDescription("Total MCP prompt renders by prompt name."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("fdalens.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it
// on first call using [otel.GetMeterProvider]. Subsequent calls return the
// same pointer. Panics if instrument creation fails (should not happen
// with the global provider).
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

// RecordFDARequest records one outbound openFDA request with its latency.
func (m *Metrics) RecordFDARequest(ctx context.Context, endpoint, status string, seconds float64) {
	attrs := metric.WithAttributes(
		attribute.String("endpoint", endpoint),
		attribute.String("status", status),
	)
	m.FDARequests.Add(ctx, 1, attrs)
	m.FDARequestDuration.Record(ctx, seconds, attrs)
}

// RecordFDAError records one failed openFDA request by error kind.
func (m *Metrics) RecordFDAError(ctx context.Context, endpoint, kind string) {
	m.FDAErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("endpoint", endpoint),
			attribute.String("kind", kind),
		),
	)
}

// RecordToolCall records one MCP tool invocation with its latency.
func (m *Metrics) RecordToolCall(ctx context.Context, tool, status string, seconds float64) {
	m.ToolCalls.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("tool", tool),
			attribute.String("status", status),
		),
	)
	m.ToolDuration.Record(ctx, seconds,
		metric.WithAttributes(attribute.String("tool", tool)),
	)
}

// RecordResourceRead records one MCP resource read.
func (m *Metrics) RecordResourceRead(ctx context.Context, uri, status string) {
	m.ResourceReads.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("uri", uri),
			attribute.String("status", status),
		),
	)
}

// RecordPromptRender records one MCP prompt render.
func (m *Metrics) RecordPromptRender(ctx context.Context, prompt string) {
	m.PromptRenders.Add(ctx, 1,
		metric.WithAttributes(attribute.String("prompt", prompt)),
	)
}
