package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Decision describes a single authorization decision for telemetry purposes.
type Decision struct {
	// Tenant is the tenant context the request was scoped to (may be empty).
	Tenant string

	// Permitted is the outcome visible to the caller.
	Permitted bool

	// Reason is the internal denial reason label ("" when permitted).
	// It is recorded as a metric attribute and in logs, never returned
	// to clients.
	Reason string
}

// Metrics records authorization and key rotation telemetry.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must honor cancellation/deadlines and return quickly.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordDecision records one gate decision with its validation duration.
	RecordDecision(ctx context.Context, d Decision, duration time.Duration)

	// RecordKeyRefresh records the outcome of one key source refresh.
	RecordKeyRefresh(ctx context.Context, keys int, err error)

	// RecordCacheLookup records a token cache hit or miss.
	RecordCacheLookup(ctx context.Context, hit bool)
}

// metricsImpl is the concrete implementation of Metrics.
type metricsImpl struct {
	meter         metric.Meter
	decisionCount metric.Int64Counter
	denialCount   metric.Int64Counter
	decisionHist  metric.Float64Histogram
	refreshCount  metric.Int64Counter
	keysetSize    metric.Int64Gauge
	cacheLookups  metric.Int64Counter
}

// NewMetrics creates a Metrics instance on the given meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	decisionCount, err := meter.Int64Counter(
		"authz.decisions.total",
		metric.WithDescription("Total number of authorization decisions"),
		metric.WithUnit("{decision}"),
	)
	if err != nil {
		return nil, err
	}

	denialCount, err := meter.Int64Counter(
		"authz.denials.total",
		metric.WithDescription("Total number of denied requests by reason"),
		metric.WithUnit("{denial}"),
	)
	if err != nil {
		return nil, err
	}

	decisionHist, err := meter.Float64Histogram(
		"authz.decision.duration_ms",
		metric.WithDescription("Authorization decision latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	refreshCount, err := meter.Int64Counter(
		"keyset.refresh.total",
		metric.WithDescription("Total number of key source refresh attempts"),
		metric.WithUnit("{refresh}"),
	)
	if err != nil {
		return nil, err
	}

	keysetSize, err := meter.Int64Gauge(
		"keyset.keys",
		metric.WithDescription("Number of keys in the active key set"),
		metric.WithUnit("{key}"),
	)
	if err != nil {
		return nil, err
	}

	cacheLookups, err := meter.Int64Counter(
		"authz.cache.lookups.total",
		metric.WithDescription("Token cache lookups by result"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		meter:         meter,
		decisionCount: decisionCount,
		denialCount:   denialCount,
		decisionHist:  decisionHist,
		refreshCount:  refreshCount,
		keysetSize:    keysetSize,
		cacheLookups:  cacheLookups,
	}, nil
}

// RecordDecision records metrics for one authorization decision.
func (m *metricsImpl) RecordDecision(ctx context.Context, d Decision, duration time.Duration) {
	outcome := "permitted"
	if !d.Permitted {
		outcome = "rejected"
	}

	attrs := []attribute.KeyValue{
		attribute.String("outcome", outcome),
	}
	if d.Tenant != "" {
		attrs = append(attrs, attribute.String("tenant", d.Tenant))
	}

	opt := metric.WithAttributes(attrs...)
	m.decisionCount.Add(ctx, 1, opt)
	m.decisionHist.Record(ctx, float64(duration.Microseconds())/1000.0, opt)

	if !d.Permitted {
		m.denialCount.Add(ctx, 1, metric.WithAttributes(
			attribute.String("reason", d.Reason),
		))
	}
}

// RecordKeyRefresh records one refresh attempt; keys is the size of the
// resulting set on success.
func (m *metricsImpl) RecordKeyRefresh(ctx context.Context, keys int, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.refreshCount.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	if err == nil {
		m.keysetSize.Record(ctx, int64(keys))
	}
}

// RecordCacheLookup records one token cache lookup.
func (m *metricsImpl) RecordCacheLookup(ctx context.Context, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// noopMetrics is a metrics implementation that does nothing.
type noopMetrics struct{}

// NopMetrics returns a Metrics that records nothing.
func NopMetrics() Metrics { return &noopMetrics{} }

func (m *noopMetrics) RecordDecision(context.Context, Decision, time.Duration) {}
func (m *noopMetrics) RecordKeyRefresh(context.Context, int, error)           {}
func (m *noopMetrics) RecordCacheLookup(context.Context, bool)                {}
