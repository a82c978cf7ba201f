package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records client request metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: implementations must not panic and must return quickly.
type Metrics interface {
	// RecordRequest records one logical request with its duration and outcome.
	RecordRequest(ctx context.Context, meta OpMeta, duration time.Duration, err error)

	// RecordCache records a cache lookup outcome for a request key.
	RecordCache(ctx context.Context, meta OpMeta, hit bool)

	// RecordAdmissionReject records a local rate-limit rejection.
	RecordAdmissionReject(ctx context.Context, meta OpMeta)

	// RecordRetry records one retry attempt.
	RecordRetry(ctx context.Context, meta OpMeta)
}

type metricsImpl struct {
	requestCount  metric.Int64Counter
	errorCount    metric.Int64Counter
	durationHist  metric.Float64Histogram
	cacheHits     metric.Int64Counter
	cacheMisses   metric.Int64Counter
	admitRejects  metric.Int64Counter
	retryAttempts metric.Int64Counter
}

// NewMetrics creates a Metrics instance backed by the given meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	requestCount, err := meter.Int64Counter(
		"client.request.total",
		metric.WithDescription("Total number of logical client requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	errorCount, err := meter.Int64Counter(
		"client.request.errors",
		metric.WithDescription("Total number of failed client requests"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		"client.request.duration_ms",
		metric.WithDescription("Client request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	cacheHits, err := meter.Int64Counter(
		"client.cache.hits",
		metric.WithDescription("Request cache hits"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return nil, err
	}

	cacheMisses, err := meter.Int64Counter(
		"client.cache.misses",
		metric.WithDescription("Request cache misses"),
		metric.WithUnit("{miss}"),
	)
	if err != nil {
		return nil, err
	}

	admitRejects, err := meter.Int64Counter(
		"client.ratelimit.rejected",
		metric.WithDescription("Requests rejected by local admission control"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	retryAttempts, err := meter.Int64Counter(
		"client.request.retries",
		metric.WithDescription("Retry attempts after a retryable failure"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		requestCount:  requestCount,
		errorCount:    errorCount,
		durationHist:  durationHist,
		cacheHits:     cacheHits,
		cacheMisses:   cacheMisses,
		admitRejects:  admitRejects,
		retryAttempts: retryAttempts,
	}, nil
}

func opAttrs(meta OpMeta) metric.MeasurementOption {
	attrs := []attribute.KeyValue{
		attribute.String("op", meta.Operation),
	}
	if meta.Method != "" {
		attrs = append(attrs, attribute.String("http.method", meta.Method))
	}
	if meta.Path != "" {
		attrs = append(attrs, attribute.String("http.path", meta.Path))
	}
	return metric.WithAttributes(attrs...)
}

func (m *metricsImpl) RecordRequest(ctx context.Context, meta OpMeta, duration time.Duration, err error) {
	opt := opAttrs(meta)

	m.requestCount.Add(ctx, 1, opt)
	if err != nil {
		m.errorCount.Add(ctx, 1, opt)
	}
	m.durationHist.Record(ctx, float64(duration.Milliseconds()), opt)
}

func (m *metricsImpl) RecordCache(ctx context.Context, meta OpMeta, hit bool) {
	if hit {
		m.cacheHits.Add(ctx, 1, opAttrs(meta))
	} else {
		m.cacheMisses.Add(ctx, 1, opAttrs(meta))
	}
}

func (m *metricsImpl) RecordAdmissionReject(ctx context.Context, meta OpMeta) {
	m.admitRejects.Add(ctx, 1, opAttrs(meta))
}

func (m *metricsImpl) RecordRetry(ctx context.Context, meta OpMeta) {
	m.retryAttempts.Add(ctx, 1, opAttrs(meta))
}

// noopMetrics is a Metrics implementation that does nothing.
type noopMetrics struct{}

func (noopMetrics) RecordRequest(context.Context, OpMeta, time.Duration, error) {}
func (noopMetrics) RecordCache(context.Context, OpMeta, bool)                   {}
func (noopMetrics) RecordAdmissionReject(context.Context, OpMeta)               {}
func (noopMetrics) RecordRetry(context.Context, OpMeta)                         {}

// NopMetrics returns a Metrics that discards everything.
func NopMetrics() Metrics {
	return noopMetrics{}
}

// Ensure metricsImpl implements Metrics
var _ Metrics = (*metricsImpl)(nil)
