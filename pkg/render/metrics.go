package render

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer = otel.Tracer("photo_edit_session.render")
	meter  = otel.Meter("photo_edit_session.render")
)

var (
	renderRequests  metric.Int64Counter
	renderFailures  metric.Int64Counter
	staleDiscards   metric.Int64Counter
	cacheHits       metric.Int64Counter
	cacheMisses     metric.Int64Counter
	renderLatency   metric.Float64Histogram
	metricsOnce     sync.Once
	metricsInitErr  error
)

// initMetrics registers the instruments once. Safe to call repeatedly.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		renderRequests, err = meter.Int64Counter(
			"render_requests_total",
			metric.WithDescription("Render requests sent to the engine"),
		)
		if err != nil {
			metricsInitErr = err
			return
		}

		renderFailures, err = meter.Int64Counter(
			"render_failures_total",
			metric.WithDescription("Render requests that returned an error"),
		)
		if err != nil {
			metricsInitErr = err
			return
		}

		staleDiscards, err = meter.Int64Counter(
			"render_stale_discards_total",
			metric.WithDescription("Render results dropped because a newer request superseded them"),
		)
		if err != nil {
			metricsInitErr = err
			return
		}

		cacheHits, err = meter.Int64Counter(
			"render_cache_hits_total",
			metric.WithDescription("Full resolution requests served from the cache"),
		)
		if err != nil {
			metricsInitErr = err
			return
		}

		cacheMisses, err = meter.Int64Counter(
			"render_cache_misses_total",
			metric.WithDescription("Full resolution requests that needed a render"),
		)
		if err != nil {
			metricsInitErr = err
			return
		}

		renderLatency, err = meter.Float64Histogram(
			"render_duration_seconds",
			metric.WithDescription("Duration of render engine calls"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsInitErr = err
			return
		}
	})
	return metricsInitErr
}

func tierAttr(t Tier) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("tier", string(t)))
}

func recordRequest(ctx context.Context, t Tier) {
	if initMetrics() != nil {
		return
	}
	renderRequests.Add(ctx, 1, tierAttr(t))
}

func recordFailure(ctx context.Context, t Tier) {
	if initMetrics() != nil {
		return
	}
	renderFailures.Add(ctx, 1, tierAttr(t))
}

func recordStale(ctx context.Context, t Tier) {
	if initMetrics() != nil {
		return
	}
	staleDiscards.Add(ctx, 1, tierAttr(t))
}

func recordCache(ctx context.Context, hit bool) {
	if initMetrics() != nil {
		return
	}
	if hit {
		cacheHits.Add(ctx, 1)
		return
	}
	cacheMisses.Add(ctx, 1)
}

func recordLatency(ctx context.Context, t Tier, d time.Duration, ok bool) {
	if initMetrics() != nil {
		return
	}
	renderLatency.Record(ctx, d.Seconds(),
		metric.WithAttributes(
			attribute.String("tier", string(t)),
			attribute.Bool("ok", ok),
		),
	)
}

// startRenderSpan opens a span around one engine call.
func startRenderSpan(ctx context.Context, t Tier, fingerprint string, gen uint64) (context.Context, trace.Span) {
	return tracer.Start(ctx, "RenderEngine."+string(t),
		trace.WithAttributes(
			attribute.String("render.tier", string(t)),
			attribute.String("render.fingerprint", fingerprint),
			attribute.Int64("render.generation", int64(gen)),
		),
	)
}

func endRenderSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
