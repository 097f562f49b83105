package telemetry

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// ErrMeterNil is returned when no meter is supplied
var ErrMeterNil = errors.New("telemetry: meter cannot be nil")

// ContextMetrics records business context resolution and link workflow activity.
type ContextMetrics struct {
	resolutions     *Counter
	retries         *Counter
	linkRequests    *Counter
	resolveDuration *Histogram
}

// NewContextMetrics registers the instruments on meter.
func NewContextMetrics(meter metric.Meter) (*ContextMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	var (
		m   ContextMetrics
		err error
	)
	m.resolutions, err = NewCounter(meter,
		"madas_context_resolutions_total",
		"Settled business context resolutions by outcome",
		"{resolutions}")
	if err != nil {
		return nil, err
	}
	m.retries, err = NewCounter(meter,
		"madas_context_resolution_retries_total",
		"Resolution attempts retried after a transient failure",
		"{retries}")
	if err != nil {
		return nil, err
	}
	m.linkRequests, err = NewCounter(meter,
		"madas_link_requests_total",
		"Link request workflow operations by action and result",
		"{operations}")
	if err != nil {
		return nil, err
	}
	m.resolveDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "madas_context_resolution_duration_seconds",
		Description: "Time from resolution start to settle",
		Unit:        "s",
		Boundaries:  ResolveDurationBuckets,
	})
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// NoopContextMetrics returns metrics backed by a no-op meter
func NoopContextMetrics() *ContextMetrics {
	m, _ := NewContextMetrics(noop.NewMeterProvider().Meter(TracerName))
	return m
}

// RecordResolution counts one settled resolution
func (m *ContextMetrics) RecordResolution(ctx context.Context, outcome, source string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.resolutions.Inc(ctx, AttrOutcome.String(outcome), AttrSource.String(source))
	m.resolveDuration.RecordDuration(ctx, elapsed, AttrOutcome.String(outcome))
}

// RecordRetry counts one retried attempt
func (m *ContextMetrics) RecordRetry(ctx context.Context) {
	if m == nil {
		return
	}
	m.retries.Inc(ctx)
}

// RecordLinkRequest counts one workflow operation. result is "ok" or an error code.
func (m *ContextMetrics) RecordLinkRequest(ctx context.Context, action, result string) {
	if m == nil {
		return
	}
	m.linkRequests.Inc(ctx, AttrAction.String(action), AttrResultCode.String(result))
}
