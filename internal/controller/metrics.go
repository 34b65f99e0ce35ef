package controller

import (
	"context"
	"fmt"

	"github.com/morespeeders/extension/internal/session"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/morespeeders/extension/internal/controller"

type metrics struct {
	ticks    metric.Int64Counter
	skipped  metric.Int64Counter
	duration metric.Float64Histogram
	attempts metric.Int64Counter
	reacted  metric.Int64Counter
	removed  metric.Int64Counter
}

func newMetrics(m metric.Meter, sess *session.Context) (*metrics, error) {
	if m == nil {
		m = otel.Meter(instrumentationName)
	}

	var (
		out metrics
		err error
	)

	out.ticks, err = m.Int64Counter("controller.ticks",
		metric.WithDescription("Poll loop iterations"))
	if err != nil {
		return nil, fmt.Errorf("creating ticks counter: %w", err)
	}

	out.skipped, err = m.Int64Counter("controller.ticks.skipped",
		metric.WithDescription("Ticks skipped because the subject position could not be read"))
	if err != nil {
		return nil, fmt.Errorf("creating skipped ticks counter: %w", err)
	}

	out.duration, err = m.Float64Histogram("controller.tick.duration",
		metric.WithDescription("Time spent in one tick"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, fmt.Errorf("creating tick duration histogram: %w", err)
	}

	out.attempts, err = m.Int64Counter("controller.spawn.attempts",
		metric.WithDescription("Admission results by outcome"))
	if err != nil {
		return nil, fmt.Errorf("creating spawn attempts counter: %w", err)
	}

	out.reacted, err = m.Int64Counter("controller.handoffs",
		metric.WithDescription("Entities handed to ambient traffic"))
	if err != nil {
		return nil, fmt.Errorf("creating handoffs counter: %w", err)
	}

	out.removed, err = m.Int64Counter("controller.registry.removed",
		metric.WithDescription("Entities removed from the registry by reason"))
	if err != nil {
		return nil, fmt.Errorf("creating removed counter: %w", err)
	}

	tracked, err := m.Int64ObservableGauge("controller.registry.size",
		metric.WithDescription("Tracked entities by state"))
	if err != nil {
		return nil, fmt.Errorf("creating registry size gauge: %w", err)
	}

	_, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			s := sess.Status()
			o.ObserveInt64(tracked, int64(s.Scripted), metric.WithAttributes(attribute.String("state", "scripted")))
			o.ObserveInt64(tracked, int64(s.Ambient()), metric.WithAttributes(attribute.String("state", "ambient")))
			o.ObserveInt64(tracked, int64(s.Orphaned), metric.WithAttributes(attribute.String("state", "orphaned")))
			return nil
		},
		tracked,
	)
	if err != nil {
		return nil, fmt.Errorf("registering registry callback: %w", err)
	}

	return &out, nil
}
