package screen

import (
	"context"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const instrumentationName = "github.com/xenking/catalog-admin/internal/screen"

// Metrics counts screen operations by kind and outcome.
type Metrics struct {
	loads     metric.Int64Counter
	mutations metric.Int64Counter
	sessions  metric.Int64UpDownCounter
}

// NewMetrics registers the screen instruments on mp. A nil mp yields no-op
// instruments.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	if mp == nil {
		mp = noop.NewMeterProvider()
	}
	meter := mp.Meter(instrumentationName)

	loads, err := meter.Int64Counter("catalog.loads",
		metric.WithDescription("Catalog loads by outcome"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "loads counter")
	}
	mutations, err := meter.Int64Counter("catalog.mutations",
		metric.WithDescription("Catalog mutations by operation and outcome"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "mutations counter")
	}
	sessions, err := meter.Int64UpDownCounter("catalog.sessions.active",
		metric.WithDescription("Open screen sessions"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "sessions counter")
	}
	return &Metrics{loads: loads, mutations: mutations, sessions: sessions}, nil
}

func outcome(err error) attribute.KeyValue {
	if err != nil {
		return attribute.String("outcome", "error")
	}
	return attribute.String("outcome", "ok")
}

func (m *Metrics) load(ctx context.Context, err error) {
	if m == nil {
		return
	}
	m.loads.Add(ctx, 1, metric.WithAttributes(outcome(err)))
}

func (m *Metrics) mutation(ctx context.Context, op string, err error) {
	if m == nil {
		return
	}
	m.mutations.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op), outcome(err)))
}

func (m *Metrics) session(ctx context.Context, delta int64) {
	if m == nil {
		return
	}
	m.sessions.Add(ctx, delta)
}
