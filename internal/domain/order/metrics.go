package order

import (
	"context"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/xenking/order-service/internal/domain/order"

// Metrics records order workflow outcomes. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	created         metric.Int64Counter
	failures        metric.Int64Counter
	publishFailures metric.Int64Counter
}

// NewMetrics registers the order workflow instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter(meterName)

	created, err := meter.Int64Counter("orders.created",
		metric.WithDescription("Orders persisted by the creation workflow"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "orders.created")
	}
	failures, err := meter.Int64Counter("orders.create.failures",
		metric.WithDescription("Creation requests that ended before persistence completed"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "orders.create.failures")
	}
	publishFailures, err := meter.Int64Counter("orders.events.publish_failures",
		metric.WithDescription("Order created events that could not be published"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "orders.events.publish_failures")
	}

	return &Metrics{
		created:         created,
		failures:        failures,
		publishFailures: publishFailures,
	}, nil
}

func (m *Metrics) orderCreated(ctx context.Context) {
	if m == nil {
		return
	}
	m.created.Add(ctx, 1)
}

func (m *Metrics) createFailed(ctx context.Context, stage Stage) {
	if m == nil {
		return
	}
	m.failures.Add(ctx, 1, metric.WithAttributes(attribute.Stringer("stage", stage)))
}

func (m *Metrics) publishFailed(ctx context.Context) {
	if m == nil {
		return
	}
	m.publishFailures.Add(ctx, 1)
}
