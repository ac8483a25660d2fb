package order

import (
	"context"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/order-service/internal/domain/product"
)

// Service encapsulates the order creation workflow and order lookups.
type Service struct {
	verifier ProductVerifier
	orders   Repository
	events   Publisher

	topic   string
	tracer  trace.Tracer
	metrics *Metrics
}

// Option configures a Service.
type Option func(*Service)

// WithTopic overrides the topic creation events are published to.
func WithTopic(topic string) Option {
	return func(s *Service) {
		s.topic = topic
	}
}

// WithTracerProvider enables a span per creation request.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) {
		s.tracer = tp.Tracer(meterName)
	}
}

// WithMetrics enables workflow counters.
func WithMetrics(m *Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// NewService creates an order Service with the required collaborators.
func NewService(
	verifier ProductVerifier,
	orders Repository,
	events Publisher,
	opts ...Option,
) *Service {
	s := &Service{
		verifier: verifier,
		orders:   orders,
		events:   events,
		topic:    Topic,
		tracer:   noop.NewTracerProvider().Tracer(meterName),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Create validates the payload, verifies the product, persists a PENDING
// order and publishes its creation event.
//
// Errors are *ValidationError, *product.VerificationError or *StoreError
// depending on the stage that failed. A publish failure is logged and does
// not fail the call: once the order is persisted it is returned.
func (s *Service) Create(ctx context.Context, p Payload) (*Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.Create")
	defer span.End()

	in, err := Validate(p)
	if err != nil {
		return nil, s.fail(ctx, span, StageReceived, err)
	}
	s.advance(ctx, span, StageValidated)

	if _, err := s.verifier.Verify(ctx, in.ProductID); err != nil {
		var verr *product.VerificationError
		if !errors.As(err, &verr) {
			verr = product.NewVerificationError(in.ProductID, err)
		}
		return nil, s.fail(ctx, span, StageValidated, verr)
	}
	s.advance(ctx, span, StageProductVerified)

	o, err := s.orders.Create(ctx, in.ProductID, in.Quantity)
	if err != nil {
		var serr *StoreError
		if !errors.As(err, &serr) {
			serr = &StoreError{Op: "create", Err: err}
		}
		return nil, s.fail(ctx, span, StageProductVerified, serr)
	}
	span.SetAttributes(attribute.Int64("order.id", o.ID))
	s.advance(ctx, span, StagePersisted)
	s.metrics.orderCreated(ctx)

	// Best effort: the order is already committed.
	if err := s.events.Publish(ctx, s.topic, NewCreatedEvent(o)); err != nil {
		s.metrics.publishFailed(ctx)
		span.RecordError(err)
		zctx.From(ctx).Warn("Publish order created event failed",
			zap.Int64("order_id", o.ID),
			zap.String("topic", s.topic),
			zap.Error(err),
		)
	} else {
		s.advance(ctx, span, StagePublished)
	}

	s.advance(ctx, span, StageResponded)
	return o, nil
}

// List returns all orders, most recent first.
func (s *Service) List(ctx context.Context) ([]Order, error) {
	orders, err := s.orders.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return orders, nil
}

// Get returns the order with the given id, or ErrNotFound.
func (s *Service) Get(ctx context.Context, id int64) (*Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get order %d", id)
	}
	return o, nil
}

// ParseID parses an order identifier from its external form. Anything that
// is not a positive decimal integer cannot name an order and yields
// ErrNotFound.
func ParseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrNotFound
	}
	return id, nil
}

func (s *Service) advance(ctx context.Context, span trace.Span, stage Stage) {
	span.AddEvent(stage.String())
	zctx.From(ctx).Debug("Order workflow stage", zap.Stringer("stage", stage))
}

// fail ends the workflow at the stage the request had reached.
func (s *Service) fail(ctx context.Context, span trace.Span, reached Stage, err error) error {
	s.metrics.createFailed(ctx, reached)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	zctx.From(ctx).Debug("Order workflow stopped",
		zap.Stringer("stage", reached),
		zap.Error(err),
	)
	return err
}
