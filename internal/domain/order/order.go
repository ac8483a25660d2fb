package order

import (
	"context"
	"time"

	"github.com/xenking/order-service/internal/domain/product"
)

// Status is the lifecycle state of an order. This service only ever writes
// StatusPending; later transitions belong to downstream consumers.
type Status string

const StatusPending Status = "PENDING"

// Topic is the broker topic order creation events are published to.
const Topic = "orders"

// EventOrderCreated tags an OrderCreatedEvent on the wire.
const EventOrderCreated = "ORDER_CREATED"

// Order represents a requested purchase of a single product.
type Order struct {
	ID        int64
	ProductID string
	Quantity  int
	Status    Status
	CreatedAt time.Time
}

// CreatedEvent notifies downstream consumers that an order was persisted.
// It is never stored.
type CreatedEvent struct {
	Type      string
	OrderID   int64
	ProductID string
	Quantity  int
}

// NewCreatedEvent builds the creation event for a persisted order.
func NewCreatedEvent(o *Order) CreatedEvent {
	return CreatedEvent{
		Type:      EventOrderCreated,
		OrderID:   o.ID,
		ProductID: o.ProductID,
		Quantity:  o.Quantity,
	}
}

// Repository defines persistence operations for orders. Implementations
// assign identifiers that are unique and strictly increasing even under
// concurrent Create calls.
type Repository interface {
	Create(ctx context.Context, productID string, quantity int) (*Order, error)
	List(ctx context.Context) ([]Order, error)
	GetByID(ctx context.Context, id int64) (*Order, error)
}

// ProductVerifier confirms a product exists in the remote catalog.
type ProductVerifier interface {
	Verify(ctx context.Context, productID string) (*product.Product, error)
}

// Publisher delivers order events to a broker topic exactly once per call,
// without retrying.
type Publisher interface {
	Publish(ctx context.Context, topic string, event CreatedEvent) error
}
