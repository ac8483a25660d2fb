package broker

import (
	"context"
	"strconv"
	"time"

	"github.com/go-faster/jx"

	"github.com/xenking/order-service/internal/domain/order"
)

// Headers set on every order event.
const (
	HeaderEventType   = "event-type"
	HeaderContentType = "content-type"
)

var _ order.Publisher = (*OrderEvents)(nil)

// OrderEvents publishes order events as JSON keyed by order id.
type OrderEvents struct {
	bus     Bus
	timeout time.Duration
}

// NewOrderEvents returns an order.Publisher over bus. A positive timeout
// bounds each Publish; otherwise the driver's own timeouts apply.
func NewOrderEvents(bus Bus, timeout time.Duration) *OrderEvents {
	return &OrderEvents{bus: bus, timeout: timeout}
}

// Publish implements order.Publisher. Failures are returned as
// *order.PublishError.
func (p *OrderEvents) Publish(ctx context.Context, topic string, e order.CreatedEvent) error {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	msg := Message{
		Key:   strconv.AppendInt(nil, e.OrderID, 10),
		Value: EncodeCreatedEvent(e),
		Headers: map[string]string{
			HeaderEventType:   e.Type,
			HeaderContentType: "application/json",
		},
	}
	if err := p.bus.Publish(ctx, topic, msg); err != nil {
		return &order.PublishError{Topic: topic, OrderID: e.OrderID, Err: err}
	}
	return nil
}

// EncodeCreatedEvent renders the wire form of an order creation event:
//
//	{"event":"ORDER_CREATED","orderId":1,"productId":"P1","quantity":3}
func EncodeCreatedEvent(e order.CreatedEvent) []byte {
	enc := jx.GetEncoder()
	defer jx.PutEncoder(enc)

	enc.ObjStart()
	enc.FieldStart("event")
	enc.Str(e.Type)
	enc.FieldStart("orderId")
	enc.Int64(e.OrderID)
	enc.FieldStart("productId")
	enc.Str(e.ProductID)
	enc.FieldStart("quantity")
	enc.Int(e.Quantity)
	enc.ObjEnd()

	return append([]byte(nil), enc.Bytes()...)
}

// DecodeCreatedEvent parses the output of EncodeCreatedEvent. Unknown fields
// are ignored.
func DecodeCreatedEvent(data []byte) (order.CreatedEvent, error) {
	var e order.CreatedEvent
	err := jx.DecodeBytes(data).ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "event":
			e.Type, err = d.Str()
		case "orderId":
			e.OrderID, err = d.Int64()
		case "productId":
			e.ProductID, err = d.Str()
		case "quantity":
			e.Quantity, err = d.Int()
		default:
			err = d.Skip()
		}
		return err
	})
	return e, err
}
