package order

import (
	"fmt"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when a requested order does not exist.
var ErrNotFound = errors.New("order not found")

// ValidationError indicates the client sent a malformed order request.
// Nothing has been verified, stored or published when it is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid order request: %s %s", e.Field, e.Reason)
}

// StoreError indicates the order store failed. No order exists when it is
// returned from Service.Create.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("order store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// PublishError indicates an order event could not be handed to the broker.
type PublishError struct {
	Topic   string
	OrderID int64
	Err     error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish order %d event to %q: %v", e.OrderID, e.Topic, e.Err)
}

func (e *PublishError) Unwrap() error {
	return e.Err
}
