package product

import (
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Sentinel causes carried by VerificationError.
var (
	// ErrNotFound is returned when the catalog reports the product does not exist.
	ErrNotFound = errors.New("product not found")
	// ErrUnavailable is returned when the catalog could not be reached in time
	// or answered with a server-side failure.
	ErrUnavailable = errors.New("product catalog unavailable")
	// ErrRejected is returned for any other non-success catalog response.
	ErrRejected = errors.New("product rejected by catalog")
)

// Product holds the catalog details returned when a product is verified.
// Only the identifier is guaranteed; the remaining fields are best-effort.
type Product struct {
	ID    string
	Name  string
	Price decimal.Decimal
}

// Kind classifies why a product could not be verified.
type Kind int

const (
	KindUnavailable Kind = iota
	KindNotFound
	KindRejected
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindRejected:
		return "rejected"
	default:
		return "unavailable"
	}
}

// VerificationError reports a failed product lookup. Callers outside the
// catalog client should treat every kind the same unless they explicitly
// opt into distinguishing them.
type VerificationError struct {
	ProductID string
	Kind      Kind
	Err       error
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("verify product %q: %s: %v", e.ProductID, e.Kind, e.Err)
}

func (e *VerificationError) Unwrap() error {
	return e.Err
}

// NewVerificationError wraps cause into a VerificationError, deriving the
// kind from the sentinel it wraps.
func NewVerificationError(productID string, cause error) *VerificationError {
	kind := KindUnavailable
	switch {
	case errors.Is(cause, ErrNotFound):
		kind = KindNotFound
	case errors.Is(cause, ErrRejected):
		kind = KindRejected
	}
	return &VerificationError{ProductID: productID, Kind: kind, Err: cause}
}
