package order

import (
	"math"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// MaxQuantity is the largest quantity the order store can hold.
const MaxQuantity = math.MaxInt32

// Payload is an order creation request as received from a client. Each
// field holds the raw JSON value, or nil when the field was absent.
type Payload struct {
	ProductID jx.Raw
	Quantity  jx.Raw
}

// Input is a Payload that passed validation.
type Input struct {
	ProductID string
	Quantity  int
}

// Validate checks that productId is a non-empty string (or a non-zero
// integer, kept in its decimal form) and that quantity is an integer in
// [1, MaxQuantity]. It has no side effects.
func Validate(p Payload) (Input, error) {
	productID, err := validateProductID(p.ProductID)
	if err != nil {
		return Input{}, err
	}
	quantity, err := validateQuantity(p.Quantity)
	if err != nil {
		return Input{}, err
	}
	return Input{ProductID: productID, Quantity: quantity}, nil
}

func validateProductID(raw jx.Raw) (string, error) {
	invalid := func(reason string) error {
		return &ValidationError{Field: "productId", Reason: reason}
	}

	d := jx.DecodeBytes(raw)
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return "", invalid("is malformed")
		}
		if s == "" {
			return "", invalid("is empty")
		}
		return s, nil
	case jx.Number:
		v, err := decodeInt(d)
		if err != nil {
			return "", invalid("must be a string or an integer")
		}
		if v == 0 {
			return "", invalid("is empty")
		}
		return strconv.FormatInt(v, 10), nil
	case jx.Invalid, jx.Null:
		return "", invalid("is required")
	default:
		return "", invalid("must be a string or an integer")
	}
}

func validateQuantity(raw jx.Raw) (int, error) {
	invalid := func(reason string) error {
		return &ValidationError{Field: "quantity", Reason: reason}
	}

	d := jx.DecodeBytes(raw)
	switch d.Next() {
	case jx.Number:
		v, err := decodeInt(d)
		if err != nil {
			return 0, invalid("must be an integer")
		}
		if v <= 0 {
			return 0, invalid("must be positive")
		}
		if v > MaxQuantity {
			return 0, invalid("is too large")
		}
		return int(v), nil
	case jx.Invalid, jx.Null:
		return 0, invalid("is required")
	default:
		return 0, invalid("must be a number")
	}
}

// maxExactInt is the largest magnitude a float64 holds without rounding.
const maxExactInt = 1 << 53

// decodeInt reads a JSON number holding a whole value. Integral numbers
// written with a fraction or exponent, such as 3.0 or 3e0, are accepted.
func decodeInt(d *jx.Decoder) (int64, error) {
	n, err := d.Num()
	if err != nil {
		return 0, err
	}
	if v, err := strconv.ParseInt(string(n), 10, 64); err == nil {
		return v, nil
	}

	f, err := strconv.ParseFloat(string(n), 64)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) || math.Abs(f) > maxExactInt {
		return 0, errors.Errorf("%s is not an integer", n)
	}
	return int64(f), nil
}
