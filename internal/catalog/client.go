// Package catalog verifies products against the remote product service.
package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/order-service/internal/domain/order"
	"github.com/xenking/order-service/internal/domain/product"
)

// DefaultTimeout bounds a single verification round trip.
const DefaultTimeout = 2 * time.Second

// maxBodySize caps how much of a product response is read.
const maxBodySize = 1 << 20

var _ order.ProductVerifier = (*Client)(nil)

// Client performs GET {base}/products/{id} lookups.
type Client struct {
	base    string
	timeout time.Duration
	http    *http.Client

	transportOpts []otelhttp.Option
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithHTTPClient sets the underlying HTTP client. Its transport is wrapped
// with otelhttp instrumentation.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTracerProvider sets the tracer provider used for outgoing requests.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) {
		c.transportOpts = append(c.transportOpts, otelhttp.WithTracerProvider(tp))
	}
}

// WithMeterProvider sets the meter provider used for outgoing requests.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(c *Client) {
		c.transportOpts = append(c.transportOpts, otelhttp.WithMeterProvider(mp))
	}
}

// New creates a catalog Client for the product service at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse product service url")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.Errorf("product service url %q: unsupported scheme", baseURL)
	}
	if u.Host == "" {
		return nil, errors.Errorf("product service url %q: missing host", baseURL)
	}

	c := &Client{
		base:    strings.TrimRight(u.String(), "/"),
		timeout: DefaultTimeout,
	}
	for _, o := range opts {
		o(c)
	}

	hc := &http.Client{}
	if c.http != nil {
		*hc = *c.http
	}
	transport := hc.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	hc.Transport = otelhttp.NewTransport(transport, c.transportOpts...)
	c.http = hc

	return c, nil
}

// Verify asks the catalog whether productID exists. Every failure is a
// *product.VerificationError: 404 is KindNotFound; transport errors,
// timeouts, 429 and 5xx are KindUnavailable; any other non-2xx status is
// KindRejected.
func (c *Client) Verify(ctx context.Context, productID string) (*product.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := c.base + "/products/" + url.PathEscape(productID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, product.NewVerificationError(productID, &unavailableError{err: err})
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, product.NewVerificationError(productID, &unavailableError{err: err})
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
		_ = resp.Body.Close()
	}()

	if err := checkStatus(resp.StatusCode); err != nil {
		return nil, product.NewVerificationError(productID, err)
	}

	p := &product.Product{ID: productID}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err == nil {
		err = decodeProduct(body, p)
	}
	if err != nil {
		// Existence is all that matters; details stay best-effort.
		zctx.From(ctx).Debug("Decode product response failed",
			zap.String("product_id", productID),
			zap.Error(err),
		)
	}

	return p, nil
}

func checkStatus(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return &statusError{code: code, cause: product.ErrNotFound}
	case code == http.StatusTooManyRequests, code >= 500:
		return &statusError{code: code, cause: product.ErrUnavailable}
	default:
		return &statusError{code: code, cause: product.ErrRejected}
	}
}

// decodeProduct fills the optional fields of p from a catalog response.
// Unknown fields are skipped.
func decodeProduct(body []byte, p *product.Product) error {
	return jx.DecodeBytes(body).ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "name":
			if d.Next() != jx.String {
				return d.Skip()
			}
			name, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "name")
			}
			p.Name = name
		case "price":
			price, err := decodePrice(d)
			if err != nil {
				return errors.Wrap(err, "price")
			}
			p.Price = price
		default:
			return d.Skip()
		}
		return nil
	})
}

// decodePrice accepts both numeric and string encoded prices.
func decodePrice(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Decimal{}, err
		}
		return decimal.NewFromString(string(n))
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Decimal{}, err
		}
		return decimal.NewFromString(s)
	default:
		return decimal.Decimal{}, d.Skip()
	}
}

type statusError struct {
	code  int
	cause error
}

func (e *statusError) Error() string {
	return fmt.Sprintf("catalog responded %d: %v", e.code, e.cause)
}

func (e *statusError) Unwrap() error {
	return e.cause
}

// unavailableError marks a transport failure as product.ErrUnavailable while
// keeping the underlying error in the chain.
type unavailableError struct {
	err error
}

func (e *unavailableError) Error() string {
	return fmt.Sprintf("%v: %v", product.ErrUnavailable, e.err)
}

func (e *unavailableError) Is(target error) bool {
	return target == product.ErrUnavailable
}

func (e *unavailableError) Unwrap() error {
	return e.err
}
