// Package handler exposes the order workflow over HTTP.
package handler

import (
	"context"
	"net/http"

	"github.com/xenking/order-service/internal/domain/order"
)

// Client facing messages.
const (
	msgInvalidRequest     = "productId and positive quantity required"
	msgInvalidProduct     = "Invalid productId or product service unavailable"
	msgProductNotFound    = "Product not found"
	msgCatalogUnavailable = "Product service unavailable"
	msgOrderNotFound      = "Order not found"
	msgOrderPlaced        = "Order placed successfully"
	msgInternal           = "Internal server error"
)

// maxBodySize caps the order creation request body.
const maxBodySize = 1 << 20

// OrderService is the subset of *order.Service the handler uses.
type OrderService interface {
	Create(ctx context.Context, p order.Payload) (*order.Order, error)
	List(ctx context.Context) ([]order.Order, error)
	Get(ctx context.Context, id int64) (*order.Order, error)
}

var _ OrderService = (*order.Service)(nil)

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// SplitVerificationErrors reports an unknown product as 422 and an
	// unreachable catalog as 503 instead of the single 400 response.
	SplitVerificationErrors bool
}

// Handler serves the order endpoints.
type Handler struct {
	orders OrderService
	split  bool
}

// New constructs a Handler over the order service.
func New(cfg Config, orders OrderService) *Handler {
	return &Handler{
		orders: orders,
		split:  cfg.SplitVerificationErrors,
	}
}

// Register mounts the order routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /{$}", h.CreateOrder)
	mux.HandleFunc("GET /{$}", h.ListOrders)
	mux.HandleFunc("GET /{id}", h.GetOrder)
	mux.HandleFunc("/", h.NotFound)
}

// NotFound answers any request no other route claims.
func (h *Handler) NotFound(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusNotFound, msgOrderNotFound)
}
