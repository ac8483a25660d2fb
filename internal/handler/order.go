package handler

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/order-service/internal/domain/order"
	"github.com/xenking/order-service/internal/domain/product"
)

// CreateOrder handles POST /.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, msgInvalidRequest)
		return
	}

	p, err := decodePayload(body)
	if err != nil {
		zctx.From(r.Context()).Debug("Malformed order request", zap.Error(err))
		writeError(w, http.StatusBadRequest, msgInvalidRequest)
		return
	}

	// The workflow runs to completion even if the client goes away.
	ctx := context.WithoutCancel(r.Context())
	o, err := h.orders.Create(ctx, p)
	if err != nil {
		h.writeCreateError(ctx, w, err)
		return
	}

	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("message", func(e *jx.Encoder) { e.Str(msgOrderPlaced) })
			e.Field("order", func(e *jx.Encoder) { encodeOrder(e, o) })
		})
	})
}

// ListOrders handles GET /.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.List(r.Context())
	if err != nil {
		zctx.From(r.Context()).Error("List orders failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for i := range orders {
				encodeOrder(e, &orders[i])
			}
		})
	})
}

// GetOrder handles GET /{id}.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := order.ParseID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, msgOrderNotFound)
		return
	}

	o, err := h.orders.Get(r.Context(), id)
	switch {
	case errors.Is(err, order.ErrNotFound):
		writeError(w, http.StatusNotFound, msgOrderNotFound)
		return
	case err != nil:
		zctx.From(r.Context()).Error("Get order failed", zap.Int64("order_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeOrder(e, o)
	})
}

// writeCreateError maps workflow errors to responses. Anything that is not a
// client error is logged and reported without detail.
func (h *Handler) writeCreateError(ctx context.Context, w http.ResponseWriter, err error) {
	var (
		validationErr   *order.ValidationError
		verificationErr *product.VerificationError
	)
	switch {
	case errors.As(err, &validationErr):
		writeError(w, http.StatusBadRequest, msgInvalidRequest)
	case errors.As(err, &verificationErr):
		zctx.From(ctx).Info("Product verification failed",
			zap.String("product_id", verificationErr.ProductID),
			zap.Stringer("kind", verificationErr.Kind),
			zap.Error(err),
		)
		status, msg := h.verificationStatus(verificationErr.Kind)
		writeError(w, status, msg)
	default:
		zctx.From(ctx).Error("Create order failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, msgInternal)
	}
}

func (h *Handler) verificationStatus(kind product.Kind) (int, string) {
	if h.split {
		switch kind {
		case product.KindNotFound:
			return http.StatusUnprocessableEntity, msgProductNotFound
		case product.KindUnavailable:
			return http.StatusServiceUnavailable, msgCatalogUnavailable
		}
	}
	return http.StatusBadRequest, msgInvalidProduct
}

// decodePayload extracts productId and quantity from a body holding exactly
// one JSON object. Unknown fields are skipped.
func decodePayload(body []byte) (order.Payload, error) {
	var p order.Payload

	body = bytes.TrimSpace(body)
	d := jx.DecodeBytes(body)
	if d.Next() != jx.Object {
		return p, &order.ValidationError{Field: "body", Reason: "must be a JSON object"}
	}
	obj, err := d.Raw()
	if err != nil {
		return p, &order.ValidationError{Field: "body", Reason: "is malformed JSON"}
	}
	if len(obj) != len(body) {
		return p, &order.ValidationError{Field: "body", Reason: "has trailing data"}
	}

	err = jx.DecodeBytes(obj).ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "productId":
			raw, err := d.Raw()
			if err != nil {
				return err
			}
			p.ProductID = append(jx.Raw(nil), raw...)
		case "quantity":
			raw, err := d.Raw()
			if err != nil {
				return err
			}
			p.Quantity = append(jx.Raw(nil), raw...)
		default:
			return d.Skip()
		}
		return nil
	})
	if err != nil {
		return order.Payload{}, &order.ValidationError{Field: "body", Reason: "is malformed JSON"}
	}
	return p, nil
}
