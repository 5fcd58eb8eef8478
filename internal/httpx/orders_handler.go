package httpx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-commerce-core.git/internal/catalog"
	"github.com/ariefcatur/go-commerce-core.git/internal/inventory"
	kafkax "github.com/ariefcatur/go-commerce-core.git/internal/kafka"
	"github.com/ariefcatur/go-commerce-core.git/internal/metrics"
	"github.com/ariefcatur/go-commerce-core.git/internal/orders"
	"github.com/ariefcatur/go-commerce-core.git/internal/promo"
	"github.com/ariefcatur/go-commerce-core.git/internal/redisx"
)

type OrdersHandler struct {
	Coordinator       *orders.Coordinator
	Catalog           *catalog.Repo
	PlacedProducer    *kafkax.Producer
	CancelledProducer *kafkax.Producer
	Redis             *redis.Client
	Log               *zap.Logger
	Service           string
}

type PlaceOrderReq struct {
	Site            SiteScope         `json:"site"`
	ExternalID      string            `json:"external_id,omitempty"`
	Items           []catalog.LineRef `json:"items"`
	CouponCode      string            `json:"coupon_code,omitempty"`
	Customer        orders.Customer   `json:"customer"`
	ShippingAddress orders.Address    `json:"shipping_address"`
}

type PlaceOrderResp struct {
	OrderID            string          `json:"order_id"`
	OrderNumber        string          `json:"order_number"`
	SubtotalCents      int64           `json:"subtotal_cents"`
	DiscountCents      int64           `json:"discount_cents"`
	TotalCents         int64           `json:"total_cents"`
	AppliedPromotionID string          `json:"applied_promotion_id,omitempty"`
	Applied            []promo.Applied `json:"applied,omitempty"`
	Currency           string          `json:"currency"`
	Idempotent         bool            `json:"idempotent"`
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Post("/orders", h.placeOrder)
	r.Get("/orders/{id}", h.getOrder)
	r.Post("/orders/{id}/cancel", h.cancelOrder)
	r.Get("/products", h.listProducts)
}

func (h *OrdersHandler) placeOrder(w http.ResponseWriter, r *http.Request) {
	var req PlaceOrderReq
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.Site.TenantID == "" || req.Site.StoreID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing site scope"})
		return
	}
	for _, it := range req.Items {
		if it.ProductID == "" || it.Qty <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item"})
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	// fast-path idempotency: retry yang sudah tercatat di Redis tidak perlu
	// menyentuh jalur placement sama sekali
	if req.ExternalID != "" {
		idemKey := fmt.Sprintf(redisx.KeyIdemOrderPlace, req.Site.TenantID, req.ExternalID)
		if ok, err := redisx.Exists(ctx, h.Redis, idemKey); err == nil && ok {
			if orderID, err := h.Redis.Get(ctx, idemKey).Result(); err == nil && orderID != "" {
				if o, err := h.Coordinator.GetOrder(ctx, req.Site.TenantID, orderID); err == nil {
					writeJSON(w, http.StatusCreated, orderResp(o, nil, true))
					return
				}
			}
		}
	}

	store, err := h.Catalog.GetStore(ctx, req.Site.TenantID, req.Site.StoreID)
	if err != nil {
		writeError(w, err)
		return
	}

	start := time.Now()
	res, err := h.Coordinator.PlaceOrder(ctx, orders.PlaceOrderInput{
		TenantID:   req.Site.TenantID,
		SiteID:     req.Site.SiteID,
		StoreID:    req.Site.StoreID,
		ExternalID: req.ExternalID,
		Items:      req.Items,
		CouponCode: req.CouponCode,
		Customer:   req.Customer,
		Shipping:   req.ShippingAddress,
		Currency:   store.Currency,
	})
	metrics.PlacementDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.OrderFailures.WithLabelValues(failureReason(err)).Inc()
		writeError(w, err)
		return
	}

	if !res.Existed {
		metrics.OrdersPlaced.Inc()
		if req.ExternalID != "" {
			idemKey := fmt.Sprintf(redisx.KeyIdemOrderPlace, req.Site.TenantID, req.ExternalID)
			_ = h.Redis.Set(ctx, idemKey, res.Order.ID, redisx.TTLIdempotency).Err()
		}
		h.publishPlaced(res.Order, r.Header.Get("X-Request-Id"))
	}

	writeJSON(w, http.StatusCreated, orderResp(res.Order, res.Applied, res.Existed))
}

func orderResp(o *orders.Order, applied []promo.Applied, idempotent bool) PlaceOrderResp {
	return PlaceOrderResp{
		OrderID:            o.ID,
		OrderNumber:        o.OrderNumber,
		SubtotalCents:      o.SubtotalCents,
		DiscountCents:      o.DiscountCents,
		TotalCents:         o.TotalCents,
		AppliedPromotionID: o.AppliedPromotionID,
		Applied:            applied,
		Currency:           o.Currency,
		Idempotent:         idempotent,
	}
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	tenantID := r.URL.Query().Get("tenant")
	if orderID == "" || tenantID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing id or tenant"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Coordinator.GetOrder(ctx, tenantID, orderID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	tenantID := r.URL.Query().Get("tenant")
	if orderID == "" || tenantID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing id or tenant"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Coordinator.CancelOrder(ctx, tenantID, orderID, "api")
	if err != nil {
		writeError(w, err)
		return
	}

	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventOrderCancelled,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      h.Service,
		TraceID:       r.Header.Get("X-Request-Id"),
		CorrelationID: o.ID,
		Payload: kafkax.MustMarshal(orders.OrderCancelledPayload{
			OrderID:     o.ID,
			OrderNumber: o.OrderNumber,
			TenantID:    o.TenantID,
			StoreID:     o.StoreID,
		}),
	}
	h.CancelledProducer.Publish(orders.PartitionKey(o.ID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventOrderCancelled)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)

	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	tenantID, storeID := q.Get("tenant"), q.Get("store")
	if tenantID == "" || storeID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing tenant or store"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	products, err := h.Catalog.ListProducts(ctx, tenantID, storeID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

func (h *OrdersHandler) publishPlaced(o *orders.Order, traceID string) {
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventOrderPlaced,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      h.Service,
		TraceID:       traceID,
		CorrelationID: o.ID,
		Payload: kafkax.MustMarshal(orders.OrderPlacedPayload{
			OrderID:            o.ID,
			OrderNumber:        o.OrderNumber,
			TenantID:           o.TenantID,
			StoreID:            o.StoreID,
			Items:              o.Items,
			SubtotalCents:      o.SubtotalCents,
			DiscountCents:      o.DiscountCents,
			TotalCents:         o.TotalCents,
			AppliedPromotionID: o.AppliedPromotionID,
		}),
	}
	h.PlacedProducer.Publish(orders.PartitionKey(o.ID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventOrderPlaced)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func failureReason(err error) string {
	var insufficient *inventory.InsufficientError
	var coupon *promo.InvalidCouponError
	switch {
	case errors.As(err, &insufficient):
		return "insufficient_inventory"
	case errors.As(err, &coupon):
		return "invalid_coupon"
	case errors.Is(err, orders.ErrEmptyCart):
		return "empty_cart"
	default:
		return "internal"
	}
}
