package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/ariefcatur/go-commerce-core.git/internal/inventory"
	kafkax "github.com/ariefcatur/go-commerce-core.git/internal/kafka"
	"github.com/ariefcatur/go-commerce-core.git/internal/metrics"
	"github.com/ariefcatur/go-commerce-core.git/internal/orders"
	"github.com/ariefcatur/go-commerce-core.git/internal/redisx"
)

type InventoryHandler struct {
	Ledger           *inventory.Ledger
	AdjustedProducer *kafkax.Producer
	Redis            *redis.Client
	Service          string
}

type AdjustReq struct {
	Site          SiteScope `json:"site"`
	ProductID     string    `json:"product_id"`
	VariantID     string    `json:"variant_id,omitempty"`
	ChangeType    string    `json:"change_type"`
	DeltaQuantity int64     `json:"delta_quantity"`
	ChangedBy     string    `json:"changed_by,omitempty"`
	Reason        string    `json:"reason,omitempty"`
}

func (h *InventoryHandler) Register(r *chi.Mux) {
	r.Get("/inventory", h.snapshot)
	r.Get("/inventory/history", h.history)
	r.Post("/inventory", h.adjust)
}

// snapshot: display-only; hasil boleh sedikit stale, makanya aman di-cache.
func (h *InventoryHandler) snapshot(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	tenantID, storeID, search := q.Get("tenant"), q.Get("store"), q.Get("q")
	if tenantID == "" || storeID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing tenant or store"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	cacheKey := fmt.Sprintf(redisx.KeyInventorySnapshot, tenantID, storeID, search)
	if s, err := h.Redis.Get(ctx, cacheKey).Result(); err == nil && s != "" {
		writeJSON(w, http.StatusOK, json.RawMessage(s))
		return
	}

	items, err := h.Ledger.Snapshot(ctx, tenantID, storeID, search)
	if err != nil {
		writeError(w, err)
		return
	}
	body := map[string]any{"items": items}
	if b, err := json.Marshal(body); err == nil {
		_ = h.Redis.Set(ctx, cacheKey, b, redisx.TTLSnapshot).Err()
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *InventoryHandler) history(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	tenantID, storeID, productID := q.Get("tenant"), q.Get("store"), q.Get("product_id")
	if tenantID == "" || storeID == "" || productID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing tenant, store or product_id"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	entries, err := h.Ledger.History(ctx, tenantID, storeID, productID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (h *InventoryHandler) adjust(w http.ResponseWriter, r *http.Request) {
	var req AdjustReq
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.Site.TenantID == "" || req.Site.StoreID == "" || req.ProductID == "" || req.DeltaQuantity == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing fields"})
		return
	}
	ct, err := inventory.ParseChangeType(req.ChangeType)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	// order_reserve / order_release hanya boleh lewat placement & cancel
	if ct == inventory.ChangeOrderReserve || ct == inventory.ChangeOrderRelease {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "change_type reserved for order flow"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	res, err := h.Ledger.Adjust(ctx, inventory.AdjustInput{
		TenantID:   req.Site.TenantID,
		StoreID:    req.Site.StoreID,
		ProductID:  req.ProductID,
		VariantID:  req.VariantID,
		ChangeType: ct,
		Delta:      req.DeltaQuantity,
		ChangedBy:  req.ChangedBy,
		Reason:     req.Reason,
	})
	if err != nil {
		// manual adjust yang bikin quantity negatif = 400 (caller bug),
		// beda dengan 409 pada jalur checkout
		var insufficient *inventory.InsufficientError
		if errors.As(err, &insufficient) {
			metrics.InventoryRejections.Inc()
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":      "negative_inventory_rejected",
				"product_id": insufficient.ProductID,
				"variant_id": insufficient.VariantID,
				"available":  insufficient.Available,
			})
			return
		}
		writeError(w, err)
		return
	}

	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventInventoryAdjusted,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      h.Service,
		TraceID:       r.Header.Get("X-Request-Id"),
		CorrelationID: req.ProductID,
		Payload: kafkax.MustMarshal(orders.InventoryAdjustedPayload{
			TenantID:    req.Site.TenantID,
			StoreID:     req.Site.StoreID,
			ProductID:   req.ProductID,
			VariantID:   req.VariantID,
			ChangeType:  string(ct),
			Delta:       req.DeltaQuantity,
			NewQuantity: res.NewQuantity,
		}),
	}
	h.AdjustedProducer.Publish(orders.PartitionKey(req.ProductID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventInventoryAdjusted)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)

	writeJSON(w, http.StatusOK, res)
}
