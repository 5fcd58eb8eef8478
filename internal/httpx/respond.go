package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ariefcatur/go-commerce-core.git/internal/catalog"
	"github.com/ariefcatur/go-commerce-core.git/internal/inventory"
	"github.com/ariefcatur/go-commerce-core.git/internal/orders"
	"github.com/ariefcatur/go-commerce-core.git/internal/promo"
)

// SiteScope mengidentifikasi tenant/site/store pada setiap request storefront.
type SiteScope struct {
	TenantID string `json:"tenant_id"`
	SiteID   string `json:"site_id"`
	StoreID  string `json:"store_id"`
}

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError memetakan error domain ke status + body terstruktur.
// Tidak ada string-sniffing: semua lewat errors.As/Is.
func writeError(w http.ResponseWriter, err error) {
	var insufficient *inventory.InsufficientError
	if errors.As(err, &insufficient) {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":      "insufficient_inventory",
			"product_id": insufficient.ProductID,
			"variant_id": insufficient.VariantID,
			"required":   insufficient.Required,
			"available":  insufficient.Available,
		})
		return
	}

	var coupon *promo.InvalidCouponError
	if errors.As(err, &coupon) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":   "invalid_coupon",
			"code":    coupon.Code,
			"message": coupon.Reason,
		})
		return
	}

	var storeNF *catalog.StoreNotFoundError
	if errors.As(err, &storeNF) {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"error":    "store_not_found",
			"store_id": storeNF.StoreID,
		})
		return
	}

	var productNF *catalog.ProductNotFoundError
	if errors.As(err, &productNF) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":      "product_not_found",
			"product_id": productNF.ProductID,
			"variant_id": productNF.VariantID,
		})
		return
	}

	var transition *orders.InvalidTransitionError
	if errors.As(err, &transition) {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error": "invalid_status_transition",
			"from":  transition.From,
			"to":    transition.To,
		})
		return
	}

	switch {
	case errors.Is(err, orders.ErrEmptyCart):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "empty_cart"})
	case errors.Is(err, orders.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "order_not_found"})
	case errors.Is(err, promo.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "promotion_not_found"})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal"})
	}
}
