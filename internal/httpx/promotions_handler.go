package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/go-commerce-core.git/internal/catalog"
	"github.com/ariefcatur/go-commerce-core.git/internal/metrics"
	"github.com/ariefcatur/go-commerce-core.git/internal/orders"
	"github.com/ariefcatur/go-commerce-core.git/internal/promo"
)

type PromotionsHandler struct {
	Coordinator *orders.Coordinator
	Catalog     *catalog.Repo
	Promos      *promo.Repo
}

type EvaluateReq struct {
	Site       SiteScope         `json:"site"`
	Items      []catalog.LineRef `json:"items"`
	CouponCode string            `json:"coupon_code,omitempty"`
	Customer   orders.Customer   `json:"customer"`
}

func (h *PromotionsHandler) Register(r *chi.Mux) {
	r.Post("/promotions/validate", h.validate)
	r.Post("/promotions/suggested", h.suggested)
	r.Post("/promotions", h.create)
	r.Get("/promotions/{id}", h.get)
	r.Put("/promotions/{id}", h.update)
	r.Delete("/promotions/{id}", h.remove)
}

func (h *PromotionsHandler) evaluate(w http.ResponseWriter, r *http.Request, withCoupon bool) *promo.Evaluation {
	var req EvaluateReq
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return nil
	}
	if req.Site.TenantID == "" || req.Site.StoreID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing site scope"})
		return nil
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if _, err := h.Catalog.GetStore(ctx, req.Site.TenantID, req.Site.StoreID); err != nil {
		writeError(w, err)
		return nil
	}

	coupon := ""
	if withCoupon {
		coupon = req.CouponCode
	}
	metrics.PromotionEvaluations.Inc()
	ev, err := h.Coordinator.EvaluateCart(ctx, orders.EvaluateCartInput{
		TenantID:   req.Site.TenantID,
		SiteID:     req.Site.SiteID,
		StoreID:    req.Site.StoreID,
		Items:      req.Items,
		CouponCode: coupon,
		CustomerID: req.Customer.ID,
	})
	if err != nil {
		writeError(w, err)
		return nil
	}
	return ev
}

func (h *PromotionsHandler) validate(w http.ResponseWriter, r *http.Request) {
	if ev := h.evaluate(w, r, true); ev != nil {
		writeJSON(w, http.StatusOK, ev)
	}
}

// suggested: display "available offers" — promo secret tidak pernah ikut.
func (h *PromotionsHandler) suggested(w http.ResponseWriter, r *http.Request) {
	if ev := h.evaluate(w, r, false); ev != nil {
		writeJSON(w, http.StatusOK, map[string]any{"promotions": ev.Candidates})
	}
}

// ---- CRUD administratif ----

type PromotionReq struct {
	Site                  SiteScope  `json:"site"`
	Name                  string     `json:"name"`
	Code                  string     `json:"code,omitempty"`
	IsActive              bool       `json:"is_active"`
	IsSecret              bool       `json:"is_secret"`
	StartsAt              *time.Time `json:"starts_at,omitempty"`
	EndsAt                *time.Time `json:"ends_at,omitempty"`
	DiscountType          string     `json:"discount_type"`
	DiscountScope         string     `json:"discount_scope"`
	DiscountValue         int64      `json:"discount_value"`
	MinOrderCents         int64      `json:"min_order_cents"`
	MaxDiscountCents      *int64     `json:"max_discount_cents,omitempty"`
	UsageLimitTotal       *int64     `json:"usage_limit_total,omitempty"`
	UsageLimitPerCustomer *int64     `json:"usage_limit_per_customer,omitempty"`
	FirstNCustomers       *int64     `json:"first_n_customers,omitempty"`
	Stackable             bool       `json:"stackable"`
	Priority              int        `json:"priority"`
	Targets               []struct {
		Type string `json:"type"`
		ID   string `json:"id"`
	} `json:"targets"`
}

// toPromotion: enum-string dari request di-parse di boundary; nilai tak
// dikenal ditolak di sini, bukan nanti saat evaluasi.
func (req *PromotionReq) toPromotion() (*promo.Promotion, string) {
	dt, err := promo.ParseDiscountType(req.DiscountType)
	if err != nil {
		return nil, err.Error()
	}
	ds, err := promo.ParseDiscountScope(req.DiscountScope)
	if err != nil {
		return nil, err.Error()
	}
	if dt == promo.DiscountPercent && (req.DiscountValue < 0 || req.DiscountValue > 100) {
		return nil, "percent discount_value must be 0-100"
	}
	if req.DiscountValue < 0 {
		return nil, "discount_value must not be negative"
	}
	targets := make([]promo.Target, 0, len(req.Targets))
	for _, t := range req.Targets {
		tt, err := promo.ParseTargetType(t.Type)
		if err != nil {
			return nil, err.Error()
		}
		targets = append(targets, promo.Target{Type: tt, ID: t.ID})
	}
	return &promo.Promotion{
		TenantID:              req.Site.TenantID,
		SiteID:                req.Site.SiteID,
		StoreID:               req.Site.StoreID,
		Name:                  req.Name,
		Code:                  req.Code,
		IsActive:              req.IsActive,
		IsSecret:              req.IsSecret,
		StartsAt:              req.StartsAt,
		EndsAt:                req.EndsAt,
		DiscountType:          dt,
		DiscountScope:         ds,
		DiscountValue:         req.DiscountValue,
		MinOrderCents:         req.MinOrderCents,
		MaxDiscountCents:      req.MaxDiscountCents,
		UsageLimitTotal:       req.UsageLimitTotal,
		UsageLimitPerCustomer: req.UsageLimitPerCustomer,
		FirstNCustomers:       req.FirstNCustomers,
		Stackable:             req.Stackable,
		Priority:              req.Priority,
		Targets:               targets,
	}, ""
}

func (h *PromotionsHandler) create(w http.ResponseWriter, r *http.Request) {
	var req PromotionReq
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.Site.TenantID == "" || req.Site.StoreID == "" || req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing fields"})
		return
	}
	p, msg := req.toPromotion()
	if msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if _, err := h.Catalog.GetStore(ctx, req.Site.TenantID, req.Site.StoreID); err != nil {
		writeError(w, err)
		return
	}
	if err := h.Promos.Create(ctx, p); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *PromotionsHandler) get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	tenantID := r.URL.Query().Get("tenant")
	if id == "" || tenantID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing id or tenant"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := h.Promos.GetByID(ctx, tenantID, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *PromotionsHandler) update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req PromotionReq
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if id == "" || req.Site.TenantID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing fields"})
		return
	}
	p, msg := req.toPromotion()
	if msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}
	p.ID = id

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.Promos.Update(ctx, p); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *PromotionsHandler) remove(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	tenantID := r.URL.Query().Get("tenant")
	if id == "" || tenantID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing id or tenant"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.Promos.Delete(ctx, tenantID, id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
