package promo

import (
	"fmt"
	"time"

	"github.com/ariefcatur/go-commerce-core.git/internal/catalog"
)

type DiscountType string

const (
	DiscountPercent DiscountType = "percent"
	DiscountFixed   DiscountType = "fixed"
)

func ParseDiscountType(s string) (DiscountType, error) {
	switch DiscountType(s) {
	case DiscountPercent, DiscountFixed:
		return DiscountType(s), nil
	}
	return "", fmt.Errorf("unknown discount_type: %q", s)
}

type DiscountScope string

const (
	ScopeOrder DiscountScope = "order"
	ScopeItems DiscountScope = "items"
)

func ParseDiscountScope(s string) (DiscountScope, error) {
	switch DiscountScope(s) {
	case ScopeOrder, ScopeItems:
		return DiscountScope(s), nil
	}
	return "", fmt.Errorf("unknown discount_scope: %q", s)
}

type TargetType string

const (
	TargetProduct  TargetType = "product"
	TargetVariant  TargetType = "variant"
	TargetCategory TargetType = "category"
)

func ParseTargetType(s string) (TargetType, error) {
	switch TargetType(s) {
	case TargetProduct, TargetVariant, TargetCategory:
		return TargetType(s), nil
	}
	return "", fmt.Errorf("unknown target type: %q", s)
}

type Target struct {
	Type TargetType `json:"type"`
	ID   string     `json:"id"`
}

type Promotion struct {
	ID                    string        `json:"id"`
	TenantID              string        `json:"tenant_id"`
	SiteID                string        `json:"site_id"`
	StoreID               string        `json:"store_id"`
	Name                  string        `json:"name"`
	Code                  string        `json:"code,omitempty"`
	IsActive              bool          `json:"is_active"`
	IsSecret              bool          `json:"is_secret"`
	StartsAt              *time.Time    `json:"starts_at,omitempty"`
	EndsAt                *time.Time    `json:"ends_at,omitempty"`
	DiscountType          DiscountType  `json:"discount_type"`
	DiscountScope         DiscountScope `json:"discount_scope"`
	DiscountValue         int64         `json:"discount_value"`
	MinOrderCents         int64         `json:"min_order_cents"`
	MaxDiscountCents      *int64        `json:"max_discount_cents,omitempty"`
	UsageLimitTotal       *int64        `json:"usage_limit_total,omitempty"`
	UsageLimitPerCustomer *int64        `json:"usage_limit_per_customer,omitempty"`
	FirstNCustomers       *int64        `json:"first_n_customers,omitempty"`
	Stackable             bool          `json:"stackable"`
	Priority              int           `json:"priority"`
	Targets               []Target      `json:"targets"`
	CreatedAt             time.Time     `json:"created_at"`
	UpdatedAt             time.Time     `json:"updated_at"`
}

// ActiveAt: window terbuka di sisi yang nil dianggap selalu lolos.
func (p *Promotion) ActiveAt(t time.Time) bool {
	if !p.IsActive {
		return false
	}
	if p.StartsAt != nil && t.Before(*p.StartsAt) {
		return false
	}
	if p.EndsAt != nil && t.After(*p.EndsAt) {
		return false
	}
	return true
}

// MatchesLine: targets kosong = match semua item.
func (p *Promotion) MatchesLine(l catalog.PricedLine) bool {
	if len(p.Targets) == 0 {
		return true
	}
	for _, t := range p.Targets {
		switch t.Type {
		case TargetProduct:
			if t.ID == l.ProductID {
				return true
			}
		case TargetVariant:
			if l.VariantID != "" && t.ID == l.VariantID {
				return true
			}
		case TargetCategory:
			if l.CategoryID != "" && t.ID == l.CategoryID {
				return true
			}
		}
	}
	return false
}

// scopeBase: basis perhitungan diskon sesuai scope.
func (p *Promotion) scopeBase(lines []catalog.PricedLine, subtotal int64) int64 {
	if p.DiscountScope == ScopeOrder {
		return subtotal
	}
	var base int64
	for _, l := range lines {
		if p.MatchesLine(l) {
			base += l.TotalCents()
		}
	}
	return base
}

// DiscountCents menghitung diskon mentah promo ini terhadap cart, sudah
// termasuk cap max_discount_cents. Percent dibulatkan ke bawah (integer cents).
func (p *Promotion) DiscountCents(lines []catalog.PricedLine, subtotal int64) int64 {
	base := p.scopeBase(lines, subtotal)
	var d int64
	switch p.DiscountType {
	case DiscountPercent:
		d = base * p.DiscountValue / 100
	case DiscountFixed:
		d = p.DiscountValue
		if d > base {
			d = base
		}
	}
	if p.MaxDiscountCents != nil && d > *p.MaxDiscountCents {
		d = *p.MaxDiscountCents
	}
	if d < 0 {
		d = 0
	}
	return d
}

// Usage: snapshot counter pemakaian sebuah promo, dilihat dari satu customer.
type Usage struct {
	UsedTotal         int64
	UsedByCustomer    int64
	DistinctCustomers int64
	CustomerSeen      bool
}

// InvalidCouponError: kode tidak ketemu ATAU tidak memenuhi syarat cart ini.
// Keduanya dibedakan di message saja, bukan di status code, supaya keberadaan
// promo secret tidak bocor.
type InvalidCouponError struct {
	Code   string
	Reason string
}

func (e *InvalidCouponError) Error() string {
	return fmt.Sprintf("invalid coupon %q: %s", e.Code, e.Reason)
}
