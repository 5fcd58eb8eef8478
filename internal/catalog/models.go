package catalog

import (
	"fmt"
	"time"
)

type Store struct {
	TenantID  string    `json:"tenant_id"`
	SiteID    string    `json:"site_id"`
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Currency  string    `json:"currency"`
	CreatedAt time.Time `json:"created_at"`
}

type Product struct {
	TenantID   string    `json:"tenant_id"`
	StoreID    string    `json:"store_id"`
	ID         string    `json:"id"`
	SKU        string    `json:"sku"`
	Title      string    `json:"title"`
	CategoryID string    `json:"category_id,omitempty"`
	PriceCents int64     `json:"price_cents"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type Variant struct {
	ProductID  string `json:"product_id"`
	ID         string `json:"id"`
	Title      string `json:"title"`
	PriceCents *int64 `json:"price_cents,omitempty"` // nil = pakai harga product
}

// LineRef: item keranjang seperti dikirim client. Harga TIDAK ikut — selalu
// di-resolve ulang dari catalog saat checkout.
type LineRef struct {
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id,omitempty"`
	Qty       int    `json:"qty"`
}

// PricedLine: satu baris cart setelah harga & kategori di-resolve server-side.
type PricedLine struct {
	ProductID      string `json:"product_id"`
	VariantID      string `json:"variant_id,omitempty"`
	CategoryID     string `json:"category_id,omitempty"`
	Title          string `json:"title"`
	Qty            int    `json:"qty"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

func (l PricedLine) TotalCents() int64 { return l.UnitPriceCents * int64(l.Qty) }

type StoreNotFoundError struct {
	TenantID string
	StoreID  string
}

func (e *StoreNotFoundError) Error() string {
	return fmt.Sprintf("store not found: %s", e.StoreID)
}

type ProductNotFoundError struct {
	ProductID string
	VariantID string
}

func (e *ProductNotFoundError) Error() string {
	if e.VariantID != "" {
		return fmt.Sprintf("product not found: %s variant %s", e.ProductID, e.VariantID)
	}
	return fmt.Sprintf("product not found: %s", e.ProductID)
}
