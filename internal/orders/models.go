package orders

import (
	"errors"
	"time"
)

var ErrEmptyCart = errors.New("cart is empty")

var ErrNotFound = errors.New("order not found")

type Customer struct {
	ID    string `json:"id,omitempty"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

type Address struct {
	Line1      string `json:"line1,omitempty"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city,omitempty"`
	Region     string `json:"region,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
}

type Order struct {
	ID                 string      `json:"id"`
	TenantID           string      `json:"tenant_id"`
	SiteID             string      `json:"site_id"`
	StoreID            string      `json:"store_id"`
	ExternalID         string      `json:"external_id,omitempty"`
	OrderNumber        string      `json:"order_number"`
	Status             Status      `json:"status"`
	Items              []OrderItem `json:"items"`
	SubtotalCents      int64       `json:"subtotal_cents"`
	DiscountCents      int64       `json:"discount_cents"`
	TotalCents         int64       `json:"total_cents"`
	AppliedPromotionID string      `json:"applied_promotion_id,omitempty"`
	Currency           string      `json:"currency"`
	Customer           Customer    `json:"customer"`
	ShippingAddress    Address     `json:"shipping_address"`
	CreatedAt          time.Time   `json:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at"`
}

type OrderItem struct {
	ID             string `json:"id"`
	OrderID        string `json:"order_id"`
	ProductID      string `json:"product_id"`
	VariantID      string `json:"variant_id,omitempty"`
	Title          string `json:"title"` // snapshot saat pembelian
	Qty            int    `json:"qty"`
	UnitPriceCents int64  `json:"unit_price_cents"` // harga saat pembelian
}
