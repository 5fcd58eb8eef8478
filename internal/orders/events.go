package orders

import (
	"encoding/json"
	"time"
)

const (
	EventOrderPlaced       = "OrderPlaced"
	EventOrderCancelled    = "OrderCancelled"
	EventInventoryAdjusted = "InventoryAdjusted"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

type OrderPlacedPayload struct {
	OrderID            string      `json:"order_id"`
	OrderNumber        string      `json:"order_number"`
	TenantID           string      `json:"tenant_id"`
	StoreID            string      `json:"store_id"`
	Items              []OrderItem `json:"items"`
	SubtotalCents      int64       `json:"subtotal_cents"`
	DiscountCents      int64       `json:"discount_cents"`
	TotalCents         int64       `json:"total_cents"`
	AppliedPromotionID string      `json:"applied_promotion_id,omitempty"`
}

type OrderCancelledPayload struct {
	OrderID     string `json:"order_id"`
	OrderNumber string `json:"order_number"`
	TenantID    string `json:"tenant_id"`
	StoreID     string `json:"store_id"`
}

type InventoryAdjustedPayload struct {
	TenantID    string `json:"tenant_id"`
	StoreID     string `json:"store_id"`
	ProductID   string `json:"product_id"`
	VariantID   string `json:"variant_id,omitempty"`
	ChangeType  string `json:"change_type"`
	Delta       int64  `json:"delta_quantity"`
	NewQuantity int64  `json:"new_quantity"`
}
