package inventory

import (
	"fmt"
	"time"
)

// ChangeType: closed set; nilai tak dikenal ditolak di boundary, bukan saat dipakai.
type ChangeType string

const (
	ChangeRestock          ChangeType = "restock"
	ChangeManualAdjustment ChangeType = "manual_adjustment"
	ChangeOrderReserve     ChangeType = "order_reserve"
	ChangeOrderRelease     ChangeType = "order_release"
)

func ParseChangeType(s string) (ChangeType, error) {
	switch ChangeType(s) {
	case ChangeRestock, ChangeManualAdjustment, ChangeOrderReserve, ChangeOrderRelease:
		return ChangeType(s), nil
	}
	return "", fmt.Errorf("unknown change_type: %q", s)
}

type Record struct {
	TenantID  string    `json:"tenant_id"`
	StoreID   string    `json:"store_id"`
	ProductID string    `json:"product_id"`
	VariantID string    `json:"variant_id,omitempty"`
	Quantity  int64     `json:"quantity"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LedgerEntry: append-only. Sum(delta_quantity) per key harus selalu sama
// dengan inventory_records.quantity.
type LedgerEntry struct {
	ID                string     `json:"id"`
	TenantID          string     `json:"tenant_id"`
	StoreID           string     `json:"store_id"`
	ProductID         string     `json:"product_id"`
	VariantID         string     `json:"variant_id,omitempty"`
	ChangeType        ChangeType `json:"change_type"`
	DeltaQuantity     int64      `json:"delta_quantity"`
	ResultingQuantity int64      `json:"resulting_quantity"`
	ChangedBy         string     `json:"changed_by,omitempty"`
	Reason            string     `json:"reason,omitempty"`
	OrderID           string     `json:"order_id,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

type SnapshotItem struct {
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id,omitempty"`
	Title     string `json:"title,omitempty"`
	Quantity  int64  `json:"quantity"`
}

// InsufficientError: pengurangan stok yang akan membuat quantity negatif.
// Selalu membawa product/variant yang kehabisan; jangan di-string-match.
type InsufficientError struct {
	ProductID string
	VariantID string
	Required  int64
	Available int64
}

func (e *InsufficientError) Error() string {
	if e.VariantID != "" {
		return fmt.Sprintf("insufficient inventory: product %s variant %s (required %d, available %d)",
			e.ProductID, e.VariantID, e.Required, e.Available)
	}
	return fmt.Sprintf("insufficient inventory: product %s (required %d, available %d)",
		e.ProductID, e.Required, e.Available)
}
