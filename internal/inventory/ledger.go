package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/go-commerce-core.git/internal/postgres"
)

type Ledger struct{ DB *pgxpool.Pool }

type AdjustInput struct {
	TenantID   string
	StoreID    string
	ProductID  string
	VariantID  string
	ChangeType ChangeType
	Delta      int64
	ChangedBy  string
	Reason     string
	OrderID    string // opsional; diisi untuk order_reserve / order_release
}

type AdjustResult struct {
	NewQuantity   int64  `json:"new_quantity"`
	LedgerEntryID string `json:"ledger_entry_id"`
}

// Adjust: standalone (restock / manual adjustment). Buka tx sendiri.
func (l *Ledger) Adjust(ctx context.Context, in AdjustInput) (*AdjustResult, error) {
	tx, err := l.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	res, err := l.AdjustTx(ctx, tx, in)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return res, nil
}

// AdjustTx: check-and-write atomik dalam tx milik caller. Decrement memakai
// conditional UPDATE (WHERE quantity+delta >= 0) yang di-gate lewat affected
// rows — dua order concurrent untuk unit terakhir tidak mungkin dua-duanya
// lolos. Ledger row ditulis dalam tx yang sama, jadi quantity dan sum(delta)
// tidak pernah bisa berbeda setelah commit.
func (l *Ledger) AdjustTx(ctx context.Context, db postgres.DBTX, in AdjustInput) (*AdjustResult, error) {
	if in.Delta == 0 {
		return nil, fmt.Errorf("delta_quantity must not be zero")
	}

	// pastikan row ada supaya conditional update selalu punya target
	if _, err := db.Exec(ctx, `
		INSERT INTO inventory_records (tenant_id, store_id, product_id, variant_id, quantity)
		VALUES ($1,$2,$3,$4,0)
		ON CONFLICT (tenant_id, store_id, product_id, variant_id) DO NOTHING`,
		in.TenantID, in.StoreID, in.ProductID, in.VariantID); err != nil {
		return nil, err
	}

	var newQty int64
	err := db.QueryRow(ctx, `
		UPDATE inventory_records
		SET quantity = quantity + $5, updated_at = now()
		WHERE tenant_id=$1 AND store_id=$2 AND product_id=$3 AND variant_id=$4
		  AND quantity + $5 >= 0
		RETURNING quantity`,
		in.TenantID, in.StoreID, in.ProductID, in.VariantID, in.Delta).Scan(&newQty)
	if errors.Is(err, pgx.ErrNoRows) {
		var avail int64
		if err := db.QueryRow(ctx, `
			SELECT quantity FROM inventory_records
			WHERE tenant_id=$1 AND store_id=$2 AND product_id=$3 AND variant_id=$4`,
			in.TenantID, in.StoreID, in.ProductID, in.VariantID).Scan(&avail); err != nil {
			return nil, err
		}
		return nil, &InsufficientError{
			ProductID: in.ProductID,
			VariantID: in.VariantID,
			Required:  -in.Delta,
			Available: avail,
		}
	}
	if err != nil {
		return nil, err
	}

	var orderID *string
	if in.OrderID != "" {
		orderID = &in.OrderID
	}
	entryID := uuid.NewString()
	if _, err := db.Exec(ctx, `
		INSERT INTO inventory_ledger
			(id, tenant_id, store_id, product_id, variant_id, change_type,
			 delta_quantity, resulting_quantity, changed_by, reason, order_id, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		entryID, in.TenantID, in.StoreID, in.ProductID, in.VariantID, string(in.ChangeType),
		in.Delta, newQty, in.ChangedBy, in.Reason, orderID, time.Now().UTC()); err != nil {
		return nil, err
	}

	return &AdjustResult{NewQuantity: newQty, LedgerEntryID: entryID}, nil
}

// Snapshot: read-only, tanpa lock; boleh sedikit stale (advisory display).
func (l *Ledger) Snapshot(ctx context.Context, tenantID, storeID, q string) ([]SnapshotItem, error) {
	rows, err := l.DB.Query(ctx, `
		SELECT r.product_id, r.variant_id, COALESCE(p.title, ''), r.quantity
		FROM inventory_records r
		LEFT JOIN products p
		  ON p.tenant_id = r.tenant_id AND p.store_id = r.store_id AND p.id = r.product_id
		WHERE r.tenant_id=$1 AND r.store_id=$2
		  AND ($3 = '' OR p.title ILIKE '%'||$3||'%' OR p.sku ILIKE '%'||$3||'%')
		ORDER BY r.product_id, r.variant_id`, tenantID, storeID, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SnapshotItem
	for rows.Next() {
		var it SnapshotItem
		if err := rows.Scan(&it.ProductID, &it.VariantID, &it.Title, &it.Quantity); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// History: audit/recovery, newest first, dibatasi 100 entri.
func (l *Ledger) History(ctx context.Context, tenantID, storeID, productID string) ([]LedgerEntry, error) {
	rows, err := l.DB.Query(ctx, `
		SELECT id, tenant_id, store_id, product_id, variant_id, change_type,
		       delta_quantity, resulting_quantity, changed_by, reason,
		       COALESCE(order_id, ''), created_at
		FROM inventory_ledger
		WHERE tenant_id=$1 AND store_id=$2 AND product_id=$3
		ORDER BY created_at DESC
		LIMIT 100`, tenantID, storeID, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LedgerEntry
	for rows.Next() {
		var e LedgerEntry
		var ct string
		if err := rows.Scan(&e.ID, &e.TenantID, &e.StoreID, &e.ProductID, &e.VariantID, &ct,
			&e.DeltaQuantity, &e.ResultingQuantity, &e.ChangedBy, &e.Reason, &e.OrderID, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.ChangeType = ChangeType(ct)
		out = append(out, e)
	}
	return out, rows.Err()
}
