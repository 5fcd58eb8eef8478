package orders

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ariefcatur/go-commerce-core.git/internal/inventory"
	"github.com/ariefcatur/go-commerce-core.git/internal/postgres"
)

const orderColumns = `
	id, tenant_id, site_id, store_id, COALESCE(external_id, ''), order_number,
	status, subtotal_cents, discount_cents, total_cents,
	COALESCE(applied_promotion_id, ''), currency, customer, shipping_address,
	created_at, updated_at`

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	var status string
	var customer, shipping []byte
	err := row.Scan(&o.ID, &o.TenantID, &o.SiteID, &o.StoreID, &o.ExternalID, &o.OrderNumber,
		&status, &o.SubtotalCents, &o.DiscountCents, &o.TotalCents,
		&o.AppliedPromotionID, &o.Currency, &customer, &shipping,
		&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	o.Status = Status(status)
	if err := json.Unmarshal(customer, &o.Customer); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(shipping, &o.ShippingAddress); err != nil {
		return nil, err
	}
	return &o, nil
}

func (c *Coordinator) loadItems(ctx context.Context, db postgres.DBTX, o *Order) error {
	rows, err := db.Query(ctx, `
		SELECT id, order_id, product_id, variant_id, title, qty, unit_price_cents
		FROM order_items WHERE order_id=$1 ORDER BY id`, o.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.VariantID, &it.Title, &it.Qty, &it.UnitPriceCents); err != nil {
			return err
		}
		o.Items = append(o.Items, it)
	}
	return rows.Err()
}

func (c *Coordinator) findByExternalID(ctx context.Context, tenantID, externalID string) (*Order, error) {
	o, err := scanOrder(c.DB.QueryRow(ctx, `
		SELECT `+orderColumns+` FROM orders WHERE tenant_id=$1 AND external_id=$2`, tenantID, externalID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := c.loadItems(ctx, c.DB, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (c *Coordinator) GetOrder(ctx context.Context, tenantID, orderID string) (*Order, error) {
	o, err := scanOrder(c.DB.QueryRow(ctx, `
		SELECT `+orderColumns+` FROM orders WHERE tenant_id=$1 AND id=$2`, tenantID, orderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := c.loadItems(ctx, c.DB, o); err != nil {
		return nil, err
	}
	return o, nil
}

// CancelOrder: transisi status ke cancelled + ledger order_release per item
// dalam satu tx, membalik persis reservasi saat placement.
func (c *Coordinator) CancelOrder(ctx context.Context, tenantID, orderID, changedBy string) (*Order, error) {
	tx, err := c.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// lock order row: double-cancel concurrent kalah di CanTransition
	o, err := scanOrder(tx.QueryRow(ctx, `
		SELECT `+orderColumns+` FROM orders WHERE tenant_id=$1 AND id=$2 FOR UPDATE`, tenantID, orderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if !CanTransition(o.Status, StatusCancelled) {
		return nil, &InvalidTransitionError{From: o.Status, To: StatusCancelled}
	}
	if err := c.loadItems(ctx, tx, o); err != nil {
		return nil, err
	}

	for _, it := range o.Items {
		if _, err := c.Inventory.AdjustTx(ctx, tx, inventory.AdjustInput{
			TenantID:   tenantID,
			StoreID:    o.StoreID,
			ProductID:  it.ProductID,
			VariantID:  it.VariantID,
			ChangeType: inventory.ChangeOrderRelease,
			Delta:      int64(it.Qty),
			ChangedBy:  changedBy,
			Reason:     "order cancelled",
			OrderID:    o.ID,
		}); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	if _, err := tx.Exec(ctx, `
		UPDATE orders SET status=$3, updated_at=$4 WHERE tenant_id=$1 AND id=$2`,
		tenantID, orderID, string(StatusCancelled), now); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	o.Status = StatusCancelled
	o.UpdatedAt = now
	return o, nil
}
