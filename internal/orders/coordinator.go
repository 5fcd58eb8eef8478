package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/go-commerce-core.git/internal/catalog"
	"github.com/ariefcatur/go-commerce-core.git/internal/inventory"
	"github.com/ariefcatur/go-commerce-core.git/internal/postgres"
	"github.com/ariefcatur/go-commerce-core.git/internal/promo"
)

// Coordinator mengeksekusi placement sebagai SATU unit atomik: re-pricing,
// evaluasi promo, reservasi stok, increment usage counter, dan insert order
// semuanya dalam satu tx pgx. Gagal di langkah mana pun = rollback total,
// tidak ada decrement nyangkut dan tidak ada order tanpa stok.
type Coordinator struct {
	DB        *pgxpool.Pool
	Catalog   *catalog.Repo
	Promos    *promo.Repo
	Inventory *inventory.Ledger
}

type PlaceOrderInput struct {
	TenantID   string
	SiteID     string
	StoreID    string
	ExternalID string // opsional; placement dengan external_id sama bersifat idempotent
	Items      []catalog.LineRef
	CouponCode string
	Customer   Customer
	Shipping   Address
	Currency   string
}

type PlaceOrderResult struct {
	Order   *Order
	Applied []promo.Applied
	Existed bool // true kalau order lama dikembalikan via external_id
}

func (c *Coordinator) PlaceOrder(ctx context.Context, in PlaceOrderInput) (*PlaceOrderResult, error) {
	if len(in.Items) == 0 {
		return nil, ErrEmptyCart
	}

	// idempotency short-circuit by external_id
	if in.ExternalID != "" {
		if o, err := c.findByExternalID(ctx, in.TenantID, in.ExternalID); err != nil {
			return nil, err
		} else if o != nil {
			return &PlaceOrderResult{Order: o, Existed: true}, nil
		}
	}

	tx, err := c.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// harga & title selalu di-resolve ulang dari catalog, bukan dari client
	lines, err := c.Catalog.ResolveLines(ctx, tx, in.TenantID, in.StoreID, in.Items)
	if err != nil {
		return nil, err
	}

	promos, err := c.Promos.LoadActive(ctx, tx, in.TenantID, in.StoreID)
	if err != nil {
		return nil, err
	}
	usage, err := c.Promos.LoadUsage(ctx, tx, promos, in.Customer.ID)
	if err != nil {
		return nil, err
	}

	orderID := uuid.NewString()

	// reservasi stok per line; kegagalan satu line membatalkan seluruh tx,
	// jadi decrement line sebelumnya ikut ter-revert
	for _, l := range lines {
		if _, err := c.Inventory.AdjustTx(ctx, tx, inventory.AdjustInput{
			TenantID:   in.TenantID,
			StoreID:    in.StoreID,
			ProductID:  l.ProductID,
			VariantID:  l.VariantID,
			ChangeType: inventory.ChangeOrderReserve,
			Delta:      -int64(l.Qty),
			ChangedBy:  in.Customer.ID,
			Reason:     "order placement",
			OrderID:    orderID,
		}); err != nil {
			return nil, err
		}
	}

	ev, err := c.commitPromotions(ctx, tx, promos, usage, lines, in, orderID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	order := &Order{
		ID:                 orderID,
		TenantID:           in.TenantID,
		SiteID:             in.SiteID,
		StoreID:            in.StoreID,
		ExternalID:         in.ExternalID,
		OrderNumber:        newOrderNumber(now),
		Status:             StatusNew,
		SubtotalCents:      ev.SubtotalCents,
		DiscountCents:      ev.DiscountCents,
		TotalCents:         ev.TotalCents,
		AppliedPromotionID: ev.AppliedPromotionID,
		Currency:           in.Currency,
		Customer:           in.Customer,
		ShippingAddress:    in.Shipping,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	for _, l := range lines {
		order.Items = append(order.Items, OrderItem{
			ID:             uuid.NewString(),
			OrderID:        orderID,
			ProductID:      l.ProductID,
			VariantID:      l.VariantID,
			Title:          l.Title,
			Qty:            l.Qty,
			UnitPriceCents: l.UnitPriceCents,
		})
	}

	if err := c.insertOrder(ctx, tx, order); err != nil {
		// race dua request dengan external_id sama: yang kalah unique index
		// membatalkan unitnya dan mengembalikan order pemenang
		var pgErr *pgconn.PgError
		if in.ExternalID != "" && errors.As(err, &pgErr) && pgErr.Code == "23505" &&
			strings.Contains(pgErr.ConstraintName, "external") {
			_ = tx.Rollback(ctx)
			o, ferr := c.findByExternalID(ctx, in.TenantID, in.ExternalID)
			if ferr != nil || o == nil {
				return nil, err
			}
			return &PlaceOrderResult{Order: o, Existed: true}, nil
		}
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &PlaceOrderResult{Order: order, Applied: ev.Applied}, nil
}

// commitPromotions: evaluasi + increment usage counter dalam tx placement.
// Kalau sebuah promo ternyata exhausted saat di-commit (kalah race), promo itu
// di-exclude dan evaluasi diulang lewat savepoint — kecuali promo itu dipaksa
// coupon, yang berarti seluruh placement gagal dengan InvalidCoupon.
func (c *Coordinator) commitPromotions(ctx context.Context, tx pgx.Tx, promos []promo.Promotion,
	usage map[string]promo.Usage, lines []catalog.PricedLine, in PlaceOrderInput, orderID string) (*promo.Evaluation, error) {

	excluded := make(map[string]struct{})
	for attempt := 0; attempt <= len(promos); attempt++ {
		ev, err := promo.Evaluate(promos, usage, promo.EvalInput{
			Lines:      lines,
			CouponCode: in.CouponCode,
			CustomerID: in.Customer.ID,
			Exclude:    excluded,
		})
		if err != nil {
			return nil, err
		}

		sp, err := tx.Begin(ctx) // savepoint
		if err != nil {
			return nil, err
		}

		exhausted := ""
		for _, a := range sortedByID(ev.Applied) { // urutan stabil, hindari deadlock antar tx
			ok, err := c.Promos.CommitUsageTx(ctx, sp, a.Promotion, in.Customer.ID, orderID, a.DiscountCents)
			if err != nil {
				_ = sp.Rollback(ctx)
				return nil, err
			}
			if !ok {
				exhausted = a.Promotion.ID
				break
			}
		}
		if exhausted == "" {
			if err := sp.Commit(ctx); err != nil {
				return nil, err
			}
			return ev, nil
		}

		if err := sp.Rollback(ctx); err != nil {
			return nil, err
		}
		if in.CouponCode != "" && promoByID(ev.Applied, exhausted).Code == in.CouponCode {
			return nil, &promo.InvalidCouponError{Code: in.CouponCode, Reason: "not eligible for this cart"}
		}
		excluded[exhausted] = struct{}{}
	}
	return nil, fmt.Errorf("promotion evaluation did not converge")
}

func sortedByID(applied []promo.Applied) []promo.Applied {
	out := make([]promo.Applied, len(applied))
	copy(out, applied)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Promotion.ID < out[j-1].Promotion.ID; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

func promoByID(applied []promo.Applied, id string) promo.Promotion {
	for _, a := range applied {
		if a.Promotion.ID == id {
			return a.Promotion
		}
	}
	return promo.Promotion{}
}

func newOrderNumber(t time.Time) string {
	frag := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("ORD-%s-%s", t.Format("20060102"), frag)
}

func (c *Coordinator) insertOrder(ctx context.Context, db postgres.DBTX, o *Order) error {
	customer, err := json.Marshal(o.Customer)
	if err != nil {
		return err
	}
	shipping, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return err
	}
	var extID, promoID *string
	if o.ExternalID != "" {
		extID = &o.ExternalID
	}
	if o.AppliedPromotionID != "" {
		promoID = &o.AppliedPromotionID
	}
	if _, err := db.Exec(ctx, `
		INSERT INTO orders
			(id, tenant_id, site_id, store_id, external_id, order_number, status,
			 subtotal_cents, discount_cents, total_cents, applied_promotion_id,
			 currency, customer, shipping_address, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		o.ID, o.TenantID, o.SiteID, o.StoreID, extID, o.OrderNumber, string(o.Status),
		o.SubtotalCents, o.DiscountCents, o.TotalCents, promoID,
		o.Currency, customer, shipping, o.CreatedAt, o.UpdatedAt); err != nil {
		return err
	}
	for _, it := range o.Items {
		if _, err := db.Exec(ctx, `
			INSERT INTO order_items (id, order_id, product_id, variant_id, title, qty, unit_price_cents)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			it.ID, it.OrderID, it.ProductID, it.VariantID, it.Title, it.Qty, it.UnitPriceCents); err != nil {
			return err
		}
	}
	return nil
}
