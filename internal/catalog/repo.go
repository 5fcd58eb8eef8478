package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/go-commerce-core.git/internal/postgres"
)

type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) GetStore(ctx context.Context, tenantID, storeID string) (*Store, error) {
	var s Store
	err := r.DB.QueryRow(ctx, `
		SELECT tenant_id, site_id, id, name, currency, created_at
		FROM stores WHERE tenant_id=$1 AND id=$2`, tenantID, storeID).
		Scan(&s.TenantID, &s.SiteID, &s.ID, &s.Name, &s.Currency, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &StoreNotFoundError{TenantID: tenantID, StoreID: storeID}
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ResolveLines mengambil harga + title + kategori per item dari catalog
// (hindari trust harga dari client). Dipanggil di dalam tx placement supaya
// harga yang dipakai konsisten dengan isolasi transaksi.
func (r *Repo) ResolveLines(ctx context.Context, db postgres.DBTX, tenantID, storeID string, items []LineRef) ([]PricedLine, error) {
	out := make([]PricedLine, 0, len(items))
	for _, it := range items {
		if it.Qty <= 0 {
			return nil, fmt.Errorf("invalid qty for product %s", it.ProductID)
		}

		var pl PricedLine
		err := db.QueryRow(ctx, `
			SELECT title, category_id, price_cents FROM products
			WHERE tenant_id=$1 AND store_id=$2 AND id=$3 AND is_active`,
			tenantID, storeID, it.ProductID).
			Scan(&pl.Title, &pl.CategoryID, &pl.UnitPriceCents)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &ProductNotFoundError{ProductID: it.ProductID}
		}
		if err != nil {
			return nil, err
		}

		if it.VariantID != "" {
			var vTitle string
			var vPrice *int64
			err := db.QueryRow(ctx, `
				SELECT title, price_cents FROM product_variants
				WHERE tenant_id=$1 AND store_id=$2 AND product_id=$3 AND id=$4`,
				tenantID, storeID, it.ProductID, it.VariantID).
				Scan(&vTitle, &vPrice)
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, &ProductNotFoundError{ProductID: it.ProductID, VariantID: it.VariantID}
			}
			if err != nil {
				return nil, err
			}
			pl.Title = pl.Title + " / " + vTitle
			if vPrice != nil {
				pl.UnitPriceCents = *vPrice
			}
		}

		pl.ProductID = it.ProductID
		pl.VariantID = it.VariantID
		pl.Qty = it.Qty
		out = append(out, pl)
	}
	return out, nil
}

func (r *Repo) ListProducts(ctx context.Context, tenantID, storeID string) ([]Product, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT tenant_id, store_id, id, sku, title, category_id, price_cents, is_active, created_at, updated_at
		FROM products WHERE tenant_id=$1 AND store_id=$2 ORDER BY sku`, tenantID, storeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.TenantID, &p.StoreID, &p.ID, &p.SKU, &p.Title, &p.CategoryID,
			&p.PriceCents, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
