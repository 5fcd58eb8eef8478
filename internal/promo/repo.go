package promo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/go-commerce-core.git/internal/postgres"
)

type Repo struct{ DB *pgxpool.Pool }

var ErrNotFound = errors.New("promotion not found")

const promotionColumns = `
	id, tenant_id, site_id, store_id, name, COALESCE(code, ''),
	is_active, is_secret, starts_at, ends_at,
	discount_type, discount_scope, discount_value,
	min_order_cents, max_discount_cents,
	usage_limit_total, usage_limit_per_customer, first_n_customers,
	stackable, priority, targets, created_at, updated_at`

func scanPromotion(row pgx.Row) (Promotion, error) {
	var p Promotion
	var dt, ds string
	var targets []byte
	err := row.Scan(&p.ID, &p.TenantID, &p.SiteID, &p.StoreID, &p.Name, &p.Code,
		&p.IsActive, &p.IsSecret, &p.StartsAt, &p.EndsAt,
		&dt, &ds, &p.DiscountValue,
		&p.MinOrderCents, &p.MaxDiscountCents,
		&p.UsageLimitTotal, &p.UsageLimitPerCustomer, &p.FirstNCustomers,
		&p.Stackable, &p.Priority, &targets, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return p, err
	}
	p.DiscountType = DiscountType(dt)
	p.DiscountScope = DiscountScope(ds)
	if len(targets) > 0 {
		if err := json.Unmarshal(targets, &p.Targets); err != nil {
			return p, fmt.Errorf("decode targets for promotion %s: %w", p.ID, err)
		}
	}
	return p, nil
}

// LoadActive memuat definisi promo aktif per store. Window waktu dan
// eligibility di-filter di matcher, bukan di SQL, supaya logika seleksi
// cukup dites tanpa database.
func (r *Repo) LoadActive(ctx context.Context, db postgres.DBTX, tenantID, storeID string) ([]Promotion, error) {
	rows, err := db.Query(ctx, `
		SELECT `+promotionColumns+`
		FROM promotions
		WHERE tenant_id=$1 AND store_id=$2 AND is_active
		ORDER BY priority DESC, created_at`, tenantID, storeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Promotion
	for rows.Next() {
		p, err := scanPromotion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// LoadUsage: snapshot advisory counter pemakaian (tanpa lock). Enforcement
// final tetap di CommitUsageTx.
func (r *Repo) LoadUsage(ctx context.Context, db postgres.DBTX, promos []Promotion, customerID string) (map[string]Usage, error) {
	out := make(map[string]Usage, len(promos))
	if len(promos) == 0 {
		return out, nil
	}
	ids := make([]string, 0, len(promos))
	for _, p := range promos {
		ids = append(ids, p.ID)
	}

	rows, err := db.Query(ctx, `
		SELECT promotion_id, used_total FROM promotion_counters WHERE promotion_id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var id string
		var n int64
		if err := rows.Scan(&id, &n); err != nil {
			rows.Close()
			return nil, err
		}
		u := out[id]
		u.UsedTotal = n
		out[id] = u
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = db.Query(ctx, `
		SELECT promotion_id, COUNT(DISTINCT customer_id),
		       COUNT(*) FILTER (WHERE customer_id = $2)
		FROM promotion_usages
		WHERE promotion_id = ANY($1)
		GROUP BY promotion_id`, ids, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		var distinct, byCustomer int64
		if err := rows.Scan(&id, &distinct, &byCustomer); err != nil {
			return nil, err
		}
		u := out[id]
		u.DistinctCustomers = distinct
		u.UsedByCustomer = byCustomer
		u.CustomerSeen = byCustomer > 0
		out[id] = u
	}
	return out, rows.Err()
}

// CommitUsageTx: dipanggil di dalam tx placement untuk setiap promo yang
// applied. Lock row promo (FOR UPDATE) men-serialisasi semua placement yang
// memakai promo yang sama, lalu limit di-cek ulang terhadap state committed —
// dua order concurrent tidak bisa sama-sama memakai slot terakhir. Return
// false (tanpa side effect) kalau promo ternyata exhausted.
func (r *Repo) CommitUsageTx(ctx context.Context, db postgres.DBTX, p Promotion, customerID, orderID string, discountCents int64) (bool, error) {
	var one int
	if err := db.QueryRow(ctx, `SELECT 1 FROM promotions WHERE id=$1 FOR UPDATE`, p.ID).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil // promo dihapus di tengah jalan
		}
		return false, err
	}

	if p.UsageLimitTotal != nil {
		var used int64
		err := db.QueryRow(ctx, `SELECT used_total FROM promotion_counters WHERE promotion_id=$1`, p.ID).Scan(&used)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return false, err
		}
		if used >= *p.UsageLimitTotal {
			return false, nil
		}
	}
	if p.UsageLimitPerCustomer != nil {
		if customerID == "" {
			return false, nil
		}
		var n int64
		if err := db.QueryRow(ctx, `
			SELECT COUNT(*) FROM promotion_usages WHERE promotion_id=$1 AND customer_id=$2`,
			p.ID, customerID).Scan(&n); err != nil {
			return false, err
		}
		if n >= *p.UsageLimitPerCustomer {
			return false, nil
		}
	}
	if p.FirstNCustomers != nil {
		if customerID == "" {
			return false, nil
		}
		var seen bool
		if err := db.QueryRow(ctx, `
			SELECT EXISTS(SELECT 1 FROM promotion_usages WHERE promotion_id=$1 AND customer_id=$2)`,
			p.ID, customerID).Scan(&seen); err != nil {
			return false, err
		}
		if !seen {
			var distinct int64
			if err := db.QueryRow(ctx, `
				SELECT COUNT(DISTINCT customer_id) FROM promotion_usages WHERE promotion_id=$1`,
				p.ID).Scan(&distinct); err != nil {
				return false, err
			}
			if distinct >= *p.FirstNCustomers {
				return false, nil
			}
		}
	}

	if _, err := db.Exec(ctx, `
		INSERT INTO promotion_counters (promotion_id, used_total) VALUES ($1, 1)
		ON CONFLICT (promotion_id) DO UPDATE SET used_total = promotion_counters.used_total + 1`,
		p.ID); err != nil {
		return false, err
	}
	if _, err := db.Exec(ctx, `
		INSERT INTO promotion_usages (id, promotion_id, customer_id, order_id, discount_cents, used_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		uuid.NewString(), p.ID, customerID, orderID, discountCents, time.Now().UTC()); err != nil {
		return false, err
	}
	return true, nil
}

// ---- CRUD administratif (di luar transactional core) ----

func (r *Repo) Create(ctx context.Context, p *Promotion) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	targets, err := json.Marshal(p.Targets)
	if err != nil {
		return err
	}
	var code *string
	if p.Code != "" {
		code = &p.Code
	}
	_, err = r.DB.Exec(ctx, `
		INSERT INTO promotions
			(id, tenant_id, site_id, store_id, name, code, is_active, is_secret,
			 starts_at, ends_at, discount_type, discount_scope, discount_value,
			 min_order_cents, max_discount_cents, usage_limit_total,
			 usage_limit_per_customer, first_n_customers, stackable, priority,
			 targets, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23)`,
		p.ID, p.TenantID, p.SiteID, p.StoreID, p.Name, code, p.IsActive, p.IsSecret,
		p.StartsAt, p.EndsAt, string(p.DiscountType), string(p.DiscountScope), p.DiscountValue,
		p.MinOrderCents, p.MaxDiscountCents, p.UsageLimitTotal,
		p.UsageLimitPerCustomer, p.FirstNCustomers, p.Stackable, p.Priority,
		targets, p.CreatedAt, p.UpdatedAt)
	return err
}

func (r *Repo) Update(ctx context.Context, p *Promotion) error {
	p.UpdatedAt = time.Now().UTC()
	targets, err := json.Marshal(p.Targets)
	if err != nil {
		return err
	}
	var code *string
	if p.Code != "" {
		code = &p.Code
	}
	ct, err := r.DB.Exec(ctx, `
		UPDATE promotions SET
			name=$3, code=$4, is_active=$5, is_secret=$6, starts_at=$7, ends_at=$8,
			discount_type=$9, discount_scope=$10, discount_value=$11,
			min_order_cents=$12, max_discount_cents=$13, usage_limit_total=$14,
			usage_limit_per_customer=$15, first_n_customers=$16, stackable=$17,
			priority=$18, targets=$19, updated_at=$20
		WHERE tenant_id=$1 AND id=$2`,
		p.TenantID, p.ID, p.Name, code, p.IsActive, p.IsSecret, p.StartsAt, p.EndsAt,
		string(p.DiscountType), string(p.DiscountScope), p.DiscountValue,
		p.MinOrderCents, p.MaxDiscountCents, p.UsageLimitTotal,
		p.UsageLimitPerCustomer, p.FirstNCustomers, p.Stackable,
		p.Priority, targets, p.UpdatedAt)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repo) Delete(ctx context.Context, tenantID, id string) error {
	ct, err := r.DB.Exec(ctx, `DELETE FROM promotions WHERE tenant_id=$1 AND id=$2`, tenantID, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repo) GetByID(ctx context.Context, tenantID, id string) (*Promotion, error) {
	p, err := scanPromotion(r.DB.QueryRow(ctx, `
		SELECT `+promotionColumns+` FROM promotions WHERE tenant_id=$1 AND id=$2`, tenantID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
