package orders_test

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/ariefcatur/go-commerce-core.git/internal/catalog"
	"github.com/ariefcatur/go-commerce-core.git/internal/inventory"
	"github.com/ariefcatur/go-commerce-core.git/internal/orders"
	"github.com/ariefcatur/go-commerce-core.git/internal/postgres"
	"github.com/ariefcatur/go-commerce-core.git/internal/promo"
)

const (
	tenant = "t1"
	site   = "site1"
	store  = "store1"
)

func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	_ = godotenv.Load("../../.env")

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set — skipping integration test")
	}

	require.NoError(t, postgres.Migrate(dsn))

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)

	_, err = pool.Exec(ctx, `
		TRUNCATE TABLE order_items, orders, promotion_usages, promotion_counters,
		               promotions, inventory_ledger, inventory_records,
		               product_variants, products, stores CASCADE`)
	require.NoError(t, err)

	_, err = pool.Exec(ctx, `
		INSERT INTO stores (tenant_id, site_id, id, name, currency)
		VALUES ($1, $2, $3, 'Main Store', 'USD');

		INSERT INTO products (tenant_id, store_id, id, sku, title, price_cents) VALUES
			($1, $3, 'A', 'SKU-A', 'Widget', 500),
			($1, $3, 'B', 'SKU-B', 'Gadget', 1000)`, tenant, site, store)
	require.NoError(t, err)

	return pool
}

func newCoordinator(pool *pgxpool.Pool) *orders.Coordinator {
	return &orders.Coordinator{
		DB:        pool,
		Catalog:   &catalog.Repo{DB: pool},
		Promos:    &promo.Repo{DB: pool},
		Inventory: &inventory.Ledger{DB: pool},
	}
}

func restock(t *testing.T, pool *pgxpool.Pool, productID string, qty int64) {
	t.Helper()
	ledger := &inventory.Ledger{DB: pool}
	_, err := ledger.Adjust(context.Background(), inventory.AdjustInput{
		TenantID: tenant, StoreID: store, ProductID: productID,
		ChangeType: inventory.ChangeRestock, Delta: qty,
	})
	require.NoError(t, err)
}

func seedPromo(t *testing.T, pool *pgxpool.Pool, p promo.Promotion) promo.Promotion {
	t.Helper()
	p.TenantID, p.SiteID, p.StoreID = tenant, site, store
	repo := &promo.Repo{DB: pool}
	require.NoError(t, repo.Create(context.Background(), &p))
	return p
}

func placeInput(items ...catalog.LineRef) orders.PlaceOrderInput {
	return orders.PlaceOrderInput{
		TenantID: tenant, SiteID: site, StoreID: store,
		Items:    items,
		Customer: orders.Customer{ID: "cust-1", Name: "Budi", Email: "budi@example.com"},
		Shipping: orders.Address{Line1: "Jl. Sudirman 1", City: "Jakarta", Country: "ID"},
		Currency: "USD",
	}
}

func quantityOf(t *testing.T, pool *pgxpool.Pool, productID string) int64 {
	t.Helper()
	var q int64
	err := pool.QueryRow(context.Background(), `
		SELECT quantity FROM inventory_records
		WHERE tenant_id=$1 AND store_id=$2 AND product_id=$3 AND variant_id=''`,
		tenant, store, productID).Scan(&q)
	require.NoError(t, err)
	return q
}

func countRows(t *testing.T, pool *pgxpool.Pool, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, pool.QueryRow(context.Background(), query, args...).Scan(&n))
	return n
}

func TestPlaceOrder_HappyPathWithAutomaticPromotion(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	restock(t, pool, "A", 10)
	restock(t, pool, "B", 10)
	seedPromo(t, pool, promo.Promotion{
		Name: "10% off everything", IsActive: true,
		DiscountType: promo.DiscountPercent, DiscountScope: promo.ScopeOrder,
		DiscountValue: 10,
	})

	coord := newCoordinator(pool)
	res, err := coord.PlaceOrder(context.Background(), placeInput(
		catalog.LineRef{ProductID: "A", Qty: 2}, // 2 x 500
		catalog.LineRef{ProductID: "B", Qty: 1}, // 1 x 1000
	))
	require.NoError(t, err)

	o := res.Order
	assert.Equal(t, int64(2000), o.SubtotalCents)
	assert.Equal(t, int64(200), o.DiscountCents)
	assert.Equal(t, int64(1800), o.TotalCents)
	assert.Equal(t, orders.StatusNew, o.Status)
	assert.NotEmpty(t, o.OrderNumber)
	assert.NotEmpty(t, o.AppliedPromotionID)
	require.Len(t, o.Items, 2)
	assert.Equal(t, "Widget", o.Items[0].Title)
	assert.Equal(t, int64(500), o.Items[0].UnitPriceCents)

	// stok berkurang dan setiap pengurangan tercatat di ledger
	assert.Equal(t, int64(8), quantityOf(t, pool, "A"))
	assert.Equal(t, int64(9), quantityOf(t, pool, "B"))
	assert.Equal(t, 1, countRows(t, pool, `
		SELECT COUNT(*) FROM inventory_ledger
		WHERE change_type='order_reserve' AND order_id=$1 AND product_id='A'`, o.ID))

	// pemakaian promo tercatat sekali
	assert.Equal(t, 1, countRows(t, pool,
		`SELECT COUNT(*) FROM promotion_usages WHERE order_id=$1`, o.ID))
}

func TestPlaceOrder_EmptyCart(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	_, err := newCoordinator(pool).PlaceOrder(context.Background(), placeInput())
	assert.ErrorIs(t, err, orders.ErrEmptyCart)
}

func TestPlaceOrder_InvalidCouponLeavesNoState(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	restock(t, pool, "A", 5)

	in := placeInput(catalog.LineRef{ProductID: "A", Qty: 1})
	in.CouponCode = "NOPE"
	_, err := newCoordinator(pool).PlaceOrder(context.Background(), in)

	var invalid *promo.InvalidCouponError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "NOPE", invalid.Code)

	assert.Equal(t, int64(5), quantityOf(t, pool, "A"))
	assert.Equal(t, 0, countRows(t, pool, `SELECT COUNT(*) FROM orders`))
	assert.Equal(t, 0, countRows(t, pool,
		`SELECT COUNT(*) FROM inventory_ledger WHERE change_type='order_reserve'`))
}

func TestPlaceOrder_InsufficientMidCartRollsBackEverything(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	restock(t, pool, "A", 10)
	restock(t, pool, "B", 1)

	_, err := newCoordinator(pool).PlaceOrder(context.Background(), placeInput(
		catalog.LineRef{ProductID: "A", Qty: 3},
		catalog.LineRef{ProductID: "B", Qty: 2}, // hanya ada 1
	))

	var insufficient *inventory.InsufficientError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, "B", insufficient.ProductID)
	assert.Equal(t, int64(2), insufficient.Required)
	assert.Equal(t, int64(1), insufficient.Available)

	// line A yang sempat lolos ikut di-rollback
	assert.Equal(t, int64(10), quantityOf(t, pool, "A"))
	assert.Equal(t, int64(1), quantityOf(t, pool, "B"))
	assert.Equal(t, 0, countRows(t, pool, `SELECT COUNT(*) FROM orders`))
	assert.Equal(t, 0, countRows(t, pool,
		`SELECT COUNT(*) FROM inventory_ledger WHERE change_type='order_reserve'`))
}

func TestPlaceOrder_ConcurrentLastUnit(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	restock(t, pool, "A", 1)
	coord := newCoordinator(pool)

	const racers = 8
	results := make(chan error, racers)
	var g errgroup.Group
	for i := 0; i < racers; i++ {
		i := i
		g.Go(func() error {
			in := placeInput(catalog.LineRef{ProductID: "A", Qty: 1})
			in.Customer.ID = "cust-" + string(rune('a'+i))
			_, err := coord.PlaceOrder(context.Background(), in)
			results <- err
			return nil
		})
	}
	require.NoError(t, g.Wait())
	close(results)

	var ok, rejected int
	for err := range results {
		if err == nil {
			ok++
			continue
		}
		var insufficient *inventory.InsufficientError
		require.ErrorAs(t, err, &insufficient)
		rejected++
	}

	assert.Equal(t, 1, ok, "unit terakhir hanya boleh terjual sekali")
	assert.Equal(t, racers-1, rejected)
	assert.Equal(t, int64(0), quantityOf(t, pool, "A"))
	assert.Equal(t, 1, countRows(t, pool, `SELECT COUNT(*) FROM orders`))
}

func TestPlaceOrder_UsageLimitTotalUnderConcurrency(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	restock(t, pool, "A", 100)
	limit := int64(1)
	p := seedPromo(t, pool, promo.Promotion{
		Name: "first order only", IsActive: true,
		DiscountType: promo.DiscountFixed, DiscountScope: promo.ScopeOrder,
		DiscountValue: 100, UsageLimitTotal: &limit,
	})

	coord := newCoordinator(pool)

	const racers = 6
	type outcome struct {
		order *orders.Order
		err   error
	}
	results := make(chan outcome, racers)
	var g errgroup.Group
	for i := 0; i < racers; i++ {
		i := i
		g.Go(func() error {
			in := placeInput(catalog.LineRef{ProductID: "A", Qty: 1})
			in.Customer.ID = "cust-" + string(rune('a'+i))
			res, err := coord.PlaceOrder(context.Background(), in)
			if err != nil {
				results <- outcome{err: err}
				return nil
			}
			results <- outcome{order: res.Order}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	close(results)

	var withDiscount, withoutDiscount int
	for out := range results {
		// promo otomatis yang habis bukan alasan gagal; order tetap jadi
		require.NoError(t, out.err)
		if out.order.DiscountCents > 0 {
			withDiscount++
			assert.Equal(t, p.ID, out.order.AppliedPromotionID)
		} else {
			withoutDiscount++
		}
	}

	assert.Equal(t, 1, withDiscount, "usage_limit_total=1 berarti tepat satu order diskon")
	assert.Equal(t, racers-1, withoutDiscount)
	assert.Equal(t, 1, countRows(t, pool,
		`SELECT used_total FROM promotion_counters WHERE promotion_id=$1`, p.ID))
}

func TestPlaceOrder_ExternalIDIsIdempotent(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	restock(t, pool, "A", 10)
	coord := newCoordinator(pool)

	in := placeInput(catalog.LineRef{ProductID: "A", Qty: 2})
	in.ExternalID = "ext-123"

	first, err := coord.PlaceOrder(context.Background(), in)
	require.NoError(t, err)
	assert.False(t, first.Existed)

	second, err := coord.PlaceOrder(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, second.Existed)
	assert.Equal(t, first.Order.ID, second.Order.ID)
	assert.Equal(t, first.Order.OrderNumber, second.Order.OrderNumber)

	// retry tidak boleh menggerakkan stok dua kali
	assert.Equal(t, int64(8), quantityOf(t, pool, "A"))
	assert.Equal(t, 1, countRows(t, pool, `SELECT COUNT(*) FROM orders`))
}

func TestCancelOrder_ReleasesInventory(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	restock(t, pool, "A", 10)
	coord := newCoordinator(pool)

	res, err := coord.PlaceOrder(context.Background(),
		placeInput(catalog.LineRef{ProductID: "A", Qty: 3}))
	require.NoError(t, err)
	require.Equal(t, int64(7), quantityOf(t, pool, "A"))

	cancelled, err := coord.CancelOrder(context.Background(), tenant, res.Order.ID, "tester")
	require.NoError(t, err)
	assert.Equal(t, orders.StatusCancelled, cancelled.Status)
	assert.Equal(t, int64(10), quantityOf(t, pool, "A"))
	assert.Equal(t, 1, countRows(t, pool, `
		SELECT COUNT(*) FROM inventory_ledger
		WHERE change_type='order_release' AND order_id=$1`, res.Order.ID))

	// cancel kedua ditolak: cancelled bukan state awal transisi manapun
	_, err = coord.CancelOrder(context.Background(), tenant, res.Order.ID, "tester")
	var invalid *orders.InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, orders.StatusCancelled, invalid.From)
}

func TestGetOrder_NotFound(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	_, err := newCoordinator(pool).GetOrder(context.Background(), tenant, "missing")
	assert.ErrorIs(t, err, orders.ErrNotFound)
}
