package orders

import (
	"context"

	"github.com/ariefcatur/go-commerce-core.git/internal/catalog"
	"github.com/ariefcatur/go-commerce-core.git/internal/promo"
)

type EvaluateCartInput struct {
	TenantID   string
	SiteID     string
	StoreID    string
	Items      []catalog.LineRef
	CouponCode string
	CustomerID string
}

// EvaluateCart: evaluasi promo read-only (validate / suggested display).
// Tanpa lock dan tanpa reservasi; boleh melihat counter yang sedikit stale.
func (c *Coordinator) EvaluateCart(ctx context.Context, in EvaluateCartInput) (*promo.Evaluation, error) {
	if len(in.Items) == 0 {
		return nil, ErrEmptyCart
	}
	lines, err := c.Catalog.ResolveLines(ctx, c.DB, in.TenantID, in.StoreID, in.Items)
	if err != nil {
		return nil, err
	}
	promos, err := c.Promos.LoadActive(ctx, c.DB, in.TenantID, in.StoreID)
	if err != nil {
		return nil, err
	}
	usage, err := c.Promos.LoadUsage(ctx, c.DB, promos, in.CustomerID)
	if err != nil {
		return nil, err
	}
	return promo.Evaluate(promos, usage, promo.EvalInput{
		Lines:      lines,
		CouponCode: in.CouponCode,
		CustomerID: in.CustomerID,
	})
}
