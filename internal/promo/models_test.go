package promo_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-commerce-core.git/internal/catalog"
	"github.com/ariefcatur/go-commerce-core.git/internal/promo"
)

func TestParseEnums(t *testing.T) {
	dt, err := promo.ParseDiscountType("percent")
	require.NoError(t, err)
	assert.Equal(t, promo.DiscountPercent, dt)

	_, err = promo.ParseDiscountType("PERCENT")
	assert.Error(t, err)
	_, err = promo.ParseDiscountType("bogus")
	assert.Error(t, err)

	ds, err := promo.ParseDiscountScope("items")
	require.NoError(t, err)
	assert.Equal(t, promo.ScopeItems, ds)
	_, err = promo.ParseDiscountScope("cart")
	assert.Error(t, err)

	_, err = promo.ParseTargetType("product")
	assert.NoError(t, err)
	_, err = promo.ParseTargetType("collection")
	assert.Error(t, err)
}

func TestMatchesLine(t *testing.T) {
	l := catalog.PricedLine{ProductID: "A", VariantID: "v1", CategoryID: "shoes", Qty: 1, UnitPriceCents: 100}

	all := newPromo("all", nil)
	assert.True(t, all.MatchesLine(l), "targets kosong harus match semua item")

	byProduct := newPromo("p", func(p *promo.Promotion) {
		p.Targets = []promo.Target{{Type: promo.TargetProduct, ID: "A"}}
	})
	assert.True(t, byProduct.MatchesLine(l))

	byVariant := newPromo("v", func(p *promo.Promotion) {
		p.Targets = []promo.Target{{Type: promo.TargetVariant, ID: "v1"}}
	})
	assert.True(t, byVariant.MatchesLine(l))

	byCategory := newPromo("c", func(p *promo.Promotion) {
		p.Targets = []promo.Target{{Type: promo.TargetCategory, ID: "shoes"}}
	})
	assert.True(t, byCategory.MatchesLine(l))

	miss := newPromo("m", func(p *promo.Promotion) {
		p.Targets = []promo.Target{{Type: promo.TargetProduct, ID: "B"}}
	})
	assert.False(t, miss.MatchesLine(l))
}

func TestDiscountCents_PercentRoundsDown(t *testing.T) {
	p := newPromo("p", func(p *promo.Promotion) { p.DiscountValue = 33 })
	lines := []catalog.PricedLine{line("A", 1, 100)}

	// 33% dari 100 = 33 (integer cents, tidak ada pembulatan ke atas)
	assert.Equal(t, int64(33), p.DiscountCents(lines, 100))

	p.DiscountValue = 10
	assert.Equal(t, int64(0), p.DiscountCents([]catalog.PricedLine{line("A", 1, 9)}, 9))
}

func TestActiveAt_OpenEndedWindow(t *testing.T) {
	p := newPromo("p", nil)
	assert.True(t, p.ActiveAt(base), "tanpa window = selalu aktif")

	starts := base.Add(time.Hour)
	p.StartsAt = &starts
	assert.False(t, p.ActiveAt(base))
	assert.True(t, p.ActiveAt(base.Add(2*time.Hour)))
}
