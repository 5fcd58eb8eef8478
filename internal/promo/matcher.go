package promo

import (
	"sort"
	"time"

	"github.com/ariefcatur/go-commerce-core.git/internal/catalog"
)

// EvalInput: cart yang sudah di-price server-side plus konteks evaluasi.
// Exclude dipakai coordinator saat sebuah promo ternyata exhausted di tengah
// placement dan evaluasi harus diulang tanpa promo itu.
type EvalInput struct {
	Lines         []catalog.PricedLine
	CouponCode    string
	CustomerID    string
	IncludeSecret bool
	Now           time.Time
	Exclude       map[string]struct{}
}

type Applied struct {
	Promotion     Promotion `json:"promotion"`
	DiscountCents int64     `json:"discount_cents"`
}

type Evaluation struct {
	SubtotalCents      int64       `json:"subtotal_cents"`
	DiscountCents      int64       `json:"discount_cents"`
	TotalCents         int64       `json:"total_cents"`
	Applied            []Applied   `json:"applied"`
	AppliedPromotionID string      `json:"applied_promotion_id,omitempty"`
	Candidates         []Promotion `json:"candidates"`
}

// Evaluate memilih kombinasi promo legal terbaik untuk cart. Murni in-memory:
// caller yang bertanggung jawab memuat promos + usage (advisory; enforcement
// final ada di CommitUsageTx saat placement).
func Evaluate(promos []Promotion, usage map[string]Usage, in EvalInput) (*Evaluation, error) {
	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var subtotal int64
	for _, l := range in.Lines {
		subtotal += l.TotalCents()
	}

	// visibility + window + eligibility
	var eligible []Promotion
	for _, p := range promos {
		if _, skip := in.Exclude[p.ID]; skip {
			continue
		}
		if !p.ActiveAt(now) {
			continue
		}
		if p.IsSecret && !in.IncludeSecret && !(p.Code != "" && p.Code == in.CouponCode) {
			continue
		}
		if !isEligible(p, usage[p.ID], in, subtotal) {
			continue
		}
		eligible = append(eligible, p)
	}

	// coupon yang tidak menghasilkan kandidat eligible = error eksplisit,
	// bukan silent no-op
	var coded *Promotion
	if in.CouponCode != "" {
		for i := range eligible {
			if eligible[i].Code == in.CouponCode {
				coded = &eligible[i]
				break
			}
		}
		if coded == nil {
			reason := "not found or expired"
			for i := range promos {
				if promos[i].Code == in.CouponCode && promos[i].ActiveAt(now) {
					reason = "not eligible for this cart"
					break
				}
			}
			return nil, &InvalidCouponError{Code: in.CouponCode, Reason: reason}
		}
	}

	var stackables, nonStackables []Promotion
	for _, p := range eligible {
		if p.Stackable {
			stackables = append(stackables, p)
		} else {
			nonStackables = append(nonStackables, p)
		}
	}

	// winner non-stackable. Coupon intent menang atas seleksi otomatis.
	var winner *Promotion
	if coded != nil && !coded.Stackable {
		winner = coded
	} else {
		winner = bestNonStackable(nonStackables, in.Lines, subtotal)
	}

	var applied []Applied
	if winner != nil {
		applied = append(applied, Applied{Promotion: *winner, DiscountCents: winner.DiscountCents(in.Lines, subtotal)})
	}
	for _, p := range stackables {
		applied = append(applied, Applied{Promotion: p, DiscountCents: p.DiscountCents(in.Lines, subtotal)})
	}

	var totalDiscount int64
	for _, a := range applied {
		totalDiscount += a.DiscountCents
	}
	if totalDiscount > subtotal {
		totalDiscount = subtotal
	}

	appliedID := ""
	switch {
	case winner != nil:
		appliedID = winner.ID
	case coded != nil:
		appliedID = coded.ID
	case len(applied) > 0:
		sort.SliceStable(applied, func(i, j int) bool { return applied[i].DiscountCents > applied[j].DiscountCents })
		appliedID = applied[0].Promotion.ID
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		if eligible[i].Priority != eligible[j].Priority {
			return eligible[i].Priority > eligible[j].Priority
		}
		return eligible[i].CreatedAt.Before(eligible[j].CreatedAt)
	})

	return &Evaluation{
		SubtotalCents:      subtotal,
		DiscountCents:      totalDiscount,
		TotalCents:         subtotal - totalDiscount,
		Applied:            applied,
		AppliedPromotionID: appliedID,
		Candidates:         eligible,
	}, nil
}

func isEligible(p Promotion, u Usage, in EvalInput, subtotal int64) bool {
	if subtotal < p.MinOrderCents {
		return false
	}
	matched := false
	for _, l := range in.Lines {
		if p.MatchesLine(l) {
			matched = true
			break
		}
	}
	if !matched {
		return false
	}
	if p.UsageLimitTotal != nil && u.UsedTotal >= *p.UsageLimitTotal {
		return false
	}
	if p.UsageLimitPerCustomer != nil {
		if in.CustomerID == "" || u.UsedByCustomer >= *p.UsageLimitPerCustomer {
			return false
		}
	}
	if p.FirstNCustomers != nil {
		if in.CustomerID == "" {
			return false
		}
		if !u.CustomerSeen && u.DistinctCustomers >= *p.FirstNCustomers {
			return false
		}
	}
	return true
}

// bestNonStackable: priority tertinggi; seri -> diskon terbesar -> created_at
// paling awal -> id. Deterministik untuk input yang sama.
func bestNonStackable(cands []Promotion, lines []catalog.PricedLine, subtotal int64) *Promotion {
	var best *Promotion
	var bestDiscount int64
	for i := range cands {
		c := &cands[i]
		d := c.DiscountCents(lines, subtotal)
		if best == nil {
			best, bestDiscount = c, d
			continue
		}
		switch {
		case c.Priority != best.Priority:
			if c.Priority > best.Priority {
				best, bestDiscount = c, d
			}
		case d != bestDiscount:
			if d > bestDiscount {
				best, bestDiscount = c, d
			}
		case !c.CreatedAt.Equal(best.CreatedAt):
			if c.CreatedAt.Before(best.CreatedAt) {
				best, bestDiscount = c, d
			}
		case c.ID < best.ID:
			best, bestDiscount = c, d
		}
	}
	return best
}
