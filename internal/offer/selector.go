package offer

import (
	"time"

	"github.com/aurelle-london/backend-aurelle/internal/money"
)

// Candidate pairs an eligible auto-apply rule with its computed discount.
type Candidate struct {
	Rule     Rule
	Discount money.Money
}

// SelectAutoApply chooses the winning auto-apply offer: highest discount,
// then highest priority, then earliest CreatedAt. The final tie-break keeps
// selection deterministic regardless of input order. Manual codes take
// precedence upstream; this runs only when the cart carries no code.
func SelectAutoApply(candidates []Candidate) (Candidate, bool) {
	var (
		best  Candidate
		found bool
	)
	for _, c := range candidates {
		if !c.Rule.AutoApply || c.Discount <= 0 {
			continue
		}
		if !found || beats(c, best) {
			best = c
			found = true
		}
	}
	return best, found
}

func beats(a, b Candidate) bool {
	if a.Discount != b.Discount {
		return a.Discount > b.Discount
	}
	if a.Rule.Priority != b.Rule.Priority {
		return a.Rule.Priority > b.Rule.Priority
	}
	return a.Rule.CreatedAt.Before(b.Rule.CreatedAt)
}

// EvaluateAutoApply filters the candidate set down to eligible auto-apply
// rules with their discounts, ready for SelectAutoApply.
func EvaluateAutoApply(rules []Rule, now time.Time, subtotal money.Money, userIsNew bool) []Candidate {
	out := make([]Candidate, 0, len(rules))
	for _, r := range rules {
		if !r.AutoApply {
			continue
		}
		discount, err := Evaluate(r, now, subtotal, userIsNew)
		if err != nil || discount <= 0 {
			continue
		}
		out = append(out, Candidate{Rule: r, Discount: discount})
	}
	return out
}
