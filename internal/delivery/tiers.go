// Package delivery maps post-discount order values to delivery fees through
// ordered tiers and a free-delivery threshold.
package delivery

import (
	"errors"
	"fmt"
	"sort"

	"github.com/aurelle-london/backend-aurelle/internal/money"
)

// ErrTierOverlap indicates the tier list violates the non-overlap invariant.
// It is enforced at settings write time, never during fee resolution.
var ErrTierOverlap = errors.New("delivery tiers overlap")

// Tier covers order values in [MinAmount, MaxAmount]. A nil MaxAmount means
// unbounded above.
type Tier struct {
	MinAmount money.Money  `json:"minAmount"`
	MaxAmount *money.Money `json:"maxAmount,omitempty"`
	Fee       money.Money  `json:"fee"`
}

// Threshold waives the delivery fee above a configured order value.
type Threshold struct {
	Enabled bool        `json:"enabled"`
	Amount  money.Money `json:"amount"`
}

// ResolveFee returns the delivery fee for an order value computed after
// discounts. The threshold short-circuits to zero when met. Gaps between
// tiers are deliberate and fall through to the next higher tier; an empty
// tier list resolves to zero.
func ResolveFee(value money.Money, tiers []Tier, threshold Threshold) money.Money {
	if threshold.Enabled && value.Cmp(threshold.Amount) >= 0 {
		return 0
	}
	for _, t := range tiers {
		if value.Cmp(t.MinAmount) < 0 {
			// Inside a gap below this tier: resolve to this tier's fee.
			return t.Fee
		}
		if t.MaxAmount == nil || value.Cmp(*t.MaxAmount) <= 0 {
			return t.Fee
		}
	}
	return 0
}

// ValidateTiers checks the write-time invariant: sorted ascending by
// MinAmount, no two tiers overlapping, and each bounded tier well-formed.
func ValidateTiers(tiers []Tier) error {
	if !sort.SliceIsSorted(tiers, func(i, j int) bool {
		return tiers[i].MinAmount < tiers[j].MinAmount
	}) {
		return fmt.Errorf("%w: tiers must be sorted by minAmount", ErrTierOverlap)
	}
	for i, t := range tiers {
		if t.MaxAmount != nil && t.MaxAmount.Cmp(t.MinAmount) < 0 {
			return fmt.Errorf("%w: tier %d has maxAmount below minAmount", ErrTierOverlap, i)
		}
		if i == 0 {
			continue
		}
		prev := tiers[i-1]
		if prev.MaxAmount == nil {
			return fmt.Errorf("%w: unbounded tier %d is not last", ErrTierOverlap, i-1)
		}
		if t.MinAmount.Cmp(*prev.MaxAmount) <= 0 {
			return fmt.Errorf("%w: tier %d starts inside tier %d", ErrTierOverlap, i, i-1)
		}
	}
	return nil
}
