// Package offer implements eligibility and discount computation for
// time-boxed, priority-ranked, usage-limited offers. The engine is pure;
// callers load candidate rules and pass them in.
package offer

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/aurelle-london/backend-aurelle/internal/money"
)

// DiscountType enumerates supported discount strategies.
type DiscountType string

const (
	// DiscountPercentage applies a basis-point rate to the subtotal.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed subtracts a fixed amount, clamped at the subtotal.
	DiscountFixed DiscountType = "fixed"
)

// Audience restricts who may use an offer.
type Audience string

const (
	// AudienceAll makes the offer available to every customer.
	AudienceAll Audience = "all"
	// AudienceNewUsers restricts the offer to customers without prior orders.
	AudienceNewUsers Audience = "new_users"
)

// Eligibility failures, one sentinel per reason so the UI can message each
// precisely. The check order in Validate is fixed and short-circuits.
var (
	ErrOfferInactive     = errors.New("offer inactive")
	ErrNotYetStarted     = errors.New("offer not yet started")
	ErrExpired           = errors.New("offer expired")
	ErrUsageLimitReached = errors.New("offer usage limit reached")
	ErrNotEligible       = errors.New("offer restricted to new customers")
	ErrBelowMinimum      = errors.New("order below offer minimum")
	// ErrOfferNotFound is returned for an unknown or non-matching code.
	ErrOfferNotFound = errors.New("offer not found")
)

// Rule captures the runtime constraints of an offer.
type Rule struct {
	ID             uuid.UUID
	Code           string
	DisplayName    string
	Type           DiscountType
	Value          int64 // basis points for percentage, pence for fixed
	MinOrderAmount money.Money
	MaxUses        *int32
	UsedCount      int32
	ValidFrom      time.Time
	ValidTo        *time.Time
	IsActive       bool
	Audience       Audience
	AutoApply      bool
	Priority       int32
	CreatedAt      time.Time
}

// Validate runs the eligibility checks in their fixed order against the
// pre-discount subtotal, returning the first failure.
func (r Rule) Validate(now time.Time, subtotal money.Money, userIsNew bool) error {
	if !r.IsActive {
		return ErrOfferInactive
	}
	if now.Before(r.ValidFrom) {
		return ErrNotYetStarted
	}
	if r.ValidTo != nil && now.After(*r.ValidTo) {
		return ErrExpired
	}
	if r.MaxUses != nil && r.UsedCount >= *r.MaxUses {
		return ErrUsageLimitReached
	}
	if r.Audience == AudienceNewUsers && !userIsNew {
		return ErrNotEligible
	}
	if subtotal.Cmp(r.MinOrderAmount) < 0 {
		return ErrBelowMinimum
	}
	return nil
}

// Compute returns the discount amount for an eligible rule. The result never
// exceeds the subtotal and never goes negative.
func Compute(subtotal money.Money, r Rule) money.Money {
	if subtotal <= 0 {
		return 0
	}
	var discount money.Money
	switch r.Type {
	case DiscountPercentage:
		discount = subtotal.PercentOf(r.Value)
	case DiscountFixed:
		discount = money.FromPence(r.Value)
	default:
		return 0
	}
	return money.Min(discount, subtotal)
}

// Evaluate validates and computes in one step.
func Evaluate(r Rule, now time.Time, subtotal money.Money, userIsNew bool) (money.Money, error) {
	if err := r.Validate(now, subtotal, userIsNew); err != nil {
		return 0, err
	}
	return Compute(subtotal, r), nil
}
