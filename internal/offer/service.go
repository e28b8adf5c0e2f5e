package offer

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidOffer wraps write-time validation failures on offer definitions.
var ErrInvalidOffer = errors.New("invalid offer")

// ValidateDefinition enforces the write-time invariants on an offer rule
// before it is persisted. Evaluation-time checks live in Validate.
func ValidateDefinition(r Rule) error {
	switch r.Type {
	case DiscountPercentage:
		if r.Value <= 0 || r.Value > 10000 {
			return fmt.Errorf("%w: percentage out of range", ErrInvalidOffer)
		}
	case DiscountFixed:
		if r.Value <= 0 {
			return fmt.Errorf("%w: fixed amount must be positive", ErrInvalidOffer)
		}
	default:
		return fmt.Errorf("%w: unknown discount type %q", ErrInvalidOffer, r.Type)
	}
	switch r.Audience {
	case AudienceAll, AudienceNewUsers:
	default:
		return fmt.Errorf("%w: unknown audience %q", ErrInvalidOffer, r.Audience)
	}
	if strings.TrimSpace(r.DisplayName) == "" {
		return fmt.Errorf("%w: display name is required", ErrInvalidOffer)
	}
	if !r.AutoApply && strings.TrimSpace(r.Code) == "" {
		return fmt.Errorf("%w: code is required unless auto-apply", ErrInvalidOffer)
	}
	if r.MinOrderAmount < 0 {
		return fmt.Errorf("%w: negative minimum order amount", ErrInvalidOffer)
	}
	if r.MaxUses != nil && *r.MaxUses <= 0 {
		return fmt.Errorf("%w: maxUses must be positive when set", ErrInvalidOffer)
	}
	if r.ValidTo != nil && !r.ValidTo.After(r.ValidFrom) {
		return fmt.Errorf("%w: validTo must be after validFrom", ErrInvalidOffer)
	}
	return nil
}

// NormalizeCode uppercases and trims a customer- or admin-entered code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
