// Package pricing contains the pure line-item pricer and VAT extraction.
// Both are side-effect free; callers fetch products and settings and pass
// immutable snapshots in.
package pricing

import (
	"errors"
	"fmt"

	"github.com/aurelle-london/backend-aurelle/internal/catalog"
	"github.com/aurelle-london/backend-aurelle/internal/money"
)

var (
	// ErrMaterialNotFound is returned when the selected material is not on the product.
	ErrMaterialNotFound = errors.New("material not found on product")
	// ErrSizeNotFound is returned when the selected size does not belong to the chosen material.
	ErrSizeNotFound = errors.New("size not found on material")
	// ErrFinishNotFound is returned when the selected finish is not on the product.
	ErrFinishNotFound = errors.New("finish not found on product")
	// ErrFinishRequired enforces the mandatory-finish business rule.
	ErrFinishRequired = errors.New("finish selection is required")
	// ErrQuantityInvalid is returned for non-positive quantities.
	ErrQuantityInvalid = errors.New("quantity must be at least 1")
)

// Selection captures the customer's configuration of a product.
type Selection struct {
	MaterialRef      string
	SizeMM           *int
	FinishRef        string
	IncludePackaging bool
	Quantity         int
}

// Breakdown itemises the components of a unit price. MaterialDiscount is an
// extension point for material-level promotions; nothing supplies one today
// so it is always zero.
type Breakdown struct {
	MaterialBase     money.Money `json:"materialBase"`
	MaterialDiscount money.Money `json:"materialDiscount"`
	MaterialNet      money.Money `json:"materialNet"`
	Size             money.Money `json:"size"`
	Finishes         money.Money `json:"finishes"`
	Packaging        money.Money `json:"packaging"`
}

// LineQuote is the priced result for one cart line.
type LineQuote struct {
	Breakdown  Breakdown
	UnitPrice  money.Money
	TotalPrice money.Money
}

// PriceLine computes the breakdown, unit price and total for a selection
// against a product snapshot. Pure function; fails rather than clamping any
// missing reference into a default price.
func PriceLine(p catalog.Product, sel Selection) (LineQuote, error) {
	if sel.Quantity < 1 {
		return LineQuote{}, ErrQuantityInvalid
	}
	material, ok := p.Material(sel.MaterialRef)
	if !ok {
		return LineQuote{}, fmt.Errorf("%w: %q", ErrMaterialNotFound, sel.MaterialRef)
	}
	breakdown := Breakdown{
		MaterialBase:     material.BasePrice,
		MaterialDiscount: 0,
	}
	breakdown.MaterialNet = breakdown.MaterialBase.Sub(breakdown.MaterialDiscount)

	if sel.SizeMM != nil {
		size, ok := material.Size(*sel.SizeMM)
		if !ok {
			return LineQuote{}, fmt.Errorf("%w: %dmm on material %q", ErrSizeNotFound, *sel.SizeMM, material.Ref)
		}
		breakdown.Size = size.AdditionalCost
	}

	if sel.FinishRef == "" {
		return LineQuote{}, ErrFinishRequired
	}
	finish, ok := p.Finish(sel.FinishRef)
	if !ok {
		return LineQuote{}, fmt.Errorf("%w: %q", ErrFinishNotFound, sel.FinishRef)
	}
	breakdown.Finishes = finish.PriceAdjustment

	if sel.IncludePackaging {
		breakdown.Packaging = p.PackagingPrice
	}

	unit := breakdown.MaterialNet.
		Add(breakdown.Size).
		Add(breakdown.Finishes).
		Add(breakdown.Packaging)
	return LineQuote{
		Breakdown:  breakdown,
		UnitPrice:  unit,
		TotalPrice: unit.Mul(sel.Quantity),
	}, nil
}
