// Package catalog exposes the read-only product model consumed by the
// pricing engine. Products are managed by the back-office CRUD surface and
// are re-fetched for every pricing computation, never cached across requests.
package catalog

import (
	"github.com/google/uuid"

	"github.com/aurelle-london/backend-aurelle/internal/money"
)

// SizeOption is an optional size upgrade priced on top of the material base.
type SizeOption struct {
	SizeMM         int         `json:"sizeMm"`
	AdditionalCost money.Money `json:"additionalCost"`
}

// Material is a purchasable base variant of a product. Exactly one material
// per product carries IsDefault; array position carries no meaning.
type Material struct {
	Ref       string       `json:"ref"`
	Name      string       `json:"name"`
	BasePrice money.Money  `json:"basePrice"`
	IsDefault bool         `json:"isDefault"`
	Sizes     []SizeOption `json:"sizes,omitempty"`
}

// FinishOption adjusts the price for a surface finish. A finish is mandatory
// on every selection.
type FinishOption struct {
	Ref             string      `json:"ref"`
	Name            string      `json:"name"`
	PriceAdjustment money.Money `json:"priceAdjustment"`
}

// Product is the catalog entity as seen by the pricing engine. It is
// immutable for the duration of a single computation.
type Product struct {
	ID             uuid.UUID
	Code           string
	Name           string
	Slug           string
	PackagingPrice money.Money
	Materials      []Material
	Finishes       []FinishOption
	IsActive       bool
}

// Material looks up a material by reference.
func (p Product) Material(ref string) (Material, bool) {
	for _, m := range p.Materials {
		if m.Ref == ref {
			return m, true
		}
	}
	return Material{}, false
}

// DefaultMaterial returns the material flagged as default, falling back to
// none when the flag is absent.
func (p Product) DefaultMaterial() (Material, bool) {
	for _, m := range p.Materials {
		if m.IsDefault {
			return m, true
		}
	}
	return Material{}, false
}

// Finish looks up a finish option by reference.
func (p Product) Finish(ref string) (FinishOption, bool) {
	for _, f := range p.Finishes {
		if f.Ref == ref {
			return f, true
		}
	}
	return FinishOption{}, false
}

// Size looks up a size option belonging to the material.
func (m Material) Size(sizeMM int) (SizeOption, bool) {
	for _, s := range m.Sizes {
		if s.SizeMM == sizeMM {
			return s, true
		}
	}
	return SizeOption{}, false
}
