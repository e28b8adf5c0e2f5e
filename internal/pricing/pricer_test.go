package pricing

import (
	"errors"
	"testing"

	"github.com/aurelle-london/backend-aurelle/internal/catalog"
	"github.com/aurelle-london/backend-aurelle/internal/money"
)

func sampleProduct() catalog.Product {
	return catalog.Product{
		Code:           "AUR-SIG-001",
		Name:           "Signet Ring",
		PackagingPrice: money.MustParse("15.00"),
		Materials: []catalog.Material{
			{
				Ref:       "silver-925",
				BasePrice: money.MustParse("120.00"),
				IsDefault: true,
				Sizes: []catalog.SizeOption{
					{SizeMM: 18, AdditionalCost: 0},
					{SizeMM: 22, AdditionalCost: money.MustParse("10.00")},
				},
			},
			{Ref: "gold-9ct", BasePrice: money.MustParse("450.00")},
		},
		Finishes: []catalog.FinishOption{
			{Ref: "polished", PriceAdjustment: 0},
			{Ref: "hammered", PriceAdjustment: money.MustParse("25.00")},
		},
	}
}

func TestPriceLineFullBreakdown(t *testing.T) {
	size := 22
	quote, err := PriceLine(sampleProduct(), Selection{
		MaterialRef:      "silver-925",
		SizeMM:           &size,
		FinishRef:        "hammered",
		IncludePackaging: true,
		Quantity:         2,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if quote.Breakdown.MaterialNet != money.MustParse("120.00") {
		t.Fatalf("material net = %s", quote.Breakdown.MaterialNet)
	}
	if quote.Breakdown.Size != money.MustParse("10.00") {
		t.Fatalf("size = %s", quote.Breakdown.Size)
	}
	if quote.UnitPrice != money.MustParse("170.00") {
		t.Fatalf("unit price = %s", quote.UnitPrice)
	}
	if quote.TotalPrice != money.MustParse("340.00") {
		t.Fatalf("total price = %s", quote.TotalPrice)
	}
}

func TestPriceLineNoSizeNoPackaging(t *testing.T) {
	quote, err := PriceLine(sampleProduct(), Selection{
		MaterialRef: "gold-9ct",
		FinishRef:   "polished",
		Quantity:    1,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if quote.UnitPrice != money.MustParse("450.00") {
		t.Fatalf("unit price = %s", quote.UnitPrice)
	}
}

func TestPriceLineFailures(t *testing.T) {
	p := sampleProduct()
	wrongSize := 99
	cases := []struct {
		name string
		sel  Selection
		want error
	}{
		{"unknown material", Selection{MaterialRef: "bronze", FinishRef: "polished", Quantity: 1}, ErrMaterialNotFound},
		{"size from other material", Selection{MaterialRef: "gold-9ct", SizeMM: &wrongSize, FinishRef: "polished", Quantity: 1}, ErrSizeNotFound},
		{"unknown finish", Selection{MaterialRef: "silver-925", FinishRef: "brushed", Quantity: 1}, ErrFinishNotFound},
		{"missing finish", Selection{MaterialRef: "silver-925", Quantity: 1}, ErrFinishRequired},
		{"zero quantity", Selection{MaterialRef: "silver-925", FinishRef: "polished"}, ErrQuantityInvalid},
	}
	for _, tc := range cases {
		if _, err := PriceLine(p, tc.sel); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}
