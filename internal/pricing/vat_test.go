package pricing

import (
	"testing"

	"github.com/aurelle-london/backend-aurelle/internal/money"
)

func TestExtractVATScenario(t *testing.T) {
	// 20% VAT on £108.00 → vat £18.00, net £90.00.
	split := ExtractVAT(money.MustParse("108.00"), 2000)
	if split.VAT != money.MustParse("18.00") {
		t.Fatalf("vat = %s", split.VAT)
	}
	if split.Net != money.MustParse("90.00") {
		t.Fatalf("net = %s", split.Net)
	}
}

func TestExtractVATReconstructsExactly(t *testing.T) {
	rates := []int64{0, 500, 1250, 2000, 10000}
	for taxable := money.Money(0); taxable < 5000; taxable += 7 {
		for _, rate := range rates {
			split := ExtractVAT(taxable, rate)
			if split.Net+split.VAT != taxable {
				t.Fatalf("net %d + vat %d != taxable %d at rate %d", split.Net, split.VAT, taxable, rate)
			}
			if split.VAT < 0 || split.Net < 0 {
				t.Fatalf("negative component for taxable %d rate %d", taxable, rate)
			}
		}
	}
}

func TestExtractVATDisabledRate(t *testing.T) {
	split := ExtractVAT(money.MustParse("50.00"), 0)
	if split.VAT != 0 || split.Net != money.MustParse("50.00") {
		t.Fatalf("unexpected split %+v", split)
	}
}
