package pricing

import "github.com/aurelle-london/backend-aurelle/internal/money"

// VATSplit is the reporting view of a VAT-inclusive amount. Net + VAT always
// equals the taxable input exactly; the extraction never changes what is
// charged.
type VATSplit struct {
	Net money.Money `json:"net"`
	VAT money.Money `json:"vat"`
}

// ExtractVAT derives the net/VAT split of a VAT-inclusive amount for a rate
// given in basis points. VAT is rounded half-up and the remainder is absorbed
// into net, so the invariant net + vat == taxable holds for every input.
func ExtractVAT(taxable money.Money, rateBps int64) VATSplit {
	if taxable <= 0 || rateBps <= 0 {
		return VATSplit{Net: taxable, VAT: 0}
	}
	divisor := 10000 + rateBps
	vat := money.FromPence((taxable.Pence()*rateBps + divisor/2) / divisor)
	if vat > taxable {
		vat = taxable
	}
	return VATSplit{Net: taxable - vat, VAT: vat}
}
