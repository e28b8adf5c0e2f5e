package checkout

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aurelle-london/backend-aurelle/internal/delivery"
	"github.com/aurelle-london/backend-aurelle/internal/money"
	"github.com/aurelle-london/backend-aurelle/internal/store"
)

func item(total string) store.CartItem {
	return store.CartItem{TotalPrice: money.MustParse(total)}
}

func ukSettings() store.Settings {
	max1 := money.MustParse("49.99")
	max2 := money.MustParse("99.99")
	return store.Settings{
		DeliveryTiers: []delivery.Tier{
			{MinAmount: 0, MaxAmount: &max1, Fee: money.MustParse("5.99")},
			{MinAmount: money.MustParse("50.00"), MaxAmount: &max2, Fee: money.MustParse("3.99")},
			{MinAmount: money.MustParse("100.00"), Fee: 0},
		},
		FreeDeliveryThreshold: delivery.Threshold{Enabled: true, Amount: money.MustParse("100.00")},
		VATRateBps:            2000,
		VATEnabled:            true,
	}
}

func TestAllocateDiscountSumsExactly(t *testing.T) {
	items := []store.CartItem{item("10.00"), item("10.00"), item("10.00")}
	shares := AllocateDiscount(items, money.MustParse("1.00"))
	var sum money.Money
	for _, s := range shares {
		sum = sum.Add(s)
	}
	require.Equal(t, "1.00", sum.String())
	// 100p over three equal lines: 34 + 33 + 33, largest remainder first
	require.Equal(t, "0.34", shares[0].String())
	require.Equal(t, "0.33", shares[1].String())
	require.Equal(t, "0.33", shares[2].String())
}

func TestAllocateDiscountProportional(t *testing.T) {
	items := []store.CartItem{item("90.00"), item("10.00")}
	shares := AllocateDiscount(items, money.MustParse("10.00"))
	require.Equal(t, "9.00", shares[0].String())
	require.Equal(t, "1.00", shares[1].String())
}

func TestAllocateDiscountZeroAndEmpty(t *testing.T) {
	require.Empty(t, AllocateDiscount(nil, money.MustParse("5.00")))
	shares := AllocateDiscount([]store.CartItem{item("10.00")}, 0)
	require.Equal(t, money.Money(0), shares[0])
}

func TestBuildSnapshotScenario(t *testing.T) {
	items := []store.CartItem{item("120.00")}
	snap := BuildSnapshot(items, money.MustParse("120.00"), money.MustParse("12.00"), nil, ukSettings())

	require.Equal(t, "120.00", snap.Subtotal.String())
	require.Equal(t, "12.00", snap.Discount.String())
	require.Equal(t, "108.00", snap.TotalAfterDiscount.String())
	require.Equal(t, "0.00", snap.DeliveryFee.String())
	require.Equal(t, "108.00", snap.Total.String())
	require.Equal(t, "18.00", snap.VAT.VAT.String())
	require.Equal(t, "90.00", snap.VAT.Net.String())
	require.Equal(t, snap.Total, snap.VAT.Net.Add(snap.VAT.VAT))
}

func TestBuildSnapshotClampsDiscount(t *testing.T) {
	items := []store.CartItem{item("10.00")}
	snap := BuildSnapshot(items, money.MustParse("10.00"), money.MustParse("15.00"), nil, ukSettings())
	require.Equal(t, "10.00", snap.Discount.String())
	require.Equal(t, "0.00", snap.TotalAfterDiscount.String())
	// zero-value goods still pick up the first tier's fee
	require.Equal(t, "5.99", snap.DeliveryFee.String())
	require.Equal(t, "5.99", snap.Total.String())
}

func TestBuildSnapshotVATDisabled(t *testing.T) {
	cfg := ukSettings()
	cfg.VATEnabled = false
	items := []store.CartItem{item("120.00")}
	snap := BuildSnapshot(items, money.MustParse("120.00"), 0, nil, cfg)
	require.Equal(t, money.Money(0), snap.VAT.VAT)
	require.Equal(t, snap.Total, snap.VAT.Net)
	require.Equal(t, int64(0), snap.VATRateBps)
}

func TestBuildSnapshotDeliveryFeeCharged(t *testing.T) {
	items := []store.CartItem{item("60.00")}
	snap := BuildSnapshot(items, money.MustParse("60.00"), 0, nil, ukSettings())
	require.Equal(t, "3.99", snap.DeliveryFee.String())
	require.Equal(t, "63.99", snap.Total.String())
}
