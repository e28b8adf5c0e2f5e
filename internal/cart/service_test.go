package cart

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/aurelle-london/backend-aurelle/internal/catalog"
	"github.com/aurelle-london/backend-aurelle/internal/delivery"
	"github.com/aurelle-london/backend-aurelle/internal/money"
	"github.com/aurelle-london/backend-aurelle/internal/offer"
	"github.com/aurelle-london/backend-aurelle/internal/store"
)

type fakeQuerier struct {
	carts      map[uuid.UUID]store.Cart
	items      map[uuid.UUID]store.CartItem
	products   map[uuid.UUID]catalog.Product
	offers     map[string]store.Offer
	autoApply  []store.Offer
	settings   store.Settings
	orderCount map[uuid.UUID]int64
}

func newFakeQuerier() *fakeQuerier {
	return &fakeQuerier{
		carts:      map[uuid.UUID]store.Cart{},
		items:      map[uuid.UUID]store.CartItem{},
		products:   map[uuid.UUID]catalog.Product{},
		offers:     map[string]store.Offer{},
		orderCount: map[uuid.UUID]int64{},
		settings: store.Settings{
			DeliveryTiers: []delivery.Tier{
				{MinAmount: 0, MaxAmount: ptrMoney(money.MustParse("49.99")), Fee: money.MustParse("5.99")},
				{MinAmount: money.MustParse("50.00"), MaxAmount: ptrMoney(money.MustParse("99.99")), Fee: money.MustParse("3.99")},
				{MinAmount: money.MustParse("100.00"), Fee: 0},
			},
			FreeDeliveryThreshold: delivery.Threshold{Enabled: true, Amount: money.MustParse("100.00")},
			VATRateBps:            2000,
			VATEnabled:            true,
			Version:               1,
		},
	}
}

func ptrMoney(m money.Money) *money.Money { return &m }

func (f *fakeQuerier) GetActiveCartBySession(_ context.Context, sessionID string) (store.Cart, error) {
	for _, c := range f.carts {
		if c.SessionID == sessionID && c.Status == store.CartStatusActive {
			return c, nil
		}
	}
	return store.Cart{}, store.ErrNotFound
}

func (f *fakeQuerier) GetCartByID(_ context.Context, id uuid.UUID) (store.Cart, error) {
	c, ok := f.carts[id]
	if !ok {
		return store.Cart{}, store.ErrNotFound
	}
	return c, nil
}

func (f *fakeQuerier) CreateCart(_ context.Context, sessionID string, userID *uuid.UUID) (store.Cart, error) {
	c := store.Cart{ID: uuid.New(), SessionID: sessionID, UserID: userID, Status: store.CartStatusActive}
	f.carts[c.ID] = c
	return c, nil
}

func (f *fakeQuerier) LinkCartToUser(_ context.Context, cartID, userID uuid.UUID) error {
	c := f.carts[cartID]
	c.UserID = &userID
	f.carts[cartID] = c
	return nil
}

func (f *fakeQuerier) UpdateCartTotals(_ context.Context, cartID uuid.UUID, subtotal, discount money.Money) error {
	c := f.carts[cartID]
	c.Subtotal = subtotal
	c.DiscountAmount = discount
	f.carts[cartID] = c
	return nil
}

func (f *fakeQuerier) UpdateCartOffer(_ context.Context, cartID uuid.UUID, code *string) error {
	c := f.carts[cartID]
	c.AppliedOfferCode = code
	f.carts[cartID] = c
	return nil
}

func (f *fakeQuerier) ListCartItems(_ context.Context, cartID uuid.UUID) ([]store.CartItem, error) {
	var out []store.CartItem
	for _, it := range f.items {
		if it.CartID == cartID {
			out = append(out, it)
		}
	}
	return out, nil
}

func (f *fakeQuerier) GetCartItemByID(_ context.Context, id uuid.UUID) (store.CartItem, error) {
	it, ok := f.items[id]
	if !ok {
		return store.CartItem{}, store.ErrNotFound
	}
	return it, nil
}

func (f *fakeQuerier) CreateCartItem(_ context.Context, it store.CartItem) (store.CartItem, error) {
	it.ID = uuid.New()
	f.items[it.ID] = it
	return it, nil
}

func (f *fakeQuerier) UpdateCartItemPricing(_ context.Context, it store.CartItem) error {
	f.items[it.ID] = it
	return nil
}

func (f *fakeQuerier) DeleteCartItem(_ context.Context, _, itemID uuid.UUID) error {
	delete(f.items, itemID)
	return nil
}

func (f *fakeQuerier) GetProductByID(_ context.Context, id uuid.UUID) (catalog.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return catalog.Product{}, store.ErrNotFound
	}
	return p, nil
}

func (f *fakeQuerier) GetOfferByCode(_ context.Context, code string) (store.Offer, error) {
	o, ok := f.offers[code]
	if !ok {
		return store.Offer{}, store.ErrNotFound
	}
	return o, nil
}

func (f *fakeQuerier) ListActiveAutoApplyOffers(_ context.Context) ([]store.Offer, error) {
	return f.autoApply, nil
}

func (f *fakeQuerier) CountOrdersByUser(_ context.Context, userID uuid.UUID) (int64, error) {
	return f.orderCount[userID], nil
}

func (f *fakeQuerier) GetSettings(_ context.Context) (store.Settings, error) {
	return f.settings, nil
}

func testProduct() catalog.Product {
	return catalog.Product{
		ID:             uuid.New(),
		Code:           "SIG-BAND",
		Name:           "Signature Band",
		PackagingPrice: money.MustParse("10.00"),
		IsActive:       true,
		Materials: []catalog.Material{
			{
				Ref:       "18k-gold",
				Name:      "18k Gold",
				BasePrice: money.MustParse("50.00"),
				IsDefault: true,
				Sizes: []catalog.SizeOption{
					{SizeMM: 52, AdditionalCost: 0},
					{SizeMM: 56, AdditionalCost: money.MustParse("5.00")},
				},
			},
		},
		Finishes: []catalog.FinishOption{
			{Ref: "polished", Name: "Polished", PriceAdjustment: money.MustParse("10.00")},
			{Ref: "brushed", Name: "Brushed", PriceAdjustment: 0},
		},
	}
}

func testService(q Querier) *Service {
	return &Service{Q: q, Now: func() time.Time { return time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC) }}
}

func percentOffer(code string, value int64, minOrder money.Money) store.Offer {
	c := code
	return store.Offer{
		ID:             uuid.New(),
		Code:           &c,
		DisplayName:    "Seasonal",
		DiscountType:   string(offer.DiscountPercentage),
		DiscountValue:  value,
		MinOrderAmount: minOrder,
		ValidFrom:      time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		IsActive:       true,
		ApplicableTo:   string(offer.AudienceAll),
	}
}

func TestEnsureCartReusesActive(t *testing.T) {
	q := newFakeQuerier()
	svc := testService(q)

	first, err := svc.EnsureCart(context.Background(), "sess-1")
	require.NoError(t, err)
	second, err := svc.EnsureCart(context.Background(), "sess-1")
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Len(t, q.carts, 1)
}

func TestAddItemComputesSubtotal(t *testing.T) {
	q := newFakeQuerier()
	p := testProduct()
	q.products[p.ID] = p
	svc := testService(q)

	size := 56
	cart, items, err := svc.AddItem(context.Background(), "sess-1", AddItemInput{
		ProductID:        p.ID,
		MaterialRef:      "18k-gold",
		SizeMM:           &size,
		FinishRef:        "polished",
		IncludePackaging: true,
		Quantity:         2,
	})
	require.NoError(t, err)
	require.Len(t, items, 1)
	// 50 + 5 + 10 + 10 = 75 per unit, x2
	require.Equal(t, "75.00", items[0].UnitPrice.String())
	require.Equal(t, "150.00", cart.Subtotal.String())
}

func TestAddItemMergesIdenticalSelection(t *testing.T) {
	q := newFakeQuerier()
	p := testProduct()
	q.products[p.ID] = p
	svc := testService(q)

	in := AddItemInput{ProductID: p.ID, MaterialRef: "18k-gold", Quantity: 1, FinishRef: "brushed"}
	_, _, err := svc.AddItem(context.Background(), "sess-1", in)
	require.NoError(t, err)
	cart, items, err := svc.AddItem(context.Background(), "sess-1", in)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, 2, items[0].Qty)
	require.Equal(t, "100.00", cart.Subtotal.String())
}

func TestRecomputeIsIdempotent(t *testing.T) {
	q := newFakeQuerier()
	p := testProduct()
	q.products[p.ID] = p
	svc := testService(q)

	cart, _, err := svc.AddItem(context.Background(), "sess-1", AddItemInput{ProductID: p.ID, Quantity: 3, FinishRef: "brushed"})
	require.NoError(t, err)
	again, items, err := svc.Recompute(context.Background(), cart)
	require.NoError(t, err)
	require.Equal(t, cart.Subtotal, again.Subtotal)
	require.Equal(t, cart.DiscountAmount, again.DiscountAmount)
	var sum money.Money
	for _, it := range items {
		sum = sum.Add(it.TotalPrice)
	}
	require.Equal(t, again.Subtotal, sum)
}

func TestApplyOfferScenario(t *testing.T) {
	q := newFakeQuerier()
	p := testProduct()
	q.products[p.ID] = p
	q.offers["SEASONAL10"] = percentOffer("SEASONAL10", 1000, money.MustParse("100.00"))
	svc := testService(q)

	// 50 + 10 packaging = 60 per unit, x2 = 120 subtotal
	_, _, err := svc.AddItem(context.Background(), "sess-1", AddItemInput{ProductID: p.ID, IncludePackaging: true, Quantity: 2, FinishRef: "brushed"})
	require.NoError(t, err)

	cart, _, err := svc.ApplyOffer(context.Background(), "sess-1", "SEASONAL10")
	require.NoError(t, err)
	require.Equal(t, "120.00", cart.Subtotal.String())
	require.Equal(t, "12.00", cart.DiscountAmount.String())

	quote, err := svc.BuildQuote(context.Background(), "sess-1")
	require.NoError(t, err)
	require.Equal(t, "108.00", quote.TotalAfterDiscount.String())
	require.Equal(t, "0.00", quote.DeliveryFee.String())
	require.Equal(t, "108.00", quote.Total.String())
	require.Equal(t, "18.00", quote.VAT.VAT.String())
	require.Equal(t, "90.00", quote.VAT.Net.String())
}

func TestApplyOfferBelowMinimum(t *testing.T) {
	q := newFakeQuerier()
	p := testProduct()
	q.products[p.ID] = p
	q.offers["SEASONAL10"] = percentOffer("SEASONAL10", 1000, money.MustParse("100.00"))
	svc := testService(q)

	_, _, err := svc.AddItem(context.Background(), "sess-1", AddItemInput{ProductID: p.ID, Quantity: 1, FinishRef: "brushed"})
	require.NoError(t, err)

	_, _, err = svc.ApplyOffer(context.Background(), "sess-1", "SEASONAL10")
	require.ErrorIs(t, err, offer.ErrBelowMinimum)
}

func TestApplyOfferUnknownCode(t *testing.T) {
	q := newFakeQuerier()
	svc := testService(q)
	_, _, err := svc.ApplyOffer(context.Background(), "sess-1", "NOPE")
	require.ErrorIs(t, err, offer.ErrOfferNotFound)
}

func TestAutoApplySelectionWithoutCode(t *testing.T) {
	q := newFakeQuerier()
	p := testProduct()
	q.products[p.ID] = p
	auto := percentOffer("", 500, 0)
	auto.Code = nil
	auto.AutoApply = true
	q.autoApply = []store.Offer{auto}
	svc := testService(q)

	cart, _, err := svc.AddItem(context.Background(), "sess-1", AddItemInput{ProductID: p.ID, Quantity: 2, FinishRef: "brushed"})
	require.NoError(t, err)
	require.Equal(t, "100.00", cart.Subtotal.String())
	require.Equal(t, "5.00", cart.DiscountAmount.String())
	require.Nil(t, cart.AppliedOfferCode)
}

func TestManualCodeBeatsAutoApply(t *testing.T) {
	q := newFakeQuerier()
	p := testProduct()
	q.products[p.ID] = p
	auto := percentOffer("", 2000, 0)
	auto.Code = nil
	auto.AutoApply = true
	q.autoApply = []store.Offer{auto}
	q.offers["SMALL5"] = percentOffer("SMALL5", 500, 0)
	svc := testService(q)

	_, _, err := svc.AddItem(context.Background(), "sess-1", AddItemInput{ProductID: p.ID, Quantity: 2, FinishRef: "brushed"})
	require.NoError(t, err)
	cart, _, err := svc.ApplyOffer(context.Background(), "sess-1", "SMALL5")
	require.NoError(t, err)
	// the explicit 5% wins over the larger auto-apply discount
	require.Equal(t, "5.00", cart.DiscountAmount.String())

	cart, _, err = svc.RemoveOffer(context.Background(), "sess-1")
	require.NoError(t, err)
	require.Equal(t, "20.00", cart.DiscountAmount.String())
}

func TestNewUserGateBlocksGuests(t *testing.T) {
	q := newFakeQuerier()
	p := testProduct()
	q.products[p.ID] = p
	o := percentOffer("WELCOME", 1000, 0)
	o.ApplicableTo = string(offer.AudienceNewUsers)
	q.offers["WELCOME"] = o
	svc := testService(q)

	_, _, err := svc.AddItem(context.Background(), "sess-1", AddItemInput{ProductID: p.ID, Quantity: 1, FinishRef: "brushed"})
	require.NoError(t, err)
	_, _, err = svc.ApplyOffer(context.Background(), "sess-1", "WELCOME")
	require.ErrorIs(t, err, offer.ErrNotEligible)

	// linking a user with no prior orders unlocks the gate
	userID := uuid.New()
	_, err = svc.LinkToUser(context.Background(), "sess-1", userID)
	require.NoError(t, err)
	cart, _, err := svc.ApplyOffer(context.Background(), "sess-1", "WELCOME")
	require.NoError(t, err)
	require.Equal(t, "5.00", cart.DiscountAmount.String())
}

func TestUpdateQtyRepricesAgainstProduct(t *testing.T) {
	q := newFakeQuerier()
	p := testProduct()
	q.products[p.ID] = p
	svc := testService(q)

	_, items, err := svc.AddItem(context.Background(), "sess-1", AddItemInput{ProductID: p.ID, Quantity: 1, FinishRef: "brushed"})
	require.NoError(t, err)

	// price change lands before the quantity update; repricing picks it up
	p.Materials[0].BasePrice = money.MustParse("60.00")
	q.products[p.ID] = p

	cart, items, err := svc.UpdateItemQty(context.Background(), "sess-1", items[0].ID, 2)
	require.NoError(t, err)
	require.Equal(t, "60.00", items[0].UnitPrice.String())
	require.Equal(t, "120.00", cart.Subtotal.String())
}

func TestRemoveItemRecomputes(t *testing.T) {
	q := newFakeQuerier()
	p := testProduct()
	q.products[p.ID] = p
	svc := testService(q)

	_, items, err := svc.AddItem(context.Background(), "sess-1", AddItemInput{ProductID: p.ID, Quantity: 1, FinishRef: "brushed"})
	require.NoError(t, err)
	cart, items, err := svc.RemoveItem(context.Background(), "sess-1", items[0].ID)
	require.NoError(t, err)
	require.Empty(t, items)
	require.Equal(t, "0.00", cart.Subtotal.String())
}

func TestRemoveItemFromOtherCartNotFound(t *testing.T) {
	q := newFakeQuerier()
	p := testProduct()
	q.products[p.ID] = p
	svc := testService(q)

	_, items, err := svc.AddItem(context.Background(), "sess-1", AddItemInput{ProductID: p.ID, Quantity: 1, FinishRef: "brushed"})
	require.NoError(t, err)
	_, _, err = svc.RemoveItem(context.Background(), "sess-other", items[0].ID)
	require.ErrorIs(t, err, ErrNotFound)
}
