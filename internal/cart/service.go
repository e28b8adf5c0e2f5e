// Package cart implements the live quote: item management and the
// aggregation pipeline that recomputes subtotal, discount and projections on
// every mutation. Nothing here is hidden in persistence hooks; the pipeline
// is explicit functions invoked by the service.
package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aurelle-london/backend-aurelle/internal/catalog"
	"github.com/aurelle-london/backend-aurelle/internal/delivery"
	"github.com/aurelle-london/backend-aurelle/internal/money"
	"github.com/aurelle-london/backend-aurelle/internal/offer"
	"github.com/aurelle-london/backend-aurelle/internal/pricing"
	"github.com/aurelle-london/backend-aurelle/internal/store"
)

// ErrNotFound indicates the requested cart or item could not be located.
var ErrNotFound = errors.New("cart not found")

// ErrInvalidInput is returned when the provided payload is invalid.
var ErrInvalidInput = errors.New("invalid input")

// Querier captures the store methods required by the cart service.
type Querier interface {
	GetActiveCartBySession(ctx context.Context, sessionID string) (store.Cart, error)
	GetCartByID(ctx context.Context, id uuid.UUID) (store.Cart, error)
	CreateCart(ctx context.Context, sessionID string, userID *uuid.UUID) (store.Cart, error)
	LinkCartToUser(ctx context.Context, cartID, userID uuid.UUID) error
	UpdateCartTotals(ctx context.Context, cartID uuid.UUID, subtotal, discount money.Money) error
	UpdateCartOffer(ctx context.Context, cartID uuid.UUID, code *string) error
	ListCartItems(ctx context.Context, cartID uuid.UUID) ([]store.CartItem, error)
	GetCartItemByID(ctx context.Context, id uuid.UUID) (store.CartItem, error)
	CreateCartItem(ctx context.Context, it store.CartItem) (store.CartItem, error)
	UpdateCartItemPricing(ctx context.Context, it store.CartItem) error
	DeleteCartItem(ctx context.Context, cartID, itemID uuid.UUID) error
	GetProductByID(ctx context.Context, id uuid.UUID) (catalog.Product, error)
	GetOfferByCode(ctx context.Context, code string) (store.Offer, error)
	ListActiveAutoApplyOffers(ctx context.Context) ([]store.Offer, error)
	CountOrdersByUser(ctx context.Context, userID uuid.UUID) (int64, error)
	GetSettings(ctx context.Context) (store.Settings, error)
}

// Service encapsulates cart domain operations.
type Service struct {
	Q   Querier
	Now func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// AddItemInput is the payload for adding a configured product to the cart.
type AddItemInput struct {
	ProductID        uuid.UUID
	MaterialRef      string
	SizeMM           *int
	FinishRef        string
	IncludePackaging bool
	Quantity         int
}

// EnsureCart loads the session's single active cart, creating one on first
// use. A concurrent create loses the unique race and re-reads the winner.
func (s *Service) EnsureCart(ctx context.Context, sessionID string) (store.Cart, error) {
	if s == nil || s.Q == nil {
		return store.Cart{}, errors.New("cart service not configured")
	}
	if sessionID == "" {
		return store.Cart{}, fmt.Errorf("sessionID is required: %w", ErrInvalidInput)
	}
	cart, err := s.Q.GetActiveCartBySession(ctx, sessionID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return store.Cart{}, err
	}
	cart, err = s.Q.CreateCart(ctx, sessionID, nil)
	if err != nil {
		if store.IsUniqueViolation(err) {
			return s.Q.GetActiveCartBySession(ctx, sessionID)
		}
		return store.Cart{}, err
	}
	return cart, nil
}

// LinkToUser attaches a logged-in user to the session's cart without
// changing the cart's identity.
func (s *Service) LinkToUser(ctx context.Context, sessionID string, userID uuid.UUID) (store.Cart, error) {
	cart, err := s.EnsureCart(ctx, sessionID)
	if err != nil {
		return store.Cart{}, err
	}
	if err := s.Q.LinkCartToUser(ctx, cart.ID, userID); err != nil {
		return store.Cart{}, err
	}
	cart.UserID = &userID
	return cart, nil
}

// AddItem prices the selection against a freshly fetched product and inserts
// or merges the line, then recomputes the cart.
func (s *Service) AddItem(ctx context.Context, sessionID string, in AddItemInput) (store.Cart, []store.CartItem, error) {
	if in.Quantity <= 0 {
		in.Quantity = 1
	}
	cart, err := s.EnsureCart(ctx, sessionID)
	if err != nil {
		return store.Cart{}, nil, err
	}
	product, err := s.Q.GetProductByID(ctx, in.ProductID)
	if err != nil {
		return store.Cart{}, nil, err
	}
	sel := pricing.Selection{
		MaterialRef:      in.MaterialRef,
		SizeMM:           in.SizeMM,
		FinishRef:        in.FinishRef,
		IncludePackaging: in.IncludePackaging,
		Quantity:         in.Quantity,
	}
	if sel.MaterialRef == "" {
		if def, ok := product.DefaultMaterial(); ok {
			sel.MaterialRef = def.Ref
		}
	}

	existing, err := s.Q.ListCartItems(ctx, cart.ID)
	if err != nil {
		return store.Cart{}, nil, err
	}
	if match, ok := findMatchingItem(existing, in.ProductID, sel); ok {
		sel.Quantity += match.Qty
		quote, err := pricing.PriceLine(product, sel)
		if err != nil {
			return store.Cart{}, nil, err
		}
		match.Qty = sel.Quantity
		match.Breakdown = quote.Breakdown
		match.UnitPrice = quote.UnitPrice
		match.TotalPrice = quote.TotalPrice
		if err := s.Q.UpdateCartItemPricing(ctx, match); err != nil {
			return store.Cart{}, nil, err
		}
		return s.Recompute(ctx, cart)
	}

	quote, err := pricing.PriceLine(product, sel)
	if err != nil {
		return store.Cart{}, nil, err
	}
	if _, err := s.Q.CreateCartItem(ctx, store.CartItem{
		CartID:           cart.ID,
		ProductID:        product.ID,
		ProductCode:      product.Code,
		ProductName:      product.Name,
		MaterialRef:      sel.MaterialRef,
		SizeMM:           sel.SizeMM,
		FinishRef:        sel.FinishRef,
		IncludePackaging: sel.IncludePackaging,
		Qty:              sel.Quantity,
		Breakdown:        quote.Breakdown,
		UnitPrice:        quote.UnitPrice,
		TotalPrice:       quote.TotalPrice,
	}); err != nil {
		return store.Cart{}, nil, err
	}
	return s.Recompute(ctx, cart)
}

// UpdateItemQty reprices a line at the new quantity against a fresh product
// fetch, then recomputes the cart.
func (s *Service) UpdateItemQty(ctx context.Context, sessionID string, itemID uuid.UUID, qty int) (store.Cart, []store.CartItem, error) {
	if qty <= 0 {
		return store.Cart{}, nil, fmt.Errorf("quantity must be positive: %w", ErrInvalidInput)
	}
	cart, item, err := s.ownedItem(ctx, sessionID, itemID)
	if err != nil {
		return store.Cart{}, nil, err
	}
	product, err := s.Q.GetProductByID(ctx, item.ProductID)
	if err != nil {
		return store.Cart{}, nil, err
	}
	quote, err := pricing.PriceLine(product, pricing.Selection{
		MaterialRef:      item.MaterialRef,
		SizeMM:           item.SizeMM,
		FinishRef:        item.FinishRef,
		IncludePackaging: item.IncludePackaging,
		Quantity:         qty,
	})
	if err != nil {
		return store.Cart{}, nil, err
	}
	item.Qty = qty
	item.Breakdown = quote.Breakdown
	item.UnitPrice = quote.UnitPrice
	item.TotalPrice = quote.TotalPrice
	if err := s.Q.UpdateCartItemPricing(ctx, item); err != nil {
		return store.Cart{}, nil, err
	}
	return s.Recompute(ctx, cart)
}

// RemoveItem deletes a line and recomputes the cart.
func (s *Service) RemoveItem(ctx context.Context, sessionID string, itemID uuid.UUID) (store.Cart, []store.CartItem, error) {
	cart, item, err := s.ownedItem(ctx, sessionID, itemID)
	if err != nil {
		return store.Cart{}, nil, err
	}
	if err := s.Q.DeleteCartItem(ctx, cart.ID, item.ID); err != nil {
		return store.Cart{}, nil, err
	}
	return s.Recompute(ctx, cart)
}

// ApplyOffer validates a customer-entered code against the fresh subtotal
// and attaches it to the cart. Manual codes take precedence over auto-apply.
func (s *Service) ApplyOffer(ctx context.Context, sessionID, code string) (store.Cart, []store.CartItem, error) {
	if code == "" {
		return store.Cart{}, nil, fmt.Errorf("offer code is required: %w", ErrInvalidInput)
	}
	cart, err := s.EnsureCart(ctx, sessionID)
	if err != nil {
		return store.Cart{}, nil, err
	}
	items, err := s.Q.ListCartItems(ctx, cart.ID)
	if err != nil {
		return store.Cart{}, nil, err
	}
	subtotal := sumItems(items)
	row, err := s.Q.GetOfferByCode(ctx, code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Cart{}, nil, offer.ErrOfferNotFound
		}
		return store.Cart{}, nil, err
	}
	userIsNew, err := s.userIsNew(ctx, cart)
	if err != nil {
		return store.Cart{}, nil, err
	}
	if _, err := offer.Evaluate(row.Rule(), s.now(), subtotal, userIsNew); err != nil {
		return store.Cart{}, nil, err
	}
	if err := s.Q.UpdateCartOffer(ctx, cart.ID, row.Code); err != nil {
		return store.Cart{}, nil, err
	}
	cart.AppliedOfferCode = row.Code
	return s.Recompute(ctx, cart)
}

// RemoveOffer clears an applied code; auto-apply selection resumes on the
// next recomputation.
func (s *Service) RemoveOffer(ctx context.Context, sessionID string) (store.Cart, []store.CartItem, error) {
	cart, err := s.EnsureCart(ctx, sessionID)
	if err != nil {
		return store.Cart{}, nil, err
	}
	if err := s.Q.UpdateCartOffer(ctx, cart.ID, nil); err != nil {
		return store.Cart{}, nil, err
	}
	cart.AppliedOfferCode = nil
	return s.Recompute(ctx, cart)
}

// Recompute derives subtotal and discount from scratch and persists them.
// Idempotent: a second call with no intervening change yields the same cart.
func (s *Service) Recompute(ctx context.Context, cart store.Cart) (store.Cart, []store.CartItem, error) {
	items, err := s.Q.ListCartItems(ctx, cart.ID)
	if err != nil {
		return store.Cart{}, nil, err
	}
	subtotal := sumItems(items)
	discount, _, err := s.resolveDiscount(ctx, cart, subtotal)
	if err != nil {
		return store.Cart{}, nil, err
	}
	if err := s.Q.UpdateCartTotals(ctx, cart.ID, subtotal, discount); err != nil {
		return store.Cart{}, nil, err
	}
	cart.Subtotal = subtotal
	cart.DiscountAmount = discount
	return cart, items, nil
}

// resolveDiscount evaluates the applied code or, absent one, runs auto-apply
// selection. A code that has drifted ineligible zeroes the discount but
// stays on the cart; checkout surfaces the precise failure.
func (s *Service) resolveDiscount(ctx context.Context, cart store.Cart, subtotal money.Money) (money.Money, *store.Offer, error) {
	userIsNew, err := s.userIsNew(ctx, cart)
	if err != nil {
		return 0, nil, err
	}
	if cart.AppliedOfferCode != nil && *cart.AppliedOfferCode != "" {
		row, err := s.Q.GetOfferByCode(ctx, *cart.AppliedOfferCode)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return 0, nil, nil
			}
			return 0, nil, err
		}
		discount, err := offer.Evaluate(row.Rule(), s.now(), subtotal, userIsNew)
		if err != nil {
			return 0, nil, nil
		}
		return discount, &row, nil
	}
	rows, err := s.Q.ListActiveAutoApplyOffers(ctx)
	if err != nil {
		return 0, nil, err
	}
	rules := make([]offer.Rule, 0, len(rows))
	byID := make(map[uuid.UUID]store.Offer, len(rows))
	for _, row := range rows {
		rules = append(rules, row.Rule())
		byID[row.ID] = row
	}
	winner, ok := offer.SelectAutoApply(offer.EvaluateAutoApply(rules, s.now(), subtotal, userIsNew))
	if !ok {
		return 0, nil, nil
	}
	chosen := byID[winner.Rule.ID]
	return winner.Discount, &chosen, nil
}

// userIsNew reports whether the cart belongs to a customer without prior
// orders. Guests cannot prove newness and fail new-user gates until login.
func (s *Service) userIsNew(ctx context.Context, cart store.Cart) (bool, error) {
	if cart.UserID == nil {
		return false, nil
	}
	count, err := s.Q.CountOrdersByUser(ctx, *cart.UserID)
	if err != nil {
		return false, err
	}
	return count == 0, nil
}

// Quote is the display projection of a cart: totals plus delivery fee and
// VAT split. The fee and VAT are recomputed per call from live settings and
// never persisted on the cart, so settings changes show immediately until
// checkout freezes them.
type Quote struct {
	Cart               store.Cart
	Items              []store.CartItem
	AppliedOffer       *store.Offer
	Discount           money.Money
	TotalAfterDiscount money.Money
	DeliveryFee        money.Money
	Total              money.Money
	VAT                pricing.VATSplit
	VATRateBps         int64
	VATEnabled         bool
}

// BuildQuote recomputes the cart and projects delivery fee and VAT for
// display.
func (s *Service) BuildQuote(ctx context.Context, sessionID string) (Quote, error) {
	cart, err := s.EnsureCart(ctx, sessionID)
	if err != nil {
		return Quote{}, err
	}
	cart, items, err := s.Recompute(ctx, cart)
	if err != nil {
		return Quote{}, err
	}
	_, applied, err := s.resolveDiscount(ctx, cart, cart.Subtotal)
	if err != nil {
		return Quote{}, err
	}
	cfg, err := s.Q.GetSettings(ctx)
	if err != nil {
		return Quote{}, err
	}
	return projectQuote(cart, items, applied, cfg), nil
}

// projectQuote is the pure tail of the aggregation pipeline.
func projectQuote(cart store.Cart, items []store.CartItem, applied *store.Offer, cfg store.Settings) Quote {
	totalAfterDiscount := cart.Subtotal.Sub(cart.DiscountAmount)
	fee := delivery.ResolveFee(totalAfterDiscount, cfg.DeliveryTiers, cfg.FreeDeliveryThreshold)
	total := totalAfterDiscount.Add(fee)
	q := Quote{
		Cart:               cart,
		Items:              items,
		AppliedOffer:       applied,
		Discount:           cart.DiscountAmount,
		TotalAfterDiscount: totalAfterDiscount,
		DeliveryFee:        fee,
		Total:              total,
		VATRateBps:         cfg.VATRateBps,
		VATEnabled:         cfg.VATEnabled,
	}
	if cfg.VATEnabled {
		q.VAT = pricing.ExtractVAT(total, cfg.VATRateBps)
	} else {
		q.VAT = pricing.VATSplit{Net: total}
	}
	return q
}

func (s *Service) ownedItem(ctx context.Context, sessionID string, itemID uuid.UUID) (store.Cart, store.CartItem, error) {
	cart, err := s.EnsureCart(ctx, sessionID)
	if err != nil {
		return store.Cart{}, store.CartItem{}, err
	}
	item, err := s.Q.GetCartItemByID(ctx, itemID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Cart{}, store.CartItem{}, ErrNotFound
		}
		return store.Cart{}, store.CartItem{}, err
	}
	if item.CartID != cart.ID {
		return store.Cart{}, store.CartItem{}, ErrNotFound
	}
	return cart, item, nil
}

func sumItems(items []store.CartItem) money.Money {
	var subtotal money.Money
	for _, it := range items {
		subtotal = subtotal.Add(it.TotalPrice)
	}
	return subtotal
}

func findMatchingItem(items []store.CartItem, productID uuid.UUID, sel pricing.Selection) (store.CartItem, bool) {
	for _, it := range items {
		if it.ProductID != productID || it.MaterialRef != sel.MaterialRef || it.FinishRef != sel.FinishRef {
			continue
		}
		if it.IncludePackaging != sel.IncludePackaging {
			continue
		}
		if (it.SizeMM == nil) != (sel.SizeMM == nil) {
			continue
		}
		if it.SizeMM != nil && sel.SizeMM != nil && *it.SizeMM != *sel.SizeMM {
			continue
		}
		return it, true
	}
	return store.CartItem{}, false
}
