// Package checkout freezes a cart into an immutable order snapshot. The
// pricing pipeline is re-run from scratch against live offers and settings
// inside one transaction; nothing trusts the cart's persisted totals.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aurelle-london/backend-aurelle/internal/delivery"
	"github.com/aurelle-london/backend-aurelle/internal/events"
	"github.com/aurelle-london/backend-aurelle/internal/money"
	"github.com/aurelle-london/backend-aurelle/internal/obs"
	"github.com/aurelle-london/backend-aurelle/internal/offer"
	"github.com/aurelle-london/backend-aurelle/internal/pricing"
	"github.com/aurelle-london/backend-aurelle/internal/store"
)

var (
	// ErrCartEmpty rejects checkout of a cart with no lines.
	ErrCartEmpty = errors.New("cart is empty")
	// ErrCartNotFound is returned when the session has no active cart.
	ErrCartNotFound = errors.New("no active cart for session")
	// ErrCartAlreadyCheckedOut is returned when a concurrent checkout won the
	// cart's active->completed transition.
	ErrCartAlreadyCheckedOut = errors.New("cart already checked out")
	// ErrOfferNoLongerValid is returned when the applied code disappeared
	// between cart time and checkout time.
	ErrOfferNoLongerValid = errors.New("applied offer no longer valid")
)

// Input is the checkout request.
type Input struct {
	SessionID         string
	DeliveryAddressID *uuid.UUID
	OrderNotes        *string
}

// Service builds order snapshots.
type Service struct {
	Q      *store.Queries
	Pool   *pgxpool.Pool
	Events *events.Bus
	Tasks  events.Enqueuer
	Now    func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Snapshot carries every priced figure frozen at checkout, before it is
// written as an order.
type Snapshot struct {
	Subtotal           money.Money
	Discount           money.Money
	TotalAfterDiscount money.Money
	DeliveryFee        money.Money
	Total              money.Money
	VAT                pricing.VATSplit
	VATRateBps         int64
	OfferID            *uuid.UUID
	OfferCode          *string
	ItemDiscounts      []money.Money
}

// Create runs the whole pipeline transactionally and returns the persisted
// order with its items.
func (s *Service) Create(ctx context.Context, in Input) (store.Order, []store.OrderItem, error) {
	if s == nil || s.Q == nil || s.Pool == nil {
		return store.Order{}, nil, errors.New("checkout service not configured")
	}
	if in.SessionID == "" {
		return store.Order{}, nil, errors.New("sessionID is required")
	}
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return store.Order{}, nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	qtx := s.Q.WithTx(tx)

	cart, err := qtx.GetActiveCartBySession(ctx, in.SessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Order{}, nil, ErrCartNotFound
		}
		return store.Order{}, nil, err
	}

	// Claim the cart first so concurrent checkouts of the same session
	// serialize on the status transition, not on the offer counter.
	claimed, err := qtx.CompleteCart(ctx, cart.ID)
	if err != nil {
		return store.Order{}, nil, err
	}
	if !claimed {
		if obs.CheckoutConflicts != nil {
			obs.CheckoutConflicts.WithLabelValues("cart").Inc()
		}
		return store.Order{}, nil, ErrCartAlreadyCheckedOut
	}

	items, err := qtx.ListCartItems(ctx, cart.ID)
	if err != nil {
		return store.Order{}, nil, err
	}
	if len(items) == 0 {
		return store.Order{}, nil, ErrCartEmpty
	}

	userIsNew := false
	if cart.UserID != nil {
		count, err := qtx.CountOrdersByUser(ctx, *cart.UserID)
		if err != nil {
			return store.Order{}, nil, err
		}
		userIsNew = count == 0
	}

	subtotal := money.Money(0)
	for _, it := range items {
		subtotal = subtotal.Add(it.TotalPrice)
	}

	chosen, discount, err := s.resolveOffer(ctx, qtx, cart, subtotal, userIsNew)
	if err != nil {
		return store.Order{}, nil, err
	}

	cfg, err := qtx.GetSettings(ctx)
	if err != nil {
		return store.Order{}, nil, err
	}

	snap := BuildSnapshot(items, subtotal, discount, chosen, cfg)
	if snap.Total < 0 {
		return store.Order{}, nil, fmt.Errorf("negative order total %s", snap.Total)
	}

	order, err := qtx.CreateOrder(ctx, store.Order{
		CartID:           cart.ID,
		SessionID:        cart.SessionID,
		UserID:           cart.UserID,
		Status:           store.OrderStatusCreated,
		PaymentStatus:    store.PaymentStatusPending,
		Currency:         money.Currency,
		AppliedOfferCode: snap.OfferCode,
		OfferID:          snap.OfferID,
		Subtotal:         snap.Subtotal,
		Discount:         snap.Discount,
		Shipping:         snap.DeliveryFee,
		TotalTax:         snap.VAT.VAT,
		Total:            snap.Total,
		VATRateBps:       snap.VATRateBps,
		DeliveryAddress:  in.DeliveryAddressID,
		Notes:            in.OrderNotes,
	})
	if err != nil {
		return store.Order{}, nil, err
	}

	orderItems := make([]store.OrderItem, 0, len(items))
	for i, it := range items {
		oi := store.OrderItem{
			OrderID:          order.ID,
			ProductID:        it.ProductID,
			ProductCode:      it.ProductCode,
			ProductName:      it.ProductName,
			MaterialRef:      it.MaterialRef,
			SizeMM:           it.SizeMM,
			FinishRef:        it.FinishRef,
			IncludePackaging: it.IncludePackaging,
			Qty:              it.Qty,
			Breakdown:        it.Breakdown,
			ItemDiscount:     snap.ItemDiscounts[i],
			UnitPrice:        it.UnitPrice,
			TotalPrice:       it.TotalPrice,
		}
		if err := qtx.CreateOrderItem(ctx, oi); err != nil {
			return store.Order{}, nil, err
		}
		orderItems = append(orderItems, oi)
	}

	if err := qtx.AppendStatusHistory(ctx, order.ID, store.HistoryKindOrder, store.OrderStatusCreated, nil); err != nil {
		return store.Order{}, nil, err
	}
	if err := qtx.AppendStatusHistory(ctx, order.ID, store.HistoryKindPayment, store.PaymentStatusPending, nil); err != nil {
		return store.Order{}, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return store.Order{}, nil, err
	}

	if obs.OrdersCreated != nil {
		obs.OrdersCreated.Inc()
		obs.OrderTotalPence.Observe(float64(order.Total.Pence()))
		if snap.OfferID != nil {
			obs.OffersRedeemed.Inc()
		}
	}

	if s.Events != nil {
		payload := map[string]any{
			"orderId":     order.ID.String(),
			"orderNumber": order.OrderNumber,
			"sessionId":   order.SessionID,
			"total":       order.Total.String(),
			"currency":    order.Currency,
		}
		_, _ = s.Events.Emit(ctx, events.TopicOrderCreated, order.ID, payload)
	}
	if s.Tasks != nil {
		_ = s.Tasks.EnqueueOrderConfirmation(ctx, order.ID)
	}
	return order, orderItems, nil
}

// resolveOffer re-validates the applied code or re-runs auto-apply selection
// against live rows, reserving a usage slot where the offer is capped. The
// reservation is the conditional increment that settles concurrent
// redemptions of the last slot.
func (s *Service) resolveOffer(ctx context.Context, qtx *store.Queries, cart store.Cart, subtotal money.Money, userIsNew bool) (*store.Offer, money.Money, error) {
	now := s.now()
	if cart.AppliedOfferCode != nil && *cart.AppliedOfferCode != "" {
		row, err := qtx.GetOfferByCode(ctx, *cart.AppliedOfferCode)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, 0, ErrOfferNoLongerValid
			}
			return nil, 0, err
		}
		discount, err := offer.Evaluate(row.Rule(), now, subtotal, userIsNew)
		if err != nil {
			return nil, 0, err
		}
		if row.MaxUses != nil {
			ok, err := qtx.ReserveOfferUsage(ctx, row.ID)
			if err != nil {
				return nil, 0, err
			}
			if !ok {
				if obs.CheckoutConflicts != nil {
					obs.CheckoutConflicts.WithLabelValues("offer").Inc()
				}
				return nil, 0, offer.ErrUsageLimitReached
			}
		}
		return &row, discount, nil
	}

	rows, err := qtx.ListActiveAutoApplyOffers(ctx)
	if err != nil {
		return nil, 0, err
	}
	rules := make([]offer.Rule, 0, len(rows))
	byID := make(map[uuid.UUID]store.Offer, len(rows))
	for _, row := range rows {
		rules = append(rules, row.Rule())
		byID[row.ID] = row
	}
	candidates := offer.EvaluateAutoApply(rules, now, subtotal, userIsNew)
	for len(candidates) > 0 {
		winner, ok := offer.SelectAutoApply(candidates)
		if !ok {
			break
		}
		row := byID[winner.Rule.ID]
		if row.MaxUses != nil {
			reserved, err := qtx.ReserveOfferUsage(ctx, row.ID)
			if err != nil {
				return nil, 0, err
			}
			if !reserved {
				// lost the last slot; fall back to the next candidate
				candidates = dropCandidate(candidates, winner.Rule.ID)
				continue
			}
		}
		return &row, winner.Discount, nil
	}
	return nil, 0, nil
}

func dropCandidate(candidates []offer.Candidate, id uuid.UUID) []offer.Candidate {
	out := candidates[:0]
	for _, c := range candidates {
		if c.Rule.ID != id {
			out = append(out, c)
		}
	}
	return out
}

// BuildSnapshot is the pure pricing tail: given frozen inputs it derives
// every figure the order will carry. No I/O, fully deterministic.
func BuildSnapshot(items []store.CartItem, subtotal, discount money.Money, chosen *store.Offer, cfg store.Settings) Snapshot {
	snap := Snapshot{
		Subtotal:      subtotal,
		Discount:      money.Min(discount, subtotal),
		VATRateBps:    cfg.VATRateBps,
		ItemDiscounts: AllocateDiscount(items, money.Min(discount, subtotal)),
	}
	if chosen != nil {
		id := chosen.ID
		snap.OfferID = &id
		snap.OfferCode = chosen.Code
	}
	snap.TotalAfterDiscount = subtotal.Sub(snap.Discount)
	snap.DeliveryFee = delivery.ResolveFee(snap.TotalAfterDiscount, cfg.DeliveryTiers, cfg.FreeDeliveryThreshold)
	snap.Total = snap.TotalAfterDiscount.Add(snap.DeliveryFee)
	if cfg.VATEnabled {
		snap.VAT = pricing.ExtractVAT(snap.Total, cfg.VATRateBps)
	} else {
		snap.VAT = pricing.VATSplit{Net: snap.Total}
		snap.VATRateBps = 0
	}
	return snap
}

// AllocateDiscount splits an order-level discount across items in proportion
// to their totals. Largest-remainder assignment guarantees the shares sum to
// the discount exactly, so per-item reporting never drifts from the order.
func AllocateDiscount(items []store.CartItem, discount money.Money) []money.Money {
	shares := make([]money.Money, len(items))
	if discount <= 0 || len(items) == 0 {
		return shares
	}
	var subtotal money.Money
	for _, it := range items {
		subtotal = subtotal.Add(it.TotalPrice)
	}
	if subtotal <= 0 {
		return shares
	}
	type rem struct {
		idx int
		val int64
	}
	var allocated money.Money
	rems := make([]rem, len(items))
	for i, it := range items {
		num := it.TotalPrice.Pence() * discount.Pence()
		shares[i] = money.FromPence(num / subtotal.Pence())
		rems[i] = rem{idx: i, val: num % subtotal.Pence()}
		allocated = allocated.Add(shares[i])
	}
	// hand the leftover pence to the largest remainders, index order breaking
	// ties so allocation stays deterministic
	sort.SliceStable(rems, func(a, b int) bool { return rems[a].val > rems[b].val })
	leftover := discount.Sub(allocated).Pence()
	for i := int64(0); i < leftover && i < int64(len(rems)); i++ {
		shares[rems[i].idx] = shares[rems[i].idx].Add(money.FromPence(1))
	}
	return shares
}
