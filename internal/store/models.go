package store

import (
	"time"

	"github.com/google/uuid"

	"github.com/aurelle-london/backend-aurelle/internal/delivery"
	"github.com/aurelle-london/backend-aurelle/internal/money"
	"github.com/aurelle-london/backend-aurelle/internal/offer"
	"github.com/aurelle-london/backend-aurelle/internal/pricing"
)

// Cart statuses. The only forward transition out of active happens at
// checkout.
const (
	CartStatusActive    = "active"
	CartStatusCheckout  = "checkout"
	CartStatusCompleted = "completed"
)

// Cart is the live quote. Subtotal is derived state recomputed on every save
// and never trusted as authoritative input.
type Cart struct {
	ID               uuid.UUID
	SessionID        string
	UserID           *uuid.UUID
	Status           string
	AppliedOfferCode *string
	Subtotal         money.Money
	DiscountAmount   money.Money
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// CartItem is one configured line owned by exactly one cart.
type CartItem struct {
	ID               uuid.UUID
	CartID           uuid.UUID
	ProductID        uuid.UUID
	ProductCode      string
	ProductName      string
	MaterialRef      string
	SizeMM           *int
	FinishRef        string
	IncludePackaging bool
	Qty              int
	Breakdown        pricing.Breakdown
	UnitPrice        money.Money
	TotalPrice       money.Money
}

// Offer is the persisted discount rule.
type Offer struct {
	ID             uuid.UUID
	Code           *string
	DisplayName    string
	DiscountType   string
	DiscountValue  int64
	MinOrderAmount money.Money
	MaxUses        *int32
	UsedCount      int32
	ValidFrom      time.Time
	ValidTo        *time.Time
	IsActive       bool
	ApplicableTo   string
	AutoApply      bool
	Priority       int32
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Rule converts the row into the engine's evaluation type.
func (o Offer) Rule() offer.Rule {
	code := ""
	if o.Code != nil {
		code = *o.Code
	}
	return offer.Rule{
		ID:             o.ID,
		Code:           code,
		DisplayName:    o.DisplayName,
		Type:           offer.DiscountType(o.DiscountType),
		Value:          o.DiscountValue,
		MinOrderAmount: o.MinOrderAmount,
		MaxUses:        o.MaxUses,
		UsedCount:      o.UsedCount,
		ValidFrom:      o.ValidFrom,
		ValidTo:        o.ValidTo,
		IsActive:       o.IsActive,
		Audience:       offer.Audience(o.ApplicableTo),
		AutoApply:      o.AutoApply,
		Priority:       o.Priority,
		CreatedAt:      o.CreatedAt,
	}
}

// Settings is the singleton pricing configuration, replaced whole-document
// under a version check.
type Settings struct {
	DeliveryTiers         []delivery.Tier
	FreeDeliveryThreshold delivery.Threshold
	VATRateBps            int64
	VATEnabled            bool
	Version               int64
	UpdatedAt             time.Time
}

// Order statuses cover the snapshot lifecycle after checkout.
const (
	OrderStatusCreated   = "created"
	PaymentStatusPending = "pending"
)

// Order is the immutable pricing snapshot written at checkout.
type Order struct {
	ID               uuid.UUID
	OrderNumber      string
	CartID           uuid.UUID
	SessionID        string
	UserID           *uuid.UUID
	Status           string
	PaymentStatus    string
	Currency         string
	AppliedOfferCode *string
	OfferID          *uuid.UUID
	Subtotal         money.Money
	Discount         money.Money
	Shipping         money.Money
	TotalTax         money.Money
	Total            money.Money
	VATRateBps       int64
	DeliveryAddress  *uuid.UUID
	Notes            *string
	CreatedAt        time.Time
}

// OrderItem carries the full per-item breakdown, including the item's share
// of the order-level discount.
type OrderItem struct {
	ID               uuid.UUID
	OrderID          uuid.UUID
	ProductID        uuid.UUID
	ProductCode      string
	ProductName      string
	MaterialRef      string
	SizeMM           *int
	FinishRef        string
	IncludePackaging bool
	Qty              int
	Breakdown        pricing.Breakdown
	ItemDiscount     money.Money
	UnitPrice        money.Money
	TotalPrice       money.Money
}

// History kinds distinguish the two append-only order histories.
const (
	HistoryKindOrder   = "order"
	HistoryKindPayment = "payment"
)

// StatusHistoryEntry is one append-only history record.
type StatusHistoryEntry struct {
	ID        uuid.UUID
	OrderID   uuid.UUID
	Kind      string
	Status    string
	Note      *string
	CreatedAt time.Time
}

// DomainEvent is a persisted integration event.
type DomainEvent struct {
	ID          uuid.UUID
	Topic       string
	AggregateID uuid.UUID
	Payload     []byte
	CreatedAt   time.Time
}
