// Package order serves committed snapshots: lookup, listing, the append-only
// status history and the admin status transitions. Pricing fields on an
// order are frozen at checkout and never edited here.
package order

import (
	"time"

	"github.com/google/uuid"

	"github.com/aurelle-london/backend-aurelle/internal/money"
	"github.com/aurelle-london/backend-aurelle/internal/pricing"
	"github.com/aurelle-london/backend-aurelle/internal/store"
)

// Order statuses, in lifecycle order. Cancelled is terminal and reachable
// from any non-delivered state.
const (
	StatusCreated    = "created"
	StatusConfirmed  = "confirmed"
	StatusProcessing = "processing"
	StatusShipped    = "shipped"
	StatusDelivered  = "delivered"
	StatusCancelled  = "cancelled"
)

// View is the wire shape of an order snapshot.
type View struct {
	ID               uuid.UUID   `json:"id"`
	OrderNumber      string      `json:"orderNumber"`
	SessionID        string      `json:"sessionID"`
	Status           string      `json:"status"`
	PaymentStatus    string      `json:"paymentStatus"`
	Currency         string      `json:"currency"`
	AppliedOfferCode *string     `json:"appliedOfferCode,omitempty"`
	Subtotal         money.Money `json:"subtotal"`
	Discount         money.Money `json:"discount"`
	Shipping         money.Money `json:"shipping"`
	TotalTax         money.Money `json:"totalTax"`
	Total            money.Money `json:"total"`
	VATRate          string      `json:"vatRate"`
	Notes            *string     `json:"notes,omitempty"`
	Items            []ItemView  `json:"items,omitempty"`
	CreatedAt        time.Time   `json:"createdAt"`
}

// ItemView is one snapshot line on the wire.
type ItemView struct {
	ID               uuid.UUID         `json:"id"`
	ProductID        uuid.UUID         `json:"productID"`
	ProductCode      string            `json:"productCode"`
	ProductName      string            `json:"productName"`
	SelectedMaterial string            `json:"selectedMaterial"`
	SelectedSize     *int              `json:"selectedSize,omitempty"`
	SelectedFinish   string            `json:"selectedFinish,omitempty"`
	IncludePackaging bool              `json:"includePackaging"`
	Quantity         int               `json:"quantity"`
	Breakdown        pricing.Breakdown `json:"breakdown"`
	ItemDiscount     money.Money       `json:"itemDiscount"`
	UnitPrice        money.Money       `json:"unitPrice"`
	TotalPrice       money.Money       `json:"totalPrice"`
}

// HistoryView is one history record on the wire.
type HistoryView struct {
	Kind      string    `json:"kind"`
	Status    string    `json:"status"`
	Note      *string   `json:"note,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// ToView projects an order and its items onto the wire shape.
func ToView(o store.Order, items []store.OrderItem) View {
	v := View{
		ID:               o.ID,
		OrderNumber:      o.OrderNumber,
		SessionID:        o.SessionID,
		Status:           o.Status,
		PaymentStatus:    o.PaymentStatus,
		Currency:         o.Currency,
		AppliedOfferCode: o.AppliedOfferCode,
		Subtotal:         o.Subtotal,
		Discount:         o.Discount,
		Shipping:         o.Shipping,
		TotalTax:         o.TotalTax,
		Total:            o.Total,
		VATRate:          money.FromPence(o.VATRateBps).String(),
		Notes:            o.Notes,
		CreatedAt:        o.CreatedAt,
	}
	for _, it := range items {
		v.Items = append(v.Items, ItemView{
			ID:               it.ID,
			ProductID:        it.ProductID,
			ProductCode:      it.ProductCode,
			ProductName:      it.ProductName,
			SelectedMaterial: it.MaterialRef,
			SelectedSize:     it.SizeMM,
			SelectedFinish:   it.FinishRef,
			IncludePackaging: it.IncludePackaging,
			Quantity:         it.Qty,
			Breakdown:        it.Breakdown,
			ItemDiscount:     it.ItemDiscount,
			UnitPrice:        it.UnitPrice,
			TotalPrice:       it.TotalPrice,
		})
	}
	return v
}

// ToHistoryViews projects history entries for the wire.
func ToHistoryViews(entries []store.StatusHistoryEntry) []HistoryView {
	out := make([]HistoryView, 0, len(entries))
	for _, e := range entries {
		out = append(out, HistoryView{Kind: e.Kind, Status: e.Status, Note: e.Note, CreatedAt: e.CreatedAt})
	}
	return out
}

// statusRank orders the forward lifecycle; cancelled sits outside it.
func statusRank(status string) int {
	switch status {
	case StatusCreated:
		return 0
	case StatusConfirmed:
		return 1
	case StatusProcessing:
		return 2
	case StatusShipped:
		return 3
	case StatusDelivered:
		return 4
	case StatusCancelled:
		return -1
	default:
		return -2
	}
}
