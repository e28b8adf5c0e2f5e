// Package offeradmin is the back-office surface for discount rules: create,
// list and deactivate. Rules are never edited in place once live; a change
// is a deactivate plus a new rule, so committed orders keep pointing at the
// exact definition they redeemed.
package offeradmin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/aurelle-london/backend-aurelle/internal/common"
	"github.com/aurelle-london/backend-aurelle/internal/money"
	"github.com/aurelle-london/backend-aurelle/internal/offer"
	"github.com/aurelle-london/backend-aurelle/internal/store"
)

// Querier captures the store methods the admin surface needs.
type Querier interface {
	ListOffers(ctx context.Context) ([]store.Offer, error)
	CreateOffer(ctx context.Context, o store.Offer) (store.Offer, error)
	DeactivateOffer(ctx context.Context, id uuid.UUID) error
}

// Handler exposes the admin offer endpoints.
type Handler struct {
	Q   Querier
	Now func() time.Time
}

func (h *Handler) now() time.Time {
	if h != nil && h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

type offerPayload struct {
	Code           *string `json:"code,omitempty"`
	DisplayName    string  `json:"displayName"`
	DiscountType   string  `json:"discountType"`
	DiscountValue  string  `json:"discountValue"`
	MinOrderAmount string  `json:"minOrderAmount"`
	MaxUses        *int32  `json:"maxUses,omitempty"`
	ValidFrom      *string `json:"validFrom,omitempty"`
	ValidTo        *string `json:"validTo,omitempty"`
	ApplicableTo   string  `json:"applicableTo"`
	AutoApply      bool    `json:"autoApply"`
	Priority       int32   `json:"priority"`
}

type offerView struct {
	ID             uuid.UUID  `json:"id"`
	Code           *string    `json:"code,omitempty"`
	DisplayName    string     `json:"displayName"`
	DiscountType   string     `json:"discountType"`
	DiscountValue  string     `json:"discountValue"`
	MinOrderAmount string     `json:"minOrderAmount"`
	MaxUses        *int32     `json:"maxUses,omitempty"`
	UsedCount      int32      `json:"usedCount"`
	ValidFrom      time.Time  `json:"validFrom"`
	ValidTo        *time.Time `json:"validTo,omitempty"`
	IsActive       bool       `json:"isActive"`
	ApplicableTo   string     `json:"applicableTo"`
	AutoApply      bool       `json:"autoApply"`
	Priority       int32      `json:"priority"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// List returns every offer, newest first.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.Q == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "offer store not configured", nil)
		return
	}
	offers, err := h.Q.ListOffers(r.Context())
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to list offers", nil)
		return
	}
	views := make([]offerView, 0, len(offers))
	for _, o := range offers {
		views = append(views, toView(o))
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": views})
}

// Create validates and persists a new discount rule.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.Q == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "offer store not configured", nil)
		return
	}
	var payload offerPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid payload", nil)
		return
	}
	row, err := fromPayload(payload, h.now())
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	if err := offer.ValidateDefinition(row.Rule()); err != nil {
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	created, err := h.Q.CreateOffer(r.Context(), row)
	if err != nil {
		if store.IsUniqueViolation(err) {
			common.JSONError(w, http.StatusConflict, "DUPLICATE_CODE", "offer code already exists", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to create offer", nil)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": toView(created)})
}

// Deactivate switches an offer off; usage history is retained.
func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	if h.Q == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "offer store not configured", nil)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid offer id", nil)
		return
	}
	if err := h.Q.DeactivateOffer(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "offer not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to deactivate offer", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func fromPayload(p offerPayload, now time.Time) (store.Offer, error) {
	o := store.Offer{
		DisplayName:  p.DisplayName,
		DiscountType: p.DiscountType,
		MaxUses:      p.MaxUses,
		IsActive:     true,
		ApplicableTo: p.ApplicableTo,
		AutoApply:    p.AutoApply,
		Priority:     p.Priority,
		ValidFrom:    now,
	}
	if p.Code != nil {
		code := offer.NormalizeCode(*p.Code)
		if code != "" {
			o.Code = &code
		}
	}
	switch offer.DiscountType(p.DiscountType) {
	case offer.DiscountPercentage:
		// percentage arrives as "10" or "12.5"; stored in basis points
		rate, err := money.Parse(p.DiscountValue)
		if err != nil || rate < 0 {
			return store.Offer{}, errors.New("invalid discountValue percentage")
		}
		o.DiscountValue = rate.Pence()
	case offer.DiscountFixed:
		amount, err := money.Parse(p.DiscountValue)
		if err != nil {
			return store.Offer{}, errors.New("invalid discountValue amount")
		}
		o.DiscountValue = amount.Pence()
	default:
		return store.Offer{}, errors.New("unknown discountType")
	}
	if p.MinOrderAmount != "" {
		min, err := money.Parse(p.MinOrderAmount)
		if err != nil {
			return store.Offer{}, errors.New("invalid minOrderAmount")
		}
		o.MinOrderAmount = min
	}
	if p.ValidFrom != nil {
		from, err := time.Parse(time.RFC3339, *p.ValidFrom)
		if err != nil {
			return store.Offer{}, errors.New("invalid validFrom")
		}
		o.ValidFrom = from
	}
	if p.ValidTo != nil {
		to, err := time.Parse(time.RFC3339, *p.ValidTo)
		if err != nil {
			return store.Offer{}, errors.New("invalid validTo")
		}
		o.ValidTo = &to
	}
	return o, nil
}

func toView(o store.Offer) offerView {
	v := offerView{
		ID:             o.ID,
		Code:           o.Code,
		DisplayName:    o.DisplayName,
		DiscountType:   o.DiscountType,
		MinOrderAmount: o.MinOrderAmount.String(),
		MaxUses:        o.MaxUses,
		UsedCount:      o.UsedCount,
		ValidFrom:      o.ValidFrom,
		ValidTo:        o.ValidTo,
		IsActive:       o.IsActive,
		ApplicableTo:   o.ApplicableTo,
		AutoApply:      o.AutoApply,
		Priority:       o.Priority,
		CreatedAt:      o.CreatedAt,
	}
	// both interpretations of DiscountValue render as a 2dp decimal string
	v.DiscountValue = money.FromPence(o.DiscountValue).String()
	return v
}
