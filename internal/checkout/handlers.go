package checkout

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/aurelle-london/backend-aurelle/internal/common"
	"github.com/aurelle-london/backend-aurelle/internal/offer"
	"github.com/aurelle-london/backend-aurelle/internal/order"
)

// Handler exposes the checkout endpoint.
type Handler struct {
	Svc *Service
}

type createPayload struct {
	SessionID         string  `json:"sessionID"`
	DeliveryAddressID *string `json:"deliveryAddressId,omitempty"`
	OrderNotes        *string `json:"orderNotes,omitempty"`
}

// Create freezes the session's cart into an order.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout service not configured", nil)
		return
	}
	var payload createPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid payload", nil)
		return
	}
	if strings.TrimSpace(payload.SessionID) == "" {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "sessionID is required", nil)
		return
	}
	in := Input{SessionID: payload.SessionID, OrderNotes: payload.OrderNotes}
	if payload.DeliveryAddressID != nil {
		addrID, err := uuid.Parse(*payload.DeliveryAddressID)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid delivery address id", nil)
			return
		}
		in.DeliveryAddressID = &addrID
	}
	ord, items, err := h.Svc.Create(r.Context(), in)
	if err != nil {
		writeCheckoutError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": order.ToView(ord, items)})
}

func writeCheckoutError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrCartNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, ErrCartEmpty):
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
	case errors.Is(err, ErrCartAlreadyCheckedOut):
		common.JSONError(w, http.StatusConflict, "CONCURRENCY_CONFLICT", err.Error(), nil)
	case errors.Is(err, ErrOfferNoLongerValid):
		common.JSONError(w, http.StatusConflict, "OFFER_NO_LONGER_VALID", err.Error(), nil)
	case errors.Is(err, offer.ErrUsageLimitReached):
		common.JSONError(w, http.StatusConflict, "OFFER_USAGE_LIMIT", err.Error(), nil)
	case errors.Is(err, offer.ErrOfferInactive),
		errors.Is(err, offer.ErrNotYetStarted),
		errors.Is(err, offer.ErrExpired),
		errors.Is(err, offer.ErrNotEligible),
		errors.Is(err, offer.ErrBelowMinimum):
		common.JSONError(w, http.StatusUnprocessableEntity, "OFFER_NO_LONGER_VALID", err.Error(), nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout failed", nil)
	}
}
