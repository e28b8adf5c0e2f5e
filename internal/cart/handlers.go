package cart

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	validator "github.com/go-playground/validator/v10"

	"github.com/aurelle-london/backend-aurelle/internal/common"
	"github.com/aurelle-london/backend-aurelle/internal/money"
	"github.com/aurelle-london/backend-aurelle/internal/offer"
	"github.com/aurelle-london/backend-aurelle/internal/pricing"
	"github.com/aurelle-london/backend-aurelle/internal/store"
)

// Handler wires the cart service to HTTP.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
}

type addItemPayload struct {
	SessionID        string `json:"sessionID" validate:"required"`
	ProductID        string `json:"productID" validate:"required,uuid4"`
	SelectedMaterial string `json:"selectedMaterial"`
	SelectedSize     *int   `json:"selectedSize,omitempty"`
	SelectedFinish   string `json:"selectedFinish"`
	Quantity         int    `json:"quantity"`
	IncludePackaging bool   `json:"includePackaging"`
}

// AddItem prices a selection and puts it in the session's cart.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	var payload addItemPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid payload", nil)
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(payload); err != nil {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
			return
		}
	}
	productID, err := uuid.Parse(payload.ProductID)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid product id", nil)
		return
	}
	cart, items, err := h.Svc.AddItem(r.Context(), payload.SessionID, AddItemInput{
		ProductID:        productID,
		MaterialRef:      strings.TrimSpace(payload.SelectedMaterial),
		SizeMM:           payload.SelectedSize,
		FinishRef:        strings.TrimSpace(payload.SelectedFinish),
		IncludePackaging: payload.IncludePackaging,
		Quantity:         payload.Quantity,
	})
	if err != nil {
		writeCartError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": toCartView(cart, items)})
}

// UpdateItem changes a line's quantity.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid item id", nil)
		return
	}
	var payload struct {
		SessionID string `json:"sessionID"`
		Quantity  int    `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid payload", nil)
		return
	}
	cart, items, err := h.Svc.UpdateItemQty(r.Context(), payload.SessionID, itemID, payload.Quantity)
	if err != nil {
		writeCartError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": toCartView(cart, items)})
}

// RemoveItem deletes a line.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid item id", nil)
		return
	}
	var payload struct {
		SessionID string `json:"sessionID"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid payload", nil)
		return
	}
	cart, items, err := h.Svc.RemoveItem(r.Context(), payload.SessionID, itemID)
	if err != nil {
		writeCartError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": toCartView(cart, items)})
}

// ApplyOffer applies a customer-entered code to the cart.
func (h *Handler) ApplyOffer(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		SessionID string `json:"sessionID"`
		Code      string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid payload", nil)
		return
	}
	cart, items, err := h.Svc.ApplyOffer(r.Context(), payload.SessionID, strings.ToUpper(strings.TrimSpace(payload.Code)))
	if err != nil {
		writeCartError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": toCartView(cart, items)})
}

// RemoveOffer clears the applied code from the cart.
func (h *Handler) RemoveOffer(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		SessionID string `json:"sessionID"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid payload", nil)
		return
	}
	cart, items, err := h.Svc.RemoveOffer(r.Context(), payload.SessionID)
	if err != nil {
		writeCartError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": toCartView(cart, items)})
}

// Link attaches the authenticated user to the session's cart so the
// new-customer audience check can see their order history.
func (h *Handler) Link(w http.ResponseWriter, r *http.Request) {
	subject, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	userID, err := uuid.Parse(subject)
	if err != nil {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid subject", nil)
		return
	}
	var payload struct {
		SessionID string `json:"sessionID"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid payload", nil)
		return
	}
	cart, err := h.Svc.LinkToUser(r.Context(), payload.SessionID, userID)
	if err != nil {
		writeCartError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": toCartView(cart, nil)})
}

// Get returns the full quote for the session's cart.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("sessionID"))
	if sessionID == "" {
		sessionID = strings.TrimSpace(r.Header.Get("X-Session-ID"))
	}
	quote, err := h.Svc.BuildQuote(r.Context(), sessionID)
	if err != nil {
		writeCartError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": toQuoteView(quote)})
}

// cartView is the wire projection of a cart. Monetary fields serialize as
// 2dp decimal strings via money.Money.
type cartView struct {
	ID               uuid.UUID      `json:"id"`
	SessionID        string         `json:"sessionID"`
	Status           string         `json:"status"`
	AppliedOfferCode *string        `json:"appliedOfferCode,omitempty"`
	Items            []cartItemView `json:"items"`
	Subtotal         money.Money    `json:"subtotal"`
	DiscountAmount   money.Money    `json:"discountAmount"`
	Currency         string         `json:"currency"`
}

type cartItemView struct {
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
	UnitPrice        money.Money       `json:"unitPrice"`
	TotalPrice       money.Money       `json:"totalPrice"`
}

type quoteView struct {
	cartView
	AppliedOfferName   string      `json:"appliedOfferName,omitempty"`
	TotalAfterDiscount money.Money `json:"totalAfterDiscount"`
	DeliveryFee        money.Money `json:"deliveryFee"`
	Total              money.Money `json:"total"`
	VATEnabled         bool        `json:"vatEnabled"`
	VATRate            string      `json:"vatRate"`
	VATAmount          money.Money `json:"vatAmount"`
	NetAmount          money.Money `json:"netAmount"`
}

func toCartView(cart store.Cart, items []store.CartItem) cartView {
	views := make([]cartItemView, 0, len(items))
	for _, it := range items {
		views = append(views, cartItemView{
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
			UnitPrice:        it.UnitPrice,
			TotalPrice:       it.TotalPrice,
		})
	}
	return cartView{
		ID:               cart.ID,
		SessionID:        cart.SessionID,
		Status:           cart.Status,
		AppliedOfferCode: cart.AppliedOfferCode,
		Items:            views,
		Subtotal:         cart.Subtotal,
		DiscountAmount:   cart.DiscountAmount,
		Currency:         money.Currency,
	}
}

func toQuoteView(q Quote) quoteView {
	view := quoteView{
		cartView:           toCartView(q.Cart, q.Items),
		TotalAfterDiscount: q.TotalAfterDiscount,
		DeliveryFee:        q.DeliveryFee,
		Total:              q.Total,
		VATEnabled:         q.VATEnabled,
		VATRate:            money.FromPence(q.VATRateBps).String(),
		VATAmount:          q.VAT.VAT,
		NetAmount:          q.VAT.Net,
	}
	if q.AppliedOffer != nil {
		view.AppliedOfferName = q.AppliedOffer.DisplayName
	}
	return view
}

// writeCartError maps domain sentinels to the wire taxonomy. Each of the six
// offer eligibility failures keeps its own reason code so the UI can message
// precisely.
func writeCartError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
	case errors.Is(err, ErrNotFound), errors.Is(err, store.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "cart or item not found", nil)
	case errors.Is(err, pricing.ErrMaterialNotFound):
		common.JSONError(w, http.StatusNotFound, "MATERIAL_NOT_FOUND", err.Error(), nil)
	case errors.Is(err, pricing.ErrSizeNotFound):
		common.JSONError(w, http.StatusNotFound, "SIZE_NOT_FOUND", err.Error(), nil)
	case errors.Is(err, pricing.ErrFinishNotFound):
		common.JSONError(w, http.StatusNotFound, "FINISH_NOT_FOUND", err.Error(), nil)
	case errors.Is(err, pricing.ErrFinishRequired), errors.Is(err, pricing.ErrQuantityInvalid):
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
	case errors.Is(err, offer.ErrOfferNotFound):
		common.JSONError(w, http.StatusNotFound, "OFFER_NOT_FOUND", err.Error(), nil)
	case errors.Is(err, offer.ErrOfferInactive):
		common.JSONError(w, http.StatusUnprocessableEntity, "OFFER_INACTIVE", err.Error(), nil)
	case errors.Is(err, offer.ErrNotYetStarted):
		common.JSONError(w, http.StatusUnprocessableEntity, "OFFER_NOT_STARTED", err.Error(), nil)
	case errors.Is(err, offer.ErrExpired):
		common.JSONError(w, http.StatusUnprocessableEntity, "OFFER_EXPIRED", err.Error(), nil)
	case errors.Is(err, offer.ErrUsageLimitReached):
		common.JSONError(w, http.StatusConflict, "OFFER_USAGE_LIMIT", err.Error(), nil)
	case errors.Is(err, offer.ErrNotEligible):
		common.JSONError(w, http.StatusUnprocessableEntity, "OFFER_NOT_ELIGIBLE", err.Error(), nil)
	case errors.Is(err, offer.ErrBelowMinimum):
		common.JSONError(w, http.StatusUnprocessableEntity, "OFFER_MIN_ORDER", err.Error(), nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart operation failed", nil)
	}
}
