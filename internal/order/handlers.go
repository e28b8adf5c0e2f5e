package order

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/aurelle-london/backend-aurelle/internal/common"
	"github.com/aurelle-london/backend-aurelle/internal/store"
)

// Handler exposes storefront order endpoints.
type Handler struct {
	Svc *Service
}

// List returns the session's orders, newest first.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order service not configured", nil)
		return
	}
	sessionID := strings.TrimSpace(r.URL.Query().Get("sessionID"))
	if sessionID == "" {
		sessionID = strings.TrimSpace(r.Header.Get("X-Session-ID"))
	}
	if sessionID == "" {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "sessionID is required", nil)
		return
	}
	page, perPage := common.ParsePagination(r, 20)
	if perPage > 100 {
		perPage = 100
	}
	offset := int32((page - 1) * perPage)
	orders, err := h.Svc.ListBySession(r.Context(), sessionID, int32(perPage), offset)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to list orders", nil)
		return
	}
	views := make([]View, 0, len(orders))
	for _, o := range orders {
		views = append(views, ToView(o, nil))
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data": views,
		"meta": map[string]any{"page": page, "perPage": perPage},
	})
}

// Get returns one order with its items.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order service not configured", nil)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid order id", nil)
		return
	}
	o, items, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to load order", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": ToView(o, items)})
}

// History returns the append-only status history for one kind
// (?kind=order|payment, defaulting to order).
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order service not configured", nil)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid order id", nil)
		return
	}
	kind := r.URL.Query().Get("kind")
	if kind == "" {
		kind = store.HistoryKindOrder
	}
	entries, err := h.Svc.History(r.Context(), id, kind)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to load history", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": ToHistoryViews(entries)})
}
