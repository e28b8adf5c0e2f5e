package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/aurelle-london/backend-aurelle/internal/common"
	"github.com/aurelle-london/backend-aurelle/internal/delivery"
	"github.com/aurelle-london/backend-aurelle/internal/events"
	"github.com/aurelle-london/backend-aurelle/internal/money"
	"github.com/aurelle-london/backend-aurelle/internal/obs"
	"github.com/aurelle-london/backend-aurelle/internal/store"
)

// The settings document is a singleton; events about it share one aggregate id.
var settingsAggregateID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

// Payload is the wire shape of the settings document. Monetary values and
// the VAT rate travel as 2dp decimal strings.
type Payload struct {
	DeliveryTiers         []TierPayload    `json:"deliveryTiers" validate:"dive"`
	FreeDeliveryThreshold ThresholdPayload `json:"freeDeliveryThreshold"`
	VATRate               string           `json:"vatRate" validate:"required"`
	VATEnabled            bool             `json:"vatEnabled"`
	Version               int64            `json:"version"`
}

// TierPayload is one delivery tier on the wire.
type TierPayload struct {
	MinAmount string  `json:"minAmount" validate:"required"`
	MaxAmount *string `json:"maxAmount,omitempty"`
	Fee       string  `json:"fee" validate:"required"`
}

// ThresholdPayload is the free-delivery threshold on the wire.
type ThresholdPayload struct {
	Enabled bool   `json:"enabled"`
	Amount  string `json:"amount"`
}

// Handler exposes the settings endpoints.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
	Events   *events.Bus
}

// Get serves the current settings for storefront and admin.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "settings service not configured", nil)
		return
	}
	current, err := h.Svc.Get(r.Context())
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "load settings", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": toPayload(current)})
}

// Update replaces the settings document (admin only, optimistic lock).
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "settings service not configured", nil)
		return
	}
	var payload Payload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(payload); err != nil {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
			return
		}
	}
	next, err := fromPayload(payload)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	updated, err := h.Svc.UpdateWithOptimisticLock(r.Context(), next, payload.Version)
	if err != nil {
		switch {
		case errors.Is(err, ErrVersionConflict):
			if obs.SettingsVersionConflicts != nil {
				obs.SettingsVersionConflicts.Inc()
			}
			common.JSONError(w, http.StatusConflict, "CONCURRENCY_CONFLICT", "settings changed concurrently, re-fetch and retry", nil)
		case errors.Is(err, ErrInvalidSettings):
			common.JSONError(w, http.StatusUnprocessableEntity, "CONSISTENCY_ERROR", err.Error(), nil)
		default:
			common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "update settings", nil)
		}
		return
	}
	if h.Events != nil {
		_, _ = h.Events.Emit(r.Context(), events.TopicSettingsUpdated, settingsAggregateID, map[string]any{
			"version": updated.Version,
		})
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": toPayload(updated)})
}

func toPayload(s store.Settings) Payload {
	tiers := make([]TierPayload, 0, len(s.DeliveryTiers))
	for _, t := range s.DeliveryTiers {
		tp := TierPayload{MinAmount: t.MinAmount.String(), Fee: t.Fee.String()}
		if t.MaxAmount != nil {
			max := t.MaxAmount.String()
			tp.MaxAmount = &max
		}
		tiers = append(tiers, tp)
	}
	return Payload{
		DeliveryTiers: tiers,
		FreeDeliveryThreshold: ThresholdPayload{
			Enabled: s.FreeDeliveryThreshold.Enabled,
			Amount:  s.FreeDeliveryThreshold.Amount.String(),
		},
		VATRate:    FormatRateBps(s.VATRateBps),
		VATEnabled: s.VATEnabled,
		Version:    s.Version,
	}
}

func fromPayload(p Payload) (store.Settings, error) {
	s := store.Settings{VATEnabled: p.VATEnabled}
	rate, err := ParseRateBps(p.VATRate)
	if err != nil {
		return store.Settings{}, err
	}
	s.VATRateBps = rate
	s.FreeDeliveryThreshold.Enabled = p.FreeDeliveryThreshold.Enabled
	if p.FreeDeliveryThreshold.Amount != "" {
		amount, err := money.Parse(p.FreeDeliveryThreshold.Amount)
		if err != nil {
			return store.Settings{}, fmt.Errorf("freeDeliveryThreshold.amount: %w", err)
		}
		s.FreeDeliveryThreshold.Amount = amount
	}
	for i, tp := range p.DeliveryTiers {
		tier := delivery.Tier{}
		if tier.MinAmount, err = money.Parse(tp.MinAmount); err != nil {
			return store.Settings{}, fmt.Errorf("tier %d minAmount: %w", i, err)
		}
		if tier.Fee, err = money.Parse(tp.Fee); err != nil {
			return store.Settings{}, fmt.Errorf("tier %d fee: %w", i, err)
		}
		if tp.MaxAmount != nil {
			max, err := money.Parse(*tp.MaxAmount)
			if err != nil {
				return store.Settings{}, fmt.Errorf("tier %d maxAmount: %w", i, err)
			}
			tier.MaxAmount = &max
		}
		s.DeliveryTiers = append(s.DeliveryTiers, tier)
	}
	return s, nil
}

// ParseRateBps converts a percent string like "20" or "12.5" to basis points.
func ParseRateBps(s string) (int64, error) {
	trimmed := strings.TrimSpace(s)
	// Rates reuse the money parser: 2dp max, digits only. "20.00"% → 2000 bps.
	m, err := money.Parse(trimmed)
	if err != nil || m < 0 {
		return 0, fmt.Errorf("invalid rate %q", s)
	}
	return m.Pence(), nil
}

// FormatRateBps renders basis points as a 2dp percent string.
func FormatRateBps(bps int64) string {
	return money.FromPence(bps).String()
}
