// Package settings is the config service over the singleton pricing
// settings document: delivery tiers, free-delivery threshold and VAT rate.
// The row is provisioned once by migration seed; updates replace the whole
// document under an optimistic version check.
package settings

import (
	"context"
	"errors"
	"fmt"

	"github.com/aurelle-london/backend-aurelle/internal/delivery"
	"github.com/aurelle-london/backend-aurelle/internal/store"
)

// ErrVersionConflict is returned when a concurrent admin edit won the
// version race; the client should re-fetch and retry.
var ErrVersionConflict = errors.New("settings version conflict")

// ErrInvalidSettings wraps write-time validation failures.
var ErrInvalidSettings = errors.New("invalid settings")

// Querier captures the store methods the service needs.
type Querier interface {
	GetSettings(ctx context.Context) (store.Settings, error)
	ReplaceSettingsVersioned(ctx context.Context, s store.Settings, expectedVersion int64) (bool, error)
}

// Service provides Get and versioned-update access to settings.
type Service struct {
	Q Querier
}

// Get reads the latest committed settings. Checkout and cart quoting call
// this per computation; nothing caches the result.
func (s *Service) Get(ctx context.Context) (store.Settings, error) {
	if s == nil || s.Q == nil {
		return store.Settings{}, errors.New("settings service not configured")
	}
	return s.Q.GetSettings(ctx)
}

// UpdateWithOptimisticLock validates and replaces the document when
// expectedVersion matches the committed version.
func (s *Service) UpdateWithOptimisticLock(ctx context.Context, next store.Settings, expectedVersion int64) (store.Settings, error) {
	if s == nil || s.Q == nil {
		return store.Settings{}, errors.New("settings service not configured")
	}
	if err := Validate(next); err != nil {
		return store.Settings{}, err
	}
	ok, err := s.Q.ReplaceSettingsVersioned(ctx, next, expectedVersion)
	if err != nil {
		return store.Settings{}, err
	}
	if !ok {
		return store.Settings{}, ErrVersionConflict
	}
	return s.Q.GetSettings(ctx)
}

// Validate enforces the write-time invariants: non-overlapping sorted tiers,
// a VAT rate within [0,100]%, and non-negative threshold.
func Validate(s store.Settings) error {
	if err := delivery.ValidateTiers(s.DeliveryTiers); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	if s.VATRateBps < 0 || s.VATRateBps > 10000 {
		return fmt.Errorf("%w: vat rate out of range", ErrInvalidSettings)
	}
	if s.FreeDeliveryThreshold.Amount < 0 {
		return fmt.Errorf("%w: negative free delivery threshold", ErrInvalidSettings)
	}
	for i, t := range s.DeliveryTiers {
		if t.Fee < 0 || t.MinAmount < 0 {
			return fmt.Errorf("%w: negative amount in tier %d", ErrInvalidSettings, i)
		}
	}
	return nil
}
