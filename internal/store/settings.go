package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aurelle-london/backend-aurelle/internal/delivery"
	"github.com/aurelle-london/backend-aurelle/internal/money"
)

// The settings singleton is provisioned by migration seed; there is no
// find-or-create path at read time.

// GetSettings reads the latest committed settings document.
func (q *Queries) GetSettings(ctx context.Context) (Settings, error) {
	row := q.db.QueryRow(ctx, `
SELECT delivery_tiers, free_delivery_enabled, free_delivery_amount, vat_rate_bps, vat_enabled, version, updated_at
FROM settings WHERE id = 1`)
	var (
		s         Settings
		tiersJSON []byte
		freeAmt   int64
	)
	err := row.Scan(&tiersJSON, &s.FreeDeliveryThreshold.Enabled, &freeAmt, &s.VATRateBps, &s.VATEnabled, &s.Version, &s.UpdatedAt)
	if err != nil {
		return Settings{}, wrapNotFound(err)
	}
	s.FreeDeliveryThreshold.Amount = money.FromPence(freeAmt)
	if len(tiersJSON) > 0 {
		if err := json.Unmarshal(tiersJSON, &s.DeliveryTiers); err != nil {
			return Settings{}, fmt.Errorf("decode delivery tiers: %w", err)
		}
	}
	return s, nil
}

// ReplaceSettingsVersioned swaps the whole document when the caller's version
// matches. Returns false on a version conflict so concurrent admin edits
// never interleave partial tier lists.
func (q *Queries) ReplaceSettingsVersioned(ctx context.Context, s Settings, expectedVersion int64) (bool, error) {
	tiersJSON, err := json.Marshal(s.DeliveryTiers)
	if err != nil {
		return false, fmt.Errorf("encode delivery tiers: %w", err)
	}
	tag, err := q.db.Exec(ctx, `
UPDATE settings
SET delivery_tiers = $1,
    free_delivery_enabled = $2,
    free_delivery_amount = $3,
    vat_rate_bps = $4,
    vat_enabled = $5,
    version = version + 1,
    updated_at = now()
WHERE id = 1 AND version = $6`,
		tiersJSON, s.FreeDeliveryThreshold.Enabled, s.FreeDeliveryThreshold.Amount.Pence(),
		s.VATRateBps, s.VATEnabled, expectedVersion)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Tiers converts stored tiers for the resolver; kept for symmetry with the
// typed getters elsewhere.
func (s Settings) Tiers() []delivery.Tier {
	return s.DeliveryTiers
}
