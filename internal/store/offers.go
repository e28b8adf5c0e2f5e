package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/aurelle-london/backend-aurelle/internal/money"
)

const offerColumns = `id, code, display_name, discount_type, discount_value, min_order_amount, max_uses, used_count, valid_from, valid_to, is_active, applicable_to, auto_apply, priority, created_at, updated_at`

func scanOffer(row pgx.Row) (Offer, error) {
	var (
		o        Offer
		minOrder int64
	)
	err := row.Scan(&o.ID, &o.Code, &o.DisplayName, &o.DiscountType, &o.DiscountValue, &minOrder,
		&o.MaxUses, &o.UsedCount, &o.ValidFrom, &o.ValidTo, &o.IsActive, &o.ApplicableTo,
		&o.AutoApply, &o.Priority, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return Offer{}, wrapNotFound(err)
	}
	o.MinOrderAmount = money.FromPence(minOrder)
	return o, nil
}

// GetOfferByCode looks up an offer by its customer-entered code.
func (q *Queries) GetOfferByCode(ctx context.Context, code string) (Offer, error) {
	row := q.db.QueryRow(ctx, `SELECT `+offerColumns+` FROM offers WHERE code = $1`, code)
	return scanOffer(row)
}

// ListActiveAutoApplyOffers returns the auto-apply candidate set. Time and
// usage filtering stays in the engine so every rejection carries its reason.
func (q *Queries) ListActiveAutoApplyOffers(ctx context.Context) ([]Offer, error) {
	rows, err := q.db.Query(ctx, `SELECT `+offerColumns+` FROM offers WHERE is_active AND auto_apply ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOffers(rows)
}

// ListOffers returns every offer for the back-office.
func (q *Queries) ListOffers(ctx context.Context) ([]Offer, error) {
	rows, err := q.db.Query(ctx, `SELECT `+offerColumns+` FROM offers ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOffers(rows)
}

func collectOffers(rows pgx.Rows) ([]Offer, error) {
	var offers []Offer
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		offers = append(offers, o)
	}
	return offers, rows.Err()
}

// CreateOffer inserts a new discount rule.
func (q *Queries) CreateOffer(ctx context.Context, o Offer) (Offer, error) {
	id := o.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	row := q.db.QueryRow(ctx, `
INSERT INTO offers (id, code, display_name, discount_type, discount_value, min_order_amount, max_uses, valid_from, valid_to, is_active, applicable_to, auto_apply, priority)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
RETURNING `+offerColumns,
		id, o.Code, o.DisplayName, o.DiscountType, o.DiscountValue, o.MinOrderAmount.Pence(),
		o.MaxUses, o.ValidFrom, o.ValidTo, o.IsActive, o.ApplicableTo, o.AutoApply, o.Priority)
	return scanOffer(row)
}

// DeactivateOffer switches an offer off without deleting its usage history.
func (q *Queries) DeactivateOffer(ctx context.Context, id uuid.UUID) error {
	tag, err := q.db.Exec(ctx, `UPDATE offers SET is_active = FALSE, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ReserveOfferUsage atomically increments used_count while the limit holds.
// Returns false when a concurrent checkout took the last slot; the late
// committer must not read-modify-write around this.
func (q *Queries) ReserveOfferUsage(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := q.db.Exec(ctx, `
UPDATE offers
SET used_count = used_count + 1, updated_at = now()
WHERE id = $1 AND is_active AND (max_uses IS NULL OR used_count < max_uses)`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ReleaseOfferUsage compensates a reservation when the order write fails on
// stores without multi-statement transactions. Inside a pgx transaction the
// rollback makes this a no-op path.
func (q *Queries) ReleaseOfferUsage(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, `UPDATE offers SET used_count = GREATEST(used_count - 1, 0), updated_at = now() WHERE id = $1`, id)
	return err
}
