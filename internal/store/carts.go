package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/aurelle-london/backend-aurelle/internal/money"
	"github.com/aurelle-london/backend-aurelle/internal/pricing"
)

const cartColumns = `id, session_id, user_id, status, applied_offer_code, subtotal, discount_amount, created_at, updated_at`

func scanCart(row pgx.Row) (Cart, error) {
	var (
		c           Cart
		subtotal    int64
		discountAmt int64
	)
	err := row.Scan(&c.ID, &c.SessionID, &c.UserID, &c.Status, &c.AppliedOfferCode, &subtotal, &discountAmt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return Cart{}, wrapNotFound(err)
	}
	c.Subtotal = money.FromPence(subtotal)
	c.DiscountAmount = money.FromPence(discountAmt)
	return c, nil
}

// GetActiveCartBySession returns the single active cart for a session.
func (q *Queries) GetActiveCartBySession(ctx context.Context, sessionID string) (Cart, error) {
	row := q.db.QueryRow(ctx, `SELECT `+cartColumns+` FROM carts WHERE session_id = $1 AND status = 'active'`, sessionID)
	return scanCart(row)
}

// GetCartByID returns a cart regardless of status.
func (q *Queries) GetCartByID(ctx context.Context, id uuid.UUID) (Cart, error) {
	row := q.db.QueryRow(ctx, `SELECT `+cartColumns+` FROM carts WHERE id = $1`, id)
	return scanCart(row)
}

// CreateCart inserts a fresh active cart. The partial unique index on
// (session_id) WHERE status = 'active' turns a concurrent create into a
// unique violation the caller resolves by re-reading.
func (q *Queries) CreateCart(ctx context.Context, sessionID string, userID *uuid.UUID) (Cart, error) {
	row := q.db.QueryRow(ctx, `
INSERT INTO carts (id, session_id, user_id, status)
VALUES ($1, $2, $3, 'active')
RETURNING `+cartColumns, uuid.New(), sessionID, userID)
	return scanCart(row)
}

// LinkCartToUser attaches a user to a cart without changing its identity.
func (q *Queries) LinkCartToUser(ctx context.Context, cartID, userID uuid.UUID) error {
	_, err := q.db.Exec(ctx, `UPDATE carts SET user_id = $2, updated_at = now() WHERE id = $1`, cartID, userID)
	return err
}

// UpdateCartTotals persists the derived subtotal/discount pair after a
// recomputation.
func (q *Queries) UpdateCartTotals(ctx context.Context, cartID uuid.UUID, subtotal, discount money.Money) error {
	_, err := q.db.Exec(ctx, `UPDATE carts SET subtotal = $2, discount_amount = $3, updated_at = now() WHERE id = $1`,
		cartID, subtotal.Pence(), discount.Pence())
	return err
}

// UpdateCartOffer sets or clears the applied offer code.
func (q *Queries) UpdateCartOffer(ctx context.Context, cartID uuid.UUID, code *string) error {
	_, err := q.db.Exec(ctx, `UPDATE carts SET applied_offer_code = $2, updated_at = now() WHERE id = $1`, cartID, code)
	return err
}

// CompleteCart marks the source cart completed, guarded against repeat
// checkouts of the same cart.
func (q *Queries) CompleteCart(ctx context.Context, cartID uuid.UUID) (bool, error) {
	tag, err := q.db.Exec(ctx, `UPDATE carts SET status = 'completed', updated_at = now() WHERE id = $1 AND status = 'active'`, cartID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

const cartItemColumns = `id, cart_id, product_id, product_code, product_name, material_ref, size_mm, finish_ref, include_packaging, qty, breakdown, unit_price, total_price`

func scanCartItem(row pgx.Row) (CartItem, error) {
	var (
		it            CartItem
		breakdownJSON []byte
		unit, total   int64
	)
	err := row.Scan(&it.ID, &it.CartID, &it.ProductID, &it.ProductCode, &it.ProductName,
		&it.MaterialRef, &it.SizeMM, &it.FinishRef, &it.IncludePackaging, &it.Qty,
		&breakdownJSON, &unit, &total)
	if err != nil {
		return CartItem{}, wrapNotFound(err)
	}
	if err := json.Unmarshal(breakdownJSON, &it.Breakdown); err != nil {
		return CartItem{}, fmt.Errorf("decode breakdown: %w", err)
	}
	it.UnitPrice = money.FromPence(unit)
	it.TotalPrice = money.FromPence(total)
	return it, nil
}

// ListCartItems returns the cart's items in insertion order.
func (q *Queries) ListCartItems(ctx context.Context, cartID uuid.UUID) ([]CartItem, error) {
	rows, err := q.db.Query(ctx, `SELECT `+cartItemColumns+` FROM cart_items WHERE cart_id = $1 ORDER BY created_at`, cartID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CartItem
	for rows.Next() {
		it, err := scanCartItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// GetCartItemByID loads one item.
func (q *Queries) GetCartItemByID(ctx context.Context, id uuid.UUID) (CartItem, error) {
	row := q.db.QueryRow(ctx, `SELECT `+cartItemColumns+` FROM cart_items WHERE id = $1`, id)
	return scanCartItem(row)
}

func marshalBreakdown(b pricing.Breakdown) ([]byte, error) {
	encoded, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("encode breakdown: %w", err)
	}
	return encoded, nil
}

// CreateCartItem inserts a priced line.
func (q *Queries) CreateCartItem(ctx context.Context, it CartItem) (CartItem, error) {
	breakdownJSON, err := marshalBreakdown(it.Breakdown)
	if err != nil {
		return CartItem{}, err
	}
	id := it.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	row := q.db.QueryRow(ctx, `
INSERT INTO cart_items (id, cart_id, product_id, product_code, product_name, material_ref, size_mm, finish_ref, include_packaging, qty, breakdown, unit_price, total_price)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
RETURNING `+cartItemColumns,
		id, it.CartID, it.ProductID, it.ProductCode, it.ProductName, it.MaterialRef, it.SizeMM,
		it.FinishRef, it.IncludePackaging, it.Qty, breakdownJSON, it.UnitPrice.Pence(), it.TotalPrice.Pence())
	return scanCartItem(row)
}

// UpdateCartItemPricing rewrites a line after repricing.
func (q *Queries) UpdateCartItemPricing(ctx context.Context, it CartItem) error {
	breakdownJSON, err := marshalBreakdown(it.Breakdown)
	if err != nil {
		return err
	}
	_, err = q.db.Exec(ctx, `
UPDATE cart_items
SET qty = $2, breakdown = $3, unit_price = $4, total_price = $5, updated_at = now()
WHERE id = $1`,
		it.ID, it.Qty, breakdownJSON, it.UnitPrice.Pence(), it.TotalPrice.Pence())
	return err
}

// DeleteCartItem removes a line scoped to its cart.
func (q *Queries) DeleteCartItem(ctx context.Context, cartID, itemID uuid.UUID) error {
	_, err := q.db.Exec(ctx, `DELETE FROM cart_items WHERE id = $1 AND cart_id = $2`, itemID, cartID)
	return err
}
