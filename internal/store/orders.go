package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/aurelle-london/backend-aurelle/internal/money"
)

const orderColumns = `id, order_number, cart_id, session_id, user_id, status, payment_status, currency, applied_offer_code, offer_id, pricing_subtotal, pricing_discount, pricing_shipping, pricing_total_tax, pricing_total, vat_rate_bps, delivery_address_id, notes, created_at`

func scanOrder(row pgx.Row) (Order, error) {
	var (
		o                                         Order
		subtotal, discount, shipping, tax, total int64
	)
	err := row.Scan(&o.ID, &o.OrderNumber, &o.CartID, &o.SessionID, &o.UserID, &o.Status, &o.PaymentStatus,
		&o.Currency, &o.AppliedOfferCode, &o.OfferID, &subtotal, &discount, &shipping, &tax, &total,
		&o.VATRateBps, &o.DeliveryAddress, &o.Notes, &o.CreatedAt)
	if err != nil {
		return Order{}, wrapNotFound(err)
	}
	o.Subtotal = money.FromPence(subtotal)
	o.Discount = money.FromPence(discount)
	o.Shipping = money.FromPence(shipping)
	o.TotalTax = money.FromPence(tax)
	o.Total = money.FromPence(total)
	return o, nil
}

// CreateOrder writes the immutable order header. Order numbers come from a
// dedicated sequence so they stay short and human-readable.
func (q *Queries) CreateOrder(ctx context.Context, o Order) (Order, error) {
	id := o.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	row := q.db.QueryRow(ctx, `
INSERT INTO orders (id, order_number, cart_id, session_id, user_id, status, payment_status, currency, applied_offer_code, offer_id, pricing_subtotal, pricing_discount, pricing_shipping, pricing_total_tax, pricing_total, vat_rate_bps, delivery_address_id, notes)
VALUES ($1, 'AUR-' || to_char(now(), 'YYYYMMDD') || '-' || lpad(nextval('order_number_seq')::text, 5, '0'),
        $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
RETURNING `+orderColumns,
		id, o.CartID, o.SessionID, o.UserID, o.Status, o.PaymentStatus, o.Currency,
		o.AppliedOfferCode, o.OfferID, o.Subtotal.Pence(), o.Discount.Pence(), o.Shipping.Pence(),
		o.TotalTax.Pence(), o.Total.Pence(), o.VATRateBps, o.DeliveryAddress, o.Notes)
	return scanOrder(row)
}

// GetOrderByID loads an order header.
func (q *Queries) GetOrderByID(ctx context.Context, id uuid.UUID) (Order, error) {
	row := q.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	return scanOrder(row)
}

// ListOrdersBySession returns a session's orders, newest first.
func (q *Queries) ListOrdersBySession(ctx context.Context, sessionID string, limit, offset int32) ([]Order, error) {
	rows, err := q.db.Query(ctx, `SELECT `+orderColumns+` FROM orders WHERE session_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		sessionID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// CountOrdersByUser supports the new-customer eligibility check.
func (q *Queries) CountOrdersByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, `SELECT count(*) FROM orders WHERE user_id = $1`, userID).Scan(&count)
	return count, err
}

// CreateOrderItem writes one snapshot line.
func (q *Queries) CreateOrderItem(ctx context.Context, it OrderItem) error {
	breakdownJSON, err := json.Marshal(it.Breakdown)
	if err != nil {
		return fmt.Errorf("encode breakdown: %w", err)
	}
	id := it.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	_, err = q.db.Exec(ctx, `
INSERT INTO order_items (id, order_id, product_id, product_code, product_name, material_ref, size_mm, finish_ref, include_packaging, qty, breakdown, item_discount, unit_price, total_price)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		id, it.OrderID, it.ProductID, it.ProductCode, it.ProductName, it.MaterialRef, it.SizeMM,
		it.FinishRef, it.IncludePackaging, it.Qty, breakdownJSON, it.ItemDiscount.Pence(),
		it.UnitPrice.Pence(), it.TotalPrice.Pence())
	return err
}

// ListOrderItems returns the snapshot lines in insertion order.
func (q *Queries) ListOrderItems(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, `
SELECT id, order_id, product_id, product_code, product_name, material_ref, size_mm, finish_ref, include_packaging, qty, breakdown, item_discount, unit_price, total_price
FROM order_items WHERE order_id = $1 ORDER BY created_at`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []OrderItem
	for rows.Next() {
		var (
			it                    OrderItem
			breakdownJSON         []byte
			itemDisc, unit, total int64
		)
		err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductCode, &it.ProductName,
			&it.MaterialRef, &it.SizeMM, &it.FinishRef, &it.IncludePackaging, &it.Qty,
			&breakdownJSON, &itemDisc, &unit, &total)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(breakdownJSON, &it.Breakdown); err != nil {
			return nil, fmt.Errorf("decode breakdown: %w", err)
		}
		it.ItemDiscount = money.FromPence(itemDisc)
		it.UnitPrice = money.FromPence(unit)
		it.TotalPrice = money.FromPence(total)
		items = append(items, it)
	}
	return items, rows.Err()
}

// AppendStatusHistory adds an append-only history record.
func (q *Queries) AppendStatusHistory(ctx context.Context, orderID uuid.UUID, kind, status string, note *string) error {
	_, err := q.db.Exec(ctx, `
INSERT INTO order_status_history (id, order_id, kind, status, note)
VALUES ($1, $2, $3, $4, $5)`, uuid.New(), orderID, kind, status, note)
	return err
}

// ListStatusHistory reads an order's history oldest first.
func (q *Queries) ListStatusHistory(ctx context.Context, orderID uuid.UUID, kind string) ([]StatusHistoryEntry, error) {
	rows, err := q.db.Query(ctx, `
SELECT id, order_id, kind, status, note, created_at
FROM order_status_history WHERE order_id = $1 AND kind = $2 ORDER BY created_at`, orderID, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []StatusHistoryEntry
	for rows.Next() {
		var e StatusHistoryEntry
		if err := rows.Scan(&e.ID, &e.OrderID, &e.Kind, &e.Status, &e.Note, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// UpdateOrderStatus moves the order to a new status. Pricing fields are never
// touched; corrections happen via refund/adjustment records.
func (q *Queries) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, status string) error {
	tag, err := q.db.Exec(ctx, `UPDATE orders SET status = $2 WHERE id = $1`, orderID, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
