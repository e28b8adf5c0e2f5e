package store

import (
	"context"
	"time"

	"github.com/aurelle-london/backend-aurelle/internal/money"
)

// RevenueDailyRow aggregates completed orders for one calendar day.
type RevenueDailyRow struct {
	Day      time.Time   `json:"day"`
	Orders   int64       `json:"orders"`
	Gross    money.Money `json:"gross"`
	Discount money.Money `json:"discount"`
	Net      money.Money `json:"net"`
}

// TopOfferRow counts redemptions and discount spend per offer code.
type TopOfferRow struct {
	Code          string      `json:"code"`
	Redemptions   int64       `json:"redemptions"`
	DiscountTotal money.Money `json:"discountTotal"`
}

// RevenueDailyRange returns per-day order counts and totals, inclusive of
// from and exclusive of to. Cancelled orders are excluded.
func (q *Queries) RevenueDailyRange(ctx context.Context, from, to time.Time) ([]RevenueDailyRow, error) {
	rows, err := q.db.Query(ctx, `
SELECT date_trunc('day', created_at) AS day,
       count(*) AS orders,
       coalesce(sum(pricing_subtotal), 0) AS gross,
       coalesce(sum(pricing_discount), 0) AS discount,
       coalesce(sum(pricing_total), 0) AS net
FROM orders
WHERE created_at >= $1 AND created_at < $2 AND status <> 'cancelled'
GROUP BY 1 ORDER BY 1`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []RevenueDailyRow
	for rows.Next() {
		var (
			r                    RevenueDailyRow
			gross, discount, net int64
		)
		if err := rows.Scan(&r.Day, &r.Orders, &gross, &discount, &net); err != nil {
			return nil, err
		}
		r.Gross = money.FromPence(gross)
		r.Discount = money.FromPence(discount)
		r.Net = money.FromPence(net)
		result = append(result, r)
	}
	return result, rows.Err()
}

// TopOffers ranks offer codes by redemption count over non-cancelled orders.
func (q *Queries) TopOffers(ctx context.Context, limit int32) ([]TopOfferRow, error) {
	rows, err := q.db.Query(ctx, `
SELECT applied_offer_code, count(*), coalesce(sum(pricing_discount), 0)
FROM orders
WHERE applied_offer_code IS NOT NULL AND status <> 'cancelled'
GROUP BY applied_offer_code
ORDER BY count(*) DESC, applied_offer_code
LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []TopOfferRow
	for rows.Next() {
		var (
			r        TopOfferRow
			discount int64
		)
		if err := rows.Scan(&r.Code, &r.Redemptions, &discount); err != nil {
			return nil, err
		}
		r.DiscountTotal = money.FromPence(discount)
		result = append(result, r)
	}
	return result, rows.Err()
}
