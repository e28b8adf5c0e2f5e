package notify

import (
	"fmt"
	"strings"

	"github.com/aurelle-london/backend-aurelle/internal/store"
)

// ConfirmationEmail renders the order confirmation message sent by the
// background worker once an order has been persisted.
func ConfirmationEmail(order store.Order, items []store.OrderItem) (subject, body string) {
	subject = fmt.Sprintf("Order %s confirmed", order.OrderNumber)

	var b strings.Builder
	fmt.Fprintf(&b, "Thank you for your order %s.\n\n", order.OrderNumber)
	for _, item := range items {
		fmt.Fprintf(&b, "%d x %s (%s) - %s %s\n",
			item.Qty, item.ProductName, item.ProductCode, order.Currency, item.TotalPrice.String())
	}
	fmt.Fprintf(&b, "\nSubtotal: %s %s\n", order.Currency, order.Subtotal.String())
	if order.Discount > 0 {
		code := "automatic offer"
		if order.AppliedOfferCode != nil && *order.AppliedOfferCode != "" {
			code = *order.AppliedOfferCode
		}
		fmt.Fprintf(&b, "Discount (%s): -%s %s\n", code, order.Currency, order.Discount.String())
	}
	fmt.Fprintf(&b, "Delivery: %s %s\n", order.Currency, order.Shipping.String())
	if order.TotalTax > 0 {
		fmt.Fprintf(&b, "Included VAT: %s %s\n", order.Currency, order.TotalTax.String())
	}
	fmt.Fprintf(&b, "Total: %s %s\n", order.Currency, order.Total.String())
	return subject, b.String()
}
