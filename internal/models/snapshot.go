package models

import (
	"fmt"

	"quote-service/internal/changes"
)

// Fields tracked on an order for each class of audit action
var (
	OrderCreatedFields = []string{
		"order_number", "status", "customer_email", "payment_terms", "delivery_terms",
		"validity_terms", "notes", "shipping_cost", "subtotal", "total",
		"salesperson_id", "contact_preference",
	}
	OrderTermsFields = []string{
		"payment_terms", "delivery_terms", "validity_terms", "notes", "shipping_cost",
		"salesperson_id", "contact_preference", "subtotal", "total",
	}
	OrderTotalsFields = []string{"subtotal", "total"}
	OrderStatusFields = []string{"status"}

	ItemFields = []string{
		"product_id", "custom_name", "custom_image", "quantity", "unit_price", "selected_variants",
	}
)

// Snapshot captures the tracked state of the order
func (o *Order) Snapshot() changes.Snapshot {
	return changes.Snapshot{
		"order_number":       changes.String(o.OrderNumber),
		"status":             changes.String(string(o.Status)),
		"customer_email":     changes.String(o.CustomerEmail),
		"payment_terms":      changes.String(o.PaymentTerms),
		"delivery_terms":     changes.String(o.DeliveryTerms),
		"validity_terms":     changes.String(o.ValidityTerms),
		"notes":              changes.String(o.Notes),
		"shipping_cost":      changes.Number(o.ShippingCost),
		"subtotal":           changes.Number(o.Subtotal),
		"total":              changes.Number(o.Total),
		"salesperson_id":     changes.OptionalString(o.SalespersonID),
		"contact_preference": changes.String(o.ContactPreference),
	}
}

// Snapshot captures the tracked state of the item
func (i *OrderItem) Snapshot() changes.Snapshot {
	return changes.Snapshot{
		"product_id":        changes.OptionalInt(i.ProductID),
		"custom_name":       changes.String(i.CustomName),
		"custom_image":      changes.String(i.CustomImage),
		"quantity":          changes.Int(int64(i.Quantity)),
		"unit_price":        changes.Number(i.UnitPrice),
		"selected_variants": changes.Map(i.SelectedVariants),
	}
}

// ItemChanges diffs two item snapshots and keys the result by item, e.g. "items.12.quantity".
// Pass a nil snapshot for the side where the item does not exist.
func ItemChanges(itemID int64, old, new changes.Snapshot) changes.Changes {
	diff := changes.Detect(old, new, ItemFields)
	out := make(changes.Changes, len(diff))
	for field, ch := range diff {
		out[ItemFieldKey(itemID, field)] = ch
	}
	return out
}

// ItemFieldKey is the audit key of an item field
func ItemFieldKey(itemID int64, field string) string {
	return fmt.Sprintf("items.%d.%s", itemID, field)
}
