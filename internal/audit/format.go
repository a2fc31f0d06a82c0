package audit

import (
	"fmt"
	"strings"

	"quote-service/internal/changes"
	"quote-service/internal/models"
)

// FormattedChange is one human readable line of an audit entry
type FormattedChange struct {
	Field string `json:"field"`
	Old   string `json:"old"`
	New   string `json:"new"`
}

// FormattedEntry is the presentation of an audit entry
type FormattedEntry struct {
	ID      int64              `json:"id"`
	Code    models.AuditAction `json:"code"`
	Action  string             `json:"action"`
	Actor   string             `json:"actor"`
	At      string             `json:"at"`
	Changes []FormattedChange  `json:"changes"`
}

var actionLabels = map[models.AuditAction]string{
	models.AuditCreated:       "Order created",
	models.AuditUpdated:       "Order updated",
	models.AuditStatusChanged: "Status changed",
	models.AuditItemAdded:     "Item added",
	models.AuditItemRemoved:   "Item removed",
	models.AuditItemUpdated:   "Item updated",
}

var fieldLabels = map[string]string{
	"order_number":       "Order number",
	"status":             "Status",
	"customer_email":     "Customer email",
	"payment_terms":      "Payment terms",
	"delivery_terms":     "Delivery terms",
	"validity_terms":     "Validity",
	"notes":              "Notes",
	"shipping_cost":      "Shipping",
	"subtotal":           "Subtotal",
	"total":              "Total",
	"salesperson_id":     "Salesperson",
	"contact_preference": "Contact preference",
	"product_id":         "Product",
	"custom_name":        "Name",
	"custom_image":       "Image",
	"quantity":           "Quantity",
	"unit_price":         "Unit price",
	"selected_variants":  "Variants",
}

var moneyFields = map[string]bool{
	"shipping_cost": true,
	"subtotal":      true,
	"total":         true,
	"unit_price":    true,
}

// Display labels for statuses. The second group never appears as a stored order status;
// it is recognised so entries imported from the legacy admin still read well.
var statusLabels = map[string]string{
	"pending":    "Pending",
	"processing": "Processing",
	"completed":  "Completed",
	"cancelled":  "Cancelled",

	"approved":  "Approved",
	"rejected":  "Rejected",
	"shipped":   "Shipped",
	"delivered": "Delivered",
	"sold":      "Sold",
	"lost":      "Lost",
}

// Formatter renders stored entries for display
type Formatter struct {
	Currency   string
	TimeLayout string
}

// NewFormatter creates a formatter for the given currency symbol
func NewFormatter(currency string) *Formatter {
	return &Formatter{Currency: currency, TimeLayout: "2006-01-02 15:04"}
}

// Format renders an entry. The stored entry is not modified.
func (f *Formatter) Format(e models.AuditLogEntry) FormattedEntry {
	out := FormattedEntry{
		ID:     e.ID,
		Code:   e.Action,
		Action: actionLabel(e.Action),
		Actor:  actorLabel(e),
		At:     e.CreatedAt.Format(f.TimeLayout),
	}

	for _, key := range e.Changes.Fields() {
		ch := e.Changes[key]
		field := baseField(key)
		out.Changes = append(out.Changes, FormattedChange{
			Field: f.fieldLabel(key),
			Old:   f.value(field, ch.Old),
			New:   f.value(field, ch.New),
		})
	}
	return out
}

// FormatAll renders entries keeping their order
func (f *Formatter) FormatAll(entries []models.AuditLogEntry) []FormattedEntry {
	out := make([]FormattedEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, f.Format(e))
	}
	return out
}

func (f *Formatter) value(field string, v changes.Value) string {
	if v.IsNull() {
		return "-"
	}
	switch {
	case field == "status":
		if label, ok := statusLabels[v.Str()]; ok {
			return label
		}
	case moneyFields[field] && v.Kind() == changes.KindNumber:
		return strings.TrimSpace(fmt.Sprintf("%s %s", f.Currency, v.Num().StringFixed(2)))
	}
	return v.Display()
}

func (f *Formatter) fieldLabel(key string) string {
	label := fieldLabels[baseField(key)]
	if label == "" {
		label = key
	}
	if strings.HasPrefix(key, "items.") {
		parts := strings.SplitN(key, ".", 3)
		if len(parts) == 3 {
			return fmt.Sprintf("Item #%s %s", parts[1], strings.ToLower(label))
		}
	}
	return label
}

func baseField(key string) string {
	if i := strings.LastIndex(key, "."); i >= 0 {
		return key[i+1:]
	}
	return key
}

func actionLabel(a models.AuditAction) string {
	if label, ok := actionLabels[a]; ok {
		return label
	}
	return string(a)
}

func actorLabel(e models.AuditLogEntry) string {
	switch {
	case e.ActorName != nil && *e.ActorName != "":
		return *e.ActorName
	case e.ActorEmail != nil && *e.ActorEmail != "":
		return *e.ActorEmail
	case e.ActorID != nil:
		return *e.ActorID
	}
	return "System"
}

// StatusLabel is the display label of a status value
func StatusLabel(status string) string {
	if label, ok := statusLabels[status]; ok {
		return label
	}
	return status
}
