package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Status is the canonical fulfilment status of an order
type Status string

// Order statuses
const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// Valid reports whether s belongs to the canonical status domain
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Role of an actor
type Role string

// Roles
const (
	RoleAdmin       Role = "admin"
	RoleSalesperson Role = "salesperson"
	RoleCustomer    Role = "customer"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleSalesperson || r == RoleCustomer
}

// Client access types for salespersons
const (
	ClientAccessMaster = "master"
	ClientAccessOwn    = "own"
)

// Contact preferences
const (
	ContactEmail    = "email"
	ContactPhone    = "phone"
	ContactWhatsApp = "whatsapp"
)

// ValidContactPreference reports whether p is accepted; empty means unset
func ValidContactPreference(p string) bool {
	switch p {
	case "", ContactEmail, ContactPhone, ContactWhatsApp:
		return true
	}
	return false
}

// Action is a permission action
type Action string

// Permission actions
const (
	ActionView   Action = "view"
	ActionCreate Action = "create"
	ActionEdit   Action = "edit"
	ActionDelete Action = "delete"
)

// Permission resources
const (
	ResourceOrders      = "orders"
	ResourceCustomers   = "customers"
	ResourceAuditLog    = "audit_log"
	ResourceDocuments   = "documents"
	ResourcePermissions = "permissions"
)

// AuditAction is the kind of change an audit entry records
type AuditAction string

// Audit actions
const (
	AuditCreated       AuditAction = "created"
	AuditUpdated       AuditAction = "updated"
	AuditStatusChanged AuditAction = "status_changed"
	AuditItemAdded     AuditAction = "item_added"
	AuditItemRemoved   AuditAction = "item_removed"
	AuditItemUpdated   AuditAction = "item_updated"
)

// Actor is the externally authenticated identity performing an operation
type Actor struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  Role   `json:"role"`
}

// System is the actor used for automatic operations
var System = Actor{}

// IsSystem reports whether the actor is the system itself
func (a Actor) IsSystem() bool {
	return a.ID == "" && a.Email == ""
}

// Order represents a customer quote request
type Order struct {
	ID                int64           `db:"id" json:"id"`
	OrderNumber       string          `db:"order_number" json:"order_number"`
	Status            Status          `db:"status" json:"status"`
	CustomerEmail     string          `db:"customer_email" json:"customer_email"`
	Subtotal          decimal.Decimal `db:"subtotal" json:"subtotal"`
	ShippingCost      decimal.Decimal `db:"shipping_cost" json:"shipping_cost"`
	Total             decimal.Decimal `db:"total" json:"total"`
	PaymentTerms      string          `db:"payment_terms" json:"payment_terms"`
	DeliveryTerms     string          `db:"delivery_terms" json:"delivery_terms"`
	ValidityTerms     string          `db:"validity_terms" json:"validity_terms"`
	Notes             string          `db:"notes" json:"notes"`
	SalespersonID     *string         `db:"salesperson_id" json:"salesperson_id,omitempty"`
	ContactPreference string          `db:"contact_preference" json:"contact_preference"`
	Version           int             `db:"version" json:"version"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updated_at"`
}

// Recalculate derives subtotal and total from the given items
func (o *Order) Recalculate(items []OrderItem) {
	subtotal := decimal.Zero
	for i := range items {
		subtotal = subtotal.Add(items[i].LineTotal())
	}
	o.Subtotal = subtotal
	o.Total = subtotal.Add(o.ShippingCost)
}

// OrderItem represents one line of an order
type OrderItem struct {
	ID               int64           `db:"id" json:"id"`
	OrderID          int64           `db:"order_id" json:"order_id"`
	ProductID        *int64          `db:"product_id" json:"product_id,omitempty"`
	CustomName       string          `db:"custom_name" json:"custom_name,omitempty"`
	CustomImage      string          `db:"custom_image" json:"custom_image,omitempty"`
	Quantity         int             `db:"quantity" json:"quantity"`
	UnitPrice        decimal.Decimal `db:"unit_price" json:"unit_price"`
	SelectedVariants Variants        `db:"selected_variants" json:"selected_variants"`
}

// LineTotal is quantity times unit price
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Variants maps a variant name to the chosen option
type Variants map[string]string

// Value stores variants as JSONB
func (v Variants) Value() (driver.Value, error) {
	if v == nil {
		return "{}", nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// Scan reads variants from a JSONB column
func (v *Variants) Scan(src interface{}) error {
	var data []byte
	switch s := src.(type) {
	case []byte:
		data = s
	case string:
		data = []byte(s)
	case nil:
		*v = Variants{}
		return nil
	default:
		return fmt.Errorf("unsupported variants column type %T", src)
	}
	out := Variants{}
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("decode variants: %w", err)
	}
	*v = out
	return nil
}

// Product is the read-only catalog view needed by the order subsystem
type Product struct {
	ID           int64          `db:"id" json:"id"`
	Name         string         `db:"name" json:"name"`
	ImageURL     string         `db:"image_url" json:"image_url"`
	VariantNames pq.StringArray `db:"variant_names" json:"variant_names"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
}

// UnknownVariants returns the selected variant names the product does not offer
func (p *Product) UnknownVariants(selected Variants) []string {
	known := make(map[string]bool, len(p.VariantNames))
	for _, n := range p.VariantNames {
		known[n] = true
	}
	var unknown []string
	for name := range selected {
		if !known[name] {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// Profile is a customer, salesperson or admin profile
type Profile struct {
	ID               string    `db:"id" json:"id"`
	Email            string    `db:"email" json:"email"`
	DisplayName      string    `db:"display_name" json:"display_name"`
	Phone            string    `db:"phone" json:"phone"`
	Company          string    `db:"company" json:"company"`
	Role             Role      `db:"role" json:"role"`
	ClientAccessType string    `db:"client_access_type" json:"client_access_type,omitempty"`
	SalespersonID    *string   `db:"salesperson_id" json:"salesperson_id,omitempty"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

// Resource is a named area of functionality permissions are granted on
type Resource struct {
	Name        string `db:"name" json:"name"`
	Description string `db:"description" json:"description"`
}

// ResourcePermission grants capabilities on a resource to a role
type ResourcePermission struct {
	Role      Role   `db:"role" json:"role"`
	Resource  string `db:"resource" json:"resource"`
	CanView   bool   `db:"can_view" json:"can_view"`
	CanCreate bool   `db:"can_create" json:"can_create"`
	CanEdit   bool   `db:"can_edit" json:"can_edit"`
	CanDelete bool   `db:"can_delete" json:"can_delete"`
}

// Allows returns the flag for action
func (p *ResourcePermission) Allows(action Action) bool {
	switch action {
	case ActionView:
		return p.CanView
	case ActionCreate:
		return p.CanCreate
	case ActionEdit:
		return p.CanEdit
	case ActionDelete:
		return p.CanDelete
	}
	return false
}
