package models

import (
	"net/mail"
	"strings"

	"quote-service/internal/apperr"

	"github.com/shopspring/decimal"
)

// MoneyScale is the number of decimal places amounts are stored with
const MoneyScale = 2

// Validate checks the item fields a caller controls
func (i *OrderItem) Validate() error {
	if i.Quantity < 1 {
		return apperr.Validation("quantity", "must be at least 1")
	}
	if err := ValidateAmount("unit_price", i.UnitPrice); err != nil {
		return err
	}
	if i.ProductID == nil && strings.TrimSpace(i.CustomName) == "" {
		return apperr.Validation("custom_name", "is required when no product is referenced")
	}
	return nil
}

// ValidateAmount rejects negative amounts and amounts the store would have to round
func ValidateAmount(field string, d decimal.Decimal) error {
	if d.IsNegative() {
		return apperr.Validation(field, "must not be negative")
	}
	if !d.Equal(d.Truncate(MoneyScale)) {
		return apperr.Validation(field, "must have at most 2 decimal places")
	}
	return nil
}

// ValidateCustomerEmail checks that email is present and well formed
func ValidateCustomerEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return apperr.Validation("customer_email", "is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return apperr.Validation("customer_email", "is not a valid address")
	}
	return nil
}
