package models

import (
	"testing"

	"quote-service/internal/apperr"

	"github.com/stretchr/testify/assert"
)

func TestOrderItemValidate(t *testing.T) {
	pid := int64(1)

	tests := []struct {
		name    string
		item    OrderItem
		wantErr bool
	}{
		{"catalog item", OrderItem{ProductID: &pid, Quantity: 1, UnitPrice: money("10")}, false},
		{"ad-hoc item", OrderItem{CustomName: "Sticker", Quantity: 3, UnitPrice: money("0")}, false},
		{"zero quantity", OrderItem{ProductID: &pid, Quantity: 0, UnitPrice: money("10")}, true},
		{"negative price", OrderItem{ProductID: &pid, Quantity: 1, UnitPrice: money("-1")}, true},
		{"sub-cent price", OrderItem{ProductID: &pid, Quantity: 3, UnitPrice: money("0.333")}, true},
		{"trailing zeros", OrderItem{ProductID: &pid, Quantity: 1, UnitPrice: money("4.500")}, false},
		{"ad-hoc without name", OrderItem{CustomName: "  ", Quantity: 1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.item.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, apperr.ErrValidation)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateAmount(t *testing.T) {
	assert.NoError(t, ValidateAmount("shipping_cost", money("0")))
	assert.NoError(t, ValidateAmount("shipping_cost", money("12.34")))
	assert.ErrorIs(t, ValidateAmount("shipping_cost", money("1.005")), apperr.ErrValidation)
	assert.ErrorIs(t, ValidateAmount("shipping_cost", money("-0.01")), apperr.ErrValidation)
}

func TestValidateCustomerEmail(t *testing.T) {
	assert.NoError(t, ValidateCustomerEmail("ana@example.com"))
	assert.ErrorIs(t, ValidateCustomerEmail(""), apperr.ErrValidation)
	assert.ErrorIs(t, ValidateCustomerEmail("not-an-email"), apperr.ErrValidation)
}
