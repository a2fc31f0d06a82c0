package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCategoriesNest(t *testing.T) {
	assert.True(t, errors.Is(ErrPermissionDenied, ErrValidation))
	assert.True(t, errors.Is(ErrInvalidTransition, ErrValidation))
	assert.False(t, errors.Is(ErrValidation, ErrPermissionDenied))

	wrapped := fmt.Errorf("change status: %w", ErrInvalidTransition)
	assert.True(t, errors.Is(wrapped, ErrInvalidTransition))
	assert.True(t, errors.Is(wrapped, ErrValidation))
}

func TestHTTPStatus(t *testing.T) {
	cases := map[error]int{
		Validation("customer_email", "is required"): http.StatusBadRequest,
		Denied("orders", "edit"):                    http.StatusForbidden,
		ErrInvalidTransition:                        http.StatusUnprocessableEntity,
		NotFound("order", 1):                        http.StatusNotFound,
		ErrConflict:                                 http.StatusConflict,
		External("send", errors.New("down")):        http.StatusBadGateway,
		Persistence("insert", errors.New("boom")):   http.StatusInternalServerError,
	}

	for err, status := range cases {
		assert.Equal(t, status, HTTPStatus(err), err.Error())
	}
}
