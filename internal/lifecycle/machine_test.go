package lifecycle

import (
	"errors"
	"testing"

	"quote-service/internal/apperr"
	"quote-service/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestAllowedTransitions(t *testing.T) {
	allowed := [][2]models.Status{
		{models.StatusPending, models.StatusProcessing},
		{models.StatusPending, models.StatusCancelled},
		{models.StatusProcessing, models.StatusCompleted},
		{models.StatusProcessing, models.StatusCancelled},
	}
	for _, tr := range allowed {
		assert.NoError(t, Validate(tr[0], tr[1]), "%s -> %s", tr[0], tr[1])
	}
}

func TestRejectedTransitions(t *testing.T) {
	rejected := [][2]models.Status{
		{models.StatusCompleted, models.StatusPending},
		{models.StatusCancelled, models.StatusProcessing},
		{models.StatusPending, models.StatusCompleted},
		{models.StatusPending, models.StatusPending},
		{models.StatusProcessing, models.StatusPending},
		{models.StatusPending, models.Status("shipped")},
	}
	for _, tr := range rejected {
		err := Validate(tr[0], tr[1])
		assert.True(t, errors.Is(err, apperr.ErrInvalidTransition), "%s -> %s", tr[0], tr[1])
	}
}

func TestTerminal(t *testing.T) {
	assert.True(t, IsTerminal(models.StatusCompleted))
	assert.True(t, IsTerminal(models.StatusCancelled))
	assert.False(t, IsTerminal(models.StatusPending))
	assert.False(t, IsTerminal(models.Status("lost")))
	assert.Equal(t, []models.Status{models.StatusCompleted, models.StatusCancelled}, Next(models.StatusProcessing))
}
