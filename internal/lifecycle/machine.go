package lifecycle

import (
	"fmt"

	"quote-service/internal/apperr"
	"quote-service/internal/models"
)

var transitions = map[models.Status][]models.Status{
	models.StatusPending:    {models.StatusProcessing, models.StatusCancelled},
	models.StatusProcessing: {models.StatusCompleted, models.StatusCancelled},
	models.StatusCompleted:  nil,
	models.StatusCancelled:  nil,
}

// CanTransition reports whether from → to is an allowed transition
func CanTransition(from, to models.Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Next lists the statuses reachable from s
func Next(s models.Status) []models.Status {
	out := make([]models.Status, len(transitions[s]))
	copy(out, transitions[s])
	return out
}

// IsTerminal reports whether no transition leaves s
func IsTerminal(s models.Status) bool {
	return s.Valid() && len(transitions[s]) == 0
}

// Validate returns ErrInvalidTransition unless from → to is allowed
func Validate(from, to models.Status) error {
	if !to.Valid() {
		return fmt.Errorf("%w: unknown status %q", apperr.ErrInvalidTransition, to)
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", apperr.ErrInvalidTransition, from, to)
	}
	return nil
}
