package permission

import (
	"strings"

	"quote-service/internal/models"
)

// Scope restricts which orders an actor may see, independently of the resource gate
type Scope struct {
	All           bool
	SalespersonID string
	CustomerEmail string
}

// RowScope derives the row filter for an actor. profile is the actor's own profile and may be
// nil; a salesperson without a profile is scoped to their own clients.
func RowScope(actor models.Actor, profile *models.Profile) Scope {
	switch actor.Role {
	case models.RoleAdmin:
		return Scope{All: true}
	case models.RoleSalesperson:
		if profile != nil && profile.ClientAccessType == models.ClientAccessMaster {
			return Scope{All: true}
		}
		return Scope{SalespersonID: actor.ID}
	default:
		return Scope{CustomerEmail: strings.ToLower(actor.Email)}
	}
}

// Allows reports whether the order is visible within the scope
func (s Scope) Allows(o *models.Order) bool {
	if s.All {
		return true
	}
	if s.SalespersonID != "" {
		return o.SalespersonID != nil && *o.SalespersonID == s.SalespersonID
	}
	if s.CustomerEmail != "" {
		return strings.EqualFold(o.CustomerEmail, s.CustomerEmail)
	}
	return false
}

// Filter keeps the visible orders
func (s Scope) Filter(orders []models.Order) []models.Order {
	if s.All {
		return orders
	}
	out := make([]models.Order, 0, len(orders))
	for i := range orders {
		if s.Allows(&orders[i]) {
			out = append(out, orders[i])
		}
	}
	return out
}
