package models

import (
	"time"

	"quote-service/internal/changes"
)

// AuditLogEntry is an immutable record of a change made to an order.
// A nil actor means the change was made by the system.
type AuditLogEntry struct {
	ID         int64           `db:"id" json:"id"`
	OrderID    int64           `db:"order_id" json:"order_id"`
	ActorID    *string         `db:"actor_id" json:"actor_id"`
	ActorEmail *string         `db:"actor_email" json:"actor_email"`
	ActorName  *string         `db:"actor_name" json:"actor_name"`
	Action     AuditAction     `db:"action" json:"action"`
	Changes    changes.Changes `db:"changes" json:"changes"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}

// SetActor copies the actor identity onto the entry, leaving it nil for the system
func (e *AuditLogEntry) SetActor(a Actor) {
	if a.IsSystem() {
		e.ActorID, e.ActorEmail, e.ActorName = nil, nil, nil
		return
	}
	id, email, name := a.ID, a.Email, a.Name
	e.ActorID, e.ActorEmail, e.ActorName = &id, &email, &name
}
