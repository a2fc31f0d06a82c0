package permission

import (
	"context"
	"fmt"

	"quote-service/internal/apperr"
	"quote-service/internal/models"
	"quote-service/internal/util"

	"go.uber.org/zap"
)

// Store looks up permission rows. A missing row is reported as (nil, nil).
type Store interface {
	GetResourcePermission(ctx context.Context, role models.Role, resource string) (*models.ResourcePermission, error)
}

// Resolver answers coarse role/resource/action questions
type Resolver struct {
	store  Store
	logger *zap.Logger
}

// NewResolver creates a new resolver
func NewResolver(store Store) *Resolver {
	return &Resolver{
		store:  store,
		logger: util.GetLogger(),
	}
}

// HasPermission reports whether role may perform action on resource.
// Admins are always allowed; other roles are denied unless a row grants the action.
func (r *Resolver) HasPermission(ctx context.Context, role models.Role, resource string, action models.Action) (bool, error) {
	if role == models.RoleAdmin {
		return true, nil
	}

	perm, err := r.store.GetResourcePermission(ctx, role, resource)
	if err != nil {
		return false, fmt.Errorf("failed to load permission %s/%s: %w", role, resource, err)
	}
	if perm == nil {
		return false, nil
	}
	return perm.Allows(action), nil
}

// CanAccess reports whether role may view resource
func (r *Resolver) CanAccess(ctx context.Context, role models.Role, resource string) (bool, error) {
	return r.HasPermission(ctx, role, resource, models.ActionView)
}

// Require returns ErrPermissionDenied unless the actor holds the permission
func (r *Resolver) Require(ctx context.Context, actor models.Actor, resource string, action models.Action) error {
	ok, err := r.HasPermission(ctx, actor.Role, resource, action)
	if err != nil {
		return apperr.Persistence("permission lookup", err)
	}
	if !ok {
		util.PermissionDeniedTotal.WithLabelValues(resource, string(action)).Inc()
		r.logger.Info("Permission denied",
			zap.String("actor_id", actor.ID),
			zap.String("role", string(actor.Role)),
			zap.String("resource", resource),
			zap.String("action", string(action)))
		return apperr.Denied(resource, string(action))
	}
	return nil
}
