package service

import (
	"context"

	"quote-service/internal/apperr"
	"quote-service/internal/audit"
	"quote-service/internal/models"
	"quote-service/internal/util"

	"go.uber.org/zap"
)

// ListAuditLog returns the formatted audit trail of an order, most recent first
func (s *OrderService) ListAuditLog(ctx context.Context, actor models.Actor, orderID int64) ([]audit.FormattedEntry, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.ListAuditLog")
	defer span.End()

	const op = "list_audit_log"

	if _, err := s.authorizeOrder(ctx, actor, models.ResourceAuditLog, models.ActionView, orderID); err != nil {
		return nil, s.fail(op, err)
	}

	entries, err := s.audit.List(ctx, orderID)
	if err != nil {
		return nil, s.fail(op, apperr.Persistence("list audit log", err))
	}
	return s.formatter.FormatAll(entries), nil
}

// CheckPermission reports whether the actor holds action on resource
func (s *OrderService) CheckPermission(ctx context.Context, actor models.Actor, resource string, action models.Action) (bool, error) {
	switch action {
	case models.ActionView, models.ActionCreate, models.ActionEdit, models.ActionDelete:
	default:
		return false, apperr.Validation("action", "must be view, create, edit or delete")
	}
	if resource == "" {
		return false, apperr.Validation("resource", "is required")
	}

	ok, err := s.permissions.HasPermission(ctx, actor.Role, resource, action)
	if err != nil {
		return false, apperr.Persistence("permission lookup", err)
	}
	return ok, nil
}

// PermissionTable is the resource catalog with the granted rows
type PermissionTable struct {
	Resources   []models.Resource           `json:"resources"`
	Permissions []models.ResourcePermission `json:"permissions"`
}

// ListPermissions returns the permission table
func (s *OrderService) ListPermissions(ctx context.Context, actor models.Actor) (*PermissionTable, error) {
	if err := s.permissions.Require(ctx, actor, models.ResourcePermissions, models.ActionView); err != nil {
		return nil, err
	}

	resources, err := s.repo.ListResources(ctx)
	if err != nil {
		return nil, apperr.Persistence("list resources", err)
	}
	perms, err := s.repo.ListResourcePermissions(ctx)
	if err != nil {
		return nil, apperr.Persistence("list permissions", err)
	}
	return &PermissionTable{Resources: resources, Permissions: perms}, nil
}

// UpsertPermission grants or revokes capabilities of a role on a resource
func (s *OrderService) UpsertPermission(ctx context.Context, actor models.Actor, perm *models.ResourcePermission) error {
	ctx, span := util.StartSpan(ctx, "OrderService.UpsertPermission")
	defer span.End()

	if err := s.permissions.Require(ctx, actor, models.ResourcePermissions, models.ActionEdit); err != nil {
		return err
	}
	if !perm.Role.Valid() || perm.Role == models.RoleAdmin {
		return apperr.Validation("role", "must be salesperson or customer")
	}

	resources, err := s.repo.ListResources(ctx)
	if err != nil {
		return apperr.Persistence("list resources", err)
	}
	known := false
	for _, r := range resources {
		if r.Name == perm.Resource {
			known = true
			break
		}
	}
	if !known {
		return apperr.Validation("resource", "is not a known resource")
	}

	if err := s.repo.UpsertResourcePermission(ctx, perm); err != nil {
		return apperr.Persistence("upsert permission", err)
	}

	if s.permCache != nil {
		if err := s.permCache.Invalidate(ctx, perm.Role, perm.Resource); err != nil {
			s.logger.Warn("Failed to invalidate permission cache", zap.Error(err))
		}
	}

	s.logger.Info("Permission updated",
		zap.String("actor_id", actor.ID),
		zap.String("role", string(perm.Role)),
		zap.String("resource", perm.Resource),
		zap.Bool("view", perm.CanView),
		zap.Bool("create", perm.CanCreate),
		zap.Bool("edit", perm.CanEdit),
		zap.Bool("delete", perm.CanDelete))
	return nil
}
