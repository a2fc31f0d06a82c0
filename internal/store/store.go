package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"quote-service/internal/apperr"
	"quote-service/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

//go:embed schema.sql
var schema string

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate applies the embedded schema. Statements are idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// GetProductsByIDs retrieves multiple products by IDs
func (s *Store) GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}

	query, args, err := sqlx.In("SELECT * FROM products WHERE id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var products []models.Product
	err = s.db.SelectContext(ctx, &products, query, args...)
	return products, err
}

// GetProfileByID retrieves a profile by ID
func (s *Store) GetProfileByID(ctx context.Context, id string) (*models.Profile, error) {
	var profile models.Profile
	err := s.db.GetContext(ctx, &profile, "SELECT * FROM profiles WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("profile", id)
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// GetProfileByEmail retrieves a profile by email, case-insensitively
func (s *Store) GetProfileByEmail(ctx context.Context, email string) (*models.Profile, error) {
	var profile models.Profile
	err := s.db.GetContext(ctx, &profile,
		"SELECT * FROM profiles WHERE lower(email) = $1", strings.ToLower(email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("profile", email)
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// GetResourcePermission returns the permission row, or nil when none exists
func (s *Store) GetResourcePermission(ctx context.Context, role models.Role, resource string) (*models.ResourcePermission, error) {
	var perm models.ResourcePermission
	err := s.db.GetContext(ctx, &perm,
		"SELECT * FROM resource_permissions WHERE role = $1 AND resource = $2", role, resource)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &perm, nil
}

// ListResourcePermissions lists all permission rows
func (s *Store) ListResourcePermissions(ctx context.Context) ([]models.ResourcePermission, error) {
	var perms []models.ResourcePermission
	err := s.db.SelectContext(ctx, &perms,
		"SELECT * FROM resource_permissions ORDER BY role, resource")
	return perms, err
}

// UpsertResourcePermission creates or replaces a permission row
func (s *Store) UpsertResourcePermission(ctx context.Context, perm *models.ResourcePermission) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO resource_permissions (role, resource, can_view, can_create, can_edit, can_delete)
		VALUES (:role, :resource, :can_view, :can_create, :can_edit, :can_delete)
		ON CONFLICT (role, resource) DO UPDATE SET
			can_view = EXCLUDED.can_view,
			can_create = EXCLUDED.can_create,
			can_edit = EXCLUDED.can_edit,
			can_delete = EXCLUDED.can_delete`, perm)
	return err
}

// ListResources lists the permission resources
func (s *Store) ListResources(ctx context.Context) ([]models.Resource, error) {
	var resources []models.Resource
	err := s.db.SelectContext(ctx, &resources, "SELECT * FROM resources ORDER BY name")
	return resources, err
}

// IsEventProcessed checks if an event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed marks an event as processed
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}
