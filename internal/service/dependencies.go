package service

import (
	"context"
	"time"

	"quote-service/internal/models"
	"quote-service/internal/notify"
	"quote-service/internal/store"
)

// Repository is the persistence the order service needs
type Repository interface {
	InTx(ctx context.Context, fn func(tx store.OrderTx) error) error
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	GetOrderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error)
	ListOrders(ctx context.Context, f store.OrderFilter) ([]models.Order, error)
	ListAuditEntries(ctx context.Context, orderID int64) ([]models.AuditLogEntry, error)
	GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error)
	GetProfileByID(ctx context.Context, id string) (*models.Profile, error)
	GetProfileByEmail(ctx context.Context, email string) (*models.Profile, error)
	ListResourcePermissions(ctx context.Context) ([]models.ResourcePermission, error)
	UpsertResourcePermission(ctx context.Context, perm *models.ResourcePermission) error
	ListResources(ctx context.Context) ([]models.Resource, error)
}

// EventPublisher emits order events after commit
type EventPublisher interface {
	PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error
	PublishStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error
	PublishDocumentGenerated(ctx context.Context, event *models.DocumentGeneratedEvent) error
}

// IdempotencyKeys deduplicates order creation
type IdempotencyKeys interface {
	ClaimIdempotencyKey(ctx context.Context, key string, ttl time.Duration) (int64, bool, error)
	CompleteIdempotencyKey(ctx context.Context, key string, orderID int64, ttl time.Duration) error
	ReleaseIdempotencyKey(ctx context.Context, key string) error
}

// ArtifactStore keeps generated quote documents
type ArtifactStore interface {
	Put(ctx context.Context, key string, data []byte) error
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// Notifier delivers order notifications
type Notifier interface {
	Dispatch(ctx context.Context, req *notify.Request) error
}

// PermissionCache is invalidated after permission rows change
type PermissionCache interface {
	Invalidate(ctx context.Context, role models.Role, resource string) error
}

// Settings holds the tunables of the order service
type Settings struct {
	OrderNumberPrefix string
	IdempotencyTTL    time.Duration
	DocumentTimeout   time.Duration
	NotifyTimeout     time.Duration
	LinkTTL           time.Duration
}

// DefaultSettings returns the production defaults
func DefaultSettings() Settings {
	return Settings{
		OrderNumberPrefix: "Q",
		IdempotencyTTL:    24 * time.Hour,
		DocumentTimeout:   30 * time.Second,
		NotifyTimeout:     30 * time.Second,
		LinkTTL:           7 * 24 * time.Hour,
	}
}
