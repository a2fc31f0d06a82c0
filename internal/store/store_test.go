package store

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"quote-service/internal/apperr"
	"quote-service/internal/changes"
	"quote-service/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Integration tests run against TEST_DATABASE_URL and are skipped without it
func openTestStore(t *testing.T) *Store {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("Integration test - requires database (set TEST_DATABASE_URL)")
	}

	s, err := NewStore(url)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func createTestOrder(t *testing.T, s *Store) *models.Order {
	t.Helper()
	ctx := context.Background()

	order := &models.Order{
		Status:        models.StatusPending,
		CustomerEmail: "buyer@example.com",
		ShippingCost:  decimal.RequireFromString("5.00"),
	}
	err := s.InTx(ctx, func(tx OrderTx) error {
		number, err := tx.NextOrderNumber(ctx, "T", time.Now().Year())
		if err != nil {
			return err
		}
		order.OrderNumber = number
		order.Recalculate(nil)
		return tx.InsertOrder(ctx, order)
	})
	require.NoError(t, err)
	return order
}

func TestCreateOrder(t *testing.T) {
	s := openTestStore(t)
	order := createTestOrder(t, s)

	assert.NotZero(t, order.ID)
	assert.Equal(t, 1, order.Version)

	retrieved, err := s.GetOrderByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.OrderNumber, retrieved.OrderNumber)
	assert.True(t, retrieved.Total.Equal(decimal.RequireFromString("5")))
}

func TestRollbackLeavesNothing(t *testing.T) {
	s := openTestStore(t)
	order := createTestOrder(t, s)
	ctx := context.Background()

	err := s.InTx(ctx, func(tx OrderTx) error {
		item := &models.OrderItem{OrderID: order.ID, CustomName: "Sign", Quantity: 1, UnitPrice: decimal.NewFromInt(10)}
		if err := tx.InsertOrderItem(ctx, item); err != nil {
			return err
		}
		return errors.New("abort")
	})
	require.Error(t, err)

	items, err := s.GetOrderItems(ctx, order.ID)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestStaleVersionRejected(t *testing.T) {
	s := openTestStore(t)
	order := createTestOrder(t, s)
	ctx := context.Background()

	stale := *order
	require.NoError(t, s.InTx(ctx, func(tx OrderTx) error {
		order.Notes = "first"
		return tx.UpdateOrder(ctx, order)
	}))
	assert.Equal(t, 2, order.Version)

	err := s.InTx(ctx, func(tx OrderTx) error {
		stale.Notes = "second"
		return tx.UpdateOrder(ctx, &stale)
	})
	assert.True(t, errors.Is(err, apperr.ErrConflict))
}

func TestAuditEntriesRoundTrip(t *testing.T) {
	s := openTestStore(t)
	order := createTestOrder(t, s)
	ctx := context.Background()

	entry := &models.AuditLogEntry{
		OrderID: order.ID,
		Action:  models.AuditStatusChanged,
		Changes: changes.Changes{"status": {Old: changes.String("pending"), New: changes.String("processing")}},
	}
	entry.CreatedAt = time.Now().UTC()
	require.NoError(t, s.InTx(ctx, func(tx OrderTx) error {
		return tx.InsertAuditEntry(ctx, entry)
	}))

	entries, err := s.ListAuditEntries(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Nil(t, entries[0].ActorID)
	assert.Equal(t, "processing", entries[0].Changes["status"].New.Str())
}

func TestMissingPermissionRowIsNil(t *testing.T) {
	s := openTestStore(t)

	perm, err := s.GetResourcePermission(context.Background(), models.RoleCustomer, "no-such-resource")
	require.NoError(t, err)
	assert.Nil(t, perm)
}
