package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"quote-service/internal/apperr"
	"quote-service/internal/models"

	"github.com/jmoiron/sqlx"
)

// OrderTx is the set of writes performed inside one order transaction
type OrderTx interface {
	LockOrder(ctx context.Context, id int64) (*models.Order, error)
	ListOrderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error)
	NextOrderNumber(ctx context.Context, prefix string, year int) (string, error)
	InsertOrder(ctx context.Context, order *models.Order) error
	UpdateOrder(ctx context.Context, order *models.Order) error
	InsertOrderItem(ctx context.Context, item *models.OrderItem) error
	UpdateOrderItem(ctx context.Context, item *models.OrderItem) error
	DeleteOrderItem(ctx context.Context, orderID, itemID int64) error
	InsertAuditEntry(ctx context.Context, entry *models.AuditLogEntry) error
}

// OrderFilter narrows order listings
type OrderFilter struct {
	Status        models.Status
	SalespersonID string
	CustomerEmail string
	Limit         int
	Offset        int
}

// InTx runs fn in a transaction, committing only when fn succeeds
func (s *Store) InTx(ctx context.Context, fn func(tx OrderTx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&orderTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("order", id)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderItems retrieves all items for an order
func (s *Store) GetOrderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM order_items WHERE order_id = $1 ORDER BY id", orderID)
	return items, err
}

// ListOrders lists orders matching the filter, newest first
func (s *Store) ListOrders(ctx context.Context, f OrderFilter) ([]models.Order, error) {
	var (
		where []string
		args  []interface{}
	)
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.SalespersonID != "" {
		args = append(args, f.SalespersonID)
		where = append(where, fmt.Sprintf("salesperson_id = $%d", len(args)))
	}
	if f.CustomerEmail != "" {
		args = append(args, strings.ToLower(f.CustomerEmail))
		where = append(where, fmt.Sprintf("lower(customer_email) = $%d", len(args)))
	}

	query := "SELECT * FROM orders"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, f.Offset)
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders, query, args...)
	return orders, err
}

// ListAuditEntries retrieves the audit trail of an order, most recent first
func (s *Store) ListAuditEntries(ctx context.Context, orderID int64) ([]models.AuditLogEntry, error) {
	var entries []models.AuditLogEntry
	err := s.db.SelectContext(ctx, &entries,
		"SELECT * FROM audit_log WHERE order_id = $1 ORDER BY created_at DESC, id DESC", orderID)
	return entries, err
}

type orderTx struct {
	tx *sqlx.Tx
}

// LockOrder reads the latest committed order and locks its row for the transaction
func (t *orderTx) LockOrder(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := t.tx.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1 FOR UPDATE", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("order", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock order: %w", err)
	}
	return &order, nil
}

func (t *orderTx) ListOrderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := t.tx.SelectContext(ctx, &items,
		"SELECT * FROM order_items WHERE order_id = $1 ORDER BY id", orderID)
	return items, err
}

// NextOrderNumber draws the next number from the order sequence, e.g. Q-2026-000042
func (t *orderTx) NextOrderNumber(ctx context.Context, prefix string, year int) (string, error) {
	var seq int64
	if err := t.tx.GetContext(ctx, &seq, "SELECT nextval('order_number_seq')"); err != nil {
		return "", fmt.Errorf("failed to draw order number: %w", err)
	}
	return fmt.Sprintf("%s-%d-%06d", prefix, year, seq), nil
}

func (t *orderTx) InsertOrder(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (order_number, status, customer_email, subtotal, shipping_cost, total,
			payment_terms, delivery_terms, validity_terms, notes, salesperson_id, contact_preference, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 1)
		RETURNING id, version, created_at, updated_at`

	return t.tx.GetContext(ctx, order, query,
		order.OrderNumber, order.Status, order.CustomerEmail, order.Subtotal, order.ShippingCost,
		order.Total, order.PaymentTerms, order.DeliveryTerms, order.ValidityTerms, order.Notes,
		order.SalespersonID, order.ContactPreference)
}

// UpdateOrder writes the mutable order fields and bumps the version.
// order.Version must be the version that was read; a mismatch returns ErrConflict.
// order_number is never written.
func (t *orderTx) UpdateOrder(ctx context.Context, order *models.Order) error {
	query := `
		UPDATE orders SET status = $1, subtotal = $2, shipping_cost = $3, total = $4,
			payment_terms = $5, delivery_terms = $6, validity_terms = $7, notes = $8,
			salesperson_id = $9, contact_preference = $10,
			version = version + 1, updated_at = NOW()
		WHERE id = $11 AND version = $12
		RETURNING version, updated_at`

	err := t.tx.GetContext(ctx, order, query,
		order.Status, order.Subtotal, order.ShippingCost, order.Total, order.PaymentTerms,
		order.DeliveryTerms, order.ValidityTerms, order.Notes, order.SalespersonID,
		order.ContactPreference, order.ID, order.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: order %d at version %d", apperr.ErrConflict, order.ID, order.Version)
	}
	return err
}

func (t *orderTx) InsertOrderItem(ctx context.Context, item *models.OrderItem) error {
	query := `
		INSERT INTO order_items (order_id, product_id, custom_name, custom_image, quantity, unit_price, selected_variants)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	return t.tx.GetContext(ctx, &item.ID, query,
		item.OrderID, item.ProductID, item.CustomName, item.CustomImage,
		item.Quantity, item.UnitPrice, item.SelectedVariants)
}

func (t *orderTx) UpdateOrderItem(ctx context.Context, item *models.OrderItem) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE order_items SET product_id = $1, custom_name = $2, custom_image = $3,
			quantity = $4, unit_price = $5, selected_variants = $6
		WHERE id = $7 AND order_id = $8`,
		item.ProductID, item.CustomName, item.CustomImage, item.Quantity, item.UnitPrice,
		item.SelectedVariants, item.ID, item.OrderID)
	if err != nil {
		return err
	}
	return expectOneRow(res, "order item", item.ID)
}

func (t *orderTx) DeleteOrderItem(ctx context.Context, orderID, itemID int64) error {
	res, err := t.tx.ExecContext(ctx,
		"DELETE FROM order_items WHERE id = $1 AND order_id = $2", itemID, orderID)
	if err != nil {
		return err
	}
	return expectOneRow(res, "order item", itemID)
}

func (t *orderTx) InsertAuditEntry(ctx context.Context, entry *models.AuditLogEntry) error {
	query := `
		INSERT INTO audit_log (order_id, actor_id, actor_email, actor_name, action, changes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	return t.tx.GetContext(ctx, &entry.ID, query,
		entry.OrderID, entry.ActorID, entry.ActorEmail, entry.ActorName,
		entry.Action, entry.Changes, entry.CreatedAt)
}

func expectOneRow(res sql.Result, entity string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.NotFound(entity, id)
	}
	return nil
}
