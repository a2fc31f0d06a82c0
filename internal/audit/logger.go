package audit

import (
	"context"
	"fmt"
	"sort"
	"time"

	"quote-service/internal/changes"
	"quote-service/internal/models"
	"quote-service/internal/util"

	"go.uber.org/zap"
)

// Writer appends entries. It is usually bound to the transaction of the mutation being audited.
type Writer interface {
	InsertAuditEntry(ctx context.Context, entry *models.AuditLogEntry) error
}

// Reader lists the entries of an order
type Reader interface {
	ListAuditEntries(ctx context.Context, orderID int64) ([]models.AuditLogEntry, error)
}

// Logger is the append-only audit trail of orders
type Logger struct {
	reader Reader
	now    func() time.Time
	logger *zap.Logger
}

// NewLogger creates a new audit logger
func NewLogger(reader Reader) *Logger {
	return &Logger{
		reader: reader,
		now:    time.Now,
		logger: util.GetLogger(),
	}
}

// Append writes one entry through w. An empty change set writes nothing and returns (nil, nil).
func (l *Logger) Append(
	ctx context.Context,
	w Writer,
	orderID int64,
	action models.AuditAction,
	diff changes.Changes,
	actor models.Actor,
) (*models.AuditLogEntry, error) {
	if diff.Empty() {
		util.AuditEntriesSuppressed.Inc()
		l.logger.Debug("No changes detected, audit entry suppressed",
			zap.Int64("order_id", orderID),
			zap.String("action", string(action)))
		return nil, nil
	}

	entry := &models.AuditLogEntry{
		OrderID:   orderID,
		Action:    action,
		Changes:   diff,
		CreatedAt: l.now().UTC(),
	}
	entry.SetActor(actor)

	if err := w.InsertAuditEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to append audit entry: %w", err)
	}

	util.AuditEntriesTotal.WithLabelValues(string(action)).Inc()
	return entry, nil
}

// List returns the entries of an order, most recent first
func (l *Logger) List(ctx context.Context, orderID int64) ([]models.AuditLogEntry, error) {
	entries, err := l.reader.ListAuditEntries(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].ID > entries[j].ID
		}
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	return entries, nil
}
