package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"quote-service/internal/apperr"
	"quote-service/internal/broker"
	"quote-service/internal/models"
	"quote-service/internal/service"
	"quote-service/internal/util"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Regenerator re-renders the stored quote of an order
type Regenerator interface {
	RegenerateDocument(ctx context.Context, orderID int64) (*service.DocumentResult, error)
}

// ProcessedEvents remembers consumed event ids
type ProcessedEvents interface {
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}

// Locker serializes work per order across replicas
type Locker interface {
	AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, lockKey string) error
}

// ErrLocked is returned when another worker holds the order's lock
var ErrLocked = errors.New("order is locked by another worker")

// DocumentWorker keeps stored quotes in step with order status changes
type DocumentWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	documents    Regenerator
	processed    ProcessedEvents
	locker       Locker
	lockTTL      time.Duration
	retries      uint64
	logger       *zap.Logger
}

// NewDocumentWorker creates a new document worker. consumer and locker may be nil.
func NewDocumentWorker(
	consumer *broker.Consumer,
	documents Regenerator,
	processed ProcessedEvents,
	locker Locker,
	lockTTL time.Duration,
) *DocumentWorker {
	w := &DocumentWorker{
		consumer:     consumer,
		eventHandler: broker.NewEventHandler(),
		documents:    documents,
		processed:    processed,
		locker:       locker,
		lockTTL:      lockTTL,
		retries:      3,
		logger:       util.GetLogger(),
	}
	w.eventHandler.OnStatusChanged(w.handleStatusChanged)
	return w
}

// Handler returns the message router of the worker
func (w *DocumentWorker) Handler() *broker.EventHandler {
	return w.eventHandler
}

// Start consumes order events until ctx is done
func (w *DocumentWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting document worker...")
	return w.consumer.StartConsuming(ctx, w.handleWithRetry)
}

// handleWithRetry retries a failed message with exponential backoff before giving up on it
func (w *DocumentWorker) handleWithRetry(ctx context.Context, msg kafka.Message) error {
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), w.retries), ctx)
	return backoff.RetryNotify(func() error {
		return w.eventHandler.HandleMessage(ctx, msg)
	}, policy, func(err error, wait time.Duration) {
		w.logger.Info("Retrying order event",
			zap.Int64("offset", msg.Offset),
			zap.Duration("backoff", wait),
			zap.Error(err))
	})
}

// Stop stops the worker
func (w *DocumentWorker) Stop() error {
	w.logger.Info("Stopping document worker...")
	return w.consumer.Close()
}

func (w *DocumentWorker) handleStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error {
	ctx, span := util.StartSpan(ctx, "DocumentWorker.handleStatusChanged")
	defer span.End()

	processed, err := w.processed.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return fmt.Errorf("failed to check processed event: %w", err)
	}
	if processed {
		w.logger.Info("Event already processed, skipping", zap.String("event_id", event.EventID))
		return nil
	}

	if w.locker != nil {
		lockKey := fmt.Sprintf("document:%d", event.OrderID)
		ok, err := w.locker.AcquireLock(ctx, lockKey, w.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire lock: %w", err)
		}
		if !ok {
			return ErrLocked
		}
		defer func() {
			if err := w.locker.ReleaseLock(context.WithoutCancel(ctx), lockKey); err != nil {
				w.logger.Warn("Failed to release lock", zap.String("key", lockKey), zap.Error(err))
			}
		}()
	}

	doc, err := w.documents.RegenerateDocument(ctx, event.OrderID)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		w.logger.Warn("Order of status event no longer exists", zap.Int64("order_id", event.OrderID))
	case err != nil:
		util.RecordError(span, err)
		return fmt.Errorf("failed to regenerate quote for order %d: %w", event.OrderID, err)
	default:
		w.logger.Info("Quote regenerated after status change",
			zap.Int64("order_id", event.OrderID),
			zap.String("status", string(event.NewStatus)),
			zap.Int("pages", doc.Pages))
	}

	return w.processed.MarkEventProcessed(ctx, event.EventID, event.EventType)
}
