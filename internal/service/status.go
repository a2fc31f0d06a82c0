package service

import (
	"context"

	"quote-service/internal/broker"
	"quote-service/internal/changes"
	"quote-service/internal/lifecycle"
	"quote-service/internal/models"
	"quote-service/internal/notify"
	"quote-service/internal/store"
	"quote-service/internal/tasks"
	"quote-service/internal/util"

	"go.uber.org/zap"
)

// StatusChangeResult is the committed order plus the automatic notification running in the
// background. Notification failures never affect the committed status.
type StatusChangeResult struct {
	Order        *models.Order `json:"order"`
	From         models.Status `json:"from"`
	Notification *tasks.Task   `json:"-"`
}

// ChangeStatus moves the order to status to. Transitions the lifecycle does not allow,
// including to the current status, are rejected with ErrInvalidTransition and write nothing.
func (s *OrderService) ChangeStatus(ctx context.Context, actor models.Actor, orderID int64, to models.Status, expectedVersion *int) (*StatusChangeResult, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.ChangeStatus")
	defer span.End()

	const op = "change_status"

	if err := s.permissions.Require(ctx, actor, models.ResourceOrders, models.ActionEdit); err != nil {
		return nil, s.fail(op, err)
	}

	res, err := s.mutate(ctx, actor, orderID, expectedVersion, func(ctx context.Context, tx store.OrderTx, st *orderState) (models.AuditAction, changes.Changes, error) {
		if err := lifecycle.Validate(st.order.Status, to); err != nil {
			return "", nil, err
		}
		before := st.order.Snapshot()
		st.order.Status = to
		return models.AuditStatusChanged, changes.Detect(before, st.order.Snapshot(), models.OrderStatusFields), nil
	})
	if err != nil {
		return nil, s.fail(op, err)
	}

	order := res.state.order
	from := res.state.from

	s.recordMutation(op, res)
	util.StatusTransitionsTotal.WithLabelValues(string(from), string(to)).Inc()
	s.logger.Info("Order status changed",
		zap.Int64("order_id", order.ID),
		zap.String("from", string(from)),
		zap.String("to", string(to)))

	s.publishStatusChanged(ctx, actor, order, from)

	return &StatusChangeResult{
		Order:        order,
		From:         from,
		Notification: s.notifyStatusChanged(ctx, order, res.state.items, from),
	}, nil
}

func (s *OrderService) publishStatusChanged(ctx context.Context, actor models.Actor, order *models.Order, from models.Status) {
	if s.events == nil {
		return
	}
	event := &models.OrderStatusChangedEvent{
		BaseEvent:   broker.NewBaseEvent(models.EventTypeOrderStatusChanged),
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		OldStatus:   from,
		NewStatus:   order.Status,
		ActorID:     actor.ID,
	}
	if err := s.events.PublishStatusChanged(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderStatusChanged event", zap.Int64("order_id", order.ID), zap.Error(err))
	}
}

// notifyStatusChanged starts the automatic customer notification. It is detached from ctx's
// cancellation and bounded by the notify timeout.
func (s *OrderService) notifyStatusChanged(ctx context.Context, order *models.Order, items []models.OrderItem, from models.Status) *tasks.Task {
	if s.notifier == nil {
		return tasks.Completed("notify_status", nil)
	}

	snapshot := *order
	lines := make([]models.OrderItem, len(items))
	copy(lines, items)

	return s.tasks.Go(ctx, "notify_status", s.settings.NotifyTimeout, func(ctx context.Context) error {
		summary, err := s.summaryItems(ctx, lines)
		if err != nil {
			s.logger.Warn("Notification summary without product names", zap.Error(err))
		}
		return s.notifier.Dispatch(ctx, &notify.Request{
			Mode:      notify.Automatic,
			Kind:      notify.KindStatusChanged,
			Order:     &snapshot,
			Items:     summary,
			OldStatus: from,
		})
	})
}

// summaryItems resolves display names for the inline order summary
func (s *OrderService) summaryItems(ctx context.Context, items []models.OrderItem) ([]notify.Item, error) {
	products, err := s.loadProducts(ctx, items)

	out := make([]notify.Item, 0, len(items))
	for _, it := range items {
		name := it.CustomName
		if name == "" && it.ProductID != nil {
			if p, ok := products[*it.ProductID]; ok {
				name = p.Name
			}
		}
		if name == "" {
			name = "Item"
		}
		out = append(out, notify.Item{Name: name, Quantity: it.Quantity, LineTotal: it.LineTotal()})
	}
	return out, err
}
