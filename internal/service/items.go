package service

import (
	"context"
	"strings"

	"quote-service/internal/apperr"
	"quote-service/internal/changes"
	"quote-service/internal/models"
	"quote-service/internal/store"
	"quote-service/internal/util"

	"github.com/shopspring/decimal"
)

// ItemResult is the outcome of an item mutation
type ItemResult struct {
	OrderDetails
	Item *models.OrderItem `json:"item,omitempty"`
}

func itemResult(res *mutationResult) *ItemResult {
	return &ItemResult{OrderDetails: *res.details(), Item: res.state.item}
}

// AddItem appends an item to the order and recomputes its totals
func (s *OrderService) AddItem(ctx context.Context, actor models.Actor, orderID int64, req OrderItemRequest, expectedVersion *int) (*ItemResult, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.AddItem")
	defer span.End()

	const op = "add_item"

	if err := s.permissions.Require(ctx, actor, models.ResourceOrders, models.ActionEdit); err != nil {
		return nil, s.fail(op, err)
	}

	item := req.toItem()
	if err := item.Validate(); err != nil {
		return nil, s.fail(op, err)
	}
	warnings, err := s.checkProducts(ctx, []models.OrderItem{item})
	if err != nil {
		return nil, s.fail(op, err)
	}

	res, err := s.mutate(ctx, actor, orderID, expectedVersion, func(ctx context.Context, tx store.OrderTx, st *orderState) (models.AuditAction, changes.Changes, error) {
		before := st.order.Snapshot()

		item.OrderID = st.order.ID
		if err := tx.InsertOrderItem(ctx, &item); err != nil {
			return "", nil, err
		}
		st.items = append(st.items, item)
		st.item = &st.items[len(st.items)-1]
		st.warnings = warnings
		st.order.Recalculate(st.items)

		diff := models.ItemChanges(item.ID, nil, item.Snapshot())
		diff.Merge(changes.Detect(before, st.order.Snapshot(), models.OrderTotalsFields))
		return models.AuditItemAdded, diff, nil
	})
	if err != nil {
		return nil, s.fail(op, err)
	}

	s.recordMutation(op, res)
	return itemResult(res), nil
}

// ItemPatch changes an existing item. Nil fields are left unchanged.
type ItemPatch struct {
	ProductID        *int64           `json:"product_id,omitempty"`
	CustomName       *string          `json:"custom_name,omitempty"`
	CustomImage      *string          `json:"custom_image,omitempty"`
	Quantity         *int             `json:"quantity,omitempty"`
	UnitPrice        *decimal.Decimal `json:"unit_price,omitempty"`
	SelectedVariants models.Variants  `json:"selected_variants,omitempty"`
	ExpectedVersion  *int             `json:"expected_version,omitempty"`
}

func (p *ItemPatch) apply(item *models.OrderItem) {
	if p.ProductID != nil {
		id := *p.ProductID
		item.ProductID = &id
	}
	if p.CustomName != nil {
		item.CustomName = strings.TrimSpace(*p.CustomName)
	}
	if p.CustomImage != nil {
		item.CustomImage = strings.TrimSpace(*p.CustomImage)
	}
	if p.Quantity != nil {
		item.Quantity = *p.Quantity
	}
	if p.UnitPrice != nil {
		item.UnitPrice = *p.UnitPrice
	}
	if p.SelectedVariants != nil {
		item.SelectedVariants = p.SelectedVariants
	}
}

// UpdateItem changes one item of the order. Quantities below 1 are rejected; removal goes
// through RemoveItem.
func (s *OrderService) UpdateItem(ctx context.Context, actor models.Actor, orderID, itemID int64, patch *ItemPatch) (*ItemResult, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.UpdateItem")
	defer span.End()

	const op = "update_item"

	if err := s.permissions.Require(ctx, actor, models.ResourceOrders, models.ActionEdit); err != nil {
		return nil, s.fail(op, err)
	}
	if patch.Quantity != nil && *patch.Quantity < 1 {
		return nil, s.fail(op, apperr.Validation("quantity", "must be at least 1"))
	}

	res, err := s.mutate(ctx, actor, orderID, patch.ExpectedVersion, func(ctx context.Context, tx store.OrderTx, st *orderState) (models.AuditAction, changes.Changes, error) {
		idx := findItem(st.items, itemID)
		if idx < 0 {
			return "", nil, apperr.NotFound("order item", itemID)
		}

		current := &st.items[idx]
		updated := *current
		patch.apply(&updated)
		if err := updated.Validate(); err != nil {
			return "", nil, err
		}
		if patch.ProductID != nil || patch.SelectedVariants != nil {
			warnings, err := s.checkProducts(ctx, []models.OrderItem{updated})
			if err != nil {
				return "", nil, err
			}
			st.warnings = warnings
		}

		diff := models.ItemChanges(itemID, current.Snapshot(), updated.Snapshot())
		if diff.Empty() {
			st.item = current
			return models.AuditItemUpdated, diff, nil
		}

		if err := tx.UpdateOrderItem(ctx, &updated); err != nil {
			return "", nil, err
		}

		before := st.order.Snapshot()
		*current = updated
		st.item = current
		st.order.Recalculate(st.items)
		diff.Merge(changes.Detect(before, st.order.Snapshot(), models.OrderTotalsFields))
		return models.AuditItemUpdated, diff, nil
	})
	if err != nil {
		return nil, s.fail(op, err)
	}

	s.recordMutation(op, res)
	return itemResult(res), nil
}

// RemoveItem deletes one item from the order. The catalog is never touched.
func (s *OrderService) RemoveItem(ctx context.Context, actor models.Actor, orderID, itemID int64, expectedVersion *int) (*ItemResult, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.RemoveItem")
	defer span.End()

	const op = "remove_item"

	if err := s.permissions.Require(ctx, actor, models.ResourceOrders, models.ActionEdit); err != nil {
		return nil, s.fail(op, err)
	}

	res, err := s.mutate(ctx, actor, orderID, expectedVersion, func(ctx context.Context, tx store.OrderTx, st *orderState) (models.AuditAction, changes.Changes, error) {
		idx := findItem(st.items, itemID)
		if idx < 0 {
			return "", nil, apperr.NotFound("order item", itemID)
		}
		removed := st.items[idx]

		if err := tx.DeleteOrderItem(ctx, orderID, itemID); err != nil {
			return "", nil, err
		}

		before := st.order.Snapshot()
		st.items = append(st.items[:idx:idx], st.items[idx+1:]...)
		st.order.Recalculate(st.items)

		diff := models.ItemChanges(itemID, removed.Snapshot(), nil)
		diff.Merge(changes.Detect(before, st.order.Snapshot(), models.OrderTotalsFields))
		return models.AuditItemRemoved, diff, nil
	})
	if err != nil {
		return nil, s.fail(op, err)
	}

	s.recordMutation(op, res)
	return itemResult(res), nil
}

func findItem(items []models.OrderItem, itemID int64) int {
	for i := range items {
		if items[i].ID == itemID {
			return i
		}
	}
	return -1
}
