package service

import (
	"context"
	"errors"
	"fmt"

	"quote-service/internal/apperr"
	"quote-service/internal/draft"
	"quote-service/internal/models"
	"quote-service/internal/util"

	"go.uber.org/zap"
)

// DraftStore keeps session drafts. A draft belongs to the actor that first wrote it.
type DraftStore interface {
	Get(ctx context.Context, sessionID, ownerID string) (*draft.Draft, error)
	Save(ctx context.Context, d *draft.Draft) error
	AddItem(ctx context.Context, sessionID, ownerID string, item draft.Item) (*draft.Draft, error)
	RemoveItem(ctx context.Context, sessionID, ownerID, itemID string) (*draft.Draft, error)
	Clear(ctx context.Context, sessionID, ownerID string) error
}

func (s *OrderService) requireDrafts(ctx context.Context, actor models.Actor) error {
	if s.drafts == nil {
		return apperr.External("drafts", errors.New("no draft store configured"))
	}
	return s.permissions.Require(ctx, actor, models.ResourceOrders, models.ActionCreate)
}

// GetDraft returns the session's draft
func (s *OrderService) GetDraft(ctx context.Context, actor models.Actor, sessionID string) (*draft.Draft, error) {
	if err := s.requireDrafts(ctx, actor); err != nil {
		return nil, err
	}
	return s.drafts.Get(ctx, sessionID, actor.ID)
}

// SaveDraft replaces the session's draft
func (s *OrderService) SaveDraft(ctx context.Context, actor models.Actor, d *draft.Draft) (*draft.Draft, error) {
	if err := s.requireDrafts(ctx, actor); err != nil {
		return nil, err
	}
	d.OwnerID = actor.ID
	if d.CustomerEmail == "" && actor.Role == models.RoleCustomer {
		d.CustomerEmail = actor.Email
	}
	if err := s.drafts.Save(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// AddDraftItem appends an item to the session's draft
func (s *OrderService) AddDraftItem(ctx context.Context, actor models.Actor, sessionID string, item draft.Item) (*draft.Draft, error) {
	if err := s.requireDrafts(ctx, actor); err != nil {
		return nil, err
	}
	return s.drafts.AddItem(ctx, sessionID, actor.ID, item)
}

// RemoveDraftItem drops an item from the session's draft
func (s *OrderService) RemoveDraftItem(ctx context.Context, actor models.Actor, sessionID, itemID string) (*draft.Draft, error) {
	if err := s.requireDrafts(ctx, actor); err != nil {
		return nil, err
	}
	return s.drafts.RemoveItem(ctx, sessionID, actor.ID, itemID)
}

// ClearDraft deletes the session's draft
func (s *OrderService) ClearDraft(ctx context.Context, actor models.Actor, sessionID string) error {
	if err := s.requireDrafts(ctx, actor); err != nil {
		return err
	}
	return s.drafts.Clear(ctx, sessionID, actor.ID)
}

// SubmitDraft turns the session's draft into an order and clears the draft. Submitting the same
// draft twice returns the order created the first time.
func (s *OrderService) SubmitDraft(ctx context.Context, actor models.Actor, sessionID string) (*OrderDetails, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.SubmitDraft")
	defer span.End()

	if err := s.requireDrafts(ctx, actor); err != nil {
		return nil, err
	}

	d, err := s.drafts.Get(ctx, sessionID, actor.ID)
	if err != nil {
		return nil, err
	}
	if len(d.Items) == 0 {
		return nil, apperr.Validation("items", "draft is empty")
	}

	req := &CreateOrderRequest{
		CustomerEmail:     d.CustomerEmail,
		Notes:             d.Notes,
		ContactPreference: d.ContactPreference,
		IdempotencyKey:    fmt.Sprintf("draft:%s:%d", sessionID, d.UpdatedAt.UnixNano()),
	}
	if req.CustomerEmail == "" && actor.Role == models.RoleCustomer {
		req.CustomerEmail = actor.Email
	}
	for _, it := range d.Items {
		req.Items = append(req.Items, OrderItemRequest{
			ProductID:        it.ProductID,
			CustomName:       it.CustomName,
			CustomImage:      it.CustomImage,
			Quantity:         it.Quantity,
			UnitPrice:        it.UnitPrice,
			SelectedVariants: it.SelectedVariants,
		})
	}

	details, err := s.CreateOrder(ctx, actor, req)
	if err != nil {
		return nil, err
	}

	if err := s.drafts.Clear(ctx, sessionID, actor.ID); err != nil {
		s.logger.Warn("Failed to clear submitted draft", zap.String("session_id", sessionID), zap.Error(err))
	}
	return details, nil
}
