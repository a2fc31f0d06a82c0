package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"quote-service/internal/apperr"
	"quote-service/internal/artifact"
	"quote-service/internal/broker"
	"quote-service/internal/document"
	"quote-service/internal/models"
	"quote-service/internal/notify"
	"quote-service/internal/util"

	"go.uber.org/zap"
)

// DocumentResult describes a generated and stored quote
type DocumentResult struct {
	OrderNumber string    `json:"order_number"`
	Key         string    `json:"key"`
	Pages       int       `json:"pages"`
	Rows        int       `json:"rows"`
	Structure   []int     `json:"structure"`
	URL         string    `json:"url,omitempty"`
	ExpiresAt   time.Time `json:"expires_at,omitempty"`
}

// GenerateDocument renders the order's quote, stores it and returns a signed link
func (s *OrderService) GenerateDocument(ctx context.Context, actor models.Actor, orderID int64) (*DocumentResult, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.GenerateDocument")
	defer span.End()

	const op = "generate_document"

	order, err := s.authorizeOrder(ctx, actor, models.ResourceDocuments, models.ActionCreate, orderID)
	if err != nil {
		return nil, s.fail(op, err)
	}
	doc, err := s.generate(ctx, order)
	if err != nil {
		return nil, s.fail(op, err)
	}
	return doc, nil
}

// RegenerateDocument re-renders and stores the quote on behalf of the system
func (s *OrderService) RegenerateDocument(ctx context.Context, orderID int64) (*DocumentResult, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.RegenerateDocument")
	defer span.End()

	order, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, err
		}
		return nil, apperr.Persistence("load order", err)
	}
	return s.generate(ctx, order)
}

// SendResult describes a manual quote dispatch
type SendResult struct {
	To       string          `json:"to"`
	Document *DocumentResult `json:"document"`
}

// SendDocument regenerates the quote and emails a time-limited link to the customer. Delivery
// failures return ErrExternalService.
func (s *OrderService) SendDocument(ctx context.Context, actor models.Actor, orderID int64) (*SendResult, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.SendDocument")
	defer span.End()

	const op = "send_document"

	order, err := s.authorizeOrder(ctx, actor, models.ResourceDocuments, models.ActionEdit, orderID)
	if err != nil {
		return nil, s.fail(op, err)
	}
	if s.notifier == nil {
		return nil, s.fail(op, apperr.External("send quote", errors.New("no notification channel configured")))
	}

	doc, err := s.generate(ctx, order)
	if err != nil {
		return nil, s.fail(op, err)
	}

	req := &notify.Request{
		Mode:        notify.Manual,
		Kind:        notify.KindQuote,
		Order:       order,
		Link:        doc.URL,
		LinkExpires: doc.ExpiresAt,
	}
	if doc.URL == "" {
		items, err := s.repo.GetOrderItems(ctx, order.ID)
		if err != nil {
			return nil, s.fail(op, apperr.Persistence("load order items", err))
		}
		if req.Items, err = s.summaryItems(ctx, items); err != nil {
			s.logger.Warn("Notification summary without product names", zap.Int64("order_id", order.ID), zap.Error(err))
		}
	}

	if err := s.notifier.Dispatch(ctx, req); err != nil {
		util.RecordError(span, err)
		return nil, s.fail(op, err)
	}

	s.logger.Info("Quote sent", zap.Int64("order_id", order.ID), zap.String("to", order.CustomerEmail))
	return &SendResult{To: order.CustomerEmail, Document: doc}, nil
}

func (s *OrderService) generate(ctx context.Context, order *models.Order) (*DocumentResult, error) {
	if s.generator == nil {
		return nil, apperr.External("generate quote", errors.New("no document generator configured"))
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, s.settings.DocumentTimeout)
	defer cancel()

	snap, err := s.documentSnapshot(ctx, order)
	if err != nil {
		util.DocumentsGeneratedTotal.WithLabelValues("failed").Inc()
		return nil, err
	}

	out, err := s.generator.Generate(ctx, snap)
	if err != nil {
		util.DocumentsGeneratedTotal.WithLabelValues("failed").Inc()
		return nil, apperr.External("render quote", err)
	}

	res := &DocumentResult{
		OrderNumber: order.OrderNumber,
		Key:         artifact.QuoteKey(order.OrderNumber),
		Pages:       out.Document.PageCount(),
		Rows:        out.Document.RowCount(),
		Structure:   out.Document.Structure(),
	}

	if s.artifacts != nil {
		if err := s.artifacts.Put(ctx, res.Key, out.PDF); err != nil {
			util.DocumentsGeneratedTotal.WithLabelValues("failed").Inc()
			return nil, apperr.External("store quote", err)
		}

		url, err := s.artifacts.SignedURL(ctx, res.Key, s.settings.LinkTTL)
		if err != nil {
			util.DocumentsGeneratedTotal.WithLabelValues("failed").Inc()
			return nil, apperr.External("sign quote link", err)
		}
		res.URL = url
		res.ExpiresAt = s.now().Add(s.settings.LinkTTL).UTC()
	}

	util.DocumentsGeneratedTotal.WithLabelValues("ok").Inc()
	util.DocumentGenerationLatency.Observe(time.Since(start).Seconds())
	s.logger.Info("Quote generated",
		zap.Int64("order_id", order.ID),
		zap.String("key", res.Key),
		zap.Int("pages", res.Pages),
		zap.Int("rows", res.Rows))

	if s.events != nil {
		event := &models.DocumentGeneratedEvent{
			BaseEvent:   broker.NewBaseEvent(models.EventTypeDocumentGenerated),
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			Key:         res.Key,
			Pages:       res.Pages,
		}
		if err := s.events.PublishDocumentGenerated(ctx, event); err != nil {
			s.logger.Error("Failed to publish DocumentGenerated event", zap.Int64("order_id", order.ID), zap.Error(err))
		}
	}

	return res, nil
}

// documentSnapshot resolves items, products and parties of order
func (s *OrderService) documentSnapshot(ctx context.Context, order *models.Order) (*document.Snapshot, error) {
	items, err := s.repo.GetOrderItems(ctx, order.ID)
	if err != nil {
		return nil, apperr.Persistence("load order items", err)
	}

	products, err := s.loadProducts(ctx, items)
	if err != nil {
		return nil, err
	}

	customer := document.Party{Email: order.CustomerEmail}
	profile, err := s.repo.GetProfileByEmail(ctx, order.CustomerEmail)
	switch {
	case err == nil:
		customer = document.PartyFromProfile(profile)
	case !errors.Is(err, apperr.ErrNotFound):
		return nil, apperr.Persistence("load customer profile", err)
	}

	var salesperson *document.Party
	if order.SalespersonID != nil {
		p, err := s.repo.GetProfileByID(ctx, *order.SalespersonID)
		switch {
		case err == nil:
			party := document.PartyFromProfile(p)
			salesperson = &party
		case errors.Is(err, apperr.ErrNotFound):
			s.logger.Warn("Salesperson profile missing", zap.String("salesperson_id", *order.SalespersonID))
		default:
			return nil, apperr.Persistence(fmt.Sprintf("load salesperson %s", *order.SalespersonID), err)
		}
	}

	lookup := func(id int64) (*models.Product, bool) {
		p, ok := products[id]
		return p, ok
	}
	return document.NewSnapshot(order, items, lookup, customer, salesperson), nil
}
