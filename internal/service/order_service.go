package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"quote-service/internal/apperr"
	"quote-service/internal/audit"
	"quote-service/internal/broker"
	"quote-service/internal/changes"
	"quote-service/internal/document"
	"quote-service/internal/models"
	"quote-service/internal/permission"
	"quote-service/internal/redisclient"
	"quote-service/internal/store"
	"quote-service/internal/tasks"
	"quote-service/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Components are the collaborators of the order service. Events, Idempotency, PermCache,
// Artifacts, Notifier and Drafts are optional.
type Components struct {
	Repo        Repository
	Permissions *permission.Resolver
	PermCache   PermissionCache
	Audit       *audit.Logger
	Formatter   *audit.Formatter
	Events      EventPublisher
	Idempotency IdempotencyKeys
	Generator   *document.Generator
	Artifacts   ArtifactStore
	Notifier    Notifier
	Drafts      DraftStore
	Tasks       *tasks.Runner
}

// OrderService handles order business logic
type OrderService struct {
	repo        Repository
	permissions *permission.Resolver
	permCache   PermissionCache
	audit       *audit.Logger
	formatter   *audit.Formatter
	events      EventPublisher
	idempotency IdempotencyKeys
	generator   *document.Generator
	artifacts   ArtifactStore
	notifier    Notifier
	drafts      DraftStore
	tasks       *tasks.Runner
	settings    Settings
	now         func() time.Time
	logger      *zap.Logger
}

// NewOrderService creates a new order service
func NewOrderService(c Components, settings Settings) *OrderService {
	if c.Tasks == nil {
		c.Tasks = tasks.NewRunner()
	}
	if c.Formatter == nil {
		c.Formatter = audit.NewFormatter("")
	}
	return &OrderService{
		repo:        c.Repo,
		permissions: c.Permissions,
		permCache:   c.PermCache,
		audit:       c.Audit,
		formatter:   c.Formatter,
		events:      c.Events,
		idempotency: c.Idempotency,
		generator:   c.Generator,
		artifacts:   c.Artifacts,
		notifier:    c.Notifier,
		drafts:      c.Drafts,
		tasks:       c.Tasks,
		settings:    settings,
		now:         time.Now,
		logger:      util.GetLogger(),
	}
}

// OrderItemRequest is an item supplied by a caller
type OrderItemRequest struct {
	ProductID        *int64          `json:"product_id,omitempty"`
	CustomName       string          `json:"custom_name,omitempty"`
	CustomImage      string          `json:"custom_image,omitempty"`
	Quantity         int             `json:"quantity"`
	UnitPrice        decimal.Decimal `json:"unit_price"`
	SelectedVariants models.Variants `json:"selected_variants,omitempty"`
}

func (r OrderItemRequest) toItem() models.OrderItem {
	variants := r.SelectedVariants
	if variants == nil {
		variants = models.Variants{}
	}
	return models.OrderItem{
		ProductID:        r.ProductID,
		CustomName:       strings.TrimSpace(r.CustomName),
		CustomImage:      strings.TrimSpace(r.CustomImage),
		Quantity:         r.Quantity,
		UnitPrice:        r.UnitPrice,
		SelectedVariants: variants,
	}
}

// CreateOrderRequest represents a request to create an order
type CreateOrderRequest struct {
	CustomerEmail     string             `json:"customer_email"`
	Items             []OrderItemRequest `json:"items"`
	ShippingCost      decimal.Decimal    `json:"shipping_cost"`
	PaymentTerms      string             `json:"payment_terms"`
	DeliveryTerms     string             `json:"delivery_terms"`
	ValidityTerms     string             `json:"validity_terms"`
	Notes             string             `json:"notes"`
	SalespersonID     *string            `json:"salesperson_id,omitempty"`
	ContactPreference string             `json:"contact_preference"`
	IdempotencyKey    string             `json:"idempotency_key,omitempty"`
}

// OrderDetails is an order with its items. Warnings lists soft problems such as unknown
// variant names.
type OrderDetails struct {
	Order    *models.Order         `json:"order"`
	Items    []models.OrderItem    `json:"items"`
	Entry    *models.AuditLogEntry `json:"-"`
	Warnings []string              `json:"warnings,omitempty"`
}

// CreateOrder validates and persists a new order with its items and the created audit entry
func (s *OrderService) CreateOrder(ctx context.Context, actor models.Actor, req *CreateOrderRequest) (*OrderDetails, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrder")
	defer span.End()

	const op = "create_order"

	if err := s.permissions.Require(ctx, actor, models.ResourceOrders, models.ActionCreate); err != nil {
		return nil, s.fail(op, err)
	}

	order, items, err := s.newOrder(actor, req)
	if err != nil {
		return nil, s.fail(op, err)
	}

	if req.IdempotencyKey != "" && s.idempotency != nil {
		existingID, claimed, err := s.idempotency.ClaimIdempotencyKey(ctx, req.IdempotencyKey, s.settings.IdempotencyTTL)
		switch {
		case errors.Is(err, redisclient.ErrInFlight):
			return nil, s.fail(op, fmt.Errorf("%w: %v", apperr.ErrConflict, err))
		case err != nil:
			s.logger.Warn("Idempotency check failed, creating without deduplication", zap.Error(err))
		case !claimed:
			s.logger.Info("Duplicate order request detected",
				zap.String("idempotency_key", req.IdempotencyKey),
				zap.Int64("order_id", existingID))
			return s.GetOrder(ctx, actor, existingID)
		}
	}

	warnings, err := s.checkProducts(ctx, items)
	if err != nil {
		s.releaseKey(ctx, req.IdempotencyKey)
		return nil, s.fail(op, err)
	}

	var entry *models.AuditLogEntry
	err = s.repo.InTx(ctx, func(tx store.OrderTx) error {
		number, err := tx.NextOrderNumber(ctx, s.settings.OrderNumberPrefix, s.now().Year())
		if err != nil {
			return err
		}
		order.OrderNumber = number

		if err := tx.InsertOrder(ctx, order); err != nil {
			return fmt.Errorf("failed to insert order: %w", err)
		}

		diff := changes.Detect(nil, order.Snapshot(), models.OrderCreatedFields)
		for i := range items {
			items[i].OrderID = order.ID
			if err := tx.InsertOrderItem(ctx, &items[i]); err != nil {
				return fmt.Errorf("failed to insert order item: %w", err)
			}
			diff.Merge(models.ItemChanges(items[i].ID, nil, items[i].Snapshot()))
		}

		entry, err = s.audit.Append(ctx, tx, order.ID, models.AuditCreated, diff, actor)
		return err
	})
	if err != nil {
		s.releaseKey(ctx, req.IdempotencyKey)
		return nil, s.fail(op, err)
	}

	if req.IdempotencyKey != "" && s.idempotency != nil {
		if err := s.idempotency.CompleteIdempotencyKey(ctx, req.IdempotencyKey, order.ID, s.settings.IdempotencyTTL); err != nil {
			s.logger.Warn("Failed to record idempotency key", zap.Error(err))
		}
	}

	util.OrdersCreatedTotal.Inc()
	util.OrderMutationsTotal.WithLabelValues(op).Inc()
	s.logger.Info("Order created",
		zap.Int64("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.Int("items", len(items)))

	s.publishCreated(ctx, order)

	return &OrderDetails{Order: order, Items: items, Entry: entry, Warnings: warnings}, nil
}

func (s *OrderService) newOrder(actor models.Actor, req *CreateOrderRequest) (*models.Order, []models.OrderItem, error) {
	email := strings.TrimSpace(req.CustomerEmail)
	if actor.Role == models.RoleCustomer {
		if email == "" {
			email = actor.Email
		}
		if !strings.EqualFold(email, actor.Email) {
			return nil, nil, apperr.Denied(models.ResourceOrders, "create for another customer")
		}
	}
	if err := models.ValidateCustomerEmail(email); err != nil {
		return nil, nil, err
	}
	if !models.ValidContactPreference(req.ContactPreference) {
		return nil, nil, apperr.Validation("contact_preference", "must be email, phone or whatsapp")
	}
	if err := models.ValidateAmount("shipping_cost", req.ShippingCost); err != nil {
		return nil, nil, err
	}

	items := make([]models.OrderItem, 0, len(req.Items))
	for _, r := range req.Items {
		item := r.toItem()
		if err := item.Validate(); err != nil {
			return nil, nil, err
		}
		items = append(items, item)
	}

	salesperson := req.SalespersonID
	if salesperson != nil && *salesperson == "" {
		salesperson = nil
	}
	if salesperson == nil && actor.Role == models.RoleSalesperson {
		id := actor.ID
		salesperson = &id
	}

	order := &models.Order{
		Status:            models.StatusPending,
		CustomerEmail:     email,
		ShippingCost:      req.ShippingCost,
		PaymentTerms:      req.PaymentTerms,
		DeliveryTerms:     req.DeliveryTerms,
		ValidityTerms:     req.ValidityTerms,
		Notes:             req.Notes,
		SalespersonID:     salesperson,
		ContactPreference: req.ContactPreference,
	}
	order.Recalculate(items)
	return order, items, nil
}

// TermsPatch changes the commercial terms of an order. Nil fields are left unchanged; an empty
// SalespersonID unassigns the salesperson.
type TermsPatch struct {
	PaymentTerms      *string          `json:"payment_terms,omitempty"`
	DeliveryTerms     *string          `json:"delivery_terms,omitempty"`
	ValidityTerms     *string          `json:"validity_terms,omitempty"`
	Notes             *string          `json:"notes,omitempty"`
	ShippingCost      *decimal.Decimal `json:"shipping_cost,omitempty"`
	ContactPreference *string          `json:"contact_preference,omitempty"`
	SalespersonID     *string          `json:"salesperson_id,omitempty"`
	ExpectedVersion   *int             `json:"expected_version,omitempty"`
}

func (p *TermsPatch) validate() error {
	if p.ShippingCost != nil {
		if err := models.ValidateAmount("shipping_cost", *p.ShippingCost); err != nil {
			return err
		}
	}
	if p.ContactPreference != nil && !models.ValidContactPreference(*p.ContactPreference) {
		return apperr.Validation("contact_preference", "must be email, phone or whatsapp")
	}
	return nil
}

func (p *TermsPatch) apply(o *models.Order) {
	if p.PaymentTerms != nil {
		o.PaymentTerms = *p.PaymentTerms
	}
	if p.DeliveryTerms != nil {
		o.DeliveryTerms = *p.DeliveryTerms
	}
	if p.ValidityTerms != nil {
		o.ValidityTerms = *p.ValidityTerms
	}
	if p.Notes != nil {
		o.Notes = *p.Notes
	}
	if p.ShippingCost != nil {
		o.ShippingCost = *p.ShippingCost
	}
	if p.ContactPreference != nil {
		o.ContactPreference = *p.ContactPreference
	}
	if p.SalespersonID != nil {
		if *p.SalespersonID == "" {
			o.SalespersonID = nil
		} else {
			id := *p.SalespersonID
			o.SalespersonID = &id
		}
	}
}

// UpdateOrderTerms applies patch and recomputes the total. A patch that changes nothing commits
// nothing and writes no audit entry.
func (s *OrderService) UpdateOrderTerms(ctx context.Context, actor models.Actor, orderID int64, patch *TermsPatch) (*OrderDetails, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.UpdateOrderTerms")
	defer span.End()

	const op = "update_terms"

	if err := s.permissions.Require(ctx, actor, models.ResourceOrders, models.ActionEdit); err != nil {
		return nil, s.fail(op, err)
	}
	if err := patch.validate(); err != nil {
		return nil, s.fail(op, err)
	}

	res, err := s.mutate(ctx, actor, orderID, patch.ExpectedVersion, func(ctx context.Context, tx store.OrderTx, st *orderState) (models.AuditAction, changes.Changes, error) {
		before := st.order.Snapshot()
		patch.apply(st.order)
		st.order.Recalculate(st.items)
		return models.AuditUpdated, changes.Detect(before, st.order.Snapshot(), models.OrderTermsFields), nil
	})
	if err != nil {
		return nil, s.fail(op, err)
	}

	s.recordMutation(op, res)
	return res.details(), nil
}

// GetOrder returns an order and its items if the actor may see it
func (s *OrderService) GetOrder(ctx context.Context, actor models.Actor, orderID int64) (*OrderDetails, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.GetOrder")
	defer span.End()

	const op = "get_order"

	order, err := s.authorizeOrder(ctx, actor, models.ResourceOrders, models.ActionView, orderID)
	if err != nil {
		return nil, s.fail(op, err)
	}

	items, err := s.repo.GetOrderItems(ctx, orderID)
	if err != nil {
		return nil, s.fail(op, apperr.Persistence("load order items", err))
	}
	return &OrderDetails{Order: order, Items: items}, nil
}

// ListOrdersRequest filters order listings
type ListOrdersRequest struct {
	Status models.Status
	Limit  int
	Offset int
}

// ListOrders lists the orders visible to the actor, newest first
func (s *OrderService) ListOrders(ctx context.Context, actor models.Actor, req ListOrdersRequest) ([]models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.ListOrders")
	defer span.End()

	const op = "list_orders"

	if err := s.permissions.Require(ctx, actor, models.ResourceOrders, models.ActionView); err != nil {
		return nil, s.fail(op, err)
	}
	if req.Status != "" && !req.Status.Valid() {
		return nil, s.fail(op, apperr.Validation("status", "is not a known status"))
	}

	scope, err := s.scopeFor(ctx, actor)
	if err != nil {
		return nil, s.fail(op, err)
	}

	filter := store.OrderFilter{
		Status:        req.Status,
		SalespersonID: scope.SalespersonID,
		CustomerEmail: scope.CustomerEmail,
		Limit:         req.Limit,
		Offset:        req.Offset,
	}
	orders, err := s.repo.ListOrders(ctx, filter)
	if err != nil {
		return nil, s.fail(op, apperr.Persistence("list orders", err))
	}
	return scope.Filter(orders), nil
}

// scopeFor resolves the row scope of actor. Salespersons without a profile get their own clients only.
func (s *OrderService) scopeFor(ctx context.Context, actor models.Actor) (permission.Scope, error) {
	var profile *models.Profile
	if actor.Role == models.RoleSalesperson {
		p, err := s.repo.GetProfileByID(ctx, actor.ID)
		switch {
		case err == nil:
			profile = p
		case errors.Is(err, apperr.ErrNotFound):
		default:
			return permission.Scope{}, apperr.Persistence("load actor profile", err)
		}
	}
	return permission.RowScope(actor, profile), nil
}

// authorizeOrder applies the resource gate, then the row gate, and returns the order
func (s *OrderService) authorizeOrder(ctx context.Context, actor models.Actor, resource string, action models.Action, orderID int64) (*models.Order, error) {
	if err := s.permissions.Require(ctx, actor, resource, action); err != nil {
		return nil, err
	}

	scope, err := s.scopeFor(ctx, actor)
	if err != nil {
		return nil, err
	}

	order, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, err
		}
		return nil, apperr.Persistence("load order", err)
	}

	if !scope.Allows(order) {
		util.PermissionDeniedTotal.WithLabelValues(resource, string(action)).Inc()
		return nil, apperr.Denied(resource, string(action))
	}
	return order, nil
}

type orderState struct {
	order *models.Order
	items []models.OrderItem
	// item is the item the mutation touched, if any
	item *models.OrderItem
	// from is the status before a status change
	from     models.Status
	warnings []string
}

type mutationResult struct {
	state *orderState
	entry *models.AuditLogEntry
}

func (r *mutationResult) details() *OrderDetails {
	return &OrderDetails{Order: r.state.order, Items: r.state.items, Entry: r.entry, Warnings: r.state.warnings}
}

type mutationFunc func(ctx context.Context, tx store.OrderTx, st *orderState) (models.AuditAction, changes.Changes, error)

// mutate runs fn on the locked order inside one transaction. When fn reports changes the order is
// written with a version bump and the audit entry is appended in the same transaction; otherwise
// nothing is written.
func (s *OrderService) mutate(ctx context.Context, actor models.Actor, orderID int64, expectedVersion *int, fn mutationFunc) (*mutationResult, error) {
	scope, err := s.scopeFor(ctx, actor)
	if err != nil {
		return nil, err
	}

	res := &mutationResult{}
	err = s.repo.InTx(ctx, func(tx store.OrderTx) error {
		order, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if !scope.Allows(order) {
			util.PermissionDeniedTotal.WithLabelValues(models.ResourceOrders, string(models.ActionEdit)).Inc()
			return apperr.Denied(models.ResourceOrders, string(models.ActionEdit))
		}
		if expectedVersion != nil && *expectedVersion != order.Version {
			return fmt.Errorf("%w: order %d is at version %d, expected %d",
				apperr.ErrConflict, order.ID, order.Version, *expectedVersion)
		}

		items, err := tx.ListOrderItems(ctx, orderID)
		if err != nil {
			return fmt.Errorf("failed to load order items: %w", err)
		}

		st := &orderState{order: order, items: items, from: order.Status}
		res.state = st

		action, diff, err := fn(ctx, tx, st)
		if err != nil {
			return err
		}
		if diff.Empty() {
			s.logger.Debug("Mutation changed nothing", zap.Int64("order_id", orderID), zap.String("action", string(action)))
			return nil
		}

		if err := tx.UpdateOrder(ctx, st.order); err != nil {
			return err
		}

		res.entry, err = s.audit.Append(ctx, tx, order.ID, action, diff, actor)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// fail classifies err for callers and counts the failed operation. Errors outside the
// taxonomy are persistence failures.
func (s *OrderService) fail(op string, err error) error {
	reason := "persistence"
	switch {
	case errors.Is(err, apperr.ErrPermissionDenied):
		reason = "permission_denied"
	case errors.Is(err, apperr.ErrInvalidTransition):
		reason = "invalid_transition"
	case errors.Is(err, apperr.ErrValidation):
		reason = "validation"
	case errors.Is(err, apperr.ErrNotFound):
		reason = "not_found"
	case errors.Is(err, apperr.ErrConflict):
		reason = "conflict"
	case errors.Is(err, apperr.ErrExternalService):
		reason = "external"
	case errors.Is(err, apperr.ErrPersistence):
	default:
		err = apperr.Persistence(op, err)
	}

	util.OrderOperationsFailed.WithLabelValues(op, reason).Inc()
	if reason == "persistence" || reason == "external" {
		s.logger.Error("Order operation failed", zap.String("operation", op), zap.Error(err))
	}
	return err
}

func (s *OrderService) recordMutation(op string, res *mutationResult) {
	util.OrderMutationsTotal.WithLabelValues(op).Inc()
	if res.entry == nil {
		return
	}
	s.logger.Info("Order updated",
		zap.String("operation", op),
		zap.Int64("order_id", res.state.order.ID),
		zap.Int("version", res.state.order.Version),
		zap.Int("changed_fields", len(res.entry.Changes)))
}

// checkProducts verifies referenced products exist and returns warnings for variant names a
// product does not offer
func (s *OrderService) checkProducts(ctx context.Context, items []models.OrderItem) ([]string, error) {
	products, err := s.loadProducts(ctx, items)
	if err != nil {
		return nil, err
	}

	var warnings []string
	for i := range items {
		if items[i].ProductID == nil {
			continue
		}
		p, ok := products[*items[i].ProductID]
		if !ok {
			return nil, apperr.Validation("product_id", fmt.Sprintf("%d does not exist", *items[i].ProductID))
		}
		for _, name := range p.UnknownVariants(items[i].SelectedVariants) {
			s.logger.Warn("Item selects a variant the product does not offer",
				zap.Int64("product_id", p.ID),
				zap.String("variant", name))
			warnings = append(warnings, fmt.Sprintf("product %d has no variant %q", p.ID, name))
		}
	}
	return warnings, nil
}

func (s *OrderService) loadProducts(ctx context.Context, items []models.OrderItem) (map[int64]*models.Product, error) {
	seen := map[int64]bool{}
	var ids []int64
	for _, it := range items {
		if it.ProductID != nil && !seen[*it.ProductID] {
			seen[*it.ProductID] = true
			ids = append(ids, *it.ProductID)
		}
	}

	out := make(map[int64]*models.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	products, err := s.repo.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, apperr.Persistence("load products", err)
	}
	for i := range products {
		out[products[i].ID] = &products[i]
	}
	return out, nil
}

func (s *OrderService) releaseKey(ctx context.Context, key string) {
	if key == "" || s.idempotency == nil {
		return
	}
	if err := s.idempotency.ReleaseIdempotencyKey(ctx, key); err != nil {
		s.logger.Warn("Failed to release idempotency key", zap.String("key", key), zap.Error(err))
	}
}

func (s *OrderService) publishCreated(ctx context.Context, order *models.Order) {
	if s.events == nil {
		return
	}
	event := &models.OrderCreatedEvent{
		BaseEvent:     broker.NewBaseEvent(models.EventTypeOrderCreated),
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		CustomerEmail: order.CustomerEmail,
		Total:         order.Total.StringFixed(2),
	}
	if err := s.events.PublishOrderCreated(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderCreated event", zap.Int64("order_id", order.ID), zap.Error(err))
	}
}
