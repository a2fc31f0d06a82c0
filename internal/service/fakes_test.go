package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"quote-service/internal/apperr"
	"quote-service/internal/models"
	"quote-service/internal/store"
)

var errInjected = errors.New("injected failure")

// memRepo is an in-memory Repository. InTx restores the previous state when fn fails.
type memRepo struct {
	txMu sync.Mutex
	mu   sync.Mutex

	orders    map[int64]models.Order
	items     map[int64]models.OrderItem
	audit     []models.AuditLogEntry
	products  map[int64]models.Product
	profiles  map[string]models.Profile
	perms     map[string]models.ResourcePermission
	resources []models.Resource

	seq, nextOrderID, nextItemID, nextAuditID int64

	failAuditInsert bool
	// failReads makes the order, item and audit listings fail
	failReads bool
	// productReads counts product lookups; lookups past failProductsAfter fail when it is set
	productReads      int
	failProductsAfter int
	now               time.Time
}

func newMemRepo() *memRepo {
	return &memRepo{
		orders:   map[int64]models.Order{},
		items:    map[int64]models.OrderItem{},
		products: map[int64]models.Product{},
		profiles: map[string]models.Profile{},
		perms:    map[string]models.ResourcePermission{},
		resources: []models.Resource{
			{Name: models.ResourceAuditLog},
			{Name: models.ResourceCustomers},
			{Name: models.ResourceDocuments},
			{Name: models.ResourceOrders},
			{Name: models.ResourcePermissions},
		},
		now: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

type memSnapshot struct {
	orders                                    map[int64]models.Order
	items                                     map[int64]models.OrderItem
	audit                                     []models.AuditLogEntry
	seq, nextOrderID, nextItemID, nextAuditID int64
}

func (r *memRepo) snapshot() memSnapshot {
	s := memSnapshot{
		orders:      make(map[int64]models.Order, len(r.orders)),
		items:       make(map[int64]models.OrderItem, len(r.items)),
		audit:       append([]models.AuditLogEntry(nil), r.audit...),
		seq:         r.seq,
		nextOrderID: r.nextOrderID,
		nextItemID:  r.nextItemID,
		nextAuditID: r.nextAuditID,
	}
	for k, v := range r.orders {
		s.orders[k] = v
	}
	for k, v := range r.items {
		s.items[k] = v
	}
	return s
}

func (r *memRepo) restore(s memSnapshot) {
	r.orders, r.items, r.audit = s.orders, s.items, s.audit
	r.seq, r.nextOrderID, r.nextItemID, r.nextAuditID = s.seq, s.nextOrderID, s.nextItemID, s.nextAuditID
}

func (r *memRepo) InTx(ctx context.Context, fn func(tx store.OrderTx) error) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()

	r.mu.Lock()
	backup := r.snapshot()
	r.mu.Unlock()

	if err := fn(&memTx{r: r}); err != nil {
		r.mu.Lock()
		r.restore(backup)
		r.mu.Unlock()
		return err
	}
	return nil
}

func (r *memRepo) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, apperr.NotFound("order", id)
	}
	return &o, nil
}

func (r *memRepo) itemsOf(orderID int64) []models.OrderItem {
	var out []models.OrderItem
	for _, it := range r.items {
		if it.OrderID == orderID {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *memRepo) GetOrderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failReads {
		return nil, errInjected
	}
	return r.itemsOf(orderID), nil
}

func (r *memRepo) ListOrders(ctx context.Context, f store.OrderFilter) ([]models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failReads {
		return nil, errInjected
	}
	var out []models.Order
	for _, o := range r.orders {
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		if f.SalespersonID != "" && (o.SalespersonID == nil || *o.SalespersonID != f.SalespersonID) {
			continue
		}
		if f.CustomerEmail != "" && !strings.EqualFold(o.CustomerEmail, f.CustomerEmail) {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *memRepo) ListAuditEntries(ctx context.Context, orderID int64) ([]models.AuditLogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failReads {
		return nil, errInjected
	}
	var out []models.AuditLogEntry
	for _, e := range r.audit {
		if e.OrderID == orderID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memRepo) GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.productReads++
	if r.failProductsAfter > 0 && r.productReads > r.failProductsAfter {
		return nil, errInjected
	}
	var out []models.Product
	for _, id := range ids {
		if p, ok := r.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memRepo) GetProfileByID(ctx context.Context, id string) (*models.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[id]
	if !ok {
		return nil, apperr.NotFound("profile", id)
	}
	return &p, nil
}

func (r *memRepo) GetProfileByEmail(ctx context.Context, email string) (*models.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.profiles {
		if strings.EqualFold(p.Email, email) {
			return &p, nil
		}
	}
	return nil, apperr.NotFound("profile", email)
}

func permKey(role models.Role, resource string) string {
	return string(role) + "/" + resource
}

func (r *memRepo) GetResourcePermission(ctx context.Context, role models.Role, resource string) (*models.ResourcePermission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.perms[permKey(role, resource)]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r *memRepo) ListResourcePermissions(ctx context.Context) ([]models.ResourcePermission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.ResourcePermission
	for _, p := range r.perms {
		out = append(out, p)
	}
	return out, nil
}

func (r *memRepo) UpsertResourcePermission(ctx context.Context, perm *models.ResourcePermission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.perms[permKey(perm.Role, perm.Resource)] = *perm
	return nil
}

func (r *memRepo) ListResources(ctx context.Context) ([]models.Resource, error) {
	return r.resources, nil
}

func (r *memRepo) auditCount(orderID int64) int {
	entries, _ := r.ListAuditEntries(context.Background(), orderID)
	return len(entries)
}

type memTx struct {
	r *memRepo
}

func (t *memTx) LockOrder(ctx context.Context, id int64) (*models.Order, error) {
	return t.r.GetOrderByID(ctx, id)
}

func (t *memTx) ListOrderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	return t.r.GetOrderItems(ctx, orderID)
}

func (t *memTx) NextOrderNumber(ctx context.Context, prefix string, year int) (string, error) {
	t.r.mu.Lock()
	defer t.r.mu.Unlock()
	t.r.seq++
	return fmt.Sprintf("%s-%d-%06d", prefix, year, t.r.seq), nil
}

func (t *memTx) InsertOrder(ctx context.Context, order *models.Order) error {
	t.r.mu.Lock()
	defer t.r.mu.Unlock()
	t.r.nextOrderID++
	order.ID = t.r.nextOrderID
	order.Version = 1
	order.CreatedAt = t.r.now
	order.UpdatedAt = t.r.now
	t.r.orders[order.ID] = *order
	return nil
}

func (t *memTx) UpdateOrder(ctx context.Context, order *models.Order) error {
	t.r.mu.Lock()
	defer t.r.mu.Unlock()
	stored, ok := t.r.orders[order.ID]
	if !ok || stored.Version != order.Version {
		return fmt.Errorf("%w: order %d at version %d", apperr.ErrConflict, order.ID, order.Version)
	}
	order.Version++
	order.OrderNumber = stored.OrderNumber
	order.UpdatedAt = t.r.now
	t.r.orders[order.ID] = *order
	return nil
}

func (t *memTx) InsertOrderItem(ctx context.Context, item *models.OrderItem) error {
	t.r.mu.Lock()
	defer t.r.mu.Unlock()
	t.r.nextItemID++
	item.ID = t.r.nextItemID
	t.r.items[item.ID] = *item
	return nil
}

func (t *memTx) UpdateOrderItem(ctx context.Context, item *models.OrderItem) error {
	t.r.mu.Lock()
	defer t.r.mu.Unlock()
	stored, ok := t.r.items[item.ID]
	if !ok || stored.OrderID != item.OrderID {
		return apperr.NotFound("order item", item.ID)
	}
	t.r.items[item.ID] = *item
	return nil
}

func (t *memTx) DeleteOrderItem(ctx context.Context, orderID, itemID int64) error {
	t.r.mu.Lock()
	defer t.r.mu.Unlock()
	stored, ok := t.r.items[itemID]
	if !ok || stored.OrderID != orderID {
		return apperr.NotFound("order item", itemID)
	}
	delete(t.r.items, itemID)
	return nil
}

func (t *memTx) InsertAuditEntry(ctx context.Context, entry *models.AuditLogEntry) error {
	t.r.mu.Lock()
	defer t.r.mu.Unlock()
	if t.r.failAuditInsert {
		return errInjected
	}
	t.r.nextAuditID++
	entry.ID = t.r.nextAuditID
	t.r.audit = append(t.r.audit, *entry)
	return nil
}

type memEvents struct {
	mu            sync.Mutex
	created       []*models.OrderCreatedEvent
	statusChanged []*models.OrderStatusChangedEvent
	documents     []*models.DocumentGeneratedEvent
}

func (e *memEvents) PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.created = append(e.created, event)
	return nil
}

func (e *memEvents) PublishStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.statusChanged = append(e.statusChanged, event)
	return nil
}

func (e *memEvents) PublishDocumentGenerated(ctx context.Context, event *models.DocumentGeneratedEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.documents = append(e.documents, event)
	return nil
}

type memKeys struct {
	mu   sync.Mutex
	keys map[string]int64
}

func (k *memKeys) ClaimIdempotencyKey(ctx context.Context, key string, ttl time.Duration) (int64, bool, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if id, ok := k.keys[key]; ok {
		return id, false, nil
	}
	k.keys[key] = 0
	return 0, true, nil
}

func (k *memKeys) CompleteIdempotencyKey(ctx context.Context, key string, orderID int64, ttl time.Duration) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.keys[key] = orderID
	return nil
}

func (k *memKeys) ReleaseIdempotencyKey(ctx context.Context, key string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.keys, key)
	return nil
}

type memArtifacts struct {
	mu      sync.Mutex
	objects map[string][]byte
	fail    bool
}

func (a *memArtifacts) Put(ctx context.Context, key string, data []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fail {
		return errInjected
	}
	a.objects[key] = data
	return nil
}

func (a *memArtifacts) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return fmt.Sprintf("https://files.example.com/%s?expires=%d", key, int(ttl.Seconds())), nil
}

type memSender struct {
	mu   sync.Mutex
	fail bool
	sent []string
}

func (s *memSender) Send(ctx context.Context, to, subject, html string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errInjected
	}
	s.sent = append(s.sent, to+": "+subject)
	return nil
}

func (s *memSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}
