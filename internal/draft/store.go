package draft

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"quote-service/internal/apperr"
	"quote-service/internal/models"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Item is a line of a draft order
type Item struct {
	ID               string          `json:"id"`
	ProductID        *int64          `json:"product_id,omitempty"`
	CustomName       string          `json:"custom_name,omitempty"`
	CustomImage      string          `json:"custom_image,omitempty"`
	Quantity         int             `json:"quantity"`
	UnitPrice        decimal.Decimal `json:"unit_price"`
	SelectedVariants models.Variants `json:"selected_variants"`
}

// OrderItem converts the draft line into an unsaved order item
func (i Item) OrderItem() models.OrderItem {
	variants := i.SelectedVariants
	if variants == nil {
		variants = models.Variants{}
	}
	return models.OrderItem{
		ProductID:        i.ProductID,
		CustomName:       i.CustomName,
		CustomImage:      i.CustomImage,
		Quantity:         i.Quantity,
		UnitPrice:        i.UnitPrice,
		SelectedVariants: variants,
	}
}

// Draft is an order being assembled by a session before submission
type Draft struct {
	SessionID         string    `json:"session_id"`
	OwnerID           string    `json:"owner_id,omitempty"`
	CustomerEmail     string    `json:"customer_email"`
	ContactPreference string    `json:"contact_preference,omitempty"`
	Notes             string    `json:"notes,omitempty"`
	Items             []Item    `json:"items"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Subtotal is the sum of the draft's line totals
func (d *Draft) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, it := range d.Items {
		total = total.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total
}

// Store keeps drafts in redis. Every write refreshes the TTL.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
	now func() time.Time
}

// NewStore creates a draft store
func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl, now: time.Now}
}

func key(sessionID string) string {
	return fmt.Sprintf("draft:%s", sessionID)
}

func validSession(sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return apperr.Validation("session_id", "is required")
	}
	return nil
}

// Get returns the session's draft, or an empty draft owned by ownerID when none exists.
// A draft owned by someone else is denied.
func (s *Store) Get(ctx context.Context, sessionID, ownerID string) (*Draft, error) {
	d, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return &Draft{SessionID: sessionID, OwnerID: ownerID, Items: []Item{}}, nil
	}
	if err := checkOwner(d, ownerID); err != nil {
		return nil, err
	}
	if d.OwnerID == "" {
		d.OwnerID = ownerID
	}
	return d, nil
}

// load returns nil when the session has no draft
func (s *Store) load(ctx context.Context, sessionID string) (*Draft, error) {
	if err := validSession(sessionID); err != nil {
		return nil, err
	}

	raw, err := s.rdb.Get(ctx, key(sessionID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Persistence("read draft", err)
	}

	var d Draft
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, apperr.Persistence("decode draft", err)
	}
	if d.Items == nil {
		d.Items = []Item{}
	}
	return &d, nil
}

func checkOwner(d *Draft, ownerID string) error {
	if d.OwnerID != "" && d.OwnerID != ownerID {
		return apperr.Denied("draft", "access")
	}
	return nil
}

// Save validates and stores d. The first save fixes the draft's owner; saving over a draft
// owned by someone else is denied.
func (s *Store) Save(ctx context.Context, d *Draft) error {
	existing, err := s.load(ctx, d.SessionID)
	if err != nil {
		return err
	}
	if existing != nil {
		if err := checkOwner(existing, d.OwnerID); err != nil {
			return err
		}
	}
	if d.CustomerEmail != "" {
		if err := models.ValidateCustomerEmail(d.CustomerEmail); err != nil {
			return err
		}
	}
	if !models.ValidContactPreference(d.ContactPreference) {
		return apperr.Validation("contact_preference", "must be email, phone or whatsapp")
	}
	for i := range d.Items {
		item := d.Items[i].OrderItem()
		if err := item.Validate(); err != nil {
			return err
		}
		if d.Items[i].ID == "" {
			d.Items[i].ID = uuid.New().String()
		}
	}

	d.UpdatedAt = s.now().UTC()
	raw, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to encode draft: %w", err)
	}
	if err := s.rdb.Set(ctx, key(d.SessionID), raw, s.ttl).Err(); err != nil {
		return apperr.Persistence("save draft", err)
	}
	return nil
}

// AddItem appends item to the session's draft and returns the updated draft
func (s *Store) AddItem(ctx context.Context, sessionID, ownerID string, item Item) (*Draft, error) {
	d, err := s.Get(ctx, sessionID, ownerID)
	if err != nil {
		return nil, err
	}

	item.ID = uuid.New().String()
	d.Items = append(d.Items, item)
	if err := s.Save(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// RemoveItem drops the item with itemID
func (s *Store) RemoveItem(ctx context.Context, sessionID, ownerID, itemID string) (*Draft, error) {
	d, err := s.Get(ctx, sessionID, ownerID)
	if err != nil {
		return nil, err
	}

	idx := -1
	for i, it := range d.Items {
		if it.ID == itemID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, apperr.NotFound("draft item", itemID)
	}

	d.Items = append(d.Items[:idx], d.Items[idx+1:]...)
	if err := s.Save(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// Clear deletes the session's draft
func (s *Store) Clear(ctx context.Context, sessionID, ownerID string) error {
	if _, err := s.Get(ctx, sessionID, ownerID); err != nil {
		return err
	}
	if err := s.rdb.Del(ctx, key(sessionID)).Err(); err != nil {
		return apperr.Persistence("clear draft", err)
	}
	return nil
}
