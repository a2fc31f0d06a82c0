package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"quote-service/internal/apperr"
	"quote-service/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentMessage struct {
	to, subject, html string
}

type fakeSender struct {
	mu       sync.Mutex
	failures int
	calls    int
	sent     []sentMessage
}

func (f *fakeSender) Send(ctx context.Context, to, subject, html string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failures {
		return errors.New("mailer unavailable")
	}
	f.sent = append(f.sent, sentMessage{to: to, subject: subject, html: html})
	return nil
}

func testDispatcher(sender Sender, attempts int) *Dispatcher {
	return NewDispatcher(sender, Config{
		Company:         "Acme Prints",
		Currency:        "$",
		Attempts:        attempts,
		InitialInterval: time.Millisecond,
		Timeout:         time.Second,
	})
}

func testOrder() *models.Order {
	return &models.Order{
		ID:            1,
		OrderNumber:   "Q-2024-000001",
		Status:        models.StatusProcessing,
		CustomerEmail: "ana@example.com",
		ShippingCost:  decimal.Zero,
		Total:         decimal.RequireFromString("32.5"),
	}
}

func TestDispatch_StatusChangedInlineSummary(t *testing.T) {
	sender := &fakeSender{}
	d := testDispatcher(sender, 3)

	err := d.Dispatch(context.Background(), &Request{
		Mode:      Automatic,
		Kind:      KindStatusChanged,
		Order:     testOrder(),
		OldStatus: models.StatusPending,
		Items:     []Item{{Name: "Mug <large>", Quantity: 2, LineTotal: decimal.RequireFromString("25")}},
	})

	require.NoError(t, err)
	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, "ana@example.com", msg.to)
	assert.Equal(t, "Acme Prints - Quote Q-2024-000001: Processing", msg.subject)
	assert.Contains(t, msg.html, "is now <strong>Processing</strong>")
	assert.Contains(t, msg.html, "(was Pending)")
	assert.Contains(t, msg.html, "Mug &lt;large&gt;")
	assert.Contains(t, msg.html, "$ 32.50")
}

func TestDispatch_QuoteLink(t *testing.T) {
	sender := &fakeSender{}
	d := testDispatcher(sender, 1)

	err := d.Dispatch(context.Background(), &Request{
		Mode:        Manual,
		Kind:        KindQuote,
		Order:       testOrder(),
		Link:        "https://files.example.com/quotes/Q-2024-000001.pdf?sig=abc",
		LinkExpires: time.Date(2024, 3, 8, 10, 0, 0, 0, time.UTC),
	})

	require.NoError(t, err)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "Acme Prints - Your quote Q-2024-000001", sender.sent[0].subject)
	assert.Contains(t, sender.sent[0].html, "https://files.example.com/quotes/Q-2024-000001.pdf?sig=abc")
	assert.Contains(t, sender.sent[0].html, "2024-03-08")
	assert.False(t, strings.Contains(sender.sent[0].html, "<table"))
}

func TestDispatch_RetriesThenSucceeds(t *testing.T) {
	sender := &fakeSender{failures: 2}
	d := testDispatcher(sender, 3)

	err := d.Dispatch(context.Background(), &Request{Mode: Manual, Kind: KindQuote, Order: testOrder()})

	require.NoError(t, err)
	assert.Equal(t, 3, sender.calls)
	assert.Len(t, sender.sent, 1)
}

func TestDispatch_ManualFailureIsExternal(t *testing.T) {
	sender := &fakeSender{failures: 10}
	d := testDispatcher(sender, 2)

	err := d.Dispatch(context.Background(), &Request{Mode: Manual, Kind: KindQuote, Order: testOrder()})

	assert.ErrorIs(t, err, apperr.ErrExternalService)
	assert.Equal(t, 2, sender.calls)
}

func TestDispatch_AutomaticFailureSwallowed(t *testing.T) {
	sender := &fakeSender{failures: 10}
	d := testDispatcher(sender, 2)

	err := d.Dispatch(context.Background(), &Request{Mode: Automatic, Kind: KindStatusChanged, Order: testOrder()})

	assert.NoError(t, err)
	assert.Empty(t, sender.sent)
}

func TestDispatch_InvalidRecipient(t *testing.T) {
	sender := &fakeSender{}
	d := testDispatcher(sender, 1)
	order := testOrder()
	order.CustomerEmail = ""

	err := d.Dispatch(context.Background(), &Request{Mode: Manual, Kind: KindQuote, Order: order})

	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Zero(t, sender.calls)
}
