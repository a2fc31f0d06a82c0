package notify

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"quote-service/internal/apperr"
	"quote-service/internal/models"
	"quote-service/internal/util"

	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Mode decides how delivery failures surface
type Mode string

const (
	// Automatic dispatches run after a committed change; failures are logged only
	Automatic Mode = "automatic"
	// Manual dispatches are requested by an operator; failures are returned
	Manual Mode = "manual"
)

// Kind selects the message content
type Kind string

const (
	KindStatusChanged Kind = "status_changed"
	KindQuote         Kind = "quote"
)

// Item is one line of the inline order summary
type Item struct {
	Name      string
	Quantity  int
	LineTotal decimal.Decimal
}

// Request describes one notification about an order
type Request struct {
	Mode      Mode
	Kind      Kind
	Order     *models.Order
	Items     []Item
	OldStatus models.Status
	// Link to the stored quote. When empty the order summary is inlined.
	Link        string
	LinkExpires time.Time
}

// Config tunes delivery
type Config struct {
	Company         string
	Currency        string
	Attempts        int
	InitialInterval time.Duration
	Timeout         time.Duration
}

// Dispatcher renders and delivers order notifications
type Dispatcher struct {
	sender          Sender
	company         string
	currency        string
	attempts        int
	initialInterval time.Duration
	timeout         time.Duration
	logger          *zap.Logger
}

// NewDispatcher creates a dispatcher
func NewDispatcher(sender Sender, cfg Config) *Dispatcher {
	if cfg.Attempts < 1 {
		cfg.Attempts = 1
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = 500 * time.Millisecond
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Dispatcher{
		sender:          sender,
		company:         cfg.Company,
		currency:        cfg.Currency,
		attempts:        cfg.Attempts,
		initialInterval: cfg.InitialInterval,
		timeout:         cfg.Timeout,
		logger:          util.GetLogger(),
	}
}

// Dispatch sends the notification to the order's customer. In Automatic mode every failure is
// logged and nil is returned; in Manual mode delivery failures return ErrExternalService.
func (d *Dispatcher) Dispatch(ctx context.Context, req *Request) error {
	ctx, span := util.StartSpan(ctx, "Dispatcher.Dispatch")
	defer span.End()

	start := time.Now()
	err := d.deliver(ctx, req)
	util.NotificationLatency.Observe(time.Since(start).Seconds())

	result := "sent"
	if err != nil {
		result = "failed"
		util.RecordError(span, err)
	}
	util.NotificationsTotal.WithLabelValues(string(req.Mode), result).Inc()

	if err == nil {
		return nil
	}

	fields := []zap.Field{
		zap.String("mode", string(req.Mode)),
		zap.String("kind", string(req.Kind)),
		zap.Error(err),
	}
	if req.Order != nil {
		fields = append(fields, zap.Int64("order_id", req.Order.ID))
	}

	if req.Mode == Automatic {
		d.logger.Warn("Automatic notification failed", fields...)
		return nil
	}
	d.logger.Error("Notification failed", fields...)
	return err
}

func (d *Dispatcher) deliver(ctx context.Context, req *Request) error {
	if req.Order == nil {
		return apperr.Validation("order", "is required")
	}

	to := strings.TrimSpace(req.Order.CustomerEmail)
	if _, err := mail.ParseAddress(to); err != nil {
		return apperr.Validation("customer_email", "is not a deliverable address")
	}

	subject, body, err := d.render(req)
	if err != nil {
		return apperr.External("render notification", err)
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = d.initialInterval
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(d.attempts-1)), ctx)

	attempt := 0
	err = backoff.RetryNotify(func() error {
		attempt++
		return d.sender.Send(ctx, to, subject, body)
	}, policy, func(err error, wait time.Duration) {
		d.logger.Info("Retrying notification",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait),
			zap.Error(err))
	})
	if err != nil {
		return apperr.External("send notification", err)
	}

	d.logger.Info("Notification sent",
		zap.String("to", to),
		zap.String("kind", string(req.Kind)),
		zap.Int("attempts", attempt))
	return nil
}
