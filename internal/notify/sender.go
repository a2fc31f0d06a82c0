package notify

import (
	"context"

	"quote-service/internal/broker"
	"quote-service/internal/models"
)

// Sender delivers one HTML message
type Sender interface {
	Send(ctx context.Context, to, subject, html string) error
}

// KafkaSender hands messages to the external mailer through the notifications topic
type KafkaSender struct {
	producer *broker.Producer
}

// NewKafkaSender creates a sender publishing on producer's topic
func NewKafkaSender(producer *broker.Producer) *KafkaSender {
	return &KafkaSender{producer: producer}
}

// Send publishes an EMAIL_REQUESTED event keyed by recipient
func (s *KafkaSender) Send(ctx context.Context, to, subject, html string) error {
	event := &models.EmailRequestedEvent{
		BaseEvent: broker.NewBaseEvent(models.EventTypeEmailRequested),
		To:        to,
		Subject:   subject,
		HTMLBody:  html,
	}
	return s.producer.PublishEvent(ctx, to, event)
}
