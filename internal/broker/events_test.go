package broker

import (
	"context"
	"encoding/json"
	"testing"

	"quote-service/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleMessage_RoutesStatusChanged(t *testing.T) {
	event := models.OrderStatusChangedEvent{
		BaseEvent:   NewBaseEvent(models.EventTypeOrderStatusChanged),
		OrderID:     7,
		OrderNumber: "Q-2024-000007",
		OldStatus:   models.StatusPending,
		NewStatus:   models.StatusProcessing,
	}
	raw, err := json.Marshal(event)
	require.NoError(t, err)

	var got *models.OrderStatusChangedEvent
	h := NewEventHandler()
	h.OnStatusChanged(func(ctx context.Context, e *models.OrderStatusChangedEvent) error {
		got = e
		return nil
	})

	require.NoError(t, h.HandleMessage(context.Background(), kafka.Message{Value: raw}))
	require.NotNil(t, got)
	assert.Equal(t, int64(7), got.OrderID)
	assert.Equal(t, models.StatusProcessing, got.NewStatus)
	assert.Equal(t, event.EventID, got.EventID)
}

func TestHandleMessage_IgnoresOtherTypes(t *testing.T) {
	raw, err := json.Marshal(models.OrderCreatedEvent{BaseEvent: NewBaseEvent(models.EventTypeOrderCreated)})
	require.NoError(t, err)

	called := false
	h := NewEventHandler()
	h.OnStatusChanged(func(ctx context.Context, e *models.OrderStatusChangedEvent) error {
		called = true
		return nil
	})

	assert.NoError(t, h.HandleMessage(context.Background(), kafka.Message{Value: raw}))
	assert.False(t, called)
}

func TestHandleMessage_InvalidPayload(t *testing.T) {
	err := NewEventHandler().HandleMessage(context.Background(), kafka.Message{Value: []byte("{")})
	assert.Error(t, err)
}
