package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"quote-service/internal/apperr"
	"quote-service/internal/broker"
	"quote-service/internal/models"
	"quote-service/internal/redisclient"
	"quote-service/internal/service"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRegenerator struct {
	calls []int64
	err   error
	// failures is the number of leading calls that fail with err
	failures int
}

func (f *fakeRegenerator) RegenerateDocument(ctx context.Context, orderID int64) (*service.DocumentResult, error) {
	f.calls = append(f.calls, orderID)
	if f.err != nil && (f.failures == 0 || len(f.calls) <= f.failures) {
		return nil, f.err
	}
	return &service.DocumentResult{Pages: 1}, nil
}

type memProcessed struct {
	ids map[string]string
}

func (m *memProcessed) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	_, ok := m.ids[eventID]
	return ok, nil
}

func (m *memProcessed) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	m.ids[eventID] = eventType
	return nil
}

func statusMessage(t *testing.T, orderID int64) (kafka.Message, string) {
	t.Helper()
	event := models.OrderStatusChangedEvent{
		BaseEvent: broker.NewBaseEvent(models.EventTypeOrderStatusChanged),
		OrderID:   orderID,
		OldStatus: models.StatusPending,
		NewStatus: models.StatusProcessing,
	}
	raw, err := json.Marshal(event)
	require.NoError(t, err)
	return kafka.Message{Value: raw}, event.EventID
}

func newLocker(t *testing.T) (*redisclient.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redisclient.Wrap(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestStatusChangeRegeneratesOnce(t *testing.T) {
	docs := &fakeRegenerator{}
	processed := &memProcessed{ids: map[string]string{}}
	locker, _ := newLocker(t)
	w := NewDocumentWorker(nil, docs, processed, locker, time.Minute)

	msg, eventID := statusMessage(t, 7)
	require.NoError(t, w.Handler().HandleMessage(context.Background(), msg))
	require.NoError(t, w.Handler().HandleMessage(context.Background(), msg))

	assert.Equal(t, []int64{7}, docs.calls)
	assert.Equal(t, models.EventTypeOrderStatusChanged, processed.ids[eventID])
}

func TestStatusChangeFailureIsRetried(t *testing.T) {
	docs := &fakeRegenerator{err: apperr.External("store quote", errors.New("bucket unavailable"))}
	processed := &memProcessed{ids: map[string]string{}}
	w := NewDocumentWorker(nil, docs, processed, nil, time.Minute)

	msg, eventID := statusMessage(t, 3)
	err := w.Handler().HandleMessage(context.Background(), msg)
	assert.ErrorIs(t, err, apperr.ErrExternalService)
	assert.NotContains(t, processed.ids, eventID)
}

func TestStatusChangeForDeletedOrder(t *testing.T) {
	docs := &fakeRegenerator{err: apperr.NotFound("order", 9)}
	processed := &memProcessed{ids: map[string]string{}}
	w := NewDocumentWorker(nil, docs, processed, nil, time.Minute)

	msg, eventID := statusMessage(t, 9)
	require.NoError(t, w.Handler().HandleMessage(context.Background(), msg))
	assert.Contains(t, processed.ids, eventID)
}

func TestStatusChangeWhileLocked(t *testing.T) {
	docs := &fakeRegenerator{}
	processed := &memProcessed{ids: map[string]string{}}
	locker, mr := newLocker(t)
	w := NewDocumentWorker(nil, docs, processed, locker, time.Minute)

	ok, err := locker.AcquireLock(context.Background(), "document:5", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	msg, _ := statusMessage(t, 5)
	err = w.Handler().HandleMessage(context.Background(), msg)
	assert.ErrorIs(t, err, ErrLocked)
	assert.Empty(t, docs.calls)

	mr.FastForward(2 * time.Minute)
	require.NoError(t, w.Handler().HandleMessage(context.Background(), msg))
	assert.Equal(t, []int64{5}, docs.calls)
	assert.False(t, mr.Exists("lock:document:5"))
}

func TestHandleWithRetryRecovers(t *testing.T) {
	docs := &fakeRegenerator{err: apperr.External("store quote", errors.New("timeout")), failures: 1}
	processed := &memProcessed{ids: map[string]string{}}
	w := NewDocumentWorker(nil, docs, processed, nil, time.Minute)

	msg, eventID := statusMessage(t, 4)
	require.NoError(t, w.handleWithRetry(context.Background(), msg))
	assert.Equal(t, []int64{4, 4}, docs.calls)
	assert.Contains(t, processed.ids, eventID)
}
