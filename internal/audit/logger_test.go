package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"quote-service/internal/changes"
	"quote-service/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryLog struct {
	entries []models.AuditLogEntry
	failing bool
}

func (m *memoryLog) InsertAuditEntry(_ context.Context, e *models.AuditLogEntry) error {
	if m.failing {
		return errors.New("insert failed")
	}
	e.ID = int64(len(m.entries) + 1)
	m.entries = append(m.entries, *e)
	return nil
}

func (m *memoryLog) ListAuditEntries(_ context.Context, orderID int64) ([]models.AuditLogEntry, error) {
	var out []models.AuditLogEntry
	for _, e := range m.entries {
		if e.OrderID == orderID {
			out = append(out, e)
		}
	}
	return out, nil
}

func TestAppendWritesEntry(t *testing.T) {
	log := &memoryLog{}
	l := NewLogger(log)
	actor := models.Actor{ID: "s1", Email: "sales@example.com", Name: "Sam", Role: models.RoleSalesperson}
	diff := changes.Changes{"status": {Old: changes.String("pending"), New: changes.String("processing")}}

	entry, err := l.Append(context.Background(), log, 7, models.AuditStatusChanged, diff, actor)

	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, int64(7), entry.OrderID)
	assert.Equal(t, "Sam", *entry.ActorName)
	require.Len(t, log.entries, 1)
	assert.Equal(t, "processing", log.entries[0].Changes["status"].New.Str())
}

func TestAppendSuppressesEmptyDiff(t *testing.T) {
	log := &memoryLog{}
	l := NewLogger(log)

	entry, err := l.Append(context.Background(), log, 7, models.AuditUpdated, changes.Changes{}, models.System)

	require.NoError(t, err)
	assert.Nil(t, entry)
	assert.Empty(t, log.entries)
}

func TestAppendPropagatesWriteFailure(t *testing.T) {
	log := &memoryLog{failing: true}
	l := NewLogger(log)
	diff := changes.Changes{"notes": {Old: changes.String(""), New: changes.String("x")}}

	_, err := l.Append(context.Background(), log, 1, models.AuditUpdated, diff, models.System)
	assert.Error(t, err)
}

func TestListMostRecentFirst(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	log := &memoryLog{entries: []models.AuditLogEntry{
		{ID: 1, OrderID: 1, Action: models.AuditCreated, CreatedAt: base},
		{ID: 2, OrderID: 1, Action: models.AuditItemAdded, CreatedAt: base.Add(time.Minute)},
		{ID: 3, OrderID: 2, Action: models.AuditCreated, CreatedAt: base.Add(2 * time.Minute)},
		{ID: 4, OrderID: 1, Action: models.AuditStatusChanged, CreatedAt: base.Add(time.Minute)},
	}}

	entries, err := NewLogger(log).List(context.Background(), 1)

	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, []int64{4, 2, 1}, []int64{entries[0].ID, entries[1].ID, entries[2].ID})
}

func TestFormatIsReadTimeOnly(t *testing.T) {
	entry := models.AuditLogEntry{
		ID:     9,
		Action: models.AuditItemAdded,
		Changes: changes.Changes{
			"total":                     {Old: changes.Number(decimal.RequireFromString("25")), New: changes.Number(decimal.RequireFromString("32.5"))},
			"items.4.selected_variants": {Old: changes.Null(), New: changes.Map(map[string]string{"size": "L", "color": "red"})},
			"status":                    {Old: changes.String("approved"), New: changes.String("processing")},
		},
		CreatedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}

	out := NewFormatter("$").Format(entry)

	assert.Equal(t, models.AuditItemAdded, out.Code)
	assert.Equal(t, "Item added", out.Action)
	assert.Equal(t, "System", out.Actor)
	require.Len(t, out.Changes, 3)

	byField := map[string]FormattedChange{}
	for _, c := range out.Changes {
		byField[c.Field] = c
	}
	assert.Equal(t, "$ 32.50", byField["Total"].New)
	assert.Equal(t, "color: red, size: L", byField["Item #4 variants"].New)
	assert.Equal(t, "-", byField["Item #4 variants"].Old)
	assert.Equal(t, "Approved", byField["Status"].Old)

	assert.True(t, entry.Changes["total"].New.Num().Equal(decimal.RequireFromString("32.5")))
}
