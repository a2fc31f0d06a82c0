package changes

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var trackedFields = []string{"notes", "shipping_cost", "selected_variants", "salesperson_id"}

func sampleSnapshot() Snapshot {
	return Snapshot{
		"notes":             String("call before delivery"),
		"shipping_cost":     Number(decimal.RequireFromString("5.00")),
		"selected_variants": Map(map[string]string{"size": "L", "color": "red"}),
		"salesperson_id":    Null(),
	}
}

func TestDetectIdenticalSnapshotsIsEmpty(t *testing.T) {
	x := sampleSnapshot()

	assert.Empty(t, Detect(x, x, trackedFields))
	assert.Empty(t, Detect(x, sampleSnapshot(), trackedFields))
	assert.Empty(t, Detect(x, x, trackedFields), "second call must also be empty")
}

func TestDetectReportsOnlyDifferingFields(t *testing.T) {
	old := sampleSnapshot()
	updated := sampleSnapshot()
	updated["notes"] = String("leave at reception")
	updated["selected_variants"] = Map(map[string]string{"size": "XL", "color": "red"})

	got := Detect(old, updated, trackedFields)

	require.Len(t, got, 2)
	assert.Equal(t, "call before delivery", got["notes"].Old.Str())
	assert.Equal(t, "leave at reception", got["notes"].New.Str())
	assert.Equal(t, "L", got["selected_variants"].Old.StringMap()["size"])
	assert.Equal(t, "XL", got["selected_variants"].New.StringMap()["size"])
	assert.NotContains(t, got, "shipping_cost")
}

func TestDetectComparesStructurally(t *testing.T) {
	old := Snapshot{
		"shipping_cost":     Number(decimal.RequireFromString("5.00")),
		"selected_variants": Map(map[string]string{"a": "1", "b": "2"}),
	}
	updated := Snapshot{
		"shipping_cost":     Number(decimal.RequireFromString("5")),
		"selected_variants": Map(map[string]string{"b": "2", "a": "1"}),
	}

	assert.Empty(t, Detect(old, updated, trackedFields))
}

func TestDetectMissingFieldIsNull(t *testing.T) {
	got := Detect(Snapshot{}, Snapshot{"notes": String("hello")}, trackedFields)

	require.Contains(t, got, "notes")
	assert.True(t, got["notes"].Old.IsNull())
	assert.Equal(t, "hello", got["notes"].New.Str())
}

func TestDetectIgnoresUntrackedFields(t *testing.T) {
	got := Detect(Snapshot{"total": Int(1)}, Snapshot{"total": Int(2)}, trackedFields)
	assert.Empty(t, got)
}

func TestDetectDistinguishesKinds(t *testing.T) {
	got := Detect(Snapshot{"notes": String("1")}, Snapshot{"notes": Int(1)}, trackedFields)
	assert.Contains(t, got, "notes")
}

func TestChangesRoundTripKeepsKinds(t *testing.T) {
	in := Changes{
		"status":        {Old: String("pending"), New: String("processing")},
		"shipping_cost": {Old: Null(), New: Number(decimal.RequireFromString("7.50"))},
		"variants":      {Old: Map(nil), New: Map(map[string]string{"size": "M"})},
	}

	raw, err := in.Value()
	require.NoError(t, err)

	var out Changes
	require.NoError(t, out.Scan(raw))

	assert.Equal(t, KindString, out["status"].New.Kind())
	assert.Equal(t, KindNull, out["shipping_cost"].Old.Kind())
	assert.Equal(t, KindNumber, out["shipping_cost"].New.Kind())
	assert.True(t, out["shipping_cost"].New.Num().Equal(decimal.RequireFromString("7.5")))
	assert.Equal(t, KindMap, out["variants"].New.Kind())
	assert.Equal(t, "M", out["variants"].New.StringMap()["size"])
}

func TestNumberIsStoredUnformatted(t *testing.T) {
	raw, err := json.Marshal(Change{Old: Int(10), New: Number(decimal.RequireFromString("32.50"))})
	require.NoError(t, err)
	assert.JSONEq(t, `{"old":10,"new":32.5}`, string(raw))
}
