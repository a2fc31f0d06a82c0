package changes

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
)

// Snapshot is the tracked state of an entity at one point in time
type Snapshot map[string]Value

// Change holds the raw values before and after a mutation
type Change struct {
	Old Value `json:"old"`
	New Value `json:"new"`
}

// Changes maps a field name to its change
type Changes map[string]Change

// Detect returns the fields from fields whose values differ between old and new.
// A field missing from a snapshot is treated as null.
func Detect(old, new Snapshot, fields []string) Changes {
	out := Changes{}
	for _, f := range fields {
		o, n := old[f], new[f]
		if o.Equal(n) {
			continue
		}
		out[f] = Change{Old: o, New: n}
	}
	return out
}

// Fields returns the snapshot's field names in sorted order
func (s Snapshot) Fields() []string {
	fields := make([]string, 0, len(s))
	for f := range s {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// Empty reports whether there is nothing to record
func (c Changes) Empty() bool {
	return len(c) == 0
}

// Fields returns the changed field names in sorted order
func (c Changes) Fields() []string {
	fields := make([]string, 0, len(c))
	for f := range c {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// Merge copies other into c, overwriting duplicate fields
func (c Changes) Merge(other Changes) Changes {
	for f, ch := range other {
		c[f] = ch
	}
	return c
}

// Value stores changes as JSONB
func (c Changes) Value() (driver.Value, error) {
	if c == nil {
		return "{}", nil
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// Scan reads changes from a JSONB column
func (c *Changes) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	case nil:
		*c = Changes{}
		return nil
	default:
		return fmt.Errorf("unsupported changes column type %T", src)
	}

	out := Changes{}
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("decode changes: %w", err)
	}
	*c = out
	return nil
}
