package changes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Kind is the closed set of value shapes a tracked field can hold
type Kind string

const (
	KindNull   Kind = "null"
	KindString Kind = "string"
	KindNumber Kind = "number"
	KindMap    Kind = "map"
)

// Value is a raw field value captured in a snapshot. The zero Value is null.
type Value struct {
	kind Kind
	str  string
	num  decimal.Decimal
	m    map[string]string
}

// Null returns the null value
func Null() Value {
	return Value{kind: KindNull}
}

// String returns a string value
func String(s string) Value {
	return Value{kind: KindString, str: s}
}

// Number returns a numeric value
func Number(d decimal.Decimal) Value {
	return Value{kind: KindNumber, num: d}
}

// Int returns a numeric value for an integer
func Int(n int64) Value {
	return Number(decimal.NewFromInt(n))
}

// Map returns a string-map value. The map is copied.
func Map(m map[string]string) Value {
	cp := make(map[string]string, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return Value{kind: KindMap, m: cp}
}

// OptionalString returns null for a nil pointer
func OptionalString(s *string) Value {
	if s == nil {
		return Null()
	}
	return String(*s)
}

// OptionalInt returns null for a nil pointer
func OptionalInt(n *int64) Value {
	if n == nil {
		return Null()
	}
	return Int(*n)
}

// Kind reports the value's shape
func (v Value) Kind() Kind {
	if v.kind == "" {
		return KindNull
	}
	return v.kind
}

// IsNull reports whether the value is null
func (v Value) IsNull() bool {
	return v.Kind() == KindNull
}

// Str returns the string payload
func (v Value) Str() string {
	return v.str
}

// Num returns the numeric payload
func (v Value) Num() decimal.Decimal {
	return v.num
}

// StringMap returns a copy of the map payload
func (v Value) StringMap() map[string]string {
	cp := make(map[string]string, len(v.m))
	for k, val := range v.m {
		cp[k] = val
	}
	return cp
}

// Equal compares the canonical serialized form of two values
func (v Value) Equal(other Value) bool {
	a, _ := v.MarshalJSON()
	b, _ := other.MarshalJSON()
	return bytes.Equal(a, b)
}

// MarshalJSON writes the raw value: null, a JSON string, a bare number or an object
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind() {
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		return []byte(v.num.String()), nil
	case KindMap:
		// encoding/json sorts map keys, which makes the output canonical
		return json.Marshal(v.m)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON restores a value written by MarshalJSON
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		*v = Null()
		return nil
	}

	switch data[0] {
	case 'n':
		*v = Null()
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = String(s)
	case '{':
		var m map[string]string
		if err := json.Unmarshal(data, &m); err != nil {
			return fmt.Errorf("map value: %w", err)
		}
		*v = Map(m)
	default:
		d, err := decimal.NewFromString(string(data))
		if err != nil {
			return fmt.Errorf("number value: %w", err)
		}
		*v = Number(d)
	}
	return nil
}

// Display renders the value for humans without altering what is stored
func (v Value) Display() string {
	switch v.Kind() {
	case KindString:
		return v.str
	case KindNumber:
		return v.num.String()
	case KindMap:
		keys := make([]string, 0, len(v.m))
		for k := range v.m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+": "+v.m[k])
		}
		return strings.Join(parts, ", ")
	default:
		return "-"
	}
}
