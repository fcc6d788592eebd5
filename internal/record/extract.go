package record

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// dateLayouts are tried in order by Date. Layouts are fixed rather than
// locale-dependent so the same payload parses identically everywhere.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Value returns the field's natural shape without coercion.
func Value(rec Record, name string) (interface{}, bool) {
	return Lookup(rec, name)
}

// String returns the field's textual form. Scalars convert to text,
// structured values to their canonical JSON encoding. An explicit null is
// found with a nil value, distinct from an absent field.
func String(rec Record, name string) (interface{}, bool) {
	v, ok := Lookup(rec, name)
	if !ok {
		return nil, false
	}
	if v == nil {
		return nil, true
	}
	return Text(v), true
}

// Text converts any decoded JSON value to its textual form.
func Text(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	case json.Number:
		return t.String()
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1e15 {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case time.Time:
		return t.Format(time.RFC3339)
	case nil:
		return ""
	default:
		// Arrays and objects keep their canonical JSON encoding.
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// Date returns the field as a time value. Native times pass through; strings
// are parsed with the fixed layouts above. Anything else is not found.
func Date(rec Record, name string) (time.Time, bool) {
	v, ok := Lookup(rec, name)
	if !ok || v == nil {
		return time.Time{}, false
	}
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		s := strings.TrimSpace(t)
		for _, layout := range dateLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				return parsed, true
			}
		}
	}
	return time.Time{}, false
}

// Int returns the field as a 32-bit integer. Strings are parsed, floats are
// truncated toward zero; values outside 32-bit bounds are not found.
func Int(rec Record, name string) (int32, bool) {
	v, ok := Lookup(rec, name)
	if !ok || v == nil {
		return 0, false
	}
	switch t := v.(type) {
	case int:
		return clamp32(int64(t))
	case int32:
		return t, true
	case int64:
		return clamp32(t)
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return clamp32(n)
		}
		if f, err := t.Float64(); err == nil {
			return truncFloat(f)
		}
	case float64:
		return truncFloat(t)
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64); err == nil {
			return clamp32(n)
		}
	}
	return 0, false
}

// Array returns the field's structured slice form without coercion.
func Array(rec Record, name string) ([]interface{}, bool) {
	v, ok := Lookup(rec, name)
	if !ok {
		return nil, false
	}
	arr, ok := v.([]interface{})
	return arr, ok
}

func clamp32(n int64) (int32, bool) {
	if n < math.MinInt32 || n > math.MaxInt32 {
		return 0, false
	}
	return int32(n), true
}

func truncFloat(f float64) (int32, bool) {
	t := math.Trunc(f)
	if t < math.MinInt32 || t > math.MaxInt32 || math.IsNaN(t) {
		return 0, false
	}
	return int32(t), true
}
