package view

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Record is one row of domain data as received from the backend.
// The engine treats records as read-only.
type Record map[string]any

// Lookup returns the field rendered as a string. ok is false when the field
// is absent or null.
func (r Record) Lookup(key string) (string, bool) {
	v, present := r[key]
	if !present || v == nil {
		return "", false
	}
	return stringify(v), true
}

// Text returns the field rendered as a string, or "" when missing.
func (r Record) Text(key string) string {
	s, _ := r.Lookup(key)
	return s
}

func stringify(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case json.Number:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}
