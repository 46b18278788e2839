// Package jsonutil provides lenient conversion helpers for decoded JSON values.
// Values produced by encoding/json (float64, string, bool, map, slice, json.Number)
// are converted into Go types without panicking on unexpected shapes.
package jsonutil

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ToString converts a decoded JSON value to display text. Returns "" for nil.
// Whole floats print without a fractional part; objects and arrays are
// re-encoded as compact JSON.
func ToString(v interface{}) string {
	if v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	case json.Number:
		return s.String()
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	case map[string]interface{}, []interface{}:
		b, err := json.Marshal(s)
		if err != nil {
			return fmt.Sprintf("%v", s)
		}
		return string(b)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// ToInt64 converts a decoded JSON number to int64. Returns 0 for nil or
// unrecognised types. Numeric strings are parsed; fractional values truncate.
func ToInt64(v interface{}) int64 {
	if v == nil {
		return 0
	}
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0
		}
		return int64(n)
	case int:
		return int64(n)
	case int64:
		return n
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i
		}
		if f, err := n.Float64(); err == nil {
			return int64(f)
		}
		return 0
	case string:
		return parseInt64(n)
	default:
		return 0
	}
}

// ToInt converts a decoded JSON number to int.
func ToInt(v interface{}) int {
	return int(ToInt64(v))
}

// ToFloat64 converts a decoded JSON number to float64. Returns 0 for nil or
// unrecognised types.
func ToFloat64(v interface{}) float64 {
	if v == nil {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case json.Number:
		f, _ := n.Float64()
		return f
	case string:
		f, _ := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f
	default:
		return 0
	}
}

// TypeName returns the JSON type name of a decoded value.
func TypeName(v interface{}) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case float64, int, int64, json.Number:
		return "number"
	case bool:
		return "boolean"
	case map[string]interface{}:
		return "object"
	case []interface{}:
		return "array"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func parseInt64(s string) int64 {
	s = strings.TrimSpace(s)
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int64(f)
	}
	return 0
}
