// Package query provides a set of utility functions to support the query builder
// and processor. These helpers handle numeric coercion of decoded values.
package query

import (
	"encoding/json"
	"strconv"
)

// ToFloat64 is a utility function that converts a value of various numeric types
// to a float64. Numeric strings are accepted. It returns the converted float64 and a
// boolean indicating whether the conversion was successful.
func ToFloat64(v any) (float64, bool) {
	if f, ok := numeric(v); ok {
		return f, true
	}
	if s, ok := v.(string); ok {
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	}
	return 0, false
}

// numeric converts v to float64 only when it already is a number.
func numeric(v any) (float64, bool) {
	switch val := v.(type) {
	case int:
		return float64(val), true
	case int8:
		return float64(val), true
	case int16:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint:
		return float64(val), true
	case uint8:
		return float64(val), true
	case uint16:
		return float64(val), true
	case uint32:
		return float64(val), true
	case uint64:
		return float64(val), true
	case float32:
		return float64(val), true
	case float64:
		return val, true
	case json.Number:
		f, err := val.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
