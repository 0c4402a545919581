package domain

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"
)

// SanitizeMetadata coerces metadata into the shapes an index sink accepts:
// strings, numbers, booleans and flat string lists.
//
// Scalars pass through unchanged, lists become lists of strings with order and
// length preserved, nested mappings collapse to a single string and nil values
// are dropped.
func SanitizeMetadata(md map[string]any) map[string]any {
	out := make(map[string]any, len(md))
	for k, v := range md {
		if v == nil {
			continue
		}
		out[k] = SanitizeValue(v)
	}
	return out
}

// SanitizeValue coerces a single metadata value.
func SanitizeValue(v any) any {
	switch val := v.(type) {
	case string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return val
	case time.Time:
		return val.UTC().Format(time.RFC3339)
	case []byte:
		return string(val)
	case []string:
		return append([]string(nil), val...)
	case []any:
		list := make([]string, len(val))
		for i, item := range val {
			list[i] = stringify(item)
		}
		return list
	case map[string]any:
		return stringify(val)
	case map[string]string:
		return stringify(val)
	case fmt.Stringer:
		return val.String()
	}

	// Typed lists such as []int or [3]float64
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		list := make([]string, rv.Len())
		for i := range list {
			list[i] = stringify(rv.Index(i).Interface())
		}
		return list
	}
	return stringify(v)
}

// stringify renders any value as a single string. Maps are rendered with
// sorted keys so identical input yields identical output.
func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + ":" + stringify(val[k])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case map[string]string:
		generic := make(map[string]any, len(val))
		for k, s := range val {
			generic[k] = s
		}
		return stringify(generic)
	case []any:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = stringify(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case fmt.Stringer:
		return val.String()
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		generic := make([]any, rv.Len())
		for i := range generic {
			generic[i] = rv.Index(i).Interface()
		}
		return stringify(generic)
	case reflect.Map:
		generic := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			generic[fmt.Sprint(iter.Key().Interface())] = iter.Value().Interface()
		}
		return stringify(generic)
	default:
		return fmt.Sprint(v)
	}
}
