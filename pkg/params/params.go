// Package params holds VK method call arguments and their request encoding.
package params

import (
	"fmt"
	"net/url"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// Args maps VK method parameter names to values.
// Values may be strings, numbers, bools or slices of those; nil values are dropped on encode.
type Args map[string]any

// Bool reports whether the value under key is truthy.
// Accepts bool, any integer or float kind, and the strings "1", "true", "yes", "on".
func (a Args) Bool(key string) bool {
	v, ok := a[key]
	if !ok || v == nil {
		return false
	}

	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "1", "true", "yes", "on":
			return true
		}
		return false
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint() != 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() != 0
	default:
		return false
	}
}

// With returns a copy of a with key set to value. The receiver is not modified.
func (a Args) With(key string, value any) Args {
	out := make(Args, len(a)+1)
	for k, v := range a {
		out[k] = v
	}
	out[key] = value
	return out
}

// Keys returns the parameter names in sorted order.
func (a Args) Keys() []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Encode converts args into form values the way VK expects them:
// slices become comma-separated lists, bools become 1/0, nil values are removed.
func Encode(args Args) url.Values {
	values := make(url.Values, len(args))
	for k, v := range args {
		if v == nil {
			continue
		}
		values.Set(k, convert(v))
	}
	return values
}

func convert(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		if t {
			return "1"
		}
		return "0"
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case []string:
		return strings.Join(t, ",")
	case fmt.Stringer:
		return t.String()
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		parts := make([]string, rv.Len())
		for i := range parts {
			parts[i] = convert(rv.Index(i).Interface())
		}
		return strings.Join(parts, ",")
	}

	return fmt.Sprint(v)
}
