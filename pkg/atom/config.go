package atom

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Config is one node's config block from the workflow definition. JSON
// decoding yields float64 for every number and []any for lists, so the
// accessors coerce primitives rather than type-assert them.
type Config map[string]any

// Has reports whether key is present.
func (c Config) Has(key string) bool {
	_, ok := c[key]

	return ok
}

// String returns the value at key, or def when absent or not a string.
func (c Config) String(key, def string) string {
	if v, ok := c[key].(string); ok {
		return v
	}

	return def
}

// Int returns the value at key coerced to int, or def.
func (c Config) Int(key string, def int) int {
	f, ok := c.number(key)
	if !ok {
		return def
	}

	return int(f)
}

// Float returns the value at key coerced to float64, or def.
func (c Config) Float(key string, def float64) float64 {
	f, ok := c.number(key)
	if !ok {
		return def
	}

	return f
}

// Bool returns the value at key, accepting bools and the usual string
// spellings, or def.
func (c Config) Bool(key string, def bool) bool {
	switch v := c[key].(type) {
	case bool:
		return v
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return def
		}

		return parsed
	default:
		return def
	}
}

// Duration returns the value at key, accepting Go duration strings and
// bare numbers of seconds, or def.
func (c Config) Duration(key string, def time.Duration) time.Duration {
	switch v := c[key].(type) {
	case string:
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return def
		}

		return d
	default:
		f, ok := c.number(key)
		if !ok {
			return def
		}

		return time.Duration(f * float64(time.Second))
	}
}

// StringSlice returns the value at key as strings. Lists coerce element by
// element; a plain string splits on commas.
func (c Config) StringSlice(key string, def []string) []string {
	switch v := c[key].(type) {
	case []string:
		out := make([]string, len(v))
		copy(out, v)

		return out
	case []any:
		out := make([]string, 0, len(v))

		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return def
			}

			out = append(out, s)
		}

		return out
	case string:
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))

		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}

		return out
	default:
		return def
	}
}

// FloatSlice returns the value at key as floats, coercing each element.
func (c Config) FloatSlice(key string, def []float64) []float64 {
	switch v := c[key].(type) {
	case []float64:
		out := make([]float64, len(v))
		copy(out, v)

		return out
	case []any:
		out := make([]float64, 0, len(v))

		for _, item := range v {
			f, ok := coerceNumber(item)
			if !ok {
				return def
			}

			out = append(out, f)
		}

		return out
	default:
		return def
	}
}

func (c Config) number(key string) (float64, bool) {
	return coerceNumber(c[key])
}

func coerceNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()

		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)

		return f, err == nil
	default:
		return 0, false
	}
}
