// Package segment converts heterogeneously typed user attributes into the
// string mapping the backend accepts.
package segment

import (
	"strconv"
	"time"
)

// Set maps attribute names to typed values. Supported value types are
// strings, numbers, booleans and time.Time; anything else is omitted during
// normalization (documented behavior).
type Set map[string]any

// Normalize renders every supported attribute as a string: strings pass
// through, numbers and booleans use their canonical form, timestamps render
// as epoch seconds. Pure and deterministic; applying it to its own output is
// a no-op.
func Normalize(set Set) map[string]string {
	out := make(map[string]string, len(set))
	for name, value := range set {
		rendered, ok := render(value)
		if !ok {
			continue
		}
		out[name] = rendered
	}
	return out
}

func render(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case bool:
		return strconv.FormatBool(v), true
	case int:
		return strconv.FormatInt(int64(v), 10), true
	case int8:
		return strconv.FormatInt(int64(v), 10), true
	case int16:
		return strconv.FormatInt(int64(v), 10), true
	case int32:
		return strconv.FormatInt(int64(v), 10), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case uint:
		return strconv.FormatUint(uint64(v), 10), true
	case uint8:
		return strconv.FormatUint(uint64(v), 10), true
	case uint16:
		return strconv.FormatUint(uint64(v), 10), true
	case uint32:
		return strconv.FormatUint(uint64(v), 10), true
	case uint64:
		return strconv.FormatUint(v, 10), true
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case time.Time:
		return strconv.FormatInt(v.Unix(), 10), true
	default:
		return "", false
	}
}
