package tools

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// placeholderValue is what models tend to write for an identifier the
// question did not mention.
const placeholderValue = "unknown"

// SanitizeArgs returns a copy of args without nil values, values that are
// empty after trimming, and values equal to "unknown" in any case.
func SanitizeArgs(args map[string]any) map[string]any {
	out := make(map[string]any, len(args))
	for k, v := range args {
		if v == nil {
			continue
		}
		s := strings.TrimSpace(fmt.Sprint(v))
		if s == "" || strings.EqualFold(s, placeholderValue) {
			continue
		}
		out[k] = v
	}
	return out
}

// stringArg returns args[name] as trimmed text.
func stringArg(args map[string]any, name string) string {
	v, ok := args[name]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

// intArg reads an integer argument, reporting whether it was present.
func intArg(args map[string]any, name string) (n int, present bool, err error) {
	v, ok := args[name]
	if !ok || v == nil {
		return 0, false, nil
	}
	switch t := v.(type) {
	case int:
		return t, true, nil
	case int64:
		if int64(int(t)) != t {
			return 0, true, fmt.Errorf("%s is out of range: %d", name, t)
		}
		return int(t), true, nil
	case float64:
		if t != math.Trunc(t) || t < float64(math.MinInt) || t >= -float64(math.MinInt) {
			return 0, true, fmt.Errorf("%s must be an integer, got %v", name, t)
		}
		return int(t), true, nil
	case json.Number:
		i, err := t.Int64()
		if err != nil || int64(int(i)) != i {
			return 0, true, fmt.Errorf("%s must be an integer, got %s", name, t)
		}
		return int(i), true, nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0, true, fmt.Errorf("%s must be an integer, got %q", name, t)
		}
		return i, true, nil
	default:
		return 0, true, fmt.Errorf("%s must be an integer, got %T", name, v)
	}
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
