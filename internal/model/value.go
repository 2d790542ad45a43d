package model

import (
	"fmt"
	"strconv"
	"strings"
)

// CopyValue deep-copies a dynamic extraction value. The value union is
// {string, number, bool, map[string]any, []any}; anything else is copied
// by assignment.
func CopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, vv := range t {
			m[k] = CopyValue(vv)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, vv := range t {
			s[i] = CopyValue(vv)
		}
		return s
	default:
		return v
	}
}

// ToFloat64 attempts to convert a dynamic value to float64. Strings are
// parsed after stripping currency formatting.
func ToFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		s := strings.TrimSpace(n)
		s = strings.ReplaceAll(s, "$", "")
		s = strings.ReplaceAll(s, ",", "")
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// CoerceString renders a dynamic value as a string, best effort.
func CoerceString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		// Trim trailing zeros so 100000.0 renders as 100000.
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// numericTolerance is the relative tolerance for treating two numbers as
// equal, absorbing rounding differences between documents.
const numericTolerance = 0.0001 // 0.01%

// ValuesEqual reports whether two extraction values are equal after
// normalization: whitespace trim and case fold for strings, relative
// tolerance compare for numbers.
func ValuesEqual(a, b any) bool {
	if fa, aok := ToFloat64(a); aok {
		if fb, bok := ToFloat64(b); bok {
			return numbersEqual(fa, fb)
		}
	}
	sa, aStr := a.(string)
	sb, bStr := b.(string)
	if aStr && bStr {
		return strings.EqualFold(strings.TrimSpace(sa), strings.TrimSpace(sb))
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func numbersEqual(a, b float64) bool {
	if a == b {
		return true
	}
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	mag := a
	if mag < 0 {
		mag = -mag
	}
	if bm := b; bm < 0 {
		if -bm > mag {
			mag = -bm
		}
	} else if bm > mag {
		mag = bm
	}
	return diff <= mag*numericTolerance
}
