package domain

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// AsInt64 coerces a value to int64. Accepts every Go integer kind and
// whole-valued floats; everything else fails.
func AsInt64(value any) (int64, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint:
		if uint64(v) > math.MaxInt64 {
			return 0, false
		}
		return int64(v), true
	case uint8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	case uint64:
		if v > math.MaxInt64 {
			return 0, false
		}
		return int64(v), true
	case float32:
		return wholeFloat(float64(v))
	case float64:
		return wholeFloat(v)
	}
	return 0, false
}

func wholeFloat(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f < math.MinInt64 || f > math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

// AsNumber coerces a value to float64. Accepts every Go numeric kind.
func AsNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case float32:
		return float64(v), true
	case float64:
		return v, true
	}
	if n, ok := AsInt64(value); ok {
		return float64(n), true
	}
	return 0, false
}

// EquivalentValues compares two values for equality with type coercion.
// Numbers compare numerically regardless of Go kind, strings compare
// against the canonical rendering of primitives, and composite values fall
// back to deep equality.
func EquivalentValues(a, b any) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}

	na, aNum := AsNumber(a)
	nb, bNum := AsNumber(b)
	if aNum && bNum {
		return na == nb
	}

	switch av := a.(type) {
	case string:
		if bv, ok := b.(string); ok {
			return av == bv
		}
		return av == formatValue(b)
	case bool:
		if bv, ok := b.(bool); ok {
			return av == bv
		}
		return formatValue(a) == formatValue(b)
	}
	if _, ok := b.(string); ok {
		return formatValue(a) == b.(string)
	}

	return reflect.DeepEqual(a, b)
}

// CompareOrdered compares two values under a coercing ordering. Numbers
// order numerically, strings lexically. The second result is false when
// the pair has no ordering (mixed or unordered types).
func CompareOrdered(a, b any) (int, bool) {
	na, aNum := AsNumber(a)
	nb, bNum := AsNumber(b)
	if aNum && bNum {
		switch {
		case na < nb:
			return -1, true
		case na > nb:
			return 1, true
		}
		return 0, true
	}
	sa, aStr := a.(string)
	sb, bStr := b.(string)
	if aStr && bStr {
		return strings.Compare(sa, sb), true
	}
	return 0, false
}

// formatValue renders a value canonically for coerced comparison and for
// fingerprinting. Floats drop trailing zeros so 15.0 and 15 agree.
func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	}
	if n, ok := AsInt64(v); ok {
		return strconv.FormatInt(n, 10)
	}
	return fmt.Sprintf("%v", v)
}
