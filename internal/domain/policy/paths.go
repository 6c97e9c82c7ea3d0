package policy

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// absent is the sentinel returned by resolvePath when a path segment cannot
// be descended into. It is distinct from a resolved nil/null value.
type absentType struct{}

var absent = absentType{}

// isAbsent reports whether v is the absent sentinel.
func isAbsent(v any) bool {
	_, ok := v.(absentType)
	return ok
}

// resolvePath resolves a dot-separated parameter path against params,
// optionally prefixed "params.". Starting from params, for each segment: if
// the current value is a map, descend by key; otherwise the path is absent.
func resolvePath(params map[string]any, path string) any {
	path = strings.TrimPrefix(path, "params.")
	if path == "" {
		return absent
	}
	segments := strings.Split(path, ".")

	var current any = params
	for _, seg := range segments {
		m, ok := current.(map[string]any)
		if !ok {
			return absent
		}
		v, ok := m[seg]
		if !ok {
			return absent
		}
		current = v
	}
	return current
}

// ResolveParamPath resolves path against params and reports whether it was
// present (the aggregate accountant, C3, needs this to tell "absent" apart
// from a present-but-non-numeric value).
func ResolveParamPath(params map[string]any, path string) (any, bool) {
	v := resolvePath(params, path)
	return v, !isAbsent(v)
}

// ToNumber exposes the shared numeric coercion rule of spec §4.1 to other
// packages (the aggregate accountant resolves a sum measure's increment the
// same way the constraint evaluator resolves min/max).
func ToNumber(v any) (float64, error) {
	return toNumber(v)
}

// toNumber coerces v to float64. Integers and floats pass through verbatim;
// strings are accepted only if they parse as a finite number.
func toNumber(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
			return 0, fmt.Errorf("parameter cannot be compared numerically")
		}
		return f, nil
	default:
		return 0, fmt.Errorf("parameter cannot be compared numerically")
	}
}
