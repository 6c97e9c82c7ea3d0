package policy

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"
)

// ConstraintSet is the raw decoded form of one constraint object: a map from
// operator name (max, min, in, not_in, pattern, not_pattern, equals, and the
// optional not_pattern override "reason") to its configured value.
type ConstraintSet map[string]any

// constraintOrder is the fixed evaluation order within one path's
// constraint set (spec §4.2): deterministic so error messages are stable.
var constraintOrder = []string{"max", "min", "in", "not_in", "pattern", "not_pattern", "equals"}

// absentTriggerKeys are the keys whose presence on an absent value produces
// a "required parameter missing" rejection. not_pattern is excluded: absent
// on not_pattern alone is allow (spec §4.2).
var absentTriggerKeys = map[string]bool{
	"max": true, "min": true, "in": true, "not_in": true,
	"pattern": true, "equals": true,
}

// defaultRegexTimeout is used when the caller passes a non-positive timeout.
const defaultRegexTimeout = 1 * time.Second

// evaluateConstraintSet evaluates every operator present in cs against the
// resolved value at path, in fixed order, ANDing the results. It returns
// (true, "") on pass, or (false, reason) on the first failing operator.
func evaluateConstraintSet(path string, cs ConstraintSet, value any, regexTimeout time.Duration) (bool, string) {
	if regexTimeout <= 0 {
		regexTimeout = defaultRegexTimeout
	}

	if isAbsent(value) {
		for _, k := range constraintOrder {
			if !absentTriggerKeys[k] {
				continue
			}
			if _, ok := cs[k]; ok {
				return false, fmt.Sprintf("required parameter %s is missing", path)
			}
		}
		return true, ""
	}

	for _, key := range constraintOrder {
		raw, ok := cs[key]
		if !ok {
			continue
		}
		switch key {
		case "max":
			n, err := toNumber(value)
			if err != nil {
				return false, fmt.Sprintf("parameter %s cannot be compared numerically", path)
			}
			limit, err := toNumber(raw)
			if err != nil {
				return false, fmt.Sprintf("parameter %s cannot be compared numerically", path)
			}
			if n > limit {
				return false, fmt.Sprintf("%s value %s exceeds maximum %s", path, formatValue(value), formatValue(raw))
			}
		case "min":
			n, err := toNumber(value)
			if err != nil {
				return false, fmt.Sprintf("parameter %s cannot be compared numerically", path)
			}
			limit, err := toNumber(raw)
			if err != nil {
				return false, fmt.Sprintf("parameter %s cannot be compared numerically", path)
			}
			if n < limit {
				return false, fmt.Sprintf("%s value %s is below minimum %s", path, formatValue(value), formatValue(raw))
			}
		case "in":
			list, _ := raw.([]any)
			if !containsStructural(list, value) {
				return false, fmt.Sprintf("%s value %s not in allowed values %s", path, formatValue(value), formatList(list))
			}
		case "not_in":
			list, _ := raw.([]any)
			if containsStructural(list, value) {
				return false, fmt.Sprintf("%s value %s is blocked", path, formatValue(value))
			}
		case "pattern":
			pat, _ := raw.(string)
			matched, timedOut, err := matchAnchoredBounded(pat, toStr(value), regexTimeout)
			if timedOut || err != nil {
				return false, "regex evaluation timeout"
			}
			if !matched {
				return false, fmt.Sprintf("%s value %s does not match pattern %s", path, formatValue(value), pat)
			}
		case "not_pattern":
			pat, _ := raw.(string)
			// The lazy prefix lets the forbidden pattern match anywhere in
			// the value, not only at its start.
			matched, timedOut, err := matchAnchoredBounded("(?s:.*?)(?:"+pat+")", toStr(value), regexTimeout)
			if timedOut || err != nil {
				return false, "regex evaluation timeout"
			}
			if matched {
				if reason, ok := cs["reason"].(string); ok && reason != "" {
					return false, reason
				}
				return false, fmt.Sprintf("%s contains forbidden pattern", path)
			}
		case "equals":
			if !structuralEqual(value, raw) {
				return false, fmt.Sprintf("%s must equal %s", path, formatValue(raw))
			}
		}
	}
	return true, ""
}

// matchAnchoredBounded compiles pattern and checks whether it matches s
// starting at position 0 ("anchored at start", matching the source's
// regex.match semantics), bounded by timeout to deny ReDoS as a
// denial-of-policy vector.
func matchAnchoredBounded(pattern, s string, timeout time.Duration) (matched bool, timedOut bool, err error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false, false, err
	}

	done := make(chan bool, 1)
	go func() {
		loc := re.FindStringIndex(s)
		done <- loc != nil && loc[0] == 0
	}()

	select {
	case m := <-done:
		return m, false, nil
	case <-time.After(timeout):
		return false, true, nil
	}
}

func toStr(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func formatValue(v any) string {
	switch t := v.(type) {
	case string:
		return "'" + t + "'"
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%v", t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func formatList(list []any) string {
	parts := make([]string, 0, len(list))
	for _, v := range list {
		if s, ok := v.(string); ok {
			parts = append(parts, s)
		} else {
			parts = append(parts, fmt.Sprintf("%v", v))
		}
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func containsStructural(list []any, v any) bool {
	for _, item := range list {
		if structuralEqual(item, v) {
			return true
		}
	}
	return false
}

// structuralEqual compares two decoded JSON-ish values, normalizing numeric
// kinds so that e.g. int(5) and float64(5) compare equal. String values are
// never coerced to numbers for comparison purposes.
func structuralEqual(a, b any) bool {
	if isNumericType(a) && isNumericType(b) {
		an, _ := toNumber(a)
		bn, _ := toNumber(b)
		return an == bn
	}
	return reflect.DeepEqual(a, b)
}

func isNumericType(v any) bool {
	switch v.(type) {
	case float64, float32, int, int32, int64:
		return true
	default:
		return false
	}
}
