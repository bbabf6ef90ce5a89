package webhook

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Filter operators.
const (
	opEquals      = "equals"
	opNotEquals   = "not_equals"
	opContains    = "contains"
	opNotContains = "not_contains"
	opGreaterThan = "greater_than"
	opLessThan    = "less_than"
	opIn          = "in"
	opNotIn       = "not_in"
	opRegex       = "regex"
	opExists      = "exists"
)

func knownOperator(op string) bool {
	switch op {
	case opEquals, opNotEquals, opContains, opNotContains,
		opGreaterThan, opLessThan, opIn, opNotIn, opRegex, opExists:
		return true
	}
	return false
}

// matchesFilters reports whether all enabled filters accept the event.
// A webhook with no filters matches everything.
func matchesFilters(filters []Filter, e Event) bool {
	for _, f := range filters {
		if !f.Enabled {
			continue
		}
		if !matchFilter(f, e) {
			return false
		}
	}
	return true
}

func matchFilter(f Filter, e Event) bool {
	value, found := lookupField(e.Data, f.Field)

	if f.Operator == opExists {
		return found
	}
	if !found {
		return false
	}

	switch f.Operator {
	case opEquals:
		return looseEqual(value, f.Value)
	case opNotEquals:
		return !looseEqual(value, f.Value)
	case opContains:
		return containsValue(value, f.Value)
	case opNotContains:
		return !containsValue(value, f.Value)
	case opGreaterThan:
		a, aok := toFloat(value)
		b, bok := toFloat(f.Value)
		return aok && bok && a > b
	case opLessThan:
		a, aok := toFloat(value)
		b, bok := toFloat(f.Value)
		return aok && bok && a < b
	case opIn:
		return inList(value, f.Value)
	case opNotIn:
		return !inList(value, f.Value)
	case opRegex:
		pattern, ok := f.Value.(string)
		if !ok {
			return false
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false
		}
		return re.MatchString(stringify(value))
	}
	return false
}

// lookupField walks a dot path through nested maps in the event data.
func lookupField(data map[string]any, path string) (any, bool) {
	if data == nil || path == "" {
		return nil, false
	}

	parts := strings.Split(path, ".")
	var current any = data
	for _, part := range parts {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// looseEqual compares across the numeric types JSON decoding produces,
// falling back to string comparison.
func looseEqual(a, b any) bool {
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			return af == bf
		}
	}
	return stringify(a) == stringify(b)
}

func containsValue(haystack, needle any) bool {
	switch h := haystack.(type) {
	case string:
		return strings.Contains(h, stringify(needle))
	case []any:
		for _, item := range h {
			if looseEqual(item, needle) {
				return true
			}
		}
		return false
	case []string:
		for _, item := range h {
			if item == stringify(needle) {
				return true
			}
		}
		return false
	}
	return false
}

// inList reports whether value appears in the filter's list operand.
func inList(value, operand any) bool {
	switch list := operand.(type) {
	case []any:
		for _, item := range list {
			if looseEqual(value, item) {
				return true
			}
		}
	case []string:
		for _, item := range list {
			if looseEqual(value, item) {
				return true
			}
		}
	}
	return false
}

func toFloat(v any) (float64, bool) {
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
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
