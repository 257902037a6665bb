// Package validate is a rule-based validator invoked with a named rule set
// per entity type. Callers pass the attempted attributes as a string map and
// get back either nil or field-level error messages.
package validate

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Rule checks a single field value and returns a message when it fails.
// value is the trimmed raw attribute; present reports whether the field was
// supplied at all.
type Rule func(value string, present bool) string

// RuleSet maps field names to the rules applied to them.
type RuleSet map[string][]Rule

// FieldErrors collects validation failures per field.
type FieldErrors map[string][]string

func (e FieldErrors) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f, strings.Join(e[f], ", ")))
	}
	return strings.Join(parts, "; ")
}

// Check validates data against the named rule set. It returns FieldErrors
// when any rule fails, or an error when the rule set does not exist.
func Check(ruleSet string, data map[string]string) error {
	set, ok := ruleSets[ruleSet]
	if !ok {
		return fmt.Errorf("unknown rule set: %s", ruleSet)
	}

	errs := FieldErrors{}
	for field, rules := range set {
		value, present := data[field]
		value = strings.TrimSpace(value)
		if value == "" {
			present = false
		}
		for _, rule := range rules {
			if msg := rule(value, present); msg != "" {
				errs[field] = append(errs[field], msg)
			}
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func required() Rule {
	return func(_ string, present bool) string {
		if !present {
			return "required"
		}
		return ""
	}
}

func minLen(n int) Rule {
	return func(value string, present bool) string {
		if !present {
			return ""
		}
		if len(value) < n {
			return fmt.Sprintf("must be at least %d characters", n)
		}
		return ""
	}
}

func numeric() Rule {
	return func(value string, present bool) string {
		if !present {
			return ""
		}
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			return "must be numeric"
		}
		return ""
	}
}

func digits() Rule {
	return func(value string, present bool) string {
		if !present {
			return ""
		}
		for _, r := range strings.TrimPrefix(value, "+") {
			if r < '0' || r > '9' {
				return "must contain only digits"
			}
		}
		return ""
	}
}

func minFloat(min float64) Rule {
	return func(value string, present bool) string {
		if !present {
			return ""
		}
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return "" // numeric() reports the parse failure
		}
		if f < min {
			return fmt.Sprintf("must be at least %v", min)
		}
		return ""
	}
}

func oneOf(allowed ...string) Rule {
	return func(value string, present bool) string {
		if !present {
			return ""
		}
		for _, a := range allowed {
			if value == a {
				return ""
			}
		}
		return "must be one of: " + strings.Join(allowed, ", ")
	}
}
