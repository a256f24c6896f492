package flags

import (
	"fmt"
	"strings"
)

const (
	choicePlaceholderTemplate = "<%s>"
	choiceSeparatorLiteral    = "|"
	choiceListSeparator       = ", "
)

// ChoiceSet is an ordered, case-insensitive set of accepted flag values.
type ChoiceSet struct {
	choices []string
}

// NewChoiceSet keeps the first spelling of each choice and drops blanks.
func NewChoiceSet(choices ...string) ChoiceSet {
	set := ChoiceSet{choices: make([]string, 0, len(choices))}
	seen := make(map[string]struct{}, len(choices))
	for _, choice := range choices {
		trimmed := strings.TrimSpace(choice)
		if len(trimmed) == 0 {
			continue
		}
		normalized := strings.ToLower(trimmed)
		if _, duplicate := seen[normalized]; duplicate {
			continue
		}
		seen[normalized] = struct{}{}
		set.choices = append(set.choices, trimmed)
	}
	return set
}

// Match returns the canonical spelling of value.
func (set ChoiceSet) Match(value string) (string, bool) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, choice := range set.choices {
		if strings.ToLower(choice) == normalized {
			return choice, true
		}
	}
	return "", false
}

// String lists the choices for error messages.
func (set ChoiceSet) String() string {
	return strings.Join(set.choices, choiceListSeparator)
}

// Usage renders "`<a|B|c>` description" with the default choice upper-cased.
func (set ChoiceSet) Usage(defaultChoice string, description string) string {
	canonicalDefault, _ := set.Match(defaultChoice)
	rendered := make([]string, 0, len(set.choices))
	for _, choice := range set.choices {
		if choice == canonicalDefault {
			choice = strings.ToUpper(choice)
		}
		rendered = append(rendered, choice)
	}

	placeholder := "`" + fmt.Sprintf(choicePlaceholderTemplate, strings.Join(rendered, choiceSeparatorLiteral)) + "`"
	trimmedDescription := strings.TrimSpace(description)
	if len(trimmedDescription) == 0 {
		return placeholder
	}
	return placeholder + " " + trimmedDescription
}
