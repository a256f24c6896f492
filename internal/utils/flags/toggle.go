package flags

import (
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/pflag"
)

const (
	toggleTrueCanonicalValue               = "true"
	toggleFalseCanonicalValue              = "false"
	toggleParseErrorTemplate               = "invalid toggle value %q"
	toggleArgumentTruePlaceholderConstant  = "<YES|no>"
	toggleArgumentFalsePlaceholderConstant = "<yes|NO>"
	toggleUsageTemplate                    = "`%s` %s"
	toggleNegationPrefixConstant           = "no-"
	longFlagPrefixConstant                 = "--"
	argumentTerminatorConstant             = "--"
	flagValueSeparatorConstant             = "="
	toggleValueTypeConstant                = "bool"
)

var (
	toggleLiterals = map[string]bool{
		"true": true, "yes": true, "on": true, "1": true, "t": true, "y": true,
		"false": false, "no": false, "off": false, "0": false, "f": false, "n": false,
	}

	toggleRegistryMutex sync.RWMutex
	toggleRegistry      = map[string]struct{}{}
)

// AddToggleFlag registers a boolean flag that accepts yes/no style values, a bare
// "--name" meaning yes, and the "--no-name" negation.
func AddToggleFlag(flagSet *pflag.FlagSet, target *bool, name string, defaultValue bool, usage string) {
	if flagSet == nil || len(name) == 0 {
		return
	}

	flagSet.Var(newToggleValue(defaultValue, target), name, usage)
	flag := flagSet.Lookup(name)
	flag.NoOptDefVal = toggleTrueCanonicalValue

	placeholder := toggleArgumentFalsePlaceholderConstant
	if defaultValue {
		placeholder = toggleArgumentTruePlaceholderConstant
	}
	flag.Usage = fmt.Sprintf(toggleUsageTemplate, placeholder, strings.TrimSpace(usage))

	toggleRegistryMutex.Lock()
	defer toggleRegistryMutex.Unlock()
	toggleRegistry[name] = struct{}{}
}

// NormalizeToggleArguments rewrites "--flag value" into "--flag=value" and "--no-flag"
// into "--flag=false" for registered toggles, so pflag can parse them.
func NormalizeToggleArguments(arguments []string) []string {
	if len(arguments) == 0 {
		return nil
	}

	normalized := make([]string, 0, len(arguments))
	for index := 0; index < len(arguments); index++ {
		current := arguments[index]
		if current == argumentTerminatorConstant {
			return append(normalized, arguments[index:]...)
		}
		if !strings.HasPrefix(current, longFlagPrefixConstant) || strings.Contains(current, flagValueSeparatorConstant) {
			normalized = append(normalized, current)
			continue
		}

		name := strings.TrimPrefix(current, longFlagPrefixConstant)
		switch {
		case isToggle(name):
			if index+1 < len(arguments) && isToggleLiteral(arguments[index+1]) {
				normalized = append(normalized, current+flagValueSeparatorConstant+arguments[index+1])
				index++
				continue
			}
			normalized = append(normalized, current)
		case strings.HasPrefix(name, toggleNegationPrefixConstant) && isToggle(strings.TrimPrefix(name, toggleNegationPrefixConstant)):
			normalized = append(normalized, longFlagPrefixConstant+strings.TrimPrefix(name, toggleNegationPrefixConstant)+flagValueSeparatorConstant+toggleFalseCanonicalValue)
		default:
			normalized = append(normalized, current)
		}
	}
	return normalized
}

type toggleValue struct {
	current bool
	target  *bool
}

func newToggleValue(defaultValue bool, target *bool) *toggleValue {
	if target != nil {
		*target = defaultValue
	}
	return &toggleValue{current: defaultValue, target: target}
}

func (value *toggleValue) Set(rawValue string) error {
	trimmed := strings.ToLower(strings.TrimSpace(rawValue))
	if len(trimmed) == 0 {
		trimmed = toggleTrueCanonicalValue
	}
	parsed, known := toggleLiterals[trimmed]
	if !known {
		return fmt.Errorf(toggleParseErrorTemplate, rawValue)
	}
	value.current = parsed
	if value.target != nil {
		*value.target = parsed
	}
	return nil
}

func (value *toggleValue) String() string {
	if value != nil && value.current {
		return toggleTrueCanonicalValue
	}
	return toggleFalseCanonicalValue
}

func (value *toggleValue) Type() string {
	return toggleValueTypeConstant
}

func isToggle(name string) bool {
	toggleRegistryMutex.RLock()
	defer toggleRegistryMutex.RUnlock()
	_, exists := toggleRegistry[name]
	return exists
}

// isToggleLiteral reports whether a following argument is a toggle value rather than a positional argument.
func isToggleLiteral(candidate string) bool {
	if strings.HasPrefix(candidate, "-") {
		return false
	}
	_, known := toggleLiterals[strings.ToLower(strings.TrimSpace(candidate))]
	return known
}
