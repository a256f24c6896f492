package migrate

import (
	"fmt"
	"strings"
	"time"

	"github.com/temirov/glmigrate/internal/prompt"
	"github.com/temirov/glmigrate/internal/pruning"
	"github.com/temirov/glmigrate/internal/utils/flags"
)

const (
	destinationGroupFieldNameConstant    = "destination_group"
	concurrencyFieldNameConstant         = "concurrency"
	existingDestinationFieldNameConstant = "existing_destination"
	retainNewerThanFieldNameConstant     = "retain_newer_than"
	positiveIdentifierMessageConstant    = "must reference an existing group"
	positiveConcurrencyMessageConstant   = "must be at least 1"
	sharedGroupMessageConstant           = "must differ from the origin group on the same instance"
	existingDestinationMessageTemplate   = "unsupported value %q (expected one of: %s)"
	retainNewerThanMessageTemplate       = "unsupported value %q (expected RFC3339 timestamp or duration)"
	invalidInputTemplateConstant         = "%s: %s"
)

// InvalidInputError describes migration option validation failures.
type InvalidInputError struct {
	FieldName string
	Message   string
}

// Error describes the invalid input.
func (inputError InvalidInputError) Error() string {
	return fmt.Sprintf(invalidInputTemplateConstant, inputError.FieldName, inputError.Message)
}

// ExistingDestinationPolicy decides what happens when the destination group already holds the project path.
type ExistingDestinationPolicy string

const (
	// ExistingDestinationReconcile skips the repository import, re-runs the resource transfer, and prunes.
	ExistingDestinationReconcile ExistingDestinationPolicy = "reconcile"
	// ExistingDestinationSkip leaves the project untouched and records it as skipped.
	ExistingDestinationSkip ExistingDestinationPolicy = "skip"
)

var existingDestinationChoices = flags.NewChoiceSet(string(ExistingDestinationReconcile), string(ExistingDestinationSkip))

// ParseExistingDestinationPolicy converts a configured value; empty selects reconcile.
func ParseExistingDestinationPolicy(value string) (ExistingDestinationPolicy, error) {
	if len(strings.TrimSpace(value)) == 0 {
		return ExistingDestinationReconcile, nil
	}
	canonical, matched := existingDestinationChoices.Match(value)
	if !matched {
		return "", InvalidInputError{FieldName: existingDestinationFieldNameConstant, Message: fmt.Sprintf(existingDestinationMessageTemplate, value, existingDestinationChoices)}
	}
	return ExistingDestinationPolicy(canonical), nil
}

// ParseRetentionCutoff accepts an RFC3339 timestamp or a duration counted back from now. Empty disables age retention.
func ParseRetentionCutoff(value string, now time.Time) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if len(trimmed) == 0 {
		return time.Time{}, nil
	}
	if timestamp, parseError := time.Parse(time.RFC3339, trimmed); parseError == nil {
		return timestamp, nil
	}
	if age, parseError := time.ParseDuration(trimmed); parseError == nil && age > 0 {
		return now.Add(-age), nil
	}
	return time.Time{}, InvalidInputError{FieldName: retainNewerThanFieldNameConstant, Message: fmt.Sprintf(retainNewerThanMessageTemplate, value)}
}

// Options is the validated, immutable configuration of one orchestrator run.
// SharedInstance marks origin and destination as the same GitLab instance.
type Options struct {
	OriginGroupID       int
	DestinationGroupID  int
	SharedInstance      bool
	Preservation        pruning.Parameters
	DryRun              bool
	IncludeArchived     bool
	Concurrency         int
	ExistingDestination ExistingDestinationPolicy
	Confirmation        prompt.ConfirmationPolicy
}

// Validate rejects options the orchestrator cannot honour.
func (options Options) Validate() error {
	if options.DestinationGroupID <= 0 {
		return InvalidInputError{FieldName: destinationGroupFieldNameConstant, Message: positiveIdentifierMessageConstant}
	}
	if options.SharedInstance && options.OriginGroupID == options.DestinationGroupID {
		return InvalidInputError{FieldName: destinationGroupFieldNameConstant, Message: sharedGroupMessageConstant}
	}
	if parametersError := options.Preservation.Validate(); parametersError != nil {
		return parametersError
	}
	if options.Concurrency < 1 {
		return InvalidInputError{FieldName: concurrencyFieldNameConstant, Message: positiveConcurrencyMessageConstant}
	}
	if _, policyError := ParseExistingDestinationPolicy(string(options.ExistingDestination)); policyError != nil {
		return policyError
	}
	return nil
}
