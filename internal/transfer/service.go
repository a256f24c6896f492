// Package transfer copies project-owned CI/CD variables and releases from an
// origin project to its destination counterpart.
package transfer

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/temirov/glmigrate/internal/platform"
)

const (
	originMissingMessageConstant         = "origin platform not configured"
	destinationMissingMessageConstant    = "destination platform not configured"
	transferErrorTemplateConstant        = "resource transfer from project %d to project %d failed: %v"
	variableReadErrorTemplateConstant    = "unable to read origin variables: %w"
	releaseReadErrorTemplateConstant     = "unable to read origin releases: %w"
	destinationReadErrorTemplateConstant = "unable to read destination releases: %w"
	variableWriteErrorTemplateConstant   = "variable %s: %w"
	releaseWriteErrorTemplateConstant    = "release %s: %w"
	logMessageVariableWritten            = "CI variable transferred"
	logMessageReleaseCreated             = "Release transferred"
	logMessageReleaseSkipped             = "Release already present at destination"
	logMessageInheritedSkipped           = "Inherited CI variable skipped"
	logFieldOriginProjectIDConstant      = "origin_project_id"
	logFieldDestinationProjectIDConstant = "destination_project_id"
	logFieldVariableKeyConstant          = "variable_key"
	logFieldEnvironmentScopeConstant     = "environment_scope"
	logFieldTagNameConstant              = "tag_name"
)

var (
	errOriginMissing      = errors.New(originMissingMessageConstant)
	errDestinationMissing = errors.New(destinationMissingMessageConstant)
)

// OriginReader is the origin-side capability set the transfer reads from.
type OriginReader interface {
	platform.VariableReader
	platform.ReleaseReader
}

// DestinationWriter is the destination-side capability set the transfer writes to.
type DestinationWriter interface {
	platform.VariableManager
	platform.ReleaseManager
}

// Dependencies describes the collaborators of a Service.
type Dependencies struct {
	Logger      *zap.Logger
	Origin      OriginReader
	Destination DestinationWriter
}

// TransferResult reports what was, or would be, transferred.
type TransferResult struct {
	VariablesTransferred      []string
	VariablesSkippedInherited []string
	ReleasesCreated           []string
	ReleasesSkipped           []string
}

// VariablesTransferredCount returns the number of project-owned variables written.
func (result TransferResult) VariablesTransferredCount() int {
	return len(result.VariablesTransferred)
}

// VariablesSkippedCount returns the number of inherited variables left out.
func (result TransferResult) VariablesSkippedCount() int {
	return len(result.VariablesSkippedInherited)
}

// TransferError carries the partial result of a transfer in which at least one write failed.
type TransferError struct {
	OriginProjectID      int
	DestinationProjectID int
	Partial              TransferResult
	Cause                error
}

// Error describes the failed transfer.
func (transferError TransferError) Error() string {
	return fmt.Sprintf(transferErrorTemplateConstant, transferError.OriginProjectID, transferError.DestinationProjectID, transferError.Cause)
}

// Unwrap exposes the joined write failures.
func (transferError TransferError) Unwrap() error {
	return transferError.Cause
}

// Service transfers CI/CD variables and releases between one project pair.
type Service struct {
	logger      *zap.Logger
	origin      OriginReader
	destination DestinationWriter
}

// NewService constructs a Service.
func NewService(dependencies Dependencies) (*Service, error) {
	if dependencies.Origin == nil {
		return nil, errOriginMissing
	}
	if dependencies.Destination == nil {
		return nil, errDestinationMissing
	}
	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{logger: logger, origin: dependencies.Origin, destination: dependencies.Destination}, nil
}

type resourceSet struct {
	variables        []platform.Variable
	inherited        []platform.Variable
	releasesToCreate []platform.Release
	releasesPresent  []platform.Release
}

// PlanResources reports what TransferResources would do without writing anything.
// A nil destination project means it does not exist yet, so every release would be created.
func (service *Service) PlanResources(executionContext context.Context, originProjectID int, destinationProjectID *int) (TransferResult, error) {
	resources, collectError := service.collect(executionContext, originProjectID, destinationProjectID)
	if collectError != nil {
		return TransferResult{}, collectError
	}
	result := TransferResult{}
	for _, variable := range resources.inherited {
		result.VariablesSkippedInherited = append(result.VariablesSkippedInherited, variable.Key)
	}
	for _, variable := range resources.variables {
		result.VariablesTransferred = append(result.VariablesTransferred, variable.Key)
	}
	for _, release := range resources.releasesToCreate {
		result.ReleasesCreated = append(result.ReleasesCreated, release.TagName)
	}
	for _, release := range resources.releasesPresent {
		result.ReleasesSkipped = append(result.ReleasesSkipped, release.TagName)
	}
	return result, nil
}

// TransferResources copies project-owned variables (overwriting same keys) and creates
// releases missing at the destination. Re-running it creates no duplicates.
func (service *Service) TransferResources(executionContext context.Context, originProjectID int, destinationProjectID int) (TransferResult, error) {
	resources, collectError := service.collect(executionContext, originProjectID, &destinationProjectID)
	if collectError != nil {
		return TransferResult{}, TransferError{OriginProjectID: originProjectID, DestinationProjectID: destinationProjectID, Cause: collectError}
	}

	result := TransferResult{}
	var writeFailures []error

	for _, variable := range resources.inherited {
		result.VariablesSkippedInherited = append(result.VariablesSkippedInherited, variable.Key)
		service.logger.Debug(logMessageInheritedSkipped,
			zap.Int(logFieldOriginProjectIDConstant, originProjectID),
			zap.String(logFieldVariableKeyConstant, variable.Key),
		)
	}

	for _, variable := range resources.variables {
		if writeError := service.destination.SetCIVariable(executionContext, destinationProjectID, variable); writeError != nil {
			writeFailures = append(writeFailures, fmt.Errorf(variableWriteErrorTemplateConstant, variable.Key, writeError))
			if abortsTransfer(writeError) {
				return result, newTransferError(originProjectID, destinationProjectID, result, writeFailures)
			}
			continue
		}
		result.VariablesTransferred = append(result.VariablesTransferred, variable.Key)
		service.logger.Debug(logMessageVariableWritten,
			zap.Int(logFieldDestinationProjectIDConstant, destinationProjectID),
			zap.String(logFieldVariableKeyConstant, variable.Key),
			zap.String(logFieldEnvironmentScopeConstant, variable.EnvironmentScope),
		)
	}

	for _, release := range resources.releasesPresent {
		result.ReleasesSkipped = append(result.ReleasesSkipped, release.TagName)
		service.logger.Debug(logMessageReleaseSkipped,
			zap.Int(logFieldDestinationProjectIDConstant, destinationProjectID),
			zap.String(logFieldTagNameConstant, release.TagName),
		)
	}

	for _, release := range resources.releasesToCreate {
		if writeError := service.destination.CreateRelease(executionContext, destinationProjectID, release); writeError != nil {
			writeFailures = append(writeFailures, fmt.Errorf(releaseWriteErrorTemplateConstant, release.TagName, writeError))
			if abortsTransfer(writeError) {
				return result, newTransferError(originProjectID, destinationProjectID, result, writeFailures)
			}
			continue
		}
		result.ReleasesCreated = append(result.ReleasesCreated, release.TagName)
		service.logger.Debug(logMessageReleaseCreated,
			zap.Int(logFieldDestinationProjectIDConstant, destinationProjectID),
			zap.String(logFieldTagNameConstant, release.TagName),
		)
	}

	if len(writeFailures) > 0 {
		return result, newTransferError(originProjectID, destinationProjectID, result, writeFailures)
	}
	return result, nil
}

func abortsTransfer(writeError error) bool {
	return platform.IsFatal(writeError) || platform.IsCancellation(writeError)
}

func newTransferError(originProjectID int, destinationProjectID int, partial TransferResult, failures []error) TransferError {
	return TransferError{
		OriginProjectID:      originProjectID,
		DestinationProjectID: destinationProjectID,
		Partial:              partial,
		Cause:                errors.Join(failures...),
	}
}

func (service *Service) collect(executionContext context.Context, originProjectID int, destinationProjectID *int) (resourceSet, error) {
	variables, variablesError := service.origin.GetCIVariables(executionContext, originProjectID)
	if variablesError != nil {
		return resourceSet{}, fmt.Errorf(variableReadErrorTemplateConstant, variablesError)
	}

	resources := resourceSet{}
	for _, variable := range variables {
		if variable.Inherited {
			resources.inherited = append(resources.inherited, variable)
			continue
		}
		resources.variables = append(resources.variables, variable)
	}

	releases, releasesError := service.origin.GetReleases(executionContext, originProjectID)
	if releasesError != nil {
		return resourceSet{}, fmt.Errorf(releaseReadErrorTemplateConstant, releasesError)
	}

	presentTags := make(map[string]struct{})
	if destinationProjectID != nil {
		destinationReleases, destinationError := service.destination.GetReleases(executionContext, *destinationProjectID)
		if destinationError != nil {
			return resourceSet{}, fmt.Errorf(destinationReadErrorTemplateConstant, destinationError)
		}
		for _, release := range destinationReleases {
			presentTags[release.TagName] = struct{}{}
		}
	}

	for _, release := range releases {
		if _, present := presentTags[release.TagName]; present {
			resources.releasesPresent = append(resources.releasesPresent, release)
			continue
		}
		resources.releasesToCreate = append(resources.releasesToCreate, release)
	}

	return resources, nil
}
