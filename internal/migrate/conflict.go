package migrate

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/temirov/glmigrate/internal/platform"
)

const (
	destinationConflictTemplate          = "destination %s cannot receive %s: %s"
	conflictReasonPathClaimedTemplate    = "path is already claimed by %s in this run"
	conflictReasonSelfConstant           = "destination resolves to the origin project itself"
	conflictReasonImportTemplate         = "destination import status is %q"
	conflictReasonDefaultAbsentTemplate  = "default branch %s is absent at destination"
	conflictReasonDefaultDiffersTemplate = "default branch %s head differs at destination"
)

// DestinationConflictError reports a destination project that does not hold a copy
// of the origin project. The origin project is left untouched.
type DestinationConflictError struct {
	ProjectPath     string
	DestinationPath string
	Reason          string
}

// Error describes the conflict.
func (conflictError DestinationConflictError) Error() string {
	return fmt.Sprintf(destinationConflictTemplate, conflictError.DestinationPath, conflictError.ProjectPath, conflictError.Reason)
}

// destinationClaims maps a destination path to the first origin project that targets it.
// Every project lands flat in the destination group, so paths from different subgroups can collide.
type destinationClaims map[string]platform.Project

func claimDestinationPaths(projects []platform.Project, includeArchived bool) destinationClaims {
	claims := make(destinationClaims, len(projects))
	for _, project := range projects {
		if project.Archived && !includeArchived {
			continue
		}
		key := strings.ToLower(project.Path)
		if _, claimed := claims[key]; !claimed {
			claims[key] = project
		}
	}
	return claims
}

// conflictingOwner returns the project that claimed the path first when it is not project.
func (claims destinationClaims) conflictingOwner(project platform.Project) (platform.Project, bool) {
	owner, claimed := claims[strings.ToLower(project.Path)]
	if !claimed || owner.ID == project.ID {
		return platform.Project{}, false
	}
	return owner, true
}

// verifyReconcileTarget confirms that an existing destination project is a finished
// copy of the origin project before anything is written to it or pruned from the origin.
func (orchestrator *Orchestrator) verifyReconcileTarget(executionContext context.Context, project platform.Project, existing platform.Project) error {
	conflict := func(reason string) error {
		return DestinationConflictError{ProjectPath: project.DisplayName(), DestinationPath: existing.DisplayName(), Reason: reason}
	}
	if orchestrator.options.SharedInstance && existing.ID == project.ID {
		return conflict(conflictReasonSelfConstant)
	}
	if !existing.ImportFinished() {
		return conflict(fmt.Sprintf(conflictReasonImportTemplate, existing.ImportStatus))
	}

	originBranches, originError := orchestrator.origin.GetBranches(executionContext, project.ID)
	if originError != nil {
		return originError
	}
	originDefault, hasDefault := defaultBranch(originBranches, project.DefaultBranch)
	if !hasDefault {
		return nil
	}

	destinationBranches, destinationError := orchestrator.destination.GetBranches(executionContext, existing.ID)
	if destinationError != nil {
		return destinationError
	}
	destinationDefault, present := findBranch(destinationBranches, originDefault.Name)
	if !present {
		return conflict(fmt.Sprintf(conflictReasonDefaultAbsentTemplate, originDefault.Name))
	}
	if !originDefault.SameHead(destinationDefault) {
		return conflict(fmt.Sprintf(conflictReasonDefaultDiffersTemplate, originDefault.Name))
	}
	return nil
}

func defaultBranch(branches []platform.Branch, defaultName string) (platform.Branch, bool) {
	if len(defaultName) > 0 {
		return findBranch(branches, defaultName)
	}
	for _, branch := range branches {
		if branch.Default {
			return branch, true
		}
	}
	return platform.Branch{}, false
}

func findBranch(branches []platform.Branch, name string) (platform.Branch, bool) {
	for _, branch := range branches {
		if branch.Name == name {
			return branch, true
		}
	}
	return platform.Branch{}, false
}

// samePlatform reports whether both collaborators are the same client instance.
func samePlatform(origin platform.Platform, destination platform.Platform) bool {
	originValue := reflect.ValueOf(origin)
	destinationValue := reflect.ValueOf(destination)
	if originValue.Kind() != reflect.Pointer || originValue.Type() != destinationValue.Type() {
		return false
	}
	return originValue.Pointer() == destinationValue.Pointer()
}

// sameInstance compares two GitLab base URLs, ignoring case, trailing slashes and the API suffix.
func sameInstance(originURL string, destinationURL string) bool {
	normalize := func(baseURL string) string {
		normalized := strings.TrimRight(strings.ToLower(strings.TrimSpace(baseURL)), "/")
		return strings.TrimRight(strings.TrimSuffix(normalized, "/api/v4"), "/")
	}
	return len(normalize(originURL)) > 0 && normalize(originURL) == normalize(destinationURL)
}
