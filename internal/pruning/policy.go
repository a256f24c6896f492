// Package pruning decides which origin branches, releases, and pipelines may be
// deleted once a project has been migrated. Nothing here performs I/O.
package pruning

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/temirov/glmigrate/internal/platform"
)

const (
	keepLatestItemsFieldNameConstant = "keep_latest_items"
	positiveValueMessageConstant     = "must be a positive integer"
	invalidParameterTemplateConstant = "%s: %s"
)

// InvalidParameterError describes a rejected preservation parameter.
type InvalidParameterError struct {
	FieldName string
	Message   string
}

// Error describes the invalid parameter.
func (parameterError InvalidParameterError) Error() string {
	return fmt.Sprintf(invalidParameterTemplateConstant, parameterError.FieldName, parameterError.Message)
}

// Parameters governs how much origin history survives pruning. It is immutable for a run.
type Parameters struct {
	KeepLatestItems      int
	ProtectedBranches    []string
	RetainNewerThan      time.Time
	PruneBranchPipelines bool
}

// Validate rejects parameters that would make pruning ill-defined.
func (parameters Parameters) Validate() error {
	if parameters.KeepLatestItems <= 0 {
		return InvalidParameterError{FieldName: keepLatestItemsFieldNameConstant, Message: positiveValueMessageConstant}
	}
	return nil
}

// Snapshot is the origin project state the plan is computed from.
type Snapshot struct {
	DefaultBranch string
	Branches      []platform.Branch
	Releases      []platform.Release
	Pipelines     []platform.Pipeline
}

// Plan lists the items eligible for deletion. Releases imply deletion of their tags.
type Plan struct {
	BranchesToDelete  []platform.Branch
	ReleasesToDelete  []platform.Release
	PipelinesToDelete []platform.Pipeline
	// MissingProtectedBranches lists configured protected names absent from the project.
	MissingProtectedBranches []string
}

// Empty reports whether the plan deletes nothing.
func (plan Plan) Empty() bool {
	return len(plan.BranchesToDelete) == 0 && len(plan.ReleasesToDelete) == 0 && len(plan.PipelinesToDelete) == 0
}

// IsImplicitlyProtected reports whether the branch name is protected regardless of configuration.
func IsImplicitlyProtected(branchName string) bool {
	return branchName == platform.BranchMainConstant || branchName == platform.BranchMasterConstant
}

// PlanPruning computes the deletion plan for one project.
func PlanPruning(snapshot Snapshot, parameters Parameters) Plan {
	protectedNames := make(map[string]struct{}, len(parameters.ProtectedBranches))
	for _, protectedName := range parameters.ProtectedBranches {
		trimmed := strings.TrimSpace(protectedName)
		if len(trimmed) > 0 {
			protectedNames[trimmed] = struct{}{}
		}
	}

	plan := Plan{}
	existingBranches := make(map[string]struct{}, len(snapshot.Branches))
	deletedBranches := make(map[string]struct{})
	for _, branch := range snapshot.Branches {
		existingBranches[branch.Name] = struct{}{}
		if !branchDeletable(branch, snapshot.DefaultBranch, protectedNames) {
			continue
		}
		plan.BranchesToDelete = append(plan.BranchesToDelete, branch)
		deletedBranches[branch.Name] = struct{}{}
	}

	for protectedName := range protectedNames {
		if _, exists := existingBranches[protectedName]; !exists {
			plan.MissingProtectedBranches = append(plan.MissingProtectedBranches, protectedName)
		}
	}
	sort.Strings(plan.MissingProtectedBranches)

	orderedReleases := SortReleasesNewestFirst(snapshot.Releases)
	for index, release := range orderedReleases {
		if index < parameters.KeepLatestItems || newerThan(release.Timestamp(), parameters.RetainNewerThan) {
			continue
		}
		plan.ReleasesToDelete = append(plan.ReleasesToDelete, release)
	}

	// Pipelines removed with their branch do not occupy a keep-latest slot.
	ranked := 0
	for _, pipeline := range SortPipelinesNewestFirst(snapshot.Pipelines) {
		_, onDeletedBranch := deletedBranches[pipeline.Ref]
		if parameters.PruneBranchPipelines && onDeletedBranch {
			plan.PipelinesToDelete = append(plan.PipelinesToDelete, pipeline)
			continue
		}
		ranked++
		if ranked <= parameters.KeepLatestItems || newerThan(pipeline.CreatedAt, parameters.RetainNewerThan) {
			continue
		}
		plan.PipelinesToDelete = append(plan.PipelinesToDelete, pipeline)
	}

	return plan
}

// SortReleasesNewestFirst orders releases by timestamp descending, ties broken by reverse tag order.
func SortReleasesNewestFirst(releases []platform.Release) []platform.Release {
	ordered := append([]platform.Release(nil), releases...)
	sort.SliceStable(ordered, func(left int, right int) bool {
		leftTime := ordered[left].Timestamp()
		rightTime := ordered[right].Timestamp()
		if !leftTime.Equal(rightTime) {
			return leftTime.After(rightTime)
		}
		return ordered[left].TagName > ordered[right].TagName
	})
	return ordered
}

// SortPipelinesNewestFirst orders pipelines by start time descending, ties broken by higher ID first.
func SortPipelinesNewestFirst(pipelines []platform.Pipeline) []platform.Pipeline {
	ordered := append([]platform.Pipeline(nil), pipelines...)
	sort.SliceStable(ordered, func(left int, right int) bool {
		if !ordered[left].CreatedAt.Equal(ordered[right].CreatedAt) {
			return ordered[left].CreatedAt.After(ordered[right].CreatedAt)
		}
		return ordered[left].ID > ordered[right].ID
	})
	return ordered
}

func branchDeletable(branch platform.Branch, defaultBranch string, protectedNames map[string]struct{}) bool {
	if IsImplicitlyProtected(branch.Name) {
		return false
	}
	if branch.Default || branch.Name == defaultBranch {
		return false
	}
	_, protected := protectedNames[branch.Name]
	return !protected
}

func newerThan(candidate time.Time, cutoff time.Time) bool {
	if cutoff.IsZero() {
		return false
	}
	return candidate.After(cutoff)
}
