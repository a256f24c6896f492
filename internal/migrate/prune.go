package migrate

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/glmigrate/internal/platform"
	"github.com/temirov/glmigrate/internal/pruning"
	"github.com/temirov/glmigrate/internal/report"
)

const (
	pruneErrorTemplateConstant    = "pruning of project %d left %d action(s) incomplete: %s"
	pruneFailureTemplateConstant  = "%s %s: %v"
	pruneFailureSeparatorConstant = "; "
	blockingReasonSeparator       = ", "
	logMessagePruneActionFailed   = "Origin pruning action failed"
	logMessageBranchWithheld      = "Origin branch withheld from deletion"
	logFieldActionKindConstant    = "action"
	logFieldTargetConstant        = "target"
	logFieldBlockingReasons       = "blocking_reasons"
)

// PruneFailure is one origin deletion that did not complete.
type PruneFailure struct {
	Kind   report.ActionKind
	Target string
	Cause  error
}

// PruneError lists the pruning actions of one project that did not complete.
// The project stays migrated; the failures are reported, never retried within the run.
type PruneError struct {
	ProjectID int
	Failures  []PruneFailure
}

// Error describes every incomplete action.
func (pruneError PruneError) Error() string {
	descriptions := make([]string, 0, len(pruneError.Failures))
	for _, failure := range pruneError.Failures {
		descriptions = append(descriptions, fmt.Sprintf(pruneFailureTemplateConstant, failure.Kind, failure.Target, failure.Cause))
	}
	return fmt.Sprintf(pruneErrorTemplateConstant, pruneError.ProjectID, len(pruneError.Failures), strings.Join(descriptions, pruneFailureSeparatorConstant))
}

// Unwrap exposes the individual causes.
func (pruneError PruneError) Unwrap() []error {
	causes := make([]error, 0, len(pruneError.Failures))
	for _, failure := range pruneError.Failures {
		causes = append(causes, failure.Cause)
	}
	return causes
}

// pruneStage deletes eligible origin history in the order pipelines, releases with
// their tags, branches. It never touches the destination. Only a fatal error is returned.
func (orchestrator *Orchestrator) pruneStage(executionContext context.Context, project platform.Project, destination *platform.Project, entry *report.Entry) error {
	entry.Transition(report.StatePruneInProgress)

	snapshot, snapshotError := orchestrator.readSnapshot(executionContext, project)
	if snapshotError != nil {
		entry.Warn(fmt.Sprintf(warningPruneSkippedTemplate, snapshotError))
		entry.Migrate(report.StatePruneFailed)
		if platform.IsFatal(snapshotError) {
			return snapshotError
		}
		return nil
	}

	plan := pruning.PlanPruning(snapshot, orchestrator.options.Preservation)
	for _, missingBranch := range plan.MissingProtectedBranches {
		entry.Warn(fmt.Sprintf(warningMissingProtectedTemplate, missingBranch))
	}

	branches, verificationError := orchestrator.safeBranches(executionContext, plan.BranchesToDelete, snapshot.Branches, destination, entry)
	if verificationError != nil {
		entry.Warn(fmt.Sprintf(warningPruneSkippedTemplate, verificationError))
		entry.Migrate(report.StatePruneFailed)
		return verificationError
	}

	executor := &deletionExecutor{orchestrator: orchestrator, executionContext: executionContext, projectID: project.ID, entry: entry}
	for _, pipeline := range plan.PipelinesToDelete {
		pipelineID := pipeline.ID
		executor.run(report.ActionDeletePipeline, strconv.Itoa(pipelineID), func(runContext context.Context) error {
			return orchestrator.origin.DeletePipeline(runContext, project.ID, pipelineID)
		})
	}
	for _, release := range plan.ReleasesToDelete {
		tagName := release.TagName
		releaseDeleted := executor.run(report.ActionDeleteRelease, tagName, func(runContext context.Context) error {
			return orchestrator.origin.DeleteRelease(runContext, project.ID, tagName)
		})
		if !releaseDeleted {
			continue
		}
		executor.run(report.ActionDeleteTag, tagName, func(runContext context.Context) error {
			return orchestrator.origin.DeleteTag(runContext, project.ID, tagName)
		})
	}
	for _, branch := range branches {
		branchName := branch.Name
		executor.run(report.ActionDeleteBranch, branchName, func(runContext context.Context) error {
			return orchestrator.origin.DeleteBranch(runContext, project.ID, branchName)
		})
	}

	if len(executor.failures) > 0 {
		entry.Warn(PruneError{ProjectID: project.ID, Failures: executor.failures}.Error())
		entry.Migrate(report.StatePruneFailed)
		return executor.fatal
	}
	entry.Migrate(report.StatePruneComplete)
	return nil
}

func (orchestrator *Orchestrator) readSnapshot(executionContext context.Context, project platform.Project) (pruning.Snapshot, error) {
	branches, branchesError := orchestrator.origin.GetBranches(executionContext, project.ID)
	if branchesError != nil {
		return pruning.Snapshot{}, branchesError
	}
	releases, releasesError := orchestrator.origin.GetReleases(executionContext, project.ID)
	if releasesError != nil {
		return pruning.Snapshot{}, releasesError
	}
	pipelines, pipelinesError := orchestrator.origin.GetPipelines(executionContext, project.ID)
	if pipelinesError != nil {
		return pruning.Snapshot{}, pipelinesError
	}
	return pruning.Snapshot{
		DefaultBranch: project.DefaultBranch,
		Branches:      branches,
		Releases:      releases,
		Pipelines:     pipelines,
	}, nil
}

// safeBranches keeps the deletion candidates whose head commit is confirmed at the destination.
// A nil destination only happens in dry run before a fresh import, where the import
// would reproduce every origin branch.
func (orchestrator *Orchestrator) safeBranches(executionContext context.Context, candidates []platform.Branch, originBranches []platform.Branch, destination *platform.Project, entry *report.Entry) ([]platform.Branch, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	presentAtDestination := make(map[string]platform.Branch)
	destinationVerified := true
	if destination == nil {
		for _, branch := range originBranches {
			presentAtDestination[branch.Name] = branch
		}
		entry.Note(noteDryRunImportAssumedConstant)
	} else {
		destinationBranches, listError := orchestrator.destination.GetBranches(executionContext, destination.ID)
		if listError != nil {
			if platform.IsFatal(listError) {
				return nil, listError
			}
			destinationVerified = false
			entry.Warn(fmt.Sprintf(warningDestinationUnverifiedTemplate, listError))
		}
		for _, branch := range destinationBranches {
			presentAtDestination[branch.Name] = branch
		}
	}

	safe := make([]platform.Branch, 0, len(candidates))
	for _, candidate := range candidates {
		destinationBranch, present := presentAtDestination[candidate.Name]
		status := orchestrator.safety.Evaluate(SafetyInputs{
			DestinationVerified:        destinationVerified,
			BranchPresentAtDestination: present,
			BranchHeadMatches:          present && candidate.SameHead(destinationBranch),
		})
		if !status.SafeToDelete {
			entry.Warn(fmt.Sprintf(warningBranchWithheldTemplate, candidate.Name, strings.Join(status.BlockingReasons, blockingReasonSeparator)))
			orchestrator.logger.Warn(logMessageBranchWithheld,
				zap.Int(logFieldProjectIDConstant, entry.ProjectID),
				zap.String(logFieldTargetConstant, candidate.Name),
				zap.Strings(logFieldBlockingReasons, status.BlockingReasons),
			)
			continue
		}
		safe = append(safe, candidate)
	}
	return safe, nil
}

// deletionExecutor runs origin deletions, or records them as planned in dry run.
// After a fatal failure every remaining deletion is abandoned.
type deletionExecutor struct {
	orchestrator     *Orchestrator
	executionContext context.Context
	projectID        int
	entry            *report.Entry
	failures         []PruneFailure
	fatal            error
}

// run reports whether the target is gone (or would be, in dry run). A target that
// is already absent counts as deleted.
func (executor *deletionExecutor) run(kind report.ActionKind, target string, deletion func(runContext context.Context) error) bool {
	if executor.fatal != nil {
		return false
	}
	if executor.orchestrator.options.DryRun {
		executor.entry.Record(kind, report.SideOrigin, target, report.ActionPlanned, nil)
		return true
	}

	deletionError := deletion(executor.executionContext)
	if deletionError == nil || platform.IsNotFound(deletionError) {
		executor.entry.Record(kind, report.SideOrigin, target, report.ActionDone, nil)
		return true
	}

	executor.entry.Record(kind, report.SideOrigin, target, report.ActionFailed, deletionError)
	executor.failures = append(executor.failures, PruneFailure{Kind: kind, Target: target, Cause: deletionError})
	executor.orchestrator.logger.Warn(logMessagePruneActionFailed,
		zap.Int(logFieldProjectIDConstant, executor.projectID),
		zap.String(logFieldActionKindConstant, string(kind)),
		zap.String(logFieldTargetConstant, target),
		zap.Error(deletionError),
	)
	if platform.IsFatal(deletionError) {
		executor.fatal = deletionError
	}
	return false
}
