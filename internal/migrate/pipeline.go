package migrate

import (
	"context"
	"fmt"

	"github.com/temirov/glmigrate/internal/platform"
	"github.com/temirov/glmigrate/internal/report"
	"github.com/temirov/glmigrate/internal/transfer"
)

const (
	promptTemplateConstant               = "Migrate %s into destination group %d? [y/N/a] "
	skipReasonArchivedConstant           = "archived"
	skipReasonDeclinedConstant           = "declined at prompt"
	skipReasonExistingConstant           = "already present at destination"
	noteAlreadyPresentConstant           = "already present at destination; repository import skipped"
	noteDryRunImportAssumedConstant      = "destination branches assumed to match the origin export"
	warningPruneSkippedTemplate          = "pruning skipped: %v"
	warningMissingProtectedTemplate      = "protected branch %q does not exist in project"
	warningBranchWithheldTemplate        = "branch %s kept: %s"
	warningDestinationUnverifiedTemplate = "destination branch listing failed: %v"
	promptErrorTemplateConstant          = "confirmation prompt failed: %w"
)

// processProject runs one project's pipeline to a terminal state. The returned
// error is non-nil only for failures that must abort the whole run.
func (orchestrator *Orchestrator) processProject(executionContext context.Context, index int, project platform.Project, claims destinationClaims) (*report.Entry, error) {
	entry := report.NewEntry(index, project.ID, project.DisplayName(), orchestrator.options.DryRun)

	if project.Archived && !orchestrator.options.IncludeArchived {
		entry.Skip(skipReasonArchivedConstant)
		return entry, nil
	}

	if owner, collides := claims.conflictingOwner(project); collides {
		entry.Fail(report.StateDiscovered, DestinationConflictError{
			ProjectPath:     project.DisplayName(),
			DestinationPath: project.Path,
			Reason:          fmt.Sprintf(conflictReasonPathClaimedTemplate, owner.DisplayName()),
		})
		return entry, nil
	}

	allowed, promptError := orchestrator.gate.Allow(fmt.Sprintf(promptTemplateConstant, project.DisplayName(), orchestrator.options.DestinationGroupID))
	if promptError != nil {
		entry.Fail(report.StateDiscovered, fmt.Errorf(promptErrorTemplateConstant, promptError))
		return entry, nil
	}
	if !allowed {
		entry.Skip(skipReasonDeclinedConstant)
		return entry, nil
	}

	existing, exists, findError := orchestrator.destination.FindProject(executionContext, orchestrator.options.DestinationGroupID, project.Path)
	if findError != nil {
		return failEntry(entry, report.StateDiscovered, findError)
	}
	if exists {
		entry.DestinationProjectID = existing.ID
		entry.DestinationPath = existing.DisplayName()
		if orchestrator.options.ExistingDestination == ExistingDestinationSkip {
			entry.Skip(skipReasonExistingConstant)
			return entry, nil
		}
		if verifyError := orchestrator.verifyReconcileTarget(executionContext, project, existing); verifyError != nil {
			return failEntry(entry, report.StateDiscovered, verifyError)
		}
		entry.Note(noteAlreadyPresentConstant)
	}

	entry.Transition(report.StateTransferInProgress)
	var destination *platform.Project
	if exists {
		destination = &existing
	}
	destination, transferError := orchestrator.transferStage(executionContext, project, destination, entry)
	if transferError != nil {
		return failEntry(entry, report.StateTransferFailed, transferError)
	}
	entry.Transition(report.StateTransferComplete)

	return entry, orchestrator.pruneStage(executionContext, project, destination, entry)
}

func failEntry(entry *report.Entry, state report.State, failure error) (*report.Entry, error) {
	entry.Fail(state, failure)
	if platform.IsFatal(failure) {
		return entry, failure
	}
	return entry, nil
}

// transferStage moves the repository (unless the destination already exists) and
// then the project-owned resources. In dry run it only records intent; the
// returned destination stays nil when the project would be freshly imported.
func (orchestrator *Orchestrator) transferStage(executionContext context.Context, project platform.Project, destination *platform.Project, entry *report.Entry) (*platform.Project, error) {
	if orchestrator.options.DryRun {
		var destinationProjectID *int
		if destination != nil {
			destinationProjectID = &destination.ID
		} else {
			entry.Record(report.ActionExportProject, report.SideOrigin, project.DisplayName(), report.ActionPlanned, nil)
			entry.Record(report.ActionImportProject, report.SideDestination, project.Path, report.ActionPlanned, nil)
		}
		planned, planError := orchestrator.transfer.PlanResources(executionContext, project.ID, destinationProjectID)
		if planError != nil {
			return destination, planError
		}
		recordTransfer(entry, planned, report.ActionPlanned)
		return destination, nil
	}

	if destination == nil {
		archive, exportError := orchestrator.origin.ExportProject(executionContext, project.ID)
		entry.Record(report.ActionExportProject, report.SideOrigin, project.DisplayName(), actionStatus(exportError), exportError)
		if exportError != nil {
			return nil, exportError
		}

		imported, importError := orchestrator.destination.ImportProject(executionContext, platform.ImportRequest{
			Archive: archive,
			GroupID: orchestrator.options.DestinationGroupID,
			Path:    project.Path,
			Name:    project.Name,
		})
		entry.Record(report.ActionImportProject, report.SideDestination, project.Path, actionStatus(importError), importError)
		if importError != nil {
			return nil, importError
		}
		destination = &imported
		entry.DestinationProjectID = imported.ID
		entry.DestinationPath = imported.DisplayName()
	}

	transferred, transferError := orchestrator.transfer.TransferResources(executionContext, project.ID, destination.ID)
	recordTransfer(entry, transferred, report.ActionDone)
	return destination, transferError
}

func recordTransfer(entry *report.Entry, result transfer.TransferResult, status report.ActionStatus) {
	for _, key := range result.VariablesTransferred {
		entry.Record(report.ActionSetCIVariable, report.SideDestination, key, status, nil)
	}
	for _, tagName := range result.ReleasesCreated {
		entry.Record(report.ActionCreateRelease, report.SideDestination, tagName, status, nil)
	}
	entry.Transfer = report.TransferCounts{
		VariablesTransferred:      result.VariablesTransferredCount(),
		VariablesSkippedInherited: result.VariablesSkippedCount(),
		ReleasesCreated:           len(result.ReleasesCreated),
		ReleasesSkipped:           len(result.ReleasesSkipped),
	}
}

func actionStatus(actionError error) report.ActionStatus {
	if actionError != nil {
		return report.ActionFailed
	}
	return report.ActionDone
}
