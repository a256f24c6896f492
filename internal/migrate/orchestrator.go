package migrate

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/temirov/glmigrate/internal/platform"
	"github.com/temirov/glmigrate/internal/prompt"
	"github.com/temirov/glmigrate/internal/report"
	"github.com/temirov/glmigrate/internal/transfer"
)

const (
	originMissingMessageConstant      = "origin platform not configured"
	destinationMissingMessageConstant = "destination platform not configured"
	logMessageRunStarted              = "Migration run started"
	logMessageRunFinished             = "Migration run finished"
	logMessageRunAborted              = "Migration run aborted"
	logMessageProjectFinished         = "Project pipeline finished"
	logMessageProjectFailed           = "Project pipeline failed"
	logFieldProjectCountConstant      = "project_count"
	logFieldConcurrencyConstant       = "concurrency"
	logFieldDryRunConstant            = "dry_run"
	logFieldDestinationGroupConstant  = "destination_group_id"
	logFieldProjectIDConstant         = "project_id"
	logFieldProjectPathConstant       = "project_path"
	logFieldStateConstant             = "state"
	logFieldOutcomeConstant           = "outcome"
	logFieldOriginImpactConstant      = "origin_impact"
	logFieldMigratedConstant          = "migrated"
	logFieldSkippedConstant           = "skipped"
	logFieldFailedConstant            = "failed"
	logFieldDurationConstant          = "duration"
)

var (
	errOriginMissing      = errors.New(originMissingMessageConstant)
	errDestinationMissing = errors.New(destinationMissingMessageConstant)
)

// Dependencies describes the collaborators of an Orchestrator.
type Dependencies struct {
	Logger      *zap.Logger
	Origin      platform.Platform
	Destination platform.Platform
	Prompter    prompt.Prompter
	Clock       func() time.Time
}

// Orchestrator drives every discovered project through transfer and origin pruning.
type Orchestrator struct {
	logger      *zap.Logger
	origin      platform.Platform
	destination platform.Platform
	transfer    *transfer.Service
	gate        *prompt.Gate
	safety      SafetyEvaluator
	options     Options
	clock       func() time.Time
}

// NewOrchestrator validates the options and constructs an Orchestrator.
func NewOrchestrator(dependencies Dependencies, options Options) (*Orchestrator, error) {
	if dependencies.Origin == nil {
		return nil, errOriginMissing
	}
	if dependencies.Destination == nil {
		return nil, errDestinationMissing
	}
	if samePlatform(dependencies.Origin, dependencies.Destination) {
		options.SharedInstance = true
	}
	if validationError := options.Validate(); validationError != nil {
		return nil, validationError
	}
	options.ExistingDestination, _ = ParseExistingDestinationPolicy(string(options.ExistingDestination))

	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := dependencies.Clock
	if clock == nil {
		clock = time.Now
	}

	transferService, transferError := transfer.NewService(transfer.Dependencies{
		Logger:      logger,
		Origin:      dependencies.Origin,
		Destination: dependencies.Destination,
	})
	if transferError != nil {
		return nil, transferError
	}

	return &Orchestrator{
		logger:      logger,
		origin:      dependencies.Origin,
		destination: dependencies.Destination,
		transfer:    transferService,
		gate:        prompt.NewGate(options.Confirmation, dependencies.Prompter),
		options:     options,
		clock:       clock,
	}, nil
}

// Run processes the projects with at most Options.Concurrency pipelines in flight.
// Project-scoped failures are recorded and never returned. A fatal error (or
// cancellation of executionContext) stops new projects from starting; pipelines
// already in flight run to a terminal state. The report then lists only processed
// projects and the fatal error is returned alongside it.
func (orchestrator *Orchestrator) Run(executionContext context.Context, projects []platform.Project) (report.Report, error) {
	runContext, cancelRun := context.WithCancelCause(executionContext)
	defer cancelRun(nil)

	recorder := report.NewRecorder(orchestrator.options.DryRun, orchestrator.clock())
	orchestrator.logger.Info(logMessageRunStarted,
		zap.Int(logFieldProjectCountConstant, len(projects)),
		zap.Int(logFieldConcurrencyConstant, orchestrator.options.Concurrency),
		zap.Bool(logFieldDryRunConstant, orchestrator.options.DryRun),
		zap.Int(logFieldDestinationGroupConstant, orchestrator.options.DestinationGroupID),
	)

	claims := claimDestinationPaths(projects, orchestrator.options.IncludeArchived)
	var workers errgroup.Group
	workers.SetLimit(orchestrator.options.Concurrency)
	for index, project := range projects {
		if runContext.Err() != nil {
			break
		}
		index, project := index, project
		workers.Go(func() error {
			if runContext.Err() != nil {
				return nil
			}
			entry, fatalError := orchestrator.processProject(context.WithoutCancel(runContext), index, project, claims)
			recorder.Add(entry)
			orchestrator.logOutcome(entry)
			if fatalError != nil {
				cancelRun(fatalError)
			}
			return nil
		})
	}
	_ = workers.Wait()

	var abortError error
	if runContext.Err() != nil {
		abortError = context.Cause(runContext)
	}

	finalReport := recorder.Finalize(orchestrator.clock(), abortError)
	summary := finalReport.Summary()
	if abortError != nil {
		orchestrator.logger.Error(logMessageRunAborted,
			zap.Int(logFieldMigratedConstant, summary.Migrated),
			zap.Int(logFieldSkippedConstant, summary.Skipped),
			zap.Int(logFieldFailedConstant, summary.Failed),
			zap.Error(abortError),
		)
		return finalReport, abortError
	}

	orchestrator.logger.Info(logMessageRunFinished,
		zap.Int(logFieldMigratedConstant, summary.Migrated),
		zap.Int(logFieldSkippedConstant, summary.Skipped),
		zap.Int(logFieldFailedConstant, summary.Failed),
		zap.Duration(logFieldDurationConstant, finalReport.Duration()),
	)
	return finalReport, nil
}

func (orchestrator *Orchestrator) logOutcome(entry *report.Entry) {
	fields := []zap.Field{
		zap.Int(logFieldProjectIDConstant, entry.ProjectID),
		zap.String(logFieldProjectPathConstant, entry.ProjectPath),
		zap.String(logFieldStateConstant, string(entry.State)),
		zap.String(logFieldOutcomeConstant, string(entry.Outcome)),
		zap.String(logFieldOriginImpactConstant, string(entry.OriginImpact)),
	}
	if entry.Outcome == report.OutcomeFailed {
		orchestrator.logger.Warn(logMessageProjectFailed, append(fields, zap.String("error", entry.Error))...)
		return
	}
	orchestrator.logger.Info(logMessageProjectFinished, fields...)
}
