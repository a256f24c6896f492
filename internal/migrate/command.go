package migrate

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/glmigrate/internal/discovery"
	"github.com/temirov/glmigrate/internal/gitlabapi"
	"github.com/temirov/glmigrate/internal/platform"
	"github.com/temirov/glmigrate/internal/prompt"
	"github.com/temirov/glmigrate/internal/pruning"
	"github.com/temirov/glmigrate/internal/report"
	"github.com/temirov/glmigrate/internal/utils"
	"github.com/temirov/glmigrate/internal/utils/flags"
	pathutils "github.com/temirov/glmigrate/internal/utils/path"
)

const (
	commandUseConstant                     = "migrate"
	commandShortDescriptionConstant        = "Migrate a GitLab group and prune the origin"
	commandLongDescriptionConstant         = "migrate transfers every project of the origin group into the destination group, copies CI variables and releases, and prunes old pipelines, releases, and branches on the origin while keeping the newest items and protected branches."
	originFlagPrefixConstant               = "origin"
	destinationFlagPrefixConstant          = "destination"
	excludeSubgroupsFlagNameConstant       = "exclude-subgroups"
	excludeSubgroupsFlagUsageConstant      = "Only migrate projects that belong directly to the origin group"
	includeArchivedFlagNameConstant        = "include-archived"
	includeArchivedFlagUsageConstant       = "Migrate archived projects instead of skipping them"
	keepLatestItemsFlagNameConstant        = "keep-latest-items"
	keepLatestItemsFlagUsageConstant       = "Number of newest releases and pipelines kept on the origin"
	protectedBranchFlagNameConstant        = "protected-branch"
	protectedBranchFlagUsageConstant       = "Branch never deleted from the origin (repeatable)"
	retainNewerThanFlagNameConstant        = "retain-newer-than"
	retainNewerThanFlagUsageConstant       = "Also keep releases and pipelines newer than this RFC3339 timestamp or duration"
	pruneBranchPipelinesFlagNameConstant   = "prune-branch-pipelines"
	pruneBranchPipelinesFlagUsageConstant  = "Delete pipelines of deleted branches regardless of recency"
	concurrencyFlagNameConstant            = "concurrency"
	concurrencyFlagUsageConstant           = "Maximum number of projects processed at the same time"
	existingDestinationFlagNameConstant    = "existing-destination"
	existingDestinationFlagUsageConstant   = "Handling of projects already present in the destination group"
	reportFileFlagNameConstant             = "report-file"
	reportFileFlagUsageConstant            = "Write the final report to this .json, .yaml, or .yml file"
	verboseFlagNameConstant                = "verbose"
	verboseFlagUsageConstant               = "List every recorded action in the console report"
	platformCreationErrorTemplate          = "unable to construct %s client: %w"
	groupResolutionErrorTemplate           = "unable to resolve %s group: %w"
	enumerationErrorTemplate               = "unable to enumerate origin projects: %w"
	renderErrorTemplate                    = "unable to render report: %w"
	reportExportErrorTemplate              = "unable to write report: %w"
	runAbortedErrorTemplate                = "migration aborted: %w"
	projectFailuresErrorTemplate           = "%d project(s) failed"
	endpointURLFieldTemplate               = "%s.url"
	endpointGroupFieldTemplate             = "%s.group"
	requiredValueMessageConstant           = "is required"
	logMessageGroupsResolved               = "Groups resolved"
	logMessageReportWritten                = "Report written"
	logMessageProjectsEnumerated           = "Origin projects enumerated"
	logFieldOriginGroupConstant            = "origin_group"
	logFieldOriginGroupIDConstant          = "origin_group_id"
	logFieldDestinationGroupPathConstant   = "destination_group"
	logFieldReportFileConstant             = "report_file"
	logFieldIncludeSubgroupsConstant       = "include_subgroups"
	logFieldDiscoveredProjectCountConstant = "discovered_projects"
	logMessageMigrationStarting            = "Migration starting"
	logFieldConfigurationFileConstant      = "config_file"
)

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// PlatformFactory constructs a Platform for one GitLab instance.
type PlatformFactory func(configuration gitlabapi.ClientConfiguration, logger *zap.Logger) (platform.Platform, error)

// CommandBuilder assembles the migrate Cobra command.
type CommandBuilder struct {
	LoggerProvider        LoggerProvider
	ConfigurationProvider func() CommandConfiguration
	PlatformFactory       PlatformFactory
	Clock                 func() time.Time
}

// Build constructs the migrate command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:           commandUseConstant,
		Short:         commandShortDescriptionConstant,
		Long:          commandLongDescriptionConstant,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		RunE:          builder.run,
	}

	defaults := builder.resolveConfiguration()
	flags.BindEndpointFlags(command, originFlagPrefixConstant)
	flags.BindEndpointFlags(command, destinationFlagPrefixConstant)

	flagSet := command.Flags()
	flagSet.Bool(excludeSubgroupsFlagNameConstant, !defaults.Migration.IncludeSubgroups, excludeSubgroupsFlagUsageConstant)
	flagSet.Bool(includeArchivedFlagNameConstant, defaults.Migration.IncludeArchived, includeArchivedFlagUsageConstant)
	flagSet.Int(keepLatestItemsFlagNameConstant, defaults.Migration.KeepLatestItems, keepLatestItemsFlagUsageConstant)
	flagSet.StringArray(protectedBranchFlagNameConstant, nil, protectedBranchFlagUsageConstant)
	flagSet.String(retainNewerThanFlagNameConstant, defaults.Migration.RetainNewerThan, retainNewerThanFlagUsageConstant)
	flagSet.Bool(pruneBranchPipelinesFlagNameConstant, defaults.Migration.PruneBranchPipelines, pruneBranchPipelinesFlagUsageConstant)
	flagSet.Int(concurrencyFlagNameConstant, defaults.Migration.Concurrency, concurrencyFlagUsageConstant)
	flagSet.String(
		existingDestinationFlagNameConstant,
		defaults.Migration.ExistingDestination,
		existingDestinationChoices.Usage(defaults.Migration.ExistingDestination, existingDestinationFlagUsageConstant),
	)
	flagSet.String(reportFileFlagNameConstant, defaults.Migration.ReportFile, reportFileFlagUsageConstant)
	flagSet.Bool(verboseFlagNameConstant, false, verboseFlagUsageConstant)
	flags.BindExecutionFlags(command, flags.ExecutionDefaults{DryRun: defaults.Migration.DryRun, AssumeYes: defaults.Migration.AssumeYes})

	return command, nil
}

func (builder *CommandBuilder) run(command *cobra.Command, arguments []string) error {
	logger := builder.resolveLogger()
	clock := builder.resolveClock()

	configuration := builder.applyFlags(command, builder.resolveConfiguration())
	if validationError := validateEndpoints(configuration); validationError != nil {
		return validationError
	}

	options, optionsError := buildOptions(configuration, clock())
	if optionsError != nil {
		return optionsError
	}
	configurationFilePath, _ := utils.NewCommandContextAccessor().ConfigurationFilePath(command.Context())
	logger.Info(logMessageMigrationStarting,
		zap.String(logFieldConfigurationFileConstant, configurationFilePath),
		zap.Bool(logFieldDryRunConstant, options.DryRun),
	)

	originPlatform, originError := builder.resolvePlatformFactory()(configuration.Origin.ClientConfiguration(configuration.Client), logger.Named(originFlagPrefixConstant))
	if originError != nil {
		return fmt.Errorf(platformCreationErrorTemplate, originFlagPrefixConstant, originError)
	}
	destinationPlatform, destinationError := builder.resolvePlatformFactory()(configuration.Destination.ClientConfiguration(configuration.Client), logger.Named(destinationFlagPrefixConstant))
	if destinationError != nil {
		return fmt.Errorf(platformCreationErrorTemplate, destinationFlagPrefixConstant, destinationError)
	}

	executionContext := command.Context()
	originWalker, _ := discovery.NewWalker(originPlatform, logger)
	destinationWalker, _ := discovery.NewWalker(destinationPlatform, logger)

	originGroup, originGroupError := originWalker.ResolveGroup(executionContext, configuration.Origin.Group)
	if originGroupError != nil {
		return fmt.Errorf(groupResolutionErrorTemplate, originFlagPrefixConstant, originGroupError)
	}
	destinationGroup, destinationGroupError := destinationWalker.ResolveGroup(executionContext, configuration.Destination.Group)
	if destinationGroupError != nil {
		return fmt.Errorf(groupResolutionErrorTemplate, destinationFlagPrefixConstant, destinationGroupError)
	}
	logger.Info(logMessageGroupsResolved,
		zap.String(logFieldOriginGroupConstant, originGroup.FullPath),
		zap.Int(logFieldOriginGroupIDConstant, originGroup.ID),
		zap.String(logFieldDestinationGroupPathConstant, destinationGroup.FullPath),
		zap.Int(logFieldDestinationGroupConstant, destinationGroup.ID),
	)
	options.OriginGroupID = originGroup.ID
	options.DestinationGroupID = destinationGroup.ID
	options.SharedInstance = sameInstance(configuration.Origin.URL, configuration.Destination.URL)
	if validationError := options.Validate(); validationError != nil {
		return validationError
	}

	projects, enumerationError := originWalker.Enumerate(executionContext, originGroup.ID, configuration.Migration.IncludeSubgroups)
	if enumerationError != nil {
		return fmt.Errorf(enumerationErrorTemplate, enumerationError)
	}
	logger.Debug(logMessageProjectsEnumerated,
		zap.Bool(logFieldIncludeSubgroupsConstant, configuration.Migration.IncludeSubgroups),
		zap.Int(logFieldDiscoveredProjectCountConstant, len(projects)),
	)

	orchestrator, orchestratorError := NewOrchestrator(Dependencies{
		Logger:      logger,
		Origin:      originPlatform,
		Destination: destinationPlatform,
		Prompter:    prompt.NewIOConfirmationPrompter(command.InOrStdin(), command.OutOrStdout()),
		Clock:       clock,
	}, options)
	if orchestratorError != nil {
		return orchestratorError
	}

	finalReport, runError := orchestrator.Run(executionContext, projects)

	verbose, _ := command.Flags().GetBool(verboseFlagNameConstant)
	if renderError := report.NewConsoleRenderer(command.OutOrStdout(), verbose).Render(finalReport); renderError != nil {
		return fmt.Errorf(renderErrorTemplate, renderError)
	}
	if len(configuration.Migration.ReportFile) > 0 {
		if exportError := report.WriteFile(configuration.Migration.ReportFile, finalReport); exportError != nil {
			return fmt.Errorf(reportExportErrorTemplate, exportError)
		}
		logger.Info(logMessageReportWritten, zap.String(logFieldReportFileConstant, configuration.Migration.ReportFile))
	}

	if runError != nil {
		return fmt.Errorf(runAbortedErrorTemplate, runError)
	}
	if finalReport.HasFailures() {
		return fmt.Errorf(projectFailuresErrorTemplate, finalReport.Summary().Failed)
	}
	return nil
}

// applyFlags overlays explicitly provided flags on the configured values.
func (builder *CommandBuilder) applyFlags(command *cobra.Command, configuration CommandConfiguration) CommandConfiguration {
	resolved := configuration
	resolved.Origin = endpointFromFlags(flags.ResolveEndpointFlags(command, originFlagPrefixConstant, endpointToFlags(configuration.Origin)))
	resolved.Destination = endpointFromFlags(flags.ResolveEndpointFlags(command, destinationFlagPrefixConstant, endpointToFlags(configuration.Destination)))

	flagSet := command.Flags()
	if flagSet.Changed(excludeSubgroupsFlagNameConstant) {
		excludeSubgroups, _ := flagSet.GetBool(excludeSubgroupsFlagNameConstant)
		resolved.Migration.IncludeSubgroups = !excludeSubgroups
	}
	if flagSet.Changed(includeArchivedFlagNameConstant) {
		resolved.Migration.IncludeArchived, _ = flagSet.GetBool(includeArchivedFlagNameConstant)
	}
	if flagSet.Changed(keepLatestItemsFlagNameConstant) {
		resolved.Migration.KeepLatestItems, _ = flagSet.GetInt(keepLatestItemsFlagNameConstant)
	}
	if flagSet.Changed(protectedBranchFlagNameConstant) {
		resolved.Migration.ProtectedBranches, _ = flagSet.GetStringArray(protectedBranchFlagNameConstant)
	}
	if flagSet.Changed(retainNewerThanFlagNameConstant) {
		resolved.Migration.RetainNewerThan, _ = flagSet.GetString(retainNewerThanFlagNameConstant)
	}
	if flagSet.Changed(pruneBranchPipelinesFlagNameConstant) {
		resolved.Migration.PruneBranchPipelines, _ = flagSet.GetBool(pruneBranchPipelinesFlagNameConstant)
	}
	if flagSet.Changed(concurrencyFlagNameConstant) {
		resolved.Migration.Concurrency, _ = flagSet.GetInt(concurrencyFlagNameConstant)
	}
	if flagSet.Changed(existingDestinationFlagNameConstant) {
		resolved.Migration.ExistingDestination, _ = flagSet.GetString(existingDestinationFlagNameConstant)
	}
	if flagSet.Changed(reportFileFlagNameConstant) {
		resolved.Migration.ReportFile, _ = flagSet.GetString(reportFileFlagNameConstant)
	}

	execution := flags.ResolveExecutionFlags(command, flags.ExecutionDefaults{DryRun: configuration.Migration.DryRun, AssumeYes: configuration.Migration.AssumeYes})
	resolved.Migration.DryRun = execution.DryRun
	resolved.Migration.AssumeYes = execution.AssumeYes

	resolved = resolved.Sanitize()
	pathutils.NewHomeExpander().ExpandAll(
		&resolved.Origin.Certificate,
		&resolved.Origin.Key,
		&resolved.Destination.Certificate,
		&resolved.Destination.Key,
		&resolved.Migration.ReportFile,
	)
	return resolved
}

func (builder *CommandBuilder) resolveLogger() *zap.Logger {
	var logger *zap.Logger
	if builder.LoggerProvider != nil {
		logger = builder.LoggerProvider()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return logger
}

func (builder *CommandBuilder) resolveClock() func() time.Time {
	if builder.Clock != nil {
		return builder.Clock
	}
	return time.Now
}

func (builder *CommandBuilder) resolvePlatformFactory() PlatformFactory {
	if builder.PlatformFactory != nil {
		return builder.PlatformFactory
	}
	return func(configuration gitlabapi.ClientConfiguration, logger *zap.Logger) (platform.Platform, error) {
		client, clientError := gitlabapi.NewClient(configuration, logger)
		if clientError != nil {
			return nil, clientError
		}
		return client, nil
	}
}

func (builder *CommandBuilder) resolveConfiguration() CommandConfiguration {
	if builder.ConfigurationProvider == nil {
		return DefaultCommandConfiguration()
	}

	provided := builder.ConfigurationProvider()
	return provided.Sanitize()
}

func validateEndpoints(configuration CommandConfiguration) error {
	var validationErrors []error
	endpoints := []struct {
		name     string
		endpoint EndpointConfiguration
	}{
		{name: originConfigurationKeyConstant, endpoint: configuration.Origin},
		{name: destinationConfigurationKeyConstant, endpoint: configuration.Destination},
	}
	for _, candidate := range endpoints {
		if len(candidate.endpoint.URL) == 0 {
			validationErrors = append(validationErrors, InvalidInputError{FieldName: fmt.Sprintf(endpointURLFieldTemplate, candidate.name), Message: requiredValueMessageConstant})
		}
		if len(candidate.endpoint.Group) == 0 {
			validationErrors = append(validationErrors, InvalidInputError{FieldName: fmt.Sprintf(endpointGroupFieldTemplate, candidate.name), Message: requiredValueMessageConstant})
		}
	}
	return errors.Join(validationErrors...)
}

// buildOptions converts sanitized configuration into orchestrator options. The
// destination group id is filled in once the group has been resolved.
func buildOptions(configuration CommandConfiguration, now time.Time) (Options, error) {
	cutoff, cutoffError := ParseRetentionCutoff(configuration.Migration.RetainNewerThan, now)
	if cutoffError != nil {
		return Options{}, cutoffError
	}
	policy, policyError := ParseExistingDestinationPolicy(configuration.Migration.ExistingDestination)
	if policyError != nil {
		return Options{}, policyError
	}

	preservation := pruning.Parameters{
		KeepLatestItems:      configuration.Migration.KeepLatestItems,
		ProtectedBranches:    configuration.Migration.ProtectedBranches,
		RetainNewerThan:      cutoff,
		PruneBranchPipelines: configuration.Migration.PruneBranchPipelines,
	}
	if parametersError := preservation.Validate(); parametersError != nil {
		return Options{}, parametersError
	}
	if configuration.Migration.Concurrency < 1 {
		return Options{}, InvalidInputError{FieldName: concurrencyFieldNameConstant, Message: positiveConcurrencyMessageConstant}
	}

	return Options{
		Preservation:        preservation,
		DryRun:              configuration.Migration.DryRun,
		IncludeArchived:     configuration.Migration.IncludeArchived,
		Concurrency:         configuration.Migration.Concurrency,
		ExistingDestination: policy,
		Confirmation:        prompt.ConfirmationPolicyFromBool(configuration.Migration.AssumeYes),
	}, nil
}

func endpointToFlags(endpoint EndpointConfiguration) flags.EndpointFlagValues {
	return flags.EndpointFlagValues{
		URL:         endpoint.URL,
		Token:       endpoint.Token,
		Certificate: endpoint.Certificate,
		Key:         endpoint.Key,
		Group:       endpoint.Group,
	}
}

func endpointFromFlags(values flags.EndpointFlagValues) EndpointConfiguration {
	return EndpointConfiguration{
		URL:         values.URL,
		Token:       values.Token,
		Certificate: values.Certificate,
		Key:         values.Key,
		Group:       values.Group,
	}
}
