package migrate

import (
	"strings"

	"github.com/temirov/glmigrate/internal/gitlabapi"
)

const (
	originConfigurationKeyConstant      = "origin"
	destinationConfigurationKeyConstant = "destination"
	migrationConfigurationKeyConstant   = "migration"
	clientConfigurationKeyConstant      = "client"
	defaultKeepLatestItemsConstant      = 10
	defaultConcurrencyConstant          = 1
)

// EndpointConfiguration identifies one GitLab instance and the group migrated from or into.
type EndpointConfiguration struct {
	URL         string `mapstructure:"url"`
	Token       string `mapstructure:"token"`
	Certificate string `mapstructure:"certificate"`
	Key         string `mapstructure:"key"`
	Group       string `mapstructure:"group"`
}

// ClientConfiguration converts the endpoint into gitlabapi client settings.
func (endpoint EndpointConfiguration) ClientConfiguration(transport gitlabapi.TransportSettings) gitlabapi.ClientConfiguration {
	return gitlabapi.ClientConfiguration{
		BaseURL:         endpoint.URL,
		Token:           endpoint.Token,
		CertificatePath: endpoint.Certificate,
		KeyPath:         endpoint.Key,
		Transport:       transport,
	}
}

func (endpoint EndpointConfiguration) sanitize() EndpointConfiguration {
	return EndpointConfiguration{
		URL:         strings.TrimSpace(endpoint.URL),
		Token:       strings.TrimSpace(endpoint.Token),
		Certificate: strings.TrimSpace(endpoint.Certificate),
		Key:         strings.TrimSpace(endpoint.Key),
		Group:       strings.TrimSpace(endpoint.Group),
	}
}

// MigrationConfiguration captures persisted migration and preservation settings.
type MigrationConfiguration struct {
	IncludeSubgroups     bool     `mapstructure:"include_subgroups"`
	IncludeArchived      bool     `mapstructure:"include_archived"`
	KeepLatestItems      int      `mapstructure:"keep_latest_items"`
	ProtectedBranches    []string `mapstructure:"protected_branches"`
	RetainNewerThan      string   `mapstructure:"retain_newer_than"`
	PruneBranchPipelines bool     `mapstructure:"prune_branch_pipelines"`
	DryRun               bool     `mapstructure:"dry_run"`
	AssumeYes            bool     `mapstructure:"assume_yes"`
	Concurrency          int      `mapstructure:"concurrency"`
	ExistingDestination  string   `mapstructure:"existing_destination"`
	ReportFile           string   `mapstructure:"report_file"`
}

// CommandConfiguration captures persisted configuration for the migrate command.
type CommandConfiguration struct {
	Origin      EndpointConfiguration       `mapstructure:"origin"`
	Destination EndpointConfiguration       `mapstructure:"destination"`
	Migration   MigrationConfiguration      `mapstructure:"migration"`
	Client      gitlabapi.TransportSettings `mapstructure:"client"`
}

// DefaultCommandConfiguration returns baseline configuration values for the migrate command.
func DefaultCommandConfiguration() CommandConfiguration {
	return CommandConfiguration{
		Migration: MigrationConfiguration{
			IncludeSubgroups:    true,
			KeepLatestItems:     defaultKeepLatestItemsConstant,
			DryRun:              true,
			AssumeYes:           true,
			Concurrency:         defaultConcurrencyConstant,
			ExistingDestination: string(ExistingDestinationReconcile),
		},
		Client: gitlabapi.DefaultTransportSettings(),
	}
}

// DefaultConfigurationValues returns viper defaults rooted at the provided key.
func DefaultConfigurationValues(rootKey string) map[string]any {
	defaults := DefaultCommandConfiguration()
	prefix := strings.TrimSpace(rootKey)
	if len(prefix) > 0 {
		prefix += "."
	}

	migrationPrefix := prefix + migrationConfigurationKeyConstant + "."
	clientPrefix := prefix + clientConfigurationKeyConstant + "."
	values := map[string]any{
		migrationPrefix + "include_subgroups":      defaults.Migration.IncludeSubgroups,
		migrationPrefix + "include_archived":       defaults.Migration.IncludeArchived,
		migrationPrefix + "keep_latest_items":      defaults.Migration.KeepLatestItems,
		migrationPrefix + "protected_branches":     []string{},
		migrationPrefix + "retain_newer_than":      "",
		migrationPrefix + "prune_branch_pipelines": defaults.Migration.PruneBranchPipelines,
		migrationPrefix + "dry_run":                defaults.Migration.DryRun,
		migrationPrefix + "assume_yes":             defaults.Migration.AssumeYes,
		migrationPrefix + "concurrency":            defaults.Migration.Concurrency,
		migrationPrefix + "existing_destination":   defaults.Migration.ExistingDestination,
		migrationPrefix + "report_file":            "",
		clientPrefix + "request_timeout":           defaults.Client.RequestTimeout.String(),
		clientPrefix + "requests_per_second":       defaults.Client.RequestsPerSecond,
		clientPrefix + "retry_max":                 defaults.Client.RetryMax,
		clientPrefix + "export_poll_interval":      defaults.Client.ExportPollInterval.String(),
		clientPrefix + "export_timeout":            defaults.Client.ExportTimeout.String(),
	}
	for _, endpointKey := range []string{originConfigurationKeyConstant, destinationConfigurationKeyConstant} {
		for _, field := range []string{"url", "token", "certificate", "key", "group"} {
			values[prefix+endpointKey+"."+field] = ""
		}
	}
	return values
}

// Sanitize trims configured values and removes empty protected branch names.
func (configuration CommandConfiguration) Sanitize() CommandConfiguration {
	sanitized := configuration
	sanitized.Origin = configuration.Origin.sanitize()
	sanitized.Destination = configuration.Destination.sanitize()
	sanitized.Migration.RetainNewerThan = strings.TrimSpace(configuration.Migration.RetainNewerThan)
	sanitized.Migration.ExistingDestination = strings.ToLower(strings.TrimSpace(configuration.Migration.ExistingDestination))
	sanitized.Migration.ReportFile = strings.TrimSpace(configuration.Migration.ReportFile)

	sanitized.Migration.ProtectedBranches = nil
	seen := make(map[string]struct{}, len(configuration.Migration.ProtectedBranches))
	for _, branchName := range configuration.Migration.ProtectedBranches {
		trimmed := strings.TrimSpace(branchName)
		if len(trimmed) == 0 {
			continue
		}
		if _, duplicate := seen[trimmed]; duplicate {
			continue
		}
		seen[trimmed] = struct{}{}
		sanitized.Migration.ProtectedBranches = append(sanitized.Migration.ProtectedBranches, trimmed)
	}
	return sanitized
}
