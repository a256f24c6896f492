// Package flags provides helpers for binding standardized flags to Cobra commands.
package flags

import (
	"github.com/spf13/cobra"
)

const (
	// DryRunFlagName exposes the shared dry-run flag name.
	DryRunFlagName = "dry-run"
	// DryRunFlagUsage describes the shared dry-run flag purpose.
	DryRunFlagUsage = "Record every mutation in the report without performing it"
	// PromptFlagName exposes the shared per-item confirmation flag name.
	PromptFlagName = "prompt"
	// PromptFlagUsage describes the shared confirmation flag purpose.
	PromptFlagUsage = "Ask for confirmation before each project (y/N/a)"
)

// ExecutionDefaults describes configured values the execution flags fall back to.
type ExecutionDefaults struct {
	DryRun    bool
	AssumeYes bool
}

// ExecutionFlagValues holds the effective execution settings after flag parsing.
type ExecutionFlagValues struct {
	DryRun    bool
	AssumeYes bool
}

// BindExecutionFlags attaches the dry-run toggle and the prompt flag to the command.
func BindExecutionFlags(command *cobra.Command, defaults ExecutionDefaults) {
	if command == nil {
		return
	}
	flagSet := command.Flags()
	AddToggleFlag(flagSet, nil, DryRunFlagName, defaults.DryRun, DryRunFlagUsage)
	flagSet.Bool(PromptFlagName, !defaults.AssumeYes, PromptFlagUsage)
}

// ResolveExecutionFlags overlays explicitly provided flags on the configured defaults.
func ResolveExecutionFlags(command *cobra.Command, defaults ExecutionDefaults) ExecutionFlagValues {
	values := ExecutionFlagValues{DryRun: defaults.DryRun, AssumeYes: defaults.AssumeYes}
	if command == nil {
		return values
	}

	flagSet := command.Flags()
	if flag := flagSet.Lookup(DryRunFlagName); flag != nil && flag.Changed {
		values.DryRun = flag.Value.String() == toggleTrueCanonicalValue
	}
	if flagSet.Changed(PromptFlagName) {
		if promptEnabled, promptError := flagSet.GetBool(PromptFlagName); promptError == nil {
			values.AssumeYes = !promptEnabled
		}
	}
	return values
}
