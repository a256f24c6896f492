package utils

import (
	"context"
	"strings"
)

type commandContextKey string

const configurationFilePathContextKey = commandContextKey("configurationFilePath")

// CommandContextAccessor stores and retrieves invocation values carried by command contexts.
type CommandContextAccessor struct{}

// NewCommandContextAccessor constructs a CommandContextAccessor instance.
func NewCommandContextAccessor() CommandContextAccessor {
	return CommandContextAccessor{}
}

// WithConfigurationFilePath records the configuration file that produced the active settings.
// An empty path means only embedded defaults and environment variables were applied.
func (accessor CommandContextAccessor) WithConfigurationFilePath(parentContext context.Context, configurationFilePath string) context.Context {
	if parentContext == nil {
		parentContext = context.Background()
	}
	return context.WithValue(parentContext, configurationFilePathContextKey, strings.TrimSpace(configurationFilePath))
}

// ConfigurationFilePath reports the recorded configuration file path.
func (accessor CommandContextAccessor) ConfigurationFilePath(executionContext context.Context) (string, bool) {
	if executionContext == nil {
		return "", false
	}
	configurationFilePath, available := executionContext.Value(configurationFilePathContextKey).(string)
	return configurationFilePath, available
}
