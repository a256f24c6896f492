package flags

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

const (
	endpointURLSuffixConstant         = "url"
	endpointTokenSuffixConstant       = "token"
	endpointCertificateSuffixConstant = "certificate"
	endpointKeySuffixConstant         = "key"
	endpointGroupSuffixConstant       = "group"
	endpointFlagNameTemplate          = "%s-%s"
	endpointURLUsageTemplate          = "Base URL of the %s GitLab instance"
	endpointTokenUsageTemplate        = "Access token for the %s GitLab instance"
	endpointCertificateUsageTemplate  = "Client certificate (PEM) for the %s GitLab instance"
	endpointKeyUsageTemplate          = "Client certificate key (PEM) for the %s GitLab instance"
	endpointGroupUsageTemplate        = "%s group id, name, or full path"
)

// EndpointFlagValues stores the connection settings of one GitLab instance.
type EndpointFlagValues struct {
	URL         string
	Token       string
	Certificate string
	Key         string
	Group       string
}

// BindEndpointFlags attaches --<prefix>-url, -token, -certificate, -key, and -group to the command.
func BindEndpointFlags(command *cobra.Command, prefix string) {
	if command == nil || len(strings.TrimSpace(prefix)) == 0 {
		return
	}
	flagSet := command.Flags()
	flagSet.String(endpointFlagName(prefix, endpointURLSuffixConstant), "", fmt.Sprintf(endpointURLUsageTemplate, prefix))
	flagSet.String(endpointFlagName(prefix, endpointTokenSuffixConstant), "", fmt.Sprintf(endpointTokenUsageTemplate, prefix))
	flagSet.String(endpointFlagName(prefix, endpointCertificateSuffixConstant), "", fmt.Sprintf(endpointCertificateUsageTemplate, prefix))
	flagSet.String(endpointFlagName(prefix, endpointKeySuffixConstant), "", fmt.Sprintf(endpointKeyUsageTemplate, prefix))
	flagSet.String(endpointFlagName(prefix, endpointGroupSuffixConstant), "", fmt.Sprintf(endpointGroupUsageTemplate, strings.ToUpper(prefix[:1])+prefix[1:]))
}

// ResolveEndpointFlags overlays explicitly provided endpoint flags on the configured values.
func ResolveEndpointFlags(command *cobra.Command, prefix string, configured EndpointFlagValues) EndpointFlagValues {
	resolved := configured
	if command == nil {
		return resolved
	}
	overrides := []struct {
		suffix string
		target *string
	}{
		{suffix: endpointURLSuffixConstant, target: &resolved.URL},
		{suffix: endpointTokenSuffixConstant, target: &resolved.Token},
		{suffix: endpointCertificateSuffixConstant, target: &resolved.Certificate},
		{suffix: endpointKeySuffixConstant, target: &resolved.Key},
		{suffix: endpointGroupSuffixConstant, target: &resolved.Group},
	}
	for _, override := range overrides {
		flagName := endpointFlagName(prefix, override.suffix)
		if !command.Flags().Changed(flagName) {
			continue
		}
		if value, valueError := command.Flags().GetString(flagName); valueError == nil {
			*override.target = strings.TrimSpace(value)
		}
	}
	return resolved
}

func endpointFlagName(prefix string, suffix string) string {
	return fmt.Sprintf(endpointFlagNameTemplate, prefix, suffix)
}
