package utils_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/temirov/glmigrate/internal/utils"
)

const (
	testEnvironmentPrefixConstant              = "TESTGLMIGRATE"
	testLogLevelKeyConstant                    = "common.log_level"
	testProtectedBranchesKeyConstant           = "migration.protected_branches"
	testRequestTimeoutKeyConstant              = "client.request_timeout"
	testDefaultLogLevelConstant                = "info"
	testEmbeddedLogLevelConstant               = "debug"
	testFileLogLevelConstant                   = "warn"
	testEnvironmentLogLevelConstant            = "error"
	testConfigFileNameConstant                 = "config.yaml"
	testConfigurationNameConstant              = "config"
	testConfigurationTypeConstant              = "yaml"
	testLogLevelDocumentTemplate               = "common:\n  log_level: %s\n"
	testUserConfigurationDirectoryNameConstant = ".glmigrate"
	configurationLoaderSubtestTemplateConstant = "%d_%s"
)

type configurationFixture struct {
	Common    configurationCommonFixture    `mapstructure:"common"`
	Migration configurationMigrationFixture `mapstructure:"migration"`
	Client    configurationClientFixture    `mapstructure:"client"`
}

type configurationCommonFixture struct {
	LogLevel string `mapstructure:"log_level"`
}

type configurationMigrationFixture struct {
	ProtectedBranches []string `mapstructure:"protected_branches"`
}

type configurationClientFixture struct {
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

func defaultFixtureValues() map[string]any {
	return map[string]any{
		testLogLevelKeyConstant:          testDefaultLogLevelConstant,
		testProtectedBranchesKeyConstant: []string{},
		testRequestTimeoutKeyConstant:    "30s",
	}
}

func TestConfigurationLoaderLayersSources(testInstance *testing.T) {
	testCases := []struct {
		name                string
		embeddedLogLevel    string
		fileLogLevel        string
		environmentLogLevel string
		expectedLogLevel    string
	}{
		{name: "defaults_apply", expectedLogLevel: testDefaultLogLevelConstant},
		{name: "embedded_overrides_defaults", embeddedLogLevel: testEmbeddedLogLevelConstant, expectedLogLevel: testEmbeddedLogLevelConstant},
		{name: "file_overrides_embedded", embeddedLogLevel: testEmbeddedLogLevelConstant, fileLogLevel: testFileLogLevelConstant, expectedLogLevel: testFileLogLevelConstant},
		{name: "environment_overrides_file", embeddedLogLevel: testEmbeddedLogLevelConstant, fileLogLevel: testFileLogLevelConstant, environmentLogLevel: testEnvironmentLogLevelConstant, expectedLogLevel: testEnvironmentLogLevelConstant},
	}

	for testCaseIndex, testCase := range testCases {
		testCase := testCase
		testInstance.Run(fmt.Sprintf(configurationLoaderSubtestTemplateConstant, testCaseIndex, testCase.name), func(subTest *testing.T) {
			temporaryDirectory := subTest.TempDir()
			configurationFilePath := ""
			if len(testCase.fileLogLevel) > 0 {
				configurationFilePath = filepath.Join(temporaryDirectory, testConfigFileNameConstant)
				require.NoError(subTest, os.WriteFile(configurationFilePath, []byte(fmt.Sprintf(testLogLevelDocumentTemplate, testCase.fileLogLevel)), 0o600))
			}
			if len(testCase.environmentLogLevel) > 0 {
				subTest.Setenv(testEnvironmentPrefixConstant+"_COMMON_LOG_LEVEL", testCase.environmentLogLevel)
			}

			loader := utils.NewConfigurationLoader(testConfigurationNameConstant, testConfigurationTypeConstant, testEnvironmentPrefixConstant, []string{temporaryDirectory})
			if len(testCase.embeddedLogLevel) > 0 {
				loader.SetEmbeddedConfiguration([]byte(fmt.Sprintf(testLogLevelDocumentTemplate, testCase.embeddedLogLevel)), testConfigurationTypeConstant)
			}

			loaded := configurationFixture{}
			metadata, loadError := loader.LoadConfiguration(configurationFilePath, defaultFixtureValues(), &loaded)
			require.NoError(subTest, loadError)
			require.Equal(subTest, testCase.expectedLogLevel, loaded.Common.LogLevel)
			require.Equal(subTest, configurationFilePath, metadata.ConfigFileUsed)
		})
	}
}

func TestConfigurationLoaderDecodesStringValues(testInstance *testing.T) {
	testInstance.Setenv(testEnvironmentPrefixConstant+"_MIGRATION_PROTECTED_BRANCHES", "develop,release")
	testInstance.Setenv(testEnvironmentPrefixConstant+"_CLIENT_REQUEST_TIMEOUT", "2m")

	loader := utils.NewConfigurationLoader(testConfigurationNameConstant, testConfigurationTypeConstant, testEnvironmentPrefixConstant, []string{testInstance.TempDir()})
	loaded := configurationFixture{}
	_, loadError := loader.LoadConfiguration("", defaultFixtureValues(), &loaded)
	require.NoError(testInstance, loadError)

	require.Equal(testInstance, []string{"develop", "release"}, loaded.Migration.ProtectedBranches)
	require.Equal(testInstance, 2*time.Minute, loaded.Client.RequestTimeout)
}

func TestConfigurationLoaderRejectsBrokenFiles(testInstance *testing.T) {
	temporaryDirectory := testInstance.TempDir()
	loader := utils.NewConfigurationLoader(testConfigurationNameConstant, testConfigurationTypeConstant, testEnvironmentPrefixConstant, nil)

	_, missingError := loader.LoadConfiguration(filepath.Join(temporaryDirectory, "absent.yaml"), defaultFixtureValues(), &configurationFixture{})
	require.Error(testInstance, missingError)

	brokenPath := filepath.Join(temporaryDirectory, testConfigFileNameConstant)
	require.NoError(testInstance, os.WriteFile(brokenPath, []byte("client:\n  request_timeout: soon\n"), 0o600))
	_, decodeError := loader.LoadConfiguration(brokenPath, defaultFixtureValues(), &configurationFixture{})
	require.ErrorContains(testInstance, decodeError, "failed to parse configuration")
}

func TestConfigurationLoaderSearchesHomeDirectory(testInstance *testing.T) {
	homeDirectoryPath := testInstance.TempDir()
	testInstance.Setenv("HOME", homeDirectoryPath)

	userConfigurationDirectoryPath := filepath.Join(homeDirectoryPath, testUserConfigurationDirectoryNameConstant)
	require.NoError(testInstance, os.MkdirAll(userConfigurationDirectoryPath, 0o755))
	configurationFilePath := filepath.Join(userConfigurationDirectoryPath, testConfigFileNameConstant)
	require.NoError(testInstance, os.WriteFile(configurationFilePath, []byte(fmt.Sprintf(testLogLevelDocumentTemplate, testFileLogLevelConstant)), 0o600))

	loader := utils.NewConfigurationLoader(
		testConfigurationNameConstant,
		testConfigurationTypeConstant,
		testEnvironmentPrefixConstant,
		[]string{testInstance.TempDir(), "~/" + testUserConfigurationDirectoryNameConstant},
	)

	loaded := configurationFixture{}
	metadata, loadError := loader.LoadConfiguration("", defaultFixtureValues(), &loaded)
	require.NoError(testInstance, loadError)
	require.Equal(testInstance, testFileLogLevelConstant, loaded.Common.LogLevel)
	require.Equal(testInstance, configurationFilePath, metadata.ConfigFileUsed)
}
