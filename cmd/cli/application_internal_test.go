package cli

import (
	"context"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	testConfigurationFileNameConstant = "config.yaml"
	testConfigurationContentConstant  = `common:
  log_level: error
origin:
  url: https://gitlab.origin.example.com
  group: platform/legacy
destination:
  url: https://gitlab.destination.example.com
  group: archive
migration:
  keep_latest_items: 4
  protected_branches:
    - develop
  existing_destination: skip
client:
  export_timeout: 45m
`
)

func prepareMigrateCommand(testInstance *testing.T, application *Application, arguments ...string) *cobra.Command {
	testInstance.Helper()
	migrateCommand, _, findError := application.rootCommand.Find([]string{"migrate"})
	require.NoError(testInstance, findError)
	require.NoError(testInstance, application.rootCommand.ParseFlags(arguments))
	migrateCommand.SetContext(context.Background())
	return migrateCommand
}

func TestInitializeConfigurationLayersFileAndEnvironment(testInstance *testing.T) {
	testInstance.Setenv("HOME", testInstance.TempDir())
	testInstance.Setenv("GLMIGRATE_DESTINATION_TOKEN", "destination-secret")

	configurationPath := filepath.Join(testInstance.TempDir(), testConfigurationFileNameConstant)
	require.NoError(testInstance, os.WriteFile(configurationPath, []byte(testConfigurationContentConstant), 0o600))

	application := NewApplication()
	migrateCommand := prepareMigrateCommand(testInstance, application, "--config", configurationPath, "--log-format", "console")

	require.NoError(testInstance, application.initializeConfiguration(migrateCommand))

	configuration := application.configuration
	require.Equal(testInstance, "error", configuration.Common.LogLevel)
	require.Equal(testInstance, "console", configuration.Common.LogFormat)
	require.Equal(testInstance, "https://gitlab.origin.example.com", configuration.Migrate.Origin.URL)
	require.Equal(testInstance, "platform/legacy", configuration.Migrate.Origin.Group)
	require.Equal(testInstance, "destination-secret", configuration.Migrate.Destination.Token)
	require.Equal(testInstance, 4, configuration.Migrate.Migration.KeepLatestItems)
	require.Equal(testInstance, []string{"develop"}, configuration.Migrate.Migration.ProtectedBranches)
	require.Equal(testInstance, "skip", configuration.Migrate.Migration.ExistingDestination)
	require.True(testInstance, configuration.Migrate.Migration.DryRun)
	require.Equal(testInstance, 45*time.Minute, configuration.Migrate.Client.ExportTimeout)
	require.Equal(testInstance, 5*time.Second, configuration.Migrate.Client.ExportPollInterval)

	recordedPath, available := application.commandContextAccessor.ConfigurationFilePath(migrateCommand.Context())
	require.True(testInstance, available)
	require.Equal(testInstance, configurationPath, recordedPath)
}

func TestInitializeConfigurationRejectsMissingExplicitFile(testInstance *testing.T) {
	testInstance.Setenv("HOME", testInstance.TempDir())
	application := NewApplication()
	migrateCommand := prepareMigrateCommand(testInstance, application, "--config", filepath.Join(testInstance.TempDir(), "absent.yaml"))

	initializationError := application.initializeConfiguration(migrateCommand)
	require.Error(testInstance, initializationError)
	require.Contains(testInstance, initializationError.Error(), "unable to load configuration")
}

type failingSyncer struct {
	failure error
}

func (syncer failingSyncer) Write(payload []byte) (int, error) {
	return len(payload), nil
}

func (syncer failingSyncer) Sync() error {
	return syncer.failure
}

func TestSyncLoggerInstanceIgnoresTerminalErrors(testInstance *testing.T) {
	testCases := []struct {
		name        string
		failure     error
		expectError bool
	}{
		{name: "no_error"},
		{name: "not_supported", failure: syscall.ENOTSUP},
		{name: "invalid_argument", failure: &os.PathError{Op: "sync", Path: "/dev/stderr", Err: syscall.EINVAL}},
		{name: "inappropriate_ioctl", failure: syscall.ENOTTY},
		{name: "disk_failure", failure: syscall.EIO, expectError: true},
	}

	for _, testCase := range testCases {
		testCase := testCase
		testInstance.Run(testCase.name, func(subTest *testing.T) {
			core := zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), failingSyncer{failure: testCase.failure}, zapcore.InfoLevel)
			application := &Application{logger: zap.New(core)}

			syncError := application.flushLogger()
			if testCase.expectError {
				require.ErrorIs(subTest, syncError, syscall.EIO)
				return
			}
			require.NoError(subTest, syncError)
		})
	}
}
