package migrate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/temirov/glmigrate/internal/prompt"
	"github.com/temirov/glmigrate/internal/pruning"
)

func TestParseRetentionCutoff(testInstance *testing.T) {
	now := time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)
	testCases := []struct {
		name          string
		value         string
		expected      time.Time
		expectedError bool
	}{
		{name: "empty_disables", value: "  ", expected: time.Time{}},
		{name: "timestamp", value: "2024-05-01T00:00:00Z", expected: time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC)},
		{name: "duration", value: "72h", expected: now.Add(-72 * time.Hour)},
		{name: "negative_duration", value: "-1h", expectedError: true},
		{name: "garbage", value: "last week", expectedError: true},
	}

	for _, testCase := range testCases {
		testCase := testCase
		testInstance.Run(testCase.name, func(subTest *testing.T) {
			cutoff, parseError := ParseRetentionCutoff(testCase.value, now)
			if testCase.expectedError {
				require.Error(subTest, parseError)
				var inputError InvalidInputError
				require.ErrorAs(subTest, parseError, &inputError)
				require.Equal(subTest, retainNewerThanFieldNameConstant, inputError.FieldName)
				return
			}
			require.NoError(subTest, parseError)
			require.True(subTest, testCase.expected.Equal(cutoff), "expected %s, got %s", testCase.expected, cutoff)
		})
	}
}

func TestParseExistingDestinationPolicy(testInstance *testing.T) {
	testCases := []struct {
		value         string
		expected      ExistingDestinationPolicy
		expectedError bool
	}{
		{value: "", expected: ExistingDestinationReconcile},
		{value: " Reconcile ", expected: ExistingDestinationReconcile},
		{value: "skip", expected: ExistingDestinationSkip},
		{value: "overwrite", expectedError: true},
	}

	for _, testCase := range testCases {
		testCase := testCase
		testInstance.Run(testCase.value, func(subTest *testing.T) {
			policy, parseError := ParseExistingDestinationPolicy(testCase.value)
			if testCase.expectedError {
				require.Error(subTest, parseError)
				return
			}
			require.NoError(subTest, parseError)
			require.Equal(subTest, testCase.expected, policy)
		})
	}
}

func TestOptionsValidate(testInstance *testing.T) {
	valid := Options{
		DestinationGroupID:  2,
		Preservation:        pruning.Parameters{KeepLatestItems: 5},
		Concurrency:         1,
		ExistingDestination: ExistingDestinationReconcile,
		Confirmation:        prompt.ConfirmationAssumeYes,
	}
	require.NoError(testInstance, valid.Validate())

	testCases := []struct {
		name          string
		mutate        func(options *Options)
		expectedField string
	}{
		{name: "destination_group", mutate: func(options *Options) { options.DestinationGroupID = 0 }, expectedField: destinationGroupFieldNameConstant},
		{name: "concurrency", mutate: func(options *Options) { options.Concurrency = 0 }, expectedField: concurrencyFieldNameConstant},
		{name: "existing_destination", mutate: func(options *Options) { options.ExistingDestination = "merge" }, expectedField: existingDestinationFieldNameConstant},
	}

	for _, testCase := range testCases {
		testCase := testCase
		testInstance.Run(testCase.name, func(subTest *testing.T) {
			options := valid
			testCase.mutate(&options)
			validationError := options.Validate()
			var inputError InvalidInputError
			require.ErrorAs(subTest, validationError, &inputError)
			require.Equal(subTest, testCase.expectedField, inputError.FieldName)
		})
	}

	invalidKeep := valid
	invalidKeep.Preservation.KeepLatestItems = 0
	var parameterError pruning.InvalidParameterError
	require.ErrorAs(testInstance, invalidKeep.Validate(), &parameterError)
}

func TestCommandConfigurationSanitize(testInstance *testing.T) {
	configuration := DefaultCommandConfiguration()
	configuration.Origin = EndpointConfiguration{URL: " https://old.example.com ", Token: " token ", Group: " platform "}
	configuration.Migration.ProtectedBranches = []string{" develop ", "", "develop", "release"}
	configuration.Migration.ExistingDestination = " SKIP "

	sanitized := configuration.Sanitize()
	require.Equal(testInstance, EndpointConfiguration{URL: "https://old.example.com", Token: "token", Group: "platform"}, sanitized.Origin)
	require.Equal(testInstance, []string{"develop", "release"}, sanitized.Migration.ProtectedBranches)
	require.Equal(testInstance, "skip", sanitized.Migration.ExistingDestination)
}

func TestDefaultConfigurationValuesUseRootKey(testInstance *testing.T) {
	values := DefaultConfigurationValues("")
	require.Equal(testInstance, true, values["migration.dry_run"])
	require.Equal(testInstance, defaultKeepLatestItemsConstant, values["migration.keep_latest_items"])
	require.Equal(testInstance, "reconcile", values["migration.existing_destination"])
	require.Equal(testInstance, "", values["origin.url"])
	require.Contains(testInstance, values, "client.export_timeout")

	prefixed := DefaultConfigurationValues("tool")
	require.Contains(testInstance, prefixed, "tool.destination.group")
}
