package flags

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

const toggleTestFlagNameConstant = "dry-run"

func TestAddToggleFlagParsesValues(testInstance *testing.T) {
	testCases := []struct {
		name            string
		arguments       []string
		defaultValue    bool
		expectedValue   bool
		expectedChanged bool
	}{
		{name: "default_true", arguments: []string{}, defaultValue: true, expectedValue: true},
		{name: "implicit_true", arguments: []string{"--dry-run"}, expectedValue: true, expectedChanged: true},
		{name: "explicit_yes", arguments: []string{"--dry-run", "yes"}, expectedValue: true, expectedChanged: true},
		{name: "explicit_uppercase_no", arguments: []string{"--dry-run", "NO"}, defaultValue: true, expectedValue: false, expectedChanged: true},
		{name: "assignment_form", arguments: []string{"--dry-run=off"}, defaultValue: true, expectedValue: false, expectedChanged: true},
		{name: "negated_form", arguments: []string{"--no-dry-run"}, defaultValue: true, expectedValue: false, expectedChanged: true},
	}

	for _, testCase := range testCases {
		testCase := testCase
		testInstance.Run(testCase.name, func(subTest *testing.T) {
			command := &cobra.Command{}

			var toggleValue bool
			AddToggleFlag(command.Flags(), &toggleValue, toggleTestFlagNameConstant, testCase.defaultValue, "Preview operations")

			parseError := command.ParseFlags(NormalizeToggleArguments(testCase.arguments))
			require.NoError(subTest, parseError)
			require.Equal(subTest, testCase.expectedValue, toggleValue)

			flag := command.Flags().Lookup(toggleTestFlagNameConstant)
			require.NotNil(subTest, flag)
			require.Equal(subTest, testCase.expectedChanged, flag.Changed)
		})
	}
}

func TestAddToggleFlagRejectsInvalidValues(testInstance *testing.T) {
	command := &cobra.Command{}

	var toggleValue bool
	AddToggleFlag(command.Flags(), &toggleValue, toggleTestFlagNameConstant, true, "Preview operations")

	parseError := command.ParseFlags(NormalizeToggleArguments([]string{"--dry-run=maybe"}))
	require.Error(testInstance, parseError)
	require.True(testInstance, toggleValue)
	require.False(testInstance, command.Flags().Lookup(toggleTestFlagNameConstant).Changed)
}

func TestNormalizeToggleArgumentsLeavesOtherArgumentsAlone(testInstance *testing.T) {
	command := &cobra.Command{}
	var toggleValue bool
	AddToggleFlag(command.Flags(), &toggleValue, toggleTestFlagNameConstant, true, "Preview operations")

	normalized := NormalizeToggleArguments([]string{"--dry-run", "--origin-group", "no", "--no-cache", "--", "--no-dry-run"})
	require.Equal(testInstance, []string{"--dry-run", "--origin-group", "no", "--no-cache", "--", "--no-dry-run"}, normalized)
}

func TestToggleUsageHighlightsDefault(testInstance *testing.T) {
	command := &cobra.Command{}
	var toggleValue bool
	AddToggleFlag(command.Flags(), &toggleValue, toggleTestFlagNameConstant, true, "Preview operations")

	require.Equal(testInstance, "`<YES|no>` Preview operations", command.Flags().Lookup(toggleTestFlagNameConstant).Usage)
}
