package migrate

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSafetyEvaluatorEvaluate(testInstance *testing.T) {
	testCases := []struct {
		name            string
		inputs          SafetyInputs
		expectedSafe    bool
		expectedReasons []string
	}{
		{
			name:            "confirmed_at_destination",
			inputs:          SafetyInputs{DestinationVerified: true, BranchPresentAtDestination: true, BranchHeadMatches: true},
			expectedSafe:    true,
			expectedReasons: []string{},
		},
		{
			name:            "branch_absent",
			inputs:          SafetyInputs{DestinationVerified: true},
			expectedReasons: []string{safetyReasonBranchMissingAtDestination},
		},
		{
			name:            "head_differs",
			inputs:          SafetyInputs{DestinationVerified: true, BranchPresentAtDestination: true},
			expectedReasons: []string{safetyReasonBranchHeadDiffers},
		},
		{
			name:            "listing_failed",
			inputs:          SafetyInputs{BranchPresentAtDestination: true, BranchHeadMatches: true},
			expectedReasons: []string{safetyReasonDestinationUnverified},
		},
		{
			name:            "nothing_confirmed",
			inputs:          SafetyInputs{},
			expectedReasons: []string{safetyReasonDestinationUnverified},
		},
	}

	evaluator := SafetyEvaluator{}
	for _, testCase := range testCases {
		testCase := testCase
		testInstance.Run(testCase.name, func(subTest *testing.T) {
			status := evaluator.Evaluate(testCase.inputs)
			require.Equal(subTest, testCase.expectedSafe, status.SafeToDelete)
			require.Equal(subTest, testCase.expectedReasons, status.BlockingReasons)
		})
	}
}
