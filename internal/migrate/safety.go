package migrate

const (
	safetyReasonDestinationUnverified      = "destination branches could not be verified"
	safetyReasonBranchMissingAtDestination = "branch is absent at destination"
	safetyReasonBranchHeadDiffers          = "branch head differs at destination"
	safetyBlockingReasonsCapacityConstant  = 2
)

// SafetyInputs captures conditions that influence origin branch deletion safety.
type SafetyInputs struct {
	DestinationVerified        bool
	BranchPresentAtDestination bool
	BranchHeadMatches          bool
}

// SafetyStatus conveys whether it is safe to delete the origin branch.
type SafetyStatus struct {
	SafeToDelete    bool
	BlockingReasons []string
}

// SafetyEvaluator evaluates safety inputs to produce a status.
type SafetyEvaluator struct{}

// Evaluate determines whether it is safe to delete the origin branch. A branch is
// safe only when the destination listing shows it with the same head commit.
func (SafetyEvaluator) Evaluate(inputs SafetyInputs) SafetyStatus {
	blockingReasons := make([]string, 0, safetyBlockingReasonsCapacityConstant)
	switch {
	case !inputs.DestinationVerified:
		blockingReasons = append(blockingReasons, safetyReasonDestinationUnverified)
	case !inputs.BranchPresentAtDestination:
		blockingReasons = append(blockingReasons, safetyReasonBranchMissingAtDestination)
	case !inputs.BranchHeadMatches:
		blockingReasons = append(blockingReasons, safetyReasonBranchHeadDiffers)
	}

	return SafetyStatus{SafeToDelete: len(blockingReasons) == 0, BlockingReasons: blockingReasons}
}
