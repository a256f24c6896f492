package migrate_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	migrate "github.com/temirov/glmigrate/internal/migrate"
	"github.com/temirov/glmigrate/internal/migrate/testsupport"
	"github.com/temirov/glmigrate/internal/platform"
	"github.com/temirov/glmigrate/internal/report"
)

const (
	teamAGroupIDConstant         = 3
	teamBGroupIDConstant         = 4
	teamAGroupPathConstant       = "origin/team-a"
	teamBGroupPathConstant       = "origin/team-b"
	teamAProjectIDConstant       = 20
	teamBProjectIDConstant       = 21
	sharedProjectPathConstant    = "app"
	developBranchConstant        = "develop"
	teamAProjectFullPathConstant = "origin/team-a/app"
)

func teamProjectFixture(projectID int, groupID int, groupPath string) testsupport.ProjectFixture {
	return testsupport.ProjectFixture{
		ID:            projectID,
		Path:          sharedProjectPathConstant,
		GroupID:       groupID,
		GroupPath:     groupPath,
		ReleaseCount:  3,
		PipelineCount: 3,
		ExtraBranches: []string{developBranchConstant},
	}
}

func TestOrchestratorFailsSecondProjectClaimingDestinationPath(testInstance *testing.T) {
	harness := newHarness()
	first := harness.addOriginProject(teamProjectFixture(teamAProjectIDConstant, teamAGroupIDConstant, teamAGroupPathConstant))
	second := harness.addOriginProject(teamProjectFixture(teamBProjectIDConstant, teamBGroupIDConstant, teamBGroupPathConstant))

	finalReport, runError := harness.run(testInstance, first, second)
	require.NoError(testInstance, runError)

	entries := finalReport.Entries()
	require.Len(testInstance, entries, 2)
	require.Equal(testInstance, report.OutcomeMigrated, entries[0].Outcome)
	require.Equal(testInstance, report.OriginPruned, entries[0].OriginImpact)

	require.Equal(testInstance, report.OutcomeFailed, entries[1].Outcome)
	require.Equal(testInstance, report.StateDiscovered, entries[1].State)
	require.Equal(testInstance, report.OriginUntouched, entries[1].OriginImpact)
	require.Contains(testInstance, entries[1].Error, "path is already claimed by "+teamAProjectFullPathConstant)

	require.Empty(testInstance, callTargets(harness.origin.MutatingCalls(), teamBProjectIDConstant))
	secondState, _ := harness.origin.Project(teamBProjectIDConstant)
	require.Len(testInstance, secondState.Branches, 2)
	require.Len(testInstance, secondState.Releases, 3)
	require.Len(testInstance, harness.destination.ProjectsInGroup(testsupport.DestinationGroupIDConstant), 1)
	require.Len(testInstance, harness.destination.CallsFor(platform.OperationImportProject), 1)
}

func TestOrchestratorRejectsExistingDestinationThatIsNotAMirror(testInstance *testing.T) {
	teamBCommitSeed := teamBGroupPathConstant + "/" + sharedProjectPathConstant
	testCases := []struct {
		name          string
		commitSeed    string
		importStatus  string
		dropBranches  bool
		expectedError string
	}{
		{
			name:          "copy_of_other_project",
			commitSeed:    teamAProjectFullPathConstant,
			expectedError: "default branch main head differs at destination",
		},
		{
			name:          "import_in_progress",
			commitSeed:    teamBCommitSeed,
			importStatus:  "started",
			expectedError: `destination import status is "started"`,
		},
		{
			name:          "default_branch_missing",
			commitSeed:    teamBCommitSeed,
			dropBranches:  true,
			expectedError: "default branch main is absent at destination",
		},
	}

	for _, testCase := range testCases {
		testCase := testCase
		testInstance.Run(testCase.name, func(subTest *testing.T) {
			harness := newHarness()
			existing := teamProjectFixture(existingDestinationIDConstant, testsupport.DestinationGroupIDConstant, testsupport.DestinationGroupPathConstant)
			existing.CommitSeed = testCase.commitSeed
			existingState := existing.State()
			existingState.Project.ImportStatus = testCase.importStatus
			if testCase.dropBranches {
				existingState.Branches = nil
			}
			harness.destination.AddProject(existingState)
			project := harness.addOriginProject(teamProjectFixture(teamBProjectIDConstant, teamBGroupIDConstant, teamBGroupPathConstant))

			finalReport, runError := harness.run(subTest, project)
			require.NoError(subTest, runError)

			entry := finalReport.Entries()[0]
			require.Equal(subTest, report.OutcomeFailed, entry.Outcome)
			require.Equal(subTest, report.StateDiscovered, entry.State)
			require.Equal(subTest, report.OriginUntouched, entry.OriginImpact)
			require.Equal(subTest, existingDestinationIDConstant, entry.DestinationProjectID)
			require.Contains(subTest, entry.Error, testCase.expectedError)
			require.Empty(subTest, harness.origin.MutatingCalls())
			require.Empty(subTest, harness.destination.MutatingCalls())
		})
	}
}

func TestOrchestratorRejectsSameGroupOnSharedInstance(testInstance *testing.T) {
	harness := newHarness()
	harness.options.OriginGroupID = testsupport.OriginGroupIDConstant
	harness.options.DestinationGroupID = testsupport.OriginGroupIDConstant

	orchestrator, constructionError := migrate.NewOrchestrator(migrate.Dependencies{
		Origin:      harness.origin,
		Destination: harness.origin,
	}, harness.options)
	require.Nil(testInstance, orchestrator)

	var inputError migrate.InvalidInputError
	require.ErrorAs(testInstance, constructionError, &inputError)
	require.Equal(testInstance, "destination_group", inputError.FieldName)
	require.Contains(testInstance, inputError.Message, "must differ from the origin group")
}

func TestOrchestratorNeverReconcilesProjectWithItself(testInstance *testing.T) {
	harness := newHarness()
	harness.options.OriginGroupID = testsupport.OriginGroupIDConstant
	harness.destination = harness.origin
	harness.origin.AddGroup(platform.Group{ID: testsupport.DestinationGroupIDConstant, Name: testsupport.DestinationGroupPathConstant, FullPath: testsupport.DestinationGroupPathConstant})
	project := harness.addOriginProject(alphaFixture())
	harness.origin.ShareProject(testsupport.DestinationGroupIDConstant, alphaProjectIDConstant)

	finalReport, runError := harness.run(testInstance, project)
	require.NoError(testInstance, runError)

	entry := finalReport.Entries()[0]
	require.Equal(testInstance, report.OutcomeFailed, entry.Outcome)
	require.Equal(testInstance, report.OriginUntouched, entry.OriginImpact)
	require.Contains(testInstance, entry.Error, "destination resolves to the origin project itself")
	require.Empty(testInstance, harness.origin.MutatingCalls())

	originState, _ := harness.origin.Project(alphaProjectIDConstant)
	require.Len(testInstance, originState.Branches, 2)
	require.Len(testInstance, originState.Releases, 3)
}

func TestOrchestratorWithholdsBranchesWithDifferentHeadAtDestination(testInstance *testing.T) {
	harness := newHarness()
	existingState := testsupport.ProjectFixture{
		ID:            existingDestinationIDConstant,
		Path:          alphaProjectPathConstant,
		GroupID:       testsupport.DestinationGroupIDConstant,
		GroupPath:     testsupport.DestinationGroupPathConstant,
		ExtraBranches: []string{featureBranchConstant},
		CommitSeed:    originAlphaCommitSeedConstant,
	}.State()
	existingState.Branches[1].Commit = "rewritten"
	harness.destination.AddProject(existingState)
	project := harness.addOriginProject(alphaFixture())

	finalReport, runError := harness.run(testInstance, project)
	require.NoError(testInstance, runError)

	entry := finalReport.Entries()[0]
	require.Equal(testInstance, report.OutcomeMigrated, entry.Outcome)
	require.Contains(testInstance, entry.Warnings, "branch feature kept: branch head differs at destination")
	require.Empty(testInstance, harness.origin.CallsFor(platform.OperationDeleteBranch))
}
