package transfer_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/temirov/glmigrate/internal/platform"
	"github.com/temirov/glmigrate/internal/platform/platformtest"
	"github.com/temirov/glmigrate/internal/transfer"
)

const (
	originProjectIDConstant      = 10
	destinationProjectIDConstant = 20
	originGroupIDConstant        = 1
	destinationGroupIDConstant   = 2
)

func seedPlatforms(testInstance *testing.T) (*platformtest.Platform, *platformtest.Platform) {
	testInstance.Helper()

	origin := platformtest.New()
	origin.AddGroup(platform.Group{ID: originGroupIDConstant, Name: "G", FullPath: "g"})
	origin.AddProject(platformtest.ProjectState{
		Project: platform.Project{ID: originProjectIDConstant, Name: "svc", Path: "svc", GroupID: originGroupIDConstant},
		Variables: []platform.Variable{
			{Key: "DEPLOY_TOKEN", Value: "secret", EnvironmentScope: "*", Masked: true},
			{Key: "REGION", Value: "eu", EnvironmentScope: "production"},
			{Key: "GROUP_WIDE", Value: "inherited", EnvironmentScope: "*", Inherited: true},
		},
		Tags: []string{"v1.0.0", "v1.1.0"},
		Releases: []platform.Release{
			{TagName: "v1.0.0", Name: "First", CreatedAt: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)},
			{
				TagName:   "v1.1.0",
				Name:      "Second",
				CreatedAt: time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC),
				Links:     []platform.ReleaseLink{{Name: "binary", URL: "https://example.com/bin", LinkType: "package"}},
			},
		},
	})

	destination := platformtest.New()
	destination.AddGroup(platform.Group{ID: destinationGroupIDConstant, Name: "D", FullPath: "d"})
	destination.AddProject(platformtest.ProjectState{
		Project: platform.Project{ID: destinationProjectIDConstant, Name: "svc", Path: "svc", GroupID: destinationGroupIDConstant},
		Tags:    []string{"v1.0.0", "v1.1.0"},
	})

	return origin, destination
}

func newService(testInstance *testing.T, origin *platformtest.Platform, destination *platformtest.Platform) *transfer.Service {
	testInstance.Helper()
	service, serviceError := transfer.NewService(transfer.Dependencies{
		Logger:      zap.NewNop(),
		Origin:      origin,
		Destination: destination,
	})
	require.NoError(testInstance, serviceError)
	return service
}

func TestNewServiceRequiresPlatforms(testInstance *testing.T) {
	testInstance.Parallel()

	_, originError := transfer.NewService(transfer.Dependencies{Destination: platformtest.New()})
	require.Error(testInstance, originError)

	_, destinationError := transfer.NewService(transfer.Dependencies{Origin: platformtest.New()})
	require.Error(testInstance, destinationError)
}

func TestTransferResourcesCopiesOwnedVariablesAndReleases(testInstance *testing.T) {
	testInstance.Parallel()

	origin, destination := seedPlatforms(testInstance)
	service := newService(testInstance, origin, destination)

	result, transferError := service.TransferResources(context.Background(), originProjectIDConstant, destinationProjectIDConstant)
	require.NoError(testInstance, transferError)
	require.Equal(testInstance, []string{"DEPLOY_TOKEN", "REGION"}, result.VariablesTransferred)
	require.Equal(testInstance, []string{"GROUP_WIDE"}, result.VariablesSkippedInherited)
	require.Equal(testInstance, []string{"v1.0.0", "v1.1.0"}, result.ReleasesCreated)
	require.Empty(testInstance, result.ReleasesSkipped)

	state, exists := destination.Project(destinationProjectIDConstant)
	require.True(testInstance, exists)
	require.Len(testInstance, state.Variables, 2)
	require.Equal(testInstance, "production", state.Variables[1].EnvironmentScope)
	require.True(testInstance, state.Variables[0].Masked)
	require.Len(testInstance, state.Releases, 2)
	require.Equal(testInstance, []platform.ReleaseLink{{Name: "binary", URL: "https://example.com/bin", LinkType: "package"}}, state.Releases[1].Links)

	require.Empty(testInstance, origin.MutatingCalls())
}

func TestTransferResourcesIsIdempotent(testInstance *testing.T) {
	testInstance.Parallel()

	origin, destination := seedPlatforms(testInstance)
	service := newService(testInstance, origin, destination)

	_, firstError := service.TransferResources(context.Background(), originProjectIDConstant, destinationProjectIDConstant)
	require.NoError(testInstance, firstError)

	secondResult, secondError := service.TransferResources(context.Background(), originProjectIDConstant, destinationProjectIDConstant)
	require.NoError(testInstance, secondError)
	require.Empty(testInstance, secondResult.ReleasesCreated)
	require.Equal(testInstance, []string{"v1.0.0", "v1.1.0"}, secondResult.ReleasesSkipped)

	state, _ := destination.Project(destinationProjectIDConstant)
	require.Len(testInstance, state.Variables, 2)
	require.Len(testInstance, state.Releases, 2)
	require.Len(testInstance, destination.CallsFor(platform.OperationCreateRelease), 2)
}

func TestTransferResourcesCollectsPartialFailures(testInstance *testing.T) {
	testInstance.Parallel()

	origin, destination := seedPlatforms(testInstance)
	destination.FailOn(platform.OperationSetCIVariable, destinationProjectIDConstant, "REGION", platform.TransportError{
		Operation:  platform.OperationSetCIVariable,
		StatusCode: 500,
		Cause:      platformtest.ErrInjected,
	})
	service := newService(testInstance, origin, destination)

	result, transferError := service.TransferResources(context.Background(), originProjectIDConstant, destinationProjectIDConstant)
	require.Error(testInstance, transferError)

	var typedError transfer.TransferError
	require.True(testInstance, errors.As(transferError, &typedError))
	require.Equal(testInstance, []string{"DEPLOY_TOKEN"}, typedError.Partial.VariablesTransferred)
	require.Equal(testInstance, []string{"v1.0.0", "v1.1.0"}, result.ReleasesCreated)
	require.ErrorIs(testInstance, transferError, platformtest.ErrInjected)
	require.False(testInstance, platform.IsFatal(transferError))
}

func TestTransferResourcesStopsOnAuthenticationFailure(testInstance *testing.T) {
	testInstance.Parallel()

	origin, destination := seedPlatforms(testInstance)
	destination.FailOn(platform.OperationSetCIVariable, 0, "", platform.AuthError{
		Operation: platform.OperationSetCIVariable,
		Cause:     platformtest.ErrInjected,
	})
	service := newService(testInstance, origin, destination)

	_, transferError := service.TransferResources(context.Background(), originProjectIDConstant, destinationProjectIDConstant)
	require.Error(testInstance, transferError)
	require.True(testInstance, platform.IsFatal(transferError))
	require.Len(testInstance, destination.CallsFor(platform.OperationSetCIVariable), 1)
	require.Empty(testInstance, destination.CallsFor(platform.OperationCreateRelease))
}

func TestTransferResourcesFailsWhenOriginUnreadable(testInstance *testing.T) {
	testInstance.Parallel()

	origin, destination := seedPlatforms(testInstance)
	origin.FailOn(platform.OperationGetReleases, 0, "", platform.TransportError{Operation: platform.OperationGetReleases, Cause: platformtest.ErrInjected})
	service := newService(testInstance, origin, destination)

	_, transferError := service.TransferResources(context.Background(), originProjectIDConstant, destinationProjectIDConstant)
	require.Error(testInstance, transferError)
	require.Empty(testInstance, destination.MutatingCalls())
}

func TestPlanResourcesPerformsNoWrites(testInstance *testing.T) {
	testInstance.Parallel()

	testCases := []struct {
		name                 string
		destinationProjectID *int
		expectedCreated      []string
	}{
		{
			name:            "destination_absent",
			expectedCreated: []string{"v1.0.0", "v1.1.0"},
		},
		{
			name:                 "destination_present",
			destinationProjectID: intPointer(destinationProjectIDConstant),
			expectedCreated:      []string{"v1.0.0", "v1.1.0"},
		},
	}

	for _, testCase := range testCases {
		testCase := testCase
		testInstance.Run(testCase.name, func(subTest *testing.T) {
			subTest.Parallel()

			origin, destination := seedPlatforms(subTest)
			service := newService(subTest, origin, destination)

			result, planError := service.PlanResources(context.Background(), originProjectIDConstant, testCase.destinationProjectID)
			require.NoError(subTest, planError)
			require.Equal(subTest, testCase.expectedCreated, result.ReleasesCreated)
			require.Equal(subTest, 2, result.VariablesTransferredCount())
			require.Equal(subTest, 1, result.VariablesSkippedCount())
			require.Empty(subTest, origin.MutatingCalls())
			require.Empty(subTest, destination.MutatingCalls())
		})
	}
}

func intPointer(value int) *int {
	return &value
}
