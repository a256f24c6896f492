package migrate

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/glmigrate/internal/platform"
	"github.com/temirov/glmigrate/internal/platform/platformtest"
)

func TestSameInstanceNormalizesBaseURLs(testInstance *testing.T) {
	testCases := []struct {
		name           string
		originURL      string
		destinationURL string
		expected       bool
	}{
		{name: "identical", originURL: "https://gitlab.example.com", destinationURL: "https://gitlab.example.com", expected: true},
		{name: "trailing_slash_and_case", originURL: "https://GitLab.example.com/", destinationURL: "https://gitlab.example.com", expected: true},
		{name: "api_suffix", originURL: "https://gitlab.example.com/api/v4/", destinationURL: "https://gitlab.example.com", expected: true},
		{name: "different_hosts", originURL: "https://old.example.com", destinationURL: "https://new.example.com"},
		{name: "both_empty"},
	}

	for _, testCase := range testCases {
		testCase := testCase
		testInstance.Run(testCase.name, func(subTest *testing.T) {
			require.Equal(subTest, testCase.expected, sameInstance(testCase.originURL, testCase.destinationURL))
		})
	}
}

func TestSamePlatformComparesClientIdentity(testInstance *testing.T) {
	shared := platformtest.New()
	require.True(testInstance, samePlatform(shared, shared))
	require.False(testInstance, samePlatform(shared, platformtest.New()))
}

func TestDestinationClaimsKeepFirstProjectPerPath(testInstance *testing.T) {
	first := platform.Project{ID: 1, Path: "App", PathWithNamespace: "origin/a/App"}
	second := platform.Project{ID: 2, Path: "app", PathWithNamespace: "origin/b/app"}
	archived := platform.Project{ID: 3, Path: "tool", Archived: true}
	laterTool := platform.Project{ID: 4, Path: "tool"}

	claims := claimDestinationPaths([]platform.Project{archived, first, second, laterTool}, false)

	_, firstCollides := claims.conflictingOwner(first)
	require.False(testInstance, firstCollides)
	owner, secondCollides := claims.conflictingOwner(second)
	require.True(testInstance, secondCollides)
	require.Equal(testInstance, first.ID, owner.ID)
	_, toolCollides := claims.conflictingOwner(laterTool)
	require.False(testInstance, toolCollides)
}
