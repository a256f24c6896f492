// Package testsupport provides in-memory GitLab fixtures for migrate tests.
package testsupport

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/temirov/glmigrate/internal/gitlabapi"
	migrate "github.com/temirov/glmigrate/internal/migrate"
	"github.com/temirov/glmigrate/internal/platform"
	"github.com/temirov/glmigrate/internal/platform/platformtest"
	"github.com/temirov/glmigrate/internal/prompt"
)

const (
	// OriginURLConstant is the base URL routed to the origin fixture.
	OriginURLConstant = "https://origin.example.com"
	// DestinationURLConstant is the base URL routed to the destination fixture.
	DestinationURLConstant = "https://destination.example.com"
	// OriginGroupIDConstant identifies the origin root group.
	OriginGroupIDConstant = 1
	// OriginGroupPathConstant is the full path of the origin root group.
	OriginGroupPathConstant = "origin"
	// DestinationGroupIDConstant identifies the destination group.
	DestinationGroupIDConstant = 2
	// DestinationGroupPathConstant is the full path of the destination group.
	DestinationGroupPathConstant = "dest"

	releaseTagTemplate         = "v%d"
	commitTemplate             = "%s@%s"
	unknownEndpointTemplate    = "no fixture registered for %s"
	pipelineIDMultiplierFactor = 100
)

// BaseTime anchors every fixture timestamp.
var BaseTime = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// NewOriginPlatform returns a fake holding only the origin root group.
func NewOriginPlatform() *platformtest.Platform {
	fake := platformtest.New()
	fake.AddGroup(platform.Group{ID: OriginGroupIDConstant, Name: OriginGroupPathConstant, FullPath: OriginGroupPathConstant})
	return fake
}

// NewDestinationPlatform returns a fake holding only the empty destination group.
func NewDestinationPlatform() *platformtest.Platform {
	fake := platformtest.New()
	fake.AddGroup(platform.Group{ID: DestinationGroupIDConstant, Name: DestinationGroupPathConstant, FullPath: DestinationGroupPathConstant})
	return fake
}

// ProjectFixture describes an origin project with a numbered release and pipeline history.
type ProjectFixture struct {
	ID            int
	Path          string
	GroupID       int
	GroupPath     string
	ReleaseCount  int
	PipelineCount int
	ExtraBranches []string
	Variables     []platform.Variable
	Archived      bool
	CommitSeed    string
}

// State builds the fake project state. Release vN and pipeline N*100 are created N hours after
// BaseTime on "main", the default branch. Branch heads derive from CommitSeed, which defaults to the project's full path, so two fixtures sharing a seed
// describe the same repository.
func (fixture ProjectFixture) State() platformtest.ProjectState {
	groupID := fixture.GroupID
	groupPath := fixture.GroupPath
	if groupID == 0 {
		groupID = OriginGroupIDConstant
		groupPath = OriginGroupPathConstant
	}
	commitSeed := fixture.CommitSeed
	if len(commitSeed) == 0 {
		commitSeed = groupPath + "/" + fixture.Path
	}

	state := platformtest.ProjectState{
		Project: platform.Project{
			ID:                fixture.ID,
			Name:              fixture.Path,
			Path:              fixture.Path,
			PathWithNamespace: groupPath + "/" + fixture.Path,
			GroupID:           groupID,
			DefaultBranch:     platform.BranchMainConstant,
			Archived:          fixture.Archived,
		},
		Branches:  []platform.Branch{{Name: platform.BranchMainConstant, Default: true, Commit: fmt.Sprintf(commitTemplate, commitSeed, platform.BranchMainConstant)}},
		Variables: append([]platform.Variable(nil), fixture.Variables...),
	}
	for _, branchName := range fixture.ExtraBranches {
		state.Branches = append(state.Branches, platform.Branch{Name: branchName, Commit: fmt.Sprintf(commitTemplate, commitSeed, branchName)})
	}
	for index := 1; index <= fixture.ReleaseCount; index++ {
		tagName := fmt.Sprintf(releaseTagTemplate, index)
		state.Tags = append(state.Tags, tagName)
		state.Releases = append(state.Releases, platform.Release{
			TagName:   tagName,
			Name:      tagName,
			CreatedAt: BaseTime.Add(time.Duration(index) * time.Hour),
		})
	}
	for index := 1; index <= fixture.PipelineCount; index++ {
		state.Pipelines = append(state.Pipelines, platform.Pipeline{
			ID:        index * pipelineIDMultiplierFactor,
			Ref:       platform.BranchMainConstant,
			Status:    "success",
			CreatedAt: BaseTime.Add(time.Duration(index) * time.Hour),
		})
	}
	return state
}

// Project returns the platform project the fixture describes.
func (fixture ProjectFixture) Project() platform.Project {
	return fixture.State().Project
}

// PlatformFactory routes client configurations to fakes by base URL and records what it received.
type PlatformFactory struct {
	Platforms      map[string]platform.Platform
	Configurations []gitlabapi.ClientConfiguration
}

// NewPlatformFactory routes the origin and destination URLs to the provided fakes.
func NewPlatformFactory(origin platform.Platform, destination platform.Platform) *PlatformFactory {
	return &PlatformFactory{Platforms: map[string]platform.Platform{
		OriginURLConstant:      origin,
		DestinationURLConstant: destination,
	}}
}

// Factory adapts the router to migrate.PlatformFactory.
func (factory *PlatformFactory) Factory() migrate.PlatformFactory {
	return func(configuration gitlabapi.ClientConfiguration, _ *zap.Logger) (platform.Platform, error) {
		factory.Configurations = append(factory.Configurations, configuration)
		selected, exists := factory.Platforms[configuration.BaseURL]
		if !exists {
			return nil, fmt.Errorf(unknownEndpointTemplate, configuration.BaseURL)
		}
		return selected, nil
	}
}

// ScriptedPrompter answers confirmations from a fixed list and records the prompts it saw.
type ScriptedPrompter struct {
	Answers []bool
	Prompts []string
	Failure error
}

// Confirm implements prompt.Prompter. Missing answers decline.
func (prompter *ScriptedPrompter) Confirm(message string) (prompt.ConfirmationResult, error) {
	prompter.Prompts = append(prompter.Prompts, message)
	if prompter.Failure != nil {
		return prompt.ConfirmationResult{}, prompter.Failure
	}
	if len(prompter.Answers) == 0 {
		return prompt.ConfirmationResult{}, nil
	}
	answer := prompter.Answers[0]
	prompter.Answers = prompter.Answers[1:]
	return prompt.ConfirmationResult{Confirmed: answer}, nil
}
