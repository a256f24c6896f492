package gitlabapi

import (
	"context"

	"github.com/xanzy/go-gitlab"

	"github.com/temirov/glmigrate/internal/platform"
)

// GetBranches implements platform.BranchManager.
func (client *Client) GetBranches(executionContext context.Context, projectID int) ([]platform.Branch, error) {
	branches, response, requestError := collectPages(func(page int) ([]*gitlab.Branch, *gitlab.Response, error) {
		return client.api.Branches.ListBranches(projectID, &gitlab.ListBranchesOptions{
			ListOptions: listOptions(page),
		}, gitlab.WithContext(executionContext))
	})
	if requestError != nil {
		return nil, classify(platform.OperationGetBranches, response, requestError)
	}

	converted := make([]platform.Branch, 0, len(branches))
	for _, branch := range branches {
		convertedBranch := platform.Branch{Name: branch.Name, Protected: branch.Protected, Default: branch.Default}
		if branch.Commit != nil {
			convertedBranch.Commit = branch.Commit.ID
		}
		converted = append(converted, convertedBranch)
	}
	return converted, nil
}

// DeleteBranch implements platform.BranchManager.
func (client *Client) DeleteBranch(executionContext context.Context, projectID int, branchName string) error {
	response, requestError := client.api.Branches.DeleteBranch(projectID, branchName, gitlab.WithContext(executionContext))
	return classify(platform.OperationDeleteBranch, response, requestError)
}

// GetReleases implements platform.ReleaseReader.
func (client *Client) GetReleases(executionContext context.Context, projectID int) ([]platform.Release, error) {
	releases, response, requestError := collectPages(func(page int) ([]*gitlab.Release, *gitlab.Response, error) {
		return client.api.Releases.ListReleases(projectID, &gitlab.ListReleasesOptions{
			ListOptions: listOptions(page),
		}, gitlab.WithContext(executionContext))
	})
	if requestError != nil {
		return nil, classify(platform.OperationGetReleases, response, requestError)
	}

	converted := make([]platform.Release, 0, len(releases))
	for _, release := range releases {
		converted = append(converted, convertRelease(release))
	}
	return converted, nil
}

// CreateRelease implements platform.ReleaseManager. A tag missing at the destination is created
// at the release commit; without a known commit GitLab requires the tag to exist already.
func (client *Client) CreateRelease(executionContext context.Context, projectID int, release platform.Release) error {
	options := &gitlab.CreateReleaseOptions{
		TagName:     gitlab.Ptr(release.TagName),
		Name:        gitlab.Ptr(release.Name),
		Description: gitlab.Ptr(release.Description),
	}
	if len(release.Commit) > 0 {
		options.Ref = gitlab.Ptr(release.Commit)
	}
	if !release.ReleasedAt.IsZero() {
		options.ReleasedAt = gitlab.Ptr(release.ReleasedAt)
	}
	if len(release.Links) > 0 {
		links := make([]*gitlab.ReleaseAssetLinkOptions, 0, len(release.Links))
		for _, link := range release.Links {
			linkOptions := &gitlab.ReleaseAssetLinkOptions{
				Name: gitlab.Ptr(link.Name),
				URL:  gitlab.Ptr(link.URL),
			}
			if len(link.LinkType) > 0 {
				linkOptions.LinkType = gitlab.Ptr(gitlab.LinkTypeValue(link.LinkType))
			}
			links = append(links, linkOptions)
		}
		options.Assets = &gitlab.ReleaseAssetsOptions{Links: links}
	}

	_, response, requestError := client.api.Releases.CreateRelease(projectID, options, gitlab.WithContext(executionContext))
	return classify(platform.OperationCreateRelease, response, requestError)
}

// DeleteRelease implements platform.ReleaseManager. The tag survives and is deleted separately.
func (client *Client) DeleteRelease(executionContext context.Context, projectID int, tagName string) error {
	_, response, requestError := client.api.Releases.DeleteRelease(projectID, tagName, gitlab.WithContext(executionContext))
	return classify(platform.OperationDeleteRelease, response, requestError)
}

// DeleteTag implements platform.ReleaseManager.
func (client *Client) DeleteTag(executionContext context.Context, projectID int, tagName string) error {
	response, requestError := client.api.Tags.DeleteTag(projectID, tagName, gitlab.WithContext(executionContext))
	return classify(platform.OperationDeleteTag, response, requestError)
}

// GetCIVariables implements platform.VariableReader. The project endpoint lists only
// project-owned variables, so none are reported as inherited.
func (client *Client) GetCIVariables(executionContext context.Context, projectID int) ([]platform.Variable, error) {
	variables, response, requestError := collectPages(func(page int) ([]*gitlab.ProjectVariable, *gitlab.Response, error) {
		options := gitlab.ListProjectVariablesOptions(listOptions(page))
		return client.api.ProjectVariables.ListVariables(projectID, &options, gitlab.WithContext(executionContext))
	})
	if requestError != nil {
		return nil, classify(platform.OperationGetCIVariables, response, requestError)
	}

	converted := make([]platform.Variable, 0, len(variables))
	for _, variable := range variables {
		converted = append(converted, platform.Variable{
			Key:              variable.Key,
			Value:            variable.Value,
			VariableType:     string(variable.VariableType),
			EnvironmentScope: variable.EnvironmentScope,
			Protected:        variable.Protected,
			Masked:           variable.Masked,
			Raw:              variable.Raw,
		})
	}
	return converted, nil
}

// SetCIVariable implements platform.VariableManager: update in place, create when absent.
func (client *Client) SetCIVariable(executionContext context.Context, projectID int, variable platform.Variable) error {
	environmentScope := variable.EnvironmentScope
	if len(environmentScope) == 0 {
		environmentScope = "*"
	}

	updateOptions := &gitlab.UpdateProjectVariableOptions{
		Value:            gitlab.Ptr(variable.Value),
		EnvironmentScope: gitlab.Ptr(environmentScope),
		Filter:           &gitlab.VariableFilter{EnvironmentScope: environmentScope},
		Protected:        gitlab.Ptr(variable.Protected),
		Masked:           gitlab.Ptr(variable.Masked),
		Raw:              gitlab.Ptr(variable.Raw),
	}
	if len(variable.VariableType) > 0 {
		updateOptions.VariableType = gitlab.Ptr(gitlab.VariableTypeValue(variable.VariableType))
	}

	_, updateResponse, updateError := client.api.ProjectVariables.UpdateVariable(projectID, variable.Key, updateOptions, gitlab.WithContext(executionContext))
	classifiedUpdateError := classify(platform.OperationSetCIVariable, updateResponse, updateError)
	if classifiedUpdateError == nil || !platform.IsNotFound(classifiedUpdateError) {
		return classifiedUpdateError
	}

	createOptions := &gitlab.CreateProjectVariableOptions{
		Key:              gitlab.Ptr(variable.Key),
		Value:            gitlab.Ptr(variable.Value),
		EnvironmentScope: gitlab.Ptr(environmentScope),
		Protected:        gitlab.Ptr(variable.Protected),
		Masked:           gitlab.Ptr(variable.Masked),
		Raw:              gitlab.Ptr(variable.Raw),
	}
	if len(variable.VariableType) > 0 {
		createOptions.VariableType = gitlab.Ptr(gitlab.VariableTypeValue(variable.VariableType))
	}

	_, createResponse, createError := client.api.ProjectVariables.CreateVariable(projectID, createOptions, gitlab.WithContext(executionContext))
	return classify(platform.OperationSetCIVariable, createResponse, createError)
}

// GetPipelines implements platform.PipelineManager.
func (client *Client) GetPipelines(executionContext context.Context, projectID int) ([]platform.Pipeline, error) {
	pipelines, response, requestError := collectPages(func(page int) ([]*gitlab.PipelineInfo, *gitlab.Response, error) {
		return client.api.Pipelines.ListProjectPipelines(projectID, &gitlab.ListProjectPipelinesOptions{
			ListOptions: listOptions(page),
		}, gitlab.WithContext(executionContext))
	})
	if requestError != nil {
		return nil, classify(platform.OperationGetPipelines, response, requestError)
	}

	converted := make([]platform.Pipeline, 0, len(pipelines))
	for _, pipeline := range pipelines {
		converted = append(converted, platform.Pipeline{
			ID:        pipeline.ID,
			Ref:       pipeline.Ref,
			Status:    pipeline.Status,
			CreatedAt: timeValue(pipeline.CreatedAt),
		})
	}
	return converted, nil
}

// DeletePipeline implements platform.PipelineManager.
func (client *Client) DeletePipeline(executionContext context.Context, projectID int, pipelineID int) error {
	response, requestError := client.api.Pipelines.DeletePipeline(projectID, pipelineID, gitlab.WithContext(executionContext))
	return classify(platform.OperationDeletePipeline, response, requestError)
}

func convertRelease(release *gitlab.Release) platform.Release {
	converted := platform.Release{
		TagName:     release.TagName,
		Name:        release.Name,
		Description: release.Description,
		CreatedAt:   timeValue(release.CreatedAt),
		ReleasedAt:  timeValue(release.ReleasedAt),
		Commit:      release.Commit.ID,
	}
	for _, link := range release.Assets.Links {
		if link == nil {
			continue
		}
		converted.Links = append(converted.Links, platform.ReleaseLink{
			Name:     link.Name,
			URL:      link.URL,
			LinkType: string(link.LinkType),
		})
	}
	return converted
}
