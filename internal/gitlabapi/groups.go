package gitlabapi

import (
	"context"

	"github.com/xanzy/go-gitlab"

	"github.com/temirov/glmigrate/internal/platform"
)

const namespaceKindGroupConstant = "group"

// GetGroup implements platform.GroupReader.
func (client *Client) GetGroup(executionContext context.Context, groupID int) (platform.Group, error) {
	group, response, requestError := client.api.Groups.GetGroup(groupID, &gitlab.GetGroupOptions{}, gitlab.WithContext(executionContext))
	if requestError != nil {
		return platform.Group{}, classify(platform.OperationGetGroup, response, requestError)
	}
	return convertGroup(group), nil
}

// ListGroups implements platform.GroupReader.
func (client *Client) ListGroups(executionContext context.Context, search string) ([]platform.Group, error) {
	groups, response, requestError := collectPages(func(page int) ([]*gitlab.Group, *gitlab.Response, error) {
		return client.api.Groups.ListGroups(&gitlab.ListGroupsOptions{
			ListOptions: listOptions(page),
			Search:      gitlab.Ptr(search),
		}, gitlab.WithContext(executionContext))
	})
	if requestError != nil {
		return nil, classify(platform.OperationListGroups, response, requestError)
	}
	return convertGroups(groups), nil
}

// ListSubgroups implements platform.GroupReader.
func (client *Client) ListSubgroups(executionContext context.Context, groupID int) ([]platform.Group, error) {
	groups, response, requestError := collectPages(func(page int) ([]*gitlab.Group, *gitlab.Response, error) {
		return client.api.Groups.ListSubGroups(groupID, &gitlab.ListSubGroupsOptions{
			ListOptions: listOptions(page),
		}, gitlab.WithContext(executionContext))
	})
	if requestError != nil {
		return nil, classify(platform.OperationListSubgroups, response, requestError)
	}
	return convertGroups(groups), nil
}

// ListProjects implements platform.GroupReader. Only projects owned by the group are returned.
func (client *Client) ListProjects(executionContext context.Context, groupID int) ([]platform.Project, error) {
	projects, response, requestError := collectPages(func(page int) ([]*gitlab.Project, *gitlab.Response, error) {
		return client.api.Groups.ListGroupProjects(groupID, &gitlab.ListGroupProjectsOptions{
			ListOptions:      listOptions(page),
			IncludeSubGroups: gitlab.Ptr(false),
			WithShared:       gitlab.Ptr(false),
		}, gitlab.WithContext(executionContext))
	})
	if requestError != nil {
		return nil, classify(platform.OperationListProjects, response, requestError)
	}

	converted := make([]platform.Project, 0, len(projects))
	for _, project := range projects {
		converted = append(converted, convertProject(project))
	}
	return converted, nil
}

// FindProject implements platform.GroupReader by matching the exact path among the group's own projects.
func (client *Client) FindProject(executionContext context.Context, groupID int, projectPath string) (platform.Project, bool, error) {
	projects, response, requestError := collectPages(func(page int) ([]*gitlab.Project, *gitlab.Response, error) {
		return client.api.Groups.ListGroupProjects(groupID, &gitlab.ListGroupProjectsOptions{
			ListOptions:      listOptions(page),
			Search:           gitlab.Ptr(projectPath),
			IncludeSubGroups: gitlab.Ptr(false),
			WithShared:       gitlab.Ptr(false),
		}, gitlab.WithContext(executionContext))
	})
	if requestError != nil {
		return platform.Project{}, false, classify(platform.OperationFindProject, response, requestError)
	}
	for _, project := range projects {
		if project.Path == projectPath {
			return convertProject(project), true, nil
		}
	}
	return platform.Project{}, false, nil
}

func convertGroups(groups []*gitlab.Group) []platform.Group {
	converted := make([]platform.Group, 0, len(groups))
	for _, group := range groups {
		converted = append(converted, convertGroup(group))
	}
	return converted
}

func convertGroup(group *gitlab.Group) platform.Group {
	if group == nil {
		return platform.Group{}
	}
	return platform.Group{ID: group.ID, Name: group.Name, FullPath: group.FullPath, ParentID: group.ParentID}
}

func convertProject(project *gitlab.Project) platform.Project {
	if project == nil {
		return platform.Project{}
	}
	converted := platform.Project{
		ID:                project.ID,
		Name:              project.Name,
		Path:              project.Path,
		PathWithNamespace: project.PathWithNamespace,
		DefaultBranch:     project.DefaultBranch,
		Archived:          project.Archived,
		RepositoryURL:     project.HTTPURLToRepo,
		ImportStatus:      project.ImportStatus,
	}
	if project.Namespace != nil && project.Namespace.Kind == namespaceKindGroupConstant {
		converted.GroupID = project.Namespace.ID
	}
	return converted
}
