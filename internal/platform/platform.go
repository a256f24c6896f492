package platform

import "context"

// GroupReader enumerates groups and the projects they own.
type GroupReader interface {
	GetGroup(executionContext context.Context, groupID int) (Group, error)
	ListGroups(executionContext context.Context, search string) ([]Group, error)
	ListSubgroups(executionContext context.Context, groupID int) ([]Group, error)
	ListProjects(executionContext context.Context, groupID int) ([]Project, error)
	FindProject(executionContext context.Context, groupID int, projectPath string) (Project, bool, error)
}

// BranchManager reads and deletes branches.
type BranchManager interface {
	GetBranches(executionContext context.Context, projectID int) ([]Branch, error)
	DeleteBranch(executionContext context.Context, projectID int, branchName string) error
}

// ReleaseReader reads releases.
type ReleaseReader interface {
	GetReleases(executionContext context.Context, projectID int) ([]Release, error)
}

// ReleaseManager reads, creates, and deletes releases and their tags.
type ReleaseManager interface {
	ReleaseReader
	CreateRelease(executionContext context.Context, projectID int, release Release) error
	DeleteRelease(executionContext context.Context, projectID int, tagName string) error
	DeleteTag(executionContext context.Context, projectID int, tagName string) error
}

// VariableReader reads CI/CD variables.
type VariableReader interface {
	GetCIVariables(executionContext context.Context, projectID int) ([]Variable, error)
}

// VariableManager reads and writes CI/CD variables. SetCIVariable overwrites an existing key.
type VariableManager interface {
	VariableReader
	SetCIVariable(executionContext context.Context, projectID int, variable Variable) error
}

// PipelineManager reads and deletes pipeline runs.
type PipelineManager interface {
	GetPipelines(executionContext context.Context, projectID int) ([]Pipeline, error)
	DeletePipeline(executionContext context.Context, projectID int, pipelineID int) error
}

// ProjectTransporter moves repository content between instances. A transfer is an
// export on the origin followed by an import on the destination.
type ProjectTransporter interface {
	ExportProject(executionContext context.Context, projectID int) ([]byte, error)
	ImportProject(executionContext context.Context, request ImportRequest) (Project, error)
}

// Platform is the full capability set of one hosting instance. Origin and
// destination are two values of this interface; decision logic never asks which one it holds.
type Platform interface {
	GroupReader
	BranchManager
	ReleaseManager
	VariableManager
	PipelineManager
	ProjectTransporter
}
