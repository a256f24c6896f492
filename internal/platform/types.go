package platform

import (
	"strings"
	"time"
)

const (
	// BranchMainConstant is the conventional default branch name.
	BranchMainConstant = "main"
	// BranchMasterConstant is the legacy default branch name.
	BranchMasterConstant = "master"

	importStatusNoneConstant     = "none"
	importStatusFinishedConstant = "finished"
)

// Group is a hierarchical container of projects and subgroups. Name is not unique; ID is.
type Group struct {
	ID       int
	Name     string
	FullPath string
	ParentID int
}

// Project is a single repository plus its metadata, owned by exactly one group.
type Project struct {
	ID                int
	Name              string
	Path              string
	PathWithNamespace string
	GroupID           int
	DefaultBranch     string
	Archived          bool
	RepositoryURL     string
	ImportStatus      string
}

// ImportFinished reports whether the project holds its complete repository. Projects
// that were never imported report an empty or "none" status.
func (project Project) ImportFinished() bool {
	switch strings.ToLower(strings.TrimSpace(project.ImportStatus)) {
	case "", importStatusNoneConstant, importStatusFinishedConstant:
		return true
	default:
		return false
	}
}

// DisplayName returns the most descriptive identifier available for logs and reports.
func (project Project) DisplayName() string {
	if len(strings.TrimSpace(project.PathWithNamespace)) > 0 {
		return project.PathWithNamespace
	}
	if len(strings.TrimSpace(project.Path)) > 0 {
		return project.Path
	}
	return project.Name
}

// Branch describes a repository branch. Commit is the head commit SHA when the platform reports it.
type Branch struct {
	Name      string
	Protected bool
	Default   bool
	Commit    string
}

// SameHead reports whether both branches point at the same commit. Branches with an
// unreported head are compared by name only.
func (branch Branch) SameHead(other Branch) bool {
	if len(branch.Commit) == 0 || len(other.Commit) == 0 {
		return true
	}
	return strings.EqualFold(branch.Commit, other.Commit)
}

// ReleaseLink is an asset link attached to a release. It is passed through untouched.
type ReleaseLink struct {
	Name     string
	URL      string
	LinkType string
}

// Release is a named release bound to a tag. Commit is the SHA the tag points at, when reported.
type Release struct {
	TagName     string
	Name        string
	Description string
	CreatedAt   time.Time
	ReleasedAt  time.Time
	Commit      string
	Links       []ReleaseLink
}

// Timestamp returns the instant used to order releases: creation time, or publish time when creation is unknown.
func (release Release) Timestamp() time.Time {
	if !release.CreatedAt.IsZero() {
		return release.CreatedAt
	}
	return release.ReleasedAt
}

// Variable is a CI/CD variable visible to a project.
type Variable struct {
	Key              string
	Value            string
	VariableType     string
	EnvironmentScope string
	Protected        bool
	Masked           bool
	Raw              bool
	Inherited        bool
}

// Pipeline is a single CI pipeline run.
type Pipeline struct {
	ID        int
	Ref       string
	Status    string
	CreatedAt time.Time
}

// ImportRequest describes a project archive to import into a destination group.
type ImportRequest struct {
	Archive []byte
	GroupID int
	Path    string
	Name    string
}
