// Package platformtest provides an in-memory platform.Platform that records
// every call and supports injected failures.
package platformtest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/temirov/glmigrate/internal/platform"
)

const (
	firstImportedProjectIDConstant = 1000
	releaseExistsMessageConstant   = "release already exists for tag %s"
	missingGroupMessageConstant    = "group %d not found"
	missingProjectMessageConstant  = "project %d not found"
	missingResourceMessageConstant = "%s %q not found"
	archiveDecodeMessageConstant   = "archive decoding failed: %w"
)

var _ platform.Platform = (*Platform)(nil)

var mutatingOperations = map[platform.OperationName]struct{}{
	platform.OperationDeleteBranch:   {},
	platform.OperationCreateRelease:  {},
	platform.OperationDeleteRelease:  {},
	platform.OperationDeleteTag:      {},
	platform.OperationSetCIVariable:  {},
	platform.OperationDeletePipeline: {},
	platform.OperationExportProject:  {},
	platform.OperationImportProject:  {},
}

// IsMutating reports whether an operation changes platform state.
func IsMutating(operation platform.OperationName) bool {
	_, mutating := mutatingOperations[operation]
	return mutating
}

// Call records one invocation.
type Call struct {
	Operation platform.OperationName
	ProjectID int
	Target    string
}

// ProjectState is the complete stored state of one project.
type ProjectState struct {
	Project   platform.Project
	Branches  []platform.Branch
	Tags      []string
	Releases  []platform.Release
	Variables []platform.Variable
	Pipelines []platform.Pipeline
}

type failureKey struct {
	operation platform.OperationName
	projectID int
	target    string
}

type archive struct {
	Branches      []platform.Branch `json:"branches"`
	Tags          []string          `json:"tags"`
	DefaultBranch string            `json:"default_branch"`
}

// Platform is a concurrency-safe in-memory hosting instance.
type Platform struct {
	mutex         sync.Mutex
	groups        map[int]platform.Group
	subgroups     map[int][]int
	groupProjects map[int][]int
	projects      map[int]*ProjectState
	failures      map[failureKey]error
	calls         []Call
	nextProjectID int
}

// New constructs an empty Platform.
func New() *Platform {
	return &Platform{
		groups:        make(map[int]platform.Group),
		subgroups:     make(map[int][]int),
		groupProjects: make(map[int][]int),
		projects:      make(map[int]*ProjectState),
		failures:      make(map[failureKey]error),
		nextProjectID: firstImportedProjectIDConstant,
	}
}

// AddGroup registers a group and links it to its parent.
func (fake *Platform) AddGroup(group platform.Group) {
	fake.mutex.Lock()
	defer fake.mutex.Unlock()
	fake.groups[group.ID] = group
	if group.ParentID != 0 {
		fake.subgroups[group.ParentID] = append(fake.subgroups[group.ParentID], group.ID)
	}
}

// LinkSubgroup makes an existing group reachable from another parent as well.
func (fake *Platform) LinkSubgroup(parentID int, childID int) {
	fake.mutex.Lock()
	defer fake.mutex.Unlock()
	fake.subgroups[parentID] = append(fake.subgroups[parentID], childID)
}

// AddProject stores a project under its owning group.
func (fake *Platform) AddProject(state ProjectState) {
	fake.mutex.Lock()
	defer fake.mutex.Unlock()
	stored := cloneState(state)
	fake.projects[state.Project.ID] = &stored
	fake.groupProjects[state.Project.GroupID] = append(fake.groupProjects[state.Project.GroupID], state.Project.ID)
}

// ShareProject lists an existing project under an additional group.
func (fake *Platform) ShareProject(groupID int, projectID int) {
	fake.mutex.Lock()
	defer fake.mutex.Unlock()
	fake.groupProjects[groupID] = append(fake.groupProjects[groupID], projectID)
}

// FailOn makes an operation fail. A zero projectID or empty target matches any value.
func (fake *Platform) FailOn(operation platform.OperationName, projectID int, target string, failure error) {
	fake.mutex.Lock()
	defer fake.mutex.Unlock()
	fake.failures[failureKey{operation: operation, projectID: projectID, target: target}] = failure
}

// Calls returns every recorded invocation in order.
func (fake *Platform) Calls() []Call {
	fake.mutex.Lock()
	defer fake.mutex.Unlock()
	return append([]Call(nil), fake.calls...)
}

// MutatingCalls returns the recorded invocations that change state.
func (fake *Platform) MutatingCalls() []Call {
	var mutating []Call
	for _, call := range fake.Calls() {
		if IsMutating(call.Operation) {
			mutating = append(mutating, call)
		}
	}
	return mutating
}

// CallsFor returns recorded invocations of one operation.
func (fake *Platform) CallsFor(operation platform.OperationName) []Call {
	var matching []Call
	for _, call := range fake.Calls() {
		if call.Operation == operation {
			matching = append(matching, call)
		}
	}
	return matching
}

// Project returns a copy of the stored project state.
func (fake *Platform) Project(projectID int) (ProjectState, bool) {
	fake.mutex.Lock()
	defer fake.mutex.Unlock()
	state, exists := fake.projects[projectID]
	if !exists {
		return ProjectState{}, false
	}
	return cloneState(*state), true
}

// ProjectsInGroup returns copies of the projects directly listed under a group.
func (fake *Platform) ProjectsInGroup(groupID int) []ProjectState {
	fake.mutex.Lock()
	defer fake.mutex.Unlock()
	var states []ProjectState
	for _, projectID := range fake.groupProjects[groupID] {
		if state, exists := fake.projects[projectID]; exists {
			states = append(states, cloneState(*state))
		}
	}
	return states
}

// GetGroup implements platform.GroupReader.
func (fake *Platform) GetGroup(_ context.Context, groupID int) (platform.Group, error) {
	fake.mutex.Lock()
	defer fake.mutex.Unlock()
	if failure := fake.record(platform.OperationGetGroup, 0, fmt.Sprint(groupID)); failure != nil {
		return platform.Group{}, failure
	}
	group, exists := fake.groups[groupID]
	if !exists {
		return platform.Group{}, notFound(platform.OperationGetGroup, fmt.Errorf(missingGroupMessageConstant, groupID))
	}
	return group, nil
}

// ListGroups implements platform.GroupReader. Groups are returned ordered by ID.
func (fake *Platform) ListGroups(_ context.Context, search string) ([]platform.Group, error) {
	fake.mutex.Lock()
	defer fake.mutex.Unlock()
	if failure := fake.record(platform.OperationListGroups, 0, search); failure != nil {
		return nil, failure
	}
	groups := make([]platform.Group, 0, len(fake.groups))
	for _, group := range fake.groups {
		groups = append(groups, group)
	}
	sort.Slice(groups, func(left int, right int) bool { return groups[left].ID < groups[right].ID })
	return groups, nil
}

// ListSubgroups implements platform.GroupReader.
func (fake *Platform) ListSubgroups(_ context.Context, groupID int) ([]platform.Group, error) {
	fake.mutex.Lock()
	defer fake.mutex.Unlock()
	if failure := fake.record(platform.OperationListSubgroups, 0, fmt.Sprint(groupID)); failure != nil {
		return nil, failure
	}
	if _, exists := fake.groups[groupID]; !exists {
		return nil, notFound(platform.OperationListSubgroups, fmt.Errorf(missingGroupMessageConstant, groupID))
	}
	var subgroups []platform.Group
	for _, subgroupID := range fake.subgroups[groupID] {
		subgroups = append(subgroups, fake.groups[subgroupID])
	}
	return subgroups, nil
}

// ListProjects implements platform.GroupReader.
func (fake *Platform) ListProjects(_ context.Context, groupID int) ([]platform.Project, error) {
	fake.mutex.Lock()
	defer fake.mutex.Unlock()
	if failure := fake.record(platform.OperationListProjects, 0, fmt.Sprint(groupID)); failure != nil {
		return nil, failure
	}
	if _, exists := fake.groups[groupID]; !exists {
		return nil, notFound(platform.OperationListProjects, fmt.Errorf(missingGroupMessageConstant, groupID))
	}
	var projects []platform.Project
	for _, projectID := range fake.groupProjects[groupID] {
		projects = append(projects, fake.projects[projectID].Project)
	}
	return projects, nil
}

// FindProject implements platform.GroupReader.
func (fake *Platform) FindProject(_ context.Context, groupID int, projectPath string) (platform.Project, bool, error) {
	fake.mutex.Lock()
	defer fake.mutex.Unlock()
	if failure := fake.record(platform.OperationFindProject, 0, projectPath); failure != nil {
		return platform.Project{}, false, failure
	}
	for _, projectID := range fake.groupProjects[groupID] {
		if state := fake.projects[projectID]; state.Project.Path == projectPath {
			return state.Project, true, nil
		}
	}
	return platform.Project{}, false, nil
}

// GetBranches implements platform.BranchManager.
func (fake *Platform) GetBranches(_ context.Context, projectID int) ([]platform.Branch, error) {
	fake.mutex.Lock()
	defer fake.mutex.Unlock()
	state, failure := fake.lookup(platform.OperationGetBranches, projectID, "")
	if failure != nil {
		return nil, failure
	}
	return append([]platform.Branch(nil), state.Branches...), nil
}

// DeleteBranch implements platform.BranchManager.
func (fake *Platform) DeleteBranch(_ context.Context, projectID int, branchName string) error {
	fake.mutex.Lock()
	defer fake.mutex.Unlock()
	state, failure := fake.lookup(platform.OperationDeleteBranch, projectID, branchName)
	if failure != nil {
		return failure
	}
	for index, branch := range state.Branches {
		if branch.Name == branchName {
			state.Branches = append(state.Branches[:index], state.Branches[index+1:]...)
			return nil
		}
	}
	return notFound(platform.OperationDeleteBranch, fmt.Errorf(missingResourceMessageConstant, "branch", branchName))
}

// GetReleases implements platform.ReleaseManager.
func (fake *Platform) GetReleases(_ context.Context, projectID int) ([]platform.Release, error) {
	fake.mutex.Lock()
	defer fake.mutex.Unlock()
	state, failure := fake.lookup(platform.OperationGetReleases, projectID, "")
	if failure != nil {
		return nil, failure
	}
	return cloneReleases(state.Releases), nil
}

// CreateRelease implements platform.ReleaseManager. A second release for the same tag is rejected with 409.
func (fake *Platform) CreateRelease(_ context.Context, projectID int, release platform.Release) error {
	fake.mutex.Lock()
	defer fake.mutex.Unlock()
	state, failure := fake.lookup(platform.OperationCreateRelease, projectID, release.TagName)
	if failure != nil {
		return failure
	}
	for _, existing := range state.Releases {
		if existing.TagName == release.TagName {
			return platform.TransportError{Operation: platform.OperationCreateRelease, StatusCode: http.StatusConflict, Cause: fmt.Errorf(releaseExistsMessageConstant, release.TagName)}
		}
	}
	state.Releases = append(state.Releases, cloneReleases([]platform.Release{release})...)
	if !containsString(state.Tags, release.TagName) {
		state.Tags = append(state.Tags, release.TagName)
	}
	return nil
}

// DeleteRelease implements platform.ReleaseManager.
func (fake *Platform) DeleteRelease(_ context.Context, projectID int, tagName string) error {
	fake.mutex.Lock()
	defer fake.mutex.Unlock()
	state, failure := fake.lookup(platform.OperationDeleteRelease, projectID, tagName)
	if failure != nil {
		return failure
	}
	for index, release := range state.Releases {
		if release.TagName == tagName {
			state.Releases = append(state.Releases[:index], state.Releases[index+1:]...)
			return nil
		}
	}
	return notFound(platform.OperationDeleteRelease, fmt.Errorf(missingResourceMessageConstant, "release", tagName))
}

// DeleteTag implements platform.ReleaseManager.
func (fake *Platform) DeleteTag(_ context.Context, projectID int, tagName string) error {
	fake.mutex.Lock()
	defer fake.mutex.Unlock()
	state, failure := fake.lookup(platform.OperationDeleteTag, projectID, tagName)
	if failure != nil {
		return failure
	}
	for index, tag := range state.Tags {
		if tag == tagName {
			state.Tags = append(state.Tags[:index], state.Tags[index+1:]...)
			return nil
		}
	}
	return notFound(platform.OperationDeleteTag, fmt.Errorf(missingResourceMessageConstant, "tag", tagName))
}

// GetCIVariables implements platform.VariableManager. Inherited variables are returned too.
func (fake *Platform) GetCIVariables(_ context.Context, projectID int) ([]platform.Variable, error) {
	fake.mutex.Lock()
	defer fake.mutex.Unlock()
	state, failure := fake.lookup(platform.OperationGetCIVariables, projectID, "")
	if failure != nil {
		return nil, failure
	}
	return append([]platform.Variable(nil), state.Variables...), nil
}

// SetCIVariable implements platform.VariableManager as an upsert keyed by key and environment scope.
func (fake *Platform) SetCIVariable(_ context.Context, projectID int, variable platform.Variable) error {
	fake.mutex.Lock()
	defer fake.mutex.Unlock()
	state, failure := fake.lookup(platform.OperationSetCIVariable, projectID, variable.Key)
	if failure != nil {
		return failure
	}
	for index, existing := range state.Variables {
		if existing.Key == variable.Key && existing.EnvironmentScope == variable.EnvironmentScope {
			state.Variables[index] = variable
			return nil
		}
	}
	state.Variables = append(state.Variables, variable)
	return nil
}

// GetPipelines implements platform.PipelineManager.
func (fake *Platform) GetPipelines(_ context.Context, projectID int) ([]platform.Pipeline, error) {
	fake.mutex.Lock()
	defer fake.mutex.Unlock()
	state, failure := fake.lookup(platform.OperationGetPipelines, projectID, "")
	if failure != nil {
		return nil, failure
	}
	return append([]platform.Pipeline(nil), state.Pipelines...), nil
}

// DeletePipeline implements platform.PipelineManager.
func (fake *Platform) DeletePipeline(_ context.Context, projectID int, pipelineID int) error {
	fake.mutex.Lock()
	defer fake.mutex.Unlock()
	state, failure := fake.lookup(platform.OperationDeletePipeline, projectID, fmt.Sprint(pipelineID))
	if failure != nil {
		return failure
	}
	for index, pipeline := range state.Pipelines {
		if pipeline.ID == pipelineID {
			state.Pipelines = append(state.Pipelines[:index], state.Pipelines[index+1:]...)
			return nil
		}
	}
	return notFound(platform.OperationDeletePipeline, fmt.Errorf(missingResourceMessageConstant, "pipeline", fmt.Sprint(pipelineID)))
}

// ExportProject implements platform.ProjectTransporter. The archive carries branches and tags.
func (fake *Platform) ExportProject(_ context.Context, projectID int) ([]byte, error) {
	fake.mutex.Lock()
	defer fake.mutex.Unlock()
	state, failure := fake.lookup(platform.OperationExportProject, projectID, "")
	if failure != nil {
		return nil, failure
	}
	return json.Marshal(archive{Branches: state.Branches, Tags: state.Tags, DefaultBranch: state.Project.DefaultBranch})
}

// ImportProject implements platform.ProjectTransporter by creating a new project from the archive.
func (fake *Platform) ImportProject(_ context.Context, request platform.ImportRequest) (platform.Project, error) {
	fake.mutex.Lock()
	defer fake.mutex.Unlock()
	if failure := fake.record(platform.OperationImportProject, 0, request.Path); failure != nil {
		return platform.Project{}, failure
	}
	group, exists := fake.groups[request.GroupID]
	if !exists {
		return platform.Project{}, notFound(platform.OperationImportProject, fmt.Errorf(missingGroupMessageConstant, request.GroupID))
	}

	var decoded archive
	if decodeError := json.Unmarshal(request.Archive, &decoded); decodeError != nil {
		return platform.Project{}, platform.TransportError{Operation: platform.OperationImportProject, Cause: fmt.Errorf(archiveDecodeMessageConstant, decodeError)}
	}

	projectID := fake.nextProjectID
	fake.nextProjectID++
	project := platform.Project{
		ID:                projectID,
		Name:              request.Name,
		Path:              request.Path,
		PathWithNamespace: group.FullPath + "/" + request.Path,
		GroupID:           request.GroupID,
		DefaultBranch:     decoded.DefaultBranch,
	}
	fake.projects[projectID] = &ProjectState{
		Project:  project,
		Branches: append([]platform.Branch(nil), decoded.Branches...),
		Tags:     append([]string(nil), decoded.Tags...),
	}
	fake.groupProjects[request.GroupID] = append(fake.groupProjects[request.GroupID], projectID)
	return project, nil
}

func (fake *Platform) record(operation platform.OperationName, projectID int, target string) error {
	fake.calls = append(fake.calls, Call{Operation: operation, ProjectID: projectID, Target: target})
	candidates := []failureKey{
		{operation: operation, projectID: projectID, target: target},
		{operation: operation, projectID: projectID},
		{operation: operation, target: target},
		{operation: operation},
	}
	for _, candidate := range candidates {
		if failure, exists := fake.failures[candidate]; exists {
			return failure
		}
	}
	return nil
}

func (fake *Platform) lookup(operation platform.OperationName, projectID int, target string) (*ProjectState, error) {
	if failure := fake.record(operation, projectID, target); failure != nil {
		return nil, failure
	}
	state, exists := fake.projects[projectID]
	if !exists {
		return nil, notFound(operation, fmt.Errorf(missingProjectMessageConstant, projectID))
	}
	return state, nil
}

func notFound(operation platform.OperationName, cause error) error {
	return platform.NotFoundError{Operation: operation, Cause: cause}
}

func cloneState(state ProjectState) ProjectState {
	return ProjectState{
		Project:   state.Project,
		Branches:  append([]platform.Branch(nil), state.Branches...),
		Tags:      append([]string(nil), state.Tags...),
		Releases:  cloneReleases(state.Releases),
		Variables: append([]platform.Variable(nil), state.Variables...),
		Pipelines: append([]platform.Pipeline(nil), state.Pipelines...),
	}
}

func cloneReleases(releases []platform.Release) []platform.Release {
	if releases == nil {
		return nil
	}
	cloned := make([]platform.Release, 0, len(releases))
	for _, release := range releases {
		release.Links = append([]platform.ReleaseLink(nil), release.Links...)
		cloned = append(cloned, release)
	}
	return cloned
}

func containsString(values []string, candidate string) bool {
	for _, value := range values {
		if value == candidate {
			return true
		}
	}
	return false
}

// ErrInjected is a convenience failure for tests that only need a non-nil error.
var ErrInjected = errors.New("injected failure")
