// Package discovery resolves the origin group and enumerates the projects reachable from it.
package discovery

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/glmigrate/internal/platform"
)

const (
	groupNotFoundMessageConstant       = "group not found"
	groupAmbiguousMessageConstant      = "group name matches more than one group"
	groupReferenceEmptyMessageConstant = "group reference is empty"
	subgroupListingMessageConstant     = "unable to list subgroups"
	projectListingMessageConstant      = "unable to list projects"
	groupLookupMessageConstant         = "unable to look up group"
	readerMissingMessageConstant       = "group reader not configured"
	logMessageGroupVisited             = "Visiting group"
	logMessageDuplicateProjectSkipped  = "Project already enumerated through another group"
	logMessageEnumerationComplete      = "Group enumeration complete"
	logFieldGroupIDConstant            = "group_id"
	logFieldGroupPathConstant          = "group_path"
	logFieldProjectIDConstant          = "project_id"
	logFieldProjectCountConstant       = "project_count"
)

var errReaderMissing = errors.New(readerMissingMessageConstant)

// Walker enumerates projects of a group hierarchy. It only reads.
type Walker struct {
	logger *zap.Logger
	reader platform.GroupReader
}

// NewWalker constructs a Walker.
func NewWalker(reader platform.GroupReader, logger *zap.Logger) (*Walker, error) {
	if reader == nil {
		return nil, errReaderMissing
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Walker{logger: logger, reader: reader}, nil
}

// ResolveGroup turns a numeric ID, full path, or exact name into a single group.
// Names matching more than one group are rejected rather than guessed.
func (walker *Walker) ResolveGroup(executionContext context.Context, reference string) (platform.Group, error) {
	trimmedReference := strings.TrimSpace(reference)
	if len(trimmedReference) == 0 {
		return platform.Group{}, platform.DiscoveryError{GroupReference: reference, Message: groupReferenceEmptyMessageConstant}
	}

	if groupID, parseError := strconv.Atoi(trimmedReference); parseError == nil {
		group, groupError := walker.reader.GetGroup(executionContext, groupID)
		if groupError != nil {
			return platform.Group{}, wrapDiscoveryError(trimmedReference, groupLookupMessageConstant, groupError)
		}
		return group, nil
	}

	candidates, listError := walker.reader.ListGroups(executionContext, trimmedReference)
	if listError != nil {
		return platform.Group{}, wrapDiscoveryError(trimmedReference, groupLookupMessageConstant, listError)
	}

	for _, candidate := range candidates {
		if candidate.FullPath == trimmedReference {
			return candidate, nil
		}
	}

	var nameMatches []platform.Group
	for _, candidate := range candidates {
		if candidate.Name == trimmedReference {
			nameMatches = append(nameMatches, candidate)
		}
	}

	switch len(nameMatches) {
	case 0:
		return platform.Group{}, platform.DiscoveryError{GroupReference: trimmedReference, Message: groupNotFoundMessageConstant}
	case 1:
		return nameMatches[0], nil
	default:
		return platform.Group{}, platform.DiscoveryError{GroupReference: trimmedReference, Message: groupAmbiguousMessageConstant}
	}
}

// Enumerate lists every project owned by the root group and, when requested, by its
// descendant groups. Each project appears once even when reachable through several groups.
func (walker *Walker) Enumerate(executionContext context.Context, rootGroupID int, includeSubgroups bool) ([]platform.Project, error) {
	rootReference := strconv.Itoa(rootGroupID)
	rootGroup, rootError := walker.reader.GetGroup(executionContext, rootGroupID)
	if rootError != nil {
		return nil, wrapDiscoveryError(rootReference, groupLookupMessageConstant, rootError)
	}

	visitedGroups := map[int]struct{}{rootGroup.ID: {}}
	seenProjects := make(map[int]struct{})
	queue := []platform.Group{rootGroup}
	var projects []platform.Project

	for len(queue) > 0 {
		if contextError := executionContext.Err(); contextError != nil {
			return nil, contextError
		}

		current := queue[0]
		queue = queue[1:]
		walker.logger.Debug(logMessageGroupVisited,
			zap.Int(logFieldGroupIDConstant, current.ID),
			zap.String(logFieldGroupPathConstant, current.FullPath),
		)

		groupProjects, projectsError := walker.reader.ListProjects(executionContext, current.ID)
		if projectsError != nil {
			return nil, wrapDiscoveryError(groupReference(current), projectListingMessageConstant, projectsError)
		}
		for _, project := range groupProjects {
			if _, seen := seenProjects[project.ID]; seen {
				walker.logger.Debug(logMessageDuplicateProjectSkipped, zap.Int(logFieldProjectIDConstant, project.ID))
				continue
			}
			seenProjects[project.ID] = struct{}{}
			projects = append(projects, project)
		}

		if !includeSubgroups {
			continue
		}

		subgroups, subgroupsError := walker.reader.ListSubgroups(executionContext, current.ID)
		if subgroupsError != nil {
			return nil, wrapDiscoveryError(groupReference(current), subgroupListingMessageConstant, subgroupsError)
		}
		for _, subgroup := range subgroups {
			if _, visited := visitedGroups[subgroup.ID]; visited {
				continue
			}
			visitedGroups[subgroup.ID] = struct{}{}
			queue = append(queue, subgroup)
		}
	}

	walker.logger.Info(logMessageEnumerationComplete,
		zap.Int(logFieldGroupIDConstant, rootGroup.ID),
		zap.String(logFieldGroupPathConstant, rootGroup.FullPath),
		zap.Int(logFieldProjectCountConstant, len(projects)),
	)
	return projects, nil
}

func groupReference(group platform.Group) string {
	if len(group.FullPath) > 0 {
		return group.FullPath
	}
	return strconv.Itoa(group.ID)
}

// wrapDiscoveryError keeps authentication failures and cancellation recognizable to callers.
func wrapDiscoveryError(reference string, message string, cause error) error {
	if platform.IsFatal(cause) || platform.IsCancellation(cause) {
		return cause
	}
	if platform.IsNotFound(cause) {
		return platform.DiscoveryError{GroupReference: reference, Message: groupNotFoundMessageConstant, Cause: cause}
	}
	return platform.DiscoveryError{GroupReference: reference, Message: message, Cause: cause}
}
