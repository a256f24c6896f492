package platform

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

const (
	authErrorTemplateConstant               = "%s: authentication rejected: %v"
	notFoundErrorTemplateConstant           = "%s: resource not found: %v"
	rateLimitErrorTemplateConstant          = "%s: rate limit exceeded: %v"
	transportErrorTemplateConstant          = "%s: transport failure: %v"
	transportStatusErrorTemplateConstant    = "%s: transport failure (status %d): %v"
	discoveryErrorTemplateConstant          = "group %q: %s"
	discoveryErrorWithCauseTemplateConstant = "group %q: %s: %v"
)

// OperationName identifies a Platform capability in error messages and logs.
type OperationName string

// Platform operation names.
const (
	OperationGetGroup       OperationName = "GetGroup"
	OperationListGroups     OperationName = "ListGroups"
	OperationListSubgroups  OperationName = "ListSubgroups"
	OperationListProjects   OperationName = "ListProjects"
	OperationFindProject    OperationName = "FindProject"
	OperationGetBranches    OperationName = "GetBranches"
	OperationDeleteBranch   OperationName = "DeleteBranch"
	OperationGetReleases    OperationName = "GetReleases"
	OperationCreateRelease  OperationName = "CreateRelease"
	OperationDeleteRelease  OperationName = "DeleteRelease"
	OperationDeleteTag      OperationName = "DeleteTag"
	OperationGetCIVariables OperationName = "GetCIVariables"
	OperationSetCIVariable  OperationName = "SetCIVariable"
	OperationGetPipelines   OperationName = "GetPipelines"
	OperationDeletePipeline OperationName = "DeletePipeline"
	OperationExportProject  OperationName = "ExportProject"
	OperationImportProject  OperationName = "ImportProject"
)

// AuthError reports rejected credentials. It is fatal to the whole run.
type AuthError struct {
	Operation OperationName
	Cause     error
}

// Error describes the authentication failure.
func (authError AuthError) Error() string {
	return fmt.Sprintf(authErrorTemplateConstant, authError.Operation, authError.Cause)
}

// Unwrap exposes the underlying cause.
func (authError AuthError) Unwrap() error {
	return authError.Cause
}

// NotFoundError reports a missing group, project, or project resource.
type NotFoundError struct {
	Operation OperationName
	Cause     error
}

// Error describes the missing resource.
func (notFoundError NotFoundError) Error() string {
	return fmt.Sprintf(notFoundErrorTemplateConstant, notFoundError.Operation, notFoundError.Cause)
}

// Unwrap exposes the underlying cause.
func (notFoundError NotFoundError) Unwrap() error {
	return notFoundError.Cause
}

// RateLimitError reports that the platform throttled the request.
type RateLimitError struct {
	Operation OperationName
	Cause     error
}

// Error describes the throttling.
func (rateLimitError RateLimitError) Error() string {
	return fmt.Sprintf(rateLimitErrorTemplateConstant, rateLimitError.Operation, rateLimitError.Cause)
}

// Unwrap exposes the underlying cause.
func (rateLimitError RateLimitError) Unwrap() error {
	return rateLimitError.Cause
}

// TransportError reports any other failed platform call.
type TransportError struct {
	Operation  OperationName
	StatusCode int
	Cause      error
}

// Error describes the transport failure.
func (transportError TransportError) Error() string {
	if transportError.StatusCode > 0 {
		return fmt.Sprintf(transportStatusErrorTemplateConstant, transportError.Operation, transportError.StatusCode, transportError.Cause)
	}
	return fmt.Sprintf(transportErrorTemplateConstant, transportError.Operation, transportError.Cause)
}

// Unwrap exposes the underlying cause.
func (transportError TransportError) Unwrap() error {
	return transportError.Cause
}

// DiscoveryError reports a group reference that cannot be resolved or walked.
// It aborts the run before any project is touched.
type DiscoveryError struct {
	GroupReference string
	Message        string
	Cause          error
}

// Error describes the discovery failure.
func (discoveryError DiscoveryError) Error() string {
	if discoveryError.Cause == nil {
		return fmt.Sprintf(discoveryErrorTemplateConstant, discoveryError.GroupReference, discoveryError.Message)
	}
	return fmt.Sprintf(discoveryErrorWithCauseTemplateConstant, discoveryError.GroupReference, discoveryError.Message, discoveryError.Cause)
}

// Unwrap exposes the underlying cause.
func (discoveryError DiscoveryError) Unwrap() error {
	return discoveryError.Cause
}

// ClassifyStatus maps an HTTP status code onto the error taxonomy.
// Context cancellation is returned unchanged so callers never mistake it for a platform failure.
func ClassifyStatus(operation OperationName, statusCode int, cause error) error {
	if cause == nil {
		return nil
	}
	if errors.Is(cause, context.Canceled) || errors.Is(cause, context.DeadlineExceeded) {
		return cause
	}

	switch statusCode {
	case http.StatusUnauthorized:
		return AuthError{Operation: operation, Cause: cause}
	case http.StatusNotFound:
		return NotFoundError{Operation: operation, Cause: cause}
	case http.StatusTooManyRequests:
		return RateLimitError{Operation: operation, Cause: cause}
	default:
		return TransportError{Operation: operation, StatusCode: statusCode, Cause: cause}
	}
}

// IsFatal reports whether the error must abort the remaining run.
func IsFatal(err error) bool {
	var authError AuthError
	return errors.As(err, &authError)
}

// IsNotFound reports whether the error denotes a missing resource.
func IsNotFound(err error) bool {
	var notFoundError NotFoundError
	return errors.As(err, &notFoundError)
}

// IsCancellation reports whether the error stems from context cancellation.
func IsCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
