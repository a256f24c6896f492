package gitlabapi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/xanzy/go-gitlab"
	"go.uber.org/zap"

	"github.com/temirov/glmigrate/internal/platform"
)

const (
	exportStatusFinishedConstant = "finished"
	exportStatusFailedConstant   = "failed"
	importStatusFinishedConstant = "finished"
	importStatusFailedConstant   = "failed"
	exportFailedMessageConstant  = "export reported failure"
	importFailedTemplateConstant = "import reported failure: %s"
	pollTimeoutTemplateConstant  = "gave up waiting after %s"
	logMessageExportScheduled    = "Project export scheduled"
	logMessageExportStatus       = "Project export status"
	logMessageImportStarted      = "Project import started"
	logMessageImportStatus       = "Project import status"
	logFieldProjectIDConstant    = "project_id"
	logFieldStatusConstant       = "status"
	logFieldNamespaceConstant    = "namespace"
	logFieldProjectPathConstant  = "project_path"
	logFieldArchiveBytesConstant = "archive_bytes"
)

var errExportFailed = errors.New(exportFailedMessageConstant)

// ExportProject implements platform.ProjectTransporter: schedule, wait for completion, download.
func (client *Client) ExportProject(executionContext context.Context, projectID int) ([]byte, error) {
	response, scheduleError := client.api.ProjectImportExport.ScheduleExport(projectID, &gitlab.ScheduleExportOptions{}, gitlab.WithContext(executionContext))
	if scheduleError != nil {
		return nil, classify(platform.OperationExportProject, response, scheduleError)
	}
	client.logger.Debug(logMessageExportScheduled, zap.Int(logFieldProjectIDConstant, projectID))

	waitError := client.poll(executionContext, platform.OperationExportProject, func(pollContext context.Context) (bool, error) {
		status, statusResponse, statusError := client.api.ProjectImportExport.ExportStatus(projectID, gitlab.WithContext(pollContext))
		if statusError != nil {
			return false, classify(platform.OperationExportProject, statusResponse, statusError)
		}
		client.logger.Debug(logMessageExportStatus, zap.Int(logFieldProjectIDConstant, projectID), zap.String(logFieldStatusConstant, status.ExportStatus))
		switch status.ExportStatus {
		case exportStatusFinishedConstant:
			return true, nil
		case exportStatusFailedConstant:
			return false, platform.TransportError{Operation: platform.OperationExportProject, Cause: errExportFailed}
		default:
			return false, nil
		}
	})
	if waitError != nil {
		return nil, waitError
	}

	archive, downloadResponse, downloadError := client.api.ProjectImportExport.ExportDownload(projectID, gitlab.WithContext(executionContext))
	if downloadError != nil {
		return nil, classify(platform.OperationExportProject, downloadResponse, downloadError)
	}
	return archive, nil
}

// ImportProject implements platform.ProjectTransporter: upload the archive, wait for completion, fetch the project.
func (client *Client) ImportProject(executionContext context.Context, request platform.ImportRequest) (platform.Project, error) {
	namespace := strconv.Itoa(request.GroupID)
	importStatus, response, importError := client.api.ProjectImportExport.ImportFromFile(bytes.NewReader(request.Archive), &gitlab.ImportFileOptions{
		Namespace: gitlab.Ptr(namespace),
		Name:      gitlab.Ptr(request.Name),
		Path:      gitlab.Ptr(request.Path),
	}, gitlab.WithContext(executionContext))
	if importError != nil {
		return platform.Project{}, classify(platform.OperationImportProject, response, importError)
	}
	client.logger.Debug(logMessageImportStarted,
		zap.String(logFieldNamespaceConstant, namespace),
		zap.String(logFieldProjectPathConstant, request.Path),
		zap.Int(logFieldArchiveBytesConstant, len(request.Archive)),
	)

	importedProjectID := importStatus.ID
	waitError := client.poll(executionContext, platform.OperationImportProject, func(pollContext context.Context) (bool, error) {
		status, statusResponse, statusError := client.api.ProjectImportExport.ImportStatus(importedProjectID, gitlab.WithContext(pollContext))
		if statusError != nil {
			return false, classify(platform.OperationImportProject, statusResponse, statusError)
		}
		client.logger.Debug(logMessageImportStatus, zap.Int(logFieldProjectIDConstant, importedProjectID), zap.String(logFieldStatusConstant, status.ImportStatus))
		switch status.ImportStatus {
		case importStatusFinishedConstant:
			return true, nil
		case importStatusFailedConstant:
			return false, platform.TransportError{Operation: platform.OperationImportProject, Cause: fmt.Errorf(importFailedTemplateConstant, status.ImportError)}
		default:
			return false, nil
		}
	})
	if waitError != nil {
		return platform.Project{}, waitError
	}

	project, projectResponse, projectError := client.api.Projects.GetProject(importedProjectID, &gitlab.GetProjectOptions{}, gitlab.WithContext(executionContext))
	if projectError != nil {
		return platform.Project{}, classify(platform.OperationImportProject, projectResponse, projectError)
	}
	return convertProject(project), nil
}

// poll invokes check every poll interval until it reports completion, fails, or the export timeout elapses.
func (client *Client) poll(executionContext context.Context, operation platform.OperationName, check func(pollContext context.Context) (bool, error)) error {
	pollContext, cancel := context.WithTimeout(executionContext, client.exportTimeout)
	defer cancel()

	ticker := time.NewTicker(client.exportPollInterval)
	defer ticker.Stop()

	for {
		completed, checkError := check(pollContext)
		if checkError != nil {
			if pollContext.Err() != nil && executionContext.Err() == nil {
				return client.timeoutError(operation)
			}
			return checkError
		}
		if completed {
			return nil
		}

		select {
		case <-pollContext.Done():
			if executionContext.Err() != nil {
				return executionContext.Err()
			}
			return client.timeoutError(operation)
		case <-ticker.C:
		}
	}
}

func (client *Client) timeoutError(operation platform.OperationName) error {
	return platform.TransportError{Operation: operation, Cause: fmt.Errorf(pollTimeoutTemplateConstant, client.exportTimeout)}
}
