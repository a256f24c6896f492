package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	yamlExtensionConstant         = ".yaml"
	ymlExtensionConstant          = ".yml"
	jsonExtensionConstant         = ".json"
	reportFilePermissionsConstant = 0o600
	unsupportedFormatTemplate     = "unsupported report format %q (use .yaml, .yml, or .json)"
	reportEncodeErrorTemplate     = "unable to encode report: %w"
	reportWriteErrorTemplate      = "unable to write report %s: %w"
	jsonIndentConstant            = "  "
	yamlIndentConstant            = 2
)

// Format selects the serialization of an exported report.
type Format string

// Export formats.
const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatForPath infers the export format from a file extension.
func FormatForPath(filePath string) (Format, error) {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case yamlExtensionConstant, ymlExtensionConstant:
		return FormatYAML, nil
	case jsonExtensionConstant:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf(unsupportedFormatTemplate, filepath.Ext(filePath))
	}
}

type document struct {
	DryRun     bool      `json:"dry_run" yaml:"dry_run"`
	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at" yaml:"finished_at"`
	Aborted    string    `json:"aborted,omitempty" yaml:"aborted,omitempty"`
	Summary    Summary   `json:"summary" yaml:"summary"`
	Projects   []Entry   `json:"projects" yaml:"projects"`
}

func (finalReport Report) document() document {
	return document{
		DryRun:     finalReport.dryRun,
		StartedAt:  finalReport.started.UTC(),
		FinishedAt: finalReport.finished.UTC(),
		Aborted:    finalReport.abortReason,
		Summary:    finalReport.Summary(),
		Projects:   finalReport.Entries(),
	}
}

// Encode serializes the report in the requested format.
func Encode(writer io.Writer, finalReport Report, format Format) error {
	switch format {
	case FormatJSON:
		encoder := json.NewEncoder(writer)
		encoder.SetIndent("", jsonIndentConstant)
		if encodeError := encoder.Encode(finalReport.document()); encodeError != nil {
			return fmt.Errorf(reportEncodeErrorTemplate, encodeError)
		}
		return nil
	case FormatYAML:
		encoder := yaml.NewEncoder(writer)
		encoder.SetIndent(yamlIndentConstant)
		if encodeError := encoder.Encode(finalReport.document()); encodeError != nil {
			return fmt.Errorf(reportEncodeErrorTemplate, encodeError)
		}
		return encoder.Close()
	default:
		return fmt.Errorf(unsupportedFormatTemplate, format)
	}
}

// WriteFile exports the report to filePath, choosing the format from its extension.
func WriteFile(filePath string, finalReport Report) error {
	format, formatError := FormatForPath(filePath)
	if formatError != nil {
		return formatError
	}

	file, openError := os.OpenFile(filePath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, reportFilePermissionsConstant)
	if openError != nil {
		return fmt.Errorf(reportWriteErrorTemplate, filePath, openError)
	}

	if encodeError := Encode(file, finalReport, format); encodeError != nil {
		_ = file.Close()
		return encodeError
	}
	if closeError := file.Close(); closeError != nil {
		return fmt.Errorf(reportWriteErrorTemplate, filePath, closeError)
	}
	return nil
}
