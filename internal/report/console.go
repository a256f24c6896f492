package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

const (
	headerProjectConstant     = "Project"
	headerOutcomeConstant     = "Outcome"
	headerStateConstant       = "State"
	headerOriginConstant      = "Origin"
	headerDestinationConstant = "Destination"
	headerActionsConstant     = "Actions"
	headerDetailConstant      = "Detail"
	dryRunBannerConstant      = "DRY RUN: no changes were made; planned actions are listed below"
	abortedTemplateConstant   = "Run aborted: %s\n"
	summaryTemplateConstant   = "Migrated: %d  Skipped: %d  Failed: %d  (%d projects)\n"
	actionsTemplateConstant   = "%d planned"
	executedTemplateConstant  = "%d done, %d failed"
	detailSeparatorConstant   = "; "
	noDestinationConstant     = "-"
	actionLineTemplate        = "  %s %s %s/%s%s\n"
	actionErrorTemplate       = " (%s)"
	renderErrorTemplate       = "unable to render report: %w"
	detailSectionTemplate     = "\n%s\n"
)

var (
	migratedLabel = color.New(color.FgHiGreen).SprintFunc()
	skippedLabel  = color.New(color.FgHiYellow).SprintFunc()
	failedLabel   = color.New(color.FgHiRed).SprintFunc()
	bannerLabel   = color.New(color.FgHiCyan).SprintFunc()
)

// ConsoleRenderer prints a Report as a summary table followed by per-project actions.
type ConsoleRenderer struct {
	writer  io.Writer
	verbose bool
}

// NewConsoleRenderer constructs a renderer writing to writer. Verbose output lists every action.
func NewConsoleRenderer(writer io.Writer, verbose bool) ConsoleRenderer {
	return ConsoleRenderer{writer: writer, verbose: verbose}
}

// Render writes the report.
func (renderer ConsoleRenderer) Render(finalReport Report) error {
	if finalReport.DryRun() {
		fmt.Fprintln(renderer.writer, bannerLabel(dryRunBannerConstant))
	}

	table := tablewriter.NewTable(renderer.writer,
		tablewriter.WithHeaderAlignment(tw.AlignLeft),
		tablewriter.WithRowAlignment(tw.AlignLeft),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Lines:      tw.LinesNone,
				Separators: tw.SeparatorsNone,
			},
		}),
		tablewriter.WithPadding(tw.Padding{Left: "", Right: "  "}),
	)
	table.Header([]string{
		headerProjectConstant,
		headerOutcomeConstant,
		headerStateConstant,
		headerOriginConstant,
		headerDestinationConstant,
		headerActionsConstant,
		headerDetailConstant,
	})

	entries := finalReport.Entries()
	for _, entry := range entries {
		destination := noDestinationConstant
		if len(entry.DestinationPath) > 0 {
			destination = entry.DestinationPath
		}
		if appendError := table.Append([]string{
			entry.ProjectPath,
			outcomeLabel(entry.Outcome),
			string(entry.State),
			string(entry.OriginImpact),
			destination,
			actionCounts(entry),
			entryDetail(entry),
		}); appendError != nil {
			return fmt.Errorf(renderErrorTemplate, appendError)
		}
	}
	if renderError := table.Render(); renderError != nil {
		return fmt.Errorf(renderErrorTemplate, renderError)
	}

	if renderer.verbose {
		for _, entry := range entries {
			if len(entry.Actions) == 0 {
				continue
			}
			fmt.Fprintf(renderer.writer, detailSectionTemplate, entry.ProjectPath)
			for _, action := range entry.Actions {
				errorSuffix := ""
				if len(action.Error) > 0 {
					errorSuffix = fmt.Sprintf(actionErrorTemplate, action.Error)
				}
				fmt.Fprintf(renderer.writer, actionLineTemplate, action.Status, action.Kind, action.Side, action.Target, errorSuffix)
			}
		}
	}

	summary := finalReport.Summary()
	fmt.Fprintf(renderer.writer, summaryTemplateConstant, summary.Migrated, summary.Skipped, summary.Failed, summary.Total())
	if finalReport.Aborted() {
		fmt.Fprintf(renderer.writer, abortedTemplateConstant, failedLabel(finalReport.AbortReason()))
	}
	return nil
}

func outcomeLabel(outcome Outcome) string {
	switch outcome {
	case OutcomeMigrated:
		return migratedLabel(string(outcome))
	case OutcomeSkipped:
		return skippedLabel(string(outcome))
	case OutcomeFailed:
		return failedLabel(string(outcome))
	default:
		return string(outcome)
	}
}

func actionCounts(entry Entry) string {
	planned, done, failed := 0, 0, 0
	for _, action := range entry.Actions {
		switch action.Status {
		case ActionPlanned:
			planned++
		case ActionDone:
			done++
		case ActionFailed:
			failed++
		}
	}
	if planned > 0 {
		return fmt.Sprintf(actionsTemplateConstant, planned)
	}
	return fmt.Sprintf(executedTemplateConstant, done, failed)
}

func entryDetail(entry Entry) string {
	var details []string
	if len(entry.Reason) > 0 {
		details = append(details, entry.Reason)
	}
	if len(entry.Error) > 0 {
		details = append(details, entry.Error)
	}
	details = append(details, entry.Notes...)
	details = append(details, entry.Warnings...)
	return strings.Join(details, detailSeparatorConstant)
}
