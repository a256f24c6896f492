// Package report accumulates per-project migration outcomes and renders them for audit.
package report

import (
	"sort"
	"sync"
	"time"
)

// Outcome is the terminal decision for one project.
type Outcome string

// Terminal outcomes.
const (
	OutcomeMigrated Outcome = "migrated"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeFailed   Outcome = "failed"
)

// State is a step of the per-project pipeline.
type State string

// Pipeline states.
const (
	StateDiscovered         State = "discovered"
	StateTransferInProgress State = "transfer_in_progress"
	StateTransferFailed     State = "transfer_failed"
	StateTransferComplete   State = "transfer_complete"
	StatePruneInProgress    State = "prune_in_progress"
	StatePruneFailed        State = "prune_failed"
	StatePruneComplete      State = "prune_complete"
)

// OriginImpact tells whether origin data was destroyed.
type OriginImpact string

// Origin impact levels.
const (
	OriginUntouched       OriginImpact = "untouched"
	OriginPruned          OriginImpact = "pruned"
	OriginPartiallyPruned OriginImpact = "partially_pruned"
)

// ActionKind names a platform change the run performed or planned.
type ActionKind string

// Action kinds.
const (
	ActionExportProject  ActionKind = "export_project"
	ActionImportProject  ActionKind = "import_project"
	ActionSetCIVariable  ActionKind = "set_ci_variable"
	ActionCreateRelease  ActionKind = "create_release"
	ActionDeletePipeline ActionKind = "delete_pipeline"
	ActionDeleteRelease  ActionKind = "delete_release"
	ActionDeleteTag      ActionKind = "delete_tag"
	ActionDeleteBranch   ActionKind = "delete_branch"
)

// Side identifies the instance an action targets.
type Side string

// Instance sides.
const (
	SideOrigin      Side = "origin"
	SideDestination Side = "destination"
)

// ActionStatus records whether an action ran.
type ActionStatus string

// Action statuses.
const (
	ActionPlanned ActionStatus = "planned"
	ActionDone    ActionStatus = "done"
	ActionFailed  ActionStatus = "failed"
)

// Action is one intended or executed platform change.
type Action struct {
	Kind   ActionKind   `json:"kind" yaml:"kind"`
	Side   Side         `json:"side" yaml:"side"`
	Target string       `json:"target" yaml:"target"`
	Status ActionStatus `json:"status" yaml:"status"`
	Error  string       `json:"error,omitempty" yaml:"error,omitempty"`
}

// TransferCounts summarizes the resource transfer of one project.
type TransferCounts struct {
	VariablesTransferred      int `json:"variables_transferred" yaml:"variables_transferred"`
	VariablesSkippedInherited int `json:"variables_skipped_inherited" yaml:"variables_skipped_inherited"`
	ReleasesCreated           int `json:"releases_created" yaml:"releases_created"`
	ReleasesSkipped           int `json:"releases_skipped" yaml:"releases_skipped"`
}

// Entry is the record of one project. It is owned by a single pipeline until added to a Recorder.
type Entry struct {
	Index                int            `json:"-" yaml:"-"`
	ProjectID            int            `json:"project_id" yaml:"project_id"`
	ProjectPath          string         `json:"project_path" yaml:"project_path"`
	DestinationProjectID int            `json:"destination_project_id,omitempty" yaml:"destination_project_id,omitempty"`
	DestinationPath      string         `json:"destination_path,omitempty" yaml:"destination_path,omitempty"`
	State                State          `json:"state" yaml:"state"`
	Outcome              Outcome        `json:"outcome" yaml:"outcome"`
	OriginImpact         OriginImpact   `json:"origin_impact" yaml:"origin_impact"`
	DryRun               bool           `json:"dry_run" yaml:"dry_run"`
	Reason               string         `json:"reason,omitempty" yaml:"reason,omitempty"`
	Error                string         `json:"error,omitempty" yaml:"error,omitempty"`
	Transfer             TransferCounts `json:"transfer" yaml:"transfer"`
	Actions              []Action       `json:"actions,omitempty" yaml:"actions,omitempty"`
	Warnings             []string       `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Notes                []string       `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// NewEntry starts the record of a discovered project.
func NewEntry(index int, projectID int, projectPath string, dryRun bool) *Entry {
	return &Entry{
		Index:        index,
		ProjectID:    projectID,
		ProjectPath:  projectPath,
		State:        StateDiscovered,
		OriginImpact: OriginUntouched,
		DryRun:       dryRun,
	}
}

// Transition moves the entry to a new pipeline state.
func (entry *Entry) Transition(state State) {
	entry.State = state
}

// Record appends an action.
func (entry *Entry) Record(kind ActionKind, side Side, target string, status ActionStatus, failure error) {
	action := Action{Kind: kind, Side: side, Target: target, Status: status}
	if failure != nil {
		action.Error = failure.Error()
	}
	entry.Actions = append(entry.Actions, action)
	if side == SideOrigin && status == ActionDone && kind.Destructive() {
		entry.OriginImpact = OriginPruned
	}
}

// Destructive reports whether the action removes data.
func (kind ActionKind) Destructive() bool {
	switch kind {
	case ActionDeletePipeline, ActionDeleteRelease, ActionDeleteTag, ActionDeleteBranch:
		return true
	default:
		return false
	}
}

// Warn appends a warning.
func (entry *Entry) Warn(message string) {
	entry.Warnings = append(entry.Warnings, message)
}

// Note appends an informational note.
func (entry *Entry) Note(message string) {
	entry.Notes = append(entry.Notes, message)
}

// Skip finalizes the entry as skipped.
func (entry *Entry) Skip(reason string) {
	entry.Outcome = OutcomeSkipped
	entry.Reason = reason
}

// Fail finalizes the entry as failed.
func (entry *Entry) Fail(state State, failure error) {
	entry.State = state
	entry.Outcome = OutcomeFailed
	if failure != nil {
		entry.Error = failure.Error()
	}
}

// Migrate finalizes the entry as migrated. A failed origin action downgrades the impact to partial.
func (entry *Entry) Migrate(state State) {
	entry.State = state
	entry.Outcome = OutcomeMigrated
	if entry.OriginImpact == OriginPruned && entry.hasFailedOriginAction() {
		entry.OriginImpact = OriginPartiallyPruned
	}
}

// FailedActions returns the actions that did not complete.
func (entry *Entry) FailedActions() []Action {
	var failed []Action
	for _, action := range entry.Actions {
		if action.Status == ActionFailed {
			failed = append(failed, action)
		}
	}
	return failed
}

func (entry *Entry) hasFailedOriginAction() bool {
	for _, action := range entry.Actions {
		if action.Side == SideOrigin && action.Status == ActionFailed {
			return true
		}
	}
	return false
}

func (entry Entry) clone() Entry {
	entry.Actions = append([]Action(nil), entry.Actions...)
	entry.Warnings = append([]string(nil), entry.Warnings...)
	entry.Notes = append([]string(nil), entry.Notes...)
	return entry
}

// Summary counts terminal outcomes.
type Summary struct {
	Migrated int `json:"migrated" yaml:"migrated"`
	Skipped  int `json:"skipped" yaml:"skipped"`
	Failed   int `json:"failed" yaml:"failed"`
}

// Total returns the number of processed projects.
func (summary Summary) Total() int {
	return summary.Migrated + summary.Skipped + summary.Failed
}

// Recorder collects entries from concurrently running pipelines.
type Recorder struct {
	mutex   sync.Mutex
	entries []Entry
	dryRun  bool
	started time.Time
}

// NewRecorder constructs a Recorder for one run.
func NewRecorder(dryRun bool, started time.Time) *Recorder {
	return &Recorder{dryRun: dryRun, started: started}
}

// Add stores a finished entry.
func (recorder *Recorder) Add(entry *Entry) {
	if entry == nil {
		return
	}
	recorder.mutex.Lock()
	defer recorder.mutex.Unlock()
	recorder.entries = append(recorder.entries, entry.clone())
}

// Finalize freezes the collected entries into a Report ordered by discovery index.
func (recorder *Recorder) Finalize(finished time.Time, aborted error) Report {
	recorder.mutex.Lock()
	defer recorder.mutex.Unlock()

	entries := make([]Entry, 0, len(recorder.entries))
	for _, entry := range recorder.entries {
		entries = append(entries, entry.clone())
	}
	sort.SliceStable(entries, func(left int, right int) bool { return entries[left].Index < entries[right].Index })

	finalReport := Report{
		entries:  entries,
		dryRun:   recorder.dryRun,
		started:  recorder.started,
		finished: finished,
	}
	if aborted != nil {
		finalReport.abortReason = aborted.Error()
	}
	return finalReport
}

// Report is the immutable outcome of one run.
type Report struct {
	entries     []Entry
	dryRun      bool
	started     time.Time
	finished    time.Time
	abortReason string
}

// Entries returns a copy of the per-project records.
func (finalReport Report) Entries() []Entry {
	entries := make([]Entry, 0, len(finalReport.entries))
	for _, entry := range finalReport.entries {
		entries = append(entries, entry.clone())
	}
	return entries
}

// Summary counts outcomes across the processed projects.
func (finalReport Report) Summary() Summary {
	summary := Summary{}
	for _, entry := range finalReport.entries {
		switch entry.Outcome {
		case OutcomeMigrated:
			summary.Migrated++
		case OutcomeSkipped:
			summary.Skipped++
		case OutcomeFailed:
			summary.Failed++
		}
	}
	return summary
}

// DryRun reports whether the run simulated every mutation.
func (finalReport Report) DryRun() bool {
	return finalReport.dryRun
}

// Aborted reports whether a fatal error stopped the run early.
func (finalReport Report) Aborted() bool {
	return len(finalReport.abortReason) > 0
}

// AbortReason describes the fatal error that stopped the run, if any.
func (finalReport Report) AbortReason() string {
	return finalReport.abortReason
}

// Duration returns the wall time of the run.
func (finalReport Report) Duration() time.Duration {
	return finalReport.finished.Sub(finalReport.started)
}

// HasFailures reports whether any project failed or the run aborted.
func (finalReport Report) HasFailures() bool {
	return finalReport.Aborted() || finalReport.Summary().Failed > 0
}
