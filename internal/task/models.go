package task

import (
	"time"
)

// Status represents the lifecycle of a task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusReady      Status = "ready"
	StatusError      Status = "error"
)

var allStatuses = []Status{
	StatusPending,
	StatusProcessing,
	StatusReady,
	StatusError,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// ParseStatus validates a raw status string.
func ParseStatus(value string) (Status, bool) {
	status := Status(value)
	_, ok := statusSet[status]
	return status, ok
}

// Step identifies one stage of the fixed pipeline sequence.
type Step string

const (
	StepParse     Step = "parse"
	StepSubtitles Step = "subtitles"
	StepDub       Step = "dub"
	StepPack      Step = "pack"
	StepPublish   Step = "publish"
)

// stepOrder is the fixed execution sequence. Indexes are used to enforce the
// forward-only invariant on Task.LastStep.
var stepOrder = []Step{
	StepParse,
	StepSubtitles,
	StepDub,
	StepPack,
	StepPublish,
}

// Steps returns the pipeline stages in execution order.
func Steps() []Step {
	out := make([]Step, len(stepOrder))
	copy(out, stepOrder)
	return out
}

// StepIndex reports the position of a step in the pipeline sequence, or -1
// for unknown steps (including the empty step of a fresh task).
func StepIndex(step Step) int {
	for i, s := range stepOrder {
		if s == step {
			return i
		}
	}
	return -1
}

// StepState is the per-step outcome recorded on a task.
type StepState string

const (
	StepStateDone    StepState = "done"
	StepStateSkipped StepState = "skipped"
	StepStateFailed  StepState = "failed"
)

// StepRecord holds the persisted outcome of a single step: its state, the
// artifact key it produced, and the failure message when it failed.
type StepRecord struct {
	State    StepState
	Key      string
	ErrorMsg string
}

// Task is the persisted unit of work that the pipeline advances.
type Task struct {
	ID        string
	SourceURL string
	Title     string
	Platform  string
	Tenant    string
	Project   string

	Status       Status
	LastStep     Step
	ErrorReason  string
	ErrorMessage string

	// RawPath is the local workspace path of the downloaded source media.
	RawPath         string
	DurationSeconds float64
	ContentLang     string
	TargetLang      string

	PipelineConfig PipelineConfig

	Parse     StepRecord
	Subtitles StepRecord
	Dub       StepRecord
	Pack      StepRecord
	Scenes    StepRecord
	Publish   StepRecord

	// PublishURL is the externally reachable location of the published pack.
	PublishURL string
	// PublishProvider names the storage backend the pack was last published
	// to. A provider change invalidates the republish shortcut.
	PublishProvider string
	// PackHash is the content hash of the last published pack, used to make
	// publishing idempotent across repeat runs.
	PackHash string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// StepRecordFor returns a pointer to the record backing the given step.
// The scenes record is owned by the pack step and is not addressable here.
func (t *Task) StepRecordFor(step Step) *StepRecord {
	switch step {
	case StepParse:
		return &t.Parse
	case StepSubtitles:
		return &t.Subtitles
	case StepDub:
		return &t.Dub
	case StepPack:
		return &t.Pack
	case StepPublish:
		return &t.Publish
	default:
		return nil
	}
}

// ArtifactKey reports the artifact key recorded for a step, if any.
func (t *Task) ArtifactKey(step Step) string {
	if rec := t.StepRecordFor(step); rec != nil {
		return rec.Key
	}
	return ""
}

// AdvanceLastStep moves LastStep forward to the given step. Moves backward
// are ignored so the marker only ever advances along the pipeline order.
func (t *Task) AdvanceLastStep(step Step) {
	if StepIndex(step) > StepIndex(t.LastStep) {
		t.LastStep = step
	}
}

// ClearError resets the task-level error fields.
func (t *Task) ClearError() {
	t.ErrorReason = ""
	t.ErrorMessage = ""
}

// NewTaskRequest carries the caller-supplied attributes of a new task.
type NewTaskRequest struct {
	SourceURL      string
	Title          string
	Platform       string
	Tenant         string
	Project        string
	ContentLang    string
	TargetLang     string
	PipelineConfig PipelineConfig
}

// HealthSummary describes aggregated task counts per lifecycle state.
type HealthSummary struct {
	Total      int
	Pending    int
	Processing int
	Ready      int
	Errored    int
}
