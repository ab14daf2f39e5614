// Package taskmanager runs the document-ingest workflow (text extraction →
// world-JSON generation → optional image pipeline → record creation → user
// linkage) as a resumable background task, since the end-to-end time can
// exceed any reasonable HTTP request (spec §4.10). Grounded on the
// teradata-labs/loom scheduler (pkg/scheduler/scheduler.go), which pairs a
// robfig/cron sweep with atomic on-disk checkpoint persistence.
package taskmanager

import (
	"encoding/json"
	"time"
)

// Status is the task's persisted state; "interrupted" is a derived view
// computed at read time, never stored (spec §4.10).
type Status string

const (
	StatusPending     Status = "pending"
	StatusProcessing  Status = "processing"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
	StatusInterrupted Status = "interrupted"
)

// CreateOptions configures one ingest run.
type CreateOptions struct {
	Filename     string       `json:"filename"`
	SkipImages   bool         `json:"skipImages"`
	ImageOptions ImageOptions `json:"imageOptions"`
}

// ImageOptions mirrors imagepipeline.Options so this package does not need
// to import it directly in the public CreateOptions shape (kept local to
// avoid a hard dependency for callers that never touch images).
type ImageOptions struct {
	GenerateNPCs      bool `json:"generateNPCs"`
	GenerateScenes    bool `json:"generateScenes"`
	GenerateBuildings bool `json:"generateBuildings"`
	GenerateWorld     bool `json:"generateWorld"`
	GenerateUser      bool `json:"generateUser"`
	UpdateJSON        bool `json:"updateJSON"`
}

// Task is the whole-record JSON persisted per taskId (spec §4.10). FileBytes
// holds the raw source document and is cleared once the task reaches
// completed.
type Task struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`
	Status Status `json:"status"`

	Progress    int    `json:"progress"`
	CurrentStep string `json:"currentStep"`

	Options       CreateOptions `json:"options"`
	FileBytes     []byte        `json:"fileBytes,omitempty"`
	ExtractedText string        `json:"extractedText,omitempty"`
	FileID        string        `json:"fileId,omitempty"`
	Title         string        `json:"title,omitempty"`
	Description   string        `json:"description,omitempty"`

	Error string `json:"error,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// EffectiveStatus derives "interrupted" from a stale in-progress task
// (spec §4.10: "a task whose updatedAt is older than a staleness threshold
// while still in processing is reported as interrupted to the caller").
func (t *Task) EffectiveStatus(now time.Time, stalenessThreshold time.Duration) Status {
	if t.Status == StatusProcessing && now.Sub(t.UpdatedAt) > stalenessThreshold {
		return StatusInterrupted
	}
	return t.Status
}

// Snapshot is the externally visible view of a Task (no raw file bytes).
type Snapshot struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Status      Status    `json:"status"`
	Progress    int       `json:"progress"`
	CurrentStep string    `json:"currentStep"`
	FileID      string    `json:"fileId,omitempty"`
	Title       string    `json:"title,omitempty"`
	Description string    `json:"description,omitempty"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (t *Task) snapshot(now time.Time, stalenessThreshold time.Duration) Snapshot {
	return Snapshot{
		ID: t.ID, UserID: t.UserID, Status: t.EffectiveStatus(now, stalenessThreshold),
		Progress: t.Progress, CurrentStep: t.CurrentStep, FileID: t.FileID,
		Title: t.Title, Description: t.Description, Error: t.Error,
		CreatedAt: t.CreatedAt, UpdatedAt: t.UpdatedAt,
	}
}

// CategorizedTasks is listTasksByUser's return shape (spec §4.10).
type CategorizedTasks struct {
	Processing  []Snapshot `json:"processing"`
	Completed   []Snapshot `json:"completed"`
	Failed      []Snapshot `json:"failed"`
	Interrupted []Snapshot `json:"interrupted"`
}

func (t *Task) clone() *Task {
	cp := *t
	cp.FileBytes = append([]byte(nil), t.FileBytes...)
	return &cp
}

// marshalIndent is shared by the persistence layer and tests wanting a
// human-diffable checkpoint file.
func marshalIndent(v any) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}
