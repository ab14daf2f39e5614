package taskmanager

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"llmrpg/internal/apperr"
	"llmrpg/internal/imagepipeline"
	"llmrpg/internal/logging"
	"llmrpg/internal/store"

	"go.uber.org/zap"
)

// TextExtractor pulls plain text out of an uploaded document (spec §4.10
// "text extraction"). The concrete implementation is wired by cmd/server;
// this package only depends on the function shape.
type TextExtractor func(fileBytes []byte, filename string) (string, error)

// WorldGenerator turns extracted text into the four world documents via the
// LLM (spec §4.10 "LLM world-JSON generation").
type WorldGenerator func(ctx context.Context, extractedText string) (*store.Bundle, error)

// Config wires a Manager's dependencies and tunables.
type Config struct {
	TaskDir            string
	ObjectDir          string // stand-in "object store" for the raw source document
	StalenessThreshold time.Duration
	FailedRetention    time.Duration
	CompletedRetention time.Duration
	SweepInterval       string // standard 5-field cron expression

	Store          *store.Store
	Images         *imagepipeline.Pipeline // nil disables the image step entirely
	ExtractText    TextExtractor
	GenerateWorld  WorldGenerator
}

// Manager runs and tracks ingest tasks (spec §4.10).
type Manager struct {
	cfg Config

	mu      sync.Mutex
	inFlight map[string]context.CancelFunc

	cronEngine *cron.Cron
}

// New builds a Manager. Call Recover once at process start to resume any
// task left non-terminal by a previous process, and Start to begin the
// periodic staleness/retention sweep.
func New(cfg Config) *Manager {
	if cfg.StalenessThreshold <= 0 {
		cfg.StalenessThreshold = 30 * time.Minute
	}
	if cfg.FailedRetention <= 0 {
		cfg.FailedRetention = 2 * time.Hour
	}
	if cfg.CompletedRetention <= 0 {
		cfg.CompletedRetention = 24 * time.Hour
	}
	return &Manager{cfg: cfg, inFlight: make(map[string]context.CancelFunc)}
}

// CreateTask persists a new pending task and launches its workflow on an
// independent goroutine, returning immediately with the taskId (spec §4.10).
func (m *Manager) CreateTask(userID string, fileBytes []byte, opts CreateOptions) (string, error) {
	now := time.Now()
	task := &Task{
		ID: uuid.NewString(), UserID: userID, Status: StatusPending,
		Progress: 0, CurrentStep: "queued", Options: opts, FileBytes: fileBytes,
		CreatedAt: now, UpdatedAt: now,
	}
	if err := writeTaskAtomic(m.cfg.TaskDir, task); err != nil {
		return "", err
	}
	m.launch(task)
	return task.ID, nil
}

// GetTask returns the current snapshot for taskId, with status "interrupted"
// derived for a stale in-process task (spec §4.10).
func (m *Manager) GetTask(taskID string) (*Snapshot, error) {
	task, err := readTask(m.cfg.TaskDir, taskID)
	if err != nil {
		return nil, err
	}
	snap := task.snapshot(time.Now(), m.cfg.StalenessThreshold)
	return &snap, nil
}

// ResumeTask re-launches the workflow for a task currently reported as
// interrupted or failed, continuing from its last checkpoint (spec §4.10:
// "only allowed from interrupted or failed").
func (m *Manager) ResumeTask(taskID string) error {
	task, err := readTask(m.cfg.TaskDir, taskID)
	if err != nil {
		return err
	}
	eff := task.EffectiveStatus(time.Now(), m.cfg.StalenessThreshold)
	if eff != StatusInterrupted && eff != StatusFailed {
		return apperr.New(apperr.ValidationFailure, "task not resumable from status: "+string(eff))
	}
	task.Status = StatusProcessing
	task.Error = ""
	task.UpdatedAt = time.Now()
	if err := writeTaskAtomic(m.cfg.TaskDir, task); err != nil {
		return err
	}
	m.launch(task)
	return nil
}

// ListTasksByUser categorizes every persisted task belonging to userId
// (spec §4.10).
func (m *Manager) ListTasksByUser(userID string) (*CategorizedTasks, error) {
	ids, err := listTaskIDs(m.cfg.TaskDir)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	cat := &CategorizedTasks{}
	for _, id := range ids {
		task, err := readTask(m.cfg.TaskDir, id)
		if err != nil || task.UserID != userID {
			continue
		}
		snap := task.snapshot(now, m.cfg.StalenessThreshold)
		switch snap.Status {
		case StatusProcessing:
			cat.Processing = append(cat.Processing, snap)
		case StatusCompleted:
			cat.Completed = append(cat.Completed, snap)
		case StatusFailed:
			cat.Failed = append(cat.Failed, snap)
		case StatusInterrupted:
			cat.Interrupted = append(cat.Interrupted, snap)
		}
	}
	return cat, nil
}

// Recover scans the task directory at process start and relaunches every
// task that is not in a terminal state and not yet stale, from its last
// checkpoint (spec §4.10 "for each, re-launches the workflow from its last
// persisted progress checkpoint").
func (m *Manager) Recover(ctx context.Context) error {
	ids, err := listTaskIDs(m.cfg.TaskDir)
	if err != nil {
		return apperr.Wrap(apperr.TaskRecoveryFailure, "list tasks", err)
	}
	now := time.Now()
	for _, id := range ids {
		task, err := readTask(m.cfg.TaskDir, id)
		if err != nil {
			logging.Warn("skipping unreadable task during recovery", zap.String("task_id", id), zap.Error(err))
			continue
		}
		if task.Status != StatusProcessing && task.Status != StatusPending {
			continue
		}
		if now.Sub(task.UpdatedAt) > m.cfg.StalenessThreshold {
			// stale: left interrupted for the caller to resumeTask explicitly.
			continue
		}
		m.launch(task)
	}
	return nil
}

// Start begins the periodic staleness/retention sweep on the given cron
// expression (e.g. "*/5 * * * *"), grounded on teradata-labs/loom's
// pkg/scheduler use of robfig/cron/v3.
func (m *Manager) Start() error {
	spec := m.cfg.SweepInterval
	if spec == "" {
		spec = "*/5 * * * *"
	}
	m.cronEngine = cron.New()
	if _, err := m.cronEngine.AddFunc(spec, m.sweep); err != nil {
		return err
	}
	m.cronEngine.Start()
	return nil
}

// Stop halts the sweep cron and waits for its current run to finish.
func (m *Manager) Stop() {
	if m.cronEngine != nil {
		<-m.cronEngine.Stop().Done()
	}
}

func (m *Manager) launch(task *Task) {
	ctx, cancel := context.WithCancel(context.Background())
	m.mu.Lock()
	m.inFlight[task.ID] = cancel
	m.mu.Unlock()

	go func() {
		defer func() {
			m.mu.Lock()
			delete(m.inFlight, task.ID)
			m.mu.Unlock()
		}()
		m.runWorkflow(ctx, task)
	}()
}
