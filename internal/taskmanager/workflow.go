package taskmanager

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"llmrpg/internal/imagepipeline"
	"llmrpg/internal/logging"
	"llmrpg/internal/store"

	"go.uber.org/zap"
)

// step is one resumable unit of the ingest workflow: percent is both its
// checkpoint value and the threshold below which it is skipped on resume
// (spec §4.10's fixed checkpoint ladder).
type step struct {
	percent int
	name    string
	run     func(ctx context.Context, m *Manager, t *Task) error
}

var workflowSteps = []step{
	{10, "init", func(ctx context.Context, m *Manager, t *Task) error { return nil }},
	{30, "text extraction begins", stepExtractText},
	{70, "extraction complete", stepAssignFileID},
	{75, "source document uploaded", stepUploadSource},
	{80, "images uploaded", stepGenerateImages},
	{85, "world-json uploaded", stepPersistWorld},
	{90, "title/description fetched", stepFetchTitle},
	{95, "database record created", stepCreateRecord},
	{98, "user fileIds updated", stepLinkUser},
}

// runWorkflow executes every step whose checkpoint has not yet been
// reached, persisting a checkpoint after each success so a crash mid-run
// resumes from the last completed step rather than the beginning.
func (m *Manager) runWorkflow(ctx context.Context, task *Task) {
	if task.Status != StatusProcessing {
		task.Status = StatusProcessing
		task.UpdatedAt = time.Now()
		if err := writeTaskAtomic(m.cfg.TaskDir, task); err != nil {
			logging.Error("persist task start", zap.String("task_id", task.ID), zap.Error(err))
			return
		}
	}

	for _, s := range workflowSteps {
		if task.Progress >= s.percent {
			continue
		}
		if err := s.run(ctx, m, task); err != nil {
			m.fail(task, s.name, err)
			return
		}
		task.Progress = s.percent
		task.CurrentStep = s.name
		task.UpdatedAt = time.Now()
		if err := writeTaskAtomic(m.cfg.TaskDir, task); err != nil {
			logging.Error("persist checkpoint", zap.String("task_id", task.ID), zap.Int("percent", s.percent), zap.Error(err))
			return
		}
	}

	task.Status = StatusCompleted
	task.Progress = 100
	task.CurrentStep = "done"
	task.FileBytes = nil
	task.UpdatedAt = time.Now()
	if err := writeTaskAtomic(m.cfg.TaskDir, task); err != nil {
		logging.Error("persist task completion", zap.String("task_id", task.ID), zap.Error(err))
	}
}

func (m *Manager) fail(task *Task, step string, cause error) {
	task.Status = StatusFailed
	task.Error = fmt.Sprintf("%s: %v", step, cause)
	task.UpdatedAt = time.Now()
	if err := writeTaskAtomic(m.cfg.TaskDir, task); err != nil {
		logging.Error("persist task failure", zap.String("task_id", task.ID), zap.Error(err))
	}
}

func stepExtractText(ctx context.Context, m *Manager, t *Task) error {
	if m.cfg.ExtractText == nil {
		return fmt.Errorf("no text extractor configured")
	}
	text, err := m.cfg.ExtractText(t.FileBytes, t.Options.Filename)
	if err != nil {
		return err
	}
	t.ExtractedText = text
	return nil
}

func stepAssignFileID(ctx context.Context, m *Manager, t *Task) error {
	if t.FileID == "" {
		t.FileID = uuid.NewString()
	}
	return nil
}

func stepUploadSource(ctx context.Context, m *Manager, t *Task) error {
	if m.cfg.ObjectDir == "" {
		return nil
	}
	if err := os.MkdirAll(m.cfg.ObjectDir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(m.cfg.ObjectDir, t.FileID), t.FileBytes, 0o644)
}

// ensureWorldPersisted generates and saves the four world documents under
// t.FileID, idempotently: the images step (80%) needs them to read scene
// data before the world-json checkpoint (85%) officially fires, and the
// world-json step calls it again in case images were skipped entirely.
func ensureWorldPersisted(ctx context.Context, m *Manager, t *Task) error {
	if m.cfg.Store.TemplateExists(t.FileID) {
		return nil
	}
	if m.cfg.GenerateWorld == nil {
		return fmt.Errorf("no world generator configured")
	}
	bundle, err := m.cfg.GenerateWorld(ctx, t.ExtractedText)
	if err != nil {
		return err
	}
	if err := m.cfg.Store.SaveTemplate(t.FileID, store.DocLore, bundle.Lore); err != nil {
		return err
	}
	if err := m.cfg.Store.SaveTemplate(t.FileID, store.DocPlayer, bundle.Player); err != nil {
		return err
	}
	if err := m.cfg.Store.SaveTemplate(t.FileID, store.DocItems, bundle.Items); err != nil {
		return err
	}
	if err := m.cfg.Store.SaveTemplate(t.FileID, store.DocScenes, bundle.Scenes); err != nil {
		return err
	}
	t.Title = bundle.Lore.Title
	if len(bundle.Lore.Background) > 0 {
		t.Description = bundle.Lore.Background[0]
	}
	return nil
}

// stepGenerateImages runs the image pipeline over the persisted world
// documents for the families selected in Options.ImageOptions. Skippable via
// Options.SkipImages (spec §4.10 "80% images uploaded (skippable)").
func stepGenerateImages(ctx context.Context, m *Manager, t *Task) error {
	if t.Options.SkipImages || m.cfg.Images == nil {
		return nil
	}
	if err := ensureWorldPersisted(ctx, m, t); err != nil {
		return err
	}
	o := t.Options.ImageOptions
	_, err := m.cfg.Images.GenerateAllGameImages(ctx, t.FileID, imagepipeline.Options{
		GenerateNPCs: o.GenerateNPCs, GenerateScenes: o.GenerateScenes,
		GenerateBuildings: o.GenerateBuildings, GenerateWorld: o.GenerateWorld,
		GenerateUser: o.GenerateUser, UpdateJSON: o.UpdateJSON,
	})
	return err
}

// stepPersistWorld marks the world-json checkpoint, generating and saving
// the four documents now if stepGenerateImages didn't already (spec §4.10
// "85% world-json uploaded").
func stepPersistWorld(ctx context.Context, m *Manager, t *Task) error {
	return ensureWorldPersisted(ctx, m, t)
}

func stepFetchTitle(ctx context.Context, m *Manager, t *Task) error {
	// Title/description were captured in ensureWorldPersisted; this
	// checkpoint simply marks the point at which they're considered fetched.
	return nil
}

func stepCreateRecord(ctx context.Context, m *Manager, t *Task) error {
	// No external database in this deployment; the world documents saved in
	// stepPersistWorld under t.FileID already constitute the durable record.
	return nil
}

func stepLinkUser(ctx context.Context, m *Manager, t *Task) error {
	if m.cfg.TaskDir == "" {
		return nil
	}
	return appendUserFileID(m.cfg.TaskDir, t.UserID, t.FileID)
}
