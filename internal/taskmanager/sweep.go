package taskmanager

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"llmrpg/internal/logging"

	"go.uber.org/zap"
)

// appendUserFileID records fileID against userID in a small per-user JSON
// index under taskDir, the stand-in for "user fileIds updated" (spec §4.10)
// since this module has no external user database to call into.
func appendUserFileID(taskDir, userID, fileID string) error {
	path := filepath.Join(taskDir, "users", userID+".json")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	var ids []string
	if data, err := os.ReadFile(path); err == nil {
		_ = json.Unmarshal(data, &ids)
	}
	for _, id := range ids {
		if id == fileID {
			return nil
		}
	}
	ids = append(ids, fileID)

	data, err := marshalIndent(ids)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	tmp.Close()
	return os.Rename(tmpName, path)
}

// sweep runs on the cron schedule (spec §5 "Task Manager ... robfig/cron/v3
// sweep"): it deletes tasks past their retention window. Staleness itself
// needs no action here — EffectiveStatus derives "interrupted" on demand at
// read time; the sweep only prunes terminal tasks nobody will resume.
func (m *Manager) sweep() {
	ids, err := listTaskIDs(m.cfg.TaskDir)
	if err != nil {
		logging.Warn("sweep: list tasks failed", zap.Error(err))
		return
	}
	now := time.Now()
	for _, id := range ids {
		task, err := readTask(m.cfg.TaskDir, id)
		if err != nil {
			continue
		}
		var retention time.Duration
		switch task.Status {
		case StatusFailed:
			retention = m.cfg.FailedRetention
		case StatusCompleted:
			retention = m.cfg.CompletedRetention
		default:
			continue
		}
		if now.Sub(task.UpdatedAt) < retention {
			continue
		}
		if err := deleteTask(m.cfg.TaskDir, id); err != nil {
			logging.Warn("sweep: delete task failed", zap.String("task_id", id), zap.Error(err))
		}
	}
}
