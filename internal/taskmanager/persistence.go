package taskmanager

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"llmrpg/internal/apperr"
)

// writeTaskAtomic persists task as {taskDir}/{taskId}.json via
// write-temp-then-rename, the same discipline as the Game Data Store
// (internal/store.writeJSONAtomic) so a crash mid-write never leaves a
// torn checkpoint file behind.
func writeTaskAtomic(taskDir string, task *Task) error {
	if err := os.MkdirAll(taskDir, 0o755); err != nil {
		return apperr.Wrap(apperr.PersistenceFailure, "create task dir", err)
	}
	data, err := marshalIndent(task)
	if err != nil {
		return apperr.Wrap(apperr.PersistenceFailure, "encode task", err)
	}

	tmp, err := os.CreateTemp(taskDir, ".tmp-*")
	if err != nil {
		return apperr.Wrap(apperr.PersistenceFailure, "create temp checkpoint", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return apperr.Wrap(apperr.PersistenceFailure, "write temp checkpoint", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return apperr.Wrap(apperr.PersistenceFailure, "close temp checkpoint", err)
	}
	dest := taskPath(taskDir, task.ID)
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return apperr.Wrap(apperr.PersistenceFailure, "rename checkpoint", err)
	}
	return nil
}

func taskPath(taskDir, taskID string) string {
	return filepath.Join(taskDir, taskID+".json")
}

func readTask(taskDir, taskID string) (*Task, error) {
	data, err := os.ReadFile(taskPath(taskDir, taskID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperr.Wrap(apperr.NotFound, "task not found: "+taskID, err)
		}
		return nil, apperr.Wrap(apperr.PersistenceFailure, "read task", err)
	}
	var t Task
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, apperr.Wrap(apperr.PersistenceFailure, "decode task", err)
	}
	return &t, nil
}

// listTaskIDs scans taskDir for persisted task checkpoint files.
func listTaskIDs(taskDir string) ([]string, error) {
	entries, err := os.ReadDir(taskDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, apperr.Wrap(apperr.PersistenceFailure, "list task dir", err)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(e.Name(), ".json"))
	}
	return ids, nil
}

func deleteTask(taskDir, taskID string) error {
	err := os.Remove(taskPath(taskDir, taskID))
	if err != nil && !os.IsNotExist(err) {
		return apperr.Wrap(apperr.PersistenceFailure, "delete task", err)
	}
	return nil
}
