package taskmanager_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llmrpg/internal/store"
	"llmrpg/internal/taskmanager"
)

func fakeWorldGenerator(ctx context.Context, text string) (*store.Bundle, error) {
	lore := &store.Lore{Title: "Generated World", Background: []string{"A land shaped by " + text}}
	player := &store.Player{}
	return &store.Bundle{Lore: lore, Player: player, Items: store.ItemsCatalog{}, Scenes: store.Scenes{}}, nil
}

func fakeExtractor(fileBytes []byte, filename string) (string, error) {
	return string(fileBytes), nil
}

func newManager(t *testing.T) *taskmanager.Manager {
	t.Helper()
	st, err := store.New(t.TempDir())
	require.NoError(t, err)

	cfg := taskmanager.Config{
		TaskDir:            t.TempDir(),
		ObjectDir:          t.TempDir(),
		StalenessThreshold: 30 * time.Minute,
		FailedRetention:    2 * time.Hour,
		CompletedRetention: 24 * time.Hour,
		Store:              st,
		ExtractText:        fakeExtractor,
		GenerateWorld:      fakeWorldGenerator,
	}
	return taskmanager.New(cfg)
}

func waitForTerminal(t *testing.T, m *taskmanager.Manager, taskID string) *taskmanager.Snapshot {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		snap, err := m.GetTask(taskID)
		require.NoError(t, err)
		if snap.Status == taskmanager.StatusCompleted || snap.Status == taskmanager.StatusFailed {
			return snap
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("task did not reach a terminal state in time")
	return nil
}

func TestCreateTask_RunsToCompletion(t *testing.T) {
	m := newManager(t)

	taskID, err := m.CreateTask("user1", []byte("ancient ruins"), taskmanager.CreateOptions{Filename: "lore.txt", SkipImages: true})
	require.NoError(t, err)

	snap := waitForTerminal(t, m, taskID)
	assert.Equal(t, taskmanager.StatusCompleted, snap.Status)
	assert.Equal(t, 100, snap.Progress)
	assert.NotEmpty(t, snap.FileID)
	assert.Equal(t, "Generated World", snap.Title)
}

func TestCreateTask_MissingWorldGeneratorFails(t *testing.T) {
	st, err := store.New(t.TempDir())
	require.NoError(t, err)
	m := taskmanager.New(taskmanager.Config{
		TaskDir: t.TempDir(), Store: st, ExtractText: fakeExtractor,
	})

	taskID, err := m.CreateTask("user1", []byte("x"), taskmanager.CreateOptions{SkipImages: true})
	require.NoError(t, err)

	snap := waitForTerminal(t, m, taskID)
	assert.Equal(t, taskmanager.StatusFailed, snap.Status)
	assert.Contains(t, snap.Error, "world generator")
}

func TestListTasksByUser_Categorizes(t *testing.T) {
	m := newManager(t)

	id1, err := m.CreateTask("alice", []byte("a"), taskmanager.CreateOptions{SkipImages: true})
	require.NoError(t, err)
	waitForTerminal(t, m, id1)

	cat, err := m.ListTasksByUser("alice")
	require.NoError(t, err)
	assert.Len(t, cat.Completed, 1)
	assert.Empty(t, cat.Failed)

	cat2, err := m.ListTasksByUser("bob")
	require.NoError(t, err)
	assert.Empty(t, cat2.Completed)
}

func TestGetAndResumeTask_UnknownTaskFails(t *testing.T) {
	st, err := store.New(t.TempDir())
	require.NoError(t, err)
	m := taskmanager.New(taskmanager.Config{TaskDir: t.TempDir(), Store: st})

	_, err = m.GetTask("no-such-task")
	assert.Error(t, err)

	err = m.ResumeTask("no-such-task")
	assert.Error(t, err)
}

func TestEffectiveStatus_StaleProcessingReportsInterrupted(t *testing.T) {
	task := &taskmanager.Task{Status: taskmanager.StatusProcessing, UpdatedAt: time.Now().Add(-time.Hour)}
	eff := task.EffectiveStatus(time.Now(), 30*time.Minute)
	assert.Equal(t, taskmanager.StatusInterrupted, eff)
}
