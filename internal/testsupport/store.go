package testsupport

import (
	"context"
	"testing"

	"dubflow/internal/config"
	"dubflow/internal/task"
)

// MustOpenStore opens a task.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *task.Store {
	t.Helper()

	store, err := task.Open(cfg)
	if err != nil {
		t.Fatalf("task.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewTask creates a pending task for tests using the provided store.
func NewTask(t testing.TB, store *task.Store, sourceURL string) *task.Task {
	t.Helper()

	created, err := store.Create(context.Background(), task.NewTaskRequest{SourceURL: sourceURL})
	if err != nil {
		t.Fatalf("store.Create: %v", err)
	}
	return created
}
