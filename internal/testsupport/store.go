package testsupport

import (
	"context"
	"testing"

	"voiceover/internal/config"
	"voiceover/internal/runstore"
)

// MustOpenStore opens a runstore.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *runstore.Store {
	t.Helper()

	store, err := runstore.Open(cfg)
	if err != nil {
		t.Fatalf("runstore.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// BeginRun inserts a running batch run for tests.
func BeginRun(t testing.TB, store *runstore.Store, clipsDir string) runstore.Run {
	t.Helper()

	run, err := store.BeginRun(context.Background(), runstore.Run{ClipsDir: clipsDir})
	if err != nil {
		t.Fatalf("store.BeginRun: %v", err)
	}
	return run
}
