package catalog_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"misophonia/internal/catalog"
	"misophonia/internal/testsupport"
)

func openStore(t *testing.T) *catalog.Store {
	t.Helper()
	store, err := catalog.Open(testsupport.NewConfig(t))
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRunLifecycle(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	run, err := store.StartRun(ctx, catalog.Run{
		Dataset:   "unit",
		Split:     "train",
		Seed:      42,
		Requested: 10,
		Sources:   []string{"esc50", "foams"},
		Renderer:  "synthetic",
		OutputDir: "/tmp/unit/train",
	})
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	if run.ID == "" || run.Status != catalog.StatusRunning {
		t.Fatalf("unexpected run %+v", run)
	}

	if err := store.FinishRun(ctx, run.ID, catalog.Outcome{
		Status:       catalog.StatusCompleted,
		ItemsTotal:   10,
		ItemsWritten: 10,
		TriggerItems: 5,
	}); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	got, err := store.Get(ctx, run.ID)
	if err != nil || got == nil {
		t.Fatalf("Get: %v %v", got, err)
	}
	if got.Status != catalog.StatusCompleted || got.ItemsWritten != 10 || got.TriggerItems != 5 {
		t.Fatalf("unexpected stored run %+v", got)
	}
	if len(got.Sources) != 2 || got.Sources[1] != "foams" {
		t.Fatalf("sources = %v", got.Sources)
	}
	if got.FinishedAt.IsZero() || got.FinishedAt.Before(got.StartedAt) {
		t.Fatalf("timestamps %v -> %v", got.StartedAt, got.FinishedAt)
	}

	if err := store.FinishRun(ctx, run.ID, catalog.Outcome{Status: catalog.StatusFailed}); !errors.Is(err, catalog.ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning on second finish, got %v", err)
	}
	if missing, err := store.Get(ctx, "missing"); err != nil || missing != nil {
		t.Fatalf("Get(missing) = %v, %v", missing, err)
	}
}

func TestListFilters(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	for _, split := range []string{"train", "val", "train"} {
		run, err := store.StartRun(ctx, catalog.Run{Dataset: "unit", Split: split, Seed: 1})
		if err != nil {
			t.Fatalf("StartRun: %v", err)
		}
		if split == "val" {
			if err := store.FinishRun(ctx, run.ID, catalog.Outcome{Status: catalog.StatusFailed, ErrorKind: "missing_data", ErrorMessage: "boom"}); err != nil {
				t.Fatalf("FinishRun: %v", err)
			}
		}
	}

	all, err := store.List(ctx, catalog.Filter{})
	if err != nil || len(all) != 3 {
		t.Fatalf("List all = %d, %v", len(all), err)
	}
	if all[0].StartedAt.Before(all[2].StartedAt) {
		t.Fatal("runs are not newest first")
	}
	train, err := store.List(ctx, catalog.Filter{Split: "train"})
	if err != nil || len(train) != 2 {
		t.Fatalf("List train = %d, %v", len(train), err)
	}
	failed, err := store.List(ctx, catalog.Filter{Status: catalog.StatusFailed})
	if err != nil || len(failed) != 1 || failed[0].ErrorKind != "missing_data" {
		t.Fatalf("List failed = %+v, %v", failed, err)
	}
	limited, err := store.List(ctx, catalog.Filter{Limit: 1})
	if err != nil || len(limited) != 1 {
		t.Fatalf("List limit = %d, %v", len(limited), err)
	}
}

func TestMarkStale(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	run, err := store.StartRun(ctx, catalog.Run{Dataset: "unit", Split: "train"})
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	n, err := store.MarkStale(ctx, time.Hour)
	if err != nil || n != 0 {
		t.Fatalf("MarkStale(1h) = %d, %v", n, err)
	}
	time.Sleep(5 * time.Millisecond)
	n, err = store.MarkStale(ctx, time.Millisecond)
	if err != nil || n != 1 {
		t.Fatalf("MarkStale(1ms) = %d, %v", n, err)
	}
	got, err := store.Get(ctx, run.ID)
	if err != nil || got.Status != catalog.StatusInterrupted {
		t.Fatalf("status after MarkStale = %v, %v", got, err)
	}
}

func TestReopenKeepsHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")
	store, err := catalog.OpenPath(path)
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	if _, err := store.StartRun(context.Background(), catalog.Run{Dataset: "unit", Split: "train"}); err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	store, err = catalog.OpenPath(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer store.Close()
	runs, err := store.List(context.Background(), catalog.Filter{})
	if err != nil || len(runs) != 1 {
		t.Fatalf("List after reopen = %d, %v", len(runs), err)
	}
}
