// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	a2a "github.com/go-a2a/a2a-runtime"
)

func newFileStore(t *testing.T, dir string) *FileTaskStore {
	t.Helper()
	s, err := NewFileTaskStore(dir, WithFileStoreLogger(discardLogger), WithWatchDebounce(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewFileTaskStore() error = %v", err)
	}
	if err := s.Initialize(t.Context()); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	return s
}

func TestFileTaskStoreReopen(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	first := newFileStore(t, dir)
	for _, id := range []string{"b", "a", "c/with slash"} {
		if err := first.Save(t.Context(), storedTask(id, "c1", a2a.TaskStateWorking)); err != nil {
			t.Fatalf("Save(%q) error = %v", id, err)
		}
	}
	if err := first.Delete(t.Context(), "a"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	// stray files are ignored
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}

	second := newFileStore(t, dir)
	res, err := second.List(t.Context(), nil)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	got := taskIDs(res.Tasks)
	if len(got) != 2 || got[0] != "b" || got[1] != "c/with slash" {
		t.Errorf("List() after reopen = %v, want [b c/with slash]", got)
	}

	// a task saved after reopening sorts after the loaded ones
	if err := second.Save(t.Context(), storedTask("z", "c1", a2a.TaskStateWorking)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	res, err = second.List(t.Context(), &ListParams{PageSize: 1, PageToken: "c/with slash"})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if ids := taskIDs(res.Tasks); len(ids) != 1 || ids[0] != "z" {
		t.Errorf("List() = %v, want [z]", ids)
	}
}

func TestFileTaskStoreWatch(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	watched := newFileStore(t, dir)
	writer := newFileStore(t, dir)

	ctx, cancel := context.WithCancel(t.Context())
	changed := make(chan string, 16)
	done := make(chan error, 1)
	go func() {
		done <- watched.Watch(ctx, func(id string) { changed <- id })
	}()
	defer func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Watch() error = %v", err)
		}
	}()

	// Watch registers asynchronously; keep writing until the change is seen.
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for seen := false; !seen; {
		select {
		case id := <-changed:
			seen = id == "ext"
		case <-tick.C:
			if err := writer.Save(t.Context(), storedTask("ext", "c9", a2a.TaskStateWorking)); err != nil {
				t.Fatalf("Save() error = %v", err)
			}
		case <-deadline:
			t.Fatal("Watch() never reported the external write")
		}
	}

	got, err := watched.Get(t.Context(), "ext")
	if err != nil {
		t.Fatalf("Get() after external write error = %v", err)
	}
	if got.ContextID != "c9" {
		t.Errorf("ContextID = %q, want c9", got.ContextID)
	}

	if err := writer.Delete(t.Context(), "ext"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	timeout := time.After(5 * time.Second)
	for {
		if _, err := watched.Get(t.Context(), "ext"); a2a.IsTaskNotFoundError(err) {
			return
		}
		select {
		case <-changed:
		case <-time.After(20 * time.Millisecond):
		case <-timeout:
			t.Fatal("Watch() never dropped the removed task")
		}
	}
}
