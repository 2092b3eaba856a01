// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	a2a "github.com/go-a2a/a2a-runtime"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// storeFactories builds every TaskStore implementation for the shared contract tests.
var storeFactories = map[string]func(t *testing.T) TaskStore{
	"memory": func(t *testing.T) TaskStore {
		return NewInMemoryTaskStore(WithInMemoryLogger(discardLogger))
	},
	"file": func(t *testing.T) TaskStore {
		s, err := NewFileTaskStore(t.TempDir(), WithFileStoreLogger(discardLogger))
		if err != nil {
			t.Fatalf("NewFileTaskStore() error = %v", err)
		}
		return s
	},
	"sqlite": func(t *testing.T) TaskStore {
		db, err := OpenDatabase("sqlite", filepath.Join(t.TempDir(), "tasks.db"), discardLogger)
		if err != nil {
			t.Fatalf("OpenDatabase() error = %v", err)
		}
		s, err := NewDatabaseTaskStore(DatabaseTaskStoreConfig{DB: db, CreateTable: true, Logger: discardLogger})
		if err != nil {
			t.Fatalf("NewDatabaseTaskStore() error = %v", err)
		}
		return s
	},
}

func newStore(t *testing.T, factory func(t *testing.T) TaskStore) TaskStore {
	t.Helper()
	s := factory(t)
	if err := s.Initialize(t.Context()); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	t.Cleanup(func() { s.Close(context.Background()) })
	return s
}

func storedTask(id, contextID string, state a2a.TaskState) *a2a.Task {
	return &a2a.Task{
		Kind:      a2a.TaskEventKind,
		ID:        id,
		ContextID: contextID,
		Status:    a2a.TaskStatus{State: state, Timestamp: "2025-01-01T00:00:00Z"},
		History: []*a2a.Message{
			{Kind: a2a.MessageEventKind, MessageID: "m-" + id, Role: a2a.RoleUser, Parts: []a2a.Part{a2a.NewTextPart("hello")}},
		},
		Metadata: map[string]any{"n": "v"},
	}
}

func taskIDs(tasks []*a2a.Task) []string {
	ids := make([]string, 0, len(tasks))
	for _, t := range tasks {
		ids = append(ids, t.ID)
	}
	return ids
}

var equateEmpty = cmpopts.EquateEmpty()

func TestTaskStoreSaveGet(t *testing.T) {
	t.Parallel()

	for name, factory := range storeFactories {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			s := newStore(t, factory)
			ctx := t.Context()

			task := storedTask("t1", "c1", a2a.TaskStateSubmitted)
			if err := s.Save(ctx, task); err != nil {
				t.Fatalf("Save() error = %v", err)
			}

			got, err := s.Get(ctx, "t1")
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if diff := cmp.Diff(task, got, equateEmpty); diff != "" {
				t.Errorf("Get() mismatch (-want +got):\n%s", diff)
			}

			// stored values are isolated from callers
			got.Status.State = a2a.TaskStateFailed
			task.History = nil
			again, err := s.Get(ctx, "t1")
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if again.Status.State != a2a.TaskStateSubmitted || len(again.History) != 1 {
				t.Errorf("stored task was modified through a caller copy: %+v", again)
			}

			// Save replaces
			updated := storedTask("t1", "c1", a2a.TaskStateCompleted)
			updated.Artifacts = []*a2a.Artifact{textArtifact("a1", "result")}
			if err := s.Save(ctx, updated); err != nil {
				t.Fatalf("Save() error = %v", err)
			}
			got, err = s.Get(ctx, "t1")
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if diff := cmp.Diff(updated, got, equateEmpty); diff != "" {
				t.Errorf("Get() after replace mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTaskStoreErrors(t *testing.T) {
	t.Parallel()

	for name, factory := range storeFactories {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			s := newStore(t, factory)
			ctx := t.Context()

			if _, err := s.Get(ctx, "missing"); !a2a.IsTaskNotFoundError(err) {
				t.Errorf("Get(missing) error = %v, want *a2a.TaskNotFoundError", err)
			}
			if err := s.Delete(ctx, "missing"); err != nil {
				t.Errorf("Delete(missing) error = %v, want nil", err)
			}
			if err := s.Save(ctx, nil); err == nil {
				t.Error("Save(nil) error = nil, want error")
			}
			if err := s.Save(ctx, &a2a.Task{ID: "t1"}); err == nil {
				t.Error("Save(invalid) error = nil, want error")
			}
		})
	}
}

func TestTaskStoreDelete(t *testing.T) {
	t.Parallel()

	for name, factory := range storeFactories {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			s := newStore(t, factory)
			ctx := t.Context()

			for _, id := range []string{"t1", "t2", "t3"} {
				if err := s.Save(ctx, storedTask(id, "c1", a2a.TaskStateSubmitted)); err != nil {
					t.Fatalf("Save(%s) error = %v", id, err)
				}
			}
			if err := s.Delete(ctx, "t2"); err != nil {
				t.Fatalf("Delete() error = %v", err)
			}
			if _, err := s.Get(ctx, "t2"); !a2a.IsTaskNotFoundError(err) {
				t.Errorf("Get(deleted) error = %v, want not found", err)
			}
			res, err := s.List(ctx, nil)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if diff := cmp.Diff([]string{"t1", "t3"}, taskIDs(res.Tasks)); diff != "" {
				t.Errorf("List() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTaskStoreList(t *testing.T) {
	t.Parallel()

	seed := []*a2a.Task{
		storedTask("t1", "c1", a2a.TaskStateCompleted),
		storedTask("t2", "c2", a2a.TaskStateWorking),
		storedTask("t3", "c1", a2a.TaskStateWorking),
		storedTask("t4", "c1", a2a.TaskStateFailed),
		storedTask("t5", "c2", a2a.TaskStateCompleted),
	}

	tests := map[string]struct {
		params    *ListParams
		wantIDs   []string
		wantToken bool
	}{
		"nil params lists everything in insertion order": {
			params:  nil,
			wantIDs: []string{"t1", "t2", "t3", "t4", "t5"},
		},
		"context filter": {
			params:  &ListParams{ContextID: "c1"},
			wantIDs: []string{"t1", "t3", "t4"},
		},
		"state filter": {
			params:  &ListParams{States: []a2a.TaskState{a2a.TaskStateWorking, a2a.TaskStateFailed}},
			wantIDs: []string{"t2", "t3", "t4"},
		},
		"context and state": {
			params:  &ListParams{ContextID: "c2", States: []a2a.TaskState{a2a.TaskStateCompleted}},
			wantIDs: []string{"t5"},
		},
		"first page": {
			params:    &ListParams{PageSize: 2},
			wantIDs:   []string{"t1", "t2"},
			wantToken: true,
		},
		"page after token": {
			params:    &ListParams{PageSize: 2, PageToken: "t2"},
			wantIDs:   []string{"t3", "t4"},
			wantToken: true,
		},
		"last page": {
			params:  &ListParams{PageSize: 2, PageToken: "t4"},
			wantIDs: []string{"t5"},
		},
		"unknown token restarts": {
			params:    &ListParams{PageSize: 2, PageToken: "nope"},
			wantIDs:   []string{"t1", "t2"},
			wantToken: true,
		},
		"no match": {
			params:  &ListParams{ContextID: "none"},
			wantIDs: []string{},
		},
	}

	for name, factory := range storeFactories {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			s := newStore(t, factory)
			for _, task := range seed {
				if err := s.Save(t.Context(), task); err != nil {
					t.Fatalf("Save() error = %v", err)
				}
			}
			// re-saving keeps the original position
			if err := s.Save(t.Context(), storedTask("t1", "c1", a2a.TaskStateCompleted)); err != nil {
				t.Fatalf("Save() error = %v", err)
			}

			for name, tt := range tests {
				t.Run(name, func(t *testing.T) {
					res, err := s.List(t.Context(), tt.params)
					if err != nil {
						t.Fatalf("List() error = %v", err)
					}
					if diff := cmp.Diff(tt.wantIDs, taskIDs(res.Tasks)); diff != "" {
						t.Errorf("List() ids mismatch (-want +got):\n%s", diff)
					}
					if got := res.NextPageToken != ""; got != tt.wantToken {
						t.Errorf("NextPageToken = %q, want present = %t", res.NextPageToken, tt.wantToken)
					}
					if tt.wantToken && res.NextPageToken != res.Tasks[len(res.Tasks)-1].ID {
						t.Errorf("NextPageToken = %q, want the last returned id", res.NextPageToken)
					}
				})
			}
		})
	}
}

func TestTaskStorePaginationWalk(t *testing.T) {
	t.Parallel()

	for name, factory := range storeFactories {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			s := newStore(t, factory)

			var want []string
			for i := range 7 {
				id := fmt.Sprintf("task-%02d", i)
				want = append(want, id)
				if err := s.Save(t.Context(), storedTask(id, "c1", a2a.TaskStateSubmitted)); err != nil {
					t.Fatalf("Save() error = %v", err)
				}
			}

			var got []string
			params := &ListParams{PageSize: 3}
			for pages := 0; ; pages++ {
				if pages > 5 {
					t.Fatal("pagination did not terminate")
				}
				res, err := s.List(t.Context(), params)
				if err != nil {
					t.Fatalf("List() error = %v", err)
				}
				got = append(got, taskIDs(res.Tasks)...)
				if res.NextPageToken == "" {
					break
				}
				params.PageToken = res.NextPageToken
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("paginated walk mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTaskStoreCount(t *testing.T) {
	t.Parallel()

	for name, factory := range storeFactories {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			s := newStore(t, factory)
			ctx := t.Context()

			for i, cid := range []string{"c1", "c1", "c2"} {
				if err := s.Save(ctx, storedTask(fmt.Sprintf("t%d", i), cid, a2a.TaskStateSubmitted)); err != nil {
					t.Fatalf("Save() error = %v", err)
				}
			}
			tests := map[string]int64{"": 3, "c1": 2, "c2": 1, "c3": 0}
			for cid, want := range tests {
				got, err := s.Count(ctx, cid)
				if err != nil {
					t.Fatalf("Count(%q) error = %v", cid, err)
				}
				if got != want {
					t.Errorf("Count(%q) = %d, want %d", cid, got, want)
				}
			}
		})
	}
}
