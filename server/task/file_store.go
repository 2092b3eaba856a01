// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"

	a2a "github.com/go-a2a/a2a-runtime"
)

const fileExt = ".json"

// fileRecord is the on-disk form of one task.
type fileRecord struct {
	Seq  int64     `json:"seq"`
	Task *a2a.Task `json:"task"`
}

// FileTaskStore keeps one JSON file per task in a directory.
//
// The directory is loaded into memory by Initialize; reads are served from
// memory and every Save rewrites the task file atomically. [FileTaskStore.Watch]
// folds changes made by other processes back into memory.
type FileTaskStore struct {
	dir      string
	logger   *slog.Logger
	debounce time.Duration

	mu    sync.RWMutex
	tasks map[string]*a2a.Task
	seqs  map[string]int64
	order []string
	next  int64
}

var _ TaskStore = (*FileTaskStore)(nil)

// FileStoreOption configures a [FileTaskStore].
type FileStoreOption func(*FileTaskStore)

// WithFileStoreLogger sets the store logger.
func WithFileStoreLogger(logger *slog.Logger) FileStoreOption {
	return func(s *FileTaskStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithWatchDebounce sets how long Watch coalesces bursts of file events.
func WithWatchDebounce(d time.Duration) FileStoreOption {
	return func(s *FileTaskStore) {
		if d > 0 {
			s.debounce = d
		}
	}
}

// NewFileTaskStore creates a store rooted at dir. Call Initialize before use.
func NewFileTaskStore(dir string, opts ...FileStoreOption) (*FileTaskStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("directory cannot be empty")
	}
	s := &FileTaskStore{
		dir:      dir,
		logger:   slog.Default(),
		debounce: 100 * time.Millisecond,
		tasks:    make(map[string]*a2a.Task),
		seqs:     make(map[string]int64),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Dir returns the directory the store is rooted at.
func (s *FileTaskStore) Dir() string { return s.dir }

func (s *FileTaskStore) path(taskID string) string {
	return filepath.Join(s.dir, url.PathEscape(taskID)+fileExt)
}

func taskIDFromPath(path string) (string, bool) {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") || !strings.HasSuffix(name, fileExt) {
		return "", false
	}
	id, err := url.PathUnescape(strings.TrimSuffix(name, fileExt))
	if err != nil {
		return "", false
	}
	return id, true
}

// Initialize creates the directory and loads every stored task.
func (s *FileTaskStore) Initialize(ctx context.Context) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return NewTaskStoreError("initialize", "", err)
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return NewTaskStoreError("initialize", "", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	clear(s.tasks)
	clear(s.seqs)
	s.order = s.order[:0]
	s.next = 0

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		if _, ok := taskIDFromPath(path); !ok {
			continue
		}
		rec, err := readRecord(path)
		if err != nil {
			s.logger.WarnContext(ctx, "skipping unreadable task file", slog.String("path", path), slog.Any("error", err))
			continue
		}
		s.tasks[rec.Task.ID] = rec.Task
		s.seqs[rec.Task.ID] = rec.Seq
		s.order = append(s.order, rec.Task.ID)
		s.next = max(s.next, rec.Seq)
	}
	s.sortOrderLocked()

	s.logger.DebugContext(ctx, "file task store loaded", slog.String("dir", s.dir), slog.Int("tasks", len(s.tasks)))
	return nil
}

func (s *FileTaskStore) sortOrderLocked() {
	slices.SortStableFunc(s.order, func(a, b string) int {
		return cmp.Or(cmp.Compare(s.seqs[a], s.seqs[b]), strings.Compare(a, b))
	})
}

func readRecord(path string) (*fileRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rec fileRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	if rec.Task == nil {
		return nil, fmt.Errorf("no task in %s", path)
	}
	if err := rec.Task.Validate(); err != nil {
		return nil, err
	}
	return &rec, nil
}

// writeRecord writes rec next to path and renames it into place.
func writeRecord(path string, rec *fileRecord) error {
	data, err := json.Marshal(rec, jsontext.WithIndent("  "))
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".task-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Save writes the task file and updates memory.
func (s *FileTaskStore) Save(ctx context.Context, task *a2a.Task) error {
	if task == nil {
		return fmt.Errorf("task cannot be nil")
	}
	if err := task.Validate(); err != nil {
		return NewTaskValidationError(task.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seq, exists := s.seqs[task.ID]
	if !exists {
		seq = s.next + 1
	}
	stored := task.Clone()
	if err := writeRecord(s.path(task.ID), &fileRecord{Seq: seq, Task: stored}); err != nil {
		return NewTaskStoreError("save", task.ID, err)
	}

	s.tasks[task.ID] = stored
	if !exists {
		s.seqs[task.ID] = seq
		s.next = seq
		s.order = append(s.order, task.ID)
	}
	return nil
}

// Get returns a deep copy of the stored task.
func (s *FileTaskStore) Get(ctx context.Context, taskID string) (*a2a.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, ok := s.tasks[taskID]
	if !ok {
		return nil, &a2a.TaskNotFoundError{TaskID: taskID}
	}
	return task.Clone(), nil
}

// Delete removes the task file.
func (s *FileTaskStore) Delete(ctx context.Context, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(taskID)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return NewTaskStoreError("delete", taskID, err)
	}
	if _, ok := s.tasks[taskID]; !ok {
		s.logger.WarnContext(ctx, "attempted to delete non-existent task", slog.String("task_id", taskID))
		return nil
	}
	s.forgetLocked(taskID)
	return nil
}

func (s *FileTaskStore) forgetLocked(taskID string) {
	delete(s.tasks, taskID)
	delete(s.seqs, taskID)
	s.order = slices.DeleteFunc(s.order, func(id string) bool { return id == taskID })
}

// List implements [TaskStore].
func (s *FileTaskStore) List(ctx context.Context, params *ListParams) (*ListResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lookup := func(id string) (*a2a.Task, bool) {
		t, ok := s.tasks[id]
		if !ok {
			return nil, false
		}
		return t.Clone(), true
	}
	return paginate(ctx, s.logger, s.order, lookup, params), nil
}

// Count implements [TaskStore].
func (s *FileTaskStore) Count(ctx context.Context, contextID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, t := range s.tasks {
		if contextID == "" || t.ContextID == contextID {
			n++
		}
	}
	return n, nil
}

// Close drops the in-memory view. Files are left in place.
func (s *FileTaskStore) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clear(s.tasks)
	clear(s.seqs)
	s.order = nil
	return nil
}

// Watch keeps memory in sync with task files written or removed by other
// processes until ctx is done. onChange, when not nil, is called with the id of
// every task reloaded or dropped.
func (s *FileTaskStore) Watch(ctx context.Context, onChange func(taskID string)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return NewTaskStoreError("watch", "", err)
	}
	defer watcher.Close()

	if err := watcher.Add(s.dir); err != nil {
		return NewTaskStoreError("watch", "", err)
	}
	s.logger.InfoContext(ctx, "watching task directory", slog.String("dir", s.dir))

	pending := make(map[string]struct{})
	timer := time.NewTimer(s.debounce)
	timer.Stop()

	flush := func() {
		for path := range pending {
			if id, changed := s.reload(ctx, path); changed && onChange != nil {
				onChange(id)
			}
		}
		clear(pending)
	}

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			flush()
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write) {
				continue
			}
			if _, ok := taskIDFromPath(ev.Name); !ok {
				continue
			}
			pending[ev.Name] = struct{}{}
			timer.Reset(s.debounce)

		case <-timer.C:
			flush()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.WarnContext(ctx, "task directory watch error", slog.Any("error", err))
		}
	}
}

// reload folds the current content of path into memory and reports whether
// anything changed.
func (s *FileTaskStore) reload(ctx context.Context, path string) (string, bool) {
	id, _ := taskIDFromPath(path)

	rec, err := readRecord(path)
	s.mu.Lock()
	defer s.mu.Unlock()

	if errors.Is(err, fs.ErrNotExist) {
		if _, ok := s.tasks[id]; !ok {
			return id, false
		}
		s.forgetLocked(id)
		s.logger.DebugContext(ctx, "task file removed", slog.String("task_id", id))
		return id, true
	}
	if err != nil {
		s.logger.WarnContext(ctx, "ignoring unreadable task file", slog.String("path", path), slog.Any("error", err))
		return id, false
	}
	if rec.Task.ID != id {
		s.logger.WarnContext(ctx, "task file name does not match task id",
			slog.String("path", path), slog.String("task_id", rec.Task.ID))
		return id, false
	}

	current, exists := s.tasks[id]
	if exists && equalTasks(current, rec.Task) {
		return id, false
	}
	s.tasks[id] = rec.Task
	if !exists {
		s.seqs[id] = rec.Seq
		s.next = max(s.next, rec.Seq)
		s.order = append(s.order, id)
		s.sortOrderLocked()
	}
	s.logger.DebugContext(ctx, "task file reloaded", slog.String("task_id", id))
	return id, true
}

func equalTasks(a, b *a2a.Task) bool {
	da, err := json.Marshal(a, json.Deterministic(true))
	if err != nil {
		return false
	}
	db, err := json.Marshal(b, json.Deterministic(true))
	if err != nil {
		return false
	}
	return string(da) == string(db)
}
