// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	a2a "github.com/go-a2a/a2a-runtime"
)

// InMemoryTaskStore is an in-memory implementation of TaskStore.
// Task data is lost when the server process stops.
//
// A single RWMutex guards the whole map together with the insertion order
// used for stable pagination.
type InMemoryTaskStore struct {
	mu     sync.RWMutex
	tasks  map[string]*a2a.Task
	order  []string
	logger *slog.Logger
}

var _ TaskStore = (*InMemoryTaskStore)(nil)

// InMemoryOption configures an [InMemoryTaskStore].
type InMemoryOption func(*InMemoryTaskStore)

// WithInMemoryLogger sets the store logger.
func WithInMemoryLogger(logger *slog.Logger) InMemoryOption {
	return func(s *InMemoryTaskStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewInMemoryTaskStore creates a new InMemoryTaskStore.
func NewInMemoryTaskStore(opts ...InMemoryOption) *InMemoryTaskStore {
	s := &InMemoryTaskStore{
		tasks:  make(map[string]*a2a.Task),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save persists a deep copy of task.
func (s *InMemoryTaskStore) Save(ctx context.Context, task *a2a.Task) error {
	if task == nil {
		return fmt.Errorf("task cannot be nil")
	}
	if err := task.Validate(); err != nil {
		return NewTaskValidationError(task.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, exists := s.tasks[task.ID]
	s.tasks[task.ID] = task.Clone()
	if !exists {
		s.order = append(s.order, task.ID)
	}

	s.logger.DebugContext(ctx, "task saved", slog.String("task_id", task.ID), slog.Bool("new", !exists))
	return nil
}

// Get returns a deep copy of the stored task.
func (s *InMemoryTaskStore) Get(ctx context.Context, taskID string) (*a2a.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, ok := s.tasks[taskID]
	if !ok {
		return nil, &a2a.TaskNotFoundError{TaskID: taskID}
	}
	return task.Clone(), nil
}

// Delete removes a task from the in-memory storage.
func (s *InMemoryTaskStore) Delete(ctx context.Context, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[taskID]; !ok {
		s.logger.WarnContext(ctx, "attempted to delete non-existent task", slog.String("task_id", taskID))
		return nil
	}
	delete(s.tasks, taskID)
	s.order = slices.DeleteFunc(s.order, func(id string) bool { return id == taskID })

	s.logger.DebugContext(ctx, "task deleted", slog.String("task_id", taskID))
	return nil
}

// List implements [TaskStore].
func (s *InMemoryTaskStore) List(ctx context.Context, params *ListParams) (*ListResult, error) {
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
func (s *InMemoryTaskStore) Count(ctx context.Context, contextID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if contextID == "" {
		return int64(len(s.tasks)), nil
	}
	var n int64
	for _, t := range s.tasks {
		if t.ContextID == contextID {
			n++
		}
	}
	return n, nil
}

// Initialize is a no-op for the in-memory store.
func (s *InMemoryTaskStore) Initialize(ctx context.Context) error {
	return nil
}

// Close drops every stored task.
func (s *InMemoryTaskStore) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clear(s.tasks)
	s.order = nil
	return nil
}
