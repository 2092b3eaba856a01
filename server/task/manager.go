// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	a2a "github.com/go-a2a/a2a-runtime"
)

// ManagerOption configures a [Manager].
type ManagerOption func(*Manager)

// WithManagerLogger sets the manager logger.
func WithManagerLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithApplyOptions sets the options passed to [Apply] for every event.
func WithApplyOptions(opts ...ApplyOption) ManagerOption {
	return func(m *Manager) {
		m.applyOpts = append(m.applyOpts, opts...)
	}
}

// Manager persists the events of one task through a [TaskStore].
//
// Each event is folded into the latest stored task with [Apply] and the
// result is saved before SaveEvent returns. A Manager serializes its own
// calls; one Manager should own the persistence of a given execution.
type Manager struct {
	mu             sync.Mutex
	taskID         string
	contextID      string
	store          TaskStore
	initialMessage *a2a.Message
	applyOpts      []ApplyOption
	logger         *slog.Logger
}

// NewManager creates a Manager for taskID.
//
// taskID may be empty for a task that does not exist yet; it is then taken from
// the first event. initialMessage seeds the history of a task created from an event.
func NewManager(store TaskStore, taskID, contextID string, initialMessage *a2a.Message, opts ...ManagerOption) *Manager {
	m := &Manager{
		taskID:         taskID,
		contextID:      contextID,
		store:          store,
		initialMessage: initialMessage,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.applyOpts = append([]ApplyOption{WithApplyLogger(m.logger)}, m.applyOpts...)
	return m
}

// TaskID returns the id of the managed task, empty until known.
func (m *Manager) TaskID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.taskID
}

// GetTask loads the managed task from the store.
func (m *Manager) GetTask(ctx context.Context) (*a2a.Task, error) {
	m.mu.Lock()
	taskID := m.taskID
	m.mu.Unlock()

	if taskID == "" {
		return nil, &a2a.TaskNotFoundError{}
	}
	return m.store.Get(ctx, taskID)
}

// SaveEvent folds ev into the stored task, persists the result and returns it.
func (m *Manager) SaveEvent(ctx context.Context, ev a2a.Event) (*a2a.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.taskID == "" {
		m.taskID = ev.GetTaskID()
	}
	if id := ev.GetTaskID(); id != "" && id != m.taskID {
		return nil, &MismatchError{Field: "id", Want: m.taskID, Got: id}
	}

	current, err := m.ensureTaskLocked(ctx, ev)
	if err != nil {
		return nil, err
	}

	next, err := Apply(ctx, current, ev, m.applyOpts...)
	if err != nil {
		return nil, err
	}
	if err := m.store.Save(ctx, next); err != nil {
		return nil, NewTaskStoreError("save", next.ID, err)
	}

	return next, nil
}

// ensureTaskLocked returns the stored task, or a seed task built from ev
// when none exists. It returns nil when ev is a full task snapshot.
func (m *Manager) ensureTaskLocked(ctx context.Context, ev a2a.Event) (*a2a.Task, error) {
	if m.taskID != "" {
		task, err := m.store.Get(ctx, m.taskID)
		switch {
		case err == nil:
			return task, nil
		case !a2a.IsTaskNotFoundError(err):
			return nil, NewTaskStoreError("get", m.taskID, err)
		}
	}

	// A full snapshot needs no seed task.
	if _, ok := ev.(*a2a.Task); ok {
		return nil, nil
	}
	if m.taskID == "" {
		return nil, fmt.Errorf("cannot create a task from a %s event without a task id", ev.EventKind())
	}

	contextID := m.contextID
	if e, ok := ev.(*a2a.TaskStatusUpdateEvent); ok && e.ContextID != "" {
		contextID = e.ContextID
	}
	if e, ok := ev.(*a2a.TaskArtifactUpdateEvent); ok && e.ContextID != "" {
		contextID = e.ContextID
	}

	task := &a2a.Task{
		Kind:      a2a.TaskEventKind,
		ID:        m.taskID,
		ContextID: contextID,
		Status: a2a.TaskStatus{
			State:     a2a.TaskStateSubmitted,
			Timestamp: a2a.Now(),
		},
	}
	if m.initialMessage != nil {
		task.History = []*a2a.Message{m.initialMessage.Clone()}
	}
	m.logger.InfoContext(ctx, "task created from event",
		slog.String("task_id", task.ID),
		slog.String("context_id", task.ContextID),
		slog.String("kind", ev.EventKind()),
	)

	return task, nil
}

// UpdateWithMessage returns a copy of task where the current status message was
// moved into history and msg appended after it.
func (m *Manager) UpdateWithMessage(msg *a2a.Message, task *a2a.Task) *a2a.Task {
	return UpdateWithMessage(msg, task)
}

// UpdateWithMessage returns a copy of task where the current status message was
// moved into history and msg appended after it.
func UpdateWithMessage(msg *a2a.Message, task *a2a.Task) *a2a.Task {
	out := task.Clone()
	if out.Status.Message != nil {
		out.History = append(out.History, out.Status.Message)
		out.Status.Message = nil
	}
	out.History = append(out.History, msg.Clone())
	return out
}
