// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package task implements task persistence, the fold of lifecycle events into
// stored tasks, and the updater executors use to publish those events.
package task

import (
	"context"
	"log/slog"
	"slices"

	a2a "github.com/go-a2a/a2a-runtime"
)

// TaskStore defines the interface for task persistence operations.
//
// Implementations must be safe for concurrent use and must not retain or
// hand out task values shared with callers.
type TaskStore interface {
	// Save persists a task, replacing any stored task with the same id.
	Save(ctx context.Context, task *a2a.Task) error

	// Get retrieves a task by its ID.
	// Returns *a2a.TaskNotFoundError if the task doesn't exist.
	Get(ctx context.Context, taskID string) (*a2a.Task, error)

	// Delete removes a task. Deleting an unknown task is not an error.
	Delete(ctx context.Context, taskID string) error

	// List returns the tasks matching params in insertion order.
	List(ctx context.Context, params *ListParams) (*ListResult, error)

	// Count returns the number of stored tasks, restricted to contextID when not empty.
	Count(ctx context.Context, contextID string) (int64, error)

	// Initialize prepares the storage backend for use.
	Initialize(ctx context.Context) error

	// Close releases the storage backend.
	Close(ctx context.Context) error
}

// ListParams filters and paginates [TaskStore.List].
type ListParams struct {
	// ContextID restricts the result to one conversation when not empty.
	ContextID string
	// States restricts the result to tasks in one of the states when not empty.
	States []a2a.TaskState
	// PageSize bounds the page length. Zero or negative means unbounded.
	PageSize int
	// PageToken is the id of the last task of the previous page.
	// An unknown token restarts from the beginning.
	PageToken string
}

// ListResult is one page of [TaskStore.List].
type ListResult struct {
	Tasks []*a2a.Task
	// NextPageToken is empty when no further page exists.
	NextPageToken string
}

func (p *ListParams) matches(t *a2a.Task) bool {
	if p.ContextID != "" && t.ContextID != p.ContextID {
		return false
	}
	if len(p.States) > 0 && !slices.Contains(p.States, t.Status.State) {
		return false
	}
	return true
}

// paginate walks order from the position after params.PageToken and collects
// matching tasks until the page is full. lookup returns a copy of a stored task.
func paginate(ctx context.Context, logger *slog.Logger, order []string, lookup func(id string) (*a2a.Task, bool), params *ListParams) *ListResult {
	if params == nil {
		params = &ListParams{}
	}

	start := 0
	if params.PageToken != "" {
		if pos := slices.Index(order, params.PageToken); pos >= 0 {
			start = pos + 1
		} else {
			logger.WarnContext(ctx, "invalid page token, starting from beginning",
				slog.String("page_token", params.PageToken))
		}
	}

	result := &ListResult{Tasks: []*a2a.Task{}}
	lastPos := -1
	for i := start; i < len(order); i++ {
		if params.PageSize > 0 && len(result.Tasks) >= params.PageSize {
			break
		}
		t, ok := lookup(order[i])
		if !ok || !params.matches(t) {
			continue
		}
		result.Tasks = append(result.Tasks, t)
		lastPos = i
	}

	if params.PageSize > 0 && len(result.Tasks) == params.PageSize && lastPos+1 < len(order) {
		result.NextPageToken = order[lastPos]
	}

	return result
}
