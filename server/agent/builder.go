// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	a2a "github.com/go-a2a/a2a-runtime"
	"github.com/go-a2a/a2a-runtime/server"
	"github.com/go-a2a/a2a-runtime/server/task"
)

// RequestContextBuilder builds the [RequestContext] handed to an [Executor].
type RequestContextBuilder interface {
	// Build creates a RequestContext for params. current is the stored task the
	// message continues, or nil for a new task.
	Build(ctx context.Context, params *a2a.MessageSendParams, current *a2a.Task, callContext *server.CallContext) (*RequestContext, error)
}

// BuilderOption configures a [SimpleRequestContextBuilder].
type BuilderOption func(*SimpleRequestContextBuilder)

// WithRelatedTasks loads every task referenced by the message from store.
func WithRelatedTasks(store task.TaskStore) BuilderOption {
	return func(b *SimpleRequestContextBuilder) {
		b.store = store
	}
}

// WithBuilderLogger sets the logger of the builder.
func WithBuilderLogger(logger *slog.Logger) BuilderOption {
	return func(b *SimpleRequestContextBuilder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// SimpleRequestContextBuilder is the default [RequestContextBuilder].
//
// Task and context ids come from the current task, then from the message,
// and are generated when neither carries them.
type SimpleRequestContextBuilder struct {
	store  task.TaskStore
	logger *slog.Logger
}

var _ RequestContextBuilder = (*SimpleRequestContextBuilder)(nil)

// NewSimpleRequestContextBuilder creates a new SimpleRequestContextBuilder.
func NewSimpleRequestContextBuilder(opts ...BuilderOption) *SimpleRequestContextBuilder {
	b := &SimpleRequestContextBuilder{
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// PopulatesRelatedTasks reports whether the builder loads referenced tasks.
func (b *SimpleRequestContextBuilder) PopulatesRelatedTasks() bool {
	return b.store != nil
}

// Build implements [RequestContextBuilder].
func (b *SimpleRequestContextBuilder) Build(ctx context.Context, params *a2a.MessageSendParams, current *a2a.Task, callContext *server.CallContext) (*RequestContext, error) {
	if params == nil {
		return nil, errors.New("message send params cannot be nil")
	}
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid message send params: %w", err)
	}
	if callContext == nil {
		callContext = server.NewCallContext(nil, params.Message.Extensions...)
	}

	rc := &RequestContext{
		Message:       params.Message,
		Task:          current,
		Configuration: params.Configuration,
		Metadata:      params.Metadata,
		CallContext:   callContext,
	}
	switch {
	case current != nil:
		rc.TaskID, rc.ContextID = current.ID, current.ContextID
	default:
		rc.TaskID, rc.ContextID = params.Message.TaskID, params.Message.ContextID
	}
	if rc.TaskID == "" {
		rc.TaskID = uuid.NewString()
	}
	if rc.ContextID == "" {
		rc.ContextID = uuid.NewString()
	}

	if b.store != nil {
		for _, id := range params.Message.ReferenceTaskIDs {
			related, err := b.store.Get(ctx, id)
			if err != nil {
				if a2a.IsTaskNotFoundError(err) {
					b.logger.DebugContext(ctx, "referenced task not found", slog.String("task_id", rc.TaskID), slog.String("reference_task_id", id))
					continue
				}
				return nil, fmt.Errorf("failed to populate related task %s: %w", id, err)
			}
			rc.AttachRelatedTask(related)
		}
	}

	if err := rc.Validate(); err != nil {
		return nil, fmt.Errorf("built request context is invalid: %w", err)
	}
	return rc, nil
}
