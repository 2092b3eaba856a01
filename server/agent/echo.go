// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"context"
	"log/slog"
	"time"

	a2a "github.com/go-a2a/a2a-runtime"
	"github.com/go-a2a/a2a-runtime/server/event"
	"github.com/go-a2a/a2a-runtime/server/task"
)

// EchoOption configures an [EchoExecutor].
type EchoOption func(*EchoExecutor)

// WithEchoDelay makes the executor wait d before answering.
func WithEchoDelay(d time.Duration) EchoOption {
	return func(e *EchoExecutor) {
		e.delay = d
	}
}

// WithEchoPrefix sets the text prepended to the echoed input.
func WithEchoPrefix(prefix string) EchoOption {
	return func(e *EchoExecutor) {
		e.prefix = prefix
	}
}

// WithEchoLogger sets the logger of the executor.
func WithEchoLogger(logger *slog.Logger) EchoOption {
	return func(e *EchoExecutor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// EchoExecutor answers every message with an artifact holding the user's text.
type EchoExecutor struct {
	delay  time.Duration
	prefix string
	logger *slog.Logger
}

var _ Executor = (*EchoExecutor)(nil)

// NewEchoExecutor returns an [EchoExecutor].
func NewEchoExecutor(opts ...EchoOption) *EchoExecutor {
	e := &EchoExecutor{
		prefix: "echo: ",
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Execute implements [Executor].
func (e *EchoExecutor) Execute(ctx context.Context, reqCtx *RequestContext, queue *event.Queue) error {
	updater, err := task.NewUpdater(queue, reqCtx.TaskID, reqCtx.ContextID, task.WithUpdaterLogger(e.logger))
	if err != nil {
		return err
	}
	if err := updater.StartWork(ctx, nil); err != nil {
		return err
	}

	if e.delay > 0 {
		timer := time.NewTimer(e.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	text := e.prefix + reqCtx.UserInput("\n")
	if err := updater.AddArtifact(ctx, []a2a.Part{a2a.NewTextPart(text)}, task.ArtifactName("echo"), task.ArtifactLastChunk(true)); err != nil {
		return err
	}
	return updater.Complete(ctx, nil)
}

// Cancel implements [Executor].
func (e *EchoExecutor) Cancel(ctx context.Context, reqCtx *RequestContext, queue *event.Queue) error {
	updater, err := task.NewUpdater(queue, reqCtx.TaskID, reqCtx.ContextID, task.WithUpdaterLogger(e.logger))
	if err != nil {
		return err
	}
	e.logger.InfoContext(ctx, "canceling echo task", slog.String("task_id", reqCtx.TaskID))
	return updater.Cancel(ctx, nil)
}
