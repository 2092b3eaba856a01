// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package agent defines the boundary between the runtime and user supplied
// agent logic: the [Executor] interface and the [RequestContext] it receives.
package agent

import (
	"context"

	"github.com/go-a2a/a2a-runtime/server/event"
)

// Executor runs agent business logic for one task.
//
// Execute publishes the task's progress onto queue, usually through a
// [github.com/go-a2a/a2a-runtime/server/task.Updater], and returns when the
// agent is done producing events. The runtime closes the queue afterwards.
// A non-nil error that is not caused by ctx being canceled is turned into a
// final failed status event.
//
// Cancel asks a running or idle task to stop. It must publish a canceled
// status update onto queue when cancellation succeeds.
type Executor interface {
	Execute(ctx context.Context, reqCtx *RequestContext, queue *event.Queue) error
	Cancel(ctx context.Context, reqCtx *RequestContext, queue *event.Queue) error
}
