// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package handler implements the protocol methods of an A2A server on top of
// an agent executor, a task store and a queue registry, plus a JSON-RPC over
// HTTP adapter exposing them.
package handler

import (
	"context"
	"iter"

	a2a "github.com/go-a2a/a2a-runtime"
)

// RequestHandler serves the A2A protocol methods.
//
// The [github.com/go-a2a/a2a-runtime/server.CallContext] of a request, when
// any, travels in ctx.
type RequestHandler interface {
	// OnMessageSend handles message/send: it runs the task until it reaches a
	// terminal or final state and returns the stored task.
	OnMessageSend(ctx context.Context, params *a2a.MessageSendParams) (*a2a.Task, error)

	// OnMessageStream handles message/stream. The first element is the task
	// snapshot, followed by every live event.
	OnMessageStream(ctx context.Context, params *a2a.MessageSendParams) iter.Seq2[a2a.Event, error]

	// OnGetTask handles tasks/get.
	OnGetTask(ctx context.Context, params *a2a.TaskQueryParams) (*a2a.Task, error)

	// OnListTasks handles tasks/list.
	OnListTasks(ctx context.Context, params *a2a.ListTasksParams) (*a2a.ListTasksResult, error)

	// OnCancelTask handles tasks/cancel.
	OnCancelTask(ctx context.Context, params *a2a.TaskIDParams) (*a2a.Task, error)

	// OnSubscribe handles tasks/subscribe.
	OnSubscribe(ctx context.Context, params *a2a.TaskIDParams) iter.Seq2[a2a.Event, error]

	// OnResubscribe handles tasks/resubscribe.
	OnResubscribe(ctx context.Context, params *a2a.TaskIDParams) iter.Seq2[a2a.Event, error]

	OnSetTaskPushNotificationConfig(ctx context.Context, params *a2a.TaskPushNotificationConfig) (*a2a.TaskPushNotificationConfig, error)
	OnGetTaskPushNotificationConfig(ctx context.Context, params *a2a.GetTaskPushNotificationConfigParams) (*a2a.TaskPushNotificationConfig, error)
	OnListTaskPushNotificationConfig(ctx context.Context, params *a2a.TaskIDParams) ([]*a2a.TaskPushNotificationConfig, error)
	OnDeleteTaskPushNotificationConfig(ctx context.Context, params *a2a.GetTaskPushNotificationConfigParams) error
}

// errSeq returns a sequence yielding err once.
func errSeq(err error) iter.Seq2[a2a.Event, error] {
	return func(yield func(a2a.Event, error) bool) {
		yield(nil, err)
	}
}
