// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package event

import (
	"errors"
	"fmt"
)

var (
	// ErrQueueClosed is returned by [Subscription.Recv] once the queue is closed and drained.
	ErrQueueClosed = errors.New("queue is closed")

	// ErrQueueEmpty is returned by [Subscription.TryRecv] when no event is buffered.
	ErrQueueEmpty = errors.New("queue is empty")

	// ErrInvalidEvent is returned when publishing a nil event.
	ErrInvalidEvent = errors.New("invalid event")
)

// NoSuchQueueError is returned when no queue is registered for a task id.
type NoSuchQueueError struct {
	TaskID string
}

func (e *NoSuchQueueError) Error() string {
	return fmt.Sprintf("no queue registered for task %s", e.TaskID)
}

// Is implements error matching for NoSuchQueueError.
func (e *NoSuchQueueError) Is(target error) bool {
	_, ok := target.(*NoSuchQueueError)
	return ok
}

// QueueExistsError is returned when registering a second queue for a task id.
// It signals two concurrent executions of the same task.
type QueueExistsError struct {
	TaskID string
}

func (e *QueueExistsError) Error() string {
	return fmt.Sprintf("queue already exists for task %s", e.TaskID)
}

// Is implements error matching for QueueExistsError.
func (e *QueueExistsError) Is(target error) bool {
	_, ok := target.(*QueueExistsError)
	return ok
}

// IsNoSuchQueueError reports whether err is or wraps a [*NoSuchQueueError].
func IsNoSuchQueueError(err error) bool {
	var target *NoSuchQueueError
	return errors.As(err, &target)
}

// IsQueueExistsError reports whether err is or wraps a [*QueueExistsError].
func IsQueueExistsError(err error) bool {
	var target *QueueExistsError
	return errors.As(err, &target)
}
