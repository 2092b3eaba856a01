// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"errors"
	"fmt"

	a2a "github.com/go-a2a/a2a-runtime"
)

// AlreadyTerminalError is returned by the [Updater] when a status transition is
// attempted after the task reached a terminal state.
type AlreadyTerminalError struct {
	TaskID    string
	Requested a2a.TaskState
}

func (e *AlreadyTerminalError) Error() string {
	return fmt.Sprintf("task %s has already reached a terminal state, cannot transition to %s", e.TaskID, e.Requested)
}

// Is implements error matching for AlreadyTerminalError.
func (e *AlreadyTerminalError) Is(target error) bool {
	_, ok := target.(*AlreadyTerminalError)
	return ok
}

// MismatchError is returned when an event does not belong to the task it is applied to.
type MismatchError struct {
	Field string
	Want  string
	Got   string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("event %s %q does not match task %s %q", e.Field, e.Got, e.Field, e.Want)
}

// Code reports the mismatch as invalid params.
func (e *MismatchError) Code() int { return a2a.ErrorCodeInvalidParams }

// Is implements error matching for MismatchError.
func (e *MismatchError) Is(target error) bool {
	_, ok := target.(*MismatchError)
	return ok
}

// UnknownArtifactError is returned in strict mode when an append targets an unknown artifact.
type UnknownArtifactError struct {
	TaskID     string
	ArtifactID string
}

func (e *UnknownArtifactError) Error() string {
	return fmt.Sprintf("append to unknown artifact %s of task %s", e.ArtifactID, e.TaskID)
}

// Is implements error matching for UnknownArtifactError.
func (e *UnknownArtifactError) Is(target error) bool {
	_, ok := target.(*UnknownArtifactError)
	return ok
}

// TaskStoreError represents an error from the task store.
type TaskStoreError struct {
	Operation string
	TaskID    string
	Err       error
}

// Error returns the error message.
func (e *TaskStoreError) Error() string {
	return fmt.Sprintf("task store %s operation failed for task %s: %v", e.Operation, e.TaskID, e.Err)
}

// Unwrap returns the underlying error.
func (e *TaskStoreError) Unwrap() error {
	return e.Err
}

// TaskValidationError represents an error when task validation fails.
type TaskValidationError struct {
	TaskID string
	Err    error
}

// Error returns the error message.
func (e *TaskValidationError) Error() string {
	return fmt.Sprintf("task %s validation failed: %v", e.TaskID, e.Err)
}

// Unwrap returns the underlying error.
func (e *TaskValidationError) Unwrap() error {
	return e.Err
}

// NewTaskStoreError creates a new TaskStoreError.
func NewTaskStoreError(operation, taskID string, err error) *TaskStoreError {
	return &TaskStoreError{
		Operation: operation,
		TaskID:    taskID,
		Err:       err,
	}
}

// NewTaskValidationError creates a new TaskValidationError.
func NewTaskValidationError(taskID string, err error) *TaskValidationError {
	return &TaskValidationError{
		TaskID: taskID,
		Err:    err,
	}
}

// IsAlreadyTerminalError reports whether err is or wraps an [*AlreadyTerminalError].
func IsAlreadyTerminalError(err error) bool {
	var target *AlreadyTerminalError
	return errors.As(err, &target)
}

// IsMismatchError reports whether err is or wraps a [*MismatchError].
func IsMismatchError(err error) bool {
	var target *MismatchError
	return errors.As(err, &target)
}
