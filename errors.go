// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package a2a

import (
	"errors"
	"fmt"
)

// JSON-RPC error codes used by the A2A protocol.
const (
	ErrorCodeJSONParse                    = -32700
	ErrorCodeInvalidRequest               = -32600
	ErrorCodeMethodNotFound               = -32601
	ErrorCodeInvalidParams                = -32602
	ErrorCodeInternalError                = -32603
	ErrorCodeTaskNotFound                 = -32001
	ErrorCodeTaskNotCancelable            = -32002
	ErrorCodePushNotificationNotSupported = -32003
	ErrorCodeUnsupportedOperation         = -32004
	ErrorCodeContentTypeNotSupported      = -32005
)

// Error is a protocol error that carries a JSON-RPC code.
type Error interface {
	error
	Code() int
}

// TaskNotFoundError is returned when a task id does not resolve to a stored task
// or to a running execution.
type TaskNotFoundError struct {
	TaskID string
}

var _ Error = (*TaskNotFoundError)(nil)

func (e *TaskNotFoundError) Error() string {
	return fmt.Sprintf("task %s was specified but does not exist", e.TaskID)
}

// Code returns [ErrorCodeTaskNotFound].
func (e *TaskNotFoundError) Code() int { return ErrorCodeTaskNotFound }

// Is implements error matching for TaskNotFoundError.
func (e *TaskNotFoundError) Is(target error) bool {
	_, ok := target.(*TaskNotFoundError)
	return ok
}

// TaskNotCancelableError is returned when a cancel request did not end in the canceled state.
type TaskNotCancelableError struct {
	TaskID string
	State  TaskState
}

var _ Error = (*TaskNotCancelableError)(nil)

func (e *TaskNotCancelableError) Error() string {
	if e.State != "" {
		return fmt.Sprintf("task %s cannot be canceled: ended in state %s", e.TaskID, e.State)
	}
	return fmt.Sprintf("task %s cannot be canceled", e.TaskID)
}

// Code returns [ErrorCodeTaskNotCancelable].
func (e *TaskNotCancelableError) Code() int { return ErrorCodeTaskNotCancelable }

// Is implements error matching for TaskNotCancelableError.
func (e *TaskNotCancelableError) Is(target error) bool {
	_, ok := target.(*TaskNotCancelableError)
	return ok
}

// TaskInTerminalStateError is returned when a request would continue, cancel or
// subscribe to a task that already reached a terminal state.
type TaskInTerminalStateError struct {
	TaskID string
	State  TaskState
}

var _ Error = (*TaskInTerminalStateError)(nil)

func (e *TaskInTerminalStateError) Error() string {
	return fmt.Sprintf("task %s is in terminal state: %s", e.TaskID, e.State)
}

// Code returns [ErrorCodeInvalidParams].
func (e *TaskInTerminalStateError) Code() int { return ErrorCodeInvalidParams }

// Is implements error matching for TaskInTerminalStateError.
func (e *TaskInTerminalStateError) Is(target error) bool {
	_, ok := target.(*TaskInTerminalStateError)
	return ok
}

// InvalidParamsError reports malformed request parameters.
type InvalidParamsError struct {
	Reason string
}

var _ Error = (*InvalidParamsError)(nil)

func (e *InvalidParamsError) Error() string {
	return "invalid params: " + e.Reason
}

// Code returns [ErrorCodeInvalidParams].
func (e *InvalidParamsError) Code() int { return ErrorCodeInvalidParams }

// Is implements error matching for InvalidParamsError.
func (e *InvalidParamsError) Is(target error) bool {
	_, ok := target.(*InvalidParamsError)
	return ok
}

// UnsupportedOperationError is the default answer of methods without required behavior.
type UnsupportedOperationError struct {
	Operation string
}

var _ Error = (*UnsupportedOperationError)(nil)

func (e *UnsupportedOperationError) Error() string {
	if e.Operation == "" {
		return "this operation is not supported"
	}
	return fmt.Sprintf("operation %s is not supported", e.Operation)
}

// Code returns [ErrorCodeUnsupportedOperation].
func (e *UnsupportedOperationError) Code() int { return ErrorCodeUnsupportedOperation }

// Is implements error matching for UnsupportedOperationError.
func (e *UnsupportedOperationError) Is(target error) bool {
	_, ok := target.(*UnsupportedOperationError)
	return ok
}

// InternalError wraps an unexpected failure inside the runtime.
type InternalError struct {
	Reason string
	Err    error
}

var _ Error = (*InternalError)(nil)

func (e *InternalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("internal error: %s: %v", e.Reason, e.Err)
	}
	return "internal error: " + e.Reason
}

// Code returns [ErrorCodeInternalError].
func (e *InternalError) Code() int { return ErrorCodeInternalError }

// Unwrap returns the underlying cause.
func (e *InternalError) Unwrap() error { return e.Err }

// IsTaskNotFoundError reports whether err is or wraps a [*TaskNotFoundError].
func IsTaskNotFoundError(err error) bool {
	var target *TaskNotFoundError
	return errors.As(err, &target)
}

// IsTaskNotCancelableError reports whether err is or wraps a [*TaskNotCancelableError].
func IsTaskNotCancelableError(err error) bool {
	var target *TaskNotCancelableError
	return errors.As(err, &target)
}

// IsTaskInTerminalStateError reports whether err is or wraps a [*TaskInTerminalStateError].
func IsTaskInTerminalStateError(err error) bool {
	var target *TaskInTerminalStateError
	return errors.As(err, &target)
}

// IsUnsupportedOperationError reports whether err is or wraps a [*UnsupportedOperationError].
func IsUnsupportedOperationError(err error) bool {
	var target *UnsupportedOperationError
	return errors.As(err, &target)
}

// CodeOf returns the JSON-RPC code carried by err, or [ErrorCodeInternalError].
func CodeOf(err error) int {
	var e Error
	if errors.As(err, &e) {
		return e.Code()
	}
	return ErrorCodeInternalError
}
