// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package a2a

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorCodes(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		err      error
		wantCode int
		wantMsg  string
	}{
		"task not found": {
			err:      &TaskNotFoundError{TaskID: "t1"},
			wantCode: ErrorCodeTaskNotFound,
			wantMsg:  "task t1 was specified but does not exist",
		},
		"not cancelable with state": {
			err:      &TaskNotCancelableError{TaskID: "t1", State: TaskStateWorking},
			wantCode: ErrorCodeTaskNotCancelable,
			wantMsg:  "task t1 cannot be canceled: ended in state working",
		},
		"not cancelable": {
			err:      &TaskNotCancelableError{TaskID: "t1"},
			wantCode: ErrorCodeTaskNotCancelable,
			wantMsg:  "task t1 cannot be canceled",
		},
		"terminal state": {
			err:      &TaskInTerminalStateError{TaskID: "t1", State: TaskStateCompleted},
			wantCode: ErrorCodeInvalidParams,
			wantMsg:  "task t1 is in terminal state: completed",
		},
		"invalid params": {
			err:      &InvalidParamsError{Reason: "message cannot be nil"},
			wantCode: ErrorCodeInvalidParams,
			wantMsg:  "invalid params: message cannot be nil",
		},
		"unsupported named": {
			err:      &UnsupportedOperationError{Operation: "tasks/pushNotificationConfig/set"},
			wantCode: ErrorCodeUnsupportedOperation,
			wantMsg:  "operation tasks/pushNotificationConfig/set is not supported",
		},
		"unsupported": {
			err:      &UnsupportedOperationError{},
			wantCode: ErrorCodeUnsupportedOperation,
			wantMsg:  "this operation is not supported",
		},
		"internal with cause": {
			err:      &InternalError{Reason: "save task", Err: errors.New("disk full")},
			wantCode: ErrorCodeInternalError,
			wantMsg:  "internal error: save task: disk full",
		},
		"wrapped": {
			err:      fmt.Errorf("cancel: %w", &TaskNotFoundError{TaskID: "t2"}),
			wantCode: ErrorCodeTaskNotFound,
			wantMsg:  "cancel: task t2 was specified but does not exist",
		},
		"plain": {
			err:      errors.New("boom"),
			wantCode: ErrorCodeInternalError,
			wantMsg:  "boom",
		},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			if got := CodeOf(tt.err); got != tt.wantCode {
				t.Errorf("CodeOf() = %d, want %d", got, tt.wantCode)
			}
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestErrorMatching(t *testing.T) {
	t.Parallel()

	notFound := fmt.Errorf("get: %w", &TaskNotFoundError{TaskID: "t1"})
	terminal := &TaskInTerminalStateError{TaskID: "t1", State: TaskStateCanceled}
	notCancelable := &TaskNotCancelableError{TaskID: "t1"}
	unsupported := &InternalError{Reason: "push", Err: &UnsupportedOperationError{}}

	tests := map[string]struct {
		got  bool
		want bool
	}{
		"not found":                      {got: IsTaskNotFoundError(notFound), want: true},
		"not found via errors.Is":        {got: errors.Is(notFound, &TaskNotFoundError{}), want: true},
		"terminal":                       {got: IsTaskInTerminalStateError(terminal), want: true},
		"terminal is not cancelable":     {got: IsTaskNotCancelableError(terminal), want: false},
		"not cancelable":                 {got: IsTaskNotCancelableError(notCancelable), want: true},
		"not cancelable is not terminal": {got: IsTaskInTerminalStateError(notCancelable), want: false},
		"unsupported through internal":   {got: IsUnsupportedOperationError(unsupported), want: true},
		"nil":                            {got: IsTaskNotFoundError(nil), want: false},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			if tt.got != tt.want {
				t.Errorf("got %t, want %t", tt.got, tt.want)
			}
		})
	}

	if !errors.Is(unsupported, &UnsupportedOperationError{Operation: "other"}) {
		t.Error("errors.Is should match UnsupportedOperationError regardless of operation")
	}
	if errors.Unwrap(&InternalError{Reason: "x"}) != nil {
		t.Error("InternalError without cause should unwrap to nil")
	}
}
