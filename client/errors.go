// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"fmt"
	"net/http"

	a2a "github.com/go-a2a/a2a-runtime"
	"github.com/go-a2a/a2a-runtime/internal/jsonrpc2"
)

// RPCError is an error returned by the agent in a JSON-RPC response.
//
// It unwraps to the matching protocol error of the a2a package, so helpers
// such as [a2a.IsTaskNotFoundError] apply to it.
type RPCError struct {
	Code    int
	Message string

	cause error
}

func newRPCError(e *jsonrpc2.Error) *RPCError {
	rerr := &RPCError{Code: int(e.Code), Message: e.Message}
	switch rerr.Code {
	case a2a.ErrorCodeTaskNotFound:
		rerr.cause = &a2a.TaskNotFoundError{}
	case a2a.ErrorCodeTaskNotCancelable:
		rerr.cause = &a2a.TaskNotCancelableError{}
	case a2a.ErrorCodeUnsupportedOperation, a2a.ErrorCodePushNotificationNotSupported:
		rerr.cause = &a2a.UnsupportedOperationError{}
	case a2a.ErrorCodeInvalidParams:
		rerr.cause = &a2a.InvalidParamsError{Reason: e.Message}
	case a2a.ErrorCodeInternalError:
		rerr.cause = &a2a.InternalError{Reason: e.Message}
	}
	return rerr
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error: code = %d, message = %s", e.Code, e.Message)
}

// Unwrap returns the protocol error matching the code, if any.
func (e *RPCError) Unwrap() error { return e.cause }

// HTTPError reports a non-200 response of the agent endpoint.
type HTTPError struct {
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("unexpected HTTP status %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}
