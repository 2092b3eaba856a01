// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package jsonrpc2 implements the JSON-RPC 2.0 envelope used by the A2A HTTP transport.
package jsonrpc2

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"

	"github.com/go-a2a/a2a-runtime/internal/pool"
)

// Version is the only protocol version accepted.
const Version = "2.0"

// Standard JSON-RPC error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// MaxRequestSize bounds the size of a decoded request body.
const MaxRequestSize = 4 << 20

var (
	// ErrParse is used when invalid JSON was received.
	ErrParse = NewError(CodeParseError, "JSON parse error")
	// ErrInvalidRequest is used when the JSON sent is not a valid request object.
	ErrInvalidRequest = NewError(CodeInvalidRequest, "invalid request")
	// ErrMethodNotFound is used when the method does not exist.
	ErrMethodNotFound = NewError(CodeMethodNotFound, "method not found")
	// ErrInvalidParams is used when the method parameters are invalid.
	ErrInvalidParams = NewError(CodeInvalidParams, "invalid parameters")
	// ErrInternal is used for unexpected failures.
	ErrInternal = NewError(CodeInternalError, "internal error")
)

// ID is a request id. The zero value is an absent id and encodes as null.
type ID struct {
	value any // string or int64
}

// StringID returns a string request id.
func StringID(s string) ID { return ID{value: s} }

// Int64ID returns a numeric request id.
func Int64ID(i int64) ID { return ID{value: i} }

// IsValid reports whether the id is set.
func (id ID) IsValid() bool { return id.value != nil }

// Raw returns the underlying string or int64, or nil.
func (id ID) Raw() any { return id.value }

func (id ID) String() string {
	switch v := id.value.(type) {
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return ""
	}
}

// MarshalJSON implements [json.Marshaler].
func (id ID) MarshalJSON() ([]byte, error) {
	if id.value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(id.value)
}

// UnmarshalJSON implements [json.Unmarshaler].
func (id *ID) UnmarshalJSON(data []byte) error {
	switch jsontext.Value(data).Kind() {
	case 'n':
		id.value = nil
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		id.value = s
	case '0':
		var i int64
		if err := json.Unmarshal(data, &i); err != nil {
			return fmt.Errorf("request id must be an integer: %w", err)
		}
		id.value = i
	default:
		return fmt.Errorf("invalid request id %s", data)
	}
	return nil
}

// Request is a JSON-RPC request or notification.
type Request struct {
	JSONRPC string         `json:"jsonrpc"`
	ID      ID             `json:"id"`
	Method  string         `json:"method"`
	Params  jsontext.Value `json:"params,omitzero"`
}

// UnmarshalParams decodes the request params into v.
// A decoding failure is reported as [ErrInvalidParams].
func (r *Request) UnmarshalParams(v any) error {
	if len(r.Params) == 0 {
		return fmt.Errorf("%w: params are required", ErrInvalidParams)
	}
	if err := json.Unmarshal(r.Params, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	return nil
}

// Error is a JSON-RPC error object.
type Error struct {
	Code    int64          `json:"code"`
	Message string         `json:"message"`
	Data    jsontext.Value `json:"data,omitzero"`
}

// NewError returns an error with the given code and message.
func NewError(code int64, message string) *Error {
	return &Error{Code: code, Message: message}
}

func (e *Error) Error() string {
	return e.Message
}

// Is matches errors with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Response is a JSON-RPC response carrying either a result or an error.
type Response struct {
	JSONRPC string         `json:"jsonrpc"`
	ID      ID             `json:"id"`
	Result  jsontext.Value `json:"result,omitzero"`
	Error   *Error         `json:"error,omitempty"`
}

// coder is implemented by protocol errors carrying their own JSON-RPC code.
type coder interface {
	Code() int
}

// NewResponse builds the response to id. A non-nil err takes precedence over result.
func NewResponse(id ID, result any, err error) *Response {
	resp := &Response{JSONRPC: Version, ID: id}
	if err != nil {
		resp.Error = WireError(err)
		return resp
	}

	data, merr := json.Marshal(result)
	if merr != nil {
		resp.Error = &Error{Code: CodeInternalError, Message: fmt.Sprintf("failed to encode result: %v", merr)}
		return resp
	}
	resp.Result = data
	return resp
}

// WireError converts err into a JSON-RPC error object.
func WireError(err error) *Error {
	var c coder
	if errors.As(err, &c) {
		return &Error{Code: int64(c.Code()), Message: err.Error()}
	}
	var werr *Error
	if errors.As(err, &werr) {
		return &Error{Code: werr.Code, Message: err.Error(), Data: werr.Data}
	}
	return &Error{Code: CodeInternalError, Message: err.Error()}
}

// DecodeRequest reads and validates one request from r.
func DecodeRequest(r io.Reader) (*Request, int, error) {
	buf := pool.Bytes.Get()
	defer pool.Bytes.Put(buf)

	n, err := buf.ReadFrom(io.LimitReader(r, MaxRequestSize+1))
	if err != nil {
		return nil, int(n), fmt.Errorf("%w: %v", ErrParse, err)
	}
	if n > MaxRequestSize {
		return nil, int(n), fmt.Errorf("%w: request body too large", ErrInvalidRequest)
	}

	var req Request
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &req); err != nil {
		var serr *json.SemanticError
		if errors.As(err, &serr) {
			return nil, int(n), fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		return nil, int(n), fmt.Errorf("%w: %v", ErrParse, err)
	}
	if req.JSONRPC != Version {
		return &req, int(n), fmt.Errorf("%w: jsonrpc must be %q", ErrInvalidRequest, Version)
	}
	if req.Method == "" {
		return &req, int(n), fmt.Errorf("%w: method is required", ErrInvalidRequest)
	}
	// the decoded params must not alias the pooled buffer
	req.Params = bytes.Clone(req.Params)
	return &req, int(n), nil
}

// EncodeResponse writes resp to w and returns the number of bytes written.
func EncodeResponse(w io.Writer, resp *Response) (int, error) {
	buf := pool.Bytes.Get()
	defer pool.Bytes.Put(buf)

	if err := json.MarshalWrite(buf, resp); err != nil {
		return 0, err
	}
	return w.Write(buf.Bytes())
}
