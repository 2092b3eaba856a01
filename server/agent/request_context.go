// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"fmt"
	"slices"

	a2a "github.com/go-a2a/a2a-runtime"
	"github.com/go-a2a/a2a-runtime/server"
)

// RequestContext holds everything an [Executor] needs to serve one request.
type RequestContext struct {
	TaskID    string
	ContextID string
	// Message is the user message that triggered the request. It is nil for cancel requests.
	Message *a2a.Message
	// Task is the stored snapshot of the task when the request started.
	Task          *a2a.Task
	Configuration *a2a.MessageSendConfiguration
	RelatedTasks  []*a2a.Task
	Metadata      map[string]any
	CallContext   *server.CallContext
}

// UserInput joins the text parts of the request message with delimiter.
func (rc *RequestContext) UserInput(delimiter string) string {
	return a2a.MessageText(rc.Message, delimiter)
}

// AttachRelatedTask adds task to the related tasks unless one with the same id is already attached.
func (rc *RequestContext) AttachRelatedTask(task *a2a.Task) {
	if task == nil {
		return
	}
	if slices.ContainsFunc(rc.RelatedTasks, func(t *a2a.Task) bool { return t.ID == task.ID }) {
		return
	}
	rc.RelatedTasks = append(rc.RelatedTasks, task)
}

// RequestedExtensions returns the extensions the client asked for.
func (rc *RequestContext) RequestedExtensions() []string {
	if rc.CallContext == nil {
		return nil
	}
	return rc.CallContext.RequestedExtensions()
}

// AddActivatedExtension records that the executor activated uri.
func (rc *RequestContext) AddActivatedExtension(uri string) {
	if rc.CallContext != nil {
		rc.CallContext.ActivateExtension(uri)
	}
}

// Validate ensures the identity fields are set.
func (rc *RequestContext) Validate() error {
	if rc.TaskID == "" {
		return fmt.Errorf("request context task id cannot be empty")
	}
	if rc.ContextID == "" {
		return fmt.Errorf("request context context id cannot be empty")
	}
	if rc.Task != nil && rc.Task.ID != rc.TaskID {
		return fmt.Errorf("request context task id %s does not match task %s", rc.TaskID, rc.Task.ID)
	}
	return nil
}
