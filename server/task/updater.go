// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	a2a "github.com/go-a2a/a2a-runtime"
)

// Publisher is the destination of the events produced by an [Updater].
//
// *event.Queue implements Publisher.
type Publisher interface {
	Publish(ctx context.Context, ev a2a.Event) error
}

// UpdaterOption configures an [Updater].
type UpdaterOption func(*Updater)

// WithUpdaterLogger sets the updater logger.
func WithUpdaterLogger(logger *slog.Logger) UpdaterOption {
	return func(u *Updater) {
		if logger != nil {
			u.logger = logger
		}
	}
}

// WithClock sets the function used to stamp status updates that carry no
// explicit timestamp.
func WithClock(now func() time.Time) UpdaterOption {
	return func(u *Updater) {
		if now != nil {
			u.now = now
		}
	}
}

// Updater publishes the lifecycle events of one task.
//
// At most one terminal transition is accepted per Updater. The check and the
// flag update happen under mu; publishing happens after mu is released.
type Updater struct {
	queue     Publisher
	taskID    string
	contextID string
	logger    *slog.Logger
	now       func() time.Time

	mu        sync.Mutex
	terminal  bool
	artifacts int
}

// NewUpdater creates an Updater bound to taskID and contextID.
func NewUpdater(queue Publisher, taskID, contextID string, opts ...UpdaterOption) (*Updater, error) {
	if queue == nil {
		return nil, fmt.Errorf("event queue cannot be nil")
	}
	if taskID == "" {
		return nil, fmt.Errorf("task ID cannot be empty")
	}
	if contextID == "" {
		return nil, fmt.Errorf("context ID cannot be empty")
	}

	u := &Updater{
		queue:     queue,
		taskID:    taskID,
		contextID: contextID,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u, nil
}

// TaskID returns the task ID this updater is associated with.
func (u *Updater) TaskID() string { return u.taskID }

// ContextID returns the context ID this updater is associated with.
func (u *Updater) ContextID() string { return u.contextID }

// IsTerminal reports whether a terminal transition was accepted.
func (u *Updater) IsTerminal() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.terminal
}

// UpdateStatus publishes a status update stamped with the current time.
//
// A terminal state always produces a final event. Once a terminal state was
// accepted every further call fails with *AlreadyTerminalError.
func (u *Updater) UpdateStatus(ctx context.Context, state a2a.TaskState, msg *a2a.Message, final bool, metadata map[string]any) error {
	return u.UpdateStatusAt(ctx, state, msg, final, "", metadata)
}

// UpdateStatusAt is like UpdateStatus with an explicit RFC 3339 timestamp.
// An empty timestamp is replaced by the current time.
func (u *Updater) UpdateStatusAt(ctx context.Context, state a2a.TaskState, msg *a2a.Message, final bool, timestamp string, metadata map[string]any) error {
	if !state.Valid() {
		return fmt.Errorf("invalid task state %q", state)
	}

	u.mu.Lock()
	if u.terminal {
		u.mu.Unlock()
		u.logger.WarnContext(ctx, "rejected status update after terminal state",
			slog.String("task_id", u.taskID),
			slog.String("state", string(state)),
		)
		return &AlreadyTerminalError{TaskID: u.taskID, Requested: state}
	}
	if state.IsTerminal() {
		final = true
		u.terminal = true
	}
	u.mu.Unlock()

	if timestamp == "" {
		timestamp = u.now().UTC().Format(time.RFC3339Nano)
	}

	ev := &a2a.TaskStatusUpdateEvent{
		Kind:      a2a.StatusUpdateEventKind,
		TaskID:    u.taskID,
		ContextID: u.contextID,
		Status: a2a.TaskStatus{
			State:     state,
			Message:   msg,
			Timestamp: timestamp,
		},
		Final:    final,
		Metadata: metadata,
	}
	if err := u.queue.Publish(ctx, ev); err != nil {
		return fmt.Errorf("failed to publish status update event: %w", err)
	}

	u.logger.DebugContext(ctx, "status update published",
		slog.String("task_id", u.taskID),
		slog.String("state", string(state)),
		slog.Bool("final", final),
	)
	return nil
}

// ArtifactOption configures an artifact published by [Updater.AddArtifact].
type ArtifactOption func(*artifactConfig)

type artifactConfig struct {
	id         string
	name       string
	metadata   map[string]any
	extensions []string
	append     bool
	lastChunk  bool
}

// ArtifactID sets the artifact id. Without it a fresh id is generated.
func ArtifactID(id string) ArtifactOption {
	return func(c *artifactConfig) { c.id = id }
}

// ArtifactName sets the artifact name.
func ArtifactName(name string) ArtifactOption {
	return func(c *artifactConfig) { c.name = name }
}

// ArtifactMetadata sets the artifact metadata.
func ArtifactMetadata(metadata map[string]any) ArtifactOption {
	return func(c *artifactConfig) { c.metadata = metadata }
}

// ArtifactExtensions sets the extension URIs the artifact relies on.
func ArtifactExtensions(uris ...string) ArtifactOption {
	return func(c *artifactConfig) { c.extensions = uris }
}

// ArtifactAppend marks the parts as a continuation of an existing artifact.
func ArtifactAppend(append bool) ArtifactOption {
	return func(c *artifactConfig) { c.append = append }
}

// ArtifactLastChunk marks the update as the last chunk of the artifact.
func ArtifactLastChunk(last bool) ArtifactOption {
	return func(c *artifactConfig) { c.lastChunk = last }
}

// AddArtifact publishes an artifact update carrying parts.
//
// Artifacts are accepted after a terminal transition.
func (u *Updater) AddArtifact(ctx context.Context, parts []a2a.Part, opts ...ArtifactOption) error {
	var cfg artifactConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if len(parts) == 0 {
		return fmt.Errorf("artifact must have at least one part")
	}

	if cfg.id == "" {
		u.mu.Lock()
		u.artifacts++
		u.mu.Unlock()
		cfg.id = uuid.NewString()
	}

	ev := &a2a.TaskArtifactUpdateEvent{
		Kind:      a2a.ArtifactUpdateEventKind,
		TaskID:    u.taskID,
		ContextID: u.contextID,
		Artifact: &a2a.Artifact{
			ArtifactID: cfg.id,
			Name:       cfg.name,
			Parts:      parts,
			Extensions: cfg.extensions,
			Metadata:   cfg.metadata,
		},
		Append:    cfg.append,
		LastChunk: cfg.lastChunk,
	}
	if err := u.queue.Publish(ctx, ev); err != nil {
		return fmt.Errorf("failed to publish artifact update event: %w", err)
	}
	return nil
}

// GeneratedArtifacts returns how many artifact ids the updater generated.
func (u *Updater) GeneratedArtifacts() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.artifacts
}

// Submit marks the task as submitted.
func (u *Updater) Submit(ctx context.Context, msg *a2a.Message) error {
	return u.UpdateStatus(ctx, a2a.TaskStateSubmitted, msg, false, nil)
}

// StartWork marks the task as working.
func (u *Updater) StartWork(ctx context.Context, msg *a2a.Message) error {
	return u.UpdateStatus(ctx, a2a.TaskStateWorking, msg, false, nil)
}

// Complete marks the task as completed.
func (u *Updater) Complete(ctx context.Context, msg *a2a.Message) error {
	return u.UpdateStatus(ctx, a2a.TaskStateCompleted, msg, true, nil)
}

// Failed marks the task as failed.
func (u *Updater) Failed(ctx context.Context, msg *a2a.Message) error {
	return u.UpdateStatus(ctx, a2a.TaskStateFailed, msg, true, nil)
}

// Cancel marks the task as canceled.
func (u *Updater) Cancel(ctx context.Context, msg *a2a.Message) error {
	return u.UpdateStatus(ctx, a2a.TaskStateCanceled, msg, true, nil)
}

// Reject marks the task as rejected.
func (u *Updater) Reject(ctx context.Context, msg *a2a.Message) error {
	return u.UpdateStatus(ctx, a2a.TaskStateRejected, msg, true, nil)
}

// RequiresInput marks the task as waiting for user input.
func (u *Updater) RequiresInput(ctx context.Context, msg *a2a.Message, final bool) error {
	return u.UpdateStatus(ctx, a2a.TaskStateInputRequired, msg, final, nil)
}

// RequiresAuth marks the task as waiting for authentication.
func (u *Updater) RequiresAuth(ctx context.Context, msg *a2a.Message, final bool) error {
	return u.UpdateStatus(ctx, a2a.TaskStateAuthRequired, msg, final, nil)
}

// NewAgentMessage builds an agent message bound to the updater's task.
func (u *Updater) NewAgentMessage(parts []a2a.Part, metadata map[string]any) *a2a.Message {
	msg := a2a.NewMessage(a2a.RoleAgent, parts...)
	msg.TaskID = u.taskID
	msg.ContextID = u.contextID
	msg.Metadata = metadata
	return msg
}
