// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"context"
	"fmt"
	"log/slog"

	a2a "github.com/go-a2a/a2a-runtime"
)

// ApplyOption configures [Apply].
type ApplyOption func(*applyConfig)

type applyConfig struct {
	strictAppend bool
	logger       *slog.Logger
}

// StrictAppend makes an append to an unknown artifact fail with
// *UnknownArtifactError instead of being dropped with a warning.
func StrictAppend() ApplyOption {
	return func(c *applyConfig) {
		c.strictAppend = true
	}
}

// WithApplyLogger sets the logger used to report artifact decisions.
func WithApplyLogger(logger *slog.Logger) ApplyOption {
	return func(c *applyConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Apply folds ev into task and returns the resulting task.
//
// The input task is never modified. task may be nil only for a full task event.
func Apply(ctx context.Context, task *a2a.Task, ev a2a.Event, opts ...ApplyOption) (*a2a.Task, error) {
	cfg := applyConfig{logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}

	if ev == nil {
		return nil, fmt.Errorf("event cannot be nil")
	}
	if t, ok := ev.(*a2a.Task); ok {
		if task != nil && t.ID != task.ID {
			return nil, &MismatchError{Field: "id", Want: task.ID, Got: t.ID}
		}
		out := t.Clone()
		out.Kind = a2a.TaskEventKind
		return out, nil
	}
	if task == nil {
		return nil, fmt.Errorf("no task to apply %s event to", ev.EventKind())
	}

	out := task.Clone()
	switch ev := ev.(type) {
	case *a2a.TaskStatusUpdateEvent:
		if err := checkIDs(out, ev.TaskID, ev.ContextID); err != nil {
			return nil, err
		}
		applyStatus(out, ev)

	case *a2a.TaskArtifactUpdateEvent:
		if err := checkIDs(out, ev.TaskID, ev.ContextID); err != nil {
			return nil, err
		}
		if err := applyArtifact(ctx, &cfg, out, ev); err != nil {
			return nil, err
		}

	case *a2a.Message:
		if ev.TaskID != "" && ev.TaskID != out.ID {
			return nil, &MismatchError{Field: "id", Want: out.ID, Got: ev.TaskID}
		}
		out.History = append(out.History, ev.Clone())

	default:
		return nil, fmt.Errorf("unsupported event kind %q", ev.EventKind())
	}

	return out, nil
}

func checkIDs(task *a2a.Task, taskID, contextID string) error {
	if taskID != task.ID {
		return &MismatchError{Field: "id", Want: task.ID, Got: taskID}
	}
	if contextID != "" && contextID != task.ContextID {
		return &MismatchError{Field: "context id", Want: task.ContextID, Got: contextID}
	}
	return nil
}

// applyStatus rotates the current status message into history before the
// status is replaced, and merges the event metadata into the task.
func applyStatus(task *a2a.Task, ev *a2a.TaskStatusUpdateEvent) {
	if task.Status.Message != nil {
		task.History = append(task.History, task.Status.Message)
	}
	task.Metadata = a2a.MergeMetadata(task.Metadata, ev.Metadata)
	task.Status = ev.Status.Clone()
}

func applyArtifact(ctx context.Context, cfg *applyConfig, task *a2a.Task, ev *a2a.TaskArtifactUpdateEvent) error {
	if ev.Artifact == nil {
		return fmt.Errorf("artifact update for task %s carries no artifact", task.ID)
	}

	artifactID := ev.Artifact.ArtifactID
	existing, idx := task.FindArtifact(artifactID)
	attrs := []any{slog.String("artifact_id", artifactID), slog.String("task_id", task.ID)}

	switch {
	case !ev.Append && idx < 0:
		cfg.logger.DebugContext(ctx, "adding new artifact", attrs...)
		task.Artifacts = append(task.Artifacts, ev.Artifact.Clone())

	case !ev.Append:
		cfg.logger.DebugContext(ctx, "replacing artifact", attrs...)
		task.Artifacts[idx] = ev.Artifact.Clone()

	case existing != nil:
		cfg.logger.DebugContext(ctx, "appending parts to artifact", attrs...)
		existing.Parts = append(existing.Parts, ev.Artifact.Clone().Parts...)

	case cfg.strictAppend:
		return &UnknownArtifactError{TaskID: task.ID, ArtifactID: artifactID}

	default:
		// The first chunk may still be in flight on another subscriber.
		cfg.logger.WarnContext(ctx, "received append for nonexistent artifact, ignoring chunk", attrs...)
	}

	return nil
}
