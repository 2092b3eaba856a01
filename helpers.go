// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package a2a

import (
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewTextPart returns a text [Part].
func NewTextPart(text string) Part {
	return Part{Kind: TextPartKind, Text: text}
}

// NewDataPart returns a structured data [Part].
func NewDataPart(data map[string]any) Part {
	return Part{Kind: DataPartKind, Data: data}
}

// NewMessage returns a message with a fresh id.
func NewMessage(role Role, parts ...Part) *Message {
	return &Message{
		Kind:      MessageEventKind,
		MessageID: uuid.NewString(),
		Role:      role,
		Parts:     parts,
	}
}

// NewAgentTextMessage returns an agent message holding a single text part,
// bound to the given task and context.
func NewAgentTextMessage(text, taskID, contextID string) *Message {
	msg := NewMessage(RoleAgent, NewTextPart(text))
	msg.TaskID = taskID
	msg.ContextID = contextID
	return msg
}

// NewUserTextMessage returns a user message holding a single text part.
func NewUserTextMessage(text string) *Message {
	return NewMessage(RoleUser, NewTextPart(text))
}

// Now returns the current time formatted for [TaskStatus.Timestamp].
func Now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// NewTask creates a task in the submitted state from the first message of a conversation.
//
// The task id is always freshly generated. The context id is taken from the
// message when present, otherwise generated; the message is updated to carry
// both ids and becomes the sole history entry.
func NewTask(msg *Message) *Task {
	contextID := msg.ContextID
	if contextID == "" {
		contextID = uuid.NewString()
	}

	task := &Task{
		Kind:      TaskEventKind,
		ID:        uuid.NewString(),
		ContextID: contextID,
		Status: TaskStatus{
			State:     TaskStateSubmitted,
			Timestamp: Now(),
		},
	}

	m := msg.Clone()
	m.TaskID = task.ID
	m.ContextID = contextID
	task.History = []*Message{m}

	return task
}

// MessageText joins the text parts of msg with delimiter.
func MessageText(msg *Message, delimiter string) string {
	if msg == nil {
		return ""
	}
	var texts []string
	for _, p := range msg.Parts {
		if p.Kind == TextPartKind {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, delimiter)
}

// TrimHistory returns a copy of task keeping only the last n history entries.
// The task is returned unchanged when n <= 0 or the history is already short enough.
func TrimHistory(task *Task, n int) *Task {
	if task == nil || n <= 0 || len(task.History) <= n {
		return task
	}
	trimmed := *task
	trimmed.History = slices.Clone(task.History[len(task.History)-n:])
	return &trimmed
}

// Clone returns a deep copy of t.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	c.Status = t.Status.Clone()
	if t.Artifacts != nil {
		c.Artifacts = make([]*Artifact, len(t.Artifacts))
		for i, a := range t.Artifacts {
			c.Artifacts[i] = a.Clone()
		}
	}
	if t.History != nil {
		c.History = make([]*Message, len(t.History))
		for i, m := range t.History {
			c.History[i] = m.Clone()
		}
	}
	c.Metadata = cloneMap(t.Metadata)
	return &c
}

// Clone returns a deep copy of s.
func (s TaskStatus) Clone() TaskStatus {
	s.Message = s.Message.Clone()
	return s
}

// Clone returns a deep copy of m.
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	c := *m
	c.Parts = cloneParts(m.Parts)
	c.ReferenceTaskIDs = slices.Clone(m.ReferenceTaskIDs)
	c.Extensions = slices.Clone(m.Extensions)
	c.Metadata = cloneMap(m.Metadata)
	return &c
}

// Clone returns a deep copy of a.
func (a *Artifact) Clone() *Artifact {
	if a == nil {
		return nil
	}
	c := *a
	c.Parts = cloneParts(a.Parts)
	c.Extensions = slices.Clone(a.Extensions)
	c.Metadata = cloneMap(a.Metadata)
	return &c
}

func cloneParts(parts []Part) []Part {
	if parts == nil {
		return nil
	}
	out := make([]Part, len(parts))
	for i, p := range parts {
		out[i] = p
		if p.File != nil {
			f := *p.File
			out[i].File = &f
		}
		out[i].Data = cloneMap(p.Data)
		out[i].Metadata = cloneMap(p.Metadata)
	}
	return out
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch v := v.(type) {
	case map[string]any:
		return cloneMap(v)
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

// MergeMetadata copies every key of src into dst, src winning on conflict.
// A nil dst is allocated when src is not empty.
func MergeMetadata(dst, src map[string]any) map[string]any {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	maps.Copy(dst, cloneMap(src))
	return dst
}
