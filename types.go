// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package a2a provides the protocol types shared by the A2A task-execution runtime.
package a2a

import (
	"fmt"

	"github.com/go-json-experiment/json"
)

// ProtocolVersion is the A2A protocol version advertised in agent cards.
const ProtocolVersion = "0.3.0"

// TaskState represents the lifecycle state of a [Task].
type TaskState string

const (
	TaskStateSubmitted     TaskState = "submitted"
	TaskStateWorking       TaskState = "working"
	TaskStateInputRequired TaskState = "input-required"
	TaskStateAuthRequired  TaskState = "auth-required"
	TaskStateCompleted     TaskState = "completed"
	TaskStateFailed        TaskState = "failed"
	TaskStateCanceled      TaskState = "canceled"
	TaskStateRejected      TaskState = "rejected"
	TaskStateUnknown       TaskState = "unknown"
)

// IsTerminal reports whether no further status transition is accepted after s.
func (s TaskState) IsTerminal() bool {
	switch s {
	case TaskStateCompleted, TaskStateFailed, TaskStateCanceled, TaskStateRejected:
		return true
	default:
		return false
	}
}

// Valid reports whether s is one of the known states.
func (s TaskState) Valid() bool {
	switch s {
	case TaskStateSubmitted, TaskStateWorking, TaskStateInputRequired, TaskStateAuthRequired,
		TaskStateCompleted, TaskStateFailed, TaskStateCanceled, TaskStateRejected, TaskStateUnknown:
		return true
	default:
		return false
	}
}

// Role identifies the sender of a [Message].
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// Event kind discriminators used on the wire.
const (
	MessageEventKind        = "message"
	TaskEventKind           = "task"
	StatusUpdateEventKind   = "status-update"
	ArtifactUpdateEventKind = "artifact-update"
)

// PartKind discriminates the content carried by a [Part].
type PartKind string

const (
	TextPartKind PartKind = "text"
	FilePartKind PartKind = "file"
	DataPartKind PartKind = "data"
)

// FileContent is the payload of a file part. Exactly one of Bytes or URI is set.
type FileContent struct {
	Name     string `json:"name,omitempty"`
	MIMEType string `json:"mimeType,omitempty"`
	// Bytes holds base64 encoded content.
	Bytes string `json:"bytes,omitempty"`
	URI   string `json:"uri,omitempty"`
}

// Part is one piece of content inside a message or artifact.
type Part struct {
	Kind     PartKind       `json:"kind"`
	Text     string         `json:"text,omitempty"`
	File     *FileContent   `json:"file,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Validate checks that the part carries content matching its kind.
func (p Part) Validate() error {
	switch p.Kind {
	case TextPartKind:
		return nil
	case FilePartKind:
		if p.File == nil {
			return fmt.Errorf("file part has no file content")
		}
		if (p.File.Bytes == "") == (p.File.URI == "") {
			return fmt.Errorf("file part must set exactly one of bytes or uri")
		}
		return nil
	case DataPartKind:
		if p.Data == nil {
			return fmt.Errorf("data part has no data")
		}
		return nil
	default:
		return fmt.Errorf("unknown part kind %q", p.Kind)
	}
}

// Message is a single turn of communication between a user and an agent.
type Message struct {
	Kind             string         `json:"kind"`
	MessageID        string         `json:"messageId"`
	Role             Role           `json:"role"`
	Parts            []Part         `json:"parts"`
	TaskID           string         `json:"taskId,omitempty"`
	ContextID        string         `json:"contextId,omitempty"`
	ReferenceTaskIDs []string       `json:"referenceTaskIds,omitempty"`
	Extensions       []string       `json:"extensions,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
}

// Validate checks the structural requirements of the message.
func (m *Message) Validate() error {
	if m.MessageID == "" {
		return fmt.Errorf("message id cannot be empty")
	}
	if m.Role != RoleUser && m.Role != RoleAgent {
		return fmt.Errorf("invalid message role %q", m.Role)
	}
	for i, p := range m.Parts {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("part %d: %w", i, err)
		}
	}
	return nil
}

// TaskStatus is the current lifecycle state of a task with an optional agent message.
type TaskStatus struct {
	State   TaskState `json:"state"`
	Message *Message  `json:"message,omitempty"`
	// Timestamp is an RFC 3339 time.
	Timestamp string `json:"timestamp,omitempty"`
}

// Artifact is an identified bundle of output produced by a task.
type Artifact struct {
	ArtifactID  string         `json:"artifactId"`
	Name        string         `json:"name,omitempty"`
	Description string         `json:"description,omitempty"`
	Parts       []Part         `json:"parts"`
	Extensions  []string       `json:"extensions,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Task is the unit of work tracked by the protocol.
type Task struct {
	Kind      string         `json:"kind"`
	ID        string         `json:"id"`
	ContextID string         `json:"contextId"`
	Status    TaskStatus     `json:"status"`
	Artifacts []*Artifact    `json:"artifacts,omitempty"`
	History   []*Message     `json:"history,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Validate checks the identity fields of the task.
func (t *Task) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("task id cannot be empty")
	}
	if t.ContextID == "" {
		return fmt.Errorf("task context id cannot be empty")
	}
	if !t.Status.State.Valid() {
		return fmt.Errorf("invalid task state %q", t.Status.State)
	}
	return nil
}

// FindArtifact returns the artifact with the given id and its index, or nil and -1.
func (t *Task) FindArtifact(id string) (*Artifact, int) {
	for i, a := range t.Artifacts {
		if a != nil && a.ArtifactID == id {
			return a, i
		}
	}
	return nil, -1
}

// TaskStatusUpdateEvent announces a status transition of a task.
type TaskStatusUpdateEvent struct {
	Kind      string         `json:"kind"`
	TaskID    string         `json:"taskId"`
	ContextID string         `json:"contextId"`
	Status    TaskStatus     `json:"status"`
	Final     bool           `json:"final"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// TaskArtifactUpdateEvent announces a new or extended artifact of a task.
type TaskArtifactUpdateEvent struct {
	Kind      string         `json:"kind"`
	TaskID    string         `json:"taskId"`
	ContextID string         `json:"contextId"`
	Artifact  *Artifact      `json:"artifact"`
	Append    bool           `json:"append,omitzero"`
	LastChunk bool           `json:"lastChunk,omitzero"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Event is anything an executor may publish for a task.
//
// The set of implementations is closed: [*Message], [*Task],
// [*TaskStatusUpdateEvent] and [*TaskArtifactUpdateEvent].
type Event interface {
	// EventKind returns the wire discriminator of the event.
	EventKind() string
	// GetTaskID returns the id of the task the event belongs to, if any.
	GetTaskID() string

	isEvent()
}

var (
	_ Event = (*Message)(nil)
	_ Event = (*Task)(nil)
	_ Event = (*TaskStatusUpdateEvent)(nil)
	_ Event = (*TaskArtifactUpdateEvent)(nil)
)

func (*Message) EventKind() string                 { return MessageEventKind }
func (*Task) EventKind() string                    { return TaskEventKind }
func (*TaskStatusUpdateEvent) EventKind() string   { return StatusUpdateEventKind }
func (*TaskArtifactUpdateEvent) EventKind() string { return ArtifactUpdateEventKind }

func (m *Message) GetTaskID() string                 { return m.TaskID }
func (t *Task) GetTaskID() string                    { return t.ID }
func (e *TaskStatusUpdateEvent) GetTaskID() string   { return e.TaskID }
func (e *TaskArtifactUpdateEvent) GetTaskID() string { return e.TaskID }

func (*Message) isEvent()                 {}
func (*Task) isEvent()                    {}
func (*TaskStatusUpdateEvent) isEvent()   {}
func (*TaskArtifactUpdateEvent) isEvent() {}

// IsFinalEvent reports whether ev ends the event stream of its task.
func IsFinalEvent(ev Event) bool {
	switch ev := ev.(type) {
	case *TaskStatusUpdateEvent:
		return ev.Final || ev.Status.State.IsTerminal()
	case *Task:
		return ev.Status.State.IsTerminal()
	default:
		return false
	}
}

// UnmarshalEvent decodes a kind-tagged event.
func UnmarshalEvent(data []byte) (Event, error) {
	var probe struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("decode event kind: %w", err)
	}

	var ev Event
	switch probe.Kind {
	case MessageEventKind:
		ev = new(Message)
	case TaskEventKind:
		ev = new(Task)
	case StatusUpdateEventKind:
		ev = new(TaskStatusUpdateEvent)
	case ArtifactUpdateEventKind:
		ev = new(TaskArtifactUpdateEvent)
	default:
		return nil, fmt.Errorf("unknown event kind %q", probe.Kind)
	}
	if err := json.Unmarshal(data, ev); err != nil {
		return nil, fmt.Errorf("decode %s event: %w", probe.Kind, err)
	}
	return ev, nil
}

// MarshalEvent encodes ev with its kind discriminator filled in.
func MarshalEvent(ev Event) ([]byte, error) {
	if ev == nil {
		return nil, fmt.Errorf("nil event")
	}
	// events may be shared between subscribers, so the discriminator is
	// only written when the producer left it empty
	switch ev := ev.(type) {
	case *Message:
		if ev.Kind == "" {
			ev.Kind = MessageEventKind
		}
	case *Task:
		if ev.Kind == "" {
			ev.Kind = TaskEventKind
		}
	case *TaskStatusUpdateEvent:
		if ev.Kind == "" {
			ev.Kind = StatusUpdateEventKind
		}
	case *TaskArtifactUpdateEvent:
		if ev.Kind == "" {
			ev.Kind = ArtifactUpdateEventKind
		}
	}
	return json.Marshal(ev)
}

// MessageSendConfiguration carries client preferences for a send request.
type MessageSendConfiguration struct {
	AcceptedOutputModes []string `json:"acceptedOutputModes,omitempty"`
	HistoryLength       *int     `json:"historyLength,omitempty"`
	Blocking            bool     `json:"blocking,omitzero"`
}

// MessageSendParams are the parameters of message/send and message/stream.
type MessageSendParams struct {
	Message       *Message                  `json:"message"`
	Configuration *MessageSendConfiguration `json:"configuration,omitempty"`
	Metadata      map[string]any            `json:"metadata,omitempty"`
}

// Validate checks that a message is present and well formed.
func (p *MessageSendParams) Validate() error {
	if p.Message == nil {
		return fmt.Errorf("message cannot be nil")
	}
	return p.Message.Validate()
}

// HistoryLength returns the requested history length, or zero when unset.
func (p *MessageSendParams) HistoryLength() int {
	if p.Configuration == nil || p.Configuration.HistoryLength == nil {
		return 0
	}
	return *p.Configuration.HistoryLength
}

// TaskQueryParams are the parameters of tasks/get.
type TaskQueryParams struct {
	ID            string         `json:"id"`
	HistoryLength *int           `json:"historyLength,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// TaskIDParams identify a task for tasks/cancel, tasks/subscribe and tasks/resubscribe.
type TaskIDParams struct {
	ID       string         `json:"id"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ListTasksParams are the parameters of tasks/list.
type ListTasksParams struct {
	ContextID     string      `json:"contextId,omitempty"`
	Status        []TaskState `json:"status,omitempty"`
	PageSize      int         `json:"pageSize,omitzero"`
	PageToken     string      `json:"pageToken,omitempty"`
	HistoryLength *int        `json:"historyLength,omitempty"`
}

// ListTasksResult is the result of tasks/list.
type ListTasksResult struct {
	Tasks         []*Task `json:"tasks"`
	NextPageToken string  `json:"nextPageToken,omitempty"`
}

// PushNotificationConfig describes where task updates would be pushed.
type PushNotificationConfig struct {
	ID    string `json:"id,omitempty"`
	URL   string `json:"url"`
	Token string `json:"token,omitempty"`
}

// TaskPushNotificationConfig binds a [PushNotificationConfig] to a task.
type TaskPushNotificationConfig struct {
	TaskID                 string                 `json:"taskId"`
	PushNotificationConfig PushNotificationConfig `json:"pushNotificationConfig"`
}

// GetTaskPushNotificationConfigParams identify one push configuration of a task.
type GetTaskPushNotificationConfigParams struct {
	ID                       string `json:"id"`
	PushNotificationConfigID string `json:"pushNotificationConfigId,omitempty"`
}

// AgentCard is the minimal self-description served to discovering clients.
type AgentCard struct {
	Name               string   `json:"name"`
	Description        string   `json:"description,omitempty"`
	URL                string   `json:"url"`
	Version            string   `json:"version"`
	ProtocolVersion    string   `json:"protocolVersion,omitempty"`
	DefaultInputModes  []string `json:"defaultInputModes,omitempty"`
	DefaultOutputModes []string `json:"defaultOutputModes,omitempty"`
	Capabilities       struct {
		Streaming         bool `json:"streaming"`
		PushNotifications bool `json:"pushNotifications"`
	} `json:"capabilities"`
}
