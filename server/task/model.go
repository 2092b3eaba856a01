// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/go-json-experiment/json"
	"gorm.io/gorm"

	a2a "github.com/go-a2a/a2a-runtime"
)

// DefaultTableName is the table used by [DatabaseTaskStore] unless configured otherwise.
const DefaultTableName = "tasks"

// JSONColumn stores V as a JSON document in a single database column.
type JSONColumn[T any] struct {
	V T
}

// Value implements [driver.Valuer].
func (c JSONColumn[T]) Value() (driver.Value, error) {
	data, err := json.Marshal(c.V)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements [sql.Scanner].
func (c *JSONColumn[T]) Scan(value any) error {
	var data []byte
	switch v := value.(type) {
	case nil:
		var zero T
		c.V = zero
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into JSONColumn[%T]", value, c.V)
	}
	if len(data) == 0 || string(data) == "null" {
		var zero T
		c.V = zero
		return nil
	}
	if err := json.Unmarshal(data, &c.V); err != nil {
		return fmt.Errorf("cannot unmarshal JSONColumn[%T]: %w", c.V, err)
	}
	return nil
}

// TaskModel is the database row of a task.
//
// State duplicates Status.State so that list filters run in SQL. Seq records
// insertion order and is never updated. Seq is not unique: rows inserted
// concurrently may share it and are then ordered by ID.
type TaskModel struct {
	ID        string                      `gorm:"primaryKey;size:64"`
	Seq       int64                       `gorm:"not null;index"`
	ContextID string                      `gorm:"size:64;not null;index"`
	State     string                      `gorm:"size:32;not null;index"`
	Kind      string                      `gorm:"size:16;not null;default:task"`
	Status    JSONColumn[a2a.TaskStatus]  `gorm:"type:text"`
	Artifacts JSONColumn[[]*a2a.Artifact] `gorm:"type:text"`
	History   JSONColumn[[]*a2a.Message]  `gorm:"type:text"`
	Metadata  JSONColumn[map[string]any]  `gorm:"type:text"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName returns the default table name.
func (TaskModel) TableName() string {
	return DefaultTableName
}

// NewTaskModelFromTask converts task into a row. Seq is left for the store to assign.
func NewTaskModelFromTask(task *a2a.Task) (*TaskModel, error) {
	if task == nil {
		return nil, fmt.Errorf("task cannot be nil")
	}
	if err := task.Validate(); err != nil {
		return nil, fmt.Errorf("task is invalid: %w", err)
	}

	return &TaskModel{
		ID:        task.ID,
		ContextID: task.ContextID,
		State:     string(task.Status.State),
		Kind:      a2a.TaskEventKind,
		Status:    JSONColumn[a2a.TaskStatus]{V: task.Status},
		Artifacts: JSONColumn[[]*a2a.Artifact]{V: task.Artifacts},
		History:   JSONColumn[[]*a2a.Message]{V: task.History},
		Metadata:  JSONColumn[map[string]any]{V: task.Metadata},
	}, nil
}

// ToTask converts the row back into a task.
func (m *TaskModel) ToTask() (*a2a.Task, error) {
	task := &a2a.Task{
		Kind:      a2a.TaskEventKind,
		ID:        m.ID,
		ContextID: m.ContextID,
		Status:    m.Status.V,
		Artifacts: m.Artifacts.V,
		History:   m.History.V,
		Metadata:  m.Metadata.V,
	}
	if err := task.Validate(); err != nil {
		return nil, fmt.Errorf("task model is invalid: %w", err)
	}
	return task, nil
}

// BeforeSave is a GORM hook keeping State in sync with Status.
func (m *TaskModel) BeforeSave(tx *gorm.DB) error {
	m.State = string(m.Status.V.State)
	if m.ID == "" {
		return fmt.Errorf("task ID cannot be empty")
	}
	return nil
}
