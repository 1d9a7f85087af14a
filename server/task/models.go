// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/go-json-experiment/json"

	a2a "github.com/go-a2a/a2a-stepup"
)

// JSONColumn stores a value of type T as a JSON document in a single column.
type JSONColumn[T any] struct {
	Val T
}

// Value implements [driver.Valuer].
func (c JSONColumn[T]) Value() (driver.Value, error) {
	data, err := json.Marshal(c.Val)
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
		c.Val = zero
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into JSONColumn", value)
	}

	var val T
	if err := json.Unmarshal(data, &val); err != nil {
		return fmt.Errorf("cannot unmarshal JSON column: %w", err)
	}
	c.Val = val
	return nil
}

// TaskModel is the database row of a task. The state is copied out of the
// status document so it can be filtered on.
type TaskModel struct {
	ID        string                      `gorm:"primaryKey;size:64"`
	ContextID string                      `gorm:"size:64;index;not null"`
	State     string                      `gorm:"size:32;index;not null"`
	Status    JSONColumn[a2a.TaskStatus]  `gorm:"type:json"`
	History   JSONColumn[[]*a2a.Message]  `gorm:"type:json"`
	Artifacts JSONColumn[[]*a2a.Artifact] `gorm:"type:json"`
	Metadata  JSONColumn[map[string]any]  `gorm:"type:json"`
	UpdatedAt time.Time
}

// TableName returns the default table name.
func (TaskModel) TableName() string { return "tasks" }

// NewTaskModel converts task into its row representation.
func NewTaskModel(task *a2a.Task) *TaskModel {
	return &TaskModel{
		ID:        task.ID,
		ContextID: task.ContextID,
		State:     string(task.Status.State),
		Status:    JSONColumn[a2a.TaskStatus]{Val: task.Status},
		History:   JSONColumn[[]*a2a.Message]{Val: task.History},
		Artifacts: JSONColumn[[]*a2a.Artifact]{Val: task.Artifacts},
		Metadata:  JSONColumn[map[string]any]{Val: task.Metadata},
	}
}

// ToTask converts the row back into a task.
func (m *TaskModel) ToTask() *a2a.Task {
	return &a2a.Task{
		Kind:      a2a.TaskEventKind,
		ID:        m.ID,
		ContextID: m.ContextID,
		Status:    m.Status.Val,
		History:   m.History.Val,
		Artifacts: m.Artifacts.Val,
		Metadata:  m.Metadata.Val,
	}
}
