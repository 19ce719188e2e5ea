// Package task runs generation jobs in the background with bounded
// concurrency and keeps their history.
package task

import (
	"time"

	"github.com/google/uuid"
)

// Status represents the status of a task.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Error represents a task error.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Task is one background generation job.
type Task struct {
	ID          uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	UserID      int64          `json:"user_id" gorm:"not null;index"`
	Kind        string         `json:"kind" gorm:"not null;index"`
	Status      Status         `json:"status" gorm:"not null;index"`
	Input       map[string]any `json:"input" gorm:"type:jsonb;serializer:json"`
	Result      string         `json:"result,omitempty"`
	Error       *Error         `json:"error,omitempty" gorm:"type:jsonb;serializer:json"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// TableName returns the table name for Task.
func (Task) TableName() string {
	return "generation_tasks"
}

// IsTerminal checks if the task is in a terminal state.
func (t *Task) IsTerminal() bool {
	return t.Status == StatusCompleted || t.Status == StatusFailed
}

// clone returns a copy safe to hand to subscribers.
func (t *Task) clone() *Task {
	c := *t
	if t.Error != nil {
		e := *t.Error
		c.Error = &e
	}
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		c.CompletedAt = &at
	}
	return &c
}

// Filter represents task filter options.
type Filter struct {
	UserID *int64
	Kind   *string
	Status *Status
	Limit  int
	Offset int
}

// SubmitRequest represents a task submission request.
type SubmitRequest struct {
	Kind  string         `json:"kind"`
	Input map[string]any `json:"input"`
}
