package history

import (
	"time"

	"summify/internal/services"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// InterruptedReason is recorded for jobs a previous process never finished.
const InterruptedReason = "interrupted before completion"

// IsTerminal reports whether the status is final.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Job is one row of the history table.
type Job struct {
	ID              string            `json:"job_id"`
	FileID          string            `json:"file_id"`
	DisplayName     string            `json:"display_name"`
	Steps           string            `json:"steps"`
	ModelType       string            `json:"model_type,omitempty"`
	ModelSize       string            `json:"model_size,omitempty"`
	Status          Status            `json:"status"`
	ProgressMessage string            `json:"progress_message,omitempty"`
	Error           *services.Details `json:"error,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	StartedAt       *time.Time        `json:"started_at,omitempty"`
	FinishedAt      *time.Time        `json:"finished_at,omitempty"`
}

// Duration reports how long the job ran, or zero when it has not finished.
func (j Job) Duration() time.Duration {
	if j.StartedAt == nil || j.FinishedAt == nil {
		return 0
	}
	return j.FinishedAt.Sub(*j.StartedAt)
}

// ListOptions filters List.
type ListOptions struct {
	FileID   string
	Statuses []Status
	// Limit caps the rows returned, newest first. Zero means 50.
	Limit int
}
