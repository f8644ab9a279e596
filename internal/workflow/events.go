package workflow

import (
	"time"

	"summify/internal/logging"
	"summify/internal/services"
)

// EventType classifies scheduler events.
type EventType string

const (
	EventQueued   EventType = "queued"
	EventProgress EventType = "progress"
	EventComplete EventType = "complete"
	EventFailed   EventType = "failed"
)

// Event is delivered to every listener registered with Subscribe.
type Event struct {
	Type        EventType         `json:"type"`
	JobID       string            `json:"job_id"`
	FileID      string            `json:"file_id"`
	DisplayName string            `json:"display_name,omitempty"`
	Line        string            `json:"line,omitempty"`
	Outputs     []string          `json:"outputs,omitempty"`
	Error       *services.Details `json:"error,omitempty"`
	Time        time.Time         `json:"time"`
}

// Listener receives scheduler events. It runs on the goroutine that raised
// the event and must not block.
type Listener func(Event)

func (e Event) logEvent() logging.LogEvent {
	evt := logging.LogEvent{
		Timestamp: e.Time,
		Level:     "INFO",
		Message:   e.Line,
		Component: "workflow",
		FileID:    e.FileID,
		JobID:     e.JobID,
		EventType: "job_" + string(e.Type),
	}
	switch e.Type {
	case EventQueued:
		evt.Message = "queued " + e.DisplayName
	case EventComplete:
		evt.Message = "completed " + e.DisplayName
	case EventFailed:
		evt.Level = "ERROR"
		evt.Message = "failed " + e.DisplayName
		if e.Error != nil {
			evt.Fields = map[string]string{
				logging.FieldErrorCode: string(e.Error.Code),
				"error_message":        e.Error.Message,
				"error_details":        e.Error.Details,
			}
		}
	}
	return evt
}
