package api

import (
	"time"

	"summify/internal/history"
	"summify/internal/logging"
	"summify/internal/records"
	"summify/internal/workflow"
)

// FromView converts a live record into its transport form.
func FromView(view records.View) FileEntry {
	return FileEntry{
		ID:            view.ID,
		Name:          view.DisplayName,
		StoredName:    view.StoredName,
		BaseName:      view.BaseName,
		OutputFolder:  view.OutputFolder,
		SourcePath:    view.SourcePath,
		SizeBytes:     view.SizeBytes,
		Transcribed:   view.Transcribed,
		Fixed:         view.Fixed,
		Summarized:    view.Summarized,
		CreatedAt:     formatTimestamp(view.CreatedTime),
		TranscribedAt: formatTimestamp(view.LastTranscriptionTime),
		FixedAt:       formatTimestamp(view.LastFixTime),
		SummarizedAt:  formatTimestamp(view.LastSummaryTime),
	}
}

// FromViews converts a listing, preserving order.
func FromViews(views []records.View) []FileEntry {
	out := make([]FileEntry, 0, len(views))
	for _, view := range views {
		out = append(out, FromView(view))
	}
	return out
}

// FromHistoryJob converts a history row.
func FromHistoryJob(job history.Job) HistoryEntry {
	entry := HistoryEntry{
		JobID:     job.ID,
		FileID:    job.FileID,
		Name:      job.DisplayName,
		Steps:     job.Steps,
		ModelType: job.ModelType,
		ModelSize: job.ModelSize,
		Status:    string(job.Status),
		Progress:  job.ProgressMessage,
		Error:     job.Error,
		CreatedAt: formatTime(job.CreatedAt),
	}
	if job.StartedAt != nil {
		entry.StartedAt = formatTime(*job.StartedAt)
	}
	if job.FinishedAt != nil {
		entry.FinishedAt = formatTime(*job.FinishedAt)
	}
	entry.DurationSeconds = job.Duration().Seconds()
	return entry
}

// FromSnapshot converts the scheduler queue.
func FromSnapshot(snap workflow.Snapshot) QueueStatus {
	status := QueueStatus{Running: snap.Running, Queued: make([]QueueJob, 0, len(snap.Queued))}
	if snap.Active != nil {
		active := QueueJob{
			ID:        snap.Active.ID,
			FileID:    snap.Active.FileID,
			Steps:     snap.Active.Steps.String(),
			ModelType: snap.Active.Options.ModelType,
			ModelSize: snap.Active.Options.ModelSize,
		}
		status.Active = &active
	}
	for _, job := range snap.Queued {
		status.Queued = append(status.Queued, QueueJob{
			ID:        job.ID,
			FileID:    job.FileID,
			Steps:     job.Steps.String(),
			ModelType: job.Options.ModelType,
			ModelSize: job.Options.ModelSize,
		})
	}
	return status
}

// FromLogEvents converts hub events.
func FromLogEvents(events []logging.LogEvent) []LogEvent {
	if len(events) == 0 {
		return nil
	}
	out := make([]LogEvent, 0, len(events))
	for _, evt := range events {
		out = append(out, LogEvent{
			Sequence:  evt.Sequence,
			Timestamp: evt.Timestamp,
			Level:     evt.Level,
			Message:   evt.Message,
			Component: evt.Component,
			Step:      evt.Step,
			FileID:    evt.FileID,
			JobID:     evt.JobID,
			EventType: evt.EventType,
			Fields:    evt.Fields,
		})
	}
	return out
}

func formatTimestamp(ts *records.Timestamp) string {
	if ts == nil || ts.IsZero() {
		return ""
	}
	return formatTime(ts.Time)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateTimeFormat)
}
