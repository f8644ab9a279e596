package api

import (
	"net/http"
	"time"

	"summify/internal/services"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// FileEntry describes an uploaded file in a transport-friendly format.
type FileEntry struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	StoredName    string `json:"storedName"`
	BaseName      string `json:"baseName"`
	OutputFolder  string `json:"outputFolder"`
	SourcePath    string `json:"sourcePath"`
	SizeBytes     int64  `json:"sizeBytes"`
	Transcribed   bool   `json:"transcribed"`
	Fixed         bool   `json:"fixed"`
	Summarized    bool   `json:"summarized"`
	CreatedAt     string `json:"createdAt,omitempty"`
	TranscribedAt string `json:"transcribedAt,omitempty"`
	FixedAt       string `json:"fixedAt,omitempty"`
	SummarizedAt  string `json:"summarizedAt,omitempty"`
}

// FileListResponse wraps the live file listing.
type FileListResponse struct {
	Files []FileEntry `json:"files"`
}

// FileResponse returns one file, plus the job id when an upload was queued.
type FileResponse struct {
	File  FileEntry `json:"file"`
	JobID string    `json:"jobId,omitempty"`
}

// RenameRequest changes a file's display name.
type RenameRequest struct {
	Name string `json:"name"`
}

// SyncResponse reports how many records an upload-directory sync touched.
type SyncResponse struct {
	Synced int `json:"synced"`
}

// JobRequest asks the daemon to queue a pipeline run.
type JobRequest struct {
	FileID    string `json:"fileId"`
	Steps     string `json:"steps"`
	ModelType string `json:"modelType,omitempty"`
	ModelSize string `json:"modelSize,omitempty"`
}

// JobResponse carries the id minted for a queued job.
type JobResponse struct {
	JobID string `json:"jobId"`
}

// QueueJob is a job waiting in or running on the scheduler.
type QueueJob struct {
	ID        string `json:"id"`
	FileID    string `json:"fileId"`
	Steps     string `json:"steps"`
	ModelType string `json:"modelType,omitempty"`
	ModelSize string `json:"modelSize,omitempty"`
}

// QueueStatus summarizes the scheduler.
type QueueStatus struct {
	Running bool       `json:"running"`
	Active  *QueueJob  `json:"active,omitempty"`
	Queued  []QueueJob `json:"queued"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool        `json:"running"`
	PID          int         `json:"pid"`
	LockFilePath string      `json:"lockFilePath"`
	RecordsPath  string      `json:"recordsPath"`
	HistoryPath  string      `json:"historyPath"`
	Files        int         `json:"files"`
	Queue        QueueStatus `json:"queue"`
}

// HistoryEntry is one job row.
type HistoryEntry struct {
	JobID           string            `json:"jobId"`
	FileID          string            `json:"fileId"`
	Name            string            `json:"name"`
	Steps           string            `json:"steps"`
	ModelType       string            `json:"modelType,omitempty"`
	ModelSize       string            `json:"modelSize,omitempty"`
	Status          string            `json:"status"`
	Progress        string            `json:"progress,omitempty"`
	Error           *services.Details `json:"error,omitempty"`
	CreatedAt       string            `json:"createdAt"`
	StartedAt       string            `json:"startedAt,omitempty"`
	FinishedAt      string            `json:"finishedAt,omitempty"`
	DurationSeconds float64           `json:"durationSeconds,omitempty"`
}

// HistoryResponse wraps a history listing.
type HistoryResponse struct {
	Jobs []HistoryEntry `json:"jobs"`
}

// LogEvent is a streamed log line or job event.
type LogEvent struct {
	Sequence  uint64            `json:"seq"`
	Timestamp time.Time         `json:"ts"`
	Level     string            `json:"level"`
	Message   string            `json:"msg"`
	Component string            `json:"component,omitempty"`
	Step      string            `json:"step,omitempty"`
	FileID    string            `json:"fileId,omitempty"`
	JobID     string            `json:"jobId,omitempty"`
	EventType string            `json:"eventType,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// LogStreamResponse wraps a page of events and the cursor for the next call.
type LogStreamResponse struct {
	Events []LogEvent `json:"events"`
	Next   uint64     `json:"next"`
}

// HTTPStatus maps an error code to the status the server answers with.
func HTTPStatus(code services.Code) int {
	switch code {
	case services.CodeSuccess:
		return http.StatusOK
	case services.CodeInvalidArgs, services.CodeUnsupportedInput, services.CodeInvalidSteps:
		return http.StatusBadRequest
	case services.CodeInputNotFound:
		return http.StatusNotFound
	case services.CodeAIKeyMissing, services.CodePromptMissing:
		return http.StatusUnprocessableEntity
	case services.CodeUploadFailed:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}
