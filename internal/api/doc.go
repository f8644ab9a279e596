// Package api defines the wire-format types shared by the daemon's HTTP
// server and the CLI client.
//
// # Key Types
//
// FileEntry: transport representation of an uploaded file and its step flags.
//
// DaemonStatus: running state, store paths, and the scheduler queue.
//
// HistoryEntry: one finished or in-flight job from the history database.
//
// LogEvent/LogStreamResponse: structured log and job events for long-polling.
//
// # Converters
//
// FromView, FromHistoryJob, FromSnapshot, and FromLogEvents translate internal
// models so consumers never depend on storage types.
//
// # Errors
//
// Failed requests answer with the {code, message, details} triple from
// services.Details. HTTPStatus maps a code to its response status and Client
// turns the triple back into a *services.Error.
//
// DTOs use camelCase JSON tags. Timestamps use RFC3339 with milliseconds.
package api
