// Package logs reads the daemon log file directly. The CLI falls back to it
// when no daemon answers on the API, so `summify events` still shows what
// the last run logged.
//
// Tail supports negative offsets for "last N lines", follow-mode polling,
// rotation detection, and per-job filtering that works for both the console
// and JSON log formats.
package logs
