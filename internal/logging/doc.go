// Package logging assembles structured slog loggers and formatting helpers used
// across summify services.
//
// It owns the configurable console/JSON handlers, the size-rotated log file,
// and context-aware helpers so step code can automatically tag log lines with
// record IDs, job IDs, steps, and correlation IDs. StreamHub buffers recent
// events for the daemon's long-poll endpoint. The package also provides a
// no-op logger for tests and wiring code that cannot fail.
package logging
