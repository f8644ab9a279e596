// Package history persists the lifecycle of pipeline jobs in SQLite.
//
// Each job enqueued with the scheduler gets one row that moves from queued to
// running and then to completed or failed, carrying the coded error triple on
// failure and the last progress line while it runs. Rows survive restarts so
// the CLI and API can show what happened to earlier runs; rows left queued or
// running by a previous process are marked failed on open.
package history
