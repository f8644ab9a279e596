// Package services defines shared utilities consumed by the pipeline steps and
// external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp record IDs, job IDs, step names, and
//     correlation identifiers for logging and tracing.
//   - The coded error taxonomy ({code, message, details}) plus the Wrap helper
//     used by every step so API clients and the CLI report failures uniformly.
//
// Use these helpers when wiring new step logic so operational behaviour (error
// handling, observability, retries) stays uniform across the pipeline.
package services
