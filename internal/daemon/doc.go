// Package daemon coordinates the long-running summify process.
//
// It wires configuration, the record and history stores, and the workflow
// scheduler into a single lifecycle with flock-based locking to prevent
// multiple instances. On start the daemon fails jobs a previous process left
// unfinished, migrates the record store, and registers files already sitting
// in the upload directory. It then serves the HTTP API and, when enabled,
// watches the upload directory so dropped-in files are registered without a
// manual sync.
//
// Keep orchestration logic here: step code lives in pipeline and queueing in
// workflow, while the daemon focuses on startup, shutdown, and request
// handling.
package daemon
