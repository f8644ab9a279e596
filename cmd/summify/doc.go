// Command summify is the command-line entry point for the transcription and
// summarization pipeline.
//
// "summify serve" runs the daemon: the HTTP API, the single background worker,
// and the optional upload watcher. Every other command talks to a running
// daemon over the API when one answers on paths.api_bind, and falls back to
// opening the record store, history database, and pipeline in-process when no
// daemon is reachable. The in-process path makes "summify run" usable as a
// one-shot batch tool.
package main
