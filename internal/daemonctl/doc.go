// Package daemonctl starts, stops, and restarts a background summify daemon
// from the CLI. It talks to the daemon over the HTTP API and signals the
// process recorded in the pid file; it never opens the stores itself.
package daemonctl
