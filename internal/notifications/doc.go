// Package notifications delivers job events to ntfy.
//
// The ntfy implementation posts plain-text messages to the configured topic
// URL and degrades to a no-op when no topic is set. Completion and failure
// events can be muted independently through config.toml. Workflow code
// depends only on the Service interface.
package notifications
