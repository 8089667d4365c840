// Package notifications delivers pipeline events via ntfy.
//
// The default implementation publishes to the topic configured in config.toml
// and gracefully degrades to a no-op when notifications are disabled.
// Completion and error notifications can be toggled independently; all
// pipeline code depends only on the simple Service interface.
package notifications
