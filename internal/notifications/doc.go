// Package notifications delivers pipeline events via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and gracefully degrades to a no-op when notifications are
// disabled. Event methods cover the pipeline milestones so the workflow
// manager can emit consistent messages without duplicating HTTP glue.
package notifications
