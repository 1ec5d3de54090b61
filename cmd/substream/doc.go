// Package main hosts the substream CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into HTTP
// calls against the daemon API: starting pipelines, checking status, listing
// the queue, batch scans, and configuration scaffolding. Configuration
// resolution and daemon address discovery live in the shared command
// context so subcommands stay declarative.
package main
