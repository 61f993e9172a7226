// Package main hosts the adforge CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into HTTP
// calls against the daemon API: pipeline status, project listings, stage
// inspection, cancellation, notification checks, and configuration
// scaffolding. It centralizes configuration resolution and daemon address
// discovery so subcommands can focus on output rendering.
package main
