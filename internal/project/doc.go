// Package project defines the durable project record, its stage lifecycle
// graph, and the SQLite-backed store that keeps exactly one authoritative
// status per project across restarts.
//
// Writes go through compare-and-swap on the record version so concurrent
// mutators cannot lose updates; the generating stages carry an active job
// handle used for completion fencing and startup reconciliation.
package project
