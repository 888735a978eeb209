// Package catalog records generation runs in SQLite.
//
// Every `misophonia generate` invocation opens a run before planning and
// closes it with its outcome (completed, failed, cancelled) and item counts.
// MarkStale flags runs a crashed process left running. The database is a
// history, not a source of truth: splits on disk are authoritative, and a
// schema change bumps schemaVersion so users delete the file to adopt it.
package catalog
