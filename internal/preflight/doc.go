// Package preflight provides readiness checks for the directories, disk
// space, raw corpora, impulse responses and external binaries a generation
// run depends on.
//
// The CLI "misophonia check" command prints every result; "misophonia
// generate" runs RunAll first and refuses to start when a check fails, so a
// long run does not die halfway on a full disk or a missing corpus.
package preflight
