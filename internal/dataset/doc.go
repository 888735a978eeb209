// Package dataset turns generator output into consumable splits.
//
// A Split is an ordered list of Items. Items built by a Generated dataset are
// materialised on first access through a Materializer (render + mix); items
// of a Premade dataset are read from a persisted split directory. WriteSplit
// persists a split with a worker pool, writing metadata.csv and finally
// manifest.json, whose presence marks the split complete.
package dataset
