// Package generate plans dataset splits.
//
// A Generator loads the clip inventories of its source adapters once and then
// turns (split, count, seed) requests into MixSpecs: which clips go into each
// item, where they sit in space and time, and at what gain. All randomness is
// derived from the seed, the split name, and the item index, so a request
// always reproduces the same specs.
package generate
