// Package pipeline defines shared utilities consumed by every stage of dataset
// generation.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, dataset and split names, item
//     indexes, and stage names for logging.
//   - Structured error markers plus the Wrap helper, and the typed errors the
//     CLI reports with a kind and a remediation hint.
//
// Use these helpers when wiring new stage logic so failures are classified the
// same way across adapters, rendering, generation, and persistence.
package pipeline
