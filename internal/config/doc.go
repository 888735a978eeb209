// Package config loads, normalizes, and validates misophonia configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the MISOPHONIA_DATA_DIR
// environment fallback. The Config type centralizes every knob the generator,
// renderer, mixer, and CLI need so raw corpus locations, output format, and
// sampling policy are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical policies, and clear validation errors.
package config
