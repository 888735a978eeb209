// Package main hosts the misophonia CLI entrypoint and command graph.
//
// The Cobra-based command tree generates dataset splits, downloads the raw
// corpora, searches clip metadata, inspects saved splits, lists the run
// catalog, and scaffolds configuration. It centralizes configuration
// resolution and structured logging setup so subcommands can focus on user
// experience instead of wiring.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
