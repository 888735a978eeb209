// Package source lists and loads raw clips from the supported audio corpora.
//
// Each corpus is exposed through an Adapter that reports the (kind, category)
// labels it can supply, lists clips matching a Filter in stable ID order, and
// decodes clip audio at its native rate. Corpus labels are mapped onto a shared
// category vocabulary by embedded YAML tables so that clips of one category can
// come from several corpora.
package source
