// Package render turns source clips into binaural stereo at the pipeline rate.
//
// A Renderer resamples the down-mixed source, resolves the requested direction
// against its impulse response set, and convolves the signal with the left and
// right responses. Without a set it falls back to equal-power panning by
// azimuth. Results are cached in a bounded LRU keyed by clip, direction, and
// length; cached entries are sanity-checked on every hit.
package render
