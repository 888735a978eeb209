// Package audio holds the sample buffer shared by every pipeline stage plus the
// signal utilities around it: WAV decoding and encoding, PCM quantisation,
// band-limited resampling, looping with crossfades, and level statistics.
//
// Buffers are planar float64 with samples nominally in [-1, 1]. Functions in
// this package are deterministic; the same input always produces the same
// output bits.
package audio
