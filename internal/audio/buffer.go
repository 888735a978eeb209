package audio

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Buffer is a planar multi-channel block of samples at a fixed rate.
type Buffer struct {
	Rate     int
	Channels [][]float64
}

// New allocates a silent buffer.
func New(rate, channels, frames int) *Buffer {
	b := &Buffer{Rate: rate, Channels: make([][]float64, channels)}
	for i := range b.Channels {
		b.Channels[i] = make([]float64, frames)
	}
	return b
}

// FromMono wraps a single channel.
func FromMono(rate int, samples []float64) *Buffer {
	return &Buffer{Rate: rate, Channels: [][]float64{samples}}
}

// Frames returns the number of samples per channel.
func (b *Buffer) Frames() int {
	if b == nil || len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

// NumChannels returns the channel count.
func (b *Buffer) NumChannels() int {
	if b == nil {
		return 0
	}
	return len(b.Channels)
}

// Clone returns a deep copy.
func (b *Buffer) Clone() *Buffer {
	out := &Buffer{Rate: b.Rate, Channels: make([][]float64, len(b.Channels))}
	for i, ch := range b.Channels {
		out.Channels[i] = append([]float64(nil), ch...)
	}
	return out
}

// Mono averages all channels into one.
func (b *Buffer) Mono() []float64 {
	frames := b.Frames()
	out := make([]float64, frames)
	if len(b.Channels) == 0 {
		return out
	}
	if len(b.Channels) == 1 {
		copy(out, b.Channels[0])
		return out
	}
	for _, ch := range b.Channels {
		floats.Add(out, ch[:frames])
	}
	floats.Scale(1/float64(len(b.Channels)), out)
	return out
}

// Peak returns the largest absolute sample across channels.
func (b *Buffer) Peak() float64 {
	var peak float64
	for _, ch := range b.Channels {
		if len(ch) == 0 {
			continue
		}
		peak = math.Max(peak, floats.Norm(ch, math.Inf(1)))
	}
	return peak
}

// RMS returns the root mean square over all channels.
func (b *Buffer) RMS() float64 {
	var sum float64
	var n int
	for _, ch := range b.Channels {
		sum += floats.Dot(ch, ch)
		n += len(ch)
	}
	if n == 0 {
		return 0
	}
	return math.Sqrt(sum / float64(n))
}

// Scale multiplies every sample by gain in place.
func (b *Buffer) Scale(gain float64) {
	for _, ch := range b.Channels {
		floats.Scale(gain, ch)
	}
}

// IsSilent reports whether every sample is exactly zero.
func (b *Buffer) IsSilent() bool {
	for _, ch := range b.Channels {
		for _, v := range ch {
			if v != 0 {
				return false
			}
		}
	}
	return true
}

// IsFinite reports whether the buffer holds no NaN or infinite samples.
func (b *Buffer) IsFinite() bool {
	for _, ch := range b.Channels {
		for _, v := range ch {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}

// Equal reports bit-identical contents, rate, and shape.
func (b *Buffer) Equal(other *Buffer) bool {
	if b == nil || other == nil {
		return b == other
	}
	if b.Rate != other.Rate || len(b.Channels) != len(other.Channels) {
		return false
	}
	for i := range b.Channels {
		if !floats.Same(b.Channels[i], other.Channels[i]) {
			return false
		}
	}
	return true
}

// Fit truncates or zero-pads every channel to frames.
func (b *Buffer) Fit(frames int) {
	for i, ch := range b.Channels {
		b.Channels[i] = Fit(ch, frames)
	}
}

// Fit returns x truncated or zero-padded to n samples.
func Fit(x []float64, n int) []float64 {
	if len(x) == n {
		return x
	}
	if len(x) > n {
		return x[:n]
	}
	out := make([]float64, n)
	copy(out, x)
	return out
}

// DBToGain converts decibels to a linear gain.
func DBToGain(db float64) float64 {
	return math.Pow(10, db/20)
}

// GainToDB converts a linear gain to decibels.
func GainToDB(gain float64) float64 {
	if gain <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(gain)
}
