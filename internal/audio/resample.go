package audio

import "math"

// DefaultHalfWidth is the number of zero crossings of the sinc kernel on each
// side of the interpolation point.
const DefaultHalfWidth = 32

// Resample converts buf to rate with a Blackman-windowed sinc interpolator.
// The kernel is normalised per output sample so DC gain is exactly one.
func (b *Buffer) Resample(rate, halfWidth int) *Buffer {
	if b.Rate == rate || rate <= 0 {
		return b.Clone()
	}
	out := &Buffer{Rate: rate, Channels: make([][]float64, len(b.Channels))}
	for i, ch := range b.Channels {
		out.Channels[i] = Resample(ch, b.Rate, rate, halfWidth)
	}
	return out
}

// Resample converts x from one rate to another.
func Resample(x []float64, from, to, halfWidth int) []float64 {
	if from == to || len(x) == 0 {
		return append([]float64(nil), x...)
	}
	if halfWidth <= 0 {
		halfWidth = DefaultHalfWidth
	}
	n := int((int64(len(x))*int64(to) + int64(from) - 1) / int64(from))
	out := make([]float64, n)

	ratio := float64(from) / float64(to)
	// Cutoff relative to the input Nyquist; below one when downsampling.
	cutoff := math.Min(1, float64(to)/float64(from))
	support := float64(halfWidth) / cutoff

	for i := range out {
		t := float64(i) * ratio
		lo := int(math.Ceil(t - support))
		hi := int(math.Floor(t + support))
		if lo < 0 {
			lo = 0
		}
		if hi > len(x)-1 {
			hi = len(x) - 1
		}
		var acc, norm float64
		for k := lo; k <= hi; k++ {
			d := t - float64(k)
			w := cutoff * sinc(cutoff*d) * blackman(d/support)
			acc += x[k] * w
			norm += w
		}
		if norm != 0 {
			out[i] = acc / norm
		}
	}
	return out
}

func sinc(x float64) float64 {
	if x == 0 {
		return 1
	}
	px := math.Pi * x
	return math.Sin(px) / px
}

// blackman evaluates a Blackman window stretched over [-1, 1].
func blackman(x float64) float64 {
	if x <= -1 || x >= 1 {
		return 0
	}
	return 0.42 + 0.5*math.Cos(math.Pi*x) + 0.08*math.Cos(2*math.Pi*x)
}
