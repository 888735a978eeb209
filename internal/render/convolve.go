package render

import (
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Below this many multiply-adds direct convolution beats the FFT path.
const directConvolutionLimit = 1 << 15

// fftScale caches, per transform size, the factor by which a forward plus
// inverse transform scales its input.
var fftScale sync.Map

// Convolve returns the full linear convolution of x and h, len(x)+len(h)-1 samples.
func Convolve(x, h []float64) []float64 {
	if len(x) == 0 || len(h) == 0 {
		return []float64{}
	}
	n := len(x) + len(h) - 1
	if len(x)*len(h) <= directConvolutionLimit {
		return convolveDirect(x, h, n)
	}

	size := 1
	for size < n {
		size <<= 1
	}
	fft := fourier.NewFFT(size)

	xp := make([]float64, size)
	copy(xp, x)
	hp := make([]float64, size)
	copy(hp, h)

	X := fft.Coefficients(nil, xp)
	H := fft.Coefficients(nil, hp)
	for i := range X {
		X[i] *= H[i]
	}
	y := fft.Sequence(nil, X)

	inv := 1 / roundTripScale(fft, size)
	out := make([]float64, n)
	for i := range out {
		out[i] = y[i] * inv
	}
	return out
}

func convolveDirect(x, h []float64, n int) []float64 {
	out := make([]float64, n)
	for i, xv := range x {
		if xv == 0 {
			continue
		}
		for j, hv := range h {
			out[i+j] += xv * hv
		}
	}
	return out
}

func roundTripScale(fft *fourier.FFT, size int) float64 {
	if v, ok := fftScale.Load(size); ok {
		return v.(float64)
	}
	probe := make([]float64, size)
	probe[0] = 1
	scale := fft.Sequence(nil, fft.Coefficients(nil, probe))[0]
	fftScale.Store(size, scale)
	return scale
}
