package audio

// Smoothstep maps t in [0, 1] onto an S-curve with zero slope at both ends.
func Smoothstep(t float64) float64 {
	if t <= 0 {
		return 0
	}
	if t >= 1 {
		return 1
	}
	return t * t * (3 - 2*t)
}

// Loop returns x repeated to exactly n samples. Each seam overlaps the tail of
// one repetition with the head of the next over fade samples. Inputs at least
// n samples long are trimmed.
func Loop(x []float64, n, fade int) []float64 {
	if n <= 0 {
		return []float64{}
	}
	if len(x) == 0 {
		return make([]float64, n)
	}
	if len(x) >= n {
		return append([]float64(nil), x[:n]...)
	}
	if fade > len(x)/2 {
		fade = len(x) / 2
	}
	if fade < 0 {
		fade = 0
	}

	out := make([]float64, 0, n+len(x))
	out = append(out, x...)
	for len(out) < n {
		seam := len(out) - fade
		for j := 0; j < fade; j++ {
			g := Smoothstep(float64(j+1) / float64(fade+1))
			out[seam+j] = out[seam+j]*(1-g) + x[j]*g
		}
		out = append(out, x[fade:]...)
	}
	return out[:n]
}
