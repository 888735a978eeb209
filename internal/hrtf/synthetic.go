package hrtf

import "math"

const (
	headRadius    = 0.0875 // metres
	speedOfSound  = 343.0  // metres per second
	irSeconds     = 0.003
	delayTaps     = 8
	nearEarBoost  = 0.1
	farEarCut     = 0.5
	farEarSmooth  = 0.6
	rearPinnaLoss = 0.2
)

// Synthetic builds a spherical-head model set on the given grid. Interaural
// time differences follow Woodworth's formula; level differences use a
// broadband gain plus a one-pole low-pass on the shadowed ear, and sources
// behind the head are slightly darkened in both ears.
func Synthetic(rate int, azimuthStep float64, elevations []float64) *Set {
	dirs := Grid(azimuthStep, elevations)
	length := int(math.Ceil(irSeconds*float64(rate))) + 2*delayTaps
	irs := make([]IR, len(dirs))
	for i, d := range dirs {
		irs[i] = sphericalHead(d, rate, length)
	}
	set, _ := NewSet("synthetic", rate, irs)
	return set
}

func sphericalHead(d Direction, rate, length int) IR {
	x, y, _ := d.unit()
	lateral := math.Asin(math.Max(-1, math.Min(1, y)))
	itd := headRadius / speedOfSound * (lateral + math.Sin(lateral))
	shadow := math.Abs(math.Sin(lateral))
	rear := rearPinnaLoss * math.Max(0, -x)

	// Positive itd: the source is on the left, so the right ear hears it later.
	base := float64(delayTaps)
	leftDelay := base + math.Max(0, -itd)*float64(rate)
	rightDelay := base + math.Max(0, itd)*float64(rate)

	nearGain := 1 + nearEarBoost*shadow
	farGain := 1 - farEarCut*shadow
	farSmooth := farEarSmooth * shadow

	left := fractionalImpulse(leftDelay, length)
	right := fractionalImpulse(rightDelay, length)
	if itd >= 0 {
		shape(left, nearGain, rear)
		shape(right, farGain, math.Min(0.95, farSmooth+rear))
	} else {
		shape(left, farGain, math.Min(0.95, farSmooth+rear))
		shape(right, nearGain, rear)
	}
	return IR{Direction: d, Left: left, Right: right}
}

// fractionalImpulse places a unit impulse at a fractional delay using a
// Hann-windowed sinc.
func fractionalImpulse(delay float64, length int) []float64 {
	out := make([]float64, length)
	for n := range out {
		t := float64(n) - delay
		if math.Abs(t) >= delayTaps {
			continue
		}
		w := 0.5 * (1 + math.Cos(math.Pi*t/delayTaps))
		if t == 0 {
			out[n] = w
			continue
		}
		out[n] = w * math.Sin(math.Pi*t) / (math.Pi * t)
	}
	return out
}

// shape applies a gain and a one-pole low-pass with coefficient a in place.
func shape(x []float64, gain, a float64) {
	var prev float64
	for i, v := range x {
		prev = (1-a)*v + a*prev
		x[i] = gain * prev
	}
}
