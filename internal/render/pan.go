package render

import (
	"math"

	"misophonia/internal/hrtf"
)

// PanGains returns equal-power left and right gains for the azimuth of dir.
// Elevation is ignored.
func PanGains(dir hrtf.Direction) (left, right float64) {
	theta := (dir.Pan() + 1) * math.Pi / 4
	return math.Cos(theta), math.Sin(theta)
}
