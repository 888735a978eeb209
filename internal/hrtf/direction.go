package hrtf

import (
	"fmt"
	"math"
)

// Direction is a virtual source position relative to the listener.
type Direction struct {
	Azimuth   float64 `json:"azimuth"`
	Elevation float64 `json:"elevation"`
}

// Normalize wraps azimuth into [0, 360) and clamps elevation to [-90, 90].
func (d Direction) Normalize() Direction {
	az := math.Mod(d.Azimuth, 360)
	if az < 0 {
		az += 360
	}
	if az == 360 {
		az = 0
	}
	el := math.Max(-90, math.Min(90, d.Elevation))
	return Direction{Azimuth: az, Elevation: el}
}

func (d Direction) String() string {
	return fmt.Sprintf("az=%.2f el=%.2f", d.Azimuth, d.Elevation)
}

// Pan maps the azimuth to a stereo position in [-1, 1], -1 hard left.
func (d Direction) Pan() float64 {
	return -math.Sin(d.Azimuth * math.Pi / 180)
}

func (d Direction) unit() (x, y, z float64) {
	az := d.Azimuth * math.Pi / 180
	el := d.Elevation * math.Pi / 180
	return math.Cos(el) * math.Cos(az), math.Cos(el) * math.Sin(az), math.Sin(el)
}

// AngularDistance returns the great-circle angle between two directions in degrees.
func AngularDistance(a, b Direction) float64 {
	ax, ay, az := a.unit()
	bx, by, bz := b.unit()
	dot := ax*bx + ay*by + az*bz
	dot = math.Max(-1, math.Min(1, dot))
	return math.Acos(dot) * 180 / math.Pi
}

// Grid returns every azimuth step around the circle at each elevation.
func Grid(step float64, elevations []float64) []Direction {
	if step <= 0 {
		step = 15
	}
	if len(elevations) == 0 {
		elevations = []float64{0}
	}
	var out []Direction
	for _, el := range elevations {
		for az := 0.0; az < 360-1e-9; az += step {
			out = append(out, Direction{Azimuth: az, Elevation: el}.Normalize())
		}
	}
	return out
}
