package hrtf

import (
	"fmt"
	"sort"

	"misophonia/internal/audio"
	"misophonia/internal/pipeline"
)

// MatchTolerance is the angular distance, in degrees, within which a requested
// direction counts as measured.
const MatchTolerance = 0.01

// Policy decides how Resolve treats directions without a measurement.
type Policy string

const (
	PolicySnap Policy = "snap"
	PolicyFail Policy = "fail"
)

// ParsePolicy converts a configuration value into a Policy.
func ParsePolicy(value string) (Policy, error) {
	switch Policy(value) {
	case PolicySnap, PolicyFail:
		return Policy(value), nil
	case "":
		return PolicySnap, nil
	default:
		return "", fmt.Errorf("unknown direction policy %q", value)
	}
}

// IR is the impulse response pair measured at one direction.
type IR struct {
	Direction Direction
	Left      []float64
	Right     []float64
}

// Set is an immutable collection of impulse responses at one sample rate.
type Set struct {
	name string
	rate int
	irs  []IR
}

// NewSet validates and sorts irs by azimuth, then elevation.
func NewSet(name string, rate int, irs []IR) (*Set, error) {
	if len(irs) == 0 {
		return nil, fmt.Errorf("hrtf set %q: no impulse responses", name)
	}
	if rate <= 0 {
		return nil, fmt.Errorf("hrtf set %q: invalid sample rate %d", name, rate)
	}
	sorted := make([]IR, len(irs))
	for i, ir := range irs {
		if len(ir.Left) == 0 || len(ir.Left) != len(ir.Right) {
			return nil, fmt.Errorf("hrtf set %q: %s has mismatched ear lengths %d/%d", name, ir.Direction, len(ir.Left), len(ir.Right))
		}
		ir.Direction = ir.Direction.Normalize()
		sorted[i] = ir
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].Direction, sorted[j].Direction
		if a.Azimuth != b.Azimuth {
			return a.Azimuth < b.Azimuth
		}
		return a.Elevation < b.Elevation
	})
	return &Set{name: name, rate: rate, irs: sorted}, nil
}

// Name identifies the set in logs and metadata.
func (s *Set) Name() string { return s.name }

// Rate returns the sample rate of the impulse responses.
func (s *Set) Rate() int { return s.rate }

// Len returns the number of measured directions.
func (s *Set) Len() int { return len(s.irs) }

// Directions lists the measured directions in sorted order.
func (s *Set) Directions() []Direction {
	out := make([]Direction, len(s.irs))
	for i, ir := range s.irs {
		out[i] = ir.Direction
	}
	return out
}

// Nearest returns the measured response closest to dir. Ties resolve to the
// lowest azimuth, then the lowest elevation.
func (s *Set) Nearest(dir Direction) (IR, float64) {
	dir = dir.Normalize()
	best := 0
	bestDist := AngularDistance(dir, s.irs[0].Direction)
	for i := 1; i < len(s.irs); i++ {
		if d := AngularDistance(dir, s.irs[i].Direction); d < bestDist {
			best, bestDist = i, d
		}
	}
	return s.irs[best], bestDist
}

// Resolve returns the response for dir under policy. With PolicyFail an
// unmeasured direction yields *pipeline.UnsupportedDirectionError.
func (s *Set) Resolve(dir Direction, policy Policy) (IR, error) {
	ir, dist := s.Nearest(dir)
	if dist <= MatchTolerance || policy != PolicyFail {
		return ir, nil
	}
	return IR{}, &pipeline.UnsupportedDirectionError{
		Azimuth:   dir.Azimuth,
		Elevation: dir.Elevation,
		Nearest:   ir.Direction.String(),
	}
}

// Resample returns a copy of the set at rate.
func (s *Set) Resample(rate, halfWidth int) *Set {
	if rate == s.rate {
		return s
	}
	irs := make([]IR, len(s.irs))
	for i, ir := range s.irs {
		irs[i] = IR{
			Direction: ir.Direction,
			Left:      audio.Resample(ir.Left, s.rate, rate, halfWidth),
			Right:     audio.Resample(ir.Right, s.rate, rate, halfWidth),
		}
	}
	return &Set{name: s.name, rate: rate, irs: irs}
}
