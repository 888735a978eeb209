package source

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand/v2"
	"time"

	"misophonia/internal/audio"
)

const (
	syntheticLicense          = "CC0 1.0"
	defaultSyntheticRate      = 16000
	defaultSyntheticSeconds   = 1.5
	defaultSyntheticPerLabel  = 16
	defaultBackgroundSeconds  = 2.0
	syntheticPeak             = 0.5
	syntheticClickMillis      = 4.0
	syntheticChewRateHz       = 1.6
	syntheticTypingMeanGapSec = 0.11
)

var syntheticLabels = []Label{
	{Kind: KindBackground, Category: "noise_bed"},
	{Kind: KindBackground, Category: "room_tone"},
	{Kind: KindControl, Category: "birdsong"},
	{Kind: KindControl, Category: "bell"},
	{Kind: KindTrigger, Category: "chewing"},
	{Kind: KindTrigger, Category: "clicking"},
	{Kind: KindTrigger, Category: "keyboard_typing"},
}

// SyntheticOptions configures the procedural corpus.
type SyntheticOptions struct {
	Rate             int
	Seconds          float64
	ClipsPerCategory int
}

// Synthetic procedurally generates clips for every label it advertises. It
// needs no files and is deterministic per clip ID.
type Synthetic struct {
	rate    int
	seconds float64
	perCat  int
}

// NewSynthetic returns a synthetic adapter, filling unset options with defaults.
func NewSynthetic(opts SyntheticOptions) *Synthetic {
	s := &Synthetic{rate: opts.Rate, seconds: opts.Seconds, perCat: opts.ClipsPerCategory}
	if s.rate <= 0 {
		s.rate = defaultSyntheticRate
	}
	if s.seconds <= 0 {
		s.seconds = defaultSyntheticSeconds
	}
	if s.perCat <= 0 {
		s.perCat = defaultSyntheticPerLabel
	}
	return s
}

func (s *Synthetic) Name() string { return "synthetic" }

func (s *Synthetic) Labels() []Label { return append([]Label(nil), syntheticLabels...) }

func (s *Synthetic) ListClips(ctx context.Context, filter Filter) ([]Clip, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var clips []Clip
	for _, label := range syntheticLabels {
		if !filter.Match(label.Kind, label.Category) {
			continue
		}
		seconds := s.seconds
		if label.Kind == KindBackground {
			seconds = math.Max(seconds, defaultBackgroundSeconds)
		}
		frames := int(math.Round(seconds * float64(s.rate)))
		for i := range s.perCat {
			clips = append(clips, Clip{
				ID:          fmt.Sprintf("synthetic:%s-%03d", label.Category, i),
				Corpus:      s.Name(),
				Kind:        label.Kind,
				Category:    label.Category,
				SourceLabel: label.Category,
				Duration:    time.Duration(float64(frames) / float64(s.rate) * float64(time.Second)),
				SampleRate:  s.rate,
				Channels:    1,
				License:     syntheticLicense,
			})
		}
	}
	sortClips(clips)
	return clips, nil
}

// LoadAudio synthesises the clip. Repeated loads return identical samples.
func (s *Synthetic) LoadAudio(ctx context.Context, clip Clip) (*audio.Buffer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if clip.Corpus != s.Name() {
		return nil, fmt.Errorf("synthetic: clip %s belongs to %s", clip.ID, clip.Corpus)
	}
	rate := clip.SampleRate
	if rate <= 0 {
		rate = s.rate
	}
	frames := clip.Frames(rate)
	h := fnv.New64a()
	h.Write([]byte(clip.ID))
	rng := rand.New(rand.NewPCG(h.Sum64(), 0x6d69736f))

	x := make([]float64, frames)
	switch clip.Category {
	case "chewing":
		chew(x, rate, rng)
	case "clicking":
		clicks(x, rate, rng, 0.35, 2)
	case "keyboard_typing":
		clicks(x, rate, rng, syntheticTypingMeanGapSec, 1)
	case "birdsong":
		chirps(x, rate, rng)
	case "bell":
		bell(x, rate, rng)
	case "noise_bed":
		noiseBed(x, rng, 0.05)
	case "room_tone":
		noiseBed(x, rng, 0.01)
		hum(x, rate, rng)
	default:
		return nil, fmt.Errorf("synthetic: unknown category %q", clip.Category)
	}
	normalizePeak(x, syntheticPeak)
	return audio.FromMono(rate, x), nil
}

// chew places decaying bursts of low-passed noise at a jittered chewing rhythm.
func chew(x []float64, rate int, rng *rand.Rand) {
	period := float64(rate) / (syntheticChewRateHz * (0.8 + 0.4*rng.Float64()))
	burst := int(0.12 * float64(rate))
	first := math.Min(period*0.5, float64(len(x))*0.5)
	for start := rng.Float64() * first; int(start) < len(x); start += period * (0.85 + 0.3*rng.Float64()) {
		var lp float64
		for j := 0; j < burst && int(start)+j < len(x); j++ {
			lp += 0.3 * (rng.NormFloat64() - lp)
			env := math.Exp(-float64(j) / (0.03 * float64(rate)))
			x[int(start)+j] += lp * env
		}
	}
}

// clicks places short broadband transients with exponential gaps of mean gap
// seconds, each repeated `repeat` times a few milliseconds apart.
func clicks(x []float64, rate int, rng *rand.Rand, gap float64, repeat int) {
	width := int(syntheticClickMillis / 1000 * float64(rate))
	if width < 2 {
		width = 2
	}
	// The first click always lands inside the clip so no clip is silent.
	pos := rng.Float64() * float64(max(1, len(x)-width))
	for int(pos) < len(x) {
		amp := 0.5 + 0.5*rng.Float64()
		for r := range repeat {
			at := int(pos) + r*int(0.06*float64(rate))
			for j := 0; j < width && at+j < len(x); j++ {
				x[at+j] += amp * rng.NormFloat64() * math.Exp(-float64(j)/float64(width)*4)
			}
		}
		pos += (0.02 + rng.ExpFloat64()*gap) * float64(rate)
	}
}

// chirps sweeps short tones upward, as a stand-in for birdsong.
func chirps(x []float64, rate int, rng *rand.Rand) {
	n := len(x)
	chirp := int(0.08 * float64(rate))
	nyq := float64(rate) / 2
	for start := int(rng.Float64() * math.Min(0.2*float64(rate), float64(n)*0.5)); start < n; start += chirp + int((0.05+0.2*rng.Float64())*float64(rate)) {
		f0 := math.Min(1500+1500*rng.Float64(), nyq*0.5)
		f1 := math.Min(f0*1.8, nyq*0.9)
		var phase float64
		for j := 0; j < chirp && start+j < n; j++ {
			t := float64(j) / float64(chirp)
			phase += 2 * math.Pi * (f0 + (f1-f0)*t) / float64(rate)
			x[start+j] += math.Sin(phase) * math.Sin(math.Pi*t)
		}
	}
}

// bell strikes inharmonic partials with exponential decay.
func bell(x []float64, rate int, rng *rand.Rand) {
	f := 300 + 500*rng.Float64()
	nyq := float64(rate) / 2
	for i, ratio := range []float64{1, 2.76, 5.4} {
		fp := f * ratio
		if fp >= nyq {
			break
		}
		amp := 1 / float64(i+1)
		tau := (0.6 - 0.15*float64(i)) * float64(rate)
		for j := range x {
			x[j] += amp * math.Sin(2*math.Pi*fp*float64(j)/float64(rate)) * math.Exp(-float64(j)/tau)
		}
	}
}

// noiseBed adds one-pole low-passed Gaussian noise.
func noiseBed(x []float64, rng *rand.Rand, alpha float64) {
	var lp float64
	for i := range x {
		lp += alpha * (rng.NormFloat64() - lp)
		x[i] += lp
	}
}

func hum(x []float64, rate int, rng *rand.Rand) {
	f := 50 + 10*rng.Float64()
	for i := range x {
		t := float64(i) / float64(rate)
		x[i] += 0.2*math.Sin(2*math.Pi*f*t) + 0.05*math.Sin(2*math.Pi*3*f*t)
	}
}

func normalizePeak(x []float64, peak float64) {
	var m float64
	for _, v := range x {
		m = math.Max(m, math.Abs(v))
	}
	if m == 0 {
		return
	}
	g := peak / m
	for i := range x {
		x[i] *= g
	}
}
