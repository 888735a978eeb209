// Package mix combines spatialised layers into a binaural mixture and its
// trigger-only ground truth.
package mix

import (
	"fmt"
	"math"

	"misophonia/internal/audio"
	"misophonia/internal/config"
	"misophonia/internal/pipeline"
)

// Below this RMS a layer is treated as silent and left unnormalised.
const silenceRMS = 1e-6

// Layer is one stereo clip placed in the mixture.
type Layer struct {
	Buffer    *audio.Buffer
	Onset     int
	GainDB    float64
	IsTrigger bool
}

// Result holds a mixture and its ground truth, both Length frames.
type Result struct {
	Mix         *audio.Buffer
	GroundTruth *audio.Buffer
	// Scale is the peak normalisation factor applied to both buffers.
	Scale     float64
	IsTrigger bool
}

// Options configures an Engine.
type Options struct {
	Rate             int
	PeakCeilingDBFS  float64
	CrossfadeMS      float64
	ReferenceRMSDBFS float64
}

// Engine mixes layers. It holds no mutable state and never modifies its inputs.
type Engine struct {
	opts Options
}

// New returns an Engine.
func New(opts Options) *Engine {
	return &Engine{opts: opts}
}

// FromConfig returns an Engine using the [mix] and [audio] sections.
func FromConfig(cfg *config.Config) *Engine {
	return New(Options{
		Rate:             cfg.Audio.SampleRate,
		PeakCeilingDBFS:  cfg.Mix.PeakCeilingDBFS,
		CrossfadeMS:      cfg.Mix.CrossfadeMS,
		ReferenceRMSDBFS: cfg.Mix.ReferenceRMSDBFS,
	})
}

// Mix loops or trims the background to length frames, adds each foreground at
// its onset, and sums trigger layers into the ground truth. A nil background
// yields a foreground-only mixture.
func (e *Engine) Mix(background *Layer, foregrounds []Layer, length int) (*Result, error) {
	if length <= 0 {
		return nil, pipeline.Wrap(pipeline.ErrValidation, "mix", "mix item", fmt.Sprintf("invalid length %d", length), nil)
	}
	out := audio.New(e.opts.Rate, 2, length)
	truth := audio.New(e.opts.Rate, 2, length)
	res := &Result{Mix: out, GroundTruth: truth, Scale: 1}

	if background != nil {
		if err := e.check(background, "background"); err != nil {
			return nil, err
		}
		gain := e.layerGain(background)
		fade := int(math.Round(e.opts.CrossfadeMS * float64(e.opts.Rate) / 1000))
		for c := range 2 {
			looped := audio.Loop(background.Buffer.Channels[c], length, fade)
			dst := out.Channels[c]
			for i, v := range looped {
				dst[i] += v * gain
			}
		}
	}

	for i := range foregrounds {
		fg := &foregrounds[i]
		if err := e.check(fg, fmt.Sprintf("foreground %d", i)); err != nil {
			return nil, err
		}
		if fg.Onset < 0 {
			return nil, pipeline.Wrap(pipeline.ErrValidation, "mix", "mix item", fmt.Sprintf("foreground %d has negative onset %d", i, fg.Onset), nil)
		}
		gain := e.layerGain(fg)
		add(out, fg.Buffer, fg.Onset, gain)
		if fg.IsTrigger {
			add(truth, fg.Buffer, fg.Onset, gain)
			res.IsTrigger = true
		}
	}

	ceiling := audio.DBToGain(e.opts.PeakCeilingDBFS)
	if peak := out.Peak(); peak > ceiling {
		res.Scale = ceiling / peak
		out.Scale(res.Scale)
		truth.Scale(res.Scale)
	}
	return res, nil
}

func (e *Engine) check(l *Layer, name string) error {
	switch {
	case l.Buffer == nil:
		return pipeline.Wrap(pipeline.ErrValidation, "mix", "mix item", name+" has no audio", nil)
	case l.Buffer.NumChannels() != 2:
		return pipeline.Wrap(pipeline.ErrValidation, "mix", "mix item", fmt.Sprintf("%s has %d channels, want 2", name, l.Buffer.NumChannels()), nil)
	case l.Buffer.Rate != e.opts.Rate:
		return pipeline.Wrap(pipeline.ErrValidation, "mix", "mix item", fmt.Sprintf("%s is %d Hz, want %d", name, l.Buffer.Rate, e.opts.Rate), nil)
	}
	return nil
}

// layerGain combines RMS normalisation to the reference level with the layer gain.
func (e *Engine) layerGain(l *Layer) float64 {
	gain := audio.DBToGain(l.GainDB)
	if rms := l.Buffer.RMS(); rms >= silenceRMS {
		gain *= audio.DBToGain(e.opts.ReferenceRMSDBFS) / rms
	}
	return gain
}

func add(dst, src *audio.Buffer, onset int, gain float64) {
	length := dst.Frames()
	if onset >= length {
		return
	}
	for c := range 2 {
		d := dst.Channels[c][onset:]
		s := src.Channels[c]
		if len(s) > len(d) {
			s = s[:len(d)]
		}
		for i, v := range s {
			d[i] += v * gain
		}
	}
}
