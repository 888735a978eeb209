package mix

import (
	"errors"
	"math"
	"testing"

	"misophonia/internal/audio"
	"misophonia/internal/pipeline"
)

const rate = 8000

func stereoTone(frames int, freq, amp float64) *audio.Buffer {
	buf := audio.New(rate, 2, frames)
	for i := range frames {
		v := amp * math.Sin(2*math.Pi*freq*float64(i)/rate)
		buf.Channels[0][i] = v
		buf.Channels[1][i] = 0.5 * v
	}
	return buf
}

func engine() *Engine {
	return New(Options{Rate: rate, PeakCeilingDBFS: -1, CrossfadeMS: 10, ReferenceRMSDBFS: -20})
}

func TestMixLengthsAndGroundTruth(t *testing.T) {
	e := engine()
	bg := &Layer{Buffer: stereoTone(1000, 60, 0.3), GainDB: -12}
	fg := []Layer{
		{Buffer: stereoTone(800, 500, 0.5), Onset: 100, IsTrigger: true},
		{Buffer: stereoTone(800, 900, 0.5), Onset: 3800},
	}
	res, err := e.Mix(bg, fg, 4000)
	if err != nil {
		t.Fatalf("Mix: %v", err)
	}
	if res.Mix.Frames() != 4000 || res.GroundTruth.Frames() != 4000 {
		t.Fatalf("lengths mix=%d gt=%d", res.Mix.Frames(), res.GroundTruth.Frames())
	}
	if !res.IsTrigger {
		t.Fatal("expected trigger result")
	}
	for i := 0; i < 100; i++ {
		if res.GroundTruth.Channels[0][i] != 0 {
			t.Fatalf("ground truth non-zero before trigger onset at %d", i)
		}
	}
	for i := 900; i < 4000; i++ {
		if res.GroundTruth.Channels[0][i] != 0 {
			t.Fatalf("ground truth carries non-trigger audio at %d", i)
		}
	}
	if res.GroundTruth.IsSilent() {
		t.Fatal("ground truth silent for trigger item")
	}
}

func TestMixWithoutTriggersHasZeroGroundTruth(t *testing.T) {
	res, err := engine().Mix(&Layer{Buffer: stereoTone(500, 60, 0.3)}, []Layer{{Buffer: stereoTone(300, 400, 0.2), Onset: 50}}, 2000)
	if err != nil {
		t.Fatalf("Mix: %v", err)
	}
	if res.IsTrigger || !res.GroundTruth.IsSilent() {
		t.Fatalf("expected silent ground truth, trigger=%v", res.IsTrigger)
	}

	bgOnly, err := engine().Mix(&Layer{Buffer: stereoTone(500, 60, 0.3)}, nil, 2000)
	if err != nil {
		t.Fatalf("Mix: %v", err)
	}
	if bgOnly.IsTrigger || !bgOnly.GroundTruth.IsSilent() || bgOnly.Mix.IsSilent() {
		t.Fatal("background-only item should have audio and silent ground truth")
	}
}

func TestMixIsIdempotentAndLeavesInputs(t *testing.T) {
	bgBuf := stereoTone(700, 80, 0.4)
	fgBuf := stereoTone(600, 700, 0.9)
	bgCopy, fgCopy := bgBuf.Clone(), fgBuf.Clone()

	run := func() *Result {
		res, err := engine().Mix(&Layer{Buffer: bgBuf, GainDB: -6}, []Layer{{Buffer: fgBuf, Onset: 10, GainDB: 0, IsTrigger: true}}, 3000)
		if err != nil {
			t.Fatalf("Mix: %v", err)
		}
		return res
	}
	a, b := run(), run()
	if !a.Mix.Equal(b.Mix) || !a.GroundTruth.Equal(b.GroundTruth) {
		t.Fatal("mixing identical inputs twice produced different output")
	}
	if !bgBuf.Equal(bgCopy) || !fgBuf.Equal(fgCopy) {
		t.Fatal("mix modified its inputs")
	}
}

func TestMixPeakCeilingScalesBoth(t *testing.T) {
	e := New(Options{Rate: rate, PeakCeilingDBFS: -1, ReferenceRMSDBFS: -3})
	fg := []Layer{
		{Buffer: stereoTone(400, 300, 1), IsTrigger: true, GainDB: 6},
		{Buffer: stereoTone(400, 300, 1), GainDB: 6},
	}
	res, err := e.Mix(nil, fg, 400)
	if err != nil {
		t.Fatalf("Mix: %v", err)
	}
	ceiling := audio.DBToGain(-1)
	if res.Scale >= 1 {
		t.Fatalf("expected attenuation, scale=%v", res.Scale)
	}
	if peak := res.Mix.Peak(); peak > ceiling+1e-12 {
		t.Fatalf("mix peak %v above ceiling %v", peak, ceiling)
	}
	// Trigger and control are identical so the ground truth is half the mix.
	for i := range 400 {
		if math.Abs(res.Mix.Channels[0][i]-2*res.GroundTruth.Channels[0][i]) > 1e-12 {
			t.Fatalf("ground truth not scaled with mix at %d", i)
		}
	}
}

func TestMixNormalisesLayerLoudness(t *testing.T) {
	quiet := stereoTone(8000, 440, 0.01)
	res, err := engine().Mix(nil, []Layer{{Buffer: quiet, IsTrigger: true}}, 8000)
	if err != nil {
		t.Fatalf("Mix: %v", err)
	}
	got := audio.GainToDB(res.GroundTruth.RMS())
	if math.Abs(got-(-20)) > 0.01 {
		t.Fatalf("normalised RMS = %.3f dBFS, want -20", got)
	}
}

func TestMixLoopsShortBackground(t *testing.T) {
	res, err := New(Options{Rate: rate, PeakCeilingDBFS: 0, CrossfadeMS: 5, ReferenceRMSDBFS: -20}).
		Mix(&Layer{Buffer: stereoTone(1000, 100, 0.5)}, nil, 5000)
	if err != nil {
		t.Fatalf("Mix: %v", err)
	}
	tail := audio.FromMono(rate, res.Mix.Channels[0][4000:])
	if tail.RMS() < 1e-3 {
		t.Fatal("background was not looped to the full length")
	}
}

func TestMixRejectsBadLayers(t *testing.T) {
	e := engine()
	mono := audio.New(rate, 1, 10)
	if _, err := e.Mix(&Layer{Buffer: mono}, nil, 10); !errors.Is(err, pipeline.ErrValidation) {
		t.Fatalf("expected validation error for mono layer, got %v", err)
	}
	if _, err := e.Mix(nil, nil, 0); !errors.Is(err, pipeline.ErrValidation) {
		t.Fatalf("expected validation error for zero length, got %v", err)
	}
	wrongRate := audio.New(16000, 2, 10)
	if _, err := e.Mix(nil, []Layer{{Buffer: wrongRate}}, 10); !errors.Is(err, pipeline.ErrValidation) {
		t.Fatalf("expected validation error for rate mismatch, got %v", err)
	}
}
