package render

import (
	"context"
	"errors"
	"math"
	"testing"

	"misophonia/internal/audio"
	"misophonia/internal/hrtf"
	"misophonia/internal/logging"
	"misophonia/internal/pipeline"
)

const testRate = 8000

func tone(rate, frames int, freq float64) *audio.Buffer {
	x := make([]float64, frames)
	for i := range x {
		x[i] = 0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(rate))
	}
	return audio.FromMono(rate, x)
}

func newRenderer(t *testing.T, set *hrtf.Set, policy hrtf.Policy, cache int) *Renderer {
	t.Helper()
	r, err := New(Options{Rate: testRate, Set: set, Policy: policy, CacheEntries: cache, Logger: logging.NewNop()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}

func TestConvolveMatchesDirect(t *testing.T) {
	x := tone(testRate, 2000, 440).Channels[0]
	h := make([]float64, 64)
	for i := range h {
		h[i] = math.Exp(-float64(i) / 8)
	}
	got := Convolve(x, h)
	want := convolveDirect(x, h, len(x)+len(h)-1)
	if len(got) != len(want) {
		t.Fatalf("length %d, want %d", len(got), len(want))
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Fatalf("sample %d: got %v want %v", i, got[i], want[i])
		}
	}
}

func TestRenderLengthAndChannels(t *testing.T) {
	set := hrtf.Synthetic(testRate, 30, nil)
	r := newRenderer(t, set, hrtf.PolicySnap, 0)
	src := tone(testRate, 400, 300)

	clip, err := r.Render(context.Background(), "c1", src, hrtf.Direction{Azimuth: 90}, 0)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	ir, _ := set.Nearest(hrtf.Direction{Azimuth: 90})
	if clip.Buffer.NumChannels() != 2 {
		t.Fatalf("expected stereo, got %d channels", clip.Buffer.NumChannels())
	}
	if want := 400 + len(ir.Left) - 1; clip.Buffer.Frames() != want {
		t.Fatalf("frames = %d, want %d", clip.Buffer.Frames(), want)
	}

	fixed, err := r.Render(context.Background(), "c1", src, hrtf.Direction{Azimuth: 90}, 1000)
	if err != nil {
		t.Fatalf("Render fixed: %v", err)
	}
	if fixed.Buffer.Frames() != 1000 {
		t.Fatalf("fixed frames = %d, want 1000", fixed.Buffer.Frames())
	}
}

func TestRenderDeterministic(t *testing.T) {
	src := tone(16000, 800, 500)
	a := newRenderer(t, hrtf.Synthetic(testRate, 30, nil), hrtf.PolicySnap, 0)
	b := newRenderer(t, hrtf.Synthetic(testRate, 30, nil), hrtf.PolicySnap, 0)
	ca, err := a.Render(context.Background(), "x", src, hrtf.Direction{Azimuth: 60}, 0)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	cb, err := b.Render(context.Background(), "x", src, hrtf.Direction{Azimuth: 60}, 0)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !ca.Buffer.Equal(cb.Buffer) {
		t.Fatal("renders of identical input differ")
	}
}

func TestRenderLeftSourceIsLouderLeft(t *testing.T) {
	r := newRenderer(t, hrtf.Synthetic(testRate, 30, nil), hrtf.PolicySnap, 0)
	clip, err := r.Render(context.Background(), "x", tone(testRate, 800, 400), hrtf.Direction{Azimuth: 90}, 0)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	left := audio.FromMono(testRate, clip.Buffer.Channels[0]).RMS()
	right := audio.FromMono(testRate, clip.Buffer.Channels[1]).RMS()
	if left <= right {
		t.Fatalf("expected left ear louder for az=90, left=%v right=%v", left, right)
	}
}

func TestRenderPanFallback(t *testing.T) {
	r := newRenderer(t, nil, hrtf.PolicySnap, 0)
	if !r.Degraded() {
		t.Fatal("expected degraded renderer without a set")
	}
	src := tone(testRate, 500, 200)
	clip, err := r.Render(context.Background(), "p", src, hrtf.Direction{Azimuth: 270}, 0)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !clip.Panned || clip.Buffer.Frames() != 500 {
		t.Fatalf("panned=%v frames=%d", clip.Panned, clip.Buffer.Frames())
	}
	// az=270 is hard right.
	for i := range clip.Buffer.Channels[0] {
		if math.Abs(clip.Buffer.Channels[0][i]) > 1e-12 {
			t.Fatalf("left channel not silent at %d: %v", i, clip.Buffer.Channels[0][i])
		}
	}
	if math.Abs(clip.Buffer.Channels[1][10]-src.Channels[0][10]) > 1e-12 {
		t.Fatalf("right channel should carry full source")
	}

	l, rr := PanGains(hrtf.Direction{})
	if math.Abs(l-rr) > 1e-12 || math.Abs(l*l+rr*rr-1) > 1e-12 {
		t.Fatalf("front gains not equal power: %v %v", l, rr)
	}
}

func TestRenderPolicies(t *testing.T) {
	set := hrtf.Synthetic(testRate, 30, nil)
	src := tone(testRate, 200, 300)

	snap := newRenderer(t, set, hrtf.PolicySnap, 0)
	clip, err := snap.Render(context.Background(), "s", src, hrtf.Direction{Azimuth: 40}, 0)
	if err != nil {
		t.Fatalf("snap Render: %v", err)
	}
	if clip.Direction.Azimuth != 30 {
		t.Fatalf("snapped to %v, want az 30", clip.Direction)
	}
	exact, err := snap.Render(context.Background(), "s", src, hrtf.Direction{Azimuth: 30}, 0)
	if err != nil {
		t.Fatalf("exact Render: %v", err)
	}
	if !clip.Buffer.Equal(exact.Buffer) {
		t.Fatal("snapped render differs from render at the measured direction")
	}

	fail := newRenderer(t, set, hrtf.PolicyFail, 0)
	_, err = fail.Render(context.Background(), "s", src, hrtf.Direction{Azimuth: 40}, 0)
	var unsupported *pipeline.UnsupportedDirectionError
	if !errors.As(err, &unsupported) {
		t.Fatalf("expected UnsupportedDirectionError, got %v", err)
	}
	if _, err := fail.Render(context.Background(), "s", src, hrtf.Direction{Azimuth: 30}, 0); err != nil {
		t.Fatalf("measured direction rejected under fail policy: %v", err)
	}
}

func TestRenderCacheRecoversFromCorruption(t *testing.T) {
	r := newRenderer(t, hrtf.Synthetic(testRate, 30, nil), hrtf.PolicySnap, 8)
	src := tone(testRate, 300, 250)
	dir := hrtf.Direction{Azimuth: 120}

	first, err := r.Render(context.Background(), "c", src, dir, 600)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	want := first.Buffer.Clone()

	again, err := r.Render(context.Background(), "c", src, dir, 600)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if again.Buffer != first.Buffer {
		t.Fatal("expected cache hit to return the cached buffer")
	}

	first.Buffer.Channels[1][5] = math.NaN()
	recovered, err := r.Render(context.Background(), "c", src, dir, 600)
	if err != nil {
		t.Fatalf("Render after corruption: %v", err)
	}
	if !recovered.Buffer.Equal(want) {
		t.Fatal("re-rendered clip differs from the original render")
	}
	stats := r.CacheStats()
	if stats.Hits != 1 || stats.Evictions != 1 {
		t.Fatalf("unexpected cache stats %+v", stats)
	}
}

func TestCacheGetReportsCorruption(t *testing.T) {
	c, err := NewCache(2)
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	key := Key{ClipID: "k", Rate: testRate, Length: 10}
	c.Add(key, audio.New(testRate, 1, 10))
	_, ok, err := c.Get(key, 10)
	if ok || !errors.Is(err, pipeline.ErrRenderCacheCorruption) {
		t.Fatalf("expected corruption error, ok=%v err=%v", ok, err)
	}
	if _, ok, err := c.Get(key, 10); ok || err != nil {
		t.Fatalf("expected evicted entry to miss, ok=%v err=%v", ok, err)
	}
}

func TestRenderHonoursCancellation(t *testing.T) {
	r := newRenderer(t, nil, hrtf.PolicySnap, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.Render(ctx, "x", tone(testRate, 10, 100), hrtf.Direction{}, 0); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
