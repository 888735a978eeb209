package hrtf

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"misophonia/internal/audio"
	"misophonia/internal/logging"
	"misophonia/internal/pipeline"
)

func energy(x []float64) float64 {
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return sum
}

func firstPeak(x []float64) int {
	best := 0
	for i, v := range x {
		if math.Abs(v) > math.Abs(x[best]) {
			best = i
		}
	}
	return best
}

func TestParseFileName(t *testing.T) {
	cases := []struct {
		name string
		want Direction
		ok   bool
	}{
		{"azi_22,5_ele_0,0.wav", Direction{22.5, 0}, true},
		{"D2/azi_270,0_ele_-15,0.wav", Direction{270, -15}, true},
		{"azi_90_ele_30.wav", Direction{90, 30}, true},
		{"readme.wav", Direction{}, false},
	}
	for _, tc := range cases {
		got, ok := ParseFileName(tc.name)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("ParseFileName(%q) = %v, %v; want %v, %v", tc.name, got, ok, tc.want, tc.ok)
		}
	}
}

func TestResolveSnapAndFail(t *testing.T) {
	set := Synthetic(8000, 90, []float64{0})
	if set.Len() != 4 {
		t.Fatalf("expected 4 directions, got %d", set.Len())
	}

	exact, err := set.Resolve(Direction{Azimuth: 450}, PolicyFail)
	if err != nil {
		t.Fatalf("exact direction rejected: %v", err)
	}
	if exact.Direction.Azimuth != 90 {
		t.Fatalf("expected wrap to 90, got %v", exact.Direction)
	}

	snapped, err := set.Resolve(Direction{Azimuth: 100}, PolicySnap)
	if err != nil {
		t.Fatalf("snap returned error: %v", err)
	}
	if snapped.Direction.Azimuth != 90 {
		t.Fatalf("expected snap to 90, got %v", snapped.Direction)
	}
	again, _ := set.Resolve(Direction{Azimuth: 100}, PolicySnap)
	if again.Direction != snapped.Direction {
		t.Fatal("snapping is not consistent")
	}

	near, _ := set.Resolve(Direction{Azimuth: 350}, PolicySnap)
	if near.Direction.Azimuth != 0 {
		t.Fatalf("expected 350 to snap across the wrap to 0, got %v", near.Direction)
	}

	_, err = set.Resolve(Direction{Azimuth: 100}, PolicyFail)
	var unsupported *pipeline.UnsupportedDirectionError
	if !errors.As(err, &unsupported) {
		t.Fatalf("expected UnsupportedDirectionError, got %v", err)
	}
	if !errors.Is(err, pipeline.ErrUnsupportedDirection) {
		t.Fatal("expected error to match sentinel")
	}
}

func TestSyntheticLeftSourceFavoursLeftEar(t *testing.T) {
	set := Synthetic(44100, 90, []float64{0})
	left, _ := set.Resolve(Direction{Azimuth: 90}, PolicyFail)
	if energy(left.Left) <= energy(left.Right) {
		t.Fatal("expected more energy in the left ear for a left source")
	}
	if firstPeak(left.Left) >= firstPeak(left.Right) {
		t.Fatal("expected the left ear to lead for a left source")
	}
	front, _ := set.Resolve(Direction{Azimuth: 0}, PolicyFail)
	for i := range front.Left {
		if front.Left[i] != front.Right[i] {
			t.Fatalf("expected symmetric response for a frontal source at tap %d", i)
		}
	}
}

func TestLoadDirReadsSadieLayout(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "D2", "D2_HRIR_WAV", "48K_24bit")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	write := func(name string, l, r float64) {
		buf := audio.New(48000, 2, 16)
		buf.Channels[0][0] = l
		buf.Channels[1][0] = r
		if err := audio.WriteWAV(filepath.Join(sub, name), buf, 24); err != nil {
			t.Fatal(err)
		}
	}
	write("azi_0,0_ele_0,0.wav", 0.5, 0.5)
	write("azi_90,0_ele_0,0.wav", 0.75, 0.25)
	write("notes.wav", 0, 0)

	set, err := LoadDir(dir, "**/D2_HRIR_WAV/48K_24bit/*.wav", logging.NewNop())
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if set.Len() != 2 || set.Rate() != 48000 {
		t.Fatalf("unexpected set: len=%d rate=%d", set.Len(), set.Rate())
	}
	ir, err := set.Resolve(Direction{Azimuth: 90}, PolicyFail)
	if err != nil {
		t.Fatal(err)
	}
	if ir.Left[0] != 0.75 || ir.Right[0] != 0.25 {
		t.Fatalf("unexpected taps %v %v", ir.Left[0], ir.Right[0])
	}
}

func TestLoadDirMissingIsMissingData(t *testing.T) {
	_, err := LoadDir(filepath.Join(t.TempDir(), "absent"), "**/*.wav", nil)
	if !errors.Is(err, pipeline.ErrMissingData) {
		t.Fatalf("expected missing data error, got %v", err)
	}
}

func TestGridAndDistance(t *testing.T) {
	grid := Grid(120, []float64{0, 30})
	if len(grid) != 6 {
		t.Fatalf("expected 6 directions, got %d", len(grid))
	}
	if d := AngularDistance(Direction{Azimuth: 350}, Direction{Azimuth: 10}); math.Abs(d-20) > 1e-9 {
		t.Fatalf("distance across 0 = %v", d)
	}
	if p := (Direction{Azimuth: 90}).Pan(); p != -1 {
		t.Fatalf("pan for hard left = %v", p)
	}
}
