package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"misophonia/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults to a fast offline setup: 8 kHz, one-second items, the synthetic
// corpus and the synthetic HRIR set.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.SaveDir = filepath.Join(base, "generated")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.CacheDir = filepath.Join(base, "cache")
	cfgVal.Audio.SampleRate = 8000
	cfgVal.Audio.ItemSeconds = 1
	cfgVal.Render.HRIRSource = "synthetic"
	cfgVal.Render.HRIRDir = filepath.Join(base, "data", "sadie")
	cfgVal.Render.AzimuthStep = 30
	cfgVal.Render.ResampleHalfWidth = 16
	cfgVal.Render.CacheEntries = 64
	cfgVal.Generation.Sources = []string{"synthetic"}
	cfgVal.Generation.Workers = 2
	cfgVal.Download.TimeoutSeconds = 5
	cfgVal.Download.Attempts = 2

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithSources sets generation.sources.
func WithSources(names ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Generation.Sources = names
	}
}

// WithHRIRSource sets render.hrir_source.
func WithHRIRSource(name string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Render.HRIRSource = name
	}
}

// WithItemSeconds sets the item duration.
func WithItemSeconds(seconds float64) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Audio.ItemSeconds = seconds
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, the external binaries the
// pipeline shells out to are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg", "7z"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}
		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
