package source

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	"misophonia/internal/config"
	"misophonia/internal/logging"
)

// FromConfig builds a registry holding the adapters named in
// generation.sources. File-backed adapters share a probe cache under
// paths.cache_dir; callers must Close the registry.
func FromConfig(cfg *config.Config, logger *slog.Logger) (*Registry, error) {
	return ForSources(cfg, cfg.Generation.Sources, logger)
}

// ForSources is FromConfig with an explicit adapter list.
func ForSources(cfg *config.Config, names []string, logger *slog.Logger) (*Registry, error) {
	var (
		adapters []Adapter
		cache    *ProbeCache
	)
	prober := func() (Prober, error) {
		if cache != nil {
			return cache, nil
		}
		path := cfg.ProbeCachePath()
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
		c, err := OpenProbeCache(path, logger)
		if err != nil {
			logging.WarnWithContext(logger, "probe cache unavailable; probing files directly", "probe_cache_unavailable",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check that no other misophonia process holds "+path),
				logging.String(logging.FieldImpact, "clip listing reads every file header"),
			)
			return FileProber{}, nil
		}
		cache = c
		return cache, nil
	}

	closeAll := func() {
		if cache != nil {
			cache.Close()
		}
	}
	for _, name := range names {
		var (
			a   Adapter
			err error
		)
		if name == "synthetic" {
			adapters = append(adapters, NewSynthetic(SyntheticOptions{
				Rate:    cfg.Audio.SampleRate,
				Seconds: math.Min(defaultSyntheticSeconds, cfg.Audio.ItemSeconds),
			}))
			continue
		}
		p, err := prober()
		if err != nil {
			closeAll()
			return nil, err
		}
		opts := FileOptions{Root: cfg.CorpusDir(name), Prober: p, FFmpeg: cfg.FFmpegBinary(), Logger: logger}
		switch name {
		case "esc50":
			a, err = NewESC50(opts)
		case "foams":
			a, err = NewFOAMS(opts)
		case "fsd50k":
			a, err = NewFSD50K(opts)
		default:
			err = fmt.Errorf("unknown source %q", name)
		}
		if err != nil {
			closeAll()
			return nil, err
		}
		adapters = append(adapters, a)
	}

	reg, err := NewRegistry(adapters...)
	if err != nil {
		closeAll()
		return nil, err
	}
	if cache != nil {
		reg.closers = append(reg.closers, cache.Close)
	}
	return reg, nil
}
