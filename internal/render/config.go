package render

import (
	"fmt"
	"log/slog"

	"misophonia/internal/config"
	"misophonia/internal/hrtf"
	"misophonia/internal/logging"
)

// FromConfig loads the configured impulse response set and builds a Renderer.
func FromConfig(cfg *config.Config, logger *slog.Logger) (*Renderer, error) {
	policy, err := hrtf.ParsePolicy(cfg.Render.DirectionPolicy)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	rate := cfg.Audio.SampleRate

	var set *hrtf.Set
	switch cfg.Render.HRIRSource {
	case "synthetic":
		set = hrtf.Synthetic(rate, cfg.Render.AzimuthStep, cfg.Render.Elevations)
	case "sadie":
		set, err = hrtf.LoadDir(cfg.Render.HRIRDir, cfg.Render.HRIRGlob, logger)
		if err != nil {
			return nil, err
		}
	case "none":
		logging.WarnWithContext(logger, "no HRIR set configured; using equal-power panning", "render_degraded",
			logging.String(logging.FieldErrorHint, "set render.hrir_source to synthetic or sadie"),
			logging.String(logging.FieldImpact, "mixes carry level cues only"),
		)
	default:
		return nil, fmt.Errorf("render: unknown hrir_source %q", cfg.Render.HRIRSource)
	}

	return New(Options{
		Rate:         rate,
		Set:          set,
		Policy:       policy,
		HalfWidth:    cfg.Render.ResampleHalfWidth,
		CacheEntries: cfg.Render.CacheEntries,
		PanGrid:      hrtf.Grid(cfg.Render.AzimuthStep, cfg.Render.Elevations),
		Logger:       logger,
	})
}
