package config

import (
	"errors"
	"fmt"
	"math"
)

var knownSources = map[string]struct{}{
	"esc50":     {},
	"foams":     {},
	"fsd50k":    {},
	"synthetic": {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateAudio(); err != nil {
		return err
	}
	if err := c.validateRender(); err != nil {
		return err
	}
	if err := c.validateMix(); err != nil {
		return err
	}
	if err := c.validateGeneration(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateAudio() error {
	if c.Audio.SampleRate < 8000 || c.Audio.SampleRate > 192000 {
		return errors.New("audio.sample_rate must be between 8000 and 192000")
	}
	switch c.Audio.BitDepth {
	case 16, 24:
	default:
		return fmt.Errorf("audio.bit_depth must be 16 or 24, got %d", c.Audio.BitDepth)
	}
	if c.Audio.ItemSeconds <= 0 {
		return errors.New("audio.item_seconds must be positive")
	}
	return nil
}

func (c *Config) validateRender() error {
	switch c.Render.HRIRSource {
	case "synthetic", "sadie", "none":
	default:
		return fmt.Errorf("render.hrir_source must be synthetic, sadie, or none, got %q", c.Render.HRIRSource)
	}
	switch c.Render.DirectionPolicy {
	case "snap", "fail":
	default:
		return fmt.Errorf("render.direction_policy must be snap or fail, got %q", c.Render.DirectionPolicy)
	}
	if c.Render.AzimuthStep <= 0 || c.Render.AzimuthStep > 180 {
		return errors.New("render.azimuth_step must be in (0, 180]")
	}
	for _, el := range c.Render.Elevations {
		if el < -90 || el > 90 {
			return fmt.Errorf("render.elevations: %g is outside [-90, 90]", el)
		}
	}
	if c.Render.CacheEntries < 0 {
		return errors.New("render.cache_entries must be >= 0")
	}
	return nil
}

func (c *Config) validateMix() error {
	if c.Mix.PeakCeilingDBFS > 0 {
		return errors.New("mix.peak_ceiling_dbfs must be <= 0")
	}
	if c.Mix.CrossfadeMS < 0 {
		return errors.New("mix.crossfade_ms must be >= 0")
	}
	if err := validateRange("mix.foreground_gain_db", c.Mix.ForegroundGainDB); err != nil {
		return err
	}
	return validateRange("mix.background_gain_db", c.Mix.BackgroundGainDB)
}

func (c *Config) validateGeneration() error {
	g := c.Generation
	if g.TriggerRatio < 0 || g.TriggerRatio > 1 {
		return errors.New("generation.trigger_ratio must be between 0 and 1")
	}
	if g.MinForegrounds < 0 {
		return errors.New("generation.min_foregrounds must be >= 0")
	}
	if g.MaxForegrounds < g.MinForegrounds {
		return errors.New("generation.max_foregrounds must be >= generation.min_foregrounds")
	}
	if g.TriggerRatio > 0 && g.MaxForegrounds < 1 {
		return errors.New("generation.max_foregrounds must be >= 1 when generation.trigger_ratio > 0")
	}
	if g.PairsPerCategory < 0 {
		return errors.New("generation.pairs_per_category must be >= 0")
	}
	if len(g.Sources) == 0 {
		return errors.New("generation.sources must name at least one source dataset")
	}
	for _, name := range g.Sources {
		if _, ok := knownSources[name]; !ok {
			return fmt.Errorf("generation.sources: unknown source dataset %q", name)
		}
	}
	return nil
}

func validateRange(key string, values []float64) error {
	if len(values) != 2 {
		return fmt.Errorf("%s must contain exactly two values [min, max]", key)
	}
	if math.IsNaN(values[0]) || math.IsNaN(values[1]) || values[0] > values[1] {
		return fmt.Errorf("%s must be an ordered [min, max] pair", key)
	}
	return nil
}
