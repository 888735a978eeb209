package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeRender(); err != nil {
		return err
	}
	c.normalizeGeneration()
	c.normalizeDownload()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if value, ok := os.LookupEnv("MISOPHONIA_DATA_DIR"); ok && strings.TrimSpace(value) != "" {
		c.Paths.DataDir = strings.TrimSpace(value)
	}
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.SaveDir) == "" {
		c.Paths.SaveDir = filepath.Join(c.Paths.DataDir, defaultSaveDirName)
	}
	if c.Paths.SaveDir, err = expandPath(c.Paths.SaveDir); err != nil {
		return fmt.Errorf("paths.save_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.CacheDir) == "" {
		c.Paths.CacheDir = defaultCacheDir()
	}
	if c.Paths.CacheDir, err = expandPath(c.Paths.CacheDir); err != nil {
		return fmt.Errorf("paths.cache_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeRender() error {
	c.Render.HRIRSource = strings.ToLower(strings.TrimSpace(c.Render.HRIRSource))
	if c.Render.HRIRSource == "" {
		c.Render.HRIRSource = defaultHRIRSource
	}
	if strings.TrimSpace(c.Render.HRIRDir) == "" {
		c.Render.HRIRDir = c.CorpusDir("sadie")
	}
	var err error
	if c.Render.HRIRDir, err = expandPath(c.Render.HRIRDir); err != nil {
		return fmt.Errorf("render.hrir_dir: %w", err)
	}
	c.Render.HRIRGlob = strings.TrimSpace(c.Render.HRIRGlob)
	if c.Render.HRIRGlob == "" {
		c.Render.HRIRGlob = defaultHRIRGlob
	}
	c.Render.DirectionPolicy = strings.ToLower(strings.TrimSpace(c.Render.DirectionPolicy))
	if c.Render.DirectionPolicy == "" {
		c.Render.DirectionPolicy = defaultDirectionPolicy
	}
	if len(c.Render.Elevations) == 0 {
		c.Render.Elevations = []float64{0}
	}
	if c.Render.ResampleHalfWidth <= 0 {
		c.Render.ResampleHalfWidth = defaultResampleHalfWidth
	}
	return nil
}

func (c *Config) normalizeGeneration() {
	sources := make([]string, 0, len(c.Generation.Sources))
	for _, name := range c.Generation.Sources {
		normalized := strings.ToLower(strings.TrimSpace(name))
		if normalized == "" || slices.Contains(sources, normalized) {
			continue
		}
		sources = append(sources, normalized)
	}
	c.Generation.Sources = sources
	if c.Generation.Workers < 0 {
		c.Generation.Workers = 0
	}
}

func (c *Config) normalizeDownload() {
	if c.Download.TimeoutSeconds <= 0 {
		c.Download.TimeoutSeconds = defaultDownloadTimeout
	}
	if c.Download.Attempts <= 0 {
		c.Download.Attempts = defaultDownloadAttempts
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
