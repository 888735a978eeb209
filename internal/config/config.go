package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir  string `toml:"data_dir"`
	SaveDir  string `toml:"save_dir"`
	LogDir   string `toml:"log_dir"`
	CacheDir string `toml:"cache_dir"`
}

// Audio contains the pipeline output format.
type Audio struct {
	SampleRate  int     `toml:"sample_rate"`
	BitDepth    int     `toml:"bit_depth"`
	ItemSeconds float64 `toml:"item_seconds"`
}

// Render contains configuration for binaural rendering.
type Render struct {
	// HRIRSource selects the impulse response set: "synthetic", "sadie", or "none".
	HRIRSource string `toml:"hrir_source"`
	// HRIRDir is searched with HRIRGlob when HRIRSource is "sadie".
	// Defaults to <data_dir>/sadie.
	HRIRDir  string `toml:"hrir_dir"`
	HRIRGlob string `toml:"hrir_glob"`
	// DirectionPolicy is "snap" or "fail".
	DirectionPolicy   string    `toml:"direction_policy"`
	AzimuthStep       float64   `toml:"azimuth_step"`
	Elevations        []float64 `toml:"elevations"`
	ResampleHalfWidth int       `toml:"resample_half_width"`
	CacheEntries      int       `toml:"cache_entries"`
}

// Mix contains configuration for the mixing engine.
type Mix struct {
	PeakCeilingDBFS  float64   `toml:"peak_ceiling_dbfs"`
	CrossfadeMS      float64   `toml:"crossfade_ms"`
	ReferenceRMSDBFS float64   `toml:"reference_rms_dbfs"`
	ForegroundGainDB []float64 `toml:"foreground_gain_db"`
	BackgroundGainDB []float64 `toml:"background_gain_db"`
}

// Generation contains configuration for dataset sampling.
type Generation struct {
	TriggerRatio     float64  `toml:"trigger_ratio"`
	MinForegrounds   int      `toml:"min_foregrounds"`
	MaxForegrounds   int      `toml:"max_foregrounds"`
	Seed             int64    `toml:"seed"`
	AllowReplacement bool     `toml:"allow_replacement"`
	Workers          int      `toml:"workers"`
	PairsPerCategory int      `toml:"pairs_per_category"`
	PartitionSplits  bool     `toml:"partition_splits"`
	Sources          []string `toml:"sources"`
}

// Download contains configuration for raw corpus acquisition.
type Download struct {
	TimeoutSeconds int `toml:"timeout_seconds"`
	Attempts       int `toml:"attempts"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for the dataset pipeline.
//
// Configuration sections by subsystem:
//   - Paths: raw corpora, generated datasets, logs, and caches
//   - Audio: output sample rate, PCM bit depth, and item duration
//   - Render: impulse response set and direction policy
//   - Mix: peak ceiling, crossfade, loudness reference, and gain ranges
//   - Generation: trigger ratio, foreground counts, seed, and workers
//   - Download: HTTP timeout and retry attempts
//   - Logging: log format and level
type Config struct {
	Paths      Paths      `toml:"paths"`
	Audio      Audio      `toml:"audio"`
	Render     Render     `toml:"render"`
	Mix        Mix        `toml:"mix"`
	Generation Generation `toml:"generation"`
	Download   Download   `toml:"download"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/misophonia/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("misophonia.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the pipeline writes to.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.SaveDir, c.Paths.LogDir, c.Paths.CacheDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// ItemFrames returns the length of every dataset item in frames.
func (c *Config) ItemFrames() int {
	return int(math.Round(c.Audio.ItemSeconds * float64(c.Audio.SampleRate)))
}

// CorpusDir returns the directory holding the raw files of a source corpus.
func (c *Config) CorpusDir(corpus string) string {
	return filepath.Join(c.Paths.DataDir, corpus)
}

// PremadeDir returns the directory holding built-in premade datasets.
func (c *Config) PremadeDir() string {
	return filepath.Join(c.Paths.DataDir, "premade")
}

// CatalogPath returns the SQLite run catalog location.
func (c *Config) CatalogPath() string {
	return filepath.Join(c.Paths.DataDir, "catalog.db")
}

// ProbeCachePath returns the clip probe cache location.
func (c *Config) ProbeCachePath() string {
	return filepath.Join(c.Paths.CacheDir, "probe.db")
}

// FFmpegBinary returns the ffmpeg executable used to decode non-WAV audio.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

// SevenZipBinary returns the 7z executable used for multi-part archives.
func (c *Config) SevenZipBinary() string {
	return "7z"
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func defaultCacheDir() string {
	if base, ok := os.LookupEnv("XDG_CACHE_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "misophonia")
	}
	return "~/.cache/misophonia"
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the effective configuration as TOML.
func (c *Config) Encode() (string, error) {
	var b strings.Builder
	enc := toml.NewEncoder(&b)
	enc.SetIndentTables(true)
	if err := enc.Encode(c); err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}
	return b.String(), nil
}
