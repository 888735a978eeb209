package dataset

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"gopkg.in/yaml.v3"

	"misophonia/internal/config"
	"misophonia/internal/logging"
	"misophonia/internal/pipeline"
	"misophonia/internal/source"
)

// DemoName is the built-in demo dataset.
const DemoName = "demo-v1"

//go:embed demo_v1.yaml
var demoRecipe []byte

// Recipe describes how a built-in dataset is generated.
type Recipe struct {
	Name             string        `yaml:"name"`
	Seed             int64         `yaml:"seed"`
	SampleRate       int           `yaml:"sample_rate"`
	BitDepth         int           `yaml:"bit_depth"`
	ItemSeconds      float64       `yaml:"item_seconds"`
	TriggerRatio     float64       `yaml:"trigger_ratio"`
	MinForegrounds   int           `yaml:"min_foregrounds"`
	MaxForegrounds   int           `yaml:"max_foregrounds"`
	PairsPerCategory int           `yaml:"pairs_per_category"`
	ClipsPerCategory int           `yaml:"clips_per_category"`
	Splits           []RecipeSplit `yaml:"splits"`
}

// RecipeSplit is one split of a Recipe.
type RecipeSplit struct {
	Name              string `yaml:"name"`
	Samples           int    `yaml:"samples"`
	ExperimentalPairs bool   `yaml:"experimental_pairs"`
}

// DemoRecipe parses the embedded demo-v1 recipe.
func DemoRecipe() (Recipe, error) {
	var r Recipe
	if err := yaml.Unmarshal(demoRecipe, &r); err != nil {
		return Recipe{}, fmt.Errorf("parse demo recipe: %w", err)
	}
	if r.Name == "" || len(r.Splits) == 0 {
		return Recipe{}, errors.New("demo recipe has no name or splits")
	}
	return r, nil
}

func (r Recipe) split(name string) (RecipeSplit, bool) {
	for _, s := range r.Splits {
		if s.Name == name {
			return s, true
		}
	}
	return RecipeSplit{}, false
}

// config derives the generation config of the recipe. Paths, logging and
// worker count come from base; everything that shapes the audio is fixed.
func (r Recipe) config(base *config.Config) *config.Config {
	def := config.Default()
	cfg := *base
	cfg.Audio = config.Audio{SampleRate: r.SampleRate, BitDepth: r.BitDepth, ItemSeconds: r.ItemSeconds}
	cfg.Render = def.Render
	cfg.Render.HRIRSource = "synthetic"
	cfg.Render.HRIRDir = base.Render.HRIRDir
	cfg.Render.CacheEntries = base.Render.CacheEntries
	cfg.Mix = def.Mix
	cfg.Generation = config.Generation{
		TriggerRatio:     r.TriggerRatio,
		MinForegrounds:   r.MinForegrounds,
		MaxForegrounds:   r.MaxForegrounds,
		Seed:             r.Seed,
		Workers:          base.Generation.Workers,
		PairsPerCategory: r.PairsPerCategory,
		PartitionSplits:  true,
		Sources:          []string{"synthetic"},
	}
	return &cfg
}

// Demo is the built-in dataset. Each split is generated and persisted under
// <data_dir>/premade/demo-v1 on first access and served from disk afterwards.
type Demo struct {
	recipe Recipe
	cfg    *config.Config
	root   string
	logger *slog.Logger
}

// NewDemo returns the demo dataset for cfg.
func NewDemo(cfg *config.Config, logger *slog.Logger) (*Demo, error) {
	r, err := DemoRecipe()
	if err != nil {
		return nil, err
	}
	return &Demo{
		recipe: r,
		cfg:    r.config(cfg),
		root:   filepath.Join(cfg.PremadeDir(), r.Name),
		logger: logging.NewComponentLogger(logger, "demo"),
	}, nil
}

// Name returns "demo-v1".
func (d *Demo) Name() string { return d.recipe.Name }

// Root returns the directory the demo splits are persisted under.
func (d *Demo) Root() string { return d.root }

// Recipe returns the parsed recipe.
func (d *Demo) Recipe() Recipe { return d.recipe }

// GetSplit returns a persisted demo split, building it first if needed.
// Options are ignored; the recipe fixes every parameter.
func (d *Demo) GetSplit(ctx context.Context, name string, _ ...SplitOption) (*Split, error) {
	rs, ok := d.recipe.split(name)
	if !ok {
		return nil, pipeline.Wrap(pipeline.ErrNotFound, "demo", "get split",
			fmt.Sprintf("%s has no split %q", d.recipe.Name, name), nil)
	}
	dir := filepath.Join(d.root, name)
	if Complete(dir) {
		return LoadSplit(dir)
	}
	if err := d.build(ctx, rs, dir); err != nil {
		return nil, err
	}
	return LoadSplit(dir)
}

func (d *Demo) build(ctx context.Context, rs RecipeSplit, dir string) error {
	if err := ensureDir(d.root); err != nil {
		return err
	}
	lock := flock.New(filepath.Join(d.root, ".build-"+rs.Name+".lock"))
	ok, err := lock.TryLockContext(ctx, 100*time.Millisecond)
	if err != nil {
		return fmt.Errorf("acquire demo lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("acquire demo lock: %w", pipeline.ErrTimeout)
	}
	defer lock.Unlock()
	// Another process may have finished the split while we waited.
	if Complete(dir) {
		return nil
	}

	d.logger.Info("building premade split",
		logging.String(logging.FieldDataset, d.recipe.Name),
		logging.String(logging.FieldSplit, rs.Name),
		logging.Int("samples", rs.Samples),
	)
	syn := source.NewSynthetic(source.SyntheticOptions{
		Rate:             d.cfg.Audio.SampleRate,
		Seconds:          math.Min(1.5, d.cfg.Audio.ItemSeconds),
		ClipsPerCategory: d.recipe.ClipsPerCategory,
	})
	reg, err := source.NewRegistry(syn)
	if err != nil {
		return err
	}
	p, err := NewPipeline(d.cfg, reg, d.logger)
	if err != nil {
		return errors.Join(err, reg.Close())
	}
	defer p.Close()

	split, err := p.Dataset(d.recipe.Name, d.recipe.Seed).GetSplit(ctx, rs.Name,
		WithNumSamples(rs.Samples),
		WithExperimentalPairs(rs.ExperimentalPairs),
	)
	if err != nil {
		return err
	}
	_, err = WriteSplit(ctx, dir, split, WriteOptions{
		Replace:  true,
		Workers:  d.cfg.Generation.Workers,
		BitDepth: d.cfg.Audio.BitDepth,
		Renderer: p.Renderer.SetName(),
		Logger:   d.logger,
	})
	return err
}
