package dataset

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"misophonia/internal/config"
	"misophonia/internal/generate"
	"misophonia/internal/pipeline"
)

// Dataset serves named splits.
type Dataset interface {
	Name() string
	GetSplit(ctx context.Context, name string, opts ...SplitOption) (*Split, error)
}

type splitOptions struct {
	samples int
	seed    int64
	seedSet bool
	pairs   bool
}

// SplitOption adjusts how a split is produced. Premade datasets ignore them.
type SplitOption func(*splitOptions)

// WithNumSamples sets the number of regular items. Zero generates until the
// foreground pools run out.
func WithNumSamples(n int) SplitOption {
	return func(o *splitOptions) { o.samples = n }
}

// WithSeed overrides the dataset's default seed.
func WithSeed(seed int64) SplitOption {
	return func(o *splitOptions) { o.seed, o.seedSet = seed, true }
}

// WithExperimentalPairs appends matched trigger/control pairs.
func WithExperimentalPairs(enabled bool) SplitOption {
	return func(o *splitOptions) { o.pairs = enabled }
}

// Generated plans splits on demand and materialises items lazily.
type Generated struct {
	name string
	gen  *generate.Generator
	mat  *Materializer
	seed int64

	mu sync.Mutex
}

// NewGenerated returns a dataset backed by gen and mat. seed is used when a
// request does not carry WithSeed.
func NewGenerated(name string, gen *generate.Generator, mat *Materializer, seed int64) *Generated {
	return &Generated{name: name, gen: gen, mat: mat, seed: seed}
}

// Name returns the dataset name.
func (g *Generated) Name() string { return g.name }

// GetSplit plans the split. No audio is produced until an item is accessed.
func (g *Generated) GetSplit(ctx context.Context, name string, opts ...SplitOption) (*Split, error) {
	o := splitOptions{seed: g.seed}
	for _, opt := range opts {
		opt(&o)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if state := g.gen.State(); state == generate.StateUninitialized || state == generate.StateExhausted {
		if err := g.gen.Load(ctx); err != nil {
			return nil, err
		}
	}
	ctx = pipeline.WithSplit(pipeline.WithDataset(ctx, g.name), name)
	specs, err := g.gen.Generate(ctx, generate.Request{
		Split:                name,
		NumSamples:           o.samples,
		Seed:                 o.seed,
		AddExperimentalPairs: o.pairs,
	})
	if err != nil {
		return nil, err
	}
	items := make([]*Item, len(specs))
	for i, spec := range specs {
		items[i] = newGeneratedItem(spec, g.mat)
	}
	return newSplit(g.name, name, o.seed, items), nil
}

// Premade serves splits persisted under one directory.
type Premade struct {
	name string
	root string
}

// NewPremade returns the dataset stored at root, one subdirectory per split.
func NewPremade(name, root string) *Premade {
	return &Premade{name: name, root: root}
}

// Name returns the dataset name.
func (p *Premade) Name() string { return p.name }

// Root returns the dataset directory.
func (p *Premade) Root() string { return p.root }

// Splits lists the complete splits in sorted order.
func (p *Premade) Splits() ([]string, error) {
	entries, err := os.ReadDir(p.root)
	if err != nil {
		return nil, fmt.Errorf("list splits: %w", err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() && Complete(filepath.Join(p.root, e.Name())) {
			out = append(out, e.Name())
		}
	}
	slices.Sort(out)
	return out, nil
}

// GetSplit loads a persisted split.
func (p *Premade) GetSplit(ctx context.Context, name string, _ ...SplitOption) (*Split, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return LoadSplit(filepath.Join(p.root, name))
}

// Open resolves a dataset name: the built-in demo-v1, or a dataset saved
// under paths.save_dir.
func Open(ctx context.Context, name string, cfg *config.Config, logger *slog.Logger) (Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if name == DemoName {
		return NewDemo(cfg, logger)
	}
	root := filepath.Join(cfg.Paths.SaveDir, name)
	info, err := os.Stat(root)
	switch {
	case err == nil && info.IsDir():
		return NewPremade(name, root), nil
	case err == nil || errors.Is(err, fs.ErrNotExist):
		return nil, pipeline.Wrap(pipeline.ErrNotFound, "dataset", "open",
			fmt.Sprintf("dataset %q not found under %s; create it with `misophonia generate %s <split>`", name, cfg.Paths.SaveDir, name), nil)
	default:
		return nil, fmt.Errorf("open dataset %q: %w", name, err)
	}
}
