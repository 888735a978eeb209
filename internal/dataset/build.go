package dataset

import (
	"errors"
	"log/slog"

	"misophonia/internal/config"
	"misophonia/internal/generate"
	"misophonia/internal/mix"
	"misophonia/internal/render"
	"misophonia/internal/source"
)

// Pipeline bundles the collaborators one generation run needs.
type Pipeline struct {
	Registry     *source.Registry
	Renderer     *render.Renderer
	Generator    *generate.Generator
	Materializer *Materializer
}

// Build opens the named source adapters and wires a Pipeline from cfg.
func Build(cfg *config.Config, sources []string, logger *slog.Logger) (*Pipeline, error) {
	reg, err := source.ForSources(cfg, sources, logger)
	if err != nil {
		return nil, err
	}
	p, err := NewPipeline(cfg, reg, logger)
	if err != nil {
		return nil, errors.Join(err, reg.Close())
	}
	return p, nil
}

// NewPipeline wires a renderer, generator and materializer around reg. The
// Pipeline takes ownership of reg.
func NewPipeline(cfg *config.Config, reg *source.Registry, logger *slog.Logger) (*Pipeline, error) {
	renderer, err := render.FromConfig(cfg, logger)
	if err != nil {
		return nil, err
	}
	gen := generate.New(generate.OptionsFromConfig(cfg, renderer.Directions(), logger), reg.Adapters()...)
	mat, err := NewMaterializer(MaterializerOptions{
		Loader:   reg,
		Lookup:   gen.Clip,
		Renderer: renderer,
		Engine:   mix.FromConfig(cfg),
		BitDepth: cfg.Audio.BitDepth,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}
	return &Pipeline{Registry: reg, Renderer: renderer, Generator: gen, Materializer: mat}, nil
}

// Dataset exposes the pipeline as a Generated dataset.
func (p *Pipeline) Dataset(name string, seed int64) *Generated {
	return NewGenerated(name, p.Generator, p.Materializer, seed)
}

// Close releases the source registry.
func (p *Pipeline) Close() error {
	if p == nil || p.Registry == nil {
		return nil
	}
	return p.Registry.Close()
}
