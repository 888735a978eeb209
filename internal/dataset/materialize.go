package dataset

import (
	"context"
	"fmt"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"

	"misophonia/internal/audio"
	"misophonia/internal/generate"
	"misophonia/internal/logging"
	"misophonia/internal/mix"
	"misophonia/internal/pipeline"
	"misophonia/internal/render"
	"misophonia/internal/source"
)

const defaultSourceCacheEntries = 64

// Loader decodes source clips. *source.Registry implements it.
type Loader interface {
	LoadAudio(ctx context.Context, clip source.Clip) (*audio.Buffer, error)
}

// MaterializerOptions wires the collaborators of a Materializer.
type MaterializerOptions struct {
	Loader   Loader
	Lookup   func(id string) (source.Clip, bool)
	Renderer *render.Renderer
	Engine   *mix.Engine
	// BitDepth quantises results to the PCM grid they are persisted at, so
	// in-memory and reloaded audio are bit-identical. Zero disables it.
	BitDepth           int
	SourceCacheEntries int
	Logger             *slog.Logger
}

// Materializer renders and mixes MixSpecs. It is safe for concurrent use.
type Materializer struct {
	loader   Loader
	lookup   func(id string) (source.Clip, bool)
	renderer *render.Renderer
	engine   *mix.Engine
	bitDepth int
	sources  *lru.Cache[string, *audio.Buffer]
	logger   *slog.Logger
}

// NewMaterializer validates opts and returns a Materializer.
func NewMaterializer(opts MaterializerOptions) (*Materializer, error) {
	if opts.Loader == nil || opts.Lookup == nil || opts.Renderer == nil || opts.Engine == nil {
		return nil, fmt.Errorf("materializer: loader, lookup, renderer and engine are required")
	}
	size := opts.SourceCacheEntries
	if size <= 0 {
		size = defaultSourceCacheEntries
	}
	sources, err := lru.New[string, *audio.Buffer](size)
	if err != nil {
		return nil, fmt.Errorf("materializer: source cache: %w", err)
	}
	return &Materializer{
		loader:   opts.Loader,
		lookup:   opts.Lookup,
		renderer: opts.Renderer,
		engine:   opts.Engine,
		bitDepth: opts.BitDepth,
		sources:  sources,
		logger:   logging.NewComponentLogger(opts.Logger, "materializer"),
	}, nil
}

// Renderer returns the renderer items are spatialised with.
func (m *Materializer) Renderer() *render.Renderer { return m.renderer }

// Materialize renders every placement of spec and mixes them.
func (m *Materializer) Materialize(ctx context.Context, spec generate.MixSpec) (*mix.Result, error) {
	if spec.SampleRate != m.renderer.Rate() {
		return nil, pipeline.Wrap(pipeline.ErrValidation, "materialize", "check rate",
			fmt.Sprintf("item %s was planned at %d Hz but the renderer runs at %d Hz", spec.ID, spec.SampleRate, m.renderer.Rate()), nil)
	}
	ctx = pipeline.WithItemIndex(ctx, spec.Index)

	bg, err := m.layer(ctx, spec.Background)
	if err != nil {
		return nil, err
	}
	foregrounds := make([]mix.Layer, 0, len(spec.Foreground))
	for _, p := range spec.Foreground {
		l, err := m.layer(ctx, p)
		if err != nil {
			return nil, err
		}
		foregrounds = append(foregrounds, l)
	}

	res, err := m.engine.Mix(&bg, foregrounds, spec.Length)
	if err != nil {
		return nil, fmt.Errorf("item %d: %w", spec.Index, err)
	}
	if m.bitDepth > 0 {
		audio.Quantize(res.Mix, m.bitDepth)
		audio.Quantize(res.GroundTruth, m.bitDepth)
	}
	logging.WithContext(ctx, m.logger).Debug("item materialized",
		logging.String(logging.FieldItemID, spec.ID),
		logging.Float64("scale", res.Scale),
		logging.Bool("is_trigger", res.IsTrigger),
	)
	return res, nil
}

func (m *Materializer) layer(ctx context.Context, p generate.Placement) (mix.Layer, error) {
	clip, ok := m.lookup(p.ClipID)
	if !ok {
		return mix.Layer{}, pipeline.Wrap(pipeline.ErrNotFound, "materialize", "lookup clip",
			fmt.Sprintf("clip %s is not in the loaded inventory", p.ClipID), nil)
	}
	src, err := m.source(ctx, clip)
	if err != nil {
		return mix.Layer{}, err
	}
	rendered, err := m.renderer.Render(ctx, clip.ID, src, p.Direction, 0)
	if err != nil {
		return mix.Layer{}, err
	}
	return mix.Layer{
		Buffer:    rendered.Buffer,
		Onset:     p.Onset,
		GainDB:    p.GainDB,
		IsTrigger: p.Kind == source.KindTrigger,
	}, nil
}

func (m *Materializer) source(ctx context.Context, clip source.Clip) (*audio.Buffer, error) {
	if buf, ok := m.sources.Get(clip.ID); ok {
		return buf, nil
	}
	buf, err := m.loader.LoadAudio(ctx, clip)
	if err != nil {
		return nil, err
	}
	m.sources.Add(clip.ID, buf)
	return buf, nil
}
