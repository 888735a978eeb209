package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"misophonia/internal/audio"
	"misophonia/internal/hrtf"
	"misophonia/internal/logging"
	"misophonia/internal/pipeline"
)

// Clip is a source clip spatialised at the renderer rate. Buffer always has
// two channels, left then right, and must be treated as read-only.
type Clip struct {
	ClipID    string
	Direction hrtf.Direction
	Panned    bool
	Buffer    *audio.Buffer
}

// Options configures a Renderer.
type Options struct {
	Rate int
	// Set is the impulse response set. Nil selects equal-power panning.
	Set          *hrtf.Set
	Policy       hrtf.Policy
	HalfWidth    int
	CacheEntries int
	// PanGrid lists the directions offered in pan mode.
	PanGrid []hrtf.Direction
	Logger  *slog.Logger
}

// Renderer spatialises clips. It is safe for concurrent use.
type Renderer struct {
	rate      int
	set       *hrtf.Set
	policy    hrtf.Policy
	halfWidth int
	panGrid   []hrtf.Direction
	cache     *Cache
	logger    *slog.Logger
}

// New builds a Renderer, resampling the impulse response set to opts.Rate.
func New(opts Options) (*Renderer, error) {
	if opts.Rate <= 0 {
		return nil, fmt.Errorf("render: invalid sample rate %d", opts.Rate)
	}
	policy := opts.Policy
	if policy == "" {
		policy = hrtf.PolicySnap
	}
	halfWidth := opts.HalfWidth
	if halfWidth <= 0 {
		halfWidth = audio.DefaultHalfWidth
	}
	r := &Renderer{
		rate:      opts.Rate,
		policy:    policy,
		halfWidth: halfWidth,
		panGrid:   opts.PanGrid,
		logger:    logging.NewComponentLogger(opts.Logger, "render"),
	}
	if opts.Set != nil {
		r.set = opts.Set.Resample(opts.Rate, halfWidth)
	}
	if len(r.panGrid) == 0 {
		r.panGrid = hrtf.Grid(15, nil)
	}
	if opts.CacheEntries > 0 {
		cache, err := NewCache(opts.CacheEntries)
		if err != nil {
			return nil, err
		}
		r.cache = cache
	}
	return r, nil
}

// Rate returns the output sample rate.
func (r *Renderer) Rate() int { return r.rate }

// Degraded reports whether the renderer pans instead of convolving.
func (r *Renderer) Degraded() bool { return r.set == nil }

// SetName names the impulse response set, or "pan" in degraded mode.
func (r *Renderer) SetName() string {
	if r.set == nil {
		return "pan"
	}
	return r.set.Name()
}

// Directions lists the directions the renderer supports exactly.
func (r *Renderer) Directions() []hrtf.Direction {
	if r.set != nil {
		return r.set.Directions()
	}
	return append([]hrtf.Direction(nil), r.panGrid...)
}

// Resolve maps dir to the direction that will actually be rendered.
func (r *Renderer) Resolve(dir hrtf.Direction) (hrtf.Direction, error) {
	if r.set == nil {
		return dir.Normalize(), nil
	}
	ir, err := r.set.Resolve(dir, r.policy)
	if err != nil {
		return hrtf.Direction{}, err
	}
	return ir.Direction, nil
}

// CacheStats reports render cache counters; zero when caching is disabled.
func (r *Renderer) CacheStats() CacheStats {
	if r.cache == nil {
		return CacheStats{}
	}
	return r.cache.Stats()
}

// Render spatialises src at dir. A positive length truncates or zero-pads the
// output; otherwise the output has its natural length.
func (r *Renderer) Render(ctx context.Context, clipID string, src *audio.Buffer, dir hrtf.Direction, length int) (*Clip, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if src == nil || src.NumChannels() == 0 {
		return nil, pipeline.Wrap(pipeline.ErrValidation, "render", "render clip", fmt.Sprintf("clip %s has no audio", clipID), nil)
	}

	var ir hrtf.IR
	resolved := dir.Normalize()
	if r.set != nil {
		var err error
		ir, err = r.set.Resolve(dir, r.policy)
		if err != nil {
			return nil, err
		}
		resolved = ir.Direction
	}

	frames := length
	if frames <= 0 {
		frames = r.naturalFrames(src, ir)
	}
	key := Key{ClipID: clipID, Azimuth: resolved.Azimuth, Elevation: resolved.Elevation, Rate: r.rate, Length: frames}

	if r.cache != nil {
		buf, ok, err := r.cache.Get(key, frames)
		if err != nil {
			var corrupt *pipeline.RenderCacheCorruptionError
			if !errors.As(err, &corrupt) {
				return nil, err
			}
			logging.WarnWithContext(logging.WithContext(ctx, r.logger), "render cache entry failed sanity check; re-rendering", "render_cache_corruption",
				logging.String("cache_key", corrupt.Key),
				logging.String("reason", corrupt.Reason),
				logging.String(logging.FieldErrorHint, "none required; entry was evicted"),
				logging.String(logging.FieldImpact, "clip rendered again"),
			)
		}
		if ok {
			return &Clip{ClipID: clipID, Direction: resolved, Panned: r.set == nil, Buffer: buf}, nil
		}
	}

	buf := r.render(src, ir, resolved)
	buf.Fit(frames)
	if r.cache != nil {
		r.cache.Add(key, buf)
	}
	return &Clip{ClipID: clipID, Direction: resolved, Panned: r.set == nil, Buffer: buf}, nil
}

func (r *Renderer) render(src *audio.Buffer, ir hrtf.IR, dir hrtf.Direction) *audio.Buffer {
	mono := audio.Resample(src.Mono(), src.Rate, r.rate, r.halfWidth)
	if r.set == nil {
		gl, gr := PanGains(dir)
		left := make([]float64, len(mono))
		right := make([]float64, len(mono))
		for i, v := range mono {
			left[i] = v * gl
			right[i] = v * gr
		}
		return &audio.Buffer{Rate: r.rate, Channels: [][]float64{left, right}}
	}
	return &audio.Buffer{Rate: r.rate, Channels: [][]float64{
		Convolve(mono, ir.Left),
		Convolve(mono, ir.Right),
	}}
}

func (r *Renderer) naturalFrames(src *audio.Buffer, ir hrtf.IR) int {
	n := src.Frames()
	if src.Rate != r.rate && n > 0 {
		n = int((int64(n)*int64(r.rate) + int64(src.Rate) - 1) / int64(src.Rate))
	}
	if r.set != nil && n > 0 {
		n += len(ir.Left) - 1
	}
	return n
}
