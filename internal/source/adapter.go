package source

import (
	"context"
	"fmt"
	"sort"

	"misophonia/internal/audio"
)

// Adapter exposes one corpus.
type Adapter interface {
	// Name is the corpus identifier used in clip IDs and configuration.
	Name() string
	// Labels lists the (kind, category) pairs the corpus can supply.
	Labels() []Label
	// ListClips returns the clips matching filter sorted by ID. Missing raw
	// files yield *pipeline.MissingDataError.
	ListClips(ctx context.Context, filter Filter) ([]Clip, error)
	// LoadAudio decodes a clip at its native sample rate.
	LoadAudio(ctx context.Context, clip Clip) (*audio.Buffer, error)
}

// Registry routes audio loads to the adapter that listed a clip.
type Registry struct {
	adapters []Adapter
	byName   map[string]Adapter
	closers  []func() error
}

// NewRegistry builds a registry. Adapter names must be unique.
func NewRegistry(adapters ...Adapter) (*Registry, error) {
	r := &Registry{byName: make(map[string]Adapter, len(adapters))}
	for _, a := range adapters {
		if _, dup := r.byName[a.Name()]; dup {
			return nil, fmt.Errorf("duplicate source adapter %q", a.Name())
		}
		r.byName[a.Name()] = a
		r.adapters = append(r.adapters, a)
	}
	return r, nil
}

// Adapters returns the adapters in registration order.
func (r *Registry) Adapters() []Adapter {
	return append([]Adapter(nil), r.adapters...)
}

// Get returns the adapter named name.
func (r *Registry) Get(name string) (Adapter, bool) {
	a, ok := r.byName[name]
	return a, ok
}

// Labels merges the labels of every adapter.
func (r *Registry) Labels() []Label {
	seen := make(map[Label]struct{})
	var out []Label
	for _, a := range r.adapters {
		for _, label := range a.Labels() {
			if _, ok := seen[label]; ok {
				continue
			}
			seen[label] = struct{}{}
			out = append(out, label)
		}
	}
	sortLabels(out)
	return out
}

// ListClips lists matching clips across all adapters, sorted by ID.
func (r *Registry) ListClips(ctx context.Context, filter Filter) ([]Clip, error) {
	var out []Clip
	for _, a := range r.adapters {
		clips, err := a.ListClips(ctx, filter)
		if err != nil {
			return nil, err
		}
		out = append(out, clips...)
	}
	sortClips(out)
	return out, nil
}

// LoadAudio dispatches to the adapter named by clip.Corpus.
func (r *Registry) LoadAudio(ctx context.Context, clip Clip) (*audio.Buffer, error) {
	a, ok := r.byName[clip.Corpus]
	if !ok {
		return nil, fmt.Errorf("no source adapter for corpus %q (clip %s)", clip.Corpus, clip.ID)
	}
	return a.LoadAudio(ctx, clip)
}

// Categories returns the sorted categories available for kind.
func (r *Registry) Categories(kind Kind) []string {
	var out []string
	for _, label := range r.Labels() {
		if label.Kind == kind {
			out = append(out, label.Category)
		}
	}
	sort.Strings(out)
	return out
}

// Close releases resources held on behalf of the adapters.
func (r *Registry) Close() error {
	var first error
	for _, c := range r.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	r.closers = nil
	return first
}
