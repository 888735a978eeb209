package dataset

import (
	"context"
	"sync"

	"misophonia/internal/audio"
	"misophonia/internal/generate"
	"misophonia/internal/mix"
)

// Item is one read-only dataset item.
type Item struct {
	spec generate.MixSpec

	// Generated items.
	mat *Materializer

	// Persisted items.
	mixPath         string
	groundTruthPath string

	mu     sync.Mutex
	result *mix.Result
}

func newGeneratedItem(spec generate.MixSpec, mat *Materializer) *Item {
	return &Item{spec: spec, mat: mat}
}

func newPersistedItem(spec generate.MixSpec, dir string) *Item {
	mixRel, gtRel := itemFiles(spec)
	return &Item{spec: spec, mixPath: joinRel(dir, mixRel), groundTruthPath: joinRel(dir, gtRel)}
}

// ID returns the stable item identifier.
func (it *Item) ID() string { return it.spec.ID }

// Index returns the position of the item within its split.
func (it *Item) Index() int { return it.spec.Index }

// Spec returns the recipe the item was built from.
func (it *Item) Spec() generate.MixSpec { return it.spec }

// IsTrigger reports whether the ground truth carries a trigger.
func (it *Item) IsTrigger() bool { return it.spec.IsTrigger }

// Persisted reports whether the item is backed by files on disk.
func (it *Item) Persisted() bool { return it.mixPath != "" }

// MixAudio returns the binaural mixture. The caller owns the returned buffer.
func (it *Item) MixAudio(ctx context.Context) (*audio.Buffer, error) {
	if it.Persisted() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return audio.ReadWAV(it.mixPath)
	}
	res, err := it.materialize(ctx)
	if err != nil {
		return nil, err
	}
	return res.Mix.Clone(), nil
}

// GroundTruthAudio returns the trigger-only track, silent for non-trigger
// items. The caller owns the returned buffer.
func (it *Item) GroundTruthAudio(ctx context.Context) (*audio.Buffer, error) {
	if it.Persisted() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return audio.ReadWAV(it.groundTruthPath)
	}
	res, err := it.materialize(ctx)
	if err != nil {
		return nil, err
	}
	return res.GroundTruth.Clone(), nil
}

// materialize renders the item once and keeps the result.
func (it *Item) materialize(ctx context.Context) (*mix.Result, error) {
	it.mu.Lock()
	defer it.mu.Unlock()
	if it.result != nil {
		return it.result, nil
	}
	res, err := it.mat.Materialize(ctx, it.spec)
	if err != nil {
		return nil, err
	}
	it.result = res
	return res, nil
}
