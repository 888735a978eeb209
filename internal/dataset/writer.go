package dataset

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"misophonia/internal/audio"
	"misophonia/internal/generate"
	"misophonia/internal/logging"
	"misophonia/internal/pipeline"
)

// WriteOptions controls WriteSplit.
type WriteOptions struct {
	// Replace removes an existing complete split first.
	Replace  bool
	Workers  int
	BitDepth int
	// Renderer names the impulse response set recorded in the manifest.
	Renderer string
	// OnItem is called from the collecting goroutine after each item is written.
	OnItem func(done, total int)
	Logger *slog.Logger
}

type writeResult struct {
	index int
	err   error
}

// WriteSplit persists split under dir. Items are materialised and written by
// a pool of workers; metadata.csv follows the audio and manifest.json is
// written last. On error or cancellation the items already written stay on
// disk and no manifest is written.
func WriteSplit(ctx context.Context, dir string, split *Split, opts WriteOptions) (*Manifest, error) {
	logger := logging.WithContext(ctx, logging.NewComponentLogger(opts.Logger, "persistence"))
	if opts.BitDepth <= 0 {
		return nil, pipeline.Wrap(pipeline.ErrConfiguration, "persistence", "write split", "bit depth must be positive", nil)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create split directory: %w", err)
	}

	lock := flock.New(filepath.Join(dir, lockFile))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire split lock: %w", err)
	}
	if !ok {
		return nil, pipeline.Wrap(pipeline.ErrValidation, "persistence", "lock split",
			fmt.Sprintf("%s is being written by another process", dir), nil)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Warn("failed to release split lock", logging.Error(err))
		}
	}()

	if err := prepareSplitDir(dir, opts.Replace, logger); err != nil {
		return nil, err
	}

	started := time.Now()
	if err := writeItems(ctx, dir, split, opts); err != nil {
		return nil, err
	}

	specs := split.Specs()
	if err := writeMetadata(dir, specs); err != nil {
		return nil, fmt.Errorf("write metadata: %w", err)
	}
	sum := generate.Summarize(specs)
	m := &Manifest{
		FormatVersion: manifestVersion,
		Dataset:       split.Dataset(),
		Split:         split.Name(),
		Seed:          split.Seed(),
		BitDepth:      opts.BitDepth,
		Renderer:      opts.Renderer,
		CreatedAt:     time.Now().UTC(),
		ItemCount:     sum.Items,
		TriggerCount:  sum.Triggers,
		PairCount:     sum.Pairs,
		PerCategory:   sum.PerCategory,
		Items:         specs,
	}
	if len(specs) > 0 {
		m.SampleRate = specs[0].SampleRate
		m.Length = specs[0].Length
	}
	if err := writeManifest(dir, m); err != nil {
		return nil, err
	}

	logger.Info("split written",
		logging.String(logging.FieldSplit, split.Name()),
		logging.String("dir", dir),
		logging.Int("items", sum.Items),
		logging.Int("trigger_items", sum.Triggers),
		logging.Duration("elapsed", time.Since(started)),
	)
	return m, nil
}

// prepareSplitDir clears the artifacts of a previous run. A complete split is
// only removed when replace is set.
func prepareSplitDir(dir string, replace bool, logger *slog.Logger) error {
	if Complete(dir) {
		if !replace {
			return pipeline.Wrap(pipeline.ErrValidation, "persistence", "write split",
				fmt.Sprintf("%s already holds a complete split; pass --replace to overwrite it", dir), nil)
		}
		logger.Info("replacing existing split", logging.String("dir", dir))
	} else if _, err := os.Stat(filepath.Join(dir, MixDir)); err == nil {
		logger.Info("removing items of an unfinished run", logging.String("dir", dir))
	}
	for _, name := range []string{ManifestFile, MetadataFile, MixDir, GroundTruthDir} {
		if err := os.RemoveAll(filepath.Join(dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("clear %s: %w", name, err)
		}
	}
	for _, name := range []string{MixDir, GroundTruthDir} {
		if err := os.MkdirAll(filepath.Join(dir, name), 0o755); err != nil {
			return fmt.Errorf("create %s: %w", name, err)
		}
	}
	return nil
}

func writeItems(parent context.Context, dir string, split *Split, opts WriteOptions) error {
	total := split.Len()
	if total == 0 {
		return nil
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	workers = min(workers, total)

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	jobs := make(chan *Item)
	results := make(chan writeResult)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for it := range jobs {
				r := writeResult{index: it.Index(), err: writeItem(ctx, dir, it, opts.BitDepth)}
				select {
				case results <- r:
				case <-ctx.Done():
					return
				}
			}
		}()
	}
	go func() {
		defer close(jobs)
		for _, it := range split.items {
			select {
			case jobs <- it:
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		wg.Wait()
		close(results)
	}()

	var (
		firstErr error
		written  []int
	)
	for r := range results {
		if r.err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("item %d: %w", r.index, r.err)
				cancel()
			}
			continue
		}
		written = append(written, r.index)
		if opts.OnItem != nil {
			opts.OnItem(len(written), total)
		}
	}
	if firstErr != nil && !errors.Is(firstErr, context.Canceled) {
		return firstErr
	}
	if err := parent.Err(); err != nil {
		return err
	}
	if firstErr != nil {
		return firstErr
	}
	if len(written) != total {
		return pipeline.Wrap(pipeline.ErrIncompleteSplit, "persistence", "write items",
			fmt.Sprintf("wrote %d of %d items", len(written), total), nil)
	}
	return nil
}

// writeItem materialises one item and writes both files temp-then-rename.
func writeItem(ctx context.Context, dir string, it *Item, bitDepth int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var (
		mixBuf, gtBuf *audio.Buffer
		err           error
	)
	if it.Persisted() {
		if mixBuf, err = it.MixAudio(ctx); err != nil {
			return err
		}
		if gtBuf, err = it.GroundTruthAudio(ctx); err != nil {
			return err
		}
	} else {
		res, err := it.mat.Materialize(ctx, it.spec)
		if err != nil {
			return err
		}
		mixBuf, gtBuf = res.Mix, res.GroundTruth
	}
	mixRel, gtRel := itemFiles(it.spec)
	if err := audio.WriteWAV(joinRel(dir, mixRel), mixBuf, bitDepth); err != nil {
		return fmt.Errorf("write mix: %w", err)
	}
	if err := audio.WriteWAV(joinRel(dir, gtRel), gtBuf, bitDepth); err != nil {
		return fmt.Errorf("write ground truth: %w", err)
	}
	return nil
}
