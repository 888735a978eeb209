package dataset_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"misophonia/internal/audio"
	"misophonia/internal/config"
	"misophonia/internal/dataset"
	"misophonia/internal/logging"
	"misophonia/internal/pipeline"
	"misophonia/internal/testsupport"
)

func buildSplit(t *testing.T, cfg *config.Config, name string, n int, seed int64) *dataset.Split {
	t.Helper()
	p, err := dataset.Build(cfg, cfg.Generation.Sources, logging.NewNop())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })
	split, err := p.Dataset("unit", cfg.Generation.Seed).GetSplit(context.Background(), name,
		dataset.WithNumSamples(n), dataset.WithSeed(seed))
	if err != nil {
		t.Fatalf("GetSplit: %v", err)
	}
	return split
}

func writeOpts(cfg *config.Config) dataset.WriteOptions {
	return dataset.WriteOptions{Workers: 3, BitDepth: cfg.Audio.BitDepth, Logger: logging.NewNop()}
}

type itemAudio struct {
	mix, gt *audio.Buffer
}

// checkItems verifies every item's shape and that ground truth is non-silent
// exactly when the item carries a trigger.
func checkItems(t *testing.T, split *dataset.Split, items []itemAudio, rate int) {
	t.Helper()
	for i, a := range items {
		spec := split.Item(i).Spec()
		if a.mix.Rate != rate || a.gt.Rate != rate {
			t.Fatalf("item %d: rates %d / %d, want %d", i, a.mix.Rate, a.gt.Rate, rate)
		}
		if a.mix.Frames() != spec.Length || a.gt.Frames() != spec.Length {
			t.Fatalf("item %d: mix %d / ground truth %d frames, want %d", i, a.mix.Frames(), a.gt.Frames(), spec.Length)
		}
		if a.mix.NumChannels() != 2 || a.gt.NumChannels() != 2 {
			t.Fatalf("item %d is not binaural", i)
		}
		if a.mix.IsSilent() {
			t.Fatalf("item %d has a silent mix", i)
		}
		if spec.IsTrigger == a.gt.IsSilent() {
			t.Fatalf("item %d: trigger=%v but ground truth silent=%v", i, spec.IsTrigger, a.gt.IsSilent())
		}
	}
}

func collect(t *testing.T, split *dataset.Split) []itemAudio {
	t.Helper()
	ctx := context.Background()
	out := make([]itemAudio, 0, split.Len())
	for _, it := range split.Items() {
		m, err := it.MixAudio(ctx)
		if err != nil {
			t.Fatalf("item %d mix: %v", it.Index(), err)
		}
		g, err := it.GroundTruthAudio(ctx)
		if err != nil {
			t.Fatalf("item %d ground truth: %v", it.Index(), err)
		}
		out = append(out, itemAudio{mix: m, gt: g})
	}
	return out
}

func TestPersistReloadBitIdentical(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	split := buildSplit(t, cfg, "train", 10, 42)
	if split.Len() != 10 {
		t.Fatalf("split has %d items, want 10", split.Len())
	}
	if got := split.Summary().Triggers; got != 5 {
		t.Fatalf("split has %d trigger items, want 5", got)
	}
	generated := collect(t, split)
	checkItems(t, split, generated, cfg.Audio.SampleRate)

	dir := filepath.Join(cfg.Paths.SaveDir, "unit", "train")
	m, err := dataset.WriteSplit(context.Background(), dir, split, writeOpts(cfg))
	if err != nil {
		t.Fatalf("WriteSplit: %v", err)
	}
	if m.ItemCount != 10 || m.TriggerCount != 5 || m.SampleRate != cfg.Audio.SampleRate {
		t.Fatalf("unexpected manifest %+v", m)
	}

	loaded, err := dataset.LoadSplit(dir)
	if err != nil {
		t.Fatalf("LoadSplit: %v", err)
	}
	if loaded.Name() != "train" || loaded.Seed() != 42 || loaded.Dataset() != "unit" {
		t.Fatalf("loaded split identity %s/%s/%d", loaded.Dataset(), loaded.Name(), loaded.Seed())
	}
	if !reflect.DeepEqual(loaded.Specs(), split.Specs()) {
		t.Fatal("reloaded specs differ from the generated ones")
	}
	reloaded := collect(t, loaded)
	for i := range generated {
		if !generated[i].mix.Equal(reloaded[i].mix) {
			t.Fatalf("item %d mix changed across persist/reload", i)
		}
		if !generated[i].gt.Equal(reloaded[i].gt) {
			t.Fatalf("item %d ground truth changed across persist/reload", i)
		}
	}

	again := collect(t, buildSplit(t, testsupport.NewConfig(t), "train", 10, 42))
	for i := range generated {
		if !generated[i].mix.Equal(again[i].mix) || !generated[i].gt.Equal(again[i].gt) {
			t.Fatalf("item %d differs between two runs with the same seed", i)
		}
	}
}

func TestWriteSplitReplace(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	split := buildSplit(t, cfg, "val", 3, 7)
	dir := filepath.Join(t.TempDir(), "val")
	if _, err := dataset.WriteSplit(context.Background(), dir, split, writeOpts(cfg)); err != nil {
		t.Fatalf("WriteSplit: %v", err)
	}
	if _, err := dataset.WriteSplit(context.Background(), dir, split, writeOpts(cfg)); !errors.Is(err, pipeline.ErrValidation) {
		t.Fatalf("expected validation error for an existing split, got %v", err)
	}
	opts := writeOpts(cfg)
	opts.Replace = true
	var calls int
	opts.OnItem = func(done, total int) {
		calls++
		if total != 3 || done > total {
			t.Errorf("progress %d/%d", done, total)
		}
	}
	if _, err := dataset.WriteSplit(context.Background(), dir, split, opts); err != nil {
		t.Fatalf("WriteSplit with replace: %v", err)
	}
	if calls != 3 {
		t.Fatalf("OnItem called %d times, want 3", calls)
	}
	entries, err := os.ReadDir(filepath.Join(dir, dataset.MixDir))
	if err != nil {
		t.Fatalf("read mix dir: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("mix dir holds %d files, want 3", len(entries))
	}
}

func TestLoadSplitIncomplete(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	split := buildSplit(t, cfg, "test", 2, 1)
	dir := filepath.Join(t.TempDir(), "test")
	if _, err := dataset.WriteSplit(context.Background(), dir, split, writeOpts(cfg)); err != nil {
		t.Fatalf("WriteSplit: %v", err)
	}
	if err := os.Remove(filepath.Join(dir, dataset.ManifestFile)); err != nil {
		t.Fatalf("remove manifest: %v", err)
	}
	if _, err := dataset.LoadSplit(dir); !errors.Is(err, pipeline.ErrIncompleteSplit) {
		t.Fatalf("expected ErrIncompleteSplit, got %v", err)
	}
	if _, err := dataset.LoadSplit(filepath.Join(t.TempDir(), "missing")); !errors.Is(err, pipeline.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestWriteSplitCancelled(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	split := buildSplit(t, cfg, "train", 4, 3)
	dir := filepath.Join(t.TempDir(), "train")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := dataset.WriteSplit(ctx, dir, split, writeOpts(cfg)); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if dataset.Complete(dir) {
		t.Fatal("cancelled run wrote a manifest")
	}
	if _, err := dataset.LoadSplit(dir); !errors.Is(err, pipeline.ErrIncompleteSplit) {
		t.Fatalf("expected ErrIncompleteSplit after cancellation, got %v", err)
	}
}

func TestSplitItemsRestartable(t *testing.T) {
	split := buildSplit(t, testsupport.NewConfig(t), "train", 5, 9)
	var first []string
	for _, it := range split.Items() {
		first = append(first, it.ID())
	}
	var second []string
	for i, it := range split.Items() {
		if i == 2 {
			break
		}
		second = append(second, it.ID())
	}
	if len(first) != 5 || !reflect.DeepEqual(first[:2], second) {
		t.Fatalf("iteration mismatch: %v vs %v", first, second)
	}
	for i, id := range first {
		if split.Item(i).ID() != id || split.Item(i).Index() != i {
			t.Fatalf("item %d out of order", i)
		}
	}
}

func TestDemoTrainSplitOffline(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ctx := context.Background()
	ds, err := dataset.Open(ctx, dataset.DemoName, cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if ds.Name() != dataset.DemoName {
		t.Fatalf("name = %q", ds.Name())
	}
	recipe, err := dataset.DemoRecipe()
	if err != nil {
		t.Fatalf("DemoRecipe: %v", err)
	}
	split, err := ds.GetSplit(ctx, "train")
	if err != nil {
		t.Fatalf("GetSplit: %v", err)
	}
	if split.Len() != recipe.Splits[0].Samples {
		t.Fatalf("train has %d items, want %d", split.Len(), recipe.Splits[0].Samples)
	}
	if !dataset.Complete(filepath.Join(cfg.PremadeDir(), dataset.DemoName, "train")) {
		t.Fatal("demo split was not persisted")
	}
	for _, spec := range split.Specs() {
		if spec.Length != int(recipe.ItemSeconds*float64(recipe.SampleRate)) {
			t.Fatalf("demo item %d is %d frames", spec.Index, spec.Length)
		}
	}
	checkItems(t, split, collect(t, split), recipe.SampleRate)

	reopened, err := dataset.Open(ctx, dataset.DemoName, cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	again, err := reopened.GetSplit(ctx, "train")
	if err != nil {
		t.Fatalf("GetSplit again: %v", err)
	}
	if !reflect.DeepEqual(again.Specs(), split.Specs()) {
		t.Fatal("second access did not serve the persisted split")
	}
	if _, err := ds.GetSplit(ctx, "holdout"); !errors.Is(err, pipeline.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for an unknown split, got %v", err)
	}
}

func TestOpenSavedDataset(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ctx := context.Background()
	if _, err := dataset.Open(ctx, "nope", cfg, logging.NewNop()); !errors.Is(err, pipeline.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	split := buildSplit(t, cfg, "train", 2, 5)
	if _, err := dataset.WriteSplit(ctx, filepath.Join(cfg.Paths.SaveDir, "unit", "train"), split, writeOpts(cfg)); err != nil {
		t.Fatalf("WriteSplit: %v", err)
	}
	ds, err := dataset.Open(ctx, "unit", cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	premade, ok := ds.(*dataset.Premade)
	if !ok {
		t.Fatalf("Open returned %T", ds)
	}
	splits, err := premade.Splits()
	if err != nil || !reflect.DeepEqual(splits, []string{"train"}) {
		t.Fatalf("Splits = %v, %v", splits, err)
	}
	loaded, err := ds.GetSplit(ctx, "train")
	if err != nil {
		t.Fatalf("GetSplit: %v", err)
	}
	if loaded.Len() != 2 || !loaded.Item(0).Persisted() {
		t.Fatalf("unexpected premade split of %d items", loaded.Len())
	}
}

func TestShortItemsKeepTriggerGroundTruth(t *testing.T) {
	cases := []struct {
		name    string
		seconds float64
		n       int
	}{
		{"half second", 0.5, 24},
		{"quarter second", 0.25, 12},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testsupport.NewConfig(t, testsupport.WithItemSeconds(tc.seconds))
			split := buildSplit(t, cfg, "train", tc.n, 42)
			if split.Summary().Triggers == 0 {
				t.Fatal("split has no trigger items")
			}
			checkItems(t, split, collect(t, split), cfg.Audio.SampleRate)
		})
	}
}

func TestPartitionedSplitsShareNoClips(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	sizes := map[string]int{"train": 10, "val": 3, "test": 2}
	owner := make(map[string]string)
	for name, n := range sizes {
		split := buildSplit(t, cfg, name, n, 42)
		for _, spec := range split.Specs() {
			ids := []string{spec.Background.ClipID}
			for _, fg := range spec.Foreground {
				ids = append(ids, fg.ClipID)
			}
			for _, id := range ids {
				if prev, ok := owner[id]; ok && prev != name {
					t.Fatalf("clip %s appears in both %s and %s", id, prev, name)
				}
				owner[id] = name
			}
		}
	}
}
