package source

import (
	"context"
	"path/filepath"
	"strings"
)

const fsd50kLicense = "CC (see FSD50K metadata)"

// FSD50K lists trigger, control, and background clips from FSD50K dev and eval.
type FSD50K struct {
	fileCorpus
}

// NewFSD50K returns an adapter reading metadata/, dev_audio/ and eval_audio/
// under opts.Root.
func NewFSD50K(opts FileOptions) (*FSD50K, error) {
	fc, err := newFileCorpus("fsd50k", fsd50kLicense, opts)
	if err != nil {
		return nil, err
	}
	return &FSD50K{fileCorpus: fc}, nil
}

// ListClips keeps rows whose labels all map to one kind and category.
func (f *FSD50K) ListClips(ctx context.Context, filter Filter) ([]Clip, error) {
	var clips []Clip
	for _, split := range []string{"dev", "eval"} {
		path := filepath.Join(f.root, "metadata", "collection", "collection_"+split+".csv")
		t, err := readTable(f.name, path, "fname", "labels")
		if err != nil {
			return nil, err
		}
		audioDir := filepath.Join(f.root, split+"_audio")
		for _, row := range t.rows {
			raw := t.get(row, "labels")
			label, ok := f.resolve(raw)
			if !ok || !filter.Match(label.Kind, label.Category) {
				continue
			}
			fname := t.get(row, "fname")
			clips = append(clips, Clip{
				ID:          f.name + ":" + fname,
				Corpus:      f.name,
				Path:        filepath.Join(audioDir, fname+".wav"),
				Kind:        label.Kind,
				Category:    label.Category,
				SourceLabel: raw,
				Subset:      split,
				License:     f.license,
			})
		}
	}
	return f.finish(ctx, clips)
}

// resolve maps a comma-separated label list to a single label, rejecting rows
// with unmapped or mixed labels.
func (f *FSD50K) resolve(raw string) (Label, bool) {
	var out Label
	for i, part := range strings.Split(raw, ",") {
		label, ok := f.mapping.Lookup(part)
		if !ok {
			return Label{}, false
		}
		if i > 0 && label != out {
			return Label{}, false
		}
		out = label
	}
	return out, out.Kind != ""
}
