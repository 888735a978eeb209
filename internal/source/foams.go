package source

import (
	"context"
	"path/filepath"
)

const foamsLicense = "CC BY 4.0"

// FOAMS lists trigger clips from the FOAMS misophonia sound set.
type FOAMS struct {
	fileCorpus
}

// NewFOAMS returns an adapter reading segmentation_info.csv and the processed
// audio directory under opts.Root.
func NewFOAMS(opts FileOptions) (*FOAMS, error) {
	fc, err := newFileCorpus("foams", foamsLicense, opts)
	if err != nil {
		return nil, err
	}
	return &FOAMS{fileCorpus: fc}, nil
}

// ListClips maps each segmented sound to a trigger category.
func (f *FOAMS) ListClips(ctx context.Context, filter Filter) ([]Clip, error) {
	t, err := readTable(f.name, filepath.Join(f.root, "segmentation_info.csv"), "id", "label")
	if err != nil {
		return nil, err
	}
	audioDir, err := f.firstDir("processed_audio", "FOAMS_processed_audio")
	if err != nil {
		return nil, err
	}

	var clips []Clip
	for _, row := range t.rows {
		raw := t.get(row, "label")
		label, ok := f.mapping.Lookup(raw)
		if !ok || !filter.Match(label.Kind, label.Category) {
			continue
		}
		id := t.get(row, "id")
		clips = append(clips, Clip{
			ID:          f.name + ":" + id,
			Corpus:      f.name,
			Path:        filepath.Join(audioDir, id+"_processed.wav"),
			Kind:        label.Kind,
			Category:    label.Category,
			SourceLabel: raw,
			License:     f.license,
		})
	}
	return f.finish(ctx, clips)
}
