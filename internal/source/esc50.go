package source

import (
	"context"
	"path/filepath"
	"strings"
)

const (
	esc50Root          = "ESC-50-master"
	esc50License       = "CC BY-NC 3.0"
	esc10License       = "CC BY 3.0"
)

// ESC50 lists trigger clips from the ESC-50 environmental sound corpus.
type ESC50 struct {
	fileCorpus
}

// NewESC50 returns an adapter reading <root>/ESC-50-master.
func NewESC50(opts FileOptions) (*ESC50, error) {
	fc, err := newFileCorpus("esc50", esc50License, opts)
	if err != nil {
		return nil, err
	}
	return &ESC50{fileCorpus: fc}, nil
}

// ListClips reads meta/esc50.csv and keeps the mapped categories.
func (e *ESC50) ListClips(ctx context.Context, filter Filter) ([]Clip, error) {
	base := filepath.Join(e.root, esc50Root)
	t, err := readTable(e.name, filepath.Join(base, "meta", "esc50.csv"), "filename", "category")
	if err != nil {
		return nil, err
	}
	audioDir := filepath.Join(base, "audio")

	var clips []Clip
	for _, row := range t.rows {
		raw := t.get(row, "category")
		label, ok := e.mapping.Lookup(raw)
		if !ok || !filter.Match(label.Kind, label.Category) {
			continue
		}
		name := t.get(row, "filename")
		license := e.license
		if strings.EqualFold(t.get(row, "esc10"), "true") {
			license = esc10License
		}
		clips = append(clips, Clip{
			ID:          e.name + ":" + strings.TrimSuffix(name, filepath.Ext(name)),
			Corpus:      e.name,
			Path:        filepath.Join(audioDir, name),
			Kind:        label.Kind,
			Category:    label.Category,
			SourceLabel: raw,
			License:     license,
		})
	}
	return e.finish(ctx, clips)
}
