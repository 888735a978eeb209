package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"misophonia/internal/audio"
	"misophonia/internal/logging"
	"misophonia/internal/pipeline"
)

// FileOptions configures adapters backed by a downloaded corpus directory.
type FileOptions struct {
	// Root is the corpus directory, usually <data_dir>/<corpus>.
	Root string
	// Prober reads clip headers; nil probes every file directly.
	Prober Prober
	// FFmpeg decodes files that are not PCM WAV. Empty disables the fallback.
	FFmpeg string
	Logger *slog.Logger
}

// fileCorpus holds what the file-backed adapters share.
type fileCorpus struct {
	name    string
	root    string
	license string
	mapping *Mapping
	prober  Prober
	ffmpeg  string
	logger  *slog.Logger
}

func newFileCorpus(name, license string, opts FileOptions) (fileCorpus, error) {
	mapping, err := LoadMapping(name)
	if err != nil {
		return fileCorpus{}, err
	}
	prober := opts.Prober
	if prober == nil {
		prober = FileProber{}
	}
	return fileCorpus{
		name:    name,
		root:    opts.Root,
		license: license,
		mapping: mapping,
		prober:  prober,
		ffmpeg:  opts.FFmpeg,
		logger:  logging.NewComponentLogger(opts.Logger, "source").With(logging.String(logging.FieldCorpus, name)),
	}, nil
}

func (f *fileCorpus) Name() string { return f.name }

func (f *fileCorpus) Labels() []Label { return f.mapping.Labels() }

// describe fills in the probed properties of clip.
func (f *fileCorpus) describe(clip *Clip) error {
	info, err := f.prober.Probe(f.name, clip.Path)
	if errors.Is(err, audio.ErrNotWAV) {
		f.logger.Debug("clip is not a PCM wav; properties resolved at load", logging.String("path", clip.Path))
		if _, statErr := os.Stat(clip.Path); statErr != nil {
			return &pipeline.MissingDataError{Corpus: f.name, Path: clip.Path, Err: statErr}
		}
		return nil
	}
	if err != nil {
		return err
	}
	clip.Duration = info.Duration
	clip.SampleRate = info.Rate
	clip.Channels = info.Channels
	return nil
}

func (f *fileCorpus) LoadAudio(ctx context.Context, clip Clip) (*audio.Buffer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	buf, err := audio.ReadWAV(clip.Path)
	switch {
	case err == nil:
		return buf, nil
	case errors.Is(err, fs.ErrNotExist):
		return nil, &pipeline.MissingDataError{Corpus: f.name, Path: clip.Path, Err: err}
	case errors.Is(err, audio.ErrNotWAV) && f.ffmpeg != "":
		rate := clip.SampleRate
		if rate <= 0 {
			rate = 44100
		}
		buf, err = audio.DecodeFFmpeg(ctx, f.ffmpeg, clip.Path, rate)
		if err != nil {
			return nil, pipeline.Wrap(pipeline.ErrExternalTool, "source", "decode clip", clip.ID, err)
		}
		return buf, nil
	default:
		return nil, pipeline.Wrap(pipeline.ErrValidation, "source", "decode clip", clip.ID, err)
	}
}

// finish probes and sorts listed clips, checking ctx between files.
func (f *fileCorpus) finish(ctx context.Context, clips []Clip) ([]Clip, error) {
	for i := range clips {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := f.describe(&clips[i]); err != nil {
			return nil, err
		}
	}
	sortClips(clips)
	f.logger.Debug("clips listed", logging.Int("count", len(clips)))
	return clips, nil
}

// firstDir returns the first of candidates (relative to root) that exists.
func (f *fileCorpus) firstDir(candidates ...string) (string, error) {
	for _, c := range candidates {
		path := filepath.Join(f.root, c)
		if st, err := os.Stat(path); err == nil && st.IsDir() {
			return path, nil
		}
	}
	return "", &pipeline.MissingDataError{Corpus: f.name, Path: filepath.Join(f.root, candidates[0]), Err: fs.ErrNotExist}
}

// table is a CSV file indexed by header name.
type table struct {
	columns map[string]int
	rows    [][]string
}

func readTable(corpus, path string, required ...string) (*table, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &pipeline.MissingDataError{Corpus: corpus, Path: path, Err: err}
		}
		return nil, fmt.Errorf("open %s metadata: %w", corpus, err)
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		return nil, pipeline.Wrap(pipeline.ErrValidation, "source", "read metadata", path, err)
	}
	t := &table{columns: make(map[string]int, len(header))}
	for i, name := range header {
		t.columns[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	for _, col := range required {
		if _, ok := t.columns[col]; !ok {
			return nil, pipeline.Wrap(pipeline.ErrValidation, "source", "read metadata", fmt.Sprintf("%s: missing column %q", path, col), nil)
		}
	}
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, pipeline.Wrap(pipeline.ErrValidation, "source", "read metadata", path, err)
		}
		t.rows = append(t.rows, row)
	}
	return t, nil
}

func (t *table) get(row []string, column string) string {
	i, ok := t.columns[column]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
