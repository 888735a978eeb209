package dataset

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"misophonia/internal/fileutil"
	"misophonia/internal/generate"
	"misophonia/internal/pipeline"
)

// Persisted split layout.
const (
	MixDir          = "mix"
	GroundTruthDir  = "ground_truth"
	MetadataFile    = "metadata.csv"
	ManifestFile    = "manifest.json"
	lockFile        = ".lock"
	manifestVersion = 1
)

var metadataHeader = []string{
	"index", "id", "is_trigger", "categories", "is_foams", "pair_id",
	"pair_mask", "is_anchor", "background_clip", "background_corpus",
	"background_azimuth", "background_elevation", "background_gain_db",
	"foreground", "mix_file", "ground_truth_file",
}

// Manifest describes a complete persisted split.
type Manifest struct {
	FormatVersion int                `json:"format_version"`
	Dataset       string             `json:"dataset"`
	Split         string             `json:"split"`
	Seed          int64              `json:"seed"`
	SampleRate    int                `json:"sample_rate"`
	BitDepth      int                `json:"bit_depth"`
	Length        int                `json:"length"`
	Renderer      string             `json:"renderer"`
	CreatedAt     time.Time          `json:"created_at"`
	ItemCount     int                `json:"item_count"`
	TriggerCount  int                `json:"trigger_count"`
	PairCount     int                `json:"pair_count"`
	PerCategory   map[string]int     `json:"per_category"`
	Items         []generate.MixSpec `json:"items"`
}

// itemFiles returns the mix and ground-truth paths relative to the split directory.
func itemFiles(spec generate.MixSpec) (string, string) {
	name := fmt.Sprintf("%05d_%s.wav", spec.Index, spec.ID)
	return MixDir + "/" + name, GroundTruthDir + "/" + name
}

func joinRel(dir, rel string) string {
	return filepath.Join(dir, filepath.FromSlash(rel))
}

// metadataRow renders one metadata.csv row.
func metadataRow(spec generate.MixSpec) ([]string, error) {
	fg, err := json.Marshal(spec.Foreground)
	if err != nil {
		return nil, fmt.Errorf("encode foreground of item %d: %w", spec.Index, err)
	}
	mixRel, gtRel := itemFiles(spec)
	bg := spec.Background
	return []string{
		strconv.Itoa(spec.Index),
		spec.ID,
		strconv.FormatBool(spec.IsTrigger),
		strings.Join(spec.Categories, ";"),
		strconv.FormatBool(spec.IsFOAMS),
		spec.PairID,
		spec.PairMask,
		strconv.FormatBool(spec.IsAnchor),
		bg.ClipID,
		bg.Corpus,
		formatFloat(bg.Direction.Azimuth),
		formatFloat(bg.Direction.Elevation),
		formatFloat(bg.GainDB),
		string(fg),
		mixRel,
		gtRel,
	}, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func writeMetadata(dir string, specs []generate.MixSpec) error {
	return fileutil.WriteAtomic(filepath.Join(dir, MetadataFile), func(w io.WriteSeeker) error {
		cw := csv.NewWriter(w)
		if err := cw.Write(metadataHeader); err != nil {
			return err
		}
		for _, spec := range specs {
			row, err := metadataRow(spec)
			if err != nil {
				return err
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	})
}

// readMetadata returns the data rows of metadata.csv keyed by column name.
func readMetadata(dir string) ([]map[string]string, error) {
	data, err := os.ReadFile(filepath.Join(dir, MetadataFile))
	if err != nil {
		return nil, err
	}
	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", MetadataFile, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s is empty", MetadataFile)
	}
	header := records[0]
	rows := make([]map[string]string, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(rec) {
				row[col] = rec[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func writeManifest(dir string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	return fileutil.WriteFileAtomic(filepath.Join(dir, ManifestFile), append(data, '\n'))
}

// ReadManifest loads the manifest of a persisted split. A directory without
// one is incomplete.
func ReadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if errors.Is(err, fs.ErrNotExist) {
		if _, statErr := os.Stat(dir); errors.Is(statErr, fs.ErrNotExist) {
			return nil, pipeline.Wrap(pipeline.ErrNotFound, "persistence", "read manifest",
				fmt.Sprintf("split directory %s does not exist", dir), nil)
		}
		return nil, pipeline.Wrap(pipeline.ErrIncompleteSplit, "persistence", "read manifest",
			fmt.Sprintf("%s has no %s; the run that wrote it did not finish", dir, ManifestFile), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, pipeline.Wrap(pipeline.ErrIncompleteSplit, "persistence", "read manifest", "manifest is not valid JSON", err)
	}
	if m.FormatVersion != manifestVersion {
		return nil, pipeline.Wrap(pipeline.ErrValidation, "persistence", "read manifest",
			fmt.Sprintf("unsupported manifest format %d", m.FormatVersion), nil)
	}
	return &m, nil
}

// Complete reports whether dir holds a finished split.
func Complete(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, ManifestFile))
	return err == nil && info.Mode().IsRegular()
}

// LoadSplit opens a persisted split without sampling anything. Audio is read
// from disk on access.
func LoadSplit(dir string) (*Split, error) {
	m, err := ReadManifest(dir)
	if err != nil {
		return nil, err
	}
	rows, err := readMetadata(dir)
	if err != nil {
		return nil, pipeline.Wrap(pipeline.ErrIncompleteSplit, "persistence", "read metadata", dir, err)
	}
	if len(rows) != len(m.Items) {
		return nil, pipeline.Wrap(pipeline.ErrIncompleteSplit, "persistence", "read metadata",
			fmt.Sprintf("%s lists %d items but the manifest has %d", MetadataFile, len(rows), len(m.Items)), nil)
	}
	items := make([]*Item, len(m.Items))
	for i, spec := range m.Items {
		if rows[i]["id"] != spec.ID {
			return nil, pipeline.Wrap(pipeline.ErrIncompleteSplit, "persistence", "read metadata",
				fmt.Sprintf("row %d has id %q, manifest has %q", i, rows[i]["id"], spec.ID), nil)
		}
		items[i] = newPersistedItem(spec, dir)
	}
	return newSplit(m.Dataset, m.Split, m.Seed, items), nil
}

func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
