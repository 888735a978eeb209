package hrtf

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"misophonia/internal/audio"
	"misophonia/internal/logging"
	"misophonia/internal/pipeline"
)

// SADIE II names files azi_<deg>,<frac>_ele_<deg>,<frac>.wav.
var sadieName = regexp.MustCompile(`^azi_(-?\d+(?:[.,]\d+)?)_ele_(-?\d+(?:[.,]\d+)?)\.wav$`)

// ParseFileName extracts the direction encoded in a SADIE style file name.
func ParseFileName(name string) (Direction, bool) {
	m := sadieName.FindStringSubmatch(filepath.Base(name))
	if m == nil {
		return Direction{}, false
	}
	az, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
	if err != nil {
		return Direction{}, false
	}
	el, err := strconv.ParseFloat(strings.ReplaceAll(m[2], ",", "."), 64)
	if err != nil {
		return Direction{}, false
	}
	return Direction{Azimuth: az, Elevation: el}, true
}

// LoadDir reads every stereo WAV under dir matching pattern into a Set.
// Files whose names do not encode a direction are skipped.
func LoadDir(dir, pattern string, logger *slog.Logger) (*Set, error) {
	logger = logging.NewComponentLogger(logger, "hrtf")
	if _, err := os.Stat(dir); err != nil {
		return nil, &pipeline.MissingDataError{Corpus: "sadie", Path: dir, Err: err}
	}
	matches, err := doublestar.Glob(os.DirFS(dir), pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", pattern, err)
	}
	if len(matches) == 0 {
		return nil, &pipeline.MissingDataError{Corpus: "sadie", Path: filepath.Join(dir, pattern)}
	}

	var (
		irs     []IR
		rate    int
		skipped int
	)
	for _, rel := range matches {
		dirn, ok := ParseFileName(rel)
		if !ok {
			skipped++
			continue
		}
		path := filepath.Join(dir, filepath.FromSlash(rel))
		buf, err := audio.ReadWAV(path)
		if err != nil {
			return nil, fmt.Errorf("read impulse response: %w", err)
		}
		if buf.NumChannels() != 2 {
			return nil, fmt.Errorf("impulse response %s has %d channels, want 2", path, buf.NumChannels())
		}
		if rate == 0 {
			rate = buf.Rate
		} else if buf.Rate != rate {
			return nil, fmt.Errorf("impulse response %s has rate %d, set uses %d", path, buf.Rate, rate)
		}
		irs = append(irs, IR{Direction: dirn, Left: buf.Channels[0], Right: buf.Channels[1]})
	}
	if len(irs) == 0 {
		return nil, &pipeline.MissingDataError{Corpus: "sadie", Path: filepath.Join(dir, pattern)}
	}
	if skipped > 0 {
		logging.WarnWithContext(logger, "skipped impulse responses without a direction in the file name", "hrtf_name_unparsed",
			logging.Int("skipped", skipped),
			logging.String(logging.FieldImpact, "those directions are unavailable for rendering"),
		)
	}

	set, err := NewSet("sadie:"+filepath.Base(dir), rate, irs)
	if err != nil {
		return nil, err
	}
	logger.Info("impulse responses loaded",
		logging.Int("directions", set.Len()),
		logging.Int("rate", rate),
		logging.String("dir", dir),
	)
	return set, nil
}
