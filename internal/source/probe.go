package source

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"time"

	"go.etcd.io/bbolt"

	"misophonia/internal/audio"
	"misophonia/internal/logging"
	"misophonia/internal/pipeline"
)

var bucketProbes = []byte("probes")

// Prober reads clip properties from audio files.
type Prober interface {
	Probe(corpus, path string) (audio.Info, error)
}

// FileProber probes every call without caching.
type FileProber struct{}

// Probe reads the WAV header at path.
func (FileProber) Probe(corpus, path string) (audio.Info, error) {
	info, err := audio.Probe(path)
	if errors.Is(err, fs.ErrNotExist) {
		return audio.Info{}, &pipeline.MissingDataError{Corpus: corpus, Path: path, Err: err}
	}
	return info, err
}

// ProbeCache memoises probes in a bbolt database keyed by path, size, and
// modification time. Cache failures are logged and never fail a probe.
type ProbeCache struct {
	db     *bbolt.DB
	logger *slog.Logger
}

// OpenProbeCache opens or creates the cache database at path.
func OpenProbeCache(path string, logger *slog.Logger) (*ProbeCache, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open probe cache %q: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketProbes)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init probe cache: %w", err)
	}
	return &ProbeCache{db: db, logger: logger}, nil
}

// Probe returns cached properties for path, probing and storing on a miss.
func (c *ProbeCache) Probe(corpus, path string) (audio.Info, error) {
	stat, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return audio.Info{}, &pipeline.MissingDataError{Corpus: corpus, Path: path, Err: err}
		}
		return audio.Info{}, err
	}
	key := []byte(path + "|" + strconv.FormatInt(stat.Size(), 10) + "|" + strconv.FormatInt(stat.ModTime().UnixNano(), 10))

	var info audio.Info
	var hit bool
	err = c.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketProbes).Get(key)
		if data == nil {
			return nil
		}
		hit = true
		return json.Unmarshal(data, &info)
	})
	if err == nil && hit {
		return info, nil
	}
	if err != nil {
		c.warn("probe cache read failed", "probe_cache_read_failed", path, err)
	}

	info, err = FileProber{}.Probe(corpus, path)
	if err != nil {
		return audio.Info{}, err
	}
	data, err := json.Marshal(info)
	if err == nil {
		err = c.db.Update(func(tx *bbolt.Tx) error {
			return tx.Bucket(bucketProbes).Put(key, data)
		})
	}
	if err != nil {
		c.warn("probe cache write failed", "probe_cache_write_failed", path, err)
	}
	return info, nil
}

func (c *ProbeCache) warn(msg, event, path string, err error) {
	logging.WarnWithContext(c.logger, msg, event,
		logging.String("path", path),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "delete "+c.db.Path()+" to rebuild the cache"),
		logging.String(logging.FieldImpact, "the file is probed again on the next listing"),
	)
}

// Len returns the number of cached probes.
func (c *ProbeCache) Len() int {
	var n int
	_ = c.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(bucketProbes).Stats().KeyN
		return nil
	})
	return n
}

// Close closes the database.
func (c *ProbeCache) Close() error {
	return c.db.Close()
}
