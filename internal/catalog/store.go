package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"misophonia/internal/config"
)

// Primary SQLite result codes a concurrent generate can hit while another
// process holds the write lock.
const (
	sqliteBusy   = 5
	sqliteLocked = 6
)

// lockPolicy bounds how long a catalog write waits on a locked database.
type lockPolicy struct {
	tries int
	first time.Duration
	limit time.Duration
}

var defaultLockPolicy = lockPolicy{tries: 5, first: 10 * time.Millisecond, limit: 200 * time.Millisecond}

// wait returns the pause before retry n (0-based): first, doubled per retry,
// capped at limit.
func (p lockPolicy) wait(n int) time.Duration {
	d := p.first
	for range n {
		if d >= p.limit {
			return p.limit
		}
		d *= 2
	}
	return min(d, p.limit)
}

// Store is the run history kept in a single SQLite file.
type Store struct {
	db     *sql.DB
	path   string
	policy lockPolicy
}

// Open opens the catalog at cfg.CatalogPath().
func Open(cfg *config.Config) (*Store, error) {
	return OpenPath(cfg.CatalogPath())
}

// OpenPath opens the catalog file at path, creating it and its parent
// directory on first use.
func OpenPath(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("catalog dir: %w", err)
	}
	db, err := sql.Open("sqlite", catalogDSN(path))
	if err != nil {
		return nil, fmt.Errorf("open catalog %s: %w", path, err)
	}

	s := &Store{db: db, path: path, policy: defaultLockPolicy}
	if err := s.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// catalogDSN carries the pragmas as query parameters so every pooled
// connection gets them.
func catalogDSN(path string) string {
	q := url.Values{}
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "busy_timeout(5000)")
	return path + "?" + q.Encode()
}

// Path is the catalog file location.
func (s *Store) Path() string { return s.path }

// Close releases the database. A nil Store is a no-op.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// exec runs a write statement, retrying while another process holds the lock.
func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	for n := 0; ; n++ {
		res, err := s.db.ExecContext(ctx, query, args...)
		if err == nil || !locked(err) || n+1 >= s.policy.tries {
			return res, err
		}
		timer := time.NewTimer(s.policy.wait(n))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// locked reports whether err means the database was busy or locked.
func locked(err error) bool {
	var coded interface{ Code() int }
	if errors.As(err, &coded) {
		// Extended codes keep the primary code in the low byte.
		switch coded.Code() & 0xff {
		case sqliteBusy, sqliteLocked:
			return true
		}
		return false
	}
	return err != nil && strings.Contains(err.Error(), "database is locked")
}
