package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a run.
type Status string

const (
	StatusRunning     Status = "running"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
	StatusCancelled   Status = "cancelled"
	StatusInterrupted Status = "interrupted"
)

// Run is one generate invocation.
type Run struct {
	ID           string
	Dataset      string
	Split        string
	Seed         int64
	Requested    int
	Sources      []string
	Renderer     string
	OutputDir    string
	Status       Status
	ItemsTotal   int
	ItemsWritten int
	TriggerItems int
	ErrorKind    string
	ErrorMessage string
	StartedAt    time.Time
	FinishedAt   time.Time
}

// Duration returns how long the run took, or has taken so far.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return time.Since(r.StartedAt)
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Outcome is what FinishRun records.
type Outcome struct {
	Status       Status
	ItemsTotal   int
	ItemsWritten int
	TriggerItems int
	ErrorKind    string
	ErrorMessage string
}

const runColumns = "id, dataset, split, seed, requested, sources, renderer, output_dir, status, items_total, items_written, trigger_items, error_kind, error_message, started_at, finished_at"

// StartRun records a new running run and returns it with its ID assigned.
func (s *Store) StartRun(ctx context.Context, run Run) (*Run, error) {
	run.ID = uuid.NewString()
	run.Status = StatusRunning
	run.StartedAt = time.Now().UTC()
	_, err := s.exec(ctx,
		`INSERT INTO runs (
            id, dataset, split, seed, requested, sources, renderer, output_dir, status, started_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.Dataset,
		run.Split,
		run.Seed,
		run.Requested,
		nullableString(strings.Join(run.Sources, ",")),
		nullableString(run.Renderer),
		nullableString(run.OutputDir),
		run.Status,
		formatTime(run.StartedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return &run, nil
}

// FinishRun closes a running run with its outcome.
func (s *Store) FinishRun(ctx context.Context, id string, out Outcome) error {
	if out.Status == "" || out.Status == StatusRunning {
		return fmt.Errorf("finish run %s: invalid status %q", id, out.Status)
	}
	res, err := s.exec(ctx,
		`UPDATE runs
         SET status = ?, items_total = ?, items_written = ?, trigger_items = ?,
             error_kind = ?, error_message = ?, finished_at = ?
         WHERE id = ? AND status = ?`,
		out.Status,
		out.ItemsTotal,
		out.ItemsWritten,
		out.TriggerItems,
		nullableString(out.ErrorKind),
		nullableString(out.ErrorMessage),
		formatTime(time.Now()),
		id,
		StatusRunning,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finish run %s: %w", id, ErrNotRunning)
	}
	return nil
}

// ErrNotRunning is returned by FinishRun for unknown or already finished runs.
var ErrNotRunning = errors.New("run is not running")

// Get fetches a run by ID. It returns nil, nil when the run does not exist.
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// Filter narrows List. Empty fields match everything.
type Filter struct {
	Dataset string
	Split   string
	Status  Status
	Limit   int
}

// List returns runs newest first.
func (s *Store) List(ctx context.Context, f Filter) ([]*Run, error) {
	var (
		where []string
		args  []any
	)
	if f.Dataset != "" {
		where = append(where, "dataset = ?")
		args = append(args, f.Dataset)
	}
	if f.Split != "" {
		where = append(where, "split = ?")
		args = append(args, f.Split)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	query := `SELECT ` + runColumns + ` FROM runs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY started_at DESC, id"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// MarkStale marks runs that have been running for longer than age as
// interrupted and returns how many were updated.
func (s *Store) MarkStale(ctx context.Context, age time.Duration) (int64, error) {
	cutoff := time.Now().Add(-age)
	res, err := s.exec(ctx,
		`UPDATE runs SET status = ?, finished_at = ? WHERE status = ? AND started_at < ?`,
		StatusInterrupted, formatTime(time.Now()), StatusRunning, formatTime(cutoff),
	)
	if err != nil {
		return 0, fmt.Errorf("mark stale runs: %w", err)
	}
	return res.RowsAffected()
}

func scanRun(scanner interface{ Scan(dest ...any) error }) (*Run, error) {
	var (
		run          Run
		status       string
		sources      sql.NullString
		renderer     sql.NullString
		outputDir    sql.NullString
		errorKind    sql.NullString
		errorMessage sql.NullString
		startedRaw   string
		finishedRaw  sql.NullString
	)
	if err := scanner.Scan(
		&run.ID,
		&run.Dataset,
		&run.Split,
		&run.Seed,
		&run.Requested,
		&sources,
		&renderer,
		&outputDir,
		&status,
		&run.ItemsTotal,
		&run.ItemsWritten,
		&run.TriggerItems,
		&errorKind,
		&errorMessage,
		&startedRaw,
		&finishedRaw,
	); err != nil {
		return nil, err
	}
	run.Status = Status(status)
	if sources.String != "" {
		run.Sources = strings.Split(sources.String, ",")
	}
	run.Renderer = renderer.String
	run.OutputDir = outputDir.String
	run.ErrorKind = errorKind.String
	run.ErrorMessage = errorMessage.String
	run.StartedAt = parseTime(startedRaw)
	if finishedRaw.Valid {
		run.FinishedAt = parseTime(finishedRaw.String)
	}
	return &run, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

// formatTime uses a fixed-width layout so stored timestamps sort as text.
func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000000Z")
}

func parseTime(raw string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}
