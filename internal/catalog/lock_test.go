package catalog

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"
)

type codedErr int

func (e codedErr) Error() string { return fmt.Sprintf("sqlite code %d", int(e)) }
func (e codedErr) Code() int     { return int(e) }

func TestLockPolicyWait(t *testing.T) {
	p := lockPolicy{tries: 6, first: 10 * time.Millisecond, limit: 50 * time.Millisecond}
	want := []time.Duration{10, 20, 40, 50, 50}
	for n, w := range want {
		if got := p.wait(n); got != w*time.Millisecond {
			t.Fatalf("wait(%d) = %v, want %v", n, got, w*time.Millisecond)
		}
	}
}

func TestLocked(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{codedErr(sqliteBusy), true},
		{fmt.Errorf("insert run: %w", codedErr(sqliteLocked)), true},
		{codedErr(517), true}, // SQLITE_BUSY_SNAPSHOT
		{codedErr(19), false},
		{errors.New("database is locked"), true},
		{errors.New("no such table"), false},
	}
	for _, tc := range cases {
		if got := locked(tc.err); got != tc.want {
			t.Fatalf("locked(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestExecStopsOnCancelledContext(t *testing.T) {
	s, err := OpenPath(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	defer s.Close()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.exec(ctx, "DELETE FROM runs"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
