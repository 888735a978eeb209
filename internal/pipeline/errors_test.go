package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"misophonia/internal/pipeline"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := pipeline.Wrap(pipeline.ErrExternalTool, "download", "extract", "7z failed", base)
	if !errors.Is(err, pipeline.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"download", "extract", "7z failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestKindClassifiesTypedErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"missing", &pipeline.MissingDataError{Corpus: "esc50", Path: "/x"}, pipeline.KindMissingData},
		{"insufficient wrapped", fmt.Errorf("plan: %w", &pipeline.InsufficientSourceDataError{Category: "chewing", Need: 3, Have: 1}), pipeline.KindInsufficientSourceData},
		{"direction", &pipeline.UnsupportedDirectionError{Azimuth: 7}, pipeline.KindUnsupportedDirection},
		{"incomplete", pipeline.Wrap(pipeline.ErrIncompleteSplit, "dataset", "load", "no manifest", nil), pipeline.KindIncompleteSplit},
		{"cancelled", fmt.Errorf("run: %w", context.Canceled), pipeline.KindCancelled},
		{"unknown", errors.New("plain"), pipeline.KindUnknown},
		{"nil", nil, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := pipeline.Kind(tc.err); got != tc.want {
				t.Fatalf("Kind() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestTypedErrorsMatchSentinels(t *testing.T) {
	err := fmt.Errorf("load: %w", &pipeline.MissingDataError{Corpus: "foams", Path: "/data/foams"})
	if !errors.Is(err, pipeline.ErrMissingData) {
		t.Fatal("expected MissingDataError to match ErrMissingData")
	}
	if hint := pipeline.Hint(err); !strings.Contains(hint, "misophonia download foams") {
		t.Fatalf("unexpected hint %q", hint)
	}
	insufficient := &pipeline.InsufficientSourceDataError{Category: "tapping", Need: 4, Have: 2}
	if !errors.Is(insufficient, pipeline.ErrInsufficientSourceData) {
		t.Fatal("expected InsufficientSourceDataError to match sentinel")
	}
	if !strings.Contains(insufficient.Error(), "tapping") {
		t.Fatalf("expected category in message, got %q", insufficient.Error())
	}
}

func TestContextAnnotations(t *testing.T) {
	ctx := context.Background()
	ctx = pipeline.WithRunID(ctx, "run-1")
	ctx = pipeline.WithSplit(ctx, "test")
	ctx = pipeline.WithItemIndex(ctx, 0)
	ctx = pipeline.WithStage(ctx, "")

	if id, ok := pipeline.RunIDFromContext(ctx); !ok || id != "run-1" {
		t.Fatalf("run id = %q, %v", id, ok)
	}
	if split, ok := pipeline.SplitFromContext(ctx); !ok || split != "test" {
		t.Fatalf("split = %q, %v", split, ok)
	}
	if idx, ok := pipeline.ItemIndexFromContext(ctx); !ok || idx != 0 {
		t.Fatalf("item index = %d, %v", idx, ok)
	}
	if _, ok := pipeline.StageFromContext(ctx); ok {
		t.Fatal("expected empty stage to be ignored")
	}
}
