package logging

import (
	"context"
	"log/slog"

	"misophonia/internal/pipeline"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldRunID is the standardized key for generation run identifiers.
	FieldRunID = "run_id"
	// FieldDataset is the standardized key for dataset names.
	FieldDataset = "dataset"
	// FieldSplit is the standardized key for split names (train/val/test).
	FieldSplit = "split"
	// FieldItemIndex is the standardized key for the index of an item within its split.
	FieldItemIndex = "item_index"
	// FieldItemID is the standardized key for dataset item identifiers.
	FieldItemID = "item_id"
	// FieldCorpus is the standardized key for source corpus names.
	FieldCorpus = "corpus"
	// FieldStage is the standardized key for pipeline stage names.
	FieldStage = "stage"
	// FieldEventType classifies warnings and errors for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint carries the suggested next step for a warning or error.
	FieldErrorHint = "error_hint"
	// FieldImpact is the user-facing consequence of a warning.
	FieldImpact = "impact"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 5)
	if id, ok := pipeline.RunIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRunID, id))
	}
	if name, ok := pipeline.DatasetFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldDataset, name))
	}
	if split, ok := pipeline.SplitFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldSplit, split))
	}
	if idx, ok := pipeline.ItemIndexFromContext(ctx); ok {
		fields = append(fields, slog.Int(FieldItemIndex, idx))
	}
	if stage, ok := pipeline.StageFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldStage, stage))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}
