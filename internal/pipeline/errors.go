package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")

	ErrMissingData            = errors.New("missing data")
	ErrInsufficientSourceData = errors.New("insufficient source data")
	ErrUnsupportedDirection   = errors.New("unsupported direction")
	ErrRenderCacheCorruption  = errors.New("render cache corruption")
	ErrIncompleteSplit        = errors.New("incomplete split")
	ErrGeneratorState         = errors.New("generator state")
)

// Error kinds reported by Kind.
const (
	KindMissingData            = "missing_data"
	KindInsufficientSourceData = "insufficient_source_data"
	KindUnsupportedDirection   = "unsupported_direction"
	KindRenderCacheCorruption  = "render_cache_corruption"
	KindIncompleteSplit        = "incomplete_split"
	KindGeneratorState         = "generator_state"
	KindValidation             = "validation"
	KindConfiguration          = "configuration"
	KindNotFound               = "not_found"
	KindExternalTool           = "external_tool"
	KindTimeout                = "timeout"
	KindCancelled              = "cancelled"
	KindUnknown                = "unknown"
)

// ErrorClassifier is implemented by typed errors that carry their own kind.
type ErrorClassifier interface {
	ErrorKind() string
}

// Hinter is implemented by errors that know how the user can fix them.
type Hinter interface {
	Hint() string
}

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// MissingDataError reports raw corpus files that are absent locally.
type MissingDataError struct {
	Corpus string
	Path   string
	Err    error
}

func (e *MissingDataError) Error() string {
	msg := fmt.Sprintf("%s: required file %s not found", e.Corpus, e.Path)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MissingDataError) Unwrap() error { return e.Err }

func (e *MissingDataError) Is(target error) bool { return target == ErrMissingData }

func (e *MissingDataError) ErrorKind() string { return KindMissingData }

func (e *MissingDataError) Hint() string {
	return fmt.Sprintf("run `misophonia download %s` or point paths.data_dir at the extracted corpus", e.Corpus)
}

// InsufficientSourceDataError reports a category whose pool cannot satisfy the
// balance constraints without replacement.
type InsufficientSourceDataError struct {
	Category string
	Need     int
	Have     int
}

func (e *InsufficientSourceDataError) Error() string {
	return fmt.Sprintf("category %q needs %d clips but only %d are available", e.Category, e.Need, e.Have)
}

func (e *InsufficientSourceDataError) Is(target error) bool {
	return target == ErrInsufficientSourceData
}

func (e *InsufficientSourceDataError) ErrorKind() string { return KindInsufficientSourceData }

func (e *InsufficientSourceDataError) Hint() string {
	return "lower -n, add source datasets, or set generation.allow_replacement = true"
}

// UnsupportedDirectionError reports a direction with no measured impulse
// response when snapping is disabled.
type UnsupportedDirectionError struct {
	Azimuth   float64
	Elevation float64
	Nearest   string
}

func (e *UnsupportedDirectionError) Error() string {
	msg := fmt.Sprintf("no impulse response for azimuth %.2f elevation %.2f", e.Azimuth, e.Elevation)
	if e.Nearest != "" {
		msg += " (nearest " + e.Nearest + ")"
	}
	return msg
}

func (e *UnsupportedDirectionError) Is(target error) bool { return target == ErrUnsupportedDirection }

func (e *UnsupportedDirectionError) ErrorKind() string { return KindUnsupportedDirection }

func (e *UnsupportedDirectionError) Hint() string {
	return `set render.direction_policy = "snap" or request a measured direction`
}

// RenderCacheCorruptionError reports a cached render that failed its sanity check.
type RenderCacheCorruptionError struct {
	Key    string
	Reason string
}

func (e *RenderCacheCorruptionError) Error() string {
	return fmt.Sprintf("render cache entry %s: %s", e.Key, e.Reason)
}

func (e *RenderCacheCorruptionError) Is(target error) bool {
	return target == ErrRenderCacheCorruption
}

func (e *RenderCacheCorruptionError) ErrorKind() string { return KindRenderCacheCorruption }

// Kind classifies err for user-facing reporting and catalog status.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	var classifier ErrorClassifier
	if errors.As(err, &classifier) {
		return classifier.ErrorKind()
	}
	switch {
	case errors.Is(err, context.Canceled):
		return KindCancelled
	case errors.Is(err, ErrMissingData):
		return KindMissingData
	case errors.Is(err, ErrInsufficientSourceData):
		return KindInsufficientSourceData
	case errors.Is(err, ErrUnsupportedDirection):
		return KindUnsupportedDirection
	case errors.Is(err, ErrRenderCacheCorruption):
		return KindRenderCacheCorruption
	case errors.Is(err, ErrIncompleteSplit):
		return KindIncompleteSplit
	case errors.Is(err, ErrGeneratorState):
		return KindGeneratorState
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrExternalTool):
		return KindExternalTool
	case errors.Is(err, ErrTimeout):
		return KindTimeout
	default:
		return KindUnknown
	}
}

// Hint returns the remediation hint carried by err, if any.
func Hint(err error) string {
	if err == nil {
		return ""
	}
	var hinter Hinter
	if errors.As(err, &hinter) {
		return hinter.Hint()
	}
	switch {
	case errors.Is(err, ErrIncompleteSplit):
		return "the split was not finished; regenerate it with --replace"
	case errors.Is(err, ErrConfiguration):
		return "check the configuration with `misophonia config validate`"
	case errors.Is(err, ErrExternalTool):
		return "run `misophonia check` to verify external tools"
	}
	return ""
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "pipeline failure"
	}
	return strings.Join(parts, ": ")
}
