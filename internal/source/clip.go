package source

import (
	"slices"
	"time"
)

// Kind is the role a clip plays in a mixture.
type Kind string

const (
	KindTrigger    Kind = "trigger"
	KindControl    Kind = "control"
	KindBackground Kind = "background"
)

// ParseKind validates a kind name.
func ParseKind(value string) (Kind, bool) {
	switch k := Kind(Canonical(value)); k {
	case KindTrigger, KindControl, KindBackground:
		return k, true
	}
	return "", false
}

// Label is a (kind, category) pair an adapter can supply.
type Label struct {
	Kind     Kind   `yaml:"kind" json:"kind"`
	Category string `yaml:"category" json:"category"`
}

// Clip describes one raw audio clip. Clips are immutable once listed.
type Clip struct {
	ID          string        `json:"id"`
	Corpus      string        `json:"corpus"`
	Path        string        `json:"path,omitempty"`
	Kind        Kind          `json:"kind"`
	Category    string        `json:"category"`
	SourceLabel string        `json:"source_label"`
	// Subset is the corpus's own partition, such as FSD50K "dev" or "eval".
	Subset      string        `json:"subset,omitempty"`
	Duration    time.Duration `json:"duration"`
	SampleRate  int           `json:"sample_rate"`
	Channels    int           `json:"channels"`
	License     string        `json:"license"`
}

// Frames estimates the clip length in frames at rate.
func (c Clip) Frames(rate int) int {
	return int(c.Duration.Seconds()*float64(rate) + 0.5)
}

// Filter restricts listings. Empty fields match everything.
type Filter struct {
	Kinds      []Kind
	Categories []string
}

// Match reports whether clip passes the filter.
func (f Filter) Match(kind Kind, category string) bool {
	if len(f.Kinds) > 0 && !slices.Contains(f.Kinds, kind) {
		return false
	}
	if len(f.Categories) > 0 && !slices.Contains(f.Categories, category) {
		return false
	}
	return true
}

func sortClips(clips []Clip) {
	slices.SortFunc(clips, func(a, b Clip) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
}
