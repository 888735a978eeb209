package generate

import (
	"fmt"

	"github.com/google/uuid"

	"misophonia/internal/hrtf"
	"misophonia/internal/source"
)

// Pair member masks.
const (
	MaskTrigger = "A"
	MaskControl = "B"
)

var idNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("misophonia/dataset-item"))

// Placement positions one clip in an item.
type Placement struct {
	ClipID    string         `json:"clip_id"`
	Corpus    string         `json:"corpus"`
	Kind      source.Kind    `json:"kind"`
	Category  string         `json:"category"`
	Direction hrtf.Direction `json:"direction"`
	Onset     int            `json:"onset"`
	GainDB    float64        `json:"gain_db"`
}

// MixSpec is the complete recipe for one dataset item.
type MixSpec struct {
	ID         string      `json:"id"`
	Index      int         `json:"index"`
	Split      string      `json:"split"`
	Seed       int64       `json:"seed"`
	SampleRate int         `json:"sample_rate"`
	Length     int         `json:"length"`
	Background Placement   `json:"background"`
	Foreground []Placement `json:"foreground"`
	IsTrigger  bool        `json:"is_trigger"`
	IsFOAMS    bool        `json:"is_foams"`
	Categories []string    `json:"categories"`
	PairID     string      `json:"pair_id,omitempty"`
	PairMask   string      `json:"pair_mask,omitempty"`
	IsAnchor   bool        `json:"is_anchor,omitempty"`
}

// IsPair reports whether the item belongs to an experimental pair.
func (s MixSpec) IsPair() bool { return s.PairID != "" }

func itemID(split string, seed int64, index int) string {
	return uuid.NewSHA1(idNamespace, fmt.Appendf(nil, "item/%s/%d/%d", split, seed, index)).String()
}

func pairID(split string, seed int64, category string, n int) string {
	return uuid.NewSHA1(idNamespace, fmt.Appendf(nil, "pair/%s/%d/%s/%d", split, seed, category, n)).String()
}

// anchorPairID is shared by every generated dataset.
var anchorPairID = uuid.NewSHA1(idNamespace, []byte("pair/anchor")).String()

// Summary counts the composition of a split.
type Summary struct {
	Items       int
	Triggers    int
	Pairs       int
	PerCategory map[string]int
}

// Summarize tallies specs.
func Summarize(specs []MixSpec) Summary {
	s := Summary{Items: len(specs), PerCategory: make(map[string]int)}
	pairs := make(map[string]struct{})
	for _, spec := range specs {
		if spec.IsTrigger {
			s.Triggers++
		}
		for _, c := range spec.Categories {
			s.PerCategory[c]++
		}
		if spec.PairID != "" {
			pairs[spec.PairID] = struct{}{}
		}
	}
	s.Pairs = len(pairs)
	return s
}
