package source

import (
	"cmp"
	"hash/fnv"
	"math"
	"slices"
)

// Partition names.
const (
	SplitTrain = "train"
	SplitVal   = "val"
	SplitTest  = "test"
)

// Fractions is the train/val/test share of a clip group.
type Fractions struct {
	Train, Val, Test float64
}

// ESC-50, FOAMS and the FSD50K dev set only feed train and val; FSD50K eval
// is held out for test.
var corpusFractions = map[string]Fractions{
	"esc50":  {Train: 0.8, Val: 0.2},
	"foams":  {Train: 0.8, Val: 0.2},
	"fsd50k": {Train: 0.8, Val: 0.2},
}

var (
	defaultFractions = Fractions{Train: 0.7, Val: 0.15, Test: 0.15}
	evalFractions    = Fractions{Test: 1}
)

// FractionsFor returns the partition shares for clips like c.
func FractionsFor(c Clip) Fractions {
	if c.Corpus == "fsd50k" && c.Subset == "eval" {
		return evalFractions
	}
	if f, ok := corpusFractions[c.Corpus]; ok {
		return f
	}
	return defaultFractions
}

// CanonicalSplit maps a split name onto the partition. ok is false for names
// outside it; those splits draw from the whole inventory.
func CanonicalSplit(name string) (string, bool) {
	switch Canonical(name) {
	case "train":
		return SplitTrain, true
	case "val", "valid", "validation":
		return SplitVal, true
	case "test":
		return SplitTest, true
	}
	return "", false
}

type splitGroup struct {
	corpus   string
	kind     Kind
	category string
	subset   string
}

type rankedClip struct {
	id   string
	hash uint64
}

// AssignSplits maps every clip ID to train, val or test. Clips are grouped by
// corpus, kind, category and subset. Each group is ordered by a hash of the
// clip ID and cut at its fractions, so a clip's split does not depend on the
// seed, on listing order, or on which other corpora are loaded.
func AssignSplits(clips []Clip) map[string]string {
	groups := make(map[splitGroup][]rankedClip)
	fractions := make(map[splitGroup]Fractions)
	for _, c := range clips {
		key := splitGroup{corpus: c.Corpus, kind: c.Kind, category: c.Category, subset: c.Subset}
		groups[key] = append(groups[key], rankedClip{id: c.ID, hash: splitHash(c.ID)})
		fractions[key] = FractionsFor(c)
	}

	out := make(map[string]string, len(clips))
	for key, members := range groups {
		slices.SortFunc(members, func(a, b rankedClip) int {
			if c := cmp.Compare(a.hash, b.hash); c != 0 {
				return c
			}
			return cmp.Compare(a.id, b.id)
		})
		f := fractions[key]
		n := float64(len(members))
		train := int(math.Round(n * f.Train))
		val := int(math.Round(n*(f.Train+f.Val))) - train
		for i, m := range members {
			switch {
			case i < train:
				out[m.id] = SplitTrain
			case i < train+val:
				out[m.id] = SplitVal
			default:
				out[m.id] = SplitTest
			}
		}
	}
	return out
}

func splitHash(id string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte("split/"))
	_, _ = h.Write([]byte(id))
	return h.Sum64()
}
