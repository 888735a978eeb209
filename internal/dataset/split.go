package dataset

import (
	"iter"

	"misophonia/internal/generate"
)

// Split is an ordered, named collection of items.
type Split struct {
	dataset string
	name    string
	seed    int64
	items   []*Item
}

func newSplit(dataset, name string, seed int64, items []*Item) *Split {
	return &Split{dataset: dataset, name: name, seed: seed, items: items}
}

// Dataset returns the name of the dataset the split belongs to.
func (s *Split) Dataset() string { return s.dataset }

// Name returns the split name, e.g. "train".
func (s *Split) Name() string { return s.name }

// Seed returns the seed the split was generated with.
func (s *Split) Seed() int64 { return s.seed }

// Len returns the number of items.
func (s *Split) Len() int { return len(s.items) }

// Item returns the item at index i.
func (s *Split) Item(i int) *Item { return s.items[i] }

// Items iterates the items in order. The sequence may be ranged over again.
func (s *Split) Items() iter.Seq2[int, *Item] {
	return func(yield func(int, *Item) bool) {
		for i, it := range s.items {
			if !yield(i, it) {
				return
			}
		}
	}
}

// Specs returns the recipes of every item in order.
func (s *Split) Specs() []generate.MixSpec {
	out := make([]generate.MixSpec, len(s.items))
	for i, it := range s.items {
		out[i] = it.spec
	}
	return out
}

// Summary counts the composition of the split.
func (s *Split) Summary() generate.Summary {
	return generate.Summarize(s.Specs())
}
