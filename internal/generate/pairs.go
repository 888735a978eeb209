package generate

import (
	"context"
	"fmt"
	"math/rand/v2"

	"misophonia/internal/hrtf"
	"misophonia/internal/pipeline"
	"misophonia/internal/source"
)

// buildPairs appends PairsPerCategory matched pairs per trigger category and
// the shared anchor pair, numbering items from start.
func (g *Generator) buildPairs(ctx context.Context, req Request, start int, p pools) ([]MixSpec, error) {
	var out []MixSpec
	index := start
	for _, cat := range p.categories {
		for n := range g.opts.PairsPerCategory {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			rng := newRNG(req.Seed, req.Split, fmt.Sprintf("pair/%s/%d", cat, n))
			trig, ok := p.triggers[cat].take(rng)
			if !ok {
				return nil, fmt.Errorf("pair %s/%d: trigger pool drained: %w", cat, n, pipeline.ErrInsufficientSourceData)
			}
			ctrl, ok := p.controls.take(rng)
			if !ok {
				return nil, fmt.Errorf("pair %s/%d: control pool drained: %w", cat, n, pipeline.ErrInsufficientSourceData)
			}
			layout := g.randomLayout(rng, p.backgrounds, trig, ctrl)
			a, b := g.pair(req, index, pairID(req.Split, req.Seed, cat, n), trig, ctrl, layout)
			out = append(out, a, b)
			index += 2
		}
	}

	anchor, err := g.anchor(req, index)
	if err != nil {
		return nil, err
	}
	return append(out, anchor...), nil
}

// pairLayout is everything the two members of a pair share.
type pairLayout struct {
	background source.Clip
	bgDir      hrtf.Direction
	bgGain     float64
	fgDir      hrtf.Direction
	fgGain     float64
	onset      int
}

func (g *Generator) randomLayout(rng *rand.Rand, backgrounds []source.Clip, trig, ctrl source.Clip) pairLayout {
	l := pairLayout{background: backgrounds[rng.IntN(len(backgrounds))]}
	l.bgDir = g.direction(rng)
	l.bgGain = uniform(rng, g.opts.BackgroundGainDB)
	l.fgDir = g.direction(rng)
	l.fgGain = uniform(rng, g.opts.ForegroundGainDB)
	frames := max(trig.Frames(g.opts.SampleRate), ctrl.Frames(g.opts.SampleRate))
	l.onset = g.onset(rng, frames)
	return l
}

func (g *Generator) pair(req Request, index int, id string, trig, ctrl source.Clip, l pairLayout) (MixSpec, MixSpec) {
	base := func(i int, fg source.Clip) MixSpec {
		return MixSpec{
			ID:         itemID(req.Split, req.Seed, i),
			Index:      i,
			Split:      req.Split,
			Seed:       req.Seed,
			SampleRate: g.opts.SampleRate,
			Length:     g.opts.Length,
			Background: g.place(l.background, l.bgDir, 0, l.bgGain),
			Foreground: []Placement{g.place(fg, l.fgDir, l.onset, l.fgGain)},
			Categories: []string{},
			IsFOAMS:    trig.Corpus == "foams",
			PairID:     id,
		}
	}
	a := base(index, trig)
	a.IsTrigger = true
	a.Categories = []string{trig.Category}
	a.PairMask = MaskTrigger
	b := base(index+1, ctrl)
	b.PairMask = MaskControl
	return a, b
}

// anchor builds the pair every dataset shares: the lowest-ID trigger and
// control over the lowest-ID background, front and centre at mid-range gains.
// It always draws from the whole inventory, never from a split's partition.
func (g *Generator) anchor(req Request, index int) ([]MixSpec, error) {
	all := g.all
	var trig source.Clip
	for _, cat := range all.categories {
		if c := all.triggers[cat][0]; trig.ID == "" || c.ID < trig.ID {
			trig = c
		}
	}
	if trig.ID == "" || len(all.controls) == 0 {
		return nil, &pipeline.InsufficientSourceDataError{Category: "anchor", Need: 1, Have: 0}
	}
	l := pairLayout{
		background: all.backgrounds[0],
		bgDir:      g.opts.Directions[0],
		bgGain:     midpoint(g.opts.BackgroundGainDB),
		fgDir:      g.opts.Directions[0],
		fgGain:     midpoint(g.opts.ForegroundGainDB),
	}
	a, b := g.pair(req, index, anchorPairID, trig, all.controls[0], l)
	a.IsAnchor, b.IsAnchor = true, true
	return []MixSpec{a, b}, nil
}

func midpoint(bounds []float64) float64 {
	switch len(bounds) {
	case 0:
		return 0
	case 1:
		return bounds[0]
	}
	return (bounds[0] + bounds[1]) / 2
}
