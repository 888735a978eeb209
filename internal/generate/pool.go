package generate

import (
	"math/rand/v2"
	"slices"

	"misophonia/internal/source"
)

// pool deals clips in a seeded order without replacement, or uniformly with
// replacement once replace is set.
type pool struct {
	name    string
	clips   []source.Clip
	next    int
	replace bool
}

func newPool(name string, clips []source.Clip, rng *rand.Rand) *pool {
	p := &pool{name: name, clips: slices.Clone(clips)}
	rng.Shuffle(len(p.clips), func(i, j int) { p.clips[i], p.clips[j] = p.clips[j], p.clips[i] })
	return p
}

func (p *pool) remaining() int {
	if p.replace && len(p.clips) > 0 {
		return int(^uint(0) >> 1)
	}
	return len(p.clips) - p.next
}

func (p *pool) take(rng *rand.Rand) (source.Clip, bool) {
	if p.replace {
		if len(p.clips) == 0 {
			return source.Clip{}, false
		}
		return p.clips[rng.IntN(len(p.clips))], true
	}
	if p.next >= len(p.clips) {
		return source.Clip{}, false
	}
	c := p.clips[p.next]
	p.next++
	return c, true
}
