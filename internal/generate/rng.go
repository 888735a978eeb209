package generate

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math/rand/v2"
)

// newRNG derives an independent PCG stream from (seed, split, label).
func newRNG(seed int64, split, label string) *rand.Rand {
	sum := sha256.Sum256(fmt.Appendf(nil, "%d\x00%s\x00%s", seed, split, label))
	return rand.New(rand.NewPCG(binary.LittleEndian.Uint64(sum[:8]), binary.LittleEndian.Uint64(sum[8:16])))
}

func itemRNG(seed int64, split string, index int) *rand.Rand {
	return newRNG(seed, split, fmt.Sprintf("item/%d", index))
}

func uniform(rng *rand.Rand, bounds []float64) float64 {
	if len(bounds) < 2 || bounds[1] <= bounds[0] {
		if len(bounds) > 0 {
			return bounds[0]
		}
		return 0
	}
	return bounds[0] + (bounds[1]-bounds[0])*rng.Float64()
}
