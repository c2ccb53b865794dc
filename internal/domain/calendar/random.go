package calendar

import (
	"fmt"
	"hash/fnv"
	"math/rand/v2"
)

// RandomSource is the only randomness the calendar consumes.
type RandomSource interface {
	Float64() float64
}

// SeededSource returns a deterministic PCG generator for seed.
func SeededSource(seed int64) *rand.Rand {
	// Non-cryptographic PRNG is intentional for deterministic simulation behavior.
	// #nosec G404
	return rand.New(rand.NewPCG(seedWord(seed, "weather-a"), seedWord(seed, "weather-b")))
}

func seedWord(seed int64, salt string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(fmt.Sprintf("%d:%s", seed, salt)))
	return h.Sum64()
}
