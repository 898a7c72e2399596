package genotype

import (
	"fmt"
	"math/rand"
	"time"
)

const (
	SchemaVersion = 1
	CodecVersion  = 1
)

// RandomElement picks one value uniformly, seeding a time-based source when
// rng is nil.
func RandomElement[T any](rng *rand.Rand, values []T) (T, error) {
	var zero T
	if len(values) == 0 {
		return zero, fmt.Errorf("values are required")
	}
	return values[ensureRNG(rng).Intn(len(values))], nil
}

func ensureRNG(rng *rand.Rand) *rand.Rand {
	if rng != nil {
		return rng
	}
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}
