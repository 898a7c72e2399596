package evo

import (
	"math/rand"

	"altsignal/internal/genotype"
)

// Operator rewrites the genome held by store in place and returns how many
// mutations it applied. Operators never violate the store's bounds.
type Operator interface {
	Name() string
	Apply(rng *rand.Rand, store *genotype.Store) int
}
