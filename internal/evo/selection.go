package evo

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
)

var ErrEmptyPopulation = errors.New("empty population")

// Selector chooses a parent index from a population's fitness vector.
type Selector interface {
	Name() string
	Select(rng *rand.Rand, fitness []float64) (int, error)
}

// TournamentSelector samples TournamentSize indexes with replacement and
// returns the fittest, the lowest index on ties. A tournament at least as
// large as the population returns the global best directly.
type TournamentSelector struct {
	TournamentSize int
}

func (TournamentSelector) Name() string {
	return "tournament"
}

func (s TournamentSelector) Select(rng *rand.Rand, fitness []float64) (int, error) {
	if rng == nil {
		return 0, fmt.Errorf("random source is required")
	}
	if len(fitness) == 0 {
		return 0, ErrEmptyPopulation
	}
	if s.TournamentSize <= 0 {
		return 0, fmt.Errorf("tournament size must be > 0, got %d", s.TournamentSize)
	}
	if s.TournamentSize >= len(fitness) {
		return argmax(fitness), nil
	}

	best := rng.Intn(len(fitness))
	for i := 1; i < s.TournamentSize; i++ {
		candidate := rng.Intn(len(fitness))
		if fitter(fitness, candidate, best) {
			best = candidate
		}
	}
	return best, nil
}

// EliteSelector picks uniformly among the Count fittest organisms.
type EliteSelector struct {
	Count int
}

func (EliteSelector) Name() string {
	return "elite"
}

func (s EliteSelector) Select(rng *rand.Rand, fitness []float64) (int, error) {
	if rng == nil {
		return 0, fmt.Errorf("random source is required")
	}
	if len(fitness) == 0 {
		return 0, ErrEmptyPopulation
	}
	if s.Count <= 0 {
		return 0, fmt.Errorf("invalid elite count: %d", s.Count)
	}
	elites := EliteIndexes(fitness, s.Count)
	return elites[rng.Intn(len(elites))], nil
}

// EliteIndexes returns the indexes of the n fittest organisms, best first,
// with ties ordered by index.
func EliteIndexes(fitness []float64, n int) []int {
	if n > len(fitness) {
		n = len(fitness)
	}
	if n <= 0 {
		return nil
	}
	order := make([]int, len(fitness))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return fitness[order[i]] > fitness[order[j]]
	})
	return order[:n]
}

func argmax(fitness []float64) int {
	best := 0
	for i := 1; i < len(fitness); i++ {
		if fitness[i] > fitness[best] {
			best = i
		}
	}
	return best
}

// fitter reports whether candidate beats incumbent.
func fitter(fitness []float64, candidate, incumbent int) bool {
	if fitness[candidate] != fitness[incumbent] {
		return fitness[candidate] > fitness[incumbent]
	}
	return candidate < incumbent
}
