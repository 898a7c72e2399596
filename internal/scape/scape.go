package scape

import (
	"context"

	"altsignal/internal/model"
)

type Fitness float64

type Trace map[string]any

// Scape scores one genome. Implementations must not share mutable state
// between calls so evaluations can run in parallel.
type Scape interface {
	Name() string
	Evaluate(ctx context.Context, genome model.Genome) (Fitness, Trace, error)
}

// BoundedScape optionally exposes the best attainable fitness.
type BoundedScape interface {
	Scape
	MaxFitness() Fitness
}
