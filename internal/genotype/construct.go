package genotype

import (
	"fmt"
	"math/rand"

	"altsignal/internal/model"
	"altsignal/internal/tag"
)

// Generator draws fresh instructions from an instruction set. Ops are drawn
// uniformly unless Weights (one per op) is set, args uniformly from
// [0, ArgRange) and tags uniformly.
type Generator struct {
	Ops      []string
	Weights  []float64
	ArgRange int
}

func (g Generator) Validate() error {
	if len(g.Ops) == 0 {
		return fmt.Errorf("instruction set is empty")
	}
	if g.ArgRange <= 0 {
		return fmt.Errorf("arg range must be > 0")
	}
	if len(g.Weights) == 0 {
		return nil
	}
	if len(g.Weights) != len(g.Ops) {
		return fmt.Errorf("instruction weights mismatch: got=%d want=%d", len(g.Weights), len(g.Ops))
	}
	total := 0.0
	for i, w := range g.Weights {
		if w < 0 {
			return fmt.Errorf("instruction weight must be >= 0 for %s", g.Ops[i])
		}
		total += w
	}
	if total <= 0 {
		return fmt.Errorf("instruction weights require at least one positive value")
	}
	return nil
}

func (g Generator) RandomOp(rng *rand.Rand) string {
	rng = ensureRNG(rng)
	if len(g.Ops) == 0 {
		return ""
	}
	if len(g.Weights) != len(g.Ops) {
		op, _ := RandomElement(rng, g.Ops)
		return op
	}
	total := 0.0
	for _, w := range g.Weights {
		if w > 0 {
			total += w
		}
	}
	if total <= 0 {
		op, _ := RandomElement(rng, g.Ops)
		return op
	}
	pick := rng.Float64() * total
	for i, w := range g.Weights {
		if w <= 0 {
			continue
		}
		pick -= w
		if pick < 0 {
			return g.Ops[i]
		}
	}
	return g.Ops[len(g.Ops)-1]
}

func (g Generator) RandomArg(rng *rand.Rand) int {
	rng = ensureRNG(rng)
	if g.ArgRange <= 0 {
		return 0
	}
	return rng.Intn(g.ArgRange)
}

func (g Generator) RandomInstruction(rng *rand.Rand) model.Instruction {
	rng = ensureRNG(rng)
	inst := model.Instruction{Op: g.RandomOp(rng)}
	for i := range inst.Args {
		inst.Args[i] = g.RandomArg(rng)
	}
	inst.Tag = tag.Random(rng)
	return inst
}

func (g Generator) RandomFunction(rng *rand.Rand, length int) model.Function {
	rng = ensureRNG(rng)
	fn := model.Function{
		Tag:          tag.Random(rng),
		Instructions: make([]model.Instruction, 0, length),
	}
	for i := 0; i < length; i++ {
		fn.Instructions = append(fn.Instructions, g.RandomInstruction(rng))
	}
	return fn
}

// RandomGenome draws a function count uniformly within bounds and, for every
// function, a length uniformly within the instruction bounds.
func (g Generator) RandomGenome(rng *rand.Rand, bounds Bounds, id string) (model.Genome, error) {
	if err := bounds.Validate(); err != nil {
		return model.Genome{}, err
	}
	if err := g.Validate(); err != nil {
		return model.Genome{}, err
	}
	rng = ensureRNG(rng)

	functionCount := uniformInRange(rng, bounds.MinFuncCount, bounds.MaxFuncCount)
	genome := model.Genome{
		VersionedRecord: model.VersionedRecord{SchemaVersion: SchemaVersion, CodecVersion: CodecVersion},
		ID:              id,
		Functions:       make([]model.Function, 0, functionCount),
	}
	for i := 0; i < functionCount; i++ {
		length := uniformInRange(rng, bounds.MinFuncInstCount, bounds.MaxFuncInstCount)
		genome.Functions = append(genome.Functions, g.RandomFunction(rng, length))
	}
	return genome, nil
}

// RandomPopulation builds size random genomes with IDs prefix-0..prefix-(size-1).
func (g Generator) RandomPopulation(rng *rand.Rand, bounds Bounds, size int, prefix string) ([]model.Genome, error) {
	if size <= 0 {
		return nil, fmt.Errorf("population size must be > 0")
	}
	population := make([]model.Genome, 0, size)
	for i := 0; i < size; i++ {
		genome, err := g.RandomGenome(rng, bounds, fmt.Sprintf("%s-%d", prefix, i))
		if err != nil {
			return nil, err
		}
		population = append(population, genome)
	}
	return population, nil
}

func uniformInRange(rng *rand.Rand, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + rng.Intn(hi-lo+1)
}
