package evo

import (
	"errors"
	"fmt"
	"math/rand"

	"altsignal/internal/genotype"
	"altsignal/internal/model"
	"altsignal/internal/tag"
)

var ErrInvalidRate = errors.New("invalid mutation rate")

// MutationRates carries the per-site Bernoulli rate of every operator.
type MutationRates struct {
	InstArgSub   float64 `json:"MUT_RATE__INST_ARG_SUB" toml:"MUT_RATE__INST_ARG_SUB"`
	InstArgTagBF float64 `json:"MUT_RATE__INST_TAG_BF" toml:"MUT_RATE__INST_TAG_BF"`
	InstSub      float64 `json:"MUT_RATE__INST_SUB" toml:"MUT_RATE__INST_SUB"`
	InstIns      float64 `json:"MUT_RATE__INST_INS" toml:"MUT_RATE__INST_INS"`
	InstDel      float64 `json:"MUT_RATE__INST_DEL" toml:"MUT_RATE__INST_DEL"`
	SeqSlip      float64 `json:"MUT_RATE__SEQ_SLIP" toml:"MUT_RATE__SEQ_SLIP"`
	FuncDup      float64 `json:"MUT_RATE__FUNC_DUP" toml:"MUT_RATE__FUNC_DUP"`
	FuncDel      float64 `json:"MUT_RATE__FUNC_DEL" toml:"MUT_RATE__FUNC_DEL"`
	FuncTagBF    float64 `json:"MUT_RATE__FUNC_TAG_BF" toml:"MUT_RATE__FUNC_TAG_BF"`
}

func DefaultMutationRates() MutationRates {
	return MutationRates{
		InstArgSub:   0.005,
		InstArgTagBF: 0.0005,
		InstSub:      0.005,
		InstIns:      0.005,
		InstDel:      0.005,
		SeqSlip:      0.005,
		FuncDup:      0.005,
		FuncDel:      0.005,
		FuncTagBF:    0.0005,
	}
}

func (r MutationRates) Validate() error {
	named := []struct {
		name string
		rate float64
	}{
		{"MUT_RATE__INST_ARG_SUB", r.InstArgSub},
		{"MUT_RATE__INST_TAG_BF", r.InstArgTagBF},
		{"MUT_RATE__INST_SUB", r.InstSub},
		{"MUT_RATE__INST_INS", r.InstIns},
		{"MUT_RATE__INST_DEL", r.InstDel},
		{"MUT_RATE__SEQ_SLIP", r.SeqSlip},
		{"MUT_RATE__FUNC_DUP", r.FuncDup},
		{"MUT_RATE__FUNC_DEL", r.FuncDel},
		{"MUT_RATE__FUNC_TAG_BF", r.FuncTagBF},
	}
	for _, item := range named {
		if item.rate < 0 || item.rate > 1 || item.rate != item.rate {
			return fmt.Errorf("%w: %s=%v must be in [0, 1]", ErrInvalidRate, item.name, item.rate)
		}
	}
	return nil
}

func bernoulli(rng *rand.Rand, rate float64) bool {
	return rate > 0 && rng.Float64() < rate
}

// InstArgSub redraws each instruction argument with probability Rate.
type InstArgSub struct {
	Rate      float64
	Generator genotype.Generator
}

func (InstArgSub) Name() string {
	return "inst_arg_sub"
}

func (o InstArgSub) Apply(rng *rand.Rand, store *genotype.Store) int {
	count := 0
	for fn := 0; fn < store.FunctionCount(); fn++ {
		function, _ := store.Function(fn)
		for pos, inst := range function.Instructions {
			changed := false
			for i := range inst.Args {
				if bernoulli(rng, o.Rate) {
					inst.Args[i] = o.Generator.RandomArg(rng)
					changed = true
					count++
				}
			}
			if changed {
				store.ReplaceInstruction(fn, pos, inst)
			}
		}
	}
	return count
}

// InstArgTagBF flips each bit of every instruction tag with probability Rate.
type InstArgTagBF struct {
	Rate float64
}

func (InstArgTagBF) Name() string {
	return "inst_arg_tag_bf"
}

func (o InstArgTagBF) Apply(rng *rand.Rand, store *genotype.Store) int {
	if o.Rate <= 0 {
		return 0
	}
	count := 0
	for fn := 0; fn < store.FunctionCount(); fn++ {
		function, _ := store.Function(fn)
		for pos, inst := range function.Instructions {
			flipped, n := tag.FlipBits(rng, inst.Tag, o.Rate)
			if n == 0 {
				continue
			}
			inst.Tag = flipped
			store.ReplaceInstruction(fn, pos, inst)
			count += n
		}
	}
	return count
}

// InstSub replaces each instruction with a freshly drawn one with
// probability Rate.
type InstSub struct {
	Rate      float64
	Generator genotype.Generator
}

func (InstSub) Name() string {
	return "inst_sub"
}

func (o InstSub) Apply(rng *rand.Rand, store *genotype.Store) int {
	count := 0
	for fn := 0; fn < store.FunctionCount(); fn++ {
		for pos := 0; pos < store.InstructionCount(fn); pos++ {
			if bernoulli(rng, o.Rate) && store.ReplaceInstruction(fn, pos, o.Generator.RandomInstruction(rng)) {
				count++
			}
		}
	}
	return count
}

// InstIns draws an insertion at every gap of every function, skipping the
// draw once the function is at MAX_FUNC_INST_CNT.
type InstIns struct {
	Rate      float64
	Generator genotype.Generator
}

func (InstIns) Name() string {
	return "inst_ins"
}

func (o InstIns) Apply(rng *rand.Rand, store *genotype.Store) int {
	if o.Rate <= 0 {
		return 0
	}
	maxInsts := store.Bounds().MaxFuncInstCount
	count := 0
	for fn := 0; fn < store.FunctionCount(); fn++ {
		function, _ := store.Function(fn)
		current := function.Instructions
		next := make([]model.Instruction, 0, len(current)+1)
		inserted := 0
		for pos := 0; pos <= len(current); pos++ {
			if len(current)+inserted < maxInsts && bernoulli(rng, o.Rate) {
				next = append(next, o.Generator.RandomInstruction(rng))
				inserted++
			}
			if pos < len(current) {
				next = append(next, current[pos])
			}
		}
		if inserted > 0 && store.SetInstructions(fn, next) {
			count += inserted
		}
	}
	return count
}

// InstDel deletes each instruction with probability Rate, skipping the draw
// once the function is at MIN_FUNC_INST_CNT.
type InstDel struct {
	Rate float64
}

func (InstDel) Name() string {
	return "inst_del"
}

func (o InstDel) Apply(rng *rand.Rand, store *genotype.Store) int {
	if o.Rate <= 0 {
		return 0
	}
	minInsts := store.Bounds().MinFuncInstCount
	count := 0
	for fn := 0; fn < store.FunctionCount(); fn++ {
		function, _ := store.Function(fn)
		current := function.Instructions
		next := make([]model.Instruction, 0, len(current))
		deleted := 0
		for _, inst := range current {
			if len(current)-deleted > minInsts && bernoulli(rng, o.Rate) {
				deleted++
				continue
			}
			next = append(next, inst)
		}
		if deleted > 0 && store.SetInstructions(fn, next) {
			count += deleted
		}
	}
	return count
}

// SeqSlip picks two positions per function with probability Rate and either
// duplicates the run between them (begin < end) or deletes it (begin > end).
type SeqSlip struct {
	Rate float64
}

func (SeqSlip) Name() string {
	return "seq_slip"
}

func (o SeqSlip) Apply(rng *rand.Rand, store *genotype.Store) int {
	count := 0
	for fn := 0; fn < store.FunctionCount(); fn++ {
		n := store.InstructionCount(fn)
		if n == 0 || !bernoulli(rng, o.Rate) {
			continue
		}
		begin := rng.Intn(n + 1)
		end := rng.Intn(n + 1)
		switch {
		case begin < end:
			size := end - begin
			if !store.CanInsertInstructions(fn, size) {
				continue
			}
			function, _ := store.Function(fn)
			dup := append([]model.Instruction(nil), function.Instructions[begin:end]...)
			if store.InsertInstructions(fn, end, dup) {
				count++
			}
		case begin > end:
			size := begin - end
			if !store.CanRemoveInstructions(fn, size) {
				continue
			}
			if store.RemoveInstructions(fn, end, size) {
				count++
			}
		}
	}
	return count
}

// FuncDup appends a copy of each function with probability Rate. Copies run
// with neutral regulation since regulation is hardware state.
type FuncDup struct {
	Rate float64
}

func (FuncDup) Name() string {
	return "func_dup"
}

func (o FuncDup) Apply(rng *rand.Rand, store *genotype.Store) int {
	count := 0
	original := store.FunctionCount()
	for fn := 0; fn < original; fn++ {
		if !store.CanInsertFunction() {
			break
		}
		if !bernoulli(rng, o.Rate) {
			continue
		}
		function, _ := store.Function(fn)
		if store.InsertFunction(store.FunctionCount(), genotype.CloneFunction(function)) {
			count++
		}
	}
	return count
}

// FuncDel deletes each function with probability Rate while above
// MIN_FUNC_CNT.
type FuncDel struct {
	Rate float64
}

func (FuncDel) Name() string {
	return "func_del"
}

func (o FuncDel) Apply(rng *rand.Rand, store *genotype.Store) int {
	count := 0
	for fn := store.FunctionCount() - 1; fn >= 0; fn-- {
		if !store.CanRemoveFunction() {
			break
		}
		if bernoulli(rng, o.Rate) && store.RemoveFunction(fn) {
			count++
		}
	}
	return count
}

// FuncTagBF flips each bit of every function tag with probability Rate.
type FuncTagBF struct {
	Rate float64
}

func (FuncTagBF) Name() string {
	return "func_tag_bf"
}

func (o FuncTagBF) Apply(rng *rand.Rand, store *genotype.Store) int {
	if o.Rate <= 0 {
		return 0
	}
	count := 0
	for fn := 0; fn < store.FunctionCount(); fn++ {
		function, _ := store.Function(fn)
		flipped, n := tag.FlipBits(rng, function.Tag, o.Rate)
		if n == 0 {
			continue
		}
		store.SetFunctionTag(fn, flipped)
		count += n
	}
	return count
}

// Mutator applies the full operator suite in a fixed order: function-level
// operators first, then instruction-level ones.
type Mutator struct {
	Rates     MutationRates
	Generator genotype.Generator
}

func (Mutator) Name() string {
	return "signalgp"
}

func (m Mutator) Validate() error {
	if err := m.Rates.Validate(); err != nil {
		return err
	}
	return m.Generator.Validate()
}

func (m Mutator) Operators() []Operator {
	return []Operator{
		SeqSlip{Rate: m.Rates.SeqSlip},
		FuncDup{Rate: m.Rates.FuncDup},
		FuncDel{Rate: m.Rates.FuncDel},
		FuncTagBF{Rate: m.Rates.FuncTagBF},
		InstIns{Rate: m.Rates.InstIns, Generator: m.Generator},
		InstDel{Rate: m.Rates.InstDel},
		InstSub{Rate: m.Rates.InstSub, Generator: m.Generator},
		InstArgSub{Rate: m.Rates.InstArgSub, Generator: m.Generator},
		InstArgTagBF{Rate: m.Rates.InstArgTagBF},
	}
}

func (m Mutator) Apply(rng *rand.Rand, store *genotype.Store) int {
	total := 0
	for _, op := range m.Operators() {
		total += op.Apply(rng, store)
	}
	return total
}

// MutateGenome mutates genome in place under bounds.
func (m Mutator) MutateGenome(rng *rand.Rand, genome *model.Genome, bounds genotype.Bounds) (int, error) {
	if rng == nil {
		return 0, fmt.Errorf("random source is required")
	}
	store, err := genotype.NewStore(genome, bounds)
	if err != nil {
		return 0, err
	}
	return m.Apply(rng, store), nil
}
