package genotype

import "altsignal/internal/model"

// CloneGenome deep copies g so the copy shares no instruction slices.
func CloneGenome(g model.Genome) model.Genome {
	out := g
	out.Functions = CloneFunctions(g.Functions)
	return out
}

// CloneGenomeWithID clones g and assigns a new ID when id is non-empty.
func CloneGenomeWithID(g model.Genome, id string) model.Genome {
	out := CloneGenome(g)
	if id != "" {
		out.ID = id
	}
	return out
}

func CloneFunctions(functions []model.Function) []model.Function {
	if functions == nil {
		return nil
	}
	out := make([]model.Function, len(functions))
	for i, fn := range functions {
		out[i] = CloneFunction(fn)
	}
	return out
}

func CloneFunction(fn model.Function) model.Function {
	out := fn
	out.Instructions = append([]model.Instruction(nil), fn.Instructions...)
	return out
}
