package stats

import (
	"altsignal/internal/genotype"
	"altsignal/internal/model"
)

// Summarize reduces one evaluated generation. The best organism is the
// lowest index among those with the highest fitness; Solution is set when
// maxScore is positive and reached.
func Summarize(generation int, scored []model.ScoredGenome, maxScore float64) model.GenerationSummary {
	summary := model.GenerationSummary{Generation: generation}
	if len(scored) == 0 {
		return summary
	}

	total := 0.0
	functions := 0
	instructions := 0
	best := 0
	minFitness := scored[0].Fitness
	fingerprints := make(map[string]struct{}, len(scored))
	for i, item := range scored {
		total += item.Fitness
		if item.Fitness > scored[best].Fitness {
			best = i
		}
		if item.Fitness < minFitness {
			minFitness = item.Fitness
		}
		functions += len(item.Genome.Functions)
		instructions += item.Genome.InstructionCount()
		fingerprints[genotype.ComputeGenomeSignature(item.Genome).Fingerprint] = struct{}{}
	}

	n := float64(len(scored))
	summary.BestFitness = scored[best].Fitness
	summary.MeanFitness = total / n
	summary.MinFitness = minFitness
	summary.BestIndex = best
	summary.BestFunctionCount = len(scored[best].Genome.Functions)
	summary.BestInstructionCount = scored[best].Genome.InstructionCount()
	summary.MeanFunctionCount = float64(functions) / n
	summary.MeanInstructionCount = float64(instructions) / n
	summary.FingerprintDiversity = len(fingerprints)
	summary.Solution = maxScore > 0 && summary.BestFitness >= maxScore
	return summary
}
