package evo

import (
	"altsignal/internal/genotype"
	"altsignal/internal/model"
)

type ProgramSummary = genotype.ProgramSummary

type GenomeSignature = genotype.GenomeSignature

func ComputeGenomeSignature(genome model.Genome) GenomeSignature {
	return genotype.ComputeGenomeSignature(genome)
}
