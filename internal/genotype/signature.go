package genotype

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"

	"altsignal/internal/model"
)

type ProgramSummary struct {
	TotalFunctions    int            `json:"total_functions"`
	TotalInstructions int            `json:"total_instructions"`
	OpDistribution    map[string]int `json:"op_distribution"`
}

type GenomeSignature struct {
	Fingerprint string         `json:"fingerprint"`
	Summary     ProgramSummary `json:"summary"`
}

// ComputeGenomeSignature hashes the full program text (tags, ops and args in
// order) so two genomes share a fingerprint only when they are identical
// programs, ignoring ID.
func ComputeGenomeSignature(genome model.Genome) GenomeSignature {
	opDist := make(map[string]int)
	parts := make([]string, 0, len(genome.Functions)+1)
	for _, fn := range genome.Functions {
		var b strings.Builder
		b.WriteString("f:")
		b.WriteString(fn.Tag.String())
		for _, inst := range fn.Instructions {
			opDist[inst.Op]++
			fmt.Fprintf(&b, ";%s(%d,%d,%d)%s", inst.Op, inst.Args[0], inst.Args[1], inst.Args[2], inst.Tag.String())
		}
		parts = append(parts, b.String())
	}

	summary := ProgramSummary{
		TotalFunctions:    len(genome.Functions),
		TotalInstructions: genome.InstructionCount(),
		OpDistribution:    opDist,
	}

	parts = append(parts, fmt.Sprintf("fn=%d inst=%d", summary.TotalFunctions, summary.TotalInstructions))

	digest := sha1.Sum([]byte(strings.Join(parts, "|")))
	return GenomeSignature{
		Fingerprint: hex.EncodeToString(digest[:8]),
		Summary:     summary,
	}
}
