package model

import "altsignal/internal/tag"

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// Instruction is one SignalGP operation. Op names an entry of the
// instruction library; Tag is the dispatch target of call-type operations.
type Instruction struct {
	Op   string  `json:"op"`
	Args [3]int  `json:"args"`
	Tag  tag.Tag `json:"tag"`
}

// Function is a tag-addressed instruction sequence.
type Function struct {
	Tag          tag.Tag       `json:"tag"`
	Instructions []Instruction `json:"instructions"`
}

// Genome is the program owned by one organism.
type Genome struct {
	VersionedRecord
	ID        string     `json:"id"`
	Functions []Function `json:"functions"`
}

// InstructionCount sums the instructions of every function.
func (g Genome) InstructionCount() int {
	total := 0
	for _, fn := range g.Functions {
		total += len(fn.Instructions)
	}
	return total
}

type Parameter struct {
	Group string `json:"group"`
	Name  string `json:"name"`
	Value string `json:"value"`
}

// TimestampLayout is the fixed-width UTC layout of RunRecord.CreatedAtUTC.
// Unlike time.RFC3339Nano it keeps trailing zeros, so text order matches
// time order.
const TimestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

type RunRecord struct {
	VersionedRecord
	RunID            string      `json:"run_id"`
	CreatedAtUTC     string      `json:"created_at_utc"`
	Seed             int64       `json:"seed"`
	PopulationSize   int         `json:"population_size"`
	Generations      int         `json:"generations"`
	MaxScore         float64     `json:"max_score"`
	FinalBestFitness float64     `json:"final_best_fitness"`
	Solved           bool        `json:"solved"`
	SolvedGeneration int         `json:"solved_generation"`
	ChampionID       string      `json:"champion_id,omitempty"`
	Parameters       []Parameter `json:"parameters"`
}

type GenerationSummary struct {
	Generation           int     `json:"generation"`
	BestFitness          float64 `json:"best_fitness"`
	MeanFitness          float64 `json:"mean_fitness"`
	MinFitness           float64 `json:"min_fitness"`
	BestIndex            int     `json:"best_index"`
	BestFunctionCount    int     `json:"best_function_count"`
	BestInstructionCount int     `json:"best_instruction_count"`
	MeanFunctionCount    float64 `json:"mean_function_count"`
	MeanInstructionCount float64 `json:"mean_instruction_count"`
	FingerprintDiversity int     `json:"fingerprint_diversity"`
	Solution             bool    `json:"solution"`
}

type ScoredGenome struct {
	Genome  Genome  `json:"genome"`
	Fitness float64 `json:"fitness"`
}

type PopulationSnapshot struct {
	VersionedRecord
	RunID      string         `json:"run_id"`
	Generation int            `json:"generation"`
	Organisms  []ScoredGenome `json:"organisms"`
}
