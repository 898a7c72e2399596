package evo

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"

	"github.com/sourcegraph/conc/pool"

	"altsignal/internal/genotype"
	"altsignal/internal/model"
	"altsignal/internal/scape"
	"altsignal/internal/stats"
)

// Sink receives generation summaries and population snapshots as a run
// progresses.
type Sink interface {
	RecordSummary(ctx context.Context, summary model.GenerationSummary) error
	RecordSnapshot(ctx context.Context, snapshot model.PopulationSnapshot) error
}

type RunResult struct {
	BestByGeneration []float64
	Summaries        []model.GenerationSummary
	FinalPopulation  []model.ScoredGenome
	Champion         model.ScoredGenome
	// SolvedGeneration is the first generation whose best organism reached
	// MaxScore, or 0.
	SolvedGeneration int
}

func (r RunResult) Solved() bool {
	return r.SolvedGeneration > 0
}

type MonitorConfig struct {
	RunID              string
	Scape              scape.Scape
	Mutator            Operator
	Selector           Selector
	Bounds             genotype.Bounds
	PopulationSize     int
	EliteCount         int
	Generations        int
	Workers            int
	Seed               int64
	SummaryResolution  int
	SnapshotResolution int
	MaxScore           float64
	StopOnSolution     bool
	Sink               Sink
	Logger             *slog.Logger
	Progress           io.Writer
}

type PopulationMonitor struct {
	cfg MonitorConfig
	rng *rand.Rand
}

func NewPopulationMonitor(cfg MonitorConfig) (*PopulationMonitor, error) {
	if cfg.Scape == nil {
		return nil, fmt.Errorf("scape is required")
	}
	if cfg.Mutator == nil {
		return nil, fmt.Errorf("mutation operator is required")
	}
	if cfg.Selector == nil {
		return nil, fmt.Errorf("selector is required")
	}
	if err := cfg.Bounds.Validate(); err != nil {
		return nil, err
	}
	if cfg.PopulationSize <= 0 {
		return nil, fmt.Errorf("population size must be > 0")
	}
	if cfg.EliteCount < 0 || cfg.EliteCount > cfg.PopulationSize {
		return nil, fmt.Errorf("elite count must be in [0, population size]")
	}
	if cfg.Generations <= 0 {
		return nil, fmt.Errorf("generations must be > 0")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.SummaryResolution < 0 || cfg.SnapshotResolution < 0 {
		return nil, fmt.Errorf("summary and snapshot resolution must be >= 0")
	}
	if cfg.MaxScore <= 0 {
		if bounded, ok := cfg.Scape.(scape.BoundedScape); ok {
			cfg.MaxScore = float64(bounded.MaxFitness())
		}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &PopulationMonitor{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}, nil
}

// Run evolves initial for the configured number of generations, numbered
// from 1. With StopOnSolution the run ends after the first generation that
// reaches MaxScore. Evaluation runs on up to Workers goroutines; selection
// and mutation draw from the monitor RNG in a fixed order, so a seed yields
// the same run for any worker count.
func (m *PopulationMonitor) Run(ctx context.Context, initial []model.Genome) (RunResult, error) {
	if len(initial) != m.cfg.PopulationSize {
		return RunResult{}, fmt.Errorf("initial population mismatch: got=%d want=%d", len(initial), m.cfg.PopulationSize)
	}

	population := make([]model.Genome, len(initial))
	for i, genome := range initial {
		population[i] = genotype.CloneGenome(genome)
	}

	result := RunResult{BestByGeneration: make([]float64, 0, m.cfg.Generations)}
	haveChampion := false

	for gen := 1; gen <= m.cfg.Generations; gen++ {
		if err := ctx.Err(); err != nil {
			return RunResult{}, err
		}

		scored, err := m.evaluatePopulation(ctx, population)
		if err != nil {
			return RunResult{}, err
		}

		summary := stats.Summarize(gen, scored, m.cfg.MaxScore)
		result.BestByGeneration = append(result.BestByGeneration, summary.BestFitness)
		best := scored[summary.BestIndex]
		if !haveChampion || best.Fitness > result.Champion.Fitness {
			result.Champion = model.ScoredGenome{Genome: genotype.CloneGenome(best.Genome), Fitness: best.Fitness}
			haveChampion = true
		}
		solvedNow := summary.Solution && !result.Solved()
		if solvedNow {
			result.SolvedGeneration = gen
			m.cfg.Logger.Info("solution found",
				"generation", gen,
				"genome_id", best.Genome.ID,
				"fingerprint", ComputeGenomeSignature(best.Genome).Fingerprint,
			)
		}

		last := gen == m.cfg.Generations || (solvedNow && m.cfg.StopOnSolution)
		if onResolution(gen, m.cfg.SummaryResolution, last) {
			if err := m.recordSummary(ctx, summary); err != nil {
				return RunResult{}, err
			}
			result.Summaries = append(result.Summaries, summary)
		}
		if onResolution(gen, m.cfg.SnapshotResolution, last) {
			if err := m.recordSnapshot(ctx, gen, scored); err != nil {
				return RunResult{}, err
			}
		}

		result.FinalPopulation = scored
		if last {
			break
		}
		population, err = m.nextGeneration(ctx, scored, gen)
		if err != nil {
			return RunResult{}, err
		}
	}

	return result, nil
}

// onResolution reports whether generation gen falls on a resolution
// boundary. The final generation always does; a zero resolution means only
// the final one.
func onResolution(gen, resolution int, last bool) bool {
	if last {
		return true
	}
	return resolution > 0 && gen%resolution == 0
}

func (m *PopulationMonitor) recordSummary(ctx context.Context, summary model.GenerationSummary) error {
	m.cfg.Logger.Info("generation",
		"run_id", m.cfg.RunID,
		"generation", summary.Generation,
		"best", summary.BestFitness,
		"mean", summary.MeanFitness,
		"min", summary.MinFitness,
		"diversity", summary.FingerprintDiversity,
		"solution", summary.Solution,
	)
	if m.cfg.Progress != nil {
		if _, err := fmt.Fprintln(m.cfg.Progress, stats.FormatUpdateLine(summary, m.cfg.MaxScore)); err != nil {
			return fmt.Errorf("write progress: %w", err)
		}
	}
	if m.cfg.Sink == nil {
		return nil
	}
	if err := m.cfg.Sink.RecordSummary(ctx, summary); err != nil {
		return fmt.Errorf("record summary %d: %w", summary.Generation, err)
	}
	return nil
}

func (m *PopulationMonitor) recordSnapshot(ctx context.Context, gen int, scored []model.ScoredGenome) error {
	if m.cfg.Sink == nil {
		return nil
	}
	snapshot := model.PopulationSnapshot{
		VersionedRecord: model.VersionedRecord{
			SchemaVersion: genotype.SchemaVersion,
			CodecVersion:  genotype.CodecVersion,
		},
		RunID:      m.cfg.RunID,
		Generation: gen,
		Organisms:  make([]model.ScoredGenome, len(scored)),
	}
	for i, item := range scored {
		snapshot.Organisms[i] = model.ScoredGenome{Genome: genotype.CloneGenome(item.Genome), Fitness: item.Fitness}
	}
	if err := m.cfg.Sink.RecordSnapshot(ctx, snapshot); err != nil {
		return fmt.Errorf("record snapshot %d: %w", gen, err)
	}
	m.cfg.Logger.Debug("snapshot", "run_id", m.cfg.RunID, "generation", gen, "organisms", len(scored))
	return nil
}

func (m *PopulationMonitor) evaluatePopulation(ctx context.Context, population []model.Genome) ([]model.ScoredGenome, error) {
	scored := make([]model.ScoredGenome, len(population))

	workers := m.cfg.Workers
	if workers > len(population) {
		workers = len(population)
	}
	p := pool.New().WithMaxGoroutines(workers).WithContext(ctx).WithCancelOnError()
	for i := range population {
		idx := i
		p.Go(func(ctx context.Context) error {
			genome := population[idx]
			fitness, _, err := m.cfg.Scape.Evaluate(ctx, genome)
			if err != nil {
				return fmt.Errorf("evaluate genome %s: %w", genome.ID, err)
			}
			scored[idx] = model.ScoredGenome{Genome: genome, Fitness: float64(fitness)}
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}
	return scored, nil
}

// nextGeneration keeps EliteCount unmutated copies of the best organisms and
// fills the rest with mutated copies of selected parents.
func (m *PopulationMonitor) nextGeneration(ctx context.Context, scored []model.ScoredGenome, generation int) ([]model.Genome, error) {
	fitness := make([]float64, len(scored))
	for i, item := range scored {
		fitness[i] = item.Fitness
	}

	next := make([]model.Genome, 0, m.cfg.PopulationSize)
	for _, idx := range EliteIndexes(fitness, m.cfg.EliteCount) {
		next = append(next, genotype.CloneGenome(scored[idx].Genome))
	}

	mutations := 0
	for len(next) < m.cfg.PopulationSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		parentIdx, err := m.cfg.Selector.Select(m.rng, fitness)
		if err != nil {
			return nil, fmt.Errorf("select parent: %w", err)
		}
		parent := scored[parentIdx].Genome
		child := genotype.CloneGenomeWithID(parent, fmt.Sprintf("%s-g%d-i%d", m.idPrefix(), generation+1, len(next)))
		store, err := genotype.NewStore(&child, m.cfg.Bounds)
		if err != nil {
			return nil, err
		}
		mutations += m.cfg.Mutator.Apply(m.rng, store)
		next = append(next, child)
	}
	m.cfg.Logger.Debug("offspring",
		"generation", generation+1,
		"elites", m.cfg.EliteCount,
		"mutations", mutations,
	)
	return next, nil
}

func (m *PopulationMonitor) idPrefix() string {
	if m.cfg.RunID == "" {
		return "org"
	}
	return m.cfg.RunID
}
