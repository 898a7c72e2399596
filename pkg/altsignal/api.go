package altsignal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"altsignal/internal/config"
	"altsignal/internal/evo"
	"altsignal/internal/genotype"
	"altsignal/internal/hardware"
	"altsignal/internal/model"
	"altsignal/internal/scape"
	"altsignal/internal/stats"
	"altsignal/internal/storage"
)

const defaultDSN = "altsignal.db"

type (
	Genome            = model.Genome
	Config            = config.Config
	EnvironmentConfig = scape.EnvironmentConfig
	HardwareConfig    = hardware.Config
	MutationRates     = evo.MutationRates
	Bounds            = genotype.Bounds
	Generator         = genotype.Generator
)

// Evaluate scores genome on the alternating signal task: the number of
// environment cycles answered with the correct response.
func Evaluate(ctx context.Context, genome Genome, env EnvironmentConfig, hw HardwareConfig) (float64, error) {
	fitness, _, err := scape.AltSignal{Env: env, Hardware: hw}.Evaluate(ctx, genome)
	if err != nil {
		return 0, err
	}
	return float64(fitness), nil
}

// Mutate applies the SignalGP mutation suite to genome in place and returns
// the number of applied mutations. Only invalid bounds or rates fail.
func Mutate(rng *rand.Rand, genome *Genome, rates MutationRates, bounds Bounds, gen Generator) (int, error) {
	return evo.Mutator{Rates: rates, Generator: gen}.MutateGenome(rng, genome, bounds)
}

// Select runs one tournament over fitness.
func Select(rng *rand.Rand, fitness []float64, tournamentSize int) (int, error) {
	return evo.TournamentSelector{TournamentSize: tournamentSize}.Select(rng, fitness)
}

// DefaultGenerator draws instructions from the default library for hw.
func DefaultGenerator(hw HardwareConfig) Generator {
	return genotype.Generator{Ops: hardware.DefaultInstLib(hw).Names(), ArgRange: hardware.ArgRange}
}

type Options struct {
	StoreKind string
	DSN       string
	Logger    *slog.Logger
}

type Client struct {
	store  storage.Store
	logger *slog.Logger

	initOnce sync.Once
	initErr  error
}

type RunRequest struct {
	Config Config
	RunID  string
	// Initial replaces the random initial population; its size must match
	// POP_SIZE.
	Initial []Genome
	// Progress additionally receives the run log progress lines.
	Progress io.Writer
}

type RunSummary struct {
	RunID            string
	ArtifactsDir     string
	Seed             int64
	BestByGeneration []float64
	FinalBestFitness float64
	MaxScore         float64
	Solved           bool
	SolvedGeneration int
	Champion         model.ScoredGenome
}

type RunsRequest struct {
	Limit int
}

type FitnessHistoryRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type SummariesRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type SnapshotRequest struct {
	RunID  string
	Latest bool
	// Generation selects a snapshot; 0 means the last one stored.
	Generation int
}

type ChampionRequest struct {
	RunID  string
	Latest bool
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = "memory"
	}
	dsn := opts.DSN
	if dsn == "" && storeKind == "sqlite" {
		dsn = defaultDSN
	}
	store, err := storage.NewStore(storeKind, dsn)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{store: store, logger: logger}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	c.initOnce.Do(func() {
		c.initErr = c.store.Init(ctx)
	})
	return c.initErr
}

// Run evolves one population under req.Config and records the run in the
// store and under OUTPUT_DIR/<start>__SEED_<seed>/.
func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	cfg := req.Config
	if cfg == (config.Config{}) {
		cfg = config.Default()
	}
	start := time.Now().UTC()
	cfg = cfg.Resolve(start)
	if err := cfg.Validate(); err != nil {
		return RunSummary{}, err
	}
	if err := c.Init(ctx); err != nil {
		return RunSummary{}, err
	}

	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	seed := cfg.Default.Seed
	runDir := filepath.Join(cfg.DataCollection.OutputDir, stats.RunDirName(start, seed))
	outDir := filepath.Join(runDir, stats.OutputDir)
	params := cfg.Parameters()
	if err := stats.WriteRunConfig(outDir, params); err != nil {
		return RunSummary{}, fmt.Errorf("write run config: %w", err)
	}

	hwCfg := cfg.HardwareConfig()
	lib := hardware.DefaultInstLib(hwCfg)
	gen := genotype.Generator{Ops: lib.Names(), ArgRange: hardware.ArgRange}
	bounds := cfg.Bounds()
	task := scape.AltSignal{Env: cfg.EnvironmentConfig(), Hardware: hwCfg, Lib: lib}

	initial := req.Initial
	if len(initial) == 0 {
		var err error
		initial, err = gen.RandomPopulation(rand.New(rand.NewSource(seed)), bounds, cfg.Default.PopSize, runID)
		if err != nil {
			return RunSummary{}, err
		}
	}

	record := model.RunRecord{
		VersionedRecord: model.VersionedRecord{SchemaVersion: storage.CurrentSchemaVersion, CodecVersion: storage.CurrentCodecVersion},
		RunID:           runID,
		CreatedAtUTC:    start.Format(model.TimestampLayout),
		Seed:            seed,
		PopulationSize:  cfg.Default.PopSize,
		Generations:     cfg.Default.Generations,
		MaxScore:        float64(task.MaxFitness()),
		Parameters:      params,
	}
	if err := c.store.SaveRun(ctx, record); err != nil {
		return RunSummary{}, fmt.Errorf("save run: %w", err)
	}

	runLog, err := os.Create(filepath.Join(runDir, stats.RunLogFile))
	if err != nil {
		return RunSummary{}, err
	}
	defer runLog.Close()
	var progress io.Writer = runLog
	if req.Progress != nil {
		progress = io.MultiWriter(runLog, req.Progress)
	}

	logger := c.logger.With("run_id", runID, "seed", seed)
	logger.Info("run started", "dir", runDir, "population", cfg.Default.PopSize, "generations", cfg.Default.Generations)

	sink := &runSink{store: c.store, runID: runID, dir: outDir}
	monitor, err := evo.NewPopulationMonitor(evo.MonitorConfig{
		RunID:              runID,
		Scape:              task,
		Mutator:            evo.Mutator{Rates: cfg.Mutation, Generator: gen},
		Selector:           evo.TournamentSelector{TournamentSize: cfg.Selection.TournamentSize},
		Bounds:             bounds,
		PopulationSize:     cfg.Default.PopSize,
		EliteCount:         cfg.Selection.EliteCount,
		Generations:        cfg.Default.Generations,
		Workers:            cfg.Default.Workers,
		Seed:               seed,
		SummaryResolution:  cfg.DataCollection.SummaryResolution,
		SnapshotResolution: cfg.DataCollection.SnapshotResolution,
		StopOnSolution:     cfg.Default.StopOnSolution,
		Sink:               sink,
		Logger:             logger,
		Progress:           progress,
	})
	if err != nil {
		return RunSummary{}, err
	}
	result, err := monitor.Run(ctx, initial)
	if err != nil {
		return RunSummary{}, err
	}

	if err := c.store.SaveFitnessHistory(ctx, runID, result.BestByGeneration); err != nil {
		return RunSummary{}, fmt.Errorf("save fitness history: %w", err)
	}
	if err := c.store.SaveGenome(ctx, result.Champion.Genome); err != nil {
		return RunSummary{}, fmt.Errorf("save champion: %w", err)
	}
	if err := stats.WriteChampion(outDir, result.Champion); err != nil {
		return RunSummary{}, fmt.Errorf("write champion: %w", err)
	}

	finalBest := 0.0
	if n := len(result.BestByGeneration); n > 0 {
		finalBest = result.BestByGeneration[n-1]
	}
	record.FinalBestFitness = finalBest
	record.Solved = result.Solved()
	record.SolvedGeneration = result.SolvedGeneration
	record.ChampionID = result.Champion.Genome.ID
	if err := c.store.SaveRun(ctx, record); err != nil {
		return RunSummary{}, fmt.Errorf("save run: %w", err)
	}
	logger.Info("run finished",
		"final_best", finalBest,
		"solved", record.Solved,
		"solved_generation", record.SolvedGeneration,
		"champion", record.ChampionID,
	)

	return RunSummary{
		RunID:            runID,
		ArtifactsDir:     runDir,
		Seed:             seed,
		BestByGeneration: append([]float64(nil), result.BestByGeneration...),
		FinalBestFitness: finalBest,
		MaxScore:         record.MaxScore,
		Solved:           record.Solved,
		SolvedGeneration: record.SolvedGeneration,
		Champion:         result.Champion,
	}, nil
}

// Runs lists stored runs, newest first.
func (c *Client) Runs(ctx context.Context, req RunsRequest) ([]model.RunRecord, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	if err := c.Init(ctx); err != nil {
		return nil, err
	}
	runs, err := c.store.ListRuns(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.RunRecord, 0, len(runs))
	for i := len(runs) - 1; i >= 0; i-- {
		out = append(out, runs[i])
		if req.Limit > 0 && len(out) == req.Limit {
			break
		}
	}
	return out, nil
}

func (c *Client) FitnessHistory(ctx context.Context, req FitnessHistoryRequest) ([]float64, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	runID, err := c.resolveRunID(ctx, req.RunID, req.Latest, "fitness history")
	if err != nil {
		return nil, err
	}
	history, ok, err := c.store.GetFitnessHistory(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("fitness history not found for run id: %s", runID)
	}
	if req.Limit > 0 && len(history) > req.Limit {
		history = history[:req.Limit]
	}
	return history, nil
}

func (c *Client) Summaries(ctx context.Context, req SummariesRequest) ([]model.GenerationSummary, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	runID, err := c.resolveRunID(ctx, req.RunID, req.Latest, "summaries")
	if err != nil {
		return nil, err
	}
	summaries, ok, err := c.store.GetSummaries(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("summaries not found for run id: %s", runID)
	}
	if req.Limit > 0 && len(summaries) > req.Limit {
		summaries = summaries[:req.Limit]
	}
	return summaries, nil
}

func (c *Client) Snapshot(ctx context.Context, req SnapshotRequest) (model.PopulationSnapshot, error) {
	if req.Generation < 0 {
		return model.PopulationSnapshot{}, errors.New("generation must be >= 0")
	}
	runID, err := c.resolveRunID(ctx, req.RunID, req.Latest, "snapshot")
	if err != nil {
		return model.PopulationSnapshot{}, err
	}
	generation := req.Generation
	if generation == 0 {
		generations, err := c.store.ListSnapshotGenerations(ctx, runID)
		if err != nil {
			return model.PopulationSnapshot{}, err
		}
		if len(generations) == 0 {
			return model.PopulationSnapshot{}, fmt.Errorf("no snapshots for run id: %s", runID)
		}
		generation = generations[len(generations)-1]
	}
	snapshot, ok, err := c.store.GetSnapshot(ctx, runID, generation)
	if err != nil {
		return model.PopulationSnapshot{}, err
	}
	if !ok {
		return model.PopulationSnapshot{}, fmt.Errorf("snapshot not found for run id %s generation %d", runID, generation)
	}
	return snapshot, nil
}

func (c *Client) Champion(ctx context.Context, req ChampionRequest) (Genome, error) {
	runID, err := c.resolveRunID(ctx, req.RunID, req.Latest, "champion")
	if err != nil {
		return Genome{}, err
	}
	run, ok, err := c.store.GetRun(ctx, runID)
	if err != nil {
		return Genome{}, err
	}
	if !ok || run.ChampionID == "" {
		return Genome{}, fmt.Errorf("champion not found for run id: %s", runID)
	}
	genome, ok, err := c.store.GetGenome(ctx, run.ChampionID)
	if err != nil {
		return Genome{}, err
	}
	if !ok {
		return Genome{}, fmt.Errorf("champion genome %s missing for run id: %s", run.ChampionID, runID)
	}
	return genome, nil
}

func (c *Client) resolveRunID(ctx context.Context, runID string, latest bool, what string) (string, error) {
	if runID != "" && latest {
		return "", errors.New("use either run id or latest")
	}
	if err := c.Init(ctx); err != nil {
		return "", err
	}
	if latest {
		runs, err := c.store.ListRuns(ctx)
		if err != nil {
			return "", err
		}
		if len(runs) == 0 {
			return "", errors.New("no runs available")
		}
		return runs[len(runs)-1].RunID, nil
	}
	if runID == "" {
		return "", fmt.Errorf("%s requires run id or latest", what)
	}
	return runID, nil
}

// runSink records monitor output for one run in the store and as files.
type runSink struct {
	store     storage.Store
	runID     string
	dir       string
	summaries []model.GenerationSummary
}

func (s *runSink) RecordSummary(ctx context.Context, summary model.GenerationSummary) error {
	s.summaries = append(s.summaries, summary)
	if err := s.store.SaveSummaries(ctx, s.runID, s.summaries); err != nil {
		return err
	}
	return stats.AppendSummary(s.dir, summary)
}

func (s *runSink) RecordSnapshot(ctx context.Context, snapshot model.PopulationSnapshot) error {
	if err := s.store.SaveSnapshot(ctx, snapshot); err != nil {
		return err
	}
	_, err := stats.WriteSnapshot(s.dir, snapshot)
	return err
}
