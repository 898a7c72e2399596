package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"altsignal/internal/config"
	"altsignal/internal/storage"
	"altsignal/pkg/altsignal"
)

const (
	defaultQueryStore = "sqlite"
	defaultDSN        = "altsignal.db"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "run":
		return runRun(ctx, args[1:])
	case "defaults":
		return runDefaults(ctx, args[1:])
	case "evaluate":
		return runEvaluate(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "fitness":
		return runFitness(ctx, args[1:])
	case "summaries":
		return runSummaries(ctx, args[1:])
	case "snapshot":
		return runSnapshot(ctx, args[1:])
	case "champion":
		return runChampion(ctx, args[1:])
	case "analyze":
		return runAnalyze(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

// overrides collects repeated -set NAME=VALUE flags.
type overrides []string

func (o *overrides) String() string {
	return strings.Join(*o, ",")
}

func (o *overrides) Set(value string) error {
	if !strings.Contains(value, "=") {
		return fmt.Errorf("override %q must look like NAME=VALUE", value)
	}
	*o = append(*o, value)
	return nil
}

func (o overrides) apply(cfg *config.Config) error {
	for _, item := range o {
		name, value, _ := strings.Cut(item, "=")
		if err := cfg.Set(strings.TrimSpace(name), strings.TrimSpace(value)); err != nil {
			return err
		}
	}
	return nil
}

// loadConfig reads the optional config file and layers the overrides on top.
func loadConfig(path string, sets overrides) (config.Config, error) {
	cfg := config.Default()
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}
	if err := sets.apply(&cfg); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func runRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	configPath := fs.String("config", "", "experiment config file (.toml or .json)")
	var sets overrides
	fs.Var(&sets, "set", "override one parameter, NAME=VALUE or GROUP.NAME=VALUE (repeatable)")
	storeKind := fs.String("store", "", "store backend: memory|sqlite|postgres (default from STORE)")
	dsn := fs.String("dsn", "", "store dsn (default from STORE_DSN)")
	runID := fs.String("run-id", "", "explicit run id")
	progress := fs.Bool("progress", false, "echo run log progress lines to stdout")
	logLevel := fs.String("log-level", "info", "log level: debug|info|warn|error")
	jsonOut := fs.Bool("json", false, "emit run summary as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath, sets)
	if err != nil {
		return err
	}
	if *storeKind != "" {
		cfg.DataCollection.Store = *storeKind
	}
	if *dsn != "" {
		cfg.DataCollection.StoreDSN = *dsn
	}
	logger, err := newLogger(os.Stderr, *logLevel)
	if err != nil {
		return err
	}

	client, err := altsignal.New(altsignal.Options{
		StoreKind: cfg.DataCollection.Store,
		DSN:       cfg.DataCollection.StoreDSN,
		Logger:    logger,
	})
	if err != nil {
		return err
	}
	defer client.Close()

	req := altsignal.RunRequest{Config: cfg, RunID: *runID}
	if *progress {
		req.Progress = os.Stdout
	}
	started := time.Now()
	summary, err := client.Run(ctx, req)
	if err != nil {
		return err
	}
	evaluations := int64(len(summary.BestByGeneration)) * int64(cfg.Default.PopSize)

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			RunID            string    `json:"run_id"`
			ArtifactsDir     string    `json:"artifacts_dir"`
			Seed             int64     `json:"seed"`
			Generations      int       `json:"generations"`
			Evaluations      int64     `json:"evaluations"`
			BestByGeneration []float64 `json:"best_by_generation"`
			FinalBestFitness float64   `json:"final_best_fitness"`
			MaxScore         float64   `json:"max_score"`
			Solved           bool      `json:"solved"`
			SolvedGeneration int       `json:"solved_generation"`
			ChampionID       string    `json:"champion_id"`
		}{
			RunID:            summary.RunID,
			ArtifactsDir:     summary.ArtifactsDir,
			Seed:             summary.Seed,
			Generations:      len(summary.BestByGeneration),
			Evaluations:      evaluations,
			BestByGeneration: summary.BestByGeneration,
			FinalBestFitness: summary.FinalBestFitness,
			MaxScore:         summary.MaxScore,
			Solved:           summary.Solved,
			SolvedGeneration: summary.SolvedGeneration,
			ChampionID:       summary.Champion.Genome.ID,
		})
	}

	fmt.Printf("run_id=%s seed=%d generations=%d evaluations=%s\n",
		summary.RunID, summary.Seed, len(summary.BestByGeneration), humanize.Comma(evaluations))
	fmt.Printf("final_best=%g max=%g solved=%t solved_generation=%d\n",
		summary.FinalBestFitness, summary.MaxScore, summary.Solved, summary.SolvedGeneration)
	fmt.Printf("champion=%s functions=%d instructions=%s\n",
		summary.Champion.Genome.ID, len(summary.Champion.Genome.Functions), humanize.Comma(int64(summary.Champion.Genome.InstructionCount())))
	fmt.Printf("artifacts=%s elapsed=%s\n", summary.ArtifactsDir, time.Since(started).Round(time.Millisecond))
	return nil
}

func runDefaults(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("defaults", flag.ContinueOnError)
	configPath := fs.String("config", "", "start from this config file instead of the defaults")
	var sets overrides
	fs.Var(&sets, "set", "override one parameter, NAME=VALUE (repeatable)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := loadConfig(*configPath, sets)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	return cfg.WriteTOML(os.Stdout)
}

func runEvaluate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("evaluate", flag.ContinueOnError)
	genomePath := fs.String("genome", "", "genome JSON file")
	configPath := fs.String("config", "", "experiment config file (.toml or .json)")
	var sets overrides
	fs.Var(&sets, "set", "override one parameter, NAME=VALUE (repeatable)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *genomePath == "" {
		return errors.New("evaluate requires --genome")
	}
	cfg, err := loadConfig(*configPath, sets)
	if err != nil {
		return err
	}
	cfg = cfg.Resolve(time.Now())
	if err := cfg.Validate(); err != nil {
		return err
	}

	data, err := os.ReadFile(*genomePath)
	if err != nil {
		return err
	}
	genome, err := storage.DecodeGenome(data)
	if err != nil {
		return fmt.Errorf("decode genome %s: %w", *genomePath, err)
	}
	fitness, err := altsignal.Evaluate(ctx, genome, cfg.EnvironmentConfig(), cfg.HardwareConfig())
	if err != nil {
		return err
	}
	fmt.Printf("genome=%s fitness=%g max=%d\n", genome.ID, fitness, cfg.Environment.NumEnvCycles)
	return nil
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: altsignalctl <run|defaults|evaluate|runs|fitness|summaries|snapshot|champion|analyze> [flags]", msg)
}
