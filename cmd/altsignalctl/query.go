package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"altsignal/internal/genotype"
	"altsignal/pkg/altsignal"
)

type storeFlags struct {
	kind *string
	dsn  *string
}

func addStoreFlags(fs *flag.FlagSet) storeFlags {
	return storeFlags{
		kind: fs.String("store", defaultQueryStore, "store backend: memory|sqlite|postgres"),
		dsn:  fs.String("dsn", defaultDSN, "store dsn (sqlite path or postgres url)"),
	}
}

func (f storeFlags) client() (*altsignal.Client, error) {
	return altsignal.New(altsignal.Options{StoreKind: *f.kind, DSN: *f.dsn})
}

func printJSON(value any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	store := addStoreFlags(fs)
	limit := fs.Int("limit", 20, "max runs to list")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	client, err := store.client()
	if err != nil {
		return err
	}
	defer client.Close()

	runs, err := client.Runs(ctx, altsignal.RunsRequest{Limit: *limit})
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(runs)
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}
	for _, r := range runs {
		created := r.CreatedAtUTC
		if ts, err := time.Parse(time.RFC3339Nano, r.CreatedAtUTC); err == nil {
			created = humanize.Time(ts)
		}
		fmt.Printf("run_id=%s created=%q seed=%d pop=%s generations=%s final_best=%g max=%g solved=%t solved_generation=%d\n",
			r.RunID, created, r.Seed, humanize.Comma(int64(r.PopulationSize)), humanize.Comma(int64(r.Generations)),
			r.FinalBestFitness, r.MaxScore, r.Solved, r.SolvedGeneration)
	}
	return nil
}

func runFitness(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("fitness", flag.ContinueOnError)
	store := addStoreFlags(fs)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "use latest run")
	limit := fs.Int("limit", 0, "max generations to show (0 = all)")
	jsonOut := fs.Bool("json", false, "emit fitness history as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := store.client()
	if err != nil {
		return err
	}
	defer client.Close()

	history, err := client.FitnessHistory(ctx, altsignal.FitnessHistoryRequest{RunID: *runID, Latest: *latest, Limit: *limit})
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(history)
	}
	for i, best := range history {
		fmt.Printf("generation=%d best=%g\n", i+1, best)
	}
	return nil
}

func runSummaries(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("summaries", flag.ContinueOnError)
	store := addStoreFlags(fs)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "use latest run")
	limit := fs.Int("limit", 0, "max summaries to show (0 = all)")
	jsonOut := fs.Bool("json", false, "emit summaries as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := store.client()
	if err != nil {
		return err
	}
	defer client.Close()

	summaries, err := client.Summaries(ctx, altsignal.SummariesRequest{RunID: *runID, Latest: *latest, Limit: *limit})
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(summaries)
	}
	for _, s := range summaries {
		fmt.Printf("generation=%d best=%g mean=%.4f min=%g best_functions=%d best_instructions=%d diversity=%d solution=%t\n",
			s.Generation, s.BestFitness, s.MeanFitness, s.MinFitness, s.BestFunctionCount, s.BestInstructionCount,
			s.FingerprintDiversity, s.Solution)
	}
	return nil
}

func runSnapshot(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("snapshot", flag.ContinueOnError)
	store := addStoreFlags(fs)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "use latest run")
	generation := fs.Int("generation", 0, "snapshot generation (0 = last stored)")
	jsonOut := fs.Bool("json", false, "emit the full snapshot as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := store.client()
	if err != nil {
		return err
	}
	defer client.Close()

	snapshot, err := client.Snapshot(ctx, altsignal.SnapshotRequest{RunID: *runID, Latest: *latest, Generation: *generation})
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(snapshot)
	}
	fmt.Printf("run_id=%s generation=%d organisms=%d\n", snapshot.RunID, snapshot.Generation, len(snapshot.Organisms))
	for i, item := range snapshot.Organisms {
		sig := genotype.ComputeGenomeSignature(item.Genome)
		fmt.Printf("index=%d id=%s fitness=%g functions=%d instructions=%d fingerprint=%s\n",
			i, item.Genome.ID, item.Fitness, len(item.Genome.Functions), item.Genome.InstructionCount(), sig.Fingerprint)
	}
	return nil
}

func runChampion(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("champion", flag.ContinueOnError)
	store := addStoreFlags(fs)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "use latest run")
	jsonOut := fs.Bool("json", false, "emit the champion genome as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := store.client()
	if err != nil {
		return err
	}
	defer client.Close()

	genome, err := client.Champion(ctx, altsignal.ChampionRequest{RunID: *runID, Latest: *latest})
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(genome)
	}
	fmt.Printf("id=%s functions=%d instructions=%d\n", genome.ID, len(genome.Functions), genome.InstructionCount())
	for i, fn := range genome.Functions {
		fmt.Printf("function=%d tag=%s\n", i, fn.Tag)
		for j, inst := range fn.Instructions {
			fmt.Printf("  %3d %s %d %d %d %s\n", j, inst.Op, inst.Args[0], inst.Args[1], inst.Args[2], inst.Tag)
		}
	}
	return nil
}
