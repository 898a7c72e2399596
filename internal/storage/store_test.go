package storage

import (
	"context"
	"strings"
	"testing"

	"altsignal/internal/model"
	"altsignal/internal/tag"
)

func testGenome(id string, functions int) model.Genome {
	genome := model.Genome{
		VersionedRecord: model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion},
		ID:              id,
	}
	for i := 0; i < functions; i++ {
		genome.Functions = append(genome.Functions, model.Function{
			Tag:          tag.New(uint64(i + 1)),
			Instructions: []model.Instruction{{Op: "Inc", Args: [3]int{i, 0, 0}}, {Op: "Response-0"}},
		})
	}
	return genome
}

// exerciseStore runs the round trips every backend must support.
func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := store.GetRun(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected missing run, ok=%t err=%v", ok, err)
	}

	runs := []model.RunRecord{
		{RunID: "run-b", CreatedAtUTC: "2024-01-02T00:00:00Z", Seed: 2, Generations: 10, MaxScore: 8},
		{RunID: "run-a", CreatedAtUTC: "2024-01-01T00:00:00Z", Seed: 1, Generations: 10, MaxScore: 8,
			Parameters: []model.Parameter{{Group: "DEFAULT_GROUP", Name: "SEED", Value: "1"}}},
	}
	for _, run := range runs {
		if err := store.SaveRun(ctx, run); err != nil {
			t.Fatalf("save run %s: %v", run.RunID, err)
		}
	}
	updated := runs[0]
	updated.Solved = true
	updated.SolvedGeneration = 7
	if err := store.SaveRun(ctx, updated); err != nil {
		t.Fatalf("update run: %v", err)
	}
	run, ok, err := store.GetRun(ctx, "run-b")
	if err != nil || !ok {
		t.Fatalf("get run: ok=%t err=%v", ok, err)
	}
	if !run.Solved || run.SolvedGeneration != 7 {
		t.Fatalf("expected updated run, got %+v", run)
	}
	listed, err := store.ListRuns(ctx)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(listed) != 2 || listed[0].RunID != "run-a" || listed[1].RunID != "run-b" {
		t.Fatalf("unexpected run order: %+v", listed)
	}
	if len(listed[0].Parameters) != 1 || listed[0].Parameters[0].Value != "1" {
		t.Fatalf("unexpected run parameters: %+v", listed[0].Parameters)
	}

	sameSecond := []model.RunRecord{
		{RunID: "a-new", CreatedAtUTC: "2024-01-03T00:00:05.12Z", Seed: 3, Generations: 10, MaxScore: 8},
		{RunID: "b-old", CreatedAtUTC: "2024-01-03T00:00:05.1Z", Seed: 4, Generations: 10, MaxScore: 8},
		{RunID: "c-whole", CreatedAtUTC: "2024-01-03T00:00:05Z", Seed: 5, Generations: 10, MaxScore: 8},
	}
	for _, run := range sameSecond {
		if err := store.SaveRun(ctx, run); err != nil {
			t.Fatalf("save run %s: %v", run.RunID, err)
		}
	}
	listed, err = store.ListRuns(ctx)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	var order []string
	for _, run := range listed {
		order = append(order, run.RunID)
	}
	if got, want := strings.Join(order, ","), "run-a,run-b,c-whole,b-old,a-new"; got != want {
		t.Fatalf("expected time order %s, got %s", want, got)
	}

	genome := testGenome("champion", 2)
	if err := store.SaveGenome(ctx, genome); err != nil {
		t.Fatalf("save genome: %v", err)
	}
	genome.Functions[0].Instructions[0].Op = "Dec"
	loaded, ok, err := store.GetGenome(ctx, "champion")
	if err != nil || !ok {
		t.Fatalf("get genome: ok=%t err=%v", ok, err)
	}
	if len(loaded.Functions) != 2 || loaded.Functions[1].Tag != tag.New(2) {
		t.Fatalf("unexpected genome: %+v", loaded)
	}
	if loaded.Functions[0].Instructions[0].Op != "Inc" {
		t.Fatal("store must not alias the saved genome")
	}

	history := []float64{1, 3, 5}
	if err := store.SaveFitnessHistory(ctx, "run-a", history); err != nil {
		t.Fatalf("save history: %v", err)
	}
	gotHistory, ok, err := store.GetFitnessHistory(ctx, "run-a")
	if err != nil || !ok {
		t.Fatalf("get history: ok=%t err=%v", ok, err)
	}
	if len(gotHistory) != 3 || gotHistory[2] != 5 {
		t.Fatalf("unexpected history: %+v", gotHistory)
	}

	summaries := []model.GenerationSummary{
		{Generation: 10, BestFitness: 4, MeanFitness: 2.5, FingerprintDiversity: 12},
		{Generation: 20, BestFitness: 8, MeanFitness: 3.5, Solution: true},
	}
	if err := store.SaveSummaries(ctx, "run-a", summaries); err != nil {
		t.Fatalf("save summaries: %v", err)
	}
	gotSummaries, ok, err := store.GetSummaries(ctx, "run-a")
	if err != nil || !ok {
		t.Fatalf("get summaries: ok=%t err=%v", ok, err)
	}
	if len(gotSummaries) != 2 || !gotSummaries[1].Solution || gotSummaries[0].FingerprintDiversity != 12 {
		t.Fatalf("unexpected summaries: %+v", gotSummaries)
	}
	if _, ok, err := store.GetSummaries(ctx, "run-b"); err != nil || ok {
		t.Fatalf("expected no summaries for run-b, ok=%t err=%v", ok, err)
	}

	for _, gen := range []int{20, 10} {
		snapshot := model.PopulationSnapshot{
			VersionedRecord: model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion},
			RunID:           "run-a",
			Generation:      gen,
			Organisms: []model.ScoredGenome{
				{Genome: testGenome("a", 1), Fitness: float64(gen)},
				{Genome: testGenome("b", 3), Fitness: 1},
			},
		}
		if err := store.SaveSnapshot(ctx, snapshot); err != nil {
			t.Fatalf("save snapshot %d: %v", gen, err)
		}
	}
	snapshot, ok, err := store.GetSnapshot(ctx, "run-a", 20)
	if err != nil || !ok {
		t.Fatalf("get snapshot: ok=%t err=%v", ok, err)
	}
	if len(snapshot.Organisms) != 2 || snapshot.Organisms[0].Fitness != 20 || len(snapshot.Organisms[1].Genome.Functions) != 3 {
		t.Fatalf("unexpected snapshot: %+v", snapshot)
	}
	if _, ok, err := store.GetSnapshot(ctx, "run-a", 30); err != nil || ok {
		t.Fatalf("expected missing snapshot, ok=%t err=%v", ok, err)
	}
	generations, err := store.ListSnapshotGenerations(ctx, "run-a")
	if err != nil {
		t.Fatalf("list snapshot generations: %v", err)
	}
	if len(generations) != 2 || generations[0] != 10 || generations[1] != 20 {
		t.Fatalf("unexpected generations: %v", generations)
	}
}
