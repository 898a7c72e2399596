package stats

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"altsignal/internal/model"
)

func TestUpdateLineRoundTrip(t *testing.T) {
	line := FormatUpdateLine(model.GenerationSummary{Generation: 40, BestFitness: 6, Solution: false}, 8)
	if line != "update: 40; score: 6; max: 8; solution: 0" {
		t.Fatalf("unexpected line: %q", line)
	}
	record, ok, err := ParseUpdateLine(line)
	if err != nil || !ok {
		t.Fatalf("parse line: ok=%t err=%v", ok, err)
	}
	if record.Update != 40 || record.Score != 6 || record.Max != 8 || record.Solution {
		t.Fatalf("unexpected record: %+v", record)
	}
	if _, ok, err := ParseUpdateLine("time=now level=INFO msg=generation"); ok || err != nil {
		t.Fatalf("expected non-update line to be skipped, ok=%t err=%v", ok, err)
	}
	if _, _, err := ParseUpdateLine("update: x; score: 1; max: 1; solution: 0"); err == nil {
		t.Fatal("expected parse error")
	}
}

func writeRun(t *testing.T, dataDir, name, generations string, lines ...string) {
	t.Helper()
	runDir := filepath.Join(dataDir, name)
	seed := name[strings.LastIndex(name, "_")+1:]
	if err := WriteRunConfig(filepath.Join(runDir, OutputDir), []model.Parameter{
		{Name: "SEED", Value: seed},
		{Name: "GENERATIONS", Value: generations},
	}); err != nil {
		t.Fatalf("write run config: %v", err)
	}
	log := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(filepath.Join(runDir, RunLogFile), []byte(log), 0o644); err != nil {
		t.Fatalf("write run log: %v", err)
	}
}

func TestScanRunsClassifiesFinishedAndDead(t *testing.T) {
	dataDir := t.TempDir()
	writeRun(t, dataDir, "a__SEED_10", "20",
		"update: 10; score: 4; max: 8; solution: 0",
		"update: 20; score: 6; max: 8; solution: 0",
	)
	writeRun(t, dataDir, "a__SEED_2", "20",
		"update: 10; score: 8; max: 8; solution: 1",
	)
	writeRun(t, dataDir, "a__SEED_3", "20",
		"update: 10; score: 4; max: 8; solution: 0",
	)
	if err := os.MkdirAll(filepath.Join(dataDir, "unrelated"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	runs, err := ScanRuns([]string{dataDir})
	if err != nil {
		t.Fatalf("scan runs: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(runs))
	}
	wantSeeds := []string{"2", "3", "10"}
	wantFinished := []bool{true, false, true}
	for i, run := range runs {
		if run.Seed != wantSeeds[i] || run.Finished != wantFinished[i] {
			t.Fatalf("run %d: unexpected status %+v", i, run)
		}
	}
	if !runs[0].Solution || runs[2].FinalUpdate != 20 {
		t.Fatalf("unexpected run details: %+v", runs)
	}
}

func TestScanRunsMissingArtifacts(t *testing.T) {
	dataDir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dataDir, "x__SEED_1"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if _, err := ScanRuns([]string{dataDir}); err == nil {
		t.Fatal("expected error for a run without run_config.csv")
	}
	if _, err := ScanRuns([]string{filepath.Join(dataDir, "missing")}); err == nil {
		t.Fatal("expected error for a missing data dir")
	}
}
