package stats

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"altsignal/internal/model"
)

const (
	RunLogFile    = "run.log"
	RunConfigFile = "run_config.csv"
	OutputDir     = "output"
	seedMarker    = "__SEED_"
)

// UpdateRecord is one parsed progress line of a run log.
type UpdateRecord struct {
	Update   int
	Score    float64
	Max      float64
	Solution bool
}

// FormatUpdateLine renders the run log progress line for summary.
func FormatUpdateLine(summary model.GenerationSummary, maxScore float64) string {
	solution := 0
	if summary.Solution {
		solution = 1
	}
	return fmt.Sprintf("update: %d; score: %s; max: %s; solution: %d",
		summary.Generation,
		strconv.FormatFloat(summary.BestFitness, 'g', -1, 64),
		strconv.FormatFloat(maxScore, 'g', -1, 64),
		solution,
	)
}

// ParseUpdateLine parses a line written by FormatUpdateLine. Lines that do
// not start with "update" report false.
func ParseUpdateLine(line string) (UpdateRecord, bool, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "update") {
		return UpdateRecord{}, false, nil
	}
	fields := strings.Split(line, ";")
	if len(fields) < 4 {
		return UpdateRecord{}, false, fmt.Errorf("malformed update line %q", line)
	}
	value := func(i int) string {
		parts := strings.Split(fields[i], ":")
		return strings.TrimSpace(parts[len(parts)-1])
	}

	update, err := strconv.Atoi(value(0))
	if err != nil {
		return UpdateRecord{}, false, fmt.Errorf("parse update in %q: %w", line, err)
	}
	score, err := strconv.ParseFloat(value(1), 64)
	if err != nil {
		return UpdateRecord{}, false, fmt.Errorf("parse score in %q: %w", line, err)
	}
	maxScore, err := strconv.ParseFloat(value(2), 64)
	if err != nil {
		return UpdateRecord{}, false, fmt.Errorf("parse max in %q: %w", line, err)
	}
	solution, err := strconv.Atoi(value(3))
	if err != nil {
		return UpdateRecord{}, false, fmt.Errorf("parse solution in %q: %w", line, err)
	}
	return UpdateRecord{Update: update, Score: score, Max: maxScore, Solution: solution != 0}, true, nil
}

func ReadRunLog(path string) ([]UpdateRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var records []UpdateRecord
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		record, ok, err := ParseUpdateLine(scanner.Text())
		if err != nil {
			return nil, err
		}
		if ok {
			records = append(records, record)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// RunStatus classifies one run directory. A run is finished when its last
// logged update found a solution or reached GENERATIONS; otherwise it died.
type RunStatus struct {
	Dir                 string
	Seed                string
	ExpectedGenerations int
	FinalUpdate         int
	Solution            bool
	Finished            bool
}

// ScanRuns inspects every "<name>__SEED_<n>" directory under dataDirs,
// ordered by seed.
func ScanRuns(dataDirs []string) ([]RunStatus, error) {
	var runDirs []string
	for _, dataDir := range dataDirs {
		entries, err := os.ReadDir(dataDir)
		if err != nil {
			return nil, fmt.Errorf("read data dir %s: %w", dataDir, err)
		}
		for _, entry := range entries {
			if entry.IsDir() && strings.Contains(entry.Name(), seedMarker) {
				runDirs = append(runDirs, filepath.Join(dataDir, entry.Name()))
			}
		}
	}
	sort.SliceStable(runDirs, func(i, j int) bool {
		return seedOfDir(runDirs[i]) < seedOfDir(runDirs[j])
	})

	out := make([]RunStatus, 0, len(runDirs))
	for _, dir := range runDirs {
		status, err := inspectRun(dir)
		if err != nil {
			return nil, err
		}
		out = append(out, status)
	}
	return out, nil
}

func inspectRun(dir string) (RunStatus, error) {
	params, err := ReadRunConfig(filepath.Join(dir, OutputDir, RunConfigFile))
	if err != nil {
		return RunStatus{}, fmt.Errorf("read run parameters for %s: %w", dir, err)
	}
	expected, err := strconv.Atoi(params["GENERATIONS"])
	if err != nil {
		return RunStatus{}, fmt.Errorf("parse GENERATIONS for %s: %w", dir, err)
	}
	records, err := ReadRunLog(filepath.Join(dir, RunLogFile))
	if err != nil {
		return RunStatus{}, fmt.Errorf("read run log for %s: %w", dir, err)
	}

	status := RunStatus{Dir: dir, Seed: params["SEED"], ExpectedGenerations: expected}
	if len(records) == 0 {
		return status, nil
	}
	last := records[len(records)-1]
	status.FinalUpdate = last.Update
	status.Solution = last.Solution
	status.Finished = last.Solution || last.Update == expected
	return status, nil
}

func seedOfDir(dir string) int64 {
	name := filepath.Base(dir)
	idx := strings.LastIndex(name, "_")
	if idx < 0 {
		return 0
	}
	seed, err := strconv.ParseInt(name[idx+1:], 10, 64)
	if err != nil {
		return 0
	}
	return seed
}
