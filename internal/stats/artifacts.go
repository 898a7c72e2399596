package stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ncruces/go-strftime"

	"altsignal/internal/model"
)

const (
	FitnessFile  = "fitness.csv"
	ChampionFile = "champion.json"
	SnapshotDir  = "snapshots"
	runDirLayout = "%Y%m%d-%H%M%S"
)

// RunDirName names a run directory by start time and seed, e.g.
// "20240102-150405__SEED_7".
func RunDirName(start time.Time, seed int64) string {
	return strftime.Format(runDirLayout, start.UTC()) + seedMarker + strconv.FormatInt(seed, 10)
}

// WriteRunConfig writes run_config.csv with a parameter,value header.
func WriteRunConfig(dir string, params []model.Parameter) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	file, err := os.Create(filepath.Join(dir, RunConfigFile))
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"parameter", "value"}); err != nil {
		return err
	}
	for _, p := range params {
		if err := writer.Write([]string{p.Name, p.Value}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// ReadRunConfig reads a run_config.csv into a parameter name to value map.
func ReadRunConfig(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("run config %s is empty", path)
		}
		return nil, err
	}
	nameIdx, valueIdx := -1, -1
	for i, col := range header {
		switch strings.TrimSpace(col) {
		case "parameter":
			nameIdx = i
		case "value":
			valueIdx = i
		}
	}
	if nameIdx < 0 || valueIdx < 0 {
		return nil, fmt.Errorf("run config %s requires parameter and value columns", path)
	}

	params := map[string]string{}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(record) <= nameIdx || len(record) <= valueIdx {
			return nil, fmt.Errorf("run config %s has a short row", path)
		}
		params[record[nameIdx]] = record[valueIdx]
	}
	return params, nil
}

var summaryHeader = []string{
	"generation",
	"best_fitness",
	"mean_fitness",
	"min_fitness",
	"best_function_count",
	"best_instruction_count",
	"mean_function_count",
	"mean_instruction_count",
	"fingerprint_diversity",
	"solution",
}

// WriteSummaries writes fitness.csv, one row per recorded generation.
func WriteSummaries(dir string, summaries []model.GenerationSummary) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	file, err := os.Create(filepath.Join(dir, FitnessFile))
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(summaryHeader); err != nil {
		return err
	}
	for _, s := range summaries {
		if err := writer.Write(summaryRow(s)); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// AppendSummary appends one row to fitness.csv, writing the header when the
// file is new.
func AppendSummary(dir string, summary model.GenerationSummary) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(dir, FitnessFile)
	_, statErr := os.Stat(path)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if os.IsNotExist(statErr) {
		if err := writer.Write(summaryHeader); err != nil {
			return err
		}
	}
	if err := writer.Write(summaryRow(summary)); err != nil {
		return err
	}
	writer.Flush()
	return writer.Error()
}

func summaryRow(s model.GenerationSummary) []string {
	solution := "0"
	if s.Solution {
		solution = "1"
	}
	return []string{
		strconv.Itoa(s.Generation),
		formatFloat(s.BestFitness),
		formatFloat(s.MeanFitness),
		formatFloat(s.MinFitness),
		strconv.Itoa(s.BestFunctionCount),
		strconv.Itoa(s.BestInstructionCount),
		formatFloat(s.MeanFunctionCount),
		formatFloat(s.MeanInstructionCount),
		strconv.Itoa(s.FingerprintDiversity),
		solution,
	}
}

// ReadSummaries reads fitness.csv back.
func ReadSummaries(dir string) ([]model.GenerationSummary, error) {
	file, err := os.Open(filepath.Join(dir, FitnessFile))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	if _, err := reader.Read(); err != nil {
		if err == io.EOF {
			return []model.GenerationSummary{}, nil
		}
		return nil, err
	}

	var out []model.GenerationSummary
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(record) != len(summaryHeader) {
			return nil, fmt.Errorf("fitness row must have %d columns, got %d", len(summaryHeader), len(record))
		}
		var row [10]float64
		for i, field := range record {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("parse %s: %w", summaryHeader[i], err)
			}
			row[i] = v
		}
		out = append(out, model.GenerationSummary{
			Generation:           int(row[0]),
			BestFitness:          row[1],
			MeanFitness:          row[2],
			MinFitness:           row[3],
			BestFunctionCount:    int(row[4]),
			BestInstructionCount: int(row[5]),
			MeanFunctionCount:    row[6],
			MeanInstructionCount: row[7],
			FingerprintDiversity: int(row[8]),
			Solution:             row[9] != 0,
		})
	}
	return out, nil
}

// WriteSnapshot writes snapshots/pop_<generation>.json under dir.
func WriteSnapshot(dir string, snapshot model.PopulationSnapshot) (string, error) {
	snapDir := filepath.Join(dir, SnapshotDir)
	if err := os.MkdirAll(snapDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(snapDir, fmt.Sprintf("pop_%d.json", snapshot.Generation))
	if err := writeJSON(path, snapshot); err != nil {
		return "", err
	}
	return path, nil
}

func ReadSnapshot(path string) (model.PopulationSnapshot, error) {
	var snapshot model.PopulationSnapshot
	if err := readJSON(path, &snapshot); err != nil {
		return model.PopulationSnapshot{}, err
	}
	return snapshot, nil
}

func WriteChampion(dir string, champion model.ScoredGenome) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return writeJSON(filepath.Join(dir, ChampionFile), champion)
}

func ReadChampion(dir string) (model.ScoredGenome, error) {
	var champion model.ScoredGenome
	if err := readJSON(filepath.Join(dir, ChampionFile), &champion); err != nil {
		return model.ScoredGenome{}, err
	}
	return champion, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func readJSON(path string, value any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, value)
}
