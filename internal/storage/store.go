package storage

import (
	"context"
	"sort"
	"time"

	"altsignal/internal/model"
)

// Store persists runs, champions and per-run statistics. Get methods report
// false when the record does not exist.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, runID string) (model.RunRecord, bool, error)
	ListRuns(ctx context.Context) ([]model.RunRecord, error)
	SaveGenome(ctx context.Context, genome model.Genome) error
	GetGenome(ctx context.Context, id string) (model.Genome, bool, error)
	SaveFitnessHistory(ctx context.Context, runID string, history []float64) error
	GetFitnessHistory(ctx context.Context, runID string) ([]float64, bool, error)
	SaveSummaries(ctx context.Context, runID string, summaries []model.GenerationSummary) error
	GetSummaries(ctx context.Context, runID string) ([]model.GenerationSummary, bool, error)
	SaveSnapshot(ctx context.Context, snapshot model.PopulationSnapshot) error
	GetSnapshot(ctx context.Context, runID string, generation int) (model.PopulationSnapshot, bool, error)
	// ListSnapshotGenerations returns the stored generations of a run in
	// ascending order.
	ListSnapshotGenerations(ctx context.Context, runID string) ([]int, error)
}

// sortRuns orders runs by creation time, then by ID. Creation times are
// compared as parsed instants so records written with trimmed fractional
// seconds still sort correctly; unparsable values sort first.
func sortRuns(runs []model.RunRecord) {
	created := make(map[string]time.Time, len(runs))
	for _, run := range runs {
		ts, err := time.Parse(time.RFC3339Nano, run.CreatedAtUTC)
		if err == nil {
			created[run.RunID] = ts
		}
	}
	sort.SliceStable(runs, func(i, j int) bool {
		ti, tj := created[runs[i].RunID], created[runs[j].RunID]
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return runs[i].RunID < runs[j].RunID
	})
}
