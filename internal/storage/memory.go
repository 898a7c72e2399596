package storage

import (
	"context"
	"errors"
	"sort"
	"sync"

	"altsignal/internal/genotype"
	"altsignal/internal/model"
)

type snapshotKey struct {
	runID      string
	generation int
}

// MemoryStore keeps records in process. Saved and returned values are
// copies, so callers may keep mutating their own.
type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	runs        map[string]model.RunRecord
	genomes     map[string]model.Genome
	history     map[string][]float64
	summaries   map[string][]model.GenerationSummary
	snapshots   map[snapshotKey]model.PopulationSnapshot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.runs = make(map[string]model.RunRecord)
	s.genomes = make(map[string]model.Genome)
	s.history = make(map[string][]float64)
	s.summaries = make(map[string][]model.GenerationSummary)
	s.snapshots = make(map[snapshotKey]model.PopulationSnapshot)
	return nil
}

var errNotInitialized = errors.New("store is not initialized")

func (s *MemoryStore) SaveRun(_ context.Context, run model.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return errNotInitialized
	}

	run.Parameters = append([]model.Parameter(nil), run.Parameters...)
	s.runs[run.RunID] = run
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, runID string) (model.RunRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[runID]
	if !ok {
		return model.RunRecord{}, false, nil
	}
	run.Parameters = append([]model.Parameter(nil), run.Parameters...)
	return run, true, nil
}

// ListRuns orders runs by creation time, then by ID.
func (s *MemoryStore) ListRuns(_ context.Context) ([]model.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.RunRecord, 0, len(s.runs))
	for _, run := range s.runs {
		run.Parameters = append([]model.Parameter(nil), run.Parameters...)
		out = append(out, run)
	}
	sortRuns(out)
	return out, nil
}

func (s *MemoryStore) SaveGenome(_ context.Context, genome model.Genome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return errNotInitialized
	}

	s.genomes[genome.ID] = genotype.CloneGenome(genome)
	return nil
}

func (s *MemoryStore) GetGenome(_ context.Context, id string) (model.Genome, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	genome, ok := s.genomes[id]
	if !ok {
		return model.Genome{}, false, nil
	}
	return genotype.CloneGenome(genome), true, nil
}

func (s *MemoryStore) SaveFitnessHistory(_ context.Context, runID string, history []float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return errNotInitialized
	}

	s.history[runID] = append([]float64(nil), history...)
	return nil
}

func (s *MemoryStore) GetFitnessHistory(_ context.Context, runID string) ([]float64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.history[runID]
	if !ok {
		return nil, false, nil
	}
	return append([]float64(nil), history...), true, nil
}

func (s *MemoryStore) SaveSummaries(_ context.Context, runID string, summaries []model.GenerationSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return errNotInitialized
	}

	s.summaries[runID] = append([]model.GenerationSummary(nil), summaries...)
	return nil
}

func (s *MemoryStore) GetSummaries(_ context.Context, runID string) ([]model.GenerationSummary, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summaries, ok := s.summaries[runID]
	if !ok {
		return nil, false, nil
	}
	return append([]model.GenerationSummary(nil), summaries...), true, nil
}

func (s *MemoryStore) SaveSnapshot(_ context.Context, snapshot model.PopulationSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return errNotInitialized
	}

	s.snapshots[snapshotKey{runID: snapshot.RunID, generation: snapshot.Generation}] = cloneSnapshot(snapshot)
	return nil
}

func (s *MemoryStore) GetSnapshot(_ context.Context, runID string, generation int) (model.PopulationSnapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot, ok := s.snapshots[snapshotKey{runID: runID, generation: generation}]
	if !ok {
		return model.PopulationSnapshot{}, false, nil
	}
	return cloneSnapshot(snapshot), true, nil
}

func (s *MemoryStore) ListSnapshotGenerations(_ context.Context, runID string) ([]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var generations []int
	for key := range s.snapshots {
		if key.runID == runID {
			generations = append(generations, key.generation)
		}
	}
	sort.Ints(generations)
	return generations, nil
}

func cloneSnapshot(snapshot model.PopulationSnapshot) model.PopulationSnapshot {
	organisms := make([]model.ScoredGenome, len(snapshot.Organisms))
	for i, item := range snapshot.Organisms {
		organisms[i] = model.ScoredGenome{Genome: genotype.CloneGenome(item.Genome), Fitness: item.Fitness}
	}
	snapshot.Organisms = organisms
	return snapshot
}
