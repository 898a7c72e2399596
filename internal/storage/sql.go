package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"altsignal/internal/model"
)

// dialect captures what differs between the SQL backends.
type dialect struct {
	driver       string
	blobType     string
	maxOpenConns int
	// numbered placeholders ($1, $2, ...) instead of ?
	numbered bool
}

// sqlStore implements Store over database/sql. Queries are written with ?
// placeholders and rebound per dialect.
type sqlStore struct {
	dialect dialect
	dsn     string

	mu sync.RWMutex
	db *sql.DB
}

func (s *sqlStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dsn == "" {
		return fmt.Errorf("%s dsn is required", s.dialect.driver)
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open(s.dialect.driver, s.dsn)
	if err != nil {
		return err
	}
	if s.dialect.maxOpenConns > 0 {
		db.SetMaxOpenConns(s.dialect.maxOpenConns)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}

	if err := s.createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

func (s *sqlStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *sqlStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, errNotInitialized
	}
	return s.db, nil
}

func (s *sqlStore) rebind(query string) string {
	return rebind(query, s.dialect.numbered)
}

func rebind(query string, numbered bool) string {
	if !numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *sqlStore) exec(ctx context.Context, query string, args ...any) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, s.rebind(query), args...)
	return err
}

// queryPayload loads a single payload column; a missing row reports false.
func (s *sqlStore) queryPayload(ctx context.Context, query string, args ...any) ([]byte, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, false, err
	}
	var payload []byte
	err = db.QueryRowContext(ctx, s.rebind(query), args...).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return payload, true, nil
}

func (s *sqlStore) SaveRun(ctx context.Context, run model.RunRecord) error {
	payload, err := EncodeRun(run)
	if err != nil {
		return err
	}
	v := stamp(run.VersionedRecord)
	return s.exec(ctx, `
		INSERT INTO runs (run_id, created_at, schema_version, codec_version, payload)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			created_at = excluded.created_at,
			schema_version = excluded.schema_version,
			codec_version = excluded.codec_version,
			payload = excluded.payload
	`, run.RunID, run.CreatedAtUTC, v.SchemaVersion, v.CodecVersion, payload)
}

func (s *sqlStore) GetRun(ctx context.Context, runID string) (model.RunRecord, bool, error) {
	payload, ok, err := s.queryPayload(ctx, `SELECT payload FROM runs WHERE run_id = ?`, runID)
	if err != nil || !ok {
		return model.RunRecord{}, false, err
	}
	run, err := DecodeRun(payload)
	if err != nil {
		return model.RunRecord{}, false, fmt.Errorf("decode run %s: %w", runID, err)
	}
	return run, true, nil
}

func (s *sqlStore) ListRuns(ctx context.Context) ([]model.RunRecord, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `SELECT run_id, payload FROM runs ORDER BY created_at, run_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []model.RunRecord
	for rows.Next() {
		var (
			runID   string
			payload []byte
		)
		if err := rows.Scan(&runID, &payload); err != nil {
			return nil, err
		}
		run, err := DecodeRun(payload)
		if err != nil {
			return nil, fmt.Errorf("decode run %s: %w", runID, err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sortRuns(runs)
	return runs, nil
}

func (s *sqlStore) SaveGenome(ctx context.Context, genome model.Genome) error {
	payload, err := EncodeGenome(genome)
	if err != nil {
		return err
	}
	v := stamp(genome.VersionedRecord)
	return s.exec(ctx, `
		INSERT INTO genomes (id, schema_version, codec_version, payload)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			schema_version = excluded.schema_version,
			codec_version = excluded.codec_version,
			payload = excluded.payload
	`, genome.ID, v.SchemaVersion, v.CodecVersion, payload)
}

func (s *sqlStore) GetGenome(ctx context.Context, id string) (model.Genome, bool, error) {
	payload, ok, err := s.queryPayload(ctx, `SELECT payload FROM genomes WHERE id = ?`, id)
	if err != nil || !ok {
		return model.Genome{}, false, err
	}
	genome, err := DecodeGenome(payload)
	if err != nil {
		return model.Genome{}, false, fmt.Errorf("decode genome %s: %w", id, err)
	}
	return genome, true, nil
}

func (s *sqlStore) SaveFitnessHistory(ctx context.Context, runID string, history []float64) error {
	payload, err := EncodeFitnessHistory(history)
	if err != nil {
		return err
	}
	return s.exec(ctx, `
		INSERT INTO fitness_history (run_id, payload)
		VALUES (?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			payload = excluded.payload
	`, runID, payload)
}

func (s *sqlStore) GetFitnessHistory(ctx context.Context, runID string) ([]float64, bool, error) {
	payload, ok, err := s.queryPayload(ctx, `SELECT payload FROM fitness_history WHERE run_id = ?`, runID)
	if err != nil || !ok {
		return nil, false, err
	}
	history, err := DecodeFitnessHistory(payload)
	if err != nil {
		return nil, false, fmt.Errorf("decode fitness history %s: %w", runID, err)
	}
	return history, true, nil
}

func (s *sqlStore) SaveSummaries(ctx context.Context, runID string, summaries []model.GenerationSummary) error {
	payload, err := EncodeSummaries(summaries)
	if err != nil {
		return err
	}
	return s.exec(ctx, `
		INSERT INTO summaries (run_id, payload)
		VALUES (?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			payload = excluded.payload
	`, runID, payload)
}

func (s *sqlStore) GetSummaries(ctx context.Context, runID string) ([]model.GenerationSummary, bool, error) {
	payload, ok, err := s.queryPayload(ctx, `SELECT payload FROM summaries WHERE run_id = ?`, runID)
	if err != nil || !ok {
		return nil, false, err
	}
	summaries, err := DecodeSummaries(payload)
	if err != nil {
		return nil, false, fmt.Errorf("decode summaries %s: %w", runID, err)
	}
	return summaries, true, nil
}

func (s *sqlStore) SaveSnapshot(ctx context.Context, snapshot model.PopulationSnapshot) error {
	payload, err := EncodeSnapshot(snapshot)
	if err != nil {
		return err
	}
	v := stamp(snapshot.VersionedRecord)
	return s.exec(ctx, `
		INSERT INTO snapshots (run_id, generation, schema_version, codec_version, payload)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(run_id, generation) DO UPDATE SET
			schema_version = excluded.schema_version,
			codec_version = excluded.codec_version,
			payload = excluded.payload
	`, snapshot.RunID, snapshot.Generation, v.SchemaVersion, v.CodecVersion, payload)
}

func (s *sqlStore) GetSnapshot(ctx context.Context, runID string, generation int) (model.PopulationSnapshot, bool, error) {
	payload, ok, err := s.queryPayload(ctx, `SELECT payload FROM snapshots WHERE run_id = ? AND generation = ?`, runID, generation)
	if err != nil || !ok {
		return model.PopulationSnapshot{}, false, err
	}
	snapshot, err := DecodeSnapshot(payload)
	if err != nil {
		return model.PopulationSnapshot{}, false, fmt.Errorf("decode snapshot %s/%d: %w", runID, generation, err)
	}
	return snapshot, true, nil
}

func (s *sqlStore) ListSnapshotGenerations(ctx context.Context, runID string) ([]int, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, s.rebind(`SELECT generation FROM snapshots WHERE run_id = ? ORDER BY generation`), runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var generations []int
	for rows.Next() {
		var generation int
		if err := rows.Scan(&generation); err != nil {
			return nil, err
		}
		generations = append(generations, generation)
	}
	return generations, rows.Err()
}

func (s *sqlStore) createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, strings.ReplaceAll(`
		CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			created_at TEXT NOT NULL,
			schema_version INTEGER NOT NULL,
			codec_version INTEGER NOT NULL,
			payload BLOB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS genomes (
			id TEXT PRIMARY KEY,
			schema_version INTEGER NOT NULL,
			codec_version INTEGER NOT NULL,
			payload BLOB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS fitness_history (
			run_id TEXT PRIMARY KEY,
			payload BLOB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS summaries (
			run_id TEXT PRIMARY KEY,
			payload BLOB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS snapshots (
			run_id TEXT NOT NULL,
			generation INTEGER NOT NULL,
			schema_version INTEGER NOT NULL,
			codec_version INTEGER NOT NULL,
			payload BLOB NOT NULL,
			PRIMARY KEY (run_id, generation)
		);
	`, "BLOB", s.dialect.blobType))
	return err
}
