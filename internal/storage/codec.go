package storage

import (
	"encoding/json"
	"errors"
	"fmt"

	"altsignal/internal/genotype"
	"altsignal/internal/model"
)

const (
	CurrentSchemaVersion = genotype.SchemaVersion
	CurrentCodecVersion  = genotype.CodecVersion
)

var ErrVersionMismatch = errors.New("record version mismatch")

// stamp fills in the current versions of a record that carries none.
func stamp(v model.VersionedRecord) model.VersionedRecord {
	if v.SchemaVersion == 0 && v.CodecVersion == 0 {
		return model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion}
	}
	return v
}

func EncodeGenome(g model.Genome) ([]byte, error) {
	g.VersionedRecord = stamp(g.VersionedRecord)
	return json.Marshal(g)
}

func DecodeGenome(data []byte) (model.Genome, error) {
	var genome model.Genome
	if err := json.Unmarshal(data, &genome); err != nil {
		return model.Genome{}, err
	}
	if err := checkVersion(genome.VersionedRecord); err != nil {
		return model.Genome{}, err
	}
	return genome, nil
}

func EncodeRun(r model.RunRecord) ([]byte, error) {
	r.VersionedRecord = stamp(r.VersionedRecord)
	return json.Marshal(r)
}

func DecodeRun(data []byte) (model.RunRecord, error) {
	var run model.RunRecord
	if err := json.Unmarshal(data, &run); err != nil {
		return model.RunRecord{}, err
	}
	if err := checkVersion(run.VersionedRecord); err != nil {
		return model.RunRecord{}, err
	}
	return run, nil
}

func EncodeSnapshot(s model.PopulationSnapshot) ([]byte, error) {
	s.VersionedRecord = stamp(s.VersionedRecord)
	organisms := make([]model.ScoredGenome, len(s.Organisms))
	for i, item := range s.Organisms {
		item.Genome.VersionedRecord = stamp(item.Genome.VersionedRecord)
		organisms[i] = item
	}
	s.Organisms = organisms
	return json.Marshal(s)
}

func DecodeSnapshot(data []byte) (model.PopulationSnapshot, error) {
	var snapshot model.PopulationSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return model.PopulationSnapshot{}, err
	}
	if err := checkVersion(snapshot.VersionedRecord); err != nil {
		return model.PopulationSnapshot{}, err
	}
	for i, item := range snapshot.Organisms {
		if err := checkVersion(item.Genome.VersionedRecord); err != nil {
			return model.PopulationSnapshot{}, fmt.Errorf("organism %d: %w", i, err)
		}
	}
	return snapshot, nil
}

func EncodeFitnessHistory(history []float64) ([]byte, error) {
	return json.Marshal(history)
}

func DecodeFitnessHistory(data []byte) ([]float64, error) {
	var history []float64
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, err
	}
	return history, nil
}

func EncodeSummaries(summaries []model.GenerationSummary) ([]byte, error) {
	return json.Marshal(summaries)
}

func DecodeSummaries(data []byte) ([]model.GenerationSummary, error) {
	var summaries []model.GenerationSummary
	if err := json.Unmarshal(data, &summaries); err != nil {
		return nil, err
	}
	return summaries, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return fmt.Errorf("%w: schema=%d codec=%d", ErrVersionMismatch, v.SchemaVersion, v.CodecVersion)
	}
	return nil
}
