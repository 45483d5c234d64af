package record

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Collection file names inside the record-base directory.
const (
	personsFile        = "persons.json"
	encountersFile     = "encounters.json"
	observationsFile   = "observations.json"
	treatmentsFile     = "treatments.json"
	diseasesFile       = "diseases.json"
	medicalRecordsFile = "medical_records.json"
)

// CollectionFiles lists the six persisted file names in save order.
func CollectionFiles() []string {
	return []string{
		personsFile,
		encountersFile,
		observationsFile,
		treatmentsFile,
		diseasesFile,
		medicalRecordsFile,
	}
}

type jsonStore struct {
	dir string
}

// NewJSONStore returns a Store backed by one JSON file per entity kind in
// dir. The directory is created on the first save.
func NewJSONStore(dir string) Store {
	return &jsonStore{dir: dir}
}

func loadJSON[T any](path string) ([]T, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var out []T
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return out, nil
}

func saveJSON[T any](dir, name string, records []T) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	if records == nil {
		records = []T{}
	}
	b, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func (s *jsonStore) LoadPersons(_ context.Context) ([]*Person, error) {
	return loadJSON[*Person](filepath.Join(s.dir, personsFile))
}

func (s *jsonStore) LoadEncounters(_ context.Context) ([]*Encounter, error) {
	return loadJSON[*Encounter](filepath.Join(s.dir, encountersFile))
}

func (s *jsonStore) LoadObservations(_ context.Context) ([]*Observation, error) {
	return loadJSON[*Observation](filepath.Join(s.dir, observationsFile))
}

func (s *jsonStore) LoadTreatments(_ context.Context) ([]*Treatment, error) {
	return loadJSON[*Treatment](filepath.Join(s.dir, treatmentsFile))
}

func (s *jsonStore) LoadDiseases(_ context.Context) ([]*Disease, error) {
	return loadJSON[*Disease](filepath.Join(s.dir, diseasesFile))
}

func (s *jsonStore) LoadMedicalRecords(_ context.Context) ([]*MedicalRecord, error) {
	return loadJSON[*MedicalRecord](filepath.Join(s.dir, medicalRecordsFile))
}

func (s *jsonStore) SavePersons(_ context.Context, persons []*Person) error {
	return saveJSON(s.dir, personsFile, persons)
}

func (s *jsonStore) SaveEncounters(_ context.Context, encounters []*Encounter) error {
	return saveJSON(s.dir, encountersFile, encounters)
}

func (s *jsonStore) SaveObservations(_ context.Context, observations []*Observation) error {
	return saveJSON(s.dir, observationsFile, observations)
}

func (s *jsonStore) SaveTreatments(_ context.Context, treatments []*Treatment) error {
	return saveJSON(s.dir, treatmentsFile, treatments)
}

func (s *jsonStore) SaveDiseases(_ context.Context, diseases []*Disease) error {
	return saveJSON(s.dir, diseasesFile, diseases)
}

func (s *jsonStore) SaveMedicalRecords(_ context.Context, records []*MedicalRecord) error {
	return saveJSON(s.dir, medicalRecordsFile, records)
}
