package record

import (
	"context"
)

// Store persists the six record collections. Load returns the full ordered
// collection, empty on first run (a missing file is the expected initial
// state, not an error). Save rewrites the full collection: append semantics
// live in the merge engine, not in the storage layer. There is no
// cross-collection transaction; callers must serialize merge operations
// against one store location externally.
type Store interface {
	LoadPersons(ctx context.Context) ([]*Person, error)
	LoadEncounters(ctx context.Context) ([]*Encounter, error)
	LoadObservations(ctx context.Context) ([]*Observation, error)
	LoadTreatments(ctx context.Context) ([]*Treatment, error)
	LoadDiseases(ctx context.Context) ([]*Disease, error)
	LoadMedicalRecords(ctx context.Context) ([]*MedicalRecord, error)

	SavePersons(ctx context.Context, persons []*Person) error
	SaveEncounters(ctx context.Context, encounters []*Encounter) error
	SaveObservations(ctx context.Context, observations []*Observation) error
	SaveTreatments(ctx context.Context, treatments []*Treatment) error
	SaveDiseases(ctx context.Context, diseases []*Disease) error
	SaveMedicalRecords(ctx context.Context, records []*MedicalRecord) error
}
