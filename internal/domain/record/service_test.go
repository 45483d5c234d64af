package record

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// -- Mock Store --

type mockStore struct {
	persons        []*Person
	encounters     []*Encounter
	observations   []*Observation
	treatments     []*Treatment
	diseases       []*Disease
	medicalRecords []*MedicalRecord
}

func (m *mockStore) LoadPersons(_ context.Context) ([]*Person, error)       { return m.persons, nil }
func (m *mockStore) LoadEncounters(_ context.Context) ([]*Encounter, error) { return m.encounters, nil }
func (m *mockStore) LoadObservations(_ context.Context) ([]*Observation, error) {
	return m.observations, nil
}
func (m *mockStore) LoadTreatments(_ context.Context) ([]*Treatment, error) { return m.treatments, nil }
func (m *mockStore) LoadDiseases(_ context.Context) ([]*Disease, error)     { return m.diseases, nil }
func (m *mockStore) LoadMedicalRecords(_ context.Context) ([]*MedicalRecord, error) {
	return m.medicalRecords, nil
}

func (m *mockStore) SavePersons(_ context.Context, persons []*Person) error {
	m.persons = persons
	return nil
}
func (m *mockStore) SaveEncounters(_ context.Context, encounters []*Encounter) error {
	m.encounters = encounters
	return nil
}
func (m *mockStore) SaveObservations(_ context.Context, observations []*Observation) error {
	m.observations = observations
	return nil
}
func (m *mockStore) SaveTreatments(_ context.Context, treatments []*Treatment) error {
	m.treatments = treatments
	return nil
}
func (m *mockStore) SaveDiseases(_ context.Context, diseases []*Disease) error {
	m.diseases = diseases
	return nil
}
func (m *mockStore) SaveMedicalRecords(_ context.Context, records []*MedicalRecord) error {
	m.medicalRecords = records
	return nil
}

func newTestService(store Store) *Service {
	svc := NewService(store, NewLinearMatcher(), zerolog.Nop())
	svc.SetClock(func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) })
	return svc
}

func strPtr(s string) *string { return &s }

func draftBatch(p *Person) *Batch {
	enc := &Encounter{
		ID:            uuid.New(),
		PatientID:     p.ID,
		EncounterType: "clinical_assessment",
		Status:        "completed",
	}
	return &Batch{
		Persons:    []*Person{p},
		Encounters: []*Encounter{enc},
	}
}

func TestMerge_FirstRun(t *testing.T) {
	store := &mockStore{}
	svc := newTestService(store)

	draft := testPerson("jane doe", "a", "REG1", intPtr(40))
	result, err := svc.Merge(context.Background(), draftBatch(draft))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.NewPersons != 1 || result.UpdatedPersons != 0 {
		t.Fatalf("result = %+v, want 1 new / 0 updated", result)
	}
	if len(store.persons) != 1 || len(store.encounters) != 1 {
		t.Fatalf("persisted %d persons / %d encounters, want 1/1", len(store.persons), len(store.encounters))
	}
	if store.encounters[0].PatientID != draft.ID {
		t.Fatal("encounter does not reference the new person")
	}
}

func TestMerge_StrongMatchIdempotence(t *testing.T) {
	store := &mockStore{}
	svc := newTestService(store)
	ctx := context.Background()

	first := testPerson("jane doe", "a", "REG1", intPtr(40))
	if _, err := svc.Merge(ctx, draftBatch(first)); err != nil {
		t.Fatalf("first merge: %v", err)
	}
	originalID := store.persons[0].ID

	second := testPerson("Jane Doe", "a", "REG1", intPtr(40))
	second.Contact.PhonePrimary = strPtr("555-1111")
	result, err := svc.Merge(ctx, draftBatch(second))
	if err != nil {
		t.Fatalf("second merge: %v", err)
	}

	if result.NewPersons != 0 || result.UpdatedPersons != 1 {
		t.Fatalf("result = %+v, want 0 new / 1 updated", result)
	}
	if len(store.persons) != 1 {
		t.Fatalf("person collection has %d entries, want exactly 1", len(store.persons))
	}
	merged := store.persons[0]
	if merged.ID != originalID {
		t.Fatal("person identifier changed across merges")
	}
	if merged.Contact.PhonePrimary == nil || *merged.Contact.PhonePrimary != "555-1111" {
		t.Fatalf("phone = %v, want 555-1111", merged.Contact.PhonePrimary)
	}
	if len(store.encounters) != 2 {
		t.Fatalf("encounter collection has %d entries, want 2", len(store.encounters))
	}
	// Both encounters must reference the surviving identity.
	for _, e := range store.encounters {
		if e.PatientID != originalID {
			t.Fatalf("encounter references %s, want %s", e.PatientID, originalID)
		}
	}
}

func TestMerge_WeakMatchUpdatesExisting(t *testing.T) {
	store := &mockStore{}
	svc := newTestService(store)
	ctx := context.Background()

	existing := testPerson("john smith", "b", "REG9", intPtr(30))
	if _, err := svc.Merge(ctx, draftBatch(existing)); err != nil {
		t.Fatalf("seed merge: %v", err)
	}
	originalID := store.persons[0].ID

	// No registration number this time; only name+village+age line up.
	draft := testPerson("John Smith", "B", "", intPtr(30))
	result, err := svc.Merge(ctx, draftBatch(draft))
	if err != nil {
		t.Fatalf("merge: %v", err)
	}

	if result.NewPersons != 0 || result.UpdatedPersons != 1 {
		t.Fatalf("result = %+v, want weak match to update in place", result)
	}
	if len(store.persons) != 1 || store.persons[0].ID != originalID {
		t.Fatal("weak match created a second identity")
	}
}

func TestMerge_ReferentialIntegrity(t *testing.T) {
	store := &mockStore{}
	svc := newTestService(store)
	ctx := context.Background()

	// Two merges with an overlapping person and full dependent sets.
	for i := 0; i < 2; i++ {
		p := testPerson("jane doe", "a", "REG1", intPtr(40))
		batch := draftBatch(p)
		encID := batch.Encounters[0].ID
		batch.Observations = []*Observation{{
			ID: uuid.New(), PatientID: p.ID, EncounterID: encID,
			ObservationType: ObservationVitalSign, Name: "vital_signs",
		}}
		batch.Treatments = []*Treatment{{
			ID: uuid.New(), PatientID: p.ID, EncounterID: encID,
			Type: "medication", Name: "morphine",
		}}
		batch.Diseases = []*Disease{{
			ID: uuid.New(), PatientID: p.ID, EncounterID: encID,
			Name: "cancer", Status: "active",
		}}
		batch.MedicalRecords = []*MedicalRecord{{
			ID: uuid.New(), PatientID: p.ID, EncounterID: encID,
			RecordType: "clinical_note", Summary: "stable",
		}}
		if _, err := svc.Merge(ctx, batch); err != nil {
			t.Fatalf("merge: %v", err)
		}
	}

	known := make(map[uuid.UUID]bool, len(store.persons))
	for _, p := range store.persons {
		known[p.ID] = true
	}
	for _, e := range store.encounters {
		if !known[e.PatientID] {
			t.Fatalf("dangling encounter reference %s", e.PatientID)
		}
	}
	for _, o := range store.observations {
		if !known[o.PatientID] {
			t.Fatalf("dangling observation reference %s", o.PatientID)
		}
	}
	for _, tr := range store.treatments {
		if !known[tr.PatientID] {
			t.Fatalf("dangling treatment reference %s", tr.PatientID)
		}
	}
	for _, d := range store.diseases {
		if !known[d.PatientID] {
			t.Fatalf("dangling disease reference %s", d.PatientID)
		}
	}
	for _, r := range store.medicalRecords {
		if !known[r.PatientID] {
			t.Fatalf("dangling medical record reference %s", r.PatientID)
		}
	}
}

func TestMerge_AppendInvariant(t *testing.T) {
	store := &mockStore{}
	svc := newTestService(store)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		p := testPerson("jane doe", "a", "REG1", intPtr(40))
		batch := draftBatch(p)
		batch.Diseases = []*Disease{{
			ID: uuid.New(), PatientID: p.ID, EncounterID: batch.Encounters[0].ID,
			Name: "cancer", Status: "active",
		}}
		if _, err := svc.Merge(ctx, batch); err != nil {
			t.Fatalf("merge %d: %v", i, err)
		}

		// Every non-person collection grows by exactly its batch size.
		if len(store.encounters) != i+1 {
			t.Fatalf("after merge %d: %d encounters, want %d", i, len(store.encounters), i+1)
		}
		if len(store.diseases) != i+1 {
			t.Fatalf("after merge %d: %d diseases, want %d", i, len(store.diseases), i+1)
		}
	}
	if len(store.persons) != 1 {
		t.Fatalf("%d persons, want 1", len(store.persons))
	}
}

func TestBuildMergePlan_FieldPolicy(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	matcher := NewLinearMatcher()

	existing := testPerson("jane doe", "a", "REG1", intPtr(40))
	existing.Contact.PhonePrimary = strPtr("555-0000")
	existing.Address.Subcounty = strPtr("west")
	existing.RoleData[RoleStatus] = "active"
	existing.UpdatedAt = now.Add(-time.Hour)

	t.Run("present draft values overwrite", func(t *testing.T) {
		draft := testPerson("jane doe", "newvillage", "REG1", intPtr(41))
		draft.Contact.PhonePrimary = strPtr("555-1111")
		draft.RoleData["status"] = "discharged"
		draft.RoleData["next_of_kin"] = "peter"

		plan := BuildMergePlan([]*Person{draft}, []*Person{existing}, matcher, now)
		if len(plan.Persons) != 1 || plan.Updated != 1 {
			t.Fatalf("plan = %+v, want one updated person", plan)
		}
		got := plan.Persons[0]
		if *got.Contact.PhonePrimary != "555-1111" {
			t.Errorf("phone = %q, want overwritten", *got.Contact.PhonePrimary)
		}
		if *got.Address.Village != "newvillage" {
			t.Errorf("village = %q, want overwritten", *got.Address.Village)
		}
		if *got.Age != 41 {
			t.Errorf("age = %d, want 41", *got.Age)
		}
		// Role data is merged key by key, never replaced wholesale.
		if got.RoleData["status"] != "discharged" {
			t.Errorf("status = %q, want overwritten", got.RoleData["status"])
		}
		if got.RoleData["next_of_kin"] != "peter" {
			t.Error("new role key was not added")
		}
		if got.RoleData[RoleRegistrationNumber] != "REG1" {
			t.Error("existing role key was lost")
		}
		if !got.UpdatedAt.Equal(now) {
			t.Errorf("updated_at = %v, want refreshed to %v", got.UpdatedAt, now)
		}
	})

	t.Run("absent draft values leave stored fields alone", func(t *testing.T) {
		draft := testPerson("jane doe", "", "REG1", nil)
		plan := BuildMergePlan([]*Person{draft}, []*Person{existing}, matcher, now)
		got := plan.Persons[0]
		if *got.Contact.PhonePrimary != "555-0000" {
			t.Errorf("phone = %q, want untouched", *got.Contact.PhonePrimary)
		}
		if *got.Address.Subcounty != "west" {
			t.Errorf("subcounty = %q, want untouched", *got.Address.Subcounty)
		}
		if got.Age == nil || *got.Age != 40 {
			t.Errorf("age = %v, want untouched 40", got.Age)
		}
		if !got.UpdatedAt.Equal(now) {
			t.Error("updated_at must be refreshed on any match")
		}
	})

	t.Run("snapshot is never mutated", func(t *testing.T) {
		draft := testPerson("jane doe", "x", "REG1", intPtr(99))
		_ = BuildMergePlan([]*Person{draft}, []*Person{existing}, matcher, now)
		if *existing.Age != 40 || *existing.Address.Village != "a" {
			t.Fatal("merge plan mutated the loaded snapshot")
		}
	})
}

func TestBuildMergePlan_TwoDraftsSamePerson(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	existing := testPerson("jane doe", "a", "REG1", intPtr(40))

	first := testPerson("jane doe", "a", "REG1", intPtr(40))
	first.Contact.PhonePrimary = strPtr("555-1111")
	second := testPerson("jane doe", "a", "REG1", intPtr(40))
	second.Contact.PhonePrimary = strPtr("555-2222")

	plan := BuildMergePlan([]*Person{first, second}, []*Person{existing}, NewLinearMatcher(), now)

	if len(plan.NewPersons) != 0 {
		t.Fatalf("%d new persons, want 0", len(plan.NewPersons))
	}
	if plan.Updated != 1 {
		t.Fatalf("updated = %d, want 1", plan.Updated)
	}
	if len(plan.Remap) != 2 {
		t.Fatalf("remap has %d entries, want 2", len(plan.Remap))
	}
	// Last write wins per field, in batch order.
	if got := *plan.Persons[0].Contact.PhonePrimary; got != "555-2222" {
		t.Fatalf("phone = %q, want last draft's value", got)
	}
	for draftID, target := range plan.Remap {
		if target != existing.ID {
			t.Fatalf("remap[%s] = %s, want %s", draftID, target, existing.ID)
		}
	}
}

func TestApplyRemap(t *testing.T) {
	oldID, newID := uuid.New(), uuid.New()
	unrelated := uuid.New()
	remap := map[uuid.UUID]uuid.UUID{oldID: newID}

	batch := &Batch{
		Encounters:     []*Encounter{{PatientID: oldID}, {PatientID: unrelated}},
		Observations:   []*Observation{{PatientID: oldID}},
		Treatments:     []*Treatment{{PatientID: oldID}},
		Diseases:       []*Disease{{PatientID: oldID}},
		MedicalRecords: []*MedicalRecord{{PatientID: oldID}},
	}
	ApplyRemap(batch, remap)

	if batch.Encounters[0].PatientID != newID {
		t.Error("encounter reference not rewritten")
	}
	if batch.Encounters[1].PatientID != unrelated {
		t.Error("unmatched reference must stay untouched")
	}
	if batch.Observations[0].PatientID != newID {
		t.Error("observation reference not rewritten")
	}
	if batch.Treatments[0].PatientID != newID {
		t.Error("treatment reference not rewritten")
	}
	if batch.Diseases[0].PatientID != newID {
		t.Error("disease reference not rewritten")
	}
	if batch.MedicalRecords[0].PatientID != newID {
		t.Error("medical record reference not rewritten")
	}
}
