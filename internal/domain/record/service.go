package record

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// MergePlan is the fully computed outcome of reconciling one batch against
// the stored person collection. It is built before anything is persisted, so
// every foreign-key rewrite in the batch uses the same remap table.
type MergePlan struct {
	// NewPersons are drafts that matched nothing on file.
	NewPersons []*Person
	// Persons is the rebuilt stored collection: original order preserved,
	// matched records replaced with their updated copies.
	Persons []*Person
	// Remap maps a matched draft's generated identifier to the stored
	// identifier it resolved to.
	Remap map[uuid.UUID]uuid.UUID
	// Updated counts stored persons refreshed by at least one draft.
	Updated int
}

// MergeResult reports what one merge operation persisted.
type MergeResult struct {
	NewPersons     int
	UpdatedPersons int
	Encounters     int
	Observations   int
	Treatments     int
	Diseases       int
	MedicalRecords int
}

// BuildMergePlan matches every draft person against the stored snapshot and
// computes updates as a pure transformation: the snapshot itself is never
// mutated, and matching always runs against the state as it was loaded.
// When several drafts match the same stored person, their field updates are
// applied in batch order (last write wins per field).
func BuildMergePlan(drafts []*Person, existing []*Person, matcher Matcher, now time.Time) *MergePlan {
	plan := &MergePlan{
		Remap: make(map[uuid.UUID]uuid.UUID),
	}

	updates := make(map[uuid.UUID]*Person)
	for _, draft := range drafts {
		matched := matcher.Match(draft, existing)
		if matched == nil {
			plan.NewPersons = append(plan.NewPersons, draft)
			continue
		}
		plan.Remap[draft.ID] = matched.ID
		target, ok := updates[matched.ID]
		if !ok {
			target = matched.Clone()
			updates[matched.ID] = target
		}
		mergePersonFields(target, draft, now)
	}

	plan.Persons = make([]*Person, len(existing))
	for i, p := range existing {
		if updated, ok := updates[p.ID]; ok {
			plan.Persons[i] = updated
		} else {
			plan.Persons[i] = p
		}
	}
	plan.Updated = len(updates)
	return plan
}

// mergePersonFields refreshes a stored person's mutable fields from a draft.
// A field is only overwritten when the draft supplies a value; role data is
// shallow-merged key by key, never replaced wholesale.
func mergePersonFields(target, draft *Person, now time.Time) {
	if hasValue(draft.Contact.PhonePrimary) {
		target.Contact.PhonePrimary = cloneStr(draft.Contact.PhonePrimary)
	}
	if hasValue(draft.Contact.PhoneSecondary) {
		target.Contact.PhoneSecondary = cloneStr(draft.Contact.PhoneSecondary)
	}
	if hasValue(draft.Address.Village) {
		target.Address.Village = cloneStr(draft.Address.Village)
	}
	if hasValue(draft.Address.Subcounty) {
		target.Address.Subcounty = cloneStr(draft.Address.Subcounty)
	}
	if hasValue(draft.Address.District) {
		target.Address.District = cloneStr(draft.Address.District)
	}
	if draft.Age != nil && (target.Age == nil || *target.Age != *draft.Age) {
		target.Age = cloneInt(draft.Age)
	}
	if len(draft.RoleData) > 0 {
		if target.RoleData == nil {
			target.RoleData = make(map[string]string, len(draft.RoleData))
		}
		for k, v := range draft.RoleData {
			target.RoleData[k] = v
		}
	}
	target.UpdatedAt = now
}

// ApplyRemap rewrites every person reference in the batch through the remap
// table. References not present in the table already point at persons
// created in this same batch and are left untouched.
func ApplyRemap(batch *Batch, remap map[uuid.UUID]uuid.UUID) {
	if len(remap) == 0 {
		return
	}
	for _, e := range batch.Encounters {
		if id, ok := remap[e.PatientID]; ok {
			e.PatientID = id
		}
	}
	for _, o := range batch.Observations {
		if id, ok := remap[o.PatientID]; ok {
			o.PatientID = id
		}
	}
	for _, t := range batch.Treatments {
		if id, ok := remap[t.PatientID]; ok {
			t.PatientID = id
		}
	}
	for _, d := range batch.Diseases {
		if id, ok := remap[d.PatientID]; ok {
			d.PatientID = id
		}
	}
	for _, r := range batch.MedicalRecords {
		if id, ok := remap[r.PatientID]; ok {
			r.PatientID = id
		}
	}
}

// Service is the merge engine: it reconciles a batch of drafts against the
// record base and persists the result. One call processes one dataset end to
// end; concurrent calls against the same store location are not supported.
type Service struct {
	store   Store
	matcher Matcher
	log     zerolog.Logger
	now     func() time.Time
}

func NewService(store Store, matcher Matcher, log zerolog.Logger) *Service {
	return &Service{
		store:   store,
		matcher: matcher,
		log:     log,
		now:     time.Now,
	}
}

// SetClock overrides the merge timestamp source. Used in tests.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// Merge loads the record base, reconciles the batch against it, rewrites
// person references, and persists all six collections. Persons are updated
// or appended; every other kind is appended unconditionally.
func (s *Service) Merge(ctx context.Context, batch *Batch) (*MergeResult, error) {
	existingPersons, err := s.store.LoadPersons(ctx)
	if err != nil {
		return nil, fmt.Errorf("load persons: %w", err)
	}
	existingEncounters, err := s.store.LoadEncounters(ctx)
	if err != nil {
		return nil, fmt.Errorf("load encounters: %w", err)
	}
	existingObservations, err := s.store.LoadObservations(ctx)
	if err != nil {
		return nil, fmt.Errorf("load observations: %w", err)
	}
	existingTreatments, err := s.store.LoadTreatments(ctx)
	if err != nil {
		return nil, fmt.Errorf("load treatments: %w", err)
	}
	existingDiseases, err := s.store.LoadDiseases(ctx)
	if err != nil {
		return nil, fmt.Errorf("load diseases: %w", err)
	}
	existingRecords, err := s.store.LoadMedicalRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("load medical records: %w", err)
	}

	plan := BuildMergePlan(batch.Persons, existingPersons, s.matcher, s.now())
	if len(plan.Remap) > 0 {
		s.log.Info().Int("duplicates", len(plan.Remap)).Msg("remapping person references for matched drafts")
	}
	ApplyRemap(batch, plan.Remap)

	// Persons first: a crash mid-save then leaves dependents unsaved rather
	// than dangling. Recovery is a re-run from the original input.
	if err := s.store.SavePersons(ctx, append(plan.Persons, plan.NewPersons...)); err != nil {
		return nil, fmt.Errorf("save persons: %w", err)
	}
	if err := s.store.SaveEncounters(ctx, append(existingEncounters, batch.Encounters...)); err != nil {
		return nil, fmt.Errorf("save encounters: %w", err)
	}
	if err := s.store.SaveObservations(ctx, append(existingObservations, batch.Observations...)); err != nil {
		return nil, fmt.Errorf("save observations: %w", err)
	}
	if err := s.store.SaveTreatments(ctx, append(existingTreatments, batch.Treatments...)); err != nil {
		return nil, fmt.Errorf("save treatments: %w", err)
	}
	if err := s.store.SaveDiseases(ctx, append(existingDiseases, batch.Diseases...)); err != nil {
		return nil, fmt.Errorf("save diseases: %w", err)
	}
	if err := s.store.SaveMedicalRecords(ctx, append(existingRecords, batch.MedicalRecords...)); err != nil {
		return nil, fmt.Errorf("save medical records: %w", err)
	}

	result := &MergeResult{
		NewPersons:     len(plan.NewPersons),
		UpdatedPersons: plan.Updated,
		Encounters:     len(batch.Encounters),
		Observations:   len(batch.Observations),
		Treatments:     len(batch.Treatments),
		Diseases:       len(batch.Diseases),
		MedicalRecords: len(batch.MedicalRecords),
	}
	s.log.Info().
		Int("persons_new", result.NewPersons).
		Int("persons_updated", result.UpdatedPersons).
		Int("encounters", result.Encounters).
		Int("observations", result.Observations).
		Int("treatments", result.Treatments).
		Int("diseases", result.Diseases).
		Int("medical_records", result.MedicalRecords).
		Msg("merge complete")
	return result, nil
}

func hasValue(s *string) bool {
	return s != nil && *s != ""
}
