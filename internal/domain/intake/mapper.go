package intake

import (
	"time"

	"github.com/google/uuid"

	"github.com/datacarwash/datacarwash/internal/domain/record"
)

// Defaults applied to every mapped person.
const (
	defaultDistrict = "tororo"
	defaultCountry  = "uganda"
)

// examFields are the physical-exam columns that each produce one
// observation when present, in a fixed order for deterministic output.
var examFields = []string{
	ColGeneralAssessment,
	ColCachexia,
	ColJaundice,
	ColPallor,
	ColBodyWasting,
}

// Mapper converts input rows into draft entity batches with freshly
// generated identifiers.
type Mapper struct {
	now func() time.Time
}

func NewMapper() *Mapper {
	return &Mapper{now: time.Now}
}

// SetClock overrides the draft timestamp source. Used in tests.
func (m *Mapper) SetClock(now func() time.Time) { m.now = now }

// MapRows maps a full dataset, one batch per dataset.
func (m *Mapper) MapRows(rows []Row) *record.Batch {
	batch := &record.Batch{}
	for _, row := range rows {
		batch.Append(m.MapRow(row))
	}
	return batch
}

// MapRow turns one row into one person draft, one encounter draft, and the
// dependent drafts whose trigger fields are present. All drafts reference
// the same freshly generated person and encounter identifiers. A missing
// trigger field silently skips that entity kind; it is not an error.
func (m *Mapper) MapRow(row Row) *record.Batch {
	now := m.now()
	personID := uuid.New()
	encounterID := uuid.New()

	// Assessment date defaults to the processing date, matching the
	// enrollment date recorded on the person.
	encounterDate := row.text(ColAssessmentDate)
	if encounterDate == nil {
		d := now.Format("2006-01-02")
		encounterDate = &d
	}

	batch := &record.Batch{}
	batch.Persons = append(batch.Persons, m.mapPerson(row, personID, *encounterDate, now))
	batch.Encounters = append(batch.Encounters, m.mapEncounter(row, personID, encounterID, encounterDate, now))
	batch.Observations = append(batch.Observations, m.mapObservations(row, personID, encounterID, encounterDate, now)...)

	if diagnosis := row.lower(ColDiagnosis); diagnosis != nil {
		batch.Diseases = append(batch.Diseases, &record.Disease{
			ID:            uuid.New(),
			PatientID:     personID,
			EncounterID:   encounterID,
			Category:      "unspecified",
			Name:          *diagnosis,
			DiagnosisDate: encounterDate,
			Status:        "active",
			CreatedAt:     now,
			UpdatedAt:     now,
		})
	}

	if med := row.text(ColMedName); med != nil {
		batch.Treatments = append(batch.Treatments, &record.Treatment{
			ID:          uuid.New(),
			PatientID:   personID,
			EncounterID: encounterID,
			Type:        "medication",
			Name:        *med,
			Category:    "symptom_control",
			Details: record.TreatmentDetails{
				GenericName: *med,
				Dosage:      row.text(ColDose),
				Indication:  row.text(ColIndication),
			},
			StartDate: encounterDate,
			EndDate:   row.text(ColDateCompleted),
			Status:    "active",
			Notes:     row.text(ColNotePhysician),
			CreatedAt: now,
			UpdatedAt: now,
		})
	}

	if summary := row.text(ColSummary); summary != nil {
		batch.MedicalRecords = append(batch.MedicalRecords, &record.MedicalRecord{
			ID:          uuid.New(),
			PatientID:   personID,
			EncounterID: encounterID,
			RecordType:  "clinical_note",
			RecordDate:  encounterDate,
			Title:       "Assessment Summary",
			Summary:     *summary,
			Content: record.RecordContent{
				Note:   *summary,
				SeenBy: row.text(ColSeenBy),
			},
			Status:    "final",
			CreatedAt: now,
			UpdatedAt: now,
		})
	}

	return batch
}

func (m *Mapper) mapPerson(row Row, personID uuid.UUID, enrollmentDate string, now time.Time) *record.Person {
	district := defaultDistrict
	country := defaultCountry

	roleData := map[string]string{
		record.RoleEnrollmentDate: enrollmentDate,
		record.RoleStatus:         "active",
	}
	if reg := row.upper(ColRegNumber); reg != nil {
		roleData[record.RoleRegistrationNumber] = *reg
	}

	return &record.Person{
		ID:         personID,
		PersonType: "patient",
		Name:       row.lower(ColPatientName),
		Age:        row.intVal(ColAge),
		Sex:        row.lower(ColSex),
		Contact: record.Contact{
			PhonePrimary: row.text(ColPhone),
		},
		Address: record.Address{
			Village:  row.lower(ColVillage),
			District: &district,
			Country:  &country,
		},
		RoleData:  roleData,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (m *Mapper) mapEncounter(row Row, personID, encounterID uuid.UUID, encounterDate *string, now time.Time) *record.Encounter {
	// The raw row is kept verbatim as an audit trail.
	formData := make(map[string]string, len(row))
	for k, v := range row {
		formData[k] = v
	}

	return &record.Encounter{
		ID:                encounterID,
		PatientID:         personID,
		EncounterType:     "clinical_assessment",
		EncounterDate:     encounterDate,
		LocationType:      "clinic",
		ChiefComplaint:    row.text(ColDiagnosis),
		AssessmentSummary: row.text(ColSummary),
		Plan:              row.text(ColNextReview),
		NextVisitDate:     row.text(ColNextReview),
		Status:            "completed",
		FormData:          formData,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

func (m *Mapper) mapObservations(row Row, personID, encounterID uuid.UUID, encounterDate *string, now time.Time) []*record.Observation {
	var observations []*record.Observation

	// Vitals are bundled into one composite observation, emitted only when
	// at least one component is present.
	vitals := record.ObservationValue{
		HeartRate:       row.intVal(ColPulseRate),
		BPSystolic:      row.intVal(ColBPSystolic),
		BPDiastolic:     row.intVal(ColBPDiastolic),
		Temperature:     row.floatVal(ColTemperature),
		RespiratoryRate: row.intVal(ColRespRate),
	}
	if vitals.HasVitals() {
		observations = append(observations, &record.Observation{
			ID:              uuid.New(),
			PatientID:       personID,
			EncounterID:     encounterID,
			ObservationType: record.ObservationVitalSign,
			Category:        record.CategoryCardiovascular,
			Name:            "vital_signs",
			Value:           vitals,
			ObservationDate: encounterDate,
			CreatedAt:       now,
			UpdatedAt:       now,
		})
	}

	for _, col := range examFields {
		finding := row.text(col)
		if finding == nil {
			continue
		}
		observations = append(observations, &record.Observation{
			ID:              uuid.New(),
			PatientID:       personID,
			EncounterID:     encounterID,
			ObservationType: record.ObservationExamFinding,
			Category:        record.CategoryGeneral,
			Name:            col,
			Value:           record.ObservationValue{Finding: finding},
			ObservationDate: encounterDate,
			CreatedAt:       now,
			UpdatedAt:       now,
		})
	}

	if level := row.text(ColLOC); level != nil {
		observations = append(observations, &record.Observation{
			ID:              uuid.New(),
			PatientID:       personID,
			EncounterID:     encounterID,
			ObservationType: record.ObservationScore,
			Category:        record.CategoryNeurological,
			Name:            "level_of_consciousness",
			Value:           record.ObservationValue{Level: level},
			ObservationDate: encounterDate,
			CreatedAt:       now,
			UpdatedAt:       now,
		})
	}
	if status := row.text(ColOrientation); status != nil {
		observations = append(observations, &record.Observation{
			ID:              uuid.New(),
			PatientID:       personID,
			EncounterID:     encounterID,
			ObservationType: record.ObservationScore,
			Category:        record.CategoryNeurological,
			Name:            "orientation",
			Value:           record.ObservationValue{Status: status},
			ObservationDate: encounterDate,
			CreatedAt:       now,
			UpdatedAt:       now,
		})
	}

	return observations
}
