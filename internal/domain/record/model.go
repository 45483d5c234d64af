package record

import (
	"time"

	"github.com/google/uuid"
)

// Well-known role_data keys. The map is open: rows may contribute keys
// beyond these, and a merge carries them forward.
const (
	RoleRegistrationNumber = "registration_number"
	RoleEnrollmentDate     = "enrollment_date"
	RoleStatus             = "status"
)

// Contact holds a person's phone numbers. Absent values are nil, never "".
type Contact struct {
	PhonePrimary   *string `json:"phone_primary"`
	PhoneSecondary *string `json:"phone_secondary"`
}

// Address holds a person's location fields.
type Address struct {
	Village   *string `json:"village"`
	Subcounty *string `json:"subcounty"`
	District  *string `json:"district"`
	Country   *string `json:"country"`
}

// Person is the demographic identity record. It is the only mutable kind:
// a duplicate detection updates the stored record in place.
type Person struct {
	ID         uuid.UUID         `json:"person_id"`
	PersonType string            `json:"person_type"`
	Name       *string           `json:"name"`
	Age        *int              `json:"age"`
	Sex        *string           `json:"sex"`
	Contact    Contact           `json:"contact"`
	Address    Address           `json:"address"`
	RoleData   map[string]string `json:"role_data"`
	IsActive   bool              `json:"is_active"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// RegistrationNumber returns the person's registration number, or "" when
// none was captured.
func (p *Person) RegistrationNumber() string {
	if p.RoleData == nil {
		return ""
	}
	return p.RoleData[RoleRegistrationNumber]
}

// Clone returns a deep copy so merge computation never mutates the loaded
// collection while it is being scanned.
func (p *Person) Clone() *Person {
	c := *p
	c.Name = cloneStr(p.Name)
	c.Age = cloneInt(p.Age)
	c.Sex = cloneStr(p.Sex)
	c.Contact.PhonePrimary = cloneStr(p.Contact.PhonePrimary)
	c.Contact.PhoneSecondary = cloneStr(p.Contact.PhoneSecondary)
	c.Address.Village = cloneStr(p.Address.Village)
	c.Address.Subcounty = cloneStr(p.Address.Subcounty)
	c.Address.District = cloneStr(p.Address.District)
	c.Address.Country = cloneStr(p.Address.Country)
	if p.RoleData != nil {
		c.RoleData = make(map[string]string, len(p.RoleData))
		for k, v := range p.RoleData {
			c.RoleData[k] = v
		}
	}
	return &c
}

// Encounter is one visit/assessment event. Immutable once created; repeated
// visits by the same person produce new encounters, never merges.
type Encounter struct {
	ID                uuid.UUID         `json:"encounter_id"`
	PatientID         uuid.UUID         `json:"patient_id"`
	EncounterType     string            `json:"encounter_type"`
	EncounterDate     *string           `json:"encounter_date"`
	EncounterTime     *string           `json:"encounter_time"`
	DurationMinutes   *int              `json:"duration_minutes"`
	StaffID           *uuid.UUID        `json:"staff_id"`
	LocationType      string            `json:"location_type"`
	LocationDetails   *string           `json:"location_details"`
	ChiefComplaint    *string           `json:"chief_complaint"`
	AssessmentSummary *string           `json:"assessment_summary"`
	Plan              *string           `json:"plan"`
	NextVisitDate     *string           `json:"next_visit_date"`
	Status            string            `json:"status"`
	FormData          map[string]string `json:"form_data"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// Observation types and categories emitted by the intake mapper.
const (
	ObservationVitalSign   = "vital_sign"
	ObservationExamFinding = "physical_exam_finding"
	ObservationScore       = "assessment_score"
	CategoryCardiovascular = "cardiovascular"
	CategoryGeneral        = "general"
	CategoryNeurological   = "neurological"
)

// ObservationValue is the union of value shapes an observation can carry:
// the composite vital-signs bundle, a physical-exam finding, or a
// neurological score. Exactly the fields that were present in the source row
// are set; everything else stays nil and is omitted from JSON.
type ObservationValue struct {
	HeartRate       *int     `json:"heart_rate,omitempty"`
	BPSystolic      *int     `json:"blood_pressure_systolic,omitempty"`
	BPDiastolic     *int     `json:"blood_pressure_diastolic,omitempty"`
	Temperature     *float64 `json:"temperature,omitempty"`
	RespiratoryRate *int     `json:"respiratory_rate,omitempty"`
	Finding         *string  `json:"finding,omitempty"`
	Level           *string  `json:"level,omitempty"`
	Status          *string  `json:"status,omitempty"`
}

// HasVitals reports whether at least one vital-sign component is present.
func (v ObservationValue) HasVitals() bool {
	return v.HeartRate != nil || v.BPSystolic != nil || v.BPDiastolic != nil ||
		v.Temperature != nil || v.RespiratoryRate != nil
}

// Observation is one measured or recorded clinical fact. Append-only:
// repeated observations of the same kind for the same person are expected
// time-series points, never merged.
type Observation struct {
	ID              uuid.UUID        `json:"observation_id"`
	PatientID       uuid.UUID        `json:"patient_id"`
	EncounterID     uuid.UUID        `json:"encounter_id"`
	ObservationType string           `json:"observation_type"`
	Category        string           `json:"observation_category"`
	Name            string           `json:"observation_name"`
	Value           ObservationValue `json:"value"`
	ObservationDate *string          `json:"observation_date"`
	RecordedBy      *uuid.UUID       `json:"recorded_by"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// TreatmentDetails carries the medication specifics captured on the form.
type TreatmentDetails struct {
	GenericName string  `json:"generic_name"`
	Dosage      *string `json:"dosage"`
	Indication  *string `json:"indication"`
}

// Treatment is one medication/treatment record. Append-only.
type Treatment struct {
	ID          uuid.UUID        `json:"treatment_id"`
	PatientID   uuid.UUID        `json:"patient_id"`
	EncounterID uuid.UUID        `json:"encounter_id"`
	Type        string           `json:"treatment_type"`
	Name        string           `json:"treatment_name"`
	Category    string           `json:"treatment_category"`
	Details     TreatmentDetails `json:"details"`
	StartDate   *string          `json:"start_date"`
	EndDate     *string          `json:"end_date"`
	Status      string           `json:"status"`
	Notes       *string          `json:"notes"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// Disease is one diagnosis. Append-only: a repeated diagnosis is a distinct
// clinical event, not an update of the earlier one.
type Disease struct {
	ID              uuid.UUID  `json:"disease_id"`
	PatientID       uuid.UUID  `json:"patient_id"`
	MedicalRecordID *uuid.UUID `json:"medical_record_id"`
	EncounterID     uuid.UUID  `json:"encounter_id"`
	Category        string     `json:"disease_category"`
	Name            string     `json:"disease_name"`
	ICD10Code       *string    `json:"icd10_code"`
	DiagnosisDate   *string    `json:"diagnosis_date"`
	DiagnosedBy     *uuid.UUID `json:"diagnosed_by"`
	Status          string     `json:"status"`
	Severity        *string    `json:"severity"`
	Prognosis       *string    `json:"prognosis"`
	Notes           *string    `json:"notes"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// RecordContent is the structured body of a clinical note.
type RecordContent struct {
	Note   string  `json:"note"`
	SeenBy *string `json:"seen_by"`
}

// MedicalRecord is one free-text clinical note. Append-only.
type MedicalRecord struct {
	ID          uuid.UUID     `json:"record_id"`
	PatientID   uuid.UUID     `json:"patient_id"`
	EncounterID uuid.UUID     `json:"encounter_id"`
	RecordType  string        `json:"record_type"`
	RecordDate  *string       `json:"record_date"`
	RecordTime  *string       `json:"record_time"`
	Title       string        `json:"title"`
	Summary     string        `json:"summary"`
	Content     RecordContent `json:"content"`
	AuthorID    *uuid.UUID    `json:"author_id"`
	Status      string        `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// Batch groups the drafts produced from one input dataset: every entity the
// row mapper emitted, all referencing identifiers generated in this run.
type Batch struct {
	Persons        []*Person
	Encounters     []*Encounter
	Observations   []*Observation
	Treatments     []*Treatment
	Diseases       []*Disease
	MedicalRecords []*MedicalRecord
}

// Append merges another batch into this one, preserving order. Used when a
// dataset is mapped row by row.
func (b *Batch) Append(other *Batch) {
	b.Persons = append(b.Persons, other.Persons...)
	b.Encounters = append(b.Encounters, other.Encounters...)
	b.Observations = append(b.Observations, other.Observations...)
	b.Treatments = append(b.Treatments, other.Treatments...)
	b.Diseases = append(b.Diseases, other.Diseases...)
	b.MedicalRecords = append(b.MedicalRecords, other.MedicalRecords...)
}

func cloneStr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneInt(i *int) *int {
	if i == nil {
		return nil
	}
	v := *i
	return &v
}
