// Package intake turns flat survey rows into draft clinical records.
//
// The column vocabulary is fixed: unknown columns are ignored, and a known
// column missing from the export is treated as absent for every row. Each
// field is tri-state: present with a value, absent (blank or missing, kept
// as nil, never ""), or malformed and discarded (an unparseable numeric is
// dropped without failing the row).
package intake

import (
	"strconv"
	"strings"
)

// Row is one input row keyed by column name, as produced by the tabular
// reader or the survey-platform client.
type Row map[string]string

// Known columns of the survey export.
const (
	ColPatientName    = "patient_name"
	ColAge            = "age"
	ColSex            = "sex"
	ColPhone          = "phone"
	ColVillage        = "village"
	ColRegNumber      = "reg_number"
	ColAssessmentDate = "assessment_date"
	ColDiagnosis      = "diagnosis"
	ColSummary        = "summary"
	ColNextReview     = "next_review"

	ColPulseRate   = "pulse_rate"
	ColBPSystolic  = "bp_systol"
	ColBPDiastolic = "bp_diastol"
	ColTemperature = "temperature"
	ColRespRate    = "resp_rate"

	ColGeneralAssessment = "general_assessment"
	ColCachexia          = "cachexia"
	ColJaundice          = "jaundice"
	ColPallor            = "pallor"
	ColBodyWasting       = "body_wasting"
	ColLOC               = "loc"
	ColOrientation       = "orientation"

	ColMedName       = "med_name"
	ColDose          = "dose"
	ColIndication    = "indication"
	ColDateCompleted = "date_completed"
	ColNotePhysician = "note_physician"
	ColSeenBy        = "seen_by"
)

// text returns the trimmed value of a column, or nil when the column is
// missing or blank.
func (r Row) text(col string) *string {
	v, ok := r[col]
	if !ok {
		return nil
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

// lower returns the trimmed, lower-cased value, or nil when absent.
func (r Row) lower(col string) *string {
	v := r.text(col)
	if v == nil {
		return nil
	}
	s := strings.ToLower(*v)
	return &s
}

// upper returns the trimmed, upper-cased value, or nil when absent.
func (r Row) upper(col string) *string {
	v := r.text(col)
	if v == nil {
		return nil
	}
	s := strings.ToUpper(*v)
	return &s
}

// intVal parses a column as an integer. A malformed value is discarded, not
// an error: no row is ever dropped because one field failed to parse.
// Fractional exports of whole numbers ("72.0") are accepted.
func (r Row) intVal(col string) *int {
	v := r.text(col)
	if v == nil {
		return nil
	}
	if n, err := strconv.Atoi(*v); err == nil {
		return &n
	}
	if f, err := strconv.ParseFloat(*v, 64); err == nil {
		n := int(f)
		return &n
	}
	return nil
}

// floatVal parses a column as a float. Malformed values are discarded.
func (r Row) floatVal(col string) *float64 {
	v := r.text(col)
	if v == nil {
		return nil
	}
	f, err := strconv.ParseFloat(*v, 64)
	if err != nil {
		return nil
	}
	return &f
}
