// Package index joins MIMIC-IV tables into an immutable patient and
// admission index.
package index

import "chartindex/codes"

// Index maps subject and admission ids to their records. It is never
// modified after Build and is safe for concurrent readers.
type Index struct {
	sessionID  string
	patients   map[int64]*PatientRecord
	admissions map[int64]*AdmissionRecord
	subjectIDs []int64
	diagnoses  []*DiagnosisEntry
	codes      *codes.Lookup
	labItems   *codes.LabItems
	warnings   []DataQualityWarning
}

// Patient returns the record for subjectID.
func (idx *Index) Patient(subjectID int64) (*PatientRecord, error) {
	p, ok := idx.patients[subjectID]
	if !ok {
		return nil, &NotFoundError{Kind: "patient", ID: subjectID}
	}
	return p, nil
}

// Admission returns the record for hadmID.
func (idx *Index) Admission(hadmID int64) (*AdmissionRecord, error) {
	a, ok := idx.admissions[hadmID]
	if !ok {
		return nil, &NotFoundError{Kind: "admission", ID: hadmID}
	}
	return a, nil
}

// SubjectIDs returns the indexed subject ids in ascending order.
func (idx *Index) SubjectIDs() []int64 {
	return append([]int64(nil), idx.subjectIDs...)
}

// Patients returns every patient ordered by subject id.
func (idx *Index) Patients() []*PatientRecord {
	out := make([]*PatientRecord, len(idx.subjectIDs))
	for i, id := range idx.subjectIDs {
		out[i] = idx.patients[id]
	}
	return out
}

// Len returns the number of indexed patients.
func (idx *Index) Len() int { return len(idx.patients) }

// AdmissionCount returns the number of indexed admissions.
func (idx *Index) AdmissionCount() int { return len(idx.admissions) }

// Diagnoses returns every indexed diagnosis in source table order.
func (idx *Index) Diagnoses() []*DiagnosisEntry { return idx.diagnoses }

// Codes returns the ICD lookup the index was built with.
func (idx *Index) Codes() *codes.Lookup { return idx.codes }

// LabItems returns the lab item dictionary.
func (idx *Index) LabItems() *codes.LabItems { return idx.labItems }

// Warnings returns the data-quality warnings raised while building.
func (idx *Index) Warnings() []DataQualityWarning {
	return append([]DataQualityWarning(nil), idx.warnings...)
}

// SessionID identifies this build.
func (idx *Index) SessionID() string { return idx.sessionID }
