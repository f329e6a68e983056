package index

import "time"

// PatientRecord is one subject and its admissions ordered by admit time,
// ties broken by admission id.
type PatientRecord struct {
	SubjectID       int64
	Gender          string
	AnchorAge       int
	AnchorYear      *int
	AnchorYearGroup string
	DateOfDeath     *time.Time
	Admissions      []*AdmissionRecord
}

// AdmissionRecord is one hospital encounter. The event slices are never nil;
// an admission without rows in a table has an empty slice.
type AdmissionRecord struct {
	HadmID            int64
	SubjectID         int64
	AdmitTime         *time.Time
	DischargeTime     *time.Time
	DeathTime         *time.Time
	AdmissionType     string
	AdmissionLocation string
	DischargeLocation string
	Insurance         string
	Race              string

	Diagnoses     []*DiagnosisEntry
	Procedures    []*ProcedureEntry
	Prescriptions []*PrescriptionEntry
	LabEvents     []*LabEvent
	Microbiology  []*MicrobiologyEvent
}

// DiagnosisEntry is a diagnoses_icd row with its resolved description.
type DiagnosisEntry struct {
	SubjectID   int64
	HadmID      int64
	SeqNum      int
	Code        string
	Version     int
	Description string
}

// ProcedureEntry is a procedures_icd row with its resolved description.
type ProcedureEntry struct {
	SubjectID   int64
	HadmID      int64
	SeqNum      int
	ChartDate   *time.Time
	Code        string
	Version     int
	Description string
}

// LabEvent is a labevents row with its d_labitems label and category.
// Flag is empty when the source has none.
type LabEvent struct {
	SubjectID int64
	HadmID    int64
	ItemID    int64
	Label     string
	Category  string
	ChartTime *time.Time
	Value     string
	ValueNum  *float64
	Unit      string
	RefLow    *float64
	RefHigh   *float64
	Flag      string
	Priority  string
	Comments  string
}

// MicrobiologyEvent is a microbiologyevents row: one specimen test, and
// when an organism grew, one organism/antibiotic susceptibility result.
type MicrobiologyEvent struct {
	SubjectID      int64
	HadmID         int64
	MicroEventID   int64
	ChartDate      *time.Time
	ChartTime      *time.Time
	Specimen       string
	Test           string
	Organism       string
	Antibiotic     string
	Dilution       string
	Interpretation string
	Comments       string
}

// PrescriptionEntry is a prescriptions row.
type PrescriptionEntry struct {
	SubjectID   int64
	HadmID      int64
	Drug        string
	Form        string
	Dose        string
	DoseUnit    string
	Route       string
	DosesPer24h *float64
	Start       *time.Time
	Stop        *time.Time
}

// IsOngoing reports whether the prescription has no stop time.
func (p *PrescriptionEntry) IsOngoing() bool {
	return p.Stop == nil
}
