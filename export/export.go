// Package export renders index views as the JSON documents consumed by
// presentation layers.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"chartindex/extract"
	"chartindex/index"
)

// TimeLayout is the timestamp format of every exported time.
const TimeLayout = "2006-01-02T15:04:05"

// Lab status values.
const (
	StatusNormal   = "normal"
	StatusAbnormal = "abnormal"
)

// TimelineEvent is one timeline entry with its timestamp in TimeLayout.
type TimelineEvent struct {
	Timestamp string   `json:"timestamp"`
	Category  string   `json:"category"`
	Title     string   `json:"title"`
	Details   string   `json:"details"`
	Count     int      `json:"count"`
	Items     []string `json:"items"`
}

// LabResult is one lab event. Value is the numeric result when present,
// otherwise the text result, otherwise null.
type LabResult struct {
	Timestamp      *string `json:"timestamp"`
	Category       string  `json:"category"`
	TestName       string  `json:"test_name"`
	Value          any     `json:"value"`
	Status         string  `json:"status"`
	Unit           *string `json:"unit"`
	ReferenceRange *string `json:"reference_range"`
	Comments       string  `json:"comments,omitempty"`
	ItemID         int64   `json:"itemid"`
}

// Medication is one prescription active at discharge.
type Medication struct {
	Drug      string  `json:"drug"`
	Dose      string  `json:"dose"`
	DoseUnit  string  `json:"dose_unit"`
	Route     string  `json:"route"`
	Form      string  `json:"form,omitempty"`
	Frequency *string `json:"frequency"`
	StartTime *string `json:"start_time"`
	StopTime  *string `json:"stop_time"`
	IsOngoing bool    `json:"is_ongoing"`
}

// AdmissionDocument is the export of one admission.
type AdmissionDocument struct {
	HadmID               int64           `json:"hadm_id"`
	SessionID            string          `json:"session_id"`
	Timeline             []TimelineEvent `json:"timeline"`
	LabResults           []LabResult     `json:"lab_results"`
	DischargeMedications []Medication    `json:"discharge_medications"`
}

// AdmissionSummary is an admission within a patient document, with
// per-table row counts.
type AdmissionSummary struct {
	HadmID            int64   `json:"hadm_id"`
	AdmitTime         *string `json:"admittime"`
	DischargeTime     *string `json:"dischtime"`
	DeathTime         *string `json:"deathtime,omitempty"`
	AdmissionType     string  `json:"admission_type"`
	AdmissionLocation string  `json:"admission_location"`
	DischargeLocation string  `json:"discharge_location"`
	Insurance         string  `json:"insurance,omitempty"`
	Race              string  `json:"race,omitempty"`
	Diagnoses         int     `json:"diagnoses"`
	Procedures        int     `json:"procedures"`
	Prescriptions     int     `json:"prescriptions"`
	LabEvents         int     `json:"lab_events"`
	Microbiology      int     `json:"microbiology_events"`
}

// PatientDocument is the export of one patient and its ordered admissions.
type PatientDocument struct {
	SubjectID       int64              `json:"subject_id"`
	SessionID       string             `json:"session_id"`
	Gender          string             `json:"gender"`
	AnchorAge       int                `json:"anchor_age"`
	AnchorYear      *int               `json:"anchor_year,omitempty"`
	AnchorYearGroup string             `json:"anchor_year_group"`
	DateOfDeath     *string            `json:"dod"`
	Admissions      []AdmissionSummary `json:"admissions"`
}

// Admission assembles the timeline, all lab results and the discharge
// medications of hadmID.
func Admission(idx *index.Index, hadmID int64) (*AdmissionDocument, error) {
	tl, err := extract.BuildTimeline(idx, hadmID)
	if err != nil {
		return nil, fmt.Errorf("timeline: %w", err)
	}
	labs, err := extract.SummarizeLabs(idx, hadmID, true)
	if err != nil {
		return nil, fmt.Errorf("labs: %w", err)
	}
	meds, err := extract.DischargeMedications(idx, hadmID)
	if err != nil {
		return nil, fmt.Errorf("medications: %w", err)
	}

	return &AdmissionDocument{
		HadmID:               hadmID,
		SessionID:            idx.SessionID(),
		Timeline:             TimelineEvents(tl),
		LabResults:           LabResults(labs.All),
		DischargeMedications: Medications(meds),
	}, nil
}

// TimelineEvents renders the entries of tl in order.
func TimelineEvents(tl *extract.Timeline) []TimelineEvent {
	out := make([]TimelineEvent, 0, len(tl.Entries))
	for _, e := range tl.Entries {
		out = append(out, TimelineEvent{
			Timestamp: e.Timestamp.Format(TimeLayout),
			Category:  string(e.Category),
			Title:     e.Title,
			Details:   e.Details,
			Count:     e.Count,
			Items:     e.Items,
		})
	}
	return out
}

// LabResults renders labs in order; the result is never nil.
func LabResults(labs []*index.LabEvent) []LabResult {
	out := make([]LabResult, 0, len(labs))
	for _, l := range labs {
		out = append(out, labResult(l))
	}
	return out
}

// Medications renders rxs in order; the result is never nil.
func Medications(rxs []*index.PrescriptionEntry) []Medication {
	out := make([]Medication, 0, len(rxs))
	for _, rx := range rxs {
		out = append(out, medication(rx))
	}
	return out
}

// Warning is an aggregated data quality warning.
type Warning struct {
	Table  string `json:"table"`
	Field  string `json:"field"`
	Reason string `json:"reason"`
	Count  int    `json:"count"`
}

// Warnings renders ws in order; the result is never nil.
func Warnings(ws []index.DataQualityWarning) []Warning {
	out := make([]Warning, 0, len(ws))
	for _, w := range ws {
		out = append(out, Warning{Table: w.Table, Field: w.Field, Reason: w.Reason, Count: w.Count})
	}
	return out
}

// Patient exports the demographics and admissions of subjectID.
func Patient(idx *index.Index, subjectID int64) (*PatientDocument, error) {
	p, err := idx.Patient(subjectID)
	if err != nil {
		return nil, err
	}
	doc := &PatientDocument{
		SubjectID:       p.SubjectID,
		SessionID:       idx.SessionID(),
		Gender:          p.Gender,
		AnchorAge:       p.AnchorAge,
		AnchorYear:      p.AnchorYear,
		AnchorYearGroup: p.AnchorYearGroup,
		DateOfDeath:     date(p.DateOfDeath),
		Admissions:      make([]AdmissionSummary, 0, len(p.Admissions)),
	}
	for _, a := range p.Admissions {
		doc.Admissions = append(doc.Admissions, AdmissionSummary{
			HadmID:            a.HadmID,
			AdmitTime:         timestamp(a.AdmitTime),
			DischargeTime:     timestamp(a.DischargeTime),
			DeathTime:         timestamp(a.DeathTime),
			AdmissionType:     a.AdmissionType,
			AdmissionLocation: a.AdmissionLocation,
			DischargeLocation: a.DischargeLocation,
			Insurance:         a.Insurance,
			Race:              a.Race,
			Diagnoses:         len(a.Diagnoses),
			Procedures:        len(a.Procedures),
			Prescriptions:     len(a.Prescriptions),
			LabEvents:         len(a.LabEvents),
			Microbiology:      len(a.Microbiology),
		})
	}
	return doc, nil
}

// WriteJSON writes v indented by two spaces.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func labResult(l *index.LabEvent) LabResult {
	r := LabResult{
		Timestamp: timestamp(l.ChartTime),
		Category:  l.Category,
		TestName:  l.Label,
		Status:    StatusNormal,
		Comments:  l.Comments,
		ItemID:    l.ItemID,
	}
	switch {
	case l.ValueNum != nil:
		r.Value = *l.ValueNum
	case l.Value != "":
		r.Value = l.Value
	}
	if extract.ClassifyFlag(l.Flag).Abnormal() {
		r.Status = StatusAbnormal
	}
	if l.Unit != "" {
		unit := l.Unit
		r.Unit = &unit
	}
	if l.RefLow != nil || l.RefHigh != nil {
		rr := bound(l.RefLow) + "-" + bound(l.RefHigh)
		r.ReferenceRange = &rr
	}
	return r
}

func medication(rx *index.PrescriptionEntry) Medication {
	m := Medication{
		Drug:      rx.Drug,
		Dose:      rx.Dose,
		DoseUnit:  rx.DoseUnit,
		Route:     rx.Route,
		Form:      rx.Form,
		StartTime: timestamp(rx.Start),
		StopTime:  timestamp(rx.Stop),
		IsOngoing: rx.IsOngoing(),
	}
	if rx.DosesPer24h != nil && *rx.DosesPer24h > 0 {
		f := strconv.FormatFloat(*rx.DosesPer24h, 'f', -1, 64) + " doses per 24 hours"
		m.Frequency = &f
	}
	return m
}

func bound(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

func timestamp(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(TimeLayout)
	return &s
}

func date(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format("2006-01-02")
	return &s
}
