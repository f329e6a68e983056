package extract

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"chartindex/codes"
	"chartindex/index"
	"chartindex/table"
)

// detailLimit caps the bullet lines shown for lab and medication entries.
const detailLimit = 10

// TimelineEntry groups the events of one category at one instant.
type TimelineEntry struct {
	Timestamp time.Time
	Category  Category
	Title     string
	Details   string
	Count     int
	Items     []string
}

// Timeline is an admission's events in chronological order. Skipped counts
// rows that could not be placed because they lack a timestamp.
type Timeline struct {
	HadmID  int64
	Entries []TimelineEntry
	Skipped []index.DataQualityWarning
}

type groupKey struct {
	category Category
	at       int64
}

type timelineBuilder struct {
	entries []TimelineEntry
	groups  map[groupKey]int
	skipped index.Warnings
}

func (b *timelineBuilder) add(c Category, at time.Time, item string) {
	k := groupKey{category: c, at: at.UnixNano()}
	i, ok := b.groups[k]
	if !ok {
		i = len(b.entries)
		b.groups[k] = i
		b.entries = append(b.entries, TimelineEntry{Timestamp: at, Category: c})
	}
	e := &b.entries[i]
	e.Items = append(e.Items, item)
	e.Count = len(e.Items)
}

// BuildTimeline merges the admission event, diagnoses, procedures, labs,
// medication starts and discharge of hadmID into one sequence ordered by
// timestamp, then category priority.
func BuildTimeline(idx *index.Index, hadmID int64) (*Timeline, error) {
	a, err := idx.Admission(hadmID)
	if err != nil {
		return nil, err
	}
	b := &timelineBuilder{groups: make(map[groupKey]int)}

	if a.AdmitTime != nil {
		b.add(CategoryAdmission, *a.AdmitTime, "Admitted via "+orUnknown(a.AdmissionLocation))

		dx := append([]*index.DiagnosisEntry{}, a.Diagnoses...)
		sort.SliceStable(dx, func(i, j int) bool { return dx[i].SeqNum < dx[j].SeqNum })
		for _, d := range dx {
			b.add(CategoryDiagnosis, *a.AdmitTime, codeLabel(d.Description, d.Code, d.Version))
		}
	} else {
		b.skipped.Add(table.Admissions.Name, "admittime", "missing admit time")
		b.skipped.AddN(table.Diagnoses.Name, "admittime", "missing admit time", len(a.Diagnoses))
	}

	px := append([]*index.ProcedureEntry{}, a.Procedures...)
	sort.SliceStable(px, func(i, j int) bool { return px[i].SeqNum < px[j].SeqNum })
	for _, p := range px {
		at := p.ChartDate
		if at == nil {
			at = a.AdmitTime
		}
		if at == nil {
			b.skipped.Add(table.Procedures.Name, "chartdate", "missing chart date")
			continue
		}
		b.add(CategoryProcedure, *at, codeLabel(p.Description, p.Code, p.Version))
	}

	for _, l := range sortedLabs(a.LabEvents) {
		if l.ChartTime == nil {
			b.skipped.Add(table.LabEvents.Name, "charttime", "missing chart time")
			continue
		}
		b.add(CategoryLabTests, *l.ChartTime, labLabel(l))
	}

	for _, rx := range a.Prescriptions {
		if rx.Start == nil {
			b.skipped.Add(table.Prescriptions.Name, "starttime", "missing start time")
			continue
		}
		b.add(CategoryMedication, *rx.Start, medicationLabel(rx))
	}

	if a.DischargeTime != nil {
		b.add(CategoryDischarge, *a.DischargeTime, "Discharged to "+orUnknown(a.DischargeLocation))
	} else {
		b.skipped.Add(table.Admissions.Name, "dischtime", "missing discharge time")
	}

	for i := range b.entries {
		describeEntry(&b.entries[i])
	}
	sort.SliceStable(b.entries, func(i, j int) bool {
		ei, ej := b.entries[i], b.entries[j]
		if !ei.Timestamp.Equal(ej.Timestamp) {
			return ei.Timestamp.Before(ej.Timestamp)
		}
		return ei.Category.Priority() < ej.Category.Priority()
	})

	entries := b.entries
	if entries == nil {
		entries = []TimelineEntry{}
	}
	return &Timeline{HadmID: hadmID, Entries: entries, Skipped: b.skipped.List()}, nil
}

func describeEntry(e *TimelineEntry) {
	switch e.Category {
	case CategoryAdmission:
		e.Title = "Admitted to Hospital"
		e.Details = e.Items[0]
		e.Count = 1
	case CategoryDischarge:
		e.Title = "Discharged from Hospital"
		e.Details = e.Items[0]
		e.Count = 1
	case CategoryDiagnosis:
		e.Title = fmt.Sprintf("Diagnoses (%d)", e.Count)
		e.Details = bullets(e.Items, 0)
	case CategoryProcedure:
		e.Title = fmt.Sprintf("Procedures (%d)", e.Count)
		e.Details = bullets(e.Items, 0)
	case CategoryLabTests:
		e.Title = fmt.Sprintf("Lab Tests (%d)", e.Count)
		e.Details = bullets(e.Items, detailLimit)
	case CategoryMedication:
		e.Title = fmt.Sprintf("Medications (%d)", e.Count)
		e.Details = bullets(e.Items, detailLimit)
	}
}

// bullets renders items as "• item" lines joined by <br>. A positive limit
// truncates the list with a "... and N more" line.
func bullets(items []string, limit int) string {
	shown := items
	if limit > 0 && len(items) > limit {
		shown = items[:limit]
	}
	lines := make([]string, 0, len(shown)+1)
	for _, it := range shown {
		lines = append(lines, "• "+it)
	}
	if len(shown) < len(items) {
		lines = append(lines, fmt.Sprintf("• ... and %d more", len(items)-len(shown)))
	}
	return strings.Join(lines, "<br>")
}

func codeLabel(desc, code string, version int) string {
	if desc == "" || desc == codes.Unknown {
		return codes.Key{Code: code, Version: version}.String()
	}
	return desc
}

func labLabel(l *index.LabEvent) string {
	var b strings.Builder
	b.WriteString(l.Label)
	b.WriteString(": ")
	b.WriteString(LabValueText(l))
	if l.Unit != "" {
		b.WriteString(" ")
		b.WriteString(l.Unit)
	}
	if l.Flag != "" {
		fmt.Fprintf(&b, " (%s)", l.Flag)
	}
	return b.String()
}

// LabValueText renders the numeric value when present, else the text value.
func LabValueText(l *index.LabEvent) string {
	if l.ValueNum != nil {
		return strconv.FormatFloat(*l.ValueNum, 'f', -1, 64)
	}
	if l.Value == "" {
		return "N/A"
	}
	return l.Value
}

func medicationLabel(rx *index.PrescriptionEntry) string {
	dose := strings.TrimSpace(rx.Dose + " " + rx.DoseUnit)
	drug := orUnknown(rx.Drug)
	if dose == "" {
		return drug
	}
	return drug + " - " + dose
}

func orUnknown(s string) string {
	if s == "" {
		return codes.Unknown
	}
	return s
}
