package index

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chartindex/codes"
	"chartindex/internal/fixture"
	"chartindex/table"
)

func build(t *testing.T, dir string, opts Options) *Index {
	t.Helper()
	idx, err := Build(context.Background(), table.NewCSVSource(dir), opts)
	require.NoError(t, err)
	return idx
}

func buildDataset(t *testing.T, tables map[string]string, opts Options) (*Index, error) {
	t.Helper()
	dir := t.TempDir()
	fixture.Write(t, dir, tables)
	return Build(context.Background(), table.NewCSVSource(dir), opts)
}

func admissionIDs(p *PatientRecord) []int64 {
	var out []int64
	for _, a := range p.Admissions {
		out = append(out, a.HadmID)
	}
	return out
}

func TestBuild(t *testing.T) {
	idx := build(t, fixture.WriteDefault(t), Options{})

	require.Equal(t, 3, idx.Len(), "patients without admissions are not indexed")
	require.Equal(t, 8, idx.AdmissionCount())
	require.Equal(t, []int64{10000032, 10000084, 10000117}, idx.SubjectIDs())
	require.NotEmpty(t, idx.SessionID())

	p, err := idx.Patient(10000032)
	require.NoError(t, err)
	require.Equal(t, "F", p.Gender)
	require.Equal(t, 52, p.AnchorAge)
	require.Equal(t, "2014 - 2016", p.AnchorYearGroup)
	require.NotNil(t, p.DateOfDeath)
	require.Equal(t, []int64{22595853, 22841357, 29079034}, admissionIDs(p))

	p, err = idx.Patient(10000084)
	require.NoError(t, err)
	require.Equal(t, []int64{21000001, 23052089}, admissionIDs(p), "same admit time breaks ties by id")

	p, err = idx.Patient(10000117)
	require.NoError(t, err)
	require.Equal(t, []int64{22927623, 27988844, 25000000}, admissionIDs(p))
}

func TestAdmissionRecord(t *testing.T) {
	idx := build(t, fixture.WriteDefault(t), Options{})

	a, err := idx.Admission(22595853)
	require.NoError(t, err)
	require.Equal(t, int64(10000032), a.SubjectID)
	require.Equal(t, "URGENT", a.AdmissionType)
	require.Equal(t, "TRANSFER FROM HOSPITAL", a.AdmissionLocation)
	require.Equal(t, "HOME", a.DischargeLocation)
	require.Equal(t, time.Date(2180, 5, 6, 22, 23, 0, 0, time.UTC), *a.AdmitTime)
	require.Equal(t, time.Date(2180, 5, 9, 17, 15, 0, 0, time.UTC), *a.DischargeTime)
	require.Nil(t, a.DeathTime)

	require.Len(t, a.Diagnoses, 3)
	require.NotNil(t, a.Procedures, "empty, not absent")
	require.Empty(t, a.Procedures)
	require.Len(t, a.Prescriptions, 5)
	require.Len(t, a.LabEvents, 6, "the outpatient lab without hadm_id is dropped")

	require.Equal(t, "Other ascites", a.Diagnoses[0].Description)
	for _, l := range a.LabEvents {
		switch l.ItemID {
		case 50931:
			require.Equal(t, "Glucose", l.Label)
			require.Equal(t, "Chemistry", l.Category)
			require.Equal(t, "abnormal", l.Flag)
			require.InDelta(t, 120.5, *l.ValueNum, 1e-9)
			require.Equal(t, "mg/dL", l.Unit)
		case 50912:
			require.Equal(t, "Item 50912", l.Label)
			require.Equal(t, codes.UnknownCategory, l.Category)
			require.Nil(t, l.ChartTime)
		case 51006:
			require.Nil(t, l.ValueNum)
			require.Equal(t, "___", l.Value)
		}
	}

	open, err := idx.Admission(25000000)
	require.NoError(t, err)
	require.Nil(t, open.DischargeTime)
	require.Empty(t, open.DischargeLocation)

	a, err = idx.Admission(23052089)
	require.NoError(t, err)
	require.Len(t, a.Procedures, 2)
	require.Equal(t, codes.Unknown, a.Diagnoses[1].Description)
	require.Equal(t, codes.Unknown, a.Procedures[1].Description)
	require.Nil(t, a.Procedures[1].ChartDate)
}

func TestNotFound(t *testing.T) {
	idx := build(t, fixture.WriteDefault(t), Options{})

	_, err := idx.Patient(10000999)
	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	require.Equal(t, "patient", nf.Kind)
	require.Equal(t, int64(10000999), nf.ID)

	_, err = idx.Admission(1)
	require.True(t, errors.As(err, &nf))
	require.Equal(t, "admission 1 not found", err.Error())

	_, err = idx.Admission(22595853)
	require.NoError(t, err, "a failed query does not affect the index")
}

func TestDiagnosesTableOrder(t *testing.T) {
	idx := build(t, fixture.WriteDefault(t), Options{})

	var got []string
	for _, d := range idx.Diagnoses() {
		got = append(got, d.Code)
	}
	require.Equal(t, []string{"I2510", "ZZZ99", "78959", "5723", "5715", "I200", "41401", "07071"}, got)
}

func TestBuildWarnings(t *testing.T) {
	idx := build(t, fixture.WriteDefault(t), Options{})
	require.Contains(t, idx.Warnings(), DataQualityWarning{
		Table: "labevents", Field: "hadm_id", Reason: "missing admission id", Count: 1,
	})
}

func TestBuildOptions(t *testing.T) {
	dir := fixture.WriteDefault(t)
	tests := []struct {
		name     string
		opts     Options
		subjects []int64
		hadms    int
	}{
		{"max patients", Options{MaxPatients: 1}, []int64{10000032}, 3},
		{"max patients above total", Options{MaxPatients: 10}, []int64{10000032, 10000084, 10000117}, 8},
		{"subject allow-list", Options{SubjectIDs: map[int64]struct{}{10000117: {}, 10000999: {}}}, []int64{10000117}, 3},
		{"admission allow-list", Options{AdmissionIDs: map[int64]struct{}{22595853: {}}}, []int64{10000032}, 1},
		{"admission type", Options{AdmissionTypes: []string{"urgent"}}, []int64{10000032, 10000117}, 2},
		{"diagnosis pattern", Options{DiagnosisPattern: "^I25"}, []int64{10000084}, 1},
		{"diagnosis pattern substring", Options{DiagnosisPattern: "I2"}, []int64{10000084, 10000117}, 2},
		{"invalid pattern is literal", Options{DiagnosisPattern: "["}, nil, 0},
		{"diagnosis codes", Options{DiagnosisCodes: []string{"5723", "41401"}}, []int64{10000032}, 2},
		{"admitted range", Options{
			AdmittedFrom: time.Date(2180, 6, 1, 0, 0, 0, 0, time.UTC),
			AdmittedTo:   time.Date(2181, 12, 31, 0, 0, 0, 0, time.UTC),
		}, []int64{10000032, 10000117}, 3},
		{"combined", Options{AdmissionTypes: []string{"EW EMER."}, MaxPatients: 1}, []int64{10000032}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx := build(t, dir, tt.opts)
			if tt.subjects == nil {
				require.Empty(t, idx.SubjectIDs())
			} else {
				require.Equal(t, tt.subjects, idx.SubjectIDs())
			}
			require.Equal(t, tt.hadms, idx.AdmissionCount())
			for _, w := range idx.Warnings() {
				require.NotEqual(t, "admission not indexed", w.Reason, "filtered tables are pushed down")
			}
		})
	}
}

func TestMaxPatientsFiltersEventTables(t *testing.T) {
	idx := build(t, fixture.WriteDefault(t), Options{MaxPatients: 1})

	_, err := idx.Admission(25000000)
	require.Error(t, err)
	for _, d := range idx.Diagnoses() {
		require.Equal(t, int64(10000032), d.SubjectID)
	}
}

func TestParallelBuildIsDeterministic(t *testing.T) {
	dir := fixture.WriteDefault(t)
	seq := build(t, dir, Options{})
	par := build(t, dir, Options{Parallel: true, ChunkSize: 2})

	require.Equal(t, seq.Patients(), par.Patients())
	require.Equal(t, seq.Diagnoses(), par.Diagnoses())
	require.Equal(t, seq.Warnings(), par.Warnings())
	require.NotEqual(t, seq.SessionID(), par.SessionID())
}

func TestBuildMissingTable(t *testing.T) {
	_, err := buildDataset(t, fixture.Dataset(map[string]string{"procedures_icd": ""}), Options{})
	var nf *table.SourceNotFoundError
	require.True(t, errors.As(err, &nf), "got %v", err)
	require.Equal(t, "procedures_icd", nf.Table)
}

func TestBuildSchemaError(t *testing.T) {
	_, err := buildDataset(t, fixture.Dataset(map[string]string{
		"diagnoses_icd": "subject_id,hadm_id,icd_code\n10000032,22595853,5723\n",
	}), Options{})
	var se *table.SchemaError
	require.True(t, errors.As(err, &se), "got %v", err)
	require.Equal(t, []string{"seq_num", "icd_version"}, se.Missing)
}

func TestBuildWithoutLabItems(t *testing.T) {
	idx, err := buildDataset(t, fixture.Dataset(map[string]string{"d_labitems": ""}), Options{})
	require.NoError(t, err)

	a, err := idx.Admission(22595853)
	require.NoError(t, err)
	for _, l := range a.LabEvents {
		require.Equal(t, codes.UnknownCategory, l.Category)
	}
	require.Contains(t, idx.Warnings(), DataQualityWarning{
		Table: "d_labitems", Field: "itemid", Reason: "lab item dictionary not found, labels fall back to item ids", Count: 1,
	})
}

func TestBuildRepairsAdmissions(t *testing.T) {
	idx, err := buildDataset(t, fixture.Dataset(map[string]string{
		"admissions": `
			subject_id,hadm_id,admittime,dischtime,admission_type
			10000032,1,2180-05-06 22:23:00,2180-05-01 10:00:00,URGENT
			10000032,2,,2180-04-01 10:00:00,URGENT
			10000032,2,2180-01-01 00:00:00,2180-01-02 00:00:00,URGENT
			77777777,3,2180-05-06 22:23:00,2180-05-07 10:00:00,URGENT
			,4,2180-05-06 22:23:00,2180-05-07 10:00:00,URGENT
		`,
	}), Options{})
	require.NoError(t, err)

	a, err := idx.Admission(1)
	require.NoError(t, err)
	require.Nil(t, a.DischargeTime, "discharge before admit is cleared")

	p, err := idx.Patient(10000032)
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2}, admissionIDs(p), "missing admit time sorts last")

	orphan, err := idx.Admission(3)
	require.NoError(t, err)
	require.Equal(t, int64(77777777), orphan.SubjectID)
	_, err = idx.Patient(77777777)
	require.Error(t, err)

	reasons := map[string]int{}
	for _, w := range idx.Warnings() {
		reasons[w.Reason] += w.Count
	}
	require.Equal(t, 1, reasons["discharge before admit time, discharge cleared"])
	require.Equal(t, 1, reasons["missing admit time"])
	require.Equal(t, 1, reasons["duplicate admission id, later row ignored"])
	require.Equal(t, 1, reasons["no patient row for admission"])
	require.Equal(t, 1, reasons["missing subject id"])
}

func TestWarnings(t *testing.T) {
	var w Warnings
	w.Add("labevents", "hadm_id", "missing admission id")
	w.Add("prescriptions", "starttime", "missing start time")
	w.AddN("labevents", "hadm_id", "missing admission id", 2)
	w.AddN("labevents", "flag", "ignored", 0)

	other := &Warnings{}
	other.Add("prescriptions", "starttime", "missing start time")
	w.Merge(other)
	w.Merge(nil)

	require.Equal(t, []DataQualityWarning{
		{Table: "labevents", Field: "hadm_id", Reason: "missing admission id", Count: 3},
		{Table: "prescriptions", Field: "starttime", Reason: "missing start time", Count: 2},
	}, w.List())
	require.Equal(t, 5, w.Total())
	require.Equal(t, "labevents.hadm_id: missing admission id (3 rows)", w.List()[0].String())
}

// recordingSource remembers the filter each table was opened with.
type recordingSource struct {
	table.Source
	filters map[string]table.Filter
}

func (s *recordingSource) Open(ctx context.Context, req table.Request) (table.RowReader, error) {
	s.filters[req.Table] = req.Filter
	return s.Source.Open(ctx, req)
}

func TestBuildMicrobiology(t *testing.T) {
	idx := build(t, fixture.WriteDefault(t), Options{})

	a, err := idx.Admission(22595853)
	require.NoError(t, err)
	require.Len(t, a.Microbiology, 2)
	blood, urine := a.Microbiology[0], a.Microbiology[1]
	require.Equal(t, int64(1), blood.MicroEventID)
	require.Equal(t, "BLOOD CULTURE", blood.Specimen)
	require.Equal(t, "NO GROWTH", blood.Comments)
	require.Empty(t, blood.Organism)
	require.Equal(t, "ESCHERICHIA COLI", urine.Organism)
	require.Equal(t, "CEFTRIAXONE", urine.Antibiotic)
	require.Equal(t, "<=1", urine.Dilution)
	require.Equal(t, "S", urine.Interpretation)
	require.Equal(t, time.Date(2180, 5, 7, 9, 30, 0, 0, time.UTC), *urine.ChartTime)

	swab, err := idx.Admission(23052089)
	require.NoError(t, err)
	require.Len(t, swab.Microbiology, 1)
	require.Nil(t, swab.Microbiology[0].ChartTime)
	require.NotNil(t, swab.Microbiology[0].ChartDate)

	none, err := idx.Admission(22841357)
	require.NoError(t, err)
	require.NotNil(t, none.Microbiology)
	require.Empty(t, none.Microbiology)

	require.Contains(t, idx.Warnings(), DataQualityWarning{
		Table: "microbiologyevents", Field: "hadm_id", Reason: "missing admission id", Count: 1,
	})
}

func TestBuildMicrobiologyFilterPushedDown(t *testing.T) {
	src := &recordingSource{Source: table.NewCSVSource(fixture.WriteDefault(t)), filters: map[string]table.Filter{}}
	idx, err := Build(context.Background(), src, Options{MaxPatients: 1})
	require.NoError(t, err)

	f := src.filters["microbiologyevents"]
	require.NotNil(t, f)
	require.Contains(t, f.Columns(), "hadm_id")

	_, err = idx.Admission(23052089)
	require.Error(t, err, "subject 10000084 is outside the first patient")
	for _, w := range idx.Warnings() {
		if w.Table == "microbiologyevents" {
			require.NotEqual(t, "admission not indexed", w.Reason)
		}
	}
}

func TestBuildWithoutMicrobiology(t *testing.T) {
	idx, err := buildDataset(t, fixture.Dataset(map[string]string{"microbiologyevents": ""}), Options{})
	require.NoError(t, err)

	a, err := idx.Admission(22595853)
	require.NoError(t, err)
	require.NotNil(t, a.Microbiology)
	require.Empty(t, a.Microbiology)
	require.Contains(t, idx.Warnings(), DataQualityWarning{
		Table: "microbiologyevents", Field: "hadm_id", Reason: "microbiology events not found, admissions carry none", Count: 1,
	})
}
