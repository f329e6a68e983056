package index

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"chartindex/codes"
	"chartindex/table"
)

type builder struct {
	loader *table.Loader
	opts   Options
	logger zerolog.Logger
	warn   Warnings
}

// Build loads every table from src and joins them into an Index. Any
// construction error aborts the build; no partial index is returned.
func Build(ctx context.Context, src table.Source, opts Options) (*Index, error) {
	start := time.Now()
	logger := opts.logger()
	b := &builder{loader: table.NewLoader(src, logger), opts: opts, logger: logger}

	admissions, order, err := b.loadAdmissions(ctx)
	if err != nil {
		return nil, err
	}
	subjects := make(map[int64]struct{})
	hadms := make(map[int64]struct{}, len(admissions))
	for hadm, a := range admissions {
		subjects[a.SubjectID] = struct{}{}
		hadms[hadm] = struct{}{}
	}
	logger.Info().Int("patients", len(subjects)).Int("admissions", len(admissions)).Msg("admissions filtered")

	var patientFilter, eventFilter table.Filter
	if opts.restricted() {
		patientFilter = table.InSet("subject_id", subjects)
		eventFilter = table.And(table.InSet("subject_id", subjects), table.InSet("hadm_id", hadms))
	}

	tables, err := b.loadTables(ctx, patientFilter, eventFilter)
	if err != nil {
		return nil, err
	}

	idx := &Index{
		sessionID:  uuid.NewString(),
		patients:   make(map[int64]*PatientRecord, len(subjects)),
		admissions: admissions,
		codes:      codes.New(tables.dxCodes, tables.pxCodes),
		labItems:   codes.NewLabItems(tables.labItems),
	}
	for _, w := range tables.warn {
		b.warn.Merge(w)
	}
	b.join(idx, tables, subjects, order)
	idx.warnings = b.warn.List()

	for _, w := range idx.warnings {
		logger.Warn().
			Str("table", w.Table).
			Str("field", w.Field).
			Int("count", w.Count).
			Msg(w.Reason)
	}
	logger.Info().
		Str("session_id", idx.sessionID).
		Int("patients", len(idx.patients)).
		Int("admissions", len(idx.admissions)).
		Int("diagnoses", len(idx.diagnoses)).
		Dur("elapsed", time.Since(start)).
		Msg("index built")
	return idx, nil
}

// loadAdmissions applies the admission-level filters, then the diagnosis
// restriction, then MaxPatients. order holds the kept admission ids in
// table order.
func (b *builder) loadAdmissions(ctx context.Context) (map[int64]*AdmissionRecord, []int64, error) {
	o := b.opts
	var filters []table.Filter
	if o.SubjectIDs != nil {
		filters = append(filters, table.InSet("subject_id", o.SubjectIDs))
	}
	if o.AdmissionIDs != nil {
		filters = append(filters, table.InSet("hadm_id", o.AdmissionIDs))
	}
	if len(o.AdmissionTypes) > 0 {
		filters = append(filters, table.Equals("admission_type", o.AdmissionTypes...))
	}
	if !o.AdmittedFrom.IsZero() || !o.AdmittedTo.IsZero() {
		filters = append(filters, table.TimeRange("admittime", o.AdmittedFrom, o.AdmittedTo))
	}

	admissions := make(map[int64]*AdmissionRecord)
	var order []int64
	_, err := b.loader.Scan(ctx, table.Admissions, table.And(filters...), o.ChunkSize, func(r table.Row) error {
		a, ok := decodeAdmission(r, &b.warn)
		if !ok {
			return nil
		}
		if _, dup := admissions[a.HadmID]; dup {
			b.warn.Add(table.Admissions.Name, "hadm_id", "duplicate admission id, later row ignored")
			return nil
		}
		admissions[a.HadmID] = a
		order = append(order, a.HadmID)
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("load admissions: %w", err)
	}

	if o.diagnosisFiltered() {
		matched, err := b.matchDiagnoses(ctx, admissions)
		if err != nil {
			return nil, nil, err
		}
		for hadm := range admissions {
			if _, ok := matched[hadm]; !ok {
				delete(admissions, hadm)
			}
		}
		b.logger.Info().Int("admissions", len(matched)).Msg("filtered by diagnosis codes")
	}

	if o.MaxPatients > 0 {
		subjects := make([]int64, 0, len(admissions))
		seen := make(map[int64]bool)
		for _, a := range admissions {
			if !seen[a.SubjectID] {
				seen[a.SubjectID] = true
				subjects = append(subjects, a.SubjectID)
			}
		}
		sort.Slice(subjects, func(i, j int) bool { return subjects[i] < subjects[j] })
		if len(subjects) > o.MaxPatients {
			keep := make(map[int64]bool, o.MaxPatients)
			for _, s := range subjects[:o.MaxPatients] {
				keep[s] = true
			}
			for hadm, a := range admissions {
				if !keep[a.SubjectID] {
					delete(admissions, hadm)
				}
			}
		}
	}

	kept := order[:0]
	for _, hadm := range order {
		if _, ok := admissions[hadm]; ok {
			kept = append(kept, hadm)
		}
	}
	return admissions, kept, nil
}

// matchDiagnoses returns the admissions with a diagnosis code matching the
// configured codes or pattern.
func (b *builder) matchDiagnoses(ctx context.Context, admissions map[int64]*AdmissionRecord) (map[int64]struct{}, error) {
	hadms := make(map[int64]struct{}, len(admissions))
	for hadm := range admissions {
		hadms[hadm] = struct{}{}
	}
	match := b.opts.diagnosisMatcher()
	matched := make(map[int64]struct{})
	_, err := b.loader.Scan(ctx, table.Diagnoses, table.InSet("hadm_id", hadms), b.opts.ChunkSize, func(r table.Row) error {
		if !match(r.Str("icd_code")) {
			return nil
		}
		if hadm, ok := r.ID("hadm_id"); ok {
			matched[hadm] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("match diagnoses: %w", err)
	}
	return matched, nil
}

// loaded holds one result slot per table so concurrent loads merge in a
// fixed order.
type loaded struct {
	patients      []*PatientRecord
	diagnoses     []*DiagnosisEntry
	procedures    []*ProcedureEntry
	prescriptions []*PrescriptionEntry
	labs          []*LabEvent
	micro         []*MicrobiologyEvent
	dxCodes       *table.Table
	pxCodes       *table.Table
	labItems      *table.Table

	warn [9]*Warnings
}

func (b *builder) loadTables(ctx context.Context, patientFilter, eventFilter table.Filter) (*loaded, error) {
	out := &loaded{}
	for i := range out.warn {
		out.warn[i] = &Warnings{}
	}
	chunk := b.opts.ChunkSize

	tasks := []func(ctx context.Context) error{
		func(ctx context.Context) error {
			return scanInto(ctx, b.loader, table.Patients, patientFilter, chunk, out.warn[0], decodePatient, &out.patients)
		},
		func(ctx context.Context) error {
			return scanInto(ctx, b.loader, table.Diagnoses, eventFilter, chunk, out.warn[1], decodeDiagnosis, &out.diagnoses)
		},
		func(ctx context.Context) error {
			return scanInto(ctx, b.loader, table.Procedures, eventFilter, chunk, out.warn[2], decodeProcedure, &out.procedures)
		},
		func(ctx context.Context) error {
			return scanInto(ctx, b.loader, table.Prescriptions, eventFilter, chunk, out.warn[3], decodePrescription, &out.prescriptions)
		},
		func(ctx context.Context) error {
			return scanInto(ctx, b.loader, table.LabEvents, eventFilter, chunk, out.warn[4], decodeLabEvent, &out.labs)
		},
		func(ctx context.Context) (err error) {
			out.dxCodes, err = b.loader.Load(ctx, table.DiagnosisCodes, nil, chunk)
			return wrapLoad(table.DiagnosisCodes, err)
		},
		func(ctx context.Context) (err error) {
			out.pxCodes, err = b.loader.Load(ctx, table.ProcedureCodes, nil, chunk)
			return wrapLoad(table.ProcedureCodes, err)
		},
		func(ctx context.Context) (err error) {
			out.labItems, err = b.loader.Load(ctx, table.LabItems, nil, chunk)
			var nf *table.SourceNotFoundError
			if errors.As(err, &nf) {
				out.warn[7].Add(table.LabItems.Name, "itemid", "lab item dictionary not found, labels fall back to item ids")
				return nil
			}
			return wrapLoad(table.LabItems, err)
		},
		func(ctx context.Context) error {
			err := scanInto(ctx, b.loader, table.Microbiology, eventFilter, chunk, out.warn[8], decodeMicrobiology, &out.micro)
			var nf *table.SourceNotFoundError
			if errors.As(err, &nf) {
				out.micro = nil
				out.warn[8].Add(table.Microbiology.Name, "hadm_id", "microbiology events not found, admissions carry none")
				return nil
			}
			return err
		},
	}

	if !b.opts.Parallel {
		for _, task := range tasks {
			if err := task(ctx); err != nil {
				return nil, err
			}
		}
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, task := range tasks {
		task := task
		g.Go(func() error { return task(gctx) })
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func scanInto[T any](ctx context.Context, l *table.Loader, s table.Schema, filter table.Filter, chunk int,
	w *Warnings, decode func(table.Row, *Warnings) (T, bool), dst *[]T) error {
	_, err := l.Scan(ctx, s, filter, chunk, func(r table.Row) error {
		if v, ok := decode(r, w); ok {
			*dst = append(*dst, v)
		}
		return nil
	})
	return wrapLoad(s, err)
}

func wrapLoad(s table.Schema, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("load %s: %w", s.Name, err)
}

// join attaches every event row to its admission in one pass per table and
// orders each patient's admissions.
func (b *builder) join(idx *Index, t *loaded, subjects map[int64]struct{}, order []int64) {
	for _, p := range t.patients {
		if _, ok := subjects[p.SubjectID]; !ok {
			continue
		}
		if _, dup := idx.patients[p.SubjectID]; dup {
			b.warn.Add(table.Patients.Name, "subject_id", "duplicate subject id, later row ignored")
			continue
		}
		idx.patients[p.SubjectID] = p
	}

	for _, hadm := range order {
		a := idx.admissions[hadm]
		p, ok := idx.patients[a.SubjectID]
		if !ok {
			b.warn.Add(table.Admissions.Name, "subject_id", "no patient row for admission")
			continue
		}
		p.Admissions = append(p.Admissions, a)
	}
	for _, p := range idx.patients {
		sortAdmissions(p.Admissions)
		idx.subjectIDs = append(idx.subjectIDs, p.SubjectID)
	}
	sort.Slice(idx.subjectIDs, func(i, j int) bool { return idx.subjectIDs[i] < idx.subjectIDs[j] })

	for _, d := range t.diagnoses {
		a := b.admission(idx, table.Diagnoses.Name, d.HadmID)
		if a == nil {
			continue
		}
		d.Description = idx.codes.Describe(d.Code, d.Version)
		a.Diagnoses = append(a.Diagnoses, d)
		idx.diagnoses = append(idx.diagnoses, d)
	}
	for _, p := range t.procedures {
		a := b.admission(idx, table.Procedures.Name, p.HadmID)
		if a == nil {
			continue
		}
		p.Description = idx.codes.DescribeProcedure(p.Code, p.Version)
		a.Procedures = append(a.Procedures, p)
	}
	for _, rx := range t.prescriptions {
		if a := b.admission(idx, table.Prescriptions.Name, rx.HadmID); a != nil {
			a.Prescriptions = append(a.Prescriptions, rx)
		}
	}
	for _, l := range t.labs {
		a := b.admission(idx, table.LabEvents.Name, l.HadmID)
		if a == nil {
			continue
		}
		l.Label = idx.labItems.Label(l.ItemID)
		l.Category = idx.labItems.Category(l.ItemID)
		a.LabEvents = append(a.LabEvents, l)
	}
	for _, m := range t.micro {
		if a := b.admission(idx, table.Microbiology.Name, m.HadmID); a != nil {
			a.Microbiology = append(a.Microbiology, m)
		}
	}
}

func (b *builder) admission(idx *Index, name string, hadm int64) *AdmissionRecord {
	a, ok := idx.admissions[hadm]
	if !ok {
		b.warn.Add(name, "hadm_id", "admission not indexed")
	}
	return a
}

// sortAdmissions orders by admit time, missing times last, then by id.
func sortAdmissions(as []*AdmissionRecord) {
	sort.SliceStable(as, func(i, j int) bool {
		ti, tj := as[i].AdmitTime, as[j].AdmitTime
		switch {
		case ti != nil && tj != nil && !ti.Equal(*tj):
			return ti.Before(*tj)
		case (ti == nil) != (tj == nil):
			return ti != nil
		}
		return as[i].HadmID < as[j].HadmID
	})
}
