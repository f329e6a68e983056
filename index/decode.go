package index

import "chartindex/table"

// eventKeys reads the subject and admission ids shared by every event table.
// Rows without an admission id are counted and skipped.
func eventKeys(r table.Row, name string, w *Warnings) (subject, hadm int64, ok bool) {
	hadm, ok = r.ID("hadm_id")
	if !ok {
		w.Add(name, "hadm_id", "missing admission id")
		return 0, 0, false
	}
	subject, _ = r.ID("subject_id")
	return subject, hadm, true
}

func decodePatient(r table.Row, w *Warnings) (*PatientRecord, bool) {
	id, ok := r.ID("subject_id")
	if !ok {
		w.Add(table.Patients.Name, "subject_id", "missing subject id")
		return nil, false
	}
	p := &PatientRecord{
		SubjectID:       id,
		Gender:          r.Str("gender"),
		AnchorYearGroup: r.Str("anchor_year_group"),
		DateOfDeath:     r.Time("dod"),
		Admissions:      []*AdmissionRecord{},
	}
	if age, ok := r.Int("anchor_age"); ok {
		p.AnchorAge = age
	} else {
		w.Add(table.Patients.Name, "anchor_age", "unparsable anchor age")
	}
	if y, ok := r.Int("anchor_year"); ok {
		p.AnchorYear = &y
	}
	return p, true
}

func decodeAdmission(r table.Row, w *Warnings) (*AdmissionRecord, bool) {
	name := table.Admissions.Name
	hadm, ok := r.ID("hadm_id")
	if !ok {
		w.Add(name, "hadm_id", "missing admission id")
		return nil, false
	}
	subject, ok := r.ID("subject_id")
	if !ok {
		w.Add(name, "subject_id", "missing subject id")
		return nil, false
	}
	a := &AdmissionRecord{
		HadmID:            hadm,
		SubjectID:         subject,
		AdmitTime:         r.Time("admittime"),
		DischargeTime:     r.Time("dischtime"),
		DeathTime:         r.Time("deathtime"),
		AdmissionType:     r.Str("admission_type"),
		AdmissionLocation: r.Str("admission_location"),
		DischargeLocation: r.Str("discharge_location"),
		Insurance:         r.Str("insurance"),
		Race:              r.Str("race"),
		Diagnoses:         []*DiagnosisEntry{},
		Procedures:        []*ProcedureEntry{},
		Prescriptions:     []*PrescriptionEntry{},
		LabEvents:         []*LabEvent{},
		Microbiology:      []*MicrobiologyEvent{},
	}
	if a.AdmitTime == nil {
		w.Add(name, "admittime", "missing admit time")
	}
	if a.AdmitTime != nil && a.DischargeTime != nil && a.DischargeTime.Before(*a.AdmitTime) {
		w.Add(name, "dischtime", "discharge before admit time, discharge cleared")
		a.DischargeTime = nil
	}
	return a, true
}

func decodeDiagnosis(r table.Row, w *Warnings) (*DiagnosisEntry, bool) {
	name := table.Diagnoses.Name
	subject, hadm, ok := eventKeys(r, name, w)
	if !ok {
		return nil, false
	}
	d := &DiagnosisEntry{SubjectID: subject, HadmID: hadm, Code: r.Str("icd_code")}
	d.SeqNum, _ = r.Int("seq_num")
	if v, ok := r.Int("icd_version"); ok {
		d.Version = v
	} else {
		w.Add(name, "icd_version", "unparsable code version")
	}
	return d, true
}

func decodeProcedure(r table.Row, w *Warnings) (*ProcedureEntry, bool) {
	name := table.Procedures.Name
	subject, hadm, ok := eventKeys(r, name, w)
	if !ok {
		return nil, false
	}
	p := &ProcedureEntry{SubjectID: subject, HadmID: hadm, Code: r.Str("icd_code"), ChartDate: r.Time("chartdate")}
	p.SeqNum, _ = r.Int("seq_num")
	if v, ok := r.Int("icd_version"); ok {
		p.Version = v
	} else {
		w.Add(name, "icd_version", "unparsable code version")
	}
	return p, true
}

func decodePrescription(r table.Row, w *Warnings) (*PrescriptionEntry, bool) {
	subject, hadm, ok := eventKeys(r, table.Prescriptions.Name, w)
	if !ok {
		return nil, false
	}
	return &PrescriptionEntry{
		SubjectID:   subject,
		HadmID:      hadm,
		Drug:        r.Str("drug"),
		Form:        r.Str("form_rx"),
		Dose:        r.Str("dose_val_rx"),
		DoseUnit:    r.Str("dose_unit_rx"),
		Route:       r.Str("route"),
		DosesPer24h: r.Float("doses_per_24_hrs"),
		Start:       r.Time("starttime"),
		Stop:        r.Time("stoptime"),
	}, true
}

func decodeLabEvent(r table.Row, w *Warnings) (*LabEvent, bool) {
	name := table.LabEvents.Name
	subject, hadm, ok := eventKeys(r, name, w)
	if !ok {
		return nil, false
	}
	item, ok := r.ID("itemid")
	if !ok {
		w.Add(name, "itemid", "missing item id")
		return nil, false
	}
	return &LabEvent{
		SubjectID: subject,
		HadmID:    hadm,
		ItemID:    item,
		ChartTime: r.Time("charttime"),
		Value:     r.Str("value"),
		ValueNum:  r.Float("valuenum"),
		Unit:      r.Str("valueuom"),
		RefLow:    r.Float("ref_range_lower"),
		RefHigh:   r.Float("ref_range_upper"),
		Flag:      r.Str("flag"),
		Priority:  r.Str("priority"),
		Comments:  r.Str("comments"),
	}, true
}

func decodeMicrobiology(r table.Row, w *Warnings) (*MicrobiologyEvent, bool) {
	subject, hadm, ok := eventKeys(r, table.Microbiology.Name, w)
	if !ok {
		return nil, false
	}
	m := &MicrobiologyEvent{
		SubjectID:      subject,
		HadmID:         hadm,
		ChartDate:      r.Time("chartdate"),
		ChartTime:      r.Time("charttime"),
		Specimen:       r.Str("spec_type_desc"),
		Test:           r.Str("test_name"),
		Organism:       r.Str("org_name"),
		Antibiotic:     r.Str("ab_name"),
		Dilution:       r.Str("dilution_text"),
		Interpretation: r.Str("interpretation"),
		Comments:       r.Str("comments"),
	}
	m.MicroEventID, _ = r.ID("microevent_id")
	return m, true
}
