package extract

import (
	"sort"

	"chartindex/index"
)

// IsDischargeMedication reports whether rx is still active at discharge:
// it has no stop time, or it stops at or after the discharge time. When the
// admission has no discharge time only prescriptions without a stop time
// qualify.
func IsDischargeMedication(rx *index.PrescriptionEntry, a *index.AdmissionRecord) bool {
	if rx.Stop == nil {
		return true
	}
	if a.DischargeTime == nil {
		return false
	}
	return !rx.Stop.Before(*a.DischargeTime)
}

// DischargeMedications returns the prescriptions of hadmID active at
// discharge, ordered by start time (missing starts last), then drug name.
func DischargeMedications(idx *index.Index, hadmID int64) ([]*index.PrescriptionEntry, error) {
	a, err := idx.Admission(hadmID)
	if err != nil {
		return nil, err
	}
	out := []*index.PrescriptionEntry{}
	for _, rx := range a.Prescriptions {
		if IsDischargeMedication(rx, a) {
			out = append(out, rx)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		ti, tj := out[i].Start, out[j].Start
		switch {
		case ti != nil && tj != nil && !ti.Equal(*tj):
			return ti.Before(*tj)
		case (ti == nil) != (tj == nil):
			return ti != nil
		}
		return out[i].Drug < out[j].Drug
	})
	return out, nil
}
