package extract

import (
	"strings"

	"chartindex/codes"
	"chartindex/index"
)

// FindPatients returns up to max patients with a diagnosis matching concern,
// in order of their first matching row in the diagnosis table. With
// searchDescription the match is a case-insensitive substring of the
// resolved description, and codes without a dictionary entry never match;
// otherwise concern must equal the ICD code.
func FindPatients(idx *index.Index, concern string, max int, searchDescription bool) []*index.PatientRecord {
	out := []*index.PatientRecord{}
	concern = strings.TrimSpace(concern)
	if concern == "" || max <= 0 {
		return out
	}
	needle := strings.ToLower(concern)

	seen := make(map[int64]bool)
	for _, d := range idx.Diagnoses() {
		if seen[d.SubjectID] {
			continue
		}
		var ok bool
		if searchDescription {
			ok = d.Description != codes.Unknown && strings.Contains(strings.ToLower(d.Description), needle)
		} else {
			ok = d.Code == concern
		}
		if !ok {
			continue
		}
		p, err := idx.Patient(d.SubjectID)
		if err != nil {
			continue
		}
		seen[d.SubjectID] = true
		out = append(out, p)
		if len(out) == max {
			break
		}
	}
	return out
}
