package extract

import (
	"sort"

	"chartindex/index"
)

// LabSummary partitions an admission's lab events. The views overlap:
// All contains Flagged, which contains Positive and Negative.
type LabSummary struct {
	HadmID int64
	// Positive holds high or abnormal results.
	Positive []*index.LabEvent
	// Negative holds low results, plus normal ones when requested.
	Negative []*index.LabEvent
	// Flagged holds every result carrying a flag, recognized or not.
	Flagged []*index.LabEvent
	// All holds every result ordered by chart time, then item id.
	All []*index.LabEvent
}

// SummarizeLabs classifies the lab events of hadmID.
func SummarizeLabs(idx *index.Index, hadmID int64, includeNormal bool) (*LabSummary, error) {
	a, err := idx.Admission(hadmID)
	if err != nil {
		return nil, err
	}
	s := &LabSummary{
		HadmID:   hadmID,
		Positive: []*index.LabEvent{},
		Negative: []*index.LabEvent{},
		Flagged:  []*index.LabEvent{},
		All:      sortedLabs(a.LabEvents),
	}
	for _, l := range s.All {
		switch ClassifyFlag(l.Flag) {
		case FlagNone:
			continue
		case FlagHigh:
			s.Positive = append(s.Positive, l)
		case FlagLow:
			s.Negative = append(s.Negative, l)
		case FlagNormal:
			if includeNormal {
				s.Negative = append(s.Negative, l)
			}
		}
		s.Flagged = append(s.Flagged, l)
	}
	return s, nil
}

// sortedLabs returns a copy of labs ordered by chart time, missing times
// last, then item id.
func sortedLabs(labs []*index.LabEvent) []*index.LabEvent {
	out := append([]*index.LabEvent{}, labs...)
	sort.SliceStable(out, func(i, j int) bool {
		ti, tj := out[i].ChartTime, out[j].ChartTime
		switch {
		case ti != nil && tj != nil && !ti.Equal(*tj):
			return ti.Before(*tj)
		case (ti == nil) != (tj == nil):
			return ti != nil
		}
		return out[i].ItemID < out[j].ItemID
	})
	return out
}
