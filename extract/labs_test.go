package extract

import (
	"testing"

	"github.com/stretchr/testify/require"

	"chartindex/index"
	"chartindex/internal/fixture"
)

func TestSummarizeLabs(t *testing.T) {
	idx := buildIndex(t, fixture.Default)

	s, err := SummarizeLabs(idx, 22595853, false)
	require.NoError(t, err)
	require.Equal(t, []string{"Glucose", "Potassium", "Sodium", "Urea Nitrogen", "INR(PT)", "Item 50912"}, labels(s.All))
	require.Equal(t, []string{"Glucose"}, labels(s.Positive))
	require.Equal(t, []string{"Potassium"}, labels(s.Negative))
	require.Equal(t, []string{"Glucose", "Potassium", "Urea Nitrogen", "INR(PT)"}, labels(s.Flagged))

	glucose := s.Positive[0]
	require.Equal(t, "2180-05-07T00:10:00", glucose.ChartTime.Format("2006-01-02T15:04:05"))
	require.InDelta(t, 120.5, *glucose.ValueNum, 1e-9)
	require.Equal(t, "mg/dL", glucose.Unit)

	s, err = SummarizeLabs(idx, 22595853, true)
	require.NoError(t, err)
	require.Equal(t, []string{"Potassium", "INR(PT)"}, labels(s.Negative))
}

func TestSummarizeLabsSubsets(t *testing.T) {
	idx := buildIndex(t, fixture.Default)

	for _, includeNormal := range []bool{false, true} {
		s, err := SummarizeLabs(idx, 22595853, includeNormal)
		require.NoError(t, err)

		in := func(set []*index.LabEvent, l *index.LabEvent) bool {
			for _, x := range set {
				if x == l {
					return true
				}
			}
			return false
		}
		for _, l := range s.Flagged {
			require.True(t, in(s.All, l))
		}
		for _, l := range s.Positive {
			require.False(t, in(s.Negative, l), "positive and negative are disjoint")
			require.True(t, in(s.Flagged, l))
		}
		for _, l := range s.Negative {
			require.True(t, in(s.Flagged, l))
		}
	}
}

func TestSummarizeLabsEmpty(t *testing.T) {
	idx := buildIndex(t, fixture.Default)

	s, err := SummarizeLabs(idx, 22841357, false)
	require.NoError(t, err)
	require.NotNil(t, s.All)
	require.Empty(t, s.All)
	require.Empty(t, s.Flagged)

	_, err = SummarizeLabs(idx, 42, false)
	require.Error(t, err)
}
