// Package extract derives clinical views from an index: admission timelines,
// lab summaries, discharge medications and diagnosis cohorts.
package extract

import "strings"

// Category is a timeline entry category.
type Category string

const (
	CategoryAdmission  Category = "Admission"
	CategoryDiagnosis  Category = "Diagnosis"
	CategoryProcedure  Category = "Procedure"
	CategoryLabTests   Category = "Lab Tests"
	CategoryMedication Category = "Medication"
	CategoryDischarge  Category = "Discharge"
)

// Categories lists every category in same-instant display order.
var Categories = []Category{
	CategoryAdmission,
	CategoryDiagnosis,
	CategoryProcedure,
	CategoryLabTests,
	CategoryMedication,
	CategoryDischarge,
}

// Priority orders categories sharing a timestamp. Unknown categories sort
// last.
func (c Category) Priority() int {
	for i, k := range Categories {
		if k == c {
			return i
		}
	}
	return len(Categories)
}

// FlagClass is the interpretation of a lab flag.
type FlagClass int

const (
	// FlagNone means the source carried no flag.
	FlagNone FlagClass = iota
	FlagNormal
	FlagHigh
	FlagLow
	// FlagOther is a non-empty flag outside the known vocabulary, such as
	// "delta".
	FlagOther
)

func (c FlagClass) String() string {
	switch c {
	case FlagNormal:
		return "normal"
	case FlagHigh:
		return "high"
	case FlagLow:
		return "low"
	case FlagOther:
		return "other"
	}
	return "none"
}

// Abnormal reports whether the class is outside the reference range.
func (c FlagClass) Abnormal() bool {
	return c == FlagHigh || c == FlagLow
}

var flagClasses = map[string]FlagClass{
	"":         FlagNone,
	"NAN":      FlagNone,
	"NONE":     FlagNone,
	"NULL":     FlagNone,
	"HIGH":     FlagHigh,
	"H":        FlagHigh,
	"ABNORMAL": FlagHigh,
	"ABN":      FlagHigh,
	"POSITIVE": FlagHigh,
	"POS":      FlagHigh,
	">":        FlagHigh,
	"CRITICAL": FlagHigh,
	"LOW":      FlagLow,
	"L":        FlagLow,
	"<":        FlagLow,
	"NORMAL":   FlagNormal,
	"NORM":     FlagNormal,
	"N":        FlagNormal,
	"NEGATIVE": FlagNormal,
	"NEG":      FlagNormal,
}

// ClassifyFlag maps a raw labevents flag to its class. Matching ignores case
// and surrounding space. Repeated markers such as "HH" or "<<" classify like
// the single marker.
func ClassifyFlag(flag string) FlagClass {
	f := strings.ToUpper(strings.TrimSpace(flag))
	if c, ok := flagClasses[f]; ok {
		return c
	}
	switch {
	case strings.Trim(f, "H") == "", strings.Trim(f, ">") == "":
		return FlagHigh
	case strings.Trim(f, "L") == "", strings.Trim(f, "<") == "":
		return FlagLow
	}
	return FlagOther
}
