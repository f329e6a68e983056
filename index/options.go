package index

import (
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Options restrict which admissions are indexed. The zero value indexes
// everything.
type Options struct {
	// MaxPatients keeps the first N subject ids, ascending, that survive the
	// other filters. Zero means no limit.
	MaxPatients int
	// SubjectIDs and AdmissionIDs are allow-lists; nil means no restriction.
	SubjectIDs   map[int64]struct{}
	AdmissionIDs map[int64]struct{}
	// AdmissionTypes keeps admissions of the listed types, ignoring case.
	AdmissionTypes []string
	// DiagnosisCodes keeps admissions with a diagnosis whose code is listed.
	DiagnosisCodes []string
	// DiagnosisPattern keeps admissions with a diagnosis whose code contains
	// a match of the regular expression. A pattern that does not compile is
	// compared as a literal code.
	DiagnosisPattern string
	// AdmittedFrom and AdmittedTo bound admittime, inclusive. Zero is open.
	AdmittedFrom time.Time
	AdmittedTo   time.Time

	ChunkSize int
	// Parallel loads independent tables concurrently.
	Parallel bool
	Logger   *zerolog.Logger
}

func (o Options) logger() zerolog.Logger {
	if o.Logger == nil {
		return zerolog.Nop()
	}
	return *o.Logger
}

func (o Options) restricted() bool {
	return o.MaxPatients > 0 || o.SubjectIDs != nil || o.AdmissionIDs != nil ||
		len(o.AdmissionTypes) > 0 || o.diagnosisFiltered() ||
		!o.AdmittedFrom.IsZero() || !o.AdmittedTo.IsZero()
}

func (o Options) diagnosisFiltered() bool {
	return len(o.DiagnosisCodes) > 0 || o.DiagnosisPattern != ""
}

// diagnosisMatcher reports whether an icd_code satisfies DiagnosisCodes or
// DiagnosisPattern.
func (o Options) diagnosisMatcher() func(code string) bool {
	codes := make(map[string]bool, len(o.DiagnosisCodes))
	for _, c := range o.DiagnosisCodes {
		codes[strings.TrimSpace(c)] = true
	}
	var re *regexp.Regexp
	if o.DiagnosisPattern != "" {
		var err error
		if re, err = regexp.Compile(o.DiagnosisPattern); err != nil {
			codes[o.DiagnosisPattern] = true
		}
	}
	return func(code string) bool {
		if codes[code] {
			return true
		}
		return re != nil && re.MatchString(code)
	}
}
