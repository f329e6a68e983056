package table

// Schema names a source table and the columns the index reads from it.
// Required columns must be present in the source header; optional columns
// are projected when present and read as empty otherwise.
type Schema struct {
	Name     string
	Required []string
	Optional []string
}

// Columns returns the required columns followed by the optional ones.
func (s Schema) Columns() []string {
	cols := make([]string, 0, len(s.Required)+len(s.Optional))
	cols = append(cols, s.Required...)
	return append(cols, s.Optional...)
}

// MIMIC-IV hosp module tables.
var (
	Patients = Schema{
		Name:     "patients",
		Required: []string{"subject_id", "gender", "anchor_age", "anchor_year_group"},
		Optional: []string{"anchor_year", "dod"},
	}
	Admissions = Schema{
		Name:     "admissions",
		Required: []string{"subject_id", "hadm_id", "admittime", "dischtime", "admission_type"},
		Optional: []string{"deathtime", "admission_location", "discharge_location", "insurance", "race"},
	}
	Diagnoses = Schema{
		Name:     "diagnoses_icd",
		Required: []string{"subject_id", "hadm_id", "seq_num", "icd_code", "icd_version"},
	}
	Procedures = Schema{
		Name:     "procedures_icd",
		Required: []string{"subject_id", "hadm_id", "seq_num", "chartdate", "icd_code", "icd_version"},
	}
	Prescriptions = Schema{
		Name: "prescriptions",
		Required: []string{"subject_id", "hadm_id", "starttime", "stoptime", "drug",
			"dose_val_rx", "dose_unit_rx", "route"},
		Optional: []string{"doses_per_24_hrs", "form_rx"},
	}
	LabEvents = Schema{
		Name: "labevents",
		Required: []string{"subject_id", "hadm_id", "itemid", "charttime", "value", "valuenum",
			"valueuom", "ref_range_lower", "ref_range_upper", "flag"},
		Optional: []string{"priority", "comments"},
	}
	// Microbiology is optional; many rows carry no hadm_id.
	Microbiology = Schema{
		Name:     "microbiologyevents",
		Required: []string{"subject_id", "hadm_id", "chartdate", "spec_type_desc", "test_name"},
		Optional: []string{"microevent_id", "charttime", "org_name", "ab_name", "dilution_text",
			"interpretation", "comments"},
	}
	DiagnosisCodes = Schema{
		Name:     "d_icd_diagnoses",
		Required: []string{"icd_code", "icd_version", "long_title"},
	}
	ProcedureCodes = Schema{
		Name:     "d_icd_procedures",
		Required: []string{"icd_code", "icd_version", "long_title"},
	}
	LabItems = Schema{
		Name:     "d_labitems",
		Required: []string{"itemid", "label"},
		Optional: []string{"fluid", "category"},
	}
)
