// Package fixture writes small MIMIC-IV shaped datasets for tests.
package fixture

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
)

// Write writes each table as <dir>/<name>.csv.gz. Leading and trailing blank
// lines and per-line indentation are stripped from the CSV text.
func Write(t testing.TB, dir string, tables map[string]string) {
	t.Helper()
	for name, body := range tables {
		path := filepath.Join(dir, name+".csv.gz")
		f, err := os.Create(path)
		if err != nil {
			t.Fatalf("create %s: %v", path, err)
		}
		gz := gzip.NewWriter(f)
		if _, err := gz.Write([]byte(Clean(body))); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		if err := gz.Close(); err != nil {
			t.Fatalf("close gzip %s: %v", path, err)
		}
		if err := f.Close(); err != nil {
			t.Fatalf("close %s: %v", path, err)
		}
	}
}

// Clean strips indentation and surrounding blank lines from a CSV literal.
func Clean(body string) string {
	lines := strings.Split(strings.TrimSpace(body), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	return strings.Join(lines, "\n") + "\n"
}

// Dataset returns a copy of Default with the given tables replaced. An
// empty body removes the table.
func Dataset(overrides map[string]string) map[string]string {
	out := make(map[string]string, len(Default))
	for k, v := range Default {
		out[k] = v
	}
	for k, v := range overrides {
		if v == "" {
			delete(out, k)
			continue
		}
		out[k] = v
	}
	return out
}

// WriteDefault writes Default into a fresh temp directory and returns it.
func WriteDefault(t testing.TB) string {
	t.Helper()
	dir := t.TempDir()
	Write(t, dir, Default)
	return dir
}

// Default is a three-patient slice of MIMIC-IV. Subject 10000999 has no
// admissions. Admission 22595853 has no procedures, one lab without a
// charttime and one prescription without a starttime. Admission 25000000 is
// still open.
var Default = map[string]string{
	"patients": `
		subject_id,gender,anchor_age,anchor_year,anchor_year_group,dod
		10000117,F,48,2174,2008 - 2010,
		10000032,F,52,2180,2014 - 2016,2180-09-09
		10000084,M,72,2160,2017 - 2019,
		10000999,M,30,2150,2011 - 2013,
	`,
	"admissions": `
		subject_id,hadm_id,admittime,dischtime,deathtime,admission_type,admission_location,discharge_location,insurance,race
		10000032,22595853,2180-05-06 22:23:00,2180-05-09 17:15:00,,URGENT,TRANSFER FROM HOSPITAL,HOME,Other,WHITE
		10000032,22841357,2180-06-26 18:27:00,2180-06-27 18:49:00,,EW EMER.,EMERGENCY ROOM,HOME,Medicaid,WHITE
		10000032,29079034,2180-07-23 12:35:00,2180-07-25 17:55:00,,EW EMER.,EMERGENCY ROOM,HOSPICE,Medicaid,WHITE
		10000084,23052089,2160-11-21 01:56:00,2160-11-25 14:52:00,,EW EMER.,WALK-IN/SELF REFERRAL,HOME HEALTH CARE,Medicare,WHITE
		10000084,21000001,2160-11-21 01:56:00,2160-11-22 10:00:00,,OBSERVATION ADMIT,PHYSICIAN REFERRAL,HOME,Medicare,WHITE
		10000117,27988844,2183-09-18 18:10:00,2183-09-21 16:30:00,,ELECTIVE,PHYSICIAN REFERRAL,HOME,Other,WHITE
		10000117,22927623,2181-11-15 02:05:00,2181-11-15 14:52:00,,EU OBSERVATION,EMERGENCY ROOM,,Other,WHITE
		10000117,25000000,2184-01-01 08:00:00,,,URGENT,EMERGENCY ROOM,,Other,WHITE
	`,
	"diagnoses_icd": `
		subject_id,hadm_id,seq_num,icd_code,icd_version
		10000084,23052089,1,I2510,10
		10000084,23052089,2,ZZZ99,10
		10000032,22595853,2,78959,9
		10000032,22595853,1,5723,9
		10000032,22595853,3,5715,9
		10000117,22927623,1,I200,10
		10000032,29079034,1,41401,9
		10000032,22841357,1,07071,9
	`,
	"procedures_icd": `
		subject_id,hadm_id,seq_num,chartdate,icd_code,icd_version
		10000032,29079034,1,2180-07-24,5491,9
		10000084,23052089,1,2160-11-22,0QS734Z,10
		10000084,23052089,2,,XYZ12,10
	`,
	"prescriptions": `
		subject_id,hadm_id,starttime,stoptime,drug,form_rx,dose_val_rx,dose_unit_rx,route,doses_per_24_hrs
		10000032,22595853,2180-05-07 01:00:00,2180-05-08 12:00:00,Aspirin,TAB,325,mg,PO,1
		10000032,22595853,2180-05-07 01:00:00,2180-05-09 17:15:00,Furosemide,TAB,40,mg,PO,1
		10000032,22595853,2180-05-07 08:00:00,,Spironolactone,TAB,50,mg,PO,1
		10000032,22595853,2180-05-08 09:00:00,2180-05-12 09:00:00,Lactulose,SYR,30,mL,PO,3
		10000032,22595853,,2180-05-08 00:00:00,Heparin,VIAL,5000,UNIT,SC,2
		10000117,25000000,2184-01-01 09:00:00,,Metoprolol Tartrate,TAB,25,mg,PO/NG,2
		10000117,25000000,2184-01-01 09:00:00,2184-01-02 09:00:00,Ondansetron,VIAL,4,mg,IV,
	`,
	"labevents": `
		subject_id,hadm_id,itemid,charttime,value,valuenum,valueuom,ref_range_lower,ref_range_upper,flag,priority,comments
		10000032,22595853,51237,2180-05-08 06:00:00,1.1,1.1,,0.9,1.1,normal,ROUTINE,
		10000032,22595853,50931,2180-05-07 00:10:00,120.5,120.5,mg/dL,70,100,abnormal,ROUTINE,
		10000032,22595853,50983,2180-05-07 00:10:00,136,136,mEq/L,133,145,,ROUTINE,
		10000032,22595853,50971,2180-05-07 00:10:00,3.1,3.1,mEq/L,3.3,5.1,LOW,ROUTINE,
		10000032,22595853,51006,2180-05-08 06:00:00,___,,mg/dL,6,20,delta,STAT,___
		10000032,22595853,50912,,0.9,0.9,mg/dL,0.4,1.1,,ROUTINE,
		10000032,,50931,2180-04-01 10:00:00,99,99,mg/dL,70,100,,ROUTINE,
	`,
	"microbiologyevents": `
		microevent_id,subject_id,hadm_id,chartdate,charttime,spec_type_desc,test_name,org_name,ab_name,dilution_text,interpretation,comments
		1,10000032,22595853,2180-05-07 00:00:00,2180-05-07 01:00:00,BLOOD CULTURE,Blood Culture Routine,,,,,NO GROWTH
		2,10000032,22595853,2180-05-07 00:00:00,2180-05-07 09:30:00,URINE,URINE CULTURE,ESCHERICHIA COLI,CEFTRIAXONE,<=1,S,
		3,10000084,23052089,2160-11-22 00:00:00,,SWAB,MRSA SCREEN,,,,,
		4,10000032,,2180-04-02 00:00:00,2180-04-02 10:00:00,URINE,URINE CULTURE,,,,,
	`,
	"d_icd_diagnoses": `
		icd_code,icd_version,long_title
		5723,9,Portal hypertension
		78959,9,Other ascites
		5715,9,Cirrhosis of liver without mention of alcohol
		07071,9,Unspecified viral hepatitis C without hepatic coma
		41401,9,Coronary atherosclerosis of native coronary artery
		I2510,10,Atherosclerotic heart disease of native coronary artery without angina pectoris
		I200,10,Unstable angina
	`,
	"d_icd_procedures": `
		icd_code,icd_version,long_title
		5491,9,Percutaneous abdominal drainage
		0QS734Z,10,"Reposition Left Upper Femur with Internal Fixation Device, Percutaneous Approach"
	`,
	"d_labitems": `
		itemid,label,fluid,category
		50931,Glucose,Blood,Chemistry
		50983,Sodium,Blood,Chemistry
		50971,Potassium,Blood,Chemistry
		51237,INR(PT),Blood,Hematology
		51006,Urea Nitrogen,Blood,Chemistry
	`,
}
