// Package reference holds the immutable reference-range catalog and the
// test-name resolver. Both are built once at process start and shared
// read-only across concurrent analysis calls; lookups always return
// copies so per-call specialization (sex overrides) never touches the
// shared table.
package reference

import (
	"github.com/lab-report-analyzer/internal/domain"
)

// Bounds is a closed [Min, Max] reference interval.
type Bounds struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Range describes the catalog entry for one canonical test code: the
// default adult bounds, the display unit, optional critical thresholds,
// and optional sex-specific overrides.
//
// Qualitative entries (urine protein, leucocyte esterase, ...) have no
// meaningful numeric interval: a zero/negative value is NORMAL and
// anything else is HIGH. Unitless entries (ratio tests) ignore any unit
// text extracted from the document.
type Range struct {
	Code         string          `json:"code"`
	Bounds       Bounds          `json:"bounds"`
	Unit         string          `json:"unit"`
	RangeText    string          `json:"range_text"`
	CriticalLow  *float64        `json:"critical_low,omitempty"`
	CriticalHigh *float64        `json:"critical_high,omitempty"`
	Male         *Bounds         `json:"male,omitempty"`
	Female       *Bounds         `json:"female,omitempty"`
	Qualitative  bool            `json:"qualitative,omitempty"`
	Unitless     bool            `json:"unitless,omitempty"`
	Section      domain.Section  `json:"section"`
}

// Catalog is the process-wide reference range table. It must never be
// mutated after construction.
type Catalog struct {
	ranges map[string]Range
	codes  []string
}

// Lookup returns a copy of the catalog entry for code, or false if the
// code is unknown.
func (c *Catalog) Lookup(code string) (Range, bool) {
	r, ok := c.ranges[code]
	return r, ok
}

// LookupForSex returns a copy of the catalog entry with the sex-specific
// override applied to the default bounds when one exists for the given
// sex. The shared entry is never modified.
func (c *Catalog) LookupForSex(code string, sex domain.Sex) (Range, bool) {
	r, ok := c.ranges[code]
	if !ok {
		return Range{}, false
	}
	switch sex {
	case domain.SexMale:
		if r.Male != nil {
			r.Bounds = *r.Male
		}
	case domain.SexFemale:
		if r.Female != nil {
			r.Bounds = *r.Female
		}
	}
	return r, true
}

// HasSexOverride reports whether the code carries an override for the
// given sex.
func (c *Catalog) HasSexOverride(code string, sex domain.Sex) bool {
	r, ok := c.ranges[code]
	if !ok {
		return false
	}
	switch sex {
	case domain.SexMale:
		return r.Male != nil
	case domain.SexFemale:
		return r.Female != nil
	default:
		return false
	}
}

// IsCriticalValue reports whether v breaches an explicit critical
// threshold for the code. Critical thresholds always take precedence over
// deviation-based severity tiers.
func (c *Catalog) IsCriticalValue(code string, v float64) bool {
	r, ok := c.ranges[code]
	if !ok {
		return false
	}
	if r.CriticalLow != nil && v < *r.CriticalLow {
		return true
	}
	if r.CriticalHigh != nil && v > *r.CriticalHigh {
		return true
	}
	return false
}

// Codes returns all canonical codes in catalog insertion order.
func (c *Catalog) Codes() []string {
	out := make([]string, len(c.codes))
	copy(out, c.codes)
	return out
}

// Len returns the number of catalog entries.
func (c *Catalog) Len() int { return len(c.ranges) }

func f(v float64) *float64 { return &v }

// DefaultCatalog builds the standard adult reference catalog. Ranges vary
// by laboratory, age, and population; these are general adult values and
// the document-supplied range always wins over them.
func DefaultCatalog() *Catalog {
	entries := []Range{
		// Complete blood count
		{Code: "hemoglobin", Bounds: Bounds{12.0, 17.0}, Unit: "g/dL", RangeText: "12.0 - 17.0 g/dL",
			CriticalLow: f(8.0), CriticalHigh: f(20.0),
			Male: &Bounds{13.5, 17.5}, Female: &Bounds{12.0, 16.0}, Section: domain.SectionHematology},
		{Code: "hematocrit", Bounds: Bounds{36.0, 52.0}, Unit: "%", RangeText: "36 - 52%",
			CriticalLow: f(20.0), CriticalHigh: f(60.0), Section: domain.SectionHematology},
		{Code: "rbc_count", Bounds: Bounds{4.0, 6.0}, Unit: "million/µL", RangeText: "4.0 - 6.0 million/µL",
			CriticalLow: f(2.5), CriticalHigh: f(7.5), Section: domain.SectionHematology},
		{Code: "wbc_count", Bounds: Bounds{4500, 11000}, Unit: "cells/µL", RangeText: "4,500 - 11,000 cells/µL",
			CriticalLow: f(2000), CriticalHigh: f(30000), Section: domain.SectionHematology},
		{Code: "platelet_count", Bounds: Bounds{150000, 400000}, Unit: "cells/µL", RangeText: "150,000 - 400,000 cells/µL",
			CriticalLow: f(50000), CriticalHigh: f(1000000), Section: domain.SectionHematology},
		{Code: "mcv", Bounds: Bounds{80, 100}, Unit: "fL", RangeText: "80 - 100 fL", Section: domain.SectionHematology},
		{Code: "mch", Bounds: Bounds{27, 33}, Unit: "pg", RangeText: "27 - 33 pg", Section: domain.SectionHematology},
		{Code: "mchc", Bounds: Bounds{32, 36}, Unit: "g/dL", RangeText: "32 - 36 g/dL", Section: domain.SectionHematology},
		{Code: "rdw", Bounds: Bounds{11.5, 14.5}, Unit: "%", RangeText: "11.5 - 14.5%", Section: domain.SectionHematology},

		// Differential count
		{Code: "neutrophils", Bounds: Bounds{40, 70}, Unit: "%", RangeText: "40 - 70%", Section: domain.SectionHematology},
		{Code: "lymphocytes", Bounds: Bounds{20, 40}, Unit: "%", RangeText: "20 - 40%", Section: domain.SectionHematology},
		{Code: "monocytes", Bounds: Bounds{2, 8}, Unit: "%", RangeText: "2 - 8%", Section: domain.SectionHematology},
		{Code: "eosinophils", Bounds: Bounds{1, 4}, Unit: "%", RangeText: "1 - 4%", Section: domain.SectionHematology},
		{Code: "basophils", Bounds: Bounds{0, 1}, Unit: "%", RangeText: "0 - 1%", Section: domain.SectionHematology},
		{Code: "esr", Bounds: Bounds{0, 20}, Unit: "mm/hr", RangeText: "0 - 20 mm/hr",
			Male: &Bounds{0, 15}, Female: &Bounds{0, 20}, Section: domain.SectionHematology},

		// Blood glucose
		{Code: "glucose_fasting", Bounds: Bounds{70, 100}, Unit: "mg/dL", RangeText: "70 - 100 mg/dL",
			CriticalLow: f(50), CriticalHigh: f(200), Section: domain.SectionDiabetes},
		{Code: "glucose_random", Bounds: Bounds{70, 140}, Unit: "mg/dL", RangeText: "70 - 140 mg/dL",
			CriticalLow: f(50), CriticalHigh: f(500), Section: domain.SectionDiabetes},
		{Code: "glucose_pp", Bounds: Bounds{70, 140}, Unit: "mg/dL", RangeText: "< 140 mg/dL (2hr after meal)",
			CriticalHigh: f(300), Section: domain.SectionDiabetes},
		{Code: "hba1c", Bounds: Bounds{4.0, 5.6}, Unit: "%", RangeText: "< 5.7% (normal), 5.7-6.4% (prediabetes)",
			CriticalHigh: f(14.0), Section: domain.SectionDiabetes},

		// Kidney function
		{Code: "creatinine", Bounds: Bounds{0.6, 1.2}, Unit: "mg/dL", RangeText: "0.6 - 1.2 mg/dL",
			CriticalHigh: f(10.0), Male: &Bounds{0.7, 1.3}, Female: &Bounds{0.6, 1.1}, Section: domain.SectionKidneyFunction},
		{Code: "bun", Bounds: Bounds{7, 20}, Unit: "mg/dL", RangeText: "7 - 20 mg/dL",
			CriticalHigh: f(100), Section: domain.SectionKidneyFunction},
		{Code: "urea", Bounds: Bounds{15, 45}, Unit: "mg/dL", RangeText: "15 - 45 mg/dL", Section: domain.SectionKidneyFunction},
		{Code: "blood_urea", Bounds: Bounds{15, 40}, Unit: "mg/dL", RangeText: "15 - 40 mg/dL", Section: domain.SectionKidneyFunction},
		{Code: "uric_acid", Bounds: Bounds{2.5, 7.0}, Unit: "mg/dL", RangeText: "2.5 - 7.0 mg/dL",
			Male: &Bounds{3.5, 7.2}, Female: &Bounds{2.5, 6.0}, Section: domain.SectionKidneyFunction},
		{Code: "egfr", Bounds: Bounds{90, 120}, Unit: "mL/min/1.73m²", RangeText: ">90 mL/min/1.73m² (normal)",
			CriticalLow: f(15), Section: domain.SectionKidneyFunction},

		// Liver function
		{Code: "sgpt_alt", Bounds: Bounds{0, 40}, Unit: "U/L", RangeText: "0 - 40 U/L",
			CriticalHigh: f(1000), Section: domain.SectionLiverFunction},
		{Code: "sgot_ast", Bounds: Bounds{0, 40}, Unit: "U/L", RangeText: "0 - 40 U/L",
			CriticalHigh: f(1000), Section: domain.SectionLiverFunction},
		{Code: "alp", Bounds: Bounds{44, 147}, Unit: "U/L", RangeText: "44 - 147 U/L", Section: domain.SectionLiverFunction},
		{Code: "ggt", Bounds: Bounds{0, 60}, Unit: "U/L", RangeText: "0 - 60 U/L", Section: domain.SectionLiverFunction},
		{Code: "bilirubin_total", Bounds: Bounds{0.1, 1.2}, Unit: "mg/dL", RangeText: "0.1 - 1.2 mg/dL",
			CriticalHigh: f(15.0), Section: domain.SectionLiverFunction},
		{Code: "bilirubin_direct", Bounds: Bounds{0, 0.3}, Unit: "mg/dL", RangeText: "0 - 0.3 mg/dL", Section: domain.SectionLiverFunction},
		{Code: "albumin", Bounds: Bounds{3.5, 5.0}, Unit: "g/dL", RangeText: "3.5 - 5.0 g/dL",
			CriticalLow: f(2.0), Section: domain.SectionLiverFunction},
		{Code: "globulin", Bounds: Bounds{2.0, 3.5}, Unit: "g/dL", RangeText: "2.0 - 3.5 g/dL", Section: domain.SectionLiverFunction},
		{Code: "ag_ratio", Bounds: Bounds{1.0, 2.5}, Unit: "", RangeText: "1.0 - 2.5",
			Unitless: true, Section: domain.SectionLiverFunction},
		{Code: "total_protein", Bounds: Bounds{6.0, 8.3}, Unit: "g/dL", RangeText: "6.0 - 8.3 g/dL", Section: domain.SectionLiverFunction},

		// Lipid panel
		{Code: "cholesterol_total", Bounds: Bounds{0, 200}, Unit: "mg/dL", RangeText: "< 200 mg/dL (desirable)",
			CriticalHigh: f(300), Section: domain.SectionLipidProfile},
		{Code: "hdl", Bounds: Bounds{40, 60}, Unit: "mg/dL", RangeText: "> 40 mg/dL (higher is better)",
			CriticalLow: f(25), Section: domain.SectionLipidProfile},
		{Code: "ldl", Bounds: Bounds{0, 100}, Unit: "mg/dL", RangeText: "< 100 mg/dL (optimal)",
			CriticalHigh: f(190), Section: domain.SectionLipidProfile},
		{Code: "triglycerides", Bounds: Bounds{0, 150}, Unit: "mg/dL", RangeText: "< 150 mg/dL",
			CriticalHigh: f(500), Section: domain.SectionLipidProfile},
		{Code: "vldl", Bounds: Bounds{5, 40}, Unit: "mg/dL", RangeText: "5 - 40 mg/dL", Section: domain.SectionLipidProfile},

		// Thyroid panel
		{Code: "tsh", Bounds: Bounds{0.4, 4.0}, Unit: "mIU/L", RangeText: "0.4 - 4.0 mIU/L",
			CriticalLow: f(0.1), CriticalHigh: f(10.0), Section: domain.SectionThyroid},
		{Code: "t3", Bounds: Bounds{80, 200}, Unit: "ng/dL", RangeText: "80 - 200 ng/dL", Section: domain.SectionThyroid},
		{Code: "t4", Bounds: Bounds{5.0, 12.0}, Unit: "µg/dL", RangeText: "5.0 - 12.0 µg/dL", Section: domain.SectionThyroid},
		{Code: "free_t3", Bounds: Bounds{2.3, 4.2}, Unit: "pg/mL", RangeText: "2.3 - 4.2 pg/mL", Section: domain.SectionThyroid},
		{Code: "free_t4", Bounds: Bounds{0.8, 1.8}, Unit: "ng/dL", RangeText: "0.8 - 1.8 ng/dL", Section: domain.SectionThyroid},

		// Electrolytes
		{Code: "sodium", Bounds: Bounds{136, 145}, Unit: "mEq/L", RangeText: "136 - 145 mEq/L",
			CriticalLow: f(120), CriticalHigh: f(160), Section: domain.SectionBiochemistry},
		{Code: "potassium", Bounds: Bounds{3.5, 5.0}, Unit: "mEq/L", RangeText: "3.5 - 5.0 mEq/L",
			CriticalLow: f(2.5), CriticalHigh: f(6.5), Section: domain.SectionBiochemistry},
		{Code: "chloride", Bounds: Bounds{98, 106}, Unit: "mEq/L", RangeText: "98 - 106 mEq/L",
			CriticalLow: f(80), CriticalHigh: f(120), Section: domain.SectionBiochemistry},
		{Code: "calcium", Bounds: Bounds{8.5, 10.5}, Unit: "mg/dL", RangeText: "8.5 - 10.5 mg/dL",
			CriticalLow: f(6.0), CriticalHigh: f(13.0), Section: domain.SectionBiochemistry},
		{Code: "magnesium", Bounds: Bounds{1.5, 2.5}, Unit: "mg/dL", RangeText: "1.5 - 2.5 mg/dL",
			CriticalLow: f(1.0), CriticalHigh: f(4.0), Section: domain.SectionBiochemistry},
		{Code: "phosphorus", Bounds: Bounds{2.5, 4.5}, Unit: "mg/dL", RangeText: "2.5 - 4.5 mg/dL", Section: domain.SectionBiochemistry},

		// Cardiac markers
		{Code: "troponin", Bounds: Bounds{0, 0.04}, Unit: "ng/mL", RangeText: "< 0.04 ng/mL",
			CriticalHigh: f(0.1), Section: domain.SectionBiochemistry},
		{Code: "ck_mb", Bounds: Bounds{0, 25}, Unit: "U/L", RangeText: "0 - 25 U/L",
			CriticalHigh: f(100), Section: domain.SectionBiochemistry},
		{Code: "bnp", Bounds: Bounds{0, 100}, Unit: "pg/mL", RangeText: "< 100 pg/mL",
			CriticalHigh: f(500), Section: domain.SectionBiochemistry},

		// Inflammation markers
		{Code: "crp", Bounds: Bounds{0, 3.0}, Unit: "mg/L", RangeText: "< 3.0 mg/L (low risk)",
			CriticalHigh: f(10.0), Section: domain.SectionBiochemistry},

		// Coagulation
		{Code: "pt", Bounds: Bounds{11, 13.5}, Unit: "seconds", RangeText: "11 - 13.5 seconds",
			CriticalHigh: f(30), Section: domain.SectionHematology},
		{Code: "inr", Bounds: Bounds{0.8, 1.1}, Unit: "", RangeText: "0.8 - 1.1 (normal), 2-3 (anticoagulant therapy)",
			CriticalHigh: f(5.0), Unitless: true, Section: domain.SectionHematology},
		{Code: "aptt", Bounds: Bounds{30, 40}, Unit: "seconds", RangeText: "30 - 40 seconds",
			CriticalHigh: f(100), Section: domain.SectionHematology},

		// Vitamins and minerals
		{Code: "vitamin_d", Bounds: Bounds{30, 100}, Unit: "ng/mL", RangeText: "30 - 100 ng/mL",
			CriticalLow: f(10), Section: domain.SectionBiochemistry},
		{Code: "vitamin_b12", Bounds: Bounds{200, 900}, Unit: "pg/mL", RangeText: "200 - 900 pg/mL", Section: domain.SectionBiochemistry},
		{Code: "folate", Bounds: Bounds{3, 17}, Unit: "ng/mL", RangeText: "3 - 17 ng/mL", Section: domain.SectionBiochemistry},
		{Code: "iron", Bounds: Bounds{60, 170}, Unit: "µg/dL", RangeText: "60 - 170 µg/dL",
			Male: &Bounds{65, 175}, Female: &Bounds{50, 170}, Section: domain.SectionBiochemistry},
		{Code: "ferritin", Bounds: Bounds{12, 300}, Unit: "ng/mL", RangeText: "12 - 300 ng/mL",
			Male: &Bounds{24, 336}, Female: &Bounds{11, 307}, Section: domain.SectionBiochemistry},
		{Code: "tibc", Bounds: Bounds{250, 370}, Unit: "µg/dL", RangeText: "250 - 370 µg/dL", Section: domain.SectionBiochemistry},

		// Urine analysis
		{Code: "specific_gravity", Bounds: Bounds{1.005, 1.030}, Unit: "", RangeText: "1.005 - 1.030",
			Unitless: true, Section: domain.SectionUrineAnalysis},
		{Code: "urine_ph", Bounds: Bounds{4.5, 8.0}, Unit: "", RangeText: "4.5 - 8.0",
			Unitless: true, Section: domain.SectionUrineAnalysis},
		{Code: "urine_rbc", Bounds: Bounds{0, 2}, Unit: "/HPF", RangeText: "0 - 2 /HPF", Section: domain.SectionUrineAnalysis},
		{Code: "pus_cells", Bounds: Bounds{0, 5}, Unit: "/HPF", RangeText: "0 - 5 /HPF",
			Male: &Bounds{0, 4}, Female: &Bounds{3, 7}, Section: domain.SectionUrineAnalysis},
		{Code: "epithelial_cells", Bounds: Bounds{0, 5}, Unit: "/HPF", RangeText: "0 - 5 /HPF", Section: domain.SectionUrineAnalysis},
		{Code: "urine_protein", Bounds: Bounds{0, 0}, Unit: "", RangeText: "Negative",
			Qualitative: true, Section: domain.SectionUrineAnalysis},
		{Code: "urine_glucose", Bounds: Bounds{0, 0}, Unit: "", RangeText: "Negative",
			Qualitative: true, Section: domain.SectionUrineAnalysis},
		{Code: "leucocyte_esterase", Bounds: Bounds{0, 0}, Unit: "", RangeText: "Negative",
			Qualitative: true, Section: domain.SectionUrineAnalysis},
	}

	c := &Catalog{ranges: make(map[string]Range, len(entries)), codes: make([]string, 0, len(entries))}
	for _, e := range entries {
		c.ranges[e.Code] = e
		c.codes = append(c.codes, e.Code)
	}
	return c
}
