package service

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/lab-report-analyzer/internal/domain"
)

// conditionSignature ties a condition key to the canonical test codes
// that indicate it.
type conditionSignature struct {
	key     string
	members []string
}

// Signature order is fixed so detection output is deterministic.
var conditionSignatures = []conditionSignature{
	{"anemia", []string{"hemoglobin", "hematocrit", "rbc_count", "mcv", "mch", "iron", "ferritin"}},
	{"diabetes", []string{"glucose_fasting", "glucose_random", "hba1c"}},
	{"kidney_disease", []string{"creatinine", "bun", "egfr", "urea"}},
	{"liver_disease", []string{"sgpt_alt", "sgot_ast", "bilirubin_total", "alp", "albumin"}},
	{"infection", []string{"wbc_count", "neutrophils", "crp", "esr"}},
	{"thyroid_disorder", []string{"tsh", "t3", "t4", "free_t3", "free_t4"}},
	{"cardiovascular_risk", []string{"cholesterol_total", "ldl", "hdl", "triglycerides", "troponin"}},
	{"electrolyte_imbalance", []string{"sodium", "potassium", "calcium", "chloride", "magnesium"}},
	{"coagulation_disorder", []string{"pt", "inr", "aptt", "platelet_count"}},
}

var conditionMessages = map[string]string{
	"anemia":                "Multiple blood count indicators suggest possible anemia. Further evaluation recommended including iron studies.",
	"diabetes":              "Glucose-related tests show abnormal values. Recommend consultation with endocrinologist.",
	"kidney_disease":        "Kidney function markers are abnormal. Nephrology consultation may be needed.",
	"liver_disease":         "Liver function tests show abnormalities. Further hepatic evaluation recommended.",
	"infection":             "Inflammatory markers elevated. May indicate active infection. Clinical correlation required.",
	"thyroid_disorder":      "Thyroid panel shows abnormalities. Endocrinology follow-up recommended.",
	"cardiovascular_risk":   "Lipid panel indicates elevated cardiovascular risk. Lifestyle modifications and possible treatment needed.",
	"electrolyte_imbalance": "Electrolyte levels are abnormal. May require correction and monitoring.",
	"coagulation_disorder":  "Coagulation tests are abnormal. Hematology evaluation may be needed.",
}

// ConditionDetector flags condition patterns when at least two member
// tests of a signature are abnormal.
type ConditionDetector struct {
	log *logrus.Logger
}

func NewConditionDetector(log *logrus.Logger) *ConditionDetector {
	return &ConditionDetector{log: log}
}

// Detect scans classified results for condition signatures. Confidence
// is the fraction of signature members found abnormal, capped at 1.0;
// matches are sorted by descending confidence with signature order
// breaking ties.
func (d *ConditionDetector) Detect(results []domain.LabResult) []domain.ConditionMatch {
	abnormal := make(map[string]domain.Status)
	for _, r := range results {
		if r.Status.IsAbnormal() {
			abnormal[r.TestCode] = r.Status
		}
	}
	if len(abnormal) == 0 {
		return nil
	}

	var matches []domain.ConditionMatch
	for _, sig := range conditionSignatures {
		var indicators []domain.ConditionIndicator
		for _, code := range sig.members {
			if status, ok := abnormal[code]; ok {
				indicators = append(indicators, domain.ConditionIndicator{
					TestCode: code,
					Status:   status,
				})
			}
		}
		if len(indicators) < 2 {
			continue
		}
		confidence := float64(len(indicators)) / float64(len(sig.members))
		if confidence > 1.0 {
			confidence = 1.0
		}
		matches = append(matches, domain.ConditionMatch{
			Condition:  titleCaseKey(sig.key),
			Confidence: confidence,
			Indicators: indicators,
			Message:    conditionMessage(sig.key),
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Confidence > matches[j].Confidence
	})

	if d.log != nil && len(matches) > 0 {
		d.log.WithField("conditions", len(matches)).Debug("Condition patterns detected")
	}
	return matches
}

func conditionMessage(key string) string {
	if msg, ok := conditionMessages[key]; ok {
		return msg
	}
	return fmt.Sprintf("Abnormal values detected in %s panel.", key)
}

// titleCaseKey renders a snake_case condition key as a display name,
// "kidney_disease" to "Kidney Disease".
func titleCaseKey(key string) string {
	words := strings.Split(key, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
