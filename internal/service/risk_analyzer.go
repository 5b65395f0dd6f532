package service

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/lab-report-analyzer/internal/domain"
	"github.com/lab-report-analyzer/internal/reference"
)

// RiskAnalyzer builds per-test alerts and the aggregate risk picture
// from classified results. Severity comes from how far a value sits
// outside its catalog bounds; an explicit critical threshold breach is
// always CRITICAL regardless of deviation.
type RiskAnalyzer struct {
	catalog  *reference.Catalog
	detector *ConditionDetector
	log      *logrus.Logger
}

func NewRiskAnalyzer(catalog *reference.Catalog, detector *ConditionDetector, log *logrus.Logger) *RiskAnalyzer {
	return &RiskAnalyzer{catalog: catalog, detector: detector, log: log}
}

// Assess produces the full risk assessment for a set of classified
// results. Results without a numeric value are informational and never
// alert.
func (ra *RiskAnalyzer) Assess(results []domain.LabResult, sex domain.Sex) domain.RiskAssessment {
	var alerts []domain.Alert
	abnormalCount := 0
	criticalCount := 0

	for _, r := range results {
		if r.NumericValue == nil {
			continue
		}
		alert, ok := ra.alertFor(r, sex)
		if !ok {
			continue
		}
		alerts = append(alerts, alert)
		switch alert.Severity {
		case domain.SeverityCritical:
			criticalCount++
			abnormalCount++
		case domain.SeverityHigh, domain.SeverityModerate:
			abnormalCount++
		}
	}

	// Stable sort keeps discovery order within the same severity.
	sort.SliceStable(alerts, func(i, j int) bool {
		return alerts[i].Severity.Rank() < alerts[j].Severity.Rank()
	})

	conditions := ra.detector.Detect(results)
	score := ra.score(alerts, len(results))

	assessment := domain.RiskAssessment{
		Alerts:        alerts,
		Summary:       ra.summary(alerts, conditions),
		AbnormalCount: abnormalCount,
		CriticalCount: criticalCount,
		TotalTests:    len(results),
		RiskScore:     score,
		RiskLevel:     domain.RiskLevelForScore(score),
		Conditions:    conditions,
	}

	if ra.log != nil {
		ra.log.WithFields(logrus.Fields{
			"total_tests": assessment.TotalTests,
			"alerts":      len(alerts),
			"risk_score":  score,
			"risk_level":  assessment.RiskLevel,
		}).Info("Risk assessment complete")
	}
	return assessment
}

func (ra *RiskAnalyzer) alertFor(r domain.LabResult, sex domain.Sex) (domain.Alert, bool) {
	value := *r.NumericValue
	catRange, haveCat := ra.catalog.LookupForSex(r.TestCode, sex)
	// The same scale-mismatch guard as classification: a value printed
	// in lakhs must not be graded against absolute-count thresholds.
	if haveCat && skipCatalogForUnit(r.Unit, catRange.Bounds.Min) {
		haveCat = false
	}

	severity := ra.severity(r, value, catRange, haveCat)
	if severity == domain.SeverityNormal {
		return domain.Alert{}, false
	}

	refText := r.ReferenceRange
	if refText == "" && haveCat {
		refText = catRange.RangeText
	}

	message, recommendation := alertMessage(r.TestName, value, r.Unit, r.Status, severity, refText)

	return domain.Alert{
		TestName:                   r.TestName,
		TestCode:                   r.TestCode,
		Value:                      value,
		Unit:                       r.Unit,
		Status:                     r.Status,
		Severity:                   severity,
		ReferenceRange:             refText,
		Message:                    message,
		Recommendation:             recommendation,
		RequiresImmediateAttention: severity.RequiresImmediateAttention(),
	}, true
}

func (ra *RiskAnalyzer) severity(r domain.LabResult, value float64, catRange reference.Range, haveCat bool) domain.Severity {
	if r.Status == domain.StatusNormal {
		return domain.SeverityNormal
	}

	// Critical thresholds are absolute values and always come from the
	// catalog, whatever range decided the status.
	if haveCat {
		if catRange.CriticalLow != nil && value < *catRange.CriticalLow {
			return domain.SeverityCritical
		}
		if catRange.CriticalHigh != nil && value > *catRange.CriticalHigh {
			return domain.SeverityCritical
		}
	}

	// Deviation is measured against the range that classified the
	// result: the one printed on the document when present, otherwise
	// the catalog bounds.
	min, max, haveBounds := ParseRangeText(r.ReferenceRange)
	if !haveBounds && haveCat && !catRange.Qualitative {
		min, max, haveBounds = catRange.Bounds.Min, catRange.Bounds.Max, true
	}
	if !haveBounds {
		// No measurable range anywhere: trust the extraction flag but
		// cap the severity since no deviation can be computed.
		if r.Status.IsAbnormal() {
			return domain.SeverityModerate
		}
		return domain.SeverityNormal
	}

	switch {
	case value < min:
		return severityForDeviation(deviationPercent(min-value, min))
	case value > max:
		return severityForDeviation(deviationPercent(value-max, max))
	default:
		// In bounds resolves to NORMAL even when an upstream flag
		// disagrees; the measured range is authoritative.
		return domain.SeverityNormal
	}
}

// deviationPercent guards the zero-bound division with a midline
// fallback.
func deviationPercent(distance, bound float64) float64 {
	if bound <= 0 {
		return 50
	}
	return distance / bound * 100
}

func severityForDeviation(pct float64) domain.Severity {
	switch {
	case pct > 30:
		return domain.SeverityHigh
	case pct > 15:
		return domain.SeverityModerate
	default:
		return domain.SeverityLow
	}
}

func alertMessage(testName string, value float64, unit string, status domain.Status, severity domain.Severity, refText string) (string, string) {
	valueStr := strings.TrimSpace(fmt.Sprintf("%v %s", value, unit))
	if refText == "" {
		refText = "N/A"
	}

	var direction string
	switch status {
	case domain.StatusHigh:
		direction = "elevated"
	case domain.StatusLow:
		direction = "low"
	default:
		direction = "abnormal"
	}

	switch severity {
	case domain.SeverityCritical:
		return fmt.Sprintf("⚠️ CRITICAL: %s is critically %s at %s. Reference range: %s. Immediate medical attention required!",
				testName, direction, valueStr, refText),
			"Seek immediate medical attention. Contact healthcare provider urgently."
	case domain.SeverityHigh:
		return fmt.Sprintf("🔴 HIGH ALERT: %s is significantly %s at %s. Reference range: %s.",
				testName, direction, valueStr, refText),
			"Schedule urgent consultation with healthcare provider within 24-48 hours."
	case domain.SeverityModerate:
		return fmt.Sprintf("🟠 MODERATE: %s is %s at %s. Reference range: %s.",
				testName, direction, valueStr, refText),
			"Follow up with healthcare provider. May require additional testing."
	default:
		return fmt.Sprintf("🟡 NOTICE: %s is slightly %s at %s. Reference range: %s.",
				testName, direction, valueStr, refText),
			"Monitor and discuss at next regular checkup."
	}
}

func (ra *RiskAnalyzer) score(alerts []domain.Alert, totalTests int) int {
	if len(alerts) == 0 || totalTests == 0 {
		return 0
	}
	score := 0
	for _, a := range alerts {
		score += a.Severity.Weight()
	}
	normalized := float64(score) * (10 / float64(max(totalTests, 1)))
	if normalized > 100 {
		normalized = 100
	}
	return int(normalized + 0.5)
}

func (ra *RiskAnalyzer) summary(alerts []domain.Alert, conditions []domain.ConditionMatch) string {
	if len(alerts) == 0 {
		return "All lab values are within normal ranges. No concerns identified."
	}

	counts := map[domain.Severity]int{}
	for _, a := range alerts {
		counts[a.Severity]++
	}

	var parts []string
	if n := counts[domain.SeverityCritical]; n > 0 {
		parts = append(parts, fmt.Sprintf("%d CRITICAL alert(s) requiring immediate attention", n))
	}
	if n := counts[domain.SeverityHigh]; n > 0 {
		parts = append(parts, fmt.Sprintf("%d HIGH priority finding(s)", n))
	}
	if n := counts[domain.SeverityModerate]; n > 0 {
		parts = append(parts, fmt.Sprintf("%d MODERATE concern(s)", n))
	}

	summary := "Analysis identified: " + strings.Join(parts, "; ") + "."

	if len(conditions) > 0 {
		names := make([]string, 0, 3)
		for _, c := range conditions {
			names = append(names, c.Condition)
			if len(names) == 3 {
				break
			}
		}
		summary += " Potential conditions: " + strings.Join(names, ", ") + "."
	}
	return summary
}
