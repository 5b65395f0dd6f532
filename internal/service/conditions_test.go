package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lab-report-analyzer/internal/domain"
)

func abnormalResult(code string, status domain.Status) domain.LabResult {
	return domain.LabResult{
		TestName:     code,
		TestCode:     code,
		NumericValue: domain.Float64(1),
		Status:       status,
	}
}

func TestDetectConditions(t *testing.T) {
	d := NewConditionDetector(nil)

	results := []domain.LabResult{
		abnormalResult("hemoglobin", domain.StatusLow),
		abnormalResult("hematocrit", domain.StatusLow),
		abnormalResult("mcv", domain.StatusLow),
		abnormalResult("glucose_fasting", domain.StatusHigh),
		abnormalResult("tsh", domain.StatusNormal),
	}

	matches := d.Detect(results)
	require.Len(t, matches, 1)

	m := matches[0]
	assert.Equal(t, "Anemia", m.Condition)
	assert.InDelta(t, 3.0/7.0, m.Confidence, 1e-9)
	assert.Len(t, m.Indicators, 3)
	assert.Equal(t, "hemoglobin", m.Indicators[0].TestCode)
	assert.Equal(t, domain.StatusLow, m.Indicators[0].Status)
	assert.Contains(t, m.Message, "anemia")
}

func TestDetectConditionsNeedsTwoIndicators(t *testing.T) {
	d := NewConditionDetector(nil)

	matches := d.Detect([]domain.LabResult{
		abnormalResult("glucose_fasting", domain.StatusHigh),
		abnormalResult("hemoglobin", domain.StatusLow),
	})
	assert.Empty(t, matches)
}

func TestDetectConditionsSortedByConfidence(t *testing.T) {
	d := NewConditionDetector(nil)

	matches := d.Detect([]domain.LabResult{
		abnormalResult("glucose_fasting", domain.StatusHigh),
		abnormalResult("hba1c", domain.StatusHigh),
		abnormalResult("hemoglobin", domain.StatusLow),
		abnormalResult("hematocrit", domain.StatusLow),
	})
	require.Len(t, matches, 2)

	// Diabetes matches 2 of 3 members, anemia 2 of 7.
	assert.Equal(t, "Diabetes", matches[0].Condition)
	assert.Equal(t, "Anemia", matches[1].Condition)
	assert.Greater(t, matches[0].Confidence, matches[1].Confidence)
}

func TestDetectConditionsNormalResultsQuiet(t *testing.T) {
	d := NewConditionDetector(nil)

	matches := d.Detect([]domain.LabResult{
		abnormalResult("hemoglobin", domain.StatusNormal),
		abnormalResult("hematocrit", domain.StatusNormal),
	})
	assert.Empty(t, matches)
}

func TestTitleCaseKey(t *testing.T) {
	assert.Equal(t, "Kidney Disease", titleCaseKey("kidney_disease"))
	assert.Equal(t, "Anemia", titleCaseKey("anemia"))
	assert.Equal(t, "Cardiovascular Risk", titleCaseKey("cardiovascular_risk"))
}
