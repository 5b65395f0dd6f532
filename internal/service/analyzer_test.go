package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lab-report-analyzer/internal/domain"
	"github.com/lab-report-analyzer/internal/reference"
)

type stubStructurer struct {
	tests []domain.ExternalTest
	err   error
	calls int
}

func (s *stubStructurer) StructureText(_ context.Context, _ string) ([]domain.ExternalTest, error) {
	s.calls++
	return s.tests, s.err
}

func newTestAnalyzer(structurer Structurer) *Analyzer {
	catalog := reference.DefaultCatalog()
	return NewAnalyzer(catalog, reference.NewResolver(catalog, nil), structurer, nil)
}

func TestAnalyzeMergesSourcesInPriorityOrder(t *testing.T) {
	a := newTestAnalyzer(nil)

	input := domain.AnalysisInput{
		Text: `Sex : Male
Hemoglobin 10.2 g/dL 13.5 - 17.5 L
Serum Creatinine 1.1 mg/dL 0.7 - 1.3`,
		Tables: []domain.Table{{
			Header: []string{"Test", "Result", "Unit", "Reference Range"},
			Rows: [][]string{
				{"Hemoglobin", "9.8", "g/dL", "13.5 - 17.5"},
				{"TSH", "2.1", "mIU/L", "0.4 - 4.0"},
			},
		}},
	}

	report := a.Analyze(context.Background(), input)

	require.Len(t, report.LabTests, 3)

	// The table row wins over the text line for hemoglobin.
	byCode := map[string]domain.LabResult{}
	for _, r := range report.LabTests {
		byCode[r.TestCode] = r
	}
	hb := byCode["hemoglobin"]
	assert.Equal(t, domain.SourceTable, hb.Source)
	assert.Equal(t, "9.8", hb.Value)
	assert.Equal(t, domain.StatusLow, hb.Status)

	assert.Equal(t, domain.SourceText, byCode["creatinine"].Source)
	assert.Equal(t, domain.SexMale, report.PatientInfo.Sex)
	assert.Equal(t, 3, report.Assessment.TotalTests)
}

func TestAnalyzeGroupsSections(t *testing.T) {
	a := newTestAnalyzer(nil)

	report := a.Analyze(context.Background(), domain.AnalysisInput{
		Tables: []domain.Table{{
			Header: []string{"Test", "Result"},
			Rows: [][]string{
				{"Hemoglobin", "14.1"},
				{"Platelet Count", "250000"},
				{"TSH", "2.1"},
			},
		}},
	})

	assert.Len(t, report.Sections[domain.SectionHematology], 2)
	assert.Len(t, report.Sections[domain.SectionThyroid], 1)
}

func TestAnalyzeUsesStructurerWhenLocalPathsEmpty(t *testing.T) {
	stub := &stubStructurer{tests: []domain.ExternalTest{
		{TestName: "Hemoglobin", Value: "9.1", Unit: "g/dL", ReferenceRange: "12.0 - 16.0"},
	}}
	a := newTestAnalyzer(stub)

	report := a.Analyze(context.Background(), domain.AnalysisInput{
		Text: "scanned report text with no parseable result lines",
	})

	assert.Equal(t, 1, stub.calls)
	require.Len(t, report.LabTests, 1)
	assert.Equal(t, domain.SourceExternal, report.LabTests[0].Source)
	assert.Equal(t, domain.StatusLow, report.LabTests[0].Status)
}

func TestAnalyzeStructurerFailureIsNotFatal(t *testing.T) {
	stub := &stubStructurer{err: errors.New("circuit open")}
	a := newTestAnalyzer(stub)

	report := a.Analyze(context.Background(), domain.AnalysisInput{
		Text: "Hemoglobin 10.2 g/dL 12.0 - 17.0",
	})

	assert.Equal(t, 1, stub.calls)
	require.Len(t, report.LabTests, 1)
	assert.Equal(t, domain.SourceText, report.LabTests[0].Source)
}

func TestAnalyzeSkipsStructurerWhenExternalProvided(t *testing.T) {
	stub := &stubStructurer{}
	a := newTestAnalyzer(stub)

	report := a.Analyze(context.Background(), domain.AnalysisInput{
		Text: "some text",
		ExternalTests: []domain.ExternalTest{
			{TestName: "TSH", Value: "6.2", ReferenceRange: "0.4 - 4.0"},
		},
	})

	assert.Equal(t, 0, stub.calls)
	require.Len(t, report.LabTests, 1)
	assert.Equal(t, "tsh", report.LabTests[0].TestCode)
}

func TestAnalyzeEmptyInput(t *testing.T) {
	a := newTestAnalyzer(nil)

	report := a.Analyze(context.Background(), domain.AnalysisInput{})

	assert.Empty(t, report.LabTests)
	assert.Equal(t, 0, report.Assessment.RiskScore)
	assert.Equal(t, domain.RiskNormal, report.Assessment.RiskLevel)
	assert.Equal(t, domain.SexUnknown, report.PatientInfo.Sex)
}

func TestAnalyzeRespectsProvidedPatientInfo(t *testing.T) {
	a := newTestAnalyzer(nil)

	info := domain.PatientInfo{Name: "R Iyer", Sex: domain.SexFemale}
	report := a.Analyze(context.Background(), domain.AnalysisInput{
		PatientInfo: &info,
		Tables: []domain.Table{{
			Header: []string{"Test", "Result"},
			Rows:   [][]string{{"PUS CELLS", "2"}},
		}},
	})

	require.Len(t, report.LabTests, 1)
	// Female override 3-7 makes 2 read low.
	assert.Equal(t, domain.StatusLow, report.LabTests[0].Status)
}

func TestAnalyzeLakhsPlateletCountStaysUnknown(t *testing.T) {
	a := newTestAnalyzer(nil)

	report := a.Analyze(context.Background(), domain.AnalysisInput{
		Tables: []domain.Table{{
			Header: []string{"Test", "Result", "Unit"},
			Rows:   [][]string{{"Platelet Count", "2.5", "lakhs/cumm"}},
		}},
	})

	require.Len(t, report.LabTests, 1)
	assert.Equal(t, domain.StatusUnknown, report.LabTests[0].Status)
	assert.Empty(t, report.Assessment.Alerts)
	assert.Equal(t, 0, report.Assessment.CriticalCount)
	assert.Equal(t, domain.RiskNormal, report.Assessment.RiskLevel)
}

func TestAnalyzeExtractedSexDrivesRangeOverride(t *testing.T) {
	a := newTestAnalyzer(nil)

	report := a.Analyze(context.Background(), domain.AnalysisInput{
		Text: `Patient Name : R Iyer
Sex : Female
URINE EXAMINATION
PUS CELLS 2 /HPF`,
	})

	assert.Equal(t, domain.SexFemale, report.PatientInfo.Sex)
	require.Len(t, report.LabTests, 1)
	r := report.LabTests[0]
	assert.Equal(t, "pus_cells", r.TestCode)
	assert.Equal(t, domain.SectionUrineAnalysis, r.Section)
	// Female override 3-7 makes 2 read low.
	assert.Equal(t, domain.StatusLow, r.Status)
}

func TestAnalyzeTests(t *testing.T) {
	a := newTestAnalyzer(nil)

	report := a.AnalyzeTests([]domain.ExternalTest{
		{TestName: "Hemoglobin", Value: "9.8", ReferenceRange: "13.0 - 17.0"},
		{TestName: "Haemoglobin (Hb)", Value: "10.0", ReferenceRange: "13.0 - 17.0"},
		{TestName: "", Value: "5"},
	}, domain.PatientInfo{Sex: domain.SexMale})

	require.Len(t, report.LabTests, 1)
	assert.Equal(t, "hemoglobin", report.LabTests[0].TestCode)
	assert.Equal(t, 1, report.Skipped.ExternalSkipped)
}
