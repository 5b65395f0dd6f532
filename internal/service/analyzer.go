package service

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/lab-report-analyzer/internal/domain"
	"github.com/lab-report-analyzer/internal/reference"
)

// Structurer converts free report text into pre-structured test records
// via an external service. Implementations are expected to fail fast
// when the service is unhealthy; the analyzer treats any error as "no
// external results".
type Structurer interface {
	StructureText(ctx context.Context, text string) ([]domain.ExternalTest, error)
}

// Analyzer runs the full pipeline: extract candidates from tables and
// text, classify them against reference ranges, merge duplicates, and
// assess risk. Malformed input never fails an analysis; unusable pieces
// are skipped and counted.
type Analyzer struct {
	extractor  *Extractor
	engine     *RangeEngine
	risk       *RiskAnalyzer
	structurer Structurer
	log        *logrus.Logger
}

// NewAnalyzer wires the pipeline. structurer may be nil, in which case
// only local extraction runs.
func NewAnalyzer(catalog *reference.Catalog, resolver *reference.Resolver, structurer Structurer, log *logrus.Logger) *Analyzer {
	detector := NewConditionDetector(log)
	return &Analyzer{
		extractor:  NewExtractor(log),
		engine:     NewRangeEngine(catalog, resolver, log),
		risk:       NewRiskAnalyzer(catalog, detector, log),
		structurer: structurer,
		log:        log,
	}
}

// Analyze processes one report. Table rows are trusted most, then text
// lines, then externally structured records; the first occurrence of a
// test code wins and later duplicates are dropped.
func (a *Analyzer) Analyze(ctx context.Context, input domain.AnalysisInput) domain.AnalysisReport {
	var skipped domain.SkipCounters

	info := domain.PatientInfo{Sex: domain.SexUnknown}
	if input.PatientInfo != nil {
		info = *input.PatientInfo
	} else if input.Text != "" {
		info = a.extractor.ExtractPatientInfo(input.Text)
	}

	var results []domain.LabResult
	seen := make(map[string]struct{})

	add := func(r domain.LabResult) {
		if _, dup := seen[r.TestCode]; dup {
			return
		}
		seen[r.TestCode] = struct{}{}
		results = append(results, r)
	}

	for _, c := range a.extractor.ExtractFromTables(input.Tables, &skipped) {
		if r, ok := a.engine.Classify(c, info.Sex); ok {
			add(r)
		} else {
			skipped.TableRowsSkipped++
		}
	}
	for _, c := range a.extractor.ExtractFromText(input.Text, &skipped) {
		if r, ok := a.engine.Classify(c, info.Sex); ok {
			add(r)
		} else {
			skipped.TextLinesSkipped++
		}
	}

	external := input.ExternalTests
	if len(external) == 0 && a.structurer != nil && strings.TrimSpace(input.Text) != "" {
		ext, err := a.structurer.StructureText(ctx, input.Text)
		if err != nil {
			if a.log != nil {
				a.log.WithError(err).Warn("External structuring unavailable, continuing with local extraction")
			}
		} else {
			external = ext
		}
	}
	for _, t := range external {
		if r, ok := a.engine.ClassifyExternal(t, info.Sex); ok {
			add(r)
		} else {
			skipped.ExternalSkipped++
		}
	}

	return a.report(info, results, skipped)
}

// AnalyzeTests classifies and assesses pre-structured records directly,
// bypassing extraction.
func (a *Analyzer) AnalyzeTests(tests []domain.ExternalTest, info domain.PatientInfo) domain.AnalysisReport {
	var skipped domain.SkipCounters
	var results []domain.LabResult
	seen := make(map[string]struct{})

	for _, t := range tests {
		r, ok := a.engine.ClassifyExternal(t, info.Sex)
		if !ok {
			skipped.ExternalSkipped++
			continue
		}
		if _, dup := seen[r.TestCode]; dup {
			continue
		}
		seen[r.TestCode] = struct{}{}
		results = append(results, r)
	}
	return a.report(info, results, skipped)
}

func (a *Analyzer) report(info domain.PatientInfo, results []domain.LabResult, skipped domain.SkipCounters) domain.AnalysisReport {
	sections := make(map[domain.Section][]domain.LabResult)
	for _, r := range results {
		sections[r.Section] = append(sections[r.Section], r)
	}

	assessment := a.risk.Assess(results, info.Sex)

	if a.log != nil {
		a.log.WithFields(logrus.Fields{
			"tests":    len(results),
			"sections": len(sections),
			"skipped":  skipped,
		}).Debug("Analysis report assembled")
	}

	return domain.AnalysisReport{
		PatientInfo: info,
		LabTests:    results,
		Sections:    sections,
		Assessment:  assessment,
		Skipped:     skipped,
	}
}
