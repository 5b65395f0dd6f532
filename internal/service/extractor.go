// Package service implements the lab report analysis pipeline: candidate
// extraction, reference resolution, condition detection, and risk
// scoring.
package service

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/lab-report-analyzer/internal/domain"
)

// Extractor pulls test candidates out of raw report material: parsed
// tables first, then free text for anything the tables missed. It never
// fails; unusable rows and lines are counted and skipped.
type Extractor struct {
	log *logrus.Logger
}

func NewExtractor(log *logrus.Logger) *Extractor {
	return &Extractor{log: log}
}

// Column-role keywords for table headers. Matching is substring,
// case-insensitive, first hit wins per role.
var (
	nameHeaderWords  = []string{"test", "investigation", "parameter", "name", "analyte"}
	valueHeaderWords = []string{"result", "value", "observed", "finding"}
	unitHeaderWords  = []string{"unit"}
	refHeaderWords   = []string{"reference", "range", "normal", "ref", "biological"}
	flagHeaderWords  = []string{"flag", "status", "interpretation"}
)

// Lines and rows that are report furniture rather than results.
var skipLineRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^page\s*\d+`),
	regexp.MustCompile(`(?i)^dr\.?\s`),
	regexp.MustCompile(`^\d{1,2}[/-]\d{1,2}[/-]\d{2,4}`),
	regexp.MustCompile(`(?i)requested\s+on`),
	regexp.MustCompile(`(?i)reported\s+on`),
	regexp.MustCompile(`(?i)^specimen`),
	regexp.MustCompile(`(?i)^department`),
	regexp.MustCompile(`(?i)\b(reg|req)\.?\s*no`),
	regexp.MustCompile(`[-=]{5,}`),
	regexp.MustCompile(`(?i)end\s+of\s+report`),
	regexp.MustCompile(`(?i)verified\s+by`),
	regexp.MustCompile(`(?i)consultant`),
	regexp.MustCompile(`(?i)pathologist`),
}

// Name tokens that mark a line as a person, not a test.
var nameStopWords = map[string]struct{}{
	"page": {}, "dr": {}, "mr": {}, "mrs": {}, "ms": {},
}

// Free-text result line shapes, tried in order. The standard shape is
// "name value unit range"; the delimited shape covers "name : value" and
// "name -> value" layouts.
var (
	standardLineRe = regexp.MustCompile(
		`^([A-Za-z][A-Za-z0-9 ./()%,-]*?)\s+([<>]?\s*\d[\d,]*\.?\d*)\s*([A-Za-zµ/%²]+[A-Za-zµ/%²\d.]*)?\s*([\d,<>][\d,.<>\s-]*[\d.])?\s*([HL])?$`)
	arrowLineRe = regexp.MustCompile(
		`^([A-Za-z][A-Za-z0-9 ./()%,-]*?)\s+([<>]?\s*\d[\d,]*\.?\d*)\s*(↑|↓)\s*(.*)$`)
	delimitedLineRe = regexp.MustCompile(
		`^([A-Za-z][A-Za-z0-9 ./()%,-]*?)\s*(?::|->|=>)\s*([<>]?\s*\d[\d,]*\.?\d*)\s*(.*)$`)
)

var (
	numberRe    = regexp.MustCompile(`[<>]?\s*(\d[\d,]*\.?\d*)`)
	rangePairRe = regexp.MustCompile(`(\d[\d,]*\.?\d*)\s*(?:-|–|to)\s*(\d[\d,]*\.?\d*)`)
	rangeUptoRe = regexp.MustCompile(`(?i)^(?:upto|up\s*to)\s*(\d[\d,]*\.?\d*)`)
	rangeGtRe   = regexp.MustCompile(`^>\s*=?\s*(\d[\d,]*\.?\d*)`)
	rangeLtRe   = regexp.MustCompile(`^<\s*=?\s*(\d[\d,]*\.?\d*)`)
	unitRe      = regexp.MustCompile(`(?i)(g/dl|mg/dl|mg/l|gm/dl|gm%|g%|mmol/l|meq/l|miu/l|µiu/ml|uiu/ml|iu/l|u/l|ng/ml|ng/dl|pg/ml|pg|µg/dl|ug/dl|mcg/dl|fl|%|mm/hr|mm\s*in\s*1st\s*hr|cells/µl|cells/ul|cells/cumm|/cumm|cumm|lakhs?/cumm|lakh|lacs?/cumm|million/µl|million/ul|millions?/cumm|/hpf|/lpf|sec(?:onds)?|ml/min/1\.73m²?)\b`)
)

// Qualitative result words and their numeric stand-ins. Zero means the
// finding is absent.
var qualitativeValues = map[string]float64{
	"nil": 0, "absent": 0, "negative": 0, "none": 0, "-": 0,
	"trace": 0.5,
	"present": 1, "positive": 1,
	"+": 1, "++": 2, "+++": 3,
}

// columnRoles holds the resolved index per role, -1 when missing.
type columnRoles struct {
	name, value, unit, ref, flag int
}

// ExtractFromTables walks every table and emits one candidate per
// plausible result row. Rows without a readable name and value are
// skipped and counted. When the caller pre-classified tables, only the
// ones marked as lab tables are read; unmarked input is scanned whole.
func (e *Extractor) ExtractFromTables(tables []domain.Table, skipped *domain.SkipCounters) []domain.Candidate {
	classified := false
	for _, t := range tables {
		if t.IsLabTable {
			classified = true
			break
		}
	}

	var out []domain.Candidate
	for ti, table := range tables {
		if classified && !table.IsLabTable {
			continue
		}
		roles := identifyColumns(table.Header)
		for ri, row := range table.Rows {
			c, ok := e.candidateFromRow(row, roles)
			if !ok {
				if skipped != nil {
					skipped.TableRowsSkipped++
				}
				continue
			}
			c.Origin = domain.SourceTable
			c.Position = ti*1000 + ri
			out = append(out, c)
		}
	}
	if e.log != nil {
		e.log.WithFields(logrus.Fields{
			"tables":     len(tables),
			"candidates": len(out),
		}).Debug("Table extraction complete")
	}
	return out
}

func identifyColumns(header []string) columnRoles {
	roles := columnRoles{name: -1, value: -1, unit: -1, ref: -1, flag: -1}
	for i, cell := range header {
		h := strings.ToLower(cell)
		switch {
		case roles.name < 0 && containsAny(h, nameHeaderWords):
			roles.name = i
		case roles.value < 0 && containsAny(h, valueHeaderWords):
			roles.value = i
		case roles.unit < 0 && containsAny(h, unitHeaderWords):
			roles.unit = i
		case roles.ref < 0 && containsAny(h, refHeaderWords):
			roles.ref = i
		case roles.flag < 0 && containsAny(h, flagHeaderWords):
			roles.flag = i
		}
	}
	// Headerless tables: assume the two leading columns.
	if roles.name < 0 && roles.value < 0 {
		roles.name, roles.value = 0, 1
	}
	return roles
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func (e *Extractor) candidateFromRow(row []string, roles columnRoles) (domain.Candidate, bool) {
	name := cellAt(row, roles.name)
	value := cellAt(row, roles.value)
	if name == "" || value == "" {
		return domain.Candidate{}, false
	}
	if isSkippableLine(name) || !plausibleName(name) {
		return domain.Candidate{}, false
	}

	c := domain.Candidate{
		RawName:          name,
		RawValue:         value,
		RawUnit:          cellAt(row, roles.unit),
		RawReferenceText: cellAt(row, roles.ref),
		Status:           statusFromFlag(cellAt(row, roles.flag)),
	}
	if c.RawUnit == "" {
		c.RawUnit = ExtractUnit(value)
	}
	return c, true
}

func cellAt(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func statusFromFlag(flag string) domain.Status {
	switch strings.ToUpper(strings.TrimSpace(flag)) {
	case "H", "HIGH":
		return domain.StatusHigh
	case "L", "LOW":
		return domain.StatusLow
	case "N", "NORMAL", "WNL":
		return domain.StatusNormal
	default:
		return domain.StatusUnknown
	}
}

// Section heading keywords. A heading line carries no digits, so any
// result line is safe from misclassification.
var sectionHeaderWords = []struct {
	word    string
	section domain.Section
}{
	{"complete blood count", domain.SectionHematology},
	{"haematology", domain.SectionHematology},
	{"hematology", domain.SectionHematology},
	{"liver function", domain.SectionLiverFunction},
	{"kidney function", domain.SectionKidneyFunction},
	{"renal function", domain.SectionKidneyFunction},
	{"lipid profile", domain.SectionLipidProfile},
	{"thyroid", domain.SectionThyroid},
	{"glycemic", domain.SectionDiabetes},
	{"urine examination", domain.SectionUrineAnalysis},
	{"urine analysis", domain.SectionUrineAnalysis},
	{"urinalysis", domain.SectionUrineAnalysis},
	{"biochemistry", domain.SectionBiochemistry},
}

func detectSectionHeader(line string) (domain.Section, bool) {
	if strings.ContainsAny(line, "0123456789") || len(line) > 60 {
		return "", false
	}
	l := strings.ToLower(line)
	for _, sh := range sectionHeaderWords {
		if strings.Contains(l, sh.word) {
			return sh.section, true
		}
	}
	return "", false
}

// ExtractFromText scans free text line by line, skipping report
// furniture and trying each line shape in order. Section heading lines
// set the section carried by the candidates that follow them.
func (e *Extractor) ExtractFromText(text string, skipped *domain.SkipCounters) []domain.Candidate {
	var out []domain.Candidate
	var section domain.Section
	for pos, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if sec, ok := detectSectionHeader(line); ok {
			section = sec
			continue
		}
		if isSkippableLine(line) {
			if skipped != nil {
				skipped.TextLinesSkipped++
			}
			continue
		}
		c, ok := candidateFromLine(line)
		if !ok {
			if skipped != nil {
				skipped.TextLinesSkipped++
			}
			continue
		}
		c.Origin = domain.SourceText
		c.Position = pos
		c.Section = section
		out = append(out, c)
	}
	if e.log != nil {
		e.log.WithField("candidates", len(out)).Debug("Text extraction complete")
	}
	return out
}

func isSkippableLine(line string) bool {
	for _, re := range skipLineRes {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

func hasNameStopWord(name string) bool {
	for _, word := range strings.Fields(strings.ToLower(name)) {
		if _, ok := nameStopWords[strings.TrimRight(word, ".")]; ok {
			return true
		}
	}
	return false
}

// candidateFromLine tries each line shape in order; the first strategy
// that yields a plausible name and value wins.
func candidateFromLine(line string) (domain.Candidate, bool) {
	if m := arrowLineRe.FindStringSubmatch(line); m != nil {
		name := strings.TrimSpace(m[1])
		if plausibleName(name) {
			status := domain.StatusHigh
			if m[3] == "↓" {
				status = domain.StatusLow
			}
			rest := strings.TrimSpace(m[4])
			return domain.Candidate{
				RawName:          name,
				RawValue:         strings.TrimSpace(m[2]),
				RawUnit:          ExtractUnit(rest),
				RawReferenceText: extractRangeText(rest),
				Status:           status,
			}, true
		}
	}
	if m := standardLineRe.FindStringSubmatch(line); m != nil {
		name := strings.TrimSpace(m[1])
		if plausibleName(name) {
			return domain.Candidate{
				RawName:          name,
				RawValue:         strings.TrimSpace(m[2]),
				RawUnit:          strings.TrimSpace(m[3]),
				RawReferenceText: strings.TrimSpace(m[4]),
				Status:           statusFromFlag(m[5]),
			}, true
		}
	}
	if m := delimitedLineRe.FindStringSubmatch(line); m != nil {
		name := strings.TrimSpace(m[1])
		if plausibleName(name) {
			rest := strings.TrimSpace(m[3])
			return domain.Candidate{
				RawName:          name,
				RawValue:         strings.TrimSpace(m[2]),
				RawUnit:          ExtractUnit(rest),
				RawReferenceText: extractRangeText(rest),
				Status:           domain.StatusUnknown,
			}, true
		}
	}
	return domain.Candidate{}, false
}

func plausibleName(name string) bool {
	return len(name) >= 2 && !hasNameStopWord(name)
}

func extractRangeText(s string) string {
	if m := rangePairRe.FindString(s); m != "" {
		return m
	}
	return ""
}

// ParseNumericValue turns a raw result cell into a number. Commas are
// thousands separators; comparison prefixes ("<0.01") keep the bound as
// the value; qualitative words map to their numeric stand-ins.
func ParseNumericValue(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	if v, ok := qualitativeValues[strings.ToLower(s)]; ok {
		return v, true
	}
	// Strip a leading qualitative word from values like "Present (2+)".
	lower := strings.ToLower(s)
	for word, v := range qualitativeValues {
		if len(word) > 1 && strings.HasPrefix(lower, word) {
			rest := strings.TrimSpace(s[len(word):])
			if rest == "" {
				return v, true
			}
			if n, ok := firstNumber(rest); ok {
				return n, true
			}
			return v, true
		}
	}
	return firstNumber(s)
}

func firstNumber(s string) (float64, bool) {
	m := numberRe.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ParseRangeText reads a printed reference interval. Supported shapes
// are "a - b", "a to b", "Upto b", "< b", and "> a"; open ends get
// sentinel bounds wide enough to never flag.
func ParseRangeText(raw string) (min, max float64, ok bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, 0, false
	}
	if m := rangePairRe.FindStringSubmatch(s); m != nil {
		lo, err1 := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
		hi, err2 := strconv.ParseFloat(strings.ReplaceAll(m[2], ",", ""), 64)
		if err1 == nil && err2 == nil && lo <= hi {
			return lo, hi, true
		}
	}
	if m := rangeUptoRe.FindStringSubmatch(s); m != nil {
		hi, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
		if err == nil {
			return 0, hi, true
		}
	}
	if m := rangeGtRe.FindStringSubmatch(s); m != nil {
		lo, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
		if err == nil {
			return lo, 999999, true
		}
	}
	if m := rangeLtRe.FindStringSubmatch(s); m != nil {
		hi, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
		if err == nil {
			return 0, hi, true
		}
	}
	return 0, 0, false
}

// ExtractUnit finds the first recognized unit token in a string.
func ExtractUnit(s string) string {
	return unitRe.FindString(s)
}

// Patient demographics printed in report headers.
var (
	patientNameRe = regexp.MustCompile(`(?i)(?:patient\s*name|name)\s*[:\-]\s*((?:mrs|ms|mr|dr)\.?\s+)?([A-Za-z][A-Za-z .]{1,48})`)
	patientAgeRe  = regexp.MustCompile(`(?i)age\s*[:\-]?\s*(\d{1,3})\s*(?:yrs?|years?)?`)
	patientSexRe  = regexp.MustCompile(`(?i)(?:sex|gender)\s*[:\-]?\s*(male|female|m|f)\b`)
	patientIDRe   = regexp.MustCompile(`(?i)(?:patient\s*id|uhid|mrn)\s*[:\-]?\s*([A-Za-z0-9/-]+)`)
	reportDateRe  = regexp.MustCompile(`(?i)(?:reported\s+on|report\s+date|date)\s*[:\-]?\s*(\d{1,2}[/-]\d{1,2}[/-]\d{2,4})`)
	referredByRe  = regexp.MustCompile(`(?i)(?:referred\s+by|ref\.?\s*by)\s*[:\-]?\s*(?:dr\.?\s+)?([A-Za-z][A-Za-z .]{1,48})`)
)

// ExtractPatientInfo pulls demographics from the report header text.
// Missing fields stay zero valued; sex defaults to unknown.
func (e *Extractor) ExtractPatientInfo(text string) domain.PatientInfo {
	info := domain.PatientInfo{Sex: domain.SexUnknown}
	if m := patientNameRe.FindStringSubmatch(text); m != nil {
		info.Name = strings.TrimSpace(m[2])
	}
	if m := patientAgeRe.FindStringSubmatch(text); m != nil {
		info.Age = m[1]
	}
	if m := patientSexRe.FindStringSubmatch(text); m != nil {
		info.Sex = domain.ParseSex(m[1])
	}
	if m := patientIDRe.FindStringSubmatch(text); m != nil {
		info.PatientID = strings.TrimSpace(m[1])
	}
	if m := reportDateRe.FindStringSubmatch(text); m != nil {
		info.ReportedDate = m[1]
	}
	if m := referredByRe.FindStringSubmatch(text); m != nil {
		info.ReferredBy = strings.TrimSpace(m[1])
	}
	return info
}
