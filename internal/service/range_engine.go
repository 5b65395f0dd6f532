package service

import (
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/lab-report-analyzer/internal/domain"
	"github.com/lab-report-analyzer/internal/reference"
)

// RangeEngine turns raw candidates into classified results. Reference
// bounds are resolved in priority order: the range printed on the
// document wins, then the sex-specific catalog override, then the
// catalog default. A candidate with no usable range anywhere keeps
// whatever status its extraction flag carried.
type RangeEngine struct {
	catalog  *reference.Catalog
	resolver *reference.Resolver
	log      *logrus.Logger
}

func NewRangeEngine(catalog *reference.Catalog, resolver *reference.Resolver, log *logrus.Logger) *RangeEngine {
	return &RangeEngine{catalog: catalog, resolver: resolver, log: log}
}

// Classify resolves a candidate against the reference catalog. The
// second return is false only when the candidate carries no usable
// name; an unreadable value still produces an UNKNOWN record.
func (re *RangeEngine) Classify(c domain.Candidate, sex domain.Sex) (domain.LabResult, bool) {
	name := strings.TrimSpace(c.RawName)
	if name == "" {
		return domain.LabResult{}, false
	}
	code, known := re.resolver.Resolve(name)
	if code == "" {
		return domain.LabResult{}, false
	}

	status := c.Status
	if !status.IsValid() {
		status = domain.StatusUnknown
	}

	result := domain.LabResult{
		TestName: name,
		TestCode: code,
		Value:    strings.TrimSpace(c.RawValue),
		Unit:     strings.TrimSpace(c.RawUnit),
		Status:   status,
		Source:   c.Origin,
		Section:  re.resolver.Section(code, name),
	}
	// A heading seen above the line beats the keyword fallback.
	if result.Section == domain.SectionOther && c.Section.IsValid() {
		result.Section = c.Section
	}

	// A value with no readable number stays in the output with its raw
	// string, but cannot be classified.
	value, numOK := ParseNumericValue(c.RawValue)
	if !numOK {
		result.Status = domain.StatusUnknown
		result.ReferenceRange = strings.TrimSpace(c.RawReferenceText)
		return result, true
	}
	result.NumericValue = domain.Float64(value)

	var catRange reference.Range
	var haveCat bool
	if known {
		catRange, haveCat = re.catalog.LookupForSex(code, sex)
	}

	if haveCat && catRange.Unitless {
		result.Unit = ""
	}
	if haveCat && result.Unit == "" && !catRange.Unitless {
		result.Unit = catRange.Unit
	}

	// Qualitative tests have no interval: zero is normal, anything
	// else is elevated.
	if haveCat && catRange.Qualitative {
		result.ReferenceRange = catRange.RangeText
		if value == 0 {
			result.Status = domain.StatusNormal
		} else {
			result.Status = domain.StatusHigh
		}
		return result, true
	}

	// Document range first.
	if min, max, ok := ParseRangeText(c.RawReferenceText); ok {
		result.ReferenceRange = strings.TrimSpace(c.RawReferenceText)
		result.Status = statusForBounds(value, min, max)
		return result, true
	}

	// Catalog range, unless the unit says the value is in lakhs while
	// the catalog counts absolute cells.
	if haveCat && !skipCatalogForUnit(result.Unit, catRange.Bounds.Min) {
		result.ReferenceRange = catRange.RangeText
		result.Status = statusForBounds(value, catRange.Bounds.Min, catRange.Bounds.Max)
		return result, true
	}

	// No range resolved. An extraction flag still counts; otherwise the
	// status is unknown and the result is informational only.
	if re.log != nil && !haveCat {
		re.log.WithFields(logrus.Fields{
			"test": name,
			"code": code,
		}).Debug("No reference range available")
	}
	return result, true
}

// ClassifyExternal adapts a pre-structured record from the structuring
// service into the same classified shape.
func (re *RangeEngine) ClassifyExternal(t domain.ExternalTest, sex domain.Sex) (domain.LabResult, bool) {
	c := domain.Candidate{
		RawName:          t.TestName,
		RawValue:         t.Value,
		RawUnit:          t.Unit,
		RawReferenceText: t.ReferenceRange,
		Origin:           domain.SourceExternal,
		Status:           statusFromFlag(t.Status),
	}
	if strings.TrimSpace(t.Value) == "" && t.NumericValue != nil {
		c.RawValue = strconv.FormatFloat(*t.NumericValue, 'f', -1, 64)
	}
	result, ok := re.Classify(c, sex)
	if !ok {
		return domain.LabResult{}, false
	}
	if t.Section != "" {
		if sec := domain.Section(strings.ToLower(t.Section)); sec.IsValid() {
			result.Section = sec
		}
	}
	return result, true
}

// statusForBounds is a strict interval check: the bounds themselves are
// normal.
func statusForBounds(v, min, max float64) domain.Status {
	switch {
	case v < min:
		return domain.StatusLow
	case v > max:
		return domain.StatusHigh
	default:
		return domain.StatusNormal
	}
}

// skipCatalogForUnit guards against a unit-scale mismatch: platelet
// counts printed in lakhs/cumm read as single digits against a catalog
// that counts absolute cells, so the catalog range must not apply.
func skipCatalogForUnit(unit string, catalogMin float64) bool {
	u := strings.ToLower(unit)
	if !strings.Contains(u, "lakh") && !strings.Contains(u, "lac") {
		return false
	}
	return catalogMin > 100
}
