// Package domain contains core business entities and types for laboratory
// report analysis: canonical test records, abnormality statuses, alert
// severities, and risk assessment results.
//
// Status and severity strings are part of the wire contract with downstream
// consumers and must not be changed.
package domain

import (
	"errors"
	"strings"
)

// Status represents the abnormality classification of a lab value relative
// to its resolved reference range.
type Status string

const (
	StatusLow     Status = "LOW"
	StatusNormal  Status = "NORMAL"
	StatusHigh    Status = "HIGH"
	StatusUnknown Status = "UNKNOWN"
)

// Severity represents the graded clinical severity of an abnormal value.
// SeverityNormal is used internally for in-range values; alerts are only
// composed for non-NORMAL severities.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityModerate Severity = "MODERATE"
	SeverityLow      Severity = "LOW"
	SeverityNormal   Severity = "NORMAL"
)

// RiskLevel represents the overall risk category derived from the 0-100
// risk score.
type RiskLevel string

const (
	RiskCritical RiskLevel = "CRITICAL"
	RiskHigh     RiskLevel = "HIGH"
	RiskModerate RiskLevel = "MODERATE"
	RiskLow      RiskLevel = "LOW"
	RiskNormal   RiskLevel = "NORMAL"
)

// Sex is the subject's sex as used for sex-specific reference range
// resolution. SexUnknown disables sex-specific overrides.
type Sex string

const (
	SexMale    Sex = "male"
	SexFemale  Sex = "female"
	SexUnknown Sex = "unknown"
)

// Source identifies which extraction path produced a result. Structured
// tables are considered more reliable than free-text line parsing; the
// merger enforces this ordering.
type Source string

const (
	SourceTable    Source = "table"
	SourceText     Source = "text"
	SourceExternal Source = "external"
)

// Section is the clinical category a test belongs to.
type Section string

const (
	SectionHematology     Section = "hematology"
	SectionBiochemistry   Section = "biochemistry"
	SectionUrineAnalysis  Section = "urine_analysis"
	SectionLiverFunction  Section = "liver_function"
	SectionKidneyFunction Section = "kidney_function"
	SectionLipidProfile   Section = "lipid_profile"
	SectionThyroid        Section = "thyroid"
	SectionDiabetes       Section = "diabetes"
	SectionOther          Section = "other"
)

// Validation errors for data integrity at the API boundary.
var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidStatus   = errors.New("invalid status")
	ErrInvalidSeverity = errors.New("invalid severity")
	ErrInvalidSex      = errors.New("invalid sex")
	ErrInvalidSource   = errors.New("invalid source")
)

// IsValid reports whether the status is one of the contract values.
func (s Status) IsValid() bool {
	switch s {
	case StatusLow, StatusNormal, StatusHigh, StatusUnknown:
		return true
	default:
		return false
	}
}

func (s Status) String() string { return string(s) }

// IsAbnormal reports whether the status counts as abnormal for condition
// pattern detection. UNKNOWN is not abnormal: an unclassifiable value must
// never contribute evidence toward a condition.
func (s Status) IsAbnormal() bool {
	return s == StatusLow || s == StatusHigh
}

// IsValid reports whether the severity is one of the contract values.
func (sv Severity) IsValid() bool {
	switch sv {
	case SeverityCritical, SeverityHigh, SeverityModerate, SeverityLow, SeverityNormal:
		return true
	default:
		return false
	}
}

func (sv Severity) String() string { return string(sv) }

// Rank returns the sort rank for alert ordering: CRITICAL=0, HIGH=1,
// MODERATE=2, LOW=3. Unknown severities sort last. The alert sort must be
// stable so equal-severity alerts keep discovery order.
func (sv Severity) Rank() int {
	switch sv {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityModerate:
		return 2
	case SeverityLow:
		return 3
	default:
		return 99
	}
}

// Weight returns the contribution of one alert of this severity to the
// overall risk score.
func (sv Severity) Weight() int {
	switch sv {
	case SeverityCritical:
		return 40
	case SeverityHigh:
		return 25
	case SeverityModerate:
		return 15
	case SeverityLow:
		return 5
	default:
		return 0
	}
}

// RequiresImmediateAttention reports whether an alert of this severity
// must be flagged for immediate clinical attention.
func (sv Severity) RequiresImmediateAttention() bool {
	return sv == SeverityCritical
}

func (rl RiskLevel) String() string { return string(rl) }

// IsValid reports whether the risk level is one of the contract values.
func (rl RiskLevel) IsValid() bool {
	switch rl {
	case RiskCritical, RiskHigh, RiskModerate, RiskLow, RiskNormal:
		return true
	default:
		return false
	}
}

// RiskLevelForScore converts a 0-100 risk score into a risk level.
func RiskLevelForScore(score int) RiskLevel {
	switch {
	case score >= 70:
		return RiskCritical
	case score >= 50:
		return RiskHigh
	case score >= 30:
		return RiskModerate
	case score > 0:
		return RiskLow
	default:
		return RiskNormal
	}
}

// ParseSex normalizes free-text sex/gender values ("M", "Female", ...)
// into a Sex. Unrecognized input maps to SexUnknown rather than an error:
// a missing sex only disables sex-specific ranges.
func ParseSex(raw string) Sex {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "male", "m":
		return SexMale
	case "female", "f":
		return SexFemale
	default:
		return SexUnknown
	}
}

func (sx Sex) String() string { return string(sx) }

// Known reports whether sex-specific reference overrides may apply.
func (sx Sex) Known() bool { return sx == SexMale || sx == SexFemale }

// IsValid reports whether the source is one of the contract values.
func (src Source) IsValid() bool {
	switch src {
	case SourceTable, SourceText, SourceExternal:
		return true
	default:
		return false
	}
}

func (src Source) String() string { return string(src) }

func (sec Section) String() string { return string(sec) }

// IsValid reports whether the section is one of the contract values.
func (sec Section) IsValid() bool {
	switch sec {
	case SectionHematology, SectionBiochemistry, SectionUrineAnalysis,
		SectionLiverFunction, SectionKidneyFunction, SectionLipidProfile,
		SectionThyroid, SectionDiabetes, SectionOther:
		return true
	default:
		return false
	}
}
