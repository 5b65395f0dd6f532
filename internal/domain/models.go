package domain

// Candidate is a raw observation produced by one extraction pass before
// name resolution and range classification. Candidates are ephemeral:
// they exist only between the extractor and the range engine.
type Candidate struct {
	RawName          string `json:"raw_name"`
	RawValue         string `json:"raw_value"`
	RawUnit          string `json:"raw_unit"`
	RawReferenceText string `json:"raw_reference_text"`
	Origin           Source `json:"origin"`
	Position         int    `json:"position"` // row index for tables, line index for text

	// Status pre-assigned by the extraction strategy (arrow glyphs fix
	// it directly); the range engine may overwrite it.
	Status  Status  `json:"status,omitempty"`
	Section Section `json:"section,omitempty"`
}

// LabResult is a canonical classified test record.
// NumericValue is non-nil only if the raw value contained a parseable
// number; Status is UNKNOWN only when no usable range could be resolved.
type LabResult struct {
	TestName       string   `json:"test_name"`
	TestCode       string   `json:"test_code"`
	Value          string   `json:"value"`
	NumericValue   *float64 `json:"numeric_value,omitempty"`
	Unit           string   `json:"unit"`
	ReferenceRange string   `json:"reference_range"`
	Status         Status   `json:"status"`
	Section        Section  `json:"section"`
	Source         Source   `json:"source"`
}

// Alert is composed for each result whose severity is not NORMAL.
type Alert struct {
	TestName                    string   `json:"test_name"`
	TestCode                    string   `json:"test_code"`
	Value                       float64  `json:"value"`
	Unit                        string   `json:"unit"`
	Status                      Status   `json:"status"`
	Severity                    Severity `json:"severity"`
	ReferenceRange              string   `json:"reference_range"`
	Message                     string   `json:"message"`
	Recommendation              string   `json:"recommendation"`
	RequiresImmediateAttention  bool     `json:"requires_immediate_attention"`
}

// ConditionIndicator names one abnormal test contributing to a detected
// condition pattern.
type ConditionIndicator struct {
	TestCode string `json:"test"`
	Status   Status `json:"status"`
}

// ConditionMatch reports a condition signature with at least two abnormal
// member tests. Confidence is matched/total for the signature, in [0,1].
type ConditionMatch struct {
	Condition  string               `json:"condition"`
	Confidence float64              `json:"confidence"`
	Indicators []ConditionIndicator `json:"indicators"`
	Message    string               `json:"message"`
}

// RiskAssessment is the ranked clinical risk output for one analysis call.
type RiskAssessment struct {
	Alerts        []Alert          `json:"alerts"`
	Summary       string           `json:"summary"`
	AbnormalCount int              `json:"abnormal_count"`
	CriticalCount int              `json:"critical_count"`
	TotalTests    int              `json:"total_tests"`
	RiskScore     int              `json:"risk_score"`
	RiskLevel     RiskLevel        `json:"risk_level"`
	Conditions    []ConditionMatch `json:"conditions"`
}

// Table is the structured-table input shape produced by upstream table
// geometry detection, which is outside this module.
type Table struct {
	Header     []string   `json:"header"`
	Rows       [][]string `json:"rows"`
	IsLabTable bool       `json:"is_lab_table"`
}

// PatientInfo carries subject metadata extracted from the report header.
// Only Sex participates in classification; the rest is passthrough.
type PatientInfo struct {
	Name         string `json:"name"`
	Age          string `json:"age"`
	Sex          Sex    `json:"sex"`
	ReportedDate string `json:"reported_date"`
	PatientID    string `json:"patient_id"`
	ReferredBy   string `json:"referred_by"`
}

// ExternalTest is a pre-structured test record from an external
// structuring service. It bypasses candidate extraction but still passes
// through range validation and correction before merging.
type ExternalTest struct {
	TestName       string   `json:"test_name"`
	Value          string   `json:"value"`
	Unit           string   `json:"unit"`
	ReferenceRange string   `json:"reference_range"`
	Status         string   `json:"status"`
	Section        string   `json:"section"`
	NumericValue   *float64 `json:"numeric_value,omitempty"`
}

// AnalysisInput is the full request shape for one analysis call.
type AnalysisInput struct {
	Text          string         `json:"text,omitempty"`
	Tables        []Table        `json:"tables,omitempty"`
	ExternalTests []ExternalTest `json:"external_tests,omitempty"`
	PatientInfo   *PatientInfo   `json:"patient_info,omitempty"`
}

// SkipCounters records how many rows and lines each extraction path
// dropped. Malformed input is never an error, but tests and operators
// need to see how much was discarded.
type SkipCounters struct {
	TableRowsSkipped int `json:"table_rows_skipped"`
	TextLinesSkipped int `json:"text_lines_skipped"`
	ExternalSkipped  int `json:"external_skipped"`
}

// AnalysisReport is the complete response for one analysis call: the
// classified results, the risk assessment, and extraction diagnostics.
type AnalysisReport struct {
	PatientInfo PatientInfo             `json:"patient_info"`
	LabTests    []LabResult             `json:"lab_tests"`
	Sections    map[Section][]LabResult `json:"sections"`
	Assessment  RiskAssessment          `json:"risk_assessment"`
	Skipped     SkipCounters            `json:"skipped"`
}

// Float64 returns a pointer to v, for optional numeric fields.
func Float64(v float64) *float64 { return &v }
