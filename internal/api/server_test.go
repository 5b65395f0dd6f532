package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lab-report-analyzer/internal/domain"
	"github.com/lab-report-analyzer/internal/reference"
	"github.com/lab-report-analyzer/internal/service"
)

type stubConfigManager struct {
	config domain.Config
}

func (s *stubConfigManager) GetConfig() *domain.Config                     { return &s.config }
func (s *stubConfigManager) GetServerConfig() *domain.ServerConfig         { return &s.config.Server }
func (s *stubConfigManager) GetStructurerConfig() *domain.StructurerConfig { return &s.config.Structurer }
func (s *stubConfigManager) GetCacheConfig() *domain.CacheConfig           { return &s.config.Cache }
func (s *stubConfigManager) Validate() error                               { return nil }

func newTestServer(t *testing.T) *Server {
	t.Helper()

	cfg := &stubConfigManager{config: domain.Config{
		Server: domain.ServerConfig{
			Host:         "127.0.0.1",
			Port:         0,
			ReadTimeout:  time.Second,
			WriteTimeout: time.Second,
			IdleTimeout:  time.Second,
			RateLimit:    1000,
			RateBurst:    1000,
		},
		Logging: domain.LoggingConfig{Level: "error"},
	}}

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	catalog := reference.DefaultCatalog()
	analyzer := service.NewAnalyzer(catalog, reference.NewResolver(catalog, log), nil, log)

	return NewServer(cfg, analyzer, catalog, log)
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestHandleAnalyze(t *testing.T) {
	s := newTestServer(t)

	input := domain.AnalysisInput{
		Text: "Sex : Female\nHemoglobin 9.8 g/dL 12.0 - 16.0 L",
	}

	w := doJSON(t, s, http.MethodPost, "/api/v1/analyze", input)
	require.Equal(t, http.StatusOK, w.Code)

	var report domain.AnalysisReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	require.Len(t, report.LabTests, 1)
	assert.Equal(t, "hemoglobin", report.LabTests[0].TestCode)
	assert.Equal(t, domain.StatusLow, report.LabTests[0].Status)
	assert.Equal(t, domain.SexFemale, report.PatientInfo.Sex)
	assert.NotEmpty(t, report.Assessment.Alerts)
}

func TestHandleAnalyzeRejectsEmptyInput(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodPost, "/api/v1/analyze", domain.AnalysisInput{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleAnalyzeRejectsMalformedJSON(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleAnalyzeTests(t *testing.T) {
	s := newTestServer(t)

	req := analyzeTestsRequest{
		Tests: []domain.ExternalTest{
			{TestName: "Glucose Fasting", Value: "128", Unit: "mg/dL", ReferenceRange: "70 - 110"},
		},
		PatientInfo: &domain.PatientInfo{Sex: domain.SexMale},
	}

	w := doJSON(t, s, http.MethodPost, "/api/v1/analyze/tests", req)
	require.Equal(t, http.StatusOK, w.Code)

	var report domain.AnalysisReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	require.Len(t, report.LabTests, 1)
	assert.Equal(t, domain.StatusHigh, report.LabTests[0].Status)
	require.Len(t, report.Assessment.Alerts, 1)
	assert.Equal(t, domain.SeverityModerate, report.Assessment.Alerts[0].Severity)
}

func TestHandleAnalyzeTestsRejectsEmpty(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodPost, "/api/v1/analyze/tests", map[string]any{"tests": []any{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleGetReference(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodGet, "/api/v1/reference/hemoglobin?sex=female", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var rng reference.Range
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rng))
	assert.Equal(t, "hemoglobin", rng.Code)
	assert.Equal(t, 12.0, rng.Bounds.Min)
	assert.Equal(t, 16.0, rng.Bounds.Max)
}

func TestHandleGetReferenceNotFound(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodGet, "/api/v1/reference/not_a_test", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleListReference(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodGet, "/api/v1/reference", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Codes []string `json:"codes"`
		Count int      `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, len(body.Codes), body.Count)
	assert.Contains(t, body.Codes, "hemoglobin")
}

func TestRateLimitMiddleware(t *testing.T) {
	cfg := &stubConfigManager{config: domain.Config{
		Server: domain.ServerConfig{
			Host: "127.0.0.1", Port: 0,
			RateLimit: 0.001, RateBurst: 1,
		},
		Logging: domain.LoggingConfig{Level: "error"},
	}}

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	catalog := reference.DefaultCatalog()
	analyzer := service.NewAnalyzer(catalog, reference.NewResolver(catalog, log), nil, log)
	s := NewServer(cfg, analyzer, catalog, log)

	first := doJSON(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, first.Code)

	second := doJSON(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}
