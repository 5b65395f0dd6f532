package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/lab-report-analyzer/internal/domain"
)

// analyzeTestsRequest is the request body for pre-structured analysis.
type analyzeTestsRequest struct {
	Tests       []domain.ExternalTest `json:"tests" binding:"required"`
	PatientInfo *domain.PatientInfo   `json:"patient_info,omitempty"`
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":          "healthy",
		"timestamp":       time.Now(),
		"version":         "1.0.0",
		"reference_tests": s.catalog.Len(),
	})
}

// handleAnalyze runs the full pipeline on raw report material.
func (s *Server) handleAnalyze(c *gin.Context) {
	var input domain.AnalysisInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if strings.TrimSpace(input.Text) == "" && len(input.Tables) == 0 && len(input.ExternalTests) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request must include text, tables, or external_tests"})
		return
	}

	report := s.analyzer.Analyze(c.Request.Context(), input)

	s.log.WithFields(logrus.Fields{
		"request_id": c.GetString("request_id"),
		"tests":      len(report.LabTests),
		"risk_level": report.Assessment.RiskLevel,
	}).Info("Report analyzed")

	c.JSON(http.StatusOK, report)
}

// handleAnalyzeTests assesses pre-structured test records.
func (s *Server) handleAnalyzeTests(c *gin.Context) {
	var req analyzeTestsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if len(req.Tests) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tests must not be empty"})
		return
	}

	info := domain.PatientInfo{Sex: domain.SexUnknown}
	if req.PatientInfo != nil {
		info = *req.PatientInfo
	}

	report := s.analyzer.AnalyzeTests(req.Tests, info)
	c.JSON(http.StatusOK, report)
}

// handleListReference returns every canonical test code.
func (s *Server) handleListReference(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"codes": s.catalog.Codes(),
		"count": s.catalog.Len(),
	})
}

// handleGetReference returns the catalog entry for one code, with the
// sex override applied when the sex query parameter is present.
func (s *Server) handleGetReference(c *gin.Context) {
	code := c.Param("code")
	sex := domain.ParseSex(c.Query("sex"))

	rng, ok := s.catalog.LookupForSex(code, sex)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown test code: " + code})
		return
	}
	c.JSON(http.StatusOK, rng)
}
