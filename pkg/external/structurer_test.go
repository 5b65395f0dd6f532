package external

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lab-report-analyzer/internal/domain"
)

func newStructurerTestConfig(baseURL string) domain.StructurerConfig {
	return domain.StructurerConfig{
		Enabled:    true,
		BaseURL:    baseURL,
		APIKey:     "test-key",
		Timeout:    2 * time.Second,
		RetryCount: 2,
		RetryDelay: time.Millisecond,
	}
}

func TestStructureText(t *testing.T) {
	var gotAPIKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAPIKey = r.Header.Get("X-API-Key")

		var req structureRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "some report text", req.Text)

		json.NewEncoder(w).Encode(structureResponse{Tests: []domain.ExternalTest{
			{TestName: "Hemoglobin", Value: "9.8", Unit: "g/dL", ReferenceRange: "12.0 - 16.0"},
		}})
	}))
	defer srv.Close()

	client := NewStructurerClient(newStructurerTestConfig(srv.URL), nil, nil)

	tests, err := client.StructureText(context.Background(), "some report text")
	require.NoError(t, err)
	require.Len(t, tests, 1)
	assert.Equal(t, "Hemoglobin", tests[0].TestName)
	assert.Equal(t, "test-key", gotAPIKey)
}

func TestStructureTextRetriesServerErrors(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(structureResponse{Tests: []domain.ExternalTest{
			{TestName: "TSH", Value: "6.2"},
		}})
	}))
	defer srv.Close()

	client := NewStructurerClient(newStructurerTestConfig(srv.URL), nil, nil)

	tests, err := client.StructureText(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	require.Len(t, tests, 1)
}

func TestStructureTextDoesNotRetryClientErrors(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	client := NewStructurerClient(newStructurerTestConfig(srv.URL), nil, nil)

	_, err := client.StructureText(context.Background(), "text")
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestStructureTextBreakerOpensAfterRepeatedFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := newStructurerTestConfig(srv.URL)
	cfg.RetryCount = 0
	client := NewStructurerClient(cfg, nil, nil)

	for i := 0; i < 5; i++ {
		_, err := client.StructureText(context.Background(), "text")
		require.Error(t, err)
	}

	assert.NotEqual(t, "closed", client.BreakerState().String())
	_, err := client.StructureText(context.Background(), "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit breaker open")
}

func TestStructureTextContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	client := NewStructurerClient(newStructurerTestConfig(srv.URL), nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := client.StructureText(ctx, "text")
	require.Error(t, err)
}
