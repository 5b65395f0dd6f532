package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/lab-report-analyzer/internal/domain"
)

// StructurerClient calls the external report structuring service with a
// circuit breaker, bounded retries, and an optional Redis cache in
// front. cache may be nil; every cache failure degrades to a live call.
type StructurerClient struct {
	config  domain.StructurerConfig
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	cache   *CacheClient
	log     *logrus.Logger
}

// structureRequest is the wire request for the structuring service.
type structureRequest struct {
	Text string `json:"text"`
}

// structureResponse is the wire response from the structuring service.
type structureResponse struct {
	Tests []domain.ExternalTest `json:"tests"`
}

// NewStructurerClient creates a structuring service client.
func NewStructurerClient(config domain.StructurerConfig, cache *CacheClient, log *logrus.Logger) *StructurerClient {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "Structurer",
		MaxRequests: 5,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			if log != nil {
				log.WithFields(logrus.Fields{
					"breaker": name,
					"from":    from.String(),
					"to":      to.String(),
				}).Warn("Circuit breaker state changed")
			}
		},
	})

	return &StructurerClient{
		config:  config,
		client:  &http.Client{Timeout: config.Timeout},
		breaker: breaker,
		cache:   cache,
		log:     log,
	}
}

// StructureText sends report text to the structuring service and
// returns the extracted test records. Cached responses are served
// without touching the service; when the circuit breaker is open the
// cache is the only source.
func (s *StructurerClient) StructureText(ctx context.Context, text string) ([]domain.ExternalTest, error) {
	if s.cache != nil {
		if tests, found, err := s.cache.GetStructuredTests(ctx, text); err == nil && found {
			return tests, nil
		}
	}

	result, err := s.breaker.Execute(func() (interface{}, error) {
		return s.callWithRetry(ctx, text)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState {
			return nil, fmt.Errorf("structuring service unavailable (circuit breaker open)")
		}
		return nil, fmt.Errorf("structuring request failed: %w", err)
	}

	tests := result.([]domain.ExternalTest)

	if s.cache != nil {
		if cacheErr := s.cache.SetStructuredTests(ctx, text, tests, 0); cacheErr != nil && s.log != nil {
			s.log.WithError(cacheErr).Warn("Failed to cache structured tests")
		}
	}

	return tests, nil
}

// callWithRetry retries transient failures with a growing delay.
// Non-2xx responses below 500 are permanent and not retried.
func (s *StructurerClient) callWithRetry(ctx context.Context, text string) ([]domain.ExternalTest, error) {
	var lastErr error
	attempts := s.config.RetryCount + 1

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := s.config.RetryDelay * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		tests, retryable, err := s.call(ctx, text)
		if err == nil {
			return tests, nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}
		if s.log != nil {
			s.log.WithError(err).WithField("attempt", attempt+1).Debug("Structuring attempt failed, retrying")
		}
	}
	return nil, fmt.Errorf("structuring failed after %d attempts: %w", attempts, lastErr)
}

func (s *StructurerClient) call(ctx context.Context, text string) ([]domain.ExternalTest, bool, error) {
	body, err := json.Marshal(structureRequest{Text: text})
	if err != nil {
		return nil, false, fmt.Errorf("failed to marshal structure request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.BaseURL+"/structure", bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("failed to create structure request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.config.APIKey != "" {
		req.Header.Set("X-API-Key", s.config.APIKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("structure request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		retryable := resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		return nil, retryable, fmt.Errorf("structuring service returned %d: %s", resp.StatusCode, string(data))
	}

	var parsed structureResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, false, fmt.Errorf("failed to decode structure response: %w", err)
	}
	return parsed.Tests, false, nil
}

// BreakerCounts exposes circuit breaker statistics for health
// reporting.
func (s *StructurerClient) BreakerCounts() gobreaker.Counts {
	return s.breaker.Counts()
}

// BreakerState exposes the current circuit breaker state.
func (s *StructurerClient) BreakerState() gobreaker.State {
	return s.breaker.State()
}

// Close releases the cache connection if one is attached.
func (s *StructurerClient) Close() error {
	if s.cache != nil {
		return s.cache.Close()
	}
	return nil
}
