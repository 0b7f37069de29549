// Package client wraps the EIA v2 electricity API. It fetches hourly demand
// and net generation series per balancing authority with retries, exponential
// backoff, and a circuit breaker in front of the network.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/gridwatch/grid-status-service/internal/circuitbreaker"
	"github.com/gridwatch/grid-status-service/internal/models"
	"github.com/gridwatch/grid-status-service/internal/observability"
)

// GridClient fetches grid telemetry for a balancing authority.
type GridClient interface {
	RegionSeries(ctx context.Context, respondent string, start, end time.Time) ([]models.Sample, error)
	ValidateAPIKey(ctx context.Context) error
}

var (
	ErrInvalidAPIKey   = errors.New("invalid API key")
	ErrUpstreamFailure = errors.New("upstream failure")
	ErrRateLimited     = errors.New("rate limited")
	ErrEmptySeries     = errors.New("upstream returned no rows")
)

const (
	seriesTypeDemand        = "D"
	seriesTypeNetGeneration = "NG"

	// EIA serializes hourly periods as 2024-06-01T14; daily aggregates
	// and some endpoints use full RFC3339.
	periodLayoutHourly = "2006-01-02T15"
)

type EIAClient struct {
	apiKey         string
	apiURL         string
	timeout        time.Duration
	client         *http.Client
	retryAttempts  int
	retryBaseDelay time.Duration
	retryMaxDelay  time.Duration
	breaker        *circuitbreaker.CircuitBreaker
}

func NewEIAClient(apiKey, apiURL string, timeout time.Duration) (*EIAClient, error) {
	return NewEIAClientWithRetry(apiKey, apiURL, timeout, 3, 100*time.Millisecond, 2*time.Second, nil)
}

func NewEIAClientWithRetry(apiKey, apiURL string, timeout time.Duration, retryAttempts int, retryBaseDelay, retryMaxDelay time.Duration, breaker *circuitbreaker.CircuitBreaker) (*EIAClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: API key is required", ErrInvalidAPIKey)
	}
	if len(apiKey) < 10 {
		return nil, fmt.Errorf("%w: API key appears invalid (too short)", ErrInvalidAPIKey)
	}

	return &EIAClient{
		apiKey:         apiKey,
		apiURL:         apiURL,
		timeout:        timeout,
		retryAttempts:  retryAttempts,
		retryBaseDelay: retryBaseDelay,
		retryMaxDelay:  retryMaxDelay,
		breaker:        breaker,
		client: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

type eiaResponse struct {
	Response struct {
		Data []eiaRow `json:"data"`
	} `json:"response"`
}

// eiaRow tolerates value arriving as either a JSON number or a quoted
// string; both occur in the wild.
type eiaRow struct {
	Period     string      `json:"period"`
	Respondent string      `json:"respondent"`
	Type       string      `json:"type"`
	Value      json.Number `json:"value"`
}

// RegionSeries returns hourly samples for the respondent, newest first.
// Demand and net generation rows sharing a period are merged into one sample.
func (c *EIAClient) RegionSeries(ctx context.Context, respondent string, start, end time.Time) ([]models.Sample, error) {
	call := func() ([]models.Sample, error) {
		var lastErr error

		for attempt := 0; attempt < c.retryAttempts; attempt++ {
			if attempt > 0 {
				observability.UpstreamRetriesTotal.Inc()
				delay := c.calculateBackoff(attempt)
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(delay):
				}
			}

			result, err := c.callAPI(ctx, respondent, start, end)
			if err == nil {
				return result, nil
			}

			lastErr = err
			if !c.isRetryable(err) {
				return nil, err
			}
		}

		return nil, fmt.Errorf("exhausted retries: %w", lastErr)
	}

	if c.breaker == nil {
		return call()
	}

	var samples []models.Sample
	err := c.breaker.Call(ctx, func() error {
		var callErr error
		samples, callErr = call()
		return callErr
	})
	if err != nil {
		return nil, err
	}
	return samples, nil
}

func (c *EIAClient) callAPI(ctx context.Context, respondent string, start, end time.Time) ([]models.Sample, error) {
	startedAt := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.buildRequest(reqCtx, respondent, start, end)
	if err != nil {
		observability.UpstreamCallsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("build request: %w", err)
	}

	corrID := extractCorrelationID(ctx)
	if corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		duration := time.Since(startedAt).Seconds()
		observability.UpstreamCallsTotal.WithLabelValues("error").Inc()
		observability.UpstreamDurationSeconds.WithLabelValues("error").Observe(duration)

		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("request timeout: %w", err)
		}
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	duration := time.Since(startedAt).Seconds()
	status := statusLabel(resp.StatusCode)
	observability.UpstreamCallsTotal.WithLabelValues(status).Inc()
	observability.UpstreamDurationSeconds.WithLabelValues(status).Observe(duration)

	if err := c.handleErrorResponse(resp); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	var apiResp eiaResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	samples := mergeRows(apiResp.Response.Data)
	if len(samples) == 0 {
		return nil, ErrEmptySeries
	}
	return samples, nil
}

// mergeRows folds per-type rows into per-period samples and sorts newest
// first. Rows with unparseable periods or values are skipped rather than
// failing the whole fetch.
func mergeRows(rows []eiaRow) []models.Sample {
	byPeriod := make(map[time.Time]*models.Sample)

	for _, row := range rows {
		period, err := parsePeriod(row.Period)
		if err != nil {
			continue
		}
		value, err := row.Value.Float64()
		if err != nil {
			continue
		}

		sample, ok := byPeriod[period]
		if !ok {
			sample = &models.Sample{Period: period}
			byPeriod[period] = sample
		}
		switch row.Type {
		case seriesTypeDemand:
			sample.Demand = value
		case seriesTypeNetGeneration:
			sample.NetGeneration = value
		}
	}

	samples := make([]models.Sample, 0, len(byPeriod))
	for _, s := range byPeriod {
		samples = append(samples, *s)
	}
	sort.Slice(samples, func(i, j int) bool {
		return samples[i].Period.After(samples[j].Period)
	})
	return samples
}

func parsePeriod(raw string) (time.Time, error) {
	if t, err := time.Parse(periodLayoutHourly, raw); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, raw)
}

func (c *EIAClient) isRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrRateLimited) {
		return true
	}
	if errors.Is(err, ErrUpstreamFailure) {
		return true
	}

	errStr := err.Error()
	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "context deadline exceeded") || strings.Contains(errStr, "context canceled") {
		return true
	}

	return false
}

func (c *EIAClient) calculateBackoff(attempt int) time.Duration {
	delay := float64(c.retryBaseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(c.retryMaxDelay) {
		delay = float64(c.retryMaxDelay)
	}

	jitter := delay * 0.1 * rand.Float64()
	return time.Duration(delay + jitter)
}

func (c *EIAClient) buildRequest(ctx context.Context, respondent string, start, end time.Time) (*http.Request, error) {
	baseURL, err := url.Parse(c.apiURL)
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}

	params := url.Values{}
	params.Set("api_key", c.apiKey)
	params.Set("frequency", "hourly")
	params.Add("data[0]", "value")
	params.Add("facets[respondent][]", respondent)
	params.Add("facets[type][]", seriesTypeDemand)
	params.Add("facets[type][]", seriesTypeNetGeneration)
	params.Set("start", start.UTC().Format(periodLayoutHourly))
	params.Set("end", end.UTC().Format(periodLayoutHourly))
	params.Set("sort[0][column]", "period")
	params.Set("sort[0][direction]", "desc")
	baseURL.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", baseURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *EIAClient) handleErrorResponse(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: rejected by upstream", ErrInvalidAPIKey)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w", ErrRateLimited)
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, resp.StatusCode)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, resp.StatusCode)
	}

	return nil
}

func extractCorrelationID(ctx context.Context) string {
	if corrIDVal := ctx.Value("correlation_id"); corrIDVal != nil {
		if corrID, ok := corrIDVal.(string); ok {
			return corrID
		}
	}
	return ""
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == 429 {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}

// ValidateAPIKey issues a minimal one-row query to confirm the key works.
func (c *EIAClient) ValidateAPIKey(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	baseURL, err := url.Parse(c.apiURL)
	if err != nil {
		return fmt.Errorf("invalid API URL: %w", err)
	}
	params := url.Values{}
	params.Set("api_key", c.apiKey)
	params.Set("frequency", "hourly")
	params.Add("data[0]", "value")
	params.Set("length", "1")
	baseURL.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", baseURL.String(), nil)
	if err != nil {
		return fmt.Errorf("build validation request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("validation request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%w: API key is invalid or not activated", ErrInvalidAPIKey)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("validation failed: HTTP %d", resp.StatusCode)
	}

	return nil
}
