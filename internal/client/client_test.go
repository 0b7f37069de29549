package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewEIAClient_InvalidAPIKey(t *testing.T) {
	tests := []struct {
		name    string
		apiKey  string
		wantErr error
	}{
		{
			name:    "empty API key",
			apiKey:  "",
			wantErr: ErrInvalidAPIKey,
		},
		{
			name:    "too short API key",
			apiKey:  "short",
			wantErr: ErrInvalidAPIKey,
		},
		{
			name:    "valid API key",
			apiKey:  "valid-api-key-12345",
			wantErr: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewEIAClient(tt.apiKey, "https://api.test.com", 2*time.Second)
			if tt.wantErr != nil {
				if err == nil {
					t.Fatalf("NewEIAClient() expected error, got nil")
				}
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("NewEIAClient() error = %v, want %v", err, tt.wantErr)
				}
				if client != nil {
					t.Errorf("NewEIAClient() expected nil client on error")
				}
			} else {
				if err != nil {
					t.Fatalf("NewEIAClient() unexpected error: %v", err)
				}
				if client == nil {
					t.Fatalf("NewEIAClient() expected client, got nil")
				}
			}
		})
	}
}

const sampleBody = `{
	"response": {
		"data": [
			{"period": "2026-08-30T15", "respondent": "ISNE", "type": "D", "value": 12345.5},
			{"period": "2026-08-30T15", "respondent": "ISNE", "type": "NG", "value": "13000"},
			{"period": "2026-08-30T14", "respondent": "ISNE", "type": "D", "value": 12000},
			{"period": "2026-08-30T14", "respondent": "ISNE", "type": "NG", "value": 12800},
			{"period": "not-a-period", "respondent": "ISNE", "type": "D", "value": 1}
		]
	}
}`

func TestEIAClient_RegionSeries_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "GET" {
			t.Errorf("expected GET, got %s", r.Method)
		}
		if !strings.Contains(r.URL.RawQuery, "api_key=") {
			t.Errorf("expected API key in query")
		}
		q := r.URL.Query()
		if got := q.Get("facets[respondent][]"); got != "ISNE" {
			t.Errorf("respondent facet = %q, want ISNE", got)
		}
		types := q["facets[type][]"]
		if len(types) != 2 {
			t.Errorf("type facets = %v, want D and NG", types)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, sampleBody)
	}))
	defer server.Close()

	client, err := NewEIAClient("test-api-key-12345", server.URL, 2*time.Second)
	if err != nil {
		t.Fatalf("NewEIAClient() error = %v", err)
	}

	end := time.Now().UTC()
	samples, err := client.RegionSeries(context.Background(), "ISNE", end.Add(-24*time.Hour), end)
	if err != nil {
		t.Fatalf("RegionSeries() error = %v", err)
	}

	if len(samples) != 2 {
		t.Fatalf("len(samples) = %d, want 2 (bad-period row skipped)", len(samples))
	}
	// Newest first.
	if !samples[0].Period.After(samples[1].Period) {
		t.Errorf("samples not sorted newest first: %v then %v", samples[0].Period, samples[1].Period)
	}
	if samples[0].Demand != 12345.5 {
		t.Errorf("Demand = %f, want 12345.5", samples[0].Demand)
	}
	if samples[0].NetGeneration != 13000 {
		t.Errorf("NetGeneration = %f, want 13000 (string value parsed)", samples[0].NetGeneration)
	}
}

func TestEIAClient_RegionSeries_EmptySeries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"response":{"data":[]}}`)
	}))
	defer server.Close()

	client, _ := NewEIAClient("test-api-key-12345", server.URL, 2*time.Second)
	_, err := client.RegionSeries(context.Background(), "CISO", time.Now().Add(-time.Hour), time.Now())
	if !errors.Is(err, ErrEmptySeries) {
		t.Fatalf("error = %v, want ErrEmptySeries", err)
	}
}

func TestEIAClient_RegionSeries_Unauthorized_NoRetry(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client, _ := NewEIAClientWithRetry("test-api-key-12345", server.URL, 2*time.Second, 3, time.Millisecond, 10*time.Millisecond, nil)
	_, err := client.RegionSeries(context.Background(), "MISO", time.Now().Add(-time.Hour), time.Now())
	if !errors.Is(err, ErrInvalidAPIKey) {
		t.Fatalf("error = %v, want ErrInvalidAPIKey", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("calls = %d, want 1 (auth errors are not retryable)", got)
	}
}

func TestEIAClient_RegionSeries_RetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, sampleBody)
	}))
	defer server.Close()

	client, _ := NewEIAClientWithRetry("test-api-key-12345", server.URL, 2*time.Second, 3, time.Millisecond, 10*time.Millisecond, nil)
	samples, err := client.RegionSeries(context.Background(), "ERCO", time.Now().Add(-time.Hour), time.Now())
	if err != nil {
		t.Fatalf("RegionSeries() error = %v", err)
	}
	if len(samples) == 0 {
		t.Fatal("expected samples after retry success")
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
}

func TestEIAClient_RegionSeries_ExhaustedRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client, _ := NewEIAClientWithRetry("test-api-key-12345", server.URL, 2*time.Second, 2, time.Millisecond, 10*time.Millisecond, nil)
	_, err := client.RegionSeries(context.Background(), "CISO", time.Now().Add(-time.Hour), time.Now())
	if !errors.Is(err, ErrUpstreamFailure) {
		t.Fatalf("error = %v, want ErrUpstreamFailure", err)
	}
	if !strings.Contains(err.Error(), "exhausted retries") {
		t.Errorf("error = %v, want exhausted retries wrapper", err)
	}
}

func TestParsePeriod(t *testing.T) {
	tests := []struct {
		raw     string
		wantErr bool
	}{
		{"2026-08-30T15", false},
		{"2026-08-30T15:00:00Z", false},
		{"garbage", true},
	}
	for _, tt := range tests {
		_, err := parsePeriod(tt.raw)
		if (err != nil) != tt.wantErr {
			t.Errorf("parsePeriod(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
		}
	}
}

func TestEIAClient_ValidateAPIKey(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		wantErr    error
	}{
		{"valid key", http.StatusOK, nil},
		{"unauthorized", http.StatusUnauthorized, ErrInvalidAPIKey},
		{"forbidden", http.StatusForbidden, ErrInvalidAPIKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
			}))
			defer server.Close()

			client, _ := NewEIAClient("test-api-key-12345", server.URL, 2*time.Second)
			err := client.ValidateAPIKey(context.Background())
			if tt.wantErr == nil && err != nil {
				t.Fatalf("ValidateAPIKey() error = %v, want nil", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("ValidateAPIKey() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
