// Package http exposes the dashboard API: region snapshot, per-city records,
// historical series, health, and metrics.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/gridwatch/grid-status-service/internal/client"
	"github.com/gridwatch/grid-status-service/internal/lifecycle"
	"github.com/gridwatch/grid-status-service/internal/service"
	"github.com/gridwatch/grid-status-service/internal/validation"
)

// HealthConfig holds thresholds for the health handler.
type HealthConfig struct {
	// FallbackShareWindow and FallbackSharePct gate the degraded status:
	// when more than FallbackSharePct percent of upstream interactions in
	// the window were absorbed by fallback synthesis, the data is running
	// synthetic and the service reports degraded.
	FallbackShareWindow time.Duration
	FallbackSharePct    int
	// CachePing, when set, is called to check cache reachability. Used when
	// backend is memcached.
	CachePing func() error
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	gridService      *service.GridService
	client           client.GridClient
	healthConfig     *HealthConfig
	logger           *zap.Logger
	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler.
func NewHandler(gridService *service.GridService, gridClient client.GridClient, healthConfig *HealthConfig, logger *zap.Logger) *Handler {
	return &Handler{
		gridService:  gridService,
		client:       gridClient,
		healthConfig: healthConfig,
		logger:       logger,
	}
}

// GetRegions handles GET /regions. The store absorbs every failure, so this
// always answers 200 with a full snapshot.
func (h *Handler) GetRegions(w http.ResponseWriter, r *http.Request) {
	snapshot := h.gridService.GetRegions(r.Context())
	writeJSON(w, http.StatusOK, snapshot)
}

// GetCity handles GET /cities/{cityId}.
func (h *Handler) GetCity(w http.ResponseWriter, r *http.Request) {
	id, err := validation.ValidateCityID(mux.Vars(r)["cityId"])
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_CITY", err.Error())
		return
	}
	if _, known := service.CityName(id); !known {
		writeError(w, r, http.StatusNotFound, "UNKNOWN_CITY", "city not tracked: "+id)
		return
	}

	record := h.gridService.GetCity(r.Context(), id)
	writeJSON(w, http.StatusOK, record)
}

// GetHistory handles GET /history/{region}?timeframe=24h|7d|30d.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	region := mux.Vars(r)["region"]
	if !service.KnownRegion(region) {
		writeError(w, r, http.StatusNotFound, "UNKNOWN_REGION", "region not tracked: "+region)
		return
	}

	timeframe, err := validation.ValidateTimeframe(r.URL.Query().Get("timeframe"))
	if err != nil {
		if errors.Is(err, validation.ErrUnknownTimeframe) {
			writeError(w, r, http.StatusBadRequest, "INVALID_TIMEFRAME", "timeframe must be 24h, 7d, or 30d")
			return
		}
		writeError(w, r, http.StatusBadRequest, "INVALID_TIMEFRAME", err.Error())
		return
	}

	points := h.gridService.GetHistory(r.Context(), region, timeframe)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"region":    region,
		"timeframe": timeframe,
		"points":    points,
	})
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus(r.Context())

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	checks := make(map[string]string)
	if result.reason == "api_key_invalid" {
		checks["eiaApi"] = "unhealthy"
	} else {
		checks["eiaApi"] = "healthy"
	}
	if result.reason == "fallback_share_breach" {
		checks["liveData"] = "unhealthy"
	} else {
		checks["liveData"] = "healthy"
	}
	if h.healthConfig != nil && h.healthConfig.CachePing != nil {
		if h.healthConfig.CachePing() == nil {
			checks["cache"] = "healthy"
		} else {
			checks["cache"] = "unhealthy"
		}
	}

	resp := map[string]interface{}{
		"status":    result.status,
		"service":   "grid-status-service",
		"version":   "dev",
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(result.statusCode)
	_ = json.NewEncoder(w).Encode(resp)
}

// computeHealthStatus evaluates conditions in priority order:
// shutting-down > API key invalid > fallback share breach > healthy.
func (h *Handler) computeHealthStatus(ctx context.Context) healthResult {
	if lifecycle.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}
	}
	if err := h.client.ValidateAPIKey(ctx); err != nil {
		return healthResult{"degraded", http.StatusServiceUnavailable, "api_key_invalid"}
	}
	if h.healthConfig != nil && h.healthConfig.FallbackShareWindow > 0 && h.healthConfig.FallbackSharePct > 0 {
		share, total := h.gridService.Tracker().FallbackShare(h.healthConfig.FallbackShareWindow)
		if total > 0 && share*100 >= float64(h.healthConfig.FallbackSharePct) {
			return healthResult{"degraded", http.StatusServiceUnavailable, "fallback_share_breach"}
		}
	}
	return healthResult{"healthy", http.StatusOK, ""}
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error response in the standard error format with code,
// message, and requestId (correlation ID) if available in request context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	corrID := ""
	if v := r.Context().Value("correlation_id"); v != nil {
		corrID = v.(string)
	}
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": corrID,
		},
	})
}
