package models

import "time"

// Status is the severity tier derived from load/capacity utilization.
type Status string

const (
	StatusNormal   Status = "normal"
	StatusWarning  Status = "warning"
	StatusCritical Status = "critical"
)

// Severity levels for vulnerability entries.
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
	SeverityMedium   = "medium"
)

// Priority levels for recommendation entries.
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// VulnerabilityEntry describes a detected grid weakness.
type VulnerabilityEntry struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
}

// RecommendationEntry describes a suggested operator action.
// Impact ranges 1 (minor) to 5 (major).
type RecommendationEntry struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
	Impact      int    `json:"impact"`
}

// ForecastPoint is one hourly point of a demand forecast.
// Time is formatted "HH:00".
type ForecastPoint struct {
	Time string  `json:"time"`
	Load float64 `json:"load"`
}

// RegionRecord is the composed snapshot for one macro region.
// Records are value objects; a refresh replaces the record wholesale.
type RegionRecord struct {
	CurrentLoad     float64              `json:"currentLoad"` // MW
	Capacity        float64              `json:"capacity"`    // MW, always > 0
	Status          Status               `json:"status"`
	LoadTrend       float64              `json:"loadTrend"` // percent change, signed
	Vulnerabilities []VulnerabilityEntry `json:"vulnerabilities"`
	Prediction      []ForecastPoint      `json:"prediction"` // 24 hourly points from current hour
}

// CityRecord is the composed snapshot for one city, derived from its
// parent region's record plus a city-specific seed.
type CityRecord struct {
	Status            Status                `json:"status"`
	CurrentLoad       float64               `json:"currentLoad"`
	Capacity          float64               `json:"capacity"`
	LoadTrend         float64               `json:"loadTrend"`
	ReliabilityIndex  int                   `json:"reliabilityIndex"` // 0-100
	IsOnline          bool                  `json:"isOnline"`
	Outages           int                   `json:"outages"`
	AffectedCustomers int                   `json:"affectedCustomers"`
	LastUpdated       time.Time             `json:"lastUpdated"`
	Vulnerabilities   []VulnerabilityEntry  `json:"vulnerabilities"`
	Recommendations   []RecommendationEntry `json:"recommendations"`
	Forecast          []ForecastPoint       `json:"forecast"`
}

// HistoryPoint is one hourly point of a historical load series.
type HistoryPoint struct {
	Timestamp     time.Time `json:"timestamp"`
	LoadValue     float64   `json:"loadValue"`
	ForecastValue float64   `json:"forecastValue"`
}

// Sample is one validated hourly observation from the upstream source.
// Only rows whose demand parsed as a usable number become samples;
// NetGeneration is zero when the upstream omitted or mangled it.
type Sample struct {
	Period        time.Time `json:"period"`
	Demand        float64   `json:"demand"`
	NetGeneration float64   `json:"netGeneration"`
}

// RegionSnapshot is the full region mapping held as one cache value so a
// refresh swaps every region atomically.
type RegionSnapshot map[string]RegionRecord
