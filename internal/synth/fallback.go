package synth

import (
	"fmt"
	"math"
	"time"

	"github.com/gridwatch/grid-status-service/internal/models"
	"github.com/gridwatch/grid-status-service/internal/seed"
)

// defaultCityCapacity backstops derived capacities so classification never
// divides by zero.
const defaultCityCapacity = 2500

// FallbackRegion synthesizes a region record from the region name alone.
// Base load and capacity derive from the seed so the same region gets the
// same shape on every regeneration; rng only adds cosmetic variation.
func FallbackRegion(name string, now time.Time, rng Rand) models.RegionRecord {
	s := seed.Sum(name)
	base := 4000 + float64(s%40)*100
	capacity := base * 1.5
	load := base + math.Floor(rng.Float64()*500)
	utilization := load / capacity

	status, _ := Classify(load, capacity) // capacity positive by construction
	trend := round1((rng.Float64() - 0.5) * 10)

	vulns := RegionVulnerabilities(utilization, trend)
	if utilization > 0.8 && utilization <= 0.9 && rng.Float64() > 0.5 {
		vulns = append(vulns, models.VulnerabilityEntry{
			Title:       "Increasing Load Trend",
			Description: "Demand growing rapidly in this region",
			Severity:    models.SeverityWarning,
		})
	}

	return models.RegionRecord{
		CurrentLoad:     round2(load),
		Capacity:        round2(capacity),
		Status:          status,
		LoadTrend:       trend,
		Vulnerabilities: vulns,
		Prediction:      Forecast(base, now.Hour(), rng),
	}
}

// FallbackCity synthesizes a city record from the city id alone, with no
// region dependency. Used when the parent region cannot be resolved.
func FallbackCity(id, cityName string, now time.Time, rng Rand) models.CityRecord {
	h := seed.Sum(id)
	load := 300 + float64(h%1200)
	capacity := math.Round(load * (1.2 + float64(h%40)/100))
	if capacity <= 0 {
		capacity = defaultCityCapacity
	}

	status, _ := Classify(load, capacity)
	reliability := clampReliability(85 - h%20)

	outages, affected := outageFigures(status, reliability, h, rng)

	var vulns []models.VulnerabilityEntry
	if status == models.StatusCritical {
		vulns = append(vulns, models.VulnerabilityEntry{
			Title:       "Peak Demand Alert",
			Description: "Current power demand in " + cityName + " is approaching capacity limits.",
			Severity:    models.SeverityCritical,
		})
	}
	vulns = append(vulns, reliabilityAndOutageVulns(cityName, reliability, outages, affected)...)

	return models.CityRecord{
		Status:            status,
		CurrentLoad:       load,
		Capacity:          capacity,
		LoadTrend:         math.Round(rng.Float64()*10 - 5),
		ReliabilityIndex:  reliability,
		IsOnline:          true,
		Outages:           outages,
		AffectedCustomers: affected,
		LastUpdated:       now,
		Vulnerabilities:   vulns,
		Recommendations:   Recommendations(status, outages, reliability, cityName),
		Forecast:          Forecast(load, now.Hour(), rng),
	}
}

// DeriveCity composes a city record from its parent region's record plus
// the city seed. City load tracks the region at roughly a tenth, scaled by
// the id-derived modifier.
func DeriveCity(region models.RegionRecord, regionName, id, cityName string, now time.Time, rng Rand) models.CityRecord {
	h := seed.Sum(id)
	modifier := seed.CityModifier(id)

	load := math.Round(region.CurrentLoad * modifier / 10)
	capacity := math.Round(load*1.2 + float64(h%500))
	if capacity <= 0 {
		capacity = defaultCityCapacity
	}
	utilization := load / capacity

	status, _ := Classify(load, capacity)
	if status == models.StatusNormal && region.Status == models.StatusCritical {
		// Regional stress bleeds into otherwise healthy cities.
		status = models.StatusWarning
	}

	reliability := 85 - h%15
	if region.Status == models.StatusNormal {
		reliability += 5
	}
	reliability = clampReliability(reliability)

	outages, affected := outageFigures(status, reliability, h, rng)

	vulns := CityVulnerabilities(region.Vulnerabilities, regionName, cityName, utilization, reliability, outages, affected, rng)

	var forecast []models.ForecastPoint
	if len(region.Prediction) > 0 {
		forecast = make([]models.ForecastPoint, 0, len(region.Prediction))
		for _, p := range region.Prediction {
			forecast = append(forecast, models.ForecastPoint{
				Time: p.Time,
				Load: math.Round(p.Load * modifier / 10 * Jitter(rng)),
			})
		}
	} else {
		forecast = Forecast(load, now.Hour(), rng)
	}

	return models.CityRecord{
		Status:            status,
		CurrentLoad:       load,
		Capacity:          capacity,
		LoadTrend:         region.LoadTrend + float64(h%10) - 5,
		ReliabilityIndex:  reliability,
		IsOnline:          true,
		Outages:           outages,
		AffectedCustomers: affected,
		LastUpdated:       now,
		Vulnerabilities:   vulns,
		Recommendations:   Recommendations(status, outages, reliability, cityName),
		Forecast:          forecast,
	}
}

// clampReliability bounds a reliability index to [65, 98].
func clampReliability(v int) int {
	if v < 65 {
		return 65
	}
	if v > 98 {
		return 98
	}
	return v
}

// outageFigures decides whether a city has active outages and how many
// customers they touch. Critical cities and unreliable grids always have
// some; warning cities roll the dice.
func outageFigures(status models.Status, reliability, citySeed int, rng Rand) (outages, affected int) {
	hasOutages := status == models.StatusCritical ||
		(status == models.StatusWarning && rng.Float64() > 0.7) ||
		reliability < 75
	if !hasOutages {
		return 0, 0
	}
	outages = rng.Intn(3) + 1
	affected = outages * (1000 + citySeed%2000)
	return outages, affected
}

// reliabilityAndOutageVulns returns the shared low-reliability and
// active-outage entries used by both fallback and derived city paths.
func reliabilityAndOutageVulns(cityName string, reliability, outages, affected int) []models.VulnerabilityEntry {
	var vulns []models.VulnerabilityEntry
	if reliability < 75 {
		vulns = append(vulns, models.VulnerabilityEntry{
			Title:       "Grid Reliability Issue",
			Description: "System reliability in " + cityName + " is below acceptable thresholds.",
			Severity:    models.SeverityWarning,
		})
	}
	if outages > 0 {
		vulns = append(vulns, models.VulnerabilityEntry{
			Title:       "Active Outages",
			Description: fmt.Sprintf("%d outage(s) affecting %d customers in %s.", outages, affected, cityName),
			Severity:    models.SeverityCritical,
		})
	}
	return vulns
}

// round1 rounds to one decimal place, round2 to two. Records carry rounded
// figures so JSON output stays stable and readable.
func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
