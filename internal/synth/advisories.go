package synth

import (
	"fmt"
	"math"
	"strings"

	"github.com/gridwatch/grid-status-service/internal/models"
)

// RegionVulnerabilities returns the vulnerability entries for a region given
// its current utilization and load trend (percent). May be empty.
func RegionVulnerabilities(utilization, trend float64) []models.VulnerabilityEntry {
	var vulns []models.VulnerabilityEntry
	if utilization > 0.90 {
		vulns = append(vulns, models.VulnerabilityEntry{
			Title:       "High Capacity Utilization",
			Description: "System operating near maximum capacity",
			Severity:    models.SeverityCritical,
		})
	}
	if math.Abs(trend) > 15 {
		direction := "Increase"
		if trend < 0 {
			direction = "Decrease"
		}
		vulns = append(vulns, models.VulnerabilityEntry{
			Title:       fmt.Sprintf("Rapid %s in Demand", direction),
			Description: fmt.Sprintf("Demand changed by %.1f%% recently", math.Abs(trend)),
			Severity:    models.SeverityWarning,
		})
	}
	return vulns
}

// CityVulnerabilities composes the city-level vulnerability list: region
// entries that apply to the city (critical always, warning by coin flip)
// with descriptions rewritten to reference the city, plus entries for high
// demand, low reliability, and active outages.
func CityVulnerabilities(regional []models.VulnerabilityEntry, regionName, cityName string, utilization float64, reliabilityIndex, outages, affectedCustomers int, rng Rand) []models.VulnerabilityEntry {
	var vulns []models.VulnerabilityEntry
	for _, v := range regional {
		if v.Severity == models.SeverityCritical || (v.Severity == models.SeverityWarning && rng.Float64() > 0.5) {
			v.Description = strings.ReplaceAll(v.Description, regionName, cityName+" area")
			vulns = append(vulns, v)
		}
	}
	if utilization > 0.80 {
		vulns = append(vulns, models.VulnerabilityEntry{
			Title:       "High Demand Alert",
			Description: fmt.Sprintf("Current power demand in %s is approaching capacity limits.", cityName),
			Severity:    models.SeverityCritical,
		})
	}
	if reliabilityIndex < 75 {
		vulns = append(vulns, models.VulnerabilityEntry{
			Title:       "Grid Stability Risk",
			Description: fmt.Sprintf("The %s distribution network shows signs of instability.", cityName),
			Severity:    models.SeverityWarning,
		})
	}
	if outages > 0 {
		vulns = append(vulns, models.VulnerabilityEntry{
			Title:       "Active Outages",
			Description: fmt.Sprintf("%d outage(s) affecting %d customers in %s.", outages, affectedCustomers, cityName),
			Severity:    models.SeverityCritical,
		})
	}
	return vulns
}

// Recommendations returns operator actions for the given city conditions.
// Rules are evaluated independently; the result is never empty because a
// generic maintenance entry backstops the quiet case.
func Recommendations(status models.Status, outages, reliabilityIndex int, cityName string) []models.RecommendationEntry {
	var recs []models.RecommendationEntry
	if status == models.StatusCritical {
		recs = append(recs,
			models.RecommendationEntry{
				Title:       "Implement Load Shedding",
				Description: fmt.Sprintf("Temporarily reduce non-essential power consumption in %s to prevent grid failure.", cityName),
				Priority:    models.PriorityHigh,
				Impact:      5,
			},
			models.RecommendationEntry{
				Title:       "Activate Emergency Generation",
				Description: "Bring backup generation assets online to supplement capacity.",
				Priority:    models.PriorityHigh,
				Impact:      4,
			})
	}
	if status == models.StatusWarning {
		recs = append(recs, models.RecommendationEntry{
			Title:       "Issue Public Conservation Alert",
			Description: fmt.Sprintf("Request voluntary reduction in energy usage in %s during peak hours.", cityName),
			Priority:    models.PriorityMedium,
			Impact:      3,
		})
	}
	if outages > 0 {
		recs = append(recs, models.RecommendationEntry{
			Title:       "Deploy Repair Crews",
			Description: fmt.Sprintf("Prioritize restoration efforts for %d active outages in %s.", outages, cityName),
			Priority:    models.PriorityHigh,
			Impact:      5,
		})
	}
	if reliabilityIndex < 80 {
		recs = append(recs, models.RecommendationEntry{
			Title:       "Schedule Infrastructure Assessment",
			Description: fmt.Sprintf("Conduct comprehensive evaluation of vulnerable grid components in %s.", cityName),
			Priority:    models.PriorityMedium,
			Impact:      4,
		})
	}
	if len(recs) == 0 {
		recs = append(recs, models.RecommendationEntry{
			Title:       "Optimize Maintenance Schedule",
			Description: "Analyze historical performance data to optimize preventative maintenance timing.",
			Priority:    models.PriorityLow,
			Impact:      2,
		})
	}
	return recs
}
