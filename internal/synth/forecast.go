package synth

import (
	"fmt"
	"math"
	"time"

	"github.com/gridwatch/grid-status-service/internal/models"
)

// DiurnalFactor returns the fraction of base load expected at the given
// hour of day: a morning ramp, a midday plateau, an evening decay, and a
// night trough. Every demand visual in the system derives from this one
// curve, so the shape must stay put.
func DiurnalFactor(hour int) float64 {
	switch {
	case hour >= 5 && hour <= 9:
		return 0.5 + float64(hour-5)*0.07
	case hour >= 10 && hour <= 17:
		return 0.75
	case hour >= 18 && hour <= 21:
		return 0.8 - float64(hour-18)*0.03
	default:
		return 0.45
	}
}

// Forecast returns 24 hourly points starting at startHour (wrapping at 24),
// each base*DiurnalFactor(hour) with independent jitter from rng.
func Forecast(base float64, startHour int, rng Rand) []models.ForecastPoint {
	points := make([]models.ForecastPoint, 0, 24)
	for i := 0; i < 24; i++ {
		hour := (startHour + i) % 24
		load := base * DiurnalFactor(hour) * Jitter(rng)
		points = append(points, models.ForecastPoint{
			Time: HourLabel(hour),
			Load: math.Round(load),
		})
	}
	return points
}

// HistorySeries synthesizes an hourly load series of the given length
// starting at start, following the diurnal curve on base load with a small
// per-weekday multiplier. ForecastValue carries its own jitter so charts
// show forecast tracking actuals imperfectly.
func HistorySeries(start time.Time, points int, base float64, rng Rand) []models.HistoryPoint {
	series := make([]models.HistoryPoint, 0, points)
	for i := 0; i < points; i++ {
		ts := start.Add(time.Duration(i) * time.Hour)
		load := base * DiurnalFactor(ts.Hour())
		load *= 0.9 + float64(ts.Weekday())*0.03
		load *= Jitter(rng)
		series = append(series, models.HistoryPoint{
			Timestamp:     ts,
			LoadValue:     math.Round(load),
			ForecastValue: math.Round(load * Jitter(rng)),
		})
	}
	return series
}

// HourLabel formats an hour of day as "HH:00".
func HourLabel(hour int) string {
	return fmt.Sprintf("%02d:00", hour)
}
