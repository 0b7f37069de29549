package service

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/gridwatch/grid-status-service/internal/models"
	"github.com/gridwatch/grid-status-service/internal/observability"
	"github.com/gridwatch/grid-status-service/internal/synth"
)

// historyBaseLoad seeds synthesized history when no live data is available.
const historyBaseLoad = 5000

// timeframePoints maps a validated timeframe to its hourly point count.
var timeframePoints = map[string]int{
	"24h": 24,
	"7d":  168,
	"30d": 720,
}

// GetHistory returns the hourly load series for a region over a validated
// timeframe (24h, 7d, 30d). Live samples fill the hours they cover; every
// other hour is synthesized from the diurnal curve, so the series always has
// the exact point count. Never returns an error.
func (s *GridService) GetHistory(ctx context.Context, region, timeframe string) []models.HistoryPoint {
	logger := s.log(ctx)

	points, ok := timeframePoints[timeframe]
	if !ok {
		points = 24
	}

	now := s.clock.Now().Truncate(time.Hour)
	start := now.Add(-time.Duration(points-1) * time.Hour)

	respondent, known := RegionRespondents[region]
	if !known {
		observability.FallbackSynthesisTotal.WithLabelValues("history").Inc()
		return synth.HistorySeries(start, points, historyBaseLoad, s.noise)
	}

	samples, err := s.client.RegionSeries(ctx, respondent, start, now)
	if err != nil {
		s.tracker.RecordFallback()
		observability.FallbackSynthesisTotal.WithLabelValues("history").Inc()
		logger.Warn("history fetch failed, synthesizing",
			zap.String("region", region),
			zap.String("timeframe", timeframe),
			zap.Error(err))
		return synth.HistorySeries(start, points, historyBaseLoad, s.noise)
	}

	s.tracker.RecordLive()
	return s.mergeHistory(samples, start, points)
}

// mergeHistory lays live samples onto the hourly grid and synthesizes the
// gaps so the returned series always has exactly the requested point count.
func (s *GridService) mergeHistory(samples []models.Sample, start time.Time, points int) []models.HistoryPoint {
	// time.Time map keys distinguish zones, not just instants, so both
	// sides of the lookup are normalized to UTC.
	byHour := make(map[time.Time]float64, len(samples))
	for _, sample := range samples {
		if sample.Demand > 0 {
			byHour[sample.Period.UTC().Truncate(time.Hour)] = sample.Demand
		}
	}

	series := make([]models.HistoryPoint, 0, points)
	for i := 0; i < points; i++ {
		ts := start.Add(time.Duration(i) * time.Hour)
		load, live := byHour[ts.UTC()]
		if !live {
			load = historyBaseLoad * synth.DiurnalFactor(ts.Hour())
			load *= 0.9 + float64(ts.Weekday())*0.03
			load *= synth.Jitter(s.noise)
		}
		series = append(series, models.HistoryPoint{
			Timestamp:     ts,
			LoadValue:     math.Round(load),
			ForecastValue: math.Round(load * synth.Jitter(s.noise)),
		})
	}
	return series
}

func round0(v float64) float64 { return math.Round(v) }
func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
