package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/gridwatch/grid-status-service/internal/models"
	"github.com/gridwatch/grid-status-service/internal/observability"
	"github.com/gridwatch/grid-status-service/internal/synth"
)

// GetCity returns the record for a tracked city, deriving it from the parent
// region snapshot on cache miss. An expired region snapshot is refreshed as a
// side effect of the lookup; a fresh one is reused as-is. Unknown ids and any
// lookup failure degrade to self-contained seeded synthesis. Never returns an
// error.
func (s *GridService) GetCity(ctx context.Context, id string) models.CityRecord {
	logger := s.log(ctx)
	key := cityKeyPrefix + id

	cached, ok, err := s.cities.Get(ctx, key)
	if err != nil {
		observability.CacheErrorsTotal.WithLabelValues("get").Inc()
		logger.Warn("city cache get failed", zap.String("city", id), zap.Error(err))
	} else if ok {
		observability.CacheHitsTotal.WithLabelValues("cities").Inc()
		logger.Debug("city cache hit", zap.String("city", id))
		return cached
	}

	now := s.clock.Now()
	cityName, known := CityName(id)
	if !known {
		cityName = id
	}

	record, derived := s.deriveFromRegion(ctx, id, cityName)
	if !derived {
		observability.FallbackSynthesisTotal.WithLabelValues("city").Inc()
		logger.Warn("city derivation unavailable, synthesizing", zap.String("city", id))
		record = synth.FallbackCity(id, cityName, now, s.noise)
	}

	if err := s.cities.Set(ctx, key, record, s.cityTTL); err != nil {
		observability.CacheErrorsTotal.WithLabelValues("set").Inc()
		logger.Warn("city cache set failed", zap.String("city", id), zap.Error(err))
	}
	return record
}

// deriveFromRegion computes the city record from its parent region record.
// Returns false when the city has no known region or the snapshot lacks the
// region entry.
func (s *GridService) deriveFromRegion(ctx context.Context, id, cityName string) (models.CityRecord, bool) {
	regionName, ok := CityRegion(id)
	if !ok {
		return models.CityRecord{}, false
	}

	snapshot := s.GetRegions(ctx)
	region, ok := snapshot[regionName]
	if !ok {
		return models.CityRecord{}, false
	}

	return synth.DeriveCity(region, regionName, id, cityName, s.clock.Now(), s.noise), true
}
