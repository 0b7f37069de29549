// Package service holds the region and city data stores. Both are cache-aside
// over the EIA client with deterministic fallback synthesis, so the public
// accessors never return errors: any upstream or cache failure degrades to
// synthesized data and is logged.
package service

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/gridwatch/grid-status-service/internal/cache"
	"github.com/gridwatch/grid-status-service/internal/client"
	"github.com/gridwatch/grid-status-service/internal/models"
	"github.com/gridwatch/grid-status-service/internal/observability"
	"github.com/gridwatch/grid-status-service/internal/synth"
	"github.com/gridwatch/grid-status-service/internal/upstream"
)

const (
	regionsKey    = "regions"
	cityKeyPrefix = "city:"

	// fetchWindow is how far back each region fetch reaches; a day of hourly
	// samples covers both trend and hour-matched prediction.
	fetchWindow = 24 * time.Hour

	// lastGoodMaxAge bounds how old an expired snapshot may be and still be
	// served when a refresh fails outright.
	lastGoodMaxAge = 24 * time.Hour

	// staleRetryInterval bounds how often a full refresh is retried while
	// the last good snapshot is being served during an outage.
	staleRetryInterval = time.Minute
)

// GridService orchestrates region and city retrieval using cache-aside with
// fallback synthesis.
type GridService struct {
	client    client.GridClient
	regions   cache.Cache[models.RegionSnapshot]
	cities    cache.Cache[models.CityRecord]
	clock     clockwork.Clock
	logger    *zap.Logger
	tracker   *upstream.Tracker
	regionTTL time.Duration
	cityTTL   time.Duration
	noise     synth.Rand

	staleMu      sync.Mutex
	staleRetryAt time.Time
}

// Options configures a GridService. Zero-value fields get defaults: real
// clock, nop logger, package-level random source, 10 minute TTLs.
type Options struct {
	Clock     clockwork.Clock
	Logger    *zap.Logger
	Tracker   *upstream.Tracker
	RegionTTL time.Duration
	CityTTL   time.Duration
	Noise     synth.Rand
}

func NewGridService(gridClient client.GridClient, regions cache.Cache[models.RegionSnapshot], cities cache.Cache[models.CityRecord], opts Options) *GridService {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Tracker == nil {
		opts.Tracker = upstream.NewTracker(opts.Clock)
	}
	if opts.RegionTTL <= 0 {
		opts.RegionTTL = 10 * time.Minute
	}
	if opts.CityTTL <= 0 {
		opts.CityTTL = 10 * time.Minute
	}
	if opts.Noise == nil {
		opts.Noise = synth.Global
	}
	return &GridService{
		client:    gridClient,
		regions:   regions,
		cities:    cities,
		clock:     opts.Clock,
		logger:    opts.Logger,
		tracker:   opts.Tracker,
		regionTTL: opts.RegionTTL,
		cityTTL:   opts.CityTTL,
		noise:     opts.Noise,
	}
}

// Tracker exposes the upstream live/fallback accounting for health checks.
func (s *GridService) Tracker() *upstream.Tracker {
	return s.tracker
}

// loggerFromContext extracts a request-scoped zap.Logger if middleware put
// one in the context.
func loggerFromContext(ctx context.Context) *zap.Logger {
	if v := ctx.Value("logger"); v != nil {
		if l, ok := v.(*zap.Logger); ok && l != nil {
			return l
		}
	}
	return nil
}

func (s *GridService) log(ctx context.Context) *zap.Logger {
	if l := loggerFromContext(ctx); l != nil {
		return l
	}
	return s.logger
}

// GetRegions returns the full region snapshot. Cache hit within TTL returns
// the identical snapshot; on miss the upstream is refreshed with per-region
// fallback isolation. Never returns an error.
func (s *GridService) GetRegions(ctx context.Context) models.RegionSnapshot {
	logger := s.log(ctx)

	cached, ok, err := s.regions.Get(ctx, regionsKey)
	if err != nil {
		observability.CacheErrorsTotal.WithLabelValues("get").Inc()
		logger.Warn("region cache get failed", zap.Error(err))
	} else if ok {
		observability.CacheHitsTotal.WithLabelValues("regions").Inc()
		logger.Debug("region cache hit")
		return cached
	}

	// During an outage the last good snapshot keeps being served between
	// retry attempts instead of hammering the upstream on every miss.
	s.staleMu.Lock()
	retryAt := s.staleRetryAt
	s.staleMu.Unlock()
	if s.clock.Now().Before(retryAt) {
		stale, ok, err := s.regions.GetStale(ctx, regionsKey, lastGoodMaxAge)
		if err != nil {
			observability.CacheErrorsTotal.WithLabelValues("get_stale").Inc()
		} else if ok {
			observability.CacheHitsTotal.WithLabelValues("regions_stale").Inc()
			logger.Debug("serving last good snapshot during refresh cooldown")
			return stale
		}
	}

	return s.refreshRegions(ctx)
}

// regionFetch is one region's refresh outcome.
type regionFetch struct {
	name   string
	record models.RegionRecord
	live   bool
}

// refreshRegions fetches every region in parallel, isolating failures to the
// failing region via fallback synthesis. When no region fetch succeeds the
// last good snapshot is preferred over an all-fallback one. The refreshed
// snapshot is cached and all derived city records are invalidated.
func (s *GridService) refreshRegions(ctx context.Context) models.RegionSnapshot {
	logger := s.log(ctx)
	start := time.Now()
	now := s.clock.Now()

	results := make([]regionFetch, len(RegionNames))
	var wg sync.WaitGroup
	for i, name := range RegionNames {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			results[i] = s.fetchRegion(ctx, name, now)
		}(i, name)
	}
	wg.Wait()

	snapshot := make(models.RegionSnapshot, len(results))
	liveCount := 0
	for _, r := range results {
		snapshot[r.name] = r.record
		if r.live {
			liveCount++
		}
	}

	observability.RegionRefreshDurationSeconds.Observe(time.Since(start).Seconds())

	if liveCount == 0 {
		// Full refresh failure: an older real snapshot beats a wholly
		// synthetic one.
		stale, ok, err := s.regions.GetStale(ctx, regionsKey, lastGoodMaxAge)
		if err != nil {
			observability.CacheErrorsTotal.WithLabelValues("get_stale").Inc()
		} else if ok {
			observability.RegionRefreshTotal.WithLabelValues("stale").Inc()
			logger.Info("serving last good region snapshot after full refresh failure")
			s.staleMu.Lock()
			s.staleRetryAt = now.Add(staleRetryInterval)
			s.staleMu.Unlock()
			return stale
		}
		observability.RegionRefreshTotal.WithLabelValues("fallback").Inc()
	} else if liveCount < len(results) {
		observability.RegionRefreshTotal.WithLabelValues("partial").Inc()
	} else {
		observability.RegionRefreshTotal.WithLabelValues("live").Inc()
	}

	// Fallback snapshots are cached too: callers within the TTL see the
	// identical mapping regardless of how it was produced.
	if err := s.regions.Set(ctx, regionsKey, snapshot, s.regionTTL); err != nil {
		observability.CacheErrorsTotal.WithLabelValues("set").Inc()
		logger.Warn("region cache set failed", zap.Error(err))
	}
	s.staleMu.Lock()
	s.staleRetryAt = time.Time{}
	s.staleMu.Unlock()
	s.invalidateCities(ctx)

	logger.Debug("region snapshot refreshed",
		zap.Int("live", liveCount),
		zap.Int("regions", len(results)),
		zap.Duration("duration", time.Since(start)))
	return snapshot
}

func (s *GridService) fetchRegion(ctx context.Context, name string, now time.Time) regionFetch {
	respondent := RegionRespondents[name]
	samples, err := s.client.RegionSeries(ctx, respondent, now.Add(-fetchWindow), now)
	if err != nil {
		s.tracker.RecordFallback()
		observability.FallbackSynthesisTotal.WithLabelValues("region").Inc()
		s.log(ctx).Warn("region fetch failed, synthesizing",
			zap.String("region", name),
			zap.String("respondent", respondent),
			zap.Error(err))
		return regionFetch{name: name, record: synth.FallbackRegion(name, now, s.noise)}
	}

	s.tracker.RecordLive()
	return regionFetch{name: name, record: s.buildRegion(samples, now), live: true}
}

// buildRegion turns a fetched sample window (newest first) into a region
// record. Capacity is net generation with 20% headroom; when net generation
// is missing it is back-derived from a drawn utilization in [0.6, 0.9).
func (s *GridService) buildRegion(samples []models.Sample, now time.Time) models.RegionRecord {
	load := 0.0
	netGen := 0.0
	for _, sample := range samples {
		if sample.Demand > 0 {
			load = sample.Demand
			netGen = sample.NetGeneration
			break
		}
	}
	if load <= 0 {
		// Window had rows but no usable demand values.
		load = 4000 + s.noise.Float64()*2000
	}

	var capacity float64
	if netGen > 0 {
		capacity = netGen * 1.2
	} else {
		utilization := 0.6 + s.noise.Float64()*0.3
		capacity = load / utilization
	}

	trend := demandTrend(samples)
	status, _ := synth.Classify(load, capacity)
	utilization := load / capacity

	return models.RegionRecord{
		CurrentLoad:     round2(load),
		Capacity:        round2(capacity),
		Status:          status,
		LoadTrend:       trend,
		Vulnerabilities: synth.RegionVulnerabilities(utilization, trend),
		Prediction:      s.predictFromWindow(samples, load, now),
	}
}

// demandTrend is the percent change from the oldest to the newest valid
// demand sample, one decimal place. Zero when fewer than two valid samples.
func demandTrend(samples []models.Sample) float64 {
	newest, oldest := 0.0, 0.0
	seen := 0
	for _, sample := range samples {
		if sample.Demand <= 0 {
			continue
		}
		if seen == 0 {
			newest = sample.Demand
		}
		oldest = sample.Demand
		seen++
	}
	if seen < 2 || oldest == 0 {
		return 0
	}
	return round1((newest - oldest) / oldest * 100)
}

// predictFromWindow builds the 24-hour prediction, preferring hour-matched
// demand from the fetched window when at least half of it is usable and
// filling missing hours from the diurnal curve.
func (s *GridService) predictFromWindow(samples []models.Sample, load float64, now time.Time) []models.ForecastPoint {
	// Sample periods arrive in UTC; hours are matched in the clock's zone
	// so they line up with the labels starting at now.Hour().
	byHour := make(map[int]float64, 24)
	for _, sample := range samples {
		h := sample.Period.In(now.Location()).Hour()
		if sample.Demand > 0 {
			if _, ok := byHour[h]; !ok {
				byHour[h] = sample.Demand
			}
		}
	}

	if len(byHour) < 12 {
		return synth.Forecast(load, now.Hour(), s.noise)
	}

	points := make([]models.ForecastPoint, 0, 24)
	for i := 0; i < 24; i++ {
		h := (now.Hour() + i) % 24
		base, ok := byHour[h]
		if !ok {
			base = load * synth.DiurnalFactor(h)
		}
		points = append(points, models.ForecastPoint{
			Time: synth.HourLabel(h),
			Load: round0(base * synth.Jitter(s.noise)),
		})
	}
	return points
}

// invalidateCities drops every derived city record. City data is a pure
// function of its parent region, so a region refresh makes them all stale.
func (s *GridService) invalidateCities(ctx context.Context) {
	for _, id := range CityIDs {
		if err := s.cities.Delete(ctx, cityKeyPrefix+id); err != nil {
			observability.CacheErrorsTotal.WithLabelValues("delete").Inc()
			s.log(ctx).Warn("city cache invalidation failed", zap.String("city", id), zap.Error(err))
		}
	}
}
