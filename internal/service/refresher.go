package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Refresher keeps the region snapshot warm so dashboard requests rarely pay
// the upstream fetch, optionally pre-deriving every tracked city after each
// region refresh.
type Refresher struct {
	service    *GridService
	logger     *zap.Logger
	warmCities bool
}

func NewRefresher(service *GridService, logger *zap.Logger, warmCities bool) *Refresher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Refresher{service: service, logger: logger, warmCities: warmCities}
}

// Warm refreshes the region snapshot and, when enabled, derives every city
// record off it. The data stores absorb failures internally, so warming
// cannot fail; it only moves work off the request path.
func (r *Refresher) Warm(ctx context.Context) {
	start := time.Now()
	r.service.refreshRegions(ctx)

	if r.warmCities {
		var wg sync.WaitGroup
		for _, id := range CityIDs {
			id := id
			wg.Add(1)
			go func() {
				defer wg.Done()
				r.service.GetCity(ctx, id)
			}()
		}
		wg.Wait()
	}

	r.logger.Info("cache warmed",
		zap.Bool("cities", r.warmCities),
		zap.Duration("duration", time.Since(start)))
}

// Run does an initial warm, then refreshes at the given interval until ctx
// is done. The interval should match the region TTL so entries are replaced
// as they expire.
func (r *Refresher) Run(ctx context.Context, interval time.Duration) error {
	r.Warm(ctx)
	ticker := r.service.clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
			r.Warm(ctx)
		}
	}
}
