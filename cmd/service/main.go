package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/gridwatch/grid-status-service/internal/cache"
	"github.com/gridwatch/grid-status-service/internal/circuitbreaker"
	"github.com/gridwatch/grid-status-service/internal/client"
	"github.com/gridwatch/grid-status-service/internal/config"
	httphandler "github.com/gridwatch/grid-status-service/internal/http"
	"github.com/gridwatch/grid-status-service/internal/lifecycle"
	"github.com/gridwatch/grid-status-service/internal/models"
	"github.com/gridwatch/grid-status-service/internal/observability"
	"github.com/gridwatch/grid-status-service/internal/service"
	"github.com/gridwatch/grid-status-service/internal/upstream"
)

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	breaker := circuitbreaker.New(circuitbreaker.Config{
		FailureThreshold: cfg.BreakerFailureThreshold,
		SuccessThreshold: cfg.BreakerSuccessThreshold,
		Timeout:          cfg.BreakerTimeout,
		OnStateChange: func(from, to circuitbreaker.State) {
			observability.RecordCircuitBreakerTransition("eia_api", from.String(), to.String())
			observability.SetCircuitBreakerState("eia_api", int(to))
		},
	})
	observability.SetCircuitBreakerState("eia_api", 0)

	gridClient, err := client.NewEIAClientWithRetry(
		cfg.EIAAPIKey,
		cfg.EIAAPIURL,
		cfg.EIAAPITimeout,
		cfg.RetryAttempts,
		cfg.RetryBaseDelay,
		cfg.RetryMaxDelay,
		breaker,
	)
	if err != nil {
		logger.Fatal("eia client", zap.Error(err))
	}

	clock := clockwork.NewRealClock()

	var regionCache cache.Cache[models.RegionSnapshot]
	var cityCache cache.Cache[models.CityRecord]
	var cachePing func() error
	switch cfg.CacheBackend {
	case "memcached":
		mc := cache.NewMemcachedClient(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		regionCache = cache.NewMemcachedCache[models.RegionSnapshot](mc, clock, "grid")
		cityCache = cache.NewMemcachedCache[models.CityRecord](mc, clock, "grid")
		cachePing = mc.Ping
		logger.Info("cache backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
	default:
		regionCache = cache.NewInMemoryCache[models.RegionSnapshot](clock)
		cityCache = cache.NewInMemoryCache[models.CityRecord](clock)
		logger.Info("cache backend: in_memory")
	}

	tracker := upstream.NewTracker(clock)
	gridService := service.NewGridService(gridClient, regionCache, cityCache, service.Options{
		Clock:     clock,
		Logger:    logger,
		Tracker:   tracker,
		RegionTTL: cfg.RegionCacheTTL,
		CityTTL:   cfg.CityCacheTTL,
	})
	observability.RegisterFallbackShareGauges(tracker, cfg.FallbackShareWindow)

	healthConfig := &httphandler.HealthConfig{
		FallbackShareWindow: cfg.FallbackShareWindow,
		FallbackSharePct:    cfg.FallbackSharePct,
		CachePing:           cachePing,
	}
	handler := httphandler.NewHandler(gridService, gridClient, healthConfig, logger)

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}

	refreshCtx, stopRefresh := context.WithCancel(context.Background())
	refresher := service.NewRefresher(gridService, logger, cfg.WarmCities)
	go func() {
		if err := refresher.Run(refreshCtx, cfg.RefreshInterval); err != nil && err != context.Canceled {
			logger.Error("background refresh stopped", zap.Error(err))
		}
	}()

	router := mux.NewRouter()
	router.Use(httphandler.CorrelationIDMiddleware(logger))
	router.Use(httphandler.MetricsMiddleware)
	router.HandleFunc("/health", handler.GetHealth).Methods("GET")
	router.Handle("/metrics", observability.MetricsHandler())

	api := router.NewRoute().Subrouter()
	api.Use(httphandler.RateLimitMiddleware(limiter))
	api.Use(httphandler.TimeoutMiddleware(cfg.RequestTimeout))
	api.HandleFunc("/regions", handler.GetRegions).Methods("GET")
	api.HandleFunc("/cities/{cityId}", handler.GetCity).Methods("GET")
	api.HandleFunc("/history/{region}", handler.GetHistory).Methods("GET")

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", ":"+cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	lifecycle.SetShuttingDown(true)
	stopRefresh()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	remaining := httphandler.InFlightCount()
	logger.Info("waiting for in-flight requests", zap.Int64("count", remaining))
	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()
	if err := httphandler.WaitForInFlight(waitCtx, 100*time.Millisecond); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
