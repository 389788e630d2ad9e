package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/mrmushfiq/blinkshot-gateway/internal/gateway/geo"
	"github.com/mrmushfiq/blinkshot-gateway/internal/gateway/handlers"
	"github.com/mrmushfiq/blinkshot-gateway/internal/gateway/pipeline"
	"github.com/mrmushfiq/blinkshot-gateway/internal/gateway/providers"
	"github.com/mrmushfiq/blinkshot-gateway/internal/gateway/ratelimit"
	"github.com/mrmushfiq/blinkshot-gateway/internal/shared/config"
	"github.com/mrmushfiq/blinkshot-gateway/internal/shared/logger"
	"github.com/mrmushfiq/blinkshot-gateway/internal/shared/redis"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr).With().Timestamp().Logger()
		bootLog.Fatal().Err(err).Msg("failed to load config")
	}

	log := logger.New(cfg.Env, cfg.LogLevel)
	log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("starting blinkshot gateway")

	// Setup context with cancellation
	ctx, cancel := context.WithCancel(log.WithContext(context.Background()))
	defer cancel()

	if cfg.TogetherAPIKey == "" {
		log.Warn().Msg("TOGETHER_API_KEY not set, only requests carrying userAPIKey will succeed")
	}

	// Upstream provider
	provider := providers.NewTogetherProvider(providers.TogetherConfig{
		APIKey:         cfg.TogetherAPIKey,
		BaseURL:        cfg.TogetherBaseURL,
		HeliconeAPIKey: cfg.HeliconeAPIKey,
		Timeout:        cfg.UpstreamTimeout,
	})
	log.Info().Bool("helicone", cfg.HeliconeAPIKey != "").Msg("initialized image provider")

	opts := pipeline.Options{
		Provider:         provider,
		BlockedCountries: cfg.BlockedCountries,
	}

	// Quota store, optional
	if cfg.RateLimitEnabled() {
		redisClient, err := redis.New(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to Redis")
		}
		defer redisClient.Close()

		opts.Limiter = ratelimit.NewFixedWindow(redisClient, ratelimit.Options{
			Prefix:    "blinkshot",
			Limit:     cfg.RateLimitRequests,
			Window:    cfg.RateLimitWindow,
			Analytics: cfg.RateLimitAnalytics,
		})
		log.Info().
			Int("limit", cfg.RateLimitRequests).
			Dur("window", cfg.RateLimitWindow).
			Msg("rate limiting enabled")
	} else {
		log.Info().Msg("REDIS_URL not set, rate limiting and geofencing disabled")
	}

	// Geolocation, optional and only alongside the quota store
	if cfg.GeofenceEnabled() {
		resolver, err := geo.New(geo.Options{
			IPStackAPIKey: cfg.IPStackAPIKey,
			GeoIPDBPath:   cfg.GeoIPDBPath,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize geolocation")
		}
		if closer, ok := resolver.(io.Closer); ok {
			defer closer.Close()
		}
		opts.Geo = resolver
		log.Info().Strs("blocked_countries", cfg.BlockedCountries).Msg("geofence enabled")
	} else {
		log.Info().
			Bool("redis", cfg.RateLimitEnabled()).
			Bool("lookup_source", cfg.IPStackAPIKey != "" || cfg.GeoIPDBPath != "").
			Msg("geofence inactive")
	}

	// Initialize handlers
	imageHandler := handlers.NewImageHandler(pipeline.New(opts))
	middleware := handlers.NewMiddleware(log, cfg.CORSAllowedOrigin)

	// HTTP server
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handlers.NewRouter(imageHandler, middleware),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Strs("routes", []string{"POST /generateImages", "GET /imageStyles", "GET /health", "GET /metrics"}).
			Msg("server listening")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("shutting down gracefully")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}

	log.Info().Msg("server stopped")
}
