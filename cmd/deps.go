package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/loadmap-guide/loadmap-cli/internal/enrich"
	"github.com/loadmap-guide/loadmap-cli/internal/metrics"
	"github.com/loadmap-guide/loadmap-cli/internal/resilience"
	"github.com/loadmap-guide/loadmap-cli/pkg/geocode"
	"github.com/loadmap-guide/loadmap-cli/pkg/loadmap"
)

// newBackendClient builds the backend client from cfg. m may be nil.
func newBackendClient(m *metrics.Recorder) loadmap.Client {
	policy := resilience.NewPolicy(
		cfg.Backend.Retry.MaxAttempts,
		cfg.Backend.Retry.InitialBackoffMs,
		cfg.Backend.Retry.MaxBackoffMs,
		cfg.Backend.Circuit.FailureThreshold,
		cfg.Backend.Circuit.ResetTimeoutSecs,
	)
	return loadmap.NewClient(
		loadmap.WithBaseURL(cfg.Backend.BaseURL),
		loadmap.WithTimeout(time.Duration(cfg.Backend.TimeoutSecs)*time.Second),
		loadmap.WithPolicy(policy),
		loadmap.WithMetrics(m),
	)
}

// newReverser returns the provider cascade, or nil when no provider has a
// key. Clicks then fall back to coordinate labels.
func newReverser(m *metrics.Recorder) geocode.Reverser {
	opts := []geocode.Option{geocode.WithRateLimit(cfg.Geocode.RateLimit)}
	kakaoOpts := append([]geocode.Option{geocode.WithBaseURL(cfg.Kakao.BaseURL)}, opts...)

	providers := []geocode.Provider{
		geocode.NewKakaoProvider(cfg.Kakao.RESTKey, kakaoOpts...),
		geocode.NewGoogleProvider(cfg.Google.Key, opts...),
	}
	available := 0
	for _, p := range providers {
		if p.Available() {
			available++
		}
	}
	if available == 0 {
		zap.L().Info("no reverse geocoding provider configured, map clicks use coordinate labels")
		return nil
	}
	return geocode.NewCascade(providers, geocode.WithMetrics(m))
}

// newPipeline builds the enrichment pipeline with a Redis cache when
// cache.redis_url is set, otherwise an in-process cache. The returned func
// releases the Redis connection.
func newPipeline(ctx context.Context, client loadmap.Client, m *metrics.Recorder) (*enrich.Pipeline, func(), error) {
	categories, err := enrich.LoadCategories(cfg.Enrich.CategoriesFile)
	if err != nil {
		return nil, nil, err
	}

	ttl := time.Duration(cfg.Cache.TTLMins) * time.Minute
	var cache enrich.Cache = enrich.NewMemoryCache(cfg.Cache.MaxEntries, ttl)
	closeFn := func() {}
	if cfg.Cache.RedisURL != "" {
		rdb, err := enrich.DialRedis(ctx, cfg.Cache.RedisURL)
		if err != nil {
			zap.L().Warn("redis unavailable, using in-process cache", zap.Error(err))
		} else {
			cache = enrich.NewRedisCache(rdb, enrich.WithTTL(ttl))
			closeFn = func() { _ = rdb.Close() }
		}
	}

	p := enrich.NewPipeline(enrich.NewLiveSource(client),
		enrich.WithCache(cache),
		enrich.WithCategories(categories),
		enrich.WithRadius(cfg.Enrich.RadiusMeters),
		enrich.WithMaxResults(cfg.Enrich.MaxResults),
		enrich.WithConcurrency(cfg.Enrich.Concurrency),
		enrich.WithRateLimit(cfg.Enrich.RateLimit),
		enrich.WithMetrics(m),
	)
	return p, closeFn, nil
}
