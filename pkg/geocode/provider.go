package geocode

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/loadmap-guide/loadmap-cli/internal/metrics"
)

// Provider represents a single reverse geocoding backend.
type Provider interface {
	Reverser
	Name() string
	Available() bool
}

// ErrNoProvider is returned when no configured provider could answer.
var ErrNoProvider = eris.New("geocode: no provider available")

// Cascade tries providers in order until one matches.
type Cascade struct {
	providers []Provider
	cache     *resultCache
	metrics   *metrics.Recorder
}

// CascadeOption configures the Cascade.
type CascadeOption func(*Cascade)

// WithCache sizes the in-memory result cache. maxEntries <= 0 disables it.
func WithCache(maxEntries int, ttl time.Duration) CascadeOption {
	return func(c *Cascade) {
		if maxEntries <= 0 {
			c.cache = nil
			return
		}
		c.cache = newResultCache(maxEntries, ttl)
	}
}

// WithMetrics records lookups on m.
func WithMetrics(m *metrics.Recorder) CascadeOption {
	return func(c *Cascade) {
		c.metrics = m
	}
}

// NewCascade creates a Cascade over providers, caching matches for 24h.
func NewCascade(providers []Provider, opts ...CascadeOption) *Cascade {
	c := &Cascade{
		providers: providers,
		cache:     newResultCache(512, 24*time.Hour),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Reverse implements Reverser. Only matched results are cached. When every
// available provider errors, the last error is returned.
func (c *Cascade) Reverse(ctx context.Context, lat, lng float64) (*Result, error) {
	if !ValidCoordinate(lat, lng) {
		return nil, eris.Wrapf(ErrInvalidCoordinate, "geocode: (%f, %f)", lat, lng)
	}

	key := cacheKey(lat, lng)
	if c.cache != nil {
		if r, ok := c.cache.get(key); ok {
			zap.L().Debug("geocode cache hit", zap.String("key", key))
			c.metrics.ReverseGeocode(r.Source, "cached")
			return r, nil
		}
	}

	var lastErr error
	var miss *Result
	tried := 0
	for _, p := range c.providers {
		if !p.Available() {
			continue
		}
		tried++
		result, err := p.Reverse(ctx, lat, lng)
		if err != nil {
			c.metrics.ReverseGeocode(p.Name(), "error")
			zap.L().Debug("cascade: provider error, trying next",
				zap.String("provider", p.Name()),
				zap.Error(err),
			)
			lastErr = err
			if ctx.Err() != nil {
				return nil, eris.Wrap(ctx.Err(), "geocode: reverse")
			}
			continue
		}
		if result != nil && result.Matched {
			c.metrics.ReverseGeocode(p.Name(), "ok")
			if c.cache != nil {
				c.cache.put(key, *result)
			}
			return result, nil
		}
		c.metrics.ReverseGeocode(p.Name(), "miss")
		miss = result
	}

	if miss != nil {
		return miss, nil
	}
	if tried == 0 {
		return nil, ErrNoProvider
	}
	return nil, lastErr
}
