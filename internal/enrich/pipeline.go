// Package enrich looks up nearby places for each candidate independently.
// A failed lookup degrades to a single placeholder entry for that candidate.
package enrich

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/loadmap-guide/loadmap-cli/internal/metrics"
	"github.com/loadmap-guide/loadmap-cli/internal/model"
	"github.com/loadmap-guide/loadmap-cli/pkg/loadmap"
)

// Defaults for nearby lookups.
const (
	DefaultRadiusMeters = 500
	DefaultMaxResults   = 3
	DefaultConcurrency  = 4
)

// Placeholder text for an unavailable lookup.
const (
	UnavailableName        = "주변 장소 정보를 불러올 수 없습니다"
	UnavailableDescription = "잠시 후 다시 시도해주세요."
)

// UnavailablePlace is the sentinel entry shown when a lookup failed.
func UnavailablePlace() model.RecommendedPlace {
	return model.RecommendedPlace{
		Name:        UnavailableName,
		Category:    DefaultFallbackLabel,
		Tags:        []string{},
		Description: UnavailableDescription,
		Unavailable: true,
	}
}

// Result is one candidate's enrichment outcome, tagged with the calculation
// generation it belongs to.
type Result struct {
	Generation uint64                   `json:"generation"`
	Rank       int                      `json:"rank"`
	Places     []model.RecommendedPlace `json:"places"`
}

// Unavailable reports whether the lookup failed.
func (r Result) Unavailable() bool {
	return len(r.Places) == 1 && r.Places[0].Unavailable
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithCache enables result caching.
func WithCache(c Cache) Option {
	return func(p *Pipeline) { p.cache = c }
}

// WithCategories replaces the embedded category table.
func WithCategories(c *Categories) Option {
	return func(p *Pipeline) {
		if c != nil {
			p.categories = c
		}
	}
}

// WithRadius sets the search radius in meters.
func WithRadius(meters int) Option {
	return func(p *Pipeline) {
		if meters > 0 {
			p.radius = meters
		}
	}
}

// WithMaxResults caps the places kept per candidate.
func WithMaxResults(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.maxResults = n
		}
	}
}

// WithConcurrency bounds parallel lookups in Start.
func WithConcurrency(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithRateLimit caps lookups per second across all candidates.
func WithRateLimit(rps float64) Option {
	return func(p *Pipeline) {
		if rps > 0 {
			p.limiter = rate.NewLimiter(rate.Limit(rps), max(1, int(rps)))
		}
	}
}

// WithMetrics records fetch results on m.
func WithMetrics(m *metrics.Recorder) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// Pipeline fetches and labels nearby places.
type Pipeline struct {
	source      PlaceSource
	categories  *Categories
	cache       Cache
	radius      int
	maxResults  int
	concurrency int
	limiter     *rate.Limiter
	metrics     *metrics.Recorder
	flight      singleflight.Group
	log         *zap.Logger
}

// NewPipeline creates a Pipeline over source.
func NewPipeline(source PlaceSource, opts ...Option) *Pipeline {
	p := &Pipeline{
		source:      source,
		categories:  DefaultCategories(),
		radius:      DefaultRadiusMeters,
		maxResults:  DefaultMaxResults,
		concurrency: DefaultConcurrency,
		limiter:     rate.NewLimiter(rate.Inf, 1),
		log:         zap.L().With(zap.String("component", "enrich")),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// FetchNearby returns up to maxResults places around lat/lng in the
// source's order. It never fails: an error yields []{UnavailablePlace()}.
func (p *Pipeline) FetchNearby(ctx context.Context, lat, lng float64) []model.RecommendedPlace {
	key := cacheKey(lat, lng, p.radius)
	if p.cache != nil {
		if places, ok := p.cache.Get(ctx, key); ok {
			p.log.Debug("nearby cache hit", zap.String("key", key))
			p.metrics.EnrichmentFetch(metrics.FetchCached)
			return places
		}
	}

	v, err, _ := p.flight.Do(key, func() (any, error) {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		return p.source.Nearby(ctx, loadmap.NearbyQuery{Latitude: lat, Longitude: lng, RadiusMeters: p.radius})
	})
	if err != nil {
		p.log.Warn("nearby lookup failed",
			zap.Float64("lat", lat),
			zap.Float64("lng", lng),
			zap.Error(err),
		)
		p.metrics.EnrichmentFetch(metrics.FetchUnavailable)
		return []model.RecommendedPlace{UnavailablePlace()}
	}

	places := p.recommend(v.([]model.Place))
	if p.cache != nil {
		p.cache.Put(ctx, key, places)
	}
	p.metrics.EnrichmentFetch(metrics.FetchOK)
	return places
}

func (p *Pipeline) recommend(places []model.Place) []model.RecommendedPlace {
	n := min(len(places), p.maxResults)
	out := make([]model.RecommendedPlace, 0, n)
	for _, pl := range places[:n] {
		tags := append([]string{}, pl.Tags...)
		out = append(out, model.RecommendedPlace{
			Name:        pl.Name,
			Category:    p.categories.Label(pl.Category),
			Tags:        tags,
			Description: pl.Description,
			Distance:    max(pl.DistanceMeters, 0),
		})
	}
	return out
}

// Start fetches every candidate concurrently, bounded by the configured
// concurrency, and calls deliver once per candidate as each finishes.
// deliver may be called from several goroutines at once. The returned func
// blocks until every delivery has been made.
func (p *Pipeline) Start(ctx context.Context, gen uint64, candidates []model.CandidatePoint, deliver func(Result)) (wait func()) {
	var done sync.WaitGroup
	done.Add(1)

	go func() {
		defer done.Done()
		start := time.Now()

		g := new(errgroup.Group)
		g.SetLimit(p.concurrency)
		for _, c := range candidates {
			c := c
			g.Go(func() error {
				places := p.FetchNearby(ctx, c.Latitude, c.Longitude)
				deliver(Result{Generation: gen, Rank: c.Rank, Places: places})
				return nil
			})
		}
		_ = g.Wait()

		p.log.Debug("enrichment finished",
			zap.Uint64("generation", gen),
			zap.Int("candidates", len(candidates)),
			zap.Duration("elapsed", time.Since(start)),
		)
	}()

	return done.Wait
}
