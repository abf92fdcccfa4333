// Package geocode resolves map coordinates to human-readable addresses via
// Kakao Local (primary) and Google Geocoding (fallback).
package geocode

import (
	"context"
	"math"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Reverser converts a coordinate into an address.
type Reverser interface {
	// Reverse looks up the address at lat/lng. A miss is a Result with
	// Matched=false, not an error.
	Reverse(ctx context.Context, lat, lng float64) (*Result, error)
}

// Result holds the reverse geocoding output for a coordinate.
type Result struct {
	Address     string `json:"address"`
	RoadAddress string `json:"road_address,omitempty"`
	LotAddress  string `json:"lot_address,omitempty"`
	Source      string `json:"source"` // "kakao" or "google"
	Matched     bool   `json:"matched"`
}

// ErrInvalidCoordinate is returned for coordinates outside WGS84 bounds.
var ErrInvalidCoordinate = eris.New("geocode: invalid coordinate")

// ValidCoordinate reports whether lat/lng are finite and inside WGS84 bounds.
func ValidCoordinate(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lng) || math.IsInf(lat, 0) || math.IsInf(lng, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

// Option configures a provider.
type Option func(*providerBase)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(p *providerBase) {
		p.httpClient = hc
	}
}

// WithRateLimit sets the requests-per-second rate limit.
func WithRateLimit(rps float64) Option {
	return func(p *providerBase) {
		if rps <= 0 {
			return
		}
		burst := int(math.Max(1, rps))
		p.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithBaseURL overrides the provider's API base URL.
func WithBaseURL(u string) Option {
	return func(p *providerBase) {
		p.baseURL = u
	}
}

type providerBase struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	baseURL    string
}

func newProviderBase(baseURL string, opts []Option) providerBase {
	p := providerBase{
		httpClient: &http.Client{Timeout: 5 * time.Second},
		limiter:    rate.NewLimiter(10, 10),
		baseURL:    baseURL,
	}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}
