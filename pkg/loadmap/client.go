// Package loadmap is a client for the LoadMap meeting-point backend.
package loadmap

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/loadmap-guide/loadmap-cli/internal/metrics"
	"github.com/loadmap-guide/loadmap-cli/internal/model"
	"github.com/loadmap-guide/loadmap-cli/internal/resilience"
)

const defaultBaseURL = "http://localhost:8080/api"

// DefaultRadiusMeters is the nearby search radius used when a query leaves it unset.
const DefaultRadiusMeters = 500

// Client performs LoadMap backend operations.
type Client interface {
	// CalculateSimple asks for midpoint candidates without weather and
	// returns the raw data document.
	CalculateSimple(ctx context.Context, locs []model.Location, mode model.TransportMode) (json.RawMessage, error)

	// CalculateWithWeather asks for midpoint candidates plus weather and
	// returns the raw data document.
	CalculateWithWeather(ctx context.Context, locs []model.Location, mode model.TransportMode) (json.RawMessage, error)

	// ValidateLocation asks the backend whether a location is usable.
	ValidateLocation(ctx context.Context, loc model.Location) (bool, error)

	// NearbyPlaces searches points of interest around a coordinate and
	// returns the raw data array.
	NearbyPlaces(ctx context.Context, q NearbyQuery) (json.RawMessage, error)

	// Categories returns the backend's place category list.
	Categories(ctx context.Context) (json.RawMessage, error)

	// Tags returns the filterable place tags.
	Tags(ctx context.Context) ([]model.TagInfo, error)

	// ExternalHealth reports the backend's view of its upstream APIs.
	ExternalHealth(ctx context.Context) (json.RawMessage, error)
}

// NearbyQuery parameterizes a nearby-places search.
type NearbyQuery struct {
	Latitude     float64
	Longitude    float64
	RadiusMeters int
	Category     string
}

type calculateRequest struct {
	Locations          []model.Location    `json:"locations"`
	TransportationType model.TransportMode `json:"transportationType"`
}

type envelope struct {
	Success *bool           `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// endpoint names a backend route for metrics, and the breaker group it shares.
type endpoint struct {
	name  string
	group string
}

var (
	epCalculateSimple  = endpoint{"calculate-simple", "calculate"}
	epCalculateWeather = endpoint{"calculate-weather", "calculate"}
	epValidate         = endpoint{"validate", "calculate"}
	epNearby           = endpoint{"places-nearby", "places"}
	epCategories       = endpoint{"places-categories", "places"}
	epTags             = endpoint{"places-tags", "places"}
	epHealth           = endpoint{"health-external", "health"}
)

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithTimeout sets the per-request timeout on the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithPolicy sets the retry and circuit breaker policy. nil disables both.
func WithPolicy(p *resilience.Policy) Option {
	return func(c *httpClient) {
		c.policy = p
	}
}

// WithMetrics records request latency on m.
func WithMetrics(m *metrics.Recorder) Option {
	return func(c *httpClient) {
		c.metrics = m
	}
}

type httpClient struct {
	baseURL string
	http    *http.Client
	policy  *resilience.Policy
	metrics *metrics.Recorder
}

// NewClient creates a LoadMap backend client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
		policy: resilience.NewPolicy(0, 0, 0, 0, 0),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) CalculateSimple(ctx context.Context, locs []model.Location, mode model.TransportMode) (json.RawMessage, error) {
	return c.do(ctx, epCalculateSimple, http.MethodPost, "/location/middle-point/simple", nil, calculateRequest{Locations: locs, TransportationType: mode})
}

func (c *httpClient) CalculateWithWeather(ctx context.Context, locs []model.Location, mode model.TransportMode) (json.RawMessage, error) {
	return c.do(ctx, epCalculateWeather, http.MethodPost, "/location/middle-point/with-weather", nil, calculateRequest{Locations: locs, TransportationType: mode})
}

func (c *httpClient) ValidateLocation(ctx context.Context, loc model.Location) (bool, error) {
	data, err := c.do(ctx, epValidate, http.MethodPost, "/location/validate", nil, loc)
	if err != nil {
		return false, err
	}
	var ok bool
	if err := json.Unmarshal(data, &ok); err != nil {
		return false, eris.Wrap(err, "loadmap: decode validate result")
	}
	return ok, nil
}

func (c *httpClient) NearbyPlaces(ctx context.Context, q NearbyQuery) (json.RawMessage, error) {
	radius := q.RadiusMeters
	if radius <= 0 {
		radius = DefaultRadiusMeters
	}
	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(q.Latitude, 'f', -1, 64))
	params.Set("longitude", strconv.FormatFloat(q.Longitude, 'f', -1, 64))
	params.Set("radius", strconv.Itoa(radius))
	if q.Category != "" {
		params.Set("category", q.Category)
	}
	return c.do(ctx, epNearby, http.MethodGet, "/places/nearby", params, nil)
}

func (c *httpClient) Categories(ctx context.Context) (json.RawMessage, error) {
	return c.do(ctx, epCategories, http.MethodGet, "/places/categories", nil, nil)
}

func (c *httpClient) Tags(ctx context.Context) ([]model.TagInfo, error) {
	data, err := c.do(ctx, epTags, http.MethodGet, "/places/tags", nil, nil)
	if err != nil {
		return nil, err
	}
	var tags []model.TagInfo
	if len(data) == 0 || string(data) == "null" {
		return []model.TagInfo{}, nil
	}
	if err := json.Unmarshal(data, &tags); err != nil {
		return nil, eris.Wrap(err, "loadmap: decode tags")
	}
	return tags, nil
}

func (c *httpClient) ExternalHealth(ctx context.Context) (json.RawMessage, error) {
	return c.do(ctx, epHealth, http.MethodGet, "/health/external-apis", nil, nil)
}

// do sends one logical request under the client's resilience policy and
// returns the envelope's data member.
func (c *httpClient) do(ctx context.Context, ep endpoint, method, path string, query url.Values, body any) (json.RawMessage, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, eris.Wrapf(err, "loadmap: marshal %s request", ep.name)
		}
	}

	return resilience.Call(ctx, c.policy, ep.group, func(ctx context.Context) (json.RawMessage, error) {
		return c.roundTrip(ctx, ep, method, path, query, payload)
	})
}

func (c *httpClient) roundTrip(ctx context.Context, ep endpoint, method, path string, query url.Values, payload []byte) (json.RawMessage, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, eris.Wrapf(err, "loadmap: create %s request", ep.name)
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.BackendRequest(ep.name, "error", time.Since(start))
		return nil, &TransportError{Endpoint: ep.name, Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	c.metrics.BackendRequest(ep.name, strconv.Itoa(resp.StatusCode), time.Since(start))
	if err != nil {
		return nil, &TransportError{Endpoint: ep.name, Err: err}
	}

	zap.L().Debug("loadmap: backend response",
		zap.String("endpoint", ep.name),
		zap.String("request_id", requestID),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	var env envelope
	decodeErr := json.Unmarshal(respBody, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Endpoint: ep.name, StatusCode: resp.StatusCode}
		if decodeErr == nil {
			apiErr.Message = env.Message
		}
		if resilience.IsTransientStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(apiErr, resp.StatusCode)
		}
		return nil, apiErr
	}

	if decodeErr != nil {
		return nil, eris.Wrapf(decodeErr, "loadmap: decode %s response", ep.name)
	}
	if env.Success != nil && !*env.Success {
		return nil, &APIError{Endpoint: ep.name, StatusCode: resp.StatusCode, Message: env.Message}
	}
	return env.Data, nil
}
