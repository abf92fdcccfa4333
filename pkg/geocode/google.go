package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
)

const googleGeocodeURL = "https://maps.googleapis.com/maps/api/geocode/json"

// googleGeocodeResponse is the JSON response from the Google Geocoding API.
type googleGeocodeResponse struct {
	Results []struct {
		FormattedAddress string   `json:"formatted_address"`
		Types            []string `json:"types"`
	} `json:"results"`
	Status string `json:"status"`
}

// GoogleProvider reverse geocodes via the Google Geocoding API.
type GoogleProvider struct {
	providerBase
	apiKey string
}

// NewGoogleProvider creates a Google provider. An empty key makes it unavailable.
func NewGoogleProvider(apiKey string, opts ...Option) *GoogleProvider {
	return &GoogleProvider{providerBase: newProviderBase(googleGeocodeURL, opts), apiKey: apiKey}
}

// Name implements Provider.
func (p *GoogleProvider) Name() string { return "google" }

// Available implements Provider.
func (p *GoogleProvider) Available() bool { return p.apiKey != "" }

// Reverse implements Reverser.
func (p *GoogleProvider) Reverse(ctx context.Context, lat, lng float64) (*Result, error) {
	if !p.Available() {
		return nil, eris.New("geocode: google api key not configured")
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: google rate limit")
	}

	params := url.Values{
		"latlng":   {fmt.Sprintf("%f,%f", lat, lng)},
		"language": {"ko"},
		"key":      {p.apiKey},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: google build request")
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: google request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("geocode: google returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: google read body")
	}

	var gr googleGeocodeResponse
	if err := json.Unmarshal(body, &gr); err != nil {
		return nil, eris.Wrap(err, "geocode: google parse response")
	}

	if gr.Status != "OK" || len(gr.Results) == 0 {
		return &Result{Matched: false, Source: "google"}, nil
	}

	// Prefer a street-level result over the first (sometimes a plus code).
	addr := gr.Results[0].FormattedAddress
	for _, res := range gr.Results {
		if hasType(res.Types, "street_address") || hasType(res.Types, "premise") {
			addr = res.FormattedAddress
			break
		}
	}
	addr = strings.TrimPrefix(addr, "대한민국 ")
	return &Result{Address: addr, RoadAddress: addr, Source: "google", Matched: addr != ""}, nil
}

func hasType(types []string, want string) bool {
	for _, t := range types {
		if t == want {
			return true
		}
	}
	return false
}
