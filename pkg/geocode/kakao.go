package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

const kakaoBaseURL = "https://dapi.kakao.com"

type kakaoCoordResponse struct {
	Documents []struct {
		RoadAddress *struct {
			AddressName  string `json:"address_name"`
			BuildingName string `json:"building_name"`
		} `json:"road_address"`
		Address *struct {
			AddressName string `json:"address_name"`
		} `json:"address"`
	} `json:"documents"`
}

// KakaoProvider reverse geocodes via the Kakao Local coord2address API.
type KakaoProvider struct {
	providerBase
	restKey string
}

// NewKakaoProvider creates a Kakao provider. An empty key makes it unavailable.
func NewKakaoProvider(restKey string, opts ...Option) *KakaoProvider {
	return &KakaoProvider{providerBase: newProviderBase(kakaoBaseURL, opts), restKey: restKey}
}

// Name implements Provider.
func (p *KakaoProvider) Name() string { return "kakao" }

// Available implements Provider.
func (p *KakaoProvider) Available() bool { return p.restKey != "" }

// Reverse implements Reverser. The road address wins over the lot address.
func (p *KakaoProvider) Reverse(ctx context.Context, lat, lng float64) (*Result, error) {
	if !p.Available() {
		return nil, eris.New("geocode: kakao rest key not configured")
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: kakao rate limit")
	}

	params := url.Values{
		"x":           {strconv.FormatFloat(lng, 'f', -1, 64)},
		"y":           {strconv.FormatFloat(lat, 'f', -1, 64)},
		"input_coord": {"WGS84"},
	}
	reqURL := strings.TrimRight(p.baseURL, "/") + "/v2/local/geo/coord2address.json?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: kakao build request")
	}
	req.Header.Set("Authorization", "KakaoAK "+p.restKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: kakao request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("geocode: kakao returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: kakao read body")
	}

	var kr kakaoCoordResponse
	if err := json.Unmarshal(body, &kr); err != nil {
		return nil, eris.Wrap(err, "geocode: kakao parse response")
	}
	if len(kr.Documents) == 0 {
		return &Result{Matched: false, Source: "kakao"}, nil
	}

	doc := kr.Documents[0]
	r := &Result{Source: "kakao"}
	if doc.RoadAddress != nil {
		r.RoadAddress = doc.RoadAddress.AddressName
	}
	if doc.Address != nil {
		r.LotAddress = doc.Address.AddressName
	}
	switch {
	case r.RoadAddress != "":
		r.Address = r.RoadAddress
	case r.LotAddress != "":
		r.Address = r.LotAddress
	}
	r.Matched = r.Address != ""
	return r, nil
}
