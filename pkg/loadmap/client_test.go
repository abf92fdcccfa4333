package loadmap

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loadmap-guide/loadmap-cli/internal/model"
	"github.com/loadmap-guide/loadmap-cli/internal/resilience"
)

func testPolicy() *resilience.Policy {
	return resilience.NewPolicy(2, 1, 2, 5, 30)
}

func twoLocations() []model.Location {
	return []model.Location{
		model.NewLocationAt("강남역", 37.4979, 127.0276),
		{Address: "홍대입구역"},
	}
}

func TestCalculateWithWeather_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/location/middle-point/with-weather", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		_, err := uuid.Parse(r.Header.Get("X-Request-ID"))
		assert.NoError(t, err)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "SUBWAY", body["transportationType"])
		locs := body["locations"].([]any)
		require.Len(t, locs, 2)
		first := locs[0].(map[string]any)
		assert.Equal(t, "강남역", first["address"])
		assert.InDelta(t, 37.4979, first["latitude"], 1e-9)
		second := locs[1].(map[string]any)
		assert.NotContains(t, second, "latitude")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"message":"ok","data":{"candidates":[{"rank":1}],"weather":{"main":"Clear"}}}`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL+"/api/"), WithPolicy(testPolicy()))
	data, err := c.CalculateWithWeather(context.Background(), twoLocations(), model.TransportSubway)
	require.NoError(t, err)
	assert.JSONEq(t, `{"candidates":[{"rank":1}],"weather":{"main":"Clear"}}`, string(data))
}

func TestCalculateSimple_EnvelopeWithoutSuccessField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/location/middle-point/simple", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":{"candidates":[]}}`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithPolicy(testPolicy()))
	data, err := c.CalculateSimple(context.Background(), twoLocations(), model.TransportCar)
	require.NoError(t, err)
	assert.JSONEq(t, `{"candidates":[]}`, string(data))
}

func TestCalculate_SuccessFalseIsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"message":"주소를 찾을 수 없습니다."}`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithPolicy(testPolicy()))
	_, err := c.CalculateSimple(context.Background(), twoLocations(), model.TransportCar)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "주소를 찾을 수 없습니다.", apiErr.Message)
	assert.Equal(t, http.StatusOK, apiErr.StatusCode)
}

func TestCalculate_ServerErrorRetriedOnce(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"success":false,"message":"weather upstream down"}`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithPolicy(testPolicy()))
	_, err := c.CalculateWithWeather(context.Background(), twoLocations(), model.TransportCar)
	require.Error(t, err)
	assert.Equal(t, int32(2), calls.Load())

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, "weather upstream down", apiErr.Message)
	assert.True(t, resilience.IsTransient(err))
}

func TestCalculate_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithPolicy(testPolicy()))
	_, err := c.CalculateSimple(context.Background(), twoLocations(), model.TransportCar)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Empty(t, apiErr.Message)
	assert.Equal(t, int32(1), calls.Load())
}

func TestCalculate_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewClient(WithBaseURL(url), WithPolicy(nil))
	_, err := c.CalculateSimple(context.Background(), twoLocations(), model.TransportCar)
	var tErr *TransportError
	require.True(t, errors.As(err, &tErr))
	assert.Equal(t, "calculate-simple", tErr.Endpoint)
}

func TestCalculate_MalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithPolicy(nil))
	_, err := c.CalculateSimple(context.Background(), twoLocations(), model.TransportCar)
	require.Error(t, err)
	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr))
	assert.Contains(t, err.Error(), "decode calculate-simple response")
}

func TestValidateLocation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/location/validate", r.URL.Path)
		var loc model.Location
		require.NoError(t, json.NewDecoder(r.Body).Decode(&loc))
		valid := loc.Address == "서울역"
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "data": valid})
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithPolicy(nil))
	ok, err := c.ValidateLocation(context.Background(), model.Location{Address: "서울역"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.ValidateLocation(context.Background(), model.Location{Address: "???"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNearbyPlaces_Query(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/places/nearby", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "37.5", q.Get("latitude"))
		assert.Equal(t, "127.01", q.Get("longitude"))
		assert.Equal(t, "500", q.Get("radius"))
		assert.False(t, q.Has("category"))
		_, _ = w.Write([]byte(`{"success":true,"data":[{"name":"카페"}]}`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithPolicy(nil))
	data, err := c.NearbyPlaces(context.Background(), NearbyQuery{Latitude: 37.5, Longitude: 127.01})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"name":"카페"}]`, string(data))
}

func TestNearbyPlaces_Category(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "CE7", r.URL.Query().Get("category"))
		assert.Equal(t, "1000", r.URL.Query().Get("radius"))
		_, _ = w.Write([]byte(`{"success":true,"data":[]}`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithPolicy(nil))
	_, err := c.NearbyPlaces(context.Background(), NearbyQuery{Latitude: 1, Longitude: 2, RadiusMeters: 1000, Category: "CE7"})
	require.NoError(t, err)
}

func TestTags(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/places/tags", r.URL.Path)
		_, _ = w.Write([]byte(`{"success":true,"data":[{"tag":"QUIET","displayName":"조용한","emoji":"🤫","category":"STUDY"}]}`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithPolicy(nil))
	tags, err := c.Tags(context.Background())
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, model.TagInfo{Tag: "QUIET", DisplayName: "조용한", Emoji: "🤫", Category: "STUDY"}, tags[0])
}

func TestCategoriesAndHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/places/categories":
			_, _ = w.Write([]byte(`{"success":true,"data":["CAFE","RESTAURANT"]}`))
		case "/health/external-apis":
			_, _ = w.Write([]byte(`{"success":true,"data":{"kakao":"UP"}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithPolicy(nil))
	cats, err := c.Categories(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `["CAFE","RESTAURANT"]`, string(cats))

	health, err := c.ExternalHealth(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `{"kakao":"UP"}`, string(health))
}

func TestCircuitOpensPerGroup(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path == "/places/tags" {
			_, _ = w.Write([]byte(`{"success":true,"data":[]}`))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithPolicy(resilience.NewPolicy(1, 1, 1, 1, 60)))
	_, err := c.CalculateSimple(context.Background(), twoLocations(), model.TransportCar)
	require.Error(t, err)

	_, err = c.CalculateWithWeather(context.Background(), twoLocations(), model.TransportCar)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, int32(1), calls.Load())

	_, err = c.Tags(context.Background())
	assert.NoError(t, err)
}
