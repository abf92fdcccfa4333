package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoogle_Reverse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "37.497900,127.027600", q.Get("latlng"))
		assert.Equal(t, "ko", q.Get("language"))
		assert.Equal(t, "g-key", q.Get("key"))
		_, _ = w.Write([]byte(`{"status":"OK","results":[
			{"formatted_address":"GXVH+5V 서울특별시","types":["plus_code"]},
			{"formatted_address":"대한민국 서울특별시 강남구 강남대로 396","types":["street_address"]}
		]}`))
	}))
	defer srv.Close()

	p := NewGoogleProvider("g-key", WithHTTPClient(newRewriteClient(srv.URL, googleGeocodeURL)))
	p.limiter = newTestLimiter()

	r, err := p.Reverse(context.Background(), 37.4979, 127.0276)
	require.NoError(t, err)
	assert.True(t, r.Matched)
	assert.Equal(t, "서울특별시 강남구 강남대로 396", r.Address)
	assert.Equal(t, "google", r.Source)
}

func TestGoogle_ZeroResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ZERO_RESULTS","results":[]}`))
	}))
	defer srv.Close()

	p := NewGoogleProvider("g-key", WithBaseURL(srv.URL))
	p.limiter = newTestLimiter()

	r, err := p.Reverse(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.False(t, r.Matched)
}
