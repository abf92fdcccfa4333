package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loadmap-guide/loadmap-cli/internal/enrich"
	"github.com/loadmap-guide/loadmap-cli/internal/model"
	"github.com/loadmap-guide/loadmap-cli/internal/session"
)

func TestCalculateCommand_EndToEnd(t *testing.T) {
	var calcBody map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/location/middle-point/with-weather", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&calcBody)
		_, _ = io.WriteString(w, `{"success":true,"data":{
			"candidates":[{"rank":1,"latitude":37.5660,"longitude":126.9826,"address":"을지로입구역","commercialScore":82}],
			"weather":{"main":"Clear","description":"맑음","temp":21.6,"humidity":40,"name":"Seoul"}
		}}`)
	})
	mux.HandleFunc("GET /api/places/nearby", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"success":true,"data":[{"name":"카페 근처","category":"CE7","distanceMeters":90}]}`)
	})
	backend := httptest.NewServer(mux)
	defer backend.Close()

	tmpDir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(tmpDir))
	defer os.Chdir(origDir)
	t.Setenv("LOADMAP_BACKEND_BASE_URL", backend.URL+"/api")

	oldCfg := cfg
	defer func() {
		cfg = oldCfg
		calcLocations, calcMode, calcJSON, calcNoEnrich = nil, string(model.DefaultTransportMode), false, false
	}()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	defer rootCmd.SetOut(nil)
	rootCmd.SetArgs([]string{"calculate",
		"-l", "강남역@37.4979,127.0276",
		"-l", "홍대입구역",
		"--mode", "subway",
		"--json",
	})
	defer rootCmd.SetArgs(nil)
	require.NoError(t, rootCmd.Execute())

	assert.Equal(t, "SUBWAY", calcBody["transportationType"])
	assert.Len(t, calcBody["locations"], 2)

	var snap session.Snapshot
	require.NoError(t, json.Unmarshal(out.Bytes(), &snap), out.String())
	require.Len(t, snap.Candidates, 1)
	assert.Equal(t, "을지로입구역", snap.Candidates[0].PlaceName)
	require.NotNil(t, snap.Weather)
	require.Len(t, snap.Places, 1)
	assert.Equal(t, enrich.StatusReady, snap.Places[0].Status)
	assert.Equal(t, "카페", snap.Places[0].Places[0].Category)
}

func TestFormatSnapshot(t *testing.T) {
	snap := session.Snapshot{
		Mode:     model.TransportSubway,
		Advisory: "날씨 정보를 가져올 수 없어 기본 중간지점만 계산했습니다.",
		Candidates: []model.CandidatePoint{
			{Rank: 1, PlaceName: "을지로입구역", Address: "서울 중구", AverageTravelTime: 21, CommercialScore: 82},
			{Rank: 2, Latitude: 37.5447, Longitude: 127.0557, CommercialScore: 20},
		},
		Places: []enrich.Entry{
			{Rank: 1, Status: enrich.StatusReady, Places: []model.RecommendedPlace{
				{Name: "카페 근처", Category: "카페", Distance: 90, Tags: []string{"QUIET"}},
			}},
			{Rank: 2, Status: enrich.StatusUnavailable, Places: []model.RecommendedPlace{enrich.UnavailablePlace()}},
		},
	}

	var buf bytes.Buffer
	formatSnapshot(&buf, snap)
	out := buf.String()

	assert.Contains(t, out, "알림: 날씨 정보를")
	assert.Contains(t, out, "이동 수단: 지하철")
	assert.Contains(t, out, "🏆 최적")
	assert.Contains(t, out, "후보지점 2")
	assert.Contains(t, out, "37.5447, 127.0557")
	assert.Contains(t, out, "- 카페 근처 (카페, 90m) #QUIET")
	assert.Contains(t, out, enrich.UnavailableName)
	assert.NotContains(t, out, "°C")
}

func TestFormatSnapshot_Error(t *testing.T) {
	var buf bytes.Buffer
	formatSnapshot(&buf, session.Snapshot{Error: "최소 2개 이상의 위치를 입력해주세요."})
	assert.Equal(t, "오류: 최소 2개 이상의 위치를 입력해주세요.", strings.TrimSpace(buf.String()))
}

func TestFormatTags(t *testing.T) {
	var buf bytes.Buffer
	formatTags(&buf, []model.TagInfo{{Tag: "QUIET", DisplayName: "조용한", Emoji: "🤫", Category: "분위기"}})
	assert.Contains(t, buf.String(), "QUIET")
	assert.Contains(t, buf.String(), "🤫 조용한")
}
