// Package normalize turns loosely-shaped backend payloads into the canonical
// candidate, weather and place models. Nothing in this package returns an
// error: malformed or missing fields degrade to documented defaults.
package normalize

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/loadmap-guide/loadmap-cli/internal/model"
)

// DefaultOverallScore is used when a candidate carries neither score field.
const DefaultOverallScore = 50

// Response is a normalized calculation payload.
type Response struct {
	Success    bool                   `json:"success"`
	Message    string                 `json:"message"`
	Candidates []model.CandidatePoint `json:"candidates"`
	Weather    *model.WeatherInfo     `json:"weather,omitempty"`
}

// Candidates normalizes the data document of a middle-point response. A
// payload without a candidates array yields an empty, successful response.
func Candidates(raw []byte) Response {
	log := zap.L().With(zap.String("component", "normalize"))
	if len(raw) > 0 && !gjson.ValidBytes(raw) {
		log.Warn("normalize: payload is not valid JSON", zap.Int("bytes", len(raw)))
	}

	doc := gjson.ParseBytes(raw)
	list := doc.Get("candidates")

	candidates := []model.CandidatePoint{}
	if list.IsArray() {
		for i, c := range list.Array() {
			candidates = append(candidates, candidate(i, c))
		}
		candidates = densifyRanks(candidates)
	} else {
		keys := make([]string, 0)
		doc.ForEach(func(k, _ gjson.Result) bool {
			keys = append(keys, k.String())
			return true
		})
		log.Info("normalize: no candidates array in payload", zap.Strings("keys", keys))
	}

	msg := doc.Get("message").String()
	if msg == "" {
		msg = fmt.Sprintf("총 %d개의 후보지점을 찾았습니다.", len(candidates))
	}

	return Response{
		Success:    true,
		Message:    msg,
		Candidates: candidates,
	}
}

// WithWeather normalizes candidates and the optional weather object together.
func WithWeather(raw []byte) Response {
	resp := Candidates(raw)
	resp.Weather = Weather(raw)
	return resp
}

func candidate(i int, c gjson.Result) model.CandidatePoint {
	rank := i + 1
	if r, ok := number(c.Get("rank")); ok && r >= 1 {
		rank = int(r)
	}

	lat, _ := number(c.Get("latitude"))
	lng, _ := number(c.Get("longitude"))

	travel, _ := firstNumber(c, "avgTravelTime", "averageTravelTime")
	commercial, _ := number(c.Get("commercialScore"))
	overall, ok := firstNumber(c, "score", "overallScore")
	if !ok {
		overall = DefaultOverallScore
	}

	return model.CandidatePoint{
		Rank:              rank,
		Latitude:          lat,
		Longitude:         lng,
		Address:           firstString(c, fmt.Sprintf("위치 %d", i+1), "description", "address"),
		PlaceName:         firstString(c, fmt.Sprintf("후보지점 %d", i+1), "address", "description"),
		AverageTravelTime: math.Max(travel, 0),
		CommercialScore:   clamp(commercial, 0, 100),
		OverallScore:      overall,
	}
}

// densifyRanks orders candidates by rank and renumbers them 1..n when the
// backend sent duplicate or sparse ranks.
func densifyRanks(cs []model.CandidatePoint) []model.CandidatePoint {
	sort.SliceStable(cs, func(i, j int) bool { return cs[i].Rank < cs[j].Rank })
	for i := range cs {
		if cs[i].Rank != i+1 {
			zap.L().Debug("normalize: renumbering candidate ranks", zap.Int("candidates", len(cs)))
			for j := range cs {
				cs[j].Rank = j + 1
			}
			break
		}
	}
	return cs
}

// number reads a numeric field. Numeric strings are accepted.
func number(r gjson.Result) (float64, bool) {
	switch r.Type {
	case gjson.Number:
		if math.IsNaN(r.Num) || math.IsInf(r.Num, 0) {
			return 0, false
		}
		return r.Num, true
	case gjson.String:
		f, err := strconv.ParseFloat(strings.TrimSpace(r.Str), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func firstNumber(obj gjson.Result, paths ...string) (float64, bool) {
	for _, p := range paths {
		if f, ok := number(obj.Get(p)); ok {
			return f, true
		}
	}
	return 0, false
}

func firstString(obj gjson.Result, fallback string, paths ...string) string {
	for _, p := range paths {
		r := obj.Get(p)
		if r.Type == gjson.String {
			if s := strings.TrimSpace(r.Str); s != "" {
				return s
			}
		}
	}
	return fallback
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
