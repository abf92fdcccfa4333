package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/loadmap-guide/loadmap-cli/internal/enrich"
	"github.com/loadmap-guide/loadmap-cli/internal/model"
	"github.com/loadmap-guide/loadmap-cli/internal/session"
)

func formatSnapshot(out io.Writer, snap session.Snapshot) {
	if snap.Error != "" {
		_, _ = fmt.Fprintf(out, "오류: %s\n", snap.Error)
		return
	}
	if snap.Advisory != "" {
		_, _ = fmt.Fprintf(out, "알림: %s\n", snap.Advisory)
	}
	if snap.Weather != nil {
		w := snap.Weather
		_, _ = fmt.Fprintf(out, "%s %s %s %d°C, 습도 %d%%\n", w.Icon(), w.CityName, w.Description, w.Temperature, w.Humidity)
	}
	if snap.Mode != "" {
		_, _ = fmt.Fprintf(out, "이동 수단: %s\n", snap.Mode.Label())
	}
	_, _ = fmt.Fprintln(out)

	formatCandidates(out, snap.Candidates)

	places := make(map[int]enrich.Entry, len(snap.Places))
	for _, e := range snap.Places {
		places[e.Rank] = e
	}
	for _, c := range snap.Candidates {
		e, ok := places[c.Rank]
		if !ok {
			continue
		}
		_, _ = fmt.Fprintf(out, "\n[%s] %s 주변\n", c.RankLabel(), c.DisplayName())
		formatPlaces(out, e)
	}
}

func formatCandidates(out io.Writer, candidates []model.CandidatePoint) {
	if len(candidates) == 0 {
		_, _ = fmt.Fprintln(out, "추천 후보지가 없습니다.")
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "RANK\tPLACE\tADDRESS\tAVG_MIN\tAREA")
	_, _ = fmt.Fprintln(w, "----\t-----\t-------\t-------\t----")
	for _, c := range candidates {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%.0f\t%s (%.0f)\n",
			c.RankLabel(),
			c.DisplayName(),
			c.DisplayAddress(),
			c.AverageTravelTime,
			c.CommercialBand().Description(),
			c.CommercialScore,
		)
	}
	_ = w.Flush()
}

func formatPlaces(out io.Writer, e enrich.Entry) {
	switch {
	case e.Status == enrich.StatusPending:
		_, _ = fmt.Fprintln(out, "  불러오는 중...")
	case len(e.Places) == 0:
		_, _ = fmt.Fprintln(out, "  주변 장소가 없습니다.")
	}
	for _, p := range e.Places {
		if p.Unavailable {
			_, _ = fmt.Fprintf(out, "  %s. %s\n", p.Name, p.Description)
			continue
		}
		line := fmt.Sprintf("  - %s (%s, %.0fm)", p.Name, p.Category, p.Distance)
		if len(p.Tags) > 0 {
			line += " #" + strings.Join(p.Tags, " #")
		}
		_, _ = fmt.Fprintln(out, line)
	}
}
