package normalize

import (
	"strings"

	"github.com/tidwall/gjson"

	"github.com/loadmap-guide/loadmap-cli/internal/model"
)

// Places normalizes the data array of a nearby-places response, keeping the
// backend's order.
func Places(raw []byte) []model.Place {
	list := gjson.ParseBytes(raw)
	if !list.IsArray() {
		return []model.Place{}
	}

	items := list.Array()
	places := make([]model.Place, 0, len(items))
	for _, p := range items {
		if !p.IsObject() {
			continue
		}
		lat, _ := firstNumber(p, "latitude", "lat", "y")
		lng, _ := firstNumber(p, "longitude", "lng", "x")
		rating, _ := number(p.Get("rating"))
		dist, _ := firstNumber(p, "distanceMeters", "distance")

		places = append(places, model.Place{
			ID:             p.Get("id").Int(),
			Name:           firstString(p, "", "name", "placeName", "place_name"),
			Category:       firstString(p, "", "category", "categoryCode", "category_group_code"),
			Address:        firstString(p, "", "roadAddress", "address", "address_name"),
			Latitude:       lat,
			Longitude:      lng,
			Rating:         rating,
			DistanceMeters: max(dist, 0),
			Tags:           tags(p.Get("tags")),
			Description:    firstString(p, "", "description"),
		})
	}
	return places
}

// tags accepts either a JSON array or a comma-separated string.
func tags(r gjson.Result) []string {
	var out []string
	switch {
	case r.IsArray():
		for _, t := range r.Array() {
			if s := strings.TrimSpace(t.String()); s != "" {
				out = append(out, s)
			}
		}
	case r.Type == gjson.String:
		for _, t := range strings.Split(r.Str, ",") {
			if s := strings.TrimSpace(t); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}
