package mapsync

import (
	"context"
	"fmt"

	"github.com/loadmap-guide/loadmap-cli/internal/model"
)

// Position is a WGS84 coordinate.
type Position struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// MarkerKind distinguishes the marker styles drawn on the map.
type MarkerKind string

const (
	KindLocation  MarkerKind = "location"
	KindCandidate MarkerKind = "candidate"
	KindClick     MarkerKind = "click"
)

// MarkerSpec describes how a marker is drawn. ID is the location index for
// location markers and the rank for candidate markers.
type MarkerSpec struct {
	Kind  MarkerKind `json:"kind"`
	ID    int        `json:"id"`
	Title string     `json:"title"`
	Info  string     `json:"info,omitempty"`
}

// MarkerHandle is an opaque reference returned by the map layer.
type MarkerHandle any

// Adapter is the map SDK boundary.
type Adapter interface {
	RenderMarker(pos Position, spec MarkerSpec) (MarkerHandle, error)
	RemoveMarker(h MarkerHandle) error
	ReverseGeocode(ctx context.Context, lat, lng float64) (string, error)
}

// Loader is implemented by adapters whose SDK needs an explicit load step.
type Loader interface {
	Load(ctx context.Context) error
}

// ViewportFitter is implemented by adapters that can fit the view to bounds.
type ViewportFitter interface {
	FitBounds(b Bounds) error
}

// Bounds is an axis-aligned region in degrees.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLng float64 `json:"min_lng"`
	MaxLat float64 `json:"max_lat"`
	MaxLng float64 `json:"max_lng"`
}

func (b Bounds) String() string {
	return fmt.Sprintf("[%.6f,%.6f]-[%.6f,%.6f]", b.MinLat, b.MinLng, b.MaxLat, b.MaxLng)
}

// AddLocationEvent asks the owner of the location set to add a location.
type AddLocationEvent struct {
	Location model.Location `json:"location"`
}

// Emitter receives events produced by the engine.
type Emitter func(AddLocationEvent)
