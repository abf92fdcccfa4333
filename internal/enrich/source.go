package enrich

import (
	"context"

	"github.com/loadmap-guide/loadmap-cli/internal/model"
	"github.com/loadmap-guide/loadmap-cli/internal/normalize"
	"github.com/loadmap-guide/loadmap-cli/pkg/loadmap"
)

// PlaceSource finds points of interest near a coordinate, in the source's
// own ranking order.
type PlaceSource interface {
	Nearby(ctx context.Context, q loadmap.NearbyQuery) ([]model.Place, error)
}

// LiveSource fetches nearby places from the backend.
type LiveSource struct {
	client loadmap.Client
}

// NewLiveSource creates a LiveSource over client.
func NewLiveSource(client loadmap.Client) *LiveSource {
	return &LiveSource{client: client}
}

// Nearby implements PlaceSource.
func (s *LiveSource) Nearby(ctx context.Context, q loadmap.NearbyQuery) ([]model.Place, error) {
	raw, err := s.client.NearbyPlaces(ctx, q)
	if err != nil {
		return nil, err
	}
	return normalize.Places(raw), nil
}
