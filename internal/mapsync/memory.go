package mapsync

import (
	"context"
	"sort"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/loadmap-guide/loadmap-cli/pkg/geocode"
)

// MemoryLayer is an in-process Adapter. It records markers and the fitted
// viewport, and resolves clicks through a geocode.Reverser.
type MemoryLayer struct {
	reverser geocode.Reverser

	mu       sync.Mutex
	next     int
	markers  map[int]Marker
	viewport *Bounds
	loadErr  error
}

// NewMemoryLayer creates a MemoryLayer. A nil reverser makes every click
// fall back to its coordinate label.
func NewMemoryLayer(reverser geocode.Reverser) *MemoryLayer {
	return &MemoryLayer{reverser: reverser, markers: make(map[int]Marker)}
}

// FailLoad makes subsequent Load calls return err (nil clears it).
func (m *MemoryLayer) FailLoad(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadErr = err
}

// Load implements Loader.
func (m *MemoryLayer) Load(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadErr
}

// RenderMarker implements Adapter.
func (m *MemoryLayer) RenderMarker(pos Position, spec MarkerSpec) (MarkerHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	m.markers[m.next] = Marker{Position: pos, MarkerSpec: spec}
	return m.next, nil
}

// RemoveMarker implements Adapter.
func (m *MemoryLayer) RemoveMarker(h MarkerHandle) error {
	id, ok := h.(int)
	if !ok {
		return eris.Errorf("mapsync: foreign marker handle %T", h)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.markers[id]; !ok {
		return eris.Errorf("mapsync: unknown marker handle %d", id)
	}
	delete(m.markers, id)
	return nil
}

// ReverseGeocode implements Adapter.
func (m *MemoryLayer) ReverseGeocode(ctx context.Context, lat, lng float64) (string, error) {
	if m.reverser == nil {
		return "", eris.New("mapsync: reverse geocoding not configured")
	}
	r, err := m.reverser.Reverse(ctx, lat, lng)
	if err != nil {
		return "", err
	}
	if r == nil || !r.Matched {
		return "", eris.New("mapsync: no address at coordinate")
	}
	return r.Address, nil
}

// FitBounds implements ViewportFitter.
func (m *MemoryLayer) FitBounds(b Bounds) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.viewport = &b
	return nil
}

// Markers returns the live markers in creation order.
func (m *MemoryLayer) Markers() []Marker {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]int, 0, len(m.markers))
	for id := range m.markers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]Marker, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.markers[id])
	}
	return out
}

// Viewport returns the last fitted bounds.
func (m *MemoryLayer) Viewport() *Bounds {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.viewport
}
