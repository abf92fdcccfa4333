// Package locations holds the ordered, bounded set of user-entered starting points.
package locations

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/unicode/norm"

	"github.com/loadmap-guide/loadmap-cli/internal/model"
)

// MaxLocations is the capacity of a Set.
const MaxLocations = 10

var (
	// ErrCapacityExceeded is returned by Add when the set already holds MaxLocations entries.
	ErrCapacityExceeded = eris.New("locations: capacity exceeded")
	// ErrIndexOutOfRange is returned by Remove for an invalid index.
	ErrIndexOutOfRange = eris.New("locations: index out of range")
	// ErrEmptyAddress is returned by Add when the address is blank.
	ErrEmptyAddress = eris.New("locations: address is required")
)

// Set is an ordered list of locations. Entries are never edited in place; the
// only mutations are Add and Remove. A Set is not safe for concurrent use; the
// session event loop owns it.
type Set struct {
	items   []model.Location
	onStale []func()
}

// NewSet returns an empty Set.
func NewSet() *Set {
	return &Set{items: make([]model.Location, 0, MaxLocations)}
}

// OnStale registers fn to run after every successful Remove. Results computed
// from the previous contents must be discarded by the listener.
func (s *Set) OnStale(fn func()) {
	s.onStale = append(s.onStale, fn)
}

// Add appends loc. The address is trimmed and NFC-normalized.
func (s *Set) Add(loc model.Location) error {
	if len(s.items) >= MaxLocations {
		return ErrCapacityExceeded
	}
	addr := normalizeAddress(loc.Address)
	if addr == "" {
		return ErrEmptyAddress
	}

	stored := model.Location{Address: addr}
	if lat, lng, ok := loc.Coordinates(); ok {
		stored = model.NewLocationAt(addr, lat, lng)
	}
	s.items = append(s.items, stored)
	return nil
}

// Remove deletes the entry at index i and notifies stale listeners.
func (s *Set) Remove(i int) error {
	if i < 0 || i >= len(s.items) {
		return eris.Wrapf(ErrIndexOutOfRange, "index %d, size %d", i, len(s.items))
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	for _, fn := range s.onStale {
		fn()
	}
	return nil
}

// Len returns the number of entries.
func (s *Set) Len() int { return len(s.items) }

// Full reports whether the set is at capacity.
func (s *Set) Full() bool { return len(s.items) >= MaxLocations }

// At returns the entry at index i.
func (s *Set) At(i int) (model.Location, bool) {
	if i < 0 || i >= len(s.items) {
		return model.Location{}, false
	}
	return s.items[i], true
}

// All returns a copy of the entries in insertion order.
func (s *Set) All() []model.Location {
	out := make([]model.Location, len(s.items))
	copy(out, s.items)
	return out
}

// CurrentLocation builds the entry used for a captured device position.
func CurrentLocation(lat, lng float64) model.Location {
	return model.NewLocationAt(fmt.Sprintf("현재 위치 (%.6f, %.6f)", lat, lng), lat, lng)
}

// ParseLocation parses CLI input of the form "address" or "address@lat,lng".
func ParseLocation(s string) (model.Location, error) {
	addr, coords, found := strings.Cut(s, "@")
	addr = normalizeAddress(addr)
	if addr == "" {
		return model.Location{}, ErrEmptyAddress
	}
	if !found {
		return model.Location{Address: addr}, nil
	}

	latStr, lngStr, ok := strings.Cut(coords, ",")
	if !ok {
		return model.Location{}, eris.Errorf("locations: expected lat,lng after @ in %q", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return model.Location{}, eris.Wrapf(err, "locations: parse latitude %q", latStr)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(lngStr), 64)
	if err != nil {
		return model.Location{}, eris.Wrapf(err, "locations: parse longitude %q", lngStr)
	}
	return model.NewLocationAt(addr, lat, lng), nil
}

// normalizeAddress trims whitespace and composes Hangul jamo so that the same
// address typed on different platforms compares equal.
func normalizeAddress(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}
