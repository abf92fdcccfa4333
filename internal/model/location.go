// Package model defines the meeting-point domain types shared across packages.
package model

import "fmt"

// Location is a user-supplied starting point.
type Location struct {
	Address   string   `json:"address"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// NewLocationAt returns a Location with coordinates set.
func NewLocationAt(address string, lat, lng float64) Location {
	return Location{Address: address, Latitude: &lat, Longitude: &lng}
}

// HasCoordinates reports whether both latitude and longitude are present.
func (l Location) HasCoordinates() bool {
	return l.Latitude != nil && l.Longitude != nil
}

// Coordinates returns the latitude and longitude. ok is false when either is missing.
func (l Location) Coordinates() (lat, lng float64, ok bool) {
	if !l.HasCoordinates() {
		return 0, 0, false
	}
	return *l.Latitude, *l.Longitude, true
}

// String renders the location for logs and CLI output.
func (l Location) String() string {
	if lat, lng, ok := l.Coordinates(); ok {
		return fmt.Sprintf("%s (%.6f, %.6f)", l.Address, lat, lng)
	}
	return l.Address
}

// TransportMode is the travel mode hint sent to the backend.
type TransportMode string

const (
	TransportCar             TransportMode = "CAR"
	TransportSubway          TransportMode = "SUBWAY"
	TransportBus             TransportMode = "BUS"
	TransportPublicTransport TransportMode = "PUBLIC_TRANSPORT"
	TransportWalk            TransportMode = "WALK"
)

// DefaultTransportMode is used when no mode is selected.
const DefaultTransportMode = TransportCar

// TransportModes lists every supported mode in display order.
func TransportModes() []TransportMode {
	return []TransportMode{TransportCar, TransportSubway, TransportBus, TransportPublicTransport, TransportWalk}
}

// Label returns the Korean display label for the mode.
func (m TransportMode) Label() string {
	switch m {
	case TransportCar:
		return "자동차"
	case TransportSubway:
		return "지하철"
	case TransportBus:
		return "버스"
	case TransportPublicTransport:
		return "대중교통"
	case TransportWalk:
		return "도보"
	default:
		return string(m)
	}
}

// ParseTransportMode validates s against the supported modes. An empty string
// yields DefaultTransportMode.
func ParseTransportMode(s string) (TransportMode, error) {
	if s == "" {
		return DefaultTransportMode, nil
	}
	for _, m := range TransportModes() {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown transportation type %q", s)
}
