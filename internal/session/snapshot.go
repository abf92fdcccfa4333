package session

import (
	"github.com/loadmap-guide/loadmap-cli/internal/enrich"
	"github.com/loadmap-guide/loadmap-cli/internal/mapsync"
	"github.com/loadmap-guide/loadmap-cli/internal/model"
)

// Snapshot is the rendered state of a session at one point in the event
// order.
type Snapshot struct {
	Generation uint64                 `json:"generation"`
	Locations  []model.Location       `json:"locations"`
	Mode       model.TransportMode    `json:"mode,omitempty"`
	Message    string                 `json:"message,omitempty"`
	Candidates []model.CandidatePoint `json:"candidates"`
	Weather    *model.WeatherInfo     `json:"weather,omitempty"`
	Loading    bool                   `json:"loading"`
	Error      string                 `json:"error,omitempty"`
	Advisory   string                 `json:"advisory,omitempty"`
	Notice     string                 `json:"notice,omitempty"`
	Map        MapSnapshot            `json:"map"`
	Places     []enrich.Entry         `json:"places"`
}

// MapSnapshot describes the marker layer.
type MapSnapshot struct {
	State   mapsync.State    `json:"state"`
	Error   string           `json:"error,omitempty"`
	Markers []mapsync.Marker `json:"markers"`
	Bounds  *mapsync.Bounds  `json:"bounds,omitempty"`
}

func (s *Session) snapshot() Snapshot {
	st := s.orch.State()
	snap := Snapshot{
		Generation: st.Generation,
		Locations:  s.set.All(),
		Candidates: []model.CandidatePoint{},
		Loading:    st.Loading,
		Error:      st.Error,
		Advisory:   st.Advisory,
		Notice:     s.notice,
		Places:     s.board.Entries(),
	}
	if r := st.Result; r != nil {
		snap.Mode = r.Mode
		snap.Message = r.Message
		snap.Candidates = r.Candidates
		snap.Weather = r.Weather
	}

	state, loadErr := s.engine.State()
	snap.Map = MapSnapshot{
		State:   state,
		Markers: s.engine.Markers(),
		Bounds:  s.engine.Bounds(),
	}
	if loadErr != nil {
		snap.Map.Error = mapsync.MsgMapLoadFailed
	}
	return snap
}
