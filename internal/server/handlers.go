package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/loadmap-guide/loadmap-cli/internal/locations"
	"github.com/loadmap-guide/loadmap-cli/internal/mapsync"
	"github.com/loadmap-guide/loadmap-cli/internal/model"
	"github.com/loadmap-guide/loadmap-cli/internal/orchestrator"
	"github.com/loadmap-guide/loadmap-cli/internal/session"
)

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.registry.Len(),
	})
}

func (s *Server) categories(w http.ResponseWriter, r *http.Request) {
	raw, err := s.deps.Client.Categories(r.Context())
	if err != nil {
		zap.L().Warn("server: categories lookup failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, orchestrator.UserMessage(err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(raw)
}

func (s *Server) tags(w http.ResponseWriter, r *http.Request) {
	tags, err := s.deps.Client.Tags(r.Context())
	if err != nil {
		zap.L().Warn("server: tags lookup failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, orchestrator.UserMessage(err))
		return
	}
	writeJSON(w, http.StatusOK, tags)
}

type sessionResponse struct {
	ID string `json:"id"`
	session.Snapshot
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	id, sess := s.registry.Create()
	snap, err := sess.Snapshot(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Location", "/api/sessions/"+id)
	writeJSON(w, http.StatusCreated, sessionResponse{ID: id, Snapshot: snap})
}

// lookup resolves the {id} parameter, writing 404 when unknown.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (string, *session.Session, bool) {
	id := chi.URLParam(r, "id")
	sess, ok := s.registry.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return "", nil, false
	}
	return id, sess, true
}

func (s *Server) writeSnapshot(w http.ResponseWriter, r *http.Request, status int, id string, sess *session.Session) {
	snap, err := sess.Snapshot(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, status, sessionResponse{ID: id, Snapshot: snap})
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	id, sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	s.writeSnapshot(w, r, http.StatusOK, id, sess)
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	if !s.registry.Close(chi.URLParam(r, "id")) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type addLocationRequest struct {
	Address   string   `json:"address"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	// Current marks a captured device position; the address is generated.
	Current bool `json:"current"`
}

func (s *Server) addLocation(w http.ResponseWriter, r *http.Request) {
	id, sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req addLocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	loc := model.Location{Address: req.Address, Latitude: req.Latitude, Longitude: req.Longitude}
	if req.Current {
		if req.Latitude == nil || req.Longitude == nil {
			writeError(w, http.StatusBadRequest, "latitude and longitude are required for the current location")
			return
		}
		loc = locations.CurrentLocation(*req.Latitude, *req.Longitude)
	}

	switch err := sess.AddLocation(r.Context(), loc); {
	case err == nil:
		s.writeSnapshot(w, r, http.StatusCreated, id, sess)
	case errors.Is(err, locations.ErrCapacityExceeded):
		writeError(w, http.StatusConflict, session.MsgCapacityExceeded)
	case errors.Is(err, locations.ErrEmptyAddress):
		writeError(w, http.StatusBadRequest, "주소를 입력해주세요.")
	default:
		writeError(w, http.StatusServiceUnavailable, err.Error())
	}
}

func (s *Server) removeLocation(w http.ResponseWriter, r *http.Request) {
	id, sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "index must be an integer")
		return
	}

	switch err := sess.RemoveLocation(r.Context(), index); {
	case err == nil:
		s.writeSnapshot(w, r, http.StatusOK, id, sess)
	case errors.Is(err, locations.ErrIndexOutOfRange):
		writeError(w, http.StatusNotFound, session.MsgIndexOutOfRange)
	default:
		writeError(w, http.StatusServiceUnavailable, err.Error())
	}
}

type calculateRequest struct {
	Mode string `json:"mode"`
}

func (s *Server) calculate(w http.ResponseWriter, r *http.Request) {
	id, sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req calculateRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	mode, err := model.ParseTransportMode(strings.ToUpper(strings.TrimSpace(req.Mode)))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	_, err = sess.Calculate(r.Context(), mode)
	var calcErr *orchestrator.CalculationError
	switch {
	case err == nil:
		s.writeSnapshot(w, r, http.StatusOK, id, sess)
	case errors.Is(err, orchestrator.ErrInsufficientLocations):
		writeError(w, http.StatusUnprocessableEntity, orchestrator.MsgInsufficientLocations)
	case errors.Is(err, orchestrator.ErrSuperseded):
		writeError(w, http.StatusConflict, "calculation superseded")
	case errors.As(err, &calcErr):
		writeError(w, http.StatusBadGateway, calcErr.Message)
	default:
		writeError(w, http.StatusServiceUnavailable, err.Error())
	}
}

type clickRequest struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

func (s *Server) mapClick(w http.ResponseWriter, r *http.Request) {
	_, sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req clickRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Lat == nil || req.Lng == nil {
		writeError(w, http.StatusBadRequest, mapsync.MsgInvalidCoordinate)
		return
	}

	switch err := sess.MapClick(r.Context(), *req.Lat, *req.Lng); {
	case err == nil:
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
	case errors.Is(err, mapsync.ErrInvalidCoordinate):
		writeError(w, http.StatusBadRequest, mapsync.MsgInvalidCoordinate)
	case errors.Is(err, mapsync.ErrMapNotLoaded):
		writeError(w, http.StatusConflict, mapsync.MsgMapLoadFailed)
	default:
		writeError(w, http.StatusServiceUnavailable, err.Error())
	}
}

func (s *Server) reloadMap(w http.ResponseWriter, r *http.Request) {
	id, sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	switch err := sess.ReloadMap(r.Context()); {
	case err == nil:
		s.writeSnapshot(w, r, http.StatusOK, id, sess)
	case errors.Is(err, mapsync.ErrReloadNotAllowed):
		writeError(w, http.StatusConflict, "map is not in an error state")
	case errors.Is(err, mapsync.ErrMapLoad):
		writeError(w, http.StatusServiceUnavailable, mapsync.MsgMapLoadFailed)
	default:
		writeError(w, http.StatusServiceUnavailable, err.Error())
	}
}

// markersGeoJSON renders the drawn markers as a FeatureCollection whose
// bbox is the fitted viewport.
func (s *Server) markersGeoJSON(w http.ResponseWriter, r *http.Request) {
	_, sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	snap, err := sess.Snapshot(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	fc := geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(snap.Map.Markers))}
	for _, m := range snap.Map.Markers {
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:       fmt.Sprintf("%s-%d", m.Kind, m.ID),
			Geometry: geom.NewPointFlat(geom.XY, []float64{m.Lng, m.Lat}),
			Properties: map[string]any{
				"kind":  string(m.Kind),
				"title": m.Title,
				"info":  m.Info,
			},
		})
	}
	if b := snap.Map.Bounds; b != nil {
		fc.BBox = geom.NewBounds(geom.XY).Set(b.MinLng, b.MinLat, b.MaxLng, b.MaxLat)
	}

	data, err := json.Marshal(&fc)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "encode geojson")
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	_, _ = w.Write(data)
}
