// Package mapsync keeps a map marker layer consistent with the current
// locations and candidates, and turns map clicks into add-location events.
package mapsync

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/loadmap-guide/loadmap-cli/internal/model"
)

// State is the map lifecycle state.
type State string

const (
	StateUnloaded State = "unloaded"
	StateLoaded   State = "loaded"
	StateError    State = "error"
)

// User-facing messages.
const (
	MsgInvalidCoordinate = "유효하지 않은 좌표입니다. 다시 클릭해주세요."
	MsgMapLoadFailed     = "지도를 불러오지 못했습니다. 다시 시도해주세요."
)

var (
	// ErrMapLoad wraps an SDK load failure. The engine stays in StateError
	// until Reload succeeds.
	ErrMapLoad = eris.New("mapsync: map failed to load")

	// ErrInvalidCoordinate is returned for a click with NaN, infinite or
	// out-of-range coordinates. No event is emitted.
	ErrInvalidCoordinate = eris.New("mapsync: invalid coordinate")

	// ErrMapNotLoaded is returned for clicks before the map is loaded.
	ErrMapNotLoaded = eris.New("mapsync: map not loaded")

	// ErrReloadNotAllowed is returned by Reload outside StateError.
	ErrReloadNotAllowed = eris.New("mapsync: reload is only available after a load failure")
)

// DefaultGeocodeTimeout bounds the reverse geocoding of a click.
const DefaultGeocodeTimeout = 5 * time.Second

type markerKey struct {
	kind MarkerKind
	id   int
}

type drawnMarker struct {
	handle MarkerHandle
	pos    Position
	spec   MarkerSpec
}

// Marker is a drawn marker as reported by Markers.
type Marker struct {
	Position
	MarkerSpec
}

// Option configures an Engine.
type Option func(*Engine)

// WithEmitter sets the receiver of add-location events.
func WithEmitter(fn Emitter) Option {
	return func(e *Engine) {
		e.emit = fn
	}
}

// WithGeocodeTimeout overrides DefaultGeocodeTimeout.
func WithGeocodeTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.geocodeTimeout = d
		}
	}
}

// Engine owns every marker handle. All marker mutations go through it.
type Engine struct {
	adapter        Adapter
	emit           Emitter
	geocodeTimeout time.Duration
	log            *zap.Logger

	mu         sync.Mutex
	state      State
	loadErr    error
	arena      map[markerKey]drawnMarker
	transient  *drawnMarker
	locations  []model.Location
	candidates []model.CandidatePoint
	bounds     *Bounds

	pending sync.WaitGroup
}

// NewEngine creates an Engine in StateUnloaded.
func NewEngine(adapter Adapter, opts ...Option) *Engine {
	e := &Engine{
		adapter:        adapter,
		geocodeTimeout: DefaultGeocodeTimeout,
		log:            zap.L().With(zap.String("component", "mapsync")),
		state:          StateUnloaded,
		arena:          make(map[markerKey]drawnMarker),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Load runs the adapter's load step, if any, and draws the latest model.
// A failure is terminal until Reload.
func (e *Engine) Load(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateLoaded {
		return nil
	}
	return e.loadLocked(ctx)
}

// Reload retries loading after a failure. It is the only way out of StateError.
func (e *Engine) Reload(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateError {
		return ErrReloadNotAllowed
	}
	e.log.Info("reloading map")
	return e.loadLocked(ctx)
}

func (e *Engine) loadLocked(ctx context.Context) error {
	if l, ok := e.adapter.(Loader); ok {
		if err := l.Load(ctx); err != nil {
			e.state = StateError
			e.loadErr = err
			e.log.Error("map load failed", zap.Error(err))
			return eris.Wrap(ErrMapLoad, err.Error())
		}
	}
	e.state = StateLoaded
	e.loadErr = nil
	return e.reconcileLocked()
}

// State returns the lifecycle state and, in StateError, the load failure.
func (e *Engine) State() (State, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state, e.loadErr
}

// Sync records the latest model and, once loaded, redraws every marker.
// Before load the model is kept and drawn by Load.
func (e *Engine) Sync(locations []model.Location, candidates []model.CandidatePoint) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.locations = append([]model.Location(nil), locations...)
	e.candidates = append([]model.CandidatePoint(nil), candidates...)
	if e.state != StateLoaded {
		return nil
	}
	return e.reconcileLocked()
}

// reconcileLocked removes every drawn marker, draws one per located input
// and one per candidate, then fits the viewport to all of them.
func (e *Engine) reconcileLocked() error {
	var errs []string
	for key, m := range e.arena {
		if err := e.adapter.RemoveMarker(m.handle); err != nil {
			errs = append(errs, err.Error())
		}
		delete(e.arena, key)
	}

	flat := make([]float64, 0, 2*(len(e.locations)+len(e.candidates)))
	draw := func(pos Position, spec MarkerSpec) {
		h, err := e.adapter.RenderMarker(pos, spec)
		if err != nil {
			errs = append(errs, err.Error())
			return
		}
		e.arena[markerKey{spec.Kind, spec.ID}] = drawnMarker{handle: h, pos: pos, spec: spec}
		flat = append(flat, pos.Lng, pos.Lat)
	}

	for i, loc := range e.locations {
		lat, lng, ok := loc.Coordinates()
		if !ok || !validCoordinate(lat, lng) {
			continue
		}
		draw(Position{lat, lng}, MarkerSpec{
			Kind:  KindLocation,
			ID:    i,
			Title: fmt.Sprintf("시작점 %d", i+1),
			Info:  loc.Address,
		})
	}
	for _, c := range e.candidates {
		if !validCoordinate(c.Latitude, c.Longitude) {
			continue
		}
		draw(Position{c.Latitude, c.Longitude}, MarkerSpec{
			Kind:  KindCandidate,
			ID:    c.Rank,
			Title: c.DisplayName(),
			Info:  candidateInfo(c),
		})
	}

	e.bounds = nil
	if len(flat) > 0 {
		b := boundsOf(flat)
		e.bounds = &b
		if f, ok := e.adapter.(ViewportFitter); ok {
			if err := f.FitBounds(b); err != nil {
				errs = append(errs, err.Error())
			}
		}
	}

	e.log.Debug("markers reconciled", zap.Int("markers", len(e.arena)))
	if len(errs) > 0 {
		return eris.Errorf("mapsync: reconcile: %s", strings.Join(errs, "; "))
	}
	return nil
}

func boundsOf(flat []float64) Bounds {
	gb := geom.NewMultiPointFlat(geom.XY, flat).Bounds()
	return Bounds{
		MinLng: gb.Min(0),
		MinLat: gb.Min(1),
		MaxLng: gb.Max(0),
		MaxLat: gb.Max(1),
	}
}

func candidateInfo(c model.CandidatePoint) string {
	return fmt.Sprintf("%s | %s | 평균 %.0f분 | %s (%.0f점)",
		c.RankLabel(), c.DisplayAddress(), c.AverageTravelTime,
		c.CommercialBand().Description(), c.CommercialScore)
}

// HandleClick places the transient click marker and resolves its label in
// the background, then emits an AddLocationEvent. Invalid coordinates return
// ErrInvalidCoordinate and emit nothing.
func (e *Engine) HandleClick(ctx context.Context, lat, lng float64) error {
	if !validCoordinate(lat, lng) {
		e.log.Warn("ignoring click with invalid coordinate", zap.Float64("lat", lat), zap.Float64("lng", lng))
		return eris.Wrapf(ErrInvalidCoordinate, "mapsync: (%v, %v)", lat, lng)
	}

	e.mu.Lock()
	if e.state != StateLoaded {
		e.mu.Unlock()
		return ErrMapNotLoaded
	}
	if e.transient != nil {
		if err := e.adapter.RemoveMarker(e.transient.handle); err != nil {
			e.log.Warn("removing previous click marker failed", zap.Error(err))
		}
		e.transient = nil
	}
	pos := Position{lat, lng}
	spec := MarkerSpec{Kind: KindClick, Title: "선택한 위치"}
	h, err := e.adapter.RenderMarker(pos, spec)
	if err != nil {
		e.log.Warn("drawing click marker failed", zap.Error(err))
	} else {
		e.transient = &drawnMarker{handle: h, pos: pos, spec: spec}
	}
	e.mu.Unlock()

	e.pending.Add(1)
	go func() {
		defer e.pending.Done()
		label := e.resolveLabel(context.WithoutCancel(ctx), lat, lng)
		if e.emit != nil {
			e.emit(AddLocationEvent{Location: model.NewLocationAt(label, lat, lng)})
		}
	}()
	return nil
}

func (e *Engine) resolveLabel(ctx context.Context, lat, lng float64) string {
	ctx, cancel := context.WithTimeout(ctx, e.geocodeTimeout)
	defer cancel()

	addr, err := e.adapter.ReverseGeocode(ctx, lat, lng)
	if err == nil && strings.TrimSpace(addr) != "" {
		return strings.TrimSpace(addr)
	}
	if err != nil {
		e.log.Debug("reverse geocode failed, using coordinate label", zap.Error(err))
	}
	return ClickLabel(lat, lng)
}

// ClickLabel is the label of a click whose address could not be resolved.
func ClickLabel(lat, lng float64) string {
	return fmt.Sprintf("클릭한 위치 (%.6f, %.6f)", lat, lng)
}

// Wait blocks until every pending click resolution has emitted its event.
func (e *Engine) Wait() {
	e.pending.Wait()
}

// Markers returns the drawn markers ordered by kind then ID, followed by the
// transient click marker if present.
func (e *Engine) Markers() []Marker {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]Marker, 0, len(e.arena)+1)
	for _, m := range e.arena {
		out = append(out, Marker{Position: m.pos, MarkerSpec: m.spec})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind > out[j].Kind
		}
		return out[i].ID < out[j].ID
	})
	if e.transient != nil {
		out = append(out, Marker{Position: e.transient.pos, MarkerSpec: e.transient.spec})
	}
	return out
}

// Bounds returns the region last fitted, or nil when nothing is drawn.
func (e *Engine) Bounds() *Bounds {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.bounds == nil {
		return nil
	}
	b := *e.bounds
	return &b
}

func validCoordinate(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lng) || math.IsInf(lat, 0) || math.IsInf(lng, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}
