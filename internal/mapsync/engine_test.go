package mapsync

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loadmap-guide/loadmap-cli/internal/model"
	"github.com/loadmap-guide/loadmap-cli/pkg/geocode"
)

type fakeReverser struct {
	addr  string
	err   error
	delay time.Duration
}

func (f fakeReverser) Reverse(ctx context.Context, lat, lng float64) (*geocode.Result, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &geocode.Result{Address: f.addr, Matched: f.addr != ""}, nil
}

type eventSink struct {
	mu     sync.Mutex
	events []AddLocationEvent
}

func (s *eventSink) emit(ev AddLocationEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *eventSink) all() []AddLocationEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]AddLocationEvent(nil), s.events...)
}

func sampleModel() ([]model.Location, []model.CandidatePoint) {
	locs := []model.Location{
		model.NewLocationAt("강남역", 37.4979, 127.0276),
		{Address: "좌표 없음"},
		model.NewLocationAt("홍대입구역", 37.5572, 126.9245),
	}
	cands := []model.CandidatePoint{
		{Rank: 1, Latitude: 37.53, Longitude: 126.98, PlaceName: "용산역", CommercialScore: 85},
		{Rank: 2, Latitude: 37.51, Longitude: 127.06, PlaceName: "삼성역", CommercialScore: 35},
	}
	return locs, cands
}

func TestEngine_SyncBeforeLoadDrawsOnLoad(t *testing.T) {
	layer := NewMemoryLayer(nil)
	e := NewEngine(layer)
	locs, cands := sampleModel()

	require.NoError(t, e.Sync(locs, cands))
	assert.Empty(t, layer.Markers())

	require.NoError(t, e.Load(context.Background()))
	st, _ := e.State()
	assert.Equal(t, StateLoaded, st)
	assert.Len(t, layer.Markers(), 4)
}

func TestEngine_FullRedraw(t *testing.T) {
	layer := NewMemoryLayer(nil)
	e := NewEngine(layer)
	require.NoError(t, e.Load(context.Background()))

	locs, cands := sampleModel()
	require.NoError(t, e.Sync(locs, cands))

	markers := e.Markers()
	require.Len(t, markers, 4)
	assert.Equal(t, KindLocation, markers[0].Kind)
	assert.Equal(t, "시작점 1", markers[0].Title)
	assert.Equal(t, "시작점 3", markers[1].Title)
	assert.Equal(t, 2, markers[1].ID)
	assert.Equal(t, KindCandidate, markers[2].Kind)
	assert.Equal(t, 1, markers[2].ID)
	assert.Contains(t, markers[2].Info, "🏆 최적")
	assert.Contains(t, markers[2].Info, "활발한 상권")
	assert.Contains(t, markers[3].Info, "한적한 지역")

	// Clearing candidates leaves only location markers in the layer.
	require.NoError(t, e.Sync(locs[:1], nil))
	assert.Len(t, layer.Markers(), 1)
	assert.Len(t, e.Markers(), 1)
}

func TestEngine_BoundsCoverAllMarkers(t *testing.T) {
	layer := NewMemoryLayer(nil)
	e := NewEngine(layer)
	require.NoError(t, e.Load(context.Background()))

	locs, cands := sampleModel()
	require.NoError(t, e.Sync(locs, cands))

	b := e.Bounds()
	require.NotNil(t, b)
	assert.InDelta(t, 37.4979, b.MinLat, 1e-9)
	assert.InDelta(t, 37.5572, b.MaxLat, 1e-9)
	assert.InDelta(t, 126.9245, b.MinLng, 1e-9)
	assert.InDelta(t, 127.0600, b.MaxLng, 1e-9)
	assert.Equal(t, b, layer.Viewport())

	require.NoError(t, e.Sync(nil, nil))
	assert.Nil(t, e.Bounds())
}

func TestEngine_LoadFailureAndReload(t *testing.T) {
	layer := NewMemoryLayer(nil)
	layer.FailLoad(errors.New("sdk script blocked"))
	e := NewEngine(layer)

	err := e.Load(context.Background())
	assert.ErrorIs(t, err, ErrMapLoad)
	st, loadErr := e.State()
	assert.Equal(t, StateError, st)
	assert.EqualError(t, loadErr, "sdk script blocked")

	// No automatic retry: Load again stays failed while the SDK is broken.
	assert.ErrorIs(t, e.Reload(context.Background()), ErrMapLoad)

	layer.FailLoad(nil)
	require.NoError(t, e.Reload(context.Background()))
	st, _ = e.State()
	assert.Equal(t, StateLoaded, st)

	assert.ErrorIs(t, e.Reload(context.Background()), ErrReloadNotAllowed)
}

func TestEngine_ReloadFromUnloadedNotAllowed(t *testing.T) {
	e := NewEngine(NewMemoryLayer(nil))
	assert.ErrorIs(t, e.Reload(context.Background()), ErrReloadNotAllowed)
}

func TestHandleClick_InvalidCoordinates(t *testing.T) {
	sink := &eventSink{}
	layer := NewMemoryLayer(fakeReverser{addr: "somewhere"})
	e := NewEngine(layer, WithEmitter(sink.emit))
	require.NoError(t, e.Load(context.Background()))

	for _, c := range []struct{ lat, lng float64 }{
		{91, 200}, {math.NaN(), 127}, {37, math.Inf(-1)}, {-90.0001, 0},
	} {
		err := e.HandleClick(context.Background(), c.lat, c.lng)
		assert.ErrorIs(t, err, ErrInvalidCoordinate)
	}
	e.Wait()
	assert.Empty(t, sink.all())
	assert.Empty(t, layer.Markers())
}

func TestHandleClick_ResolvedAddress(t *testing.T) {
	sink := &eventSink{}
	layer := NewMemoryLayer(fakeReverser{addr: "서울 중구 세종대로 110"})
	e := NewEngine(layer, WithEmitter(sink.emit))
	require.NoError(t, e.Load(context.Background()))

	require.NoError(t, e.HandleClick(context.Background(), 37.5663, 126.9779))
	e.Wait()

	events := sink.all()
	require.Len(t, events, 1)
	assert.Equal(t, "서울 중구 세종대로 110", events[0].Location.Address)
	lat, lng, ok := events[0].Location.Coordinates()
	require.True(t, ok)
	assert.InDelta(t, 37.5663, lat, 1e-9)
	assert.InDelta(t, 126.9779, lng, 1e-9)
}

func TestHandleClick_FallbackLabel(t *testing.T) {
	sink := &eventSink{}
	layer := NewMemoryLayer(fakeReverser{err: errors.New("quota")})
	e := NewEngine(layer, WithEmitter(sink.emit))
	require.NoError(t, e.Load(context.Background()))

	require.NoError(t, e.HandleClick(context.Background(), 37.5, 127.0))
	e.Wait()

	events := sink.all()
	require.Len(t, events, 1)
	assert.Equal(t, "클릭한 위치 (37.500000, 127.000000)", events[0].Location.Address)
}

func TestHandleClick_GeocodeTimeout(t *testing.T) {
	sink := &eventSink{}
	layer := NewMemoryLayer(fakeReverser{addr: "late", delay: time.Second})
	e := NewEngine(layer, WithEmitter(sink.emit), WithGeocodeTimeout(20*time.Millisecond))
	require.NoError(t, e.Load(context.Background()))

	require.NoError(t, e.HandleClick(context.Background(), 35.1796, 129.0756))
	e.Wait()

	events := sink.all()
	require.Len(t, events, 1)
	assert.Equal(t, ClickLabel(35.1796, 129.0756), events[0].Location.Address)
}

func TestHandleClick_CancelledCallerContextStillResolves(t *testing.T) {
	sink := &eventSink{}
	layer := NewMemoryLayer(fakeReverser{addr: "부산역", delay: 10 * time.Millisecond})
	e := NewEngine(layer, WithEmitter(sink.emit))
	require.NoError(t, e.Load(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, e.HandleClick(ctx, 35.1151, 129.0415))
	cancel()
	e.Wait()

	require.Len(t, sink.all(), 1)
	assert.Equal(t, "부산역", sink.all()[0].Location.Address)
}

func TestHandleClick_SingleTransientMarker(t *testing.T) {
	layer := NewMemoryLayer(nil)
	e := NewEngine(layer)
	require.NoError(t, e.Load(context.Background()))

	require.NoError(t, e.HandleClick(context.Background(), 37.1, 127.1))
	require.NoError(t, e.HandleClick(context.Background(), 37.2, 127.2))
	e.Wait()

	var clicks []Marker
	for _, m := range layer.Markers() {
		if m.Kind == KindClick {
			clicks = append(clicks, m)
		}
	}
	require.Len(t, clicks, 1)
	assert.InDelta(t, 37.2, clicks[0].Lat, 1e-9)

	// A redraw of the model leaves the transient marker alone.
	require.NoError(t, e.Sync(nil, nil))
	assert.Len(t, layer.Markers(), 1)
}

func TestHandleClick_BeforeLoad(t *testing.T) {
	e := NewEngine(NewMemoryLayer(nil))
	assert.ErrorIs(t, e.HandleClick(context.Background(), 37.5, 127.0), ErrMapNotLoaded)
}

func TestMemoryLayer_RemoveUnknownHandle(t *testing.T) {
	layer := NewMemoryLayer(nil)
	assert.Error(t, layer.RemoveMarker(42))
	assert.Error(t, layer.RemoveMarker("nope"))
}
