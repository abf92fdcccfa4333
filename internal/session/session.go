// Package session serializes everything a user can do to one meeting-point
// search: location edits, calculations, map clicks and the enrichment
// results that follow. A single goroutine owns the mutable state; network
// work runs elsewhere and posts its outcome back as an event.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/loadmap-guide/loadmap-cli/internal/enrich"
	"github.com/loadmap-guide/loadmap-cli/internal/locations"
	"github.com/loadmap-guide/loadmap-cli/internal/mapsync"
	"github.com/loadmap-guide/loadmap-cli/internal/metrics"
	"github.com/loadmap-guide/loadmap-cli/internal/model"
	"github.com/loadmap-guide/loadmap-cli/internal/orchestrator"
)

// User-facing notices.
const (
	MsgCapacityExceeded = "위치는 최대 10개까지 추가할 수 있습니다."
	MsgIndexOutOfRange  = "삭제할 위치를 찾을 수 없습니다."
)

// ErrClosed is returned by calls made after Run has returned.
var ErrClosed = eris.New("session: closed")

// Option configures a Session.
type Option func(*Session)

// WithPipeline enables per-candidate enrichment. Without it the board stays
// empty.
func WithPipeline(p *enrich.Pipeline) Option {
	return func(s *Session) { s.pipeline = p }
}

// WithMetrics records session lifetime on m and passes m to the orchestrator.
func WithMetrics(m *metrics.Recorder) Option {
	return func(s *Session) { s.metrics = m }
}

// WithGeocodeTimeout bounds reverse geocoding of map clicks.
func WithGeocodeTimeout(d time.Duration) Option {
	return func(s *Session) { s.geocodeTimeout = d }
}

// Session is one user's working state. Create with New and start Run in its
// own goroutine before calling anything else.
type Session struct {
	pipeline       *enrich.Pipeline
	metrics        *metrics.Recorder
	geocodeTimeout time.Duration
	log            *zap.Logger

	events chan event
	done   chan struct{}

	// Owned by the Run goroutine.
	set         *locations.Set
	orch        *orchestrator.Orchestrator
	engine      *mapsync.Engine
	board       *enrich.Board
	notice      string
	calculating int
	idle        []chan struct{}
}

// New creates a Session that calculates with calc and draws on adapter.
func New(calc orchestrator.Calculator, adapter mapsync.Adapter, opts ...Option) *Session {
	s := &Session{
		events: make(chan event, 64),
		done:   make(chan struct{}),
		set:    locations.NewSet(),
		board:  enrich.NewBoard(),
		log:    zap.L().With(zap.String("component", "session")),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.orch = orchestrator.New(calc, orchestrator.WithMetrics(s.metrics))
	s.engine = mapsync.NewEngine(adapter,
		mapsync.WithEmitter(s.emitFromMap),
		mapsync.WithGeocodeTimeout(s.geocodeTimeout),
	)
	s.set.OnStale(func() {
		s.orch.Invalidate()
		s.board.Reset(s.orch.Generation(), nil)
	})
	return s
}

// Run loads the map and processes events until ctx is cancelled. It must be
// called exactly once. A map load failure is recorded, not returned.
func (s *Session) Run(ctx context.Context) error {
	defer close(s.done)
	s.metrics.SessionOpened()
	defer s.metrics.SessionClosed()

	if err := s.engine.Load(ctx); err != nil {
		s.log.Warn("map load failed", zap.Error(err))
		s.notice = mapsync.MsgMapLoadFailed
	}

	for {
		select {
		case <-ctx.Done():
			for _, ch := range s.idle {
				close(ch)
			}
			s.log.Debug("session stopped")
			return nil
		case ev := <-s.events:
			s.handle(ctx, ev)
			s.releaseIdle()
		}
	}
}

// AddLocation appends loc and redraws the map.
func (s *Session) AddLocation(ctx context.Context, loc model.Location) error {
	reply := make(chan error, 1)
	return s.call(ctx, addLocationCmd{loc: loc, reply: reply}, reply)
}

// RemoveLocation removes the entry at index. Any displayed result and its
// enrichment are discarded.
func (s *Session) RemoveLocation(ctx context.Context, index int) error {
	reply := make(chan error, 1)
	return s.call(ctx, removeLocationCmd{index: index, reply: reply}, reply)
}

// Calculate runs a calculation over the current locations and returns once
// its candidates are on the map and enrichment has started. A calculation
// overtaken by a newer one or by a removal returns orchestrator.ErrSuperseded.
func (s *Session) Calculate(ctx context.Context, mode model.TransportMode) (*orchestrator.Result, error) {
	reply := make(chan calcReply, 1)
	if err := s.post(ctx, calculateCmd{mode: mode, reply: reply}); err != nil {
		return nil, err
	}
	r, err := await(ctx, s.done, reply)
	if err != nil {
		return nil, err
	}
	return r.res, r.err
}

// MapClick places the click marker. The resolved location is added to the
// set asynchronously.
func (s *Session) MapClick(ctx context.Context, lat, lng float64) error {
	reply := make(chan error, 1)
	return s.call(ctx, mapClickCmd{lat: lat, lng: lng, reply: reply}, reply)
}

// ReloadMap retries a failed map load.
func (s *Session) ReloadMap(ctx context.Context) error {
	reply := make(chan error, 1)
	return s.call(ctx, reloadMapCmd{reply: reply}, reply)
}

// Snapshot returns a consistent copy of everything a UI renders.
func (s *Session) Snapshot(ctx context.Context) (Snapshot, error) {
	reply := make(chan Snapshot, 1)
	if err := s.post(ctx, snapshotCmd{reply: reply}); err != nil {
		return Snapshot{}, err
	}
	return await(ctx, s.done, reply)
}

// WaitIdle blocks until no calculation is running and no enrichment result
// for the current generation is outstanding.
func (s *Session) WaitIdle(ctx context.Context) error {
	reply := make(chan struct{}, 1)
	if err := s.post(ctx, waitIdleCmd{reply: reply}); err != nil {
		return err
	}
	_, err := await(ctx, s.done, reply)
	return err
}

// WaitClicks blocks until every pending map click has been resolved and its
// location event queued.
func (s *Session) WaitClicks() {
	s.engine.Wait()
}

func (s *Session) post(ctx context.Context, ev event) error {
	select {
	case s.events <- ev:
		return nil
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// call posts a command whose reply is an error and returns that error.
func (s *Session) call(ctx context.Context, ev event, reply chan error) error {
	if err := s.post(ctx, ev); err != nil {
		return err
	}
	err, waitErr := await(ctx, s.done, reply)
	if waitErr != nil {
		return waitErr
	}
	return err
}

func await[T any](ctx context.Context, done <-chan struct{}, reply <-chan T) (T, error) {
	var zero T
	select {
	case v, ok := <-reply:
		if !ok {
			return zero, ErrClosed
		}
		return v, nil
	case <-done:
		// The loop may have replied just before stopping.
		select {
		case v, ok := <-reply:
			if ok {
				return v, nil
			}
		default:
		}
		return zero, ErrClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (s *Session) emitFromMap(ev mapsync.AddLocationEvent) {
	_ = s.post(context.Background(), mapAddLocation{loc: ev.Location})
}

func (s *Session) handle(ctx context.Context, ev event) {
	switch ev := ev.(type) {
	case addLocationCmd:
		ev.reply <- s.addLocation(ev.loc)

	case mapAddLocation:
		if err := s.addLocation(ev.loc); err != nil {
			s.log.Info("map location rejected", zap.String("address", ev.loc.Address), zap.Error(err))
		}

	case removeLocationCmd:
		if err := s.set.Remove(ev.index); err != nil {
			s.notice = MsgIndexOutOfRange
			ev.reply <- err
			return
		}
		s.notice = ""
		s.syncMap()
		ev.reply <- nil

	case calculateCmd:
		ticket, err := s.orch.Begin(s.set.All(), ev.mode)
		if err != nil {
			ev.reply <- calcReply{err: err}
			return
		}
		s.calculating++
		go func() {
			res, err := s.orch.Fetch(ctx, ticket)
			_ = s.post(context.Background(), calcDone{ticket: ticket, res: res, err: err, reply: ev.reply})
		}()

	case calcDone:
		s.calculating--
		s.finishCalculation(ctx, ev)

	case enrichDone:
		if !s.board.Apply(ev.result) {
			s.metrics.EnrichmentFetch(metrics.FetchStale)
			s.log.Debug("dropping stale enrichment",
				zap.Uint64("generation", ev.result.Generation),
				zap.Int("rank", ev.result.Rank),
			)
		}

	case mapClickCmd:
		err := s.engine.HandleClick(ctx, ev.lat, ev.lng)
		switch {
		case errors.Is(err, mapsync.ErrInvalidCoordinate):
			s.notice = mapsync.MsgInvalidCoordinate
		case err == nil:
			s.notice = ""
		}
		ev.reply <- err

	case reloadMapCmd:
		err := s.engine.Reload(ctx)
		if err == nil {
			s.notice = ""
		}
		ev.reply <- err

	case snapshotCmd:
		ev.reply <- s.snapshot()

	case waitIdleCmd:
		s.idle = append(s.idle, ev.reply)
	}
}

func (s *Session) addLocation(loc model.Location) error {
	if err := s.set.Add(loc); err != nil {
		if errors.Is(err, locations.ErrCapacityExceeded) {
			s.notice = MsgCapacityExceeded
		}
		return err
	}
	s.notice = ""
	s.orch.ClearError()
	s.syncMap()
	return nil
}

// finishCalculation commits a completed calculation and applies it: the map
// is redrawn before the board is reset and enrichment starts. A failure
// leaves the previous result, its markers and its enrichment in place.
func (s *Session) finishCalculation(ctx context.Context, ev calcDone) {
	res, err := s.orch.Commit(ev.ticket, ev.res, ev.err)
	if err != nil {
		ev.reply <- calcReply{err: err}
		return
	}

	s.syncMap()
	if s.pipeline == nil || len(res.Candidates) == 0 {
		s.board.Reset(res.Generation, nil)
		ev.reply <- calcReply{res: res}
		return
	}

	s.board.Reset(res.Generation, res.Candidates)
	s.pipeline.Start(ctx, res.Generation, res.Candidates, func(r enrich.Result) {
		_ = s.post(context.Background(), enrichDone{result: r})
	})
	ev.reply <- calcReply{res: res}
}

// syncMap redraws the map from the set and the orchestrator's current result.
func (s *Session) syncMap() {
	var candidates []model.CandidatePoint
	if r := s.orch.State().Result; r != nil {
		candidates = r.Candidates
	}
	if err := s.engine.Sync(s.set.All(), candidates); err != nil {
		s.log.Warn("map sync failed", zap.Error(err))
	}
}

func (s *Session) releaseIdle() {
	if len(s.idle) == 0 || s.calculating > 0 || s.board.Pending() > 0 {
		return
	}
	for _, ch := range s.idle {
		ch <- struct{}{}
	}
	s.idle = nil
}
