// Package orchestrator drives a meeting-point calculation: the weather-enhanced
// request, the basic fallback, and the loading/error/advisory state around them.
package orchestrator

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/loadmap-guide/loadmap-cli/internal/metrics"
	"github.com/loadmap-guide/loadmap-cli/internal/model"
	"github.com/loadmap-guide/loadmap-cli/internal/normalize"
)

// MinLocations is the fewest locations a calculation accepts.
const MinLocations = 2

// User-facing messages.
const (
	MsgInsufficientLocations = "최소 2개 이상의 위치를 입력해주세요."
	MsgWeatherUnavailable    = "날씨 정보를 가져올 수 없어 기본 중간지점만 계산했습니다."
	MsgConnectionFailed      = "서버 연결에 실패했습니다. 잠시 후 다시 시도해주세요."
)

var (
	// ErrInsufficientLocations is returned before any request when fewer than
	// MinLocations are given.
	ErrInsufficientLocations = eris.New("orchestrator: at least 2 locations are required")

	// ErrSuperseded is returned when a newer calculation (or an invalidation)
	// started while this one was in flight. State is left untouched.
	ErrSuperseded = eris.New("orchestrator: calculation superseded")
)

// Calculator issues the two backend calculation requests. loadmap.Client
// satisfies it.
type Calculator interface {
	CalculateWithWeather(ctx context.Context, locs []model.Location, mode model.TransportMode) (json.RawMessage, error)
	CalculateSimple(ctx context.Context, locs []model.Location, mode model.TransportMode) (json.RawMessage, error)
}

// Result is a successful calculation. Candidates and Weather always come from
// the same response.
type Result struct {
	Generation uint64                 `json:"generation"`
	Mode       model.TransportMode    `json:"mode"`
	Message    string                 `json:"message"`
	Candidates []model.CandidatePoint `json:"candidates"`
	Weather    *model.WeatherInfo     `json:"weather,omitempty"`

	// Degraded is set when the weather request failed and the basic request
	// answered. Advisory then carries the user-facing notice.
	Degraded bool   `json:"degraded"`
	Advisory string `json:"advisory,omitempty"`
}

// State is what a UI renders. Result is the last successful calculation of
// the current location set; Error describes the newest generation's failure
// and does not clear Result.
type State struct {
	Generation uint64  `json:"generation"`
	Loading    bool    `json:"loading"`
	Result     *Result `json:"result,omitempty"`
	Error      string  `json:"error,omitempty"`
	Advisory   string  `json:"advisory,omitempty"`
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithMetrics records calculation outcomes on m.
func WithMetrics(m *metrics.Recorder) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// Orchestrator runs calculations under a supersede policy: every call takes
// a new generation and only the newest generation may write state.
type Orchestrator struct {
	calc    Calculator
	metrics *metrics.Recorder
	log     *zap.Logger

	mu    sync.Mutex
	gen   uint64
	state State
}

// New creates an Orchestrator over calc.
func New(calc Calculator, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		calc: calc,
		log:  zap.L().With(zap.String("component", "orchestrator")),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Ticket identifies one calculation between Begin and Commit.
type Ticket struct {
	Generation uint64
	Mode       model.TransportMode
	Locations  []model.Location
}

// Calculate runs the weather request, falls back to the basic request on any
// failure, and records the outcome. It returns ErrInsufficientLocations
// without touching the network, ErrSuperseded if a newer generation started
// meanwhile, or a *CalculationError when both tiers failed.
func (o *Orchestrator) Calculate(ctx context.Context, locs []model.Location, mode model.TransportMode) (*Result, error) {
	t, err := o.Begin(locs, mode)
	if err != nil {
		return nil, err
	}
	res, err := o.Fetch(ctx, t)
	return o.Commit(t, res, err)
}

// Begin validates locs and opens a loading period under a new generation.
// Fewer than MinLocations records the error and returns
// ErrInsufficientLocations.
func (o *Orchestrator) Begin(locs []model.Location, mode model.TransportMode) (Ticket, error) {
	if mode == "" {
		mode = model.DefaultTransportMode
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if len(locs) < MinLocations {
		o.state.Error = MsgInsufficientLocations
		o.state.Advisory = ""
		o.metrics.Calculation(metrics.OutcomeRejected)
		return Ticket{}, eris.Wrapf(ErrInsufficientLocations, "orchestrator: got %d", len(locs))
	}

	o.gen++
	o.state.Generation = o.gen
	o.state.Loading = true
	o.state.Error = ""
	o.state.Advisory = ""
	o.log.Debug("calculation started",
		zap.Uint64("generation", o.gen),
		zap.Int("locations", len(locs)),
		zap.String("mode", string(mode)),
	)
	return Ticket{
		Generation: o.gen,
		Mode:       mode,
		Locations:  append([]model.Location(nil), locs...),
	}, nil
}

// Fetch issues the backend requests for t. It reads no state and is safe to
// run off the goroutine that owns the orchestrator.
func (o *Orchestrator) Fetch(ctx context.Context, t Ticket) (*Result, error) {
	log := o.log.With(zap.Uint64("generation", t.Generation), zap.String("mode", string(t.Mode)))
	res, err := o.run(ctx, log, t.Locations, t.Mode)
	if res != nil {
		res.Generation = t.Generation
	}
	return res, err
}

// Commit records the outcome of t. A superseded ticket changes nothing and
// returns ErrSuperseded. A failure sets Error and keeps the last successful
// Result.
func (o *Orchestrator) Commit(t Ticket, res *Result, err error) (*Result, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	log := o.log.With(zap.Uint64("generation", t.Generation))
	if t.Generation != o.gen {
		log.Debug("dropping superseded calculation result", zap.Uint64("current", o.gen))
		o.metrics.Calculation(metrics.OutcomeSuperseded)
		return nil, ErrSuperseded
	}

	o.state.Loading = false
	if err != nil {
		o.state.Error = UserMessage(err)
		o.metrics.Calculation(metrics.OutcomeFailed)
		log.Error("calculation failed", zap.Error(err))
		return nil, err
	}

	o.state.Result = res
	o.state.Advisory = res.Advisory
	if res.Degraded {
		o.metrics.Calculation(metrics.OutcomeDegraded)
	} else {
		o.metrics.Calculation(metrics.OutcomeFull)
	}
	log.Info("calculation complete",
		zap.Int("candidates", len(res.Candidates)),
		zap.Bool("weather", res.Weather != nil),
		zap.Bool("degraded", res.Degraded),
	)
	return res, nil
}

// ClearError drops the displayed error and leaves any result in place.
func (o *Orchestrator) ClearError() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state.Error = ""
}

func (o *Orchestrator) run(ctx context.Context, log *zap.Logger, locs []model.Location, mode model.TransportMode) (*Result, error) {
	raw, err := o.calc.CalculateWithWeather(ctx, locs, mode)
	if err == nil {
		resp := normalize.WithWeather(raw)
		return &Result{
			Mode:       mode,
			Message:    resp.Message,
			Candidates: resp.Candidates,
			Weather:    resp.Weather,
		}, nil
	}
	log.Warn("weather calculation failed, falling back to basic", zap.Error(err))

	raw, err = o.calc.CalculateSimple(ctx, locs, mode)
	if err != nil {
		return nil, &CalculationError{Message: failureMessage(err), Err: err}
	}
	resp := normalize.Candidates(raw)
	return &Result{
		Mode:       mode,
		Message:    resp.Message,
		Candidates: resp.Candidates,
		Degraded:   true,
		Advisory:   MsgWeatherUnavailable,
	}, nil
}

// Invalidate discards the current result and weather, clears loading and
// advances the generation so any in-flight calculation lands as superseded.
func (o *Orchestrator) Invalidate() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.gen++
	o.state.Generation = o.gen
	o.state.Result = nil
	o.state.Advisory = ""
	o.state.Loading = false
	o.log.Debug("results invalidated", zap.Uint64("generation", o.gen))
}

// State returns a snapshot of the current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	s := o.state
	if s.Result != nil {
		r := *s.Result
		r.Candidates = append([]model.CandidatePoint(nil), r.Candidates...)
		if r.Weather != nil {
			w := *r.Weather
			r.Weather = &w
		}
		s.Result = &r
	}
	return s
}

// Generation returns the newest generation handed out.
func (o *Orchestrator) Generation() uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.gen
}
