// Package server exposes meeting-point sessions over HTTP.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/loadmap-guide/loadmap-cli/internal/enrich"
	"github.com/loadmap-guide/loadmap-cli/internal/mapsync"
	"github.com/loadmap-guide/loadmap-cli/internal/metrics"
	"github.com/loadmap-guide/loadmap-cli/internal/session"
	"github.com/loadmap-guide/loadmap-cli/pkg/geocode"
	"github.com/loadmap-guide/loadmap-cli/pkg/loadmap"
)

// Deps are the collaborators shared by every session.
type Deps struct {
	Client         loadmap.Client
	Pipeline       *enrich.Pipeline
	Reverser       geocode.Reverser
	Metrics        *metrics.Recorder
	AllowedOrigins []string
	GeocodeTimeout time.Duration
}

// Server routes HTTP requests to sessions.
type Server struct {
	deps     Deps
	registry *Registry
	router   chi.Router
}

// New creates a Server. Sessions run under base until closed.
func New(base context.Context, deps Deps) *Server {
	s := &Server{deps: deps}
	s.registry = NewRegistry(base, s.newSession)
	s.router = s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Registry exposes the running sessions.
func (s *Server) Registry() *Registry {
	return s.registry
}

// Close stops every session.
func (s *Server) Close() {
	s.registry.CloseAll()
}

func (s *Server) newSession() *session.Session {
	opts := []session.Option{
		session.WithMetrics(s.deps.Metrics),
		session.WithGeocodeTimeout(s.deps.GeocodeTimeout),
	}
	if s.deps.Pipeline != nil {
		opts = append(opts, session.WithPipeline(s.deps.Pipeline))
	}
	return session.New(s.deps.Client, mapsync.NewMemoryLayer(s.deps.Reverser), opts...)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.deps.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))
	r.Use(requestLogger)

	r.Get("/health", s.health)
	if s.deps.Metrics != nil {
		r.Handle("/metrics", s.deps.Metrics.Handler())
	}

	r.Route("/api", func(api chi.Router) {
		api.Get("/places/categories", s.categories)
		api.Get("/places/tags", s.tags)

		api.Post("/sessions", s.createSession)
		api.Route("/sessions/{id}", func(item chi.Router) {
			item.Get("/", s.getSession)
			item.Delete("/", s.deleteSession)
			item.Post("/locations", s.addLocation)
			item.Delete("/locations/{index}", s.removeLocation)
			item.Post("/calculate", s.calculate)
			item.Post("/map/click", s.mapClick)
			item.Post("/map/reload", s.reloadMap)
			item.Get("/map/markers.geojson", s.markersGeoJSON)
		})
	})
	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", chimw.GetReqID(r.Context())),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("server: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
