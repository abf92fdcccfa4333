package server

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/loadmap-guide/loadmap-cli/internal/session"
)

// Factory builds a fresh, not yet running session.
type Factory func() *session.Session

type runningSession struct {
	sess   *session.Session
	cancel context.CancelFunc
	done   chan struct{}
}

// Registry tracks running sessions by ID. Each session's Run loop lives
// until Close or CloseAll.
type Registry struct {
	base    context.Context
	factory Factory

	mu       sync.Mutex
	sessions map[string]*runningSession
}

// NewRegistry creates a Registry whose sessions run under base.
func NewRegistry(base context.Context, factory Factory) *Registry {
	return &Registry{
		base:     base,
		factory:  factory,
		sessions: make(map[string]*runningSession),
	}
}

// Create starts a new session and returns its ID.
func (r *Registry) Create() (string, *session.Session) {
	id := uuid.NewString()
	ctx, cancel := context.WithCancel(r.base)
	rs := &runningSession{sess: r.factory(), cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(rs.done)
		if err := rs.sess.Run(ctx); err != nil {
			zap.L().Error("server: session stopped with error", zap.String("session", id), zap.Error(err))
		}
	}()

	r.mu.Lock()
	r.sessions[id] = rs
	r.mu.Unlock()

	zap.L().Debug("server: session created", zap.String("session", id))
	return id, rs.sess
}

// Get returns the session with id.
func (r *Registry) Get(id string) (*session.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rs, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	return rs.sess, true
}

// Close stops and forgets the session with id. It reports whether the
// session existed.
func (r *Registry) Close(id string) bool {
	r.mu.Lock()
	rs, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if !ok {
		return false
	}
	rs.cancel()
	<-rs.done
	return true
}

// Len returns the number of running sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// CloseAll stops every session.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	for _, id := range ids {
		r.Close(id)
	}
}
