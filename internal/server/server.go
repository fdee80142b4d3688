// Package server exposes debugger sessions over HTTP.
//
// Each session is owned by one actor goroutine. Handlers send it commands
// over a channel and wait for the reply; the auto-step delay is a timer whose
// expiry is posted back into the same channel, so a session is only ever
// touched by its actor.
//
// # Routes
//
//	POST   /sessions                    create, optionally loading a term or resuming a slot
//	GET    /sessions/{id}               status
//	DELETE /sessions/{id}               close
//	POST   /sessions/{id}/load          {"term": "..."}
//	POST   /sessions/{id}/select        {"node": 3}
//	POST   /sessions/{id}/deselect
//	POST   /sessions/{id}/reduce        {"rule": "auto|duplicate|cancel"} (optional)
//	POST   /sessions/{id}/back
//	POST   /sessions/{id}/forward
//	POST   /sessions/{id}/cycle
//	POST   /sessions/{id}/auto
//	POST   /sessions/{id}/cancel
//	POST   /sessions/{id}/force         {"on": true}
//	PUT    /sessions/{id}/title         {"node": 3, "title": "..."}
//	PUT    /sessions/{id}/delay         {"delay": "1.5"}
//	GET    /sessions/{id}/graph         graph JSON
//	GET    /sessions/{id}/scene.svg     rendered scene
//
// Errors are JSON objects {"code": "...", "error": "..."} with the HTTP
// status derived from the error code.
package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/matzehuels/olette/pkg/engine"
	"github.com/matzehuels/olette/pkg/errors"
	"github.com/matzehuels/olette/pkg/layout"
	"github.com/matzehuels/olette/pkg/session"
	"github.com/matzehuels/olette/pkg/store"
)

// Defaults for [Config].
const (
	DefaultMaxSessions = 64
	DefaultIdleTimeout = 30 * time.Minute
)

// EngineFactory returns the engine for a new session. Engines must not be
// shared between sessions.
type EngineFactory func(sessionID string) (engine.Engine, error)

// Config configures a [Server].
type Config struct {
	MaxSessions int           // 0 means DefaultMaxSessions
	IdleTimeout time.Duration // 0 means DefaultIdleTimeout
	Layout      *layout.Config
	Rule        engine.RuleKind
	Delay       time.Duration

	// Store persists sessions created with a slot name. Nil disables slots.
	Store   store.Store
	SlotTTL time.Duration
}

// Server holds the live sessions.
type Server struct {
	cfg       Config
	newEngine EngineFactory
	logger    *log.Logger
	router    chi.Router

	mu       sync.Mutex
	sessions map[string]*actor
}

// New creates a server. A nil logger discards output.
func New(cfg Config, newEngine EngineFactory, logger *log.Logger) *Server {
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = DefaultMaxSessions
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	s := &Server{
		cfg:       cfg,
		newEngine: newEngine,
		logger:    logger,
		sessions:  make(map[string]*actor),
	}
	s.router = s.routes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves on addr until ctx is done, then shuts down and
// closes every session.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	reapCtx, stopReaper := context.WithCancel(ctx)
	defer stopReaper()
	go s.reap(reapCtx, min(s.cfg.IdleTimeout/2, time.Minute))

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		s.Close()
		return fmt.Errorf("listen %s: %w", addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.Close()
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return ctx.Err()
}

// Close stops every session.
func (s *Server) Close() {
	s.mu.Lock()
	actors := make([]*actor, 0, len(s.sessions))
	for id, a := range s.sessions {
		actors = append(actors, a)
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	for _, a := range actors {
		a.stop()
	}
}

// Len returns the number of live sessions.
func (s *Server) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// =============================================================================
// Session Registry
// =============================================================================

// create starts a new session actor.
func (s *Server) create(slotName string) (*actor, error) {
	s.mu.Lock()
	full := len(s.sessions) >= s.cfg.MaxSessions
	s.mu.Unlock()
	if full {
		return nil, errTooManySessions
	}

	id := uuid.NewString()
	eng, err := s.newEngine(id)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeEngine, err, "create engine")
	}

	var slot *store.Slot
	if slotName != "" {
		if s.cfg.Store == nil {
			return nil, errors.New(errors.ErrCodeInvalidInput, "this server does not persist slots")
		}
		if err := errors.ValidateSlotName(slotName); err != nil {
			return nil, err
		}
		slot = store.NewSlot(s.cfg.Store, slotName, s.cfg.SlotTTL)
	}

	logger := s.logger.With("session", id[:8])
	sess := session.New(session.Options{
		Engine: eng,
		Slot:   slot,
		Layout: s.cfg.Layout,
		Rule:   s.cfg.Rule,
		Delay:  s.cfg.Delay,
		Logger: logger,
	})

	a := newActor(id, sess, logger)
	s.mu.Lock()
	if len(s.sessions) >= s.cfg.MaxSessions {
		s.mu.Unlock()
		a.stop()
		return nil, errTooManySessions
	}
	s.sessions[id] = a
	s.mu.Unlock()

	logger.Info("session created", "slot", slotName)
	return a, nil
}

func (s *Server) get(id string) (*actor, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.sessions[id]
	return a, ok
}

// remove stops and forgets session id.
func (s *Server) remove(id string) bool {
	s.mu.Lock()
	a, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if ok {
		a.stop()
	}
	return ok
}

// reap closes sessions idle for longer than the idle timeout.
func (s *Server) reap(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.reapIdle(now)
		}
	}
}

func (s *Server) reapIdle(now time.Time) int {
	s.mu.Lock()
	var idle []string
	for id, a := range s.sessions {
		if a.idle(now) > s.cfg.IdleTimeout {
			idle = append(idle, id)
		}
	}
	s.mu.Unlock()

	for _, id := range idle {
		if s.remove(id) {
			s.logger.Info("session expired", "session", id[:8])
		}
	}
	return len(idle)
}

// =============================================================================
// Routing
// =============================================================================

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.observe)

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", s.handleCreate)
		r.Route("/{id}", func(r chi.Router) {
			r.Use(s.withActor)
			r.Get("/", s.handleStatus)
			r.Delete("/", s.handleDelete)

			r.Post("/load", s.handleLoad)
			r.Post("/select", s.handleSelect)
			r.Post("/deselect", s.handleDeselect)
			r.Post("/reduce", s.handleReduce)
			r.Post("/back", s.handleBack)
			r.Post("/forward", s.handleForward)
			r.Post("/cycle", s.handleCycle)
			r.Post("/auto", s.handleAuto)
			r.Post("/cancel", s.handleCancel)
			r.Post("/force", s.handleForce)

			r.Put("/title", s.handleTitle)
			r.Put("/delay", s.handleDelay)

			r.Get("/graph", s.handleGraph)
			r.Get("/scene.svg", s.handleScene)
		})
	})
	return r
}
