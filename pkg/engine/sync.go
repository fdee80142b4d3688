package engine

import (
	"context"
	"sync"
	"time"

	"github.com/matzehuels/olette/pkg/errors"
	"github.com/matzehuels/olette/pkg/graph"
	"github.com/matzehuels/olette/pkg/observability"
)

// Engine operation names used in spans, hooks and errors.
const (
	OpLoad    = "load"
	OpUpdate  = "update"
	OpReduce  = "reduce"
	OpRebuild = "rebuild"
)

// Sync enforces the engine protocol around an [Engine].
//
// At most one engine call is in flight; concurrent callers queue on a mutex.
// Sync tracks whether the engine is known to hold the same graph as the
// caller's model. Load and Rebuild establish that; [Sync.Invalidate] clears
// it after a history jump, and Reduce refuses to run until the engine has
// been rebuilt.
type Sync struct {
	eng Engine

	mu     sync.Mutex
	inSync bool
}

// NewSync wraps e.
func NewSync(e Engine) *Sync {
	return &Sync{eng: e}
}

// InSync reports whether the engine is known to match the model.
func (s *Sync) InSync() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inSync
}

// Invalidate marks the engine stale. Callers invoke it when the model is
// replaced by anything other than a Load or Rebuild result.
func (s *Sync) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inSync = false
}

// Load asks the engine to parse term. It returns a validated graph or an
// error; there are no partial results. On failure the sync state is left as
// it was, since the engine keeps its previous net.
func (s *Sync) Load(ctx context.Context, term string) (graph.Graph, error) {
	if err := errors.ValidateTerm(term); err != nil {
		return graph.Graph{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var g graph.Graph
	err := s.call(ctx, OpLoad, func(ctx context.Context) error {
		var err error
		g, err = s.eng.Load(ctx, term)
		return err
	})
	if err != nil {
		return graph.Graph{}, wrap(err, "load term")
	}
	if err := g.Validate(); err != nil {
		s.inSync = false
		return graph.Graph{}, errors.Wrap(errors.ErrCodeEngine, err, "engine returned an invalid graph")
	}
	s.inSync = true
	return g, nil
}

// PushPositions sends the presentation state of every node in m.
func (s *Sync) PushPositions(ctx context.Context, m *graph.Model) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.push(ctx, m)
}

func (s *Sync) push(ctx context.Context, m *graph.Model) error {
	states := m.Positions()
	err := s.call(ctx, OpUpdate, func(ctx context.Context) error {
		return s.eng.Update(ctx, states)
	})
	if err != nil {
		return wrap(err, "push positions")
	}
	return nil
}

// Reduce pushes the positions of m and then asks the engine to rewrite at
// node. The push completes before the reduce is issued. The returned patch
// is validated but not applied; the caller merges it into the model.
//
// Reducing against a stale engine returns ENGINE_DESYNC without touching
// the engine.
func (s *Sync) Reduce(ctx context.Context, m *graph.Model, node graph.NodeID, rule RuleKind) (graph.Graph, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.inSync {
		return graph.Graph{}, errors.New(errors.ErrCodeDesync, "engine state is stale; rebuild before reducing")
	}
	if err := s.push(ctx, m); err != nil {
		return graph.Graph{}, err
	}

	var patch graph.Graph
	err := s.call(ctx, OpReduce, func(ctx context.Context) error {
		var err error
		patch, err = s.eng.Reduce(ctx, node, rule)
		return err
	})
	if err != nil {
		return graph.Graph{}, wrap(err, "reduce node %d (%s)", node, rule)
	}
	if err := patch.Validate(); err != nil {
		// The engine has applied a rewrite we cannot render.
		s.inSync = false
		return graph.Graph{}, errors.Wrap(errors.ErrCodeEngine, err, "engine returned an invalid patch")
	}
	return patch, nil
}

// Rebuild decodes snapshot and resets the engine to it. The decoded graph is
// returned so the caller can replace its model with exactly what the engine
// now holds.
func (s *Sync) Rebuild(ctx context.Context, snapshot []byte) (graph.Graph, error) {
	g, err := graph.Unmarshal(snapshot)
	if err != nil {
		return graph.Graph{}, errors.Wrap(errors.ErrCodeInvalidSnapshot, err, "decode snapshot")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.inSync = false
	err = s.call(ctx, OpRebuild, func(ctx context.Context) error {
		return s.eng.Rebuild(ctx, g)
	})
	if err != nil {
		return graph.Graph{}, wrap(err, "rebuild engine")
	}
	s.inSync = true
	return g, nil
}

// call runs one engine operation inside a span and reports it to hooks.
// Callers hold s.mu.
func (s *Sync) call(ctx context.Context, op string, fn func(context.Context) error) error {
	ctx, span := observability.StartEngineSpan(ctx, op)
	defer span.End()

	hooks := observability.Engine()
	hooks.OnCallStart(ctx, op)
	start := time.Now()
	err := fn(ctx)
	hooks.OnCallComplete(ctx, op, time.Since(start), err)
	observability.RecordError(span, err)
	return err
}

// wrap keeps the code an engine implementation attached to err, defaulting
// to ENGINE_ERROR.
func wrap(err error, format string, args ...any) error {
	code := errors.GetCode(err)
	if code == "" {
		code = errors.ErrCodeEngine
	}
	return errors.Wrap(code, err, format, args...)
}
