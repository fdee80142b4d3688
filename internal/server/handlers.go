package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/olette/pkg/engine"
	"github.com/matzehuels/olette/pkg/errors"
	"github.com/matzehuels/olette/pkg/graph"
	"github.com/matzehuels/olette/pkg/render/scene"
	"github.com/matzehuels/olette/pkg/session"
)

// maxBodySize bounds request bodies; terms are short.
const maxBodySize = 1 << 20

var errTooManySessions = errors.New(errors.ErrCodeUnavailable, "session limit reached")

// =============================================================================
// Requests & Responses
// =============================================================================

type createRequest struct {
	Term string `json:"term,omitempty"`
	Slot string `json:"slot,omitempty"`
}

type createResponse struct {
	ID      string         `json:"id"`
	Resumed bool           `json:"resumed"`
	Status  session.Status `json:"status"`
}

type loadRequest struct {
	Term string `json:"term"`
}

type selectRequest struct {
	Node graph.NodeID `json:"node"`
}

type reduceRequest struct {
	Rule string `json:"rule,omitempty"`
}

type forceRequest struct {
	On bool `json:"on"`
}

type titleRequest struct {
	Node  graph.NodeID `json:"node"`
	Title string       `json:"title"`
}

type delayRequest struct {
	Delay string `json:"delay"`
}

type errorResponse struct {
	Code  errors.Code `json:"code"`
	Error string      `json:"error"`
}

// =============================================================================
// Middleware
// =============================================================================

type ctxKey int

const actorKey ctxKey = 0

// withActor resolves {id} to a live session or answers 404.
func (s *Server) withActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		a, ok := s.get(id)
		if !ok {
			writeError(w, errors.New(errors.ErrCodeNotFound, "no session %q", id))
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey, a)))
	})
}

func actorFrom(r *http.Request) *actor {
	return r.Context().Value(actorKey).(*actor)
}

// observe logs every request at debug level.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start).Round(time.Microsecond),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// =============================================================================
// Handlers
// =============================================================================

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := decode(r, &req, true); err != nil {
		writeError(w, err)
		return
	}
	if req.Term != "" {
		if err := errors.ValidateTerm(req.Term); err != nil {
			writeError(w, err)
			return
		}
	}

	a, err := s.create(req.Slot)
	if err != nil {
		writeError(w, err)
		return
	}

	v, err := a.do(r.Context(), func(ctx context.Context, sess *session.Session) (any, error) {
		resp := createResponse{ID: a.id}
		if req.Slot != "" {
			ok, err := sess.Resume(ctx)
			if err != nil {
				return nil, err
			}
			resp.Resumed = ok
		}
		if req.Term != "" {
			if err := sess.Load(ctx, req.Term); err != nil {
				return nil, err
			}
		}
		resp.Status = sess.Status()
		return resp, nil
	})
	if err != nil {
		s.remove(a.id)
		writeError(w, err)
		return
	}
	w.Header().Set("Location", "/sessions/"+a.id)
	writeJSON(w, http.StatusCreated, v)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, func(ctx context.Context, sess *session.Session) error { return nil })
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	a := actorFrom(r)
	if s.remove(a.id) {
		s.logger.Info("session closed", "session", a.id[:8])
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	var req loadRequest
	if err := decode(r, &req, false); err != nil {
		writeError(w, err)
		return
	}
	if err := errors.ValidateTerm(req.Term); err != nil {
		writeError(w, err)
		return
	}
	s.respond(w, r, func(ctx context.Context, sess *session.Session) error {
		return sess.Load(ctx, req.Term)
	})
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := decode(r, &req, false); err != nil {
		writeError(w, err)
		return
	}
	s.respond(w, r, func(ctx context.Context, sess *session.Session) error {
		if !sess.Select(req.Node) {
			return errors.New(errors.ErrCodeNotFound, "no node %d", req.Node)
		}
		return nil
	})
}

func (s *Server) handleDeselect(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, func(ctx context.Context, sess *session.Session) error {
		sess.Deselect()
		return nil
	})
}

func (s *Server) handleReduce(w http.ResponseWriter, r *http.Request) {
	var req reduceRequest
	if err := decode(r, &req, true); err != nil {
		writeError(w, err)
		return
	}
	var rule engine.RuleKind
	if req.Rule != "" {
		var err error
		if rule, err = engine.ParseRuleKind(req.Rule); err != nil {
			writeError(w, errors.Wrap(errors.ErrCodeInvalidInput, err, "rule"))
			return
		}
	}
	s.respond(w, r, func(ctx context.Context, sess *session.Session) error {
		if rule == "" {
			return sess.Reduce(ctx)
		}
		return sess.ReduceWith(ctx, rule)
	})
}

func (s *Server) handleBack(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, func(ctx context.Context, sess *session.Session) error {
		_, err := sess.Back(ctx)
		return err
	})
}

func (s *Server) handleForward(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, func(ctx context.Context, sess *session.Session) error {
		_, err := sess.Forward(ctx)
		return err
	})
}

func (s *Server) handleCycle(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, func(ctx context.Context, sess *session.Session) error {
		sess.CycleSelection()
		return nil
	})
}

func (s *Server) handleAuto(w http.ResponseWriter, r *http.Request) {
	a := actorFrom(r)
	s.respond(w, r, func(ctx context.Context, sess *session.Session) error {
		a.startAuto(sess)
		return nil
	})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	// Observed by a step already queued behind this request.
	actorFrom(r).sess.CancelAuto()
	s.respond(w, r, func(ctx context.Context, sess *session.Session) error {
		sess.Cancel()
		return nil
	})
}

func (s *Server) handleForce(w http.ResponseWriter, r *http.Request) {
	var req forceRequest
	if err := decode(r, &req, false); err != nil {
		writeError(w, err)
		return
	}
	s.respond(w, r, func(ctx context.Context, sess *session.Session) error {
		if req.On {
			sess.ForceOn()
		} else {
			sess.ForceOff()
		}
		return nil
	})
}

func (s *Server) handleTitle(w http.ResponseWriter, r *http.Request) {
	var req titleRequest
	if err := decode(r, &req, false); err != nil {
		writeError(w, err)
		return
	}
	s.respond(w, r, func(ctx context.Context, sess *session.Session) error {
		return sess.SetTitle(ctx, req.Node, req.Title)
	})
}

func (s *Server) handleDelay(w http.ResponseWriter, r *http.Request) {
	var req delayRequest
	if err := decode(r, &req, false); err != nil {
		writeError(w, err)
		return
	}
	d, err := session.ParseDelay(req.Delay)
	if err != nil {
		writeError(w, err)
		return
	}
	s.respond(w, r, func(ctx context.Context, sess *session.Session) error {
		return sess.SetDelay(d)
	})
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	v, err := actorFrom(r).do(r.Context(), func(ctx context.Context, sess *session.Session) (any, error) {
		return sess.Graph(), nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := graph.Write(v.(graph.Graph), w); err != nil {
		s.logger.Warn("write graph", "err", err)
	}
}

func (s *Server) handleScene(w http.ResponseWriter, r *http.Request) {
	v, err := actorFrom(r).do(r.Context(), func(ctx context.Context, sess *session.Session) (any, error) {
		return sess.Graph(), nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Write(scene.RenderSVG(v.(graph.Graph)))
}

// respond runs fn on the session's actor and answers with the resulting
// status.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, sess *session.Session) error) {
	v, err := actorFrom(r).do(r.Context(), func(ctx context.Context, sess *session.Session) (any, error) {
		if err := fn(ctx, sess); err != nil {
			return nil, err
		}
		return sess.Status(), nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// =============================================================================
// Encoding
// =============================================================================

// decode reads a JSON body into v. An empty body is accepted when optional.
func decode(r *http.Request, v any, optional bool) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(v)
	if err == io.EOF && optional {
		return nil
	}
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidInput, err, "decode request body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	code := errors.GetCode(err)
	if code == "" {
		code = errors.ErrCodeInternal
	}
	writeJSON(w, httpStatus(code), errorResponse{Code: code, Error: errors.UserMessage(err)})
}

// httpStatus maps an error code to an HTTP status.
func httpStatus(code errors.Code) int {
	switch code {
	case errors.ErrCodeInvalidInput:
		return http.StatusBadRequest
	case errors.ErrCodeMalformedTerm, errors.ErrCodeInvalidSnapshot:
		return http.StatusUnprocessableEntity
	case errors.ErrCodeNoSelection, errors.ErrCodeNotEligible, errors.ErrCodeDesync:
		return http.StatusConflict
	case errors.ErrCodeNotFound:
		return http.StatusNotFound
	case errors.ErrCodeEngine:
		return http.StatusBadGateway
	case errors.ErrCodeUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
