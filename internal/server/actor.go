package server

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/olette/pkg/autostep"
	"github.com/matzehuels/olette/pkg/errors"
	"github.com/matzehuels/olette/pkg/session"
)

// layoutInterval is the pause between two layout ticks while the layout is warm.
const layoutInterval = 33 * time.Millisecond

// command is a unit of work run on the actor goroutine.
type command struct {
	ctx   context.Context
	fn    func(ctx context.Context, s *session.Session) (any, error)
	reply chan result // nil for internal commands
}

type result struct {
	value any
	err   error
}

// actor owns one session. Every session call happens on its goroutine;
// handlers and timers talk to it through cmds.
type actor struct {
	id     string
	sess   *session.Session
	logger *log.Logger

	cmds   chan command
	ctx    context.Context // cancelled by stop
	cancel context.CancelFunc
	done   chan struct{}

	lastUsed atomic.Int64 // unix nanos

	// Owned by the actor goroutine.
	autoGen   int
	autoTimer *time.Timer
	layout    *time.Ticker
}

func newActor(id string, sess *session.Session, logger *log.Logger) *actor {
	ctx, cancel := context.WithCancel(context.Background())
	a := &actor{
		id:     id,
		sess:   sess,
		logger: logger,
		cmds:   make(chan command),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	a.touch()
	go a.run()
	return a
}

func (a *actor) touch() { a.lastUsed.Store(time.Now().UnixNano()) }

// idle returns how long the session has not been used.
func (a *actor) idle(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, a.lastUsed.Load()))
}

func (a *actor) run() {
	defer close(a.done)
	for {
		var layoutC <-chan time.Time
		if a.layout != nil {
			layoutC = a.layout.C
		}

		select {
		case <-a.ctx.Done():
			a.stopTimers()
			a.sess.CancelAuto()
			return
		case cmd := <-a.cmds:
			v, err := cmd.fn(cmd.ctx, a.sess)
			a.warmLayout()
			if cmd.reply != nil {
				cmd.reply <- result{value: v, err: err}
			}
		case <-layoutC:
			if err := a.sess.Tick(); err != nil {
				a.logger.Warn("layout tick", "session", a.id, "err", err)
			}
			if !a.sess.LayoutActive() {
				a.layout.Stop()
				a.layout = nil
			}
		}
	}
}

// do runs fn on the actor and waits for its result.
func (a *actor) do(ctx context.Context, fn func(ctx context.Context, s *session.Session) (any, error)) (any, error) {
	a.touch()
	reply := make(chan result, 1)
	select {
	case a.cmds <- command{ctx: ctx, fn: fn, reply: reply}:
	case <-a.done:
		return nil, errors.New(errors.ErrCodeNotFound, "session %s is closed", a.id)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	res := <-reply
	return res.value, res.err
}

// post queues fn without waiting. It is used by timers.
func (a *actor) post(fn func(ctx context.Context, s *session.Session) (any, error)) {
	select {
	case a.cmds <- command{ctx: a.ctx, fn: fn}:
	case <-a.done:
	}
}

// stop ends the actor goroutine and waits for it.
func (a *actor) stop() {
	a.cancel()
	<-a.done
}

func (a *actor) warmLayout() {
	if a.layout == nil && a.sess.LayoutActive() {
		a.layout = time.NewTicker(layoutInterval)
	}
}

func (a *actor) stopTimers() {
	if a.autoTimer != nil {
		a.autoTimer.Stop()
	}
	if a.layout != nil {
		a.layout.Stop()
		a.layout = nil
	}
}

// =============================================================================
// Auto-step
// =============================================================================

// startAuto starts a run and schedules its first step. It must run on the
// actor goroutine.
func (a *actor) startAuto(s *session.Session) bool {
	if !s.StartAuto() {
		return false
	}
	a.autoGen++
	a.scheduleStep(0, a.autoGen)
	return true
}

// scheduleStep posts one auto-step back into the command channel after d.
func (a *actor) scheduleStep(d time.Duration, gen int) {
	a.autoTimer = time.AfterFunc(d, func() {
		a.post(func(ctx context.Context, s *session.Session) (any, error) {
			a.autoStep(ctx, s, gen)
			return nil, nil
		})
	})
}

func (a *actor) autoStep(ctx context.Context, s *session.Session, gen int) {
	if gen != a.autoGen {
		return
	}
	out, err := s.AutoStep(ctx)
	switch out {
	case autostep.Stepped:
		a.scheduleStep(s.Delay(), gen)
	case autostep.Failed:
		a.logger.Warn("auto-step failed", "session", a.id, "err", err)
	}
}
