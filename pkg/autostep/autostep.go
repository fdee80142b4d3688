// Package autostep drives repeated rewrites until the graph is in normal
// form or the user cancels.
//
// One iteration scans the candidate nodes in render order. Each candidate
// is selected; the first one that turns out eligible is reduced and the
// iteration ends. The owner waits [Scheduler.Delay] and calls
// [Scheduler.Step] again, so every round starts from the first node. A
// round that finds nothing latches the scheduler as exhausted until
// [Scheduler.Reset].
//
// Cancellation is cooperative. [Scheduler.Cancel] raises a flag that the
// next iteration observes, both at its start and before each candidate. An
// in-flight reduce is never interrupted.
//
// The scheduler owns no goroutine or timer. Front ends arrange the delay
// with whatever their event loop offers; [Run] is the plain-timer driver
// used by headless runs.
package autostep

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/matzehuels/olette/pkg/graph"
)

// DefaultDelay is the pause between two automatic rewrites.
const DefaultDelay = 1500 * time.Millisecond

// State is the scheduler state.
type State int

const (
	Idle State = iota
	Running
	Cancelled // cancel requested, not yet observed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Cancelled:
		return "cancelled"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Outcome is the result of one iteration.
type Outcome int

const (
	// NotRunning means Step was called while idle.
	NotRunning Outcome = iota
	// Stepped means one rewrite was applied; schedule the next Step.
	Stepped
	// Exhausted means a full scan found no eligible node.
	Exhausted
	// Halted means a cancel request was observed.
	Halted
	// Failed means the rewrite returned an error.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case NotRunning:
		return "not-running"
	case Stepped:
		return "stepped"
	case Exhausted:
		return "exhausted"
	case Halted:
		return "cancelled"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// Target is what the scheduler drives. Sessions implement it.
type Target interface {
	// Candidates returns the node ids to scan, in order.
	Candidates() []graph.NodeID
	// Select selects a node; false if it no longer exists.
	Select(id graph.NodeID) bool
	// Eligible reports whether the selected node may be rewritten.
	Eligible() bool
	// Reduce rewrites at the selected node.
	Reduce(ctx context.Context) error
}

// Scheduler is the auto-step state machine. Cancel may be called from any
// goroutine; the other methods belong to the owner.
type Scheduler struct {
	mu        sync.Mutex
	state     State
	exhausted bool
	delay     time.Duration
	steps     int
}

// New returns an idle scheduler with [DefaultDelay].
func New() *Scheduler {
	return &Scheduler{delay: DefaultDelay}
}

// Start moves an idle scheduler to Running. It returns false if the
// scheduler is already running or exhausted.
func (s *Scheduler) Start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.exhausted || s.state == Running {
		return false
	}
	s.state = Running
	s.steps = 0
	return true
}

// Cancel requests a stop. It takes effect at the next iteration.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Running {
		s.state = Cancelled
	}
}

// Reset clears the exhausted latch and returns to Idle. Called on load.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Idle
	s.exhausted = false
	s.steps = 0
}

// State returns the current state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Exhausted reports whether a scan found nothing since the last Reset.
func (s *Scheduler) Exhausted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exhausted
}

// Steps returns the number of rewrites in the current run.
func (s *Scheduler) Steps() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.steps
}

// SetDelay sets the pause between iterations.
func (s *Scheduler) SetDelay(d time.Duration) error {
	if d < 0 {
		return fmt.Errorf("negative delay %s", d)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
	return nil
}

// Delay returns the pause between iterations.
func (s *Scheduler) Delay() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.delay
}

// halt observes a pending cancel request or a done context.
func (s *Scheduler) halt(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Cancelled || (s.state == Running && ctx.Err() != nil) {
		s.state = Idle
		return true
	}
	return false
}

func (s *Scheduler) finish(exhausted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Idle
	if exhausted {
		s.exhausted = true
	}
}

// Step performs one iteration against t.
func (s *Scheduler) Step(ctx context.Context, t Target) (Outcome, error) {
	if s.halt(ctx) {
		return Halted, nil
	}
	if s.State() != Running {
		return NotRunning, nil
	}

	for _, id := range t.Candidates() {
		if s.halt(ctx) {
			return Halted, nil
		}
		if !t.Select(id) || !t.Eligible() {
			continue
		}
		if err := t.Reduce(ctx); err != nil {
			s.finish(false)
			return Failed, err
		}
		s.mu.Lock()
		s.steps++
		s.mu.Unlock()
		return Stepped, nil
	}

	s.finish(true)
	return Exhausted, nil
}

// Run starts s and steps t until the run ends, waiting [Scheduler.Delay]
// between iterations. onStep, if non-nil, sees every outcome. A done ctx is
// treated as a cancel request and its error is returned.
func Run(ctx context.Context, s *Scheduler, t Target, onStep func(Outcome)) (Outcome, error) {
	if !s.Start() {
		if s.Exhausted() {
			return Exhausted, nil
		}
		return NotRunning, nil
	}

	for {
		out, err := s.Step(ctx, t)
		if onStep != nil {
			onStep(out)
		}
		if out != Stepped {
			if out == Halted && ctx.Err() != nil {
				return out, ctx.Err()
			}
			return out, err
		}

		timer := time.NewTimer(s.Delay())
		select {
		case <-ctx.Done():
			timer.Stop()
			s.Cancel()
		case <-timer.C:
		}
	}
}
