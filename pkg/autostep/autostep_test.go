package autostep

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/matzehuels/olette/pkg/graph"
)

// fakeTarget has a set of eligible nodes; reducing one makes it ineligible.
type fakeTarget struct {
	order    []graph.NodeID
	eligible map[graph.NodeID]bool
	selected graph.NodeID
	reduced  []graph.NodeID
	selects  int
	onSelect func(graph.NodeID)
	err      error
}

func newTarget(n int, eligible ...graph.NodeID) *fakeTarget {
	t := &fakeTarget{eligible: map[graph.NodeID]bool{}}
	for i := 1; i <= n; i++ {
		t.order = append(t.order, graph.NodeID(i))
	}
	for _, id := range eligible {
		t.eligible[id] = true
	}
	return t
}

func (f *fakeTarget) Candidates() []graph.NodeID { return f.order }

func (f *fakeTarget) Select(id graph.NodeID) bool {
	f.selects++
	f.selected = id
	if f.onSelect != nil {
		f.onSelect(id)
	}
	return true
}

func (f *fakeTarget) Eligible() bool { return f.eligible[f.selected] }

func (f *fakeTarget) Reduce(context.Context) error {
	if f.err != nil {
		return f.err
	}
	f.reduced = append(f.reduced, f.selected)
	delete(f.eligible, f.selected)
	return nil
}

func TestTerminationAfterKSteps(t *testing.T) {
	for _, k := range []int{0, 1, 3, 6} {
		ids := make([]graph.NodeID, 0, k)
		for i := 1; i <= k; i++ {
			ids = append(ids, graph.NodeID(2*i))
		}
		target := newTarget(12, ids...)
		s := New()
		if !s.Start() {
			t.Fatal("Start() = false")
		}

		steps := 0
		for {
			out, err := s.Step(context.Background(), target)
			if err != nil {
				t.Fatalf("Step: %v", err)
			}
			if out != Stepped {
				if out != Exhausted {
					t.Fatalf("k=%d: outcome %v, want exhausted", k, out)
				}
				break
			}
			steps++
			if steps > k {
				t.Fatalf("k=%d: more steps than eligible nodes", k)
			}
		}

		if len(target.reduced) != k || s.Steps() != k {
			t.Errorf("k=%d: reduced %d times (Steps %d)", k, len(target.reduced), s.Steps())
		}
		if s.State() != Idle || !s.Exhausted() {
			t.Errorf("k=%d: state %v exhausted %v", k, s.State(), s.Exhausted())
		}
		if out, _ := s.Step(context.Background(), target); out != NotRunning {
			t.Errorf("k=%d: step after exhaustion = %v", k, out)
		}
		if s.Start() {
			t.Errorf("k=%d: Start after exhaustion = true", k)
		}
		if len(target.reduced) != k {
			t.Errorf("k=%d: reduce called after halt", k)
		}
	}
}

func TestEarliestEligibleFirst(t *testing.T) {
	target := newTarget(5, 4, 2, 5)
	s := New()
	s.Start()
	for range 3 {
		s.Step(context.Background(), target)
	}
	want := []graph.NodeID{2, 4, 5}
	for i, id := range want {
		if target.reduced[i] != id {
			t.Fatalf("reduced %v, want %v", target.reduced, want)
		}
	}
}

func TestCancelObservedAtNextIteration(t *testing.T) {
	target := newTarget(3, 1, 2, 3)
	s := New()
	s.Start()
	s.Step(context.Background(), target)
	s.Cancel()
	if s.State() != Cancelled {
		t.Fatalf("State() = %v, want cancelled", s.State())
	}

	out, _ := s.Step(context.Background(), target)
	if out != Halted || s.State() != Idle {
		t.Errorf("outcome %v state %v, want cancelled/idle", out, s.State())
	}
	if len(target.reduced) != 1 {
		t.Errorf("reduced %d times, want 1", len(target.reduced))
	}
	if s.Exhausted() {
		t.Error("cancel latched exhaustion")
	}
	if !s.Start() {
		t.Error("Start after cancel = false")
	}
}

func TestCancelMidScan(t *testing.T) {
	target := newTarget(6, 5)
	s := New()
	target.onSelect = func(id graph.NodeID) {
		if id == 2 {
			s.Cancel()
		}
	}
	s.Start()
	out, _ := s.Step(context.Background(), target)
	if out != Halted {
		t.Fatalf("outcome %v, want cancelled", out)
	}
	if target.selects != 2 {
		t.Errorf("scanned %d candidates, want 2", target.selects)
	}
	if len(target.reduced) != 0 {
		t.Error("reduce ran after cancel")
	}
}

func TestReduceFailureStops(t *testing.T) {
	target := newTarget(2, 1)
	target.err = errors.New("engine down")
	s := New()
	s.Start()
	out, err := s.Step(context.Background(), target)
	if out != Failed || err == nil {
		t.Fatalf("outcome %v err %v", out, err)
	}
	if s.State() != Idle || s.Exhausted() {
		t.Errorf("state %v exhausted %v", s.State(), s.Exhausted())
	}
}

func TestResetClearsLatch(t *testing.T) {
	s := New()
	s.Start()
	s.Step(context.Background(), newTarget(2))
	if !s.Exhausted() {
		t.Fatal("expected exhaustion")
	}
	s.Reset()
	if s.Exhausted() || !s.Start() {
		t.Error("Reset did not clear the latch")
	}
}

func TestDelay(t *testing.T) {
	s := New()
	if s.Delay() != DefaultDelay {
		t.Errorf("Delay() = %v, want %v", s.Delay(), DefaultDelay)
	}
	if err := s.SetDelay(3 * time.Second); err != nil || s.Delay() != 3*time.Second {
		t.Errorf("SetDelay: %v, Delay() = %v", err, s.Delay())
	}
	if err := s.SetDelay(-time.Second); err == nil {
		t.Error("negative delay accepted")
	}
}

func TestRun(t *testing.T) {
	target := newTarget(4, 1, 3)
	s := New()
	s.SetDelay(time.Millisecond)

	var outcomes []Outcome
	out, err := Run(context.Background(), s, target, func(o Outcome) { outcomes = append(outcomes, o) })
	if err != nil || out != Exhausted {
		t.Fatalf("Run = %v, %v", out, err)
	}
	want := []Outcome{Stepped, Stepped, Exhausted}
	if len(outcomes) != len(want) {
		t.Fatalf("outcomes = %v, want %v", outcomes, want)
	}
	for i := range want {
		if outcomes[i] != want[i] {
			t.Fatalf("outcomes = %v, want %v", outcomes, want)
		}
	}

	if out, _ := Run(context.Background(), s, target, nil); out != Exhausted {
		t.Errorf("second Run = %v, want exhausted", out)
	}
}

func TestRunContextCancel(t *testing.T) {
	target := newTarget(3, 1, 2, 3)
	s := New()
	s.SetDelay(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	var out Outcome
	var err error
	go func() {
		out, err = Run(ctx, s, target, nil)
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop on context cancel")
	}
	if out != Halted || !errors.Is(err, context.Canceled) {
		t.Errorf("Run = %v, %v", out, err)
	}
	if len(target.reduced) != 1 {
		t.Errorf("reduced %d times, want 1", len(target.reduced))
	}
}

func TestStrings(t *testing.T) {
	if Running.String() != "running" || Halted.String() != "cancelled" || Exhausted.String() != "exhausted" {
		t.Error("unexpected String() values")
	}
}
