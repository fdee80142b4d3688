package layout

import (
	"errors"
	"math"
	"testing"

	"github.com/matzehuels/olette/pkg/graph"
)

func pair(fixedSource bool) *graph.Model {
	m := graph.NewModel()
	m.Replace(graph.Graph{
		Nodes: []graph.Node{
			{ID: 1, X: 480, Y: 300, Fixed: fixedSource},
			{ID: 2, X: 490, Y: 300},
		},
		Links: []graph.Edge{{ID: 1, Source: 1, Target: 2, Force: 1}},
	})
	return m
}

func dist(m *graph.Model) float64 {
	a, _ := m.Node(1)
	b, _ := m.Node(2)
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}

func TestPinnedNodesStay(t *testing.T) {
	m := pair(true)
	s := New(DefaultConfig())
	for range 50 {
		if err := s.Tick(m); err != nil {
			t.Fatalf("Tick: %v", err)
		}
	}
	n, _ := m.Node(1)
	if n.X != 480 || n.Y != 300 {
		t.Errorf("pinned node moved to (%v,%v)", n.X, n.Y)
	}
	free, _ := m.Node(2)
	if free.X == 490 && free.Y == 300 {
		t.Error("free node did not move")
	}
}

func TestCloseNodesSeparate(t *testing.T) {
	m := pair(false)
	before := dist(m)
	s := New(DefaultConfig())
	if _, err := s.Settle(m, 300); err != nil {
		t.Fatalf("Settle: %v", err)
	}
	after := dist(m)
	if after <= before {
		t.Errorf("distance %v -> %v, want nodes pushed apart", before, after)
	}
	if math.IsNaN(after) || after > 2000 {
		t.Errorf("distance diverged: %v", after)
	}
}

func TestNudgeOrdersVertically(t *testing.T) {
	m := graph.NewModel()
	m.Replace(graph.Graph{
		Nodes: []graph.Node{{ID: 1, X: 480, Y: 300}, {ID: 2, X: 480, Y: 300.5}},
		Links: []graph.Edge{{ID: 1, Source: 1, Target: 2, Force: 3}},
	})
	s := New(DefaultConfig())
	s.Settle(m, 300)
	src, _ := m.Node(1)
	dst, _ := m.Node(2)
	if src.Y >= dst.Y {
		t.Errorf("source y %v not above target y %v", src.Y, dst.Y)
	}
}

func TestNudgeSkipsFixedPairs(t *testing.T) {
	m := pair(true)
	s := New(DefaultConfig())
	s.nudge(m)
	free, _ := m.Node(2)
	if free.Y != 300 {
		t.Errorf("nudge moved the target of a pinned source: y=%v", free.Y)
	}
}

func TestSettleCools(t *testing.T) {
	m := pair(false)
	s := New(DefaultConfig())
	n, err := s.Settle(m, 10000)
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if n == 0 || n >= 10000 {
		t.Errorf("Settle ran %d ticks", n)
	}
	if s.Active() {
		t.Error("simulation still active after settling")
	}

	before, _ := m.Node(2)
	x := before.X
	s.Tick(m)
	if after, _ := m.Node(2); after.X != x {
		t.Error("cold simulation moved a node")
	}
}

func TestRestartAndStop(t *testing.T) {
	s := New(DefaultConfig())
	s.Stop()
	if s.Active() {
		t.Error("stopped simulation is active")
	}
	m := pair(false)
	s.Tick(m)
	if n, _ := m.Node(2); n.X != 490 {
		t.Error("stopped simulation moved a node")
	}
	s.Restart(0.3)
	if !s.Active() || s.Alpha() != 1 {
		t.Errorf("Restart: active %v alpha %v", s.Active(), s.Alpha())
	}
	s.SetTarget(2)
	if s.alphaTarget != 1 {
		t.Errorf("target not clamped: %v", s.alphaTarget)
	}
}

func TestTickNotReentrant(t *testing.T) {
	s := New(DefaultConfig())
	s.ticking = true
	if err := s.Tick(pair(false)); !errors.Is(err, ErrReentrant) {
		t.Errorf("Tick during tick = %v, want ErrReentrant", err)
	}
}

func TestSeed(t *testing.T) {
	m := graph.NewModel()
	m.Replace(graph.Graph{Nodes: []graph.Node{{ID: 1}, {ID: 2}, {ID: 3}, {ID: 4, X: 5, Y: 5}}})
	s := New(DefaultConfig())
	s.Seed(m)

	seen := map[graph.Point]bool{}
	for _, n := range m.Nodes()[:3] {
		p := graph.Point{X: n.X, Y: n.Y}
		if p == (graph.Point{}) || seen[p] {
			t.Errorf("node %d seeded at %+v", n.ID, p)
		}
		seen[p] = true
	}
	if n, _ := m.Node(4); n.X != 5 {
		t.Error("Seed moved a positioned node")
	}
}

func TestVelocitiesPruned(t *testing.T) {
	m := pair(false)
	s := New(DefaultConfig())
	s.Tick(m)
	m.ApplyPatch(graph.Graph{Nodes: []graph.Node{{ID: 1}}}, nil)
	s.Tick(m)
	if _, ok := s.vel[2]; ok {
		t.Error("velocity of a deleted node kept")
	}
}
