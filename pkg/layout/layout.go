// Package layout is the force-directed integrator that positions free nodes.
//
// The simulation follows the usual velocity-Verlet scheme of d3-force:
// every tick applies link springs, pairwise charge repulsion and weak
// centring pulls to node velocities, decays the velocities and moves the
// free nodes. Pinned nodes stay at their pin. After integration each wire
// between two free nodes nudges its source up and its target down in
// proportion to its force weight, which makes terms read top to bottom.
//
// The simulation reads and writes node positions of a [graph.Model] in
// place. It is driven by its owner's loop and is not re-entrant.
package layout

import (
	"errors"
	"math"

	"github.com/matzehuels/olette/pkg/graph"
)

// ErrReentrant is returned when Tick is called from within a tick.
var ErrReentrant = errors.New("layout tick is not re-entrant")

// Config holds the force parameters.
type Config struct {
	Width, Height float64 // canvas size; forces pull towards its centre

	Charge         float64 // many-body strength; negative repels
	LinkDistance   float64
	LinkScale      float64 // link strength = edge force * LinkScale
	CenterStrength float64
	Nudge          float64 // vertical nudge factor per unit alpha

	VelocityDecay float64
	AlphaMin      float64
	AlphaDecay    float64
}

// DefaultConfig returns the parameters of the original debugger front end.
func DefaultConfig() Config {
	return Config{
		Width:          960,
		Height:         600,
		Charge:         -600,
		LinkDistance:   80,
		LinkScale:      1.0 / 3,
		CenterStrength: 0.1,
		Nudge:          6,
		VelocityDecay:  0.4,
		AlphaMin:       0.001,
		AlphaDecay:     1 - math.Pow(0.001, 1.0/300),
	}
}

// Simulation is the integrator state between ticks.
type Simulation struct {
	cfg         Config
	alpha       float64
	alphaTarget float64
	stopped     bool
	ticking     bool
	vel         map[graph.NodeID]graph.Point
}

// New returns a hot simulation.
func New(cfg Config) *Simulation {
	return &Simulation{
		cfg:   cfg,
		alpha: 1,
		vel:   map[graph.NodeID]graph.Point{},
	}
}

// Center returns the point the centring forces pull to.
func (s *Simulation) Center() graph.Point {
	return graph.Point{X: s.cfg.Width / 2, Y: s.cfg.Height / 2}
}

// Alpha returns the current temperature.
func (s *Simulation) Alpha() float64 { return s.alpha }

// Active reports whether ticks still move nodes.
func (s *Simulation) Active() bool {
	return !s.stopped && (s.alpha >= s.cfg.AlphaMin || s.alphaTarget >= s.cfg.AlphaMin)
}

// Restart reheats the simulation to alpha 1, cooling towards target.
func (s *Simulation) Restart(target float64) {
	s.stopped = false
	s.alpha = 1
	s.alphaTarget = max(0, min(1, target))
}

// Reheat sets the temperature to alpha and lets it cool to zero.
func (s *Simulation) Reheat(alpha float64) {
	s.stopped = false
	s.alpha = max(0, min(1, alpha))
	s.alphaTarget = 0
}

// SetTarget changes the temperature the simulation cools or warms towards
// without reheating it.
func (s *Simulation) SetTarget(target float64) {
	s.stopped = false
	s.alphaTarget = max(0, min(1, target))
}

// Stop freezes the simulation until the next Restart.
func (s *Simulation) Stop() { s.stopped = true }

// Seed places free nodes that sit exactly on the origin on a phyllotaxis
// spiral around the centre so that the first ticks have distances to work
// with.
func (s *Simulation) Seed(m *graph.Model) {
	c := s.Center()
	angle := math.Pi * (3 - math.Sqrt(5))
	nodes := m.Nodes()
	for i := range nodes {
		n := &nodes[i]
		if n.Fixed || n.X != 0 || n.Y != 0 {
			continue
		}
		r := 10 * math.Sqrt(0.5+float64(i))
		a := float64(i) * angle
		n.X = c.X + r*math.Cos(a)
		n.Y = c.Y + r*math.Sin(a)
	}
}

// Tick advances the simulation by one step.
func (s *Simulation) Tick(m *graph.Model) error {
	if s.ticking {
		return ErrReentrant
	}
	if !s.Active() {
		return nil
	}
	s.ticking = true
	defer func() { s.ticking = false }()

	s.alpha += (s.alphaTarget - s.alpha) * s.cfg.AlphaDecay
	nodes := m.Nodes()
	s.prune(nodes)

	s.applyLinks(m)
	s.applyCharge(nodes)
	s.applyCenter(nodes)
	s.integrate(nodes)
	s.nudge(m)
	return nil
}

// Settle ticks until the simulation cools or maxTicks is reached and
// returns the number of ticks run.
func (s *Simulation) Settle(m *graph.Model, maxTicks int) (int, error) {
	n := 0
	for n < maxTicks && s.Active() && s.alpha >= s.cfg.AlphaMin {
		if err := s.Tick(m); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func (s *Simulation) prune(nodes []graph.Node) {
	if len(s.vel) <= len(nodes) {
		return
	}
	live := make(map[graph.NodeID]bool, len(nodes))
	for _, n := range nodes {
		live[n.ID] = true
	}
	for id := range s.vel {
		if !live[id] {
			delete(s.vel, id)
		}
	}
}

func (s *Simulation) applyLinks(m *graph.Model) {
	links := m.Links()
	if len(links) == 0 {
		return
	}
	degree := make(map[graph.NodeID]int, m.Len())
	for _, l := range links {
		degree[l.Source]++
		degree[l.Target]++
	}
	for _, l := range links {
		if l.SelfLoop() || l.Force == 0 {
			continue
		}
		src, ok1 := m.Node(l.Source)
		dst, ok2 := m.Node(l.Target)
		if !ok1 || !ok2 {
			continue
		}
		sv, tv := s.vel[src.ID], s.vel[dst.ID]
		dx := dst.X + tv.X - src.X - sv.X
		dy := dst.Y + tv.Y - src.Y - sv.Y
		if dx == 0 && dy == 0 {
			dx, dy = jiggle(int(l.ID)), jiggle(int(l.ID)+1)
		}
		d := math.Hypot(dx, dy)
		k := (d - s.cfg.LinkDistance) / d * s.alpha * l.Force * s.cfg.LinkScale
		dx *= k
		dy *= k
		bias := float64(degree[src.ID]) / float64(degree[src.ID]+degree[dst.ID])
		tv.X -= dx * bias
		tv.Y -= dy * bias
		s.vel[dst.ID] = tv
		sv.X += dx * (1 - bias)
		sv.Y += dy * (1 - bias)
		s.vel[src.ID] = sv
	}
}

func (s *Simulation) applyCharge(nodes []graph.Node) {
	for i := range nodes {
		vi := s.vel[nodes[i].ID]
		for j := range nodes {
			if i == j {
				continue
			}
			dx := nodes[j].X - nodes[i].X
			dy := nodes[j].Y - nodes[i].Y
			if dx == 0 && dy == 0 {
				dx, dy = jiggle(i+j), jiggle(i-j)
			}
			l2 := max(dx*dx+dy*dy, 1)
			w := s.cfg.Charge * s.alpha / l2
			vi.X += dx * w
			vi.Y += dy * w
		}
		s.vel[nodes[i].ID] = vi
	}
}

func (s *Simulation) applyCenter(nodes []graph.Node) {
	c := s.Center()
	k := s.cfg.CenterStrength * s.alpha
	for _, n := range nodes {
		v := s.vel[n.ID]
		v.X += (c.X - n.X) * k
		v.Y += (c.Y - n.Y) * k
		s.vel[n.ID] = v
	}
}

func (s *Simulation) integrate(nodes []graph.Node) {
	decay := 1 - s.cfg.VelocityDecay
	for i := range nodes {
		n := &nodes[i]
		if n.Pinned() {
			n.X, n.Y = *n.FX, *n.FY
			s.vel[n.ID] = graph.Point{}
			continue
		}
		v := s.vel[n.ID]
		v.X *= decay
		v.Y *= decay
		n.X += v.X
		n.Y += v.Y
		s.vel[n.ID] = v
	}
}

func (s *Simulation) nudge(m *graph.Model) {
	k := s.cfg.Nudge * s.alpha
	for _, l := range m.Links() {
		src, ok1 := m.Node(l.Source)
		dst, ok2 := m.Node(l.Target)
		if !ok1 || !ok2 || src.Fixed || dst.Fixed {
			continue
		}
		src.Y -= l.Force * k
		dst.Y += l.Force * k
	}
}

// jiggle returns a tiny deterministic offset to separate coincident nodes.
func jiggle(seed int) float64 {
	return (float64(seed%7) - 3.5) * 1e-6
}
