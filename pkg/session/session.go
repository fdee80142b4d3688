// Package session ties the debugger components together into one explicit
// context object.
//
// A [Session] owns the current graph model, the selection, the navigation
// history, the engine protocol wrapper, the auto-step scheduler, the layout
// simulation and the persisted slot. Front ends (the terminal UI, the HTTP
// server actor, the headless runner) drive it by calling its commands
// directly.
//
// # Usage
//
//	sess := session.New(session.Options{
//	    Engine: eng,
//	    Slot:   store.NewSlot(st, "default", 0),
//	    Logger: logger,
//	})
//	if _, err := sess.Resume(ctx); err != nil {
//	    logger.Warn("resume failed", "err", err)
//	}
//	if err := sess.Load(ctx, `(\x.x) y`); err != nil {
//	    return err
//	}
//	sess.Select(2)
//	if err := sess.Reduce(ctx); err != nil {
//	    return err
//	}
//
// # Persistence
//
// After every successful load, reduce, navigation and title edit the current
// history snapshot is written to the slot. A failed write is logged as a
// warning; the in-memory step stands.
//
// # Concurrency
//
// A Session is not safe for concurrent use. Exactly one goroutine owns it;
// only [Session.CancelAuto] may be called from elsewhere.
package session

import (
	"context"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/olette/pkg/autostep"
	"github.com/matzehuels/olette/pkg/engine"
	"github.com/matzehuels/olette/pkg/errors"
	"github.com/matzehuels/olette/pkg/graph"
	"github.com/matzehuels/olette/pkg/history"
	"github.com/matzehuels/olette/pkg/layout"
	"github.com/matzehuels/olette/pkg/observability"
	"github.com/matzehuels/olette/pkg/selection"
	"github.com/matzehuels/olette/pkg/store"
)

// Layout temperatures the front end reheats to.
const (
	alphaLoad   = 1.0
	alphaReduce = 0.6
	alphaDrag   = 0.3
)

// Navigation directions reported to hooks.
const (
	DirectionBack    = "back"
	DirectionForward = "forward"
)

// Options configures a new Session.
type Options struct {
	Engine engine.Engine
	Slot   *store.Slot // nil disables persistence
	Layout *layout.Config
	Rule   engine.RuleKind
	Delay  time.Duration // 0 means autostep.DefaultDelay
	Logger *log.Logger
}

// Session is the debugger state for one user.
type Session struct {
	model  *graph.Model
	sel    selection.Controller
	hist   *history.Log
	sync   *engine.Sync
	sched  *autostep.Scheduler
	sim    *layout.Simulation
	slot   *store.Slot
	rule   engine.RuleKind
	force  bool
	logger *log.Logger
}

var _ autostep.Target = (*Session)(nil)

// New creates an empty session. Nothing is loaded until [Session.Load] or
// [Session.Resume].
func New(opts Options) *Session {
	cfg := layout.DefaultConfig()
	if opts.Layout != nil {
		cfg = *opts.Layout
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	rule := opts.Rule
	if rule == "" {
		rule = engine.RuleAuto
	}
	sched := autostep.New()
	if opts.Delay > 0 {
		_ = sched.SetDelay(opts.Delay)
	}
	return &Session{
		model:  graph.NewModel(),
		hist:   history.New(),
		sync:   engine.NewSync(opts.Engine),
		sched:  sched,
		sim:    layout.New(cfg),
		slot:   opts.Slot,
		rule:   rule,
		force:  true,
		logger: logger,
	}
}

// =============================================================================
// Loading
// =============================================================================

// Load parses term and starts a fresh history. On failure the previous graph,
// history and selection are left untouched.
func (s *Session) Load(ctx context.Context, term string) error {
	ctx, span := observability.StartSessionSpan(ctx, "load")
	defer span.End()

	g, err := s.sync.Load(ctx, term)
	observability.Session().OnLoad(ctx, len(g.Nodes), err)
	if err != nil {
		observability.RecordError(span, err)
		return err
	}
	observability.RecordGraphSize(span, len(g.Nodes), len(g.Links))

	s.start(g)
	s.logger.Info("loaded term", "nodes", s.model.Len(), "links", len(s.model.Links()))
	s.persist(ctx)
	return nil
}

// Resume restores the persisted slot: the engine is rebuilt from the stored
// snapshot and the history restarts with that one entry. It reports false
// when there is nothing to resume.
func (s *Session) Resume(ctx context.Context) (bool, error) {
	if s.slot == nil {
		return false, nil
	}
	ctx, span := observability.StartSessionSpan(ctx, "resume")
	defer span.End()

	snapshot, ok, err := s.slot.Load(ctx)
	if err != nil || !ok {
		observability.RecordError(span, err)
		return false, err
	}
	g, err := s.sync.Rebuild(ctx, snapshot)
	if err != nil {
		observability.RecordError(span, err)
		return false, err
	}

	s.start(g)
	s.logger.Info("resumed session", "slot", s.slot.Name(), "nodes", s.model.Len())
	return true, nil
}

// start replaces every piece of state with a freshly loaded graph.
func (s *Session) start(g graph.Graph) {
	s.sched.Reset()
	s.sel.Forget()
	s.model.Replace(g)
	s.sim.Seed(s.model)
	s.restartLayout(alphaLoad)

	s.hist.Reset()
	s.hist.AddHead(s.snapshot())
}

// Resync rebuilds the engine from the current history entry. It recovers
// from a failed navigation, which leaves the engine stale.
func (s *Session) Resync(ctx context.Context) error {
	snapshot, ok := s.hist.Current()
	if !ok {
		return errors.New(errors.ErrCodeNotFound, "nothing loaded")
	}
	g, err := s.sync.Rebuild(ctx, snapshot)
	if err != nil {
		return err
	}
	s.sel.Reset()
	s.model.Replace(g)
	return nil
}

// =============================================================================
// Selection
// =============================================================================

// Select selects id. It returns false for unknown ids.
func (s *Session) Select(id graph.NodeID) bool {
	return s.sel.Select(s.model, id)
}

// Deselect clears the selection.
func (s *Session) Deselect() {
	s.sel.Deselect(s.model)
}

// Selected returns the selected node.
func (s *Session) Selected() (graph.NodeID, bool) {
	return s.sel.NodeID()
}

// Eligible reports whether the selected node may be rewritten.
func (s *Session) Eligible() bool {
	return s.sel.Eligible()
}

// CycleSelection selects the next reducible node, wrapping around.
func (s *Session) CycleSelection() (graph.NodeID, bool) {
	return s.sel.NextReducible(s.model)
}

// Candidates returns every node id in render order.
func (s *Session) Candidates() []graph.NodeID {
	return s.model.IDs()
}

// =============================================================================
// Rewriting
// =============================================================================

// SetRule sets the rule kind used by [Session.Reduce].
func (s *Session) SetRule(rule engine.RuleKind) {
	s.rule = rule
}

// Rule returns the current rule kind.
func (s *Session) Rule() engine.RuleKind { return s.rule }

// Reduce rewrites at the selected node with the current rule kind.
func (s *Session) Reduce(ctx context.Context) error {
	return s.ReduceWith(ctx, s.rule)
}

// ReduceWith rewrites at the selected node with rule. Requests without an
// eligible selection are refused before the engine is contacted. On success
// the patch is merged into the model, new nodes spawn where the selected
// node was, and the result is appended to history. On failure nothing
// changes.
func (s *Session) ReduceWith(ctx context.Context, rule engine.RuleKind) error {
	id, ok := s.sel.NodeID()
	if !ok {
		return errors.New(errors.ErrCodeNoSelection, "no node selected")
	}
	if !s.sel.Eligible() {
		return errors.New(errors.ErrCodeNotEligible, "node %d is not reducible", id)
	}

	ctx, span := observability.StartSessionSpan(ctx, "reduce")
	defer span.End()

	start := time.Now()
	spawn := s.sel.SpawnPoint()
	patch, err := s.sync.Reduce(ctx, s.model, id, rule)
	observability.Session().OnReduce(ctx, int(id), string(rule), len(patch.Nodes), time.Since(start), err)
	if err != nil {
		observability.RecordError(span, err)
		return err
	}

	s.sel.Reset()
	s.model.ApplyPatch(patch, spawn)
	s.hist.Append(s.snapshot())
	s.restartLayout(alphaReduce)
	observability.RecordGraphSize(span, s.model.Len(), len(s.model.Links()))

	s.logger.Debug("reduced", "node", id, "rule", rule, "nodes", s.model.Len())
	s.persist(ctx)
	return nil
}

// =============================================================================
// History
// =============================================================================

// Back restores the previous snapshot. It reports false at the first entry.
func (s *Session) Back(ctx context.Context) (bool, error) {
	return s.navigate(ctx, DirectionBack)
}

// Forward restores the next snapshot. It reports false at the last entry.
func (s *Session) Forward(ctx context.Context) (bool, error) {
	return s.navigate(ctx, DirectionForward)
}

func (s *Session) navigate(ctx context.Context, dir string) (bool, error) {
	move, undo := s.hist.Back, s.hist.Forward
	if dir == DirectionForward {
		move, undo = s.hist.Forward, s.hist.Back
	}
	snapshot, ok := move()
	if !ok {
		return false, nil
	}

	ctx, span := observability.StartSessionSpan(ctx, dir)
	defer span.End()

	g, err := s.sync.Rebuild(ctx, snapshot)
	if err != nil {
		undo()
		observability.RecordError(span, err)
		return false, err
	}

	s.sel.Reset()
	s.model.Replace(g)
	s.restartLayout(alphaReduce)
	observability.Session().OnNavigate(ctx, dir, s.hist.Cursor())

	s.logger.Debug("navigated", "direction", dir, "cursor", s.hist.Cursor(), "entries", s.hist.Len())
	s.persist(ctx)
	return true, nil
}

// SetTitle captions node id and rewrites the current history entry to
// match. The engine receives the title with the next position push.
func (s *Session) SetTitle(ctx context.Context, id graph.NodeID, title string) error {
	if err := errors.ValidateTitle(title); err != nil {
		return err
	}
	if !s.model.SetTitle(id, title) {
		return errors.New(errors.ErrCodeNotFound, "no node %d", id)
	}
	err := s.hist.EditCurrent(func(snapshot []byte) ([]byte, error) {
		g, err := graph.Unmarshal(snapshot)
		if err != nil {
			return nil, err
		}
		for i := range g.Nodes {
			if g.Nodes[i].ID == id {
				g.Nodes[i].Title = title
			}
		}
		return graph.Marshal(g)
	})
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidSnapshot, err, "edit current snapshot")
	}
	s.persist(ctx)
	return nil
}

// =============================================================================
// Auto-step
// =============================================================================

// SetDelay sets the pause between auto-steps.
func (s *Session) SetDelay(d time.Duration) error {
	if err := s.sched.SetDelay(d); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidInput, err, "set delay")
	}
	return nil
}

// Delay returns the pause between auto-steps.
func (s *Session) Delay() time.Duration { return s.sched.Delay() }

// StartAuto starts an auto-step run. It returns false if a run is active or
// the graph is already in normal form.
func (s *Session) StartAuto() bool {
	if s.model.Empty() {
		return false
	}
	return s.sched.Start()
}

// AutoStep performs one auto-step iteration. The owner schedules the next
// call after [Session.Delay] while the outcome is [autostep.Stepped].
func (s *Session) AutoStep(ctx context.Context) (autostep.Outcome, error) {
	out, err := s.sched.Step(ctx, s)
	s.autoStopped(ctx, out, err)
	return out, err
}

// RunAuto starts a run and steps until it ends, sleeping between steps.
func (s *Session) RunAuto(ctx context.Context, onStep func(autostep.Outcome)) (autostep.Outcome, error) {
	if s.model.Empty() {
		return autostep.NotRunning, nil
	}
	out, err := autostep.Run(ctx, s.sched, s, onStep)
	s.autoStopped(ctx, out, err)
	return out, err
}

func (s *Session) autoStopped(ctx context.Context, out autostep.Outcome, err error) {
	switch out {
	case autostep.Stepped, autostep.NotRunning:
		return
	}
	steps := s.sched.Steps()
	observability.Session().OnAutoStop(ctx, out.String(), steps)
	if err != nil {
		s.logger.Warn("auto-step stopped", "outcome", out, "steps", steps, "err", err)
		return
	}
	s.logger.Info("auto-step stopped", "outcome", out, "steps", steps)
}

// CancelAuto requests the running auto-step to stop at its next iteration.
// It is safe to call from any goroutine.
func (s *Session) CancelAuto() {
	s.sched.Cancel()
}

// Cancel stops auto-stepping and clears the selection.
func (s *Session) Cancel() {
	s.sched.Cancel()
	s.sel.Deselect(s.model)
}

// =============================================================================
// Layout
// =============================================================================

// ForceOn releases every node to the layout and reheats it.
func (s *Session) ForceOn() {
	s.force = true
	s.model.UnpinAll()
	s.sim.Restart(1)
}

// ForceOff pins every node where it is and lets the layout cool.
func (s *Session) ForceOff() {
	s.force = false
	s.model.PinAll()
	s.sim.SetTarget(0)
}

// Drag pins node id at (x, y) and warms the layout so neighbours follow.
// Call [Session.DragEnd] when the gesture finishes.
func (s *Session) Drag(id graph.NodeID, x, y float64) bool {
	if !s.model.Pin(id, x, y) {
		return false
	}
	if s.force {
		s.sim.SetTarget(alphaDrag)
	}
	return true
}

// DragEnd lets the layout cool after a drag.
func (s *Session) DragEnd() {
	s.sim.SetTarget(0)
}

// Tick advances the layout by one step.
func (s *Session) Tick() error {
	return s.sim.Tick(s.model)
}

// Settle ticks the layout until it cools or maxTicks is reached.
func (s *Session) Settle(maxTicks int) (int, error) {
	return s.sim.Settle(s.model, maxTicks)
}

// LayoutActive reports whether ticks still move nodes.
func (s *Session) LayoutActive() bool { return s.sim.Active() }

func (s *Session) restartLayout(alpha float64) {
	s.sim.Reheat(alpha)
}

// =============================================================================
// Read Access
// =============================================================================

// Model returns the live model. Front ends read it to render and must not
// mutate it.
func (s *Session) Model() *graph.Model { return s.model }

// Graph returns a copy of the current graph.
func (s *Session) Graph() graph.Graph { return s.model.Graph() }

// Snapshot returns the current history entry.
func (s *Session) Snapshot() ([]byte, bool) { return s.hist.Current() }

// Status is a point-in-time summary for front ends.
type Status struct {
	Loaded     bool            `json:"loaded"`
	Nodes      int             `json:"nodes"`
	Links      int             `json:"links"`
	Reducible  int             `json:"reducible"`
	Selected   *graph.NodeID   `json:"selected,omitempty"`
	Eligible   bool            `json:"eligible"`
	Rule       engine.RuleKind `json:"rule"`
	Cursor     int             `json:"cursor"`
	Entries    int             `json:"entries"`
	CanBack    bool            `json:"can_back"`
	CanForward bool            `json:"can_forward"`
	Auto       string          `json:"auto"`
	Exhausted  bool            `json:"exhausted"`
	Steps      int             `json:"steps"`
	DelayMS    int64           `json:"delay_ms"`
	InSync     bool            `json:"in_sync"`
	Force      bool            `json:"force"`
	Slot       string          `json:"slot,omitempty"`
}

// Status returns the current status.
func (s *Session) Status() Status {
	st := Status{
		Loaded:     !s.model.Empty(),
		Nodes:      s.model.Len(),
		Links:      len(s.model.Links()),
		Eligible:   s.sel.Eligible(),
		Rule:       s.rule,
		Cursor:     s.hist.Cursor(),
		Entries:    s.hist.Len(),
		CanBack:    s.hist.CanBack(),
		CanForward: s.hist.CanForward(),
		Auto:       s.sched.State().String(),
		Exhausted:  s.sched.Exhausted(),
		Steps:      s.sched.Steps(),
		DelayMS:    s.sched.Delay().Milliseconds(),
		InSync:     s.sync.InSync(),
		Force:      s.force,
	}
	selected, ok := s.sel.NodeID()
	if ok {
		st.Selected = &selected
	}
	for _, n := range s.model.Nodes() {
		if n.Reducible() || (ok && n.ID == selected && st.Eligible) {
			st.Reducible++
		}
	}
	if s.slot != nil {
		st.Slot = s.slot.Name()
	}
	return st
}

// =============================================================================
// Persistence
// =============================================================================

func (s *Session) snapshot() []byte {
	data, err := graph.Marshal(s.model.Graph())
	if err != nil {
		// Marshal only fails on unsupported float values.
		s.logger.Error("encode snapshot", "err", err)
		return nil
	}
	return data
}

func (s *Session) persist(ctx context.Context) {
	if s.slot == nil {
		return
	}
	snapshot, ok := s.hist.Current()
	if !ok {
		return
	}
	if err := s.slot.Save(ctx, snapshot); err != nil {
		s.logger.Warn("persist failed", "slot", s.slot.Name(), "err", err)
	}
}

// ParseDelay parses an auto-step delay. Bare numbers are seconds, as typed
// into the timer prompt; anything else is a Go duration.
func ParseDelay(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		if secs < 0 {
			return 0, errors.New(errors.ErrCodeInvalidInput, "negative delay %q", s)
		}
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeInvalidInput, err, "parse delay %q", s)
	}
	if d < 0 {
		return 0, errors.New(errors.ErrCodeInvalidInput, "negative delay %q", s)
	}
	return d, nil
}
