package session_test

import (
	"bytes"
	"context"
	"os"
	"testing"
	"time"

	"github.com/matzehuels/olette/pkg/autostep"
	"github.com/matzehuels/olette/pkg/engine"
	"github.com/matzehuels/olette/pkg/engine/enginetest"
	"github.com/matzehuels/olette/pkg/errors"
	"github.com/matzehuels/olette/pkg/graph"
	"github.com/matzehuels/olette/pkg/session"
	"github.com/matzehuels/olette/pkg/store"
)

// chain is a root feeding two stacked redexes: nodes 2 and 3 are reducible.
func chain() graph.Graph {
	return graph.Graph{
		Nodes: []graph.Node{
			{ID: 1, Kind: graph.KindRoot, Color: graph.ColorInert, X: 100, Y: 20, Ports: []float64{90}},
			{ID: 2, Kind: graph.KindApplication, Color: graph.ColorReducible, X: 100, Y: 80, Ports: []float64{270, 30, 150}},
			{ID: 3, Kind: graph.KindApplication, Color: graph.ColorReducible, X: 140, Y: 140, Ports: []float64{270, 30, 150}},
			{ID: 4, Kind: graph.KindLambda, Color: graph.ColorInert, X: 180, Y: 200, Ports: []float64{90, 330, 210}},
		},
		Links: []graph.Edge{
			{ID: 1, Source: 1, Target: 2, P: graph.Ports[int]{S: 0, T: 0}, Force: 1},
			{ID: 2, Source: 2, Target: 3, P: graph.Ports[int]{S: 1, T: 0}, Force: 1},
			{ID: 3, Source: 3, Target: 4, P: graph.Ports[int]{S: 1, T: 0}, Force: 1},
		},
	}
}

type fixture struct {
	eng  *enginetest.Engine
	slot *store.Slot
	sess *session.Session
	ctx  context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	eng := enginetest.New()
	eng.AddTerm("chain", chain())
	slot := store.NewSlot(store.NewMemoryStore(), "test", time.Hour)
	return &fixture{
		eng:  eng,
		slot: slot,
		sess: session.New(session.Options{Engine: eng, Slot: slot}),
		ctx:  context.Background(),
	}
}

func (f *fixture) load(t *testing.T) {
	t.Helper()
	if err := f.sess.Load(f.ctx, "chain"); err != nil {
		t.Fatalf("Load: %v", err)
	}
}

func (f *fixture) reduce(t *testing.T, id graph.NodeID) {
	t.Helper()
	if !f.sess.Select(id) {
		t.Fatalf("Select(%d) = false", id)
	}
	if err := f.sess.Reduce(f.ctx); err != nil {
		t.Fatalf("Reduce(%d): %v", id, err)
	}
}

func (f *fixture) persisted(t *testing.T) []byte {
	t.Helper()
	data, ok, err := f.slot.Load(f.ctx)
	if err != nil || !ok {
		t.Fatalf("slot.Load = %v, %v", ok, err)
	}
	return data
}

func current(t *testing.T, s *session.Session) []byte {
	t.Helper()
	data, ok := s.Snapshot()
	if !ok {
		t.Fatal("no current snapshot")
	}
	return data
}

func TestLoad(t *testing.T) {
	f := newFixture(t)
	f.load(t)

	st := f.sess.Status()
	if !st.Loaded || st.Nodes != 4 || st.Links != 3 {
		t.Errorf("Status = %+v", st)
	}
	if st.Entries != 1 || st.Cursor != 0 || st.CanBack || st.CanForward {
		t.Errorf("history after load = %+v", st)
	}
	if st.Reducible != 2 || !st.InSync || st.Slot != "test" {
		t.Errorf("Status = %+v", st)
	}
	if !bytes.Equal(f.persisted(t), current(t, f.sess)) {
		t.Error("slot does not hold the loaded snapshot")
	}
}

func TestLoadMalformedKeepsState(t *testing.T) {
	f := newFixture(t)
	f.load(t)
	f.sess.Select(2)
	before := current(t, f.sess)

	err := f.sess.Load(f.ctx, "(((")
	if !errors.Is(err, errors.ErrCodeMalformedTerm) {
		t.Fatalf("Load error = %v, want MALFORMED_TERM", err)
	}
	if !bytes.Equal(current(t, f.sess), before) {
		t.Error("history changed after a failed load")
	}
	if id, ok := f.sess.Selected(); !ok || id != 2 {
		t.Errorf("selection lost after failed load: %v %v", id, ok)
	}
}

func TestReduceGate(t *testing.T) {
	f := newFixture(t)
	f.load(t)

	if err := f.sess.Reduce(f.ctx); !errors.Is(err, errors.ErrCodeNoSelection) {
		t.Errorf("Reduce without selection = %v, want NO_SELECTION", err)
	}
	f.sess.Select(1)
	if err := f.sess.Reduce(f.ctx); !errors.Is(err, errors.ErrCodeNotEligible) {
		t.Errorf("Reduce on inert node = %v, want NOT_ELIGIBLE", err)
	}
	if n := f.eng.Count(engine.OpReduce) + f.eng.Count(engine.OpUpdate); n != 0 {
		t.Errorf("engine contacted %d times for refused reduces", n)
	}
	if f.sess.Status().Entries != 1 {
		t.Error("refused reduce touched history")
	}
}

func TestReduceAppendsHistory(t *testing.T) {
	f := newFixture(t)
	f.load(t)
	f.sess.SetRule(engine.RuleDuplicate)
	f.reduce(t, 2)

	st := f.sess.Status()
	if st.Entries != 2 || st.Cursor != 1 || !st.CanBack {
		t.Errorf("history after reduce = %+v", st)
	}
	if st.Selected != nil {
		t.Errorf("selection survived reduce: %v", *st.Selected)
	}
	n, _ := f.sess.Model().Node(2)
	if n.Reducible() {
		t.Error("node 2 still reducible after rewrite")
	}
	calls := f.eng.Calls()
	if got := calls[len(calls)-1]; got != "reduce 2 duplicate" {
		t.Errorf("last engine call = %q", got)
	}
	if !bytes.Equal(f.persisted(t), current(t, f.sess)) {
		t.Error("slot does not hold the reduced snapshot")
	}
}

func TestReduceSpawnsAtSelection(t *testing.T) {
	f := newFixture(t)
	f.eng.Script(3, enginetest.Replace(
		graph.Node{ID: 9, Kind: graph.KindLambda, Color: graph.ColorInert, Ports: []float64{90}},
	))
	f.load(t)
	f.reduce(t, 3)

	m := f.sess.Model()
	if _, ok := m.Node(3); ok {
		t.Fatal("node 3 survived its replacement")
	}
	n, ok := m.Node(9)
	if !ok {
		t.Fatal("node 9 missing")
	}
	if n.X != 140 || n.Y != 140 {
		t.Errorf("node 9 at (%v, %v), want (140, 140)", n.X, n.Y)
	}
}

func TestReduceEngineFailure(t *testing.T) {
	f := newFixture(t)
	f.load(t)
	before := current(t, f.sess)
	f.eng.FailNext(engine.OpReduce, errors.New(errors.ErrCodeEngine, "boom"))

	f.sess.Select(2)
	if err := f.sess.Reduce(f.ctx); !errors.Is(err, errors.ErrCodeEngine) {
		t.Fatalf("Reduce error = %v, want ENGINE_ERROR", err)
	}
	if st := f.sess.Status(); st.Entries != 1 || !bytes.Equal(current(t, f.sess), before) {
		t.Errorf("failed reduce touched history: %+v", st)
	}
	if !f.sess.Eligible() {
		t.Error("selection lost after failed reduce")
	}
}

func TestBackForward(t *testing.T) {
	f := newFixture(t)
	f.load(t)
	s0 := current(t, f.sess)
	f.reduce(t, 2)
	s1 := current(t, f.sess)
	f.reduce(t, 3)
	s2 := current(t, f.sess)

	ok, err := f.sess.Back(f.ctx)
	if err != nil || !ok {
		t.Fatalf("Back = %v, %v", ok, err)
	}
	if !bytes.Equal(current(t, f.sess), s1) {
		t.Error("Back did not restore the previous snapshot")
	}
	got, _ := graph.Marshal(f.sess.Graph())
	if !bytes.Equal(got, s1) {
		t.Error("model differs from the restored snapshot")
	}
	if !bytes.Equal(f.persisted(t), s1) {
		t.Error("navigation was not persisted")
	}

	f.sess.Back(f.ctx)
	if ok, _ := f.sess.Back(f.ctx); ok {
		t.Error("Back at the first entry moved")
	}
	if !bytes.Equal(current(t, f.sess), s0) {
		t.Error("cursor moved past the first entry")
	}

	f.sess.Forward(f.ctx)
	f.sess.Forward(f.ctx)
	if ok, _ := f.sess.Forward(f.ctx); ok {
		t.Error("Forward at the last entry moved")
	}
	if !bytes.Equal(current(t, f.sess), s2) {
		t.Error("Forward did not return to the newest snapshot")
	}
	if n := f.eng.Count(engine.OpRebuild); n != 4 {
		t.Errorf("rebuilds = %d, want 4", n)
	}
}

func TestBranchTruncates(t *testing.T) {
	f := newFixture(t)
	f.load(t)
	f.reduce(t, 2)
	f.reduce(t, 3)
	f.sess.Back(f.ctx)
	f.sess.Back(f.ctx)

	f.reduce(t, 3)
	st := f.sess.Status()
	if st.Entries != 2 || st.Cursor != 1 || st.CanForward {
		t.Errorf("history after branching = %+v", st)
	}
	n, _ := f.sess.Model().Node(2)
	if !n.Reducible() {
		t.Error("branch lost the untouched redex")
	}
}

func TestNavigationFailure(t *testing.T) {
	f := newFixture(t)
	f.load(t)
	f.reduce(t, 2)
	before := current(t, f.sess)

	f.eng.FailNext(engine.OpRebuild, errors.New(errors.ErrCodeEngine, "rebuild refused"))
	ok, err := f.sess.Back(f.ctx)
	if err == nil || ok {
		t.Fatalf("Back = %v, %v, want error", ok, err)
	}
	if st := f.sess.Status(); st.Cursor != 1 || st.InSync {
		t.Errorf("Status after failed Back = %+v", st)
	}
	if !bytes.Equal(current(t, f.sess), before) {
		t.Error("failed navigation changed the current entry")
	}

	f.sess.Select(3)
	if err := f.sess.Reduce(f.ctx); !errors.Is(err, errors.ErrCodeDesync) {
		t.Fatalf("Reduce on stale engine = %v, want ENGINE_DESYNC", err)
	}
	if err := f.sess.Resync(f.ctx); err != nil {
		t.Fatalf("Resync: %v", err)
	}
	f.reduce(t, 3)
}

func TestSetTitle(t *testing.T) {
	f := newFixture(t)
	f.load(t)
	f.reduce(t, 2)

	if err := f.sess.SetTitle(f.ctx, 4, "K combinator"); err != nil {
		t.Fatalf("SetTitle: %v", err)
	}
	if st := f.sess.Status(); st.Entries != 2 {
		t.Errorf("SetTitle added an entry: %+v", st)
	}
	g, err := graph.Unmarshal(current(t, f.sess))
	if err != nil {
		t.Fatal(err)
	}
	if g.Nodes[3].Title != "K combinator" {
		t.Errorf("snapshot title = %q", g.Nodes[3].Title)
	}
	if !bytes.Equal(f.persisted(t), current(t, f.sess)) {
		t.Error("title edit was not persisted")
	}

	f.sess.Back(f.ctx)
	f.sess.Forward(f.ctx)
	if n, _ := f.sess.Model().Node(4); n.Title != "K combinator" {
		t.Errorf("title lost across navigation: %q", n.Title)
	}

	if err := f.sess.SetTitle(f.ctx, 42, "x"); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("SetTitle(unknown) = %v, want NOT_FOUND", err)
	}
	if err := f.sess.SetTitle(f.ctx, 4, "bad\x00title"); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("SetTitle(control) = %v, want INVALID_INPUT", err)
	}
}

func TestCycleSelection(t *testing.T) {
	f := newFixture(t)
	if _, ok := f.sess.CycleSelection(); ok {
		t.Error("CycleSelection on an empty session selected something")
	}
	f.load(t)

	var got []graph.NodeID
	for range 3 {
		id, ok := f.sess.CycleSelection()
		if !ok {
			t.Fatal("CycleSelection found nothing")
		}
		got = append(got, id)
	}
	want := []graph.NodeID{2, 3, 2}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("cycle = %v, want %v", got, want)
		}
	}
	if !f.sess.Eligible() {
		t.Error("cycled selection is not eligible")
	}
}

func TestAutoStepTerminates(t *testing.T) {
	f := newFixture(t)
	f.load(t)

	if !f.sess.StartAuto() {
		t.Fatal("StartAuto = false")
	}
	if f.sess.StartAuto() {
		t.Error("StartAuto while running = true")
	}

	steps := 0
	for {
		out, err := f.sess.AutoStep(f.ctx)
		if err != nil {
			t.Fatalf("AutoStep: %v", err)
		}
		if out != autostep.Stepped {
			if out != autostep.Exhausted {
				t.Fatalf("outcome = %v, want exhausted", out)
			}
			break
		}
		steps++
		if steps > 10 {
			t.Fatal("auto-step did not terminate")
		}
	}
	if steps != 2 {
		t.Errorf("steps = %d, want 2", steps)
	}
	st := f.sess.Status()
	if !st.Exhausted || st.Auto != "idle" || st.Entries != 3 {
		t.Errorf("Status = %+v", st)
	}
	if f.sess.StartAuto() {
		t.Error("StartAuto on normal form = true")
	}

	f.load(t)
	if !f.sess.StartAuto() {
		t.Error("fresh load did not clear the exhausted latch")
	}
}

func TestRunAuto(t *testing.T) {
	f := newFixture(t)
	f.load(t)
	if err := f.sess.SetDelay(0); err != nil {
		t.Fatal(err)
	}

	var outcomes []autostep.Outcome
	out, err := f.sess.RunAuto(f.ctx, func(o autostep.Outcome) { outcomes = append(outcomes, o) })
	if err != nil || out != autostep.Exhausted {
		t.Fatalf("RunAuto = %v, %v", out, err)
	}
	if len(outcomes) != 3 {
		t.Errorf("outcomes = %v", outcomes)
	}
	if n := f.eng.Count(engine.OpReduce); n != 2 {
		t.Errorf("reduces = %d, want 2", n)
	}
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	f.load(t)
	f.sess.StartAuto()
	f.sess.Select(3)

	f.sess.Cancel()
	out, err := f.sess.AutoStep(f.ctx)
	if err != nil || out != autostep.Halted {
		t.Fatalf("AutoStep after Cancel = %v, %v", out, err)
	}
	if _, ok := f.sess.Selected(); ok {
		t.Error("Cancel kept the selection")
	}
	if n, _ := f.sess.Model().Node(3); n.Color != graph.ColorReducible {
		t.Errorf("deselected node colour = %q", n.Color)
	}
	if f.eng.Count(engine.OpReduce) != 0 {
		t.Error("cancelled run reduced")
	}
}

func TestSetDelay(t *testing.T) {
	f := newFixture(t)
	if f.sess.Delay() != autostep.DefaultDelay {
		t.Errorf("default delay = %v", f.sess.Delay())
	}
	if err := f.sess.SetDelay(-time.Second); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("SetDelay(-1s) = %v, want INVALID_INPUT", err)
	}
	if err := f.sess.SetDelay(3 * time.Second); err != nil || f.sess.Status().DelayMS != 3000 {
		t.Errorf("SetDelay(3s) = %v, status %+v", err, f.sess.Status())
	}
}

func TestParseDelay(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"1.5", 1500 * time.Millisecond, false},
		{" 2 ", 2 * time.Second, false},
		{"0", 0, false},
		{"250ms", 250 * time.Millisecond, false},
		{"-1", 0, true},
		{"-1s", 0, true},
		{"soon", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := session.ParseDelay(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseDelay(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseDelay(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestResume(t *testing.T) {
	f := newFixture(t)
	f.load(t)
	f.reduce(t, 2)
	saved := current(t, f.sess)

	eng := enginetest.New()
	next := session.New(session.Options{Engine: eng, Slot: f.slot})
	ok, err := next.Resume(f.ctx)
	if err != nil || !ok {
		t.Fatalf("Resume = %v, %v", ok, err)
	}
	if st := next.Status(); st.Entries != 1 || !st.InSync || st.Nodes != 4 {
		t.Errorf("Status after resume = %+v", st)
	}
	if eng.Count(engine.OpRebuild) != 1 {
		t.Errorf("engine calls = %v", eng.Calls())
	}
	exported, _ := graph.Marshal(eng.Export())
	if !bytes.Equal(exported, saved) {
		t.Error("engine does not hold the resumed snapshot")
	}

	next.Select(3)
	if err := next.Reduce(f.ctx); err != nil {
		t.Errorf("Reduce after resume: %v", err)
	}
}

func TestResumeEmpty(t *testing.T) {
	f := newFixture(t)
	ok, err := f.sess.Resume(f.ctx)
	if err != nil || ok {
		t.Errorf("Resume on empty slot = %v, %v", ok, err)
	}
	if f.sess.StartAuto() {
		t.Error("StartAuto on empty session = true")
	}

	bare := session.New(session.Options{Engine: enginetest.New()})
	if ok, err := bare.Resume(f.ctx); ok || err != nil {
		t.Errorf("Resume without slot = %v, %v", ok, err)
	}
}

type failingStore struct{ *store.MemoryStore }

func (failingStore) Set(context.Context, *store.Record) error { return os.ErrPermission }

func TestPersistFailureIsNotFatal(t *testing.T) {
	eng := enginetest.New()
	eng.AddTerm("chain", chain())
	slot := store.NewSlot(failingStore{store.NewMemoryStore()}, "test", time.Hour)
	sess := session.New(session.Options{Engine: eng, Slot: slot})
	ctx := context.Background()

	if err := sess.Load(ctx, "chain"); err != nil {
		t.Fatalf("Load with failing store: %v", err)
	}
	sess.Select(2)
	if err := sess.Reduce(ctx); err != nil {
		t.Fatalf("Reduce with failing store: %v", err)
	}
	if sess.Status().Entries != 2 {
		t.Error("persist failure undid the step")
	}
}

func TestForceAndDrag(t *testing.T) {
	f := newFixture(t)
	f.load(t)

	f.sess.ForceOff()
	for _, n := range f.sess.Model().Nodes() {
		if !n.Fixed || !n.Pinned() {
			t.Errorf("node %d free after ForceOff", n.ID)
		}
	}
	if f.sess.Status().Force {
		t.Error("Status.Force after ForceOff")
	}
	for range 50 {
		if err := f.sess.Tick(); err != nil {
			t.Fatal(err)
		}
	}
	if n, _ := f.sess.Model().Node(3); n.X != 140 || n.Y != 140 {
		t.Errorf("pinned node moved to (%v, %v)", n.X, n.Y)
	}

	f.sess.ForceOn()
	for _, n := range f.sess.Model().Nodes() {
		if n.Fixed || n.Pinned() {
			t.Errorf("node %d pinned after ForceOn", n.ID)
		}
	}

	if !f.sess.Drag(4, 300, 50) {
		t.Fatal("Drag = false")
	}
	f.sess.Tick()
	if n, _ := f.sess.Model().Node(4); n.X != 300 || n.Y != 50 || !n.Fixed {
		t.Errorf("dragged node = %+v", n)
	}
	f.sess.DragEnd()
	if f.sess.Drag(42, 0, 0) {
		t.Error("Drag(unknown) = true")
	}

	if _, err := f.sess.Settle(1000); err != nil {
		t.Fatal(err)
	}
	if f.sess.LayoutActive() {
		t.Error("layout still active after Settle")
	}
}
