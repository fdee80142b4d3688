package engine_test

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/matzehuels/olette/pkg/engine"
	"github.com/matzehuels/olette/pkg/engine/enginetest"
	"github.com/matzehuels/olette/pkg/errors"
	"github.com/matzehuels/olette/pkg/graph"
)

func churchTwo() graph.Graph {
	return graph.Graph{
		Nodes: []graph.Node{
			{ID: 1, Kind: graph.KindRoot, Label: "ℝ", Color: graph.ColorInert, X: 0, Y: 0, Ports: []float64{90}, Wires: []int{10}},
			{ID: 2, Kind: graph.KindApplication, Color: graph.ColorReducible, X: 10, Y: 40, Ports: []float64{270, 30, 150}, Wires: []int{10, 11, 12}},
			{ID: 3, Kind: graph.KindLambda, Label: "λf", Color: graph.ColorInert, X: 30, Y: 80, Fixed: true, Ports: []float64{90, 330, 210}, Wires: []int{11, 13, 13}},
			{ID: 4, Kind: graph.KindEraser, Color: graph.ColorInert, X: -20, Y: 80, Ports: []float64{90}, Wires: []int{12}},
		},
		Links: []graph.Edge{
			{ID: 10, Source: 1, Target: 2, Ports: graph.Ports[float64]{S: 90, T: 270}, P: graph.Ports[int]{S: 0, T: 0}, Force: 1},
			{ID: 11, Source: 2, Target: 3, Ports: graph.Ports[float64]{S: 30, T: 90}, P: graph.Ports[int]{S: 1, T: 0}, Force: 1},
			{ID: 12, Source: 2, Target: 4, Ports: graph.Ports[float64]{S: 150, T: 90}, P: graph.Ports[int]{S: 2, T: 0}},
			{ID: 13, Source: 3, Target: 3, Ports: graph.Ports[float64]{S: 330, T: 210}, P: graph.Ports[int]{S: 1, T: 2}},
		},
	}
}

func setup(t *testing.T) (*enginetest.Engine, *engine.Sync, *graph.Model) {
	t.Helper()
	e := enginetest.New()
	e.AddTerm("two", churchTwo())
	s := engine.NewSync(e)
	g, err := s.Load(context.Background(), "two")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	m := graph.NewModel()
	m.Replace(g)
	return e, s, m
}

func TestParseRuleKind(t *testing.T) {
	tests := []struct {
		in      string
		want    engine.RuleKind
		wantErr bool
	}{
		{"", engine.RuleAuto, false},
		{"auto", engine.RuleAuto, false},
		{"duplicate", engine.RuleDuplicate, false},
		{"cancel", engine.RuleCancel, false},
		{"beta", "", true},
		{"AUTO", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := engine.ParseRuleKind(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseRuleKind(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseRuleKind(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	_, s, m := setup(t)
	if !s.InSync() {
		t.Error("Load should leave the engine in sync")
	}
	if m.Len() != 4 {
		t.Errorf("loaded %d nodes, want 4", m.Len())
	}
}

func TestLoadMalformed(t *testing.T) {
	tests := []struct {
		name      string
		term      string
		wantCalls int
	}{
		{"Empty", "", 0},
		{"Unknown", "λx.", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := enginetest.New()
			s := engine.NewSync(e)
			_, err := s.Load(context.Background(), tt.term)
			if !errors.Is(err, errors.ErrCodeMalformedTerm) {
				t.Fatalf("Load error = %v, want MALFORMED_TERM", err)
			}
			if n := len(e.Calls()); n != tt.wantCalls {
				t.Errorf("engine calls = %d, want %d", n, tt.wantCalls)
			}
			if s.InSync() {
				t.Error("failed load marked engine in sync")
			}
		})
	}
}

func TestReducePushesFirst(t *testing.T) {
	e, s, m := setup(t)
	m.Pin(2, 99, 98)

	patch, err := s.Reduce(context.Background(), m, 2, engine.RuleDuplicate)
	if err != nil {
		t.Fatalf("Reduce: %v", err)
	}
	want := []string{"load", "update", "reduce 2 duplicate"}
	if got := e.Calls(); fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("calls = %v, want %v", got, want)
	}

	ups := e.Updates()
	if len(ups) != 1 || len(ups[0]) != 4 {
		t.Fatalf("updates = %+v", ups)
	}
	if st := ups[0][1]; st.ID != 2 || st.X != 99 || !st.Fixed {
		t.Errorf("pushed state = %+v, want pinned node 2 at 99", st)
	}
	if len(patch.Nodes) != 4 {
		t.Errorf("patch has %d nodes", len(patch.Nodes))
	}
}

func TestReduceRefusedWhenStale(t *testing.T) {
	e, s, m := setup(t)
	s.Invalidate()

	_, err := s.Reduce(context.Background(), m, 2, engine.RuleAuto)
	if !errors.Is(err, errors.ErrCodeDesync) {
		t.Fatalf("Reduce error = %v, want ENGINE_DESYNC", err)
	}
	if n := e.Count("update") + e.Count("reduce"); n != 0 {
		t.Errorf("stale reduce touched the engine %d times", n)
	}
}

func TestEngineFailureNotRetried(t *testing.T) {
	e, s, m := setup(t)
	e.FailNext(engine.OpReduce, fmt.Errorf("engine crashed"))

	_, err := s.Reduce(context.Background(), m, 2, engine.RuleAuto)
	if !errors.Is(err, errors.ErrCodeEngine) {
		t.Fatalf("Reduce error = %v, want ENGINE_ERROR", err)
	}
	if n := e.Count("reduce"); n != 1 {
		t.Errorf("reduce called %d times, want 1", n)
	}
	if !s.InSync() {
		t.Error("failed reduce should not mark the engine stale")
	}
}

func TestPushFailureAbortsReduce(t *testing.T) {
	e, s, m := setup(t)
	e.FailNext(engine.OpUpdate, fmt.Errorf("closed pipe"))

	if _, err := s.Reduce(context.Background(), m, 2, engine.RuleAuto); err == nil {
		t.Fatal("expected error")
	}
	if n := e.Count("reduce"); n != 0 {
		t.Errorf("reduce issued after failed push")
	}
}

func TestRebuildInvalidSnapshot(t *testing.T) {
	e, s, _ := setup(t)
	_, err := s.Rebuild(context.Background(), []byte("{nodes"))
	if !errors.Is(err, errors.ErrCodeInvalidSnapshot) {
		t.Fatalf("Rebuild error = %v, want INVALID_SNAPSHOT", err)
	}
	if e.Count("rebuild") != 0 {
		t.Error("invalid snapshot reached the engine")
	}
}

func TestRebuildRestoresSync(t *testing.T) {
	_, s, m := setup(t)
	s.Invalidate()
	data, _ := graph.Marshal(m.Graph())
	if _, err := s.Rebuild(context.Background(), data); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if !s.InSync() {
		t.Error("Rebuild should restore sync")
	}
	if _, err := s.Reduce(context.Background(), m, 2, engine.RuleAuto); err != nil {
		t.Errorf("Reduce after rebuild: %v", err)
	}
}

func TestRebuildRoundTrip(t *testing.T) {
	graphs := map[string]graph.Graph{
		"Empty":  {},
		"Church": churchTwo(),
		"SelfLoopOnly": {
			Nodes: []graph.Node{{ID: 7, Kind: graph.KindDuplicator, Ports: []float64{0, 120, 240}}},
			Links: []graph.Edge{{ID: 1, Source: 7, Target: 7, P: graph.Ports[int]{S: 1, T: 2}}},
		},
	}
	for name, g := range graphs {
		t.Run(name, func(t *testing.T) {
			e := enginetest.New()
			s := engine.NewSync(e)

			data, err := graph.Marshal(g)
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}
			if _, err := s.Rebuild(context.Background(), data); err != nil {
				t.Fatalf("Rebuild: %v", err)
			}
			exported, err := graph.Marshal(e.Export())
			if err != nil {
				t.Fatalf("Marshal export: %v", err)
			}
			if !bytes.Equal(data, exported) {
				t.Errorf("round trip differs:\n got %s\nwant %s", exported, data)
			}
		})
	}
}
