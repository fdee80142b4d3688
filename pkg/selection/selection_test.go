package selection

import (
	"testing"

	"github.com/matzehuels/olette/pkg/graph"
)

func model() *graph.Model {
	m := graph.NewModel()
	m.Replace(graph.Graph{
		Nodes: []graph.Node{
			{ID: 1, Kind: graph.KindRoot, Color: graph.ColorInert, X: 1, Y: 2},
			{ID: 2, Kind: graph.KindApplication, Color: graph.ColorReducible, X: 3, Y: 4},
			{ID: 3, Kind: graph.KindLambda, Color: graph.ColorInert, X: 5, Y: 6},
			{ID: 4, Kind: graph.KindDuplicator, Color: graph.ColorReducible, X: 7, Y: 8},
		},
		Links: []graph.Edge{
			{ID: 1, Source: 1, Target: 2, P: graph.Ports[int]{S: 0, T: 1}},
			{ID: 2, Source: 2, Target: 3, P: graph.Ports[int]{S: 0, T: 0}},
			{ID: 3, Source: 4, Target: 3, P: graph.Ports[int]{S: 1, T: 2}},
		},
	})
	return m
}

func node(t *testing.T, m *graph.Model, id graph.NodeID) *graph.Node {
	t.Helper()
	n, ok := m.Node(id)
	if !ok {
		t.Fatalf("node %d missing", id)
	}
	return n
}

func TestSelectPaintsAndHighlights(t *testing.T) {
	m := model()
	var c Controller

	if !c.Select(m, 2) {
		t.Fatal("Select(2) = false")
	}
	if node(t, m, 2).Color != graph.ColorSelected {
		t.Errorf("selected node color = %q", node(t, m, 2).Color)
	}
	if l := m.Links()[1]; l.Color != graph.LinkHighlight || l.Width != graph.LinkWidthHighlight {
		t.Errorf("principal wire not highlighted: %+v", l)
	}
	if l := m.Links()[0]; l.Color != "" {
		t.Errorf("non-principal wire restyled: %+v", l)
	}
	if pos, ok := c.LastPosition(); !ok || pos.X != 3 || pos.Y != 4 {
		t.Errorf("LastPosition() = %+v, %v", pos, ok)
	}
}

func TestSelectRestoresPrevious(t *testing.T) {
	m := model()
	var c Controller
	c.Select(m, 2)
	c.Select(m, 3)

	if node(t, m, 2).Color != graph.ColorReducible {
		t.Errorf("previous node color = %q, want restored", node(t, m, 2).Color)
	}
	// Link 1 is principal for both 2 and 3; it stays highlighted for 3.
	if l := m.Links()[1]; l.Color != graph.LinkHighlight {
		t.Errorf("wire of new selection = %+v", l)
	}
	c.Select(m, 1)
	if l := m.Links()[1]; l.Color != graph.LinkDefault || l.Width != graph.LinkWidthDefault {
		t.Errorf("wire not restored to default: %+v", l)
	}
	if l := m.Links()[0]; l.Color != graph.LinkHighlight {
		t.Errorf("wire of node 1 not highlighted: %+v", l)
	}
}

func TestSelectUnknown(t *testing.T) {
	m := model()
	var c Controller
	c.Select(m, 2)
	if c.Select(m, 99) {
		t.Fatal("Select(99) = true")
	}
	if id, ok := c.NodeID(); !ok || id != 2 {
		t.Errorf("selection changed to %d, %v", id, ok)
	}
}

func TestEligibility(t *testing.T) {
	tests := []struct {
		name string
		id   graph.NodeID
		want bool
	}{
		{"Reducible", 2, true},
		{"Inert", 1, false},
		{"OtherReducible", 4, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := model()
			var c Controller
			c.Select(m, tt.id)
			if got := c.Eligible(); got != tt.want {
				t.Errorf("Eligible() = %v, want %v", got, tt.want)
			}
		})
	}

	var c Controller
	if c.Eligible() {
		t.Error("empty selection is eligible")
	}
}

func TestReselectKeepsEligibility(t *testing.T) {
	m := model()
	var c Controller
	c.Select(m, 2)
	c.Select(m, 2)
	if !c.Eligible() {
		t.Error("selecting the same node twice lost eligibility")
	}
}

func TestDeselectAndReset(t *testing.T) {
	m := model()
	var c Controller
	c.Select(m, 2)
	c.Deselect(m)
	if _, ok := c.NodeID(); ok {
		t.Error("Deselect kept selection")
	}
	if node(t, m, 2).Color != graph.ColorReducible {
		t.Errorf("Deselect did not restore color: %q", node(t, m, 2).Color)
	}
	if _, ok := c.LastPosition(); !ok {
		t.Error("Deselect dropped the last position")
	}

	c.Select(m, 4)
	c.Reset()
	if node(t, m, 4).Color != graph.ColorSelected {
		t.Error("Reset repainted the model")
	}
	if c.Eligible() {
		t.Error("Reset kept eligibility")
	}
	if sp := c.SpawnPoint(); sp == nil || sp.X != 7 {
		t.Errorf("SpawnPoint() = %+v", sp)
	}

	c.Forget()
	if c.SpawnPoint() != nil {
		t.Error("Forget kept the spawn point")
	}
}

func TestNextReducibleWraps(t *testing.T) {
	m := model()
	var c Controller
	want := []graph.NodeID{2, 4, 2, 4}
	for i, w := range want {
		id, ok := c.NextReducible(m)
		if !ok || id != w {
			t.Fatalf("step %d: NextReducible() = %d, %v, want %d", i, id, ok, w)
		}
		if !c.Eligible() {
			t.Fatalf("step %d: cycled selection not eligible", i)
		}
	}
}

func TestNextReducibleNone(t *testing.T) {
	m := graph.NewModel()
	m.Replace(graph.Graph{Nodes: []graph.Node{{ID: 1, Color: graph.ColorInert}}})
	var c Controller
	if _, ok := c.NextReducible(m); ok {
		t.Error("NextReducible found a node in an inert graph")
	}
}
