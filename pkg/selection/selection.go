// Package selection tracks the selected node and gates rewrites on it.
//
// Selecting a node paints it [graph.ColorSelected] and highlights its
// principal wire, the incident edge attached to port 0. The node's prior
// colour is remembered: it is restored on the next selection change, and it
// decides eligibility. A node is eligible for a rewrite exactly when the
// engine had marked it reducible before it was selected.
package selection

import "github.com/matzehuels/olette/pkg/graph"

// Controller holds at most one selected node. The zero value is ready to use.
type Controller struct {
	node      *graph.NodeID
	prevColor graph.Color
	lastPos   *graph.Point
	wire      int // highlighted link index, valid when hasWire
	hasWire   bool
	cycle     int
}

// Select selects id in m. Any previous selection is restored first. Unknown
// ids leave the selection unchanged and return false.
func (c *Controller) Select(m *graph.Model, id graph.NodeID) bool {
	n, ok := m.Node(id)
	if !ok {
		return false
	}
	if c.node != nil && *c.node == id {
		return true
	}
	c.restore(m)

	c.node = &id
	c.prevColor = n.Color
	c.lastPos = &graph.Point{X: n.X, Y: n.Y}
	m.SetNodeColor(id, graph.ColorSelected)

	c.hasWire = false
	if i := m.PrincipalLink(id); i >= 0 {
		m.SetLinkStyle(i, graph.LinkHighlight, graph.LinkWidthHighlight)
		c.wire = i
		c.hasWire = true
	}
	return true
}

// restore repaints the selected node and its highlighted wire.
func (c *Controller) restore(m *graph.Model) {
	if c.node == nil {
		return
	}
	m.SetNodeColor(*c.node, c.prevColor)
	if c.hasWire {
		m.SetLinkStyle(c.wire, graph.LinkDefault, graph.LinkWidthDefault)
	}
}

// Eligible reports whether a node is selected and the engine had marked it
// reducible.
func (c *Controller) Eligible() bool {
	return c.node != nil && c.prevColor == graph.ColorReducible
}

// Deselect restores the selected node's colours and clears the selection.
// The last position is kept for spawning.
func (c *Controller) Deselect(m *graph.Model) {
	c.restore(m)
	c.clear()
}

// Reset drops the selection without repainting. Used when the model has been
// replaced or patched and colours already come from the engine.
func (c *Controller) Reset() {
	c.clear()
}

func (c *Controller) clear() {
	c.node = nil
	c.prevColor = ""
	c.hasWire = false
}

// NodeID returns the selected node.
func (c *Controller) NodeID() (graph.NodeID, bool) {
	if c.node == nil {
		return 0, false
	}
	return *c.node, true
}

// LastPosition returns the position the most recently selected node had when
// it was selected. It survives [Controller.Reset] so that nodes spawned by a
// rewrite can be placed where the rewrite happened.
func (c *Controller) LastPosition() (graph.Point, bool) {
	if c.lastPos == nil {
		return graph.Point{}, false
	}
	return *c.lastPos, true
}

// SpawnPoint returns the last position as a pointer for [graph.Model.ApplyPatch].
func (c *Controller) SpawnPoint() *graph.Point {
	if c.lastPos == nil {
		return nil
	}
	p := *c.lastPos
	return &p
}

// Forget clears the last position. Called on a fresh load.
func (c *Controller) Forget() {
	c.clear()
	c.lastPos = nil
	c.cycle = 0
}

// NextReducible selects the next node the engine marked reducible, in render
// order, wrapping around. It returns false if there is none.
func (c *Controller) NextReducible(m *graph.Model) (graph.NodeID, bool) {
	var ids []graph.NodeID
	for _, n := range m.Nodes() {
		color := n.Color
		if c.node != nil && n.ID == *c.node {
			color = c.prevColor
		}
		if color == graph.ColorReducible {
			ids = append(ids, n.ID)
		}
	}
	if len(ids) == 0 {
		return 0, false
	}
	id := ids[c.cycle%len(ids)]
	c.cycle = (c.cycle + 1) % len(ids)
	c.Select(m, id)
	return id, true
}
