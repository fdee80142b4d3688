package graph

import "slices"

// =============================================================================
// Model - Authoritative Current Graph
// =============================================================================

// Model holds the current graph and its per-node render attributes.
// It is mutated in place by the session that owns it.
type Model struct {
	nodes []Node
	links []Edge
	index map[NodeID]int
}

// NewModel creates an empty model.
func NewModel() *Model {
	return &Model{index: map[NodeID]int{}}
}

// Replace swaps the model contents for a copy of g. Used after load, rebuild
// and history navigation. Pinned positions are normalized from the fixed flag.
func (m *Model) Replace(g Graph) {
	g = g.Clone()
	for i := range g.Nodes {
		g.Nodes[i].normalizePin()
	}
	m.nodes = g.Nodes
	m.links = g.Links
	m.reindex()
}

// ApplyPatch merges the engine's post-rewrite graph into the model.
//
// Nodes only present in the patch are insertions and are placed at spawn when
// it is non-nil (new nodes have no spatial history of their own). Nodes absent
// from the patch are deleted. Surviving nodes keep their position and pin
// state and take every other attribute from the patch. Surviving nodes keep
// their render order; insertions are appended in patch order. The link set is
// replaced wholesale.
func (m *Model) ApplyPatch(patch Graph, spawn *Point) {
	incoming := make(map[NodeID]Node, len(patch.Nodes))
	for _, n := range patch.Nodes {
		incoming[n.ID] = n.clone()
	}

	next := make([]Node, 0, len(patch.Nodes))
	for _, cur := range m.nodes {
		upd, ok := incoming[cur.ID]
		if !ok {
			continue
		}
		upd.X, upd.Y = cur.X, cur.Y
		upd.FX, upd.FY = cur.FX, cur.FY
		upd.Fixed = cur.Fixed
		next = append(next, upd)
		delete(incoming, cur.ID)
	}
	for _, n := range patch.Nodes {
		ins, ok := incoming[n.ID]
		if !ok {
			continue
		}
		if spawn != nil {
			ins.X, ins.Y = spawn.X, spawn.Y
		}
		ins.normalizePin()
		next = append(next, ins)
	}

	m.nodes = next
	m.links = slices.Clone(patch.Links)
	if m.links == nil {
		m.links = []Edge{}
	}
	m.reindex()
}

func (m *Model) reindex() {
	m.index = make(map[NodeID]int, len(m.nodes))
	for i, n := range m.nodes {
		m.index[n.ID] = i
	}
}

// =============================================================================
// Read Access
// =============================================================================

// Graph returns a deep copy of the current graph.
func (m *Model) Graph() Graph {
	return Graph{Nodes: m.nodes, Links: m.links}.Clone()
}

// Len returns the number of nodes.
func (m *Model) Len() int { return len(m.nodes) }

// Empty reports whether the model holds no graph.
func (m *Model) Empty() bool { return len(m.nodes) == 0 }

// Nodes returns the live node slice in render order. Callers may update
// positions in place (the layout integrator does) but must not append or
// reorder.
func (m *Model) Nodes() []Node { return m.nodes }

// Links returns the live link slice.
func (m *Model) Links() []Edge { return m.links }

// Node returns the node with the given id.
func (m *Model) Node(id NodeID) (*Node, bool) {
	i, ok := m.index[id]
	if !ok {
		return nil, false
	}
	return &m.nodes[i], true
}

// Index returns the render position of id, or -1.
func (m *Model) Index(id NodeID) int {
	if i, ok := m.index[id]; ok {
		return i
	}
	return -1
}

// IDs returns all node ids in render order.
func (m *Model) IDs() []NodeID {
	ids := make([]NodeID, len(m.nodes))
	for i, n := range m.nodes {
		ids[i] = n.ID
	}
	return ids
}

// Positions returns the presentation state pushed to the engine before a reduce.
func (m *Model) Positions() []NodeState {
	out := make([]NodeState, len(m.nodes))
	for i, n := range m.nodes {
		out[i] = NodeState{
			ID:    n.ID,
			X:     n.X,
			Y:     n.Y,
			Fixed: n.Fixed,
			Label: n.Label,
			Title: n.Title,
		}
	}
	return out
}

// PrincipalLink returns the index of the link attached to port 0 of id, or -1.
func (m *Model) PrincipalLink(id NodeID) int {
	for i := range m.links {
		if m.links[i].Principal(id) {
			return i
		}
	}
	return -1
}

// =============================================================================
// Edits
// =============================================================================

// SetNodeColor repaints a node. It returns false for unknown ids.
func (m *Model) SetNodeColor(id NodeID, c Color) bool {
	n, ok := m.Node(id)
	if !ok {
		return false
	}
	n.Color = c
	return true
}

// SetLinkStyle restyles the link at index i.
func (m *Model) SetLinkStyle(i int, c Color, width string) {
	if i < 0 || i >= len(m.links) {
		return
	}
	m.links[i].Color = c
	m.links[i].Width = width
}

// SetTitle sets the caption of a node. It returns false for unknown ids.
func (m *Model) SetTitle(id NodeID, title string) bool {
	n, ok := m.Node(id)
	if !ok {
		return false
	}
	n.Title = title
	return true
}

// Pin fixes a node at (x, y).
func (m *Model) Pin(id NodeID, x, y float64) bool {
	n, ok := m.Node(id)
	if !ok {
		return false
	}
	n.X, n.Y = x, y
	n.Fixed = true
	n.normalizePin()
	return true
}

// Unpin releases a node to the layout.
func (m *Model) Unpin(id NodeID) bool {
	n, ok := m.Node(id)
	if !ok {
		return false
	}
	n.Fixed = false
	n.normalizePin()
	return true
}

// PinAll fixes every node at its current position.
func (m *Model) PinAll() {
	for i := range m.nodes {
		m.nodes[i].Fixed = true
		m.nodes[i].normalizePin()
	}
}

// UnpinAll releases every node to the layout.
func (m *Model) UnpinAll() {
	for i := range m.nodes {
		m.nodes[i].Fixed = false
		m.nodes[i].normalizePin()
	}
}
