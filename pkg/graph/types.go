package graph

import (
	"fmt"
	"slices"
)

// =============================================================================
// Constants - Single Source of Truth
// =============================================================================

// Node kinds emitted by the engine.
const (
	KindRoot        = "root"
	KindLambda      = "lambda"
	KindApplication = "application"
	KindDuplicator  = "duplicator"
	KindEraser      = "eraser"
)

// Color is a render state tag. Node colors are assigned by the engine and
// double as the rewrite-eligibility marker; link colors are client-side.
type Color string

// Node color tags.
const (
	ColorReducible Color = "black" // engine marker: a rewrite may be anchored here
	ColorInert     Color = "white"
	ColorSelected  Color = "red"
)

// Link color tags.
const (
	LinkDefault   Color = "#708090"
	LinkHighlight Color = "black"
)

// Stroke widths used for links.
const (
	LinkWidthDefault   = "2"
	LinkWidthHighlight = "3"
)

// =============================================================================
// Graph - Engine Wire Format
// =============================================================================

// NodeID identifies a node. Ids are assigned by the engine and stay stable
// across a single reduction step.
type NodeID int

// Graph is the node-link format exchanged with the engine and stored in
// history snapshots. Node order is render order.
type Graph struct {
	Nodes []Node `json:"nodes" bson:"nodes"`
	Links []Edge `json:"links" bson:"links"`
}

// Node is one agent of the term graph together with its render attributes.
type Node struct {
	ID    NodeID    `json:"id" bson:"id"`
	Kind  string    `json:"kind" bson:"kind"`
	Label string    `json:"label" bson:"label"`
	Title string    `json:"title" bson:"title"`
	X     float64   `json:"x" bson:"x"`
	Y     float64   `json:"y" bson:"y"`
	FX    *float64  `json:"fx,omitempty" bson:"fx,omitempty"` // pinned x; nil = free
	FY    *float64  `json:"fy,omitempty" bson:"fy,omitempty"` // pinned y; nil = free
	Fixed bool      `json:"fixed" bson:"fixed"`
	Color Color     `json:"color,omitempty" bson:"color,omitempty"`
	Width string    `json:"width,omitempty" bson:"width,omitempty"`
	Ports []float64 `json:"ports" bson:"ports"`         // port angles in degrees, port 0 is principal
	Wires []int     `json:"p,omitempty" bson:"p,omitempty"` // engine wire ids per port, opaque
}

// Reducible reports whether the engine marked the node as a rewrite site.
func (n *Node) Reducible() bool { return n.Color == ColorReducible }

// DisplayLabel returns the label if set, otherwise the kind.
func (n *Node) DisplayLabel() string {
	if n.Label != "" {
		return n.Label
	}
	return n.Kind
}

// Pinned reports whether the node has a pinned position.
func (n *Node) Pinned() bool { return n.FX != nil && n.FY != nil }

// normalizePin enforces fixed == (fx, fy != nil), pinning at the current position.
func (n *Node) normalizePin() {
	if n.Fixed {
		x, y := n.X, n.Y
		n.FX, n.FY = &x, &y
		return
	}
	n.FX, n.FY = nil, nil
}

func (n Node) clone() Node {
	c := n
	c.Ports = slices.Clone(n.Ports)
	c.Wires = slices.Clone(n.Wires)
	if n.FX != nil {
		x := *n.FX
		c.FX = &x
	}
	if n.FY != nil {
		y := *n.FY
		c.FY = &y
	}
	return c
}

// Ports holds a pair of per-endpoint values: angles in degrees for
// [Edge.Ports], local port indices for [Edge.P].
type Ports[V any] struct {
	S V `json:"s" bson:"s"`
	T V `json:"t" bson:"t"`
}

// Edge is a wire between two node ports. Edges are directed for rendering
// only; parallel edges and self-loops are allowed.
type Edge struct {
	ID     int            `json:"id" bson:"id"`
	Source NodeID         `json:"source" bson:"source"`
	Target NodeID         `json:"target" bson:"target"`
	Ports  Ports[float64] `json:"ports" bson:"ports"`
	P      Ports[int]     `json:"p" bson:"p"`
	Force  float64        `json:"force" bson:"force"`
	Color  Color          `json:"color,omitempty" bson:"color,omitempty"`
	Width  string         `json:"width,omitempty" bson:"width,omitempty"`
}

// SelfLoop reports whether both ends of the edge sit on the same node.
func (e *Edge) SelfLoop() bool { return e.Source == e.Target }

// Principal reports whether the edge leaves id through its port 0.
func (e *Edge) Principal(id NodeID) bool {
	return (e.Source == id && e.P.S == 0) || (e.Target == id && e.P.T == 0)
}

// NodeState is the presentation state pushed to the engine before a reduce.
type NodeState struct {
	ID    NodeID  `json:"id"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Fixed bool    `json:"fixed"`
	Label string  `json:"label"`
	Title string  `json:"title"`
}

// Point is a 2D coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// =============================================================================
// Graph Helpers
// =============================================================================

// Clone returns a deep copy of g.
func (g Graph) Clone() Graph {
	out := Graph{
		Nodes: make([]Node, len(g.Nodes)),
		Links: slices.Clone(g.Links),
	}
	for i, n := range g.Nodes {
		out.Nodes[i] = n.clone()
	}
	if out.Links == nil {
		out.Links = []Edge{}
	}
	return out
}

// Validate checks that node ids are unique and that every edge endpoint
// refers to a node of the graph.
func (g Graph) Validate() error {
	seen := make(map[NodeID]struct{}, len(g.Nodes))
	for _, n := range g.Nodes {
		if _, dup := seen[n.ID]; dup {
			return fmt.Errorf("%w: %d", ErrDuplicateNodeID, n.ID)
		}
		seen[n.ID] = struct{}{}
	}
	for i, e := range g.Links {
		if _, ok := seen[e.Source]; !ok {
			return fmt.Errorf("%w: link %d source %d", ErrUnknownEndpoint, i, e.Source)
		}
		if _, ok := seen[e.Target]; !ok {
			return fmt.Errorf("%w: link %d target %d", ErrUnknownEndpoint, i, e.Target)
		}
	}
	return nil
}

// Reducible returns the ids of all nodes the engine marked as rewrite sites,
// in render order.
func (g Graph) Reducible() []NodeID {
	var ids []NodeID
	for i := range g.Nodes {
		if g.Nodes[i].Reducible() {
			ids = append(ids, g.Nodes[i].ID)
		}
	}
	return ids
}
