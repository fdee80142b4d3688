// Package scene renders the debugger canvas as SVG.
//
// The output mirrors the interactive canvas: five layered groups drawn in
// order, so later layers sit on top of earlier ones.
//
//	link   routed wires, highlighted principal wire in black
//	node   one circle per agent, filled by kind, stroked by its colour tag
//	port   a dot on each node's principal port
//	label  the node label at the centre
//	title  the user caption above the node
//
// Every element carries an id (node-3, link-7, ...) so front ends can map
// clicks back to the model.
package scene

import (
	"bytes"
	"fmt"
	"html"
	"math"

	"github.com/matzehuels/olette/pkg/graph"
	"github.com/matzehuels/olette/pkg/route"
)

// Layer group classes in drawing order.
const (
	LayerLink  = "link"
	LayerNode  = "node"
	LayerPort  = "port"
	LayerLabel = "label"
	LayerTitle = "title"
)

// Layers lists the groups in drawing order.
var Layers = []string{LayerLink, LayerNode, LayerPort, LayerLabel, LayerTitle}

const (
	portRadius   = 3.0
	defaultWidth = "1"
	margin       = 40.0
	fallbackFill = "#666666"
)

// kindFill is the node fill per kind.
var kindFill = map[string]string{
	graph.KindRoot:        "#7fc97f",
	graph.KindLambda:      "#beaed4",
	graph.KindApplication: "#fdc086",
	graph.KindDuplicator:  "#ffff99",
	graph.KindEraser:      "#386cb0",
}

// Fill returns the fill colour used for nodes of kind.
func Fill(kind string) string {
	if c, ok := kindFill[kind]; ok {
		return c
	}
	return fallbackFill
}

// Option configures the renderer.
type Option func(*renderer)

type renderer struct {
	radius        float64
	width, height float64 // fixed frame; zero means fit to content
	background    string
}

// WithRadius sets the node radius. Ports and wires follow it.
func WithRadius(r float64) Option { return func(o *renderer) { o.radius = r } }

// WithFrame renders into a fixed 0,0,w,h viewBox instead of fitting the
// content.
func WithFrame(w, h float64) Option { return func(o *renderer) { o.width, o.height = w, h } }

// WithBackground fills the canvas.
func WithBackground(color string) Option { return func(o *renderer) { o.background = color } }

// RenderSVG draws g.
func RenderSVG(g graph.Graph, opts ...Option) []byte {
	r := renderer{radius: route.DefaultRadius}
	for _, opt := range opts {
		opt(&r)
	}
	if r.radius <= 0 {
		r.radius = route.DefaultRadius
	}

	byID := make(map[graph.NodeID]graph.Node, len(g.Nodes))
	for _, n := range g.Nodes {
		byID[n.ID] = n
	}

	minX, minY, w, h := r.frame(g.Nodes)

	var buf bytes.Buffer
	fmt.Fprintf(&buf, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="%.2f %.2f %.2f %.2f" width="%.0f" height="%.0f">`+"\n",
		minX, minY, w, h, w, h)
	if r.background != "" {
		fmt.Fprintf(&buf, `  <rect x="%.2f" y="%.2f" width="%.2f" height="%.2f" fill="%s"/>`+"\n",
			minX, minY, w, h, attr(r.background))
	}

	renderLinks(&buf, g.Links, byID, r.radius)
	renderNodes(&buf, g.Nodes, r.radius)
	renderPorts(&buf, g.Nodes, r.radius)
	renderLabels(&buf, g.Nodes)
	renderTitles(&buf, g.Nodes, r.radius)

	buf.WriteString("</svg>\n")
	return buf.Bytes()
}

// frame returns the viewBox.
func (r renderer) frame(nodes []graph.Node) (x, y, w, h float64) {
	if r.width > 0 && r.height > 0 {
		return 0, 0, r.width, r.height
	}
	if len(nodes) == 0 {
		return 0, 0, 2 * margin, 2 * margin
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, n := range nodes {
		minX, maxX = min(minX, n.X), max(maxX, n.X)
		minY, maxY = min(minY, n.Y), max(maxY, n.Y)
	}
	// Curved wires reach four radii past their node.
	pad := margin + 4*r.radius
	return minX - pad, minY - pad, maxX - minX + 2*pad, maxY - minY + 2*pad
}

func renderLinks(buf *bytes.Buffer, links []graph.Edge, byID map[graph.NodeID]graph.Node, radius float64) {
	fmt.Fprintf(buf, "  <g class=%q stroke=\"#aaa\">\n", LayerLink)
	for _, e := range links {
		src, okS := byID[e.Source]
		dst, okD := byID[e.Target]
		if !okS || !okD {
			continue
		}
		color := e.Color
		if color == "" {
			color = graph.LinkDefault
		}
		width := e.Width
		if width == "" {
			width = graph.LinkWidthDefault
		}
		p := route.Route(e, src, dst, radius)
		fmt.Fprintf(buf, `    <path id="link-%d" d="%s" fill="transparent" stroke="%s" stroke-width="%s"/>`+"\n",
			e.ID, p.D(), attr(string(color)), attr(width))
	}
	buf.WriteString("  </g>\n")
}

func renderNodes(buf *bytes.Buffer, nodes []graph.Node, radius float64) {
	fmt.Fprintf(buf, "  <g class=%q>\n", LayerNode)
	for _, n := range nodes {
		stroke := n.Color
		if stroke == "" {
			stroke = graph.ColorInert
		}
		width := n.Width
		if width == "" {
			width = defaultWidth
		}
		fmt.Fprintf(buf, `    <circle id="node-%d" cx="%.2f" cy="%.2f" r="%.2f" fill="%s" stroke="%s" stroke-width="%s" data-kind="%s"`,
			n.ID, n.X, n.Y, radius, Fill(n.Kind), attr(string(stroke)), attr(width), attr(n.Kind))
		if n.Fixed {
			buf.WriteString(` data-fixed="true"`)
		}
		buf.WriteString("/>\n")
	}
	buf.WriteString("  </g>\n")
}

func renderPorts(buf *bytes.Buffer, nodes []graph.Node, radius float64) {
	fmt.Fprintf(buf, "  <g class=%q>\n", LayerPort)
	for _, n := range nodes {
		pt, ok := route.PrincipalPort(n, radius)
		if !ok {
			continue
		}
		fmt.Fprintf(buf, `    <circle id="port-%d" cx="%.2f" cy="%.2f" r="%.0f" fill="black"/>`+"\n",
			n.ID, pt.X, pt.Y, portRadius)
	}
	buf.WriteString("  </g>\n")
}

func renderLabels(buf *bytes.Buffer, nodes []graph.Node) {
	fmt.Fprintf(buf, "  <g class=%q font-family=\"Helvetica\" font-size=\"8px\" text-anchor=\"middle\" dominant-baseline=\"central\">\n", LayerLabel)
	for _, n := range nodes {
		if n.Label == "" {
			continue
		}
		fmt.Fprintf(buf, `    <text id="label-%d" x="%.2f" y="%.2f">%s</text>`+"\n",
			n.ID, n.X, n.Y, html.EscapeString(n.Label))
	}
	buf.WriteString("  </g>\n")
}

func renderTitles(buf *bytes.Buffer, nodes []graph.Node, radius float64) {
	fmt.Fprintf(buf, "  <g class=%q font-family=\"Helvetica\" font-size=\"4px\" text-anchor=\"start\" dominant-baseline=\"text-after-edge\">\n", LayerTitle)
	for _, n := range nodes {
		if n.Title == "" {
			continue
		}
		fmt.Fprintf(buf, `    <text id="title-%d" x="%.2f" y="%.2f">%s</text>`+"\n",
			n.ID, n.X+radius, n.Y-radius, html.EscapeString(n.Title))
	}
	buf.WriteString("  </g>\n")
}

func attr(s string) string { return html.EscapeString(s) }
