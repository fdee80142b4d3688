package nodelink

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/olette/pkg/graph"
	"github.com/matzehuels/olette/pkg/render"
	"github.com/matzehuels/olette/pkg/render/scene"
)

// Options configures DOT export.
type Options struct {
	// Ports adds the local port index at both ends of every edge.
	Ports bool

	// Titles appends node captions to labels.
	Titles bool
}

// ToDOT converts g to Graphviz DOT with every node pinned at its model
// position. Graphviz uses y-up coordinates, so y is flipped.
func ToDOT(g graph.Graph, opts Options) string {
	var buf bytes.Buffer
	buf.WriteString("graph G {\n")
	buf.WriteString("  layout=neato;\n")
	buf.WriteString("  inputscale=72;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  splines=true;\n")
	buf.WriteString("  node [shape=circle, style=filled, fixedsize=true, width=0.42, fontname=Helvetica, fontsize=8];\n")
	buf.WriteString("  edge [color=\"#708090\", penwidth=2];\n")
	buf.WriteString("\n")

	for _, n := range g.Nodes {
		fmt.Fprintf(&buf, "  %d [%s];\n", n.ID, strings.Join(fmtAttrs(n, fmtLabel(n, opts.Titles)), ", "))
	}

	buf.WriteString("\n")
	for _, e := range g.Links {
		attrs := fmtEdgeAttrs(e, opts.Ports)
		if len(attrs) == 0 {
			fmt.Fprintf(&buf, "  %d -- %d;\n", e.Source, e.Target)
			continue
		}
		fmt.Fprintf(&buf, "  %d -- %d [%s];\n", e.Source, e.Target, strings.Join(attrs, ", "))
	}

	buf.WriteString("}\n")
	return buf.String()
}

func fmtLabel(n graph.Node, titles bool) string {
	label := n.DisplayLabel()
	if titles && n.Title != "" {
		label += "\n" + n.Title
	}
	return label
}

func fmtAttrs(n graph.Node, label string) []string {
	color := n.Color
	if color == "" {
		color = graph.ColorInert
	}
	attrs := []string{
		fmt.Sprintf("label=%q", label),
		fmt.Sprintf("pos=\"%s,%s!\"", fmtCoord(n.X), fmtCoord(-n.Y)),
		fmt.Sprintf("fillcolor=%q", scene.Fill(n.Kind)),
		fmt.Sprintf("color=%q", string(color)),
	}
	if n.Width != "" {
		attrs = append(attrs, fmt.Sprintf("penwidth=%s", n.Width))
	}
	return attrs
}

func fmtEdgeAttrs(e graph.Edge, ports bool) []string {
	var attrs []string
	if e.Color != "" && e.Color != graph.LinkDefault {
		attrs = append(attrs, fmt.Sprintf("color=%q", string(e.Color)))
	}
	if e.Width != "" && e.Width != graph.LinkWidthDefault {
		attrs = append(attrs, fmt.Sprintf("penwidth=%s", e.Width))
	}
	if ports {
		attrs = append(attrs,
			fmt.Sprintf("taillabel=\"%d\"", e.P.S),
			fmt.Sprintf("headlabel=\"%d\"", e.P.T),
		)
	}
	return attrs
}

func fmtCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// RenderSVG renders a DOT graph to SVG using Graphviz's neato engine.
// Returns the SVG bytes ready for display or further conversion with [render.ToPDF] or [render.ToPNG].
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	return renderFormat(ctx, dot, graphviz.SVG)
}

func renderFormat(ctx context.Context, dot string, format graphviz.Format) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()
	gv.SetLayout(graphviz.NEATO)

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, format, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	if format == graphviz.SVG {
		return normalizeViewBox(buf.Bytes()), nil
	}
	return buf.Bytes(), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	newSvg := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)

	return svgTagRe.ReplaceAll(svg, []byte(newSvg))
}

// RenderPDF renders a DOT graph as PDF via SVG conversion.
// This is a convenience wrapper around [RenderSVG] and [render.ToPDF].
//
// Requires librsvg: brew install librsvg (macOS), apt install librsvg2-bin (Linux).
func RenderPDF(ctx context.Context, dot string) ([]byte, error) {
	svg, err := RenderSVG(ctx, dot)
	if err != nil {
		return nil, err
	}
	return render.ToPDF(svg)
}

// RenderPNG renders a DOT graph as PNG via SVG conversion.
// This is a convenience wrapper around [RenderSVG] and [render.ToPNG].
//
// A scale of 2.0 produces a 2x resolution image suitable for high-DPI displays.
//
// Requires librsvg: brew install librsvg (macOS), apt install librsvg2-bin (Linux).
func RenderPNG(ctx context.Context, dot string, scale float64) ([]byte, error) {
	svg, err := RenderSVG(ctx, dot)
	if err != nil {
		return nil, err
	}
	return render.ToPNG(svg, scale)
}
