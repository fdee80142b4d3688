// Package render provides visual output for term graphs.
//
// # Overview
//
// Two renderers share this package tree:
//
//   - [scene]: the debugger canvas as SVG. Nodes are drawn where the model
//     has them, wires are routed through their ports.
//   - [nodelink]: a Graphviz export of the same graph with every node pinned
//     at its model position.
//
// # Format Conversion
//
// The [ToPDF] and [ToPNG] functions convert any SVG to other formats using
// the external rsvg-convert tool (from librsvg). Both renderers use them.
//
//	svg := scene.RenderSVG(g)
//	png, err := render.ToPNG(svg, 2.0)  // 2x scale
package render
