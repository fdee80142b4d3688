// Package nodelink exports term graphs through Graphviz.
//
// The export keeps the debugger's geometry: every node is written with a
// pinned position (pos="x,y!") in points and laid out with the neato engine,
// which honours pins, so the exported drawing matches the canvas. Graphviz
// only routes the wires.
//
//	Graph → ToDOT() → DOT → RenderSVG() → SVG
//
// Port information is kept as edge head and tail labels when requested,
// which is useful when debugging wiring bugs in the engine.
//
// # Usage
//
//	dot := nodelink.ToDOT(g, nodelink.Options{Ports: true})
//	svg, err := nodelink.RenderSVG(ctx, dot)
//	png, err := nodelink.RenderPNG(ctx, dot, 2)
package nodelink
