// Package route computes the render geometry of term-graph wires.
//
// Every node is drawn as a circle of a fixed radius with ports on its
// boundary. A wire leaves its source through the source port and enters its
// target through the target port. When the chord between the two boundary
// points bends sharply away from either port normal, or the wire is a
// self-loop, the wire is drawn as two smooth cubic halves that meet between
// the two control anchors. Otherwise it is a straight segment.
//
// Routing is a pure function of the endpoint coordinates and the wire's port
// angles, so repeated calls during layout ticks yield the same path for the
// same positions.
//
//	p := route.Route(edge, src, dst, route.DefaultRadius)
//	fmt.Println(p.D()) // "M10.61,10.61 S42.43,42.43 ..."
package route
