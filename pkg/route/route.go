package route

import (
	"math"
	"strconv"
	"strings"

	"github.com/matzehuels/olette/pkg/graph"
)

const (
	// DefaultRadius is the node circle radius ports sit on.
	DefaultRadius = 15.0

	// Threshold is the turning angle at which a wire starts to curve.
	Threshold = math.Pi / 4

	anchorLoop  = 3.0
	anchorWire  = 4.0
	angleEpsRad = 1e-9
)

// Path is the geometry of one routed wire.
type Path struct {
	Curved bool

	// Start and End are the boundary points on the source and target circles.
	Start, End graph.Point

	// StartCtrl and EndCtrl are the control anchors along each port normal;
	// Mid is the point both curved halves meet at. Unset for straight paths.
	StartCtrl, EndCtrl, Mid graph.Point
}

// D returns the path as SVG path data.
func (p Path) D() string {
	var b strings.Builder
	b.WriteByte('M')
	writePoint(&b, p.Start)
	if !p.Curved {
		b.WriteByte('L')
		writePoint(&b, p.End)
		return b.String()
	}
	b.WriteByte('S')
	writePoint(&b, p.StartCtrl)
	b.WriteByte(' ')
	writePoint(&b, p.Mid)
	b.WriteByte('M')
	writePoint(&b, p.End)
	b.WriteByte('S')
	writePoint(&b, p.EndCtrl)
	b.WriteByte(' ')
	writePoint(&b, p.Mid)
	return b.String()
}

func writePoint(b *strings.Builder, pt graph.Point) {
	b.WriteString(strconv.FormatFloat(pt.X, 'f', 2, 64))
	b.WriteByte(',')
	b.WriteString(strconv.FormatFloat(pt.Y, 'f', 2, 64))
}

// Route computes the path of e between src and dst. A non-positive radius
// falls back to [DefaultRadius].
func Route(e graph.Edge, src, dst graph.Node, radius float64) Path {
	if radius <= 0 {
		radius = DefaultRadius
	}
	sn := Normal(e.Ports.S)
	tn := Normal(e.Ports.T)

	p := Path{
		Start: graph.Point{X: src.X + radius*sn.X, Y: src.Y + radius*sn.Y},
		End:   graph.Point{X: dst.X + radius*tn.X, Y: dst.Y + radius*tn.Y},
	}

	sTurn := Turn(graph.Point{X: src.X, Y: src.Y}, p.Start, p.End)
	tTurn := Turn(graph.Point{X: dst.X, Y: dst.Y}, p.End, p.Start)
	loop := e.SelfLoop()
	if !loop && !Sharp(sTurn) && !Sharp(tTurn) {
		return p
	}

	k := anchorWire
	if loop {
		k = anchorLoop
	}
	p.Curved = true
	p.StartCtrl = graph.Point{X: src.X + k*radius*sn.X, Y: src.Y + k*radius*sn.Y}
	p.EndCtrl = graph.Point{X: dst.X + k*radius*tn.X, Y: dst.Y + k*radius*tn.Y}
	p.Mid = graph.Point{
		X: (p.StartCtrl.X + p.EndCtrl.X) / 2,
		Y: (p.StartCtrl.Y + p.EndCtrl.Y) / 2,
	}
	return p
}

// Normal returns the unit vector of a port angle given in degrees.
func Normal(deg float64) graph.Point {
	rad := deg * math.Pi / 180
	return graph.Point{X: math.Cos(rad), Y: math.Sin(rad)}
}

// Turn returns the signed angle in [-π, π] between the port normal at
// centre (pointing to port) and the chord from centre to far.
func Turn(centre, port, far graph.Point) float64 {
	a := math.Atan2(far.Y-centre.Y, far.X-centre.X) -
		math.Atan2(port.Y-centre.Y, port.X-centre.X)
	for a > math.Pi {
		a -= 2 * math.Pi
	}
	for a < -math.Pi {
		a += 2 * math.Pi
	}
	return a
}

// Sharp reports whether a turning angle reaches [Threshold]. The boundary is
// inclusive.
func Sharp(turn float64) bool {
	return math.Abs(turn) >= Threshold-angleEpsRad
}

// PortDot returns the position of port i of n, or false if n has no such port.
func PortDot(n graph.Node, i int, radius float64) (graph.Point, bool) {
	if i < 0 || i >= len(n.Ports) {
		return graph.Point{}, false
	}
	if radius <= 0 {
		radius = DefaultRadius
	}
	u := Normal(n.Ports[i])
	return graph.Point{X: n.X + radius*u.X, Y: n.Y + radius*u.Y}, true
}

// PrincipalPort returns the position of port 0, the port rewrites act through.
func PrincipalPort(n graph.Node, radius float64) (graph.Point, bool) {
	return PortDot(n, 0, radius)
}
