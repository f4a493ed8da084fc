package curve

import (
	"math"

	"coaster-builder/internal/common"

	"gonum.org/v1/gonum/interp"
	"gonum.org/v1/gonum/spatial/r3"
)

// spline is a parametric path over [0, span()].
type spline interface {
	// span is the upper bound of the native parameter.
	span() float64
	// segments is the number of control point intervals.
	segments() int
	// eval returns position and first derivative at u.
	eval(u float64) (pos, deriv r3.Vec)
}

// hermite is one cubic segment over u in [0,1].
type hermite struct {
	p0, p1 r3.Vec
	m0, m1 r3.Vec
}

func (h hermite) eval(u float64) (r3.Vec, r3.Vec) {
	u2 := u * u
	u3 := u2 * u

	h00 := 2*u3 - 3*u2 + 1
	h10 := u3 - 2*u2 + u
	h01 := -2*u3 + 3*u2
	h11 := u3 - u2

	d00 := 6*u2 - 6*u
	d10 := 3*u2 - 4*u + 1
	d01 := -6*u2 + 6*u
	d11 := 3*u2 - 2*u

	pos := r3.Add(
		r3.Add(r3.Scale(h00, h.p0), r3.Scale(h10, h.m0)),
		r3.Add(r3.Scale(h01, h.p1), r3.Scale(h11, h.m1)),
	)
	deriv := r3.Add(
		r3.Add(r3.Scale(d00, h.p0), r3.Scale(d10, h.m0)),
		r3.Add(r3.Scale(d01, h.p1), r3.Scale(d11, h.m1)),
	)
	return pos, deriv
}

// catmullRom is a Catmull-Rom spline stored as Hermite segments, one per
// control point interval. The parameter u runs from 0 to len(segs).
type catmullRom struct {
	segs []hermite
}

func newCatmullRom(pts []r3.Vec, closed bool, alpha float64) *catmullRom {
	n := len(pts)
	at := func(i int) r3.Vec {
		if closed {
			return pts[((i%n)+n)%n]
		}
		switch {
		case i < 0:
			// Phantom start: reflect first segment.
			return r3.Sub(r3.Scale(2, pts[0]), pts[1])
		case i >= n:
			// Phantom end: reflect last segment.
			return r3.Sub(r3.Scale(2, pts[n-1]), pts[n-2])
		}
		return pts[i]
	}

	count := n - 1
	if closed {
		count = n
	}
	cr := &catmullRom{segs: make([]hermite, 0, count)}
	for i := 0; i < count; i++ {
		cr.segs = append(cr.segs, catmullRomSegment(at(i-1), at(i), at(i+1), at(i+2), alpha))
	}
	return cr
}

// catmullRomSegment converts the p1->p2 span of a non-uniform Catmull-Rom
// spline into Hermite form. The end tangents are the central-difference
// estimates of the alpha-parametrised knot sequence, rescaled to u in [0,1].
func catmullRomSegment(p0, p1, p2, p3 r3.Vec, alpha float64) hermite {
	d01 := knotInterval(p0, p1, alpha)
	d12 := knotInterval(p1, p2, alpha)
	d23 := knotInterval(p2, p3, alpha)

	m1 := r3.Add(
		r3.Sub(r3.Scale(1/d01, r3.Sub(p1, p0)), r3.Scale(1/(d01+d12), r3.Sub(p2, p0))),
		r3.Scale(1/d12, r3.Sub(p2, p1)),
	)
	m2 := r3.Add(
		r3.Sub(r3.Scale(1/d12, r3.Sub(p2, p1)), r3.Scale(1/(d12+d23), r3.Sub(p3, p1))),
		r3.Scale(1/d23, r3.Sub(p3, p2)),
	)
	return hermite{p0: p1, p1: p2, m0: r3.Scale(d12, m1), m1: r3.Scale(d12, m2)}
}

func knotInterval(a, b r3.Vec, alpha float64) float64 {
	d := math.Pow(common.Distance(a, b), alpha)
	if d < 1e-9 {
		return 1e-9
	}
	return d
}

func (c *catmullRom) span() float64 {
	return float64(len(c.segs))
}

func (c *catmullRom) segments() int {
	return len(c.segs)
}

func (c *catmullRom) eval(u float64) (r3.Vec, r3.Vec) {
	i := int(math.Floor(u))
	if i < 0 {
		i = 0
	}
	if i >= len(c.segs) {
		i = len(c.segs) - 1
	}
	return c.segs[i].eval(u - float64(i))
}

// naturalSpline fits x, y and z independently over cumulative chord length.
type naturalSpline struct {
	x, y, z interp.NaturalCubic
	length  float64
	count   int
}

func newNaturalSpline(pts []r3.Vec) (*naturalSpline, error) {
	knots := make([]float64, len(pts))
	xs := make([]float64, len(pts))
	ys := make([]float64, len(pts))
	zs := make([]float64, len(pts))
	for i, p := range pts {
		if i > 0 {
			knots[i] = knots[i-1] + common.Distance(pts[i-1], p)
		}
		xs[i], ys[i], zs[i] = p.X, p.Y, p.Z
	}

	ns := &naturalSpline{length: knots[len(knots)-1], count: len(pts) - 1}
	if err := ns.x.Fit(knots, xs); err != nil {
		return nil, err
	}
	if err := ns.y.Fit(knots, ys); err != nil {
		return nil, err
	}
	if err := ns.z.Fit(knots, zs); err != nil {
		return nil, err
	}
	return ns, nil
}

func (n *naturalSpline) span() float64 {
	return n.length
}

func (n *naturalSpline) segments() int {
	return n.count
}

func (n *naturalSpline) eval(u float64) (r3.Vec, r3.Vec) {
	u = common.Clamp(u, 0, n.length)
	pos := r3.Vec{X: n.x.Predict(u), Y: n.y.Predict(u), Z: n.z.Predict(u)}
	deriv := r3.Vec{X: n.x.PredictDerivative(u), Y: n.y.PredictDerivative(u), Z: n.z.PredictDerivative(u)}
	return pos, deriv
}
