package curve

import (
	"errors"
	"math"
	"sort"

	"coaster-builder/internal/common"
	"coaster-builder/internal/monitoring"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrDegenerateGeometry is returned when sampling a curve with fewer than two distinct points.
var ErrDegenerateGeometry = errors.New("curve: fewer than two distinct control points")

// Sample is the path state at one normalized arc-length position.
type Sample struct {
	T        float64 // Normalized arc length in [0,1]
	Distance float64 // Arc length from the start
	Position r3.Vec
	Tangent  r3.Vec // Unit forward direction
	Up       r3.Vec // Unit up, perpendicular to Tangent, banking applied
	Right    r3.Vec // Tangent x Up
	Bank     float64
}

// Curve is a smooth path through the control points, parametrized by
// normalized arc length. A Curve is immutable once built.
type Curve struct {
	anchors []r3.Vec
	closed  bool
	spl     spline
	length  float64

	// Arc-length table: native parameter, cumulative distance and frames per sample.
	us    []float64
	cum   []float64
	tans  []r3.Vec
	ups   []r3.Vec
	banks []float64
}

// Build fits a curve through points. Consecutive near-duplicates are skipped.
// Fewer than two distinct points yield a degenerate curve.
func Build(points []r3.Vec, opts Options) *Curve {
	opts = opts.sanitized()

	anchors, skipped := dedupe(points, opts.DuplicateTolerance)
	if skipped > 0 {
		monitoring.Logf("curve: skipped %d near-duplicate control points", skipped)
	}

	c := &Curve{anchors: anchors}
	if len(anchors) < 2 {
		return c
	}

	pts := anchors
	if len(pts) >= 4 && common.Distance(pts[0], pts[len(pts)-1]) <= opts.LoopTolerance {
		c.closed = true
		pts = pts[:len(pts)-1]
	}

	c.spl = newSpline(pts, c.closed, opts.Interpolation)
	c.buildTable(opts.SamplesPerSegment)
	if c.length <= 0 {
		c.spl = nil
		return c
	}
	c.buildFrames(opts)
	return c
}

func newSpline(pts []r3.Vec, closed bool, kind Interpolation) spline {
	if kind == Natural {
		if !closed && len(pts) >= 3 {
			ns, err := newNaturalSpline(pts)
			if err == nil {
				return ns
			}
			monitoring.Logf("curve: natural spline fit failed, using centripetal: %v", err)
		}
		kind = Centripetal
	}
	return newCatmullRom(pts, closed, kind.alpha())
}

// dedupe drops points closer than tol to the previously kept point.
func dedupe(points []r3.Vec, tol float64) ([]r3.Vec, int) {
	out := make([]r3.Vec, 0, len(points))
	for _, p := range points {
		if len(out) > 0 && common.Distance(out[len(out)-1], p) <= tol {
			continue
		}
		out = append(out, p)
	}
	return out, len(points) - len(out)
}

func (c *Curve) buildTable(samplesPerSegment int) {
	n := c.spl.segments() * samplesPerSegment
	c.us = floats.Span(make([]float64, n+1), 0, c.spl.span())

	pos := make([]r3.Vec, n+1)
	steps := make([]float64, n+1)
	c.tans = make([]r3.Vec, n+1)
	for i, u := range c.us {
		p, d := c.spl.eval(u)
		pos[i] = p
		c.tans[i] = common.Normalize(d)
		if i > 0 {
			steps[i] = common.Distance(pos[i-1], p)
		}
	}
	fillZeroTangents(c.tans, pos)

	c.cum = floats.CumSum(make([]float64, n+1), steps)
	c.length = c.cum[n]
}

// fillZeroTangents replaces vanishing derivatives (cusps) with the chord
// direction. An out-and-back turnaround has no central chord either, so it
// takes the incoming chord, or the outgoing one at the first sample.
func fillZeroTangents(tans, pos []r3.Vec) {
	for i := range tans {
		if tans[i] != (r3.Vec{}) {
			continue
		}
		j, k := max(i-1, 0), min(i+1, len(pos)-1)
		tan := common.Normalize(r3.Sub(pos[k], pos[j]))
		if tan == (r3.Vec{}) {
			tan = oneSidedTangent(pos, i)
		}
		tans[i] = tan
	}
}

func oneSidedTangent(pos []r3.Vec, i int) r3.Vec {
	for j := i - 1; j >= 0; j-- {
		if d := common.Normalize(r3.Sub(pos[i], pos[j])); d != (r3.Vec{}) {
			return d
		}
	}
	for k := i + 1; k < len(pos); k++ {
		if d := common.Normalize(r3.Sub(pos[k], pos[i])); d != (r3.Vec{}) {
			return d
		}
	}
	return r3.Vec{X: 1}
}

// Degenerate reports whether the curve has fewer than two distinct points.
func (c *Curve) Degenerate() bool {
	return c == nil || c.spl == nil
}

// Closed reports whether the path loops back onto its first point.
func (c *Curve) Closed() bool {
	return c != nil && c.closed
}

// Length returns the total arc length.
func (c *Curve) Length() float64 {
	if c.Degenerate() {
		return 0
	}
	return c.length
}

// Anchors returns the control points the curve passes through, after de-duplication.
func (c *Curve) Anchors() []r3.Vec {
	if c == nil {
		return nil
	}
	out := make([]r3.Vec, len(c.anchors))
	copy(out, c.anchors)
	return out
}

// normalize clamps t into [0,1] for open paths and wraps it for closed ones.
func (c *Curve) normalize(t float64) float64 {
	if math.IsNaN(t) {
		return 0
	}
	if c.closed {
		if math.IsInf(t, 0) {
			return 0
		}
		return t - math.Floor(t)
	}
	return common.Clamp(t, 0, 1)
}

// locate maps a distance to the table interval i, the fraction within it and
// the native spline parameter.
func (c *Curve) locate(d float64) (int, float64, float64) {
	last := len(c.cum) - 1
	i := sort.SearchFloat64s(c.cum, d)
	if i <= 0 {
		return 0, 0, c.us[0]
	}
	if i > last {
		return last - 1, 1, c.us[last]
	}
	span := c.cum[i] - c.cum[i-1]
	f := 0.0
	if span > 0 {
		f = (d - c.cum[i-1]) / span
	}
	return i - 1, f, c.us[i-1] + f*(c.us[i]-c.us[i-1])
}

// At samples the curve at normalized arc length t.
// Out-of-range t is clamped (open) or wrapped (closed).
func (c *Curve) At(t float64) (Sample, error) {
	if c.Degenerate() {
		return Sample{}, ErrDegenerateGeometry
	}
	t = c.normalize(t)
	d := t * c.length
	i, f, u := c.locate(d)

	pos, deriv := c.spl.eval(u)
	tan := common.Normalize(deriv)
	if tan == (r3.Vec{}) {
		tan = c.tableTangent(i, f)
	}

	up := common.Normalize(common.Reject(common.Lerp(c.ups[i], c.ups[i+1], f), tan))
	if up == (r3.Vec{}) {
		up = initialUp(tan)
	}

	return Sample{
		T:        t,
		Distance: d,
		Position: pos,
		Tangent:  tan,
		Up:       up,
		Right:    r3.Cross(tan, up),
		Bank:     c.banks[i] + f*(c.banks[i+1]-c.banks[i]),
	}, nil
}

// tableTangent blends the stored tangents around interval i. Opposed tangents
// at a turnaround cancel, so the nearer one is used instead.
func (c *Curve) tableTangent(i int, f float64) r3.Vec {
	if tan := common.Normalize(common.Lerp(c.tans[i], c.tans[i+1], f)); tan != (r3.Vec{}) {
		return tan
	}
	if f < 0.5 {
		return c.tans[i]
	}
	return c.tans[i+1]
}

// Position returns the point at t. A single-point curve returns that point;
// an empty curve returns the origin.
func (c *Curve) Position(t float64) r3.Vec {
	if c.Degenerate() {
		if c != nil && len(c.anchors) > 0 {
			return c.anchors[0]
		}
		return r3.Vec{}
	}
	s, _ := c.At(t)
	return s.Position
}

// Tangent returns the unit forward direction at t, or zero when degenerate.
func (c *Curve) Tangent(t float64) r3.Vec {
	s, _ := c.At(t)
	return s.Tangent
}

// Up returns the banked up vector at t, or zero when degenerate.
func (c *Curve) Up(t float64) r3.Vec {
	s, _ := c.At(t)
	return s.Up
}

// Bank returns the roll angle in radians at t; positive leans right.
func (c *Curve) Bank(t float64) float64 {
	s, _ := c.At(t)
	return s.Bank
}

// Samples returns n+1 samples evenly spaced by arc length, including both ends.
func (c *Curve) Samples(n int) []Sample {
	var out []Sample
	c.Walk(n, func(s Sample) bool {
		out = append(out, s)
		return true
	})
	return out
}

// Walk calls fn for n+1 evenly spaced samples until fn returns false.
func (c *Curve) Walk(n int, fn func(Sample) bool) {
	if c.Degenerate() || n < 1 {
		return
	}
	for _, t := range floats.Span(make([]float64, n+1), 0, 1) {
		s, _ := c.At(t)
		if t == 1 && c.closed {
			s.T = 1
			s.Distance = c.length
		}
		if !fn(s) {
			return
		}
	}
}
