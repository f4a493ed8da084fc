package curve

import (
	"math"

	"coaster-builder/internal/common"

	"gonum.org/v1/gonum/spatial/r3"
)

// buildFrames computes the up vector and bank angle at every table sample.
//
// Up is carried along the path by parallel transport (the double reflection
// rotation-minimizing frame), so it stays continuous through vertical
// sections where a world-up or Frenet frame would flip. While the rider is
// upright the transported vector is nudged back toward world up at
// UprightRestore per metre. Closed paths spread the seam mismatch along the
// loop. Bank is then applied as a roll about the tangent.
func (c *Curve) buildFrames(opts Options) {
	n := len(c.us)
	pos := make([]r3.Vec, n)
	for i, u := range c.us {
		pos[i], _ = c.spl.eval(u)
	}

	c.ups = make([]r3.Vec, n)
	c.ups[0] = initialUp(c.tans[0])
	for i := 1; i < n; i++ {
		up := transport(pos[i-1], pos[i], c.tans[i-1], c.tans[i], c.ups[i-1])
		c.ups[i] = restoreUpright(up, c.tans[i], opts.UprightRestore*(c.cum[i]-c.cum[i-1]))
	}
	if c.closed {
		c.closeSeam()
	}

	c.banks = smooth(c.lateralBank(opts), opts.BankSmoothing, c.closed)
	for i := range c.ups {
		if c.banks[i] != 0 {
			c.ups[i] = common.Normalize(r3.NewRotation(c.banks[i], c.tans[i]).Rotate(c.ups[i]))
		}
	}
}

// initialUp projects world up off the starting tangent. A vertical start
// falls back to -Z so the frame is still defined.
func initialUp(tan r3.Vec) r3.Vec {
	up := common.Reject(common.WorldUp, tan)
	if r3.Norm(up) < 1e-3 {
		up = common.Reject(r3.Vec{Z: -1}, tan)
	}
	return common.Normalize(up)
}

// transport moves the reference vector r0 from (x0, t0) to (x1, t1) with two
// reflections, the first across the chord and the second across t1-t0'.
func transport(x0, x1, t0, t1, r0 r3.Vec) r3.Vec {
	v1 := r3.Sub(x1, x0)
	c1 := r3.Dot(v1, v1)
	if c1 < 1e-18 {
		return common.Normalize(common.Reject(r0, t1))
	}
	rL := r3.Sub(r0, r3.Scale(2/c1*r3.Dot(v1, r0), v1))
	tL := r3.Sub(t0, r3.Scale(2/c1*r3.Dot(v1, t0), v1))

	r1 := rL
	v2 := r3.Sub(t1, tL)
	if c2 := r3.Dot(v2, v2); c2 > 1e-18 {
		r1 = r3.Sub(rL, r3.Scale(2/c2*r3.Dot(v2, rL), v2))
	}
	out := common.Normalize(common.Reject(r1, t1))
	if out == (r3.Vec{}) {
		return r0
	}
	return out
}

// restoreUpright blends up toward world up projected onto the normal plane.
// The pull fades to zero as the rider approaches inverted or vertical, so it
// never introduces a discontinuity.
func restoreUpright(up, tan r3.Vec, amount float64) r3.Vec {
	if amount <= 0 {
		return up
	}
	ref := common.Reject(common.WorldUp, tan)
	w := amount * math.Max(0, r3.Dot(up, ref))
	if w == 0 {
		return up
	}
	if w > 1 {
		w = 1
	}
	blended := common.Normalize(common.Reject(r3.Add(up, r3.Scale(w, ref)), tan))
	if blended == (r3.Vec{}) {
		return up
	}
	return blended
}

// closeSeam removes the transport holonomy of a closed loop by rotating each
// up vector about its tangent by a share of the seam angle proportional to
// distance travelled.
func (c *Curve) closeSeam() {
	last := len(c.ups) - 1
	t0 := c.tans[0]
	end := c.ups[last]
	start := c.ups[0]
	phi := math.Atan2(r3.Dot(r3.Cross(end, start), t0), r3.Dot(end, start))
	if phi == 0 {
		return
	}
	for i := 1; i < last; i++ {
		share := phi * c.cum[i] / c.length
		c.ups[i] = common.Normalize(r3.NewRotation(share, c.tans[i]).Rotate(c.ups[i]))
	}
	c.ups[last] = start
}

// lateralBank converts central-difference curvature into a clamped roll.
// Turning right (curvature along Tangent x Up) gives a positive roll.
func (c *Curve) lateralBank(opts Options) []float64 {
	n := len(c.tans)
	banks := make([]float64, n)
	if opts.BankFactor == 0 || opts.MaxBank == 0 {
		return banks
	}
	for i := 0; i < n; i++ {
		prev, next := i-1, i+1
		dPrev, dNext := 0.0, 0.0
		switch {
		case c.closed && i == 0:
			prev = n - 2
			dPrev = c.length - c.cum[prev]
		case c.closed && i == n-1:
			next = 1
			dNext = c.cum[1]
		}
		if prev < 0 {
			prev = 0
		}
		if next > n-1 {
			next = n - 1
		}
		if dPrev == 0 {
			dPrev = c.cum[i] - c.cum[prev]
		}
		if dNext == 0 {
			dNext = c.cum[next] - c.cum[i]
		}
		ds := dPrev + dNext
		if ds <= 0 {
			continue
		}
		kappa := r3.Scale(1/ds, r3.Sub(c.tans[next], c.tans[prev]))
		lateral := r3.Dot(kappa, r3.Cross(c.tans[i], c.ups[i]))
		banks[i] = common.Clamp(opts.BankFactor*lateral, -opts.MaxBank, opts.MaxBank)
	}
	return banks
}

// smooth applies a centred moving average of the given window.
// Closed paths wrap; the last sample duplicates the first.
func smooth(v []float64, window int, closed bool) []float64 {
	n := len(v)
	if window <= 1 || n < 3 {
		return v
	}
	half := window / 2
	out := make([]float64, n)
	period := n
	if closed {
		period = n - 1
	}
	for i := 0; i < period; i++ {
		sum := 0.0
		count := 0
		for j := -half; j <= half; j++ {
			k := i + j
			if closed {
				k = ((k % period) + period) % period
			} else if k < 0 || k >= n {
				continue
			}
			sum += v[k]
			count++
		}
		out[i] = sum / float64(count)
	}
	if closed {
		out[n-1] = out[0]
	}
	return out
}
