package curve

import (
	"math"
	"testing"

	"coaster-builder/internal/common"
	"coaster-builder/internal/monitoring"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func init() {
	monitoring.SetLogger(nil)
}

var (
	straight = []r3.Vec{{X: 0, Y: 1, Z: 0}, {X: 10, Y: 1, Z: 0}}
	hump     = []r3.Vec{{X: 0, Y: 1, Z: 0}, {X: 10, Y: 5, Z: 0}, {X: 20, Y: 1, Z: 0}}
	square   = []r3.Vec{
		{X: 0, Y: 1, Z: 0}, {X: 10, Y: 1, Z: 0}, {X: 10, Y: 1, Z: 10}, {X: 0, Y: 1, Z: 10}, {X: 0, Y: 1, Z: 0},
	}
	// loopDeLoop climbs through vertical, runs inverted over the top and comes back down.
	loopDeLoop = []r3.Vec{
		{X: 0, Y: 1, Z: 0}, {X: 10, Y: 1, Z: 0}, {X: 15, Y: 6, Z: 1},
		{X: 10, Y: 11, Z: 2}, {X: 5, Y: 6, Z: 3}, {X: 10, Y: 1, Z: 4}, {X: 20, Y: 1, Z: 4},
	}
	uneven = []r3.Vec{
		{X: 0, Y: 1}, {X: 1, Y: 1.2}, {X: 2, Y: 1}, {X: 3, Y: 1.5}, {X: 20, Y: 6, Z: 3}, {X: 40, Y: 2, Z: -4},
	}
)

func helix() []r3.Vec {
	var pts []r3.Vec
	for i := 0; i < 12; i++ {
		a := float64(i) * math.Pi / 3
		pts = append(pts, r3.Vec{X: 10 * math.Cos(a), Y: 1 + 1.5*float64(i), Z: 10 * math.Sin(a)})
	}
	return pts
}

func build(t *testing.T, pts []r3.Vec) *Curve {
	t.Helper()
	c := Build(pts, DefaultOptions())
	require.False(t, c.Degenerate())
	return c
}

func at(t *testing.T, c *Curve, u float64) Sample {
	t.Helper()
	s, err := c.At(u)
	require.NoError(t, err)
	return s
}

func assertVecNear(t *testing.T, want, got r3.Vec, tol float64) {
	t.Helper()
	assert.LessOrEqual(t, common.Distance(want, got), tol, "want %v, got %v", want, got)
}

func TestStraightSegment(t *testing.T) {
	c := build(t, straight)

	assert.False(t, c.Closed())
	assert.InDelta(t, 10.0, c.Length(), 1e-9)
	assertVecNear(t, r3.Vec{X: 5, Y: 1}, c.Position(0.5), 1e-9)
	for _, u := range []float64{0, 0.1, 0.5, 0.9, 1} {
		assertVecNear(t, r3.Vec{X: 1}, c.Tangent(u), 1e-9)
		assertVecNear(t, r3.Vec{Y: 1}, c.Up(u), 1e-9)
		assert.InDelta(t, 0.0, c.Bank(u), 1e-9)
	}
}

func TestEndpointsMatchControlPoints(t *testing.T) {
	for name, pts := range map[string][]r3.Vec{
		"hump":   hump,
		"loop":   loopDeLoop,
		"uneven": uneven,
		"helix":  helix(),
	} {
		t.Run(name, func(t *testing.T) {
			c := build(t, pts)
			assertVecNear(t, pts[0], c.Position(0), 1e-9)
			assertVecNear(t, pts[len(pts)-1], c.Position(1), 1e-9)
			assertVecNear(t, pts[len(pts)-1], c.Position(1-1e-6), 1e-3)
		})
	}
}

func TestPassesThroughInteriorPoints(t *testing.T) {
	for _, kind := range []Interpolation{Centripetal, Uniform, Chordal, Natural} {
		t.Run(kind.String(), func(t *testing.T) {
			opts := DefaultOptions()
			opts.Interpolation = kind
			c := Build(hump, opts)
			require.False(t, c.Degenerate())

			best := math.MaxFloat64
			c.Walk(4000, func(s Sample) bool {
				best = math.Min(best, common.Distance(s.Position, hump[1]))
				return true
			})
			assert.Less(t, best, 0.02)
		})
	}
}

func TestFrameIsOrthonormal(t *testing.T) {
	for name, pts := range map[string][]r3.Vec{
		"hump":   hump,
		"square": square,
		"loop":   loopDeLoop,
		"helix":  helix(),
		"uneven": uneven,
	} {
		t.Run(name, func(t *testing.T) {
			c := build(t, pts)
			c.Walk(500, func(s Sample) bool {
				assert.InDelta(t, 1.0, r3.Norm(s.Tangent), 1e-9)
				assert.InDelta(t, 1.0, r3.Norm(s.Up), 1e-9)
				assert.InDelta(t, 1.0, r3.Norm(s.Right), 1e-9)
				assert.InDelta(t, 0.0, r3.Dot(s.Tangent, s.Up), 1e-9)
				return true
			})
		})
	}
}

func TestUpHasNoFlips(t *testing.T) {
	for name, pts := range map[string][]r3.Vec{
		"hump":   hump,
		"square": square,
		"loop":   loopDeLoop,
		"helix":  helix(),
		"uneven": uneven,
	} {
		t.Run(name, func(t *testing.T) {
			c := build(t, pts)
			samples := c.Samples(2000)
			for i := 1; i < len(samples); i++ {
				require.Greater(t, r3.Dot(samples[i-1].Up, samples[i].Up), 0.9,
					"up flipped between t=%.4f and t=%.4f", samples[i-1].T, samples[i].T)
				require.Greater(t, r3.Dot(samples[i-1].Tangent, samples[i].Tangent), 0.9)
			}
		})
	}
}

func TestLoopRunsInvertedAtTheTop(t *testing.T) {
	c := build(t, loopDeLoop)

	top := Sample{Position: r3.Vec{Y: -1}}
	c.Walk(2000, func(s Sample) bool {
		if s.Position.Y > top.Position.Y {
			top = s
		}
		return true
	})
	assert.Less(t, top.Up.Y, -0.9, "rider should be upside down at the crest")
	assert.Less(t, top.Tangent.X, -0.9)

	// Back on the run-out the rider is upright again.
	assert.Greater(t, c.Up(1).Y, 0.9)
}

func TestVerticalStart(t *testing.T) {
	c := build(t, []r3.Vec{{X: 0, Y: 1}, {X: 0, Y: 11}, {X: 5, Y: 15}})
	s := at(t, c, 0)
	assertVecNear(t, r3.Vec{Y: 1}, s.Tangent, 0.05)
	assert.InDelta(t, 1.0, r3.Norm(s.Up), 1e-9)
	assert.InDelta(t, 0.0, r3.Dot(s.Up, s.Tangent), 1e-9)
}

func TestOutAndBackTurnaroundHasAFrame(t *testing.T) {
	outAndBack := []r3.Vec{{X: 0, Y: 1, Z: 0}, {X: 10, Y: 1, Z: 0}, {X: 0, Y: 1, Z: 0}}
	for _, kind := range []Interpolation{Centripetal, Uniform, Chordal, Natural} {
		t.Run(kind.String(), func(t *testing.T) {
			opts := DefaultOptions()
			opts.Interpolation = kind
			c := Build(outAndBack, opts)
			require.False(t, c.Degenerate())
			require.False(t, c.Closed())

			s := at(t, c, 0.5)
			assertVecNear(t, outAndBack[1], s.Position, 1e-6)
			assert.InDelta(t, 1.0, r3.Norm(s.Tangent), 1e-9)
			assert.InDelta(t, 1.0, r3.Norm(s.Right), 1e-9)
			assert.InDelta(t, 0.0, r3.Dot(s.Tangent, s.Up), 1e-9)

			c.Walk(1000, func(s Sample) bool {
				assert.InDelta(t, 1.0, r3.Norm(s.Tangent), 1e-9, "t=%v", s.T)
				assert.InDelta(t, 1.0, r3.Norm(s.Right), 1e-9, "t=%v", s.T)
				return true
			})
		})
	}
}

func TestArcLengthParametrization(t *testing.T) {
	for name, pts := range map[string][]r3.Vec{
		"hump":   hump,
		"uneven": uneven,
		"loop":   loopDeLoop,
	} {
		t.Run(name, func(t *testing.T) {
			c := build(t, pts)
			arc := func(t1, t2 float64) float64 {
				const steps = 2000
				sum := 0.0
				prev := c.Position(t1)
				for i := 1; i <= steps; i++ {
					p := c.Position(t1 + (t2-t1)*float64(i)/steps)
					sum += common.Distance(prev, p)
					prev = p
				}
				return sum
			}

			assert.InEpsilon(t, c.Length(), arc(0, 1), 0.01)
			for _, span := range [][2]float64{{0, 0.25}, {0.1, 0.2}, {0.4, 0.9}, {0.75, 1}} {
				want := (span[1] - span[0]) * c.Length()
				assert.InEpsilon(t, want, arc(span[0], span[1]), 0.02, "span %v", span)
			}

		})
	}
}

func TestEvenSpacingAlongGentleCurves(t *testing.T) {
	for name, pts := range map[string][]r3.Vec{
		"hump": hump,
		"loop": loopDeLoop,
	} {
		t.Run(name, func(t *testing.T) {
			c := build(t, pts)
			for i := 0; i < 19; i++ {
				u := float64(i) * 0.05
				d := common.Distance(c.Position(u), c.Position(u+0.05))
				assert.InEpsilon(t, 0.05*c.Length(), d, 0.05, "t=%.2f", u)
			}
		})
	}
}

func TestOutOfRangeParameterIsClamped(t *testing.T) {
	c := build(t, hump)
	assert.Equal(t, c.Position(0), c.Position(-3))
	assert.Equal(t, c.Position(1), c.Position(7))
	assert.Equal(t, c.Position(0), c.Position(math.NaN()))

	s := at(t, c, 2)
	assert.Equal(t, 1.0, s.T)
	assert.InDelta(t, c.Length(), s.Distance, 1e-9)
}

func TestClosedLoop(t *testing.T) {
	c := build(t, square)
	require.True(t, c.Closed())
	assert.Len(t, c.Anchors(), 5)

	start := at(t, c, 0)
	end := at(t, c, 0.9999)
	assertVecNear(t, start.Position, end.Position, 1e-3*c.Length())
	assert.Greater(t, r3.Dot(start.Tangent, end.Tangent), 0.99)
	assert.Greater(t, r3.Dot(start.Up, end.Up), 0.99)

	assert.Equal(t, c.Position(0), c.Position(1))
	assertVecNear(t, c.Position(0.25), c.Position(1.25), 1e-9)
	assertVecNear(t, c.Position(0.75), c.Position(-0.25), 1e-9)
}

func TestLoopNeedsThreeDistinctPoints(t *testing.T) {
	c := build(t, []r3.Vec{{X: 0, Y: 1}, {X: 10, Y: 1}, {X: 0, Y: 1}})
	assert.False(t, c.Closed())
}

func TestBankLeansIntoTurns(t *testing.T) {
	cases := []struct {
		name string
		end  r3.Vec
		sign float64
	}{
		{"right", r3.Vec{X: 20, Y: 1, Z: 10}, 1},
		{"left", r3.Vec{X: 20, Y: 1, Z: -10}, -1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := build(t, []r3.Vec{{X: 0, Y: 1}, {X: 10, Y: 1}, tc.end})

			peak := Sample{}
			c.Walk(1000, func(s Sample) bool {
				if math.Abs(s.Bank) > math.Abs(peak.Bank) {
					peak = s
				}
				return true
			})
			assert.Greater(t, tc.sign*peak.Bank, 0.05)
			assert.LessOrEqual(t, math.Abs(peak.Bank), DefaultOptions().MaxBank)
			assert.Greater(t, tc.sign*peak.Up.Z, 0.0, "up should tilt toward the turn centre")
		})
	}
}

func TestBankingCanBeDisabled(t *testing.T) {
	opts := DefaultOptions()
	opts.BankFactor = 0
	c := Build([]r3.Vec{{X: 0, Y: 1}, {X: 10, Y: 1}, {X: 20, Y: 1, Z: 10}}, opts)
	c.Walk(200, func(s Sample) bool {
		assert.Zero(t, s.Bank)
		assertVecNear(t, r3.Vec{Y: 1}, s.Up, 1e-9)
		return true
	})
}

func TestDegenerateCurves(t *testing.T) {
	empty := Build(nil, DefaultOptions())
	assert.True(t, empty.Degenerate())
	_, err := empty.At(0.5)
	assert.ErrorIs(t, err, ErrDegenerateGeometry)
	assert.Equal(t, r3.Vec{}, empty.Position(0.5))
	assert.Equal(t, r3.Vec{}, empty.Tangent(0.5))
	assert.Zero(t, empty.Length())
	assert.Empty(t, empty.Samples(10))

	single := Build([]r3.Vec{{X: 3, Y: 2, Z: 1}}, DefaultOptions())
	assert.True(t, single.Degenerate())
	assert.Equal(t, r3.Vec{X: 3, Y: 2, Z: 1}, single.Position(0.7))

	dup := Build([]r3.Vec{{X: 3, Y: 2}, {X: 3, Y: 2}}, DefaultOptions())
	assert.True(t, dup.Degenerate())

	var nilCurve *Curve
	assert.True(t, nilCurve.Degenerate())
	assert.False(t, nilCurve.Closed())
}

func TestNearDuplicatesAreSkipped(t *testing.T) {
	c := build(t, []r3.Vec{{X: 0, Y: 1}, {X: 0, Y: 1, Z: 1e-4}, {X: 10, Y: 1}, {X: 10, Y: 1}})
	assert.Len(t, c.Anchors(), 2)
	assert.InDelta(t, 10.0, c.Length(), 1e-9)
	assertVecNear(t, r3.Vec{X: 1}, c.Tangent(0.3), 1e-9)
}

func TestNaturalFallsBackForClosedPaths(t *testing.T) {
	opts := DefaultOptions()
	opts.Interpolation = Natural
	c := Build(square, opts)
	require.True(t, c.Closed())
	_, isCR := c.spl.(*catmullRom)
	assert.True(t, isCR)

	open := Build(hump, opts)
	_, isNatural := open.spl.(*naturalSpline)
	assert.True(t, isNatural)
}

func TestParseInterpolation(t *testing.T) {
	for _, kind := range []Interpolation{Centripetal, Uniform, Chordal, Natural} {
		got, err := ParseInterpolation(kind.String())
		require.NoError(t, err)
		assert.Equal(t, kind, got)
	}
	got, err := ParseInterpolation("")
	require.NoError(t, err)
	assert.Equal(t, Centripetal, got)

	_, err = ParseInterpolation("bezier")
	assert.Error(t, err)
}
