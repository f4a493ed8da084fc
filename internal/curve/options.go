package curve

import (
	"fmt"
	"math"
	"strings"
)

// Interpolation selects the spline family fitted through the control points.
type Interpolation int

const (
	// Centripetal is Catmull-Rom with alpha 0.5; it avoids cusps and self-loops.
	Centripetal Interpolation = iota
	// Uniform is classic Catmull-Rom with alpha 0.
	Uniform
	// Chordal is Catmull-Rom with alpha 1.
	Chordal
	// Natural is a natural cubic spline per axis over chord length.
	// Closed paths and paths with fewer than 3 points fall back to Centripetal.
	Natural
)

func (i Interpolation) String() string {
	switch i {
	case Centripetal:
		return "centripetal"
	case Uniform:
		return "uniform"
	case Chordal:
		return "chordal"
	case Natural:
		return "natural"
	default:
		return fmt.Sprintf("Interpolation(%d)", int(i))
	}
}

// ParseInterpolation maps a config name to an Interpolation.
func ParseInterpolation(s string) (Interpolation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "centripetal":
		return Centripetal, nil
	case "uniform":
		return Uniform, nil
	case "chordal":
		return Chordal, nil
	case "natural":
		return Natural, nil
	}
	return Centripetal, fmt.Errorf("curve: unknown interpolation %q", s)
}

// alpha returns the Catmull-Rom knot exponent.
func (i Interpolation) alpha() float64 {
	switch i {
	case Uniform:
		return 0
	case Chordal:
		return 1
	default:
		return 0.5
	}
}

// Options tunes curve construction.
type Options struct {
	Interpolation Interpolation

	// SamplesPerSegment is the arc-length table density between two control points.
	SamplesPerSegment int

	// DuplicateTolerance is the distance under which consecutive points are skipped.
	DuplicateTolerance float64

	// LoopTolerance is the first/last point distance that closes the path.
	LoopTolerance float64

	// BankFactor converts lateral curvature (1/m) into roll (radians).
	BankFactor float64
	// MaxBank limits roll in radians.
	MaxBank float64
	// BankSmoothing is the moving-average window over table samples.
	BankSmoothing int

	// UprightRestore pulls the transported up vector back toward world up,
	// per metre travelled, while the rider is not inverted.
	UprightRestore float64
}

// DefaultOptions returns the stock curve tuning.
func DefaultOptions() Options {
	return Options{
		Interpolation:      Centripetal,
		SamplesPerSegment:  32,
		DuplicateTolerance: 1e-3,
		LoopTolerance:      0.01,
		BankFactor:         4,
		MaxBank:            math.Pi / 3,
		BankSmoothing:      9,
		UprightRestore:     0.5,
	}
}

func (o Options) sanitized() Options {
	if o.SamplesPerSegment < 1 {
		o.SamplesPerSegment = DefaultOptions().SamplesPerSegment
	}
	if o.BankSmoothing < 1 {
		o.BankSmoothing = 1
	}
	if o.DuplicateTolerance < 0 {
		o.DuplicateTolerance = 0
	}
	if o.MaxBank < 0 {
		o.MaxBank = -o.MaxBank
	}
	return o
}
