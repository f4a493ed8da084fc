package physics

import (
	"errors"
	"math"

	"coaster-builder/internal/common"
	"coaster-builder/internal/curve"

	"gonum.org/v1/gonum/spatial/r3"
)

// ErrRideUnavailable is returned when the ride is asked to run on a track
// with fewer than two distinct control points.
var ErrRideUnavailable = errors.New("physics: ride unavailable on degenerate track")

// State is the ride controller state.
type State int

const (
	Stopped State = iota
	Riding
)

func (s State) String() string {
	if s == Riding {
		return "riding"
	}
	return "stopped"
}

// Direction is the travel direction along the curve parameter.
type Direction int

const (
	Forward Direction = 1
	Reverse Direction = -1
)

func (d Direction) String() string {
	if d == Reverse {
		return "reverse"
	}
	return "forward"
}

// Params tunes the ride. Distances are metres, speeds m/s.
type Params struct {
	Gravity      float64
	Friction     float64 // Rolling drag, m/s^2
	MinSpeed     float64 // The car never stops on a climb
	MaxSpeed     float64
	InitialSpeed float64
	MaxStep      float64 // Longest integration step in seconds
}

// DefaultParams returns the stock ride tuning.
func DefaultParams() Params {
	return Params{
		Gravity:      9.81,
		Friction:     0.3,
		MinSpeed:     2,
		MaxSpeed:     30,
		InitialSpeed: 6,
		MaxStep:      1.0 / 120,
	}
}

func (p Params) sanitized() Params {
	def := DefaultParams()
	if p.MaxStep <= 0 {
		p.MaxStep = def.MaxStep
	}
	if p.MinSpeed <= 0 {
		p.MinSpeed = def.MinSpeed
	}
	if p.MaxSpeed < p.MinSpeed {
		p.MaxSpeed = p.MinSpeed
	}
	p.InitialSpeed = common.Clamp(p.InitialSpeed, p.MinSpeed, p.MaxSpeed)
	return p
}

// Ride advances a car along a curve. It converts the local slope into speed,
// wraps on closed paths and bounces off the ends of open ones.
type Ride struct {
	params Params

	state     State
	progress  float64 // Normalized arc length in [0,1)
	speed     float64
	direction Direction

	// Race state
	laps        int
	bounces     int
	lapTime     float64
	lastLapTime float64
}

// NewRide creates a stopped ride.
func NewRide(p Params) *Ride {
	return &Ride{params: p.sanitized(), direction: Forward}
}

func (r *Ride) Params() Params       { return r.params }
func (r *Ride) State() State         { return r.state }
func (r *Ride) Progress() float64    { return r.progress }
func (r *Ride) Speed() float64       { return r.speed }
func (r *Ride) Direction() Direction { return r.direction }
func (r *Ride) Laps() int            { return r.laps }
func (r *Ride) Bounces() int         { return r.bounces }

// LastLapTime is the duration of the last completed lap in seconds.
func (r *Ride) LastLapTime() float64 { return r.lastLapTime }

// Start puts the car at the beginning of c, moving forward at the initial speed.
// A ride never resumes mid-path.
func (r *Ride) Start(c *curve.Curve) error {
	if c.Degenerate() {
		r.Stop()
		return ErrRideUnavailable
	}
	r.state = Riding
	r.progress = 0
	r.speed = r.params.InitialSpeed
	r.direction = Forward
	r.laps = 0
	r.bounces = 0
	r.lapTime = 0
	r.lastLapTime = 0
	return nil
}

// Restart is Start, used when the track changed under a running ride.
func (r *Ride) Restart(c *curve.Curve) error {
	return r.Start(c)
}

// Stop halts the car and drops its speed.
func (r *Ride) Stop() {
	r.state = Stopped
	r.speed = 0
}

// MaxFrame is the longest dt a single Update integrates. Longer frames, such
// as the first one after a stalled host, are truncated.
const MaxFrame = 0.25

// Update advances the ride by dt seconds and returns the new pose.
// A stopped ride does not move. A degenerate curve stops the ride.
func (r *Ride) Update(c *curve.Curve, dt float64) (Pose, error) {
	if c.Degenerate() {
		r.Stop()
		return Pose{}, ErrRideUnavailable
	}
	if r.state == Riding && dt > 0 && !math.IsNaN(dt) {
		dt = math.Min(dt, MaxFrame)
		steps := int(math.Ceil(dt / r.params.MaxStep))
		h := dt / float64(steps)
		for i := 0; i < steps; i++ {
			r.step(c, h)
		}
	}
	return r.Pose(c)
}

func (r *Ride) step(c *curve.Curve, h float64) {
	dir := float64(r.direction)

	// 1. Slope along the travel direction
	tan := c.Tangent(r.progress)
	slope := tan.Y * dir

	// 2. Gravity and rolling drag
	accel := -r.params.Gravity*slope - r.params.Friction
	r.speed = common.Clamp(r.speed+accel*h, r.params.MinSpeed, r.params.MaxSpeed)

	// 3. Advance
	r.progress += dir * r.speed * h / c.Length()
	r.lapTime += h

	// 4. Path ends
	if c.Closed() {
		if r.progress >= 1 || r.progress < 0 {
			r.progress -= math.Floor(r.progress)
			r.laps++
			r.lastLapTime = r.lapTime
			r.lapTime = 0
		}
		return
	}
	switch {
	case r.progress >= 1:
		r.progress = 2 - r.progress
		r.direction = Reverse
		r.bounces++
	case r.progress < 0:
		r.progress = -r.progress
		r.direction = Forward
		r.bounces++
	}
	r.progress = common.Clamp(r.progress, 0, math.Nextafter(1, 0))
}

// Pose is the car orientation at the current progress, facing the travel direction.
type Pose struct {
	Sample    curve.Sample
	Forward   r3.Vec
	Right     r3.Vec
	Bank      float64 // Positive leans toward Right
	Direction Direction
}

// Pose samples c at the current progress.
func (r *Ride) Pose(c *curve.Curve) (Pose, error) {
	s, err := c.At(r.progress)
	if err != nil {
		return Pose{}, ErrRideUnavailable
	}
	p := Pose{
		Sample:    s,
		Forward:   s.Tangent,
		Right:     s.Right,
		Bank:      s.Bank,
		Direction: r.direction,
	}
	if r.direction == Reverse {
		p.Forward = r3.Scale(-1, s.Tangent)
		p.Right = r3.Scale(-1, s.Right)
		p.Bank = -s.Bank
	}
	return p, nil
}

// CameraView is a look-at camera.
type CameraView struct {
	Eye    r3.Vec
	Target r3.Vec
	Up     r3.Vec
}

// Camera places a rider camera eyeHeight above the track, looking at the
// point lookAhead metres further along the travel direction.
func Camera(c *curve.Curve, p Pose, eyeHeight, lookAhead float64) CameraView {
	up := p.Sample.Up
	eye := r3.Add(p.Sample.Position, r3.Scale(eyeHeight, up))
	view := CameraView{Eye: eye, Target: r3.Add(eye, p.Forward), Up: up}
	if c.Degenerate() || lookAhead <= 0 {
		return view
	}

	t := p.Sample.T + float64(p.Direction)*lookAhead/c.Length()
	ahead, err := c.At(t)
	if err != nil {
		return view
	}
	target := r3.Add(ahead.Position, r3.Scale(eyeHeight, ahead.Up))
	// At an open end the look-ahead point collapses onto the eye.
	if common.Distance(target, eye) > 1e-6 {
		view.Target = target
	}
	return view
}
