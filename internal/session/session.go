package session

import (
	"errors"
	"fmt"

	"coaster-builder/internal/curve"
	"coaster-builder/internal/editor"
	"coaster-builder/internal/monitoring"
	"coaster-builder/internal/physics"
	"coaster-builder/internal/track"

	"gonum.org/v1/gonum/spatial/r3"
)

// ErrNotBuilding is returned by track edits attempted outside build mode.
var ErrNotBuilding = errors.New("session: not in build mode")

// Mode is the two-valued build/ride switch.
type Mode int

const (
	Build Mode = iota
	Ride
)

func (m Mode) String() string {
	if m == Ride {
		return "ride"
	}
	return "build"
}

// State is the mode and selection state shared with the host.
type State struct {
	Mode     Mode
	Selected track.PointID
	Night    bool
	Muted    bool
}

// Params bundles the tuning of every component the session owns.
type Params struct {
	MinHeight float64
	Curve     curve.Options
	Ride      physics.Params
	Editor    editor.Params
}

// DefaultParams returns the stock tuning.
func DefaultParams() Params {
	return Params{
		MinHeight: track.MinHeight,
		Curve:     curve.DefaultOptions(),
		Ride:      physics.DefaultParams(),
		Editor:    editor.DefaultParams(),
	}
}

// Option configures a Session.
type Option func(*Session)

// WithAudio routes day/night and mute changes to a.
func WithAudio(a AudioSink) Option {
	return func(s *Session) {
		s.audio = a
	}
}

// WithTrackOptions passes options through to the owned track.
func WithTrackOptions(opts ...track.Option) Option {
	return func(s *Session) {
		s.trackOpts = append(s.trackOpts, opts...)
	}
}

// Session owns the track, its derived curve, the ride and the editor,
// and runs them in a fixed order once per frame.
type Session struct {
	state State

	track   *track.Track
	builder *curve.Builder
	ride    *physics.Ride
	editor  *editor.Controller
	audio   AudioSink

	trackOpts []track.Option

	pending []editor.Event

	// rideVersion is the track version the current ride started on.
	rideVersion uint64
}

// New creates a session in build mode with an empty track.
func New(p Params, opts ...Option) *Session {
	s := &Session{audio: LogAudio{}}
	for _, opt := range opts {
		opt(s)
	}
	s.track = track.New(append([]track.Option{track.WithMinHeight(p.MinHeight)}, s.trackOpts...)...)
	s.builder = curve.NewBuilder(p.Curve)
	s.ride = physics.NewRide(p.Ride)
	s.editor = editor.NewController(s.track, editorContext{s}, p.Editor)
	return s
}

// editorContext exposes the session to the editor without widening the Session API.
type editorContext struct {
	s *Session
}

func (c editorContext) Building() bool {
	return c.s.state.Mode == Build
}

func (c editorContext) Select(id track.PointID) {
	c.s.state.Selected = id
}

// State returns a copy of the mode and selection state.
func (s *Session) State() State {
	return s.state
}

// Track returns the owned track. Hosts should only read it; edits go
// through the session or queued events.
func (s *Session) Track() *track.Track {
	return s.track
}

// Curve returns the memoized curve for the current track.
func (s *Session) Curve() *curve.Curve {
	return s.builder.Curve(s.track)
}

// Ride returns the ride controller.
func (s *Session) Ride() *physics.Ride {
	return s.ride
}

// Editor returns the pointer controller.
func (s *Session) Editor() *editor.Controller {
	return s.editor
}

// Enqueue queues a pointer event for the next Tick.
func (s *Session) Enqueue(ev editor.Event) {
	s.pending = append(s.pending, ev)
}

// Pending returns the number of queued events.
func (s *Session) Pending() int {
	return len(s.pending)
}

// Frame is everything the renderer needs for one frame.
type Frame struct {
	Mode     Mode
	Night    bool
	Version  uint64
	Points   []track.ControlPoint
	Selected track.PointID
	Curve    *curve.Curve

	Preview    r3.Vec
	Previewing bool

	// Ride state, valid when Riding is set
	Riding    bool
	Pose      physics.Pose
	Speed     float64
	Progress  float64
	Direction physics.Direction
	Laps      int
}

// Tick advances the session by dt seconds. Within a frame, queued pointer
// events are applied first, then the track is checked, then the curve is
// derived and finally the ride samples it.
func (s *Session) Tick(dt float64) Frame {
	// 1. Input
	for _, ev := range s.pending {
		s.editor.Handle(ev)
	}
	s.pending = s.pending[:0]

	// 2. Integrity
	if err := s.track.Check(); err != nil {
		monitoring.Logf("session: %v", err)
		s.dropStaleSelection()
	}

	// 3. Geometry
	c := s.builder.Curve(s.track)

	// 4. Ride lifecycle
	if s.state.Mode == Ride {
		switch {
		case c.Degenerate():
			monitoring.Logf("session: track no longer rideable, back to build mode")
			s.enterBuild()
		case s.track.Version() != s.rideVersion:
			if err := s.ride.Restart(c); err != nil {
				monitoring.Logf("session: restart ride: %v", err)
				s.enterBuild()
			}
			s.rideVersion = s.track.Version()
		}
	}

	f := Frame{
		Mode:     s.state.Mode,
		Night:    s.state.Night,
		Version:  s.track.Version(),
		Points:   s.track.Points(),
		Selected: s.state.Selected,
		Curve:    c,
	}
	f.Preview, f.Previewing = s.editor.Preview()

	// 5. Ride
	if s.state.Mode == Ride {
		thaw := s.track.Freeze()
		pose, err := s.ride.Update(c, dt)
		thaw()
		if err != nil {
			monitoring.Logf("session: ride update: %v", err)
			s.enterBuild()
			f.Mode = Build
			return f
		}
		f.Riding = true
		f.Pose = pose
		f.Speed = s.ride.Speed()
		f.Progress = s.ride.Progress()
		f.Direction = s.ride.Direction()
		f.Laps = s.ride.Laps()
	}
	return f
}

// SetMode switches between build and ride. Entering ride mode always starts
// from the beginning of the track and fails with physics.ErrRideUnavailable
// when there is nothing to ride.
func (s *Session) SetMode(m Mode) error {
	if m == s.state.Mode {
		return nil
	}
	if m == Build {
		s.enterBuild()
		return nil
	}

	if err := s.ride.Start(s.builder.Curve(s.track)); err != nil {
		return fmt.Errorf("session: enter ride mode: %w", err)
	}
	s.editor.Cancel()
	s.rideVersion = s.track.Version()
	s.state.Mode = Ride
	return nil
}

// ToggleMode flips between build and ride.
func (s *Session) ToggleMode() error {
	if s.state.Mode == Build {
		return s.SetMode(Ride)
	}
	return s.SetMode(Build)
}

func (s *Session) enterBuild() {
	s.ride.Stop()
	s.editor.Cancel()
	s.state.Mode = Build
}

// SelectPoint selects id; an empty id clears the selection.
func (s *Session) SelectPoint(id track.PointID) error {
	if id == "" {
		s.state.Selected = ""
		return nil
	}
	if _, ok := s.track.Point(id); !ok {
		err := fmt.Errorf("session: select: %w: %s", track.ErrPointNotFound, id)
		monitoring.Logf("%v", err)
		return err
	}
	s.state.Selected = id
	return nil
}

// PointAt finds the marker within radius of pos in the ground plane, for
// hosts hit testing a top-down view. Height is ignored.
func (s *Session) PointAt(pos r3.Vec, radius float64) (track.PointID, bool) {
	p, ok := s.track.NearestInPlan(pos, radius)
	return p.ID, ok
}

// AddPoint appends a control point.
func (s *Session) AddPoint(pos r3.Vec) (track.PointID, error) {
	if s.state.Mode != Build {
		return "", ErrNotBuilding
	}
	return s.track.Add(pos)
}

// UpdatePoint moves a control point. An unknown id is logged and leaves
// the track unchanged.
func (s *Session) UpdatePoint(id track.PointID, pos r3.Vec) error {
	if s.state.Mode != Build {
		return ErrNotBuilding
	}
	if err := s.track.Update(id, pos); err != nil {
		monitoring.Logf("session: update point: %v", err)
		return err
	}
	return nil
}

// RemovePoint deletes a control point, clearing the selection if it was selected.
func (s *Session) RemovePoint(id track.PointID) error {
	if s.state.Mode != Build {
		return ErrNotBuilding
	}
	if err := s.track.Remove(id); err != nil {
		monitoring.Logf("session: remove point: %v", err)
		return err
	}
	if s.state.Selected == id {
		s.state.Selected = ""
	}
	return nil
}

// Load replaces the track with the document's points and clears the
// selection and any drag. A ride in progress restarts from the beginning
// of the new track, or stops if the new track cannot be ridden.
func (s *Session) Load(doc *track.Document) error {
	if err := s.track.Replace(doc.ControlPoints()); err != nil {
		return fmt.Errorf("session: load %q: %w", doc.Name, err)
	}
	s.pending = nil
	s.editor.Cancel()
	s.state.Selected = ""

	if s.state.Mode == Ride {
		if err := s.ride.Start(s.builder.Curve(s.track)); err != nil {
			monitoring.Logf("session: loaded track %q is not rideable", doc.Name)
			s.enterBuild()
			return nil
		}
		s.rideVersion = s.track.Version()
	}
	return nil
}

// Document exports the current track.
func (s *Session) Document(name string) *track.Document {
	return track.DocumentFromTrack(name, s.track)
}

// Reset returns the session to its initial state with an empty track.
func (s *Session) Reset() error {
	if err := s.track.Clear(); err != nil {
		return fmt.Errorf("session: reset: %w", err)
	}
	s.pending = nil
	s.ride.Stop()
	s.editor.Reset()
	s.state.Mode = Build
	s.state.Selected = ""
	s.SetNight(false)
	s.SetMuted(false)
	return nil
}

// WalkCurve samples the curve n+1 times with the track frozen. Edits made
// from fn fail with track.ErrReentrantMutation.
func (s *Session) WalkCurve(n int, fn func(curve.Sample) bool) {
	c := s.builder.Curve(s.track)
	thaw := s.track.Freeze()
	defer thaw()
	c.Walk(n, fn)
}

func (s *Session) dropStaleSelection() {
	if s.state.Selected == "" {
		return
	}
	if _, ok := s.track.Point(s.state.Selected); !ok {
		s.state.Selected = ""
	}
}
