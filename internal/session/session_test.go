package session

import (
	"fmt"
	"testing"

	"coaster-builder/internal/common"
	"coaster-builder/internal/curve"
	"coaster-builder/internal/editor"
	"coaster-builder/internal/monitoring"
	"coaster-builder/internal/physics"
	"coaster-builder/internal/track"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

const frame = 1.0 / 60

func init() {
	monitoring.SetLogger(nil)
}

type recordingAudio struct {
	night []bool
	muted []bool
}

func (a *recordingAudio) SetNight(night bool) { a.night = append(a.night, night) }
func (a *recordingAudio) SetMuted(muted bool) { a.muted = append(a.muted, muted) }

func newSession(t *testing.T, pts ...r3.Vec) *Session {
	t.Helper()
	n := 0
	s := New(DefaultParams(), WithAudio(&recordingAudio{}), WithTrackOptions(track.WithIDGenerator(func() track.PointID {
		n++
		return track.PointID(fmt.Sprintf("p%d", n))
	})))
	for _, p := range pts {
		_, err := s.AddPoint(p)
		require.NoError(t, err)
	}
	return s
}

var hump = []r3.Vec{{X: 0, Y: 1}, {X: 10, Y: 5}, {X: 20, Y: 1}}

func TestInitialState(t *testing.T) {
	s := newSession(t)
	assert.Equal(t, State{Mode: Build}, s.State())
	assert.Zero(t, s.Track().Len())

	f := s.Tick(frame)
	assert.Equal(t, Build, f.Mode)
	assert.True(t, f.Curve.Degenerate())
	assert.False(t, f.Riding)
}

func TestEventsApplyBeforeGeometry(t *testing.T) {
	s := newSession(t, r3.Vec{X: 0, Y: 1})

	s.Enqueue(editor.Event{Kind: editor.PointerDown, Point: r3.Vec{X: 10}})
	s.Enqueue(editor.Event{Kind: editor.PointerUp, Point: r3.Vec{X: 10}})
	assert.Equal(t, 2, s.Pending())
	assert.Equal(t, 1, s.Track().Len(), "enqueue must not touch the track")

	f := s.Tick(frame)
	assert.Zero(t, s.Pending())
	require.Len(t, f.Points, 2)
	require.False(t, f.Curve.Degenerate())
	assert.Len(t, f.Curve.Anchors(), 2)
	assert.Equal(t, f.Points[1].Position, f.Curve.Position(1))
}

func TestPointerSelectsMarker(t *testing.T) {
	s := newSession(t, hump...)

	s.Enqueue(editor.Event{Kind: editor.PointerDown, Target: "p2"})
	s.Enqueue(editor.Event{Kind: editor.PointerMove, Movement: common.Vec2{Y: -20}})
	f := s.Tick(frame)
	assert.Equal(t, track.PointID("p2"), f.Selected)
	assert.InDelta(t, 6.0, f.Points[1].Position.Y, 1e-9)

	s.Enqueue(editor.Event{Kind: editor.PointerDown, Point: r3.Vec{X: 30}})
	f = s.Tick(frame)
	assert.Empty(t, f.Selected)
	assert.True(t, f.Previewing)
	assert.Equal(t, r3.Vec{X: 30, Y: 5}, f.Preview)
}

func TestRideStartsFromTheBeginning(t *testing.T) {
	s := newSession(t, hump...)

	require.NoError(t, s.SetMode(Ride))
	assert.Equal(t, Ride, s.State().Mode)
	assert.Zero(t, s.Ride().Progress())

	var f Frame
	for i := 0; i < 60; i++ {
		f = s.Tick(frame)
	}
	require.True(t, f.Riding)
	assert.Positive(t, f.Progress)
	assert.Less(t, f.Speed, physics.DefaultParams().InitialSpeed, "climbing slows the car")
	assert.Equal(t, f.Pose.Sample.Position, s.Curve().Position(f.Progress))

	require.NoError(t, s.ToggleMode())
	assert.Equal(t, Build, s.State().Mode)
	assert.Equal(t, physics.Stopped, s.Ride().State())
	assert.Zero(t, s.Ride().Speed())

	require.NoError(t, s.ToggleMode())
	assert.Zero(t, s.Ride().Progress())
}

func TestRideUnavailableOnDegenerateTrack(t *testing.T) {
	s := newSession(t, r3.Vec{X: 0, Y: 1})

	err := s.SetMode(Ride)
	assert.ErrorIs(t, err, physics.ErrRideUnavailable)
	assert.Equal(t, Build, s.State().Mode)
}

func TestRideRestartsWhenTrackChanges(t *testing.T) {
	s := newSession(t, hump...)
	require.NoError(t, s.SetMode(Ride))
	for i := 0; i < 120; i++ {
		s.Tick(frame)
	}
	before := s.Ride().Progress()
	require.Greater(t, before, 0.1)

	require.NoError(t, s.Track().Update("p3", r3.Vec{X: 25, Y: 1}))
	f := s.Tick(frame)
	assert.Equal(t, Ride, f.Mode)
	assert.Less(t, f.Progress, 0.02)
	assert.InDelta(t, 25.0, f.Curve.Position(1).X, 1e-9)
}

func TestRideDropsToBuildWhenTrackCollapses(t *testing.T) {
	s := newSession(t, hump...)
	require.NoError(t, s.SetMode(Ride))
	s.Tick(frame)

	require.NoError(t, s.Track().Clear())
	f := s.Tick(frame)
	assert.Equal(t, Build, f.Mode)
	assert.False(t, f.Riding)
	assert.Equal(t, physics.Stopped, s.Ride().State())
}

func TestClosedTrackLaps(t *testing.T) {
	s := newSession(t)
	doc, err := track.ParseDocument([]byte(`{
		// A flat square
		"name": "square",
		"points": [[0,1,0], [10,1,0], [10,1,10], [0,1,10], [0,1,0]],
	}`))
	require.NoError(t, err)
	require.NoError(t, s.Load(doc))
	require.NoError(t, s.SetMode(Ride))

	var f Frame
	for i := 0; i < 3000 && f.Laps == 0; i++ {
		f = s.Tick(frame)
	}
	assert.Equal(t, 1, f.Laps)
	assert.Less(t, f.Progress, 0.1)
	assert.Equal(t, physics.Forward, f.Direction)
}

func TestEditsRequireBuildMode(t *testing.T) {
	s := newSession(t, hump...)
	require.NoError(t, s.SetMode(Ride))

	_, err := s.AddPoint(r3.Vec{X: 40, Y: 1})
	assert.ErrorIs(t, err, ErrNotBuilding)
	assert.ErrorIs(t, s.UpdatePoint("p1", r3.Vec{Y: 9}), ErrNotBuilding)
	assert.ErrorIs(t, s.RemovePoint("p1"), ErrNotBuilding)
	assert.Equal(t, 3, s.Track().Len())

	// Pointer events are ignored too.
	s.Enqueue(editor.Event{Kind: editor.PointerDown, Point: r3.Vec{X: 40}})
	s.Enqueue(editor.Event{Kind: editor.PointerUp})
	s.Tick(frame)
	assert.Equal(t, 3, s.Track().Len())
}

func TestUpdateUnknownPoint(t *testing.T) {
	s := newSession(t, hump...)
	version := s.Track().Version()
	points := s.Track().Points()

	err := s.UpdatePoint("nope", r3.Vec{X: 1, Y: 1})
	assert.ErrorIs(t, err, track.ErrPointNotFound)
	assert.Equal(t, version, s.Track().Version())
	assert.Equal(t, points, s.Track().Points())
}

func TestSelection(t *testing.T) {
	s := newSession(t, hump...)

	require.NoError(t, s.SelectPoint("p2"))
	assert.Equal(t, track.PointID("p2"), s.State().Selected)

	assert.ErrorIs(t, s.SelectPoint("nope"), track.ErrPointNotFound)
	assert.Equal(t, track.PointID("p2"), s.State().Selected)

	require.NoError(t, s.RemovePoint("p2"))
	assert.Empty(t, s.State().Selected)

	require.NoError(t, s.SelectPoint("p1"))
	require.NoError(t, s.SelectPoint(""))
	assert.Empty(t, s.State().Selected)
}

func TestPointAt(t *testing.T) {
	s := newSession(t, hump...)
	id, ok := s.PointAt(r3.Vec{X: 10.2, Y: 5, Z: 0.1}, 0.5)
	require.True(t, ok)
	assert.Equal(t, track.PointID("p2"), id)

	// Clicks land on the ground plane, below the marker.
	id, ok = s.PointAt(r3.Vec{X: 9.8, Z: -0.2}, 0.5)
	require.True(t, ok)
	assert.Equal(t, track.PointID("p2"), id)

	_, ok = s.PointAt(r3.Vec{X: 5, Y: 5}, 0.5)
	assert.False(t, ok)
}

func TestLoadReplacesTrack(t *testing.T) {
	s := newSession(t, hump...)
	require.NoError(t, s.SelectPoint("p1"))

	doc := &track.Document{Name: "line", Points: []track.DocumentPoint{
		{ID: "a", Position: track.Position{X: 0, Y: 1}},
		{ID: "b", Position: track.Position{X: 30, Y: 1}},
	}}
	require.NoError(t, s.Load(doc))
	assert.Empty(t, s.State().Selected)
	assert.Equal(t, []track.PointID{"a", "b"}, ids(s.Track().Points()))
	assert.Equal(t, Build, s.State().Mode)
}

func TestLoadWhileRiding(t *testing.T) {
	s := newSession(t, hump...)
	require.NoError(t, s.SetMode(Ride))
	for i := 0; i < 60; i++ {
		s.Tick(frame)
	}

	line := &track.Document{Points: []track.DocumentPoint{
		{Position: track.Position{X: 0, Y: 1}}, {Position: track.Position{X: 30, Y: 1}},
	}}
	require.NoError(t, s.Load(line))
	assert.Equal(t, Ride, s.State().Mode)
	assert.Zero(t, s.Ride().Progress())
	f := s.Tick(frame)
	assert.True(t, f.Riding)
	assert.Less(t, f.Progress, 0.01)

	single := &track.Document{Points: []track.DocumentPoint{{Position: track.Position{X: 0, Y: 1}}}}
	require.NoError(t, s.Load(single))
	assert.Equal(t, Build, s.State().Mode)
}

func TestDocumentExport(t *testing.T) {
	s := newSession(t, hump...)
	doc := s.Document("hump")
	assert.Equal(t, "hump", doc.Name)
	assert.Len(t, doc.Points, 3)
	assert.Equal(t, "p1", doc.Points[0].ID)
}

func TestReset(t *testing.T) {
	audio := &recordingAudio{}
	s := New(DefaultParams(), WithAudio(audio))
	for _, p := range hump {
		_, err := s.AddPoint(p)
		require.NoError(t, err)
	}
	s.SetNight(true)
	s.SetMuted(true)
	require.NoError(t, s.SetMode(Ride))

	require.NoError(t, s.Reset())
	assert.Equal(t, State{Mode: Build}, s.State())
	assert.Zero(t, s.Track().Len())
	assert.Equal(t, physics.Stopped, s.Ride().State())
	assert.Equal(t, []bool{true, false}, audio.night)
	assert.Equal(t, []bool{true, false}, audio.muted)
}

func TestAudioHearsOnlyChanges(t *testing.T) {
	audio := &recordingAudio{}
	s := New(DefaultParams(), WithAudio(audio))

	s.SetNight(true)
	s.SetNight(true)
	s.ToggleNight()
	s.SetMuted(false)

	assert.Equal(t, []bool{true, false}, audio.night)
	assert.Empty(t, audio.muted)
	assert.False(t, s.Tick(frame).Night)
}

func TestWalkCurveFreezesTrack(t *testing.T) {
	s := newSession(t, hump...)

	count := 0
	var addErr error
	s.WalkCurve(10, func(sm curve.Sample) bool {
		count++
		if count == 1 {
			_, addErr = s.AddPoint(r3.Vec{X: 40, Y: 1})
		}
		return true
	})
	assert.Equal(t, 11, count)
	assert.ErrorIs(t, addErr, track.ErrReentrantMutation)
	assert.Equal(t, 3, s.Track().Len())

	_, err := s.AddPoint(r3.Vec{X: 40, Y: 1})
	assert.NoError(t, err)
}

func ids(points []track.ControlPoint) []track.PointID {
	out := make([]track.PointID, len(points))
	for i, p := range points {
		out[i] = p.ID
	}
	return out
}
