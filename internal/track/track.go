package track

import (
	"errors"
	"fmt"
	"math"

	"coaster-builder/internal/common"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r3"
)

// MinHeight is the lowest height a control point may sit at.
const MinHeight = 0.5

var (
	// ErrPointNotFound is returned when an operation names an id that is not on the track.
	ErrPointNotFound = errors.New("track: point not found")
	// ErrInvalidPosition is returned for positions with NaN or infinite components.
	ErrInvalidPosition = errors.New("track: invalid position")
	// ErrReentrantMutation is returned when the track is mutated while frozen for sampling.
	ErrReentrantMutation = errors.New("track: mutation while frozen")
	// ErrDuplicateID is returned by Replace when two points share an id.
	ErrDuplicateID = errors.New("track: duplicate point id")
)

// PointID identifies a control point. It never changes once assigned.
type PointID string

// ControlPoint is a user-placed anchor the track passes through.
type ControlPoint struct {
	ID       PointID
	Position r3.Vec // World coordinates, Y is height
}

// Option configures a Track.
type Option func(*Track)

// WithMinHeight overrides the height clamp.
func WithMinHeight(h float64) Option {
	return func(t *Track) {
		t.minHeight = h
	}
}

// WithIDGenerator replaces the uuid-based id source.
func WithIDGenerator(fn func() PointID) Option {
	return func(t *Track) {
		t.newID = fn
	}
}

// Track is the ordered, mutable sequence of control points.
// Every effective mutation bumps Version so derived geometry can be memoized.
type Track struct {
	points    []ControlPoint
	index     map[PointID]int
	version   uint64
	minHeight float64
	newID     func() PointID

	// frozen counts active Freeze calls.
	frozen int

	// snapshot is the last sequence that passed Check.
	snapshot []ControlPoint
}

// New creates an empty track.
func New(opts ...Option) *Track {
	t := &Track{
		index:     make(map[PointID]int),
		minHeight: MinHeight,
		newID:     func() PointID { return PointID(uuid.NewString()) },
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// MinHeight returns the height clamp in effect.
func (t *Track) MinHeight() float64 {
	return t.minHeight
}

// Version returns a counter that changes whenever the point sequence changes.
func (t *Track) Version() uint64 {
	return t.version
}

// Len returns the number of control points.
func (t *Track) Len() int {
	return len(t.points)
}

// Points returns a copy of the control points in path order.
func (t *Track) Points() []ControlPoint {
	out := make([]ControlPoint, len(t.points))
	copy(out, t.points)
	return out
}

// Positions returns the control point positions in path order.
func (t *Track) Positions() []r3.Vec {
	out := make([]r3.Vec, len(t.points))
	for i, p := range t.points {
		out[i] = p.Position
	}
	return out
}

// Point returns the control point with the given id.
func (t *Track) Point(id PointID) (ControlPoint, bool) {
	i, ok := t.index[id]
	if !ok {
		return ControlPoint{}, false
	}
	return t.points[i], true
}

// Index returns the path position of id, or -1.
func (t *Track) Index(id PointID) int {
	if i, ok := t.index[id]; ok {
		return i
	}
	return -1
}

// Add appends a control point at pos, clamping its height, and returns its id.
func (t *Track) Add(pos r3.Vec) (PointID, error) {
	if err := t.checkMutable(); err != nil {
		return "", err
	}
	if !common.IsFinite(pos) {
		return "", fmt.Errorf("%w: %v", ErrInvalidPosition, pos)
	}
	id := t.newID()
	t.points = append(t.points, ControlPoint{ID: id, Position: t.clamp(pos)})
	t.index[id] = len(t.points) - 1
	t.commit()
	return id, nil
}

// Update moves the point with the given id in place, clamping its height.
// Storing an identical position leaves the version untouched.
func (t *Track) Update(id PointID, pos r3.Vec) error {
	if err := t.checkMutable(); err != nil {
		return err
	}
	i, ok := t.index[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrPointNotFound, id)
	}
	if !common.IsFinite(pos) {
		return fmt.Errorf("%w: %v", ErrInvalidPosition, pos)
	}
	pos = t.clamp(pos)
	if t.points[i].Position == pos {
		return nil
	}
	t.points[i].Position = pos
	t.commit()
	return nil
}

// Remove deletes the point with the given id, keeping the order of the rest.
func (t *Track) Remove(id PointID) error {
	if err := t.checkMutable(); err != nil {
		return err
	}
	i, ok := t.index[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrPointNotFound, id)
	}
	t.points = append(t.points[:i], t.points[i+1:]...)
	t.reindex()
	t.commit()
	return nil
}

// Replace swaps in a whole point sequence. Points without an id get a fresh one.
func (t *Track) Replace(points []ControlPoint) error {
	if err := t.checkMutable(); err != nil {
		return err
	}
	next := make([]ControlPoint, len(points))
	seen := make(map[PointID]struct{}, len(points))
	for i, p := range points {
		if !common.IsFinite(p.Position) {
			return fmt.Errorf("%w: point %d: %v", ErrInvalidPosition, i, p.Position)
		}
		if p.ID == "" {
			p.ID = t.newID()
		}
		if _, dup := seen[p.ID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateID, p.ID)
		}
		seen[p.ID] = struct{}{}
		next[i] = ControlPoint{ID: p.ID, Position: t.clamp(p.Position)}
	}
	t.points = next
	t.reindex()
	t.commit()
	return nil
}

// Clear removes every point.
func (t *Track) Clear() error {
	return t.Replace(nil)
}

// Freeze blocks mutation until the returned func is called.
// Freezes nest; the track is mutable again once every thaw has run.
func (t *Track) Freeze() (thaw func()) {
	t.frozen++
	done := false
	return func() {
		if done {
			return
		}
		done = true
		t.frozen--
	}
}

// Frozen reports whether a Freeze is active.
func (t *Track) Frozen() bool {
	return t.frozen > 0
}

// Nearest finds the control point closest to pos within radius.
// TODO Optimization: linear search is fine for tens of points; a spatial hash would be needed for thousands.
func (t *Track) Nearest(pos r3.Vec, radius float64) (ControlPoint, bool) {
	return t.nearest(radius, func(p r3.Vec) float64 { return r3.Norm2(r3.Sub(pos, p)) })
}

// NearestInPlan is Nearest measured in the ground plane, ignoring height.
// Hosts with a top-down view hit test markers with it.
func (t *Track) NearestInPlan(pos r3.Vec, radius float64) (ControlPoint, bool) {
	return t.nearest(radius, func(p r3.Vec) float64 {
		dx, dz := pos.X-p.X, pos.Z-p.Z
		return dx*dx + dz*dz
	})
}

func (t *Track) nearest(radius float64, distSq func(r3.Vec) float64) (ControlPoint, bool) {
	minDistSq := math.MaxFloat64
	closestIdx := -1

	for i, p := range t.points {
		d := distSq(p.Position)
		if d < minDistSq {
			minDistSq = d
			closestIdx = i
		}
	}

	if closestIdx == -1 || minDistSq > radius*radius {
		return ControlPoint{}, false
	}
	return t.points[closestIdx], true
}

func (t *Track) checkMutable() error {
	if t.frozen > 0 {
		return ErrReentrantMutation
	}
	return nil
}

func (t *Track) clamp(pos r3.Vec) r3.Vec {
	if pos.Y < t.minHeight {
		pos.Y = t.minHeight
	}
	return pos
}

func (t *Track) reindex() {
	t.index = make(map[PointID]int, len(t.points))
	for i, p := range t.points {
		t.index[p.ID] = i
	}
}

// commit bumps the version and records the new sequence as consistent.
func (t *Track) commit() {
	t.version++
	t.snapshot = make([]ControlPoint, len(t.points))
	copy(t.snapshot, t.points)
}
