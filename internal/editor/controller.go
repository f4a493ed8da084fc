package editor

import (
	"errors"
	"math"

	"coaster-builder/internal/common"
	"coaster-builder/internal/monitoring"
	"coaster-builder/internal/track"

	"gonum.org/v1/gonum/spatial/r3"
)

// Kind is the pointer event type.
type Kind int

const (
	PointerDown Kind = iota
	PointerMove
	PointerUp
	// PointerCancel ends a drag without committing, e.g. when the pointer leaves the canvas.
	PointerCancel
)

func (k Kind) String() string {
	switch k {
	case PointerDown:
		return "down"
	case PointerMove:
		return "move"
	case PointerUp:
		return "up"
	case PointerCancel:
		return "cancel"
	}
	return "unknown"
}

// Event is a pointer event already projected onto the build plane.
type Event struct {
	Kind     Kind
	Point    r3.Vec      // Build plane hit
	Movement common.Vec2 // Screen delta in pixels since the last event, +Y is down
	Target   track.PointID
}

// Context is the session state the controller reads and writes.
type Context interface {
	Building() bool
	Select(id track.PointID)
}

// Params tunes the editor.
type Params struct {
	DefaultHeight         float64
	PreviewHeightPerPixel float64
	DragHeightPerPixel    float64
	MinSpacing            float64 // Commits closer than this to the last point are rejected
	SnapRadius            float64 // Horizontal distance that snaps a commit onto the first point
}

// DefaultParams returns the stock editor tuning.
func DefaultParams() Params {
	return Params{
		DefaultHeight:         5,
		PreviewHeightPerPixel: 0.05,
		DragHeightPerPixel:    0.05,
		MinSpacing:            1,
		SnapRadius:            1,
	}
}

type dragKind int

const (
	dragNone dragKind = iota
	dragNew
	dragPoint
)

// Controller turns pointer events into track mutations.
// Only one drag, of a point or of the new-point preview, is active at a time.
type Controller struct {
	track  *track.Track
	ctx    Context
	params Params

	// height is the preview height; it carries over between placements.
	height float64

	drag    dragKind
	preview r3.Vec
	target  track.PointID
}

// NewController creates a controller editing t.
func NewController(t *track.Track, ctx Context, p Params) *Controller {
	c := &Controller{track: t, ctx: ctx, params: p}
	c.height = math.Max(p.DefaultHeight, t.MinHeight())
	return c
}

// Params returns the editor tuning.
func (c *Controller) Params() Params {
	return c.params
}

// PreviewHeight is the height the next new point will be placed at.
func (c *Controller) PreviewHeight() float64 {
	return c.height
}

// Preview returns the uncommitted new point, if one is being placed.
func (c *Controller) Preview() (r3.Vec, bool) {
	return c.preview, c.drag == dragNew
}

// Dragging returns the id of the point being dragged, if any.
func (c *Controller) Dragging() (track.PointID, bool) {
	return c.target, c.drag == dragPoint
}

// Cancel ends any drag without committing the preview.
func (c *Controller) Cancel() {
	c.drag = dragNone
	c.target = ""
	c.preview = r3.Vec{}
}

// Reset cancels any drag and restores the default preview height.
func (c *Controller) Reset() {
	c.Cancel()
	c.height = math.Max(c.params.DefaultHeight, c.track.MinHeight())
}

// Handle applies one event and reports whether the track changed.
// Outside build mode every event is ignored and any drag is cancelled.
func (c *Controller) Handle(ev Event) bool {
	if !c.ctx.Building() {
		c.Cancel()
		return false
	}

	switch ev.Kind {
	case PointerDown:
		c.down(ev)
		return false
	case PointerMove:
		return c.move(ev)
	case PointerUp:
		return c.up()
	case PointerCancel:
		c.Cancel()
	}
	return false
}

func (c *Controller) down(ev Event) {
	c.Cancel()

	if ev.Target != "" {
		if _, ok := c.track.Point(ev.Target); !ok {
			monitoring.Logf("editor: pointer down on unknown point %s, ignoring", ev.Target)
			return
		}
		c.ctx.Select(ev.Target)
		c.drag = dragPoint
		c.target = ev.Target
		return
	}

	c.ctx.Select("")
	c.drag = dragNew
	c.preview = r3.Vec{X: ev.Point.X, Y: c.height, Z: ev.Point.Z}
}

func (c *Controller) move(ev Event) bool {
	switch c.drag {
	case dragNew:
		c.height = math.Max(c.track.MinHeight(), c.height-ev.Movement.Y*c.params.PreviewHeightPerPixel)
		c.preview.Y = c.height
		return false

	case dragPoint:
		p, ok := c.track.Point(c.target)
		if !ok {
			monitoring.Logf("editor: dragged point %s is gone, ending drag", c.target)
			c.Cancel()
			return false
		}
		pos := p.Position
		pos.Y -= ev.Movement.Y * c.params.DragHeightPerPixel
		v := c.track.Version()
		return c.apply(c.track.Update(c.target, pos), v)
	}
	return false
}

func (c *Controller) up() bool {
	if c.drag != dragNew {
		c.Cancel()
		return false
	}
	pos := c.preview
	c.Cancel()

	points := c.track.Points()
	if n := len(points); n > 0 {
		first := points[0].Position
		if n >= 3 && horizontalDistance(pos, first) <= c.params.SnapRadius {
			pos = first
		} else if d := common.Distance(pos, points[n-1].Position); d < c.params.MinSpacing {
			monitoring.Logf("editor: new point %.2fm from the last one (minimum %.2fm), ignoring", d, c.params.MinSpacing)
			return false
		}
	}

	v := c.track.Version()
	_, err := c.track.Add(pos)
	return c.apply(err, v)
}

// apply logs mutation errors and reports whether the track moved past version v.
func (c *Controller) apply(err error, v uint64) bool {
	switch {
	case err == nil:
		return c.track.Version() != v
	case errors.Is(err, track.ErrPointNotFound):
		monitoring.Logf("editor: %v", err)
		c.Cancel()
	default:
		monitoring.Logf("editor: mutation rejected: %v", err)
	}
	return false
}

func horizontalDistance(a, b r3.Vec) float64 {
	return math.Hypot(a.X-b.X, a.Z-b.Z)
}
