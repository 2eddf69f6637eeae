// Package viewport maps pointer gestures in screen space onto canvas cells.
//
// The transform places the canvas centre at Offset on screen and scales
// canvas pixels by Scale:
//
//	screen = offset + scale*(canvas - contentSize/2)
//
// Scale is kept inside [min, max], both derived from the container and
// content sizes: max lets one canvas pixel fill half the shorter container
// side, min shrinks the whole canvas into that same half.
package viewport

import "math"

const (
	// DefaultSensitivity is the zoom factor per unit of wheel delta.
	DefaultSensitivity = 0.01
	// DefaultClickThreshold is the largest pointer travel, in screen pixels,
	// that still counts as a click rather than a pan.
	DefaultClickThreshold = 4.0
)

// Point is a position in screen or canvas space.
type Point struct {
	X, Y float64
}

func (p Point) Sub(q Point) Point { return Point{p.X - q.X, p.Y - q.Y} }
func (p Point) Add(q Point) Point { return Point{p.X + q.X, p.Y + q.Y} }

// Size is a width/height pair in pixels.
type Size struct {
	W, H float64
}

// Transform is the pan/zoom state.
type Transform struct {
	OffsetX, OffsetY float64
	Scale            float64
}

// Offset returns the screen position of the canvas centre.
func (t Transform) Offset() Point { return Point{t.OffsetX, t.OffsetY} }

// Cell is an integer canvas coordinate. It may lie outside the canvas.
type Cell struct {
	X, Y int
}

// State is the gesture state.
type State uint8

const (
	Idle State = iota
	Dragging
)

func (s State) String() string {
	if s == Dragging {
		return "dragging"
	}
	return "idle"
}

// Option configures an Engine.
type Option func(*Engine)

// WithSensitivity sets the zoom factor per unit of wheel delta.
func WithSensitivity(s float64) Option {
	return func(e *Engine) {
		if s > 0 {
			e.sensitivity = s
		}
	}
}

// WithClickThreshold sets the click/pan travel threshold in screen pixels.
func WithClickThreshold(px float64) Option {
	return func(e *Engine) {
		if px >= 0 {
			e.clickThreshold2 = px * px
		}
	}
}

// Engine owns one Transform and the drag state machine. It is not safe for
// concurrent use; hosts drive it from their input goroutine.
type Engine struct {
	t     Transform
	state State

	stateBeforePan Transform
	mouseBeforePan Point

	container Size
	content   Size
	minScale  float64
	maxScale  float64

	sensitivity     float64
	clickThreshold2 float64
}

// New returns an engine with the content fitted into and centred in the
// container.
func New(container, content Size, opts ...Option) *Engine {
	e := &Engine{
		content:         content,
		sensitivity:     DefaultSensitivity,
		clickThreshold2: DefaultClickThreshold * DefaultClickThreshold,
		minScale:        1,
		maxScale:        1,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.container = container
	e.updateBounds()
	e.Fit()
	return e
}

// Transform returns the current transform.
func (e *Engine) Transform() Transform { return e.t }

// State returns the gesture state.
func (e *Engine) State() State { return e.state }

// Bounds returns the current scale limits.
func (e *Engine) Bounds() (min, max float64) { return e.minScale, e.maxScale }

// Container returns the container size last passed to New or Resize.
func (e *Engine) Container() Size { return e.container }

// Fit centres the content and scales it to fill the container, within bounds.
func (e *Engine) Fit() {
	fit := e.maxScale
	if e.container.W > 0 && e.container.H > 0 && e.content.W > 0 && e.content.H > 0 {
		fit = math.Min(e.container.W/e.content.W, e.container.H/e.content.H)
	}
	e.t = Transform{
		OffsetX: e.container.W / 2,
		OffsetY: e.container.H / 2,
		Scale:   e.clamp(fit),
	}
}

// Resize records a new container size, recomputes the scale bounds and
// clamps the current scale into them. A zero or negative size keeps the
// previous bounds.
func (e *Engine) Resize(container Size) {
	e.container = container
	if !e.updateBounds() {
		return
	}
	e.t.Scale = e.clamp(e.t.Scale)
}

// SetScale stores s, clamped into bounds, keeping the offset.
func (e *Engine) SetScale(s float64) {
	e.t.Scale = e.clamp(s)
}

// Begin starts a drag at p.
func (e *Engine) Begin(p Point) {
	e.state = Dragging
	e.stateBeforePan = e.t
	e.mouseBeforePan = p
}

// Move pans by the pointer travel since Begin. It is ignored when idle.
func (e *Engine) Move(p Point) {
	if e.state != Dragging {
		return
	}
	d := p.Sub(e.mouseBeforePan)
	e.t.OffsetX = e.stateBeforePan.OffsetX + d.X
	e.t.OffsetY = e.stateBeforePan.OffsetY + d.Y
}

// End finishes a drag at p. When the total pan stayed within the click
// threshold the gesture is a click: the pan is undone and the cell under p is
// returned with ok set. The cell is not bounds-checked.
func (e *Engine) End(p Point) (cell Cell, ok bool) {
	if e.state != Dragging {
		return Cell{}, false
	}
	e.Move(p)
	e.state = Idle

	dx := e.t.OffsetX - e.stateBeforePan.OffsetX
	dy := e.t.OffsetY - e.stateBeforePan.OffsetY
	if dx*dx+dy*dy > e.clickThreshold2 {
		return Cell{}, false
	}
	e.t.OffsetX = e.stateBeforePan.OffsetX
	e.t.OffsetY = e.stateBeforePan.OffsetY
	return e.CellAt(p), true
}

// Cancel abandons a drag, restoring the transform it started from.
func (e *Engine) Cancel() {
	if e.state != Dragging {
		return
	}
	e.t.OffsetX = e.stateBeforePan.OffsetX
	e.t.OffsetY = e.stateBeforePan.OffsetY
	e.state = Idle
}

// Zoom scales around p by a wheel delta (positive zooms out) and keeps the
// canvas point under p fixed on screen. It works in any state.
func (e *Engine) Zoom(p Point, deltaY float64) {
	old := e.t.Scale
	next := e.clamp(old * (1 - deltaY*e.sensitivity))
	if old <= 0 || next == old {
		e.t.Scale = next
		return
	}
	factor := next / old
	e.t.OffsetX = p.X - factor*(p.X-e.t.OffsetX)
	e.t.OffsetY = p.Y - factor*(p.Y-e.t.OffsetY)
	e.t.Scale = next
}

// TopLeft returns the screen position of the content's top-left corner.
func (e *Engine) TopLeft() Point {
	return Point{
		X: e.t.OffsetX - e.t.Scale*e.content.W/2,
		Y: e.t.OffsetY - e.t.Scale*e.content.H/2,
	}
}

// CanvasOf maps a screen point to fractional canvas pixels.
func (e *Engine) CanvasOf(p Point) Point {
	tl := e.TopLeft()
	return Point{X: (p.X - tl.X) / e.t.Scale, Y: (p.Y - tl.Y) / e.t.Scale}
}

// ScreenOf maps a canvas point to screen space.
func (e *Engine) ScreenOf(c Point) Point {
	tl := e.TopLeft()
	return Point{X: tl.X + c.X*e.t.Scale, Y: tl.Y + c.Y*e.t.Scale}
}

// CellAt returns the cell under screen point p. Results outside the canvas
// are returned as-is; callers reject them.
func (e *Engine) CellAt(p Point) Cell {
	c := e.CanvasOf(p)
	return Cell{X: int(math.Floor(c.X)), Y: int(math.Floor(c.Y))}
}

func (e *Engine) clamp(s float64) float64 {
	return math.Max(e.minScale, math.Min(s, e.maxScale))
}

// updateBounds derives the scale limits, picking the container's shorter
// side and the content side with the same orientation.
func (e *Engine) updateBounds() bool {
	c := e.container
	if c.W <= 0 || c.H <= 0 || e.content.W <= 0 || e.content.H <= 0 {
		return false
	}
	if c.W > c.H {
		e.maxScale = c.H / 2
		e.minScale = e.maxScale / e.content.H
	} else {
		e.maxScale = c.W / 2
		e.minScale = e.maxScale / e.content.W
	}
	return true
}
