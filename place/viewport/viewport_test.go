package viewport

import (
	"math"
	"math/rand"
	"testing"
)

const eps = 1e-9

func near(a, b float64) bool {
	return math.Abs(a-b) <= eps*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}

// 10x10 canvas in an 800x600 window: fit scale 60, bounds [30, 300],
// content top-left at (100, 0).
func newTestEngine() *Engine {
	return New(Size{800, 600}, Size{10, 10})
}

func TestNewFitsAndCentres(t *testing.T) {
	e := newTestEngine()
	tr := e.Transform()
	if tr.OffsetX != 400 || tr.OffsetY != 300 {
		t.Fatalf("offset = (%v,%v), want (400,300)", tr.OffsetX, tr.OffsetY)
	}
	if tr.Scale != 60 {
		t.Fatalf("scale = %v, want 60", tr.Scale)
	}
	if tl := e.TopLeft(); tl != (Point{100, 0}) {
		t.Fatalf("TopLeft() = %v, want (100,0)", tl)
	}
	if e.State() != Idle {
		t.Fatalf("State() = %v, want idle", e.State())
	}
}

func TestBoundsOrientation(t *testing.T) {
	tests := []struct {
		name               string
		container, content Size
		wantMin, wantMax   float64
	}{
		{"landscape", Size{800, 600}, Size{100, 50}, 6, 300},
		{"portrait", Size{600, 800}, Size{100, 50}, 3, 300},
		{"square is portrait", Size{500, 500}, Size{100, 250}, 2.5, 250},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New(tt.container, tt.content)
			min, max := e.Bounds()
			if !near(min, tt.wantMin) || !near(max, tt.wantMax) {
				t.Fatalf("Bounds() = (%v,%v), want (%v,%v)", min, max, tt.wantMin, tt.wantMax)
			}
			s := e.Transform().Scale
			if s < min || s > max {
				t.Fatalf("initial scale %v outside [%v,%v]", s, min, max)
			}
		})
	}
}

func TestFitClampsLargeCanvas(t *testing.T) {
	// Bounds are [0.05, 200]; fit 0.1 is inside them.
	e := New(Size{400, 400}, Size{4000, 4000})
	if got := e.Transform().Scale; !near(got, 0.1) {
		t.Fatalf("scale = %v, want 0.1", got)
	}
	// A 1x1 canvas would fit at 400 but max is 200.
	e = New(Size{400, 400}, Size{1, 1})
	if got := e.Transform().Scale; got != 200 {
		t.Fatalf("scale = %v, want clamped 200", got)
	}
}

func TestDragPans(t *testing.T) {
	e := newTestEngine()
	e.Begin(Point{10, 10})
	if e.State() != Dragging {
		t.Fatalf("State() = %v, want dragging", e.State())
	}
	e.Move(Point{60, 30})
	if tr := e.Transform(); tr.OffsetX != 450 || tr.OffsetY != 320 {
		t.Fatalf("offset after move = (%v,%v), want (450,320)", tr.OffsetX, tr.OffsetY)
	}
	e.Move(Point{0, 0})
	if tr := e.Transform(); tr.OffsetX != 390 || tr.OffsetY != 290 {
		t.Fatalf("offset after second move = (%v,%v), want (390,290)", tr.OffsetX, tr.OffsetY)
	}
	if _, ok := e.End(Point{0, 0}); ok {
		t.Fatalf("End() after 14px pan reported a click")
	}
	if e.State() != Idle {
		t.Fatalf("State() = %v after End, want idle", e.State())
	}
	if tr := e.Transform(); tr.OffsetX != 390 {
		t.Fatalf("pan not kept after End: %v", tr)
	}
}

func TestMoveWhileIdleIgnored(t *testing.T) {
	e := newTestEngine()
	before := e.Transform()
	e.Move(Point{500, 500})
	if e.Transform() != before {
		t.Fatalf("Move() while idle changed transform")
	}
	if _, ok := e.End(Point{1, 1}); ok {
		t.Fatalf("End() while idle reported a click")
	}
}

func TestClickWithinThreshold(t *testing.T) {
	e := newTestEngine()
	before := e.Transform()
	e.Begin(Point{218, 90})
	e.Move(Point{220, 90})
	cell, ok := e.End(Point{221, 90})
	if !ok {
		t.Fatalf("End() after 3px reported no click")
	}
	// (221-100)/60 = 2.01, 90/60 = 1.5
	if cell != (Cell{2, 1}) {
		t.Fatalf("click cell = %v, want (2,1)", cell)
	}
	if e.Transform() != before {
		t.Fatalf("click left the canvas panned: %v, want %v", e.Transform(), before)
	}
}

func TestClickThresholdBoundary(t *testing.T) {
	tests := []struct {
		name   string
		end    Point
		wantOK bool
	}{
		{"3px", Point{203, 100}, true},
		{"4px", Point{200, 104}, true},
		{"diagonal 3-4-5", Point{203, 104}, false},
		{"5px", Point{205, 100}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine()
			e.Begin(Point{200, 100})
			_, ok := e.End(tt.end)
			if ok != tt.wantOK {
				t.Fatalf("End(%v) click = %v, want %v", tt.end, ok, tt.wantOK)
			}
		})
	}
}

func TestCustomClickThreshold(t *testing.T) {
	e := New(Size{800, 600}, Size{10, 10}, WithClickThreshold(10))
	e.Begin(Point{200, 100})
	if _, ok := e.End(Point{208, 100}); !ok {
		t.Fatalf("8px travel with threshold 10 not a click")
	}
}

func TestCellAtFloorsOutsideCanvas(t *testing.T) {
	e := newTestEngine()
	tests := []struct {
		p    Point
		want Cell
	}{
		{Point{100, 0}, Cell{0, 0}},
		{Point{159.999, 59.999}, Cell{0, 0}},
		{Point{160, 60}, Cell{1, 1}},
		{Point{699.9, 599.9}, Cell{9, 9}},
		{Point{99, 10}, Cell{-1, 0}},
		{Point{700, -1}, Cell{10, -1}},
	}
	for _, tt := range tests {
		if got := e.CellAt(tt.p); got != tt.want {
			t.Fatalf("CellAt(%v) = %v, want %v", tt.p, got, tt.want)
		}
	}
}

func TestZoomKeepsPointUnderCursor(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	e := New(Size{1024, 768}, Size{100, 80})
	for i := 0; i < 500; i++ {
		p := Point{rng.Float64() * 1024, rng.Float64() * 768}
		delta := (rng.Float64()*2 - 1) * 120
		under := e.CanvasOf(p)

		e.Zoom(p, delta)

		min, max := e.Bounds()
		if s := e.Transform().Scale; s < min || s > max {
			t.Fatalf("step %d: scale %v outside [%v,%v]", i, s, min, max)
		}
		got := e.ScreenOf(under)
		if math.Abs(got.X-p.X) > 1e-6 || math.Abs(got.Y-p.Y) > 1e-6 {
			t.Fatalf("step %d: canvas point %v moved from %v to %v", i, under, p, got)
		}
	}
}

func TestZoomDirectionAndClamp(t *testing.T) {
	e := newTestEngine()
	p := Point{400, 300}
	e.Zoom(p, -10)
	if got := e.Transform().Scale; !near(got, 66) {
		t.Fatalf("zoom in: scale = %v, want 66", got)
	}
	e.Zoom(p, 10)
	if got := e.Transform().Scale; !near(got, 59.4) {
		t.Fatalf("zoom out: scale = %v, want 59.4", got)
	}
	for i := 0; i < 100; i++ {
		e.Zoom(p, 50)
	}
	if got := e.Transform().Scale; got != 30 {
		t.Fatalf("scale after zooming out = %v, want min 30", got)
	}
	for i := 0; i < 100; i++ {
		e.Zoom(p, -90)
	}
	if got := e.Transform().Scale; got != 300 {
		t.Fatalf("scale after zooming in = %v, want max 300", got)
	}
	// A delta large enough to flip the sign still lands on min.
	e.Zoom(p, 1000)
	if got := e.Transform().Scale; got != 30 {
		t.Fatalf("scale after huge delta = %v, want 30", got)
	}
}

func TestZoomDuringDrag(t *testing.T) {
	e := newTestEngine()
	e.Begin(Point{100, 100})
	e.Zoom(Point{100, 100}, -10)
	if e.State() != Dragging {
		t.Fatalf("Zoom() changed drag state")
	}
	e.Move(Point{150, 100})
	tr := e.Transform()
	if tr.OffsetX != 450 || !near(tr.Scale, 66) {
		t.Fatalf("transform after zoom+move = %+v, want offsetX 450 scale 66", tr)
	}
}

func TestResizeReclamps(t *testing.T) {
	e := newTestEngine()
	e.SetScale(300)
	e.Resize(Size{200, 100})
	min, max := e.Bounds()
	if min != 5 || max != 50 {
		t.Fatalf("Bounds() after resize = (%v,%v), want (5,50)", min, max)
	}
	if got := e.Transform().Scale; got != 50 {
		t.Fatalf("scale after resize = %v, want 50", got)
	}

	e.Resize(Size{0, 0})
	if min2, max2 := e.Bounds(); min2 != min || max2 != max {
		t.Fatalf("degenerate resize changed bounds to (%v,%v)", min2, max2)
	}
}

func TestSetScaleClamps(t *testing.T) {
	e := newTestEngine()
	e.SetScale(1)
	if got := e.Transform().Scale; got != 30 {
		t.Fatalf("SetScale(1) = %v, want 30", got)
	}
	e.SetScale(1e9)
	if got := e.Transform().Scale; got != 300 {
		t.Fatalf("SetScale(1e9) = %v, want 300", got)
	}
}

func TestCancelRestores(t *testing.T) {
	e := newTestEngine()
	before := e.Transform()
	e.Begin(Point{0, 0})
	e.Move(Point{100, 100})
	e.Cancel()
	if e.Transform() != before || e.State() != Idle {
		t.Fatalf("Cancel() left %+v in %v", e.Transform(), e.State())
	}
}

func TestFitAfterPanAndZoom(t *testing.T) {
	e := newTestEngine()
	want := e.Transform()
	e.Begin(Point{0, 0})
	e.End(Point{50, 50})
	e.Zoom(Point{10, 10}, -20)
	e.Fit()
	if e.Transform() != want {
		t.Fatalf("Fit() = %+v, want %+v", e.Transform(), want)
	}
}
