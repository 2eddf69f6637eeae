package hal

import (
	"context"
	"errors"
	"image"
	"image/color"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

type recordApp struct {
	steps    int
	quitAt   int
	stepErr  error
	w, h     int
	pointers []PointerEvent
	keys     []KeyEvent
	frame    Frame
}

func (a *recordApp) Step() error {
	a.steps++
	if a.stepErr != nil {
		return a.stepErr
	}
	if a.quitAt > 0 && a.steps >= a.quitAt {
		return ErrQuit
	}
	return nil
}

func (a *recordApp) Resize(w, h int)         { a.w, a.h = w, h }
func (a *recordApp) Pointer(ev PointerEvent) { a.pointers = append(a.pointers, ev) }
func (a *recordApp) Key(ev KeyEvent)         { a.keys = append(a.keys, ev) }
func (a *recordApp) Frame() Frame            { return a.frame }

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestFramebufferPresent(t *testing.T) {
	fb := NewFramebuffer(4, 3)
	if v := fb.Version(); v != 0 {
		t.Fatalf("Version() = %d, want 0", v)
	}

	red := color.RGBA{R: 0xff, A: 0xff}
	if err := fb.Present(solid(4, 3, red)); err != nil {
		t.Fatalf("Present: %v", err)
	}
	if v := fb.Version(); v != 1 {
		t.Fatalf("Version() = %d, want 1", v)
	}
	r, g, b, ok := fb.At(3, 2)
	if !ok || r != 0xff || g != 0 || b != 0 {
		t.Fatalf("At(3, 2) = %d,%d,%d,%v, want 255,0,0,true", r, g, b, ok)
	}
	if _, _, _, ok := fb.At(4, 0); ok {
		t.Fatal("At(4, 0) ok = true, want false")
	}

	dst := make([]byte, 4*3*4)
	if v := fb.Snapshot(dst); v != 1 {
		t.Fatalf("Snapshot() = %d, want 1", v)
	}
	if dst[0] != 0xff || dst[3] != 0xff {
		t.Fatalf("Snapshot pixel 0 = %v, want red", dst[:4])
	}
}

func TestFramebufferPresentSubImage(t *testing.T) {
	big := solid(6, 5, color.RGBA{B: 0xff, A: 0xff})
	big.SetRGBA(2, 1, color.RGBA{G: 0xff, A: 0xff})
	sub := big.SubImage(image.Rect(2, 1, 5, 3)).(*image.RGBA)

	fb := NewFramebuffer(3, 2)
	if err := fb.Present(sub); err != nil {
		t.Fatalf("Present: %v", err)
	}
	if _, g, _, _ := fb.At(0, 0); g != 0xff {
		t.Fatalf("At(0, 0) green = %d, want 255", g)
	}
	if _, _, b, _ := fb.At(2, 1); b != 0xff {
		t.Fatalf("At(2, 1) blue = %d, want 255", b)
	}
}

func TestFramebufferPresentSizeMismatch(t *testing.T) {
	fb := NewFramebuffer(4, 3)
	if err := fb.Present(solid(3, 3, color.RGBA{})); err == nil {
		t.Fatal("Present() err = nil, want size error")
	}
	if v := fb.Version(); v != 0 {
		t.Fatalf("Version() = %d, want 0", v)
	}
}

func TestFrameTopLeft(t *testing.T) {
	f := Frame{OffsetX: 400, OffsetY: 300, Scale: 6}
	x, y := f.TopLeft(100, 50)
	if x != 100 || y != 150 {
		t.Fatalf("TopLeft() = (%v, %v), want (100, 150)", x, y)
	}
}

func TestRunHeadlessTicks(t *testing.T) {
	fb := NewFramebuffer(2, 2)
	app := &recordApp{}
	err := RunHeadless(context.Background(), fb, func(got *Framebuffer) (App, error) {
		if got != fb {
			t.Fatal("newApp got a different framebuffer")
		}
		return app, nil
	}, HeadlessConfig{Hz: 1000, Ticks: 5, Width: 320, Height: 200})
	if err != nil {
		t.Fatalf("RunHeadless: %v", err)
	}
	if app.steps != 5 {
		t.Fatalf("steps = %d, want 5", app.steps)
	}
	if app.w != 320 || app.h != 200 {
		t.Fatalf("Resize = %dx%d, want 320x200", app.w, app.h)
	}
}

func TestRunHeadlessQuit(t *testing.T) {
	app := &recordApp{quitAt: 3}
	err := RunHeadless(context.Background(), NewFramebuffer(1, 1), func(*Framebuffer) (App, error) { return app, nil },
		HeadlessConfig{Hz: 1000})
	if err != nil {
		t.Fatalf("RunHeadless: %v", err)
	}
	if app.steps != 3 {
		t.Fatalf("steps = %d, want 3", app.steps)
	}
}

func TestRunHeadlessErrors(t *testing.T) {
	boom := errors.New("boom")

	err := RunHeadless(context.Background(), NewFramebuffer(1, 1), func(*Framebuffer) (App, error) { return nil, boom },
		HeadlessConfig{})
	if !errors.Is(err, boom) {
		t.Fatalf("newApp error: err = %v, want %v", err, boom)
	}

	app := &recordApp{stepErr: boom}
	err = RunHeadless(context.Background(), NewFramebuffer(1, 1), func(*Framebuffer) (App, error) { return app, nil },
		HeadlessConfig{Hz: 1000})
	if !errors.Is(err, boom) {
		t.Fatalf("step error: err = %v, want %v", err, boom)
	}
}

func TestRunHeadlessCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := RunHeadless(ctx, NewFramebuffer(1, 1), func(*Framebuffer) (App, error) { return &recordApp{}, nil },
		HeadlessConfig{Hz: 100})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want %v", err, context.DeadlineExceeded)
	}
}

func TestCompose(t *testing.T) {
	// 2x2 framebuffer drawn at scale 3 centred on a 10x8 screen: top-left
	// lands at (2, 1).
	fb := NewFramebuffer(2, 2)
	src := solid(2, 2, color.RGBA{R: 0xff, A: 0xff})
	src.SetRGBA(1, 1, color.RGBA{G: 0xff, A: 0xff})
	if err := fb.Present(src); err != nil {
		t.Fatal(err)
	}
	pix := make([]byte, 16)
	fb.Snapshot(pix)

	bg := color.RGBA{R: 1, G: 2, B: 3, A: 0xff}
	f := Frame{OffsetX: 5, OffsetY: 4, Scale: 3}
	img := Compose(nil, pix, 2, 2, f, 10, 8, bg)

	tests := []struct {
		x, y int
		want color.RGBA
	}{
		{0, 0, bg},
		{1, 1, bg},
		{2, 1, color.RGBA{R: 0xff, A: 0xff}},
		{4, 3, color.RGBA{R: 0xff, A: 0xff}},
		{5, 4, color.RGBA{G: 0xff, A: 0xff}},
		{7, 6, color.RGBA{G: 0xff, A: 0xff}},
		{8, 7, bg},
	}
	for _, tt := range tests {
		if got := img.RGBAAt(tt.x, tt.y); got != tt.want {
			t.Errorf("RGBAAt(%d, %d) = %v, want %v", tt.x, tt.y, got, tt.want)
		}
	}
}

func TestComposeOverlay(t *testing.T) {
	ov := image.NewRGBA(image.Rect(0, 0, 4, 4))
	ov.SetRGBA(1, 1, color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff})
	ov.SetRGBA(2, 2, color.RGBA{A: 0x80})

	bg := color.RGBA{R: 200, G: 200, B: 200, A: 0xff}
	img := Compose(nil, nil, 0, 0, Frame{Overlay: ov}, 4, 4, bg)

	if got := img.RGBAAt(0, 0); got != bg {
		t.Fatalf("uncovered pixel = %v, want %v", got, bg)
	}
	if got := img.RGBAAt(1, 1); got != (color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}) {
		t.Fatalf("opaque overlay pixel = %v, want white", got)
	}
	got := img.RGBAAt(2, 2)
	if got.R >= 200 || got.R < 90 || got.A != 0xff {
		t.Fatalf("half black overlay pixel = %v, want darkened background", got)
	}
}

func TestComposeDegenerate(t *testing.T) {
	if img := Compose(nil, nil, 0, 0, Frame{}, 0, 10, color.RGBA{}); img != nil {
		t.Fatal("Compose() with zero width != nil")
	}
}

func newTestTerm(app *recordApp) *termModel {
	fb := NewFramebuffer(2, 2)
	return newTermModel(app, fb, TerminalConfig{Hz: 10})
}

func TestTermModelResize(t *testing.T) {
	app := &recordApp{}
	m := newTestTerm(app)
	m.Update(tea.WindowSizeMsg{Width: 40, Height: 13})
	if app.w != 40 || app.h != 24 {
		t.Fatalf("Resize = %dx%d, want 40x24", app.w, app.h)
	}
}

func TestTermModelMouse(t *testing.T) {
	app := &recordApp{}
	m := newTestTerm(app)

	m.Update(tea.MouseMsg{X: 3, Y: 2, Action: tea.MouseActionMotion, Button: tea.MouseButtonNone})
	m.Update(tea.MouseMsg{X: 3, Y: 2, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft})
	m.Update(tea.MouseMsg{X: 5, Y: 4, Action: tea.MouseActionMotion, Button: tea.MouseButtonLeft})
	m.Update(tea.MouseMsg{X: 6, Y: 4, Action: tea.MouseActionRelease, Button: tea.MouseButtonLeft})
	m.Update(tea.MouseMsg{X: 1, Y: 1, Action: tea.MouseActionPress, Button: tea.MouseButtonWheelDown})

	want := []PointerEvent{
		{Kind: PointerDown, X: 3, Y: 4},
		{Kind: PointerMove, X: 5, Y: 8},
		{Kind: PointerUp, X: 6, Y: 8},
		{Kind: PointerWheel, X: 1, Y: 2, Wheel: -1},
	}
	if len(app.pointers) != len(want) {
		t.Fatalf("got %d pointer events %v, want %d", len(app.pointers), app.pointers, len(want))
	}
	for i := range want {
		if app.pointers[i] != want[i] {
			t.Fatalf("event %d = %+v, want %+v", i, app.pointers[i], want[i])
		}
	}
}

func TestTermModelKeys(t *testing.T) {
	app := &recordApp{}
	m := newTestTerm(app)

	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("3]")})
	m.Update(tea.KeyMsg{Type: tea.KeyEsc})

	want := []KeyEvent{
		{Press: true, Rune: '3'},
		{Press: true, Rune: ']'},
		{Code: KeyEscape, Press: true},
		{Code: KeyEscape, Press: false},
	}
	if len(app.keys) != len(want) {
		t.Fatalf("got %d key events %v, want %d", len(app.keys), app.keys, len(want))
	}
	for i := range want {
		if app.keys[i] != want[i] {
			t.Fatalf("key %d = %+v, want %+v", i, app.keys[i], want[i])
		}
	}

	if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC}); cmd == nil {
		t.Fatal("ctrl+c returned no command, want tea.Quit")
	}
}

func TestTermModelTick(t *testing.T) {
	app := &recordApp{quitAt: 2}
	m := newTestTerm(app)

	if _, cmd := m.Update(termTickMsg(time.Now())); cmd == nil {
		t.Fatal("tick returned no command, want next tick")
	}
	_, cmd := m.Update(termTickMsg(time.Now()))
	if cmd == nil {
		t.Fatal("quit tick returned no command, want tea.Quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("quit tick command is not tea.Quit")
	}
	if m.err != nil {
		t.Fatalf("err = %v, want nil on ErrQuit", m.err)
	}

	boom := errors.New("boom")
	app2 := &recordApp{stepErr: boom}
	m2 := newTestTerm(app2)
	m2.Update(termTickMsg(time.Now()))
	if !errors.Is(m2.err, boom) {
		t.Fatalf("err = %v, want %v", m2.err, boom)
	}
}

func TestTermModelView(t *testing.T) {
	app := &recordApp{frame: Frame{OffsetX: 4, OffsetY: 4, Scale: 2, Status: "connected"}}
	m := newTestTerm(app)
	if v := m.View(); v != "" {
		t.Fatalf("View() before size = %q, want empty", v)
	}

	m.Update(tea.WindowSizeMsg{Width: 12, Height: 5})
	v := m.View()
	lines := strings.Split(v, "\n")
	if len(lines) != 5 {
		t.Fatalf("View() has %d lines, want 5", len(lines))
	}
	if !strings.Contains(lines[4], "connected") {
		t.Fatalf("status line = %q, want it to contain %q", lines[4], "connected")
	}
	if n := strings.Count(lines[0], "▀"); n != 12 {
		t.Fatalf("first row has %d cells, want 12", n)
	}
}
