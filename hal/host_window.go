//go:build cgo

package hal

import (
	"errors"
	"image"
	"image/color"

	"place/internal/buildinfo"

	"github.com/hajimehoshi/ebiten/v2"
)

var windowBG = color.RGBA{R: 0x30, G: 0x30, B: 0x30, A: 0xff}

// WindowConfig sizes the desktop window.
type WindowConfig struct {
	Width, Height int
	Title         string
	TPS           int
}

// RunWindow opens a resizable desktop window that shows the framebuffer at
// the app's pan/zoom and forwards mouse, wheel and keyboard input. It
// blocks until the window closes or the app returns ErrQuit.
func RunWindow(fb *Framebuffer, newApp func(*Framebuffer) (App, error), cfg WindowConfig) error {
	app, err := newApp(fb)
	if err != nil {
		return err
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		cfg.Width, cfg.Height = 960, 720
	}
	if cfg.TPS <= 0 {
		cfg.TPS = 60
	}
	title := cfg.Title
	if title == "" {
		title = "place"
	}

	g := &hostGame{app: app, fb: fb}
	ebiten.SetWindowTitle(title + " (" + buildinfo.Short() + ")")
	ebiten.SetWindowSize(cfg.Width, cfg.Height)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetTPS(cfg.TPS)
	err = ebiten.RunGame(g)
	if errors.Is(err, ebiten.Termination) {
		return nil
	}
	return err
}

type hostGame struct {
	app   App
	fb    *Framebuffer
	input inputState

	w, h int

	scratch []byte
	fbImg   *ebiten.Image
	version uint64

	ovImg *ebiten.Image
}

func (g *hostGame) Update() error {
	g.input.poll(g.app)
	if err := g.app.Step(); err != nil {
		if errors.Is(err, ErrQuit) {
			return ebiten.Termination
		}
		return err
	}
	return nil
}

func (g *hostGame) Draw(screen *ebiten.Image) {
	screen.Fill(windowBG)

	fb := g.fb
	if g.fbImg == nil {
		g.scratch = make([]byte, fb.width*fb.height*4)
		g.fbImg = ebiten.NewImage(fb.width, fb.height)
	}
	if v := fb.Version(); v != g.version {
		g.version = fb.Snapshot(g.scratch)
		g.fbImg.WritePixels(g.scratch)
	}

	f := g.app.Frame()
	if f.Scale > 0 {
		x, y := f.TopLeft(fb.width, fb.height)
		op := &ebiten.DrawImageOptions{}
		op.GeoM.Scale(f.Scale, f.Scale)
		op.GeoM.Translate(x, y)
		op.Filter = ebiten.FilterNearest
		screen.DrawImage(g.fbImg, op)
	}

	if f.Overlay != nil {
		g.drawOverlay(screen, f.Overlay)
	}
}

func (g *hostGame) drawOverlay(screen *ebiten.Image, ov *image.RGBA) {
	b := ov.Bounds()
	if g.ovImg == nil || g.ovImg.Bounds().Dx() != b.Dx() || g.ovImg.Bounds().Dy() != b.Dy() {
		if g.ovImg != nil {
			g.ovImg.Deallocate()
		}
		g.ovImg = ebiten.NewImage(b.Dx(), b.Dy())
	}
	g.ovImg.WritePixels(ov.Pix)
	screen.DrawImage(g.ovImg, nil)
}

func (g *hostGame) Layout(outsideWidth, outsideHeight int) (int, int) {
	if outsideWidth != g.w || outsideHeight != g.h {
		g.w, g.h = outsideWidth, outsideHeight
		g.app.Resize(outsideWidth, outsideHeight)
	}
	return outsideWidth, outsideHeight
}
