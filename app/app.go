// Package app is the place client as a hal.App: it owns the session, maps
// pointer gestures through the viewport and draws the status and palette
// overlay.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"place/hal"
	"place/internal/config"
	"place/internal/logging"
	"place/place/canvas"
	"place/place/client"
	"place/place/palette"
	"place/place/render"
	"place/place/session"
	"place/place/viewport"
)

// ExportScale is the cell size, in pixels, of PNG snapshots taken with 'p'.
const ExportScale = 8

// Options configures an App. Fetch and Dial default to HTTP and WebSocket
// clients for cfg.Server.
type Options struct {
	Config *config.Config
	Logger *slog.Logger
	Client *http.Client

	Fetch session.FetchFunc
	Dial  session.DialFunc

	// ExportDir receives PNG snapshots. Empty means the working directory.
	ExportDir string
	Now       func() time.Time
}

// App implements hal.App.
type App struct {
	log       *slog.Logger
	pal       palette.Palette
	ctl       *session.Controller
	view      *viewport.Engine
	overlay   *render.Overlay
	wheelStep float64

	w, h  int
	sized bool

	// swatchPress is set while a press that started on the palette strip is
	// held, so its release is not taken as a canvas click.
	swatchPress bool
	quit        bool
	note        string

	exportDir string
	now       func() time.Time
}

var _ hal.App = (*App)(nil)

// New builds the client and starts connecting. fb must match the canvas
// size; it receives every painted frame.
func New(ctx context.Context, fb *hal.Framebuffer, opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := logging.Or(opts.Logger)

	pal, err := cfg.Palette()
	if err != nil {
		return nil, err
	}
	if fb.Width() != cfg.Canvas.Width || fb.Height() != cfg.Canvas.Height {
		return nil, fmt.Errorf("app: framebuffer %dx%d, canvas %dx%d",
			fb.Width(), fb.Height(), cfg.Canvas.Width, cfg.Canvas.Height)
	}

	fetch := opts.Fetch
	if fetch == nil {
		boot, err := client.NewBootstrapper(cfg.Server.BaseURL, cfg.Server.CanvasPath, client.BootstrapOptions{
			Client: opts.Client,
			Logger: log,
		})
		if err != nil {
			return nil, err
		}
		fetch = boot.Fetch
	}
	dial := opts.Dial
	if dial == nil {
		wsURL, err := client.WebSocketURL(cfg.Server.BaseURL, cfg.Server.ConnectPath)
		if err != nil {
			return nil, err
		}
		dial = func(ctx context.Context) (session.Stream, error) {
			s, err := client.Dial(ctx, wsURL, client.StreamOptions{Logger: log})
			if err != nil {
				return nil, err
			}
			return s, nil
		}
	}

	ctl, err := session.New(session.Config{
		Width:   cfg.Canvas.Width,
		Height:  cfg.Canvas.Height,
		Palette: pal,
		Surface: fb,
		Fetch:   fetch,
		Dial:    dial,
		Logger:  log,
	})
	if err != nil {
		return nil, err
	}

	view := viewport.New(
		viewport.Size{W: float64(cfg.Window.Width), H: float64(cfg.Window.Height)},
		viewport.Size{W: float64(cfg.Canvas.Width), H: float64(cfg.Canvas.Height)},
		viewport.WithSensitivity(cfg.Viewport.ZoomSensitivity),
		viewport.WithClickThreshold(cfg.Viewport.ClickThreshold),
	)

	now := opts.Now
	if now == nil {
		now = time.Now
	}
	a := &App{
		log:       log.With("component", "app"),
		pal:       pal,
		ctl:       ctl,
		view:      view,
		overlay:   render.NewOverlay(pal),
		wheelStep: cfg.Viewport.WheelStep,
		w:         cfg.Window.Width,
		h:         cfg.Window.Height,
		exportDir: opts.ExportDir,
		now:       now,
	}
	if err := ctl.Start(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

// Close stops the session. It is safe to call more than once.
func (a *App) Close() { a.ctl.Stop() }

// Session exposes the controller.
func (a *App) Session() *session.Controller { return a.ctl }

// Viewport exposes the pan/zoom engine.
func (a *App) Viewport() *viewport.Engine { return a.view }

func (a *App) Step() error {
	if a.quit {
		return hal.ErrQuit
	}
	return a.ctl.Step()
}

func (a *App) Resize(w, h int) {
	if w == a.w && h == a.h && a.sized {
		return
	}
	a.w, a.h = w, h
	a.view.Resize(viewport.Size{W: float64(w), H: float64(h)})
	if !a.sized {
		a.sized = true
		a.view.Fit()
	}
}

func (a *App) Pointer(ev hal.PointerEvent) {
	p := viewport.Point{X: ev.X, Y: ev.Y}
	switch ev.Kind {
	case hal.PointerDown:
		if i, ok := a.overlay.SwatchAt(int(ev.X), int(ev.Y), a.w, a.h); ok {
			a.swatchPress = true
			a.ctl.SelectColor(int(i))
			return
		}
		a.view.Begin(p)
	case hal.PointerMove:
		if !a.swatchPress {
			a.view.Move(p)
		}
	case hal.PointerUp:
		if a.swatchPress {
			a.swatchPress = false
			return
		}
		if cell, ok := a.view.End(p); ok {
			a.click(cell)
		}
	case hal.PointerWheel:
		a.view.Zoom(p, -ev.Wheel*a.wheelStep)
	case hal.PointerCancel:
		a.swatchPress = false
		a.view.Cancel()
	}
}

func (a *App) click(cell viewport.Cell) {
	err := a.ctl.Click(cell.X, cell.Y)
	switch {
	case err == nil:
		a.note = ""
	case errors.Is(err, canvas.ErrOutOfBounds):
		a.log.Debug("click outside canvas", "x", cell.X, "y", cell.Y)
	case errors.Is(err, session.ErrNotConnected):
		a.note = "not connected"
	default:
		a.log.Warn("send failed", "x", cell.X, "y", cell.Y, "err", err)
		a.note = "send failed"
	}
}

func (a *App) Key(ev hal.KeyEvent) {
	if !ev.Press {
		return
	}
	switch ev.Code {
	case hal.KeyEscape:
		a.quit = true
		return
	case hal.KeyHome:
		a.view.Fit()
		return
	case hal.KeyLeft:
		a.ctl.SelectColor(int(a.ctl.Selected()) - 1)
		return
	case hal.KeyRight:
		a.ctl.SelectColor(int(a.ctl.Selected()) + 1)
		return
	}

	r := ev.Rune
	switch {
	case r >= '0' && r <= '9':
		a.selectIndex(int(r - '0'))
	case r >= 'a' && r <= 'f':
		a.selectIndex(int(r-'a') + 10)
	case r == '[':
		a.ctl.SelectColor(int(a.ctl.Selected()) - 1)
	case r == ']':
		a.ctl.SelectColor(int(a.ctl.Selected()) + 1)
	case r == '+' || r == '=':
		a.view.Zoom(a.centre(), -a.wheelStep)
	case r == '-':
		a.view.Zoom(a.centre(), a.wheelStep)
	case r == 'r':
		a.view.Fit()
	case r == 'p':
		path, err := a.ExportDefault()
		if err != nil {
			a.log.Warn("export failed", "err", err)
			a.note = "export failed"
			return
		}
		a.note = "saved " + filepath.Base(path)
	case r == 'q':
		a.quit = true
	}
}

// selectIndex ignores digits beyond the palette.
func (a *App) selectIndex(i int) {
	if i < a.pal.Len() {
		a.ctl.SelectColor(i)
	}
}

func (a *App) centre() viewport.Point {
	return viewport.Point{X: float64(a.w) / 2, Y: float64(a.h) / 2}
}

// StatusLine is the text shown in the overlay.
func (a *App) StatusLine() string {
	sel := a.ctl.Selected()
	s := fmt.Sprintf("%s | color %d %s", a.ctl.Status(), sel, a.pal.At(sel).Hex())
	if a.note != "" {
		s += " | " + a.note
	}
	return s
}

func (a *App) Frame() hal.Frame {
	t := a.view.Transform()
	status := a.StatusLine()
	return hal.Frame{
		OffsetX: t.OffsetX,
		OffsetY: t.OffsetY,
		Scale:   t.Scale,
		Overlay: a.overlay.Draw(a.w, a.h, status, a.ctl.Selected()),
		Status:  status,
	}
}

// Export writes a PNG snapshot of the local canvas to path.
func (a *App) Export(path string, opts render.ExportOptions) error {
	if err := render.ExportFile(path, a.ctl.Buffer(), a.pal, opts); err != nil {
		return err
	}
	a.log.Info("canvas exported", "path", path, "scale", opts.Scale)
	return nil
}

// ExportDefault writes a timestamped snapshot into the export directory.
func (a *App) ExportDefault() (string, error) {
	name := "place-" + a.now().Format("20060102-150405") + ".png"
	path := filepath.Join(a.exportDir, name)
	return path, a.Export(path, render.ExportOptions{Scale: ExportScale, Grid: true})
}
