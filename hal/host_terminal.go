package hal

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	terminalBG     = color.RGBA{R: 0x30, G: 0x30, B: 0x30, A: 0xff}
	terminalStatus = lipgloss.NewStyle().Foreground(lipgloss.Color("#d0d0d0")).Background(lipgloss.Color("#202020"))
)

// TerminalConfig controls the terminal host.
type TerminalConfig struct {
	Hz int
}

// RunTerminal draws the framebuffer into the terminal with half-block
// characters, two screen pixels per cell, and forwards mouse and keyboard
// input. The last row shows the app's status line. Ctrl+C always quits.
func RunTerminal(ctx context.Context, fb *Framebuffer, newApp func(*Framebuffer) (App, error), cfg TerminalConfig) error {
	app, err := newApp(fb)
	if err != nil {
		return err
	}
	m := newTermModel(app, fb, cfg)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseAllMotion(), tea.WithContext(ctx))
	final, err := p.Run()
	if err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	if tm, ok := final.(*termModel); ok {
		return tm.err
	}
	return nil
}

type termTickMsg time.Time

type termModel struct {
	app  App
	fb   *Framebuffer
	tick time.Duration

	cols, rows int
	down       bool

	scratch []byte
	screen  *image.RGBA
	err     error
}

func newTermModel(app App, fb *Framebuffer, cfg TerminalConfig) *termModel {
	hz := cfg.Hz
	if hz <= 0 {
		hz = 30
	}
	return &termModel{
		app:     app,
		fb:      fb,
		tick:    time.Second / time.Duration(hz),
		scratch: make([]byte, fb.Width()*fb.Height()*4),
	}
}

func (m *termModel) Init() tea.Cmd { return m.nextTick() }

func (m *termModel) nextTick() tea.Cmd {
	return tea.Tick(m.tick, func(t time.Time) tea.Msg { return termTickMsg(t) })
}

// pixelHeight is the drawable height in screen pixels; the last row is
// reserved for the status line.
func (m *termModel) pixelHeight() int {
	if m.rows <= 1 {
		return 0
	}
	return (m.rows - 1) * 2
}

func (m *termModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case termTickMsg:
		if err := m.app.Step(); err != nil {
			if !errors.Is(err, ErrQuit) {
				m.err = err
			}
			return m, tea.Quit
		}
		return m, m.nextTick()

	case tea.WindowSizeMsg:
		m.cols, m.rows = msg.Width, msg.Height
		m.app.Resize(m.cols, m.pixelHeight())
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		m.handleKey(msg)
		return m, nil

	case tea.MouseMsg:
		m.handleMouse(msg)
		return m, nil
	}
	return m, nil
}

func (m *termModel) handleKey(msg tea.KeyMsg) {
	var code KeyCode
	switch msg.Type {
	case tea.KeyRunes:
		for _, r := range msg.Runes {
			m.app.Key(KeyEvent{Press: true, Rune: r})
		}
		return
	case tea.KeySpace:
		m.app.Key(KeyEvent{Press: true, Rune: ' '})
		return
	case tea.KeyUp:
		code = KeyUp
	case tea.KeyDown:
		code = KeyDown
	case tea.KeyLeft:
		code = KeyLeft
	case tea.KeyRight:
		code = KeyRight
	case tea.KeyEnter:
		code = KeyEnter
	case tea.KeyEsc:
		code = KeyEscape
	case tea.KeyBackspace:
		code = KeyBackspace
	case tea.KeyTab:
		code = KeyTab
	case tea.KeyDelete:
		code = KeyDelete
	case tea.KeyHome:
		code = KeyHome
	case tea.KeyEnd:
		code = KeyEnd
	default:
		return
	}
	// Terminals report presses only.
	m.app.Key(KeyEvent{Code: code, Press: true})
	m.app.Key(KeyEvent{Code: code, Press: false})
}

func (m *termModel) handleMouse(msg tea.MouseMsg) {
	x, y := float64(msg.X), float64(msg.Y*2)

	switch msg.Button {
	case tea.MouseButtonWheelUp:
		if msg.Action == tea.MouseActionPress {
			m.app.Pointer(PointerEvent{Kind: PointerWheel, X: x, Y: y, Wheel: 1})
		}
		return
	case tea.MouseButtonWheelDown:
		if msg.Action == tea.MouseActionPress {
			m.app.Pointer(PointerEvent{Kind: PointerWheel, X: x, Y: y, Wheel: -1})
		}
		return
	}

	switch msg.Action {
	case tea.MouseActionPress:
		if msg.Button == tea.MouseButtonLeft {
			m.down = true
			m.app.Pointer(PointerEvent{Kind: PointerDown, X: x, Y: y})
		}
	case tea.MouseActionMotion:
		if m.down {
			m.app.Pointer(PointerEvent{Kind: PointerMove, X: x, Y: y})
		}
	case tea.MouseActionRelease:
		if m.down {
			m.down = false
			m.app.Pointer(PointerEvent{Kind: PointerUp, X: x, Y: y})
		}
	}
}

func (m *termModel) View() string {
	h := m.pixelHeight()
	if m.cols <= 0 || h <= 0 {
		return ""
	}

	m.fb.Snapshot(m.scratch)
	f := m.app.Frame()
	m.screen = Compose(m.screen, m.scratch, m.fb.Width(), m.fb.Height(), f, m.cols, h, terminalBG)

	var sb strings.Builder
	for row := 0; row < m.rows-1; row++ {
		for x := 0; x < m.cols; x++ {
			top := m.screen.RGBAAt(x, row*2)
			bot := m.screen.RGBAAt(x, row*2+1)
			sb.WriteString(lipgloss.NewStyle().
				Foreground(lipgloss.Color(hexColor(top))).
				Background(lipgloss.Color(hexColor(bot))).
				Render("▀"))
		}
		sb.WriteByte('\n')
	}

	status := f.Status
	if r := []rune(status); len(r) > m.cols {
		status = string(r[:m.cols])
	}
	sb.WriteString(terminalStatus.Width(m.cols).Render(status))
	return sb.String()
}

func hexColor(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
