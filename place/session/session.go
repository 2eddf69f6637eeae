// Package session wires the canvas client together: it starts the bootstrap
// fetch and the stream, applies incoming frames to the buffer, turns clicks
// into set-cell frames and drives the render loop.
//
// A Controller is driven from one goroutine. Network work happens on
// background goroutines that only hand results over through channels;
// Step applies them.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"place/internal/logging"
	"place/place/canvas"
	"place/place/palette"
	"place/place/proto"
	"place/place/render"
)

var (
	ErrNotConnected = errors.New("session: not connected")
	ErrStopped      = errors.New("session: stopped")
)

// ServerError is an error frame sent by the server.
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string { return "session: server error: " + e.Message }

// Stream is a connected message transport. Messages must be closed when the
// connection ends.
type Stream interface {
	Send(msg []byte) error
	Messages() <-chan []byte
	Err() error
	Close() error
}

// FetchFunc downloads the raw canvas snapshot.
type FetchFunc func(ctx context.Context) ([]byte, error)

// DialFunc opens the stream.
type DialFunc func(ctx context.Context) (Stream, error)

// Config configures a Controller.
type Config struct {
	Width, Height int
	Palette       palette.Palette
	Surface       render.Surface
	Fetch         FetchFunc
	Dial          DialFunc
	Logger        *slog.Logger
}

type fetchResult struct {
	raw []byte
	err error
}

type dialResult struct {
	s   Stream
	err error
}

// Controller owns the buffer, the render loop and the connection.
type Controller struct {
	cfg  Config
	log  *slog.Logger
	buf  *canvas.Buffer
	loop *render.Loop

	ctx    context.Context
	cancel context.CancelFunc

	fetched chan fetchResult
	dialed  chan dialResult
	stream  Stream

	selected uint8
	status   Status
	started  bool
	stopped  bool
	dialDone bool
}

// New builds a controller. Nothing touches the network until Start.
func New(cfg Config) (*Controller, error) {
	if err := cfg.Palette.Validate(); err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	if cfg.Fetch == nil || cfg.Dial == nil {
		return nil, errors.New("session: fetch and dial are required")
	}
	log := logging.Or(cfg.Logger).With("component", "session")
	buf, err := canvas.New(cfg.Width, cfg.Height, len(cfg.Palette))
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	loop, err := render.NewLoop(buf, cfg.Palette, cfg.Surface, cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	return &Controller{
		cfg:     cfg,
		log:     log,
		buf:     buf,
		loop:    loop,
		fetched: make(chan fetchResult, 1),
		dialed:  make(chan dialResult, 1),
		status:  Status{Conn: Idle},
	}, nil
}

// Start launches the bootstrap fetch and the dial, and starts the render
// loop. Both network operations end when ctx ends or Stop is called.
func (c *Controller) Start(ctx context.Context) error {
	if c.stopped {
		return ErrStopped
	}
	if c.started {
		return nil
	}
	c.started = true
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.status.Conn = Connecting
	c.loop.Start()

	go func(ctx context.Context) {
		raw, err := c.cfg.Fetch(ctx)
		c.fetched <- fetchResult{raw: raw, err: err}
	}(c.ctx)

	go func(ctx context.Context) {
		s, err := c.cfg.Dial(ctx)
		c.dialed <- dialResult{s: s, err: err}
	}(c.ctx)

	c.log.Info("session starting", "width", c.cfg.Width, "height", c.cfg.Height, "palette", len(c.cfg.Palette))
	return nil
}

// Step runs one pass of the event loop: it applies a finished bootstrap,
// adopts a finished dial, applies every queued frame in arrival order and
// ticks the render loop. It returns the render loop's present error.
func (c *Controller) Step() error {
	if !c.started || c.stopped {
		return nil
	}
	select {
	case r := <-c.fetched:
		c.applyBootstrap(r)
	default:
	}
	select {
	case r := <-c.dialed:
		c.adoptStream(r)
	default:
	}
	c.drain()
	_, err := c.loop.Tick()
	return err
}

func (c *Controller) applyBootstrap(r fetchResult) {
	if r.err != nil {
		if errors.Is(r.err, context.Canceled) {
			return
		}
		c.log.Error("bootstrap failed", "err", r.err)
		c.status.Load = LoadFailed
		c.status.LoadErr = r.err
		return
	}
	if err := c.buf.Bootstrap(r.raw); err != nil {
		c.log.Error("bootstrap rejected", "err", err)
		c.status.Load = LoadFailed
		c.status.LoadErr = err
		return
	}
	c.status.Load = Loaded
	c.status.LoadErr = nil
	d := c.buf.Digest()
	c.log.Info("canvas loaded", "bytes", len(r.raw), "digest", fmt.Sprintf("%x", d[:8]))
}

func (c *Controller) adoptStream(r dialResult) {
	c.dialDone = true
	if r.err != nil {
		c.log.Warn("connect failed", "err", r.err)
		c.status.Conn = Disconnected
		c.status.ConnErr = r.err
		return
	}
	c.stream = r.s
	c.status.Conn = Connected
	c.status.ConnErr = nil
}

func (c *Controller) drain() {
	if c.stream == nil {
		return
	}
	msgs := c.stream.Messages()
	for {
		select {
		case msg, ok := <-msgs:
			if !ok {
				err := c.stream.Err()
				c.log.Warn("disconnected", "err", err)
				c.status.Conn = Disconnected
				c.status.ConnErr = err
				c.stream = nil
				return
			}
			c.handle(msg)
		default:
			return
		}
	}
}

// handle applies one server frame. Undecodable frames are dropped and the
// connection kept.
func (c *Controller) handle(msg []byte) {
	f, err := proto.Decode(msg)
	if err != nil {
		c.log.Warn("dropping frame", "err", err)
		c.status.Dropped++
		return
	}
	switch f := f.(type) {
	case *proto.ErrorFrame:
		se := &ServerError{Message: f.Message}
		c.log.Warn("server error", "message", f.Message)
		c.status.ServerErr = se
	case *proto.CellUpdateFrame:
		if err := c.buf.SetCell(int(f.X), int(f.Y), f.Color); err != nil {
			c.log.Debug("update outside canvas", "tag", f.Tag, "x", f.X, "y", f.Y, "err", err)
			return
		}
		c.status.Updates++
	case *proto.UnknownFrame:
		c.log.Debug("ignoring frame", "tag", f.Tag, "len", len(f.Payload))
	}
}

// Click asks the server to paint (x, y) with the selected colour. Cells
// outside the canvas are rejected locally and never sent.
func (c *Controller) Click(x, y int) error {
	if !c.buf.InBounds(x, y) {
		c.log.Debug("click outside canvas", "x", x, "y", y)
		return fmt.Errorf("session: click: %w", canvas.ErrOutOfBounds)
	}
	if c.stream == nil {
		return ErrNotConnected
	}
	if err := c.stream.Send(proto.Encode(uint16(x), uint16(y), c.selected)); err != nil {
		c.log.Warn("send failed", "x", x, "y", y, "err", err)
		return fmt.Errorf("session: click: %w", err)
	}
	c.log.Debug("set cell", "x", x, "y", y, "color", c.selected)
	return nil
}

// SelectColor chooses the colour for later clicks, wrapping past the end of
// the palette.
func (c *Controller) SelectColor(i int) {
	n := len(c.cfg.Palette)
	c.selected = uint8(((i % n) + n) % n)
}

// Selected returns the selected colour index.
func (c *Controller) Selected() uint8 { return c.selected }

// Status returns the connection and load state.
func (c *Controller) Status() Status { return c.status }

// Buffer exposes the canvas for read-only use such as export.
func (c *Controller) Buffer() *canvas.Buffer { return c.buf }

// Loop returns the render loop.
func (c *Controller) Loop() *render.Loop { return c.loop }

// Stop stops rendering, cancels a pending bootstrap and closes the stream.
// It is safe to call more than once.
func (c *Controller) Stop() {
	if c.stopped {
		return
	}
	c.stopped = true
	c.loop.Stop()
	if c.cancel != nil {
		c.cancel()
	}
	if c.stream != nil {
		if err := c.stream.Close(); err != nil {
			c.log.Debug("close failed", "err", err)
		}
		c.stream = nil
	}
	if c.started && !c.dialDone {
		// The dial returns promptly once cancelled; close whatever it yields.
		go func(ch <-chan dialResult) {
			if r := <-ch; r.err == nil && r.s != nil {
				_ = r.s.Close()
			}
		}(c.dialed)
	}
	c.status.Conn = Disconnected
	c.log.Info("session stopped")
}
