package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"place/internal/logging"

	"github.com/gorilla/websocket"
)

var (
	ErrClosed    = errors.New("client: stream closed")
	ErrQueueFull = errors.New("client: send queue full")
)

const (
	defaultInbound   = 1024
	defaultOutbound  = 64
	defaultReadLimit = 1 << 20
	writeWait        = 5 * time.Second
)

// StreamOptions configures Dial.
type StreamOptions struct {
	// Inbound and Outbound size the message queues.
	Inbound  int
	Outbound int
	// ReadLimit caps a single incoming message.
	ReadLimit        int64
	HandshakeTimeout time.Duration
	Header           http.Header
	Logger           *slog.Logger
}

// Stream is one WebSocket connection. A reader goroutine queues incoming
// binary messages in arrival order; a writer goroutine drains outgoing ones.
// Neither touches canvas state.
type Stream struct {
	conn *websocket.Conn
	log  *slog.Logger

	in   chan []byte
	out  chan []byte
	done chan struct{}

	closeOnce sync.Once
	mu        sync.Mutex
	err       error
}

// Dial connects to a ws:// or wss:// URL.
func Dial(ctx context.Context, rawURL string, opts StreamOptions) (*Stream, error) {
	if opts.Inbound <= 0 {
		opts.Inbound = defaultInbound
	}
	if opts.Outbound <= 0 {
		opts.Outbound = defaultOutbound
	}
	if opts.ReadLimit <= 0 {
		opts.ReadLimit = defaultReadLimit
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = 10 * time.Second
	}

	d := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: opts.HandshakeTimeout,
	}
	conn, resp, err := d.DialContext(ctx, rawURL, opts.Header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("client: dial %s: %s: %w", rawURL, resp.Status, err)
		}
		return nil, fmt.Errorf("client: dial %s: %w", rawURL, err)
	}
	conn.SetReadLimit(opts.ReadLimit)

	s := newStream(conn, opts, logging.Or(opts.Logger).With("component", "stream"))
	s.log.Info("connected", "url", rawURL)
	return s, nil
}

func newStream(conn *websocket.Conn, opts StreamOptions, log *slog.Logger) *Stream {
	s := &Stream{
		conn: conn,
		log:  log,
		in:   make(chan []byte, opts.Inbound),
		out:  make(chan []byte, opts.Outbound),
		done: make(chan struct{}),
	}
	go s.readLoop()
	go s.writeLoop()
	return s
}

// Messages yields incoming binary messages in arrival order. It is closed
// when the connection ends; Err then reports why.
func (s *Stream) Messages() <-chan []byte { return s.in }

// Send queues one binary message without blocking.
func (s *Stream) Send(msg []byte) error {
	select {
	case <-s.done:
		return ErrClosed
	default:
	}
	select {
	case s.out <- msg:
		return nil
	case <-s.done:
		return ErrClosed
	default:
		return ErrQueueFull
	}
}

// Err returns the error that ended the connection, or nil while it is open.
// A connection ended by Close reports ErrClosed.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close sends a normal close frame and releases the connection. It is safe
// to call more than once.
func (s *Stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.setErr(ErrClosed)
		close(s.done)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		err = s.conn.Close()
	})
	return err
}

func (s *Stream) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *Stream) fail(err error) {
	s.setErr(err)
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}

func (s *Stream) readLoop() {
	defer close(s.in)
	for {
		typ, msg, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Warn("connection lost", "err", err)
			} else {
				s.log.Info("connection closed", "err", err)
			}
			s.fail(fmt.Errorf("client: read: %w", err))
			return
		}
		if typ != websocket.BinaryMessage {
			s.log.Debug("ignoring non-binary message", "type", typ, "len", len(msg))
			continue
		}
		select {
		case s.in <- msg:
		case <-s.done:
			return
		}
	}
}

func (s *Stream) writeLoop() {
	for {
		select {
		case <-s.done:
			return
		case msg := <-s.out:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.BinaryMessage, msg); err != nil {
				s.log.Warn("write failed", "err", err)
				s.fail(fmt.Errorf("client: write: %w", err))
				return
			}
		}
	}
}
