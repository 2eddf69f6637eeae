// Package server is an in-memory canvas server speaking the same protocol
// the client expects: a raw snapshot over HTTP and binary frames over a
// WebSocket. It backs cmd/placed and the client's integration tests.
package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"place/internal/logging"
	"place/place/canvas"
	"place/place/proto"

	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/gzhttp"
)

const (
	DefaultCanvasPath  = "/api/canvas"
	DefaultConnectPath = "/api/connect"

	peerQueue = 256
	writeWait = 5 * time.Second
	readLimit = 4096
)

// Options configures a Server.
type Options struct {
	Width, Height int
	PaletteSize   int
	// Initial seeds the canvas; it must hold Width*Height bytes when set.
	Initial []byte
	// CheckOrigin is passed to the WebSocket upgrader. Nil accepts any origin.
	CheckOrigin func(*http.Request) bool
	Logger      *slog.Logger
}

// Server owns the authoritative canvas and the set of connected peers.
type Server struct {
	log      *slog.Logger
	upgrader websocket.Upgrader

	mu    sync.Mutex
	buf   *canvas.Buffer
	peers map[*peer]struct{}
	// version increments on every accepted write.
	version uint64
}

// New returns a server with an all-zero canvas, or opts.Initial.
func New(opts Options) (*Server, error) {
	buf, err := canvas.New(opts.Width, opts.Height, opts.PaletteSize)
	if err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}
	if opts.Initial != nil {
		if err := buf.Bootstrap(opts.Initial); err != nil {
			return nil, fmt.Errorf("server: initial canvas: %w", err)
		}
	}
	check := opts.CheckOrigin
	if check == nil {
		check = func(*http.Request) bool { return true }
	}
	return &Server{
		log: logging.Or(opts.Logger).With("component", "server"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     check,
		},
		buf:   buf,
		peers: make(map[*peer]struct{}),
	}, nil
}

// Handler routes the snapshot and connect endpoints. The snapshot is served
// gzip- or zstd-compressed when the client accepts it.
func (s *Server) Handler(canvasPath, connectPath string) http.Handler {
	if canvasPath == "" {
		canvasPath = DefaultCanvasPath
	}
	if connectPath == "" {
		connectPath = DefaultConnectPath
	}
	mux := http.NewServeMux()
	mux.Handle(canvasPath, gzhttp.GzipHandler(http.HandlerFunc(s.ServeCanvas)))
	mux.HandleFunc(connectPath, s.ServeConnect)
	return mux
}

// ServeCanvas writes the raw snapshot. The ETag is the BLAKE3 digest of the
// cells, so unchanged canvases answer If-None-Match with 304.
func (s *Server) ServeCanvas(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.mu.Lock()
	snap := s.buf.Snapshot()
	sum := s.buf.Digest()
	s.mu.Unlock()

	etag := fmt.Sprintf("%q", fmt.Sprintf("%x", sum[:16]))
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "no-cache")
	if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(snap)))
	if r.Method == http.MethodHead {
		return
	}
	if _, err := w.Write(snap); err != nil {
		s.log.Debug("snapshot write failed", "remote", r.RemoteAddr, "err", err)
	}
}

// ServeConnect upgrades to a WebSocket and serves one peer until it leaves.
func (s *Server) ServeConnect(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	conn.SetReadLimit(readLimit)
	p := newPeer(conn, s.log.With("remote", r.RemoteAddr))
	s.addPeer(p)
	defer s.removePeer(p)

	go p.writeLoop()
	s.readLoop(p)
}

// SetCell writes one cell and broadcasts CellUpdated to every peer. Frames
// are queued under the lock so every peer sees writes in the order they
// were applied.
func (s *Server) SetCell(x, y int, color uint8) error {
	var slow []*peer
	s.mu.Lock()
	if err := s.buf.SetCell(x, y, color); err != nil {
		s.mu.Unlock()
		return err
	}
	stored, _ := s.buf.Cell(x, y)
	s.version++
	frame := proto.EncodeCellUpdated(uint16(x), uint16(y), stored)
	for p := range s.peers {
		if !p.send(frame) {
			slow = append(slow, p)
		}
	}
	s.mu.Unlock()

	for _, p := range slow {
		p.log.Warn("dropping slow peer")
		p.close()
	}
	return nil
}

// Cell reads one cell.
func (s *Server) Cell(x, y int) (uint8, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Cell(x, y)
}

// Snapshot copies the canvas.
func (s *Server) Snapshot() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Snapshot()
}

// Version counts accepted writes since start.
func (s *Server) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// Peers returns the number of connected peers.
func (s *Server) Peers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.peers)
}

// Close disconnects every peer.
func (s *Server) Close() {
	s.mu.Lock()
	peers := make([]*peer, 0, len(s.peers))
	for p := range s.peers {
		peers = append(peers, p)
	}
	s.mu.Unlock()
	for _, p := range peers {
		p.close()
	}
}

func (s *Server) addPeer(p *peer) {
	s.mu.Lock()
	s.peers[p] = struct{}{}
	n := len(s.peers)
	s.mu.Unlock()
	p.log.Info("peer connected", "peers", n)
}

func (s *Server) removePeer(p *peer) {
	p.close()
	s.mu.Lock()
	delete(s.peers, p)
	n := len(s.peers)
	s.mu.Unlock()
	p.log.Info("peer disconnected", "peers", n)
}

func (s *Server) readLoop(p *peer) {
	for {
		typ, msg, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				p.log.Debug("read failed", "err", err)
			}
			return
		}
		if typ != websocket.BinaryMessage {
			p.log.Debug("ignoring non-binary message", "type", typ)
			continue
		}
		s.handle(p, msg)
	}
}

func (s *Server) handle(p *peer, msg []byte) {
	req, err := proto.DecodeRequest(msg)
	if err != nil {
		p.log.Debug("bad request", "err", err)
		p.send(proto.EncodeError(err.Error()))
		return
	}
	switch req.Kind {
	case proto.ReqGetCell:
		c, err := s.Cell(int(req.X), int(req.Y))
		if err != nil {
			p.send(proto.EncodeError(err.Error()))
			return
		}
		p.send(proto.EncodeCellData(req.X, req.Y, c))
	case proto.ReqSetCell:
		if err := s.SetCell(int(req.X), int(req.Y), req.Color); err != nil {
			p.send(proto.EncodeError(err.Error()))
			return
		}
		p.log.Debug("cell set", "x", req.X, "y", req.Y, "color", req.Color)
	}
}

type peer struct {
	conn *websocket.Conn
	log  *slog.Logger
	out  chan []byte
	done chan struct{}
	once sync.Once
}

func newPeer(conn *websocket.Conn, log *slog.Logger) *peer {
	return &peer{
		conn: conn,
		log:  log,
		out:  make(chan []byte, peerQueue),
		done: make(chan struct{}),
	}
}

// send queues msg and reports false when the queue is full.
func (p *peer) send(msg []byte) bool {
	select {
	case <-p.done:
		return true
	default:
	}
	select {
	case p.out <- msg:
		return true
	case <-p.done:
		return true
	default:
		return false
	}
}

func (p *peer) close() {
	p.once.Do(func() {
		close(p.done)
		_ = p.conn.Close()
	})
}

func (p *peer) writeLoop() {
	for {
		select {
		case <-p.done:
			return
		case msg := <-p.out:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.BinaryMessage, msg); err != nil {
				p.log.Debug("write failed", "err", err)
				p.close()
				return
			}
		}
	}
}
