package client

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"place/place/proto"
	"place/place/server"
)

func newServer(t *testing.T, w, h int) (*server.Server, *httptest.Server) {
	t.Helper()
	s, err := server.New(server.Options{Width: w, Height: h, PaletteSize: 16})
	if err != nil {
		t.Fatalf("server.New() err = %v", err)
	}
	ts := httptest.NewServer(s.Handler("", ""))
	t.Cleanup(func() {
		s.Close()
		ts.Close()
	})
	return s, ts
}

func TestJoinURL(t *testing.T) {
	tests := []struct {
		base, path, want string
		wantErr          bool
	}{
		{"http://localhost:8080", "/api/canvas", "http://localhost:8080/api/canvas", false},
		{"http://localhost:8080/", "api/canvas", "http://localhost:8080/api/canvas", false},
		{"https://example.com/place/", "/api/connect", "https://example.com/place/api/connect", false},
		{"localhost:8080", "/api/canvas", "", true},
		{"", "/x", "", true},
	}
	for _, tt := range tests {
		got, err := JoinURL(tt.base, tt.path)
		if (err != nil) != tt.wantErr {
			t.Fatalf("JoinURL(%q, %q) err = %v, wantErr %v", tt.base, tt.path, err, tt.wantErr)
		}
		if got != tt.want {
			t.Fatalf("JoinURL(%q, %q) = %q, want %q", tt.base, tt.path, got, tt.want)
		}
	}
}

func TestWebSocketURL(t *testing.T) {
	tests := []struct {
		base, want string
	}{
		{"http://h:1", "ws://h:1/api/connect"},
		{"https://h", "wss://h/api/connect"},
		{"ws://h", "ws://h/api/connect"},
		{"wss://h/", "wss://h/api/connect"},
	}
	for _, tt := range tests {
		got, err := WebSocketURL(tt.base, "/api/connect")
		if err != nil || got != tt.want {
			t.Fatalf("WebSocketURL(%q) = %q, %v, want %q", tt.base, got, err, tt.want)
		}
	}
	if _, err := WebSocketURL("ftp://h", "/x"); err == nil {
		t.Fatalf("WebSocketURL(ftp) err = nil")
	}
}

func TestBootstrapFetch(t *testing.T) {
	s, ts := newServer(t, 64, 32)
	_ = s.SetCell(63, 31, 12)

	b, err := NewBootstrapper(ts.URL, "/api/canvas", BootstrapOptions{MaxSize: 64 * 32})
	if err != nil {
		t.Fatalf("NewBootstrapper() err = %v", err)
	}
	raw, err := b.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() err = %v", err)
	}
	if !bytes.Equal(raw, s.Snapshot()) {
		t.Fatalf("Fetch() returned %d bytes differing from the snapshot", len(raw))
	}
}

func TestBootstrapTooLarge(t *testing.T) {
	_, ts := newServer(t, 10, 10)
	b, err := NewBootstrapper(ts.URL, "/api/canvas", BootstrapOptions{MaxSize: 50})
	if err != nil {
		t.Fatalf("NewBootstrapper() err = %v", err)
	}
	if _, err := b.Fetch(context.Background()); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("Fetch() err = %v, want ErrTooLarge", err)
	}
}

func TestBootstrapStatus(t *testing.T) {
	_, ts := newServer(t, 2, 2)
	b, err := NewBootstrapper(ts.URL, "/nope", BootstrapOptions{})
	if err != nil {
		t.Fatalf("NewBootstrapper() err = %v", err)
	}
	_, err = b.Fetch(context.Background())
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusNotFound {
		t.Fatalf("Fetch() err = %v, want 404 StatusError", err)
	}
}

func TestBootstrapCancel(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer ts.Close()
	defer close(release)

	b, err := NewBootstrapper(ts.URL, "/api/canvas", BootstrapOptions{})
	if err != nil {
		t.Fatalf("NewBootstrapper() err = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := b.Fetch(ctx)
		done <- err
	}()
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Fetch() err = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Fetch() did not return after cancel")
	}
}

func dialServer(t *testing.T, ts *httptest.Server) *Stream {
	t.Helper()
	u, err := WebSocketURL(ts.URL, "/api/connect")
	if err != nil {
		t.Fatalf("WebSocketURL() err = %v", err)
	}
	s, err := Dial(context.Background(), u, StreamOptions{})
	if err != nil {
		t.Fatalf("Dial() err = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func recv(t *testing.T, s *Stream) []byte {
	t.Helper()
	select {
	case msg, ok := <-s.Messages():
		if !ok {
			t.Fatalf("Messages() closed: %v", s.Err())
		}
		return msg
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for a message")
	}
	return nil
}

func TestStreamRoundTrip(t *testing.T) {
	srv, ts := newServer(t, 10, 10)
	a := dialServer(t, ts)
	b := dialServer(t, ts)
	deadline := time.Now().Add(2 * time.Second)
	for srv.Peers() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	if err := a.Send(proto.Encode(1, 2, 3)); err != nil {
		t.Fatalf("Send() err = %v", err)
	}
	want := proto.EncodeCellUpdated(1, 2, 3)
	for _, s := range []*Stream{a, b} {
		if got := recv(t, s); !bytes.Equal(got, want) {
			t.Fatalf("received %x, want %x", got, want)
		}
	}
}

func TestStreamOrdering(t *testing.T) {
	srv, ts := newServer(t, 10, 10)
	s := dialServer(t, ts)
	deadline := time.Now().Add(2 * time.Second)
	for srv.Peers() < 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	for i := 0; i < 20; i++ {
		_ = srv.SetCell(0, 0, uint8(i%16))
	}
	for i := 0; i < 20; i++ {
		f, err := proto.Decode(recv(t, s))
		if err != nil {
			t.Fatalf("Decode() err = %v", err)
		}
		if u := f.(*proto.CellUpdateFrame); u.Color != uint8(i%16) {
			t.Fatalf("update %d color = %d, want %d", i, u.Color, i%16)
		}
	}
}

func TestStreamClose(t *testing.T) {
	_, ts := newServer(t, 2, 2)
	s := dialServer(t, ts)
	if err := s.Close(); err != nil {
		t.Fatalf("Close() err = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close() err = %v", err)
	}
	if err := s.Send(proto.Encode(0, 0, 0)); !errors.Is(err, ErrClosed) {
		t.Fatalf("Send() after Close err = %v, want ErrClosed", err)
	}
	select {
	case _, ok := <-s.Messages():
		for ok {
			_, ok = <-s.Messages()
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Messages() not closed after Close")
	}
	if !errors.Is(s.Err(), ErrClosed) {
		t.Fatalf("Err() = %v, want ErrClosed", s.Err())
	}
}

func TestStreamServerGone(t *testing.T) {
	srv, ts := newServer(t, 2, 2)
	s := dialServer(t, ts)
	deadline := time.Now().Add(2 * time.Second)
	for srv.Peers() < 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	srv.Close()
	select {
	case _, ok := <-s.Messages():
		if ok {
			t.Fatalf("unexpected message after server close")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Messages() not closed after server went away")
	}
	if err := s.Err(); err == nil || errors.Is(err, ErrClosed) {
		t.Fatalf("Err() = %v, want a read error", err)
	}
}

func TestDialFailure(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	defer ts.Close()
	u, _ := WebSocketURL(ts.URL, "/api/connect")
	if _, err := Dial(context.Background(), u, StreamOptions{}); err == nil {
		t.Fatalf("Dial() to a non-websocket endpoint err = nil")
	}
}
