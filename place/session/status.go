package session

import "strings"

// ConnState is the stream connection state.
type ConnState uint8

const (
	Idle ConnState = iota
	Connecting
	Connected
	Disconnected
)

func (s ConnState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Disconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// LoadState is the bootstrap state.
type LoadState uint8

const (
	Loading LoadState = iota
	Loaded
	LoadFailed
)

func (s LoadState) String() string {
	switch s {
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	case LoadFailed:
		return "failed to load canvas"
	default:
		return "unknown"
	}
}

// Status is a snapshot of what the user should be told.
type Status struct {
	Conn    ConnState
	ConnErr error

	Load    LoadState
	LoadErr error

	// ServerErr is the most recent error frame, if any.
	ServerErr *ServerError

	// Updates counts applied cell frames; Dropped counts undecodable ones.
	Updates uint64
	Dropped uint64
}

// String renders the status line shown over the canvas.
func (s Status) String() string {
	parts := []string{s.Conn.String()}
	if s.Load != Loaded {
		parts = append(parts, s.Load.String())
	}
	if s.ServerErr != nil {
		parts = append(parts, "server: "+s.ServerErr.Message)
	}
	return strings.Join(parts, " | ")
}
