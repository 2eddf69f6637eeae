// Package client talks to a canvas server: a one-shot HTTP bootstrap of the
// whole grid and a WebSocket stream of binary frames in both directions.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"place/internal/logging"

	"github.com/klauspost/compress/gzhttp"
)

var ErrTooLarge = errors.New("client: bootstrap payload too large")

// StatusError is a non-200 bootstrap response.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("client: bootstrap: unexpected status %s", e.Status)
}

// Bootstrapper fetches the raw canvas snapshot.
type Bootstrapper struct {
	url     string
	client  *http.Client
	maxSize int64
	log     *slog.Logger
}

// BootstrapOptions configures a Bootstrapper.
type BootstrapOptions struct {
	// Client overrides the HTTP client. Its transport is wrapped so gzip
	// and zstd responses are decoded transparently.
	Client *http.Client
	// MaxSize caps the accepted body size. Zero means no cap.
	MaxSize int64
	Logger  *slog.Logger
}

// NewBootstrapper returns a fetcher for base+path.
func NewBootstrapper(base, path string, opts BootstrapOptions) (*Bootstrapper, error) {
	u, err := JoinURL(base, path)
	if err != nil {
		return nil, err
	}
	hc := &http.Client{Timeout: 30 * time.Second}
	if opts.Client != nil {
		cp := *opts.Client
		hc = &cp
	}
	parent := hc.Transport
	if parent == nil {
		parent = http.DefaultTransport
	}
	hc.Transport = gzhttp.Transport(parent)
	return &Bootstrapper{
		url:     u,
		client:  hc,
		maxSize: opts.MaxSize,
		log:     logging.Or(opts.Logger).With("component", "bootstrap"),
	}, nil
}

// URL returns the snapshot URL.
func (b *Bootstrapper) URL() string { return b.url }

// Fetch downloads the snapshot. It honours ctx cancellation for the whole
// exchange, body included.
func (b *Bootstrapper) Fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.url, nil)
	if err != nil {
		return nil, fmt.Errorf("client: bootstrap: %w", err)
	}
	req.Header.Set("Accept", "application/octet-stream")

	start := time.Now()
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("client: bootstrap: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode, Status: resp.Status}
	}

	var r io.Reader = resp.Body
	if b.maxSize > 0 {
		r = io.LimitReader(resp.Body, b.maxSize+1)
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("client: bootstrap: read body: %w", err)
	}
	if b.maxSize > 0 && int64(len(raw)) > b.maxSize {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, b.maxSize)
	}
	b.log.Debug("bootstrap fetched", "bytes", len(raw), "took", time.Since(start))
	return raw, nil
}

// JoinURL appends path to base, keeping any path base already has.
func JoinURL(base, path string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(base))
	if err != nil {
		return "", fmt.Errorf("client: bad server url %q: %w", base, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("client: bad server url %q: need scheme and host", base)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + strings.TrimPrefix(path, "/")
	return u.String(), nil
}

// WebSocketURL is JoinURL with http mapped to ws and https to wss.
func WebSocketURL(base, path string) (string, error) {
	s, err := JoinURL(base, path)
	if err != nil {
		return "", err
	}
	switch {
	case strings.HasPrefix(s, "http://"):
		return "ws://" + strings.TrimPrefix(s, "http://"), nil
	case strings.HasPrefix(s, "https://"):
		return "wss://" + strings.TrimPrefix(s, "https://"), nil
	case strings.HasPrefix(s, "ws://"), strings.HasPrefix(s, "wss://"):
		return s, nil
	}
	return "", fmt.Errorf("client: unsupported scheme in %q", base)
}
