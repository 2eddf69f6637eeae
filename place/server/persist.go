package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// SaveFile writes the snapshot to path via a temporary file and rename.
func (s *Server) SaveFile(path string) error {
	snap := s.Snapshot()
	tmp, err := os.CreateTemp(filepath.Dir(path), ".canvas-*")
	if err != nil {
		return fmt.Errorf("server: save: %w", err)
	}
	name := tmp.Name()
	if _, err := tmp.Write(snap); err != nil {
		tmp.Close()
		os.Remove(name)
		return fmt.Errorf("server: save: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return fmt.Errorf("server: save: %w", err)
	}
	if err := os.Rename(name, path); err != nil {
		os.Remove(name)
		return fmt.Errorf("server: save: %w", err)
	}
	return nil
}

// LoadFile reads a snapshot written by SaveFile. A missing file yields
// nil, nil so a fresh server starts blank.
func LoadFile(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("server: load: %w", err)
	}
	return b, nil
}

// Autosave saves to path every interval when the canvas changed since the
// last save (or since start), and once more when ctx ends. Save failures
// are logged and retried next interval.
func (s *Server) Autosave(ctx context.Context, path string, every time.Duration) error {
	if every <= 0 {
		return fmt.Errorf("server: autosave interval %v", every)
	}
	t := time.NewTicker(every)
	defer t.Stop()

	var saved uint64
	save := func() {
		v := s.Version()
		if v == saved {
			return
		}
		if err := s.SaveFile(path); err != nil {
			s.log.Error("autosave failed", "path", path, "err", err)
			return
		}
		saved = v
		s.log.Debug("canvas saved", "path", path, "version", v)
	}

	for {
		select {
		case <-ctx.Done():
			save()
			return ctx.Err()
		case <-t.C:
			save()
		}
	}
}
