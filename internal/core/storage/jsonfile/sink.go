// Package jsonfile appends export sessions to a JSON array file. The file
// is a valid JSON array after every write.
package jsonfile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/aevon-lab/project-tpms/internal/core/storage"
)

// Sink writes sessions to one file.
type Sink struct {
	mu   sync.Mutex
	path string
}

// New returns a sink for path. The parent directory is created when
// missing; the file itself is created on first write.
func New(path string) (*Sink, error) {
	if path == "" {
		return nil, errors.New("jsonfile: path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("jsonfile: create directory: %w", err)
	}
	return &Sink{path: path}, nil
}

// Factory returns a function opening "<dir>/<target>.json" sinks, suitable
// as the export router fallback.
func Factory(dir string) func(target string) (storage.Sink, error) {
	return func(target string) (storage.Sink, error) {
		return New(filepath.Join(dir, target+".json"))
	}
}

// Path returns the file the sink writes to.
func (s *Sink) Path() string { return s.path }

// Write implements storage.Sink.
func (s *Sink) Write(ctx context.Context, batch storage.Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, err := s.load()
	if err != nil {
		return err
	}

	id := batch.ID.String()
	for _, raw := range sessions {
		var head struct {
			BatchID string `json:"batchId"`
		}
		if json.Unmarshal(raw, &head) == nil && head.BatchID == id {
			return storage.ErrDuplicate
		}
	}

	doc, err := json.Marshal(batch.Session())
	if err != nil {
		return fmt.Errorf("jsonfile: marshal session: %w", err)
	}
	sessions = append(sessions, doc)

	if err := s.store(sessions); err != nil {
		return err
	}
	slog.Debug("[JSONFile] Session appended", "path", s.path, "target", batch.Target, "frames", len(batch.Frames))
	return nil
}

// sessions reads back every stored session.
func (s *Sink) sessions() ([]storage.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.load()
	if err != nil {
		return nil, err
	}
	out := make([]storage.Session, 0, len(raw))
	for i, r := range raw {
		var sess storage.Session
		if err := json.Unmarshal(r, &sess); err != nil {
			return nil, fmt.Errorf("jsonfile: session %d: %w", i, err)
		}
		out = append(out, sess)
	}
	return out, nil
}

// Close implements storage.Sink. Nothing is held open between writes.
func (s *Sink) Close() error { return nil }

func (s *Sink) load() ([]json.RawMessage, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("jsonfile: read %s: %w", s.path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var sessions []json.RawMessage
	if err := json.Unmarshal(data, &sessions); err != nil {
		return nil, fmt.Errorf("jsonfile: %s is not a JSON array: %w", s.path, err)
	}
	return sessions, nil
}

// store replaces the file through a temp file and rename.
func (s *Sink) store(sessions []json.RawMessage) error {
	data, err := json.MarshalIndent(sessions, "", "  ")
	if err != nil {
		return fmt.Errorf("jsonfile: marshal: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("jsonfile: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("jsonfile: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("jsonfile: close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("jsonfile: replace %s: %w", s.path, err)
	}
	return nil
}
