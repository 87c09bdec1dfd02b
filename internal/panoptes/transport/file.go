package transport

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/vaibhaw-/panoptes/internal/panoptes/event"
)

// FileSink appends NDJSON events to a file. The file and its directory are
// created on first write.
type FileSink struct {
	path string

	mu   sync.Mutex
	file *os.File
}

func NewFileSink(path string) *FileSink {
	return &FileSink{path: path}
}

func (s *FileSink) Name() string { return "file" }

func (s *FileSink) Path() string { return s.path }

func (s *FileSink) Send(_ context.Context, ev event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		if dir := filepath.Dir(s.path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create log directory %s: %w", dir, err)
			}
		}
		f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open audit log %s: %w", s.path, err)
		}
		s.file = f
	}
	return writeNDJSON(s.file, ev)
}

func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}
