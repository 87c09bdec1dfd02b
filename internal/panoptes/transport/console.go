package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/vaibhaw-/panoptes/internal/panoptes/event"
)

// ConsoleSink writes one JSON line per event.
type ConsoleSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsoleSink writes to w, or to stdout when w is nil.
func NewConsoleSink(w io.Writer) *ConsoleSink {
	if w == nil {
		w = os.Stdout
	}
	return &ConsoleSink{w: w}
}

func (s *ConsoleSink) Name() string { return "console" }

func (s *ConsoleSink) Send(_ context.Context, ev event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeNDJSON(s.w, ev)
}

// writeNDJSON serializes ev as a single newline-terminated JSON line.
func writeNDJSON(w io.Writer, ev event.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event to JSON: %w", err)
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	return nil
}
