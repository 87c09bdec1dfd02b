package query

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// ReadEvents streams NDJSON events from files, or stdin when files is empty.
// Malformed lines and unreadable files are reported as results with Err set
// and reading continues. The channel closes when input is exhausted or ctx is
// done.
func ReadEvents(ctx context.Context, files []string) <-chan EventResult {
	ch := make(chan EventResult, 100)

	go func() {
		defer close(ch)

		if len(files) == 0 {
			readFrom(ctx, os.Stdin, "stdin", ch)
			return
		}

		for _, file := range files {
			f, err := os.Open(file)
			if err != nil {
				if !emit(ctx, ch, EventResult{Err: fmt.Errorf("failed to open file %s: %w", file, err)}) {
					return
				}
				continue
			}
			ok := readFrom(ctx, f, file, ch)
			f.Close()
			if !ok {
				return
			}
		}
	}()

	return ch
}

// readFrom reports false once ctx is done.
func readFrom(ctx context.Context, r io.Reader, source string, ch chan<- EventResult) bool {
	scanner := bufio.NewScanner(r)
	// rows captured by snapshots can make single events large
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var res EventResult
		if err := json.Unmarshal(raw, &res.Event); err != nil {
			res = EventResult{Err: fmt.Errorf("JSON parse error in %s line %d: %w", source, line, err)}
		}
		if !emit(ctx, ch, res) {
			return false
		}
	}
	if err := scanner.Err(); err != nil {
		return emit(ctx, ch, EventResult{Err: fmt.Errorf("scanner error in %s: %w", source, err)})
	}
	return true
}

func emit(ctx context.Context, ch chan<- EventResult, res EventResult) bool {
	select {
	case ch <- res:
		return true
	case <-ctx.Done():
		return false
	}
}
