package query

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/vaibhaw-/panoptes/internal/panoptes/logger"
)

// Run filters the input events and writes matches as NDJSON to the output
// file, or to stdout when none is set. With Summary and no output file only
// the summary is printed, to summary.
func Run(ctx context.Context, opts Options, stdout, summary io.Writer) (*Stats, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	out := stdout
	if opts.OutputFile != "" {
		f, err := os.Create(opts.OutputFile)
		if err != nil {
			return nil, fmt.Errorf("failed to create output file %s: %w", opts.OutputFile, err)
		}
		defer f.Close()
		out = f
	}
	writeEvents := !opts.Summary || opts.OutputFile != ""

	filters := buildFilters(opts)
	stats := NewStats()
	enc := json.NewEncoder(out)

	for res := range ReadEvents(ctx, opts.InputFiles) {
		if res.Err != nil {
			stats.IncrementError()
			logger.L().Warnw("skipping unreadable input", "error", res.Err)
			continue
		}
		stats.IncrementInput()

		if !matchAll(res.Event, filters) {
			continue
		}
		stats.IncrementMatched(res.Event)

		if writeEvents {
			if err := enc.Encode(res.Event); err != nil {
				return stats, fmt.Errorf("failed to write event: %w", err)
			}
		}
		if opts.Limit > 0 && stats.MatchedEvents >= opts.Limit {
			break
		}
	}

	if opts.Summary {
		stats.PrintSummary(summary)
	}
	return stats, nil
}
