package query

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaibhaw-/panoptes/internal/panoptes/auditctx"
	"github.com/vaibhaw-/panoptes/internal/panoptes/event"
	"github.com/vaibhaw-/panoptes/internal/panoptes/sqlparse"
	"github.com/vaibhaw-/panoptes/internal/panoptes/transport"
)

// writeLog produces an audit log the way the file transport does.
func writeLog(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "panoptes.log")
	sink := transport.NewFileSink(path)
	t.Cleanup(func() { _ = sink.Close() })

	base := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	statements := []struct {
		sql     string
		user    int
		success bool
	}{
		{"SELECT * FROM orders JOIN users ON users.id = orders.user_id", 1, true},
		{"UPDATE users SET email='x' WHERE id=7", 1, true},
		{"DELETE FROM orders WHERE id = 3", 2, false},
		{"INSERT INTO payments (id) VALUES (1)", 2, true},
		{"UPDATE users SET name='y' WHERE id=8", 3, true},
	}
	for i, st := range statements {
		ev := event.Build(event.Input{
			EventID:     "evt",
			AppName:     "billing",
			Environment: "dev",
			DB:          event.DBInfo{Engine: "sqlite"},
			SQL:         st.sql,
			DurationMS:  float64(i + 1),
			Success:     st.success,
			User:        &auditctx.UserContext{AppUserID: st.user},
			Parsed:      sqlparse.Classify(st.sql),
			Reason:      "default:allowed",
			Now:         base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, sink.Send(context.Background(), ev))
	}
	require.NoError(t, sink.Close())
	return path
}

func decodeLines(t *testing.T, raw string) []Event {
	t.Helper()
	var out []Event
	for _, line := range strings.Split(strings.TrimSpace(raw), "\n") {
		if line == "" {
			continue
		}
		var e Event
		require.NoError(t, json.Unmarshal([]byte(line), &e))
		out = append(out, e)
	}
	return out
}

func TestRun_Filters(t *testing.T) {
	path := writeLog(t)

	tests := []struct {
		name string
		opts Options
		want int
	}{
		{name: "all", opts: Options{}, want: 5},
		{name: "by type", opts: Options{Types: []string{"UPDATE"}}, want: 2},
		{name: "by joined table", opts: Options{Tables: []string{"users"}}, want: 3},
		{name: "by actor", opts: Options{Actor: "2"}, want: 2},
		{name: "failures", opts: Options{FailuresOnly: true}, want: 1},
		{name: "since", opts: Options{Since: time.Date(2024, 3, 10, 12, 3, 0, 0, time.UTC)}, want: 2},
		{name: "limit", opts: Options{Limit: 2}, want: 2},
		{name: "combined", opts: Options{Types: []string{"UPDATE"}, Actor: "3"}, want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.opts.InputFiles = []string{path}
			var out, summary bytes.Buffer
			stats, err := Run(context.Background(), tt.opts, &out, &summary)
			require.NoError(t, err)
			assert.Len(t, decodeLines(t, out.String()), tt.want)
			assert.Equal(t, tt.want, stats.MatchedEvents)
			assert.Empty(t, summary.String())
		})
	}
}

func TestRun_SummaryOnly(t *testing.T) {
	path := writeLog(t)

	var out, summary bytes.Buffer
	stats, err := Run(context.Background(), Options{InputFiles: []string{path}, Summary: true}, &out, &summary)
	require.NoError(t, err)

	assert.Empty(t, out.String())
	assert.Equal(t, 5, stats.InputEvents)
	assert.Equal(t, 2, stats.ByOperation["UPDATE"])
	assert.Equal(t, 2, stats.ByTable["users"])
	assert.Equal(t, 2, stats.ByActor["1"])
	assert.Equal(t, 1, stats.Failures)
	assert.InDelta(t, 3.0, stats.AverageDurationMS(), 0.001)

	text := summary.String()
	assert.Contains(t, text, "Matched: 5")
	assert.Contains(t, text, "Time range: 2024-03-10T12:00:00Z to 2024-03-10T12:04:00Z")
	assert.Contains(t, text, "UPDATE: 2")
}

func TestRun_MalformedLinesAndOutputFile(t *testing.T) {
	path := writeLog(t)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("{not json\n\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	outPath := filepath.Join(t.TempDir(), "out.ndjson")
	missing := filepath.Join(t.TempDir(), "missing.log")

	var summary bytes.Buffer
	stats, err := Run(context.Background(), Options{
		InputFiles: []string{missing, path},
		OutputFile: outPath,
		Types:      []string{"DELETE"},
		Summary:    true,
	}, &bytes.Buffer{}, &summary)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.ErrorEvents)
	assert.Equal(t, 5, stats.InputEvents)

	raw, err := os.ReadFile(outPath)
	require.NoError(t, err)
	events := decodeLines(t, string(raw))
	require.Len(t, events, 1)
	op, _ := GetString(events[0], "operation.type")
	assert.Equal(t, "DELETE", op)
}
