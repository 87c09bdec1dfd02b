package query

import (
	"fmt"
	"io"
	"sort"
	"time"
)

// Stats summarizes the events seen by a query run.
type Stats struct {
	InputEvents   int // decoded events, matched or not
	MatchedEvents int
	ErrorEvents   int // unreadable lines and files

	ByOperation map[string]int
	ByTable     map[string]int
	ByActor     map[string]int
	ByApp       map[string]int
	Failures    int

	TotalDurationMS float64

	FirstTimestamp *time.Time
	LastTimestamp  *time.Time
}

func NewStats() *Stats {
	return &Stats{
		ByOperation: make(map[string]int),
		ByTable:     make(map[string]int),
		ByActor:     make(map[string]int),
		ByApp:       make(map[string]int),
	}
}

func (s *Stats) IncrementInput() { s.InputEvents++ }

func (s *Stats) IncrementError() { s.ErrorEvents++ }

// IncrementMatched records a matched event in every breakdown.
func (s *Stats) IncrementMatched(e Event) {
	s.MatchedEvents++

	if op, ok := GetString(e, "operation.type"); ok {
		s.ByOperation[op]++
	}
	if table, ok := GetString(e, "operation.mainTable"); ok && table != "" {
		s.ByTable[table]++
	}
	if actor, ok := GetText(e, "actor.appUserId"); ok {
		s.ByActor[actor]++
	}
	if app, ok := GetString(e, "meta.appName"); ok {
		s.ByApp[app]++
	}
	if success, ok := GetBool(e, "sql.success"); ok && !success {
		s.Failures++
	}
	if v, ok := lookup(e, "meta.durationMs"); ok {
		if ms, ok := v.(float64); ok {
			s.TotalDurationMS += ms
		}
	}

	if ts, err := EventTime(e); err == nil {
		if s.FirstTimestamp == nil || ts.Before(*s.FirstTimestamp) {
			s.FirstTimestamp = &ts
		}
		if s.LastTimestamp == nil || ts.After(*s.LastTimestamp) {
			s.LastTimestamp = &ts
		}
	}
}

// AverageDurationMS is the mean statement duration of matched events.
func (s *Stats) AverageDurationMS() float64 {
	if s.MatchedEvents == 0 {
		return 0
	}
	return s.TotalDurationMS / float64(s.MatchedEvents)
}

// PrintSummary writes a human-readable summary. Breakdowns are sorted by
// count descending, then name.
func (s *Stats) PrintSummary(w io.Writer) {
	fmt.Fprintf(w, "Summary:\n")
	fmt.Fprintf(w, "  Total events processed: %d\n", s.InputEvents)
	if s.ErrorEvents > 0 {
		fmt.Fprintf(w, "  Unreadable lines: %d\n", s.ErrorEvents)
	}
	if s.FirstTimestamp != nil && s.LastTimestamp != nil {
		fmt.Fprintf(w, "  Time range: %s to %s\n",
			s.FirstTimestamp.Format(time.RFC3339),
			s.LastTimestamp.Format(time.RFC3339))
	}
	fmt.Fprintf(w, "  Matched: %d\n", s.MatchedEvents)
	fmt.Fprintf(w, "  Failed statements: %d\n", s.Failures)
	fmt.Fprintf(w, "  Average duration: %.2fms\n", s.AverageDurationMS())
	fmt.Fprintf(w, "\n")

	for _, section := range []struct {
		title string
		m     map[string]int
	}{
		{"By operation", s.ByOperation},
		{"By table", s.ByTable},
		{"By actor", s.ByActor},
		{"By application", s.ByApp},
	} {
		if len(section.m) == 0 {
			continue
		}
		fmt.Fprintf(w, "  %s:\n", section.title)
		printSorted(w, section.m, "    ")
		fmt.Fprintf(w, "\n")
	}
}

func printSorted(w io.Writer, m map[string]int, indent string) {
	type kv struct {
		key   string
		value int
	}
	pairs := make([]kv, 0, len(m))
	for k, v := range m {
		pairs = append(pairs, kv{k, v})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].value == pairs[j].value {
			return pairs[i].key < pairs[j].key
		}
		return pairs[i].value > pairs[j].value
	})
	for _, p := range pairs {
		fmt.Fprintf(w, "%s%s: %d\n", indent, p.key, p.value)
	}
}
