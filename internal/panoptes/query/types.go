package query

import "time"

// Event is one audit record as decoded from NDJSON. Nested objects such as
// "meta" and "operation" stay as map[string]any.
type Event = map[string]any

// Options holds the query command flags.
type Options struct {
	InputFiles []string // NDJSON files written by the file transport; empty reads stdin
	OutputFile string   // empty writes to stdout

	Types     []string // operation.type, e.g. SELECT, UPDATE, DDL
	Tables    []string // operation.mainTable or any of operation.tablesInvolved
	Actor     string   // actor.appUserId or actor.appUsername
	AppName   string   // meta.appName
	RequestID string   // request.requestId

	// FailuresOnly keeps events whose sql.success is false.
	FailuresOnly bool

	Since        time.Time     // include events on or after this time
	LastDuration time.Duration // include events from the last N; takes precedence over Since

	Summary bool // print summary counts to the summary writer
	Limit   int  // 0 means no limit
}

// EventFilter reports whether an event should be kept. Filters are ANDed.
type EventFilter func(Event) bool

// EventResult carries either a decoded event or the error hit while reading it.
type EventResult struct {
	Event Event
	Err   error
}
