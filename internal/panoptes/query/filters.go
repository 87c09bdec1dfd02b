package query

import (
	"time"
)

// FilterByType matches operation.type against any of types, case-insensitively.
func FilterByType(types []string) EventFilter {
	return func(e Event) bool {
		op, ok := GetString(e, "operation.type")
		return ok && matchesAny(op, types)
	}
}

// FilterByTable matches when the main table or any joined table is listed.
//
// Examples:
//   - FilterByTable(["users"]) matches "UPDATE users ..." and "SELECT ... FROM orders JOIN users ..."
//   - FilterByTable(["audit"]) does not match "SELECT 1", which has no table
func FilterByTable(tables []string) EventFilter {
	return func(e Event) bool {
		if main, ok := GetString(e, "operation.mainTable"); ok && matchesAny(main, tables) {
			return true
		}
		involved, _ := GetStringSlice(e, "operation.tablesInvolved")
		for _, t := range involved {
			if matchesAny(t, tables) {
				return true
			}
		}
		return false
	}
}

// FilterByActor matches the application user id or username. Numeric ids are
// compared by their text form, so "42" matches appUserId 42.
func FilterByActor(actor string) EventFilter {
	return func(e Event) bool {
		if id, ok := GetText(e, "actor.appUserId"); ok && id == actor {
			return true
		}
		name, ok := GetString(e, "actor.appUsername")
		return ok && name == actor
	}
}

func FilterByApp(app string) EventFilter {
	return func(e Event) bool {
		name, ok := GetString(e, "meta.appName")
		return ok && matchesAny(name, []string{app})
	}
}

func FilterByRequest(requestID string) EventFilter {
	return func(e Event) bool {
		id, ok := GetString(e, "request.requestId")
		return ok && id == requestID
	}
}

// FilterFailures keeps events whose statement failed.
func FilterFailures() EventFilter {
	return func(e Event) bool {
		ok, present := GetBool(e, "sql.success")
		return present && !ok
	}
}

// FilterByTime keeps events on or after since, or within the last duration
// when last is set. Events without a readable timestamp never match.
func FilterByTime(since time.Time, last time.Duration) EventFilter {
	now := time.Now()
	return func(e Event) bool {
		ts, err := EventTime(e)
		if err != nil {
			return false
		}
		if last > 0 {
			return !ts.Before(now.Add(-last))
		}
		if !since.IsZero() {
			return !ts.Before(since)
		}
		return true
	}
}

func matchAll(e Event, filters []EventFilter) bool {
	for _, f := range filters {
		if !f(e) {
			return false
		}
	}
	return true
}

func buildFilters(opts Options) []EventFilter {
	var filters []EventFilter
	if len(opts.Types) > 0 {
		filters = append(filters, FilterByType(opts.Types))
	}
	if len(opts.Tables) > 0 {
		filters = append(filters, FilterByTable(opts.Tables))
	}
	if opts.Actor != "" {
		filters = append(filters, FilterByActor(opts.Actor))
	}
	if opts.AppName != "" {
		filters = append(filters, FilterByApp(opts.AppName))
	}
	if opts.RequestID != "" {
		filters = append(filters, FilterByRequest(opts.RequestID))
	}
	if opts.FailuresOnly {
		filters = append(filters, FilterFailures())
	}
	if !opts.Since.IsZero() || opts.LastDuration > 0 {
		filters = append(filters, FilterByTime(opts.Since, opts.LastDuration))
	}
	return filters
}
