package query

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// lookup walks a dotted path such as "operation.mainTable" through nested
// objects.
func lookup(e Event, path string) (any, bool) {
	var cur any = e
	for _, key := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[key]
		if !ok || cur == nil {
			return nil, false
		}
	}
	return cur, true
}

// GetString returns the string at path. ok is false when the value is
// missing or not a string.
func GetString(e Event, path string) (string, bool) {
	v, ok := lookup(e, path)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func GetBool(e Event, path string) (bool, bool) {
	v, ok := lookup(e, path)
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

// GetStringSlice handles both []string and the []any produced by JSON decoding.
func GetStringSlice(e Event, path string) ([]string, bool) {
	v, ok := lookup(e, path)
	if !ok {
		return nil, false
	}
	switch s := v.(type) {
	case []string:
		return s, true
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out, true
	}
	return nil, false
}

// GetText renders scalar values as text. Actor ids may be numbers or strings
// depending on the host application.
func GetText(e Event, path string) (string, bool) {
	v, ok := lookup(e, path)
	if !ok {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	}
	return fmt.Sprint(v), true
}

// EventTime returns meta.timestamp, falling back to meta.timestampUnix.
func EventTime(e Event) (time.Time, error) {
	if s, ok := GetString(e, "meta.timestamp"); ok {
		return ParseTimestamp(s)
	}
	if v, ok := lookup(e, "meta.timestampUnix"); ok {
		if f, ok := v.(float64); ok {
			return time.Unix(int64(f), 0).UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("event has no timestamp")
}

// ParseTimestamp accepts any layout dateparse understands and returns UTC.
func ParseTimestamp(s string) (time.Time, error) {
	t, err := dateparse.ParseIn(strings.TrimSpace(s), time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("unable to parse timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

// ParseDuration extends time.ParseDuration with a day unit, e.g. "7d".
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty duration string")
	}
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, fmt.Errorf("invalid days value: %s", days)
		}
		if n < 0 {
			return 0, fmt.Errorf("days cannot be negative: %d", n)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("duration cannot be negative: %s", s)
	}
	return d, nil
}

func matchesAny(target string, candidates []string) bool {
	for _, c := range candidates {
		if strings.EqualFold(target, c) {
			return true
		}
	}
	return false
}
