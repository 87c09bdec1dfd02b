package event

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
)

// jsonSafe returns v unchanged when it encodes as JSON. NaN and infinities,
// channels, funcs and nil-like pointers become nil; anything else that fails to
// encode is recorded as its fmt.Sprint text.
func jsonSafe(v any) any {
	if v == nil {
		return nil
	}
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil
		}
		return v
	case float32:
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return nil
		}
		return v
	case string, bool, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64, []byte:
		return v
	}

	switch reflect.TypeOf(v).Kind() {
	case reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return nil
	}
	if _, err := json.Marshal(v); err != nil {
		return fmt.Sprint(v)
	}
	return v
}

func safeValues(vals []any) []any {
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = jsonSafe(v)
	}
	return out
}

func safeRows(rows []Row) []Row {
	if rows == nil {
		return nil
	}
	out := make([]Row, len(rows))
	for i, r := range rows {
		c := make(Row, len(r))
		for k, v := range r {
			c[k] = jsonSafe(v)
		}
		out[i] = c
	}
	return out
}
