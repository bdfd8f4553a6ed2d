package normalize

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// resolve returns the first alias whose value converts with conv.
func resolve[T any](fields map[string]any, aliases []string, conv func(any) (T, bool)) (T, bool) {
	for _, name := range aliases {
		v, ok := fields[name]
		if !ok || v == nil {
			continue
		}
		if out, ok := conv(v); ok {
			return out, true
		}
	}
	var zero T
	return zero, false
}

// asString converts scalars and record links to a trimmed, non-empty string.
func asString(v any) (string, bool) {
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case []byte:
		s = string(t)
	case json.Number:
		s = t.String()
	case surrealmodels.RecordID:
		return recordIDPart(t)
	case *surrealmodels.RecordID:
		if t == nil {
			return "", false
		}
		return recordIDPart(*t)
	case map[string]any:
		// embedded reference such as {"id": "L1", "name": "..."}
		if id, ok := t["id"]; ok && id != nil {
			return asString(id)
		}
		return "", false
	case bool:
		return "", false
	default:
		f, ok := asFloat(v)
		if !ok {
			return "", false
		}
		s = strconv.FormatFloat(f, 'f', -1, 64)
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

func recordIDPart(id surrealmodels.RecordID) (string, bool) {
	switch t := id.ID.(type) {
	case string:
		return t, t != ""
	case nil:
		return "", false
	default:
		return asString(t)
	}
}

// asFloat converts numeric kinds and numeric strings. NaN and Inf are rejected.
func asFloat(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int8:
		f = float64(t)
	case int16:
		f = float64(t)
	case int32:
		f = float64(t)
	case int64:
		f = float64(t)
	case uint:
		f = float64(t)
	case uint8:
		f = float64(t)
	case uint16:
		f = float64(t)
	case uint32:
		f = float64(t)
	case uint64:
		f = float64(t)
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// asNonNegative is asFloat restricted to values >= 0.
func asNonNegative(v any) (float64, bool) {
	f, ok := asFloat(v)
	if !ok || f < 0 {
		return 0, false
	}
	return f, true
}

func asBool(v any) (bool, bool) {
	switch t := v.(type) {
	case bool:
		return t, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(t))
		return b, err == nil
	}
	if f, ok := asFloat(v); ok {
		return f != 0, true
	}
	return false, false
}

// Layouts tried for string timestamps, most specific first.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02",
}

// unixMillisCutoff separates unix seconds from unix milliseconds.
const unixMillisCutoff = 1e11

// asTime converts the timestamp shapes found in the document store to UTC.
func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return utcNonZero(t)
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return utcNonZero(*t)
	case surrealmodels.CustomDateTime:
		return utcNonZero(t.Time)
	case *surrealmodels.CustomDateTime:
		if t == nil {
			return time.Time{}, false
		}
		return utcNonZero(t.Time)
	case string:
		s := strings.TrimSpace(t)
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				return utcNonZero(parsed)
			}
		}
		return time.Time{}, false
	case map[string]any:
		// exported store timestamps: {"seconds": .., "nanoseconds": ..}
		secs, ok := resolve(t, []string{"seconds", "_seconds"}, asFloat)
		if !ok {
			return time.Time{}, false
		}
		nanos, _ := resolve(t, []string{"nanoseconds", "_nanoseconds"}, asFloat)
		return utcNonZero(time.Unix(int64(secs), int64(nanos)))
	}
	f, ok := asFloat(v)
	if !ok || f <= 0 {
		return time.Time{}, false
	}
	if f >= unixMillisCutoff {
		return utcNonZero(time.UnixMilli(int64(f)))
	}
	return utcNonZero(time.Unix(int64(f), 0))
}

func utcNonZero(t time.Time) (time.Time, bool) {
	if t.IsZero() {
		return time.Time{}, false
	}
	return t.UTC(), true
}

// enumKey lowercases and unifies separators so "In Progress" and "in-progress" match.
func enumKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("-", "_", " ", "_").Replace(s)
}
