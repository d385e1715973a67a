package view

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"tradedesk/internal/format"
)

// record is one fetched object with its keys in document order.
type record struct {
	keys   []string
	values map[string]any
}

func newRecord(obj gjson.Result) record {
	rec := record{values: make(map[string]any)}
	obj.ForEach(func(key, value gjson.Result) bool {
		k := key.String()
		if _, dup := rec.values[k]; !dup {
			rec.keys = append(rec.keys, k)
		}
		rec.values[k] = plainValue(value)
		return true
	})
	return rec
}

// lookup finds the column value under its key or an alias, matching
// names exactly first and case-insensitively second.
func (r record) lookup(col Column) (any, bool) {
	for _, name := range col.names() {
		if v, ok := r.values[name]; ok {
			return v, true
		}
	}
	for _, name := range col.names() {
		for _, k := range r.keys {
			if strings.EqualFold(k, name) {
				return r.values[k], true
			}
		}
	}
	return nil, false
}

// plainValue converts a gjson node into a Go value; numbers keep their
// literal text as json.Number.
func plainValue(v gjson.Result) any {
	switch v.Type {
	case gjson.Null:
		return nil
	case gjson.False:
		return false
	case gjson.True:
		return true
	case gjson.Number:
		return json.Number(v.Raw)
	case gjson.String:
		return v.Str
	default:
		return v.Value()
	}
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006/01/02",
	"02 Jan 2006",
}

// parseDate accepts calendar-date strings or epoch milliseconds.
func parseDate(v any) (time.Time, bool) {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		for _, layout := range dateLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				return parsed, true
			}
		}
		return time.Time{}, false
	default:
		ts, err := format.ParseTimestamp(v)
		if err != nil {
			return time.Time{}, false
		}
		return ts, true
	}
}

// instant extracts the sort instant for timestamp and date columns.
func instant(col Column, v any) (time.Time, bool) {
	switch col.Kind {
	case KindTimestamp:
		ts, err := format.ParseTimestamp(v)
		return ts, err == nil
	case KindDate:
		return parseDate(v)
	default:
		return time.Time{}, false
	}
}
