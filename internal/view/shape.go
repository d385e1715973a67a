package view

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"tradedesk/internal/format"
	"tradedesk/internal/pkg/convert"
)

// Shaper turns raw endpoint bodies into tables, metrics and series.
type Shaper struct {
	fmt *format.Formatter
}

func NewShaper(f *format.Formatter) *Shaper {
	if f == nil {
		f = format.Default()
	}
	return &Shaper{fmt: f}
}

// Shape validates body against def and shapes it. A body of the wrong
// container shape yields ErrMalformedResponse; bad cell values never fail.
// body is only read.
func (s *Shaper) Shape(def Definition, body []byte) (Result, error) {
	res := Result{
		View:     def.Name,
		Title:    def.Title,
		Endpoint: def.Endpoint,
		Table:    Table{Columns: []TableColumn{}, Rows: [][]Cell{}},
		Series:   []Series{},
	}
	if !gjson.ValidBytes(body) {
		return res, malformed("%s: invalid JSON", def.Endpoint)
	}
	root := gjson.ParseBytes(body)
	switch def.Payload {
	case PayloadObject:
		if !root.IsObject() {
			return res, malformed("%s: expected JSON object", def.Endpoint)
		}
	default:
		if !root.IsArray() {
			return res, malformed("%s: expected JSON array", def.Endpoint)
		}
	}
	if err := def.Validate(body); err != nil {
		return res, err
	}
	if def.Payload == PayloadObject {
		return s.shapeObject(def, root, res)
	}
	return s.shapeArray(def, root, res)
}

// checkRequired reports the first required column absent from rec.
func checkRequired(def Definition, rec record) error {
	for _, col := range def.Columns {
		if !col.Required {
			continue
		}
		if _, ok := rec.lookup(col); !ok {
			return fmt.Errorf("missing required column %q", col.Key)
		}
	}
	return nil
}

func (s *Shaper) shapeObject(def Definition, root gjson.Result, res Result) (Result, error) {
	rec := newRecord(root)
	if len(rec.keys) == 0 {
		return markEmpty(def, res), nil
	}
	if err := checkRequired(def, rec); err != nil {
		return res, malformed("%s: %v", def.Endpoint, err)
	}
	claimed := make(map[string]bool)
	for _, col := range def.Columns {
		v, ok := rec.lookup(col)
		markClaimed(rec, col, claimed)
		if !ok && !col.Required {
			continue
		}
		res.Metrics = append(res.Metrics, s.metric(col, v))
	}
	if !def.HidePassthru {
		for _, k := range rec.keys {
			if claimed[k] {
				continue
			}
			res.Metrics = append(res.Metrics, s.metric(Column{Key: k, Label: k, Kind: passthroughKind(rec.values[k])}, rec.values[k]))
		}
	}
	return res, nil
}

func (s *Shaper) metric(col Column, v any) Metric {
	cell := s.cell(col, v)
	m := Metric{Key: col.Key, Label: col.Label, Text: cell.Text, Sign: cell.Sign}
	if f, ok := convert.Float64(v); ok && col.Kind != KindText {
		m.Value = &f
	}
	return m
}

func (s *Shaper) shapeArray(def Definition, root gjson.Result, res Result) (Result, error) {
	var records []record
	var missing error
	root.ForEach(func(idx, item gjson.Result) bool {
		// custom schemas may admit non-object items; they carry no columns
		if !item.IsObject() {
			return true
		}
		rec := newRecord(item)
		if err := checkRequired(def, rec); err != nil {
			missing = fmt.Errorf("item %d: %w", idx.Int(), err)
			return false
		}
		records = append(records, rec)
		return true
	})
	if missing != nil {
		return res, malformed("%s: %v", def.Endpoint, missing)
	}
	if len(records) == 0 {
		return markEmpty(def, res), nil
	}

	columns := s.tableColumns(def, records)
	res.Table.Columns = make([]TableColumn, 0, len(columns))
	for _, col := range columns {
		res.Table.Columns = append(res.Table.Columns, TableColumn{Key: col.Key, Label: col.Label, Kind: col.Kind})
	}

	ascending := orderByTime(def, records)
	display := records
	if def.TimeColumn != "" {
		desc := make([]record, len(ascending))
		for i := range ascending {
			desc[i] = ascending[len(ascending)-1-i]
		}
		display = untimedLast(def, desc)
	}
	res.Table.Rows = make([][]Cell, 0, len(display))
	for _, rec := range display {
		row := make([]Cell, 0, len(columns))
		for _, col := range columns {
			v, _ := rec.lookup(col)
			row = append(row, s.cell(col, v))
		}
		res.Table.Rows = append(res.Table.Rows, row)
	}

	for _, spec := range def.Series {
		res.Series = append(res.Series, s.derive(def, spec, ascending))
	}
	return res, nil
}

// tableColumns returns declared columns present in at least one record
// (or required), then undeclared fields in first-seen order.
func (s *Shaper) tableColumns(def Definition, records []record) []Column {
	var out []Column
	claimed := make(map[string]bool)
	for _, col := range def.Columns {
		present := col.Required
		for _, rec := range records {
			if _, ok := rec.lookup(col); ok {
				present = true
			}
			markClaimed(rec, col, claimed)
		}
		if present {
			out = append(out, col)
		}
	}
	if def.HidePassthru {
		return out
	}
	for _, rec := range records {
		for _, k := range rec.keys {
			if claimed[k] {
				continue
			}
			claimed[k] = true
			out = append(out, Column{Key: k, Label: k, Kind: passthroughKind(rec.values[k])})
		}
	}
	return out
}

func (s *Shaper) cell(col Column, v any) Cell {
	switch col.Kind {
	case KindTimestamp:
		return Cell{Raw: v, Text: s.fmt.Timestamp(v)}
	case KindDate:
		if str, ok := v.(string); ok && strings.TrimSpace(str) != "" {
			return Cell{Raw: v, Text: strings.TrimSpace(str)}
		}
		if ts, ok := parseDate(v); ok {
			return Cell{Raw: v, Text: ts.In(s.fmt.Location()).Format("2006-01-02")}
		}
		return Cell{Raw: v, Text: format.InvalidTime}
	case KindPNL:
		p := s.fmt.PNL(v)
		return Cell{Raw: v, Text: p.Text, Sign: p.Sign}
	case KindMoney:
		return Cell{Raw: v, Text: s.fmt.Money(v)}
	case KindNumber:
		return Cell{Raw: v, Text: s.fmt.Number(v)}
	default:
		return Cell{Raw: v, Text: textOf(v)}
	}
}

func textOf(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

func passthroughKind(v any) ColumnKind {
	if _, ok := convert.Number(v); ok {
		return KindNumber
	}
	return KindText
}

func markClaimed(rec record, col Column, claimed map[string]bool) {
	for _, name := range col.names() {
		for _, k := range rec.keys {
			if strings.EqualFold(k, name) {
				claimed[k] = true
			}
		}
	}
}

// EmptyResult is the no-data state of def, used when nothing could be fetched.
func EmptyResult(def Definition) Result {
	return markEmpty(def, Result{View: def.Name, Title: def.Title, Endpoint: def.Endpoint, Table: Table{Rows: [][]Cell{}}})
}

func markEmpty(def Definition, res Result) Result {
	res.Empty = true
	res.EmptyMessage = def.EmptyMessage
	if res.EmptyMessage == "" {
		res.EmptyMessage = "No data found."
	}
	res.Table.Columns = []TableColumn{}
	res.Series = []Series{}
	return res
}

type timedRecord struct {
	rec record
	at  time.Time
	ok  bool
}

// orderByTime returns a new slice sorted ascending by the time column.
// Records without a parseable time keep fetch order after the timed ones.
func orderByTime(def Definition, records []record) []record {
	out := make([]record, len(records))
	if def.TimeColumn == "" {
		copy(out, records)
		return out
	}
	col, _ := def.Column(def.TimeColumn)
	timed := make([]timedRecord, len(records))
	for i, rec := range records {
		v, _ := rec.lookup(col)
		at, ok := instant(col, v)
		timed[i] = timedRecord{rec: rec, at: at, ok: ok}
	}
	sort.SliceStable(timed, func(i, j int) bool {
		a, b := timed[i], timed[j]
		if a.ok != b.ok {
			return a.ok
		}
		if !a.ok {
			return false
		}
		return a.at.Before(b.at)
	})
	for i, t := range timed {
		out[i] = t.rec
	}
	return out
}

// untimedLast moves records without a parseable time to the end, keeping
// their relative fetch order, for the descending table.
func untimedLast(def Definition, desc []record) []record {
	col, _ := def.Column(def.TimeColumn)
	timed := make([]record, 0, len(desc))
	var untimed []record
	for _, rec := range desc {
		v, _ := rec.lookup(col)
		if _, ok := instant(col, v); ok {
			timed = append(timed, rec)
		} else {
			untimed = append(untimed, rec)
		}
	}
	// desc reversed the untimed tail; restore fetch order
	for i, j := 0, len(untimed)-1; i < j; i, j = i+1, j-1 {
		untimed[i], untimed[j] = untimed[j], untimed[i]
	}
	return append(timed, untimed...)
}
