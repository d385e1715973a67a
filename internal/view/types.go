package view

import (
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"tradedesk/internal/format"
)

var (
	ErrMalformedResponse = errors.New("malformed response")
	ErrUnknownView       = errors.New("unknown view")
	ErrUnknownPage       = errors.New("unknown page")
)

// PayloadKind is the JSON container an endpoint returns.
type PayloadKind string

const (
	PayloadObject PayloadKind = "object"
	PayloadArray  PayloadKind = "array"
)

// ColumnKind decides how a field is formatted.
type ColumnKind string

const (
	KindText      ColumnKind = "text"
	KindNumber    ColumnKind = "number"
	KindMoney     ColumnKind = "money"
	KindTimestamp ColumnKind = "timestamp"
	KindDate      ColumnKind = "date"
	KindPNL       ColumnKind = "pnl"
)

func (k ColumnKind) valid() bool {
	switch k {
	case KindText, KindNumber, KindMoney, KindTimestamp, KindDate, KindPNL:
		return true
	}
	return false
}

// SeriesKind names a derived-series computation.
type SeriesKind string

const (
	SeriesValue      SeriesKind = "value"
	SeriesCumulative SeriesKind = "cumulative"
	SeriesBar        SeriesKind = "bar"
	SeriesGroupSum   SeriesKind = "group_sum"
	SeriesGroupCount SeriesKind = "group_count"
	SeriesHistogram  SeriesKind = "histogram"
	SeriesScatter    SeriesKind = "scatter"
)

// ChartType is the renderer hint attached to a series.
type ChartType string

const (
	ChartPie       ChartType = "pie"
	ChartDonut     ChartType = "donut"
	ChartBar       ChartType = "bar"
	ChartLine      ChartType = "line"
	ChartScatter   ChartType = "scatter"
	ChartHistogram ChartType = "histogram"
)

// Column is one named, typed field of a record. Aliases are alternative
// field names some backend revisions use for the same value.
type Column struct {
	Key      string     `yaml:"key" json:"key"`
	Label    string     `yaml:"label,omitempty" json:"label"`
	Kind     ColumnKind `yaml:"kind,omitempty" json:"kind"`
	Aliases  []string   `yaml:"aliases,omitempty" json:"aliases,omitempty"`
	Required bool       `yaml:"required,omitempty" json:"required,omitempty"`
}

func (c Column) names() []string {
	return append([]string{c.Key}, c.Aliases...)
}

// SeriesSpec describes one derived series. X/Y/Group reference column keys.
type SeriesSpec struct {
	ID        string     `yaml:"id" json:"id"`
	Title     string     `yaml:"title,omitempty" json:"title"`
	Kind      SeriesKind `yaml:"kind" json:"kind"`
	Chart     ChartType  `yaml:"chart,omitempty" json:"chart"`
	X         string     `yaml:"x,omitempty" json:"x,omitempty"`
	Y         string     `yaml:"y,omitempty" json:"y,omitempty"`
	Group     string     `yaml:"group,omitempty" json:"group,omitempty"`
	Bins      int        `yaml:"bins,omitempty" json:"bins,omitempty"`
	SMAPeriod int        `yaml:"sma_period,omitempty" json:"sma_period,omitempty"`
	Percent   bool       `yaml:"percent,omitempty" json:"percent,omitempty"`
}

// Definition is the explicit contract of one view: which endpoint it reads,
// the payload shape, typed columns and the series derived for charting.
type Definition struct {
	Name         string         `yaml:"name,omitempty" json:"name"`
	Title        string         `yaml:"title,omitempty" json:"title"`
	Endpoint     string         `yaml:"endpoint,omitempty" json:"endpoint"`
	Payload      PayloadKind    `yaml:"payload,omitempty" json:"payload"`
	Columns      []Column       `yaml:"columns" json:"columns"`
	TimeColumn   string         `yaml:"time_column,omitempty" json:"time_column,omitempty"`
	Series       []SeriesSpec   `yaml:"series,omitempty" json:"series,omitempty"`
	HidePassthru bool           `yaml:"hide_passthrough,omitempty" json:"hide_passthrough,omitempty"`
	EmptyMessage string         `yaml:"empty_message,omitempty" json:"empty_message,omitempty"`
	Schema       map[string]any `yaml:"schema,omitempty" json:"-"`

	schemaCompiled *jsonschema.Schema
}

// Column returns the column with the given key.
func (d Definition) Column(key string) (Column, bool) {
	for _, c := range d.Columns {
		if strings.EqualFold(c.Key, key) {
			return c, true
		}
	}
	return Column{}, false
}

// Page is a menu entry rendering one or more views in order.
type Page struct {
	Name  string   `yaml:"name" json:"name"`
	Title string   `yaml:"title,omitempty" json:"title"`
	Views []string `yaml:"views" json:"views"`
}

// Cell is one formatted table value. Raw is the value as fetched.
type Cell struct {
	Raw  any         `json:"raw"`
	Text string      `json:"text"`
	Sign format.Sign `json:"sign,omitempty"`
}

type TableColumn struct {
	Key   string     `json:"key"`
	Label string     `json:"label"`
	Kind  ColumnKind `json:"kind"`
}

type Table struct {
	Columns []TableColumn `json:"columns"`
	Rows    [][]Cell      `json:"rows"`
}

// Metric is a headline figure of an object payload.
type Metric struct {
	Key   string      `json:"key"`
	Label string      `json:"label"`
	Text  string      `json:"text"`
	Sign  format.Sign `json:"sign,omitempty"`
	Value *float64    `json:"value,omitempty"`
}

// Point is one element of a derived series. Label is the category (time,
// date or group key); X is only used by scatter series.
type Point struct {
	Label string      `json:"label"`
	X     float64     `json:"x,omitempty"`
	Y     float64     `json:"y"`
	Sign  format.Sign `json:"sign"`
	Group string      `json:"group,omitempty"`
}

// Line is an extra line drawn over a series, optionally on a second axis.
// Line is an overlay on a series. Points[i] sits at position Offset+i of
// the base series.
type Line struct {
	Name   string  `json:"name"`
	Axis   int     `json:"axis"`
	Offset int     `json:"offset,omitempty"`
	Points []Point `json:"points"`
}

type Series struct {
	ID       string     `json:"id"`
	Title    string     `json:"title"`
	Kind     SeriesKind `json:"kind"`
	Chart    ChartType  `json:"chart"`
	XLabel   string     `json:"x_label,omitempty"`
	YLabel   string     `json:"y_label,omitempty"`
	Points   []Point    `json:"points"`
	Overlays []Line     `json:"overlays,omitempty"`
}

// Result is a shaped view ready for rendering.
type Result struct {
	View         string   `json:"view"`
	Title        string   `json:"title"`
	Endpoint     string   `json:"endpoint"`
	Empty        bool     `json:"empty"`
	EmptyMessage string   `json:"empty_message,omitempty"`
	Metrics      []Metric `json:"metrics,omitempty"`
	Table        Table    `json:"table"`
	Series       []Series `json:"series"`
}

func malformed(msg string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedResponse, fmt.Sprintf(msg, args...))
}
