package view

import (
	"fmt"
	"math"
	"sort"

	talib "github.com/markcheno/go-talib"
	"github.com/shopspring/decimal"

	"tradedesk/internal/format"
	"tradedesk/internal/pkg/convert"
)

// CumulativeSum returns the running total of values in the given order.
// Sums are accumulated in decimal so [0.1, 0.2] ends at exactly 0.3.
func CumulativeSum(values []float64) []float64 {
	out := make([]float64, len(values))
	acc := decimal.Zero
	for i, v := range values {
		acc = acc.Add(decimal.NewFromFloat(v))
		out[i], _ = acc.Float64()
	}
	return out
}

// GroupTotal is the aggregate of one group key.
type GroupTotal struct {
	Key   string
	Total float64
	Count int
}

// GroupSum sums values per key. The result is sorted by key; keys and
// values must have the same length.
func GroupSum(keys []string, values []float64) []GroupTotal {
	sums := make(map[string]decimal.Decimal)
	counts := make(map[string]int)
	for i, k := range keys {
		if i >= len(values) {
			break
		}
		sums[k] = sums[k].Add(decimal.NewFromFloat(values[i]))
		counts[k]++
	}
	out := make([]GroupTotal, 0, len(sums))
	for k, d := range sums {
		f, _ := d.Float64()
		out = append(out, GroupTotal{Key: k, Total: f, Count: counts[k]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Bin is one histogram bucket, [Lower, Upper) except the last which is closed.
type Bin struct {
	Lower float64
	Upper float64
	Count int
}

// Histogram buckets values into equal-width bins. bins <= 0 picks Sturges'
// rule. Identical values produce a single bin.
func Histogram(values []float64, bins int) []Bin {
	finite := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			finite = append(finite, v)
		}
	}
	if len(finite) == 0 {
		return nil
	}
	lo, hi := finite[0], finite[0]
	for _, v := range finite[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if lo == hi {
		return []Bin{{Lower: lo, Upper: hi, Count: len(finite)}}
	}
	if bins <= 0 {
		bins = int(math.Ceil(math.Log2(float64(len(finite))))) + 1
	}
	// half-range arithmetic keeps hi-lo finite near the float64 limits
	half := (hi/2 - lo/2) / float64(bins)
	out := make([]Bin, bins)
	for i := range out {
		step := float64(i) * half
		out[i].Lower = lo + step + step
		next := float64(i+1) * half
		out[i].Upper = lo + next + next
	}
	out[bins-1].Upper = hi
	for _, v := range finite {
		idx := int((v/2 - lo/2) / half)
		idx = max(0, min(idx, bins-1))
		out[idx].Count++
	}
	return out
}

// SMA returns the simple moving average; positions before the first full
// window are reported as not ok.
func SMA(values []float64, period int) ([]float64, []bool) {
	ok := make([]bool, len(values))
	if period <= 1 || len(values) < period {
		return nil, ok
	}
	sma := talib.Sma(values, period)
	for i := period - 1; i < len(values); i++ {
		ok[i] = true
	}
	return sma, ok
}

// derive computes one series from records already in ascending time order.
func (s *Shaper) derive(def Definition, spec SeriesSpec, ascending []record) Series {
	out := Series{
		ID:     spec.ID,
		Title:  spec.Title,
		Kind:   spec.Kind,
		Chart:  spec.Chart,
		Points: []Point{},
	}
	yCol, _ := def.Column(spec.Y)
	xCol, hasX := def.Column(spec.X)
	groupCol, _ := def.Column(spec.Group)
	out.YLabel = yCol.Label
	if hasX {
		out.XLabel = xCol.Label
	}

	switch spec.Kind {
	case SeriesValue, SeriesCumulative, SeriesBar:
		labels, values := s.labelledValues(ascending, xCol, hasX, yCol)
		if spec.Kind == SeriesCumulative {
			values = CumulativeSum(values)
		}
		for i, v := range values {
			out.Points = append(out.Points, Point{Label: labels[i], Y: v, Sign: format.Classify(v)})
		}
		if spec.Kind == SeriesCumulative && spec.Percent {
			raw := make([]float64, 0, len(ascending))
			for _, rec := range ascending {
				if v, ok := numeric(rec, yCol); ok {
					raw = append(raw, v)
				}
			}
			out.Overlays = append(out.Overlays, Line{
				Name:   fmt.Sprintf("Cumulative %s (%%)", yCol.Label),
				Axis:   1,
				Points: percentOfMaxAbs(labels, values, raw),
			})
		}
		if spec.SMAPeriod > 1 {
			sma, ok := SMA(values, spec.SMAPeriod)
			line := Line{Name: fmt.Sprintf("%d-period SMA", spec.SMAPeriod), Offset: spec.SMAPeriod - 1}
			for i := range values {
				if ok[i] {
					line.Points = append(line.Points, Point{Label: labels[i], Y: sma[i], Sign: format.Classify(sma[i])})
				}
			}
			if len(line.Points) > 0 {
				out.Overlays = append(out.Overlays, line)
			}
		}
	case SeriesGroupSum, SeriesGroupCount:
		keys := make([]string, 0, len(ascending))
		values := make([]float64, 0, len(ascending))
		for _, rec := range ascending {
			key := groupKey(rec, groupCol)
			if spec.Kind == SeriesGroupCount {
				keys = append(keys, key)
				values = append(values, 1)
				continue
			}
			if v, ok := numeric(rec, yCol); ok {
				keys = append(keys, key)
				values = append(values, v)
			}
		}
		if spec.Kind == SeriesGroupCount {
			out.YLabel = "Count"
		}
		for _, g := range GroupSum(keys, values) {
			out.Points = append(out.Points, Point{Label: g.Key, Y: g.Total, Sign: format.Classify(g.Total), Group: g.Key})
		}
	case SeriesHistogram:
		values := make([]float64, 0, len(ascending))
		for _, rec := range ascending {
			if v, ok := numeric(rec, yCol); ok {
				values = append(values, v)
			}
		}
		out.XLabel = yCol.Label
		out.YLabel = "Count"
		for _, b := range Histogram(values, spec.Bins) {
			mid := b.Lower/2 + b.Upper/2
			out.Points = append(out.Points, Point{
				Label: fmt.Sprintf("%.2f to %.2f", b.Lower, b.Upper),
				X:     mid,
				Y:     float64(b.Count),
				Sign:  format.Classify(mid),
			})
		}
	case SeriesScatter:
		for _, rec := range ascending {
			x, okX := numeric(rec, xCol)
			y, okY := numeric(rec, yCol)
			if !okX || !okY {
				continue
			}
			out.Points = append(out.Points, Point{
				Label: groupKey(rec, groupCol),
				X:     x,
				Y:     y,
				Sign:  format.Classify(y),
				Group: groupKey(rec, groupCol),
			})
		}
	}
	return out
}

// labelledValues pairs each numeric y with its x label, skipping records
// whose y is not numeric.
func (s *Shaper) labelledValues(records []record, xCol Column, hasX bool, yCol Column) ([]string, []float64) {
	labels := make([]string, 0, len(records))
	values := make([]float64, 0, len(records))
	for i, rec := range records {
		v, ok := numeric(rec, yCol)
		if !ok {
			continue
		}
		label := fmt.Sprintf("#%d", i+1)
		if hasX {
			raw, _ := rec.lookup(xCol)
			label = s.cell(xCol, raw).Text
		}
		labels = append(labels, label)
		values = append(values, v)
	}
	return labels, values
}

func percentOfMaxAbs(labels []string, cumulative, raw []float64) []Point {
	maxAbs := 0.0
	for _, v := range raw {
		maxAbs = math.Max(maxAbs, math.Abs(v))
	}
	points := make([]Point, len(cumulative))
	for i, v := range cumulative {
		pct := 0.0
		if maxAbs > 0 {
			pct = v / maxAbs * 100
		}
		points[i] = Point{Label: labels[i], Y: pct, Sign: format.Classify(pct)}
	}
	return points
}

func numeric(rec record, col Column) (float64, bool) {
	v, ok := rec.lookup(col)
	if !ok {
		return 0, false
	}
	return convert.Float64(v)
}

func groupKey(rec record, col Column) string {
	v, ok := rec.lookup(col)
	if !ok || v == nil {
		return "Unknown"
	}
	key := textOf(v)
	if key == "" {
		return "Unknown"
	}
	return key
}
